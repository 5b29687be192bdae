package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"rbac-admin/internal/auth"
	"rbac-admin/internal/guard"
	"rbac-admin/internal/rbac"

	"github.com/gin-gonic/gin"
)

const ginPageKey = "rbac.page"

// MyPages lists the pages the caller may open, in display order.
func (h Handlers) MyPages(c *gin.Context) {
	ident, err := auth.IdentityFrom(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	pages, err := h.Resolver.AccessiblePages(c.Request.Context(), ident.UserID)
	if err != nil && !errors.Is(err, rbac.ErrUserNotFound) {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pages": pages})
}

func (h Handlers) UserPages(c *gin.Context) {
	pages, err := h.Resolver.AccessiblePages(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pages": pages})
}

// AccessCheck answers canAccess for an arbitrary user and path.
func (h Handlers) AccessCheck(c *gin.Context) {
	userID, path := c.Query("userId"), c.Query("path")
	if userID == "" || path == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "userId and path required"})
		return
	}
	ok, err := h.Resolver.CanAccess(c.Request.Context(), userID, path)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": userID, "path": path, "allowed": ok})
}

// Navigation fronts unmatched routes: only GETs on protected paths that name a
// known page continue (to the page gate); everything else is 404.
func (h Handlers) Navigation(g *guard.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || g.Classify(c.Request.URL.Path) != guard.Protected {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		p, err := h.Directory.PageByPath(c.Request.Context(), c.Request.URL.Path)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Set(ginPageKey, p)
		c.Next()
	}
}

// ShowPage renders the page descriptor once the gate has allowed it.
func (h Handlers) ShowPage(c *gin.Context) {
	ident, err := auth.IdentityFrom(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	v, ok := c.Get(ginPageKey)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": v.(rbac.Page), "user": ident})
}

// AuditLog lists recent audit events, newest first.
func (h Handlers) AuditLog(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	events, err := h.Audit.Recent(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
