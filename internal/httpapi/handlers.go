package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"rbac-admin/internal/audit"
	"rbac-admin/internal/auth"
	"rbac-admin/internal/rbac"
	"rbac-admin/internal/reporting"
	"rbac-admin/internal/session"
	"rbac-admin/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Sessions  *session.Manager
	Resolver  *rbac.Resolver
	Directory *rbac.Service
	Audit     *audit.Service
	Reports   *reporting.Service

	LoginPath   string
	LandingPath string
}

// writeError maps domain sentinels to status codes.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, rbac.ErrNotFound), errors.Is(err, rbac.ErrUserNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, rbac.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, rbac.ErrConflict), errors.Is(err, rbac.ErrRoleInUse):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.FromGin(c).Error("request failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func actorID(c *gin.Context) string {
	uid, _ := auth.UserID(c.Request.Context())
	return uid
}

// safeCallback accepts only local absolute paths, so a login can never bounce
// the browser to another origin or back onto the login page.
func safeCallback(raw, loginPath, fallback string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return fallback
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Path == loginPath {
		return fallback
	}
	return raw
}

func (h Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
