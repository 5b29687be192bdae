package httpapi

import (
	"net/http"

	"rbac-admin/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Directory administration. Every mutation is audited as admin_change.

func (h Handlers) auditChange(c *gin.Context, action, entity, id string) {
	h.Audit.AdminChange(c.Request.Context(), actorID(c), c.ClientIP(), action, entity, id)
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return false
	}
	return true
}

// --- roles ---

func (h Handlers) ListRoles(c *gin.Context) {
	roles, err := h.Directory.ListRoles(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roles": roles})
}

func (h Handlers) GetRole(c *gin.Context) {
	r, err := h.Directory.GetRole(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Handlers) CreateRole(c *gin.Context) {
	var in rbac.Role
	if !bindJSON(c, &in) {
		return
	}
	r, err := h.Directory.CreateRole(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	h.auditChange(c, "create", "role", r.ID)
	c.JSON(http.StatusCreated, r)
}

func (h Handlers) UpdateRole(c *gin.Context) {
	var in rbac.Role
	if !bindJSON(c, &in) {
		return
	}
	in.ID = c.Param("id")
	r, err := h.Directory.UpdateRole(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	h.auditChange(c, "update", "role", r.ID)
	c.JSON(http.StatusOK, r)
}

func (h Handlers) DeleteRole(c *gin.Context) {
	id := c.Param("id")
	if err := h.Directory.DeleteRole(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	h.auditChange(c, "delete", "role", id)
	c.Status(http.StatusNoContent)
}

// --- pages ---

func (h Handlers) ListPages(c *gin.Context) {
	pages, err := h.Directory.ListPages(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pages": pages})
}

func (h Handlers) GetPage(c *gin.Context) {
	p, err := h.Directory.GetPage(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h Handlers) CreatePage(c *gin.Context) {
	var in rbac.Page
	if !bindJSON(c, &in) {
		return
	}
	p, err := h.Directory.CreatePage(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	h.auditChange(c, "create", "page", p.ID)
	c.JSON(http.StatusCreated, p)
}

func (h Handlers) UpdatePage(c *gin.Context) {
	var in rbac.Page
	if !bindJSON(c, &in) {
		return
	}
	in.ID = c.Param("id")
	p, err := h.Directory.UpdatePage(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	h.auditChange(c, "update", "page", p.ID)
	c.JSON(http.StatusOK, p)
}

func (h Handlers) DeletePage(c *gin.Context) {
	id := c.Param("id")
	if err := h.Directory.DeletePage(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	h.auditChange(c, "delete", "page", id)
	c.Status(http.StatusNoContent)
}

// --- users ---

func (h Handlers) ListUsers(c *gin.Context) {
	users, err := h.Directory.ListUsers(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h Handlers) GetUser(c *gin.Context) {
	u, err := h.Directory.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h Handlers) CreateUser(c *gin.Context) {
	var in rbac.User
	if !bindJSON(c, &in) {
		return
	}
	u, err := h.Directory.CreateUser(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	h.auditChange(c, "create", "user", u.ID)
	c.JSON(http.StatusCreated, u)
}

func (h Handlers) UpdateUser(c *gin.Context) {
	var in rbac.User
	if !bindJSON(c, &in) {
		return
	}
	in.ID = c.Param("id")
	u, err := h.Directory.UpdateUser(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	h.auditChange(c, "update", "user", u.ID)
	c.JSON(http.StatusOK, u)
}

func (h Handlers) DeleteUser(c *gin.Context) {
	id := c.Param("id")
	if err := h.Directory.DeleteUser(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	h.auditChange(c, "delete", "user", id)
	c.Status(http.StatusNoContent)
}
