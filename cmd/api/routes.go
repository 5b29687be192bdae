package main

import (
	"context"
	"net/http"

	"rbac-admin/internal/guard"
	"rbac-admin/internal/httpapi"
	"rbac-admin/internal/rbac"
	"rbac-admin/pkg/logger"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	handlers httpapi.Handlers
	guard    *guard.Guard
	gate     *rbac.Gate
	limiter  *httpapi.LoginLimiter
	health   func(ctx context.Context) error
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. The route guard runs globally; page
// gates are attached per group here.
func registerRoutes(r *gin.Engine, d routeDeps) {
	h := d.handlers

	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := d.health(c.Request.Context()); err != nil {
			logger.FromGin(c).Error("health check failed", "err", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		h.Healthz(c)
	})
	r.GET(h.LoginPath, h.LoginPage)
	r.POST(h.LoginPath, d.limiter.Handler(), h.Login)
	r.POST("/logout", h.Logout)

	// authenticated API (protected prefix)
	v1 := r.Group("/api/v1")
	{
		v1.GET("/me", h.Me)
		v1.GET("/me/pages", h.MyPages)

		roles := v1.Group("/roles", d.gate.RequirePage("/admin/roles"))
		{
			roles.GET("", h.ListRoles)
			roles.POST("", h.CreateRole)
			roles.GET("/:id", h.GetRole)
			roles.PUT("/:id", h.UpdateRole)
			roles.DELETE("/:id", h.DeleteRole)
		}

		pages := v1.Group("/pages", d.gate.RequirePage("/admin/pages"))
		{
			pages.GET("", h.ListPages)
			pages.POST("", h.CreatePage)
			pages.GET("/:id", h.GetPage)
			pages.PUT("/:id", h.UpdatePage)
			pages.DELETE("/:id", h.DeletePage)
		}

		users := v1.Group("/users", d.gate.RequirePage("/admin/users"))
		{
			users.GET("", h.ListUsers)
			users.POST("", h.CreateUser)
			users.GET("/:id", h.GetUser)
			users.PUT("/:id", h.UpdateUser)
			users.DELETE("/:id", h.DeleteUser)
			users.GET("/:id/pages", h.UserPages)
		}

		v1.GET("/access/check", d.gate.RequirePage("/admin/users"), h.AccessCheck)
		v1.GET("/audit", d.gate.RequirePage("/reports/audit-log"), h.AuditLog)
		v1.GET("/reports/logins", d.gate.RequirePage("/reports/login-log"), h.LoginReport)
	}

	// page navigations: the guard has authenticated, the gate checks the exact path
	r.NoRoute(h.Navigation(d.guard), d.gate.RequirePageAccess(), h.ShowPage)
}
