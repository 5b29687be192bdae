package rbac

import (
	"net/http"

	"rbac-admin/internal/auth"
	"rbac-admin/pkg/logger"

	"github.com/gin-gonic/gin"
)

// DenyFunc observes a refused page check. It must not write the response.
type DenyFunc func(c *gin.Context, userID, path string)

// Gate applies page-level access checks on top of an authenticated request.
//
// Rules:
// - no identity in context: 401 (the route guard normally redirects first)
// - identity without access to the page: 403, the session is left alone
// - directory failure: 503
type Gate struct {
	resolver *Resolver
	onDeny   DenyFunc
}

func NewGate(resolver *Resolver, onDeny DenyFunc) *Gate {
	return &Gate{resolver: resolver, onDeny: onDeny}
}

// RequirePage guards a route group with the page that administers it.
func (g *Gate) RequirePage(path string) gin.HandlerFunc {
	return func(c *gin.Context) { g.check(c, path) }
}

// RequirePageAccess guards page navigations using the request path itself.
func (g *Gate) RequirePageAccess() gin.HandlerFunc {
	return func(c *gin.Context) { g.check(c, c.Request.URL.Path) }
}

func (g *Gate) check(c *gin.Context, path string) {
	id, err := auth.IdentityFrom(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	ok, err := g.resolver.CanAccess(c.Request.Context(), id.UserID, path)
	if err != nil {
		logger.FromGin(c).Error("page access check failed", "user_id", id.UserID, "page", path, "err", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "directory unavailable"})
		return
	}
	if !ok {
		logger.FromGin(c).Info("page access denied", "user_id", id.UserID, "page", path)
		if g.onDeny != nil {
			g.onDeny(c, id.UserID, path)
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.Next()
}
