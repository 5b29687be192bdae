package httpapi

import (
	"errors"
	"net/http"

	"rbac-admin/internal/auth"
	"rbac-admin/internal/guard"
	"rbac-admin/internal/session"
	"rbac-admin/pkg/logger"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Username    string `json:"username" form:"username" binding:"required"`
	Password    string `json:"password" form:"password" binding:"required"`
	CallbackURL string `json:"callbackUrl" form:"callbackUrl"`
}

// LoginPage reports the state the login form needs. Authenticated users never
// get here; the guard sends them to the landing page.
func (h Handlers) LoginPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"callbackUrl": safeCallback(c.Query("callbackUrl"), h.LoginPath, h.LandingPath),
	})
}

// Login exchanges credentials with the identity backend and sets the session cookie.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	ctx := c.Request.Context()
	log := logger.FromGin(c)

	st := h.Sessions.NewStore()
	if _, err := st.Login(ctx, req.Username, req.Password); err != nil {
		kind := session.KindOf(err)
		log.Info("login failed", "username", req.Username, "kind", string(kind), "err", err)
		h.Audit.LoginFailed(ctx, req.Username, c.ClientIP(), string(kind))

		switch kind {
		case session.KindInvalidCredentials:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials", "kind": kind})
		case session.KindMalformedToken:
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "identity backend returned an unusable token", "kind": kind})
		default:
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "identity backend unavailable", "kind": session.KindBackendUnavailable})
		}
		return
	}

	if err := h.Sessions.Persist(c, st); err != nil {
		log.Error("persist session failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session could not be saved"})
		return
	}

	ident, _ := st.CurrentIdentity()
	cred := st.Credential()
	log.Info("login succeeded", "user_id", ident.UserID)
	h.Audit.LoginSucceeded(ctx, ident.UserID, ident.Username, c.ClientIP())

	c.JSON(http.StatusOK, gin.H{
		"redirect":         safeCallback(req.CallbackURL, h.LoginPath, h.LandingPath),
		"user":             ident,
		"accessExpiresAt":  cred.AccessExpiresAt,
		"refreshExpiresAt": cred.RefreshExpiresAt,
	})
}

// Logout revokes the session id and clears the cookie. Repeating it is harmless.
func (h Handlers) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromGin(c)

	st, err := h.Sessions.FromRequest(c)
	switch {
	case err == nil:
		ident, _ := st.CurrentIdentity()
		if err := h.Sessions.Revoke(ctx, st); err != nil {
			log.Warn("session revocation failed", "err", err)
		}
		h.Audit.Logout(ctx, ident.UserID, c.ClientIP())
	case !errors.Is(err, session.ErrNotAuthenticated):
		log.Debug("logout with unusable session", "err", err)
	}

	h.Sessions.Clear(c)
	c.JSON(http.StatusOK, gin.H{"redirect": h.LoginPath})
}

// Me returns the authenticated identity and its session expiries.
func (h Handlers) Me(c *gin.Context) {
	ident, err := auth.IdentityFrom(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	out := gin.H{"user": ident}
	if st, ok := guard.StoreFrom(c); ok {
		cred := st.Credential()
		out["session"] = gin.H{
			"accessExpiresAt":  cred.AccessExpiresAt,
			"refreshExpiresAt": cred.RefreshExpiresAt,
		}
	}
	c.JSON(http.StatusOK, out)
}
