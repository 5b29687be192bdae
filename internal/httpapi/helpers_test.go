package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"rbac-admin/internal/audit"
	"rbac-admin/internal/guard"
	"rbac-admin/internal/identity"
	"rbac-admin/internal/rbac"
	"rbac-admin/internal/reporting"
	"rbac-admin/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// identityServer mimics the backend's /login and /refresh endpoints.
// alice is user 1 (seeded administrator), bob is user 2 (viewer).
type identityServer struct {
	*httptest.Server
	down         atomic.Bool
	refreshCalls atomic.Int32
}

func newIdentityServer(t *testing.T) *identityServer {
	t.Helper()
	s := &identityServer{}
	accounts := map[string]string{"alice": "1", "bob": "2"}

	issue := func(w http.ResponseWriter, userID string) {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"account": map[string]any{"id": userID, "username": userID, "roles": []any{1}},
			"nonce":   time.Now().UnixNano(),
		}).SignedString([]byte("backend"))
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token":  tok,
			"refresh_token": "rt-" + userID + "-" + tok[len(tok)-8:],
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if s.down.Load() {
			http.Error(w, `{"detail":"db down"}`, http.StatusInternalServerError)
			return
		}
		var body struct{ Username, Password string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		id, ok := accounts[body.Username]
		if !ok || body.Password != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Incorrect username or password"}`))
			return
		}
		issue(w, id)
	})
	mux.HandleFunc("/refresh", func(w http.ResponseWriter, r *http.Request) {
		s.refreshCalls.Add(1)
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		parts := strings.Split(body.RefreshToken, "-")
		if len(parts) < 2 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		issue(w, parts[1])
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

type testApp struct {
	backend *identityServer
	repo    *rbac.MemoryRepo
	audit   *audit.MemoryRepo
	engine  *gin.Engine
}

func newTestApp(t *testing.T, loginPerMinute int) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	app := &testApp{backend: newIdentityServer(t), repo: rbac.NewMemoryRepo(), audit: audit.NewMemoryRepo()}
	require.NoError(t, rbac.Seed(ctx, app.repo, "1"))
	roles, err := app.repo.ListRoles(ctx)
	require.NoError(t, err)
	var viewer string
	for _, r := range roles {
		if r.Name == rbac.ViewerRole {
			viewer = r.ID
		}
	}
	_, err = app.repo.CreateUser(ctx, rbac.User{ID: "2", Username: "bob", Active: true, RoleIDs: []string{viewer}})
	require.NoError(t, err)

	client := identity.NewClient(app.backend.URL, nil, 2*time.Second)
	state := session.NewMemoryState()
	sealer, err := session.NewSealer("test-secret", "rbac-admin")
	require.NoError(t, err)
	sessions, err := session.NewManager(session.Options{
		Backend:     client,
		Rotator:     session.NewRotator(client, state, 2*time.Second, 30*time.Second),
		Sealer:      sealer,
		Revocations: state,
		Lifetimes:   session.Lifetimes{Access: time.Hour, Refresh: 24 * time.Hour},
	})
	require.NoError(t, err)

	auditSvc := audit.NewService(app.audit)
	resolver := rbac.NewResolver(app.repo)
	g := guard.New(sessions, guard.Options{
		ProtectedPrefixes: []string{"/dashboard", "/profile", "/admin", "/reports", "/settings", "/api/v1"},
	})
	gate := rbac.NewGate(resolver, func(c *gin.Context, userID, path string) {
		auditSvc.AccessDenied(c.Request.Context(), userID, c.ClientIP(), path)
	})
	h := Handlers{
		Sessions:    sessions,
		Resolver:    resolver,
		Directory:   rbac.NewService(app.repo),
		Audit:       auditSvc,
		Reports:     reporting.NewService(app.audit),
		LoginPath:   "/login",
		LandingPath: "/dashboard",
	}

	r := gin.New()
	r.Use(g.Middleware())
	r.GET("/login", h.LoginPage)
	r.POST("/login", NewLoginLimiter(loginPerMinute).Handler(), h.Login)
	r.POST("/logout", h.Logout)
	v1 := r.Group("/api/v1")
	v1.GET("/me", h.Me)
	v1.GET("/me/pages", h.MyPages)
	roleGroup := v1.Group("/roles", gate.RequirePage("/admin/roles"))
	roleGroup.GET("", h.ListRoles)
	roleGroup.POST("", h.CreateRole)
	roleGroup.DELETE("/:id", h.DeleteRole)
	v1.GET("/access/check", gate.RequirePage("/admin/users"), h.AccessCheck)
	v1.GET("/reports/logins", gate.RequirePage("/reports/login-log"), h.LoginReport)
	v1.GET("/audit", gate.RequirePage("/reports/audit-log"), h.AuditLog)
	r.NoRoute(h.Navigation(g), gate.RequirePageAccess(), h.ShowPage)

	app.engine = r
	return app
}

func (a *testApp) do(method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.RemoteAddr = "10.0.0.1:1234"
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *testApp) login(t *testing.T, user string) *http.Cookie {
	t.Helper()
	w := a.do(http.MethodPost, "/login", `{"username":"`+user+`","password":"pw"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ck := cookieIn(w)
	require.NotNil(t, ck)
	return ck
}

func cookieIn(w *httptest.ResponseRecorder) *http.Cookie {
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "rbac_session" {
			return ck
		}
	}
	return nil
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (a *testApp) eventTypes() []audit.EventType {
	var out []audit.EventType
	for _, e := range a.audit.Events() {
		out = append(out, e.Type)
	}
	return out
}
