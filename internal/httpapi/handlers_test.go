package httpapi

import (
	"net/http"
	"testing"

	"rbac-admin/internal/audit"

	"github.com/stretchr/testify/require"
)

func TestSafeCallback(t *testing.T) {
	cases := map[string]string{
		"":                     "/dashboard",
		"/admin/roles?tab=1":   "/admin/roles?tab=1",
		"https://evil.example": "/dashboard",
		"//evil.example/x":     "/dashboard",
		"/\\evil.example":      "/dashboard",
		"/login":               "/dashboard",
		"reports":              "/dashboard",
	}
	for in, want := range cases {
		require.Equal(t, want, safeCallback(in, "/login", "/dashboard"), in)
	}
}

func TestLogin_SetsCookieAndHonoursCallback(t *testing.T) {
	app := newTestApp(t, 0)

	w := app.do(http.MethodPost, "/login", `{"username":"alice","password":"pw","callbackUrl":"/admin/roles"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, "/admin/roles", body["redirect"])
	require.Equal(t, "1", body["user"].(map[string]any)["userId"])

	ck := cookieIn(w)
	require.NotNil(t, ck)
	require.True(t, ck.HttpOnly)
	require.Equal(t, []audit.EventType{audit.EventLoginSucceeded}, app.eventTypes())

	w = app.do(http.MethodPost, "/login", `{"username":"bob","password":"pw","callbackUrl":"https://evil.example"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "/dashboard", decode(t, w)["redirect"])
}

func TestLogin_Failures(t *testing.T) {
	app := newTestApp(t, 0)

	w := app.do(http.MethodPost, "/login", `{"username":"alice","password":"nope"}`, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "InvalidCredentials", decode(t, w)["kind"])
	require.Nil(t, cookieIn(w))

	w = app.do(http.MethodPost, "/login", `{"username":"alice"}`, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	app.backend.down.Store(true)
	w = app.do(http.MethodPost, "/login", `{"username":"alice","password":"pw"}`, nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, "BackendUnavailable", decode(t, w)["kind"])

	events := app.audit.Events()
	require.Len(t, events, 2)
	require.Equal(t, audit.EventLoginFailed, events[0].Type)
	require.Equal(t, "InvalidCredentials", events[0].Metadata["kind"])
	require.Equal(t, "BackendUnavailable", events[1].Metadata["kind"])
}

func TestLogin_Throttled(t *testing.T) {
	app := newTestApp(t, 1)

	w := app.do(http.MethodPost, "/login", `{"username":"alice","password":"nope"}`, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.do(http.MethodPost, "/login", `{"username":"alice","password":"pw"}`, nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestLoginPage(t *testing.T) {
	app := newTestApp(t, 0)

	w := app.do(http.MethodGet, "/login?callbackUrl=%2Freports", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "/reports", decode(t, w)["callbackUrl"])

	w = app.do(http.MethodGet, "/login", "", app.login(t, "bob"))
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/dashboard", w.Header().Get("Location"))
}

func TestMe(t *testing.T) {
	app := newTestApp(t, 0)

	w := app.do(http.MethodGet, "/api/v1/me", "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/login?callbackUrl=%2Fapi%2Fv1%2Fme", w.Header().Get("Location"))

	w = app.do(http.MethodGet, "/api/v1/me", "", app.login(t, "bob"))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, "2", body["user"].(map[string]any)["userId"])
	require.Contains(t, body, "session")
}

func TestMyPages_ViewerSeesDashboardAndProfile(t *testing.T) {
	app := newTestApp(t, 0)

	w := app.do(http.MethodGet, "/api/v1/me/pages", "", app.login(t, "bob"))
	require.Equal(t, http.StatusOK, w.Code)
	pages := decode(t, w)["pages"].([]any)
	require.Len(t, pages, 2)
	require.Equal(t, "/dashboard", pages[0].(map[string]any)["path"])
	require.Equal(t, "/profile", pages[1].(map[string]any)["path"])
}

func TestAdminAPI_GatedByPage(t *testing.T) {
	app := newTestApp(t, 0)

	w := app.do(http.MethodGet, "/api/v1/roles", "", app.login(t, "bob"))
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Contains(t, app.eventTypes(), audit.EventAccessDenied)

	admin := app.login(t, "alice")
	w = app.do(http.MethodGet, "/api/v1/roles", "", admin)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode(t, w)["roles"].([]any), 2)

	w = app.do(http.MethodGet, "/api/v1/access/check?userId=2&path=/admin/roles", "", admin)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, false, decode(t, w)["allowed"])
}

func TestAdminAPI_RoleLifecycle(t *testing.T) {
	app := newTestApp(t, 0)
	admin := app.login(t, "alice")

	w := app.do(http.MethodPost, "/api/v1/roles", `{"name":"Reports","pageIds":["7","8"]}`, admin)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["id"].(string)

	w = app.do(http.MethodPost, "/api/v1/roles", `{"name":"Broken","pageIds":["999"]}`, admin)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Administrator is held by user 1
	w = app.do(http.MethodDelete, "/api/v1/roles/17", "", admin)
	require.Equal(t, http.StatusConflict, w.Code)

	w = app.do(http.MethodDelete, "/api/v1/roles/"+id, "", admin)
	require.Equal(t, http.StatusNoContent, w.Code)

	var changes int
	for _, e := range app.audit.Events() {
		if e.Type == audit.EventAdminChange {
			changes++
			require.Equal(t, "1", e.ActorUserID)
		}
	}
	require.Equal(t, 2, changes)
}

func TestNavigation(t *testing.T) {
	app := newTestApp(t, 0)
	bob := app.login(t, "bob")

	w := app.do(http.MethodGet, "/dashboard", "", bob)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "/dashboard", decode(t, w)["page"].(map[string]any)["path"])

	// RBAC denial never forces a re-login
	w = app.do(http.MethodGet, "/admin/roles", "", bob)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Empty(t, w.Header().Get("Location"))

	w = app.do(http.MethodGet, "/dashboard/unknown", "", bob)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(http.MethodGet, "/nowhere", "", bob)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogout_RevokesSession(t *testing.T) {
	app := newTestApp(t, 0)
	ck := app.login(t, "bob")

	w := app.do(http.MethodPost, "/logout", "", ck)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := cookieIn(w)
	require.NotNil(t, cleared)
	require.Less(t, cleared.MaxAge, 0)

	// the copied cookie no longer authenticates
	w = app.do(http.MethodGet, "/dashboard", "", ck)
	require.Equal(t, http.StatusFound, w.Code)

	// idempotent
	w = app.do(http.MethodPost, "/logout", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, app.eventTypes(), audit.EventLogout)
}

func TestNewLoginLimiter(t *testing.T) {
	require.Nil(t, NewLoginLimiter(0))
	l := NewLoginLimiter(60)
	require.NotNil(t, l)
	require.Equal(t, 6, l.burst)
	require.InDelta(t, 1.0, float64(l.limit), 1e-9)
}

func TestReports_LoginSummaryAndAuditLog(t *testing.T) {
	app := newTestApp(t, 0)
	app.do(http.MethodPost, "/login", `{"username":"bob","password":"wrong"}`, nil)
	bob := app.login(t, "bob")
	admin := app.login(t, "alice")

	w := app.do(http.MethodGet, "/api/v1/reports/logins", "", bob)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(http.MethodGet, "/api/v1/reports/logins", "", admin)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.EqualValues(t, 2, body["succeeded"])
	require.EqualValues(t, 1, body["failed"])
	require.EqualValues(t, 1, body["accessDenied"])

	w = app.do(http.MethodGet, "/api/v1/reports/logins?from=yesterday", "", admin)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(http.MethodGet, "/api/v1/audit?limit=2", "", admin)
	require.Equal(t, http.StatusOK, w.Code)
	events := decode(t, w)["events"].([]any)
	require.Len(t, events, 2)
	require.Equal(t, string(audit.EventAccessDenied), events[0].(map[string]any)["type"])
}
