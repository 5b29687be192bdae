package guard

import (
	"errors"
	"net/http"
	"net/url"

	"rbac-admin/internal/auth"
	"rbac-admin/internal/session"
	"rbac-admin/pkg/logger"

	"github.com/gin-gonic/gin"
)

const ginStoreKey = "session.store"

// ExpiredFunc observes a session that could not be kept fresh. It must not
// write the response.
type ExpiredFunc func(c *gin.Context, st *session.Store, err error)

type Options struct {
	LoginPath         string
	LandingPath       string
	ProtectedPrefixes []string
	OnExpired         ExpiredFunc
}

// Guard authenticates navigations with the session cookie.
//
// Rules:
//   - public paths pass untouched and never trigger rotation
//   - the login page bounces authenticated users to the landing path
//   - protected paths without a fresh session redirect to the login path with
//     callbackUrl set to the original path and query
//   - any rotation is written back to the cookie on the same response
//
// Page-level RBAC is not decided here; see rbac.Gate.
type Guard struct {
	sessions   *session.Manager
	classifier Classifier
	login      string
	landing    string
	onExpired  ExpiredFunc
}

func New(sessions *session.Manager, o Options) *Guard {
	if o.LoginPath == "" {
		o.LoginPath = "/login"
	}
	if o.LandingPath == "" {
		o.LandingPath = "/dashboard"
	}
	return &Guard{
		sessions:   sessions,
		classifier: NewClassifier(o.LoginPath, o.ProtectedPrefixes),
		login:      o.LoginPath,
		landing:    o.LandingPath,
		onExpired:  o.OnExpired,
	}
}

func (g *Guard) Classify(path string) Class { return g.classifier.Classify(path) }

func (g *Guard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch g.classifier.Classify(c.Request.URL.Path) {
		case LoginPage:
			if _, ok := g.authenticate(c); ok {
				c.Redirect(http.StatusFound, g.landing)
				c.Abort()
				return
			}
			c.Next()

		case Protected:
			if _, ok := g.authenticate(c); !ok {
				c.Redirect(http.StatusFound, g.LoginURL(c.Request.URL))
				c.Abort()
				return
			}
			c.Next()

		default:
			c.Next()
		}
	}
}

// LoginURL is the login path carrying u's path and query as callbackUrl.
func (g *Guard) LoginURL(u *url.URL) string {
	callback := u.Path
	if u.RawQuery != "" {
		callback += "?" + u.RawQuery
	}
	return g.login + "?" + url.Values{"callbackUrl": {callback}}.Encode()
}

// authenticate loads the session, keeps it fresh, persists any change and
// attaches the identity to the request.
func (g *Guard) authenticate(c *gin.Context) (auth.Identity, bool) {
	ctx := c.Request.Context()
	log := logger.FromGin(c)

	st, err := g.sessions.FromRequest(c)
	if err != nil {
		if !errors.Is(err, session.ErrNotAuthenticated) {
			log.Info("session cookie rejected", "err", err)
			g.sessions.Clear(c)
		}
		return auth.Identity{}, false
	}

	_, freshErr := st.EnsureFreshWithin(ctx, g.sessions.Margin())
	if st.Changed() {
		if err := g.sessions.Persist(c, st); err != nil {
			log.Error("persist session failed", "err", err)
		}
	}
	if freshErr != nil {
		if g.onExpired != nil {
			g.onExpired(c, st, freshErr)
		}
		return auth.Identity{}, false
	}

	ident, ok := st.CurrentIdentity()
	if !ok {
		return auth.Identity{}, false
	}

	c.Set(ginStoreKey, st)
	c.Request = c.Request.WithContext(auth.WithIdentity(ctx, ident))
	logger.SetGin(c, log.With("user_id", ident.UserID))
	return ident, true
}

// StoreFrom returns the session store the guard loaded for this request.
func StoreFrom(c *gin.Context) (*session.Store, bool) {
	v, ok := c.Get(ginStoreKey)
	if !ok {
		return nil, false
	}
	st, ok := v.(*session.Store)
	return st, ok && st != nil
}
