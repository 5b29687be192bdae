package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"rbac-admin/pkg/logger"

	"github.com/gin-gonic/gin"
)

// CookieOptions control the session cookie attributes.
type CookieOptions struct {
	Name   string
	Path   string
	Secure bool
}

type Options struct {
	Backend     Authenticator
	Rotator     *Rotator
	Sealer      *Sealer
	Revocations Revocations
	Lifetimes   Lifetimes
	// Margin treats access tokens as expired this long before their stamped expiry.
	Margin time.Duration
	Cookie CookieOptions
	Clock  func() time.Time
}

// Manager builds per-request Stores and moves credentials in and out of the
// session cookie. One Manager is shared by the whole process.
type Manager struct {
	backend     Authenticator
	rotator     *Rotator
	sealer      *Sealer
	revocations Revocations
	lifetimes   Lifetimes
	margin      time.Duration
	cookie      CookieOptions
	clock       func() time.Time
}

func NewManager(o Options) (*Manager, error) {
	if o.Backend == nil || o.Rotator == nil || o.Sealer == nil {
		return nil, errors.New("session: backend, rotator and sealer are required")
	}
	if o.Lifetimes.Access <= 0 || o.Lifetimes.Refresh <= 0 {
		return nil, errors.New("session: lifetimes must be positive")
	}
	if o.Revocations == nil {
		o.Revocations = NewMemoryState()
	}
	if o.Cookie.Name == "" {
		o.Cookie.Name = "rbac_session"
	}
	if o.Cookie.Path == "" {
		o.Cookie.Path = "/"
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return &Manager{
		backend:     o.Backend,
		rotator:     o.Rotator,
		sealer:      o.Sealer,
		revocations: o.Revocations,
		lifetimes:   o.Lifetimes,
		margin:      o.Margin,
		cookie:      o.Cookie,
		clock:       o.Clock,
	}, nil
}

// Margin is the configured freshness margin for EnsureFreshWithin.
func (m *Manager) Margin() time.Duration { return m.margin }

// NewStore returns an empty store for a principal that is about to log in.
func (m *Manager) NewStore() *Store {
	return &Store{
		backend:   m.backend,
		rotator:   m.rotator,
		lifetimes: m.lifetimes,
		clock:     m.clock,
	}
}

// Load rebuilds a Store from a sealed session blob alone.
func (m *Manager) Load(ctx context.Context, raw string) (*Store, error) {
	if raw == "" {
		return nil, ErrNotAuthenticated
	}
	cred, err := m.sealer.Open(raw, m.clock())
	if err != nil {
		return nil, err
	}

	revoked, err := m.revocations.IsRevoked(ctx, cred.SessionID)
	if err != nil {
		// Revocation only guards replay after logout; an outage of the list does not lock everyone out.
		logger.From(ctx).Warn("revocation lookup failed", "err", err)
	} else if revoked {
		return nil, ErrRevoked
	}

	st := m.NewStore()
	if err := st.restore(cred); err != nil {
		return nil, err
	}
	return st, nil
}

// FromRequest loads the Store carried by the request's session cookie.
func (m *Manager) FromRequest(c *gin.Context) (*Store, error) {
	raw, err := c.Cookie(m.cookie.Name)
	if err != nil || raw == "" {
		return nil, ErrNotAuthenticated
	}
	return m.Load(c.Request.Context(), raw)
}

// Persist writes the store's credential back to the cookie, or clears the
// cookie when the store no longer holds a session.
func (m *Manager) Persist(c *gin.Context, st *Store) error {
	cred := st.Credential()
	if !cred.Present() {
		m.Clear(c)
		return nil
	}
	now := m.clock()
	raw, exp, err := m.sealer.Seal(cred, now)
	if err != nil {
		return fmt.Errorf("seal session: %w", err)
	}
	maxAge := int(exp.Sub(now) / time.Second)
	if maxAge <= 0 {
		maxAge = -1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookie.Name, raw, maxAge, m.cookie.Path, "", m.cookie.Secure, true)
	return nil
}

// Clear expires the session cookie on the client.
func (m *Manager) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookie.Name, "", -1, m.cookie.Path, "", m.cookie.Secure, true)
}

// Revoke logs the store out and blocks replay of its session id until the
// sealed blob would have expired anyway.
func (m *Manager) Revoke(ctx context.Context, st *Store) error {
	cred := st.Credential()
	st.Logout()
	if cred.SessionID == "" {
		return nil
	}
	until := cred.RefreshExpiresAt
	if cred.AccessExpiresAt.After(until) {
		until = cred.AccessExpiresAt
	}
	return m.revocations.Revoke(ctx, cred.SessionID, until)
}
