package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rbac-admin/internal/identity"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// accessToken builds a backend-shaped access token for user with roles.
func accessToken(t *testing.T, user string, roles ...int) string {
	t.Helper()
	rs := make([]any, 0, len(roles))
	for _, r := range roles {
		rs = append(rs, r)
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"account": map[string]any{"id": user, "username": "user-" + user, "roles": rs},
		"nonce":   time.Now().UnixNano(),
	}).SignedString([]byte("backend-key"))
	require.NoError(t, err)
	return tok
}

type fakeBackend struct {
	mu           sync.Mutex
	loginPair    identity.TokenPair
	loginErr     error
	refreshPair  identity.TokenPair
	refreshErr   error
	gate         chan struct{}
	loginCalls   atomic.Int32
	refreshCalls atomic.Int32
}

func (f *fakeBackend) Login(ctx context.Context, username, password string) (identity.TokenPair, error) {
	f.loginCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginPair, f.loginErr
}

func (f *fakeBackend) Refresh(ctx context.Context, refreshToken string) (identity.TokenPair, error) {
	f.refreshCalls.Add(1)
	f.mu.Lock()
	gate := f.gate
	pair, err := f.refreshPair, f.refreshErr
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return identity.TokenPair{}, ctx.Err()
		}
	}
	return pair, err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	backend *fakeBackend
	clock   *fakeClock
	state   *MemoryState
	rotator *Rotator
	manager *Manager
}

func newFixture(t *testing.T, rotationTimeout time.Duration) *fixture {
	t.Helper()
	f := &fixture{backend: &fakeBackend{}, clock: newFakeClock(), state: NewMemoryState()}
	f.state.clock = f.clock.Now
	f.rotator = NewRotator(f.backend, f.state, rotationTimeout, 30*time.Second)
	f.rotator.pollEvery = 5 * time.Millisecond

	sealer, err := NewSealer("cookie-secret", "rbac-admin")
	require.NoError(t, err)

	f.manager, err = NewManager(Options{
		Backend:     f.backend,
		Rotator:     f.rotator,
		Sealer:      sealer,
		Revocations: f.state,
		Lifetimes:   Lifetimes{Access: time.Hour, Refresh: 7 * 24 * time.Hour},
		Clock:       f.clock.Now,
	})
	require.NoError(t, err)
	return f
}

// loggedIn returns a store holding a fresh session for user 1.
func (f *fixture) loggedIn(t *testing.T) *Store {
	t.Helper()
	f.backend.loginPair = identity.TokenPair{AccessToken: accessToken(t, "1", 1), RefreshToken: "refresh-1"}
	st := f.manager.NewStore()
	_, err := st.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	return st
}
