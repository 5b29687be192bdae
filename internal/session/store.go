package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"rbac-admin/internal/auth"
	"rbac-admin/internal/identity"
	"rbac-admin/pkg/logger"

	"github.com/google/uuid"
)

// Authenticator is the backend call a login performs.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (identity.TokenPair, error)
}

// Store owns the Credential and derived Identity of one principal.
// It is built per request by Manager and is safe for concurrent use.
type Store struct {
	backend   Authenticator
	rotator   *Rotator
	lifetimes Lifetimes
	clock     func() time.Time

	mu      sync.Mutex
	cred    Credential
	ident   *auth.Identity
	lastErr error
	changed bool
}

// Login authenticates against the backend and replaces any previous session.
// On failure nothing is retained.
func (s *Store) Login(ctx context.Context, username, password string) (Credential, error) {
	pair, err := s.backend.Login(ctx, username, password)
	if err != nil {
		s.reset()
		switch {
		case errors.Is(err, identity.ErrRejected):
			return Credential{}, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		default:
			return Credential{}, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
		}
	}

	ident, err := auth.DecodeIdentity(pair.AccessToken)
	if err != nil {
		s.reset()
		return Credential{}, err
	}

	now := s.clock()
	cred := Credential{
		SessionID:        uuid.NewString(),
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  stamp(now, s.lifetimes.Access),
		RefreshExpiresAt: stamp(now, s.lifetimes.Refresh),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = cred
	s.ident = &ident
	s.lastErr = nil
	s.changed = true
	return cred, nil
}

// restore adopts a credential read back from the persisted session.
func (s *Store) restore(c Credential) error {
	ident, err := auth.DecodeIdentity(c.AccessToken)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = c
	s.ident = &ident
	s.lastErr = nil
	s.changed = false
	return nil
}

// CurrentIdentity never performs I/O.
func (s *Store) CurrentIdentity() (auth.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ident == nil || !s.cred.Present() {
		return auth.Identity{}, false
	}
	return *s.ident, true
}

// Credential returns a snapshot of the current credential.
func (s *Store) Credential() Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred
}

// Changed reports whether the credential differs from what was restored, so
// the persisted session must be rewritten.
func (s *Store) Changed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// EnsureFresh is EnsureFreshWithin with no margin.
func (s *Store) EnsureFresh(ctx context.Context) (Credential, error) {
	return s.EnsureFreshWithin(ctx, 0)
}

// EnsureFreshWithin returns the credential unchanged while now+margin is
// before the access expiry. Otherwise it makes exactly one rotation attempt;
// a failed attempt clears the tokens and records the failure kind.
func (s *Store) EnsureFreshWithin(ctx context.Context, margin time.Duration) (Credential, error) {
	s.mu.Lock()
	cur := s.cred
	if !cur.Present() {
		err := s.lastErr
		s.mu.Unlock()
		if err == nil {
			err = ErrNotAuthenticated
		}
		return Credential{}, err
	}
	if cur.AccessValid(s.clock(), margin) {
		s.mu.Unlock()
		return cur, nil
	}
	if cur.RefreshToken == "" {
		defer s.mu.Unlock()
		return Credential{}, s.failLocked(ctx, ErrNoRefreshToken)
	}
	s.mu.Unlock()

	pair, rotErr := s.rotator.Rotate(ctx, cur.RefreshToken)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller on this store already applied the outcome of the same rotation.
	if s.cred.AccessToken != cur.AccessToken || s.cred.RefreshToken != cur.RefreshToken {
		if s.cred.Present() {
			return s.cred, nil
		}
		if s.lastErr != nil {
			return Credential{}, s.lastErr
		}
		return Credential{}, ErrNotAuthenticated
	}

	if rotErr != nil {
		return Credential{}, s.failLocked(ctx, rotErr)
	}

	ident, err := auth.DecodeIdentity(pair.AccessToken)
	if err != nil {
		return Credential{}, s.failLocked(ctx, fmt.Errorf("%w: %w", ErrRefreshExhausted, err))
	}

	refresh := pair.RefreshToken
	if refresh == "" {
		refresh = cur.RefreshToken
	}
	now := s.clock()
	s.cred = Credential{
		SessionID:        cur.SessionID,
		AccessToken:      pair.AccessToken,
		RefreshToken:     refresh,
		AccessExpiresAt:  stamp(now, s.lifetimes.Access),
		RefreshExpiresAt: stamp(now, s.lifetimes.Refresh),
	}
	s.ident = &ident
	s.lastErr = nil
	s.changed = true
	logger.From(ctx).Debug("session rotated", "session_id", cur.SessionID, "user_id", ident.UserID)
	return s.cred, nil
}

// failLocked clears the tokens and keeps only the session id and failure kind.
func (s *Store) failLocked(ctx context.Context, err error) error {
	kind := KindOf(err)
	logger.From(ctx).Info("session rotation failed", "session_id", s.cred.SessionID, "kind", string(kind), "err", err)
	s.cred = Credential{SessionID: s.cred.SessionID, LastError: kind}
	s.ident = nil
	s.lastErr = err
	s.changed = true
	return err
}

// Logout discards the credential. Calling it again has no further effect.
func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cred.Present() && s.cred.SessionID == "" && s.ident == nil {
		return
	}
	s.cred = Credential{}
	s.ident = nil
	s.lastErr = nil
	s.changed = true
}

func (s *Store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred.Present() || s.cred.SessionID != "" {
		s.changed = true
	}
	s.cred = Credential{}
	s.ident = nil
	s.lastErr = nil
}
