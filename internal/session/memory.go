package session

import (
	"context"
	"sync"
	"time"
)

// MemoryState is the single-process Ledger and Revocations implementation.
type MemoryState struct {
	mu      sync.Mutex
	clock   func() time.Time
	rotated map[string]memoryEntry
	claims  map[string]time.Time
	revoked map[string]time.Time
}

type memoryEntry struct {
	outcome Outcome
	expires time.Time
}

func NewMemoryState() *MemoryState {
	return &MemoryState{
		clock:   time.Now,
		rotated: make(map[string]memoryEntry),
		claims:  make(map[string]time.Time),
		revoked: make(map[string]time.Time),
	}
}

func (m *MemoryState) Lookup(_ context.Context, key string) (Outcome, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.rotated[key]
	if !ok {
		return Outcome{}, false, nil
	}
	if !m.clock().Before(e.expires) {
		delete(m.rotated, key)
		return Outcome{}, false, nil
	}
	return e.outcome, true, nil
}

func (m *MemoryState) Claim(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	if until, held := m.claims[key]; held && now.Before(until) {
		return func() {}, false, nil
	}
	until := now.Add(ttl)
	m.claims[key] = until
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.claims[key].Equal(until) {
			delete(m.claims, key)
		}
	}, true, nil
}

func (m *MemoryState) Record(_ context.Context, key string, o Outcome, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	m.rotated[key] = memoryEntry{outcome: o, expires: now.Add(ttl)}
	for k, e := range m.rotated {
		if !now.Before(e.expires) {
			delete(m.rotated, k)
		}
	}
	return nil
}

func (m *MemoryState) Revoke(_ context.Context, sessionID string, until time.Time) error {
	if sessionID == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	if until.After(now) {
		m.revoked[sessionID] = until
	}
	for id, u := range m.revoked {
		if !now.Before(u) {
			delete(m.revoked, id)
		}
	}
	return nil
}

func (m *MemoryState) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	until, ok := m.revoked[sessionID]
	return ok && m.clock().Before(until), nil
}
