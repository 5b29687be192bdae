package session

import (
	"context"
	"testing"
	"time"

	"rbac-admin/internal/identity"

	"github.com/stretchr/testify/require"
)

func TestMemoryState_ClaimIsExclusiveUntilReleased(t *testing.T) {
	m := NewMemoryState()
	ctx := context.Background()

	release, ok, err := m.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = m.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	release()
	_, ok, _ = m.Claim(ctx, "k", time.Minute)
	require.True(t, ok)
}

func TestMemoryState_RecordExpires(t *testing.T) {
	clock := newFakeClock()
	m := NewMemoryState()
	m.clock = clock.Now
	ctx := context.Background()

	pair := identity.TokenPair{AccessToken: "a", RefreshToken: "r"}
	require.NoError(t, m.Record(ctx, "k", Outcome{Pair: pair}, 30*time.Second))

	got, ok, err := m.Lookup(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, pair, got.Pair)
	require.Empty(t, got.Failure)

	clock.Advance(31 * time.Second)
	_, ok, _ = m.Lookup(ctx, "k")
	require.False(t, ok)
}

func TestMemoryState_Revocations(t *testing.T) {
	clock := newFakeClock()
	m := NewMemoryState()
	m.clock = clock.Now
	ctx := context.Background()

	require.NoError(t, m.Revoke(ctx, "sid", clock.Now().Add(time.Hour)))
	revoked, err := m.IsRevoked(ctx, "sid")
	require.NoError(t, err)
	require.True(t, revoked)

	clock.Advance(2 * time.Hour)
	revoked, _ = m.IsRevoked(ctx, "sid")
	require.False(t, revoked)

	require.NoError(t, m.Revoke(ctx, "", clock.Now().Add(time.Hour)))
}

func TestRotator_WaitsForForeignClaim(t *testing.T) {
	clock := newFakeClock()
	state := NewMemoryState()
	state.clock = clock.Now
	backend := &fakeBackend{}
	r := NewRotator(backend, state, time.Second, time.Minute)
	r.pollEvery = 5 * time.Millisecond

	// Another replica is rotating this token.
	key := digest("refresh-1")
	_, ok, _ := state.Claim(context.Background(), key, time.Minute)
	require.True(t, ok)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = state.Record(context.Background(), key, Outcome{Pair: identity.TokenPair{AccessToken: "a2", RefreshToken: "r2"}}, time.Minute)
	}()

	pair, err := r.Rotate(context.Background(), "refresh-1")
	require.NoError(t, err)
	require.Equal(t, "r2", pair.RefreshToken)
	require.Zero(t, backend.refreshCalls.Load())
}

func TestRotator_ForeignClaimTimesOut(t *testing.T) {
	state := NewMemoryState()
	r := NewRotator(&fakeBackend{}, state, 30*time.Millisecond, time.Minute)
	r.pollEvery = 5 * time.Millisecond

	_, ok, _ := state.Claim(context.Background(), digest("r"), time.Minute)
	require.True(t, ok)

	_, err := r.Rotate(context.Background(), "r")
	require.ErrorIs(t, err, ErrRefreshError)
}

func TestRotator_ForeignRejectionIsReportedWithoutWaitingOut(t *testing.T) {
	state := NewMemoryState()
	backend := &fakeBackend{}
	r := NewRotator(backend, state, 5*time.Second, time.Minute)
	r.pollEvery = 5 * time.Millisecond

	key := digest("refresh-1")
	_, ok, _ := state.Claim(context.Background(), key, time.Minute)
	require.True(t, ok)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = state.Record(context.Background(), key, Outcome{Failure: KindRefreshFailed}, time.Second)
	}()

	start := time.Now()
	_, err := r.Rotate(context.Background(), "refresh-1")
	require.ErrorIs(t, err, ErrRefreshFailed)
	require.Less(t, time.Since(start), time.Second)
	require.Zero(t, backend.refreshCalls.Load())
}

func TestRotator_RecordsRejectionForOtherReplicas(t *testing.T) {
	state := NewMemoryState()
	backend := &fakeBackend{refreshErr: statusErr(401, identity.ErrRejected)}
	r := NewRotator(backend, state, time.Second, time.Minute)

	_, err := r.Rotate(context.Background(), "refresh-1")
	require.ErrorIs(t, err, ErrRefreshFailed)

	o, ok, err := state.Lookup(context.Background(), digest("refresh-1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, KindRefreshFailed, o.Failure)

	// A second replica holding the same spent token is answered from the ledger.
	other := NewRotator(backend, state, time.Second, time.Minute)
	_, err = other.Rotate(context.Background(), "refresh-1")
	require.ErrorIs(t, err, ErrRefreshFailed)
	require.Equal(t, int32(1), backend.refreshCalls.Load())
}
