package session

import (
	"context"
	"fmt"
	"time"

	"rbac-admin/internal/identity"
)

// Ledger records recent rotation outcomes keyed by a digest of the refresh
// token that was spent, and arbitrates which caller performs a rotation.
// A caller still holding a spent refresh token is answered from the ledger
// instead of replaying the token against the backend.
type Ledger interface {
	Lookup(ctx context.Context, key string) (Outcome, bool, error)
	// Claim grants exclusive right to rotate key for at most ttl. ok is false
	// while another holder owns the claim.
	Claim(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
	Record(ctx context.Context, key string, o Outcome, ttl time.Duration) error
}

// Outcome is a recorded rotation. Failure is empty when Pair holds the
// replacement tokens and otherwise names the kind every holder of the spent
// token is told.
type Outcome struct {
	Pair    identity.TokenPair
	Failure ErrorKind
}

func succeeded(pair identity.TokenPair) Outcome { return Outcome{Pair: pair} }

func failed(err error) Outcome {
	kind := KindOf(err)
	if kind != KindRefreshFailed {
		kind = KindRefreshError
	}
	return Outcome{Failure: kind}
}

func (o Outcome) result() (identity.TokenPair, error) {
	switch o.Failure {
	case "":
		return o.Pair, nil
	case KindRefreshFailed:
		return identity.TokenPair{}, fmt.Errorf("%w: concurrent rotation was rejected", ErrRefreshFailed)
	default:
		return identity.TokenPair{}, fmt.Errorf("%w: concurrent rotation failed", ErrRefreshError)
	}
}

// Revocations lists session ids that must no longer be honoured.
type Revocations interface {
	Revoke(ctx context.Context, sessionID string, until time.Time) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}
