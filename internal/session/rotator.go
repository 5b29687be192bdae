package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"rbac-admin/internal/identity"
	"rbac-admin/pkg/logger"

	"golang.org/x/sync/singleflight"
)

// Refresher is the backend call a rotation performs.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (identity.TokenPair, error)
}

// Rotator exchanges refresh tokens for new pairs with at most one backend call
// in flight per refresh token. It is shared by every Store of the process.
type Rotator struct {
	backend   Refresher
	ledger    Ledger
	group     singleflight.Group
	timeout   time.Duration
	grace     time.Duration
	failTTL   time.Duration
	pollEvery time.Duration
}

func NewRotator(backend Refresher, ledger Ledger, timeout, grace time.Duration) *Rotator {
	if ledger == nil {
		ledger = NewMemoryState()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if grace <= 0 {
		grace = 30 * time.Second
	}
	// Failures are kept only long enough to answer replicas already waiting.
	failTTL := 5 * time.Second
	if grace < failTTL {
		failTTL = grace
	}
	return &Rotator{
		backend:   backend,
		ledger:    ledger,
		timeout:   timeout,
		grace:     grace,
		failTTL:   failTTL,
		pollEvery: 50 * time.Millisecond,
	}
}

// Rotate returns the pair that replaces refreshToken. Concurrent callers with
// the same token share one outcome. Errors match ErrRefreshFailed or ErrRefreshError.
func (r *Rotator) Rotate(ctx context.Context, refreshToken string) (identity.TokenPair, error) {
	key := digest(refreshToken)

	// The flight is detached from the first caller so one caller leaving does
	// not fail everyone who joined; the timeout still bounds it.
	ch := r.group.DoChan(key, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return r.rotate(rctx, key, refreshToken)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return identity.TokenPair{}, res.Err
		}
		return res.Val.(identity.TokenPair), nil
	case <-ctx.Done():
		return identity.TokenPair{}, fmt.Errorf("%w: %w", ErrRefreshError, ctx.Err())
	}
}

func (r *Rotator) rotate(ctx context.Context, key, refreshToken string) (identity.TokenPair, error) {
	log := logger.From(ctx)

	if o, ok, err := r.ledger.Lookup(ctx, key); err != nil {
		log.Warn("rotation ledger lookup failed", "err", err)
	} else if ok {
		log.Debug("rotation answered from ledger", "failure", o.Failure)
		return o.result()
	}

	release, claimed, err := r.ledger.Claim(ctx, key, r.timeout+time.Second)
	if err != nil {
		// Without the ledger we still rotate; only cross-replica dedup is lost.
		log.Warn("rotation claim failed", "err", err)
		claimed = true
	}
	if !claimed {
		return r.await(ctx, key)
	}
	defer release()

	pair, err := r.backend.Refresh(ctx, refreshToken)
	if err != nil {
		err = classifyRefresh(err)
		r.record(ctx, key, failed(err), r.failTTL)
		return identity.TokenPair{}, err
	}
	r.record(ctx, key, succeeded(pair), r.grace)
	return pair, nil
}

func (r *Rotator) record(ctx context.Context, key string, o Outcome, ttl time.Duration) {
	// The flight's own deadline may already have passed.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := r.ledger.Record(rctx, key, o, ttl); err != nil {
		logger.From(ctx).Warn("rotation ledger record failed", "err", err)
	}
}

// await polls the ledger while another replica holds the claim.
func (r *Rotator) await(ctx context.Context, key string) (identity.TokenPair, error) {
	t := time.NewTicker(r.pollEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return identity.TokenPair{}, fmt.Errorf("%w: waiting for concurrent rotation: %w", ErrRefreshError, ctx.Err())
		case <-t.C:
			o, ok, err := r.ledger.Lookup(ctx, key)
			if err != nil {
				return identity.TokenPair{}, fmt.Errorf("%w: %w", ErrRefreshError, err)
			}
			if ok {
				return o.result()
			}
		}
	}
}

func classifyRefresh(err error) error {
	if errors.Is(err, identity.ErrRejected) {
		return fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	return fmt.Errorf("%w: %w", ErrRefreshError, err)
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
