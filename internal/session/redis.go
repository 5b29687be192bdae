package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rbac-admin/internal/identity"
	"rbac-admin/pkg/logger"
	"rbac-admin/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisState shares the rotation ledger and the revocation list between replicas.
type RedisState struct {
	rdb    *redis.Client
	prefix string
	clock  func() time.Time
}

func NewRedisState(rdb *redis.Client) *RedisState {
	return &RedisState{rdb: rdb, prefix: "rbac:session:", clock: time.Now}
}

type redisOutcome struct {
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Failure      ErrorKind `json:"failure,omitempty"`
}

func (s *RedisState) rotationKey(key string) string { return s.prefix + "rotated:" + key }
func (s *RedisState) lockKey(key string) string     { return s.prefix + "rotating:" + key }
func (s *RedisState) revokedKey(sid string) string  { return s.prefix + "revoked:" + sid }

func (s *RedisState) Lookup(ctx context.Context, key string) (Outcome, bool, error) {
	raw, err := s.rdb.Get(ctx, s.rotationKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Outcome{}, false, nil
		}
		return Outcome{}, false, err
	}
	var o redisOutcome
	if err := json.Unmarshal(raw, &o); err != nil {
		return Outcome{}, false, fmt.Errorf("decode rotation entry: %w", err)
	}
	return Outcome{
		Pair:    identity.TokenPair{AccessToken: o.AccessToken, RefreshToken: o.RefreshToken},
		Failure: o.Failure,
	}, true, nil
}

func (s *RedisState) Claim(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	owner := uuid.NewString()
	lk := s.lockKey(key)
	ok, err := utils.TryLock(ctx, s.rdb, lk, owner, ttl)
	if err != nil || !ok {
		return func() {}, false, err
	}
	return func() {
		// Released after the caller's context may be gone.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := utils.Unlock(rctx, s.rdb, lk, owner); err != nil {
			logger.From(ctx).Warn("rotation lock release failed", "err", err)
		}
	}, true, nil
}

func (s *RedisState) Record(ctx context.Context, key string, o Outcome, ttl time.Duration) error {
	raw, err := json.Marshal(redisOutcome{
		AccessToken:  o.Pair.AccessToken,
		RefreshToken: o.Pair.RefreshToken,
		Failure:      o.Failure,
	})
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.rotationKey(key), raw, ttl).Err()
}

func (s *RedisState) Revoke(ctx context.Context, sessionID string, until time.Time) error {
	if sessionID == "" {
		return nil
	}
	ttl := until.Sub(s.clock())
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, s.revokedKey(sessionID), "1", ttl).Err()
}

func (s *RedisState) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.revokedKey(sessionID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
