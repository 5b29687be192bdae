package utils

import (
	"context"
	"testing"
	"time"
)

func TestUnlockScriptInitialized(t *testing.T) {
	if unlockScript == nil || unlockScript.Hash() == "" {
		t.Fatalf("expected unlock script to be initialized")
	}
}

func TestTryLock_ValidatesArguments(t *testing.T) {
	ctx := context.Background()
	if _, err := TryLock(ctx, nil, "k", "o", time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if err := Unlock(ctx, nil, "k", "o"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestRedisConfig_Defaults(t *testing.T) {
	got := RedisConfig{Addr: "localhost:6379"}.withDefaults()
	if got.PoolSize != 20 || got.PingTimeout != 2*time.Second {
		t.Fatalf("unexpected defaults: %+v", got)
	}
}
