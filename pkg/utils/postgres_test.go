package utils

import (
	"errors"
	"testing"
	"time"
)

func TestPostgresPoolConfig_Defaults(t *testing.T) {
	got := PostgresPoolConfig{}.withDefaults()
	if got.MaxConns != 10 || got.IdleConns != 5 {
		t.Fatalf("unexpected default pool size %+v", got)
	}
	if got.PingTimeout != 3*time.Second {
		t.Fatalf("expected 3s ping timeout, got %s", got.PingTimeout)
	}

	got = PostgresPoolConfig{MaxConns: 3}.withDefaults()
	if got.IdleConns != 2 {
		t.Fatalf("expected 2 idle conns for a pool of 3, got %d", got.IdleConns)
	}
	got = PostgresPoolConfig{MaxConns: 1, IdleConns: 4}.withDefaults()
	if got.IdleConns != 1 {
		t.Fatalf("expected idle conns capped at max conns, got %d", got.IdleConns)
	}
}

type rowsAffected int64

func (r rowsAffected) LastInsertId() (int64, error) { return 0, nil }
func (r rowsAffected) RowsAffected() (int64, error) { return int64(r), nil }

func TestAffectedOne(t *testing.T) {
	missing := errors.New("missing")
	if err := AffectedOne(rowsAffected(0), missing); !errors.Is(err, missing) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if err := AffectedOne(rowsAffected(1), missing); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestNullString(t *testing.T) {
	if v := NullString("  "); v.Valid {
		t.Fatalf("expected blank string to be NULL")
	}
	if v := NullString(" icon "); !v.Valid || v.String != "icon" {
		t.Fatalf("expected trimmed valid string, got %+v", v)
	}
}
