package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"rbac-admin/pkg/utils"
)

// PostgresRepo appends to audit_events. It never issues UPDATE or DELETE.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	var meta []byte
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
		meta = b
	}
	const q = `
INSERT INTO audit_events (id, type, actor_user_id, username, ip_address, path, message, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		string(e.Type),
		utils.NullString(e.ActorUserID),
		utils.NullString(e.Username),
		utils.NullString(e.IPAddress),
		utils.NullString(e.Path),
		utils.NullString(e.Message),
		meta,
		e.CreatedAt,
	)
	return err
}

const eventColumns = `
id, type, COALESCE(actor_user_id, ''), COALESCE(username, ''), COALESCE(ip_address, ''),
COALESCE(path, ''), COALESCE(message, ''), metadata, created_at`

func (r *PostgresRepo) Recent(ctx context.Context, limit int) ([]Event, error) {
	return r.query(ctx, `SELECT `+eventColumns+` FROM audit_events ORDER BY created_at DESC LIMIT $1`, limit)
}

// Between returns events with from <= created_at < to, oldest first.
func (r *PostgresRepo) Between(ctx context.Context, from, to time.Time) ([]Event, error) {
	const q = `SELECT ` + eventColumns + `
FROM audit_events
WHERE created_at >= $1 AND created_at < $2
ORDER BY created_at`
	return r.query(ctx, q, from, to)
}

func (r *PostgresRepo) query(ctx context.Context, q string, args ...any) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var (
			e    Event
			typ  string
			meta []byte
		)
		if err := rows.Scan(&e.ID, &typ, &e.ActorUserID, &e.Username, &e.IPAddress, &e.Path, &e.Message, &meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = EventType(typ)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
