package audit

import "time"

// Event is an immutable, append-only audit record.
//
// Invariants:
// - events are never updated or deleted
// - actor and ip capture are best-effort; audit failures never block a request
//
// Postgres storage: table audit_events (migrations/0001_init.sql).
type Event struct {
	ID   string    `json:"id"`
	Type EventType `json:"type"`

	// ActorUserID is the principal the event is about, when known.
	ActorUserID string `json:"actorUserId,omitempty"`
	// Username is what was typed on a login attempt, or the resolved username.
	Username string `json:"username,omitempty"`

	IPAddress string `json:"ipAddress,omitempty"`
	// Path is the page or route involved (access_denied, login callback).
	Path string `json:"path,omitempty"`

	Message  string            `json:"message,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

type EventType string

const (
	EventLoginSucceeded EventType = "login_succeeded"
	EventLoginFailed    EventType = "login_failed"
	EventLogout         EventType = "logout"
	EventSessionExpired EventType = "session_expired"
	EventAccessDenied   EventType = "access_denied"
	EventAdminChange    EventType = "admin_change"
)
