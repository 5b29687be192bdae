package audit

import (
	"context"
	"errors"
	"time"

	"rbac-admin/pkg/logger"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It is append-only; there is no Update or Delete.
type Repository interface {
	Append(ctx context.Context, e Event) error
	Recent(ctx context.Context, limit int) ([]Event, error)
	Between(ctx context.Context, from, to time.Time) ([]Event, error)
}

// Service records security-relevant events. Callers treat it as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

const maxRecent = 500

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Record appends e and logs instead of returning a failure.
func (s *Service) Record(ctx context.Context, e Event) {
	if s == nil {
		return
	}
	if err := s.Append(ctx, e); err != nil {
		logger.From(ctx).Warn("audit append failed", "type", string(e.Type), "err", err)
	}
}

// Recent lists the newest events first. limit is clamped to [1, 500].
func (s *Service) Recent(ctx context.Context, limit int) ([]Event, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	if limit <= 0 || limit > maxRecent {
		limit = maxRecent
	}
	return s.repo.Recent(ctx, limit)
}

func (s *Service) LoginSucceeded(ctx context.Context, userID, username, ip string) {
	s.Record(ctx, Event{Type: EventLoginSucceeded, ActorUserID: userID, Username: username, IPAddress: ip})
}

// LoginFailed stores the failure kind, never the password.
func (s *Service) LoginFailed(ctx context.Context, username, ip, kind string) {
	s.Record(ctx, Event{
		Type:      EventLoginFailed,
		Username:  username,
		IPAddress: ip,
		Metadata:  map[string]string{"kind": kind},
	})
}

func (s *Service) Logout(ctx context.Context, userID, ip string) {
	s.Record(ctx, Event{Type: EventLogout, ActorUserID: userID, IPAddress: ip})
}

func (s *Service) SessionExpired(ctx context.Context, sessionID, ip, path, kind string) {
	s.Record(ctx, Event{
		Type:      EventSessionExpired,
		IPAddress: ip,
		Path:      path,
		Metadata:  map[string]string{"session_id": sessionID, "kind": kind},
	})
}

func (s *Service) AccessDenied(ctx context.Context, userID, ip, path string) {
	s.Record(ctx, Event{Type: EventAccessDenied, ActorUserID: userID, IPAddress: ip, Path: path})
}

// AdminChange records a directory mutation, e.g. ("delete", "role", "3").
func (s *Service) AdminChange(ctx context.Context, actorUserID, ip, action, entity, entityID string) {
	s.Record(ctx, Event{
		Type:        EventAdminChange,
		ActorUserID: actorUserID,
		IPAddress:   ip,
		Message:     action + " " + entity,
		Metadata:    map[string]string{"action": action, "entity": entity, "entity_id": entityID},
	})
}
