package reporting

import (
	"context"
	"errors"
	"sort"
	"time"

	"rbac-admin/internal/audit"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository reads the immutable audit trail.
type Repository interface {
	Between(ctx context.Context, from, to time.Time) ([]audit.Event, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

// LoginSummary aggregates authentication events for the login-log report.
func (s *Service) LoginSummary(ctx context.Context, req LoginSummaryRequest) (LoginSummary, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return LoginSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return LoginSummary{}, errors.New("reporting: repository not configured")
	}
	top := req.Top
	if top <= 0 {
		top = 10
	}

	events, err := s.repo.Between(ctx, req.Range.From, req.Range.To)
	if err != nil {
		return LoginSummary{}, err
	}

	out := LoginSummary{
		Range:         req.Range,
		FailedByKind:  map[string]int{},
		ExpiredByKind: map[string]int{},
	}
	users := map[string]struct{}{}
	failedBy := map[string]int{}

	for _, e := range events {
		switch e.Type {
		case audit.EventLoginSucceeded:
			out.Succeeded++
			if e.ActorUserID != "" {
				users[e.ActorUserID] = struct{}{}
			}
		case audit.EventLoginFailed:
			out.Failed++
			out.FailedByKind[kindOf(e)]++
			if e.Username != "" {
				failedBy[e.Username]++
			}
		case audit.EventLogout:
			out.Logouts++
		case audit.EventSessionExpired:
			out.SessionsExpired++
			out.ExpiredByKind[kindOf(e)]++
		case audit.EventAccessDenied:
			out.AccessDenied++
		}
	}
	out.DistinctUsers = len(users)

	out.TopFailedUsernames = make([]UsernameCount, 0, len(failedBy))
	for name, n := range failedBy {
		out.TopFailedUsernames = append(out.TopFailedUsernames, UsernameCount{Username: name, Count: n})
	}
	sort.Slice(out.TopFailedUsernames, func(i, j int) bool {
		a, b := out.TopFailedUsernames[i], out.TopFailedUsernames[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Username < b.Username
	})
	if len(out.TopFailedUsernames) > top {
		out.TopFailedUsernames = out.TopFailedUsernames[:top]
	}
	return out, nil
}

func kindOf(e audit.Event) string {
	if k := e.Metadata["kind"]; k != "" {
		return k
	}
	return "unknown"
}
