package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Service is the administrative write path over the directory.
//
// Write-time invariants:
// - page paths start with "/" and are unique
// - role.PageIDs and user.RoleIDs reference records that exist at write time
// - a role still held by any user cannot be deleted
//
// Deleting a page does not rewrite roles; resolution drops dangling ids.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// --- pages ---

func (s *Service) ListPages(ctx context.Context) ([]Page, error) {
	return s.repo.ListPages(ctx)
}

func (s *Service) GetPage(ctx context.Context, id string) (Page, error) {
	return s.repo.GetPage(ctx, id)
}

func (s *Service) PageByPath(ctx context.Context, path string) (Page, error) {
	return s.repo.GetPageByPath(ctx, path)
}

func (s *Service) CreatePage(ctx context.Context, p Page) (Page, error) {
	p.ID = ""
	if err := s.checkPage(ctx, p); err != nil {
		return Page{}, err
	}
	return s.repo.CreatePage(ctx, p)
}

func (s *Service) UpdatePage(ctx context.Context, p Page) (Page, error) {
	if p.ID == "" {
		return Page{}, ErrInvalidArgument
	}
	if _, err := s.repo.GetPage(ctx, p.ID); err != nil {
		return Page{}, err
	}
	if err := s.checkPage(ctx, p); err != nil {
		return Page{}, err
	}
	return s.repo.UpdatePage(ctx, p)
}

func (s *Service) DeletePage(ctx context.Context, id string) error {
	return s.repo.DeletePage(ctx, id)
}

func (s *Service) checkPage(ctx context.Context, p Page) error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: page title is required", ErrInvalidArgument)
	}
	if !strings.HasPrefix(p.Path, "/") {
		return fmt.Errorf("%w: page path must start with /", ErrInvalidArgument)
	}
	existing, err := s.repo.GetPageByPath(ctx, p.Path)
	switch {
	case err == nil && existing.ID != p.ID:
		return fmt.Errorf("%w: path %s already used by page %s", ErrConflict, p.Path, existing.ID)
	case err != nil && !errors.Is(err, ErrNotFound):
		return err
	}
	return nil
}

// --- roles ---

func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

func (s *Service) GetRole(ctx context.Context, id string) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

func (s *Service) CreateRole(ctx context.Context, r Role) (Role, error) {
	r.ID = ""
	r.PageIDs = uniq(r.PageIDs)
	if err := s.checkRole(ctx, r); err != nil {
		return Role{}, err
	}
	return s.repo.CreateRole(ctx, r)
}

func (s *Service) UpdateRole(ctx context.Context, r Role) (Role, error) {
	if r.ID == "" {
		return Role{}, ErrInvalidArgument
	}
	if _, err := s.repo.GetRole(ctx, r.ID); err != nil {
		return Role{}, err
	}
	r.PageIDs = uniq(r.PageIDs)
	if err := s.checkRole(ctx, r); err != nil {
		return Role{}, err
	}
	return s.repo.UpdateRole(ctx, r)
}

func (s *Service) DeleteRole(ctx context.Context, id string) error {
	if _, err := s.repo.GetRole(ctx, id); err != nil {
		return err
	}
	n, err := s.repo.CountUsersWithRole(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %d user(s)", ErrRoleInUse, n)
	}
	return s.repo.DeleteRole(ctx, id)
}

func (s *Service) checkRole(ctx context.Context, r Role) error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: role name is required", ErrInvalidArgument)
	}
	pages, err := s.repo.ListPages(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(pages))
	for _, p := range pages {
		known[p.ID] = struct{}{}
	}
	for _, id := range r.PageIDs {
		if _, ok := known[id]; !ok {
			return fmt.Errorf("%w: unknown page %s", ErrInvalidArgument, id)
		}
	}
	return nil
}

// --- users ---

func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateUser keeps a caller-supplied id so directory records can mirror
// the identity backend's account ids.
func (s *Service) CreateUser(ctx context.Context, u User) (User, error) {
	u.RoleIDs = uniq(u.RoleIDs)
	if err := s.checkUser(ctx, u); err != nil {
		return User{}, err
	}
	return s.repo.CreateUser(ctx, u)
}

func (s *Service) UpdateUser(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		return User{}, ErrInvalidArgument
	}
	if _, err := s.repo.GetUser(ctx, u.ID); err != nil {
		return User{}, err
	}
	u.RoleIDs = uniq(u.RoleIDs)
	if err := s.checkUser(ctx, u); err != nil {
		return User{}, err
	}
	return s.repo.UpdateUser(ctx, u)
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.repo.DeleteUser(ctx, id)
}

func (s *Service) checkUser(ctx context.Context, u User) error {
	if strings.TrimSpace(u.Username) == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidArgument)
	}
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		known[r.ID] = struct{}{}
	}
	for _, id := range u.RoleIDs {
		if _, ok := known[id]; !ok {
			return fmt.Errorf("%w: unknown role %s", ErrInvalidArgument, id)
		}
	}
	return nil
}
