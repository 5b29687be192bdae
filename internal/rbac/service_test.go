package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func seededService(t *testing.T) (*Service, *MemoryRepo) {
	t.Helper()
	repo := NewMemoryRepo()
	require.NoError(t, Seed(context.Background(), repo, "1"))
	return NewService(repo), repo
}

func roleByName(t *testing.T, s *Service, name string) Role {
	t.Helper()
	roles, err := s.ListRoles(context.Background())
	require.NoError(t, err)
	for _, r := range roles {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("role %q not seeded", name)
	return Role{}
}

func TestSeed_CatalogAndAdministrator(t *testing.T) {
	s, repo := seededService(t)
	ctx := context.Background()

	pages, err := s.ListPages(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 16)
	for i, p := range pages {
		require.Equal(t, i+1, p.Order)
	}

	admin := roleByName(t, s, AdministratorRole)
	require.Len(t, admin.PageIDs, 16)

	all, err := NewResolver(repo).AccessiblePages(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, "/dashboard", all[0].Path)
	require.Equal(t, "/reports/audit-log", all[15].Path)

	// seeding twice is a no-op
	require.NoError(t, Seed(ctx, repo, "1"))
	pages, err = s.ListPages(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 16)
}

func TestCreatePage_Validation(t *testing.T) {
	s, _ := seededService(t)
	ctx := context.Background()

	_, err := s.CreatePage(ctx, Page{Title: "No slash", Path: "reports/x"})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = s.CreatePage(ctx, Page{Path: "/untitled"})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = s.CreatePage(ctx, Page{Title: "Dup", Path: "/dashboard"})
	require.ErrorIs(t, err, ErrConflict)

	p, err := s.CreatePage(ctx, Page{Title: "Inventory", Path: "/reports/inventory", Order: 20})
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)
}

func TestUpdatePage_KeepsOwnPath(t *testing.T) {
	s, _ := seededService(t)
	ctx := context.Background()

	p, err := s.GetPage(ctx, "1")
	require.NoError(t, err)
	p.Title = "Home"
	_, err = s.UpdatePage(ctx, p)
	require.NoError(t, err)

	p.Path = "/profile"
	_, err = s.UpdatePage(ctx, p)
	require.ErrorIs(t, err, ErrConflict)

	_, err = s.UpdatePage(ctx, Page{ID: "999", Title: "x", Path: "/x"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRole_RejectsUnknownPages(t *testing.T) {
	s, _ := seededService(t)
	ctx := context.Background()

	_, err := s.CreateRole(ctx, Role{Name: "Broken", PageIDs: []string{"1", "nope"}})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = s.CreateRole(ctx, Role{PageIDs: []string{"1"}})
	require.ErrorIs(t, err, ErrInvalidArgument)

	r, err := s.CreateRole(ctx, Role{Name: "Reports", PageIDs: []string{"7", "7", "8"}})
	require.NoError(t, err)
	require.Equal(t, []string{"7", "8"}, r.PageIDs)
}

func TestDeleteRole_RefusedWhileAssigned(t *testing.T) {
	s, _ := seededService(t)
	ctx := context.Background()

	admin := roleByName(t, s, AdministratorRole)
	require.ErrorIs(t, s.DeleteRole(ctx, admin.ID), ErrRoleInUse)

	viewer := roleByName(t, s, ViewerRole)
	require.NoError(t, s.DeleteRole(ctx, viewer.ID))
	require.ErrorIs(t, s.DeleteRole(ctx, viewer.ID), ErrNotFound)
}

func TestUsers_ValidationAndUniqueness(t *testing.T) {
	s, _ := seededService(t)
	ctx := context.Background()
	viewer := roleByName(t, s, ViewerRole)

	_, err := s.CreateUser(ctx, User{Username: "bob", RoleIDs: []string{"missing"}})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = s.CreateUser(ctx, User{Username: "admin"})
	require.ErrorIs(t, err, ErrConflict)

	u, err := s.CreateUser(ctx, User{Username: "bob", Active: true, RoleIDs: []string{viewer.ID}})
	require.NoError(t, err)

	u.Active = false
	updated, err := s.UpdateUser(ctx, u)
	require.NoError(t, err)
	require.False(t, updated.Active)

	_, err = s.UpdateUser(ctx, User{ID: "nope", Username: "x"})
	require.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, s.DeleteUser(ctx, u.ID))
	_, err = s.GetUser(ctx, u.ID)
	require.ErrorIs(t, err, ErrUserNotFound)
}
