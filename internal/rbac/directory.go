package rbac

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
	ErrRoleInUse       = errors.New("role is assigned to users")
)

// Directory is the read side consulted by access resolution.
// List calls return snapshots; pages come back in definition order.
type Directory interface {
	GetUser(ctx context.Context, id string) (User, error)
	ListRoles(ctx context.Context) ([]Role, error)
	ListPages(ctx context.Context) ([]Page, error)
}

// Repository is the full persistence contract behind the admin service.
type Repository interface {
	Directory

	ListUsers(ctx context.Context) ([]User, error)
	CreateUser(ctx context.Context, u User) (User, error)
	UpdateUser(ctx context.Context, u User) (User, error)
	DeleteUser(ctx context.Context, id string) error

	GetRole(ctx context.Context, id string) (Role, error)
	CreateRole(ctx context.Context, r Role) (Role, error)
	UpdateRole(ctx context.Context, r Role) (Role, error)
	DeleteRole(ctx context.Context, id string) error
	CountUsersWithRole(ctx context.Context, roleID string) (int, error)

	GetPage(ctx context.Context, id string) (Page, error)
	GetPageByPath(ctx context.Context, path string) (Page, error)
	CreatePage(ctx context.Context, p Page) (Page, error)
	UpdatePage(ctx context.Context, p Page) (Page, error)
	DeletePage(ctx context.Context, id string) error
}
