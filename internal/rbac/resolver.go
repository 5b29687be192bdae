package rbac

import (
	"context"
	"errors"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Resolver computes the pages a user may reach from live directory data.
// Nothing is cached: every call reflects the latest roles and pages.
type Resolver struct {
	dir Directory
}

func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// AccessiblePages returns the user's pages ordered by Page.Order, ties kept in
// definition order. Unknown users get ErrUserNotFound and no pages; inactive
// users get no pages. Role and page ids that no longer resolve are skipped.
func (r *Resolver) AccessiblePages(ctx context.Context, userID string) ([]Page, error) {
	u, err := r.dir.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUserNotFound) {
			return []Page{}, ErrUserNotFound
		}
		return nil, err
	}
	if !u.Active {
		return []Page{}, nil
	}

	var (
		roles []Role
		pages []Page
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		roles, err = r.dir.ListRoles(gctx)
		return err
	})
	g.Go(func() (err error) {
		pages, err = r.dir.ListPages(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return grantedPages(u.RoleIDs, roles, pages), nil
}

// CanAccess reports whether path exactly equals one of the user's page paths.
// An unknown user simply has no access.
func (r *Resolver) CanAccess(ctx context.Context, userID, path string) (bool, error) {
	pages, err := r.AccessiblePages(ctx, userID)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return false, err
	}
	for _, p := range pages {
		if p.Path == path {
			return true, nil
		}
	}
	return false, nil
}

func grantedPages(roleIDs []string, roles []Role, pages []Page) []Page {
	byID := make(map[string]Role, len(roles))
	for _, role := range roles {
		byID[role.ID] = role
	}

	granted := make(map[string]struct{})
	for _, rid := range roleIDs {
		role, ok := byID[rid]
		if !ok {
			continue
		}
		for _, pid := range role.PageIDs {
			granted[pid] = struct{}{}
		}
	}

	out := make([]Page, 0, len(granted))
	for _, p := range pages {
		if _, ok := granted[p.ID]; ok {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}
