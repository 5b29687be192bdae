package rbac

import (
	"context"
	"strconv"
	"sync"
)

// MemoryRepo keeps the directory in process memory. Records keep their
// insertion order; ids are assigned sequentially.
type MemoryRepo struct {
	mu     sync.RWMutex
	nextID int
	users  []User
	roles  []Role
	pages  []Page
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{nextID: 1} }

func (r *MemoryRepo) assignID(id string) string {
	if id != "" {
		if n, err := strconv.Atoi(id); err == nil && n >= r.nextID {
			r.nextID = n + 1
		}
		return id
	}
	id = strconv.Itoa(r.nextID)
	r.nextID++
	return id
}

func cloneUser(u User) User {
	u.RoleIDs = append([]string(nil), u.RoleIDs...)
	return u
}

func cloneRole(ro Role) Role {
	ro.PageIDs = append([]string(nil), ro.PageIDs...)
	return ro
}

// --- users ---

func (r *MemoryRepo) GetUser(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.ID == id {
			return cloneUser(u), nil
		}
	}
	return User{}, ErrUserNotFound
}

func (r *MemoryRepo) ListUsers(_ context.Context) ([]User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, cloneUser(u))
	}
	return out, nil
}

func (r *MemoryRepo) CreateUser(_ context.Context, u User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username || (u.ID != "" && existing.ID == u.ID) {
			return User{}, ErrConflict
		}
	}
	u.ID = r.assignID(u.ID)
	u = cloneUser(u)
	r.users = append(r.users, u)
	return cloneUser(u), nil
}

func (r *MemoryRepo) UpdateUser(_ context.Context, u User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := -1
	for i, existing := range r.users {
		if existing.ID == u.ID {
			idx = i
		} else if existing.Username == u.Username {
			return User{}, ErrConflict
		}
	}
	if idx < 0 {
		return User{}, ErrUserNotFound
	}
	r.users[idx] = cloneUser(u)
	return cloneUser(u), nil
}

func (r *MemoryRepo) DeleteUser(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, u := range r.users {
		if u.ID == id {
			r.users = append(r.users[:i], r.users[i+1:]...)
			return nil
		}
	}
	return ErrUserNotFound
}

// --- roles ---

func (r *MemoryRepo) GetRole(_ context.Context, id string) (Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ro := range r.roles {
		if ro.ID == id {
			return cloneRole(ro), nil
		}
	}
	return Role{}, ErrNotFound
}

func (r *MemoryRepo) ListRoles(_ context.Context) ([]Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Role, 0, len(r.roles))
	for _, ro := range r.roles {
		out = append(out, cloneRole(ro))
	}
	return out, nil
}

func (r *MemoryRepo) CreateRole(_ context.Context, ro Role) (Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ro.ID != "" {
		for _, existing := range r.roles {
			if existing.ID == ro.ID {
				return Role{}, ErrConflict
			}
		}
	}
	ro.ID = r.assignID(ro.ID)
	ro = cloneRole(ro)
	r.roles = append(r.roles, ro)
	return cloneRole(ro), nil
}

func (r *MemoryRepo) UpdateRole(_ context.Context, ro Role) (Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.roles {
		if existing.ID == ro.ID {
			r.roles[i] = cloneRole(ro)
			return cloneRole(ro), nil
		}
	}
	return Role{}, ErrNotFound
}

func (r *MemoryRepo) DeleteRole(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, ro := range r.roles {
		if ro.ID == id {
			r.roles = append(r.roles[:i], r.roles[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepo) CountUsersWithRole(_ context.Context, roleID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, u := range r.users {
		for _, rid := range u.RoleIDs {
			if rid == roleID {
				n++
				break
			}
		}
	}
	return n, nil
}

// --- pages ---

func (r *MemoryRepo) GetPage(_ context.Context, id string) (Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.pages {
		if p.ID == id {
			return p, nil
		}
	}
	return Page{}, ErrNotFound
}

func (r *MemoryRepo) GetPageByPath(_ context.Context, path string) (Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.pages {
		if p.Path == path {
			return p, nil
		}
	}
	return Page{}, ErrNotFound
}

func (r *MemoryRepo) ListPages(_ context.Context) ([]Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Page(nil), r.pages...), nil
}

func (r *MemoryRepo) CreatePage(_ context.Context, p Page) (Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.pages {
		if existing.Path == p.Path || (p.ID != "" && existing.ID == p.ID) {
			return Page{}, ErrConflict
		}
	}
	p.ID = r.assignID(p.ID)
	r.pages = append(r.pages, p)
	return p, nil
}

func (r *MemoryRepo) UpdatePage(_ context.Context, p Page) (Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := -1
	for i, existing := range r.pages {
		if existing.ID == p.ID {
			idx = i
		} else if existing.Path == p.Path {
			return Page{}, ErrConflict
		}
	}
	if idx < 0 {
		return Page{}, ErrNotFound
	}
	r.pages[idx] = p
	return p, nil
}

// DeletePage removes the page only; roles may keep its id as a dangling grant.
func (r *MemoryRepo) DeletePage(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.pages {
		if p.ID == id {
			r.pages = append(r.pages[:i], r.pages[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}
