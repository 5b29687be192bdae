package rbac

// Page is a navigable route of the admin application.
// Path is unique; Order defines display and precedence order.
type Page struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Path        string `json:"path"`
	Order       int    `json:"order"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

// Role grants a set of pages.
type Role struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	PageIDs     []string `json:"pageIds"`
}

// User is the directory record of a principal. Inactive users resolve to no pages.
type User struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	FullName string   `json:"fullName,omitempty"`
	Title    string   `json:"title,omitempty"`
	Email    string   `json:"email,omitempty"`
	Active   bool     `json:"active"`
	RoleIDs  []string `json:"roleIds"`
}

// uniq drops blanks and duplicates while keeping first-seen order.
func uniq(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
