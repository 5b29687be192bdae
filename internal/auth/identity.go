package auth

import "time"

// Identity is the principal described by an access token payload.
// It is derived data: rebuilt every time the access token changes.
type Identity struct {
	UserID      string   `json:"userId"`
	Username    string   `json:"username"`
	DisplayName string   `json:"displayName"`
	Title       string   `json:"title"`
	Email       string   `json:"email"`
	RoleIDs     []string `json:"roleIds"`

	// TokenExpiresAt is the token's own exp claim, zero when absent. Session expiry is
	// stamped separately and does not depend on it.
	TokenExpiresAt time.Time `json:"tokenExpiresAt"`
}
