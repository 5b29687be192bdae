package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned for any access token whose payload cannot be
// decoded into a complete Identity.
var ErrMalformedToken = errors.New("auth: malformed access token")

var unverified = jwt.NewParser()

// DecodeIdentity reads the Identity embedded in a backend access token.
//
// The signature is NOT verified: the token is trusted because it was received
// directly from the identity backend. userId and roleIds are mandatory.
func DecodeIdentity(accessToken string) (Identity, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return Identity{}, fmt.Errorf("%w: empty token", ErrMalformedToken)
	}

	var claims accessClaims
	if _, _, err := unverified.ParseUnverified(accessToken, &claims); err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}

	acct := claims.subject()
	if acct == nil {
		return Identity{}, fmt.Errorf("%w: no account claim", ErrMalformedToken)
	}
	if strings.TrimSpace(string(acct.ID)) == "" {
		return Identity{}, fmt.Errorf("%w: account id missing", ErrMalformedToken)
	}
	if acct.Roles == nil {
		return Identity{}, fmt.Errorf("%w: account roles missing", ErrMalformedToken)
	}

	id := Identity{
		UserID:      string(acct.ID),
		Username:    acct.Username,
		DisplayName: acct.FullName,
		Title:       acct.Title,
		Email:       acct.Email,
		RoleIDs:     dedupe(*acct.Roles),
	}
	if claims.ExpiresAt != nil {
		id.TokenExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

func dedupe(ids []flexID) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(string(raw))
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
