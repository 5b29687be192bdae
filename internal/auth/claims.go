package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// accessClaims is the payload shape of backend-issued access tokens.
// The account lives under "account"; tokens from older backends use "user".
type accessClaims struct {
	jwt.RegisteredClaims

	Account *accountClaims `json:"account,omitempty"`
	User    *accountClaims `json:"user,omitempty"`
}

func (c *accessClaims) subject() *accountClaims {
	if c.Account != nil {
		return c.Account
	}
	return c.User
}

type accountClaims struct {
	ID       flexID    `json:"id"`
	Username string    `json:"username"`
	FullName string    `json:"fullname"`
	Title    string    `json:"title"`
	Email    string    `json:"email"`
	Roles    *[]flexID `json:"roles"`
}

// flexID accepts a JSON number or string and keeps its decimal/text form.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*f = flexID(strconv.FormatInt(i, 10))
		return nil
	}
	*f = flexID(n.String())
	return nil
}
