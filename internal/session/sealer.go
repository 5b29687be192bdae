package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// sealedClaims is the persisted form of a Credential: an HS256 JWT held in
// the session cookie. The jti is the session id.
type sealedClaims struct {
	jwt.RegisteredClaims

	AccessToken      string `json:"at"`
	RefreshToken     string `json:"rt,omitempty"`
	AccessExpiresAt  int64  `json:"aexp"`
	RefreshExpiresAt int64  `json:"rexp"`
}

// Sealer signs and verifies the session cookie blob.
type Sealer struct {
	secret []byte
	issuer string
}

func NewSealer(secret, issuer string) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	return &Sealer{secret: []byte(secret), issuer: issuer}, nil
}

// Seal encodes c. The blob expires with the later of the two token expiries.
func (s *Sealer) Seal(c Credential, now time.Time) (string, time.Time, error) {
	if !c.Present() || c.SessionID == "" {
		return "", time.Time{}, fmt.Errorf("%w: nothing to seal", ErrNotAuthenticated)
	}
	exp := c.RefreshExpiresAt
	if c.AccessExpiresAt.After(exp) {
		exp = c.AccessExpiresAt
	}

	claims := sealedClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        c.SessionID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		AccessToken:      c.AccessToken,
		RefreshToken:     c.RefreshToken,
		AccessExpiresAt:  c.AccessExpiresAt.UnixMilli(),
		RefreshExpiresAt: c.RefreshExpiresAt.UnixMilli(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return raw, exp, nil
}

// Open verifies raw and rebuilds the Credential it carries.
func (s *Sealer) Open(raw string, now time.Time) (Credential, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var claims sealedClaims
	_, err := jwt.NewParser(opts...).ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if claims.ID == "" || claims.AccessToken == "" {
		return Credential{}, fmt.Errorf("%w: incomplete session", ErrInvalidSession)
	}

	return Credential{
		SessionID:        claims.ID,
		AccessToken:      claims.AccessToken,
		RefreshToken:     claims.RefreshToken,
		AccessExpiresAt:  time.UnixMilli(claims.AccessExpiresAt),
		RefreshExpiresAt: time.UnixMilli(claims.RefreshExpiresAt),
	}, nil
}
