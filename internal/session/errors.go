package session

import (
	"errors"
	"fmt"

	"rbac-admin/internal/auth"
)

// ErrorKind classifies why a session could not be established or kept.
type ErrorKind string

const (
	KindInvalidCredentials ErrorKind = "InvalidCredentials"
	KindBackendUnavailable ErrorKind = "BackendUnavailable"
	KindMalformedToken     ErrorKind = "MalformedToken"
	KindNoRefreshToken     ErrorKind = "NoRefreshToken"
	KindRefreshFailed      ErrorKind = "RefreshFailed"
	KindRefreshError       ErrorKind = "RefreshError"
)

var (
	ErrNotAuthenticated   = errors.New("session: not authenticated")
	ErrInvalidCredentials = errors.New("session: invalid credentials")
	ErrBackendUnavailable = errors.New("session: identity backend unavailable")
	ErrInvalidSession     = errors.New("session: invalid session cookie")
	ErrRevoked            = errors.New("session: revoked")

	// ErrRefreshExhausted is matched by every rotation failure. The session is
	// cleared and the principal must log in again.
	ErrRefreshExhausted = errors.New("session: refresh exhausted")
	ErrNoRefreshToken   = fmt.Errorf("%w: no refresh token", ErrRefreshExhausted)
	ErrRefreshFailed    = fmt.Errorf("%w: refresh token rejected", ErrRefreshExhausted)
	ErrRefreshError     = fmt.Errorf("%w: refresh transport error", ErrRefreshExhausted)
)

// KindOf maps an error returned by this package to its ErrorKind.
// It returns "" for errors outside the taxonomy.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, auth.ErrMalformedToken):
		return KindMalformedToken
	case errors.Is(err, ErrNoRefreshToken):
		return KindNoRefreshToken
	case errors.Is(err, ErrRefreshFailed):
		return KindRefreshFailed
	case errors.Is(err, ErrRefreshError):
		return KindRefreshError
	case errors.Is(err, ErrInvalidCredentials):
		return KindInvalidCredentials
	case errors.Is(err, ErrBackendUnavailable):
		return KindBackendUnavailable
	default:
		return ""
	}
}
