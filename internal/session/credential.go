package session

import "time"

// Credential is the authoritative session record of one principal.
type Credential struct {
	SessionID    string
	AccessToken  string
	RefreshToken string

	// Stamped locally as now+lifetime at login and rotation, millisecond precision.
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time

	LastError ErrorKind
}

// Present reports whether the credential still holds an access token.
func (c Credential) Present() bool { return c.AccessToken != "" }

// AccessValid reports now+margin < AccessExpiresAt.
func (c Credential) AccessValid(now time.Time, margin time.Duration) bool {
	return now.Add(margin).Before(c.AccessExpiresAt)
}

// Lifetimes are the configured token lifetimes stamped onto credentials.
// Access <= Refresh is expected but not enforced.
type Lifetimes struct {
	Access  time.Duration
	Refresh time.Duration
}

func stamp(now time.Time, d time.Duration) time.Time {
	return time.UnixMilli(now.Add(d).UnixMilli())
}
