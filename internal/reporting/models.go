package reporting

import "time"

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// LoginSummaryRequest asks for sign-in activity inside Range (From inclusive, To exclusive).
type LoginSummaryRequest struct {
	Range TimeRange `json:"range"`
	// Top caps the per-username failure list. Zero means 10.
	Top int `json:"top,omitempty"`
}

type LoginSummary struct {
	Range TimeRange `json:"range"`

	Succeeded       int `json:"succeeded"`
	Failed          int `json:"failed"`
	Logouts         int `json:"logouts"`
	SessionsExpired int `json:"sessionsExpired"`
	AccessDenied    int `json:"accessDenied"`

	// DistinctUsers counts users with at least one successful login.
	DistinctUsers int `json:"distinctUsers"`

	// FailedByKind splits failures by session error kind (InvalidCredentials, ...).
	FailedByKind map[string]int `json:"failedByKind"`
	// ExpiredByKind splits rotation failures (RefreshFailed, RefreshError, ...).
	ExpiredByKind map[string]int `json:"expiredByKind"`

	TopFailedUsernames []UsernameCount `json:"topFailedUsernames"`
}

type UsernameCount struct {
	Username string `json:"username"`
	Count    int    `json:"count"`
}
