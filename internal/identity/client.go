package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrRejected means the backend answered with a 4xx: bad credentials on
	// login, or an invalid/expired refresh token on refresh.
	ErrRejected = errors.New("identity: rejected by backend")
	// ErrUnavailable covers transport faults, timeouts and 5xx answers.
	ErrUnavailable = errors.New("identity: backend unavailable")
	// ErrBadResponse means a 2xx answer without a usable token pair.
	ErrBadResponse = errors.New("identity: malformed backend response")
)

const maxBodyBytes = 1 << 20

// TokenPair is the raw pair issued by the backend. Both values are opaque here.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Client performs the two network calls against the identity backend.
// It never retries and keeps no state besides its HTTP client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client for baseURL. A nil httpClient gets a default with timeout.
func NewClient(baseURL string, httpClient *http.Client, timeout time.Duration) *Client {
	if httpClient == nil {
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// tokenResponse accepts both the camelCase aliases the backend serializes by
// default and the snake_case field names.
type tokenResponse struct {
	AccessToken       string `json:"accessToken"`
	RefreshToken      string `json:"refreshToken"`
	AccessTokenSnake  string `json:"access_token"`
	RefreshTokenSnake string `json:"refresh_token"`
}

func (r tokenResponse) pair() TokenPair {
	p := TokenPair{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
	if p.AccessToken == "" {
		p.AccessToken = r.AccessTokenSnake
	}
	if p.RefreshToken == "" {
		p.RefreshToken = r.RefreshTokenSnake
	}
	return p
}

// Login exchanges username/password for a token pair.
func (c *Client) Login(ctx context.Context, username, password string) (TokenPair, error) {
	return c.post(ctx, "/login", loginRequest{Username: username, Password: password})
}

// Refresh exchanges a refresh token for a new pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	return c.post(ctx, "/refresh", refreshRequest{RefreshToken: refreshToken})
}

func (c *Client) post(ctx context.Context, path string, body any) (TokenPair, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return TokenPair{}, fmt.Errorf("encode %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return TokenPair{}, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %s request: %w", ErrUnavailable, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: read %s response: %w", ErrUnavailable, path, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return TokenPair{}, &StatusError{Path: path, Status: resp.StatusCode, Detail: detail(raw), kind: ErrUnavailable}
	case resp.StatusCode >= 300:
		return TokenPair{}, &StatusError{Path: path, Status: resp.StatusCode, Detail: detail(raw), kind: ErrRejected}
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return TokenPair{}, fmt.Errorf("%w: decode %s response: %w", ErrBadResponse, path, err)
	}
	pair := tr.pair()
	if pair.AccessToken == "" {
		return TokenPair{}, fmt.Errorf("%w: %s response has no access token", ErrBadResponse, path)
	}
	return pair, nil
}

// StatusError carries a non-2xx answer. It matches ErrRejected or ErrUnavailable via errors.Is.
type StatusError struct {
	Path   string
	Status int
	Detail string
	kind   error
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("identity: %s answered %d: %s", e.Path, e.Status, e.Detail)
	}
	return fmt.Sprintf("identity: %s answered %d", e.Path, e.Status)
}

func (e *StatusError) Unwrap() error { return e.kind }

// detail extracts the backend's human readable error, if any.
func detail(raw []byte) string {
	var body struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if s, ok := body.Detail.(string); ok {
			return s
		}
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
