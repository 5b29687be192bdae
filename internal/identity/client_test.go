package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", nil, 2*time.Second)
}

func TestLogin_DecodesCamelCasePair(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/login", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "alice", body["username"])
		require.Equal(t, "pw", body["password"])
		_, _ = w.Write([]byte(`{"accessToken":"a1","refreshToken":"r1"}`))
	})

	pair, err := c.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	require.Equal(t, TokenPair{AccessToken: "a1", RefreshToken: "r1"}, pair)
}

func TestRefresh_SendsSnakeCaseBodyAndAcceptsSnakeCasePair(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/refresh", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "r1", body["refresh_token"])
		_, _ = w.Write([]byte(`{"access_token":"a2","refresh_token":"r2"}`))
	})

	pair, err := c.Refresh(context.Background(), "r1")
	require.NoError(t, err)
	require.Equal(t, "a2", pair.AccessToken)
	require.Equal(t, "r2", pair.RefreshToken)
}

func TestLogin_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: ErrRejected},
		{name: "validation", status: http.StatusUnprocessableEntity, want: ErrRejected},
		{name: "server error", status: http.StatusBadGateway, want: ErrUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"detail":"Incorrect username or password"}`))
			})
			_, err := c.Login(context.Background(), "alice", "bad")
			require.ErrorIs(t, err, tc.want)

			var se *StatusError
			require.True(t, errors.As(err, &se))
			require.Equal(t, tc.status, se.Status)
			require.Equal(t, "Incorrect username or password", se.Detail)
		})
	}
}

func TestLogin_TransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, nil, time.Second).Login(context.Background(), "a", "b")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestLogin_TimeoutIsUnavailable(t *testing.T) {
	release := make(chan struct{})
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Login(ctx, "a", "b")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestLogin_MissingAccessTokenIsBadResponse(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"refreshToken":"r"}`))
	})
	_, err := c.Login(context.Background(), "a", "b")
	require.ErrorIs(t, err, ErrBadResponse)
}
