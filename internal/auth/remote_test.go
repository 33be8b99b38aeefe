package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topup-store/internal/logging"
	"topup-store/internal/supabase"
)

type fakeUsers struct {
	user *supabase.User
	err  error
	seen string
}

func (f *fakeUsers) GetUser(_ context.Context, token string) (*supabase.User, error) {
	f.seen = token
	return f.user, f.err
}

func TestRemoteVerifierResolvesUser(t *testing.T) {
	users := &fakeUsers{user: &supabase.User{ID: "user-7", Email: "mya@example.com"}}
	p, err := NewRemoteVerifier(users).VerifyToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "tok", users.seen)
	assert.Equal(t, Principal{UserID: "user-7", Email: "mya@example.com", AccessToken: "tok"}, p)
}

func TestRemoteVerifierErrors(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		invalid bool
	}{
		{"expired", &supabase.Error{StatusCode: http.StatusUnauthorized, Message: "token is expired"}, true},
		{"forbidden", &supabase.Error{StatusCode: http.StatusForbidden, Message: "bad jwt"}, true},
		{"unreachable", fmt.Errorf("get user: %w", supabase.ErrUnreachable), false},
		{"server error", &supabase.Error{StatusCode: http.StatusInternalServerError, Message: "boom"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRemoteVerifier(&fakeUsers{err: tc.err}).VerifyToken(context.Background(), "tok")
			require.Error(t, err)
			assert.Equal(t, tc.invalid, errors.Is(err, ErrInvalidToken))
		})
	}
}

func TestAuthenticateMapsVerifierFailures(t *testing.T) {
	cases := []struct {
		name   string
		users  *fakeUsers
		status int
	}{
		{"valid", &fakeUsers{user: &supabase.User{ID: "user-7"}}, http.StatusOK},
		{"rejected", &fakeUsers{err: &supabase.Error{StatusCode: http.StatusUnauthorized}}, http.StatusUnauthorized},
		{"provider down", &fakeUsers{err: supabase.ErrUnreachable}, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := Authenticate(NewRemoteVerifier(tc.users), logging.Discard())(principalEcho())
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set("Authorization", "Bearer tok")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}
