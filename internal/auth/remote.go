package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"topup-store/internal/supabase"
)

// TokenVerifier turns an access token into the calling Principal.
// ErrInvalidToken means the caller must sign in again; other errors mean the
// check itself could not be made.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (Principal, error)
}

// VerifyToken checks token locally against the JWT secret.
func (v *Verifier) VerifyToken(_ context.Context, token string) (Principal, error) {
	claims, err := v.Verify(token)
	if err != nil {
		return Principal{}, err
	}
	return Principal{UserID: claims.Subject, Email: claims.Email, AccessToken: token}, nil
}

// UserFetcher resolves an access token to its user at the identity provider.
type UserFetcher interface {
	GetUser(ctx context.Context, accessToken string) (*supabase.User, error)
}

// RemoteVerifier asks the identity provider about every token. It is used
// when no JWT secret is configured, for example with asymmetric signing keys.
type RemoteVerifier struct {
	users UserFetcher
}

// NewRemoteVerifier builds a verifier backed by users.
func NewRemoteVerifier(users UserFetcher) *RemoteVerifier {
	return &RemoteVerifier{users: users}
}

func (v *RemoteVerifier) VerifyToken(ctx context.Context, token string) (Principal, error) {
	u, err := v.users.GetUser(ctx, token)
	if err != nil {
		var apiErr *supabase.Error
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
			return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		return Principal{}, fmt.Errorf("verify token: %w", err)
	}
	if u == nil || u.ID == "" {
		return Principal{}, ErrInvalidToken
	}
	return Principal{UserID: u.ID, Email: u.Email, AccessToken: token}, nil
}
