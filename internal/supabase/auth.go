package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// User represents a Supabase auth user.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Session represents an auth session.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user,omitempty"`
}

// SignUpRequest for user registration.
type SignUpRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data,omitempty"`
}

// IsInvalidCredentials reports whether err is GoTrue rejecting an email/password pair.
func IsInvalidCredentials(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode != http.StatusBadRequest && apiErr.StatusCode != http.StatusUnauthorized {
		return false
	}
	switch apiErr.Code {
	case "invalid_credentials", "invalid_grant":
		return true
	}
	return apiErr.Message == "Invalid login credentials"
}

// SignUp creates a new user. With email confirmation enabled GoTrue answers
// with the bare user and no tokens; the returned session then only carries User.
func (c *Client) SignUp(ctx context.Context, req SignUpRequest) (*Session, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	body, err := c.do(ctx, request{
		endpoint: "auth/signup",
		method:   http.MethodPost,
		url:      c.authURL + "/signup",
		body:     bytes.NewReader(payload),
	})
	if err != nil {
		return nil, err
	}

	var session Session
	if gjson.GetBytes(body, "access_token").Exists() {
		if err := json.Unmarshal(body, &session); err != nil {
			return nil, fmt.Errorf("unmarshal session: %w", err)
		}
		return &session, nil
	}
	if !gjson.GetBytes(body, "id").Exists() {
		return nil, fmt.Errorf("unexpected signup response")
	}
	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	session.User = &user
	return &session, nil
}

// SignInWithPassword authenticates a user with email/password.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	body, err := c.do(ctx, request{
		endpoint: "auth/token",
		method:   http.MethodPost,
		url:      c.authURL + "/token?grant_type=password",
		body:     bytes.NewReader(payload),
	})
	if err != nil {
		return nil, err
	}
	var session Session
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

// GetUser retrieves the user owning accessToken.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	body, err := c.do(ctx, request{
		endpoint: "auth/user",
		method:   http.MethodGet,
		url:      c.authURL + "/user",
		bearer:   accessToken,
	})
	if err != nil {
		return nil, err
	}
	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &user, nil
}

// SignOut revokes the session behind accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	_, err := c.do(ctx, request{
		endpoint: "auth/logout",
		method:   http.MethodPost,
		url:      c.authURL + "/logout",
		bearer:   accessToken,
	})
	return err
}
