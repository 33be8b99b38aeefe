package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"topup-store/internal/repo"
	"topup-store/internal/supabase"
)

var (
	ErrUsernameNotFound   = errors.New("username not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidSignUp      = errors.New("invalid sign-up details")
)

const emailLookupRPC = "get_user_email_by_username"

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.]{3,32}$`)

// ValidUsername reports whether s is an acceptable username.
func ValidUsername(s string) bool { return usernamePattern.MatchString(s) }

// IdentityProvider is the subset of the Supabase client the service needs.
type IdentityProvider interface {
	SignUp(ctx context.Context, req supabase.SignUpRequest) (*supabase.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*supabase.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	RPC(ctx context.Context, fn string, params any, dest any) error
}

// Store is the persistence the service reads and writes.
type Store interface {
	UpsertProfile(ctx context.Context, p repo.Profile) (*repo.Profile, error)
	EmailByUsername(ctx context.Context, username string) (string, error)
	HasRole(ctx context.Context, userID, role string) (bool, error)
	GrantRole(ctx context.Context, userID, role string) error
	GetWallet(ctx context.Context, userID string) (*repo.Wallet, error)
}

// Service implements sign-up, sign-in and role checks.
type Service struct {
	idp    IdentityProvider
	store  Store
	logger *slog.Logger
}

// NewService wires the identity provider and the store.
func NewService(idp IdentityProvider, store Store, logger *slog.Logger) *Service {
	return &Service{idp: idp, store: store, logger: logger.With("component", "auth")}
}

// SignIn authenticates by email or by username. A username is first resolved
// to its account email, then the password is checked against that email.
func (s *Service) SignIn(ctx context.Context, identifier, password string) (*supabase.Session, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	email := identifier
	if !strings.Contains(identifier, "@") {
		resolved, err := s.ResolveEmail(ctx, identifier)
		if err != nil {
			return nil, err
		}
		email = resolved
	}

	session, err := s.idp.SignInWithPassword(ctx, email, password)
	if err != nil {
		if supabase.IsInvalidCredentials(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("sign in: %w", err)
	}
	return session, nil
}

// ResolveEmail maps a username to the account email, using the database
// function first and the profiles table as a fallback.
func (s *Service) ResolveEmail(ctx context.Context, username string) (string, error) {
	var email *string
	err := s.idp.RPC(ctx, emailLookupRPC, map[string]string{"p_username": username}, &email)
	if err == nil && email != nil && *email != "" {
		return *email, nil
	}
	if err != nil {
		s.logger.Warn("username lookup rpc failed, falling back to profiles", "error", err)
	}

	found, err := s.store.EmailByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrUsernameNotFound
		}
		return "", fmt.Errorf("resolve username: %w", err)
	}
	return found, nil
}

// SignUp registers an account and creates its profile, user role and wallet.
func (s *Service) SignUp(ctx context.Context, email, password, username string) (*supabase.Session, error) {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)
	if !strings.Contains(email, "@") || len(password) < 6 || !usernamePattern.MatchString(username) {
		return nil, ErrInvalidSignUp
	}

	if _, err := s.store.EmailByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("check username: %w", err)
	}

	session, err := s.idp.SignUp(ctx, supabase.SignUpRequest{
		Email:    email,
		Password: password,
		Data:     map[string]any{"username": username},
	})
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	if session.User == nil || session.User.ID == "" {
		return nil, fmt.Errorf("sign up: provider returned no user")
	}

	userID := session.User.ID
	if _, err := s.store.UpsertProfile(ctx, repo.Profile{ID: userID, Username: username, Email: &email}); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}
	if err := s.store.GrantRole(ctx, userID, repo.RoleUser); err != nil {
		return nil, err
	}
	if _, err := s.store.GetWallet(ctx, userID); err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	s.logger.Info("user signed up", "user_id", userID)
	return session, nil
}

// SignOut revokes the caller's session.
func (s *Service) SignOut(ctx context.Context, accessToken string) error {
	if err := s.idp.SignOut(ctx, accessToken); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// IsAdmin reports whether userID holds the admin role.
func (s *Service) IsAdmin(ctx context.Context, userID string) (bool, error) {
	return s.store.HasRole(ctx, userID, repo.RoleAdmin)
}
