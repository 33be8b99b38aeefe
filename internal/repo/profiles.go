package repo

import (
	"context"
	"fmt"
	"strings"
)

const pgProfileColumns = `id::text, username, full_name, language, email, created_at, updated_at`

func scanPgProfile(row rowScanner) (*Profile, error) {
	var p Profile
	if err := row.Scan(&p.ID, &p.Username, &p.FullName, &p.Language, &p.Email, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProfile creates the profile for a new account or refreshes its email.
func (r *PostgresRepository) UpsertProfile(ctx context.Context, p Profile) (*Profile, error) {
	lang := p.Language
	if lang == "" {
		lang = "en"
	}
	const q = `
INSERT INTO profiles (id, username, full_name, language, email, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW())
ON CONFLICT (id) DO UPDATE SET
    email = COALESCE(EXCLUDED.email, profiles.email),
    updated_at = NOW()
RETURNING ` + pgProfileColumns + `;
`
	out, err := scanPgProfile(r.pool.QueryRow(ctx, q, p.ID, p.Username, p.FullName, lang, p.Email))
	if err != nil {
		return nil, pgErr("upsert profile", err)
	}
	return out, nil
}

// GetProfile returns the profile by user id.
func (r *PostgresRepository) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	p, err := scanPgProfile(r.pool.QueryRow(ctx, `SELECT `+pgProfileColumns+` FROM profiles WHERE id = $1 LIMIT 1;`, userID))
	if err != nil {
		return nil, pgErr("get profile", err)
	}
	return p, nil
}

// UpdateProfile applies the non-nil fields of upd.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*Profile, error) {
	const q = `
UPDATE profiles
SET username = COALESCE($2, username),
    full_name = COALESCE($3, full_name),
    language = COALESCE($4, language),
    updated_at = NOW()
WHERE id = $1
RETURNING ` + pgProfileColumns + `;
`
	p, err := scanPgProfile(r.pool.QueryRow(ctx, q, userID, upd.Username, upd.FullName, upd.Language))
	if err != nil {
		return nil, pgErr("update profile", err)
	}
	return p, nil
}

// EmailByUsername resolves a username to the account email.
func (r *PostgresRepository) EmailByUsername(ctx context.Context, username string) (string, error) {
	var email *string
	err := r.pool.QueryRow(ctx, `SELECT email FROM profiles WHERE lower(username) = lower($1) LIMIT 1;`, strings.TrimSpace(username)).Scan(&email)
	if err != nil {
		return "", pgErr("email by username", err)
	}
	if email == nil || *email == "" {
		return "", fmt.Errorf("email by username: %w", ErrNotFound)
	}
	return *email, nil
}

// HasRole reports whether the user holds role.
func (r *PostgresRepository) HasRole(ctx context.Context, userID, role string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM user_roles WHERE user_id = $1 AND role = $2);`, userID, role).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check role: %w", err)
	}
	return ok, nil
}

// GrantRole adds role to the user; granting twice is a no-op.
func (r *PostgresRepository) GrantRole(ctx context.Context, userID, role string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT (user_id, role) DO NOTHING;`, userID, role)
	if err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	return nil
}
