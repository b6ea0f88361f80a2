// Package creds persists the portal session credential issued after a
// successful token exchange.
package creds

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/markb/authlite/internal/db"
)

// CredentialName is the fixed logical name the session token is stored
// under, mirroring the portal frontend's storage key.
const CredentialName = "portal_session"

// Store reads and writes the session credential in the authlite database.
type Store struct {
	db *db.DB
}

func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Save stores the session token, replacing any previous session.
func (s *Store) Save(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO credentials (name, token) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET token = excluded.token, saved_at = datetime('now')",
		CredentialName, token)
	if err != nil {
		return fmt.Errorf("save session credential: %w", err)
	}
	return nil
}

// Load returns the stored session token, reporting whether one exists.
func (s *Store) Load(ctx context.Context) (string, bool, error) {
	var token string
	err := s.db.QueryRowContext(ctx,
		"SELECT token FROM credentials WHERE name = ?", CredentialName).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load session credential: %w", err)
	}
	return token, true, nil
}

// Clear removes the stored session token. Clearing an absent session is not
// an error.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM credentials WHERE name = ?", CredentialName); err != nil {
		return fmt.Errorf("clear session credential: %w", err)
	}
	return nil
}

// Claims are the display fields the portal embeds in its session JWT. The
// backend is the verifier of this token; parsing here is unverified and used
// only for local display.
type Claims struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	GithubID  string `json:"github_id"`
	jwt.RegisteredClaims
}

// ParseClaims extracts display claims from a session token without verifying
// its signature.
func ParseClaims(token string) (*Claims, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}
	return &claims, nil
}
