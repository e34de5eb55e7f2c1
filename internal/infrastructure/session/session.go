// Package session maps bearer tokens to subscriber identities with explicit expiry.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for unknown, revoked or expired tokens.
var ErrNotFound = errors.New("session not found")

// Session binds a token to the email address it was issued for.
type Session struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store issues, resolves and revokes sessions.
type Store interface {
	Create(ctx context.Context, email string) (Session, error)
	Lookup(ctx context.Context, token string) (Session, error)
	Revoke(ctx context.Context, token string) error
}
