// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// TokenKind distinguishes stored session tokens.
type TokenKind string

// Token kinds. A user has at most one stored token of each kind.
const (
	TokenKindRefresh TokenKind = "REFRESH"
	TokenKindReset   TokenKind = "RESET"
)

// ResetTokenValidity is how long a stored RESET row stays valid.
const ResetTokenValidity = time.Hour

// Valid reports whether k is a known kind.
func (k TokenKind) Valid() bool {
	return k == TokenKindRefresh || k == TokenKindReset
}

// SessionToken is the stored, hashed form of an issued refresh or reset token.
type SessionToken struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	TokenHash string
	Kind      TokenKind
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewSessionToken creates a validated SessionToken.
func NewSessionToken(userID ulid.ULID, tokenHash string, kind TokenKind, expiresAt time.Time) (*SessionToken, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("TOKEN_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("TOKEN_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if !kind.Valid() {
		return nil, oops.Code("TOKEN_INVALID_KIND").With("kind", string(kind)).Errorf("unknown token kind")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("TOKEN_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	return &SessionToken{
		ID:        ulid.Make(),
		UserID:    userID,
		TokenHash: tokenHash,
		Kind:      kind,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}, nil
}

// IsExpiredAt returns true if the token would be expired at the given time.
func (t *SessionToken) IsExpiredAt(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// TokenRepository manages stored session tokens.
type TokenRepository interface {
	// Create stores a new token row.
	Create(ctx context.Context, token *SessionToken) error

	// FindValid returns the user's unexpired token of the given kind.
	// Returns ErrNotFound if there is none.
	FindValid(ctx context.Context, userID ulid.ULID, kind TokenKind) (*SessionToken, error)

	// Delete removes a token row by ID.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteByUser removes every token of the given kind for a user.
	// Deleting nothing is not an error.
	DeleteByUser(ctx context.Context, userID ulid.ULID, kind TokenKind) error

	// DeleteExpired removes all expired tokens and returns the count.
	DeleteExpired(ctx context.Context) (int64, error)
}
