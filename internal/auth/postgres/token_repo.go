// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/taskvault/taskvault/internal/auth"
	"github.com/taskvault/taskvault/internal/store"
)

// TokenRepository implements auth.TokenRepository using PostgreSQL.
type TokenRepository struct {
	db  store.DB
	now func() time.Time
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(db store.DB) *TokenRepository {
	return &TokenRepository{db: db, now: time.Now}
}

// Create stores a new token row.
func (r *TokenRepository) Create(ctx context.Context, token *auth.SessionToken) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO tokens (id, user_id, token_hash, kind, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		token.ID.String(),
		token.UserID.String(),
		token.TokenHash,
		string(token.Kind),
		token.ExpiresAt,
		token.CreatedAt,
	)
	if err != nil {
		return oops.Code("TOKEN_CREATE_FAILED").
			With("operation", "insert token").
			With("user_id", token.UserID.String()).
			With("kind", string(token.Kind)).
			Wrap(err)
	}
	return nil
}

// FindValid returns the newest unexpired token of kind for the user.
func (r *TokenRepository) FindValid(ctx context.Context, userID ulid.ULID, kind auth.TokenKind) (*auth.SessionToken, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, token_hash, kind, expires_at, created_at
		FROM tokens
		WHERE user_id = $1 AND kind = $2 AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT 1
	`, userID.String(), string(kind), r.now())

	var (
		idStr, userIDStr, kindStr string
		token                     auth.SessionToken
	)
	err := row.Scan(&idStr, &userIDStr, &token.TokenHash, &kindStr, &token.ExpiresAt, &token.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").
			With("user_id", userID.String()).
			With("kind", string(kind)).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_FIND_FAILED").
			With("operation", "find valid token").
			With("user_id", userID.String()).
			With("kind", string(kind)).
			Wrap(err)
	}

	if token.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("TOKEN_INVALID_ID").With("id", idStr).Wrap(err)
	}
	if token.UserID, err = ulid.Parse(userIDStr); err != nil {
		return nil, oops.Code("TOKEN_INVALID_USER_ID").With("user_id", userIDStr).Wrap(err)
	}
	token.Kind = auth.TokenKind(kindStr)
	return &token, nil
}

// Delete removes a token row by ID.
func (r *TokenRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM tokens WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("TOKEN_DELETE_FAILED").
			With("operation", "delete token").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("TOKEN_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteByUser removes every token of kind for the user. Deleting nothing is fine.
func (r *TokenRepository) DeleteByUser(ctx context.Context, userID ulid.ULID, kind auth.TokenKind) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM tokens WHERE user_id = $1 AND kind = $2
	`, userID.String(), string(kind))
	if err != nil {
		return oops.Code("TOKEN_DELETE_BY_USER_FAILED").
			With("operation", "delete tokens by user").
			With("user_id", userID.String()).
			With("kind", string(kind)).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes all expired tokens and returns the count.
func (r *TokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM tokens WHERE expires_at <= $1`, r.now())
	if err != nil {
		return 0, oops.Code("TOKEN_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ auth.TokenRepository = (*TokenRepository)(nil)
