// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// User represents a registered account.
type User struct {
	ID           ulid.ULID
	Email        string
	PasswordHash string
	Name         *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the view of a User safe to return to clients.
type PublicUser struct {
	ID        ulid.ULID `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewUser creates a validated User. The password must already be hashed.
func NewUser(email, passwordHash string, name *string) (*User, error) {
	if email == "" {
		return nil, oops.Code("USER_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &User{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Public strips the password hash.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user. Returns an error wrapping ErrDuplicateEmail
	// if the email is already taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	// Returns ErrNotFound if no user has the given ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by exact email.
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// UpdatePassword updates only the password hash for a user.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error
}
