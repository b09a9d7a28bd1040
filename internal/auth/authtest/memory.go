// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

// Package authtest provides in-memory stores and helpers for testing auth flows.
package authtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/taskvault/taskvault/internal/auth"
)

// UserStore is an in-memory auth.UserRepository.
type UserStore struct {
	mu    sync.Mutex
	users map[ulid.ULID]auth.User
}

// NewUserStore creates an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[ulid.ULID]auth.User)}
}

// Create stores a copy of user.
func (s *UserStore) Create(_ context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return oops.Code("USER_EMAIL_TAKEN").Wrap(auth.ErrDuplicateEmail)
		}
	}
	s.users[user.ID] = *user
	return nil
}

// GetByID returns a copy of the user with the given id.
func (s *UserStore) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &u, nil
}

// GetByEmail returns a copy of the user with exactly this email.
func (s *UserStore) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, auth.ErrNotFound
}

// UpdatePassword replaces the stored hash.
func (s *UserStore) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now()
	s.users[id] = u
	return nil
}

// Put stores a user directly, bypassing duplicate checks.
func (s *UserStore) Put(user auth.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

// Delete removes a user.
func (s *UserStore) Delete(id ulid.ULID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

// TokenStore is an in-memory auth.TokenRepository.
type TokenStore struct {
	mu     sync.Mutex
	tokens map[ulid.ULID]auth.SessionToken
	now    func() time.Time
}

// NewTokenStore creates an empty TokenStore using time.Now.
func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[ulid.ULID]auth.SessionToken), now: time.Now}
}

// SetClock overrides the clock used to decide expiry.
func (s *TokenStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Create stores a copy of token.
func (s *TokenStore) Create(_ context.Context, token *auth.SessionToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.ID] = *token
	return nil
}

// FindValid returns the newest unexpired token of kind for userID.
func (s *TokenStore) FindValid(_ context.Context, userID ulid.ULID, kind auth.TokenKind) (*auth.SessionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *auth.SessionToken
	now := s.now()
	for _, t := range s.tokens {
		if t.UserID != userID || t.Kind != kind || t.IsExpiredAt(now) {
			continue
		}
		if found == nil || t.CreatedAt.After(found.CreatedAt) {
			tc := t
			found = &tc
		}
	}
	if found == nil {
		return nil, auth.ErrNotFound
	}
	return found, nil
}

// Delete removes a token by id.
func (s *TokenStore) Delete(_ context.Context, id ulid.ULID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.tokens, id)
	return nil
}

// DeleteByUser removes all tokens of kind for userID.
func (s *TokenStore) DeleteByUser(_ context.Context, userID ulid.ULID, kind auth.TokenKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.tokens {
		if t.UserID == userID && t.Kind == kind {
			delete(s.tokens, id)
		}
	}
	return nil
}

// DeleteExpired removes expired tokens.
func (s *TokenStore) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	now := s.now()
	for id, t := range s.tokens {
		if t.IsExpiredAt(now) {
			delete(s.tokens, id)
			n++
		}
	}
	return n, nil
}

// Tokens returns copies of all stored tokens of kind for userID, expired or not.
func (s *TokenStore) Tokens(userID ulid.ULID, kind auth.TokenKind) []auth.SessionToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []auth.SessionToken
	for _, t := range s.tokens {
		if t.UserID == userID && t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// Put stores a token directly.
func (s *TokenStore) Put(token auth.SessionToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.ID] = token
}

// PlainHasher is a fast, deterministic-looking PasswordHasher for tests.
// Hash output still differs between calls so salt-dependent code paths are exercised.
type PlainHasher struct{}

// Hash returns "plain$<nonce>$<secret>".
func (PlainHasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", auth.ErrEmptyPassword
	}
	return "plain$" + ulid.Make().String() + "$" + secret, nil
}

// Verify compares the secret embedded in hash.
func (PlainHasher) Verify(secret, hash string) (bool, error) {
	parts := strings.SplitN(hash, "$", 3)
	if len(parts) != 3 || parts[0] != "plain" {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}
	return parts[2] == secret, nil
}

// NeedsUpgrade always returns false.
func (PlainHasher) NeedsUpgrade(string) bool {
	return false
}

// Mail is a message captured by RecordingMailer.
type Mail struct {
	To    string
	Token string
}

// RecordingMailer records reset emails and optionally fails.
type RecordingMailer struct {
	mu   sync.Mutex
	Err  error
	sent []Mail
}

// SendPasswordResetEmail records the message, or returns Err if set.
func (m *RecordingMailer) SendPasswordResetEmail(_ context.Context, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, Mail{To: to, Token: token})
	return nil
}

// Sent returns the recorded messages.
func (m *RecordingMailer) Sent() []Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Mail(nil), m.sent...)
}

// Compile-time interface checks.
var (
	_ auth.UserRepository  = (*UserStore)(nil)
	_ auth.TokenRepository = (*TokenStore)(nil)
	_ auth.PasswordHasher  = PlainHasher{}
	_ auth.ResetMailer     = (*RecordingMailer)(nil)
)
