// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// dummyPasswordHash is verified when a user doesn't exist so that unknown
// emails and wrong passwords take comparable time. It never matches.
//
//nolint:gosec // G101: intentionally fake hash, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// TokenPair is the result of a successful login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// SessionService provides registration, login and session management.
type SessionService struct {
	users  UserRepository
	tokens TokenRepository
	hasher PasswordHasher
	signer *TokenSigner
	logger *slog.Logger
	now    func() time.Time
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	users UserRepository,
	tokens TokenRepository,
	hasher PasswordHasher,
	signer *TokenSigner,
	logger *slog.Logger,
) (*SessionService, error) {
	if users == nil {
		return nil, oops.Code("SERVICE_INVALID_DEPS").Errorf("user repository is required")
	}
	if tokens == nil {
		return nil, oops.Code("SERVICE_INVALID_DEPS").Errorf("token repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("SERVICE_INVALID_DEPS").Errorf("password hasher is required")
	}
	if signer == nil {
		return nil, oops.Code("SERVICE_INVALID_DEPS").Errorf("token signer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SessionService{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		signer: signer,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Register creates a new user and returns its public view.
func (s *SessionService) Register(ctx context.Context, email, password string, name *string) (PublicUser, error) {
	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return PublicUser{}, oops.Code(CodeDuplicateEmail).Wrap(ErrDuplicateEmail)
	case !errors.Is(err, ErrNotFound):
		return PublicUser{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return PublicUser{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(email, hash, name)
	if err != nil {
		return PublicUser{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "new user").
			Wrap(err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		// Lost the race against a concurrent registration.
		if errors.Is(err, ErrDuplicateEmail) {
			return PublicUser{}, oops.Code(CodeDuplicateEmail).Wrap(ErrDuplicateEmail)
		}
		return PublicUser{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "persist user").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String())
	return user.Public(), nil
}

// Login authenticates a user and replaces their refresh token.
// Unknown emails and wrong passwords produce the same error.
func (s *SessionService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, lookupErr := s.users.GetByEmail(ctx, email)

	var targetHash string
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
	case errors.Is(lookupErr, ErrNotFound):
		targetHash = dummyPasswordHash
	default:
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	// Always verify, even for unknown users, to keep response time uniform.
	valid := s.matches(ctx, password, targetHash)
	if lookupErr != nil || !valid {
		return nil, oops.Code(CodeInvalidCredentials).Wrap(ErrInvalidCredentials)
	}

	s.upgradeHash(ctx, user, password)

	accessToken, err := s.signer.Issue(PurposeAccess, user.ID)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue access token").
			Wrap(err)
	}

	refreshToken, err := s.signer.Issue(PurposeRefresh, user.ID)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue refresh token").
			Wrap(err)
	}

	if err := s.storeRefreshToken(ctx, user.ID, refreshToken); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID.String())
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// storeRefreshToken replaces the user's REFRESH row with one for token.
// Delete and insert are separate calls; concurrent logins for one user may race.
func (s *SessionService) storeRefreshToken(ctx context.Context, userID ulid.ULID, token string) error {
	tokenHash, err := s.hasher.Hash(token)
	if err != nil {
		return oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "hash refresh token").
			Wrap(err)
	}

	expiresAt := s.now().Add(s.signer.Lifetime(PurposeRefresh))
	row, err := NewSessionToken(userID, tokenHash, TokenKindRefresh, expiresAt)
	if err != nil {
		return oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "new session token").
			Wrap(err)
	}

	if err := s.tokens.DeleteByUser(ctx, userID, TokenKindRefresh); err != nil {
		return oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "delete previous refresh tokens").
			With("user_id", userID.String()).
			Wrap(err)
	}

	if err := s.tokens.Create(ctx, row); err != nil {
		return oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist refresh token").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// Refresh exchanges a valid refresh token for a new access token.
// The stored REFRESH row is left untouched.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", oops.Code(CodeTokenMissing).Wrap(ErrTokenMissing)
	}

	userID, err := s.signer.Verify(PurposeRefresh, refreshToken)
	if err != nil {
		return "", err
	}

	stored, err := s.tokens.FindValid(ctx, userID, TokenKindRefresh)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", oops.Code(CodeTokenNotFound).
				With("user_id", userID.String()).
				Wrap(ErrTokenNotFound)
		}
		return "", oops.Code("AUTH_REFRESH_FAILED").
			With("operation", "find refresh token").
			With("user_id", userID.String()).
			Wrap(err)
	}

	if !s.matches(ctx, refreshToken, stored.TokenHash) {
		return "", oops.Code(CodeTokenMismatch).
			With("user_id", userID.String()).
			Wrap(ErrTokenMismatch)
	}

	accessToken, err := s.signer.Issue(PurposeAccess, userID)
	if err != nil {
		return "", oops.Code("AUTH_REFRESH_FAILED").
			With("operation", "issue access token").
			Wrap(err)
	}
	return accessToken, nil
}

// Logout deletes the refresh tokens of the user the token belongs to.
// It never fails from the caller's point of view: a missing, unverifiable or
// already-revoked token leaves nothing to invalidate.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}

	userID, err := s.signer.Verify(PurposeRefresh, refreshToken)
	if err != nil {
		s.logger.DebugContext(ctx, "logout with unverifiable refresh token", "code", ErrorCode(err))
		return
	}

	if err := s.tokens.DeleteByUser(ctx, userID, TokenKindRefresh); err != nil {
		s.logger.WarnContext(ctx, "failed to delete refresh tokens on logout",
			"user_id", userID.String(),
			"error", err,
		)
		return
	}

	s.logger.InfoContext(ctx, "user logged out", "user_id", userID.String())
}

// ChangePassword replaces the user's password and ends all their sessions.
func (s *SessionService) ChangePassword(ctx context.Context, userID ulid.ULID, oldPassword, newPassword string) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}

	if !s.matches(ctx, oldPassword, user.PasswordHash) {
		return oops.Code(CodeIncorrectOldPassword).
			With("user_id", userID.String()).
			Wrap(ErrIncorrectOldPassword)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "update password").
			With("user_id", userID.String()).
			Wrap(err)
	}

	if err := s.tokens.DeleteByUser(ctx, userID, TokenKindRefresh); err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "delete refresh tokens").
			With("user_id", userID.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "password changed", "user_id", userID.String())
	return nil
}

// Profile returns the public view of a user.
func (s *SessionService) Profile(ctx context.Context, userID ulid.ULID) (PublicUser, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return PublicUser{}, err
	}
	return user.Public(), nil
}

// Authenticate verifies an access token and returns the user id it was issued for.
func (s *SessionService) Authenticate(_ context.Context, accessToken string) (ulid.ULID, error) {
	if accessToken == "" {
		return ulid.ULID{}, oops.Code(CodeTokenMissing).Wrap(ErrTokenMissing)
	}
	return s.signer.Verify(PurposeAccess, accessToken)
}

// RefreshLifetime returns how long an issued refresh token is valid.
func (s *SessionService) RefreshLifetime() time.Duration {
	return s.signer.Lifetime(PurposeRefresh)
}

func (s *SessionService) getUser(ctx context.Context, userID ulid.ULID) (*User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeUserNotFound).
				With("user_id", userID.String()).
				Wrap(ErrUserNotFound)
		}
		return nil, oops.Code("AUTH_GET_USER_FAILED").
			With("operation", "get user by id").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return user, nil
}

// matches verifies secret against hash, treating a malformed hash as a mismatch.
func (s *SessionService) matches(ctx context.Context, secret, hash string) bool {
	ok, err := s.hasher.Verify(secret, hash)
	if err != nil {
		s.logger.WarnContext(ctx, "stored hash could not be verified", "error", err)
		return false
	}
	return ok
}

// upgradeHash re-hashes a legacy password hash. Failures are logged; login proceeds.
func (s *SessionService) upgradeHash(ctx context.Context, user *User, password string) {
	if !s.hasher.NeedsUpgrade(user.PasswordHash) {
		return
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to upgrade password hash", "user_id", user.ID.String(), "error", err)
		return
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		s.logger.WarnContext(ctx, "failed to persist upgraded password hash", "user_id", user.ID.String(), "error", err)
		return
	}
	user.PasswordHash = hash
}
