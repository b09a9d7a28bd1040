// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// ResetMailer delivers password reset links.
type ResetMailer interface {
	// SendPasswordResetEmail sends the signed reset token to the given address.
	SendPasswordResetEmail(ctx context.Context, to, token string) error
}

// PasswordResetService handles the forgot-password / reset-password flow.
type PasswordResetService struct {
	users  UserRepository
	tokens TokenRepository
	hasher PasswordHasher
	signer *TokenSigner
	mailer ResetMailer
	logger *slog.Logger
	now    func() time.Time
}

// NewPasswordResetService creates a new PasswordResetService.
func NewPasswordResetService(
	users UserRepository,
	tokens TokenRepository,
	hasher PasswordHasher,
	signer *TokenSigner,
	mailer ResetMailer,
	logger *slog.Logger,
) (*PasswordResetService, error) {
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
	if mailer == nil {
		return nil, oops.Code("SERVICE_INVALID_DEPS").Errorf("mailer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PasswordResetService{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		signer: signer,
		mailer: mailer,
		logger: logger,
		now:    time.Now,
	}, nil
}

// ForgotPassword issues a reset token for the account with the given email
// and mails it. Unknown emails succeed silently so callers cannot test for
// accounts.
func (s *PasswordResetService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.InfoContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	token, err := s.signer.Issue(PurposeReset, user.ID)
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "issue reset token").
			Wrap(err)
	}

	tokenHash, err := s.hasher.Hash(token)
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "hash reset token").
			Wrap(err)
	}

	row, err := NewSessionToken(user.ID, tokenHash, TokenKindReset, s.now().Add(ResetTokenValidity))
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "new session token").
			Wrap(err)
	}

	if err := s.tokens.DeleteByUser(ctx, user.ID, TokenKindReset); err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "delete previous reset tokens").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	if err := s.tokens.Create(ctx, row); err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "persist reset token").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	// The stored row outlives a failed delivery; it expires or is replaced by the next request.
	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, token); err != nil {
		s.logger.ErrorContext(ctx, "failed to send password reset email",
			"user_id", user.ID.String(),
			"error", err,
		)
		return oops.Code(CodeResetEmailDeliveryFailed).
			With("user_id", user.ID.String()).
			With("cause", err.Error()).
			Wrap(ErrResetEmailDeliveryFailed)
	}

	s.logger.InfoContext(ctx, "password reset email sent", "user_id", user.ID.String())
	return nil
}

// ResetPassword consumes a reset token, sets the new password, and ends all
// of the user's sessions.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	userID, err := s.signer.Verify(PurposeReset, token)
	if err != nil {
		return oops.Code(CodeInvalidResetToken).
			With("reason", ErrorCode(err)).
			Wrap(ErrInvalidResetToken)
	}

	stored, err := s.tokens.FindValid(ctx, userID, TokenKindReset)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code(CodeResetTokenNotFound).
				With("user_id", userID.String()).
				Wrap(ErrResetTokenNotFound)
		}
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "find reset token").
			With("user_id", userID.String()).
			Wrap(err)
	}

	ok, err := s.hasher.Verify(token, stored.TokenHash)
	if err != nil {
		s.logger.WarnContext(ctx, "stored reset hash could not be verified", "user_id", userID.String(), "error", err)
	}
	if err != nil || !ok {
		return oops.Code(CodeResetTokenMismatch).
			With("user_id", userID.String()).
			Wrap(ErrResetTokenMismatch)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "update password").
			With("user_id", userID.String()).
			Wrap(err)
	}

	if err := s.tokens.Delete(ctx, stored.ID); err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "delete reset token").
			With("user_id", userID.String()).
			Wrap(err)
	}

	if err := s.tokens.DeleteByUser(ctx, userID, TokenKindRefresh); err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "delete refresh tokens").
			With("user_id", userID.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "password reset completed", "user_id", userID.String())
	return nil
}
