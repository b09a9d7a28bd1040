// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Caller-mappable failures. Services wrap these in oops errors carrying the
// matching code, so both errors.Is and the code identify the kind.
var (
	ErrDuplicateEmail           = errors.New("user with this email already exists")
	ErrInvalidCredentials       = errors.New("invalid email or password")
	ErrTokenMissing             = errors.New("token not provided")
	ErrExpiredToken             = errors.New("token expired")
	ErrMalformedToken           = errors.New("invalid token")
	ErrTokenNotFound            = errors.New("refresh token not found")
	ErrTokenMismatch            = errors.New("refresh token is mismatched")
	ErrUserNotFound             = errors.New("user not found")
	ErrIncorrectOldPassword     = errors.New("incorrect old password")
	ErrResetEmailDeliveryFailed = errors.New("could not send password reset email")
	ErrInvalidResetToken        = errors.New("invalid or expired password reset token")
	ErrResetTokenNotFound       = errors.New("password reset token not found")
	ErrResetTokenMismatch       = errors.New("reset token is mismatched")
	ErrInvalidDurationUnit      = errors.New("invalid duration unit")
	ErrInvalidDurationValue     = errors.New("invalid duration value")
)

// Error codes attached to the errors above.
const (
	CodeDuplicateEmail           = "AUTH_DUPLICATE_EMAIL"
	CodeInvalidCredentials       = "AUTH_INVALID_CREDENTIALS"
	CodeTokenMissing             = "AUTH_TOKEN_MISSING"
	CodeExpiredToken             = "AUTH_TOKEN_EXPIRED"
	CodeMalformedToken           = "AUTH_TOKEN_MALFORMED"
	CodeTokenNotFound            = "AUTH_TOKEN_NOT_FOUND"
	CodeTokenMismatch            = "AUTH_TOKEN_MISMATCH"
	CodeUserNotFound             = "AUTH_USER_NOT_FOUND"
	CodeIncorrectOldPassword     = "AUTH_INCORRECT_OLD_PASSWORD"
	CodeResetEmailDeliveryFailed = "RESET_EMAIL_DELIVERY_FAILED"
	CodeInvalidResetToken        = "RESET_TOKEN_INVALID"
	CodeResetTokenNotFound       = "RESET_TOKEN_NOT_FOUND"
	CodeResetTokenMismatch       = "RESET_TOKEN_MISMATCH"
	CodeInvalidDurationUnit      = "DURATION_INVALID_UNIT"
	CodeInvalidDurationValue     = "DURATION_INVALID_VALUE"
)

// ErrorCode returns the oops code carried by err, or "" if there is none.
func ErrorCode(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := any(oopsErr.Code()).(string)
	return code
}
