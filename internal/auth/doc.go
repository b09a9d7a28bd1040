// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

// Package auth provides credential and session lifecycle primitives for TaskVault.
//
// # Domain Types
//
// Domain types should be created using their constructors:
//   - NewUser - creates a User with validated email and password hash
//   - NewSessionToken - creates a stored REFRESH or RESET token row
//
// Stored tokens are always hashed with the PasswordHasher; the plaintext
// signed token only ever leaves the process (cookie, response body, email).
//
// # Services
//
// Service types coordinate domain operations:
//   - SessionService - register, login, refresh, logout, password change
//   - PasswordResetService - forgot-password and reset-password flow
//
// A user holds at most one REFRESH row and one RESET row. Login replaces the
// REFRESH row; refresh never rotates it; logout, password change and
// password reset delete it.
//
// Failures callers are expected to handle are exposed as sentinel errors
// (ErrInvalidCredentials, ErrTokenMismatch, ...) wrapped in oops errors with
// a matching code. Use errors.Is to classify them.
package auth
