// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

package auth_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskvault/taskvault/internal/auth"
	"github.com/taskvault/taskvault/pkg/errutil"
)

func TestNewSessionToken(t *testing.T) {
	userID := ulid.Make()
	expires := time.Now().Add(time.Hour)

	t.Run("valid", func(t *testing.T) {
		tok, err := auth.NewSessionToken(userID, "hash", auth.TokenKindRefresh, expires)
		require.NoError(t, err)
		assert.Equal(t, userID, tok.UserID)
		assert.Equal(t, auth.TokenKindRefresh, tok.Kind)
		assert.NotEqual(t, ulid.ULID{}, tok.ID)
		assert.False(t, tok.IsExpiredAt(time.Now()))
		assert.True(t, tok.IsExpiredAt(expires))
	})

	tests := []struct {
		name    string
		userID  ulid.ULID
		hash    string
		kind    auth.TokenKind
		expires time.Time
		code    string
	}{
		{"zero user", ulid.ULID{}, "hash", auth.TokenKindReset, expires, "TOKEN_INVALID_USER"},
		{"empty hash", userID, "", auth.TokenKindReset, expires, "TOKEN_INVALID_HASH"},
		{"unknown kind", userID, "hash", "ACCESS", expires, "TOKEN_INVALID_KIND"},
		{"zero expiry", userID, "hash", auth.TokenKindReset, time.Time{}, "TOKEN_INVALID_EXPIRY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := auth.NewSessionToken(tt.userID, tt.hash, tt.kind, tt.expires)
			require.Error(t, err)
			assert.Nil(t, tok)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestNewUser(t *testing.T) {
	user, err := auth.NewUser("a@example.com", "hash", nil)
	require.NoError(t, err)
	assert.Equal(t, user.CreatedAt, user.UpdatedAt)

	_, err = auth.NewUser("", "hash", nil)
	errutil.AssertErrorCode(t, err, "USER_INVALID_EMAIL")
	_, err = auth.NewUser("a@example.com", "", nil)
	errutil.AssertErrorCode(t, err, "USER_INVALID_HASH")
}

func TestUser_PublicOmitsHash(t *testing.T) {
	name := "Alice"
	user, err := auth.NewUser("a@example.com", "$argon2id$secret", &name)
	require.NoError(t, err)

	data, err := json.Marshal(user.Public())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "argon2id")
	assert.Contains(t, string(data), `"email":"a@example.com"`)
	assert.Contains(t, string(data), `"name":"Alice"`)

	user.Name = nil
	data, err = json.Marshal(user.Public())
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"name"`)
}
