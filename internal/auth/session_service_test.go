// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

package auth_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskvault/taskvault/internal/auth"
	"github.com/taskvault/taskvault/internal/auth/authtest"
	"github.com/taskvault/taskvault/internal/auth/mocks"
	"github.com/taskvault/taskvault/pkg/errutil"
)

type sessionFixture struct {
	svc    *auth.SessionService
	users  *authtest.UserStore
	tokens *authtest.TokenStore
	signer *auth.TokenSigner
	clock  *testClock
	hasher auth.PasswordHasher
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	clock := newTestClock()
	f := &sessionFixture{
		users:  authtest.NewUserStore(),
		tokens: authtest.NewTokenStore(),
		signer: newTestSigner(t, clock),
		clock:  clock,
		hasher: auth.NewArgon2idHasherWithParams(cheapParams),
	}
	f.tokens.SetClock(clock.Now)

	svc, err := auth.NewSessionService(f.users, f.tokens, f.hasher, f.signer, nil)
	require.NoError(t, err)
	svc.SetClock(clock.Now)
	f.svc = svc
	return f
}

func (f *sessionFixture) registerAndLogin(t *testing.T, email, password string) (auth.PublicUser, *auth.TokenPair) {
	t.Helper()
	ctx := context.Background()
	user, err := f.svc.Register(ctx, email, password, nil)
	require.NoError(t, err)
	pair, err := f.svc.Login(ctx, email, password)
	require.NoError(t, err)
	return user, pair
}

func TestNewSessionService_NilDependencies(t *testing.T) {
	signer := newTestSigner(t, nil)
	tests := []struct {
		name        string
		users       auth.UserRepository
		tokens      auth.TokenRepository
		hasher      auth.PasswordHasher
		signer      *auth.TokenSigner
		expectError string
	}{
		{"nil user repository", nil, mocks.NewMockTokenRepository(t), mocks.NewMockPasswordHasher(t), signer, "user repository is required"},
		{"nil token repository", mocks.NewMockUserRepository(t), nil, mocks.NewMockPasswordHasher(t), signer, "token repository is required"},
		{"nil password hasher", mocks.NewMockUserRepository(t), mocks.NewMockTokenRepository(t), nil, signer, "password hasher is required"},
		{"nil token signer", mocks.NewMockUserRepository(t), mocks.NewMockTokenRepository(t), mocks.NewMockPasswordHasher(t), nil, "token signer is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := auth.NewSessionService(tt.users, tt.tokens, tt.hasher, tt.signer, nil)
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.expectError)
			errutil.AssertErrorCode(t, err, "SERVICE_INVALID_DEPS")
		})
	}
}

func TestSessionService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("stores a hashed password and returns the public view", func(t *testing.T) {
		f := newSessionFixture(t)
		name := "Alice"
		user, err := f.svc.Register(ctx, "alice@example.com", "secret1", &name)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", user.Email)
		require.NotNil(t, user.Name)
		assert.Equal(t, "Alice", *user.Name)

		stored, err := f.users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.NotEqual(t, "secret1", stored.PasswordHash)
		ok, err := f.hasher.Verify("secret1", stored.PasswordHash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("duplicate email", func(t *testing.T) {
		f := newSessionFixture(t)
		_, err := f.svc.Register(ctx, "bob@example.com", "secret1", nil)
		require.NoError(t, err)

		_, err = f.svc.Register(ctx, "bob@example.com", "other12", nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, auth.ErrDuplicateEmail))
		errutil.AssertErrorCode(t, err, auth.CodeDuplicateEmail)
	})

	t.Run("email comparison is case-sensitive", func(t *testing.T) {
		f := newSessionFixture(t)
		_, err := f.svc.Register(ctx, "carol@example.com", "secret1", nil)
		require.NoError(t, err)
		_, err = f.svc.Register(ctx, "Carol@example.com", "secret1", nil)
		require.NoError(t, err)
	})

	t.Run("duplicate detected at insert", func(t *testing.T) {
		users := mocks.NewMockUserRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewSessionService(users, mocks.NewMockTokenRepository(t), hasher, newTestSigner(t, nil), nil)
		require.NoError(t, err)

		users.On("GetByEmail", ctx, "race@example.com").Return(nil, auth.ErrNotFound)
		hasher.On("Hash", "secret1").Return("hashed", nil)
		users.On("Create", ctx, mock.AnythingOfType("*auth.User")).Return(auth.ErrDuplicateEmail)

		_, err = svc.Register(ctx, "race@example.com", "secret1", nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, auth.ErrDuplicateEmail))
		errutil.AssertErrorCode(t, err, auth.CodeDuplicateEmail)
	})

	t.Run("repository failure is internal", func(t *testing.T) {
		users := mocks.NewMockUserRepository(t)
		svc, err := auth.NewSessionService(users, mocks.NewMockTokenRepository(t), mocks.NewMockPasswordHasher(t), newTestSigner(t, nil), nil)
		require.NoError(t, err)

		users.On("GetByEmail", ctx, "x@example.com").Return(nil, errors.New("connection reset"))

		_, err = svc.Register(ctx, "x@example.com", "secret1", nil)
		require.Error(t, err)
		assert.False(t, errors.Is(err, auth.ErrDuplicateEmail))
		errutil.AssertErrorCode(t, err, "AUTH_REGISTER_FAILED")
		errutil.AssertErrorContext(t, err, "operation", "get user by email")
	})

	t.Run("password is never logged", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		svc, err := auth.NewSessionService(authtest.NewUserStore(), authtest.NewTokenStore(),
			authtest.PlainHasher{}, newTestSigner(t, nil), logger)
		require.NoError(t, err)

		_, err = svc.Register(ctx, "dave@example.com", "hunter2-very-secret", nil)
		require.NoError(t, err)
		_, err = svc.Login(ctx, "dave@example.com", "hunter2-very-secret")
		require.NoError(t, err)

		assert.Contains(t, buf.String(), "user registered")
		assert.NotContains(t, buf.String(), "hunter2-very-secret")
	})
}

func TestSessionService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("returns tokens whose subject is the user id", func(t *testing.T) {
		f := newSessionFixture(t)
		user, pair := f.registerAndLogin(t, "alice@example.com", "secret1")

		accessSubject, err := f.signer.Verify(auth.PurposeAccess, pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID, accessSubject)

		refreshSubject, err := f.signer.Verify(auth.PurposeRefresh, pair.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID, refreshSubject)
	})

	t.Run("stores exactly one hashed refresh row", func(t *testing.T) {
		f := newSessionFixture(t)
		user, pair := f.registerAndLogin(t, "alice@example.com", "secret1")

		rows := f.tokens.Tokens(user.ID, auth.TokenKindRefresh)
		require.Len(t, rows, 1)
		assert.NotEqual(t, pair.RefreshToken, rows[0].TokenHash)
		ok, err := f.hasher.Verify(pair.RefreshToken, rows[0].TokenHash)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, f.clock.Now().Add(7*24*time.Hour), rows[0].ExpiresAt)
	})

	t.Run("second login replaces the refresh row", func(t *testing.T) {
		f := newSessionFixture(t)
		user, first := f.registerAndLogin(t, "alice@example.com", "secret1")

		second, err := f.svc.Login(ctx, "alice@example.com", "secret1")
		require.NoError(t, err)
		assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

		rows := f.tokens.Tokens(user.ID, auth.TokenKindRefresh)
		require.Len(t, rows, 1)
		ok, err := f.hasher.Verify(second.RefreshToken, rows[0].TokenHash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		f := newSessionFixture(t)
		_, err := f.svc.Register(ctx, "alice@example.com", "secret1", nil)
		require.NoError(t, err)

		_, wrongPassword := f.svc.Login(ctx, "alice@example.com", "nope")
		_, unknownEmail := f.svc.Login(ctx, "nobody@example.com", "secret1")

		require.Error(t, wrongPassword)
		require.Error(t, unknownEmail)
		assert.True(t, errors.Is(wrongPassword, auth.ErrInvalidCredentials))
		assert.True(t, errors.Is(unknownEmail, auth.ErrInvalidCredentials))
		assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
		assert.Equal(t, auth.ErrorCode(wrongPassword), auth.ErrorCode(unknownEmail))
	})

	t.Run("unknown email still runs a hash comparison", func(t *testing.T) {
		users := mocks.NewMockUserRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewSessionService(users, mocks.NewMockTokenRepository(t), hasher, newTestSigner(t, nil), nil)
		require.NoError(t, err)

		users.On("GetByEmail", ctx, "ghost@example.com").Return(nil, auth.ErrNotFound)
		hasher.On("Verify", "pw", auth.DummyPasswordHash).Return(false, nil)

		_, err = svc.Login(ctx, "ghost@example.com", "pw")
		assert.True(t, errors.Is(err, auth.ErrInvalidCredentials))
	})

	t.Run("malformed stored hash is treated as mismatch", func(t *testing.T) {
		f := newSessionFixture(t)
		f.users.Put(auth.User{ID: ulid.Make(), Email: "broken@example.com", PasswordHash: "garbage"})

		_, err := f.svc.Login(ctx, "broken@example.com", "whatever")
		assert.True(t, errors.Is(err, auth.ErrInvalidCredentials))
	})

	t.Run("legacy bcrypt hash is upgraded", func(t *testing.T) {
		f := newSessionFixture(t)
		legacy, err := bcrypt.GenerateFromPassword([]byte("oldschool"), bcrypt.MinCost)
		require.NoError(t, err)
		id := ulid.Make()
		f.users.Put(auth.User{ID: id, Email: "legacy@example.com", PasswordHash: string(legacy)})

		_, err = f.svc.Login(ctx, "legacy@example.com", "oldschool")
		require.NoError(t, err)

		stored, err := f.users.GetByID(ctx, id)
		require.NoError(t, err)
		assert.False(t, f.hasher.NeedsUpgrade(stored.PasswordHash))

		_, err = f.svc.Login(ctx, "legacy@example.com", "oldschool")
		require.NoError(t, err)
	})

	t.Run("token store failure is internal", func(t *testing.T) {
		users := mocks.NewMockUserRepository(t)
		tokens := mocks.NewMockTokenRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewSessionService(users, tokens, hasher, newTestSigner(t, nil), nil)
		require.NoError(t, err)

		user := &auth.User{ID: ulid.Make(), Email: "a@example.com", PasswordHash: "h"}
		users.On("GetByEmail", ctx, "a@example.com").Return(user, nil)
		hasher.On("Verify", "pw", "h").Return(true, nil)
		hasher.On("NeedsUpgrade", "h").Return(false)
		hasher.On("Hash", mock.AnythingOfType("string")).Return("token-hash", nil)
		tokens.On("DeleteByUser", ctx, user.ID, auth.TokenKindRefresh).Return(nil)
		tokens.On("Create", ctx, mock.AnythingOfType("*auth.SessionToken")).Return(errors.New("disk full"))

		pair, err := svc.Login(ctx, "a@example.com", "pw")
		require.Error(t, err)
		assert.Nil(t, pair)
		errutil.AssertErrorCode(t, err, "AUTH_SESSION_CREATE_FAILED")
		errutil.AssertErrorContext(t, err, "operation", "persist refresh token")
	})
}

func TestSessionService_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a new access token for the same user", func(t *testing.T) {
		f := newSessionFixture(t)
		user, pair := f.registerAndLogin(t, "alice@example.com", "secret1")

		access, err := f.svc.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		subject, err := f.signer.Verify(auth.PurposeAccess, access)
		require.NoError(t, err)
		assert.Equal(t, user.ID, subject)
	})

	t.Run("does not touch the stored row", func(t *testing.T) {
		f := newSessionFixture(t)
		user, pair := f.registerAndLogin(t, "alice@example.com", "secret1")
		before := f.tokens.Tokens(user.ID, auth.TokenKindRefresh)

		f.clock.Advance(time.Hour)
		_, err := f.svc.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)

		after := f.tokens.Tokens(user.ID, auth.TokenKindRefresh)
		require.Len(t, after, 1)
		assert.Equal(t, before[0].ID, after[0].ID)
		assert.Equal(t, before[0].TokenHash, after[0].TokenHash)
		assert.Equal(t, before[0].ExpiresAt, after[0].ExpiresAt)
	})

	t.Run("missing token", func(t *testing.T) {
		f := newSessionFixture(t)
		_, err := f.svc.Refresh(ctx, "")
		assert.True(t, errors.Is(err, auth.ErrTokenMissing))
		errutil.AssertErrorCode(t, err, auth.CodeTokenMissing)
	})

	t.Run("malformed token", func(t *testing.T) {
		f := newSessionFixture(t)
		_, err := f.svc.Refresh(ctx, "junk")
		assert.True(t, errors.Is(err, auth.ErrMalformedToken))
	})

	t.Run("access token is not accepted as refresh token", func(t *testing.T) {
		f := newSessionFixture(t)
		_, pair := f.registerAndLogin(t, "alice@example.com", "secret1")
		_, err := f.svc.Refresh(ctx, pair.AccessToken)
		assert.True(t, errors.Is(err, auth.ErrMalformedToken))
	})

	t.Run("expired token", func(t *testing.T) {
		f := newSessionFixture(t)
		_, pair := f.registerAndLogin(t, "alice@example.com", "secret1")
		f.clock.Advance(8 * 24 * time.Hour)

		_, err := f.svc.Refresh(ctx, pair.RefreshToken)
		assert.True(t, errors.Is(err, auth.ErrExpiredToken))
		errutil.AssertErrorCode(t, err, auth.CodeExpiredToken)
	})

	t.Run("superseded token is a mismatch", func(t *testing.T) {
		f := newSessionFixture(t)
		_, first := f.registerAndLogin(t, "alice@example.com", "secret1")
		_, err := f.svc.Login(ctx, "alice@example.com", "secret1")
		require.NoError(t, err)

		_, err = f.svc.Refresh(ctx, first.RefreshToken)
		require.Error(t, err)
		assert.True(t, errors.Is(err, auth.ErrTokenMismatch))
		errutil.AssertErrorCode(t, err, auth.CodeTokenMismatch)
	})

	t.Run("validly signed token without a row is not found", func(t *testing.T) {
		f := newSessionFixture(t)
		forged, err := f.signer.Issue(auth.PurposeRefresh, ulid.Make())
		require.NoError(t, err)

		_, err = f.svc.Refresh(ctx, forged)
		assert.True(t, errors.Is(err, auth.ErrTokenNotFound))
		errutil.AssertErrorCode(t, err, auth.CodeTokenNotFound)
	})

	t.Run("store failure is internal", func(t *testing.T) {
		tokens := mocks.NewMockTokenRepository(t)
		signer := newTestSigner(t, nil)
		svc, err := auth.NewSessionService(mocks.NewMockUserRepository(t), tokens, mocks.NewMockPasswordHasher(t), signer, nil)
		require.NoError(t, err)

		userID := ulid.Make()
		token, err := signer.Issue(auth.PurposeRefresh, userID)
		require.NoError(t, err)
		tokens.On("FindValid", ctx, userID, auth.TokenKindRefresh).Return(nil, errors.New("timeout"))

		_, err = svc.Refresh(ctx, token)
		require.Error(t, err)
		assert.False(t, errors.Is(err, auth.ErrTokenNotFound))
		errutil.AssertErrorCode(t, err, "AUTH_REFRESH_FAILED")
	})
}

func TestSessionService_Logout(t *testing.T) {
	ctx := context.Background()

	t.Run("without token is a no-op", func(t *testing.T) {
		tokens := mocks.NewMockTokenRepository(t)
		svc, err := auth.NewSessionService(mocks.NewMockUserRepository(t), tokens, mocks.NewMockPasswordHasher(t), newTestSigner(t, nil), nil)
		require.NoError(t, err)

		svc.Logout(ctx, "")
		tokens.AssertNotCalled(t, "DeleteByUser", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("garbage token is ignored", func(t *testing.T) {
		tokens := mocks.NewMockTokenRepository(t)
		svc, err := auth.NewSessionService(mocks.NewMockUserRepository(t), tokens, mocks.NewMockPasswordHasher(t), newTestSigner(t, nil), nil)
		require.NoError(t, err)

		svc.Logout(ctx, "not-a-token")
		tokens.AssertNotCalled(t, "DeleteByUser", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("revokes the session", func(t *testing.T) {
		f := newSessionFixture(t)
		user, pair := f.registerAndLogin(t, "alice@example.com", "secret1")

		f.svc.Logout(ctx, pair.RefreshToken)
		assert.Empty(t, f.tokens.Tokens(user.ID, auth.TokenKindRefresh))

		_, err := f.svc.Refresh(ctx, pair.RefreshToken)
		assert.True(t, errors.Is(err, auth.ErrTokenNotFound))
	})

	t.Run("is idempotent", func(t *testing.T) {
		f := newSessionFixture(t)
		_, pair := f.registerAndLogin(t, "alice@example.com", "secret1")

		f.svc.Logout(ctx, pair.RefreshToken)
		f.svc.Logout(ctx, pair.RefreshToken)
	})

	t.Run("store failure is swallowed", func(t *testing.T) {
		tokens := mocks.NewMockTokenRepository(t)
		signer := newTestSigner(t, nil)
		svc, err := auth.NewSessionService(mocks.NewMockUserRepository(t), tokens, mocks.NewMockPasswordHasher(t), signer, nil)
		require.NoError(t, err)

		userID := ulid.Make()
		token, err := signer.Issue(auth.PurposeRefresh, userID)
		require.NoError(t, err)
		tokens.On("DeleteByUser", ctx, userID, auth.TokenKindRefresh).Return(errors.New("boom"))

		svc.Logout(ctx, token)
	})
}

func TestSessionService_ChangePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		f := newSessionFixture(t)
		user, pair := f.registerAndLogin(t, "alice@example.com", "secret1")

		require.NoError(t, f.svc.ChangePassword(ctx, user.ID, "secret1", "newsecret"))

		assert.Empty(t, f.tokens.Tokens(user.ID, auth.TokenKindRefresh))
		_, err := f.svc.Refresh(ctx, pair.RefreshToken)
		assert.True(t, errors.Is(err, auth.ErrTokenNotFound))

		_, err = f.svc.Login(ctx, "alice@example.com", "secret1")
		assert.True(t, errors.Is(err, auth.ErrInvalidCredentials))
		_, err = f.svc.Login(ctx, "alice@example.com", "newsecret")
		require.NoError(t, err)
	})

	t.Run("incorrect old password", func(t *testing.T) {
		f := newSessionFixture(t)
		user, _ := f.registerAndLogin(t, "alice@example.com", "secret1")

		err := f.svc.ChangePassword(ctx, user.ID, "wrong", "newsecret")
		assert.True(t, errors.Is(err, auth.ErrIncorrectOldPassword))
		errutil.AssertErrorCode(t, err, auth.CodeIncorrectOldPassword)
		assert.Len(t, f.tokens.Tokens(user.ID, auth.TokenKindRefresh), 1)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newSessionFixture(t)
		err := f.svc.ChangePassword(ctx, ulid.Make(), "a", "b")
		assert.True(t, errors.Is(err, auth.ErrUserNotFound))
		errutil.AssertErrorCode(t, err, auth.CodeUserNotFound)
	})

	t.Run("update failure is internal", func(t *testing.T) {
		users := mocks.NewMockUserRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		svc, err := auth.NewSessionService(users, mocks.NewMockTokenRepository(t), hasher, newTestSigner(t, nil), nil)
		require.NoError(t, err)

		user := &auth.User{ID: ulid.Make(), PasswordHash: "old-hash"}
		users.On("GetByID", ctx, user.ID).Return(user, nil)
		hasher.On("Verify", "old", "old-hash").Return(true, nil)
		hasher.On("Hash", "new").Return("new-hash", nil)
		users.On("UpdatePassword", ctx, user.ID, "new-hash").Return(errors.New("boom"))

		err = svc.ChangePassword(ctx, user.ID, "old", "new")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_CHANGE_PASSWORD_FAILED")
		errutil.AssertErrorContext(t, err, "operation", "update password")
	})
}

func TestSessionService_ProfileAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	user, pair := f.registerAndLogin(t, "alice@example.com", "secret1")

	got, err := f.svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got)

	profile, err := f.svc.Profile(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, user, profile)

	_, err = f.svc.Authenticate(ctx, "")
	assert.True(t, errors.Is(err, auth.ErrTokenMissing))

	_, err = f.svc.Authenticate(ctx, pair.RefreshToken)
	assert.True(t, errors.Is(err, auth.ErrMalformedToken))

	_, err = f.svc.Profile(ctx, ulid.Make())
	assert.True(t, errors.Is(err, auth.ErrUserNotFound))

	assert.Equal(t, 7*24*time.Hour, f.svc.RefreshLifetime())
}
