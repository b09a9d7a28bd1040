// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

// Package mocks provides testify mocks of the auth interfaces.
//
// Each constructor registers AssertExpectations as a test cleanup, so an
// expectation set with On that is never met fails the test.
package mocks

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/taskvault/taskvault/internal/auth"
)

// TestingT is the part of *testing.T the constructors need.
type TestingT interface {
	mock.TestingT
	Cleanup(func())
}

func register(t TestingT, m *mock.Mock) {
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
}

// MockUserRepository mocks auth.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

// NewMockUserRepository creates a MockUserRepository bound to t.
func NewMockUserRepository(t TestingT) *MockUserRepository {
	m := &MockUserRepository{}
	register(t, &m.Mock)
	return m
}

func (m *MockUserRepository) Create(ctx context.Context, user *auth.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

// MockTokenRepository mocks auth.TokenRepository.
type MockTokenRepository struct {
	mock.Mock
}

// NewMockTokenRepository creates a MockTokenRepository bound to t.
func NewMockTokenRepository(t TestingT) *MockTokenRepository {
	m := &MockTokenRepository{}
	register(t, &m.Mock)
	return m
}

func (m *MockTokenRepository) Create(ctx context.Context, token *auth.SessionToken) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockTokenRepository) FindValid(ctx context.Context, userID ulid.ULID, kind auth.TokenKind) (*auth.SessionToken, error) {
	args := m.Called(ctx, userID, kind)
	token, _ := args.Get(0).(*auth.SessionToken)
	return token, args.Error(1)
}

func (m *MockTokenRepository) Delete(ctx context.Context, id ulid.ULID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockTokenRepository) DeleteByUser(ctx context.Context, userID ulid.ULID, kind auth.TokenKind) error {
	return m.Called(ctx, userID, kind).Error(0)
}

func (m *MockTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

// MockPasswordHasher mocks auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a MockPasswordHasher bound to t.
func NewMockPasswordHasher(t TestingT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	register(t, &m.Mock)
	return m
}

func (m *MockPasswordHasher) Hash(secret string) (string, error) {
	args := m.Called(secret)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(secret, hash string) (bool, error) {
	args := m.Called(secret, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	return m.Called(hash).Bool(0)
}

// MockResetMailer mocks auth.ResetMailer.
type MockResetMailer struct {
	mock.Mock
}

// NewMockResetMailer creates a MockResetMailer bound to t.
func NewMockResetMailer(t TestingT) *MockResetMailer {
	m := &MockResetMailer{}
	register(t, &m.Mock)
	return m
}

func (m *MockResetMailer) SendPasswordResetEmail(ctx context.Context, to, token string) error {
	return m.Called(ctx, to, token).Error(0)
}

var (
	_ auth.UserRepository  = (*MockUserRepository)(nil)
	_ auth.TokenRepository = (*MockTokenRepository)(nil)
	_ auth.PasswordHasher  = (*MockPasswordHasher)(nil)
	_ auth.ResetMailer     = (*MockResetMailer)(nil)
)
