// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

// Package mocks provides a testify mock of todo.Repository.
package mocks

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/taskvault/taskvault/internal/todo"
)

// MockRepository mocks todo.Repository.
type MockRepository struct {
	mock.Mock
}

// NewMockRepository creates a MockRepository whose expectations are
// asserted when t finishes.
func NewMockRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockRepository {
	m := &MockRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockRepository) Create(ctx context.Context, item *todo.Todo) error {
	return m.Called(ctx, item).Error(0)
}

func (m *MockRepository) List(ctx context.Context, userID ulid.ULID, sort todo.Sort) ([]*todo.Todo, error) {
	args := m.Called(ctx, userID, sort)
	todos, _ := args.Get(0).([]*todo.Todo)
	return todos, args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, userID, id ulid.ULID, patch todo.Patch) (*todo.Todo, error) {
	args := m.Called(ctx, userID, id, patch)
	item, _ := args.Get(0).(*todo.Todo)
	return item, args.Error(1)
}

func (m *MockRepository) Delete(ctx context.Context, userID, id ulid.ULID) error {
	return m.Called(ctx, userID, id).Error(0)
}

var _ todo.Repository = (*MockRepository)(nil)
