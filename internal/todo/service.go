// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

package todo

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Service validates todo operations and delegates to a Repository.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new Service.
func NewService(repo Repository, logger *slog.Logger) (*Service, error) {
	if repo == nil {
		return nil, oops.Code("SERVICE_INVALID_DEPS").Errorf("todo repository is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}, nil
}

// Create adds a todo for userID.
func (s *Service) Create(ctx context.Context, userID ulid.ULID, task string, dueDate *time.Time) (*Todo, error) {
	t, err := NewTodo(userID, task, dueDate)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, oops.Code("TODO_CREATE_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	s.logger.DebugContext(ctx, "todo created", "user_id", userID.String(), "todo_id", t.ID.String())
	return t, nil
}

// List returns the todos of userID ordered by sortSpec ("field:dir").
func (s *Service) List(ctx context.Context, userID ulid.ULID, sortSpec string) ([]*Todo, error) {
	sort, err := ParseSort(sortSpec)
	if err != nil {
		return nil, err
	}
	todos, err := s.repo.List(ctx, userID, sort)
	if err != nil {
		return nil, oops.Code("TODO_LIST_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	if todos == nil {
		todos = []*Todo{}
	}
	return todos, nil
}

// Update applies patch to a todo owned by userID.
func (s *Service) Update(ctx context.Context, userID, id ulid.ULID, patch Patch) (*Todo, error) {
	if patch.IsEmpty() {
		return nil, oops.Code(CodeEmptyPatch).Wrap(ErrEmptyPatch)
	}
	if patch.Task != nil && strings.TrimSpace(*patch.Task) == "" {
		return nil, oops.Code(CodeInvalidTodo).With("field", "task").Wrap(ErrInvalidTodo)
	}

	t, err := s.repo.Update(ctx, userID, id, patch)
	if err != nil {
		return nil, s.wrapOwned(err, "TODO_UPDATE_FAILED", userID, id)
	}
	return t, nil
}

// Delete removes a todo owned by userID.
func (s *Service) Delete(ctx context.Context, userID, id ulid.ULID) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return s.wrapOwned(err, "TODO_DELETE_FAILED", userID, id)
	}
	s.logger.DebugContext(ctx, "todo deleted", "user_id", userID.String(), "todo_id", id.String())
	return nil
}

func (s *Service) wrapOwned(err error, code string, userID, id ulid.ULID) error {
	if errors.Is(err, ErrNotFound) {
		return oops.Code(CodeNotFound).
			With("todo_id", id.String()).
			Wrap(ErrNotFound)
	}
	return oops.Code(code).
		With("user_id", userID.String()).
		With("todo_id", id.String()).
		Wrap(err)
}
