// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

// Package todotest provides an in-memory todo.Repository for tests.
package todotest

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/taskvault/taskvault/internal/todo"
)

// Store is an in-memory todo.Repository.
type Store struct {
	mu    sync.Mutex
	todos map[ulid.ULID]todo.Todo
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{todos: make(map[ulid.ULID]todo.Todo)}
}

// Create stores a copy of t.
func (s *Store) Create(_ context.Context, t *todo.Todo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.todos[t.ID] = *t
	return nil
}

// List returns copies of the user's todos in the requested order.
func (s *Store) List(_ context.Context, userID ulid.ULID, sort todo.Sort) ([]*todo.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []*todo.Todo{}
	for _, t := range s.todos {
		if t.UserID == userID {
			tc := t
			out = append(out, &tc)
		}
	}

	slices.SortFunc(out, func(a, b *todo.Todo) int {
		c := compare(a, b, sort.Field)
		if c == 0 {
			c = strings.Compare(a.ID.String(), b.ID.String())
		}
		if sort.Desc {
			return -c
		}
		return c
	})
	return out, nil
}

func compare(a, b *todo.Todo, field todo.SortField) int {
	switch field {
	case todo.SortTask:
		return strings.Compare(a.Task, b.Task)
	case todo.SortUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case todo.SortDueDate:
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return 0
		case a.DueDate == nil:
			return 1
		case b.DueDate == nil:
			return -1
		}
		return a.DueDate.Compare(*b.DueDate)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

// Update applies patch to a todo owned by userID.
func (s *Store) Update(_ context.Context, userID, id ulid.ULID, patch todo.Patch) (*todo.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.todos[id]
	if !ok || t.UserID != userID {
		return nil, todo.ErrNotFound
	}
	if patch.Task != nil {
		t.Task = *patch.Task
	}
	if patch.Completed != nil {
		t.Completed = *patch.Completed
	}
	if patch.DueDate != nil {
		due := *patch.DueDate
		t.DueDate = &due
	}
	t.UpdatedAt = time.Now()
	s.todos[id] = t
	return &t, nil
}

// Delete removes a todo owned by userID.
func (s *Store) Delete(_ context.Context, userID, id ulid.ULID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.todos[id]
	if !ok || t.UserID != userID {
		return todo.ErrNotFound
	}
	delete(s.todos, id)
	return nil
}

// Len returns the number of stored todos across all users.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.todos)
}

var _ todo.Repository = (*Store)(nil)
