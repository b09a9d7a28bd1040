// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

// Package todo implements per-user task lists.
package todo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Caller-mappable failures.
var (
	ErrNotFound    = errors.New("todo not found")
	ErrInvalidTodo = errors.New("invalid todo")
	ErrInvalidSort = errors.New("invalid sort")
	ErrEmptyPatch  = errors.New("at least one field must be provided for update")
)

// Error codes attached to the errors above.
const (
	CodeNotFound    = "TODO_NOT_FOUND"
	CodeInvalidTodo = "TODO_INVALID"
	CodeInvalidSort = "TODO_INVALID_SORT"
	CodeEmptyPatch  = "TODO_EMPTY_PATCH"
)

// Todo is a single task owned by one user.
type Todo struct {
	ID        ulid.ULID  `json:"id"`
	UserID    ulid.ULID  `json:"userId"`
	Task      string     `json:"task"`
	Completed bool       `json:"completed"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// NewTodo creates an incomplete Todo for userID.
func NewTodo(userID ulid.ULID, task string, dueDate *time.Time) (*Todo, error) {
	if strings.TrimSpace(task) == "" {
		return nil, oops.Code(CodeInvalidTodo).With("field", "task").Wrap(ErrInvalidTodo)
	}
	now := time.Now()
	return &Todo{
		ID:        ulid.Make(),
		UserID:    userID,
		Task:      task,
		DueDate:   dueDate,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Patch holds the fields an update changes. Nil fields are left untouched.
type Patch struct {
	Task      *string
	Completed *bool
	DueDate   *time.Time
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Task == nil && p.Completed == nil && p.DueDate == nil
}

// SortField is a column todos can be ordered by.
type SortField string

// Sortable fields.
const (
	SortCreatedAt SortField = "createdAt"
	SortUpdatedAt SortField = "updatedAt"
	SortDueDate   SortField = "dueDate"
	SortTask      SortField = "task"
)

// Sort orders a listing.
type Sort struct {
	Field SortField
	Desc  bool
}

// DefaultSort lists newest first.
var DefaultSort = Sort{Field: SortCreatedAt, Desc: true}

// ParseSort parses "field" or "field:dir" where dir is asc or desc.
// An empty string yields DefaultSort. A missing dir means ascending.
func ParseSort(s string) (Sort, error) {
	if s == "" {
		return DefaultSort, nil
	}

	field, dir, _ := strings.Cut(s, ":")
	sort := Sort{Field: SortField(field)}
	switch sort.Field {
	case SortCreatedAt, SortUpdatedAt, SortDueDate, SortTask:
	default:
		return Sort{}, oops.Code(CodeInvalidSort).With("field", field).Wrap(ErrInvalidSort)
	}

	switch strings.ToLower(dir) {
	case "", "asc":
	case "desc":
		sort.Desc = true
	default:
		return Sort{}, oops.Code(CodeInvalidSort).With("direction", dir).Wrap(ErrInvalidSort)
	}
	return sort, nil
}

// Repository persists todos. Every method is scoped to the owning user;
// rows of other users behave as if they did not exist.
type Repository interface {
	Create(ctx context.Context, todo *Todo) error

	// List returns all todos of userID in the given order.
	List(ctx context.Context, userID ulid.ULID, sort Sort) ([]*Todo, error)

	// Update applies patch and returns the updated row.
	// Returns ErrNotFound if userID owns no todo with this id.
	Update(ctx context.Context, userID, id ulid.ULID, patch Patch) (*Todo, error)

	// Delete removes the todo.
	// Returns ErrNotFound if userID owns no todo with this id.
	Delete(ctx context.Context, userID, id ulid.ULID) error
}
