// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

// Package postgres implements todo.Repository on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/taskvault/taskvault/internal/store"
	"github.com/taskvault/taskvault/internal/todo"
)

const todoColumns = `id, user_id, task, completed, due_date, created_at, updated_at`

// orderColumns maps sort fields to SQL columns. Only these values are ever
// interpolated into a query.
var orderColumns = map[todo.SortField]string{
	todo.SortCreatedAt: "created_at",
	todo.SortUpdatedAt: "updated_at",
	todo.SortDueDate:   "due_date",
	todo.SortTask:      "task",
}

// Repository implements todo.Repository using PostgreSQL.
type Repository struct {
	db  store.DB
	now func() time.Time
}

// NewRepository creates a new Repository.
func NewRepository(db store.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Create inserts a todo.
func (r *Repository) Create(ctx context.Context, t *todo.Todo) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO todos (`+todoColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		t.ID.String(),
		t.UserID.String(),
		t.Task,
		t.Completed,
		t.DueDate,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return oops.Code("TODO_CREATE_FAILED").
			With("operation", "insert todo").
			With("todo_id", t.ID.String()).
			Wrap(err)
	}
	return nil
}

// List returns the user's todos in the requested order. Ties are broken by id.
func (r *Repository) List(ctx context.Context, userID ulid.ULID, sort todo.Sort) ([]*todo.Todo, error) {
	column, ok := orderColumns[sort.Field]
	if !ok {
		return nil, oops.Code(todo.CodeInvalidSort).With("field", string(sort.Field)).Wrap(todo.ErrInvalidSort)
	}
	dir := "ASC"
	if sort.Desc {
		dir = "DESC"
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+todoColumns+`
		FROM todos
		WHERE user_id = $1
		ORDER BY `+column+` `+dir+` NULLS LAST, id `+dir,
		userID.String(),
	)
	if err != nil {
		return nil, oops.Code("TODO_LIST_FAILED").
			With("operation", "list todos").
			With("user_id", userID.String()).
			Wrap(err)
	}
	defer rows.Close()

	todos := []*todo.Todo{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, oops.Code("TODO_LIST_FAILED").
				With("operation", "scan todo").
				With("user_id", userID.String()).
				Wrap(err)
		}
		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("TODO_LIST_FAILED").
			With("operation", "iterate todos").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return todos, nil
}

// Update applies the non-nil fields of patch to a todo owned by userID.
func (r *Repository) Update(ctx context.Context, userID, id ulid.ULID, patch todo.Patch) (*todo.Todo, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE todos SET
			task = COALESCE($3, task),
			completed = COALESCE($4, completed),
			due_date = COALESCE($5, due_date),
			updated_at = $6
		WHERE id = $1 AND user_id = $2
		RETURNING `+todoColumns,
		id.String(),
		userID.String(),
		patch.Task,
		patch.Completed,
		patch.DueDate,
		r.now(),
	)

	t, err := scanTodo(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code(todo.CodeNotFound).
			With("todo_id", id.String()).
			Wrap(todo.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TODO_UPDATE_FAILED").
			With("operation", "update todo").
			With("todo_id", id.String()).
			Wrap(err)
	}
	return t, nil
}

// Delete removes a todo owned by userID.
func (r *Repository) Delete(ctx context.Context, userID, id ulid.ULID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM todos WHERE id = $1 AND user_id = $2`, id.String(), userID.String())
	if err != nil {
		return oops.Code("TODO_DELETE_FAILED").
			With("operation", "delete todo").
			With("todo_id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code(todo.CodeNotFound).
			With("todo_id", id.String()).
			Wrap(todo.ErrNotFound)
	}
	return nil
}

// scanTodo scans one row. pgx.ErrNoRows is returned unwrapped.
func scanTodo(row pgx.Row) (*todo.Todo, error) {
	var (
		idStr, userIDStr string
		t                todo.Todo
	)
	if err := row.Scan(&idStr, &userIDStr, &t.Task, &t.Completed, &t.DueDate, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}

	var err error
	if t.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("TODO_INVALID_ID").With("id", idStr).Wrap(err)
	}
	if t.UserID, err = ulid.Parse(userIDStr); err != nil {
		return nil, oops.Code("TODO_INVALID_ID").With("user_id", userIDStr).Wrap(err)
	}
	return &t, nil
}

var _ todo.Repository = (*Repository)(nil)
