// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/taskvault/taskvault/internal/todo"
)

func todoID(r *http.Request) (ulid.ULID, error) {
	id, err := ulid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return ulid.ULID{}, &validationError{Fields: []FieldError{{Field: "id", Message: "invalid todo id format"}}}
	}
	return id, nil
}

func (h *handler) listTodos(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	todos, err := h.todos.List(r.Context(), userID, r.URL.Query().Get("sortBy"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, todos)
}

func (h *handler) createTodo(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req createTodoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	t, err := h.todos.Create(r.Context(), userID, req.Task, req.DueDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *handler) updateTodo(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	id, err := todoID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req updateTodoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	t, err := h.todos.Update(r.Context(), userID, id, todo.Patch{
		Task:      req.Task,
		Completed: req.Completed,
		DueDate:   req.DueDate,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) deleteTodo(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	id, err := todoID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.todos.Delete(r.Context(), userID, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
