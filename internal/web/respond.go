// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/taskvault/taskvault/internal/auth"
	"github.com/taskvault/taskvault/internal/observability"
	"github.com/taskvault/taskvault/internal/todo"
	"github.com/taskvault/taskvault/pkg/errutil"
)

// Response codes for failures that do not come from a domain package.
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeInternal         = "INTERNAL_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Message string       `json:"message"`
	Code    string       `json:"code,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// errorScope selects status codes for token failures, which differ between
// the refresh endpoint and bearer authentication.
type errorScope int

const (
	scopeDefault errorScope = iota
	scopeRefresh
)

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// tokenErrors answer 401 on bearer auth and 403 on refresh.
var tokenErrors = []errorMapping{
	{auth.ErrExpiredToken, http.StatusUnauthorized, auth.CodeExpiredToken, ""},
	{auth.ErrMalformedToken, http.StatusUnauthorized, auth.CodeMalformedToken, ""},
	{auth.ErrTokenNotFound, http.StatusUnauthorized, auth.CodeTokenNotFound, ""},
	{auth.ErrTokenMismatch, http.StatusUnauthorized, auth.CodeTokenMismatch, ""},
}

var errorMappings = []errorMapping{
	{auth.ErrDuplicateEmail, http.StatusConflict, auth.CodeDuplicateEmail, ""},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, auth.CodeInvalidCredentials, ""},
	{auth.ErrTokenMissing, http.StatusUnauthorized, auth.CodeTokenMissing, ""},
	{auth.ErrUserNotFound, http.StatusNotFound, auth.CodeUserNotFound, ""},
	{auth.ErrIncorrectOldPassword, http.StatusBadRequest, auth.CodeIncorrectOldPassword, ""},
	{auth.ErrResetEmailDeliveryFailed, http.StatusInternalServerError, auth.CodeResetEmailDeliveryFailed,
		"failed to process password reset, please try again later"},
	{auth.ErrInvalidResetToken, http.StatusBadRequest, auth.CodeInvalidResetToken, ""},
	{auth.ErrResetTokenNotFound, http.StatusBadRequest, auth.CodeResetTokenNotFound, ""},
	{auth.ErrResetTokenMismatch, http.StatusBadRequest, auth.CodeResetTokenMismatch, ""},
	{todo.ErrNotFound, http.StatusNotFound, todo.CodeNotFound, "todo not found or access denied"},
	{todo.ErrInvalidTodo, http.StatusBadRequest, todo.CodeInvalidTodo, ""},
	{todo.ErrInvalidSort, http.StatusBadRequest, todo.CodeInvalidSort, ""},
	{todo.ErrEmptyPatch, http.StatusBadRequest, todo.CodeEmptyPatch, ""},
}

// classify maps err to a status and response body.
// Unknown errors become a generic 500; their details are only logged.
func classify(err error, scope errorScope) (int, errorResponse) {
	var verr *validationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, errorResponse{
			Message: "input validation failed",
			Code:    CodeValidationFailed,
			Errors:  verr.Fields,
		}
	}

	for _, m := range tokenErrors {
		if errors.Is(err, m.target) {
			status := m.status
			if scope == scopeRefresh {
				status = http.StatusForbidden
			}
			return status, errorResponse{Message: m.target.Error(), Code: m.code}
		}
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.message
			if msg == "" {
				msg = m.target.Error()
			}
			return m.status, errorResponse{Message: msg, Code: m.code}
		}
	}

	return http.StatusInternalServerError, errorResponse{
		Message: "an unexpected error occurred",
		Code:    CodeInternal,
	}
}

// outcome returns the metrics label for the result of an operation.
func outcome(err error) string {
	if err == nil {
		return observability.OutcomeSuccess
	}
	_, body := classify(err, scopeDefault)
	return body.Code
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // client may have disconnected
	json.NewEncoder(w).Encode(v)
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	h.writeScopedError(w, r, err, scopeDefault)
}

func (h *handler) writeScopedError(w http.ResponseWriter, r *http.Request, err error, scope errorScope) {
	status, body := classify(err, scope)
	if status >= http.StatusInternalServerError {
		errutil.LogErrorContext(r.Context(), h.logger, "request failed", err)
	} else {
		h.logger.DebugContext(r.Context(), "request rejected",
			"status", status,
			"code", body.Code,
		)
	}
	writeJSON(w, status, body)
}
