// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

package web

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/taskvault/taskvault/internal/auth"
	"github.com/taskvault/taskvault/internal/observability"
)

type userIDKey struct{}

// WithUserID returns a copy of ctx carrying the authenticated user id.
func WithUserID(ctx context.Context, id ulid.ULID) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// UserIDFromContext returns the user id stored by the bearer middleware.
func UserIDFromContext(ctx context.Context) (ulid.ULID, bool) {
	id, ok := ctx.Value(userIDKey{}).(ulid.ULID)
	return id, ok
}

// requestLogger logs one line per request once it completes. The route
// pattern is logged instead of the raw path, which can carry a reset token.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.InfoContext(r.Context(), "http request",
					"method", r.Method,
					"route", observability.RoutePattern(r),
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// authenticate rejects requests without a valid access token and stores the
// user id in the request context.
func (h *handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := h.sessions.Authenticate(r.Context(), bearerToken(r))
		if err != nil {
			h.metrics.RecordAuthEvent("authenticate", outcome(err))
			h.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// currentUser returns the id set by authenticate, or answers 401.
func (h *handler) currentUser(w http.ResponseWriter, r *http.Request) (ulid.ULID, bool) {
	id, ok := UserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, r, oops.Code(auth.CodeTokenMissing).Wrap(auth.ErrTokenMissing))
	}
	return id, ok
}
