// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

// Package web serves the TaskVault JSON API.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/taskvault/taskvault/internal/auth"
	"github.com/taskvault/taskvault/internal/observability"
	"github.com/taskvault/taskvault/internal/todo"
)

// SessionManager is the session API the handlers depend on.
// *auth.SessionService implements it.
type SessionManager interface {
	Register(ctx context.Context, email, password string, name *string) (auth.PublicUser, error)
	Login(ctx context.Context, email, password string) (*auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, refreshToken string)
	ChangePassword(ctx context.Context, userID ulid.ULID, oldPassword, newPassword string) error
	Profile(ctx context.Context, userID ulid.ULID) (auth.PublicUser, error)
	Authenticate(ctx context.Context, accessToken string) (ulid.ULID, error)
	RefreshLifetime() time.Duration
}

// PasswordResetter is implemented by *auth.PasswordResetService.
type PasswordResetter interface {
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// TodoManager is implemented by *todo.Service.
type TodoManager interface {
	Create(ctx context.Context, userID ulid.ULID, task string, dueDate *time.Time) (*todo.Todo, error)
	List(ctx context.Context, userID ulid.ULID, sortSpec string) ([]*todo.Todo, error)
	Update(ctx context.Context, userID, id ulid.ULID, patch todo.Patch) (*todo.Todo, error)
	Delete(ctx context.Context, userID, id ulid.ULID) error
}

// Config holds HTTP-level settings.
type Config struct {
	// AllowedOrigins lists the CORS origins allowed to send credentials.
	AllowedOrigins []string
	// SecureCookies marks the refresh cookie Secure. Enable in production.
	SecureCookies bool
	// RequestTimeout cancels handler contexts after this long. Zero disables it.
	RequestTimeout time.Duration
}

// Deps are the services behind the API.
type Deps struct {
	Sessions SessionManager
	Resets   PasswordResetter
	Todos    TodoManager
	// Metrics is optional.
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

type handler struct {
	cfg      Config
	sessions SessionManager
	resets   PasswordResetter
	todos    TodoManager
	metrics  *observability.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewRouter builds the API router.
func NewRouter(cfg Config, deps Deps) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, oops.Code("WEB_INVALID_DEPS").Errorf("session manager is required")
	}
	if deps.Resets == nil {
		return nil, oops.Code("WEB_INVALID_DEPS").Errorf("password resetter is required")
	}
	if deps.Todos == nil {
		return nil, oops.Code("WEB_INVALID_DEPS").Errorf("todo manager is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &handler{
		cfg:      cfg,
		sessions: deps.Sessions,
		resets:   deps.Resets,
		todos:    deps.Todos,
		metrics:  deps.Metrics,
		logger:   logger,
		now:      time.Now,
	}
	return h.routes(), nil
}

func (h *handler) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
	}
	if h.cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(h.cfg.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(h.notFound)
	r.MethodNotAllowed(h.methodNotAllowed)

	r.Get("/api/health", h.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.register)
			r.Post("/login", h.login)
			r.Post("/refresh", h.refresh)
			r.Post("/logout", h.logout)
			r.Post("/forgot-password", h.forgotPassword)
			r.Post("/reset-password/{token}", h.resetPassword)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(h.authenticate)
			r.Get("/me", h.profile)
			r.Put("/password", h.changePassword)
		})

		r.Route("/todos", func(r chi.Router) {
			r.Use(h.authenticate)
			r.Get("/", h.listTodos)
			r.Post("/", h.createTodo)
			r.Put("/{id}", h.updateTodo)
			r.Delete("/{id}", h.deleteTodo)
		})
	})

	return r
}

// NewHTTPServer wraps handler in an http.Server with conservative timeouts.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "OK", Timestamp: h.now().UTC()})
}

func (h *handler) notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{
		Message: "Not Found - " + r.Method + " " + r.URL.RequestURI(),
		Code:    CodeNotFound,
	})
}

func (h *handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{
		Message: "Method Not Allowed - " + r.Method + " " + r.URL.Path,
		Code:    CodeMethodNotAllowed,
	})
}
