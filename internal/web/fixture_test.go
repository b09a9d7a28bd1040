// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/taskvault/taskvault/internal/auth"
	"github.com/taskvault/taskvault/internal/auth/authtest"
	"github.com/taskvault/taskvault/internal/observability"
	"github.com/taskvault/taskvault/internal/todo"
	"github.com/taskvault/taskvault/internal/todo/todotest"
	"github.com/taskvault/taskvault/internal/web"
)

type apiFixture struct {
	router  http.Handler
	users   *authtest.UserStore
	tokens  *authtest.TokenStore
	mailer  *authtest.RecordingMailer
	todos   *todotest.Store
	metrics *observability.Metrics
	logs    *bytes.Buffer
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logs, nil))

	f := &apiFixture{
		logs:    logs,
		users:   authtest.NewUserStore(),
		tokens:  authtest.NewTokenStore(),
		mailer:  &authtest.RecordingMailer{},
		todos:   todotest.NewStore(),
		metrics: observability.NewMetrics(prometheus.NewRegistry()),
	}

	signer, err := auth.NewTokenSigner(auth.SignerConfig{
		Access:  auth.TokenConfig{Secret: []byte("access-secret"), Lifetime: 15 * time.Minute},
		Refresh: auth.TokenConfig{Secret: []byte("refresh-secret"), Lifetime: 7 * 24 * time.Hour},
		Reset:   auth.TokenConfig{Secret: []byte("reset-secret"), Lifetime: 15 * time.Minute},
	})
	require.NoError(t, err)

	hasher := authtest.PlainHasher{}
	sessions, err := auth.NewSessionService(f.users, f.tokens, hasher, signer, logger)
	require.NoError(t, err)
	resets, err := auth.NewPasswordResetService(f.users, f.tokens, hasher, signer, f.mailer, logger)
	require.NoError(t, err)
	todos, err := todo.NewService(f.todos, logger)
	require.NoError(t, err)

	f.router, err = web.NewRouter(web.Config{
		AllowedOrigins: []string{"http://localhost:3000"},
	}, web.Deps{
		Sessions: sessions,
		Resets:   resets,
		Todos:    todos,
		Metrics:  f.metrics,
		Logger:   logger,
	})
	require.NoError(t, err)
	return f
}

type reqOption func(*http.Request)

func withBearer(token string) reqOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withRefreshCookie(token string) reqOption {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: web.RefreshCookieName, Value: token}) }
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, opts ...reqOption) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, rdr)
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// session registers and logs in a fresh user.
type session struct {
	email, password string
	access, refresh string
}

func (f *apiFixture) newSession(t *testing.T) session {
	t.Helper()
	s := session{email: gofakeit.Email(), password: gofakeit.Password(true, true, true, false, false, 12)}

	rec := f.do(t, http.MethodPost, "/api/v1/auth/register", map[string]any{"email": s.email, "password": s.password})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/v1/auth/login", map[string]any{"email": s.email, "password": s.password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	s.access = decodeBody(t, rec)["accessToken"].(string)
	s.refresh = cookie(t, rec, web.RefreshCookieName).Value
	return s
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func cookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}
