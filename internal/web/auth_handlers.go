// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskvault/taskvault/internal/auth"
)

// RefreshCookieName is the cookie carrying the refresh token.
const RefreshCookieName = "refreshToken"

// refreshCookiePath limits the cookie to the endpoints that read it.
const refreshCookiePath = "/api/v1/auth"

type registerResponse struct {
	Message string          `json:"message"`
	User    auth.PublicUser `json:"user"`
}

type accessTokenResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"accessToken"`
}

func (h *handler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     refreshCookiePath,
		MaxAge:   int(h.sessions.RefreshLifetime().Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func refreshCookie(r *http.Request) string {
	c, err := r.Cookie(RefreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.sessions.Register(r.Context(), req.Email, req.Password, req.Name)
	h.metrics.RecordAuthEvent("register", outcome(err))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{Message: "user registered successfully", User: user})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	pair, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	h.metrics.RecordAuthEvent("login", outcome(err))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusOK, accessTokenResponse{Message: "login successful", AccessToken: pair.AccessToken})
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	accessToken, err := h.sessions.Refresh(r.Context(), refreshCookie(r))
	h.metrics.RecordAuthEvent("refresh", outcome(err))
	if err != nil {
		h.clearRefreshCookie(w)
		h.writeScopedError(w, r, err, scopeRefresh)
		return
	}
	writeJSON(w, http.StatusOK, accessTokenResponse{Message: "token refreshed successfully", AccessToken: accessToken})
}

// logout always succeeds; the cookie is cleared whether or not the server
// found a session to end.
func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	h.clearRefreshCookie(w)

	token := refreshCookie(r)
	if token == "" {
		writeJSON(w, http.StatusOK, messageResponse{Message: "logout successful (no token cookie found)"})
		return
	}

	h.sessions.Logout(r.Context(), token)
	h.metrics.RecordAuthEvent("logout", outcome(nil))
	writeJSON(w, http.StatusOK, messageResponse{Message: "logout successful"})
}

func (h *handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	err := h.resets.ForgotPassword(r.Context(), req.Email)
	h.metrics.RecordAuthEvent("forgot_password", outcome(err))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{
		Message: "if an account with that email exists, a password reset link has been sent",
	})
}

func (h *handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	err := h.resets.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password)
	h.metrics.RecordAuthEvent("reset_password", outcome(err))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "password has been reset successfully"})
}
