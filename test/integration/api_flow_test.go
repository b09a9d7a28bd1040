// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"

	"github.com/brianvoe/gofakeit/v6"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/taskvault/taskvault/internal/web"
)

// client is a browser-like API client that keeps the refresh cookie.
type client struct {
	http   *http.Client
	access string
}

func newClient() *client {
	jar, err := cookiejar.New(nil)
	Expect(err).NotTo(HaveOccurred())
	return &client{http: &http.Client{Jar: jar}}
}

func (c *client) call(method, path string, body any) (int, map[string]any) {
	var rdr *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, env.server.URL+path, rdr)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	if c.access != "" {
		req.Header.Set("Authorization", "Bearer "+c.access)
	}

	resp, err := c.http.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer func() { _ = resp.Body.Close() }()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		var raw json.RawMessage
		Expect(json.NewDecoder(resp.Body).Decode(&raw)).To(Succeed())
		if len(raw) > 0 && raw[0] == '{' {
			Expect(json.Unmarshal(raw, &out)).To(Succeed())
		} else {
			out = map[string]any{"items": raw}
		}
	}
	return resp.StatusCode, out
}

func (c *client) hasRefreshCookie() bool {
	for _, ck := range c.http.Jar.Cookies(mustURL(env.server.URL + "/api/v1/auth/refresh")) {
		if ck.Name == web.RefreshCookieName && ck.Value != "" {
			return true
		}
	}
	return false
}

var _ = Describe("Session lifecycle", Ordered, func() {
	var (
		c        *client
		email    string
		password string
	)

	BeforeAll(func() {
		c = newClient()
		email = gofakeit.Email()
		password = gofakeit.Password(true, true, true, false, false, 14)
	})

	It("registers and logs in", func() {
		status, body := c.call(http.MethodPost, "/api/v1/auth/register", map[string]any{"email": email, "password": password})
		Expect(status).To(Equal(http.StatusCreated))
		Expect(body["user"]).To(HaveKeyWithValue("email", email))

		status, body = c.call(http.MethodPost, "/api/v1/auth/login", map[string]any{"email": email, "password": password})
		Expect(status).To(Equal(http.StatusOK))
		Expect(body["accessToken"]).NotTo(BeEmpty())
		c.access = body["accessToken"].(string)
		Expect(c.hasRefreshCookie()).To(BeTrue())
	})

	It("rejects a duplicate registration", func() {
		status, body := c.call(http.MethodPost, "/api/v1/auth/register", map[string]any{"email": email, "password": "whatever1"})
		Expect(status).To(Equal(http.StatusConflict))
		Expect(body["code"]).To(Equal("AUTH_DUPLICATE_EMAIL"))
	})

	It("refreshes the access token from the cookie", func() {
		c.access = ""
		status, body := c.call(http.MethodPost, "/api/v1/auth/refresh", nil)
		Expect(status).To(Equal(http.StatusOK))
		c.access = body["accessToken"].(string)

		status, body = c.call(http.MethodGet, "/api/v1/users/me", nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body["email"]).To(Equal(email))
	})

	It("manages todos", func() {
		status, body := c.call(http.MethodPost, "/api/v1/todos", map[string]any{"task": "ship it"})
		Expect(status).To(Equal(http.StatusCreated))
		id := body["id"].(string)

		status, body = c.call(http.MethodPut, "/api/v1/todos/"+id, map[string]any{"completed": true})
		Expect(status).To(Equal(http.StatusOK))
		Expect(body["completed"]).To(BeTrue())

		status, body = c.call(http.MethodGet, "/api/v1/todos?sortBy=createdAt:desc", nil)
		Expect(status).To(Equal(http.StatusOK))
		var items []map[string]any
		Expect(json.Unmarshal(body["items"].(json.RawMessage), &items)).To(Succeed())
		Expect(items).To(HaveLen(1))

		status, _ = c.call(http.MethodDelete, "/api/v1/todos/"+id, nil)
		Expect(status).To(Equal(http.StatusNoContent))
	})

	It("resets the password through the mailed token", func() {
		status, _ := c.call(http.MethodPost, "/api/v1/auth/forgot-password", map[string]any{"email": email})
		Expect(status).To(Equal(http.StatusOK))

		sent := env.mailer.Sent()
		Expect(sent).NotTo(BeEmpty())
		last := sent[len(sent)-1]
		Expect(last.To).To(Equal(email))

		password = "reset-" + gofakeit.Password(true, true, true, false, false, 10)
		status, _ = c.call(http.MethodPost, "/api/v1/auth/reset-password/"+last.Token, map[string]any{"password": password})
		Expect(status).To(Equal(http.StatusOK))

		status, body := c.call(http.MethodPost, "/api/v1/auth/refresh", nil)
		Expect(status).To(Equal(http.StatusForbidden))
		Expect(body["code"]).To(Equal("AUTH_TOKEN_NOT_FOUND"))
	})

	It("logs in with the new password and logs out", func() {
		status, body := c.call(http.MethodPost, "/api/v1/auth/login", map[string]any{"email": email, "password": password})
		Expect(status).To(Equal(http.StatusOK))
		c.access = body["accessToken"].(string)

		status, _ = c.call(http.MethodPost, "/api/v1/auth/logout", nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(c.hasRefreshCookie()).To(BeFalse())
	})

	It("prunes nothing while no token has expired", func() {
		n, err := env.tokens.DeleteExpired(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeZero())
	})
})
