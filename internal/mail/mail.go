// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

// Package mail delivers password reset links.
package mail

import (
	"bytes"
	"context"
	htmltemplate "html/template"
	"log/slog"
	"strings"
	texttemplate "text/template"

	"github.com/samber/oops"

	"github.com/taskvault/taskvault/internal/auth"
)

// Mailer sends password reset emails.
type Mailer interface {
	SendPasswordResetEmail(ctx context.Context, to, token string) error
}

// ResetSubject is the subject line of the reset email.
const ResetSubject = "Reset Your Password Securely"

// ResetURL returns the frontend link that consumes token.
func ResetURL(frontendURL, token string) string {
	return strings.TrimRight(frontendURL, "/") + "/reset-password/" + token
}

var resetText = texttemplate.Must(texttemplate.New("reset.txt").Parse(`Hello,

We received a request to reset your password. Open the link below to proceed:

{{.URL}}

The link is valid for one hour. If you didn't request this, you can safely ignore this email.

Stay secure,
TaskVault
`))

var resetHTML = htmltemplate.Must(htmltemplate.New("reset.html").Parse(`<p>Hello,</p>
<p>We received a request to reset your password. Click the link below to proceed:</p>
<p><a href="{{.URL}}">Reset Your Password</a></p>
<p>The link is valid for one hour. If you didn't request this, you can safely ignore this email.</p>
<p>Stay secure,<br>TaskVault</p>
`))

type resetData struct {
	URL string
}

func renderReset(url string) (text, html string, err error) {
	data := resetData{URL: url}

	var tb bytes.Buffer
	if err := resetText.Execute(&tb, data); err != nil {
		return "", "", oops.Code("MAIL_RENDER_FAILED").With("template", "text").Wrap(err)
	}
	var hb bytes.Buffer
	if err := resetHTML.Execute(&hb, data); err != nil {
		return "", "", oops.Code("MAIL_RENDER_FAILED").With("template", "html").Wrap(err)
	}
	return tb.String(), hb.String(), nil
}

// LogMailer writes reset links to the log instead of sending them.
// The log line contains a live token; config validation refuses it in production.
type LogMailer struct {
	frontendURL string
	logger      *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(frontendURL string, logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{frontendURL: frontendURL, logger: logger}
}

// SendPasswordResetEmail logs the reset URL.
func (m *LogMailer) SendPasswordResetEmail(ctx context.Context, to, token string) error {
	m.logger.InfoContext(ctx, "password reset email",
		"to", to,
		"url", ResetURL(m.frontendURL, token),
	)
	return nil
}

var (
	_ Mailer           = (*LogMailer)(nil)
	_ Mailer           = (*SMTPMailer)(nil)
	_ auth.ResetMailer = Mailer(nil)
)
