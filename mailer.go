package accounts

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/template/django/v3"
	goerrors "github.com/goliatone/go-errors"
)

// Mail template names, matching the files under data/templates.
const (
	TemplateVerifyEmail   = "verify-email"
	TemplateResetPassword = "reset-password"
)

// Message is a templated mail notification.
type Message struct {
	To       string
	Subject  string
	Template string
	Context  map[string]any
}

// Mailer dispatches templated messages. Implementations are best effort:
// the credential service never rolls an account write back because a
// message could not be sent.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Sender delivers a rendered mail body. Plug in SMTP, an API client, or
// whatever the host app uses for outbound mail.
type Sender func(ctx context.Context, to, subject, body string) error

// TemplateMailer renders django templates and hands the result to a Sender.
type TemplateMailer struct {
	engine *django.Engine
	sender Sender
	logger Logger
}

// NewTemplateMailer loads the template set and wires the sender. Pass the
// embedded template FS (GetTemplatesFS) or any fs.FS with the same layout.
func NewTemplateMailer(templates fs.FS, sender Sender) (*TemplateMailer, error) {
	if sender == nil {
		return nil, goerrors.New("mail sender is required", goerrors.CategoryBadInput)
	}

	engine := django.NewFileSystem(http.FS(templates), ".html")
	if err := engine.Load(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load mail templates")
	}

	return &TemplateMailer{
		engine: engine,
		sender: sender,
		logger: defLogger{},
	}, nil
}

// WithLogger overrides the logger used by the mailer.
func (m *TemplateMailer) WithLogger(logger Logger) *TemplateMailer {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// Send renders the named template with the message context and delivers it.
func (m *TemplateMailer) Send(ctx context.Context, msg Message) error {
	var body bytes.Buffer
	if err := m.engine.Render(&body, msg.Template, msg.Context); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render mail template").
			WithMetadata(map[string]any{"template": msg.Template})
	}

	m.logger.Debug("dispatching mail", "to", msg.To, "template", msg.Template)

	return m.sender(ctx, msg.To, msg.Subject, body.String())
}

// NewLogSender returns a Sender that only prints the notification. Useful
// in development and as a default until a real transport is wired.
func NewLogSender(logger Logger) Sender {
	if logger == nil {
		logger = defLogger{}
	}
	return func(_ context.Context, to, subject, body string) error {
		logger.Info("====== SENDING EMAIL NOTIFICATION =======")
		logger.Info("to: %s", to)
		logger.Info("subject: %s", subject)
		logger.Info("%s", body)
		return nil
	}
}

// VerificationURL builds the frontend callback link carried by the
// verification mail.
func VerificationURL(base, token, accountID string) string {
	return callbackURL(base, "verify-email", token, accountID)
}

// ResetPasswordURL builds the frontend callback link carried by the
// password-reset mail.
func ResetPasswordURL(base, token, accountID string) string {
	return callbackURL(base, "reset-password", token, accountID)
}

func callbackURL(base, path, token, accountID string) string {
	query := url.Values{}
	query.Set("token", token)
	query.Set("userId", accountID)

	return fmt.Sprintf("%s/%s?%s", strings.TrimRight(base, "/"), path, query.Encode())
}
