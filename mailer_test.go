package accounts_test

import (
	"context"
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedMail struct {
	to      string
	subject string
	body    string
}

func captureSender(out *capturedMail) accounts.Sender {
	return func(_ context.Context, to, subject, body string) error {
		out.to = to
		out.subject = subject
		out.body = body
		return nil
	}
}

func TestTemplateMailerRendersVerification(t *testing.T) {
	var sent capturedMail
	mailer, err := accounts.NewTemplateMailer(accounts.GetTemplatesFS(), captureSender(&sent))
	require.NoError(t, err)

	err = mailer.Send(context.Background(), accounts.Message{
		To:       "peperone@example.com",
		Subject:  "Verify Your Email Address",
		Template: accounts.TemplateVerifyEmail,
		Context: map[string]any{
			"first_name":       "Pepe",
			"verification_url": "https://app.example.com/verify-email?token=abc&userId=123",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "peperone@example.com", sent.to)
	assert.Equal(t, "Verify Your Email Address", sent.subject)
	assert.Contains(t, sent.body, "Pepe")
	assert.Contains(t, sent.body, "https://app.example.com/verify-email?token=abc&amp;userId=123")
}

func TestTemplateMailerRendersReset(t *testing.T) {
	var sent capturedMail
	mailer, err := accounts.NewTemplateMailer(accounts.GetTemplatesFS(), captureSender(&sent))
	require.NoError(t, err)

	err = mailer.Send(context.Background(), accounts.Message{
		To:       "peperone@example.com",
		Subject:  "Reset Your Password",
		Template: accounts.TemplateResetPassword,
		Context: map[string]any{
			"first_name":         "Pepe",
			"reset_password_url": "https://app.example.com/reset-password?token=abc&userId=123",
		},
	})
	require.NoError(t, err)

	assert.Contains(t, sent.body, "Pepe")
	assert.Contains(t, sent.body, "reset-password")
}

func TestNewTemplateMailerRequiresSender(t *testing.T) {
	_, err := accounts.NewTemplateMailer(accounts.GetTemplatesFS(), nil)
	require.Error(t, err)
}

func TestCallbackURLs(t *testing.T) {
	verify := accounts.VerificationURL("https://app.example.com/", "tok-1", "acc-1")
	assert.Equal(t, "https://app.example.com/verify-email?token=tok-1&userId=acc-1", verify)

	reset := accounts.ResetPasswordURL("https://app.example.com", "tok-2", "acc-2")
	assert.Equal(t, "https://app.example.com/reset-password?token=tok-2&userId=acc-2", reset)
}
