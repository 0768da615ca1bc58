// Package email sends transactional mail through SendGrid.
package email

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/smartvid/smartvid/internal/apperr"
)

// Message is one outgoing email.
type Message struct {
	ToName  string
	ToEmail string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// SendGrid delivers mail with the SendGrid v3 API.
type SendGrid struct {
	client *sendgrid.Client
	from   *mail.Email
}

// NewSendGrid returns a SendGrid mailer sending as fromAddr.
func NewSendGrid(apiKey, fromAddr string) *SendGrid {
	return &SendGrid{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail("SmartVid", fromAddr),
	}
}

// WithBaseURL overrides the mail send endpoint.
func (s *SendGrid) WithBaseURL(u string) *SendGrid {
	s.client.Request.BaseURL = u
	return s
}

// Send delivers m.  A non-2xx answer is returned as *apperr.StatusError.
func (s *SendGrid) Send(ctx context.Context, m Message) error {
	if strings.TrimSpace(m.ToEmail) == "" {
		return fmt.Errorf("email send: recipient required")
	}
	to := mail.NewEmail(m.ToName, m.ToEmail)
	msg := mail.NewSingleEmail(s.from, m.Subject, to, m.Text, m.HTML)
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("email send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return &apperr.StatusError{Op: "email send", StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return nil
}

// LogMailer writes messages to the log instead of sending them.  It is
// used when no SendGrid key is configured.
type LogMailer struct {
	Log *slog.Logger
}

// Send logs the message.
func (l LogMailer) Send(_ context.Context, m Message) error {
	log := l.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("email not sent, mailer disabled", "to", m.ToEmail, "subject", m.Subject)
	return nil
}

// RenderCompleted tells a user their video is ready.
func RenderCompleted(toEmail, title, link string) Message {
	return Message{
		ToEmail: toEmail,
		Subject: fmt.Sprintf("Your video %q is ready", title),
		Text:    fmt.Sprintf("Good news! Your video %q has finished rendering.\n\nWatch it here: %s\n", title, link),
		HTML: fmt.Sprintf(`<p>Good news! Your video <strong>%s</strong> has finished rendering.</p><p><a href="%s">Watch it now</a></p>`,
			html.EscapeString(title), html.EscapeString(link)),
	}
}

// RenderFailed tells a user their render failed.
func RenderFailed(toEmail, title, reason, link string) Message {
	if reason == "" {
		reason = "the render service reported an error"
	}
	return Message{
		ToEmail: toEmail,
		Subject: fmt.Sprintf("We could not render %q", title),
		Text:    fmt.Sprintf("Rendering %q failed: %s.\n\nYou can retry from your dashboard: %s\n", title, reason, link),
		HTML: fmt.Sprintf(`<p>Rendering <strong>%s</strong> failed: %s.</p><p><a href="%s">Open your dashboard</a> to try again.</p>`,
			html.EscapeString(title), html.EscapeString(reason), html.EscapeString(link)),
	}
}

// SubscriptionChanged confirms a plan change.
func SubscriptionChanged(toEmail, plan, status, link string) Message {
	return Message{
		ToEmail: toEmail,
		Subject: "Your SmartVid subscription was updated",
		Text:    fmt.Sprintf("Your subscription is now %s (%s).\n\nManage it here: %s\n", plan, status, link),
		HTML: fmt.Sprintf(`<p>Your subscription is now <strong>%s</strong> (%s).</p><p><a href="%s">Manage your plan</a></p>`,
			html.EscapeString(plan), html.EscapeString(status), html.EscapeString(link)),
	}
}
