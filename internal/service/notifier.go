package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/smartvid/smartvid/internal/integrations/email"
	"github.com/smartvid/smartvid/internal/model"
	"github.com/smartvid/smartvid/internal/realtime"
)

// Notifier records in-app notifications, pushes them to connected
// clients and sends the matching emails.  Every method is best effort:
// failures are logged and returned, and callers usually ignore them.
type Notifier struct {
	notes   NotificationStore
	users   UserStore
	mail    email.Mailer
	events  EventPublisher
	siteURL string
	log     *slog.Logger
}

// NewNotifier wires a Notifier.  mail and events may be nil.
func NewNotifier(notes NotificationStore, users UserStore, mail email.Mailer, events EventPublisher, siteURL string, log *slog.Logger) *Notifier {
	if events == nil {
		events = nopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		notes:   notes,
		users:   users,
		mail:    mail,
		events:  events,
		siteURL: strings.TrimRight(siteURL, "/"),
		log:     log,
	}
}

// Link returns an absolute URL into the web app.
func (n *Notifier) Link(path string) string {
	return n.siteURL + path
}

// Notify creates a notification and publishes notification.created.
func (n *Notifier) Notify(ctx context.Context, userID uint64, typ, title, message, link string) error {
	note := &model.Notification{UserID: userID, Type: typ, Title: title, Message: message, Link: link}
	if err := n.notes.Create(ctx, note); err != nil {
		n.log.Warn("notify: create failed", "user_id", userID, "type", typ, "err", err)
		return err
	}
	_ = n.events.Publish(ctx, userID, realtime.EventNotificationCreated, note)
	return nil
}

// Email looks up the user's address and sends the message built for it.
func (n *Notifier) Email(ctx context.Context, userID uint64, build func(to string) email.Message) error {
	if n.mail == nil {
		return nil
	}
	u, err := n.users.GetByID(ctx, userID)
	if err != nil {
		n.log.Warn("email: load user failed", "user_id", userID, "err", err)
		return err
	}
	msg := build(u.Email)
	if err := n.mail.Send(ctx, msg); err != nil {
		n.log.Warn("email: send failed", "user_id", userID, "subject", msg.Subject, "err", err)
		return err
	}
	return nil
}
