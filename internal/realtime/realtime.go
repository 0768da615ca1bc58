// Package realtime fans per-user events out over Redis Pub/Sub so every
// API instance can forward them to its Server-Sent Events clients.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event types.
const (
	EventVideoUpdated        = "video.updated"
	EventSubscriptionUpdated = "subscription.updated"
	EventNotificationCreated = "notification.created"
)

// Event is one message for a user.
type Event struct {
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data"`
}

// NewEvent encodes data into an Event stamped with the current time.
func NewEvent(typ string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: typ, At: time.Now().UTC(), Data: raw}, nil
}

// Hub publishes and subscribes to per-user channels.  A Hub without a
// Redis client drops published events and its subscriptions never
// deliver; clients then rely on polling.
type Hub struct {
	rdb    *redis.Client
	prefix string
	log    *slog.Logger
}

// NewHub returns a Hub; rdb may be nil.
func NewHub(rdb *redis.Client, prefix string, log *slog.Logger) *Hub {
	if prefix == "" {
		prefix = "smartvid:events"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Hub{rdb: rdb, prefix: prefix, log: log}
}

// Enabled reports whether events are delivered.
func (h *Hub) Enabled() bool { return h != nil && h.rdb != nil }

// Channel returns the Pub/Sub channel of a user.
func (h *Hub) Channel(userID uint64) string {
	return h.prefix + ":user:" + strconv.FormatUint(userID, 10)
}

// Publish sends typ/data to the user's channel.  Failures are logged and
// returned; callers treat them as best effort.
func (h *Hub) Publish(ctx context.Context, userID uint64, typ string, data any) error {
	if !h.Enabled() {
		return nil
	}
	ev, err := NewEvent(typ, data)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := h.rdb.Publish(ctx, h.Channel(userID), payload).Err(); err != nil {
		h.log.Warn("realtime publish failed", "user_id", userID, "type", typ, "err", err)
		return err
	}
	return nil
}

// Subscribe streams the user's events until ctx is done.  The returned
// channel is closed when the subscription ends.
func (h *Hub) Subscribe(ctx context.Context, userID uint64) <-chan Event {
	out := make(chan Event, 16)
	if !h.Enabled() {
		go func() {
			<-ctx.Done()
			close(out)
		}()
		return out
	}
	sub := h.rdb.Subscribe(ctx, h.Channel(userID))
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					h.log.Warn("realtime: drop malformed event", "err", err)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
