package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/smartvid/smartvid/internal/realtime"
)

// EventSource streams a user's realtime events.
type EventSource interface {
	Subscribe(ctx context.Context, userID uint64) <-chan realtime.Event
}

// EventsHandler serves GET /v1/events as Server-Sent Events.
type EventsHandler struct {
	Source    EventSource
	KeepAlive time.Duration
}

func NewEventsHandler(src EventSource) *EventsHandler {
	return &EventsHandler{Source: src, KeepAlive: 25 * time.Second}
}

// Stream holds the connection open and forwards events until the client
// goes away.  Comment lines are sent as keep-alives.
func (h *EventsHandler) Stream(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx := c.Request().Context()
	events := h.Source.Subscribe(ctx, uid)

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "retry: 5000\n\n")
	w.Flush()

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 25 * time.Second
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}
