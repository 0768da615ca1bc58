package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartvid/smartvid/internal/logger"
)

func TestNewEvent(t *testing.T) {
	ev, err := NewEvent(EventVideoUpdated, map[string]any{"id": 7, "status": "completed"})
	require.NoError(t, err)
	assert.Equal(t, EventVideoUpdated, ev.Type)
	assert.WithinDuration(t, time.Now(), ev.At, time.Second)

	var data map[string]any
	require.NoError(t, json.Unmarshal(ev.Data, &data))
	assert.Equal(t, "completed", data["status"])
}

func TestHubWithoutRedis(t *testing.T) {
	h := NewHub(nil, "", logger.Nop())
	assert.False(t, h.Enabled())
	assert.Equal(t, "smartvid:events:user:42", h.Channel(42))
	assert.NoError(t, h.Publish(context.Background(), 42, EventVideoUpdated, nil))

	ctx, cancel := context.WithCancel(context.Background())
	ch := h.Subscribe(ctx, 42)
	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel closes once the context ends")
	case <-time.After(time.Second):
		t.Fatal("subscription did not end")
	}
}
