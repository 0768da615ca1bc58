// Package queue carries render jobs from the API to the worker over
// RabbitMQ.
package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// RenderRequestedQueue is the durable queue render jobs are published to.
const RenderRequestedQueue = "render.requested"

// RenderRequested is published when a user asks for a project to be
// rendered.  The worker loads everything else from the database.
type RenderRequested struct {
	JobID       string    `json:"job_id"`
	VideoID     uint64    `json:"video_id"`
	UserID      uint64    `json:"user_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// DecodeRenderRequested parses and checks a message body.
func DecodeRenderRequested(body []byte) (RenderRequested, error) {
	var ev RenderRequested
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("unmarshal: %w", err)
	}
	if ev.VideoID == 0 || ev.UserID == 0 {
		return ev, fmt.Errorf("render.requested: missing video_id or user_id")
	}
	return ev, nil
}
