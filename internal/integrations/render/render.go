// Package render submits video edits to the rendering service and reads
// back their status.  A mock client simulates the service when no API key
// is configured.
package render

import (
	"context"
	"errors"

	"github.com/smartvid/smartvid/internal/model"
)

// Provider status labels.
const (
	LabelQueued    = "queued"
	LabelFetching  = "fetching"
	LabelRendering = "rendering"
	LabelSaving    = "saving"
	LabelDone      = "done"
	LabelFailed    = "failed"
)

// ErrInvalidRenderID is returned for ids the client cannot interpret.
var ErrInvalidRenderID = errors.New("invalid render id")

// Job is everything needed to render one project.
type Job struct {
	VideoID  uint64
	Title    string
	Scenes   []model.Scene
	AudioURL string
}

// Status is one reading of a render job.
type Status struct {
	ID           string  `json:"id"`
	Label        string  `json:"status"`
	URL          string  `json:"url,omitempty"`
	ThumbnailURL string  `json:"thumbnail_url,omitempty"`
	Duration     float64 `json:"duration,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// Terminal reports whether the job will not change any more.
func (s Status) Terminal() bool {
	return s.Label == LabelDone || s.Label == LabelFailed
}

// ProjectStatus maps a provider label to the video project status.
func (s Status) ProjectStatus() string {
	return ProjectStatus(s.Label)
}

// Client is implemented by the HTTP and mock render clients.
type Client interface {
	Submit(ctx context.Context, job Job) (string, error)
	Status(ctx context.Context, renderID string) (Status, error)
}

// ProjectStatus maps a provider label to processing, completed or failed.
// A job only has a label once it was submitted, so queued and unknown
// labels count as processing.
func ProjectStatus(label string) string {
	switch label {
	case LabelDone:
		return model.VideoCompleted
	case LabelFailed:
		return model.VideoFailed
	default:
		return model.VideoProcessing
	}
}
