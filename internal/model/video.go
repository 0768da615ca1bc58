package model

import (
	"encoding/json"
	"time"
)

// Video project statuses.  A project moves pending -> processing ->
// completed|failed; the render worker drives every transition.
const (
	VideoPending    = "pending"
	VideoProcessing = "processing"
	VideoCompleted  = "completed"
	VideoFailed     = "failed"
)

var videoTransitions = map[string][]string{
	VideoPending:    {VideoProcessing, VideoFailed},
	VideoProcessing: {VideoCompleted, VideoFailed},
	// a failed project may be resubmitted
	VideoFailed: {VideoPending},
}

// CanTransition reports whether a project may move from one status to another.
// Re-asserting the current status is allowed so repeated polls are idempotent.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	for _, next := range videoTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PreviousStatuses lists the statuses a project may be in before moving to `to`.
func PreviousStatuses(to string) []string {
	out := []string{to}
	for from, nexts := range videoTransitions {
		for _, n := range nexts {
			if n == to {
				out = append(out, from)
			}
		}
	}
	return out
}

// VideoProject is a row of `video_projects`.
type VideoProject struct {
	ID              uint64          `json:"id"`
	UserID          uint64          `json:"user_id"`
	TemplateID      *uint64         `json:"template_id,omitempty"`
	Title           string          `json:"title"`
	Script          string          `json:"script"`
	VoiceID         string          `json:"voice_id,omitempty"`
	Status          string          `json:"status"`
	RenderID        string          `json:"render_id,omitempty"`
	VideoURL        string          `json:"video_url,omitempty"`
	ThumbnailURL    string          `json:"thumbnail_url,omitempty"`
	AudioURL        string          `json:"audio_url,omitempty"`
	DurationSeconds int             `json:"duration_seconds"`
	Scenes          json.RawMessage `json:"scenes,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Scene is one shot of a generated breakdown, stored as JSON on the project.
type Scene struct {
	SceneNumber int     `json:"scene_number"`
	Description string  `json:"description"`
	Narration   string  `json:"narration"`
	SearchQuery string  `json:"search_query"`
	Duration    float64 `json:"duration"`
	FootageURL  string  `json:"footage_url,omitempty"`
}
