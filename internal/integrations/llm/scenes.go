package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smartvid/smartvid/internal/model"
)

// Scene count and duration bounds.
const (
	MinScenes            = 1
	MaxScenes            = 12
	DefaultScenes        = 6
	DefaultSceneDuration = 5.0
	maxSceneDuration     = 30.0
)

const sceneSystemPrompt = `You are a video director. Split the user's script into scenes for a short
stock-footage video. Respond with JSON only, shaped as:
{"scenes":[{"scene_number":1,"description":"what is on screen","narration":"words spoken over the scene",
"search_query":"2-4 word stock footage query","duration":5}]}
Durations are in seconds between 3 and 15. Keep narration faithful to the script.`

// SceneRequest is the input of a scene breakdown.
type SceneRequest struct {
	Script    string
	Style     string
	MaxScenes int
}

// ClampScenes bounds a requested scene count to 1..12; zero picks the default.
func ClampScenes(n int) int {
	switch {
	case n == 0:
		return DefaultScenes
	case n < MinScenes:
		return MinScenes
	case n > MaxScenes:
		return MaxScenes
	}
	return n
}

// GenerateScenes asks the model for a breakdown of req.Script.
func (c *Client) GenerateScenes(ctx context.Context, req SceneRequest) ([]model.Scene, error) {
	script := strings.TrimSpace(req.Script)
	if script == "" {
		return nil, errors.New("llm scenes: script required")
	}
	limit := ClampScenes(req.MaxScenes)
	var user strings.Builder
	fmt.Fprintf(&user, "Produce at most %d scenes.\n", limit)
	if style := strings.TrimSpace(req.Style); style != "" {
		fmt.Fprintf(&user, "Visual style: %s.\n", style)
	}
	user.WriteString("Script:\n")
	user.WriteString(script)

	content, err := c.CompleteJSON(ctx, sceneSystemPrompt, user.String(), 0.7)
	if err != nil {
		return nil, err
	}
	return ParseScenes(content, limit)
}

// ParseScenes decodes a model response into at most limit normalised
// scenes.  A bare array is accepted as well as {"scenes": [...]}.
func ParseScenes(content string, limit int) ([]model.Scene, error) {
	var wrapped struct {
		Scenes []model.Scene `json:"scenes"`
	}
	if err := DecodeJSON(content, &wrapped); err != nil || len(wrapped.Scenes) == 0 {
		var bare []model.Scene
		if err2 := DecodeJSON(content, &bare); err2 != nil {
			if err == nil {
				err = err2
			}
			return nil, fmt.Errorf("llm scenes: parse payload: %w", err)
		}
		wrapped.Scenes = bare
	}
	scenes := NormalizeScenes(wrapped.Scenes, limit)
	if len(scenes) == 0 {
		return nil, errors.New("llm scenes: model returned no scenes")
	}
	return scenes, nil
}

// NormalizeScenes trims the list to limit, renumbers from 1, defaults
// missing durations to 5s and fills missing search queries from the
// description.
func NormalizeScenes(in []model.Scene, limit int) []model.Scene {
	limit = ClampScenes(limit)
	out := make([]model.Scene, 0, limit)
	for _, sc := range in {
		if len(out) == limit {
			break
		}
		sc.Description = strings.TrimSpace(sc.Description)
		sc.Narration = strings.TrimSpace(sc.Narration)
		sc.SearchQuery = strings.TrimSpace(sc.SearchQuery)
		if sc.Description == "" && sc.Narration == "" {
			continue
		}
		if sc.Duration <= 0 {
			sc.Duration = DefaultSceneDuration
		}
		if sc.Duration > maxSceneDuration {
			sc.Duration = maxSceneDuration
		}
		if sc.SearchQuery == "" {
			sc.SearchQuery = firstWords(firstNonEmpty(sc.Description, sc.Narration), 4)
		}
		sc.SceneNumber = len(out) + 1
		out = append(out, sc)
	}
	return out
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
