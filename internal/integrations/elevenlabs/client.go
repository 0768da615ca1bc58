// Package elevenlabs synthesises narration audio.
package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/smartvid/smartvid/internal/integrations/apiclient"
)

// MaxTextLength is the longest text accepted per request, in characters.
const MaxTextLength = 5000

// ErrTextLength is returned for empty or over-long text.
var ErrTextLength = errors.New("text must be between 1 and 5000 characters")

// Client calls the text-to-speech endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	voice   string
	api     *apiclient.Client
}

// NewClient returns a client that uses defaultVoice when a request names none.
func NewClient(apiKey, model, defaultVoice string, api *apiclient.Client) *Client {
	if api == nil {
		api = apiclient.New()
	}
	return &Client{baseURL: "https://api.elevenlabs.io/v1", apiKey: apiKey, model: model, voice: defaultVoice, api: api}
}

// WithBaseURL points the client at another host.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type synthRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id,omitempty"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// ValidateText checks the length bounds of text.
func ValidateText(text string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	if n == 0 || n > MaxTextLength {
		return ErrTextLength
	}
	return nil
}

// Synthesize returns MPEG audio of text spoken by voiceID.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if err := ValidateText(text); err != nil {
		return nil, err
	}
	if c.apiKey == "" {
		return nil, errors.New("tts: api key required")
	}
	voice := strings.TrimSpace(voiceID)
	if voice == "" {
		voice = c.voice
	}
	payload, err := json.Marshal(synthRequest{
		Text:          strings.TrimSpace(text),
		ModelID:       c.model,
		VoiceSettings: voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
	})
	if err != nil {
		return nil, fmt.Errorf("tts synthesize: encode body: %w", err)
	}
	h := http.Header{}
	h.Set("xi-api-key", c.apiKey)
	h.Set("Accept", "audio/mpeg")
	h.Set("Content-Type", "application/json")
	resp, err := c.api.Do(ctx, apiclient.Request{
		Op:     "tts synthesize",
		Method: http.MethodPost,
		URL:    c.baseURL + "/text-to-speech/" + url.PathEscape(voice),
		Header: h,
		Body:   payload,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Body) == 0 {
		return nil, errors.New("tts synthesize: empty audio")
	}
	return resp.Body, nil
}
