package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/smartvid/smartvid/internal/integrations/llm"
	"github.com/smartvid/smartvid/internal/integrations/pexels"
	"github.com/smartvid/smartvid/internal/model"
	"github.com/smartvid/smartvid/internal/service"
)

// MediaGenerator fronts the scene, speech and stock footage integrations.
type MediaGenerator interface {
	Scenes(ctx context.Context, userID, videoID uint64, req llm.SceneRequest) ([]model.Scene, error)
	Speak(ctx context.Context, userID, videoID uint64, text, voiceID string) (service.Speech, error)
	StockVideos(ctx context.Context, p pexels.SearchParams) ([]pexels.Video, error)
}

// MediaHandler serves the generation proxies.
type MediaHandler struct {
	Media MediaGenerator
}

func NewMediaHandler(m MediaGenerator) *MediaHandler { return &MediaHandler{Media: m} }

type scenesReq struct {
	Script    string `json:"script" validate:"required,max=20000"`
	Style     string `json:"style" validate:"max=200"`
	MaxScenes int    `json:"max_scenes" validate:"min=0,max=100"`
	VideoID   uint64 `json:"video_id"`
}

type ttsReq struct {
	Text    string `json:"text" validate:"required"`
	VoiceID string `json:"voice_id" validate:"max=64"`
	VideoID uint64 `json:"video_id"`
}

// Scenes breaks a script into scenes with the language model.
func (h *MediaHandler) Scenes(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req scenesReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	scenes, err := h.Media.Scenes(ctx, uid, req.VideoID, llm.SceneRequest{
		Script:    req.Script,
		Style:     strings.TrimSpace(req.Style),
		MaxScenes: req.MaxScenes,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"scenes": scenes})
}

// TTS synthesizes narration.  With video_id the audio is stored and its
// URL returned; otherwise the MP3 bytes are the response.
func (h *MediaHandler) TTS(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req ttsReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	sp, err := h.Media.Speak(ctx, uid, req.VideoID, req.Text, strings.TrimSpace(req.VoiceID))
	if err != nil {
		return fail(c, err)
	}
	if sp.URL != "" {
		return c.JSON(http.StatusOK, echo.Map{"audio_url": sp.URL, "video_id": req.VideoID})
	}
	return c.Blob(http.StatusOK, "audio/mpeg", sp.Audio)
}

// StockVideos searches stock footage.
func (h *MediaHandler) StockVideos(c echo.Context) error {
	if _, err := getUserID(c); err != nil {
		return unauthorized(c)
	}
	query := strings.TrimSpace(c.QueryParam("query"))
	if query == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "query required"})
	}
	orientation := strings.ToLower(strings.TrimSpace(c.QueryParam("orientation")))
	switch orientation {
	case "", "landscape", "portrait", "square":
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "orientation must be landscape, portrait or square"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	videos, err := h.Media.StockVideos(ctx, pexels.SearchParams{
		Query:       query,
		PerPage:     queryInt(c, "per_page", 15),
		Orientation: orientation,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"videos": videos})
}
