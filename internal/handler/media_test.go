package handler

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/smartvid/smartvid/internal/apperr"
	"github.com/smartvid/smartvid/internal/integrations/elevenlabs"
	"github.com/smartvid/smartvid/internal/integrations/llm"
	"github.com/smartvid/smartvid/internal/integrations/pexels"
	"github.com/smartvid/smartvid/internal/model"
	"github.com/smartvid/smartvid/internal/service"
)

func mediaEcho(m *mockMedia) *echo.Echo {
	h := NewMediaHandler(m)
	e := newTestEcho()
	g := e.Group("/v1", asUser(6, model.RoleUser))
	g.POST("/scenes", h.Scenes)
	g.POST("/tts", h.TTS)
	g.GET("/stock/videos", h.StockVideos)
	return e
}

func TestScenes(t *testing.T) {
	m := &mockMedia{}
	m.On("Scenes", mock.Anything, uint64(6), uint64(12), llm.SceneRequest{Script: "A story", Style: "calm", MaxScenes: 3}).
		Return([]model.Scene{{SceneNumber: 1, Narration: "A story"}}, nil)
	e := mediaEcho(m)

	rec := doJSON(e, http.MethodPost, "/v1/scenes", `{"script":"A story","style":" calm ","max_scenes":3,"video_id":12}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"scene_number":1`)

	rec = doJSON(e, http.MethodPost, "/v1/scenes", `{"style":"calm"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTTS(t *testing.T) {
	m := &mockMedia{}
	m.On("Speak", mock.Anything, uint64(6), uint64(0), "hello", "").Return(service.Speech{Audio: []byte("ID3mp3")}, nil)
	m.On("Speak", mock.Anything, uint64(6), uint64(4), "hello", "v1").
		Return(service.Speech{Audio: []byte("ID3mp3"), URL: "/media/audio/6/a.mp3"}, nil)
	m.On("Speak", mock.Anything, uint64(6), uint64(0), "too long", "").Return(service.Speech{}, elevenlabs.ErrTextLength)
	m.On("Speak", mock.Anything, uint64(6), uint64(0), "off", "").Return(service.Speech{}, apperr.ErrDisabled)
	e := mediaEcho(m)

	rec := doJSON(e, http.MethodPost, "/v1/tts", `{"text":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/mpeg", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "ID3mp3", rec.Body.String())

	rec = doJSON(e, http.MethodPost, "/v1/tts", `{"text":"hello","voice_id":"v1","video_id":4}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"audio_url":"/media/audio/6/a.mp3"`)

	assert.Equal(t, http.StatusBadRequest, doJSON(e, http.MethodPost, "/v1/tts", `{"text":"too long"}`).Code)
	assert.Equal(t, http.StatusServiceUnavailable, doJSON(e, http.MethodPost, "/v1/tts", `{"text":"off"}`).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(e, http.MethodPost, "/v1/tts", `{}`).Code)
}

func TestStockVideos(t *testing.T) {
	m := &mockMedia{}
	m.On("StockVideos", mock.Anything, pexels.SearchParams{Query: "ocean", PerPage: 5, Orientation: "portrait"}).
		Return([]pexels.Video{{ID: 9, FileURL: "https://cdn/9.mp4"}}, nil)
	e := mediaEcho(m)

	rec := doJSON(e, http.MethodGet, "/v1/stock/videos?query=ocean&per_page=5&orientation=portrait", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"file_url":"https://cdn/9.mp4"`)

	assert.Equal(t, http.StatusBadRequest, doJSON(e, http.MethodGet, "/v1/stock/videos", "").Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(e, http.MethodGet, "/v1/stock/videos?query=x&orientation=round", "").Code)
}
