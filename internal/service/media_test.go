package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/smartvid/smartvid/internal/apperr"
	"github.com/smartvid/smartvid/internal/integrations/elevenlabs"
	"github.com/smartvid/smartvid/internal/integrations/llm"
	"github.com/smartvid/smartvid/internal/integrations/pexels"
	"github.com/smartvid/smartvid/internal/model"
	"github.com/smartvid/smartvid/internal/repository"
)

func TestMediaDisabledIntegrations(t *testing.T) {
	svc := NewMediaService(&mockVideos{}, nil, nil, nil, nil)
	ctx := context.Background()
	_, err := svc.Scenes(ctx, 1, 0, llm.SceneRequest{Script: "x"})
	assert.ErrorIs(t, err, apperr.ErrDisabled)
	_, err = svc.Speak(ctx, 1, 0, "hello", "")
	assert.ErrorIs(t, err, apperr.ErrDisabled)
	_, err = svc.StockVideos(ctx, pexels.SearchParams{Query: "city"})
	assert.ErrorIs(t, err, apperr.ErrDisabled)
}

func TestMediaScenesStoredOnProject(t *testing.T) {
	ctx := context.Background()
	videos, gen := &mockVideos{}, &mockScenes{}
	scenes := []model.Scene{{SceneNumber: 1, Narration: "Hi", Duration: 5}}
	videos.On("GetForUser", ctx, uint64(3), uint64(1)).Return(model.VideoProject{ID: 3, UserID: 1}, nil)
	gen.On("GenerateScenes", ctx, llm.SceneRequest{Script: "Hi"}).Return(scenes, nil)
	videos.On("SetScenes", ctx, uint64(3), uint64(1), mock.MatchedBy(func(raw json.RawMessage) bool {
		return strings.Contains(string(raw), `"narration":"Hi"`)
	})).Return(nil)

	got, err := NewMediaService(videos, gen, nil, nil, nil).Scenes(ctx, 1, 3, llm.SceneRequest{Script: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, scenes, got)
	videos.AssertExpectations(t)
}

func TestMediaScenesForeignProject(t *testing.T) {
	ctx := context.Background()
	videos, gen := &mockVideos{}, &mockScenes{}
	videos.On("GetForUser", ctx, uint64(3), uint64(2)).Return(model.VideoProject{}, repository.ErrNotFound)

	_, err := NewMediaService(videos, gen, nil, nil, nil).Scenes(ctx, 2, 3, llm.SceneRequest{Script: "Hi"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	gen.AssertNotCalled(t, "GenerateScenes", mock.Anything, mock.Anything)
}

func TestMediaSpeakStoresAudio(t *testing.T) {
	ctx := context.Background()
	videos, tts := &mockVideos{}, &mockSpeech{}
	store := NewLocalStorage(t.TempDir(), "/media")
	videos.On("GetForUser", ctx, uint64(3), uint64(1)).Return(model.VideoProject{ID: 3, UserID: 1}, nil)
	tts.On("Synthesize", ctx, "Hello there", "voice").Return([]byte("mp3"), nil)
	videos.On("SetAudioURL", ctx, uint64(3), uint64(1), mock.MatchedBy(func(u string) bool {
		return strings.HasPrefix(u, "/media/audio/1/") && strings.HasSuffix(u, ".mp3")
	})).Return(nil)

	sp, err := NewMediaService(videos, nil, tts, nil, store).Speak(ctx, 1, 3, "Hello there", "voice")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3"), sp.Audio)
	assert.NotEmpty(t, sp.URL)
}

func TestMediaSpeakValidatesText(t *testing.T) {
	tts := &mockSpeech{}
	svc := NewMediaService(&mockVideos{}, nil, tts, nil, nil)
	_, err := svc.Speak(context.Background(), 1, 0, "   ", "")
	assert.ErrorIs(t, err, elevenlabs.ErrTextLength)
	_, err = svc.Speak(context.Background(), 1, 0, strings.Repeat("a", elevenlabs.MaxTextLength+1), "")
	assert.ErrorIs(t, err, elevenlabs.ErrTextLength)
	tts.AssertNotCalled(t, "Synthesize", mock.Anything, mock.Anything, mock.Anything)
}

func TestMediaStockVideos(t *testing.T) {
	ctx := context.Background()
	px := &mockFootage{}
	want := []pexels.Video{{ID: 1, FileURL: "https://videos.pexels.test/1.mp4"}}
	px.On("Search", ctx, pexels.SearchParams{Query: "ocean", PerPage: 5}).Return(want, nil)

	got, err := NewMediaService(&mockVideos{}, nil, nil, px, nil).StockVideos(ctx, pexels.SearchParams{Query: "ocean", PerPage: 5})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
