package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/smartvid/smartvid/internal/apperr"
	"github.com/smartvid/smartvid/internal/integrations/elevenlabs"
	"github.com/smartvid/smartvid/internal/integrations/llm"
	"github.com/smartvid/smartvid/internal/integrations/pexels"
	"github.com/smartvid/smartvid/internal/model"
)

// SceneGenerator is implemented by llm.Client.
type SceneGenerator interface {
	GenerateScenes(ctx context.Context, req llm.SceneRequest) ([]model.Scene, error)
}

// SpeechSynthesizer is implemented by elevenlabs.Client.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// FootageSearcher is implemented by pexels.Client.
type FootageSearcher interface {
	Search(ctx context.Context, p pexels.SearchParams) ([]pexels.Video, error)
	FirstFileURL(ctx context.Context, query, orientation string) (string, error)
}

// Speech is synthesized narration, stored when it belongs to a project.
type Speech struct {
	Audio []byte
	URL   string
}

// MediaService fronts the generative and stock media APIs.
type MediaService struct {
	videos  VideoStore
	scenes  SceneGenerator
	speech  SpeechSynthesizer
	footage FootageSearcher
	store   MediaStore
}

// NewMediaService wires the service.  Any integration may be nil, which
// makes its operation return apperr.ErrDisabled.
func NewMediaService(videos VideoStore, scenes SceneGenerator, speech SpeechSynthesizer, footage FootageSearcher, store MediaStore) *MediaService {
	return &MediaService{videos: videos, scenes: scenes, speech: speech, footage: footage, store: store}
}

// Scenes breaks a script into scenes.  With videoID set the result is
// stored on that project, which must belong to userID.
func (s *MediaService) Scenes(ctx context.Context, userID, videoID uint64, req llm.SceneRequest) ([]model.Scene, error) {
	if s.scenes == nil {
		return nil, apperr.ErrDisabled
	}
	if videoID != 0 {
		if _, err := s.videos.GetForUser(ctx, videoID, userID); err != nil {
			return nil, err
		}
	}
	scenes, err := s.scenes.GenerateScenes(ctx, req)
	if err != nil {
		return nil, err
	}
	if videoID != 0 {
		raw, err := json.Marshal(scenes)
		if err != nil {
			return nil, err
		}
		if err := s.videos.SetScenes(ctx, videoID, userID, raw); err != nil {
			return nil, fmt.Errorf("store scenes: %w", err)
		}
	}
	return scenes, nil
}

// Speak synthesizes text.  With videoID set the audio is stored and its
// URL recorded on the project.
func (s *MediaService) Speak(ctx context.Context, userID, videoID uint64, text, voiceID string) (Speech, error) {
	if s.speech == nil {
		return Speech{}, apperr.ErrDisabled
	}
	if err := elevenlabs.ValidateText(text); err != nil {
		return Speech{}, err
	}
	if videoID != 0 {
		if _, err := s.videos.GetForUser(ctx, videoID, userID); err != nil {
			return Speech{}, err
		}
	}
	audio, err := s.speech.Synthesize(ctx, text, voiceID)
	if err != nil {
		return Speech{}, err
	}
	out := Speech{Audio: audio}
	if videoID == 0 || s.store == nil {
		return out, nil
	}
	key := "audio/" + strconv.FormatUint(userID, 10) + "/" + uuid.NewString() + ".mp3"
	url, err := s.store.Save(ctx, key, audio)
	if err != nil {
		return out, fmt.Errorf("store audio: %w", err)
	}
	if err := s.videos.SetAudioURL(ctx, videoID, userID, url); err != nil {
		return out, fmt.Errorf("record audio: %w", err)
	}
	out.URL = url
	return out, nil
}

// StockVideos searches stock footage.
func (s *MediaService) StockVideos(ctx context.Context, p pexels.SearchParams) ([]pexels.Video, error) {
	if s.footage == nil {
		return nil, apperr.ErrDisabled
	}
	return s.footage.Search(ctx, p)
}
