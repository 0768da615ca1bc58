package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/smartvid/smartvid/internal/model"
	"github.com/smartvid/smartvid/internal/repository"
)

// VideoInput is the editable part of a project.
type VideoInput struct {
	Title      string
	Script     string
	VoiceID    string
	TemplateID *uint64
	Scenes     []model.Scene
}

// VideoService implements project CRUD under the plan quota.
type VideoService struct {
	videos VideoStore
	usage  *UsageService
}

// NewVideoService wires a VideoService.
func NewVideoService(videos VideoStore, usage *UsageService) *VideoService {
	return &VideoService{videos: videos, usage: usage}
}

// Create stores a new pending project.  It fails with
// repository.ErrQuotaExceeded when the plan allows no more videos; the
// repository repeats the count under a row lock on user_quotas.
func (s *VideoService) Create(ctx context.Context, userID uint64, in VideoInput) (model.VideoProject, error) {
	u, err := s.usage.Check(ctx, userID)
	if err != nil {
		return model.VideoProject{}, err
	}
	if !u.CanCreate {
		return model.VideoProject{}, repository.ErrQuotaExceeded
	}
	v := model.VideoProject{
		UserID:     userID,
		TemplateID: in.TemplateID,
		Title:      strings.TrimSpace(in.Title),
		Script:     in.Script,
		VoiceID:    in.VoiceID,
		Status:     model.VideoPending,
	}
	if len(in.Scenes) > 0 {
		raw, err := json.Marshal(in.Scenes)
		if err != nil {
			return model.VideoProject{}, err
		}
		v.Scenes = raw
	}
	gate := repository.QuotaGate{Plan: u.Plan, Limit: u.Limit}
	if u.PeriodStart != nil {
		gate.Since = *u.PeriodStart
	}
	if err := s.videos.Create(ctx, &v, gate); err != nil {
		return model.VideoProject{}, fmt.Errorf("create video: %w", err)
	}
	return v, nil
}

// List returns a page of the user's projects.
func (s *VideoService) List(ctx context.Context, userID uint64, f repository.VideoFilter) ([]model.VideoProject, int64, error) {
	return s.videos.ListByUser(ctx, userID, f)
}

// Get loads one project owned by userID.
func (s *VideoService) Get(ctx context.Context, userID, id uint64) (model.VideoProject, error) {
	return s.videos.GetForUser(ctx, id, userID)
}

// Update edits a project.  Projects being rendered cannot change.
func (s *VideoService) Update(ctx context.Context, userID, id uint64, in VideoInput) (model.VideoProject, error) {
	v, err := s.videos.GetForUser(ctx, id, userID)
	if err != nil {
		return v, err
	}
	if v.Status == model.VideoProcessing {
		return v, repository.ErrConflict
	}
	v.Title = strings.TrimSpace(in.Title)
	v.Script = in.Script
	v.VoiceID = in.VoiceID
	v.TemplateID = in.TemplateID
	if err := s.videos.UpdateContent(ctx, v); err != nil {
		return v, err
	}
	if in.Scenes != nil {
		raw, err := json.Marshal(in.Scenes)
		if err != nil {
			return v, err
		}
		if err := s.videos.SetScenes(ctx, id, userID, raw); err != nil {
			return v, err
		}
	}
	return s.videos.GetForUser(ctx, id, userID)
}

// Delete removes a project owned by userID.
func (s *VideoService) Delete(ctx context.Context, userID, id uint64) error {
	return s.videos.Delete(ctx, id, userID)
}
