package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smartvid/smartvid/internal/apperr"
	"github.com/smartvid/smartvid/internal/integrations/email"
	"github.com/smartvid/smartvid/internal/integrations/llm"
	"github.com/smartvid/smartvid/internal/integrations/render"
	"github.com/smartvid/smartvid/internal/logger"
	"github.com/smartvid/smartvid/internal/model"
	"github.com/smartvid/smartvid/internal/queue"
	"github.com/smartvid/smartvid/internal/realtime"
	"github.com/smartvid/smartvid/internal/repository"
)

// ErrRenderInProgress is returned when a project is already rendering.
var ErrRenderInProgress = errors.New("render already in progress")

// FootageFinder picks stock footage for a scene; pexels.Client implements it.
type FootageFinder interface {
	FirstFileURL(ctx context.Context, query, orientation string) (string, error)
}

// PollPolicy controls how the worker waits for a render.
type PollPolicy struct {
	Initial  time.Duration
	Max      time.Duration
	Deadline time.Duration
}

// DefaultPollPolicy polls after 2s, doubling up to 30s, for 10 minutes.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{Initial: 2 * time.Second, Max: 30 * time.Second, Deadline: 10 * time.Minute}
}

// RenderDeps groups the collaborators of a RenderService.  Footage,
// Dispatch, Events, Logs and RenderLog are optional.
type RenderDeps struct {
	Videos    VideoStore
	Logs      RenderLogStore
	Client    render.Client
	Footage   FootageFinder
	Usage     *UsageService
	Dispatch  RenderDispatcher
	Notifier  *Notifier
	Events    EventPublisher
	Log       *slog.Logger
	RenderLog *slog.Logger
	Poll      PollPolicy
}

// RenderService requests renders, runs them to completion and proxies
// status reads.
type RenderService struct {
	videos    VideoStore
	logs      RenderLogStore
	client    render.Client
	footage   FootageFinder
	usage     *UsageService
	dispatch  RenderDispatcher
	notifier  *Notifier
	events    EventPublisher
	log       *slog.Logger
	renderLog *slog.Logger
	poll      PollPolicy

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewRenderService wires a RenderService.
func NewRenderService(d RenderDeps) *RenderService {
	s := &RenderService{
		videos:    d.Videos,
		logs:      d.Logs,
		client:    d.Client,
		footage:   d.Footage,
		usage:     d.Usage,
		dispatch:  d.Dispatch,
		notifier:  d.Notifier,
		events:    d.Events,
		log:       d.Log,
		renderLog: d.RenderLog,
		poll:      d.Poll,
		now:       time.Now,
		sleep:     sleepCtx,
	}
	if s.events == nil {
		s.events = nopPublisher{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.renderLog == nil {
		s.renderLog = logger.Nop()
	}
	def := DefaultPollPolicy()
	if s.poll.Initial <= 0 {
		s.poll.Initial = def.Initial
	}
	if s.poll.Max < s.poll.Initial {
		s.poll.Max = def.Max
	}
	if s.poll.Deadline <= 0 {
		s.poll.Deadline = def.Deadline
	}
	return s
}

// Request validates that userID may render videoID and hands the job to
// the worker queue.  When the broker is unreachable the job is submitted
// in-process and polled in the background.
func (s *RenderService) Request(ctx context.Context, userID, videoID uint64) (queue.RenderRequested, error) {
	v, err := s.videos.GetForUser(ctx, videoID, userID)
	if err != nil {
		return queue.RenderRequested{}, err
	}
	switch v.Status {
	case model.VideoProcessing:
		return queue.RenderRequested{}, ErrRenderInProgress
	case model.VideoCompleted:
		return queue.RenderRequested{}, repository.ErrConflict
	}
	if strings.TrimSpace(v.Script) == "" && len(decodeScenes(v.Scenes)) == 0 {
		return queue.RenderRequested{}, fmt.Errorf("%w: project has no script or scenes", repository.ErrConflict)
	}

	u, err := s.usage.Check(ctx, userID)
	if err != nil {
		return queue.RenderRequested{}, err
	}
	// the project itself is already counted in Used
	if u.Used > u.Limit {
		return queue.RenderRequested{}, repository.ErrQuotaExceeded
	}

	if v.Status == model.VideoFailed {
		if err := s.videos.UpdateStatus(ctx, v.ID, repository.StatusUpdate{Status: model.VideoPending}); err != nil {
			return queue.RenderRequested{}, err
		}
		v.Status = model.VideoPending
	}

	ev := queue.RenderRequested{JobID: uuid.NewString(), VideoID: v.ID, UserID: userID, RequestedAt: s.now().UTC()}
	if s.dispatch != nil {
		if err := s.dispatch.PublishRenderRequested(ctx, ev); err == nil {
			return ev, nil
		}
		s.log.Warn("render: broker unavailable, rendering in-process", "video_id", v.ID)
	}

	renderID, err := s.submit(ctx, v)
	if err != nil {
		return ev, err
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		if err := s.watch(bg, v, renderID, s.now()); err != nil {
			s.log.Error("render: in-process poll failed", "video_id", v.ID, "render_id", renderID, "err", err)
		}
	}()
	return ev, nil
}

// Process runs one queued job: submit the edit, then poll until the
// render finishes, fails or the deadline passes.
func (s *RenderService) Process(ctx context.Context, ev queue.RenderRequested) error {
	v, err := s.videos.GetByID(ctx, ev.VideoID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("render: project vanished, dropping job", "video_id", ev.VideoID)
			return nil
		}
		return err
	}
	if v.UserID != ev.UserID {
		return fmt.Errorf("render: job %s: %w", ev.JobID, repository.ErrForbidden)
	}
	started := ev.RequestedAt
	if started.IsZero() {
		started = s.now()
	}

	if !model.CanTransition(v.Status, model.VideoProcessing) {
		return nil
	}
	if v.Status == model.VideoProcessing && v.RenderID != "" {
		// redelivered after a restart
		return s.watch(ctx, v, v.RenderID, started)
	}

	renderID, err := s.submit(ctx, v)
	if err != nil {
		return err
	}
	return s.watch(ctx, v, renderID, started)
}

// submit resolves footage, sends the edit and moves the project to
// processing.  A rejected submission marks the project failed.
func (s *RenderService) submit(ctx context.Context, v model.VideoProject) (string, error) {
	job := render.Job{VideoID: v.ID, Title: v.Title, AudioURL: v.AudioURL, Scenes: s.prepareScenes(ctx, v)}
	renderID, err := s.client.Submit(ctx, job)
	if err != nil {
		if !apperr.Retryable(err) {
			s.finish(ctx, v, "", render.Status{Label: render.LabelFailed, Error: err.Error()}, s.now())
		}
		return "", fmt.Errorf("render submit: %w", err)
	}
	queued := render.Status{ID: renderID, Label: render.LabelQueued}
	if err := s.videos.UpdateStatus(ctx, v.ID, repository.StatusUpdate{Status: queued.ProjectStatus(), RenderID: renderID}); err != nil {
		return "", fmt.Errorf("render: mark processing: %w", err)
	}
	s.record(ctx, v, renderID, queued, s.now())
	s.publish(ctx, v, queued.ProjectStatus(), queued)
	return renderID, nil
}

func (s *RenderService) prepareScenes(ctx context.Context, v model.VideoProject) []model.Scene {
	scenes := decodeScenes(v.Scenes)
	if len(scenes) == 0 {
		scenes = []model.Scene{{
			SceneNumber: 1,
			Description: v.Title,
			Narration:   v.Script,
			SearchQuery: v.Title,
			Duration:    llm.DefaultSceneDuration,
		}}
	}
	if s.footage == nil {
		return scenes
	}
	for i := range scenes {
		if scenes[i].FootageURL != "" || strings.TrimSpace(scenes[i].SearchQuery) == "" {
			continue
		}
		u, err := s.footage.FirstFileURL(ctx, scenes[i].SearchQuery, "landscape")
		if err != nil {
			s.log.Warn("render: footage lookup failed", "video_id", v.ID, "query", scenes[i].SearchQuery, "err", err)
			continue
		}
		scenes[i].FootageURL = u
	}
	return scenes
}

// watch polls renderID with doubling intervals until it is terminal.
func (s *RenderService) watch(ctx context.Context, v model.VideoProject, renderID string, started time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.poll.Deadline)
	defer cancel()

	interval := s.poll.Initial
	last := render.LabelQueued
	for {
		st, err := s.client.Status(ctx, renderID)
		switch {
		case err == nil:
			if st.Label != last {
				last = st.Label
				if st.Terminal() {
					s.finish(ctx, v, renderID, st, started)
					return nil
				}
				s.progress(ctx, v, renderID, st, started)
			}
		case errors.Is(err, render.ErrInvalidRenderID):
			s.finish(ctx, v, renderID, render.Status{ID: renderID, Label: render.LabelFailed, Error: err.Error()}, started)
			return nil
		case ctx.Err() == nil:
			s.log.Warn("render: status read failed", "video_id", v.ID, "render_id", renderID, "err", err)
		}

		if err := s.sleep(ctx, interval); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				timeout := render.Status{ID: renderID, Label: render.LabelFailed, Error: "render timed out"}
				s.finish(context.WithoutCancel(ctx), v, renderID, timeout, started)
				return nil
			}
			return err
		}
		interval *= 2
		if interval > s.poll.Max {
			interval = s.poll.Max
		}
	}
}

func (s *RenderService) progress(ctx context.Context, v model.VideoProject, renderID string, st render.Status, started time.Time) {
	err := s.videos.UpdateStatus(ctx, v.ID, repository.StatusUpdate{Status: st.ProjectStatus(), RenderID: renderID})
	if err != nil {
		s.log.Warn("render: update progress failed", "video_id", v.ID, "render_id", renderID, "err", err)
	}
	s.record(ctx, v, renderID, st, started)
	s.publish(ctx, v, st.ProjectStatus(), st)
}

// finish stores a terminal status and tells the user.
func (s *RenderService) finish(ctx context.Context, v model.VideoProject, renderID string, st render.Status, started time.Time) {
	status := st.ProjectStatus()
	u := repository.StatusUpdate{Status: status, RenderID: renderID}
	if status == model.VideoCompleted {
		u.VideoURL = st.URL
		u.ThumbnailURL = st.ThumbnailURL
		u.DurationSeconds = int(math.Round(st.Duration))
	} else {
		u.ErrorMessage = st.Error
		if u.ErrorMessage == "" {
			u.ErrorMessage = "render failed"
		}
	}
	if err := s.videos.UpdateStatus(ctx, v.ID, u); err != nil {
		// a concurrent poller already finished this project
		s.log.Warn("render: store result failed", "video_id", v.ID, "render_id", renderID, "status", status, "err", err)
		return
	}
	s.record(ctx, v, renderID, st, started)
	s.publish(ctx, v, status, st)

	if s.notifier == nil {
		return
	}
	link := s.notifier.Link(fmt.Sprintf("/dashboard/videos/%d", v.ID))
	if status == model.VideoCompleted {
		_ = s.notifier.Notify(ctx, v.UserID, model.NotifyVideoCompleted, "Your video is ready",
			fmt.Sprintf("%q finished rendering.", v.Title), link)
		_ = s.notifier.Email(ctx, v.UserID, func(to string) email.Message {
			return email.RenderCompleted(to, v.Title, link)
		})
		return
	}
	_ = s.notifier.Notify(ctx, v.UserID, model.NotifyVideoFailed, "Render failed",
		fmt.Sprintf("%q could not be rendered: %s", v.Title, u.ErrorMessage), link)
	_ = s.notifier.Email(ctx, v.UserID, func(to string) email.Message {
		return email.RenderFailed(to, v.Title, u.ErrorMessage, link)
	})
}

func (s *RenderService) record(ctx context.Context, v model.VideoProject, renderID string, st render.Status, started time.Time) {
	elapsed := s.now().Sub(started).Milliseconds()
	if elapsed < 0 {
		elapsed = 0
	}
	s.renderLog.Info("render status",
		logger.FieldVideoID, v.ID,
		logger.FieldUserID, v.UserID,
		logger.FieldRenderID, renderID,
		"status", st.Label,
		"elapsed_ms", elapsed,
		"error", st.Error,
	)
	if s.logs == nil || renderID == "" {
		return
	}
	entry := model.RenderLog{VideoID: v.ID, RenderID: renderID, Status: st.Label, DurationMs: elapsed, ErrorMessage: st.Error}
	if err := s.logs.Record(ctx, entry); err != nil {
		s.log.Warn("render: record log failed", "video_id", v.ID, "render_id", renderID, "err", err)
	}
}

func (s *RenderService) publish(ctx context.Context, v model.VideoProject, status string, st render.Status) {
	_ = s.events.Publish(ctx, v.UserID, realtime.EventVideoUpdated, map[string]any{
		"id":            v.ID,
		"status":        status,
		"render_id":     st.ID,
		"render_status": st.Label,
		"video_url":     st.URL,
		"thumbnail_url": st.ThumbnailURL,
		"error":         st.Error,
	})
}

// Status reads the provider status of a render owned by userID.
func (s *RenderService) Status(ctx context.Context, userID uint64, renderID string) (render.Status, error) {
	v, err := s.videos.GetByRenderID(ctx, renderID)
	if err != nil {
		return render.Status{}, err
	}
	if v.UserID != userID {
		return render.Status{}, repository.ErrForbidden
	}
	return s.client.Status(ctx, renderID)
}

func decodeScenes(raw json.RawMessage) []model.Scene {
	if len(raw) == 0 {
		return nil
	}
	var scenes []model.Scene
	if err := json.Unmarshal(raw, &scenes); err != nil {
		return nil
	}
	return scenes
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
