package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/smartvid/smartvid/internal/integrations/render"
	"github.com/smartvid/smartvid/internal/model"
	"github.com/smartvid/smartvid/internal/queue"
	"github.com/smartvid/smartvid/internal/repository"
	"github.com/smartvid/smartvid/internal/service"
)

// VideoManager is the project CRUD used by VideoHandler.
type VideoManager interface {
	Create(ctx context.Context, userID uint64, in service.VideoInput) (model.VideoProject, error)
	List(ctx context.Context, userID uint64, f repository.VideoFilter) ([]model.VideoProject, int64, error)
	Get(ctx context.Context, userID, id uint64) (model.VideoProject, error)
	Update(ctx context.Context, userID, id uint64, in service.VideoInput) (model.VideoProject, error)
	Delete(ctx context.Context, userID, id uint64) error
}

// Renderer starts renders and reads their status.
type Renderer interface {
	Request(ctx context.Context, userID, videoID uint64) (queue.RenderRequested, error)
	Status(ctx context.Context, userID uint64, renderID string) (render.Status, error)
}

// VideoHandler serves /v1/videos and the render endpoints.
type VideoHandler struct {
	Videos VideoManager
	Render Renderer
}

func NewVideoHandler(v VideoManager, r Renderer) *VideoHandler {
	return &VideoHandler{Videos: v, Render: r}
}

type videoReq struct {
	Title      string        `json:"title" validate:"required,max=255"`
	Script     string        `json:"script" validate:"max=20000"`
	VoiceID    string        `json:"voice_id" validate:"max=64"`
	TemplateID *uint64       `json:"template_id"`
	Scenes     []model.Scene `json:"scenes" validate:"max=12"`
}

func (r videoReq) input() service.VideoInput {
	return service.VideoInput{
		Title:      r.Title,
		Script:     r.Script,
		VoiceID:    strings.TrimSpace(r.VoiceID),
		TemplateID: r.TemplateID,
		Scenes:     r.Scenes,
	}
}

var videoStatuses = map[string]bool{
	model.VideoPending: true, model.VideoProcessing: true, model.VideoCompleted: true, model.VideoFailed: true,
}

// List returns a page of the caller's projects.
func (h *VideoHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	status := strings.ToLower(strings.TrimSpace(c.QueryParam("status")))
	if status != "" && !videoStatuses[status] {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}
	f := repository.VideoFilter{
		Status:   status,
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, total, err := h.Videos.List(ctx, uid, f)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "total": total, "page": f.Page})
}

// Create stores a new project if the plan allows it.
func (h *VideoHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req videoReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	v, err := h.Videos.Create(ctx, uid, req.input())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, v)
}

// Get returns one project.
func (h *VideoHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	v, err := h.Videos.Get(ctx, uid, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Update edits a project that is not being rendered.
func (h *VideoHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req videoReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	v, err := h.Videos.Update(ctx, uid, id, req.input())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Delete removes a project.
func (h *VideoHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Videos.Delete(ctx, uid, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// StartRender queues a render of the project.
func (h *VideoHandler) StartRender(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	// the broker fallback submits inline, so allow for the render API
	ctx, cancel := context.WithTimeout(c.Request().Context(), 20*time.Second)
	defer cancel()

	ev, err := h.Render.Request(ctx, uid, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"job_id": ev.JobID, "video_id": ev.VideoID, "status": model.VideoPending})
}

// RenderStatus reads one status of a render job owned by the caller.
func (h *VideoHandler) RenderStatus(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	renderID := strings.TrimSpace(c.Param("renderId"))
	if renderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "render id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	st, err := h.Render.Status(ctx, uid, renderID)
	if err != nil {
		if errors.Is(err, render.ErrInvalidRenderID) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"render":         st,
		"project_status": st.ProjectStatus(),
	})
}
