package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/smartvid/smartvid/internal/model"
)

// ProfileStore reads and edits profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID uint64) (model.Profile, error)
	UpdateProfile(ctx context.Context, p model.Profile) error
}

// TemplateStore is the template catalogue.
type TemplateStore interface {
	List(ctx context.Context, category string, includeInactive bool) ([]model.Template, error)
	GetByID(ctx context.Context, id uint64) (model.Template, error)
	Create(ctx context.Context, t *model.Template) error
	Update(ctx context.Context, t model.Template) error
	Delete(ctx context.Context, id uint64) error
}

// NotificationInbox is a user's in-app notifications.
type NotificationInbox interface {
	ListByUser(ctx context.Context, userID uint64, unreadOnly bool, limit int) ([]model.Notification, error)
	CountUnread(ctx context.Context, userID uint64) (int, error)
	MarkRead(ctx context.Context, id, userID uint64) error
	MarkAllRead(ctx context.Context, userID uint64) (int64, error)
	Delete(ctx context.Context, id, userID uint64) error
}

// ContentHandler serves profile, template and notification routes.
type ContentHandler struct {
	Profiles      ProfileStore
	Templates     TemplateStore
	Notifications NotificationInbox
}

func NewContentHandler(p ProfileStore, t TemplateStore, n NotificationInbox) *ContentHandler {
	return &ContentHandler{Profiles: p, Templates: t, Notifications: n}
}

type profileReq struct {
	FullName  string `json:"full_name" validate:"max=120"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url,max=500"`
	Company   string `json:"company" validate:"max=120"`
}

// GetProfile returns the caller's profile.
func (h *ContentHandler) GetProfile(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Profiles.GetProfile(ctx, uid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// UpdateProfile edits the caller's profile.
func (h *ContentHandler) UpdateProfile(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req profileReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err = h.Profiles.UpdateProfile(ctx, model.Profile{
		UserID:    uid,
		FullName:  strings.TrimSpace(req.FullName),
		AvatarURL: strings.TrimSpace(req.AvatarURL),
		Company:   strings.TrimSpace(req.Company),
	})
	if err != nil {
		return fail(c, err)
	}
	p, err := h.Profiles.GetProfile(ctx, uid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// ListTemplates returns the active templates, optionally by category.
func (h *ContentHandler) ListTemplates(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Templates.List(ctx, c.QueryParam("category"), false)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetTemplate returns one active template.
func (h *ContentHandler) GetTemplate(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	t, err := h.Templates.GetByID(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	if !t.IsActive {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	return c.JSON(http.StatusOK, t)
}

// ListNotifications returns the newest notifications and the unread count.
func (h *ContentHandler) ListNotifications(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Notifications.ListByUser(ctx, uid, queryBool(c, "unread"), queryInt(c, "limit", 50))
	if err != nil {
		return fail(c, err)
	}
	unread, err := h.Notifications.CountUnread(ctx, uid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "unread": unread})
}

// MarkNotificationRead flags one notification as read.
func (h *ContentHandler) MarkNotificationRead(c echo.Context) error {
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

	if err := h.Notifications.MarkRead(ctx, id, uid); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// MarkAllNotificationsRead flags every notification as read.
func (h *ContentHandler) MarkAllNotificationsRead(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	n, err := h.Notifications.MarkAllRead(ctx, uid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": n})
}

// DeleteNotification removes one notification.
func (h *ContentHandler) DeleteNotification(c echo.Context) error {
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

	if err := h.Notifications.Delete(ctx, id, uid); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
