// Package handler holds the echo handlers.  Each handler depends on the
// small interface it needs; the concrete repositories and services are
// wired in cmd/smartvid.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/smartvid/smartvid/internal/apperr"
	"github.com/smartvid/smartvid/internal/integrations/elevenlabs"
	"github.com/smartvid/smartvid/internal/middleware"
	"github.com/smartvid/smartvid/internal/repository"
	"github.com/smartvid/smartvid/internal/service"
)

var errNoUser = errors.New("invalid user_id in context")

// getUserID extracts the authenticated user id set by middleware.JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
	if id, ok := middleware.UserID(c); ok {
		return id, nil
	}
	return 0, errNoUser
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func queryInt(c echo.Context, name string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(c.QueryParam(name))); err == nil {
		return v
	}
	return def
}

func queryBool(c echo.Context, name string) bool {
	switch strings.ToLower(strings.TrimSpace(c.QueryParam(name))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// bindValid binds the body into req and runs the registered validator.
// When it returns false the 400 response has already been written.
func bindValid(c echo.Context, req any) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if c.Echo().Validator != nil {
		if err := c.Validate(req); err != nil {
			return false, c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
	}
	return true, nil
}

// fail maps a service or repository error to a JSON response.
func fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrQuotaExceeded):
		return c.JSON(http.StatusForbidden, echo.Map{
			"error":   "quota_exceeded",
			"message": "You have reached the video limit of your plan. Upgrade to create more videos.",
		})
	case errors.Is(err, service.ErrRenderInProgress):
		return c.JSON(http.StatusConflict, echo.Map{"error": "render already in progress"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	case errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	case errors.Is(err, repository.ErrSlugExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "slug already exists"})
	case errors.Is(err, apperr.ErrDisabled):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "integration not configured"})
	case errors.Is(err, service.ErrInvalidPlan), errors.Is(err, service.ErrInvalidProvider),
		errors.Is(err, service.ErrInvalidWebhook), errors.Is(err, elevenlabs.ErrTextLength),
		errors.Is(err, service.ErrInvalidKey):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	cat := apperr.Classify(err)
	middleware.Logger(c).Error("handler: request failed", "method", c.Request().Method, "route", c.Path(), "category", cat, "err", err)
	return c.JSON(apperr.HTTPStatus(cat), echo.Map{"error": apperr.Message(cat), "category": cat})
}
