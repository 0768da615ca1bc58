// Package apperr classifies errors into the coarse categories used to pick
// an HTTP status and a user-facing message, and to decide what is worth
// retrying.
package apperr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Category is a coarse error class.
type Category string

const (
	CategoryAuth     Category = "auth"
	CategoryNetwork  Category = "network"
	CategoryNotFound Category = "not_found"
	CategoryServer   Category = "server"
	CategoryUnknown  Category = "unknown"
)

// Sentinels shared by repositories and services.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrDisabled     = errors.New("integration not configured")
)

// StatusError is returned by outbound HTTP clients for non-2xx responses.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, strings.TrimSpace(e.Body))
}

// Classify maps err to a Category.  Typed errors are checked first; a
// handful of message substrings catch errors from libraries that do not
// expose types.
func Classify(err error) Category {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrForbidden):
		return CategoryAuth
	case errors.Is(err, ErrNotFound), errors.Is(err, sql.ErrNoRows):
		return CategoryNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return CategoryNetwork
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return categoryForStatus(statusErr.StatusCode)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return CategoryNetwork
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return CategoryNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "jwt", "token", "unauthorized", "forbidden", "permission"):
		return CategoryAuth
	case containsAny(msg, "network", "connection refused", "connection reset", "timeout", "no such host"):
		return CategoryNetwork
	case containsAny(msg, "not found", "no rows"):
		return CategoryNotFound
	case containsAny(msg, "internal", "server error", "bad gateway", "unavailable"):
		return CategoryServer
	}
	return CategoryUnknown
}

func categoryForStatus(code int) Category {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return CategoryAuth
	case code == http.StatusNotFound:
		return CategoryNotFound
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= http.StatusInternalServerError:
		return CategoryServer
	}
	return CategoryUnknown
}

// Retryable reports whether an operation failing with err may succeed on a
// later attempt.  Cancellation is never retryable.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	switch Classify(err) {
	case CategoryNetwork, CategoryServer:
		return true
	}
	return false
}

// Message returns the user-facing text for a category.
func Message(c Category) string {
	switch c {
	case CategoryAuth:
		return "Your session has expired or you do not have access. Please sign in again."
	case CategoryNetwork:
		return "We could not reach the server. Check your connection and try again."
	case CategoryNotFound:
		return "The requested resource was not found."
	case CategoryServer:
		return "Something went wrong on our side. Please try again shortly."
	default:
		return "An unexpected error occurred."
	}
}

// HTTPStatus picks the response code used when err reaches a handler.
func HTTPStatus(c Category) int {
	switch c {
	case CategoryAuth:
		return http.StatusForbidden
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryNetwork, CategoryServer:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
