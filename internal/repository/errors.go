// Package repository contains the MySQL data access layer.  Each repo
// wraps a *sql.DB and speaks plain SQL; handlers and services only see
// the sentinel errors below and model structs.
package repository

import (
	"errors"

	"github.com/smartvid/smartvid/internal/apperr"
)

// ErrNotFound is returned when a row does not exist or is not visible to
// the caller.
var ErrNotFound = apperr.ErrNotFound

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.
var ErrForbidden = apperr.ErrForbidden

// ErrConflict is returned when the current state of a row does not allow
// the requested change, such as an invalid status transition.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned by UserRepo.Create for duplicate emails.
var ErrEmailExists = errors.New("email already exists")

// ErrSlugExists is returned when a blog slug is already taken.
var ErrSlugExists = errors.New("slug already exists")

// ErrQuotaExceeded is returned when the user's plan does not allow another
// video in the current period.
var ErrQuotaExceeded = errors.New("quota exceeded")
