// Package logger builds the slog loggers used across the service: a text
// console handler, an optional rotating JSON file, and the render log that
// records one line per render state change.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"

	"github.com/smartvid/smartvid/internal/config"
)

// Standard attribute keys.
const (
	FieldComponent = "component"
	FieldUserID    = "user_id"
	FieldVideoID   = "video_id"
	FieldRenderID  = "render_id"
)

// New returns the application logger.  Console output is always enabled;
// when cfg.File is set a JSON copy is written through lumberjack.
func New(cfg config.LogConfig) *slog.Logger {
	level := ParseLevel(cfg.Level)
	console := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	if strings.TrimSpace(cfg.File) == "" {
		return slog.New(console)
	}
	file := slog.NewJSONHandler(rotating(cfg, cfg.File), &slog.HandlerOptions{Level: level})
	return slog.New(Tee(console, file))
}

// NewRenderLog returns a JSON logger dedicated to render jobs.
func NewRenderLog(cfg config.LogConfig) *slog.Logger {
	if strings.TrimSpace(cfg.RenderFile) == "" {
		return Nop()
	}
	return slog.New(slog.NewJSONHandler(rotating(cfg, cfg.RenderFile), &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func rotating(cfg config.LogConfig, path string) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// Component tags a logger with a component name.
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = Nop()
	}
	return l.With(FieldComponent, name)
}

type fanoutHandler struct {
	handlers []slog.Handler
}

// Tee duplicates records to every non-nil handler.
func Tee(handlers ...slog.Handler) slog.Handler {
	filtered := make([]slog.Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			filtered = append(filtered, h)
		}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &fanoutHandler{handlers: filtered}
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: next}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &fanoutHandler{handlers: next}
}
