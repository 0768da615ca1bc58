package middleware

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
)

// KeyLogger holds the request-scoped *slog.Logger set by RequestLogger.
const KeyLogger = "logger"

// Logger returns the request-scoped logger, or slog.Default() outside
// RequestLogger.
func Logger(c echo.Context) *slog.Logger {
	if l, ok := c.Get(KeyLogger).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// RequestLogger writes one record per request and hands handlers a child
// logger carrying the request id.  Server errors log at error level,
// client errors at warn.
func RequestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			reqLog := log
			if rid := c.Response().Header().Get(echo.HeaderXRequestID); rid != "" {
				reqLog = log.With("request_id", rid)
			}
			c.Set(KeyLogger, reqLog)
			err := next(c)
			if err != nil {
				// let echo write the response so the status is final
				c.Error(err)
			}
			req := c.Request()
			status := c.Response().Status
			attrs := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"route", c.Path(),
				"status", status,
				"latency_ms", time.Since(start).Milliseconds(),
				"ip", c.RealIP(),
				"user", identity(c),
			}
			if err != nil {
				attrs = append(attrs, "err", err)
			}
			switch {
			case status >= 500:
				reqLog.Error("request", attrs...)
			case status >= 400:
				reqLog.Warn("request", attrs...)
			default:
				reqLog.Info("request", attrs...)
			}
			return nil
		}
	}
}
