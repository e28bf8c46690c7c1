package middleware

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	"familyvault/internal/logging"
)

// Logger writes one JSON line per request to stdout.
func Logger() fiber.Handler {
	return LoggerWithWriter(os.Stdout, time.Local)
}

// LoggerWithWriter logs request_id, method, path, status and latency in
// milliseconds, with the timestamp rendered in loc. The request-scoped
// logger is also stored on the user context for handlers.
func LoggerWithWriter(w io.Writer, loc *time.Location) fiber.Handler {
	base := logging.New(w, loc)

	return func(c *fiber.Ctx) error {
		start := time.Now()
		rid := RequestIDFrom(c)
		reqLog := base.With(slog.String("request_id", rid))
		c.SetUserContext(logging.WithLogger(c.UserContext(), reqLog))

		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		reqLog.Info("request",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Float64("latency", float64(time.Since(start).Microseconds())/1000),
		)
		return err
	}
}
