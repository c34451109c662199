package middleware

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"medvault/internal/logging"
)

// ErrorLocalKey is the context locals key under which handlers leave the internal error behind
// a 5xx response. The client never sees it; the request log does.
const ErrorLocalKey = "internal_error"

// Logger logs each HTTP request as one JSON line on stdout with UTC timestamps.
func Logger() fiber.Handler {
	return LoggerWithWriter(os.Stdout, time.UTC)
}

// LoggerWithWriter is Logger with an explicit destination and timestamp location.
// Fields: ts, level, msg, request_id, method, path, status, latency (ms), bytes.
// For streamed bodies bytes is the declared Content-Length (-1 when unknown); the stream itself
// is never read here.
// 5xx responses are logged at error level and 4xx at warn.
func LoggerWithWriter(w io.Writer, loc *time.Location) fiber.Handler {
	logger := logging.New(w, loc)

	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		rid, _ := c.Locals(RequestIDLocalKey).(string)

		level := slog.LevelInfo
		switch {
		case status >= fiber.StatusInternalServerError:
			level = slog.LevelError
		case status >= fiber.StatusBadRequest:
			level = slog.LevelWarn
		}

		attrs := []slog.Attr{
			slog.String("request_id", rid),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Float64("latency", float64(time.Since(start).Microseconds())/1000),
			slog.Int("bytes", responseSize(c.Response())),
		}
		if ie, ok := c.Locals(ErrorLocalKey).(string); ok && ie != "" {
			attrs = append(attrs, slog.String("error", ie))
		}
		logger.LogAttrs(c.UserContext(), level, "http_request", attrs...)

		return err
	}
}

func responseSize(resp *fasthttp.Response) int {
	if resp.IsBodyStream() {
		return resp.Header.ContentLength()
	}
	return len(resp.Body())
}
