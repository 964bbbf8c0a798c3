package middleware

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger is the process-wide structured logger. It starts as a text logger
// on stdout; ConfigureLogger swaps it once config is loaded.
var Logger = NewLogger(os.Stdout, false, slog.LevelInfo)

type contextKey string

// UserIDLocal is the fiber.Ctx locals key the auth middleware stores the
// authenticated user id under.
const UserIDLocal = "userID"

const (
	RequestIDKey contextKey = "request_id"
	// UserIDKey holds the authenticated user id (string) in the request context.
	UserIDKey  contextKey = "user_id"
	TraceIDKey contextKey = "trace_id"
)

// requestScoped lists the context values copied onto every record.
var requestScoped = []contextKey{RequestIDKey, UserIDKey, TraceIDKey}

// requestAttrHandler copies request-scoped context values onto each record.
type requestAttrHandler struct {
	next slog.Handler
}

func (h requestAttrHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h requestAttrHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, key := range requestScoped {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			r.AddAttrs(slog.String(string(key), v))
		}
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs and WithGroup keep the wrapper so Logger.With(...) children
// still pick up request ids.
func (h requestAttrHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return requestAttrHandler{next: h.next.WithAttrs(attrs)}
}

func (h requestAttrHandler) WithGroup(name string) slog.Handler {
	return requestAttrHandler{next: h.next.WithGroup(name)}
}

// NewLogger builds a request-aware logger writing JSON in production and
// text everywhere else.
func NewLogger(w io.Writer, production bool, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var base slog.Handler = slog.NewTextHandler(w, opts)
	if production {
		base = slog.NewJSONHandler(w, opts)
	}
	return slog.New(requestAttrHandler{next: base})
}

// ParseLevel maps LOG_LEVEL values onto slog levels; unknown values are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// ConfigureLogger replaces Logger and the slog default. Call it once, right
// after config is loaded and before serving.
func ConfigureLogger(production bool, level string) {
	Logger = NewLogger(os.Stdout, production, ParseLevel(level))
	slog.SetDefault(Logger)
}

// ContextMiddleware copies the request id into the user context so service
// and repository logs can be tied back to the request. The user id and
// trace id are added by AuthRequired and TracingMiddleware.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			c.SetUserContext(context.WithValue(c.UserContext(), RequestIDKey, rid))
		}
		return c.Next()
	}
}

// quietPaths are polled by orchestrators; a success there logs at debug.
var quietPaths = map[string]bool{
	"/health":       true,
	"/health/live":  true,
	"/health/ready": true,
	"/metrics":      true,
}

// StructuredLogger logs one line per request. The level follows the
// outcome: 5xx and handler errors at error, 4xx at warn.
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []slog.Attr{
			slog.Int("status", status),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("route", c.Route().Path),
			slog.String("ip", c.IP()),
			slog.Duration("latency", time.Since(start)),
		}
		if postID := c.Params("id"); postID != "" {
			attrs = append(attrs, slog.String("post_id", postID))
		}

		level, msg := slog.LevelInfo, "request processed"
		switch {
		case err != nil:
			attrs = append(attrs, slog.String("error", err.Error()))
			level, msg = slog.LevelError, "request failed"
		case status >= fiber.StatusInternalServerError:
			level = slog.LevelError
		case status >= fiber.StatusBadRequest:
			level = slog.LevelWarn
		case quietPaths[c.Path()]:
			level = slog.LevelDebug
		}

		Logger.LogAttrs(c.UserContext(), level, msg, attrs...)
		return err
	}
}
