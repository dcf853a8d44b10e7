package middlewares

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-Id"
	maxRequestIDLen = 128
)

// RequestID keeps a caller-supplied X-Request-Id when it is sane and mints a
// uuid otherwise. The id is echoed on the response.
func RequestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := ctx.GetHeader(requestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}

		ctx.Set(CtxRequestID, id)
		ctx.Header(requestIDHeader, id)
		ctx.Next()
	}
}

func RequestIDFrom(ctx *gin.Context) string {
	if id := ctx.GetString(CtxRequestID); id != "" {
		return id
	}
	return ctx.GetHeader(requestIDHeader)
}

// RequestLogger writes one line per request once the handler chain is done.
// The context passed to slog carries the actor, so the ContextHandler adds
// actor_id and actor_role for authenticated requests.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := ctx.Writer.Status()

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}

		log.LogAttrs(ctx.Request.Context(), level, "http_request",
			slog.String("method", ctx.Request.Method),
			slog.String("route", route),
			slog.String("path", ctx.Request.URL.Path),
			slog.Int("status", status),
			slog.Int("bytes", ctx.Writer.Size()),
			slog.Int64("latency_ms", time.Since(start).Milliseconds()),
			slog.String("request_id", RequestIDFrom(ctx)),
		)
	}
}
