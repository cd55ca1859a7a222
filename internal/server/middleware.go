package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	sessionhandler "pick3-session-gateway/internal/session/handler"
	"pick3-session-gateway/internal/telemetry"
)

type ctxKey int

const ipKey ctxKey = iota

// ClientIP copies the resolved client IP into the request context so code
// below the handler layer (audit logger) can read it without a gin dependency.
func ClientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithValue(c.Request.Context(), ipKey, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// ContextIP returns the client IP stashed by ClientIP, or "".
func ContextIP(ctx context.Context) string {
	ip, _ := ctx.Value(ipKey).(string)
	return ip
}

// httpRequestMetadata is the JSON shape stored in Event.Metadata for
// http_request events.
type httpRequestMetadata struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	StatusCode int    `json:"status_code"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
}

// RequestTelemetry emits one http_request event per request and counts it on
// the global meter. Best-effort: emission never fails the request. If emitter
// is nil only the counter is recorded. skipPaths are not emitted or counted.
func RequestTelemetry(emitter telemetry.EventEmitter, skipPaths map[string]bool) gin.HandlerFunc {
	meter := otel.Meter("pick3-session-gateway/internal/server")
	counter, _ := meter.Int64Counter("http.server.requests",
		metric.WithDescription("Completed HTTP requests"))

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if skipPaths[path] {
			return
		}
		status := c.Writer.Status()
		counter.Add(c.Request.Context(), 1,
			metric.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", path),
				attribute.Int("http.status_code", status),
			))
		if emitter == nil {
			return
		}
		meta := httpRequestMetadata{
			Method:     c.Request.Method,
			Path:       path,
			StatusCode: status,
			DurationMs: time.Since(start).Milliseconds(),
			ClientIP:   c.ClientIP(),
		}
		metaJSON, _ := json.Marshal(meta)
		event := telemetry.NewEvent(telemetry.EventHTTPRequest, "http_middleware",
			sessionhandler.SessionID(c), "", metaJSON)
		telemetry.EmitAsync(emitter, c.Request.Context(), event)
	}
}
