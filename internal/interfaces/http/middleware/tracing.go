package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxRequestIDLength caps the request id copied into span attributes
const MaxRequestIDLength = 128

// Tracing starts the server span of each request
func Tracing(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// SpanEnricher tags the server span with the request id and the :id path
// parameter, and marks it failed for responses of 400 and above. It must be
// registered after Tracing.
func SpanEnricher() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}

		if id := c.GetString("request_id"); id != "" {
			if len(id) > MaxRequestIDLength {
				id = id[:MaxRequestIDLength]
			}
			span.SetAttributes(attribute.String("request_id", id))
		}
		if raw := c.Param("id"); raw != "" {
			if _, err := uuid.Parse(raw); err == nil {
				span.SetAttributes(attribute.String("path_id", raw))
			}
		}

		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusBadRequest {
			span.SetStatus(codes.Error, http.StatusText(status))
			span.SetAttributes(attribute.Int("http.status_code", status))
		}
	}
}
