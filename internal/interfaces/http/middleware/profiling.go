package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/subledger/backend/internal/infrastructure/telemetry"
)

var profilingSkipPrefixes = []string{"/health", "/ws/"}

// Profiling attaches method and route pprof labels to each request so CPU
// time spent in payment application or reports shows up per endpoint.
// Route patterns keep label cardinality low.
func Profiling() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range profilingSkipPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}
		labels := map[string]string{
			"method": c.Request.Method,
			"route":  c.FullPath(),
		}
		telemetry.WithLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}
