package handler

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/subledger/backend/internal/interfaces/http/dto"
)

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// HealthHandler serves the liveness and dependency report
type HealthHandler struct {
	BaseHandler
	name      string
	version   string
	startTime time.Time
	timeout   time.Duration
	checks    map[string]HealthCheck
}

// NewHealthHandler creates a HealthHandler
func NewHealthHandler(name, version string) *HealthHandler {
	return &HealthHandler{
		name:      name,
		version:   version,
		startTime: time.Now(),
		timeout:   2 * time.Second,
		checks:    make(map[string]HealthCheck),
	}
}

// WithCheck registers a named dependency probe
func (h *HealthHandler) WithCheck(name string, check HealthCheck) *HealthHandler {
	h.checks[name] = check
	return h
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string            `json:"status"`
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	GoVersion string            `json:"go_version"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Health reports "ok" with 200 when every probe passes, otherwise
// "degraded" with 503
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{
		Status:    "ok",
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    make(map[string]string, len(h.checks)),
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	c.JSON(status, dto.NewSuccessResponse(resp))
}
