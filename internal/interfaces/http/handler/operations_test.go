package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/infrastructure/export"
	"github.com/subledger/backend/internal/infrastructure/scheduler"
	"github.com/subledger/backend/internal/interfaces/http/dto"
)

func TestNotificationHandler_EvaluateAndAcknowledge(t *testing.T) {
	api := newTestAPI(t, day(2024, 3, 20))
	c := api.register(t, "Ana", "25", day(2024, 1, 5))
	base := "/api/v1/customers/" + c.ID.String()

	w := api.do(t, http.MethodPost, base+"/notifications/evaluate", map[string]any{"today": day(2024, 3, 5)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	events := decode[[]billing.NotificationEvent](t, w).Data
	require.Len(t, events, 1)
	assert.Equal(t, billing.NotificationKindReminder, events[0].Kind)
	assert.Equal(t, billing.DeliveryStatusPending, events[0].Status)

	// a second evaluation of the same day emits nothing new
	w = api.do(t, http.MethodPost, base+"/notifications/evaluate", map[string]any{"today": day(2024, 3, 5)})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]billing.NotificationEvent](t, w).Data)

	ack := "/api/v1/notifications/" + events[0].ID.String() + "/ack"
	w = api.do(t, http.MethodPost, ack, map[string]any{"status": "sent"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, billing.DeliveryStatusSent, decode[billing.NotificationEvent](t, w).Data.Status)

	w = api.do(t, http.MethodPost, ack, map[string]any{"status": "failed", "error": "late"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidState, errorCode(t, w))

	w = api.do(t, http.MethodPost, ack, map[string]any{"status": "bounced"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/notifications/"+uuid.NewString()+"/ack", map[string]any{"status": "sent"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodGet, base+"/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]billing.NotificationEvent](t, w).Data, 1)
}

func TestNotificationHandler_StreamDisabled(t *testing.T) {
	api := newTestAPI(t, day(2024, 3, 20))

	w := api.do(t, http.MethodGet, "/ws/notifications", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConfigHandler_GetAndUpdate(t *testing.T) {
	api := newTestAPI(t, day(2024, 3, 20))

	w := api.do(t, http.MethodGet, "/api/v1/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, decode[billing.BillingConfig](t, w).Data.DueDay)

	update := map[string]any{
		"due_day":               15,
		"grace_days":            2,
		"late_fee_rate":         "0.1",
		"upcoming_window_days":  5,
		"cutoff_threshold_days": 10,
		"reminder_lead_days":    3,
		"cutoff_warning_days":   2,
	}
	w = api.do(t, http.MethodPut, "/api/v1/config", update)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cfg := decode[billing.BillingConfig](t, w).Data
	assert.Equal(t, 15, cfg.DueDay)
	assert.Equal(t, "0.1", cfg.LateFeeRate.String())

	update["due_day"] = 31
	w = api.do(t, http.MethodPut, "/api/v1/config", update)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeValidation, errorCode(t, w))
}

func TestConfigHandler_DebtStatistics(t *testing.T) {
	api := newTestAPI(t, day(2024, 3, 20))
	api.register(t, "Ana", "25", day(2024, 1, 5))
	api.register(t, "Bruno", "30", day(2024, 2, 5))

	w := api.do(t, http.MethodGet, "/api/v1/debts/stats", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stats := decode[billing.DebtStatistics](t, w).Data
	assert.Equal(t, int64(2), stats.TotalCustomers)
	assert.Equal(t, day(2024, 3, 20), stats.GeneratedAt.UTC())
}

func TestReportHandler_DebtReport(t *testing.T) {
	api := newTestAPI(t, day(2024, 3, 20))
	api.register(t, "Ana", "25", day(2024, 1, 5))

	w := api.do(t, http.MethodGet, "/api/v1/reports/debts.xlsx?tier=current", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, export.ContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "debts_")
	// xlsx files are zip archives
	assert.True(t, strings.HasPrefix(w.Body.String(), "PK"))

	w = api.do(t, http.MethodGet, "/api/v1/reports/debts.xlsx?tier=late", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandler_LinkAndArchiveDownload(t *testing.T) {
	api := newTestAPI(t, day(2024, 3, 20))
	c := api.register(t, "Ana", "25", day(2024, 1, 5))

	w := api.do(t, http.MethodGet, "/api/v1/customers/"+c.ID.String()+"/reports/payments.xlsx?link=true", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	link := decode[ReportLinkData](t, w).Data
	require.True(t, strings.HasPrefix(link.URL, "/api/v1/reports/archive/payments_"), link.URL)
	assert.NotEmpty(t, link.ExpiresAt)

	w = api.do(t, http.MethodGet, link.URL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.ContentType, w.Header().Get("Content-Type"))

	w = api.do(t, http.MethodGet, "/api/v1/reports/archive/missing.xlsx", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/customers/"+uuid.NewString()+"/reports/payments.xlsx", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type stubRunner struct {
	runs map[string]error
}

func (s *stubRunner) Jobs() []scheduler.JobInfo {
	return []scheduler.JobInfo{{Name: "sweep_overdue", Schedule: "0 1 * * *"}}
}

func (s *stubRunner) RunNow(_ context.Context, name string) (*scheduler.JobRun, error) {
	err, ok := s.runs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", scheduler.ErrJobNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return &scheduler.JobRun{Job: name, Status: scheduler.JobStatusSuccess}, nil
}

func (s *stubRunner) History(name string) ([]scheduler.JobRun, error) {
	if _, ok := s.runs[name]; !ok {
		return nil, fmt.Errorf("%w: %s", scheduler.ErrJobNotFound, name)
	}
	return []scheduler.JobRun{{Job: name, Status: scheduler.JobStatusSuccess}}, nil
}

func TestJobHandler(t *testing.T) {
	h := NewJobHandler(&stubRunner{runs: map[string]error{
		"sweep_overdue": nil,
		"notify":        fmt.Errorf("%w: notify", scheduler.ErrJobAlreadyRunning),
		"recompute":     errors.New("database is locked"),
	}})
	engine := gin.New()
	engine.GET("/jobs", h.List)
	engine.POST("/jobs/:name/run", h.Run)
	engine.GET("/jobs/:name/runs", h.History)

	cases := []struct {
		method, path string
		status       int
	}{
		{http.MethodGet, "/jobs", http.StatusOK},
		{http.MethodPost, "/jobs/sweep_overdue/run", http.StatusOK},
		{http.MethodPost, "/jobs/notify/run", http.StatusConflict},
		{http.MethodPost, "/jobs/recompute/run", http.StatusInternalServerError},
		{http.MethodPost, "/jobs/unknown/run", http.StatusNotFound},
		{http.MethodGet, "/jobs/sweep_overdue/runs", http.StatusOK},
		{http.MethodGet, "/jobs/unknown/runs", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
}

func TestHealthHandler(t *testing.T) {
	healthy := NewHealthHandler("subledger", "test").
		WithCheck("database", func(context.Context) error { return nil })
	degraded := NewHealthHandler("subledger", "test").
		WithCheck("database", func(context.Context) error { return nil }).
		WithCheck("redis", func(context.Context) error { return errors.New("connection refused") })

	for name, tc := range map[string]struct {
		h      *HealthHandler
		status int
		want   string
	}{
		"all checks pass": {healthy, http.StatusOK, "ok"},
		"one check fails": {degraded, http.StatusServiceUnavailable, "degraded"},
	} {
		t.Run(name, func(t *testing.T) {
			engine := gin.New()
			engine.GET("/health", tc.h.Health)
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			require.Equal(t, tc.status, w.Code)
			resp := decode[HealthResponse](t, w)
			assert.Equal(t, tc.want, resp.Data.Status)
			assert.Equal(t, "ok", resp.Data.Checks["database"])
		})
	}
}

func TestBaseHandler_HandleErrorHidesUnknownErrors(t *testing.T) {
	h := &BaseHandler{}
	engine := gin.New()
	engine.GET("/", func(c *gin.Context) {
		c.Set(requestIDKey, "req-1")
		h.HandleError(c, errors.New("pq: password authentication failed"))
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodeInternal, resp.Error.Code)
	assert.Equal(t, "req-1", resp.Error.RequestID)
	assert.NotContains(t, resp.Error.Message, "password")
}
