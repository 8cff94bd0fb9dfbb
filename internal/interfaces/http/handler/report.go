package handler

import (
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	appbilling "github.com/subledger/backend/internal/application/billing"
	"github.com/subledger/backend/internal/domain/billing"
)

// ArchivedReports reads reports kept by the in-process archive
type ArchivedReports interface {
	Get(key string) (data []byte, contentType string, ok bool)
}

// ReportHandler serves the debt and payment history workbooks
type ReportHandler struct {
	BaseHandler
	reportService *appbilling.ReportService
	archived      ArchivedReports
}

// NewReportHandler creates a new ReportHandler. archived may be nil when
// reports are archived to object storage.
func NewReportHandler(reportService *appbilling.ReportService, archived ArchivedReports) *ReportHandler {
	return &ReportHandler{reportService: reportService, archived: archived}
}

// DebtReport godoc
// @Summary  Download the debt report, optionally limited to ?tier=overdue,cutoff_pending
// @Tags     reports
// @Router   /reports/debts.xlsx [get]
func (h *ReportHandler) DebtReport(c *gin.Context) {
	var tiers []billing.StatusTier
	for _, raw := range c.QueryArray("tier") {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			tier := billing.StatusTier(part)
			if !tier.IsValid() {
				h.BadRequest(c, "Invalid tier: "+part)
				return
			}
			tiers = append(tiers, tier)
		}
	}

	report, err := h.reportService.DebtReport(c.Request.Context(), tiers)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.send(c, report)
}

// PaymentHistoryReport godoc
// @Summary  Download a customer's payment history
// @Tags     reports
// @Router   /customers/{id}/reports/payments.xlsx [get]
func (h *ReportHandler) PaymentHistoryReport(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	report, err := h.reportService.PaymentHistoryReport(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.send(c, report)
}

// send streams the workbook, or answers with the archive link when the
// caller asked for ?link=true and the report was archived
func (h *ReportHandler) send(c *gin.Context, report *appbilling.Report) {
	if c.Query("link") == "true" && report.URL != "" {
		link := ReportLinkData{Name: report.Name, URL: report.URL}
		if report.ExpiresAt != nil {
			link.ExpiresAt = report.ExpiresAt.Format(time.RFC3339)
		}
		h.Success(c, link)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Name))
	c.Data(http.StatusOK, report.ContentType, report.Data)
}

// Archived godoc
// @Summary  Download a previously archived report until its link expires
// @Tags     reports
// @Router   /reports/archive/{key} [get]
func (h *ReportHandler) Archived(c *gin.Context) {
	if h.archived == nil {
		h.NotFound(c, "Report archive is not served by this instance")
		return
	}
	key := c.Param("key")
	data, contentType, ok := h.archived.Get(key)
	if !ok {
		h.NotFound(c, "Report not found or expired")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(key)))
	c.Data(http.StatusOK, contentType, data)
}
