package handler

import (
	"github.com/gin-gonic/gin"
	appbilling "github.com/subledger/backend/internal/application/billing"
)

// ConfigHandler exposes the billing configuration and debt statistics
type ConfigHandler struct {
	BaseHandler
	configService *appbilling.ConfigService
	statsService  *appbilling.StatisticsService
}

// NewConfigHandler creates a new ConfigHandler
func NewConfigHandler(configService *appbilling.ConfigService, statsService *appbilling.StatisticsService) *ConfigHandler {
	return &ConfigHandler{configService: configService, statsService: statsService}
}

// Get godoc
// @Summary  Get the billing configuration
// @Tags     config
// @Router   /config [get]
func (h *ConfigHandler) Get(c *gin.Context) {
	cfg, err := h.configService.Get(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cfg)
}

// Update godoc
// @Summary  Replace the billing configuration
// @Tags     config
// @Router   /config [put]
func (h *ConfigHandler) Update(c *gin.Context) {
	var req appbilling.UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	cfg, err := h.configService.Update(c.Request.Context(), *req.ToBillingConfig())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cfg)
}

// DebtStatistics godoc
// @Summary  Get ledger-wide debt totals by status tier
// @Tags     debt
// @Router   /debts/stats [get]
func (h *ConfigHandler) DebtStatistics(c *gin.Context) {
	stats, err := h.statsService.DebtStatistics(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}
