package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	appbilling "github.com/subledger/backend/internal/application/billing"
	"github.com/subledger/backend/internal/interfaces/http/dto"
)

// CustomerHandler handles subscriber registration and lookups
type CustomerHandler struct {
	BaseHandler
	customerService *appbilling.CustomerService
}

// NewCustomerHandler creates a new CustomerHandler
func NewCustomerHandler(customerService *appbilling.CustomerService) *CustomerHandler {
	return &CustomerHandler{customerService: customerService}
}

// Register godoc
// @Summary  Register a subscriber
// @Tags     customers
// @Router   /customers [post]
func (h *CustomerHandler) Register(c *gin.Context) {
	var req appbilling.RegisterCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	customer, err := h.customerService.Register(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, customer)
}

// GetByID godoc
// @Summary  Get a subscriber with its debt summary
// @Tags     customers
// @Router   /customers/{id} [get]
func (h *CustomerHandler) GetByID(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	customer, err := h.customerService.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, customer)
}

// ChangeStatus godoc
// @Summary  Change a subscriber's service status
// @Tags     customers
// @Router   /customers/{id}/status [patch]
func (h *CustomerHandler) ChangeStatus(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req appbilling.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	customer, err := h.customerService.ChangeStatus(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, customer)
}

// ChangePlan godoc
// @Summary  Change a subscriber's plan price for future installments
// @Tags     customers
// @Router   /customers/{id}/plan [patch]
func (h *CustomerHandler) ChangePlan(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req appbilling.ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	customer, err := h.customerService.ChangePlanPrice(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, customer)
}

// List godoc
// @Summary  List subscribers, optionally by status tier
// @Tags     customers
// @Router   /customers [get]
func (h *CustomerHandler) List(c *gin.Context) {
	var filter appbilling.CustomerListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}
	page := withPageDefaults(&filter.Page, &filter.PageSize)

	customers, total, err := h.customerService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, customers, total, page.Page, page.PageSize)
}

// ListOverdue godoc
// @Summary  List subscribers with overdue debt, largest first
// @Tags     customers
// @Router   /customers/overdue [get]
func (h *CustomerHandler) ListOverdue(c *gin.Context) {
	h.listPaged(c, h.customerService.ListOverdue)
}

// ListUpcoming godoc
// @Summary  List subscribers whose next installment is due soon
// @Tags     customers
// @Router   /customers/upcoming [get]
func (h *CustomerHandler) ListUpcoming(c *gin.Context) {
	h.listPaged(c, h.customerService.ListUpcoming)
}

type pagedCustomers func(ctx context.Context, page, pageSize int) ([]appbilling.CustomerResponse, int64, error)

func (h *CustomerHandler) listPaged(c *gin.Context, list pagedCustomers) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}
	page := withPageDefaults(&req.Page, &req.PageSize)

	customers, total, err := list(c.Request.Context(), page.Page, page.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, customers, total, page.Page, page.PageSize)
}

// withPageDefaults fills unset paging values in place and returns them
func withPageDefaults(page, pageSize *int) dto.ListRequest {
	defaults := dto.DefaultListRequest()
	if *page <= 0 {
		*page = defaults.Page
	}
	if *pageSize <= 0 {
		*pageSize = defaults.PageSize
	}
	return dto.ListRequest{Page: *page, PageSize: *pageSize}
}
