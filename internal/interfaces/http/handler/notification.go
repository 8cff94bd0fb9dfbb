package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	appbilling "github.com/subledger/backend/internal/application/billing"
	"github.com/subledger/backend/internal/domain/billing"
	"github.com/subledger/backend/internal/domain/shared"
)

// NotificationHandler handles reminder evaluation and delivery acknowledgements
type NotificationHandler struct {
	BaseHandler
	scheduler *appbilling.NotificationScheduler
	stream    http.Handler
	clock     shared.Clock
}

// NewNotificationHandler creates a NotificationHandler. stream serves the
// websocket feed and may be nil.
func NewNotificationHandler(scheduler *appbilling.NotificationScheduler, stream http.Handler, clock shared.Clock) *NotificationHandler {
	if clock == nil {
		clock = shared.NewSystemClock(nil)
	}
	return &NotificationHandler{scheduler: scheduler, stream: stream, clock: clock}
}

// Evaluate godoc
// @Summary  Emit the reminders and warnings due for a customer today
// @Tags     notifications
// @Router   /customers/{id}/notifications/evaluate [post]
func (h *NotificationHandler) Evaluate(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req appbilling.EvaluateCycleRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}

	events, err := h.scheduler.EvaluateCycle(c.Request.Context(), id, dateOr(req.Today, h.clock))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, events)
}

// History godoc
// @Summary  List the notifications emitted for a customer
// @Tags     notifications
// @Router   /customers/{id}/notifications [get]
func (h *NotificationHandler) History(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	events, err := h.scheduler.History(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, events)
}

// Acknowledge godoc
// @Summary  Record the delivery outcome of a notification
// @Tags     notifications
// @Router   /notifications/{id}/ack [post]
func (h *NotificationHandler) Acknowledge(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req appbilling.AcknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	event, err := h.scheduler.Acknowledge(c.Request.Context(), id, billing.DeliveryStatus(req.Status), req.Error)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, event)
}

// Stream upgrades to the websocket notification feed
func (h *NotificationHandler) Stream(c *gin.Context) {
	if h.stream == nil {
		h.NotFound(c, "Notification stream is disabled")
		return
	}
	h.stream.ServeHTTP(c.Writer, c.Request)
}
