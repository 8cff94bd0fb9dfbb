package router

import (
	"github.com/gin-gonic/gin"
	"github.com/subledger/backend/internal/interfaces/http/handler"
)

// Handlers are the ledger API handlers mounted by Ledger
type Handlers struct {
	Customer     *handler.CustomerHandler
	Ledger       *handler.LedgerHandler
	Notification *handler.NotificationHandler
	Config       *handler.ConfigHandler
	Report       *handler.ReportHandler
	Job          *handler.JobHandler
	Health       *handler.HealthHandler
}

// LedgerOptions tunes the ledger route tree
type LedgerOptions struct {
	// PaymentGuard runs before payment writes, e.g. a rate limiter
	PaymentGuard []gin.HandlerFunc
}

// Ledger builds the versioned ledger API groups
func Ledger(h Handlers, opts LedgerOptions) []RouteRegistrar {
	customers := NewDomainGroup("customers", "/customers").
		POST("", h.Customer.Register).
		GET("", h.Customer.List).
		GET("/overdue", h.Customer.ListOverdue).
		GET("/upcoming", h.Customer.ListUpcoming).
		GET("/:id", h.Customer.GetByID).
		PATCH("/:id/status", h.Customer.ChangeStatus).
		PATCH("/:id/plan", h.Customer.ChangePlan).
		POST("/:id/installments", h.Ledger.EnsureInstallment).
		GET("/:id/installments", h.Ledger.ListInstallments).
		POST("/:id/payments", chain(opts.PaymentGuard, h.Ledger.ApplyPayment)...).
		GET("/:id/payments", h.Ledger.ListPayments).
		GET("/:id/payable", h.Ledger.AmountPayable).
		POST("/:id/debt/recompute", h.Ledger.RecomputeDebt).
		POST("/:id/notifications/evaluate", h.Notification.Evaluate).
		GET("/:id/notifications", h.Notification.History).
		GET("/:id/reports/payments.xlsx", h.Report.PaymentHistoryReport)

	installments := NewDomainGroup("installments", "/installments").
		POST("/sweep", h.Ledger.SweepOverdue)

	payments := NewDomainGroup("payments", "/payments").
		POST("/:id/receipt-sent", h.Ledger.MarkReceiptSent)

	notifications := NewDomainGroup("notifications", "/notifications").
		POST("/:id/ack", h.Notification.Acknowledge)

	config := NewDomainGroup("config", "/config").
		GET("", h.Config.Get).
		PUT("", h.Config.Update)

	debts := NewDomainGroup("debts", "/debts").
		GET("/stats", h.Config.DebtStatistics)

	reports := NewDomainGroup("reports", "/reports").
		GET("/debts.xlsx", h.Report.DebtReport).
		GET("/archive/:key", h.Report.Archived)

	jobs := NewDomainGroup("jobs", "/jobs").
		GET("", h.Job.List).
		POST("/:name/run", h.Job.Run).
		GET("/:name/runs", h.Job.History)

	return []RouteRegistrar{customers, installments, payments, notifications, config, debts, reports, jobs}
}

// Mount registers the ledger API plus the unversioned health and
// websocket endpoints on engine
func Mount(engine *gin.Engine, h Handlers, opts LedgerOptions, routerOpts ...RouterOption) {
	r := NewRouter(engine, routerOpts...)
	for _, registrar := range Ledger(h, opts) {
		r.Register(registrar)
	}
	r.Setup()

	engine.GET("/health", h.Health.Health)
	engine.GET("/ws/notifications", h.Notification.Stream)
}

func chain(guards []gin.HandlerFunc, final gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(guards)+1)
	return append(append(out, guards...), final)
}
