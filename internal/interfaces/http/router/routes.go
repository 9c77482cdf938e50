package router

import (
	"github.com/feeledger/backend/internal/infrastructure/auth"
	"github.com/feeledger/backend/internal/interfaces/http/handler"
	"github.com/feeledger/backend/internal/interfaces/http/middleware"
)

// Handlers are the fee API handlers the route table dispatches to
type Handlers struct {
	Sessions  *handler.SessionHandler
	Schedules *handler.ScheduleHandler
	Dues      *handler.DueHandler
	Batches   *handler.BatchHandler
	Payments  *handler.PaymentHandler
	Reports   *handler.ReportHandler
	Outbox    *handler.OutboxHandler
}

var principal = middleware.RequireRole(auth.RolePrincipal)

// SessionRoutes manages academic sessions. Opening, switching and deleting
// a session is the principal's call.
func SessionRoutes(h *handler.SessionHandler) *DomainGroup {
	return NewDomainGroup("sessions", "/sessions").
		GET("", middleware.RequireRole(middleware.FinanceRoles...), h.List).
		POST("", principal, h.Create).
		POST("/:id/activate", principal, h.Activate).
		DELETE("/:id", principal, h.Delete)
}

// FeeRoutes is the /fees table. verifyLimit throttles gateway confirmations
// and may be nil.
func FeeRoutes(h Handlers, verifyLimit *middleware.RateLimiter) *DomainGroup {
	staff := middleware.RequireRole(middleware.StaffRoles...)
	finance := middleware.RequireRole(middleware.FinanceRoles...)
	anyone := middleware.RequireRole(middleware.AnyRole...)

	fees := NewDomainGroup("fees", "/fees")

	fees.Group("schedules", "/schedules").
		GET("", staff, h.Schedules.List).
		GET("/:period", staff, h.Schedules.Get).
		PUT("/:period", finance, h.Schedules.Publish).
		POST("/:period/republish", finance, h.Schedules.Republish)

	fees.Group("dues", "/dues").
		GET("/students/:student_id", anyone, h.Dues.GetStudentDue).
		GET("/classes/:class", staff, h.Dues.GetClassDues).
		POST("/settle", finance, h.Dues.Settle)

	fees.Group("batches", "/batches").
		POST("", finance, h.Batches.Apply).
		GET("", staff, h.Batches.History).
		GET("/:batch_id", staff, h.Batches.Detail).
		POST("/:batch_id/students/:student_id/settle", finance, h.Batches.SettleStudent)

	fees.Group("charges", "/charges").
		POST("/:id/settle", finance, h.Batches.SettleCharge)

	fees.Group("payment-orders", "/payment-orders").
		POST("", anyone, h.Payments.CreateOrder).
		GET("/:order_ref", anyone, h.Payments.GetOrder)

	verify := fees.Group("payments", "/payments")
	if verifyLimit != nil {
		verify.Use(middleware.RateLimit(verifyLimit))
	}
	verify.POST("/verify", anyone, h.Payments.Verify)

	fees.Group("reports", "/reports").
		GET("/tracking", staff, h.Reports.Tracking).
		GET("/defaulters", staff, h.Reports.Defaulters)

	fees.Group("students", "/students").
		GET("/:student_id/history", anyone, h.Reports.StudentHistory)

	return fees
}

// OutboxRoutes exposes undelivered notifications to the principal
func OutboxRoutes(h *handler.OutboxHandler) *DomainGroup {
	return NewDomainGroup("outbox", "/system/outbox").
		Use(principal).
		GET("/stats", h.GetStats).
		GET("/dead", h.GetDeadLetterEntries).
		POST("/dead/retry-all", h.RetryAllDeadEntries).
		GET("/:id", h.GetEntry).
		POST("/:id/retry", h.RetryDeadEntry)
}

// RegisterAll adds every fee API group to r
func RegisterAll(r *Router, h Handlers, verifyLimit *middleware.RateLimiter) *Router {
	return r.Register(
		SessionRoutes(h.Sessions),
		FeeRoutes(h, verifyLimit),
		OutboxRoutes(h.Outbox),
	)
}
