package handler

import (
	appfee "github.com/feeledger/backend/internal/application/fee"
	"github.com/feeledger/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// ReportHandler serves the collection reports
type ReportHandler struct {
	BaseHandler
	reports *appfee.ReportService
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(resolver *appfee.SessionResolver, reports *appfee.ReportService) *ReportHandler {
	return &ReportHandler{BaseHandler: BaseHandler{resolver: resolver}, reports: reports}
}

// Tracking handles GET /fees/reports/tracking?period=
func (h *ReportHandler) Tracking(c *gin.Context) {
	var q dto.PeriodQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	scope, ok := h.readScope(c)
	if !ok {
		return
	}
	rows, err := h.reports.Tracking(c.Request.Context(), scope, q.Period)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rows)
}

// Defaulters handles GET /fees/reports/defaulters?period=&class=
func (h *ReportHandler) Defaulters(c *gin.Context) {
	var q dto.DefaultersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	scope, ok := h.readScope(c)
	if !ok {
		return
	}
	var class *string
	if q.Class != "" {
		class = &q.Class
	}
	rows, err := h.reports.Defaulters(c.Request.Context(), scope, q.Period, class)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rows)
}

// StudentHistory handles GET /fees/students/:student_id/history
func (h *ReportHandler) StudentHistory(c *gin.Context) {
	studentID, ok := h.pathUUID(c, "student_id")
	if !ok {
		return
	}
	scope, ok := h.readScope(c)
	if !ok {
		return
	}
	history, err := h.reports.StudentHistory(c.Request.Context(), scope, studentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, history)
}
