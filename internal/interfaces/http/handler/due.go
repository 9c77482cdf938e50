package handler

import (
	appfee "github.com/feeledger/backend/internal/application/fee"
	"github.com/feeledger/backend/internal/domain/fee"
	"github.com/feeledger/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DueHandler reads monthly dues and records counter payments of them
type DueHandler struct {
	BaseHandler
	dues        *appfee.DueService
	settlements *appfee.SettlementService
}

// NewDueHandler creates a new DueHandler
func NewDueHandler(resolver *appfee.SessionResolver, dues *appfee.DueService, settlements *appfee.SettlementService) *DueHandler {
	return &DueHandler{
		BaseHandler: BaseHandler{resolver: resolver},
		dues:        dues,
		settlements: settlements,
	}
}

// GetStudentDue handles GET /fees/dues/students/:student_id?period=. The
// due is virtual until it is materialized by a publish or a payment.
func (h *DueHandler) GetStudentDue(c *gin.Context) {
	var q dto.PeriodQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	studentID, ok := h.pathUUID(c, "student_id")
	if !ok {
		return
	}
	scope, ok := h.readScope(c)
	if !ok {
		return
	}
	due, err := h.dues.ReadDue(c.Request.Context(), scope, studentID, q.Period)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, fee.Normalize(due))
}

// GetClassDues handles GET /fees/dues/classes/:class?period=
func (h *DueHandler) GetClassDues(c *gin.Context) {
	var q dto.PeriodQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	scope, ok := h.readScope(c)
	if !ok {
		return
	}
	views, err := h.dues.ReadClassDues(c.Request.Context(), scope, c.Param("class"), q.Period)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, views)
}

// Settle handles POST /fees/dues/settle, a payment taken at the counter
func (h *DueHandler) Settle(c *gin.Context) {
	var req dto.SettleDueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	scope, ok := h.writeScope(c)
	if !ok {
		return
	}
	result, err := h.settlements.SettleDueManually(c.Request.Context(), scope, appfee.SettleDueInput{
		StudentID:   uuid.MustParse(req.StudentID),
		Period:      req.Period,
		CollectedBy: req.CollectedBy,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
