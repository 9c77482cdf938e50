package handler

import (
	appfee "github.com/feeledger/backend/internal/application/fee"
	"github.com/feeledger/backend/internal/domain/fee"
	"github.com/feeledger/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BatchHandler raises occasional charge batches and settles them
type BatchHandler struct {
	BaseHandler
	charges     *appfee.ChargeService
	settlements *appfee.SettlementService
}

// NewBatchHandler creates a new BatchHandler
func NewBatchHandler(resolver *appfee.SessionResolver, charges *appfee.ChargeService, settlements *appfee.SettlementService) *BatchHandler {
	return &BatchHandler{
		BaseHandler: BaseHandler{resolver: resolver},
		charges:     charges,
		settlements: settlements,
	}
}

// Apply handles POST /fees/batches
func (h *BatchHandler) Apply(c *gin.Context) {
	var req dto.ApplyBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	scope, ok := h.writeScope(c)
	if !ok {
		return
	}
	in := appfee.ApplyBatchInput{
		Period:     req.Period,
		StudentIDs: make([]uuid.UUID, len(req.StudentIDs)),
		Charges:    make([]fee.ChargeSpec, len(req.Charges)),
	}
	for i, id := range req.StudentIDs {
		in.StudentIDs[i] = uuid.MustParse(id)
	}
	for i, line := range req.Charges {
		in.Charges[i] = fee.ChargeSpec{Name: line.Name, Amount: line.Amount}
	}
	result, err := h.charges.ApplyBatch(c.Request.Context(), scope, in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// History handles GET /fees/batches?period=
func (h *BatchHandler) History(c *gin.Context) {
	var q dto.PeriodQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	scope, ok := h.readScope(c)
	if !ok {
		return
	}
	batches, err := h.charges.History(c.Request.Context(), scope, q.Period)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batches)
}

// Detail handles GET /fees/batches/:batch_id
func (h *BatchHandler) Detail(c *gin.Context) {
	batchID, ok := h.pathUUID(c, "batch_id")
	if !ok {
		return
	}
	scope, ok := h.readScope(c)
	if !ok {
		return
	}
	detail, err := h.charges.Detail(c.Request.Context(), scope, batchID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, detail)
}

// SettleStudent handles POST /fees/batches/:batch_id/students/:student_id/settle.
// It settles every unpaid charge of the student in the batch at once.
func (h *BatchHandler) SettleStudent(c *gin.Context) {
	batchID, ok := h.pathUUID(c, "batch_id")
	if !ok {
		return
	}
	studentID, ok := h.pathUUID(c, "student_id")
	if !ok {
		return
	}
	var req dto.CollectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	scope, ok := h.writeScope(c)
	if !ok {
		return
	}
	result, err := h.settlements.SettleBatchForStudent(c.Request.Context(), scope, appfee.SettleBatchInput{
		BatchID:     batchID,
		StudentID:   studentID,
		CollectedBy: req.CollectedBy,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// SettleCharge handles POST /fees/charges/:id/settle
func (h *BatchHandler) SettleCharge(c *gin.Context) {
	chargeID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.CollectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	scope, ok := h.writeScope(c)
	if !ok {
		return
	}
	result, err := h.settlements.SettleCharge(c.Request.Context(), scope, chargeID, req.CollectedBy)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
