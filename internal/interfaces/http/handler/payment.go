package handler

import (
	appfee "github.com/feeledger/backend/internal/application/fee"
	"github.com/feeledger/backend/internal/domain/fee"
	"github.com/feeledger/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PaymentHandler creates gateway orders and settles them when the gateway
// confirms payment
type PaymentHandler struct {
	BaseHandler
	orders      *appfee.PaymentOrderService
	settlements *appfee.SettlementService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(resolver *appfee.SessionResolver, orders *appfee.PaymentOrderService, settlements *appfee.SettlementService) *PaymentHandler {
	return &PaymentHandler{
		BaseHandler: BaseHandler{resolver: resolver},
		orders:      orders,
		settlements: settlements,
	}
}

// CreateOrder handles POST /fees/payment-orders
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	var req dto.CreatePaymentOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	scope, ok := h.writeScope(c)
	if !ok {
		return
	}
	in := appfee.CreateOrderInput{
		Kind:      fee.OrderKind(req.Kind),
		StudentID: uuid.MustParse(req.StudentID),
		Period:    req.Period,
	}
	if req.BatchID != "" {
		batchID := uuid.MustParse(req.BatchID)
		in.BatchID = &batchID
	}
	order, err := h.orders.CreateOrder(c.Request.Context(), scope, in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToPaymentOrderResponse(order))
}

// GetOrder handles GET /fees/payment-orders/:order_ref
func (h *PaymentHandler) GetOrder(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(c.Request.Context(), tenantID, c.Param("order_ref"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToPaymentOrderResponse(order))
}

// Verify handles POST /fees/payments/verify. The order carries its own
// session, so no active session is required. A replayed confirmation answers
// 200 with already_processed set.
func (h *PaymentHandler) Verify(c *gin.Context) {
	var req dto.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	result, err := h.settlements.SettleByGateway(c.Request.Context(), tenantID, appfee.GatewayConfirmation{
		OrderRef:       req.OrderRef,
		TransactionRef: req.TransactionRef,
		Signature:      req.Signature,
		Amount:         req.Amount,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
