package fee

import (
	"strings"
	"time"

	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/feeledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderKind tells what a payment order pays for
type OrderKind string

const (
	OrderKindDue   OrderKind = "DUE"
	OrderKindBatch OrderKind = "BATCH"
)

// OrderStatus is the lifecycle state of a payment order
type OrderStatus string

const (
	OrderStatusCreated OrderStatus = "CREATED"
	OrderStatusPaid    OrderStatus = "PAID"
)

// PaymentTarget identifies the record a gateway payment settles: either a
// student's monthly due for a period or the student's share of a batch.
type PaymentTarget struct {
	Kind      OrderKind
	StudentID uuid.UUID
	Period    string
	BatchID   *uuid.UUID
}

// Validate checks the target is well formed
func (t PaymentTarget) Validate() error {
	if t.StudentID == uuid.Nil {
		return shared.NewValidationError("STUDENT_REQUIRED", "Student is required")
	}
	switch t.Kind {
	case OrderKindDue:
		if strings.TrimSpace(t.Period) == "" {
			return shared.NewValidationError("INVALID_PERIOD", "Period is required for a due payment")
		}
	case OrderKindBatch:
		if t.BatchID == nil || *t.BatchID == uuid.Nil {
			return shared.NewValidationError("BATCH_REQUIRED", "Batch is required for a batch payment")
		}
	default:
		return shared.NewValidationError("INVALID_ORDER_KIND", "Order kind must be DUE or BATCH")
	}
	return nil
}

// PaymentOrder is issued before a gateway payment. The gateway echoes the
// order reference back when it reports the transaction.
type PaymentOrder struct {
	shared.SessionAggregateRoot
	OrderRef       string
	Kind           OrderKind
	StudentID      uuid.UUID
	Period         string
	BatchID        *uuid.UUID
	Amount         decimal.Decimal
	Status         OrderStatus
	TransactionRef string
	RedirectURL    string
	PaidAt         *time.Time
}

// NewPaymentOrder creates an order for a positive amount
func NewPaymentOrder(scope academic.Scope, target PaymentTarget, amount decimal.Decimal) (*PaymentOrder, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, ErrNothingToSettle
	}
	order := &PaymentOrder{
		SessionAggregateRoot: shared.NewSessionAggregateRoot(scope.TenantID, scope.SessionID),
		Kind:                 target.Kind,
		StudentID:            target.StudentID,
		Period:               target.Period,
		BatchID:              target.BatchID,
		Amount:               amount,
		Status:               OrderStatusCreated,
	}
	order.OrderRef = newOrderRef(order.CreatedAt)
	return order, nil
}

func newOrderRef(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	return "FEE-" + at.UTC().Format("20060102") + "-" + suffix
}

// Scope returns the order's scope
func (o *PaymentOrder) Scope() academic.Scope {
	return academic.Scope{TenantID: o.TenantID, SessionID: o.SessionID}
}

// Target returns what the order pays for
func (o *PaymentOrder) Target() PaymentTarget {
	return PaymentTarget{Kind: o.Kind, StudentID: o.StudentID, Period: o.Period, BatchID: o.BatchID}
}

// MarkPaid records the gateway transaction. replay is true when the same
// transaction was already recorded; a different transaction on a paid
// order is ErrAlreadySettled.
func (o *PaymentOrder) MarkPaid(transactionRef string, at time.Time) (replay bool, err error) {
	if o.Status == OrderStatusPaid {
		if o.TransactionRef == transactionRef {
			return true, nil
		}
		return false, ErrAlreadySettled
	}
	o.Status = OrderStatusPaid
	o.TransactionRef = transactionRef
	o.PaidAt = &at
	o.UpdatedAt = at
	o.IncrementVersion()
	return false, nil
}
