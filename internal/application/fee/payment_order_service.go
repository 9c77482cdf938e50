package fee

import (
	"context"
	"strings"

	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/feeledger/backend/internal/domain/fee"
	"github.com/feeledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentOrderIssuer registers an order with the payment gateway and returns
// the checkout URL the payer is sent to.
type PaymentOrderIssuer interface {
	Issue(ctx context.Context, order *fee.PaymentOrder, student academic.Student, lines []fee.ReceiptLine) (redirectURL string, err error)
}

// CreateOrderInput asks for a gateway checkout of a due or of a student's
// share of a batch.
type CreateOrderInput struct {
	Kind      fee.OrderKind
	StudentID uuid.UUID
	Period    string
	BatchID   *uuid.UUID
}

// PaymentOrderService issues gateway payment orders for outstanding amounts
type PaymentOrderService struct {
	repos   Repositories
	txScope TransactionScope
	issuer  PaymentOrderIssuer
	logger  *zap.Logger
}

// NewPaymentOrderService creates a PaymentOrderService
func NewPaymentOrderService(repos Repositories, txScope TransactionScope, issuer PaymentOrderIssuer, logger *zap.Logger) *PaymentOrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentOrderService{repos: repos, txScope: txScope, issuer: issuer, logger: logger}
}

// CreateOrder prices the target from current data and stores an order for
// it. A gateway failure is logged and leaves the order without a redirect;
// the payer can still pay at the counter.
func (s *PaymentOrderService) CreateOrder(ctx context.Context, scope academic.Scope, in CreateOrderInput) (*fee.PaymentOrder, error) {
	if scope.IsZero() {
		return nil, academic.ErrNoActiveSession
	}
	target := fee.PaymentTarget{Kind: in.Kind, StudentID: in.StudentID, Period: strings.TrimSpace(in.Period), BatchID: in.BatchID}
	if err := target.Validate(); err != nil {
		return nil, err
	}

	var (
		order   *fee.PaymentOrder
		student *academic.Student
		lines   []fee.ReceiptLine
	)
	err := s.txScope.Execute(ctx, func(repos Repositories) error {
		var err error
		student, err = repos.Roster().FindByID(ctx, scope, target.StudentID)
		if err != nil {
			return err
		}
		var amount decimal.Decimal
		switch target.Kind {
		case fee.OrderKindDue:
			amount, lines, err = outstandingDue(ctx, repos, scope, *student, target.Period)
		case fee.OrderKindBatch:
			amount, lines, err = outstandingBatch(ctx, repos, scope, student.ID, *target.BatchID)
		}
		if err != nil {
			return err
		}
		order, err = fee.NewPaymentOrder(scope, target, amount)
		if err != nil {
			return err
		}
		return repos.Orders().Create(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	if s.issuer != nil {
		url, err := s.issuer.Issue(ctx, order, *student, lines)
		if err != nil {
			s.logger.Warn("payment gateway did not issue a checkout",
				zap.String("order_ref", order.OrderRef),
				zap.Error(shared.NewCollaboratorError("GATEWAY_UNAVAILABLE", "payment gateway request failed").WithCause(err)))
		} else if url != "" {
			order.RedirectURL = url
			if err := s.repos.Orders().UpdateRedirect(ctx, order); err != nil {
				s.logger.Error("failed to store checkout url", zap.String("order_ref", order.OrderRef), zap.Error(err))
			}
		}
	}

	s.logger.Info("payment order created",
		zap.String("tenant_id", scope.TenantID.String()),
		zap.String("order_ref", order.OrderRef),
		zap.String("kind", string(order.Kind)),
		zap.String("amount", order.Amount.String()))
	return order, nil
}

// GetOrder returns an order by its reference
func (s *PaymentOrderService) GetOrder(ctx context.Context, tenantID uuid.UUID, orderRef string) (*fee.PaymentOrder, error) {
	return s.repos.Orders().FindByRef(ctx, tenantID, strings.TrimSpace(orderRef))
}

func outstandingDue(ctx context.Context, repos Repositories, scope academic.Scope, student academic.Student, period string) (decimal.Decimal, []fee.ReceiptLine, error) {
	due, err := readDue(ctx, repos, scope, student, period)
	if err != nil {
		return decimal.Zero, nil, err
	}
	view := fee.Normalize(due)
	if view.IsPaid() {
		return decimal.Zero, nil, fee.ErrAlreadySettled
	}
	lines := make([]fee.ReceiptLine, len(view.Breakdown))
	for i, l := range view.Breakdown {
		lines[i] = fee.ReceiptLine{Description: l.Component, Amount: l.Amount}
	}
	return view.Outstanding(), lines, nil
}

func outstandingBatch(ctx context.Context, repos Repositories, scope academic.Scope, studentID, batchID uuid.UUID) (decimal.Decimal, []fee.ReceiptLine, error) {
	charges, err := repos.Charges().FindByBatch(ctx, scope, batchID)
	if err != nil {
		return decimal.Zero, nil, err
	}
	amount := decimal.Zero
	var lines []fee.ReceiptLine
	found := false
	for _, c := range charges {
		if c.StudentID != studentID {
			continue
		}
		found = true
		if c.IsPaid() {
			continue
		}
		amount = amount.Add(c.Amount)
		lines = append(lines, fee.ReceiptLine{Description: c.FeeName, Amount: c.Amount})
	}
	if !found {
		return decimal.Zero, nil, fee.ErrNoChargesToSettle
	}
	if len(lines) == 0 {
		return decimal.Zero, nil, fee.ErrAlreadySettled
	}
	return amount, lines, nil
}
