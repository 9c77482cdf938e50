package fee

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/feeledger/backend/internal/domain/fee"
	"github.com/feeledger/backend/internal/domain/shared"
	"github.com/feeledger/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrClassNotConfigured is returned when a due is settled for a student whose
// class has no rates in the period's schedule.
var ErrClassNotConfigured = shared.NewIntegrityError("CLASS_NOT_CONFIGURED", "student's class has no rates in the fee schedule")

// SignatureVerifier authenticates a gateway confirmation
type SignatureVerifier interface {
	Verify(orderRef, transactionRef, signature string) bool
}

// SettlementRecorder receives settlement outcomes for metrics
type SettlementRecorder interface {
	RecordSettled(ctx context.Context, channel fee.SettlementChannel, kind fee.OrderKind, records int, amount decimal.Decimal)
	RecordRejected(ctx context.Context, reason string)
}

type noopRecorder struct{}

func (noopRecorder) RecordSettled(context.Context, fee.SettlementChannel, fee.OrderKind, int, decimal.Decimal) {
}
func (noopRecorder) RecordRejected(context.Context, string) {}

// GatewayConfirmation is what the payment gateway reports back
type GatewayConfirmation struct {
	OrderRef       string
	TransactionRef string
	Signature      string
	Amount         decimal.Decimal
}

// SettleDueInput settles a student's monthly due at the counter
type SettleDueInput struct {
	StudentID   uuid.UUID
	Period      string
	CollectedBy string
}

// SettleBatchInput settles a student's share of a batch at the counter
type SettleBatchInput struct {
	BatchID     uuid.UUID
	StudentID   uuid.UUID
	CollectedBy string
}

// SettlementResult reports one settlement operation
type SettlementResult struct {
	Reference        string                `json:"reference"`
	Channel          fee.SettlementChannel `json:"channel"`
	Kind             fee.OrderKind         `json:"kind"`
	StudentID        uuid.UUID             `json:"student_id"`
	Period           string                `json:"period,omitempty"`
	BatchID          *uuid.UUID            `json:"batch_id,omitempty"`
	RecordsSettled   int                   `json:"records_settled"`
	Amount           decimal.Decimal       `json:"amount"`
	AlreadyProcessed bool                  `json:"already_processed"`
	SettledAt        time.Time             `json:"settled_at"`
}

// SettlementService marks dues and charges paid, from the gateway or the
// counter. Every path locks the rows it settles and writes them with a
// conditional update, so of two concurrent attempts exactly one succeeds and
// the other gets fee.ErrAlreadySettled.
type SettlementService struct {
	repos    Repositories
	txScope  TransactionScope
	verifier SignatureVerifier
	recorder SettlementRecorder
	now      func() time.Time
	logger   *zap.Logger
}

// NewSettlementService creates a SettlementService
func NewSettlementService(repos Repositories, txScope TransactionScope, verifier SignatureVerifier, logger *zap.Logger) *SettlementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettlementService{
		repos:    repos,
		txScope:  txScope,
		verifier: verifier,
		recorder: noopRecorder{},
		now:      time.Now,
		logger:   logger,
	}
}

// SetRecorder installs a metrics recorder
func (s *SettlementService) SetRecorder(r SettlementRecorder) {
	if r != nil {
		s.recorder = r
	}
}

// SettleDueManually settles a monthly due collected at the counter. A due
// that was never materialized is computed and stored first.
func (s *SettlementService) SettleDueManually(ctx context.Context, scope academic.Scope, in SettleDueInput) (*SettlementResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "settle_due",
		telemetry.SpanAttrTenantID, scope.TenantID.String(),
		telemetry.SpanAttrStudentID, in.StudentID.String(),
		telemetry.SpanAttrPeriod, in.Period)
	defer span.End()

	if scope.IsZero() {
		return nil, academic.ErrNoActiveSession
	}
	settlement, err := fee.NewCounterSettlement(in.CollectedBy, s.now())
	if err != nil {
		return nil, err
	}
	period := strings.TrimSpace(in.Period)
	if period == "" {
		return nil, shared.NewValidationError("INVALID_PERIOD", "Period is required")
	}

	var result *SettlementResult
	err = s.txScope.Execute(ctx, func(repos Repositories) error {
		student, err := repos.Roster().FindByID(ctx, scope, in.StudentID)
		if err != nil {
			return err
		}
		result, err = settleDue(ctx, repos, scope, *student, period, settlement, nil)
		return err
	})
	return s.finish(ctx, result, err)
}

// SettleBatchForStudent settles every unpaid charge of a student in a batch
// with one statement.
func (s *SettlementService) SettleBatchForStudent(ctx context.Context, scope academic.Scope, in SettleBatchInput) (*SettlementResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "settle_batch",
		telemetry.SpanAttrTenantID, scope.TenantID.String(),
		telemetry.SpanAttrStudentID, in.StudentID.String(),
		telemetry.SpanAttrBatchID, in.BatchID.String())
	defer span.End()

	if scope.IsZero() {
		return nil, academic.ErrNoActiveSession
	}
	settlement, err := fee.NewCounterSettlement(in.CollectedBy, s.now())
	if err != nil {
		return nil, err
	}

	var result *SettlementResult
	err = s.txScope.Execute(ctx, func(repos Repositories) error {
		student, err := repos.Roster().FindByID(ctx, scope, in.StudentID)
		if err != nil {
			return err
		}
		result, err = settleBatch(ctx, repos, scope, *student, in.BatchID, settlement, nil)
		return err
	})
	return s.finish(ctx, result, err)
}

// SettleCharge settles a single occasional charge at the counter
func (s *SettlementService) SettleCharge(ctx context.Context, scope academic.Scope, chargeID uuid.UUID, collectedBy string) (*SettlementResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "settle_charge",
		telemetry.SpanAttrTenantID, scope.TenantID.String(),
		"charge_id", chargeID.String())
	defer span.End()

	if scope.IsZero() {
		return nil, academic.ErrNoActiveSession
	}
	settlement, err := fee.NewCounterSettlement(collectedBy, s.now())
	if err != nil {
		return nil, err
	}

	var result *SettlementResult
	err = s.txScope.Execute(ctx, func(repos Repositories) error {
		charge, err := repos.Charges().FindByIDForUpdate(ctx, scope, chargeID)
		if err != nil {
			return err
		}
		if err := charge.Settle(settlement); err != nil {
			return err
		}
		changed, err := repos.Charges().MarkSettled(ctx, charge)
		if err != nil {
			return err
		}
		if !changed {
			return fee.ErrAlreadySettled
		}
		student, err := repos.Roster().FindByID(ctx, scope, charge.StudentID)
		if err != nil {
			return err
		}
		fully, err := batchFullySettled(ctx, repos, scope, charge.BatchID)
		if err != nil {
			return err
		}

		batchID := charge.BatchID
		receipt := fee.NewReceiptRequestedEvent(scope.TenantID, scope.SessionID, receiptStudent(*student), settlement,
			[]fee.ReceiptLine{{Description: charge.FeeName, Amount: charge.Amount}})
		receipt.BatchID = &batchID
		receipt.BatchFullySettled = fully
		events := append(charge.GetDomainEvents(), receipt)
		if err := repos.Events().Publish(ctx, events...); err != nil {
			return fmt.Errorf("publish settlement events: %w", err)
		}
		charge.ClearDomainEvents()

		result = &SettlementResult{
			Reference:      settlement.Reference,
			Channel:        settlement.Channel,
			Kind:           fee.OrderKindBatch,
			StudentID:      charge.StudentID,
			Period:         charge.Period,
			BatchID:        &batchID,
			RecordsSettled: 1,
			Amount:         charge.Amount,
			SettledAt:      settlement.SettledAt,
		}
		return nil
	})
	return s.finish(ctx, result, err)
}

// SettleByGateway applies a verified gateway confirmation. The signature is
// checked before anything is read. Replaying a confirmation for an order
// already paid by the same transaction is a no-op.
func (s *SettlementService) SettleByGateway(ctx context.Context, tenantID uuid.UUID, conf GatewayConfirmation) (*SettlementResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "settle_gateway",
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrOrderRef, conf.OrderRef)
	defer span.End()

	if s.verifier == nil || !s.verifier.Verify(conf.OrderRef, conf.TransactionRef, conf.Signature) {
		s.recorder.RecordRejected(ctx, "invalid_signature")
		telemetry.RecordError(span, fee.ErrInvalidSignature)
		s.logger.Warn("gateway confirmation rejected",
			zap.String("tenant_id", tenantID.String()),
			zap.String("order_ref", conf.OrderRef))
		return nil, fee.ErrInvalidSignature
	}
	settlement, err := fee.NewGatewaySettlement(conf.TransactionRef, s.now())
	if err != nil {
		return nil, err
	}

	var result *SettlementResult
	err = s.txScope.Execute(ctx, func(repos Repositories) error {
		order, err := repos.Orders().FindByRefForUpdate(ctx, tenantID, strings.TrimSpace(conf.OrderRef))
		if err != nil {
			return err
		}
		replay, err := order.MarkPaid(settlement.Reference, settlement.SettledAt)
		if err != nil {
			return err
		}
		if replay {
			result = &SettlementResult{
				Reference:        order.TransactionRef,
				Channel:          fee.ChannelGateway,
				Kind:             order.Kind,
				StudentID:        order.StudentID,
				Period:           order.Period,
				BatchID:          order.BatchID,
				Amount:           order.Amount,
				AlreadyProcessed: true,
			}
			if order.PaidAt != nil {
				result.SettledAt = *order.PaidAt
			}
			return nil
		}
		if !conf.Amount.IsZero() {
			if err := matchAmount(order.Amount, conf.Amount); err != nil {
				return err
			}
		}

		scope := order.Scope()
		student, err := repos.Roster().FindByID(ctx, scope, order.StudentID)
		if err != nil {
			return err
		}
		switch order.Kind {
		case fee.OrderKindDue:
			result, err = settleDue(ctx, repos, scope, *student, order.Period, settlement, &order.Amount)
		case fee.OrderKindBatch:
			result, err = settleBatch(ctx, repos, scope, *student, *order.BatchID, settlement, &order.Amount)
		default:
			err = shared.NewIntegrityError("INVALID_ORDER_KIND", "payment order has an unknown kind")
		}
		if err != nil {
			return err
		}
		return repos.Orders().MarkPaid(ctx, order)
	})
	if errors.Is(err, fee.ErrAmountMismatch) {
		s.recorder.RecordRejected(ctx, "amount_mismatch")
		s.logger.Warn("gateway confirmation rejected",
			zap.String("tenant_id", tenantID.String()),
			zap.String("order_ref", conf.OrderRef),
			zap.String("transaction_ref", conf.TransactionRef),
			zap.String("reported_amount", conf.Amount.String()),
			zap.Error(err))
	}
	return s.finish(ctx, result, err)
}

// matchAmount rejects a settlement whose paid amount differs from what the
// records are worth now. Nothing is adjusted to make the two agree.
func matchAmount(owed, paid decimal.Decimal) error {
	if owed.Equal(paid) {
		return nil
	}
	return fee.ErrAmountMismatch.WithMessage(
		fmt.Sprintf("paid amount %s does not match the amount owed %s", paid.String(), owed.String()))
}

func (s *SettlementService) finish(ctx context.Context, result *SettlementResult, err error) (*SettlementResult, error) {
	span := trace.SpanFromContext(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, fee.ErrAlreadySettled) {
			s.recorder.RecordRejected(ctx, "already_settled")
		}
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrReference, result.Reference,
		telemetry.SpanAttrChannel, string(result.Channel),
		"already_processed", result.AlreadyProcessed)
	if result.AlreadyProcessed {
		s.logger.Info("gateway confirmation replayed", zap.String("reference", result.Reference))
		return result, nil
	}
	s.recorder.RecordSettled(ctx, result.Channel, result.Kind, result.RecordsSettled, result.Amount)
	s.logger.Info("settlement recorded",
		zap.String("reference", result.Reference),
		zap.String("channel", string(result.Channel)),
		zap.String("kind", string(result.Kind)),
		zap.String("student_id", result.StudentID.String()),
		zap.Int("records", result.RecordsSettled),
		zap.String("amount", result.Amount.String()))
	return result, nil
}

// settleDue locks the student's due for the period, materializing it from
// the schedule when no row exists yet, and marks it paid. A non-nil paid
// amount must equal the due's total.
func settleDue(ctx context.Context, repos Repositories, scope academic.Scope, student academic.Student, period string, settlement fee.Settlement, paid *decimal.Decimal) (*SettlementResult, error) {
	due, err := repos.Dues().FindOneForUpdate(ctx, scope, student.ID, period)
	if errors.Is(err, shared.ErrNotFound) {
		due, err = materializeForSettlement(ctx, repos, scope, student, period)
	}
	if err != nil {
		return nil, err
	}
	if paid != nil && !due.IsPaid() {
		if err := matchAmount(due.Total, *paid); err != nil {
			return nil, err
		}
	}

	if err := due.Settle(settlement); err != nil {
		return nil, err
	}
	changed, err := repos.Dues().MarkSettled(ctx, due)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, fee.ErrAlreadySettled
	}

	lines := make([]fee.ReceiptLine, len(due.Breakdown))
	for i, l := range due.Breakdown {
		lines[i] = fee.ReceiptLine{Description: l.Component, Amount: l.Amount}
	}
	receipt := fee.NewReceiptRequestedEvent(scope.TenantID, scope.SessionID, receiptStudent(student), settlement, lines)
	events := append(due.GetDomainEvents(), receipt)
	if err := repos.Events().Publish(ctx, events...); err != nil {
		return nil, fmt.Errorf("publish settlement events: %w", err)
	}
	due.ClearDomainEvents()

	return &SettlementResult{
		Reference:      settlement.Reference,
		Channel:        settlement.Channel,
		Kind:           fee.OrderKindDue,
		StudentID:      student.ID,
		Period:         period,
		RecordsSettled: 1,
		Amount:         due.Total,
		SettledAt:      settlement.SettledAt,
	}, nil
}

func materializeForSettlement(ctx context.Context, repos Repositories, scope academic.Scope, student academic.Student, period string) (*fee.StudentDue, error) {
	schedule, err := repos.Schedules().FindByPeriod(ctx, scope, period)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fee.ErrScheduleNotFound
		}
		return nil, err
	}
	breakdown, ok := fee.ComputeVirtual(schedule, student)
	if !ok {
		return nil, ErrClassNotConfigured
	}
	if !breakdown.Total().IsPositive() {
		return nil, fee.ErrNothingToSettle
	}
	if _, err := repos.Dues().InsertIfAbsent(ctx, fee.NewStudentDue(scope, student.ID, student.Class, period, breakdown)); err != nil {
		return nil, fmt.Errorf("materialize due: %w", err)
	}
	// Re-read under lock: a concurrent settlement may have inserted first.
	return repos.Dues().FindOneForUpdate(ctx, scope, student.ID, period)
}

// settleBatch pays every unpaid item of the student in the batch with one
// UPDATE and raises one status event per item. A non-nil paid amount must
// equal the sum of the unpaid items.
func settleBatch(ctx context.Context, repos Repositories, scope academic.Scope, student academic.Student, batchID uuid.UUID, settlement fee.Settlement, paid *decimal.Decimal) (*SettlementResult, error) {
	items, err := repos.Charges().FindByBatchAndStudentForUpdate(ctx, scope, batchID, student.ID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fee.ErrNoChargesToSettle
	}
	unpaid := make([]*fee.OccasionalCharge, 0, len(items))
	for i := range items {
		if !items[i].IsPaid() {
			unpaid = append(unpaid, &items[i])
		}
	}
	if len(unpaid) == 0 {
		return nil, fee.ErrAlreadySettled
	}
	if paid != nil {
		owed := decimal.Zero
		for _, item := range unpaid {
			owed = owed.Add(item.Amount)
		}
		if err := matchAmount(owed, *paid); err != nil {
			return nil, err
		}
	}

	n, err := repos.Charges().SettleUnpaid(ctx, scope, batchID, student.ID, settlement)
	if err != nil {
		return nil, err
	}
	if n != int64(len(unpaid)) {
		return nil, fee.ErrAlreadySettled
	}

	events := make([]shared.DomainEvent, 0, len(unpaid)+1)
	lines := make([]fee.ReceiptLine, 0, len(unpaid))
	amount := decimal.Zero
	period := ""
	for _, item := range unpaid {
		if err := item.Settle(settlement); err != nil {
			return nil, err
		}
		events = append(events, item.GetDomainEvents()...)
		item.ClearDomainEvents()
		lines = append(lines, fee.ReceiptLine{Description: item.FeeName, Amount: item.Amount})
		amount = amount.Add(item.Amount)
		period = item.Period
	}

	fully, err := batchFullySettled(ctx, repos, scope, batchID)
	if err != nil {
		return nil, err
	}
	receipt := fee.NewReceiptRequestedEvent(scope.TenantID, scope.SessionID, receiptStudent(student), settlement, lines)
	receipt.BatchID = &batchID
	receipt.BatchFullySettled = fully
	events = append(events, receipt)
	if err := repos.Events().Publish(ctx, events...); err != nil {
		return nil, fmt.Errorf("publish settlement events: %w", err)
	}

	return &SettlementResult{
		Reference:      settlement.Reference,
		Channel:        settlement.Channel,
		Kind:           fee.OrderKindBatch,
		StudentID:      student.ID,
		Period:         period,
		BatchID:        &batchID,
		RecordsSettled: len(unpaid),
		Amount:         amount,
		SettledAt:      settlement.SettledAt,
	}, nil
}

func batchFullySettled(ctx context.Context, repos Repositories, scope academic.Scope, batchID uuid.UUID) (bool, error) {
	all, err := repos.Charges().FindByBatch(ctx, scope, batchID)
	if err != nil {
		return false, err
	}
	for _, c := range all {
		if !c.IsPaid() {
			return false, nil
		}
	}
	return len(all) > 0, nil
}

func receiptStudent(st academic.Student) fee.ReceiptStudent {
	return fee.ReceiptStudent{ID: st.ID, Name: st.Name, ContactEmail: st.ContactEmail}
}
