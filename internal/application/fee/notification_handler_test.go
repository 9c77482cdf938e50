package fee

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/feeledger/backend/internal/domain/fee"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingDispatcher struct {
	sent []Notification
	err  error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, n Notification) error {
	d.sent = append(d.sent, n)
	return d.err
}

func receiptEvent(t *testing.T, email string) *fee.ReceiptRequestedEvent {
	t.Helper()
	settlement, err := fee.NewCounterSettlement("Front desk", time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	student := fee.ReceiptStudent{ID: uuid.New(), Name: "Asha", ContactEmail: email}
	return fee.NewReceiptRequestedEvent(uuid.New(), uuid.New(), student, settlement, []fee.ReceiptLine{
		{Description: "Tuition", Amount: decimal.NewFromInt(1000)},
		{Description: "Transport", Amount: decimal.NewFromInt(300)},
	})
}

func TestSettlementNotificationHandler_Receipt(t *testing.T) {
	d := &recordingDispatcher{}
	h := NewSettlementNotificationHandler(d, zap.NewNop())
	event := receiptEvent(t, "asha@example.com")

	require.NoError(t, h.Handle(context.Background(), event))
	require.Len(t, d.sent, 2)

	office, guardian := d.sent[0], d.sent[1]
	assert.Equal(t, AudienceOffice, office.Audience)
	assert.Empty(t, office.Recipient)
	assert.Equal(t, AudienceGuardian, guardian.Audience)
	assert.Equal(t, "asha@example.com", guardian.Recipient)
	assert.Equal(t, KindReceipt, guardian.Kind)
	assert.Contains(t, guardian.Body, "Total: 1300.00")
	assert.Contains(t, guardian.Body, "Collected by: Front desk")
	assert.Equal(t, event.PaymentReference, office.Payload["reference"])
	_, hasBatch := office.Payload["batch_id"]
	assert.False(t, hasBatch)
}

func TestSettlementNotificationHandler_OfficeOnlyWithoutContact(t *testing.T) {
	d := &recordingDispatcher{}
	h := NewSettlementNotificationHandler(d, nil)
	event := receiptEvent(t, "")
	batchID := uuid.New()
	event.BatchID = &batchID
	event.BatchFullySettled = true

	require.NoError(t, h.Handle(context.Background(), event))
	require.Len(t, d.sent, 1)
	assert.Equal(t, batchID.String(), d.sent[0].Payload["batch_id"])
	assert.Equal(t, true, d.sent[0].Payload["batch_fully_settled"])
}

func TestSettlementNotificationHandler_SwallowsDispatchErrors(t *testing.T) {
	d := &recordingDispatcher{err: errors.New("smtp down")}
	h := NewSettlementNotificationHandler(d, zap.NewNop())

	assert.NoError(t, h.Handle(context.Background(), receiptEvent(t, "asha@example.com")))
	assert.Len(t, d.sent, 2, "every notification is attempted")
}

func TestSettlementNotificationHandler_SchedulePublished(t *testing.T) {
	d := &recordingDispatcher{}
	h := NewSettlementNotificationHandler(d, zap.NewNop())
	scope := academic.Scope{TenantID: uuid.New(), SessionID: uuid.New()}
	schedule, err := fee.NewFeeSchedule(scope, "March 2026", []string{"Tuition"}, fee.ClassRateTable{
		"5": {{Component: "Tuition", Amount: decimal.NewFromInt(1000)}},
	})
	require.NoError(t, err)

	events := schedule.GetDomainEvents()
	require.Len(t, events, 1)
	require.NoError(t, h.Handle(context.Background(), events[0]))
	require.Len(t, d.sent, 1)
	assert.Equal(t, KindSchedulePublished, d.sent[0].Kind)
	assert.Equal(t, "Fee schedule published for March 2026", d.sent[0].Subject)
}

func TestSettlementNotificationHandler_EventTypes(t *testing.T) {
	h := NewSettlementNotificationHandler(&recordingDispatcher{}, nil)
	assert.ElementsMatch(t, []string{
		fee.EventTypeDueSettled,
		fee.EventTypeChargeSettled,
		fee.EventTypeReceiptRequested,
		fee.EventTypeSchedulePublished,
	}, h.EventTypes())
}

func TestSettlementNotificationHandler_StatusChanged(t *testing.T) {
	d := &recordingDispatcher{}
	h := NewSettlementNotificationHandler(d, zap.NewNop())
	scope := academic.Scope{TenantID: uuid.New(), SessionID: uuid.New()}
	settlement, err := fee.NewCounterSettlement("Front desk", time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	due := fee.NewStudentDue(scope, uuid.New(), "5", "March 2026", fee.Breakdown{
		{Component: "Tuition", Amount: decimal.NewFromInt(1000)},
	})
	require.NoError(t, due.Settle(settlement))
	_, charges, err := fee.NewChargeBatch(scope, "March 2026", []uuid.UUID{due.StudentID}, []fee.ChargeSpec{
		{Name: "Picnic", Amount: decimal.NewFromInt(150)},
		{Name: "Lab Kit", Amount: decimal.NewFromInt(75)},
	})
	require.NoError(t, err)
	require.Len(t, charges, 2)

	events := due.GetDomainEvents()
	for _, c := range charges {
		require.NoError(t, c.Settle(settlement))
		events = append(events, c.GetDomainEvents()...)
	}
	require.Len(t, events, 3)

	for _, ev := range events {
		require.NoError(t, h.Handle(context.Background(), ev))
	}
	require.Len(t, d.sent, 3, "one notification per settled record")
	for _, n := range d.sent {
		assert.Equal(t, KindStatusChanged, n.Kind)
		assert.Equal(t, AudienceOffice, n.Audience)
		assert.Equal(t, string(fee.StatusPaid), n.Payload["status"])
		assert.Equal(t, settlement.Reference, n.Payload["reference"])
		assert.Equal(t, due.StudentID.String(), n.Payload["student_id"])
	}
	assert.Equal(t, "student_due", d.sent[0].Payload["record"])
	assert.Equal(t, due.ID.String(), d.sent[0].Payload["record_id"])
	assert.Equal(t, "Monthly due March 2026 paid", d.sent[0].Subject)
	assert.Equal(t, "occasional_charge", d.sent[1].Payload["record"])
	assert.Equal(t, "Picnic paid", d.sent[1].Subject)
	assert.Equal(t, "150", d.sent[1].Payload["amount"])
}
