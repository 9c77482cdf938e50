package fee

import (
	"context"
	"fmt"
	"strings"

	"github.com/feeledger/backend/internal/domain/fee"
	"github.com/feeledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Notification audiences
const (
	AudienceGuardian = "GUARDIAN"
	AudienceOffice   = "OFFICE"
)

// Notification kinds
const (
	KindReceipt           = "RECEIPT"
	KindSchedulePublished = "SCHEDULE_PUBLISHED"
	KindStatusChanged     = "STATUS_CHANGED"
)

// Notification is a message for a person or a role. Recipient is an address
// and may be empty for role audiences.
type Notification struct {
	Audience  string
	Kind      string
	Recipient string
	Subject   string
	Body      string
	Payload   map[string]any
}

// NotificationDispatcher delivers notifications
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// SettlementNotificationHandler turns settlement and schedule events into
// notifications. Every settled due or charge yields one STATUS_CHANGED
// notification; a settlement operation additionally yields its receipt. Delivery is best effort: a failed dispatch is logged and the
// event is still acknowledged, since the money has already moved.
type SettlementNotificationHandler struct {
	dispatcher NotificationDispatcher
	logger     *zap.Logger
}

// NewSettlementNotificationHandler creates a SettlementNotificationHandler
func NewSettlementNotificationHandler(dispatcher NotificationDispatcher, logger *zap.Logger) *SettlementNotificationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettlementNotificationHandler{dispatcher: dispatcher, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *SettlementNotificationHandler) EventTypes() []string {
	return []string{
		fee.EventTypeDueSettled,
		fee.EventTypeChargeSettled,
		fee.EventTypeReceiptRequested,
		fee.EventTypeSchedulePublished,
	}
}

// Handle dispatches the notifications for one event
func (h *SettlementNotificationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	var notifications []Notification
	switch e := event.(type) {
	case *fee.DueSettledEvent:
		notifications = []Notification{statusChanged(e.TenantID(), e.SessionID, e.StudentID, e.PaymentReference, e.Channel,
			"Monthly due "+e.Period+" paid", e.Total,
			map[string]any{"record": "student_due", "record_id": e.AggregateID().String(), "period": e.Period})}
	case *fee.ChargeSettledEvent:
		notifications = []Notification{statusChanged(e.TenantID(), e.SessionID, e.StudentID, e.PaymentReference, e.Channel,
			e.FeeName+" paid", e.Amount,
			map[string]any{"record": "occasional_charge", "record_id": e.AggregateID().String(), "batch_id": e.BatchID.String()})}
	case *fee.ReceiptRequestedEvent:
		notifications = receiptNotifications(e)
	case *fee.SchedulePublishedEvent:
		notifications = []Notification{{
			Audience: AudienceOffice,
			Kind:     KindSchedulePublished,
			Subject:  "Fee schedule published for " + e.Period,
			Body: fmt.Sprintf("Fee schedule for %s published with components %s for classes %s.",
				e.Period, strings.Join(e.Components, ", "), strings.Join(e.Classes, ", ")),
			Payload: map[string]any{"tenant_id": e.TenantID().String(), "session_id": e.SessionID.String(), "period": e.Period},
		}}
	default:
		h.logger.Warn("unexpected event type", zap.String("actual", event.EventType()))
		return nil
	}

	for _, n := range notifications {
		if err := h.dispatcher.Dispatch(ctx, n); err != nil {
			h.logger.Warn("notification dispatch failed",
				zap.String("event_id", event.EventID().String()),
				zap.String("kind", n.Kind),
				zap.String("audience", n.Audience),
				zap.Error(shared.NewCollaboratorError("NOTIFY_FAILED", "notification dispatch failed").WithCause(err)))
		}
	}
	return nil
}

func statusChanged(tenantID, sessionID, studentID uuid.UUID, reference string, channel fee.SettlementChannel,
	subject string, amount decimal.Decimal, payload map[string]any) Notification {
	payload["tenant_id"] = tenantID.String()
	payload["session_id"] = sessionID.String()
	payload["student_id"] = studentID.String()
	payload["status"] = string(fee.StatusPaid)
	payload["reference"] = reference
	payload["channel"] = string(channel)
	payload["amount"] = amount.String()
	return Notification{
		Audience: AudienceOffice,
		Kind:     KindStatusChanged,
		Subject:  subject,
		Body:     fmt.Sprintf("%s: %s via %s, reference %s.", subject, amount.StringFixed(2), channel, reference),
		Payload:  payload,
	}
}

func receiptNotifications(e *fee.ReceiptRequestedEvent) []Notification {
	var body strings.Builder
	fmt.Fprintf(&body, "Payment received for %s.\n\n", e.StudentName)
	for _, l := range e.Lines {
		fmt.Fprintf(&body, "  %-30s %s\n", l.Description, l.Amount.StringFixed(2))
	}
	fmt.Fprintf(&body, "\nTotal: %s\nReference: %s\n", e.Total.StringFixed(2), e.PaymentReference)
	if e.Channel == fee.ChannelCounter {
		fmt.Fprintf(&body, "Collected by: %s\n", e.CollectedBy)
	}

	payload := map[string]any{
		"tenant_id":  e.TenantID().String(),
		"session_id": e.SessionID.String(),
		"student_id": e.StudentID.String(),
		"reference":  e.PaymentReference,
		"channel":    string(e.Channel),
		"total":      e.Total.String(),
	}
	if e.BatchID != nil {
		payload["batch_id"] = e.BatchID.String()
		payload["batch_fully_settled"] = e.BatchFullySettled
	}

	out := []Notification{{
		Audience: AudienceOffice,
		Kind:     KindReceipt,
		Subject:  "Payment " + e.PaymentReference,
		Body:     body.String(),
		Payload:  payload,
	}}
	if e.ContactEmail != "" {
		out = append(out, Notification{
			Audience:  AudienceGuardian,
			Kind:      KindReceipt,
			Recipient: e.ContactEmail,
			Subject:   "Fee receipt " + e.PaymentReference,
			Body:      body.String(),
			Payload:   payload,
		})
	}
	return out
}

var _ shared.EventHandler = (*SettlementNotificationHandler)(nil)
