package fee

import (
	"time"

	"github.com/feeledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constants
const (
	AggregateTypeSchedule   = "FeeSchedule"
	AggregateTypeStudentDue = "StudentDue"
	AggregateTypeCharge     = "OccasionalCharge"
	AggregateTypeSettlement = "Settlement"
)

// Event type constants
const (
	EventTypeSchedulePublished = "fee.schedule.published"
	EventTypeDueSettled        = "fee.due.settled"
	EventTypeChargeSettled     = "fee.charge.settled"
	EventTypeReceiptRequested  = "fee.receipt.requested"
)

// SchedulePublishedEvent is raised whenever a schedule is created or revised
type SchedulePublishedEvent struct {
	shared.BaseDomainEvent
	SessionID  uuid.UUID `json:"session_id"`
	Period     string    `json:"period"`
	Components []string  `json:"components"`
	Classes    []string  `json:"classes"`
}

// NewSchedulePublishedEvent creates a SchedulePublishedEvent
func NewSchedulePublishedEvent(s *FeeSchedule) *SchedulePublishedEvent {
	return &SchedulePublishedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSchedulePublished, AggregateTypeSchedule, s.ID, s.TenantID),
		SessionID:       s.SessionID,
		Period:          s.Period,
		Components:      s.Components,
		Classes:         s.Rates.Classes(),
	}
}

// DueSettledEvent is the status-change event of one monthly due
type DueSettledEvent struct {
	shared.BaseDomainEvent
	SessionID        uuid.UUID         `json:"session_id"`
	StudentID        uuid.UUID         `json:"student_id"`
	Period           string            `json:"period"`
	Total            decimal.Decimal   `json:"total"`
	PaymentReference string            `json:"payment_reference"`
	Channel          SettlementChannel `json:"channel"`
	PaidAt           time.Time         `json:"paid_at"`
}

// NewDueSettledEvent creates a DueSettledEvent
func NewDueSettledEvent(d *StudentDue) *DueSettledEvent {
	ev := &DueSettledEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeDueSettled, AggregateTypeStudentDue, d.ID, d.TenantID),
		SessionID:        d.SessionID,
		StudentID:        d.StudentID,
		Period:           d.Period,
		Total:            d.Total,
		PaymentReference: d.PaymentReference,
		Channel:          d.Channel,
	}
	if d.PaidAt != nil {
		ev.PaidAt = *d.PaidAt
	}
	return ev
}

// ChargeSettledEvent is the status-change event of one occasional charge
type ChargeSettledEvent struct {
	shared.BaseDomainEvent
	SessionID        uuid.UUID         `json:"session_id"`
	BatchID          uuid.UUID         `json:"batch_id"`
	StudentID        uuid.UUID         `json:"student_id"`
	FeeName          string            `json:"fee_name"`
	Amount           decimal.Decimal   `json:"amount"`
	PaymentReference string            `json:"payment_reference"`
	Channel          SettlementChannel `json:"channel"`
	PaidAt           time.Time         `json:"paid_at"`
}

// NewChargeSettledEvent creates a ChargeSettledEvent
func NewChargeSettledEvent(c *OccasionalCharge) *ChargeSettledEvent {
	ev := &ChargeSettledEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeChargeSettled, AggregateTypeCharge, c.ID, c.TenantID),
		SessionID:        c.SessionID,
		BatchID:          c.BatchID,
		StudentID:        c.StudentID,
		FeeName:          c.FeeName,
		Amount:           c.Amount,
		PaymentReference: c.PaymentReference,
		Channel:          c.Channel,
	}
	if c.PaidAt != nil {
		ev.PaidAt = *c.PaidAt
	}
	return ev
}

// ReceiptLine is one paid item listed on a receipt
type ReceiptLine struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// ReceiptRequestedEvent asks the notification side to send one receipt for a
// settlement operation, however many records it touched.
type ReceiptRequestedEvent struct {
	shared.BaseDomainEvent
	SessionID         uuid.UUID         `json:"session_id"`
	StudentID         uuid.UUID         `json:"student_id"`
	StudentName       string            `json:"student_name"`
	ContactEmail      string            `json:"contact_email"`
	PaymentReference  string            `json:"payment_reference"`
	Channel           SettlementChannel `json:"channel"`
	CollectedBy       string            `json:"collected_by"`
	Lines             []ReceiptLine     `json:"lines"`
	Total             decimal.Decimal   `json:"total"`
	BatchID           *uuid.UUID        `json:"batch_id,omitempty"`
	BatchFullySettled bool              `json:"batch_fully_settled"`
}

// NewReceiptRequestedEvent creates a ReceiptRequestedEvent keyed by the
// payment reference.
func NewReceiptRequestedEvent(tenantID, sessionID uuid.UUID, student ReceiptStudent, s Settlement, lines []ReceiptLine) *ReceiptRequestedEvent {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount)
	}
	return &ReceiptRequestedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeReceiptRequested, AggregateTypeSettlement, student.ID, tenantID),
		SessionID:        sessionID,
		StudentID:        student.ID,
		StudentName:      student.Name,
		ContactEmail:     student.ContactEmail,
		PaymentReference: s.Reference,
		Channel:          s.Channel,
		CollectedBy:      s.CollectedBy,
		Lines:            lines,
		Total:            total,
	}
}

// ReceiptStudent is the payer identity printed on a receipt
type ReceiptStudent struct {
	ID           uuid.UUID
	Name         string
	ContactEmail string
}
