package fee

import (
	"time"

	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/feeledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StudentDue is a materialized monthly due, unique per
// (tenant, session, student, period).
type StudentDue struct {
	shared.SessionAggregateRoot
	StudentID        uuid.UUID
	Class            string
	Period           string
	Breakdown        Breakdown
	Total            decimal.Decimal
	Status           PaymentStatus
	PaymentReference string
	Channel          SettlementChannel
	CollectedBy      string
	PaidAt           *time.Time
}

// NewStudentDue creates an unpaid due from a computed breakdown
func NewStudentDue(scope academic.Scope, studentID uuid.UUID, class, period string, breakdown Breakdown) *StudentDue {
	return &StudentDue{
		SessionAggregateRoot: shared.NewSessionAggregateRoot(scope.TenantID, scope.SessionID),
		StudentID:            studentID,
		Class:                class,
		Period:               period,
		Breakdown:            breakdown,
		Total:                breakdown.Total(),
		Status:               StatusUnpaid,
	}
}

// IsPaid reports whether the due has been settled
func (d *StudentDue) IsPaid() bool {
	return d.Status == StatusPaid
}

// Settle marks the due paid. A paid due is immutable.
func (d *StudentDue) Settle(s Settlement) error {
	if d.IsPaid() {
		return ErrAlreadySettled
	}
	if !d.Total.IsPositive() {
		return ErrNothingToSettle
	}
	at := s.SettledAt
	d.Status = StatusPaid
	d.PaymentReference = s.Reference
	d.Channel = s.Channel
	d.CollectedBy = s.CollectedBy
	d.PaidAt = &at
	d.UpdatedAt = at
	d.IncrementVersion()
	d.AddDomainEvent(NewDueSettledEvent(d))
	return nil
}

// Due is either a VirtualDue computed on the fly or a MaterializedDue read
// from storage. Normalize is the single way to read either.
type Due interface {
	isDue()
}

// VirtualDue is a due that has not been stored yet
type VirtualDue struct {
	TenantID  uuid.UUID
	SessionID uuid.UUID
	StudentID uuid.UUID
	Class     string
	Period    string
	Breakdown Breakdown
}

// MaterializedDue wraps a stored due
type MaterializedDue struct {
	*StudentDue
}

func (VirtualDue) isDue()      {}
func (MaterializedDue) isDue() {}

// NewVirtualDue computes the virtual due of student for schedule. A nil
// schedule or an unconfigured class yields an empty breakdown.
func NewVirtualDue(scope academic.Scope, schedule *FeeSchedule, student academic.Student, period string) VirtualDue {
	v := VirtualDue{
		TenantID:  scope.TenantID,
		SessionID: scope.SessionID,
		StudentID: student.ID,
		Class:     student.Class,
		Period:    period,
		Breakdown: Breakdown{},
	}
	if schedule != nil {
		if breakdown, ok := ComputeVirtual(schedule, student); ok {
			v.Breakdown = breakdown
		}
	}
	return v
}

// Materialize freezes the virtual due into a storable row
func (v VirtualDue) Materialize() *StudentDue {
	scope := academic.Scope{TenantID: v.TenantID, SessionID: v.SessionID}
	return NewStudentDue(scope, v.StudentID, v.Class, v.Period, v.Breakdown)
}

// DueView is the flat reporting shape of any due
type DueView struct {
	ID               *uuid.UUID        `json:"id,omitempty"`
	StudentID        uuid.UUID         `json:"student_id"`
	Class            string            `json:"class"`
	Period           string            `json:"period"`
	Breakdown        Breakdown         `json:"breakdown"`
	Total            decimal.Decimal   `json:"total"`
	Status           PaymentStatus     `json:"status"`
	IsVirtual        bool              `json:"is_virtual"`
	PaymentReference string            `json:"payment_reference,omitempty"`
	Channel          SettlementChannel `json:"channel,omitempty"`
	CollectedBy      string            `json:"collected_by,omitempty"`
	PaidAt           *time.Time        `json:"paid_at,omitempty"`
}

// IsPaid reports whether the viewed due is settled
func (v DueView) IsPaid() bool {
	return v.Status == StatusPaid
}

// Outstanding is the unpaid amount of the due
func (v DueView) Outstanding() decimal.Decimal {
	if v.IsPaid() {
		return decimal.Zero
	}
	return v.Total
}

// Normalize converts either due variant into a DueView
func Normalize(d Due) DueView {
	switch due := d.(type) {
	case MaterializedDue:
		id := due.ID
		return DueView{
			ID:               &id,
			StudentID:        due.StudentID,
			Class:            due.Class,
			Period:           due.Period,
			Breakdown:        due.Breakdown,
			Total:            due.Total,
			Status:           due.Status,
			PaymentReference: due.PaymentReference,
			Channel:          due.Channel,
			CollectedBy:      due.CollectedBy,
			PaidAt:           due.PaidAt,
		}
	case VirtualDue:
		return DueView{
			StudentID: due.StudentID,
			Class:     due.Class,
			Period:    due.Period,
			Breakdown: due.Breakdown,
			Total:     due.Breakdown.Total(),
			Status:    StatusUnpaid,
			IsVirtual: true,
		}
	default:
		panic("fee: unknown due variant")
	}
}
