package fee

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/feeledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChargeSpec names one ad hoc charge and its amount
type ChargeSpec struct {
	Name   string
	Amount decimal.Decimal
}

// OccasionalCharge is one line item of a batch for one student
type OccasionalCharge struct {
	shared.SessionAggregateRoot
	BatchID          uuid.UUID
	StudentID        uuid.UUID
	Period           string
	FeeName          string
	Amount           decimal.Decimal
	Status           PaymentStatus
	PaymentReference string
	Channel          SettlementChannel
	CollectedBy      string
	PaidAt           *time.Time
}

// IsPaid reports whether the charge has been settled
func (c *OccasionalCharge) IsPaid() bool {
	return c.Status == StatusPaid
}

// Settle marks the charge paid. A paid charge is immutable.
func (c *OccasionalCharge) Settle(s Settlement) error {
	if c.IsPaid() {
		return ErrAlreadySettled
	}
	at := s.SettledAt
	c.Status = StatusPaid
	c.PaymentReference = s.Reference
	c.Channel = s.Channel
	c.CollectedBy = s.CollectedBy
	c.PaidAt = &at
	c.UpdatedAt = at
	c.IncrementVersion()
	c.AddDomainEvent(NewChargeSettledEvent(c))
	return nil
}

// NewChargeBatch expands students x charges into line items under a fresh
// batch id. Zero amounts are skipped.
func NewChargeBatch(scope academic.Scope, period string, studentIDs []uuid.UUID, charges []ChargeSpec) (uuid.UUID, []*OccasionalCharge, error) {
	if scope.IsZero() {
		return uuid.Nil, nil, academic.ErrNoActiveSession
	}
	period = strings.TrimSpace(period)
	if period == "" {
		return uuid.Nil, nil, shared.NewValidationError("INVALID_PERIOD", "Period is required")
	}
	if len(studentIDs) == 0 {
		return uuid.Nil, nil, shared.NewValidationError("NO_STUDENTS", "At least one student is required")
	}
	if len(charges) == 0 {
		return uuid.Nil, nil, shared.NewValidationError("NO_CHARGES", "At least one charge is required")
	}

	names := make(map[string]bool, len(charges))
	positive := make([]ChargeSpec, 0, len(charges))
	for _, c := range charges {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return uuid.Nil, nil, shared.NewValidationError("INVALID_CHARGE_NAME", "Charge names cannot be blank")
		}
		if names[name] {
			return uuid.Nil, nil, shared.NewValidationError("DUPLICATE_CHARGE", fmt.Sprintf("Charge %q listed twice", name))
		}
		names[name] = true
		if c.Amount.IsNegative() {
			return uuid.Nil, nil, shared.NewValidationError("NEGATIVE_AMOUNT", fmt.Sprintf("Charge %s has a negative amount", name))
		}
		if c.Amount.IsPositive() {
			positive = append(positive, ChargeSpec{Name: name, Amount: c.Amount})
		}
	}
	if len(positive) == 0 {
		return uuid.Nil, nil, shared.NewValidationError("NO_POSITIVE_CHARGE", "Batch has no charge with a positive amount")
	}

	seen := make(map[uuid.UUID]bool, len(studentIDs))
	batchID := uuid.New()
	items := make([]*OccasionalCharge, 0, len(studentIDs)*len(positive))
	for _, studentID := range studentIDs {
		if seen[studentID] {
			continue
		}
		seen[studentID] = true
		for _, c := range positive {
			items = append(items, &OccasionalCharge{
				SessionAggregateRoot: shared.NewSessionAggregateRoot(scope.TenantID, scope.SessionID),
				BatchID:              batchID,
				StudentID:            studentID,
				Period:               period,
				FeeName:              c.Name,
				Amount:               c.Amount,
				Status:               StatusUnpaid,
			})
		}
	}
	return batchID, items, nil
}

// BatchSummary is one row of the batch history
type BatchSummary struct {
	BatchID      uuid.UUID       `json:"batch_id"`
	Period       string          `json:"period"`
	FeeNames     []string        `json:"fee_names"`
	StudentCount int             `json:"student_count"`
	Expected     decimal.Decimal `json:"expected"`
	Collected    decimal.Decimal `json:"collected"`
	FullySettled bool            `json:"fully_settled"`
	CreatedAt    time.Time       `json:"created_at"`
}

// BatchStudentLine is one row of a batch detail
type BatchStudentLine struct {
	StudentID   uuid.UUID       `json:"student_id"`
	StudentName string          `json:"student_name,omitempty"`
	Class       string          `json:"class,omitempty"`
	Description string          `json:"description"`
	Total       decimal.Decimal `json:"total"`
	Paid        decimal.Decimal `json:"paid"`
	Status      PaymentStatus   `json:"status"`
}

// SummarizeBatches groups charges by batch, newest batch first
func SummarizeBatches(charges []OccasionalCharge) []BatchSummary {
	index := map[uuid.UUID]int{}
	summaries := []BatchSummary{}
	students := map[uuid.UUID]map[uuid.UUID]bool{}
	fees := map[uuid.UUID]map[string]bool{}

	for _, c := range charges {
		i, ok := index[c.BatchID]
		if !ok {
			i = len(summaries)
			index[c.BatchID] = i
			summaries = append(summaries, BatchSummary{
				BatchID:      c.BatchID,
				Period:       c.Period,
				FeeNames:     []string{},
				Expected:     decimal.Zero,
				Collected:    decimal.Zero,
				FullySettled: true,
				CreatedAt:    c.CreatedAt,
			})
			students[c.BatchID] = map[uuid.UUID]bool{}
			fees[c.BatchID] = map[string]bool{}
		}
		s := &summaries[i]
		s.Expected = s.Expected.Add(c.Amount)
		if c.IsPaid() {
			s.Collected = s.Collected.Add(c.Amount)
		} else {
			s.FullySettled = false
		}
		if c.CreatedAt.Before(s.CreatedAt) {
			s.CreatedAt = c.CreatedAt
		}
		students[c.BatchID][c.StudentID] = true
		if !fees[c.BatchID][c.FeeName] {
			fees[c.BatchID][c.FeeName] = true
			s.FeeNames = append(s.FeeNames, c.FeeName)
		}
	}
	for i := range summaries {
		summaries[i].StudentCount = len(students[summaries[i].BatchID])
	}
	sort.SliceStable(summaries, func(a, b int) bool {
		return summaries[a].CreatedAt.After(summaries[b].CreatedAt)
	})
	return summaries
}

// DetailLines groups the charges of one batch by student. A student is
// UNPAID while any of their items is unpaid.
func DetailLines(charges []OccasionalCharge, roster map[uuid.UUID]academic.Student) []BatchStudentLine {
	index := map[uuid.UUID]int{}
	lines := []BatchStudentLine{}
	descriptions := map[uuid.UUID][]string{}

	for _, c := range charges {
		i, ok := index[c.StudentID]
		if !ok {
			i = len(lines)
			index[c.StudentID] = i
			line := BatchStudentLine{
				StudentID: c.StudentID,
				Total:     decimal.Zero,
				Paid:      decimal.Zero,
				Status:    StatusPaid,
			}
			if st, found := roster[c.StudentID]; found {
				line.StudentName = st.Name
				line.Class = st.Class
			}
			lines = append(lines, line)
		}
		l := &lines[i]
		l.Total = l.Total.Add(c.Amount)
		if c.IsPaid() {
			l.Paid = l.Paid.Add(c.Amount)
		} else {
			l.Status = StatusUnpaid
		}
		descriptions[c.StudentID] = append(descriptions[c.StudentID], c.FeeName)
	}
	for i := range lines {
		lines[i].Description = strings.Join(descriptions[lines[i].StudentID], ", ")
	}
	sort.SliceStable(lines, func(a, b int) bool {
		if lines[a].Class != lines[b].Class {
			return lines[a].Class < lines[b].Class
		}
		return lines[a].StudentName < lines[b].StudentName
	})
	return lines
}
