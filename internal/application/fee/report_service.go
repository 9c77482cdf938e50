package fee

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/feeledger/backend/internal/domain/fee"
	"github.com/feeledger/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// periodLayout is the label format schedules are normally published under
const periodLayout = "January 2006"

// ClassCollection is the monthly collection summary of one class
type ClassCollection struct {
	Class     string          `json:"class"`
	Students  int             `json:"students"`
	PaidCount int             `json:"paid_count"`
	Expected  decimal.Decimal `json:"expected"`
	Collected decimal.Decimal `json:"collected"`
}

// UnpaidCharge is an outstanding occasional charge on a defaulter row
type UnpaidCharge struct {
	ID      uuid.UUID       `json:"id"`
	BatchID uuid.UUID       `json:"batch_id"`
	FeeName string          `json:"fee_name"`
	Amount  decimal.Decimal `json:"amount"`
}

// Defaulter is a student owing money for a period
type Defaulter struct {
	StudentID     uuid.UUID       `json:"student_id"`
	StudentName   string          `json:"student_name"`
	Class         string          `json:"class"`
	MonthlyDue    *fee.DueView    `json:"monthly_due,omitempty"`
	UnpaidCharges []UnpaidCharge  `json:"unpaid_charges"`
	Outstanding   decimal.Decimal `json:"outstanding"`
}

// HistoryKind tells monthly entries from batch entries
type HistoryKind string

const (
	HistoryMonthly    HistoryKind = "MONTHLY"
	HistoryOccasional HistoryKind = "OCCASIONAL"
)

// HistoryEntry is one line of a student's fee history
type HistoryEntry struct {
	Kind             HistoryKind       `json:"kind"`
	Period           string            `json:"period"`
	Description      string            `json:"description"`
	DueID            *uuid.UUID        `json:"due_id,omitempty"`
	BatchID          *uuid.UUID        `json:"batch_id,omitempty"`
	IsVirtual        bool              `json:"is_virtual"`
	Breakdown        fee.Breakdown     `json:"breakdown,omitempty"`
	Total            decimal.Decimal   `json:"total"`
	Paid             decimal.Decimal   `json:"paid"`
	Outstanding      decimal.Decimal   `json:"outstanding"`
	Status           fee.PaymentStatus `json:"status"`
	PaymentReference string            `json:"payment_reference,omitempty"`
	PaidAt           *time.Time        `json:"paid_at,omitempty"`
	sortKey          time.Time
}

// StudentHistory is every fee of a student in a session
type StudentHistory struct {
	StudentID    uuid.UUID       `json:"student_id"`
	StudentName  string          `json:"student_name"`
	Class        string          `json:"class"`
	Entries      []HistoryEntry  `json:"entries"`
	TotalArrears decimal.Decimal `json:"total_arrears"`
}

// ReportService answers collection and arrears questions. It only reads.
type ReportService struct {
	repos  Repositories
	logger *zap.Logger
}

// NewReportService creates a ReportService
func NewReportService(repos Repositories, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{repos: repos, logger: logger}
}

// Tracking summarizes monthly collection per class for a period
func (s *ReportService) Tracking(ctx context.Context, scope academic.Scope, period string) (rows []ClassCollection, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "tracking",
		telemetry.SpanAttrTenantID, scope.TenantID.String(),
		telemetry.SpanAttrPeriod, period)
	defer func() { telemetry.End(span, err) }()

	if scope.IsZero() {
		return nil, academic.ErrNoActiveSession
	}
	students, err := s.repos.Roster().ListActive(ctx, scope)
	if err != nil {
		return nil, err
	}
	views, err := periodDues(ctx, s.repos, scope, students, strings.TrimSpace(period))
	if err != nil {
		return nil, err
	}

	// A stored due stays with the class it was priced for, even after the
	// student moves class.
	byClass := map[string]*ClassCollection{}
	for i, student := range students {
		view := views[i]
		class := view.Class
		if class == "" {
			class = student.Class
		}
		row, ok := byClass[class]
		if !ok {
			row = &ClassCollection{Class: class, Expected: decimal.Zero, Collected: decimal.Zero}
			byClass[class] = row
		}
		row.Students++
		row.Expected = row.Expected.Add(view.Total)
		if view.IsPaid() {
			row.PaidCount++
			row.Collected = row.Collected.Add(view.Total)
		}
	}

	out := make([]ClassCollection, 0, len(byClass))
	for _, row := range byClass {
		out = append(out, *row)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Class < out[b].Class })
	return out, nil
}

// Defaulters lists active students with an unpaid monthly due or unpaid
// charges in the period. class narrows the list when set.
func (s *ReportService) Defaulters(ctx context.Context, scope academic.Scope, period string, class *string) (rows []Defaulter, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "defaulters",
		telemetry.SpanAttrTenantID, scope.TenantID.String(),
		telemetry.SpanAttrPeriod, period)
	defer func() { telemetry.End(span, err) }()

	if scope.IsZero() {
		return nil, academic.ErrNoActiveSession
	}
	period = strings.TrimSpace(period)

	var students []academic.Student
	if class != nil && strings.TrimSpace(*class) != "" {
		students, err = s.repos.Roster().ListActiveByClass(ctx, scope, strings.TrimSpace(*class))
	} else {
		students, err = s.repos.Roster().ListActive(ctx, scope)
	}
	if err != nil {
		return nil, err
	}
	views, err := periodDues(ctx, s.repos, scope, students, period)
	if err != nil {
		return nil, err
	}
	charges, err := s.repos.Charges().FindByPeriod(ctx, scope, period)
	if err != nil {
		return nil, err
	}
	unpaid := map[uuid.UUID][]UnpaidCharge{}
	for _, c := range charges {
		if c.IsPaid() {
			continue
		}
		unpaid[c.StudentID] = append(unpaid[c.StudentID], UnpaidCharge{ID: c.ID, BatchID: c.BatchID, FeeName: c.FeeName, Amount: c.Amount})
	}

	out := []Defaulter{}
	for i, student := range students {
		row := Defaulter{
			StudentID:     student.ID,
			StudentName:   student.Name,
			Class:         student.Class,
			UnpaidCharges: unpaid[student.ID],
			Outstanding:   decimal.Zero,
		}
		if view := views[i]; view.Outstanding().IsPositive() {
			row.MonthlyDue = &view
			row.Outstanding = view.Outstanding()
		}
		for _, c := range row.UnpaidCharges {
			row.Outstanding = row.Outstanding.Add(c.Amount)
		}
		if row.MonthlyDue == nil && len(row.UnpaidCharges) == 0 {
			continue
		}
		if row.UnpaidCharges == nil {
			row.UnpaidCharges = []UnpaidCharge{}
		}
		out = append(out, row)
	}
	return out, nil
}

// StudentHistory lists one entry per configured period and one per batch,
// most recent first, with the student's total arrears.
func (s *ReportService) StudentHistory(ctx context.Context, scope academic.Scope, studentID uuid.UUID) (*StudentHistory, error) {
	if scope.IsZero() {
		return nil, academic.ErrNoActiveSession
	}
	student, err := s.repos.Roster().FindByID(ctx, scope, studentID)
	if err != nil {
		return nil, err
	}
	schedules, err := s.repos.Schedules().FindBySession(ctx, scope)
	if err != nil {
		return nil, err
	}
	stored, err := s.repos.Dues().FindByStudent(ctx, scope, studentID)
	if err != nil {
		return nil, err
	}
	charges, err := s.repos.Charges().FindByStudent(ctx, scope, studentID)
	if err != nil {
		return nil, err
	}

	history := &StudentHistory{
		StudentID:    student.ID,
		StudentName:  student.Name,
		Class:        student.Class,
		Entries:      []HistoryEntry{},
		TotalArrears: decimal.Zero,
	}

	byPeriod := make(map[string]*fee.StudentDue, len(stored))
	for i := range stored {
		byPeriod[stored[i].Period] = &stored[i]
	}
	covered := map[string]bool{}
	for i := range schedules {
		schedule := &schedules[i]
		covered[schedule.Period] = true
		if due, ok := byPeriod[schedule.Period]; ok {
			history.add(monthlyEntry(fee.Normalize(fee.MaterializedDue{StudentDue: due}), schedule.PublishedAt))
			continue
		}
		if _, ok := schedule.RatesFor(student.Class); !ok {
			continue
		}
		history.add(monthlyEntry(fee.Normalize(fee.NewVirtualDue(scope, schedule, *student, schedule.Period)), schedule.PublishedAt))
	}
	// Dues can outlive their schedule only through direct data fixes; still show them.
	for i := range stored {
		if !covered[stored[i].Period] {
			history.add(monthlyEntry(fee.Normalize(fee.MaterializedDue{StudentDue: &stored[i]}), stored[i].CreatedAt))
		}
	}

	for _, summary := range fee.SummarizeBatches(charges) {
		batchID := summary.BatchID
		entry := HistoryEntry{
			Kind:        HistoryOccasional,
			Period:      summary.Period,
			Description: strings.Join(summary.FeeNames, ", "),
			BatchID:     &batchID,
			Total:       summary.Expected,
			Paid:        summary.Collected,
			Outstanding: summary.Expected.Sub(summary.Collected),
			Status:      fee.StatusUnpaid,
			sortKey:     sortKey(summary.Period, summary.CreatedAt),
		}
		if summary.FullySettled {
			entry.Status = fee.StatusPaid
		}
		history.add(entry)
	}

	sort.SliceStable(history.Entries, func(a, b int) bool {
		return history.Entries[a].sortKey.After(history.Entries[b].sortKey)
	})
	return history, nil
}

func (h *StudentHistory) add(e HistoryEntry) {
	h.Entries = append(h.Entries, e)
	h.TotalArrears = h.TotalArrears.Add(e.Outstanding)
}

func monthlyEntry(view fee.DueView, created time.Time) HistoryEntry {
	paid := decimal.Zero
	if view.IsPaid() {
		paid = view.Total
	}
	return HistoryEntry{
		Kind:             HistoryMonthly,
		Period:           view.Period,
		Description:      strings.Join(view.Breakdown.Components(), ", "),
		DueID:            view.ID,
		IsVirtual:        view.IsVirtual,
		Breakdown:        view.Breakdown,
		Total:            view.Total,
		Paid:             paid,
		Outstanding:      view.Outstanding(),
		Status:           view.Status,
		PaymentReference: view.PaymentReference,
		PaidAt:           view.PaidAt,
		sortKey:          sortKey(view.Period, created),
	}
}

// sortKey prefers the date a "January 2006" label names over the creation time
func sortKey(period string, fallback time.Time) time.Time {
	if t, err := time.Parse(periodLayout, strings.TrimSpace(period)); err == nil {
		return t
	}
	return fallback
}
