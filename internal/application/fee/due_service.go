package fee

import (
	"context"
	"errors"
	"strings"

	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/feeledger/backend/internal/domain/fee"
	"github.com/feeledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DueService reads monthly dues. A stored due wins; otherwise the due is
// computed from the period's schedule without writing anything.
type DueService struct {
	repos  Repositories
	logger *zap.Logger
}

// NewDueService creates a DueService
func NewDueService(repos Repositories, logger *zap.Logger) *DueService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DueService{repos: repos, logger: logger}
}

// ReadDue returns the due of one student for a period
func (s *DueService) ReadDue(ctx context.Context, scope academic.Scope, studentID uuid.UUID, period string) (fee.Due, error) {
	if scope.IsZero() {
		return nil, academic.ErrNoActiveSession
	}
	period = strings.TrimSpace(period)
	student, err := s.repos.Roster().FindByID(ctx, scope, studentID)
	if err != nil {
		return nil, err
	}
	return readDue(ctx, s.repos, scope, *student, period)
}

func readDue(ctx context.Context, repos Repositories, scope academic.Scope, student academic.Student, period string) (fee.Due, error) {
	stored, err := repos.Dues().FindOne(ctx, scope, student.ID, period)
	if err == nil {
		return fee.MaterializedDue{StudentDue: stored}, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	schedule, err := loadSchedule(ctx, repos, scope, period)
	if err != nil {
		return nil, err
	}
	return fee.NewVirtualDue(scope, schedule, student, period), nil
}

// loadSchedule returns nil without error when the period has no schedule
func loadSchedule(ctx context.Context, repos Repositories, scope academic.Scope, period string) (*fee.FeeSchedule, error) {
	schedule, err := repos.Schedules().FindByPeriod(ctx, scope, period)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return schedule, nil
}

// ReadClassDues returns the dues of every active student of a class for a
// period, mixing stored and virtual dues.
func (s *DueService) ReadClassDues(ctx context.Context, scope academic.Scope, class, period string) ([]fee.DueView, error) {
	if scope.IsZero() {
		return nil, academic.ErrNoActiveSession
	}
	period = strings.TrimSpace(period)
	students, err := s.repos.Roster().ListActiveByClass(ctx, scope, strings.TrimSpace(class))
	if err != nil {
		return nil, err
	}
	views, err := periodDues(ctx, s.repos, scope, students, period)
	if err != nil {
		return nil, err
	}
	return views, nil
}

// periodDues builds one view per student with two queries instead of one per
// student.
func periodDues(ctx context.Context, repos Repositories, scope academic.Scope, students []academic.Student, period string) ([]fee.DueView, error) {
	stored, err := repos.Dues().FindByPeriod(ctx, scope, period)
	if err != nil {
		return nil, err
	}
	byStudent := make(map[uuid.UUID]*fee.StudentDue, len(stored))
	for i := range stored {
		byStudent[stored[i].StudentID] = &stored[i]
	}
	schedule, err := loadSchedule(ctx, repos, scope, period)
	if err != nil {
		return nil, err
	}

	views := make([]fee.DueView, 0, len(students))
	for _, student := range students {
		if due, ok := byStudent[student.ID]; ok {
			views = append(views, fee.Normalize(fee.MaterializedDue{StudentDue: due}))
			continue
		}
		views = append(views, fee.Normalize(fee.NewVirtualDue(scope, schedule, student, period)))
	}
	return views, nil
}
