package fee

import (
	"context"
	"fmt"

	"github.com/feeledger/backend/internal/domain/fee"
	"github.com/google/uuid"
)

// RepublishResult reports what a republish changed
type RepublishResult struct {
	Deleted        int64 `json:"deleted"`
	Created        int   `json:"created"`
	KeptPaid       int   `json:"kept_paid"`
	SkippedNoClass int   `json:"skipped_no_class"`
}

// republish rebuilds the unpaid dues of a schedule's period from the current
// roster. Paid dues are never touched and their students get no new row. It
// runs inside the caller's transaction so readers see either the old set or
// the new one.
func republish(ctx context.Context, repos Repositories, schedule *fee.FeeSchedule) (RepublishResult, error) {
	var result RepublishResult
	scope := schedule.Scope()

	students, err := repos.Roster().ListActive(ctx, scope)
	if err != nil {
		return result, fmt.Errorf("list roster: %w", err)
	}

	deleted, err := repos.Dues().DeleteUnpaid(ctx, scope, schedule.Period)
	if err != nil {
		return result, fmt.Errorf("delete unpaid dues: %w", err)
	}
	result.Deleted = deleted

	remaining, err := repos.Dues().FindByPeriod(ctx, scope, schedule.Period)
	if err != nil {
		return result, fmt.Errorf("load paid dues: %w", err)
	}
	paid := make(map[uuid.UUID]bool, len(remaining))
	for _, d := range remaining {
		paid[d.StudentID] = true
	}

	dues := make([]*fee.StudentDue, 0, len(students))
	for _, student := range students {
		if paid[student.ID] {
			result.KeptPaid++
			continue
		}
		breakdown, ok := fee.ComputeVirtual(schedule, student)
		if !ok {
			result.SkippedNoClass++
			continue
		}
		dues = append(dues, fee.NewStudentDue(scope, student.ID, student.Class, schedule.Period, breakdown))
	}
	if err := repos.Dues().CreateInBatches(ctx, dues); err != nil {
		return result, fmt.Errorf("insert dues: %w", err)
	}
	result.Created = len(dues)
	return result, nil
}
