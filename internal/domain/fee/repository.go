package fee

import (
	"context"

	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/google/uuid"
)

// ScheduleRepository persists fee schedules
type ScheduleRepository interface {
	// FindByPeriod returns shared.ErrNotFound when nothing is configured
	FindByPeriod(ctx context.Context, scope academic.Scope, period string) (*FeeSchedule, error)
	FindBySession(ctx context.Context, scope academic.Scope) ([]FeeSchedule, error)
	// Save inserts a new schedule or updates an existing one guarded by its
	// version. A stale version returns ErrScheduleConflict.
	Save(ctx context.Context, schedule *FeeSchedule) error
	PurgeSession(ctx context.Context, scope academic.Scope) (int64, error)
}

// DueRepository persists materialized monthly dues
type DueRepository interface {
	FindOne(ctx context.Context, scope academic.Scope, studentID uuid.UUID, period string) (*StudentDue, error)
	// FindOneForUpdate reads the due holding a row lock until the transaction ends
	FindOneForUpdate(ctx context.Context, scope academic.Scope, studentID uuid.UUID, period string) (*StudentDue, error)
	FindByPeriod(ctx context.Context, scope academic.Scope, period string) ([]StudentDue, error)
	FindByStudent(ctx context.Context, scope academic.Scope, studentID uuid.UUID) ([]StudentDue, error)
	// DeleteUnpaid removes every unpaid due of a period. Paid dues stay.
	DeleteUnpaid(ctx context.Context, scope academic.Scope, period string) (int64, error)
	CreateInBatches(ctx context.Context, dues []*StudentDue) error
	// InsertIfAbsent stores the due unless one already exists for its key.
	// It reports whether a row was inserted.
	InsertIfAbsent(ctx context.Context, due *StudentDue) (bool, error)
	// MarkSettled writes settlement fields only while the row is still unpaid.
	// It reports whether the row changed.
	MarkSettled(ctx context.Context, due *StudentDue) (bool, error)
	PurgeSession(ctx context.Context, scope academic.Scope) (int64, error)
}

// ChargeRepository persists occasional charges
type ChargeRepository interface {
	CreateInBatches(ctx context.Context, charges []*OccasionalCharge) error
	FindByID(ctx context.Context, scope academic.Scope, id uuid.UUID) (*OccasionalCharge, error)
	FindByIDForUpdate(ctx context.Context, scope academic.Scope, id uuid.UUID) (*OccasionalCharge, error)
	FindByBatch(ctx context.Context, scope academic.Scope, batchID uuid.UUID) ([]OccasionalCharge, error)
	// FindByBatchAndStudentForUpdate locks every charge of the student in the batch
	FindByBatchAndStudentForUpdate(ctx context.Context, scope academic.Scope, batchID, studentID uuid.UUID) ([]OccasionalCharge, error)
	FindByPeriod(ctx context.Context, scope academic.Scope, period string) ([]OccasionalCharge, error)
	FindByStudent(ctx context.Context, scope academic.Scope, studentID uuid.UUID) ([]OccasionalCharge, error)
	// SettleUnpaid marks every currently unpaid charge of the student in the
	// batch paid in one statement and returns the number of rows changed.
	SettleUnpaid(ctx context.Context, scope academic.Scope, batchID, studentID uuid.UUID, s Settlement) (int64, error)
	MarkSettled(ctx context.Context, charge *OccasionalCharge) (bool, error)
	PurgeSession(ctx context.Context, scope academic.Scope) (int64, error)
}

// PaymentOrderRepository persists gateway payment orders
type PaymentOrderRepository interface {
	Create(ctx context.Context, order *PaymentOrder) error
	UpdateRedirect(ctx context.Context, order *PaymentOrder) error
	FindByRef(ctx context.Context, tenantID uuid.UUID, orderRef string) (*PaymentOrder, error)
	FindByRefForUpdate(ctx context.Context, tenantID uuid.UUID, orderRef string) (*PaymentOrder, error)
	MarkPaid(ctx context.Context, order *PaymentOrder) error
	PurgeSession(ctx context.Context, scope academic.Scope) (int64, error)
}
