package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	appfee "github.com/feeledger/backend/internal/application/fee"
	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/feeledger/backend/internal/domain/fee"
	"github.com/feeledger/backend/internal/domain/shared"
	"github.com/feeledger/backend/internal/infrastructure/event"
	"github.com/feeledger/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupFeeDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newScope() academic.Scope {
	return academic.Scope{TenantID: uuid.New(), SessionID: uuid.New()}
}

func tuitionDue(scope academic.Scope, studentID uuid.UUID, period string) *fee.StudentDue {
	return fee.NewStudentDue(scope, studentID, "5", period, fee.Breakdown{
		{Component: "Tuition", Amount: decimal.NewFromInt(1000)},
	})
}

func TestGormDueRepository_InsertIfAbsent(t *testing.T) {
	db := setupFeeDB(t)
	repo := NewGormDueRepository(db)
	ctx := context.Background()
	scope := newScope()
	studentID := uuid.New()

	inserted, err := repo.InsertIfAbsent(ctx, tuitionDue(scope, studentID, "March 2026"))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.InsertIfAbsent(ctx, tuitionDue(scope, studentID, "March 2026"))
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := repo.FindOne(ctx, scope, studentID, "March 2026")
	require.NoError(t, err)
	assert.True(t, got.Total.Equal(decimal.NewFromInt(1000)))
	require.Len(t, got.Breakdown, 1)
	assert.Equal(t, "Tuition", got.Breakdown[0].Component)
}

func TestGormDueRepository_MarkSettledOnlyOnce(t *testing.T) {
	db := setupFeeDB(t)
	repo := NewGormDueRepository(db)
	ctx := context.Background()
	scope := newScope()
	due := tuitionDue(scope, uuid.New(), "March 2026")
	require.NoError(t, repo.CreateInBatches(ctx, []*fee.StudentDue{due}))

	first, err := fee.NewCounterSettlement("Front desk", time.Now())
	require.NoError(t, err)
	require.NoError(t, due.Settle(first))
	changed, err := repo.MarkSettled(ctx, due)
	require.NoError(t, err)
	assert.True(t, changed)

	// a second writer holding a stale unpaid copy loses
	stale := tuitionDue(scope, due.StudentID, due.Period)
	stale.ID = due.ID
	second, err := fee.NewCounterSettlement("Someone else", time.Now())
	require.NoError(t, err)
	require.NoError(t, stale.Settle(second))
	changed, err = repo.MarkSettled(ctx, stale)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := repo.FindOne(ctx, scope, due.StudentID, due.Period)
	require.NoError(t, err)
	assert.Equal(t, fee.StatusPaid, got.Status)
	assert.Equal(t, first.Reference, got.PaymentReference)
	assert.Equal(t, "Front desk", got.CollectedBy)
}

func TestGormDueRepository_DeleteUnpaidKeepsPaid(t *testing.T) {
	db := setupFeeDB(t)
	repo := NewGormDueRepository(db)
	ctx := context.Background()
	scope := newScope()

	paid := tuitionDue(scope, uuid.New(), "April 2026")
	unpaid := tuitionDue(scope, uuid.New(), "April 2026")
	require.NoError(t, repo.CreateInBatches(ctx, []*fee.StudentDue{paid, unpaid}))
	s, err := fee.NewGatewaySettlement("TXN-1", time.Now())
	require.NoError(t, err)
	require.NoError(t, paid.Settle(s))
	_, err = repo.MarkSettled(ctx, paid)
	require.NoError(t, err)

	removed, err := repo.DeleteUnpaid(ctx, scope, "April 2026")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	left, err := repo.FindByPeriod(ctx, scope, "April 2026")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, paid.ID, left[0].ID)
}

func TestGormDueRepository_ScopeIsolation(t *testing.T) {
	db := setupFeeDB(t)
	repo := NewGormDueRepository(db)
	ctx := context.Background()
	scope := newScope()
	studentID := uuid.New()
	require.NoError(t, repo.CreateInBatches(ctx, []*fee.StudentDue{tuitionDue(scope, studentID, "May 2026")}))

	other := academic.Scope{TenantID: scope.TenantID, SessionID: uuid.New()}
	_, err := repo.FindOne(ctx, other, studentID, "May 2026")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = repo.FindOne(ctx, academic.Scope{}, studentID, "May 2026")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormChargeRepository_SettleUnpaid(t *testing.T) {
	db := setupFeeDB(t)
	repo := NewGormChargeRepository(db)
	ctx := context.Background()
	scope := newScope()
	studentA, studentB := uuid.New(), uuid.New()

	batchID, charges, err := fee.NewChargeBatch(scope, "March 2026", []uuid.UUID{studentA, studentB}, []fee.ChargeSpec{
		{Name: "Picnic", Amount: decimal.NewFromInt(150)},
		{Name: "Lab Kit", Amount: decimal.NewFromInt(75)},
	})
	require.NoError(t, err)
	require.Len(t, charges, 4)
	require.NoError(t, repo.CreateInBatches(ctx, charges))

	s, err := fee.NewCounterSettlement("Office", time.Now())
	require.NoError(t, err)
	n, err := repo.SettleUnpaid(ctx, scope, batchID, studentA, s)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.SettleUnpaid(ctx, scope, batchID, studentA, s)
	require.NoError(t, err)
	assert.Zero(t, n)

	rows, err := repo.FindByBatch(ctx, scope, batchID)
	require.NoError(t, err)
	paid := 0
	for _, c := range rows {
		if c.IsPaid() {
			paid++
			assert.Equal(t, studentA, c.StudentID)
			assert.Equal(t, s.Reference, c.PaymentReference)
		}
	}
	assert.Equal(t, 2, paid)

	_, err = repo.FindByID(ctx, scope, uuid.New())
	assert.ErrorIs(t, err, fee.ErrChargeNotFound)
}

func TestGormPaymentOrderRepository_MarkPaidOnce(t *testing.T) {
	db := setupFeeDB(t)
	repo := NewGormPaymentOrderRepository(db)
	ctx := context.Background()
	scope := newScope()

	order, err := fee.NewPaymentOrder(scope, fee.PaymentTarget{
		Kind:      fee.OrderKindDue,
		StudentID: uuid.New(),
		Period:    "March 2026",
	}, decimal.NewFromInt(1000))
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, order))

	_, err = order.MarkPaid("TXN-9", time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.MarkPaid(ctx, order))
	assert.ErrorIs(t, repo.MarkPaid(ctx, order), fee.ErrAlreadySettled)

	got, err := repo.FindByRef(ctx, scope.TenantID, order.OrderRef)
	require.NoError(t, err)
	assert.Equal(t, fee.OrderStatusPaid, got.Status)
	assert.Equal(t, "TXN-9", got.TransactionRef)

	_, err = repo.FindByRef(ctx, uuid.New(), order.OrderRef)
	assert.ErrorIs(t, err, fee.ErrOrderNotFound)
}

func TestGormScheduleRepository_VersionGuard(t *testing.T) {
	db := setupFeeDB(t)
	repo := NewGormScheduleRepository(db)
	ctx := context.Background()
	scope := newScope()
	rates := fee.ClassRateTable{"5": {{Component: "Tuition", Amount: decimal.NewFromInt(1000)}}}

	schedule, err := fee.NewFeeSchedule(scope, "March 2026", []string{"Tuition"}, rates)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, schedule))

	dup, err := fee.NewFeeSchedule(scope, "March 2026", []string{"Tuition"}, rates)
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Save(ctx, dup), fee.ErrScheduleConflict)

	stored, err := repo.FindByPeriod(ctx, scope, "March 2026")
	require.NoError(t, err)
	require.NoError(t, stored.Revise([]string{"Tuition"}, fee.ClassRateTable{
		"5": {{Component: "Tuition", Amount: decimal.NewFromInt(1100)}},
	}))
	require.NoError(t, repo.Save(ctx, stored))

	stale, err := repo.FindByPeriod(ctx, scope, "March 2026")
	require.NoError(t, err)
	stale.Version = 1
	require.NoError(t, stale.Revise([]string{"Tuition"}, rates))
	assert.ErrorIs(t, repo.Save(ctx, stale), fee.ErrScheduleConflict)
}

func TestGormTransactionScope_EventsCommitWithState(t *testing.T) {
	db := setupFeeDB(t)
	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	scope := NewGormTransactionScope(db, event.NewOutboxPublisher(serializer))
	ctx := context.Background()
	feeScope := newScope()

	due := tuitionDue(feeScope, uuid.New(), "March 2026")
	err := scope.Execute(ctx, func(repos appfee.Repositories) error {
		if err := repos.Dues().CreateInBatches(ctx, []*fee.StudentDue{due}); err != nil {
			return err
		}
		s, err := fee.NewCounterSettlement("Office", time.Now())
		if err != nil {
			return err
		}
		if err := due.Settle(s); err != nil {
			return err
		}
		if _, err := repos.Dues().MarkSettled(ctx, due); err != nil {
			return err
		}
		return repos.Events().Publish(ctx, due.GetDomainEvents()...)
	})
	require.NoError(t, err)

	var outbox int64
	require.NoError(t, db.Model(&models.OutboxEntryModel{}).Count(&outbox).Error)
	assert.Equal(t, int64(1), outbox)

	boom := errors.New("boom")
	err = scope.Execute(ctx, func(repos appfee.Repositories) error {
		other := tuitionDue(feeScope, uuid.New(), "March 2026")
		if err := repos.Dues().CreateInBatches(ctx, []*fee.StudentDue{other}); err != nil {
			return err
		}
		if err := repos.Events().Publish(ctx, fee.NewDueSettledEvent(other)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	dues, err := NewRepositories(db, nil).Dues().FindByPeriod(ctx, feeScope, "March 2026")
	require.NoError(t, err)
	assert.Len(t, dues, 1)
	require.NoError(t, db.Model(&models.OutboxEntryModel{}).Count(&outbox).Error)
	assert.Equal(t, int64(1), outbox)
}
