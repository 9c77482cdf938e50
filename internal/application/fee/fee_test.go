package fee_test

import (
	"context"
	"strings"
	"testing"

	appfee "github.com/feeledger/backend/internal/application/fee"
	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/feeledger/backend/internal/domain/fee"
	"github.com/feeledger/backend/internal/infrastructure/event"
	"github.com/feeledger/backend/internal/infrastructure/payment"
	"github.com/feeledger/backend/internal/infrastructure/persistence"
	"github.com/feeledger/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	march         = "March 2026"
	gatewaySecret = "test-gateway-secret"
)

// ledger wires every fee service over an in-memory database
type ledger struct {
	db         *gorm.DB
	repos      appfee.Repositories
	resolver   *appfee.SessionResolver
	sessions   *appfee.SessionService
	schedules  *appfee.ScheduleService
	dues       *appfee.DueService
	charges    *appfee.ChargeService
	orders     *appfee.PaymentOrderService
	settlement *appfee.SettlementService
	reports    *appfee.ReportService
	verifier   *payment.HMACVerifier
	tenant     *academic.Tenant
	scope      academic.Scope
}

func newLedger(t *testing.T) *ledger {
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

	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	publisher := event.NewOutboxPublisher(serializer)
	repos := persistence.NewRepositories(db, publisher)
	tx := persistence.NewGormTransactionScope(db, publisher)

	verifier, err := payment.NewHMACVerifier(gatewaySecret)
	require.NoError(t, err)

	l := &ledger{
		db:         db,
		repos:      repos,
		resolver:   appfee.NewSessionResolver(repos, nil),
		sessions:   appfee.NewSessionService(repos, tx, nil),
		schedules:  appfee.NewScheduleService(repos, tx, nil),
		dues:       appfee.NewDueService(repos, nil),
		charges:    appfee.NewChargeService(repos, tx, nil),
		orders:     appfee.NewPaymentOrderService(repos, tx, nil, nil),
		settlement: appfee.NewSettlementService(repos, tx, verifier, nil),
		reports:    appfee.NewReportService(repos, nil),
		verifier:   verifier,
	}

	ctx := context.Background()
	l.tenant, err = l.sessions.RegisterTenant(ctx, "greenfield", "Greenfield School")
	require.NoError(t, err)
	session, err := l.sessions.CreateSession(ctx, l.tenant.ID, appfee.CreateSessionInput{Name: "2025-2026"})
	require.NoError(t, err)
	l.scope = session.Scope()
	return l
}

func (l *ledger) enroll(t *testing.T, name, class string, transport bool) academic.Student {
	t.Helper()
	st := academic.Student{
		TenantID:     l.scope.TenantID,
		SessionID:    l.scope.SessionID,
		Name:         name,
		Class:        class,
		Active:       true,
		OptIns:       academic.OptInFlags{Transport: transport},
		ContactEmail: strings.ToLower(name) + "@example.com",
	}
	require.NoError(t, l.repos.Roster().Enroll(context.Background(), &st))
	return st
}

func (l *ledger) publish(t *testing.T, period string, tuition, transport int64) *appfee.PublishResult {
	t.Helper()
	res, err := l.schedules.Publish(context.Background(), l.scope, appfee.PublishScheduleInput{
		Period:     period,
		Components: []string{"Tuition", "Transport"},
		Rates: map[string]map[string]decimal.Decimal{
			"5": {"Tuition": decimal.NewFromInt(tuition), "Transport": decimal.NewFromInt(transport)},
		},
	})
	require.NoError(t, err)
	return res
}

func (l *ledger) outboxCount(t *testing.T, eventType string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, l.db.Model(&models.OutboxEntryModel{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestSessionResolver(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	t.Run("follows the current session pointer", func(t *testing.T) {
		scope, err := l.resolver.Resolve(ctx, l.tenant.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, l.scope, scope)
	})

	t.Run("accepts an override of the same tenant", func(t *testing.T) {
		old, err := l.sessions.CreateSession(ctx, l.tenant.ID, appfee.CreateSessionInput{Name: "2024-2025"})
		require.NoError(t, err)
		scope, err := l.resolver.Resolve(ctx, l.tenant.ID, &old.ID)
		require.NoError(t, err)
		assert.Equal(t, old.ID, scope.SessionID)
	})

	t.Run("rejects a foreign override", func(t *testing.T) {
		other, err := l.sessions.RegisterTenant(ctx, "riverside", "Riverside School")
		require.NoError(t, err)
		foreign, err := l.sessions.CreateSession(ctx, other.ID, appfee.CreateSessionInput{Name: "2025-2026"})
		require.NoError(t, err)

		_, err = l.resolver.Resolve(ctx, l.tenant.ID, &foreign.ID)
		assert.ErrorIs(t, err, academic.ErrForeignSession)
	})

	t.Run("unknown tenant has no active session", func(t *testing.T) {
		_, err := l.resolver.Resolve(ctx, uuid.New(), nil)
		assert.ErrorIs(t, err, academic.ErrNoActiveSession)
	})
}

func TestSessionService_ActivateMovesPointer(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	next, err := l.sessions.CreateSession(ctx, l.tenant.ID, appfee.CreateSessionInput{Name: "2026-2027"})
	require.NoError(t, err)
	assert.False(t, next.Active)

	_, err = l.sessions.ActivateSession(ctx, l.tenant.ID, next.ID)
	require.NoError(t, err)

	scope, err := l.resolver.Resolve(ctx, l.tenant.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, next.ID, scope.SessionID)

	all, err := l.sessions.ListSessions(ctx, l.tenant.ID)
	require.NoError(t, err)
	active := 0
	for _, s := range all {
		if s.Active {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestSessionService_DeleteSession(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	_, err := l.sessions.DeleteSession(ctx, l.tenant.ID, l.scope.SessionID)
	assert.ErrorIs(t, err, academic.ErrActiveSessionDelete)

	// populate the current session, then rotate to a new one
	l.enroll(t, "Asha", "5", false)
	l.publish(t, march, 1000, 300)
	next, err := l.sessions.CreateSession(ctx, l.tenant.ID, appfee.CreateSessionInput{Name: "2026-2027", Activate: true})
	require.NoError(t, err)

	counts, err := l.sessions.DeleteSession(ctx, l.tenant.ID, l.scope.SessionID)
	require.NoError(t, err)
	byEntity := map[string]int64{}
	for _, c := range counts {
		byEntity[c.Entity] = c.Deleted
	}
	assert.Equal(t, int64(1), byEntity["student_dues"])
	assert.Equal(t, int64(1), byEntity["fee_schedules"])
	assert.Equal(t, int64(1), byEntity["students"])
	assert.Equal(t, int64(1), byEntity["academic_sessions"])
	assert.Equal(t, "academic_sessions", counts[len(counts)-1].Entity)

	var left int64
	require.NoError(t, l.db.Model(&models.StudentDueModel{}).Where("session_id = ?", l.scope.SessionID).Count(&left).Error)
	assert.Zero(t, left)

	scope, err := l.resolver.Resolve(ctx, l.tenant.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, next.ID, scope.SessionID)
}

func TestScheduleService_PublishAndRepublish(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	asha := l.enroll(t, "Asha", "5", false)
	ben := l.enroll(t, "Ben", "5", true)
	l.enroll(t, "Cara", "9", false)

	first := l.publish(t, march, 1000, 300)
	assert.False(t, first.Revised)
	assert.Equal(t, 2, first.Republish.Created)
	assert.Equal(t, 1, first.Republish.SkippedNoClass)

	due, err := l.dues.ReadDue(ctx, l.scope, ben.ID, march)
	require.NoError(t, err)
	view := fee.Normalize(due)
	assert.False(t, view.IsVirtual)
	assert.True(t, view.Total.Equal(dec(1300)), "transport opt-in adds the component")

	_, err = l.settlement.SettleDueManually(ctx, l.scope, appfee.SettleDueInput{StudentID: asha.ID, Period: march, CollectedBy: "Office"})
	require.NoError(t, err)

	second := l.publish(t, march, 1100, 300)
	assert.True(t, second.Revised)
	assert.Equal(t, int64(1), second.Republish.Deleted)
	assert.Equal(t, 1, second.Republish.Created)
	assert.Equal(t, 1, second.Republish.KeptPaid)

	paid, err := l.dues.ReadDue(ctx, l.scope, asha.ID, march)
	require.NoError(t, err)
	assert.True(t, fee.Normalize(paid).Total.Equal(dec(1000)), "paid due keeps its amount")

	repriced, err := l.dues.ReadDue(ctx, l.scope, ben.ID, march)
	require.NoError(t, err)
	assert.True(t, fee.Normalize(repriced).Total.Equal(dec(1400)))

	schedule, err := l.schedules.GetSchedule(ctx, l.scope, march)
	require.NoError(t, err)
	assert.Equal(t, 2, schedule.GetVersion())
	assert.Equal(t, int64(2), l.outboxCount(t, fee.EventTypeSchedulePublished))

	_, err = l.schedules.GetSchedule(ctx, l.scope, "April 2026")
	assert.ErrorIs(t, err, fee.ErrScheduleNotFound)
}

func TestScheduleService_RepublishIsIdempotent(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	l.enroll(t, "Asha", "5", false)
	l.enroll(t, "Ben", "5", true)
	l.publish(t, march, 1000, 300)

	type dueRow struct {
		breakdown string
		total     string
		status    fee.PaymentStatus
	}
	snapshot := func() map[uuid.UUID]dueRow {
		dues, err := l.repos.Dues().FindByPeriod(ctx, l.scope, march)
		require.NoError(t, err)
		rows := make(map[uuid.UUID]dueRow, len(dues))
		for _, d := range dues {
			rows[d.StudentID] = dueRow{breakdown: d.Breakdown.String(), total: d.Total.String(), status: d.Status}
		}
		return rows
	}

	before := snapshot()
	require.Len(t, before, 2)

	first, err := l.schedules.Republish(ctx, l.scope, march)
	require.NoError(t, err)
	afterFirst := snapshot()
	second, err := l.schedules.Republish(ctx, l.scope, march)
	require.NoError(t, err)
	afterSecond := snapshot()

	assert.Equal(t, first, second)
	assert.Equal(t, before, afterFirst)
	assert.Equal(t, afterFirst, afterSecond)
}

func TestDueService_VirtualBeforePublish(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	st := l.enroll(t, "Asha", "5", false)

	due, err := l.dues.ReadDue(ctx, l.scope, st.ID, march)
	require.NoError(t, err)
	view := fee.Normalize(due)
	assert.True(t, view.IsVirtual)
	assert.True(t, view.Total.IsZero())

	dev := l.enroll(t, "Dev", "5", false)
	l.publish(t, march, 1000, 300)
	l.enroll(t, "Eli", "5", false)

	views, err := l.dues.ReadClassDues(ctx, l.scope, "5", march)
	require.NoError(t, err)
	require.Len(t, views, 3)
	virtual := 0
	for _, v := range views {
		assert.True(t, v.Total.Equal(dec(1000)))
		if v.IsVirtual {
			virtual++
		}
	}
	assert.Equal(t, 1, virtual, "only the student enrolled after publish is virtual")

	stored, err := l.dues.ReadDue(ctx, l.scope, dev.ID, march)
	require.NoError(t, err)
	assert.IsType(t, fee.MaterializedDue{}, stored)
	_, err = l.dues.ReadDue(ctx, l.scope, uuid.New(), march)
	assert.ErrorIs(t, err, academic.ErrUnknownStudent)
}

func TestSettlement_DueIsSettledOnce(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	st := l.enroll(t, "Asha", "5", false)
	l.publish(t, march, 1000, 300)

	in := appfee.SettleDueInput{StudentID: st.ID, Period: march, CollectedBy: "Front desk"}
	res, err := l.settlement.SettleDueManually(ctx, l.scope, in)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Reference, fee.CounterReferencePrefix))
	assert.Equal(t, fee.ChannelCounter, res.Channel)
	assert.True(t, res.Amount.Equal(dec(1000)))

	_, err = l.settlement.SettleDueManually(ctx, l.scope, in)
	assert.ErrorIs(t, err, fee.ErrAlreadySettled)

	assert.Equal(t, int64(1), l.outboxCount(t, fee.EventTypeReceiptRequested))
	assert.Equal(t, int64(1), l.outboxCount(t, fee.EventTypeDueSettled))

	_, err = l.settlement.SettleDueManually(ctx, l.scope, appfee.SettleDueInput{StudentID: st.ID, Period: march})
	assert.Error(t, err, "collector is required")
}

func TestSettlement_MaterializesVirtualDue(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	l.publish(t, march, 1000, 300)
	late := l.enroll(t, "Dev", "5", true)

	res, err := l.settlement.SettleDueManually(ctx, l.scope, appfee.SettleDueInput{StudentID: late.ID, Period: march, CollectedBy: "Office"})
	require.NoError(t, err)
	assert.True(t, res.Amount.Equal(dec(1300)))

	due, err := l.dues.ReadDue(ctx, l.scope, late.ID, march)
	require.NoError(t, err)
	view := fee.Normalize(due)
	assert.False(t, view.IsVirtual)
	assert.True(t, view.IsPaid())

	_, err = l.settlement.SettleDueManually(ctx, l.scope, appfee.SettleDueInput{StudentID: late.ID, Period: "June 2026", CollectedBy: "Office"})
	assert.ErrorIs(t, err, fee.ErrScheduleNotFound)
}

func TestSettlement_BatchShare(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	a := l.enroll(t, "Asha", "5", false)
	b := l.enroll(t, "Ben", "5", false)

	batch, err := l.charges.ApplyBatch(ctx, l.scope, appfee.ApplyBatchInput{
		Period:     march,
		StudentIDs: []uuid.UUID{a.ID, b.ID},
		Charges: []fee.ChargeSpec{
			{Name: "Picnic", Amount: dec(150)},
			{Name: "Lab Kit", Amount: dec(75)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, batch.ItemCount)
	assert.Equal(t, 2, batch.StudentCount)

	res, err := l.settlement.SettleBatchForStudent(ctx, l.scope, appfee.SettleBatchInput{BatchID: batch.BatchID, StudentID: a.ID, CollectedBy: "Office"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.RecordsSettled)
	assert.True(t, res.Amount.Equal(dec(225)))

	_, err = l.settlement.SettleBatchForStudent(ctx, l.scope, appfee.SettleBatchInput{BatchID: batch.BatchID, StudentID: a.ID, CollectedBy: "Office"})
	assert.ErrorIs(t, err, fee.ErrAlreadySettled)
	assert.Equal(t, int64(1), l.outboxCount(t, fee.EventTypeReceiptRequested))
	assert.Equal(t, int64(2), l.outboxCount(t, fee.EventTypeChargeSettled))

	detail, err := l.charges.Detail(ctx, l.scope, batch.BatchID)
	require.NoError(t, err)
	assert.True(t, detail.Summary.Collected.Equal(dec(225)))
	assert.True(t, detail.Summary.Expected.Equal(dec(450)))
	assert.False(t, detail.Summary.FullySettled)

	history, err := l.charges.History(ctx, l.scope, march)
	require.NoError(t, err)
	require.Len(t, history, 1)

	_, err = l.charges.Detail(ctx, l.scope, uuid.New())
	assert.ErrorIs(t, err, fee.ErrBatchNotFound)

	_, err = l.charges.ApplyBatch(ctx, l.scope, appfee.ApplyBatchInput{
		Period:     march,
		StudentIDs: []uuid.UUID{uuid.New()},
		Charges:    []fee.ChargeSpec{{Name: "Picnic", Amount: dec(150)}},
	})
	assert.ErrorIs(t, err, academic.ErrUnknownStudent)
}

func TestSettlement_SingleCharge(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	a := l.enroll(t, "Asha", "5", false)

	batch, err := l.charges.ApplyBatch(ctx, l.scope, appfee.ApplyBatchInput{
		Period:     march,
		StudentIDs: []uuid.UUID{a.ID},
		Charges:    []fee.ChargeSpec{{Name: "Picnic", Amount: dec(150)}},
	})
	require.NoError(t, err)
	detail, err := l.charges.Detail(ctx, l.scope, batch.BatchID)
	require.NoError(t, err)
	require.Len(t, detail.Lines, 1)

	items, err := l.repos.Charges().FindByBatch(ctx, l.scope, batch.BatchID)
	require.NoError(t, err)
	require.Len(t, items, 1)

	res, err := l.settlement.SettleCharge(ctx, l.scope, items[0].ID, "Office")
	require.NoError(t, err)
	assert.Equal(t, 1, res.RecordsSettled)

	_, err = l.settlement.SettleCharge(ctx, l.scope, items[0].ID, "Office")
	assert.ErrorIs(t, err, fee.ErrAlreadySettled)
	_, err = l.settlement.SettleCharge(ctx, l.scope, uuid.New(), "Office")
	assert.ErrorIs(t, err, fee.ErrChargeNotFound)
}

func TestSettlement_Gateway(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	st := l.enroll(t, "Asha", "5", false)
	l.publish(t, march, 1000, 300)

	order, err := l.orders.CreateOrder(ctx, l.scope, appfee.CreateOrderInput{Kind: fee.OrderKindDue, StudentID: st.ID, Period: march})
	require.NoError(t, err)
	assert.True(t, order.Amount.Equal(dec(1000)))
	assert.True(t, strings.HasPrefix(order.OrderRef, "FEE-"))

	t.Run("bad signature is rejected before anything changes", func(t *testing.T) {
		_, err := l.settlement.SettleByGateway(ctx, l.tenant.ID, appfee.GatewayConfirmation{
			OrderRef: order.OrderRef, TransactionRef: "TXN-1", Signature: strings.Repeat("0", 64),
		})
		assert.ErrorIs(t, err, fee.ErrInvalidSignature)
		due, err := l.dues.ReadDue(ctx, l.scope, st.ID, march)
		require.NoError(t, err)
		assert.False(t, fee.Normalize(due).IsPaid())
	})

	conf := appfee.GatewayConfirmation{
		OrderRef:       order.OrderRef,
		TransactionRef: "TXN-1",
		Signature:      l.verifier.Sign(order.OrderRef, "TXN-1"),
		Amount:         dec(1000),
	}

	t.Run("verified confirmation settles the due", func(t *testing.T) {
		res, err := l.settlement.SettleByGateway(ctx, l.tenant.ID, conf)
		require.NoError(t, err)
		assert.False(t, res.AlreadyProcessed)
		assert.Equal(t, "TXN-1", res.Reference)
		assert.Equal(t, fee.ChannelGateway, res.Channel)

		stored, err := l.orders.GetOrder(ctx, l.tenant.ID, order.OrderRef)
		require.NoError(t, err)
		assert.Equal(t, fee.OrderStatusPaid, stored.Status)
	})

	t.Run("replay is a no-op", func(t *testing.T) {
		res, err := l.settlement.SettleByGateway(ctx, l.tenant.ID, conf)
		require.NoError(t, err)
		assert.True(t, res.AlreadyProcessed)
		assert.Equal(t, int64(1), l.outboxCount(t, fee.EventTypeReceiptRequested))
	})

	t.Run("a different transaction on a paid order conflicts", func(t *testing.T) {
		_, err := l.settlement.SettleByGateway(ctx, l.tenant.ID, appfee.GatewayConfirmation{
			OrderRef: order.OrderRef, TransactionRef: "TXN-2", Signature: l.verifier.Sign(order.OrderRef, "TXN-2"),
		})
		assert.ErrorIs(t, err, fee.ErrAlreadySettled)
	})

	t.Run("no order for a paid due", func(t *testing.T) {
		_, err := l.orders.CreateOrder(ctx, l.scope, appfee.CreateOrderInput{Kind: fee.OrderKindDue, StudentID: st.ID, Period: march})
		assert.ErrorIs(t, err, fee.ErrAlreadySettled)
	})
}

func TestSettlement_GatewayBatchOrder(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	st := l.enroll(t, "Asha", "5", false)
	batch, err := l.charges.ApplyBatch(ctx, l.scope, appfee.ApplyBatchInput{
		Period:     march,
		StudentIDs: []uuid.UUID{st.ID},
		Charges:    []fee.ChargeSpec{{Name: "Picnic", Amount: dec(150)}, {Name: "Lab Kit", Amount: dec(75)}},
	})
	require.NoError(t, err)

	order, err := l.orders.CreateOrder(ctx, l.scope, appfee.CreateOrderInput{Kind: fee.OrderKindBatch, StudentID: st.ID, BatchID: &batch.BatchID})
	require.NoError(t, err)
	assert.True(t, order.Amount.Equal(dec(225)))

	res, err := l.settlement.SettleByGateway(ctx, l.tenant.ID, appfee.GatewayConfirmation{
		OrderRef: order.OrderRef, TransactionRef: "TXN-B", Signature: l.verifier.Sign(order.OrderRef, "TXN-B"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.RecordsSettled)

	detail, err := l.charges.Detail(ctx, l.scope, batch.BatchID)
	require.NoError(t, err)
	assert.True(t, detail.Summary.FullySettled)
}

func TestSettlement_GatewayAmountMismatch(t *testing.T) {
	ctx := context.Background()
	confirm := func(l *ledger, order *fee.PaymentOrder, txn string, amount decimal.Decimal) error {
		_, err := l.settlement.SettleByGateway(ctx, l.tenant.ID, appfee.GatewayConfirmation{
			OrderRef:       order.OrderRef,
			TransactionRef: txn,
			Signature:      l.verifier.Sign(order.OrderRef, txn),
			Amount:         amount,
		})
		return err
	}
	assertOrderOpen := func(t *testing.T, l *ledger, order *fee.PaymentOrder) {
		t.Helper()
		stored, err := l.orders.GetOrder(ctx, l.tenant.ID, order.OrderRef)
		require.NoError(t, err)
		assert.Equal(t, fee.OrderStatusCreated, stored.Status)
		assert.Equal(t, int64(0), l.outboxCount(t, fee.EventTypeReceiptRequested))
	}

	t.Run("due repriced after the order was issued", func(t *testing.T) {
		l := newLedger(t)
		st := l.enroll(t, "Asha", "5", false)
		l.publish(t, march, 1000, 300)
		order, err := l.orders.CreateOrder(ctx, l.scope, appfee.CreateOrderInput{Kind: fee.OrderKindDue, StudentID: st.ID, Period: march})
		require.NoError(t, err)
		l.publish(t, march, 1500, 300)

		err = confirm(l, order, "TXN-1", dec(1000))
		assert.ErrorIs(t, err, fee.ErrAmountMismatch)

		due, err := l.dues.ReadDue(ctx, l.scope, st.ID, march)
		require.NoError(t, err)
		view := fee.Normalize(due)
		assert.False(t, view.IsPaid())
		assert.True(t, view.Total.Equal(dec(1500)))
		assertOrderOpen(t, l, order)

		rows, err := l.reports.Tracking(ctx, l.scope, march)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.True(t, rows[0].Collected.IsZero())
	})

	t.Run("gateway reports a different amount", func(t *testing.T) {
		l := newLedger(t)
		st := l.enroll(t, "Asha", "5", false)
		l.publish(t, march, 1000, 300)
		order, err := l.orders.CreateOrder(ctx, l.scope, appfee.CreateOrderInput{Kind: fee.OrderKindDue, StudentID: st.ID, Period: march})
		require.NoError(t, err)

		err = confirm(l, order, "TXN-1", dec(900))
		assert.ErrorIs(t, err, fee.ErrAmountMismatch)
		assertOrderOpen(t, l, order)

		due, err := l.dues.ReadDue(ctx, l.scope, st.ID, march)
		require.NoError(t, err)
		assert.False(t, fee.Normalize(due).IsPaid())
	})

	t.Run("batch share partly settled at the counter", func(t *testing.T) {
		l := newLedger(t)
		st := l.enroll(t, "Asha", "5", false)
		batch, err := l.charges.ApplyBatch(ctx, l.scope, appfee.ApplyBatchInput{
			Period:     march,
			StudentIDs: []uuid.UUID{st.ID},
			Charges:    []fee.ChargeSpec{{Name: "Picnic", Amount: dec(150)}, {Name: "Lab Kit", Amount: dec(75)}},
		})
		require.NoError(t, err)
		order, err := l.orders.CreateOrder(ctx, l.scope, appfee.CreateOrderInput{Kind: fee.OrderKindBatch, StudentID: st.ID, BatchID: &batch.BatchID})
		require.NoError(t, err)
		require.True(t, order.Amount.Equal(dec(225)))

		items, err := l.repos.Charges().FindByBatch(ctx, l.scope, batch.BatchID)
		require.NoError(t, err)
		var picnic uuid.UUID
		for _, item := range items {
			if item.FeeName == "Picnic" {
				picnic = item.ID
			}
		}
		_, err = l.settlement.SettleCharge(ctx, l.scope, picnic, "Office")
		require.NoError(t, err)
		receipts := l.outboxCount(t, fee.EventTypeReceiptRequested)

		err = confirm(l, order, "TXN-B", decimal.Zero)
		assert.ErrorIs(t, err, fee.ErrAmountMismatch)

		stored, err := l.orders.GetOrder(ctx, l.tenant.ID, order.OrderRef)
		require.NoError(t, err)
		assert.Equal(t, fee.OrderStatusCreated, stored.Status)
		assert.Equal(t, receipts, l.outboxCount(t, fee.EventTypeReceiptRequested))

		detail, err := l.charges.Detail(ctx, l.scope, batch.BatchID)
		require.NoError(t, err)
		assert.True(t, detail.Summary.Collected.Equal(dec(150)))
		assert.False(t, detail.Summary.FullySettled)
	})
}

type collectingDispatcher struct {
	sent []appfee.Notification
}

func (d *collectingDispatcher) Dispatch(_ context.Context, n appfee.Notification) error {
	d.sent = append(d.sent, n)
	return nil
}

func TestSettlement_StatusNotificationPerRecord(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	st := l.enroll(t, "Asha", "5", false)
	l.publish(t, march, 1000, 300)
	batch, err := l.charges.ApplyBatch(ctx, l.scope, appfee.ApplyBatchInput{
		Period:     march,
		StudentIDs: []uuid.UUID{st.ID},
		Charges:    []fee.ChargeSpec{{Name: "Picnic", Amount: dec(150)}, {Name: "Lab Kit", Amount: dec(75)}},
	})
	require.NoError(t, err)

	_, err = l.settlement.SettleBatchForStudent(ctx, l.scope, appfee.SettleBatchInput{BatchID: batch.BatchID, StudentID: st.ID, CollectedBy: "Office"})
	require.NoError(t, err)
	due, err := l.settlement.SettleDueManually(ctx, l.scope, appfee.SettleDueInput{StudentID: st.ID, Period: march, CollectedBy: "Office"})
	require.NoError(t, err)

	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	dispatcher := &collectingDispatcher{}
	handler := appfee.NewSettlementNotificationHandler(dispatcher, nil)

	var entries []models.OutboxEntryModel
	require.NoError(t, l.db.Where("event_type IN ?", handler.EventTypes()).Find(&entries).Error)
	for _, entry := range entries {
		ev, err := serializer.Deserialize(entry.EventType, entry.Payload)
		require.NoError(t, err)
		require.NoError(t, handler.Handle(ctx, ev))
	}

	statusByRecord := map[string]appfee.Notification{}
	for _, n := range dispatcher.sent {
		if n.Kind == appfee.KindStatusChanged {
			statusByRecord[n.Payload["record_id"].(string)] = n
		}
	}
	assert.Len(t, statusByRecord, 3, "one status change per settled due or charge")

	var dueNotes int
	for _, n := range statusByRecord {
		assert.Equal(t, string(fee.StatusPaid), n.Payload["status"])
		assert.Equal(t, st.ID.String(), n.Payload["student_id"])
		if n.Payload["record"] == "student_due" {
			dueNotes++
			assert.Equal(t, due.Reference, n.Payload["reference"])
			assert.Equal(t, "1000", n.Payload["amount"])
		}
	}
	assert.Equal(t, 1, dueNotes)
}

func TestReports(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	a := l.enroll(t, "Asha", "5", false)
	b := l.enroll(t, "Ben", "5", true)
	l.publish(t, march, 1000, 300)

	batch, err := l.charges.ApplyBatch(ctx, l.scope, appfee.ApplyBatchInput{
		Period:     march,
		StudentIDs: []uuid.UUID{a.ID},
		Charges:    []fee.ChargeSpec{{Name: "Picnic", Amount: dec(150)}},
	})
	require.NoError(t, err)
	_, err = l.settlement.SettleDueManually(ctx, l.scope, appfee.SettleDueInput{StudentID: a.ID, Period: march, CollectedBy: "Office"})
	require.NoError(t, err)

	t.Run("tracking", func(t *testing.T) {
		rows, err := l.reports.Tracking(ctx, l.scope, march)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 2, rows[0].Students)
		assert.Equal(t, 1, rows[0].PaidCount)
		assert.True(t, rows[0].Expected.Equal(dec(2300)))
		assert.True(t, rows[0].Collected.Equal(dec(1000)))
	})

	t.Run("defaulters", func(t *testing.T) {
		rows, err := l.reports.Defaulters(ctx, l.scope, march, nil)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		byStudent := map[uuid.UUID]appfee.Defaulter{}
		for _, r := range rows {
			byStudent[r.StudentID] = r
		}
		assert.Nil(t, byStudent[a.ID].MonthlyDue)
		assert.True(t, byStudent[a.ID].Outstanding.Equal(dec(150)))
		require.Len(t, byStudent[a.ID].UnpaidCharges, 1)
		assert.Equal(t, batch.BatchID, byStudent[a.ID].UnpaidCharges[0].BatchID)
		assert.True(t, byStudent[b.ID].Outstanding.Equal(dec(1300)))

		other := "7"
		rows, err = l.reports.Defaulters(ctx, l.scope, march, &other)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("student history", func(t *testing.T) {
		l.publish(t, "April 2026", 1000, 300)
		history, err := l.reports.StudentHistory(ctx, l.scope, a.ID)
		require.NoError(t, err)
		require.Len(t, history.Entries, 3)
		assert.Equal(t, "April 2026", history.Entries[0].Period)
		assert.True(t, history.TotalArrears.Equal(dec(1150)))

		_, err = l.reports.StudentHistory(ctx, l.scope, uuid.New())
		assert.ErrorIs(t, err, academic.ErrUnknownStudent)
	})

	t.Run("unresolved scope", func(t *testing.T) {
		_, err := l.reports.Tracking(ctx, academic.Scope{}, march)
		assert.ErrorIs(t, err, academic.ErrNoActiveSession)
	})
}

func TestReports_TrackingKeepsCollectionsWithPricedClass(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	asha := l.enroll(t, "Asha", "5", false)
	l.enroll(t, "Ben", "5", true)
	l.publish(t, march, 1000, 300)

	_, err := l.settlement.SettleDueManually(ctx, l.scope, appfee.SettleDueInput{StudentID: asha.ID, Period: march, CollectedBy: "Office"})
	require.NoError(t, err)
	require.NoError(t, l.db.Model(&models.StudentModel{}).Where("id = ?", asha.ID).Update("class", "6").Error)

	rows, err := l.reports.Tracking(ctx, l.scope, march)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "5", rows[0].Class)
	assert.Equal(t, 2, rows[0].Students)
	assert.Equal(t, 1, rows[0].PaidCount)
	assert.True(t, rows[0].Collected.Equal(dec(1000)))
	assert.True(t, rows[0].Expected.Equal(dec(2300)))
}

// A class 5 student without transport opt-in pays March 2026 at the counter
// and the collection report reflects it.
func TestMarchCounterCollection(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	st := l.enroll(t, "Asha", "5", false)
	l.publish(t, march, 1000, 300)

	due, err := l.dues.ReadDue(ctx, l.scope, st.ID, march)
	require.NoError(t, err)
	view := fee.Normalize(due)
	require.Len(t, view.Breakdown, 1)
	assert.Equal(t, "Tuition", view.Breakdown[0].Component)
	assert.True(t, view.Total.Equal(dec(1000)))

	res, err := l.settlement.SettleDueManually(ctx, l.scope, appfee.SettleDueInput{StudentID: st.ID, Period: march, CollectedBy: "Front desk"})
	require.NoError(t, err)
	assert.Regexp(t, `^COUNTER_\d{14}_[0-9A-F]{8}$`, res.Reference)

	rows, err := l.reports.Tracking(ctx, l.scope, march)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Expected.Equal(dec(1000)))
	assert.True(t, rows[0].Collected.Equal(dec(1000)))
}
