package persistence

import (
	"context"

	appfee "github.com/feeledger/backend/internal/application/fee"
	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/feeledger/backend/internal/domain/fee"
	"github.com/feeledger/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormTransactionScope implements appfee.TransactionScope using GORM
// transactions. Events published through the scoped repositories land in
// the outbox table of the same transaction.
type GormTransactionScope struct {
	db        *gorm.DB
	publisher shared.TxEventPublisher
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB, publisher shared.TxEventPublisher) *GormTransactionScope {
	return &GormTransactionScope{db: db, publisher: publisher}
}

// Execute runs fn within a database transaction. An error from fn rolls
// the transaction back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appfee.Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx, s.publisher))
	})
}

// NewRepositories binds every fee repository to db. Passed a transaction
// handle, all of them share it.
func NewRepositories(db *gorm.DB, publisher shared.TxEventPublisher) appfee.Repositories {
	return &gormRepositories{db: db, publisher: publisher}
}

type gormRepositories struct {
	db        *gorm.DB
	publisher shared.TxEventPublisher
}

func (r *gormRepositories) Tenants() academic.TenantRepository {
	return NewGormTenantRepository(r.db)
}

func (r *gormRepositories) Sessions() academic.SessionRepository {
	return NewGormSessionRepository(r.db)
}

func (r *gormRepositories) Roster() appfee.RosterRepository {
	return NewGormRosterRepository(r.db)
}

func (r *gormRepositories) Schedules() fee.ScheduleRepository {
	return NewGormScheduleRepository(r.db)
}

func (r *gormRepositories) Dues() fee.DueRepository {
	return NewGormDueRepository(r.db)
}

func (r *gormRepositories) Charges() fee.ChargeRepository {
	return NewGormChargeRepository(r.db)
}

func (r *gormRepositories) Orders() fee.PaymentOrderRepository {
	return NewGormPaymentOrderRepository(r.db)
}

func (r *gormRepositories) Events() shared.EventPublisher {
	return &outboxSink{db: r.db, publisher: r.publisher}
}

// outboxSink adapts the transactional publisher to shared.EventPublisher
type outboxSink struct {
	db        *gorm.DB
	publisher shared.TxEventPublisher
}

func (s *outboxSink) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if s.publisher == nil || len(events) == 0 {
		return nil
	}
	return s.publisher.PublishWithTx(ctx, s.db.WithContext(ctx), events...)
}

var (
	_ appfee.TransactionScope = (*GormTransactionScope)(nil)
	_ appfee.Repositories     = (*gormRepositories)(nil)
)
