package fee

import (
	"context"

	"github.com/feeledger/backend/internal/domain/academic"
	"github.com/feeledger/backend/internal/domain/fee"
	"github.com/feeledger/backend/internal/domain/shared"
)

// TransactionScope provides transactional access to the fee repositories.
// Every repository handed to fn shares one database transaction, committed
// when fn returns nil and rolled back otherwise.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos Repositories) error) error
}

// RosterRepository is the roster as the fee engine uses it: read access plus
// session purge.
type RosterRepository interface {
	academic.RosterProvider
	academic.RosterWriter
	PurgeSession(ctx context.Context, scope academic.Scope) (int64, error)
}

// Repositories gives access to every store the fee engine touches. Outside a
// transaction the same interface is bound to the plain connection and is
// used for reads.
//
// Events publishes into the transactional outbox, so events raised inside
// Execute commit together with the state change.
type Repositories interface {
	Tenants() academic.TenantRepository
	Sessions() academic.SessionRepository
	Roster() RosterRepository
	Schedules() fee.ScheduleRepository
	Dues() fee.DueRepository
	Charges() fee.ChargeRepository
	Orders() fee.PaymentOrderRepository
	Events() shared.EventPublisher
}
