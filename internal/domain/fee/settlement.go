package fee

import (
	"strings"
	"time"

	"github.com/feeledger/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// PaymentStatus is the settlement state of a due or charge. The only
// transition is UNPAID to PAID.
type PaymentStatus string

const (
	StatusUnpaid PaymentStatus = "UNPAID"
	StatusPaid   PaymentStatus = "PAID"
)

// SettlementChannel tells how money was received
type SettlementChannel string

const (
	ChannelGateway SettlementChannel = "GATEWAY"
	ChannelCounter SettlementChannel = "COUNTER"
)

// CounterReferencePrefix marks references generated for manual collections
const CounterReferencePrefix = "COUNTER_"

// Settlement carries what gets stamped onto a record when it is paid
type Settlement struct {
	Reference   string
	Channel     SettlementChannel
	CollectedBy string
	SettledAt   time.Time
}

// NewCounterReference generates a local reference for a counter collection
func NewCounterReference(at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return CounterReferencePrefix + at.UTC().Format("20060102150405") + "_" + strings.ToUpper(suffix)
}

// NewCounterSettlement builds a manual settlement. collector is free text
// naming who took the money.
func NewCounterSettlement(collector string, at time.Time) (Settlement, error) {
	collector = strings.TrimSpace(collector)
	if collector == "" {
		return Settlement{}, shared.NewValidationError("COLLECTOR_REQUIRED", "Collector name is required for counter settlement")
	}
	if len(collector) > 200 {
		return Settlement{}, shared.NewValidationError("COLLECTOR_TOO_LONG", "Collector name cannot exceed 200 characters")
	}
	return Settlement{
		Reference:   NewCounterReference(at),
		Channel:     ChannelCounter,
		CollectedBy: collector,
		SettledAt:   at,
	}, nil
}

// NewGatewaySettlement builds a settlement for a verified gateway transaction
func NewGatewaySettlement(transactionRef string, at time.Time) (Settlement, error) {
	transactionRef = strings.TrimSpace(transactionRef)
	if transactionRef == "" {
		return Settlement{}, shared.NewValidationError("TRANSACTION_REF_REQUIRED", "Gateway transaction reference is required")
	}
	return Settlement{
		Reference:   transactionRef,
		Channel:     ChannelGateway,
		CollectedBy: "gateway",
		SettledAt:   at,
	}, nil
}
