package event

import (
	"github.com/feeledger/backend/internal/domain/fee"
)

// RegisterAllEvents registers every domain event type with the serializer so
// the outbox processor can rebuild events from stored payloads.
func RegisterAllEvents(serializer *EventSerializer) {
	serializer.Register(fee.EventTypeSchedulePublished, &fee.SchedulePublishedEvent{})
	serializer.Register(fee.EventTypeDueSettled, &fee.DueSettledEvent{})
	serializer.Register(fee.EventTypeChargeSettled, &fee.ChargeSettledEvent{})
	serializer.Register(fee.EventTypeReceiptRequested, &fee.ReceiptRequestedEvent{})
}
