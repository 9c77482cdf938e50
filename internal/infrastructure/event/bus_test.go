package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/feeledger/backend/internal/domain/fee"
	"github.com/feeledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func receiptEvent(tenantID uuid.UUID) *fee.ReceiptRequestedEvent {
	student := fee.ReceiptStudent{ID: uuid.New(), Name: "Asha Rao", ContactEmail: "guardian@example.com"}
	settlement := fee.Settlement{
		Reference:   fee.NewCounterReference(time.Now()),
		Channel:     fee.ChannelCounter,
		CollectedBy: "office-1",
		SettledAt:   time.Now(),
	}
	return fee.NewReceiptRequestedEvent(tenantID, uuid.New(), student, settlement, []fee.ReceiptLine{
		{Description: "Tuition", Amount: decimal.NewFromInt(1000)},
	})
}

type recordingHandler struct {
	mu      sync.Mutex
	types   []string
	err     error
	panics  bool
	handled []shared.DomainEvent
}

func (h *recordingHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	if h.panics {
		panic("boom")
	}
	h.mu.Lock()
	h.handled = append(h.handled, event)
	h.mu.Unlock()
	return h.err
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func TestInMemoryEventBus_RoutesByEventType(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	receipts := &recordingHandler{types: []string{fee.EventTypeReceiptRequested}}
	schedules := &recordingHandler{types: []string{fee.EventTypeSchedulePublished}}
	bus.Subscribe(receipts)
	bus.Subscribe(schedules)

	require.NoError(t, bus.Publish(context.Background(), receiptEvent(uuid.New())))

	assert.Equal(t, 1, receipts.count())
	assert.Equal(t, 0, schedules.count())
}

func TestInMemoryEventBus_WildcardReceivesEverything(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	all := &recordingHandler{}
	bus.Subscribe(all)

	tenantID := uuid.New()
	require.NoError(t, bus.Publish(context.Background(), receiptEvent(tenantID), receiptEvent(tenantID)))

	assert.Equal(t, 2, all.count())
}

func TestInMemoryEventBus_FailingHandlerDoesNotBlockOthers(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	failing := &recordingHandler{types: []string{fee.EventTypeReceiptRequested}, err: errors.New("smtp down")}
	panicking := &recordingHandler{types: []string{fee.EventTypeReceiptRequested}, panics: true}
	ok := &recordingHandler{types: []string{fee.EventTypeReceiptRequested}}
	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(ok)

	err := bus.Publish(context.Background(), receiptEvent(uuid.New()))

	require.NoError(t, err)
	assert.Equal(t, 1, failing.count())
	assert.Equal(t, 1, ok.count())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	h := &recordingHandler{types: []string{fee.EventTypeReceiptRequested}}
	bus.Subscribe(h)
	bus.Unsubscribe(h)

	require.NoError(t, bus.Publish(context.Background(), receiptEvent(uuid.New())))
	assert.Equal(t, 0, h.count())
}

func TestInMemoryEventBus_StartStop(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	ctx := context.Background()
	require.NoError(t, bus.Start(ctx))
	assert.True(t, bus.running.Load())
	require.NoError(t, bus.Stop(ctx))
	assert.False(t, bus.running.Load())
}

func TestHandlerRegistry(t *testing.T) {
	r := NewHandlerRegistry()
	typed := &recordingHandler{}
	wildcard := &recordingHandler{}

	r.Register(typed, fee.EventTypeDueSettled, fee.EventTypeChargeSettled)
	r.Register(wildcard)

	assert.Len(t, r.GetHandlers(fee.EventTypeDueSettled), 2)
	assert.Len(t, r.GetHandlers(fee.EventTypeReceiptRequested), 1)
	assert.Equal(t, 2, r.Count())

	r.Unregister(typed)
	assert.Len(t, r.GetHandlers(fee.EventTypeDueSettled), 1)
	assert.Equal(t, 1, r.Count())
}
