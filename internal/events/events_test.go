package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	calls := 0
	bus.Subscribe(func(event *Event) error {
		received = event
		calls++
		return nil
	}, EventOrderItemAdded)

	payload := OrderEventPayload{OrderID: 9, TableID: 3, Total: 45000, ItemID: 12}
	require.NoError(t, bus.PublishJSON(EventOrderItemAdded, payload))

	assert.Equal(t, 1, calls)
	require.NotNil(t, received)
	assert.Equal(t, EventOrderItemAdded, received.Type)

	var decoded OrderEventPayload
	require.NoError(t, received.Decode(&decoded))
	assert.Equal(t, payload, decoded)
}

func TestEventBusSubscribeMany(t *testing.T) {
	bus := NewEventBus()
	seen := map[string]int{}
	bus.Subscribe(func(e *Event) error { seen[e.Type]++; return nil }, LedgerEvents...)

	for _, typ := range LedgerEvents {
		_ = bus.Publish(&Event{Type: typ})
	}
	_ = bus.Publish(&Event{Type: "unrelated"})

	assert.Len(t, seen, len(LedgerEvents))
	for _, n := range seen {
		assert.Equal(t, 1, n)
	}
}

func TestEventBusJoinsHandlerErrors(t *testing.T) {
	bus := NewEventBus()
	errA := errors.New("cache down")
	secondCalled := false

	bus.Subscribe(func(*Event) error { return errA }, EventOrderCancelled)
	bus.Subscribe(func(*Event) error { secondCalled = true; return nil }, EventOrderCancelled)

	err := bus.PublishJSON(EventOrderCancelled, OrderEventPayload{OrderID: 1})
	assert.ErrorIs(t, err, errA)
	assert.True(t, secondCalled, "a failing handler must not stop the others")
}

func TestEventBusNil(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventOrderOpened, nil))
}

func TestNewJSONEvent(t *testing.T) {
	event, err := NewJSONEvent(EventOrderCompleted, OrderEventPayload{BillID: 123})
	require.NoError(t, err)
	assert.False(t, event.CreatedAt.IsZero())

	var decoded OrderEventPayload
	require.NoError(t, event.Decode(&decoded))
	assert.Equal(t, int64(123), decoded.BillID)

	_, err = NewJSONEvent("bad", make(chan int))
	assert.Error(t, err)
}
