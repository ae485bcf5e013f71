package events

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

const (
	EventOrderOpened        = "order_opened"
	EventOrderItemAdded     = "order_item_added"
	EventOrderItemUpdated   = "order_item_updated"
	EventOrderItemRemoved   = "order_item_removed"
	EventOrderCompleted     = "order_completed"
	EventOrderPartiallyPaid = "order_partially_paid"
	EventOrderCancelled     = "order_cancelled"
)

// LedgerEvents lists every event a ledger mutation can emit.
var LedgerEvents = []string{
	EventOrderOpened,
	EventOrderItemAdded,
	EventOrderItemUpdated,
	EventOrderItemRemoved,
	EventOrderCompleted,
	EventOrderPartiallyPaid,
	EventOrderCancelled,
}

// OrderEventPayload is the order snapshot carried by ledger events.
type OrderEventPayload struct {
	OrderID       int64  `json:"order_id"`
	TableID       int64  `json:"table_id"`
	TableName     string `json:"table_name"`
	Status        string `json:"status"`
	Total         int64  `json:"total"`
	ItemID        int64  `json:"item_id,omitempty"`
	BillID        int64  `json:"bill_id,omitempty"`
	BillAmount    int64  `json:"bill_amount,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the JSON payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events. Handlers run
// synchronously on the publisher's goroutine.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for each of the given event types.
func (b *EventBus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range eventTypes {
		b.subscribers[t] = append(b.subscribers[t], handler)
	}
}

// Publish runs every handler and joins their errors.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	return b.Publish(&event)
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
