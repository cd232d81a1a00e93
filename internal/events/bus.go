// Package events is the in-process pub/sub fabric between the signal engine
// and its outward surfaces (websocket hub, metrics).
package events

import (
	"sync"
	"time"

	"trading-signal-engine/internal/signal"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventSignalGenerated EventType = "SIGNAL_GENERATED"
	EventSignalUpdated   EventType = "SIGNAL_UPDATED"
	EventBatchCompleted  EventType = "BATCH_COMPLETED"
	EventError           EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Notify specific subscribers
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	// Notify all-event subscribers
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishSignal implements signal.Publisher: every finished signal fans out
// to the websocket hub and any other listeners.
func (eb *EventBus) PublishSignal(sig *signal.Signal) {
	eb.Publish(Event{
		Type: EventSignalGenerated,
		Data: map[string]interface{}{
			"signal": sig,
			"ticker": sig.Ticker,
			"action": string(sig.Action),
		},
	})
}

// PublishSignalUpdated announces a re-evaluation that changed an existing
// recommendation.
func (eb *EventBus) PublishSignalUpdated(previousID string, sig *signal.Signal) {
	eb.Publish(Event{
		Type: EventSignalUpdated,
		Data: map[string]interface{}{
			"previous_id": previousID,
			"signal":      sig,
			"ticker":      sig.Ticker,
		},
	})
}

// PublishBatchCompleted announces a finished batch run.
func (eb *EventBus) PublishBatchCompleted(summary signal.BatchSummary) {
	eb.Publish(Event{
		Type: EventBatchCompleted,
		Data: map[string]interface{}{
			"summary": summary,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
