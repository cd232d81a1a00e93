package events

import (
	"testing"
	"time"

	"trading-signal-engine/internal/signal"
)

func waitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestPublishSignalReachesTypedAndAllSubscribers(t *testing.T) {
	bus := NewEventBus()

	typed := make(chan Event, 1)
	all := make(chan Event, 1)
	bus.Subscribe(EventSignalGenerated, func(e Event) { typed <- e })
	bus.SubscribeAll(func(e Event) { all <- e })

	bus.PublishSignal(&signal.Signal{ID: "s1", Ticker: "AAPL", Action: signal.ActionBuy})

	evt := waitEvent(t, typed)
	if evt.Type != EventSignalGenerated {
		t.Errorf("type = %s", evt.Type)
	}
	if evt.Data["ticker"] != "AAPL" || evt.Data["action"] != "BUY" {
		t.Errorf("data = %v", evt.Data)
	}
	if evt.Timestamp.IsZero() {
		t.Error("timestamp should be stamped on publish")
	}

	waitEvent(t, all)
}

func TestTypedSubscriberIgnoresOtherEvents(t *testing.T) {
	bus := NewEventBus()

	updated := make(chan Event, 2)
	bus.Subscribe(EventSignalUpdated, func(e Event) { updated <- e })

	bus.PublishSignal(&signal.Signal{ID: "s1", Ticker: "AAPL"})
	bus.PublishSignalUpdated("s1", &signal.Signal{ID: "s2", Ticker: "AAPL"})

	evt := waitEvent(t, updated)
	if evt.Type != EventSignalUpdated {
		t.Fatalf("type = %s", evt.Type)
	}
	if evt.Data["previous_id"] != "s1" {
		t.Errorf("previous_id = %v", evt.Data["previous_id"])
	}

	select {
	case extra := <-updated:
		t.Errorf("unexpected extra event: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPublishErrorCarriesDetail(t *testing.T) {
	bus := NewEventBus()

	errs := make(chan Event, 1)
	bus.Subscribe(EventError, func(e Event) { errs <- e })

	bus.PublishError("engine", "generation failed", nil)

	evt := waitEvent(t, errs)
	if evt.Data["source"] != "engine" || evt.Data["message"] != "generation failed" {
		t.Errorf("data = %v", evt.Data)
	}
	if _, ok := evt.Data["error"]; ok {
		t.Error("nil error should not be included")
	}
}
