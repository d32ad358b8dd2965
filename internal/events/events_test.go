package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	bus.Subscribe(EventBookingClaimed, func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	payload := BookingEventPayload{BookingID: 1, SlotID: 2, Name: "Jane Roe", Status: "pending"}
	if err := bus.PublishJSON(EventBookingClaimed, payload); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
	if received.Type != EventBookingClaimed {
		t.Errorf("expected type %s, got %s", EventBookingClaimed, received.Type)
	}

	var decoded BookingEventPayload
	if err := json.Unmarshal(received.Payload, &decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if decoded.BookingID != 1 || decoded.SlotID != 2 {
		t.Errorf("unexpected decoded payload: %+v", decoded)
	}
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2 int

	bus.Subscribe(EventBookingConfirmed, func(_ *Event) error { count1++; return nil })
	bus.Subscribe(EventBookingConfirmed, func(_ *Event) error { count2++; return nil })

	bus.Publish(&Event{Type: EventBookingConfirmed})

	if count1 != 1 || count2 != 1 {
		t.Errorf("expected both handlers to be called once, got %d and %d", count1, count2)
	}
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	// Publishing with no subscribers must not panic or block.
	if err := bus.PublishJSON(EventSlotsGenerated, map[string]int{"inserted": 4}); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}
}

func TestEventBusOnlyMatchingTypeFires(t *testing.T) {
	bus := NewEventBus()
	var calls int

	bus.Subscribe(EventBookingCancelled, func(_ *Event) error { calls++; return nil })
	bus.Publish(&Event{Type: EventBookingExpired, CreatedAt: time.Now()})

	if calls != 0 {
		t.Errorf("expected no calls for a different event type, got %d", calls)
	}
}

func TestPublishStampsCreatedAt(t *testing.T) {
	bus := NewEventBus()
	var stamped time.Time

	bus.Subscribe(EventBookingRescheduled, func(e *Event) error {
		stamped = e.CreatedAt
		return nil
	})
	bus.Publish(&Event{Type: EventBookingRescheduled})

	if stamped.IsZero() {
		t.Errorf("expected CreatedAt to be stamped on publish")
	}
}
