package mapview

import "testing"

func drain(ch chan Event) []Event {
	var events []Event
	for len(ch) > 0 {
		events = append(events, <-ch)
	}
	return events
}

func TestBusResyncAfterDrop(t *testing.T) {
	b := NewEventBus()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < SubscriberBuffer+5; i++ {
		b.Publish(Event{Kind: EventState})
	}
	if got := len(drain(ch)); got != SubscriberBuffer {
		t.Fatalf("buffered = %d, want %d", got, SubscriberBuffer)
	}

	b.Publish(Event{Kind: EventMenu})
	b.Publish(Event{Kind: EventState})
	events := drain(ch)
	if len(events) != 2 || events[0].Kind != EventResync || events[1].Kind != EventState {
		t.Errorf("events after drop = %+v, want resync then state", events)
	}

	b.Publish(Event{Kind: EventMenu})
	if events := drain(ch); len(events) != 1 || events[0].Kind != EventMenu {
		t.Errorf("events after resync = %+v, want menu", events)
	}
}

func TestBusClose(t *testing.T) {
	b := NewEventBus()
	full := b.Subscribe()
	idle := b.Subscribe()
	for i := 0; i < SubscriberBuffer; i++ {
		b.Publish(Event{Kind: EventState})
	}
	drain(idle)

	b.Close()
	if b.Len() != 0 {
		t.Errorf("subscribers = %d after Close", b.Len())
	}
	if events := drain(idle); len(events) != 1 || events[0].Kind != EventClosed {
		t.Errorf("idle events = %+v, want closed", events)
	}
	if got := len(drain(full)); got != SubscriberBuffer {
		t.Errorf("full buffered = %d, want %d", got, SubscriberBuffer)
	}
	if _, ok := <-full; ok {
		t.Error("channel still open after Close")
	}
	b.Unsubscribe(full)
}
