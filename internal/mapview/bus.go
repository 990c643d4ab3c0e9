package mapview

import (
	"sync"

	"github.com/joeblew999/plat-map/internal/contextmenu"
	"github.com/joeblew999/plat-map/internal/feature"
	"github.com/joeblew999/plat-map/internal/mapstate"
	"github.com/joeblew999/plat-map/internal/overlay"
)

// EventKind names what changed in a view.
type EventKind string

const (
	EventState   EventKind = "state"   // center, zoom or layers moved
	EventOverlay EventKind = "overlay" // overlay status changed
	EventRender  EventKind = "render"  // overlay features replaced
	EventClear   EventKind = "clear"   // overlay features removed
	EventMenu    EventKind = "menu"    // context menu opened
	EventResync  EventKind = "resync"  // events were dropped, re-read the view
	EventClosed  EventKind = "closed"
)

// Event is published on every observable change of a view.
type Event struct {
	Kind      EventKind
	State     mapstate.State
	Hash      string
	ShortLink string
	Overlay   overlay.Info
	Features  []feature.Feature
	Menu      *contextmenu.Menu
}

// SubscriberBuffer is the number of events a subscriber may fall behind
// before events are dropped for it.
const SubscriberBuffer = 64

// EventBus is a fan-out pub/sub for the events of one view.
type EventBus struct {
	mu   sync.RWMutex
	subs map[chan Event]bool // value: events were dropped since the last delivery
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]bool)}
}

// Publish sends an event to all subscribers without blocking. A subscriber
// whose buffer is full misses events; once it has room again it receives a
// single EventResync in place of everything it missed, then resumes.
func (b *EventBus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch, lagging := range b.subs {
		out := e
		if lagging {
			out = Event{Kind: EventResync}
		}
		select {
		case ch <- out:
			b.subs[ch] = false
		default:
			b.subs[ch] = true
		}
	}
}

// Subscribe returns a buffered channel that receives events.
func (b *EventBus) Subscribe() chan Event {
	ch := make(chan Event, SubscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = false
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown channels
// are ignored.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; !ok {
		return
	}
	delete(b.subs, ch)
	close(ch)
}

// Close publishes EventClosed where there is room and closes every
// subscriber channel, so readers end after draining their buffer.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- Event{Kind: EventClosed}:
		default:
		}
		delete(b.subs, ch)
		close(ch)
	}
}

// Len returns the number of subscribers.
func (b *EventBus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// busSink publishes overlay output as view events.
type busSink struct {
	bus *EventBus
}

func (s busSink) Render(kind overlay.Kind, features []feature.Feature) {
	s.bus.Publish(Event{Kind: EventRender, Overlay: overlay.Info{Overlay: kind.Name}, Features: features})
}

func (s busSink) Clear(kind overlay.Kind) {
	s.bus.Publish(Event{Kind: EventClear, Overlay: overlay.Info{Overlay: kind.Name}})
}

func (s busSink) Status(info overlay.Info) {
	s.bus.Publish(Event{Kind: EventOverlay, Overlay: info})
}
