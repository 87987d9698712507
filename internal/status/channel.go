package status

import (
	"fmt"
	"sync"
)

// EventType identifies the kind of system event.
type EventType string

// System event types.
const (
	// EventConnected is published after a successful query whose body
	// carries no restart marker.
	EventConnected EventType = "connected"

	// EventError is published when a query fails.
	EventError EventType = "error"

	// EventLast is published when a response carries the controller's
	// "last" marker. A change in its value means the controller restarted
	// or its event sequence moved on.
	EventLast EventType = "last"
)

// Event is a single system notification.
//
// Events are compared field by field for deduplication.
type Event struct {
	Type EventType `json:"type"`

	// Details holds the failure message for EventError.
	Details string `json:"details,omitempty"`

	// Last holds the marker value for EventLast.
	Last int64 `json:"last,omitempty"`
}

// Connected returns a connected event.
func Connected() Event { return Event{Type: EventConnected} }

// Error returns an error event carrying details.
func Error(details string) Event { return Event{Type: EventError, Details: details} }

// Last returns a restart-marker event.
func Last(last int64) Event { return Event{Type: EventLast, Last: last} }

// String implements fmt.Stringer.
func (e Event) String() string {
	switch e.Type {
	case EventError:
		return fmt.Sprintf("error: %s", e.Details)
	case EventLast:
		return fmt.Sprintf("last: %d", e.Last)
	default:
		return string(e.Type)
	}
}

// Handler receives system events.
type Handler func(Event)

// Channel is a deduplicating broadcast of system events.
//
// Publish delivers synchronously to every subscriber in the caller's
// goroutine. Concurrent publishes are serialized, so subscribers see events
// in the order they were accepted and the last delivered event is always
// Current. A handler must not publish on the channel that invoked it.
// A panicking handler is recovered and does not affect others.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Channel struct {
	// deliverMu is held from the dedup check until the last handler
	// returns. It is always taken before mu.
	deliverMu sync.Mutex

	mu       sync.Mutex
	handlers map[uint64]Handler
	nextID   uint64
	last     Event
	hasLast  bool
	onPanic  func(recovered any)
}

// NewChannel creates an empty status channel.
func NewChannel() *Channel {
	return &Channel{
		handlers: make(map[uint64]Handler),
	}
}

// SetPanicHandler sets a callback for panics recovered from subscribers.
func (c *Channel) SetPanicHandler(fn func(recovered any)) {
	c.mu.Lock()
	c.onPanic = fn
	c.mu.Unlock()
}

// Subscribe registers handler and returns a function that removes it.
// The handler only receives events published after this call.
func (c *Channel) Subscribe(handler Handler) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = handler
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.handlers, id)
			c.mu.Unlock()
		})
	}
}

// Publish broadcasts event unless it equals the previously published one.
// It reports whether the event was delivered.
func (c *Channel) Publish(event Event) bool {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	if c.hasLast && c.last == event {
		c.mu.Unlock()
		return false
	}
	c.last = event
	c.hasLast = true

	handlers := make([]Handler, 0, len(c.handlers))
	for _, h := range c.handlers {
		handlers = append(handlers, h)
	}
	onPanic := c.onPanic
	c.mu.Unlock()

	for _, h := range handlers {
		deliver(h, event, onPanic)
	}
	return true
}

// Current returns the most recently published event. The boolean is false
// until something has been published.
func (c *Channel) Current() (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.hasLast
}

// SubscriberCount returns the number of active subscribers.
func (c *Channel) SubscriberCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers)
}

func deliver(h Handler, event Event, onPanic func(any)) {
	defer func() {
		if r := recover(); r != nil && onPanic != nil {
			onPanic(r)
		}
	}()
	h(event)
}
