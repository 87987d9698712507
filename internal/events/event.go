package events

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/nerrad567/hc2-sync/internal/directory"
)

// PropertyUpdatedType is the refreshStates event type the engine consumes.
const PropertyUpdatedType = "DevicePropertyUpdatedEvent"

// Event is a device property update correlated with the directory.
type Event struct {
	// ID is the controller's device id.
	ID int `json:"id"`

	// Identifiers are copied from the resolved device. Empty for devices
	// the configured user cannot access.
	Identifiers []string `json:"identifiers"`

	Property string                  `json:"property"`
	NewValue directory.PropertyValue `json:"newValue"`
	OldValue directory.PropertyValue `json:"oldValue"`

	// Timestamp is when the engine emitted the event.
	Timestamp time.Time `json:"timestamp"`
}

// Identifier returns the first identifier, or "" for inaccessible devices.
func (e Event) Identifier() string {
	if len(e.Identifiers) == 0 {
		return ""
	}
	return e.Identifiers[0]
}

// Criteria selects the events a subscriber receives.
// The zero value matches everything.
type Criteria struct {
	// DeviceID limits events to one device. Zero matches all devices.
	DeviceID int

	// Properties limits events to the named properties. Empty matches all.
	Properties []string
}

// Matches reports whether e satisfies the criteria.
func (c Criteria) Matches(e Event) bool {
	if c.DeviceID != 0 && e.ID != c.DeviceID {
		return false
	}
	if len(c.Properties) > 0 && !slices.Contains(c.Properties, e.Property) {
		return false
	}
	return true
}

// Handler receives matching events. Handlers run on the poll loop and
// should return promptly.
type Handler func(Event)

// wireResponse is the body of GET /api/refreshStates.
type wireResponse struct {
	Last   int64       `json:"last"`
	Events []wireEvent `json:"events"`
}

// wireEvent keeps data raw: other event types carry other shapes.
type wireEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type wireData struct {
	ID       int                     `json:"id"`
	Property string                  `json:"property"`
	NewValue directory.PropertyValue `json:"newValue"`
	OldValue directory.PropertyValue `json:"oldValue"`
}
