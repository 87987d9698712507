package directory

import (
	"encoding/json"
	"slices"
	"strconv"
)

// Synthetic room and device names.
const (
	// UnknownRoomID hosts devices whose room could not be determined.
	UnknownRoomID = 0

	// UnknownRoomName is the display name of the synthetic room.
	UnknownRoomName = "Unknown"

	// UnknownRoomIdentifier is the slug of the synthetic room.
	UnknownRoomIdentifier = "unknown"

	// UnknownDeviceName names placeholder devices the user cannot access.
	UnknownDeviceName = "unknown-no-access"

	// CategoriesProperty is the device property listing its categories.
	CategoriesProperty = "categories"
)

// Room is a controller room.
type Room struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
}

// UnknownRoom returns the synthetic room with id 0.
func UnknownRoom() Room {
	return Room{
		ID:         UnknownRoomID,
		Name:       UnknownRoomName,
		Identifier: UnknownRoomIdentifier,
	}
}

// Device is a controller device with its generated identifiers.
type Device struct {
	ID          int                        `json:"id"`
	Name        string                     `json:"name"`
	Room        Room                       `json:"room"`
	Identifiers []string                   `json:"identifiers"`
	Properties  map[string]PropertyValue   `json:"properties"`
	Actions     map[string]json.RawMessage `json:"actions"`
}

// unknownDevice builds the placeholder for an inaccessible device id.
func unknownDevice(id int) *Device {
	return &Device{
		ID:          id,
		Name:        UnknownDeviceName,
		Room:        UnknownRoom(),
		Identifiers: []string{},
		Properties:  map[string]PropertyValue{},
		Actions:     map[string]json.RawMessage{},
	}
}

// IsUnknown reports whether d is an inaccessible-device placeholder.
func (d *Device) IsUnknown() bool {
	return d.Name == UnknownDeviceName && len(d.Identifiers) == 0 && d.Room.ID == UnknownRoomID
}

// HasAction reports whether the device advertises the named action.
func (d *Device) HasAction(name string) bool {
	_, ok := d.Actions[name]
	return ok
}

// ActionNames returns the advertised actions in sorted order.
func (d *Device) ActionNames() []string {
	names := make([]string, 0, len(d.Actions))
	for name := range d.Actions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Arity returns the argument count the controller advertises for an
// action, when it is a plain number.
func (d *Device) Arity(action string) (int, bool) {
	raw, ok := d.Actions[action]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Property returns a property value by name.
func (d *Device) Property(name string) (PropertyValue, bool) {
	v, ok := d.Properties[name]
	return v, ok
}

// HasIdentifier reports whether id is one of the device's identifiers.
func (d *Device) HasIdentifier(id string) bool {
	return slices.Contains(d.Identifiers, id)
}

// DeepCopy returns a copy that shares no mutable state with d.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cp := *d
	cp.Identifiers = slices.Clone(d.Identifiers)

	if d.Properties != nil {
		cp.Properties = make(map[string]PropertyValue, len(d.Properties))
		for k, v := range d.Properties {
			cp.Properties[k] = v
		}
	}

	if d.Actions != nil {
		cp.Actions = make(map[string]json.RawMessage, len(d.Actions))
		for k, v := range d.Actions {
			cp.Actions[k] = slices.Clone(v)
		}
	}

	return &cp
}
