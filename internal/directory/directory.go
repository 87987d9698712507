package directory

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/hc2-sync/internal/identifier"
)

// API paths used by the directory.
const (
	roomsPath   = "/rooms"
	devicesPath = "/devices"
)

// Querier performs controller queries. *controller.Channel satisfies it.
type Querier interface {
	Query(ctx context.Context, path string, allowRetry bool, out any) error
}

// Logger defines the logging interface used by the Directory.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// wireRoom is a room as returned by GET /api/rooms.
type wireRoom struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// wireDevice is a device as returned by GET /api/devices.
type wireDevice struct {
	ID         int                        `json:"id"`
	Name       string                     `json:"name"`
	RoomID     int                        `json:"roomID"`
	Properties map[string]json.RawMessage `json:"properties"`
	Actions    map[string]json.RawMessage `json:"actions"`
}

// roomSnapshot is one immutable generation of the room map.
type roomSnapshot struct {
	byID map[int]Room
	list []Room
}

// deviceSnapshot is one immutable generation of the device maps.
type deviceSnapshot struct {
	byID         map[int]*Device
	byIdentifier map[string]*Device
	list         []*Device
}

// Directory caches rooms and devices fetched from the controller.
//
// Room and device snapshots are swapped atomically; readers never block on
// a refresh. Refreshes themselves are serialised so rooms and devices are
// always reloaded as a pair.
//
// Thread Safety:
//   - All public methods are safe for concurrent use from multiple goroutines.
type Directory struct {
	querier Querier
	logger  Logger

	rooms   atomic.Pointer[roomSnapshot]
	devices atomic.Pointer[deviceSnapshot]

	// refreshMu serialises rooms-then-devices refresh sequences.
	refreshMu sync.Mutex

	unknown   map[int]*Device
	unknownMu sync.RWMutex
}

// New creates an empty directory backed by querier.
// Until the first refresh only the synthetic Unknown room exists.
func New(querier Querier) *Directory {
	d := &Directory{
		querier: querier,
		logger:  noopLogger{},
		unknown: make(map[int]*Device),
	}
	d.rooms.Store(&roomSnapshot{byID: map[int]Room{UnknownRoomID: UnknownRoom()}})
	d.devices.Store(&deviceSnapshot{
		byID:         map[int]*Device{},
		byIdentifier: map[string]*Device{},
	})
	return d
}

// SetLogger sets the logger for the directory.
func (d *Directory) SetLogger(logger Logger) {
	d.logger = logger
}

// =============================================================================
// Refresh
// =============================================================================

// RefreshRooms reloads the room map and returns the controller's rooms.
//
// The synthetic Unknown room is always seeded first. On failure the
// previous snapshot stays in place.
func (d *Directory) RefreshRooms(ctx context.Context) ([]Room, error) {
	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()

	snap, err := d.refreshRooms(ctx, false)
	if err != nil {
		return nil, err
	}
	return slices.Clone(snap.list), nil
}

// RefreshDevices reloads rooms and then devices, and returns the devices
// ordered as the controller listed them. Devices whose room id is not in
// the fresh room map are dropped.
//
// On failure the previous snapshots stay in place.
func (d *Directory) RefreshDevices(ctx context.Context) ([]Device, error) {
	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()

	snap, err := d.refreshDevices(ctx, false)
	if err != nil {
		return nil, err
	}
	return copyList(snap.list), nil
}

// SyncDevices is RefreshDevices in persistent mode: failed queries are
// retried until they succeed or ctx is cancelled.
func (d *Directory) SyncDevices(ctx context.Context) error {
	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()

	_, err := d.refreshDevices(ctx, true)
	return err
}

func (d *Directory) refreshRooms(ctx context.Context, retry bool) (*roomSnapshot, error) {
	var wire []wireRoom
	if err := d.querier.Query(ctx, roomsPath, retry, &wire); err != nil {
		return nil, fmt.Errorf("refreshing rooms: %w", err)
	}

	snap := &roomSnapshot{
		byID: make(map[int]Room, len(wire)+1),
		list: make([]Room, 0, len(wire)),
	}
	snap.byID[UnknownRoomID] = UnknownRoom()

	for _, w := range wire {
		room := Room{
			ID:         w.ID,
			Name:       w.Name,
			Identifier: identifier.Normalize(w.Name),
		}
		snap.byID[room.ID] = room
		snap.list = append(snap.list, room)
	}

	d.rooms.Store(snap)
	d.logger.Debug("rooms refreshed", "count", len(snap.list))
	return snap, nil
}

func (d *Directory) refreshDevices(ctx context.Context, retry bool) (*deviceSnapshot, error) {
	rooms, err := d.refreshRooms(ctx, retry)
	if err != nil {
		return nil, err
	}

	var wire []wireDevice
	if err := d.querier.Query(ctx, devicesPath, retry, &wire); err != nil {
		return nil, fmt.Errorf("refreshing devices: %w", err)
	}

	snap := &deviceSnapshot{
		byID:         make(map[int]*Device, len(wire)),
		byIdentifier: make(map[string]*Device, len(wire)),
		list:         make([]*Device, 0, len(wire)),
	}

	for _, w := range wire {
		room, ok := rooms.byID[w.RoomID]
		if !ok {
			d.logger.Debug("device dropped: room not found",
				"device_id", w.ID,
				"device", w.Name,
				"room_id", w.RoomID,
			)
			continue
		}

		dev := buildDevice(w, room)
		for _, id := range dev.Identifiers {
			if prev, taken := snap.byIdentifier[id]; taken && prev.ID != dev.ID {
				d.logger.Warn("identifier reassigned to another device",
					"identifier", id,
					"previous_device_id", prev.ID,
					"device_id", dev.ID,
				)
			}
			snap.byIdentifier[id] = dev
		}
		snap.byID[dev.ID] = dev
		snap.list = append(snap.list, dev)
	}

	d.devices.Store(snap)
	d.logger.Info("directory refreshed",
		"rooms", len(rooms.list),
		"devices", len(snap.list),
		"dropped", len(wire)-len(snap.list),
	)
	return snap, nil
}

// buildDevice converts a wire device in a resolved room.
func buildDevice(w wireDevice, room Room) *Device {
	props := make(map[string]PropertyValue, len(w.Properties))
	for name, raw := range w.Properties {
		props[name] = propertyFromWire(raw)
	}

	actions := w.Actions
	if actions == nil {
		actions = map[string]json.RawMessage{}
	}

	return &Device{
		ID:          w.ID,
		Name:        w.Name,
		Room:        room,
		Identifiers: deviceIdentifiers(room, w.Name, props),
		Properties:  props,
		Actions:     actions,
	}
}

// deviceIdentifiers returns "room/category/name" for each declared
// category, or "room/name" when there are none. Duplicates are removed.
func deviceIdentifiers(room Room, name string, props map[string]PropertyValue) []string {
	var categories []string
	if v, ok := props[CategoriesProperty]; ok {
		categories, _ = v.Strings()
	}

	if len(categories) == 0 {
		return []string{identifier.Join([]string{room.Identifier, name})}
	}

	ids := make([]string, 0, len(categories))
	for _, category := range categories {
		id := identifier.Join([]string{room.Identifier, category, name})
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// =============================================================================
// Lookups
// =============================================================================

// LookupByIdentifier returns the device with the given identifier.
//
// A cache miss triggers one RefreshDevices and a second look. If the
// device is still absent, or the refresh fails, ErrDeviceNotFound is
// returned (wrapping the refresh error when there is one).
func (d *Directory) LookupByIdentifier(ctx context.Context, id string) (*Device, error) {
	if dev, ok := d.devices.Load().byIdentifier[id]; ok {
		return dev.DeepCopy(), nil
	}

	d.logger.Debug("identifier not cached, refreshing", "identifier", id)
	if _, err := d.RefreshDevices(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDeviceNotFound, id, err)
	}

	if dev, ok := d.devices.Load().byIdentifier[id]; ok {
		return dev.DeepCopy(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
}

// IsFullyKnown reports whether every id is either a cached device or a
// remembered inaccessible device. Zero ids are ignored.
func (d *Directory) IsFullyKnown(ids []int) bool {
	devices := d.devices.Load()

	d.unknownMu.RLock()
	defer d.unknownMu.RUnlock()

	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := devices.byID[id]; ok {
			continue
		}
		if _, ok := d.unknown[id]; ok {
			continue
		}
		return false
	}
	return true
}

// Resolve returns the cached device for id. When there is none, the
// inaccessible-device placeholder is returned (and remembered) and known
// is false.
func (d *Directory) Resolve(id int) (dev *Device, known bool) {
	if dev, ok := d.devices.Load().byID[id]; ok {
		return dev.DeepCopy(), true
	}

	d.unknownMu.Lock()
	defer d.unknownMu.Unlock()

	placeholder, ok := d.unknown[id]
	if !ok {
		placeholder = unknownDevice(id)
		d.unknown[id] = placeholder
		d.logger.Debug("no access to device", "device_id", id)
	}
	return placeholder.DeepCopy(), false
}

// Device returns the cached device with the controller id.
func (d *Directory) Device(id int) (*Device, error) {
	if dev, ok := d.devices.Load().byID[id]; ok {
		return dev.DeepCopy(), nil
	}
	return nil, fmt.Errorf("%w: id %d", ErrDeviceNotFound, id)
}

// Devices returns the cached devices ordered by controller id.
func (d *Directory) Devices() []Device {
	out := copyList(d.devices.Load().list)
	slices.SortFunc(out, func(a, b Device) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// DevicesInRoom returns the cached devices in the room with the given
// identifier.
func (d *Directory) DevicesInRoom(roomIdentifier string) []Device {
	var out []Device
	for _, dev := range d.devices.Load().list {
		if dev.Room.Identifier == roomIdentifier {
			out = append(out, *dev.DeepCopy())
		}
	}
	return out
}

// Room returns a room by controller id, including the synthetic room 0.
func (d *Directory) Room(id int) (Room, error) {
	if room, ok := d.rooms.Load().byID[id]; ok {
		return room, nil
	}
	return Room{}, fmt.Errorf("%w: id %d", ErrRoomNotFound, id)
}

// Rooms returns the controller's rooms from the last refresh. The
// synthetic Unknown room is not included.
func (d *Directory) Rooms() []Room {
	return slices.Clone(d.rooms.Load().list)
}

// Identifiers returns every indexed identifier in sorted order.
func (d *Directory) Identifiers() []string {
	index := d.devices.Load().byIdentifier
	ids := make([]string, 0, len(index))
	for id := range index {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// DeviceCount returns the number of cached devices.
func (d *Directory) DeviceCount() int {
	return len(d.devices.Load().list)
}

// UnknownCount returns the number of remembered inaccessible devices.
func (d *Directory) UnknownCount() int {
	d.unknownMu.RLock()
	defer d.unknownMu.RUnlock()
	return len(d.unknown)
}

func copyList(list []*Device) []Device {
	out := make([]Device, len(list))
	for i, dev := range list {
		out[i] = *dev.DeepCopy()
	}
	return out
}
