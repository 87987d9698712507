package hc2

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nerrad567/hc2-sync/internal/controller"
	"github.com/nerrad567/hc2-sync/internal/directory"
	"github.com/nerrad567/hc2-sync/internal/events"
	"github.com/nerrad567/hc2-sync/internal/status"
)

// Client is a connection to one controller.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	id        string
	opts      Options
	logger    Logger
	status    *status.Channel
	channel   *controller.Channel
	directory *directory.Directory
	engine    *events.Engine
}

// New wires a client from opts. No request is made until a method needs
// one; the event loop starts with the first Events subscriber.
func New(opts Options) *Client {
	opts = opts.withDefaults()

	id := opts.ClientID
	if id == "" {
		id = uuid.NewString()
	}
	base := baseLogger(opts)

	statusCh := status.NewChannel()
	statusLog := newComponentLogger(base, id, "status")
	statusCh.SetPanicHandler(func(r any) {
		statusLog.Error("status handler panicked", "panic", r)
	})

	channel := controller.NewChannel(controller.Config{
		Host:           opts.Host,
		Port:           opts.Port,
		User:           opts.User,
		Password:       opts.Password,
		ConnectTimeout: opts.ConnectTimeout,
	}, opts.Transport, statusCh)
	channel.SetClock(opts.Clock)
	channel.SetLogger(newComponentLogger(base, id, "controller"))

	dir := directory.New(channel)
	dir.SetLogger(newComponentLogger(base, id, "directory"))

	engine := events.New(channel, dir, events.Config{PollingInterval: opts.PollingInterval})
	engine.SetClock(opts.Clock)
	engine.SetLogger(newComponentLogger(base, id, "events"))

	logger := newComponentLogger(base, id, "client")
	logger.Debug("client created",
		"host", opts.Host,
		"port", opts.Port,
		"user", opts.User,
		"polling_interval", opts.PollingInterval,
	)

	return &Client{
		id:        id,
		opts:      opts,
		logger:    logger,
		status:    statusCh,
		channel:   channel,
		directory: dir,
		engine:    engine,
	}
}

// ID returns the client instance id.
func (c *Client) ID() string { return c.id }

// Directory returns the directory cache.
func (c *Client) Directory() *directory.Directory { return c.directory }

// Engine returns the event engine.
func (c *Client) Engine() *events.Engine { return c.engine }

// Status returns the system status channel.
func (c *Client) Status() *status.Channel { return c.status }

// Rooms fetches the rooms and refreshes the room map.
func (c *Client) Rooms(ctx context.Context) ([]directory.Room, error) {
	return c.directory.RefreshRooms(ctx)
}

// Devices fetches rooms and devices and refreshes the directory.
func (c *Client) Devices(ctx context.Context) ([]directory.Device, error) {
	return c.directory.RefreshDevices(ctx)
}

// DeviceByIdentifier resolves an identifier, refreshing once on a miss.
func (c *Client) DeviceByIdentifier(ctx context.Context, identifier string) (*directory.Device, error) {
	return c.directory.LookupByIdentifier(ctx, identifier)
}

// Events subscribes to device property updates matching criteria.
func (c *Client) Events(criteria events.Criteria, handler events.Handler) (unsubscribe func()) {
	return c.engine.Subscribe(criteria, handler)
}

// Stream returns a channel of property updates, closed when ctx ends.
func (c *Client) Stream(ctx context.Context, criteria events.Criteria) <-chan events.Event {
	return c.engine.Stream(ctx, criteria)
}

// System subscribes to connection status events.
func (c *Client) System(handler status.Handler) (unsubscribe func()) {
	return c.status.Subscribe(handler)
}

// CallAction invokes an action by device id without checking the
// directory.
func (c *Client) CallAction(ctx context.Context, deviceID int, action string, args ...any) ([]byte, error) {
	return c.channel.CallAction(ctx, deviceID, action, args...)
}

// Call resolves identifier and invokes action on the device.
//
// Returns:
//   - []byte: Raw controller acknowledgement
//   - error: directory.ErrDeviceNotFound, directory.ErrActionNotSupported,
//     or a controller query error
func (c *Client) Call(ctx context.Context, identifier, action string, args ...any) ([]byte, error) {
	dev, err := c.directory.LookupByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if !dev.HasAction(action) {
		return nil, fmt.Errorf("%w: %s on %s", directory.ErrActionNotSupported, action, identifier)
	}

	c.logger.Debug("calling action", "identifier", identifier, "device_id", dev.ID, "action", action)
	return c.channel.CallAction(ctx, dev.ID, action, args...)
}

// Disconnect resets the event cursor and stops the next poll.
func (c *Client) Disconnect() {
	c.engine.Disconnect()
}

// Close disconnects and aborts in-flight retries.
func (c *Client) Close() {
	c.engine.Close()
}
