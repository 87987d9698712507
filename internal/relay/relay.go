package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/hc2-sync/internal/clock"
	"github.com/nerrad567/hc2-sync/internal/directory"
	"github.com/nerrad567/hc2-sync/internal/events"
	"github.com/nerrad567/hc2-sync/internal/history"
	"github.com/nerrad567/hc2-sync/internal/identifier"
	"github.com/nerrad567/hc2-sync/internal/infrastructure/mqtt"
	"github.com/nerrad567/hc2-sync/internal/status"
)

// WebSocket channels the relay broadcasts on.
const (
	ChannelPropertyUpdated = "device.property_updated"
	ChannelSystemStatus    = "system.status"
)

// Defaults applied by New.
const (
	DefaultQueueSize     = 256
	DefaultPruneInterval = time.Hour
	commandTimeout       = 30 * time.Second
)

// Source is the client surface the relay consumes. *hc2.Client satisfies it.
type Source interface {
	Events(criteria events.Criteria, handler events.Handler) (unsubscribe func())
	System(handler status.Handler) (unsubscribe func())
	Call(ctx context.Context, identifier, action string, args ...any) ([]byte, error)
}

// Publisher is the MQTT surface the relay needs. *mqtt.Client satisfies it.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Topics() mqtt.Topics
}

// MetricWriter is the time-series surface. *influxdb.Client satisfies it.
type MetricWriter interface {
	WritePropertyMetric(deviceID int, identifier, property string, value float64, timestamp time.Time)
	WriteStatusMetric(kind string, last int64, timestamp time.Time)
}

// Broadcaster pushes payloads to WebSocket subscribers of a channel.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Logger is the logging surface the relay uses.
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

// Sinks holds the optional destinations. Nil fields are skipped.
type Sinks struct {
	MQTT    Publisher
	Metrics MetricWriter
	History history.Repository
	Hub     Broadcaster
}

// Config controls queueing and history retention.
type Config struct {
	// Retention deletes history older than this. Zero keeps everything.
	Retention time.Duration

	// PruneInterval is how often retention runs. Defaults to one hour.
	PruneInterval time.Duration

	// QueueSize bounds the backlog between the poll loop and the sinks.
	// Updates arriving while the queue is full are dropped and logged.
	QueueSize int
}

// PropertyMessage is the payload published for a property update.
type PropertyMessage struct {
	ID         int                     `json:"id"`
	Identifier string                  `json:"identifier"`
	Property   string                  `json:"property"`
	Value      directory.PropertyValue `json:"value"`
	OldValue   directory.PropertyValue `json:"old_value"`
	Timestamp  time.Time               `json:"timestamp"`
}

// StatusMessage is the payload published for a system status change.
type StatusMessage struct {
	status.Event
	Timestamp time.Time `json:"timestamp"`
}

// item is one queued update; exactly one field is set.
type item struct {
	property *events.Event
	status   *StatusMessage
}

// Relay fans engine and status events out to the configured sinks.
//
// Thread Safety: Start and Stop may be called from any goroutine.
// Sinks are called from a single worker goroutine in arrival order.
type Relay struct {
	source Source
	sinks  Sinks
	cfg    Config
	logger Logger
	clock  clock.Clock

	mu         sync.RWMutex
	running    bool
	queue      chan item
	unsubs     []func()
	pruneTimer clock.Timer
	run        uint64
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	dropped    int64
}

// New creates a relay reading from source and writing to sinks.
func New(source Source, sinks Sinks, cfg Config) *Relay {
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = DefaultPruneInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	return &Relay{
		source: source,
		sinks:  sinks,
		cfg:    cfg,
		logger: noopLogger{},
		clock:  clock.Real(),
	}
}

// SetLogger sets the logger. Call before Start.
func (r *Relay) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// SetClock replaces the clock used for timestamps and pruning. Call before Start.
func (r *Relay) SetClock(clk clock.Clock) {
	r.clock = clk
}

// Start subscribes to the source and starts the sink worker.
//
// Parameters:
//   - ctx: Bounds command invocations and retention pruning
//
// Returns:
//   - error: If the MQTT command subscription fails
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}

	r.ctx, r.cancel = context.WithCancel(ctx)
	r.queue = make(chan item, r.cfg.QueueSize)
	r.done = make(chan struct{})
	r.running = true
	r.run++

	go r.worker(r.queue, r.done)

	if r.sinks.MQTT != nil {
		topic := r.sinks.MQTT.Topics().AllDeviceCommands()
		if err := r.sinks.MQTT.Subscribe(topic, 1, r.handleCommand); err != nil {
			r.stopLocked()
			return fmt.Errorf("subscribing to commands: %w", err)
		}
		r.logger.Info("listening for MQTT commands", "topic", topic)
	}

	r.unsubs = append(r.unsubs,
		r.source.Events(events.Criteria{}, r.enqueueProperty),
		r.source.System(r.enqueueStatus),
	)

	if r.sinks.History != nil && r.cfg.Retention > 0 {
		r.schedulePruneLocked()
	}

	r.logger.Info("relay started",
		"mqtt", r.sinks.MQTT != nil,
		"influxdb", r.sinks.Metrics != nil,
		"history", r.sinks.History != nil,
		"websocket", r.sinks.Hub != nil,
	)
	return nil
}

// Stop unsubscribes, drains the queue into the sinks and returns once the
// worker has finished.
func (r *Relay) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	done := r.done
	r.stopLocked()
	r.mu.Unlock()

	<-done
}

func (r *Relay) stopLocked() {
	for _, unsub := range r.unsubs {
		unsub()
	}
	r.unsubs = nil
	if r.pruneTimer != nil {
		r.pruneTimer.Stop()
		r.pruneTimer = nil
	}
	r.running = false
	close(r.queue)
	r.cancel()
}

// Dropped returns how many updates were discarded because the queue was full.
func (r *Relay) Dropped() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dropped
}

func (r *Relay) enqueueProperty(ev events.Event) {
	r.enqueue(item{property: &ev})
}

func (r *Relay) enqueueStatus(ev status.Event) {
	r.enqueue(item{status: &StatusMessage{Event: ev, Timestamp: r.clock.Now().UTC()}})
}

func (r *Relay) enqueue(it item) {
	r.mu.RLock()
	if !r.running {
		r.mu.RUnlock()
		return
	}
	select {
	case r.queue <- it:
		r.mu.RUnlock()
	default:
		r.mu.RUnlock()
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
		r.logger.Warn("relay queue full, dropping update")
	}
}

func (r *Relay) worker(queue <-chan item, done chan<- struct{}) {
	defer close(done)
	for it := range queue {
		switch {
		case it.property != nil:
			r.relayProperty(*it.property)
		case it.status != nil:
			r.relayStatus(*it.status)
		}
	}
}

// topicIdentifier names a device in MQTT topics. Devices without
// identifiers use unknown/<id>.
func topicIdentifier(ev events.Event) string {
	if id := ev.Identifier(); id != "" {
		return id
	}
	return identifier.Join([]string{"unknown", strconv.Itoa(ev.ID)})
}

func (r *Relay) relayProperty(ev events.Event) {
	msg := PropertyMessage{
		ID:         ev.ID,
		Identifier: ev.Identifier(),
		Property:   ev.Property,
		Value:      ev.NewValue,
		OldValue:   ev.OldValue,
		Timestamp:  ev.Timestamp.UTC(),
	}

	if r.sinks.MQTT != nil {
		payload, err := json.Marshal(msg)
		if err != nil {
			r.logger.Error("encoding property message", "device_id", ev.ID, "error", err)
		} else {
			topic := r.sinks.MQTT.Topics().DeviceState(topicIdentifier(ev), ev.Property)
			if err := r.sinks.MQTT.PublishRetained(topic, payload); err != nil {
				r.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
			}
		}
	}

	if r.sinks.Metrics != nil {
		if v, ok := ev.NewValue.Float(); ok {
			r.sinks.Metrics.WritePropertyMetric(ev.ID, ev.Identifier(), ev.Property, v, ev.Timestamp)
		}
	}

	if r.sinks.History != nil {
		entry := history.Entry{
			DeviceID:   ev.ID,
			Identifier: ev.Identifier(),
			Property:   ev.Property,
			NewValue:   ev.NewValue.Raw(),
			OldValue:   ev.OldValue.Raw(),
			CreatedAt:  ev.Timestamp,
		}
		if err := r.sinks.History.Record(r.ctx, entry); err != nil {
			r.logger.Warn("history write failed", "device_id", ev.ID, "property", ev.Property, "error", err)
		}
	}

	if r.sinks.Hub != nil {
		r.sinks.Hub.Broadcast(ChannelPropertyUpdated, msg)
	}

	r.logger.Debug("relayed property update", "device_id", ev.ID, "property", ev.Property)
}

func (r *Relay) relayStatus(msg StatusMessage) {
	if r.sinks.MQTT != nil {
		payload, err := json.Marshal(msg)
		if err != nil {
			r.logger.Error("encoding status message", "error", err)
		} else {
			topic := r.sinks.MQTT.Topics().ControllerStatus()
			if err := r.sinks.MQTT.PublishRetained(topic, payload); err != nil {
				r.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
			}
		}
	}

	if r.sinks.Metrics != nil {
		r.sinks.Metrics.WriteStatusMetric(string(msg.Type), msg.Last, msg.Timestamp)
	}

	if r.sinks.Hub != nil {
		r.sinks.Hub.Broadcast(ChannelSystemStatus, msg)
	}

	r.logger.Info("controller status", "status", msg.Event.String())
}

// handleCommand invokes <identifier>.<action> with the payload's JSON array
// as arguments. An empty payload calls the action without arguments.
func (r *Relay) handleCommand(topic string, payload []byte) error {
	r.mu.RLock()
	topics := r.sinks.MQTT.Topics()
	ctx := r.ctx
	r.mu.RUnlock()

	ident, action, ok := topics.ParseCommand(topic)
	if !ok {
		return fmt.Errorf("relay: not a command topic: %s", topic)
	}

	args, err := parseArgs(payload)
	if err != nil {
		return fmt.Errorf("relay: command %s: %w", topic, err)
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if _, err := r.source.Call(ctx, ident, action, args...); err != nil {
		return fmt.Errorf("relay: calling %s on %s: %w", action, ident, err)
	}

	r.logger.Info("mqtt command executed", "identifier", ident, "action", action, "args", len(args))
	return nil
}

func parseArgs(payload []byte) ([]any, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var args []any
	if err := json.Unmarshal(payload, &args); err != nil {
		return nil, fmt.Errorf("payload must be a JSON array: %w", err)
	}
	return args, nil
}

// schedulePruneLocked runs retention once now and then every PruneInterval.
func (r *Relay) schedulePruneLocked() {
	run := r.run
	r.pruneTimer = r.clock.AfterFunc(0, func() { r.prune(run) })
}

// prune deletes expired history. A prune left over from a previous
// Start/Stop cycle does nothing.
func (r *Relay) prune(run uint64) {
	r.mu.RLock()
	ctx := r.ctx
	current := r.running && r.run == run
	r.mu.RUnlock()
	if !current {
		return
	}

	n, err := r.sinks.History.Prune(ctx, r.cfg.Retention)
	switch {
	case err != nil:
		r.logger.Warn("history prune failed", "error", err)
	case n > 0:
		r.logger.Info("history pruned", "deleted", n, "retention", r.cfg.Retention)
	}

	r.mu.Lock()
	if r.running && r.run == run {
		r.pruneTimer = r.clock.AfterFunc(r.cfg.PruneInterval, func() { r.prune(run) })
	}
	r.mu.Unlock()
}
