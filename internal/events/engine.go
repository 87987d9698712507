package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/hc2-sync/internal/clock"
	"github.com/nerrad567/hc2-sync/internal/directory"
)

// DefaultPollingInterval is used when Config.PollingInterval is not set.
const DefaultPollingInterval = time.Second

// Querier performs controller queries. *controller.Channel satisfies it.
type Querier interface {
	Query(ctx context.Context, path string, allowRetry bool, out any) error
}

// Directory is the part of the directory cache the engine needs.
// *directory.Directory satisfies it.
type Directory interface {
	IsFullyKnown(ids []int) bool
	SyncDevices(ctx context.Context) error
	Resolve(id int) (*directory.Device, bool)
}

// Logger defines the logging interface used by the Engine.
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

// Config holds the engine's timing.
type Config struct {
	// PollingInterval is the delay between the end of one iteration's
	// query and the start of the next.
	PollingInterval time.Duration
}

type subscription struct {
	criteria Criteria
	handler  Handler
}

// Engine is the event synchronisation loop.
//
// Thread Safety:
//   - Subscribe, Stream, Disconnect and the accessors are safe for
//     concurrent use.
//   - Iterations never overlap. Handlers are called from the loop, one
//     event at a time, in response order.
type Engine struct {
	querier   Querier
	directory Directory
	cfg       Config
	clock     clock.Clock
	logger    Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	subs    map[uint64]subscription
	nextSub uint64
	cursor  int64
	running bool
	timer   clock.Timer

	// epoch changes on Disconnect. An iteration started in an older epoch
	// does not write the cursor.
	epoch uint64

	// run changes whenever the loop starts or stops. An iteration from an
	// older run does not reschedule.
	run uint64

	// iterMu keeps iterations from overlapping.
	iterMu sync.Mutex
}

// New creates an idle engine. Polling starts with the first subscriber.
//
// Parameters:
//   - querier: Controller query channel
//   - dir: Directory cache used to correlate device ids
//   - cfg: Polling interval (defaults to DefaultPollingInterval)
//
// Returns:
//   - *Engine: Idle engine
func New(querier Querier, dir Directory, cfg Config) *Engine {
	if cfg.PollingInterval <= 0 {
		cfg.PollingInterval = DefaultPollingInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		querier:   querier,
		directory: dir,
		cfg:       cfg,
		clock:     clock.Real(),
		logger:    noopLogger{},
		ctx:       ctx,
		cancel:    cancel,
		subs:      make(map[uint64]subscription),
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// SetClock replaces the clock. Must be called before the first Subscribe.
func (e *Engine) SetClock(clk clock.Clock) {
	e.clock = clk
}

// =============================================================================
// Subscriptions
// =============================================================================

// Subscribe registers handler for events matching criteria. The first
// subscriber starts the poll loop; later ones share it.
//
// The returned function removes the subscription. When the last
// subscription is removed the loop stops, keeping its cursor.
func (e *Engine) Subscribe(criteria Criteria, handler Handler) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = subscription{criteria: criteria, handler: handler}
	if !e.running {
		e.startLocked()
	}
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { e.unsubscribe(id) })
	}
}

// Stream returns a channel of events matching criteria. The channel is
// closed once ctx is done. A send blocks the loop until it is received or
// ctx ends.
func (e *Engine) Stream(ctx context.Context, criteria Criteria) <-chan Event {
	ch := make(chan Event)

	var (
		mu     sync.Mutex
		closed bool
	)

	unsubscribe := e.Subscribe(criteria, func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- ev:
		case <-ctx.Done():
		}
	})

	go func() {
		<-ctx.Done()
		unsubscribe()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()

	return ch
}

func (e *Engine) unsubscribe(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.subs, id)
	if len(e.subs) == 0 && e.running {
		e.stopLocked()
		e.logger.Debug("last subscriber left, poll loop stopped", "cursor", e.cursor)
	}
}

// SubscriberCount returns the number of active subscriptions.
func (e *Engine) SubscriberCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// =============================================================================
// Loop control
// =============================================================================

// startLocked kicks off the first iteration. Caller holds e.mu.
func (e *Engine) startLocked() {
	e.running = true
	e.run++
	run := e.run
	e.timer = e.clock.AfterFunc(0, func() { e.iterate(run) })
	e.logger.Debug("poll loop started", "cursor", e.cursor)
}

// stopLocked cancels the pending iteration. Caller holds e.mu.
func (e *Engine) stopLocked() {
	e.running = false
	e.run++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// Disconnect resets the cursor to 0 and cancels the next scheduled
// iteration. A query already in flight is not cancelled: its events are
// still emitted but it neither moves the cursor nor reschedules. This
// includes a poll that is failing: it keeps retrying against the
// controller every connect timeout until it succeeds or Close is called.
//
// Subscriptions stay registered. A later Subscribe restarts the loop
// from cursor 0.
func (e *Engine) Disconnect() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked()
	e.epoch++
	e.cursor = 0
	e.logger.Info("disconnected from event stream")
}

// Close disconnects and aborts any in-flight query retries. The engine
// cannot be restarted afterwards.
func (e *Engine) Close() {
	e.Disconnect()
	e.cancel()
}

// Cursor returns the last acknowledged event sequence number.
func (e *Engine) Cursor() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

// Running reports whether the poll loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// =============================================================================
// Iteration
// =============================================================================

// pollPath builds the refreshStates query for cursor.
func pollPath(cursor int64) string {
	return fmt.Sprintf("/refreshStates?last=%d&lang=en", cursor)
}

// iterate runs one poll cycle for the given run.
func (e *Engine) iterate(run uint64) {
	e.iterMu.Lock()
	defer e.iterMu.Unlock()

	e.mu.Lock()
	if run != e.run {
		e.mu.Unlock()
		return
	}
	cursor := e.cursor
	epoch := e.epoch
	e.mu.Unlock()

	// 1. Persistent query.
	var resp wireResponse
	if err := e.querier.Query(e.ctx, pollPath(cursor), true, &resp); err != nil {
		// Only a cancelled context ends a persistent query.
		e.logger.Debug("poll aborted", "error", err)
		return
	}

	// 2. Cursor follows the controller even when nothing changed.
	e.mu.Lock()
	if epoch == e.epoch {
		e.cursor = resp.Last
	}
	e.mu.Unlock()

	// 3. Property updates only.
	updates := extractUpdates(resp.Events, e.logger)

	// 4. One refresh when any id is unfamiliar.
	if len(updates) > 0 {
		ids := make([]int, len(updates))
		for i, u := range updates {
			ids[i] = u.ID
		}
		if !e.directory.IsFullyKnown(ids) {
			e.logger.Debug("unfamiliar device in events, refreshing directory")
			if err := e.directory.SyncDevices(e.ctx); err != nil {
				e.logger.Warn("directory refresh failed", "error", err)
			}
		}
	}

	// 5. Next iteration.
	e.mu.Lock()
	if run == e.run && e.running {
		e.timer = e.clock.AfterFunc(e.cfg.PollingInterval, func() { e.iterate(run) })
	}
	e.mu.Unlock()

	// 6. Correlate and emit.
	for _, u := range updates {
		e.emit(e.correlate(u))
	}
}

// extractUpdates decodes the property-update events, in order.
func extractUpdates(events []wireEvent, logger Logger) []wireData {
	var out []wireData
	for _, ev := range events {
		if ev.Type != PropertyUpdatedType {
			continue
		}
		var data wireData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			logger.Warn("skipping undecodable property event", "error", err)
			continue
		}
		out = append(out, data)
	}
	return out
}

// correlate stamps an update with its device's identifiers. Unresolvable
// ids get the placeholder, which the directory remembers.
func (e *Engine) correlate(u wireData) Event {
	dev, known := e.directory.Resolve(u.ID)
	if !known {
		e.logger.Debug("event for inaccessible device", "device_id", u.ID, "property", u.Property)
	}
	return Event{
		ID:          u.ID,
		Identifiers: dev.Identifiers,
		Property:    u.Property,
		NewValue:    u.NewValue,
		OldValue:    u.OldValue,
		Timestamp:   e.clock.Now(),
	}
}

// emit delivers ev to every matching subscriber.
func (e *Engine) emit(ev Event) {
	e.mu.Lock()
	targets := make([]subscription, 0, len(e.subs))
	for _, sub := range e.subs {
		if sub.criteria.Matches(ev) {
			targets = append(targets, sub)
		}
	}
	e.mu.Unlock()

	for _, sub := range targets {
		e.deliver(sub.handler, ev)
	}
}

func (e *Engine) deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event handler panicked",
				"device_id", ev.ID,
				"property", ev.Property,
				"panic", r,
			)
		}
	}()
	h(ev)
}
