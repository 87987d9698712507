package hc2

import (
	"time"

	"github.com/nerrad567/hc2-sync/internal/clock"
	"github.com/nerrad567/hc2-sync/internal/controller"
)

// Default option values.
const (
	DefaultHost            = "192.168.1.69"
	DefaultPort            = 80
	DefaultUser            = "admin"
	DefaultConnectTimeout  = 7000 * time.Millisecond
	DefaultPollingInterval = 1000 * time.Millisecond
	DefaultPollingTimeout  = 3000 * time.Millisecond
)

// Options configures a Client. Zero fields take the defaults above.
type Options struct {
	Host     string
	Port     int
	User     string
	Password string

	// ConnectTimeout bounds every request and is the delay between
	// retries of persistent queries.
	ConnectTimeout time.Duration

	// PollingInterval is the pause between refreshStates polls.
	PollingInterval time.Duration

	// PollingTimeout is accepted for configuration compatibility. Poll
	// requests are bounded by ConnectTimeout.
	PollingTimeout time.Duration

	// Debug enables debug logging to stderr when Logger is nil.
	Debug bool

	// ClientID tags log lines. A random UUID is used when empty.
	ClientID string

	// Logger receives structured logs from every component (optional).
	Logger Logger

	// Transport performs HTTP requests (optional, defaults to
	// controller.NewHTTPTransport(nil)).
	Transport controller.Transport

	// Clock drives retry and polling timers (optional).
	Clock clock.Clock
}

// DefaultOptions returns the option defaults.
func DefaultOptions() Options {
	return Options{
		Host:            DefaultHost,
		Port:            DefaultPort,
		User:            DefaultUser,
		ConnectTimeout:  DefaultConnectTimeout,
		PollingInterval: DefaultPollingInterval,
		PollingTimeout:  DefaultPollingTimeout,
	}
}

// withDefaults fills zero fields.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Host == "" {
		o.Host = d.Host
	}
	if o.Port == 0 {
		o.Port = d.Port
	}
	if o.User == "" {
		o.User = d.User
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = d.ConnectTimeout
	}
	if o.PollingInterval <= 0 {
		o.PollingInterval = d.PollingInterval
	}
	if o.PollingTimeout <= 0 {
		o.PollingTimeout = d.PollingTimeout
	}
	if o.Transport == nil {
		o.Transport = controller.NewHTTPTransport(nil)
	}
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	return o
}
