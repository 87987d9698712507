package influxdb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/hc2-sync/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	// Fallbacks for a zero or negative batch_size / flush_interval.
	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// Client records device property values and controller status changes
// as InfluxDB points. Writes go through the non-blocking batched write
// API; failures arrive later on the SetOnError callback.
//
// A zero Client, or one after Close, drops writes silently.
type Client struct {
	client influxdb2.Client
	points api.WriteAPI

	mu      sync.RWMutex
	open    bool
	onError func(err error)
}

// clientOptions maps batch_size and flush_interval (seconds) onto the
// library options.
func clientOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize)
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}

	return influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds()))
}

// Connect pings the server at cfg.URL and prepares a write API for
// cfg.Org and cfg.Bucket.
//
// Parameters:
//   - cfg: The influxdb configuration section
//
// Returns:
//   - *Client: A client ready to write
//   - error: ErrDisabled when cfg.Enabled is false, ErrConnectionFailed
//     when the ping fails or the server reports unhealthy
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()
	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.URL, err)
	}

	c := &Client{
		client: client,
		points: client.WriteAPI(cfg.Org, cfg.Bucket),
		open:   true,
	}
	go c.forwardErrors(c.points.Errors())
	return c, nil
}

// ping reports an error unless the server answers healthy.
func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return err
	}
	if !healthy {
		return errors.New("server not healthy")
	}
	return nil
}

// forwardErrors hands async write failures to the registered callback
// until the write API closes the channel.
func (c *Client) forwardErrors(errs <-chan error) {
	for err := range errs {
		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()

		if callback != nil {
			callback(err)
		}
	}
}

// writer returns the write API, or nil once the client is closed.
func (c *Client) writer() api.WriteAPI {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.open {
		return nil
	}
	return c.points
}

// Close flushes buffered points and closes the connection.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.mu.Lock()
	wasOpen := c.open
	c.open = false
	c.mu.Unlock()

	if wasOpen {
		c.points.Flush()
		c.client.Close()
	}
	return nil
}

// HealthCheck pings the server, bounded by defaultPingTimeout.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := ping(ctx, c.client); err != nil {
		return fmt.Errorf("%w: health check: %w", ErrNotConnected, err)
	}
	return nil
}

// IsConnected reports whether Connect succeeded and Close has not run.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.open
}

// SetOnError registers the callback for async write failures.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	c.onError = callback
	c.mu.Unlock()
}

// Flush blocks until buffered points are sent. No-op when closed.
func (c *Client) Flush() {
	if w := c.writer(); w != nil {
		w.Flush()
	}
}
