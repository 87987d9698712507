package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/nerrad567/hc2-sync/internal/clock"
	"github.com/nerrad567/hc2-sync/internal/status"
)

// DefaultConnectTimeout is used when Config.ConnectTimeout is not set.
const DefaultConnectTimeout = 7 * time.Second

// Config holds the connection settings for the controller.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string

	// ConnectTimeout bounds each request and is also the delay between
	// retries of a persistent query.
	ConnectTimeout time.Duration
}

// Logger defines the logging interface used by the Channel.
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

// StatusPublisher receives the connection state derived from each query.
// *status.Channel satisfies it.
type StatusPublisher interface {
	Publish(event status.Event) bool
}

// Channel issues queries against the controller.
//
// Thread Safety:
//   - Query may be called from multiple goroutines. Each call is an
//     independent request/retry sequence.
type Channel struct {
	cfg       Config
	baseURL   string
	transport Transport
	status    StatusPublisher
	clock     clock.Clock
	logger    Logger
}

// NewChannel creates a query channel.
//
// Parameters:
//   - cfg: Controller address, credentials and timeout
//   - transport: HTTP collaborator (use NewHTTPTransport(nil) in production)
//   - publisher: Receives connected/error/last events (may be nil)
//
// Returns:
//   - *Channel: Ready for use
func NewChannel(cfg Config, transport Transport, publisher StatusPublisher) *Channel {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	return &Channel{
		cfg:       cfg,
		baseURL:   "http://" + net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)) + "/api",
		transport: transport,
		status:    publisher,
		clock:     clock.Real(),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the channel.
func (c *Channel) SetLogger(logger Logger) {
	c.logger = logger
}

// SetClock replaces the clock used for retry delays.
func (c *Channel) SetClock(clk clock.Clock) {
	c.clock = clk
}

// URL returns the absolute URL for an API path such as "/rooms".
func (c *Channel) URL(path string) string {
	return c.baseURL + path
}

// Query performs a GET on path and decodes the JSON body into out.
//
// A status of 200 or 202 with a decodable body is a success; everything
// else is a *QueryError. On success a "last" event is published when the
// body carries a non-zero "last" field, otherwise a "connected" event.
//
// With allowRetry set, a failure publishes an "error" event and the same
// request is retried after ConnectTimeout, indefinitely, until it succeeds
// or ctx is cancelled. Without it the first failure is returned.
//
// Parameters:
//   - ctx: Cancels the request and any pending retry
//   - path: API path relative to /api, including any query string
//   - allowRetry: Persistent-subscription mode
//   - out: Decode target, or nil to discard the body
//
// Returns:
//   - error: nil on success, *QueryError, or the context error
func (c *Channel) Query(ctx context.Context, path string, allowRetry bool, out any) error {
	_, err := c.query(ctx, path, allowRetry, out)
	return err
}

// QueryRaw is Query without decoding. The raw body is returned.
func (c *Channel) QueryRaw(ctx context.Context, path string, allowRetry bool) ([]byte, error) {
	return c.query(ctx, path, allowRetry, nil)
}

func (c *Channel) query(ctx context.Context, path string, allowRetry bool, out any) ([]byte, error) {
	for {
		body, err := c.attempt(ctx, path, out)
		if err == nil {
			return body, nil
		}
		if !allowRetry {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("query %s: %w", path, ctxErr)
		}

		details := err.Error()
		var qe *QueryError
		if errors.As(err, &qe) {
			details = qe.Details
		}
		c.publish(status.Error(details))
		c.logger.Warn("controller query failed, retrying",
			"path", path,
			"error", err,
			"retry_in", c.cfg.ConnectTimeout,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("query %s: %w", path, ctx.Err())
		case <-c.clock.After(c.cfg.ConnectTimeout):
		}
	}
}

// attempt performs one request and classifies it.
func (c *Channel) attempt(ctx context.Context, path string, out any) ([]byte, error) {
	url := c.URL(path)
	c.logger.Debug("controller query", "url", url)

	resp, err := c.transport.Get(ctx, Request{
		URL:      url,
		User:     c.cfg.User,
		Password: c.cfg.Password,
		Timeout:  c.cfg.ConnectTimeout,
	})
	if err != nil {
		return nil, &QueryError{Path: path, Details: err.Error(), Err: err}
	}

	if resp.StatusCode != 200 && resp.StatusCode != 202 {
		details := resp.Status
		if details == "" {
			details = strconv.Itoa(resp.StatusCode)
		}
		return nil, &QueryError{
			Path:       path,
			StatusCode: resp.StatusCode,
			Details:    details,
			Err:        ErrUnexpectedStatus,
		}
	}

	if out != nil {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return nil, &QueryError{
				Path:       path,
				StatusCode: resp.StatusCode,
				Details:    "invalid response body: " + err.Error(),
				Err:        err,
			}
		}
	}

	if last, ok := restartMarker(resp.Body); ok {
		c.publish(status.Last(last))
	} else {
		c.publish(status.Connected())
	}

	return resp.Body, nil
}

func (c *Channel) publish(event status.Event) {
	if c.status != nil {
		c.status.Publish(event)
	}
}

// restartMarker extracts a non-zero top-level "last" number from a JSON
// object body.
func restartMarker(body []byte) (int64, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return 0, false
	}

	var marker struct {
		Last json.Number `json:"last"`
	}
	if err := json.Unmarshal(trimmed, &marker); err != nil || marker.Last == "" {
		return 0, false
	}

	last, err := marker.Last.Int64()
	if err != nil {
		f, ferr := marker.Last.Float64()
		if ferr != nil {
			return 0, false
		}
		last = int64(f)
	}
	return last, last != 0
}
