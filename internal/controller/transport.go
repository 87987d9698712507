package controller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxBodySize caps how much of a response body is read (16MB).
const maxBodySize = 16 << 20

// Request is a single GET against the controller.
type Request struct {
	URL      string
	User     string
	Password string
	Timeout  time.Duration
}

// Response is the raw outcome of a Request.
type Response struct {
	StatusCode int
	Status     string
	Body       []byte
}

// Transport performs GET requests with basic auth and a timeout.
//
// It returns an error only when no response was received (timeout,
// connection refused). Non-2xx statuses are returned as a Response.
type Transport interface {
	Get(ctx context.Context, req Request) (*Response, error)
}

// HTTPTransport is the net/http implementation of Transport.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates a transport using client, or a fresh
// http.Client when client is nil.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{client: client}
}

// Get implements Transport.
func (t *HTTPTransport) Get(ctx context.Context, req Request) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.SetBasicAuth(req.User, req.Password)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       body,
	}, nil
}
