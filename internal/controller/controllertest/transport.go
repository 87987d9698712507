// Package controllertest provides a scripted controller.Transport for tests.
package controllertest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/nerrad567/hc2-sync/internal/controller"
)

// Reply is one scripted answer.
type Reply struct {
	// Status is the HTTP status code. Zero means 200.
	Status int

	// Body is returned verbatim.
	Body string

	// Err makes the transport fail without a response.
	Err error

	// Wait, when non-nil, blocks the request until it is closed or the
	// request context ends.
	Wait <-chan struct{}
}

// JSON returns a 200 reply whose body is v encoded as JSON.
func JSON(v any) Reply {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("controllertest: encoding reply: %v", err))
	}
	return Reply{Status: http.StatusOK, Body: string(data)}
}

// Transport answers GET requests from per-path reply queues.
//
// Paths are the API path without the "/api" prefix or query string, e.g.
// "/rooms" or "/refreshStates". Replies for a path are consumed in order
// and the final one is repeated. Unscripted paths answer 404.
type Transport struct {
	mu       sync.Mutex
	replies  map[string][]Reply
	requests []controller.Request
}

// New creates an empty Transport.
func New() *Transport {
	return &Transport{replies: make(map[string][]Reply)}
}

// Queue appends replies for path.
func (t *Transport) Queue(path string, replies ...Reply) {
	t.mu.Lock()
	t.replies[path] = append(t.replies[path], replies...)
	t.mu.Unlock()
}

// Set replaces all replies for path.
func (t *Transport) Set(path string, replies ...Reply) {
	t.mu.Lock()
	t.replies[path] = append([]Reply(nil), replies...)
	t.mu.Unlock()
}

// Get implements controller.Transport.
func (t *Transport) Get(ctx context.Context, req controller.Request) (*controller.Response, error) {
	path := Path(req.URL)

	t.mu.Lock()
	t.requests = append(t.requests, req)
	queue := t.replies[path]
	var reply Reply
	found := len(queue) > 0
	if found {
		reply = queue[0]
		if len(queue) > 1 {
			t.replies[path] = queue[1:]
		}
	}
	t.mu.Unlock()

	if !found {
		return &controller.Response{StatusCode: http.StatusNotFound, Status: "404 Not Found"}, nil
	}

	if reply.Wait != nil {
		select {
		case <-reply.Wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if reply.Err != nil {
		return nil, reply.Err
	}

	code := reply.Status
	if code == 0 {
		code = http.StatusOK
	}
	return &controller.Response{
		StatusCode: code,
		Status:     fmt.Sprintf("%d %s", code, http.StatusText(code)),
		Body:       []byte(reply.Body),
	}, nil
}

// Requests returns the full URLs requested for path, in order.
func (t *Transport) Requests(path string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var urls []string
	for _, r := range t.requests {
		if Path(r.URL) == path {
			urls = append(urls, r.URL)
		}
	}
	return urls
}

// Count returns how many requests were made for path.
func (t *Transport) Count(path string) int {
	return len(t.Requests(path))
}

// All returns every request made so far.
func (t *Transport) All() []controller.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]controller.Request(nil), t.requests...)
}

// Path strips scheme, host, the "/api" prefix and the query string.
func Path(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return strings.TrimPrefix(u.Path, "/api")
}

// Query returns the parsed query string of a requested URL.
func Query(rawURL string) url.Values {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return u.Query()
}
