package hc2_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/hc2-sync/internal/clock"
	"github.com/nerrad567/hc2-sync/internal/controller/controllertest"
	"github.com/nerrad567/hc2-sync/internal/directory"
	"github.com/nerrad567/hc2-sync/internal/events"
	"github.com/nerrad567/hc2-sync/internal/hc2"
	"github.com/nerrad567/hc2-sync/internal/status"
)

func newTestClient(t *testing.T) (*hc2.Client, *controllertest.Transport, *clock.Fake) {
	t.Helper()

	tr := controllertest.New()
	tr.Set("/rooms", controllertest.Reply{Body: `[{"id":1,"name":"Kitchen"}]`})
	tr.Set("/devices", controllertest.Reply{Body: `[{"id":10,"name":"Light","roomID":1,"properties":{},"actions":{"turnOn":0,"setValue":1}}]`})

	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	client := hc2.New(hc2.Options{
		Password:  "secret",
		ClientID:  "test-client",
		Transport: tr,
		Clock:     clk,
	})
	t.Cleanup(client.Close)
	return client, tr, clk
}

func TestClient_EndToEndDevices(t *testing.T) {
	client, _, _ := newTestClient(t)

	devices, err := client.Devices(context.Background())
	if err != nil {
		t.Fatalf("Devices() error = %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("len(devices) = %d, want 1", len(devices))
	}
	if want := []string{"kitchen/light"}; !slices.Equal(devices[0].Identifiers, want) {
		t.Errorf("Identifiers = %v, want %v", devices[0].Identifiers, want)
	}
}

func TestClient_UsesDefaults(t *testing.T) {
	client, tr, _ := newTestClient(t)

	if _, err := client.Rooms(context.Background()); err != nil {
		t.Fatalf("Rooms() error = %v", err)
	}

	reqs := tr.All()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	req := reqs[0]
	if req.URL != "http://192.168.1.69:80/api/rooms" {
		t.Errorf("URL = %q", req.URL)
	}
	if req.User != "admin" || req.Password != "secret" {
		t.Errorf("credentials = %q/%q, want admin/secret", req.User, req.Password)
	}
	if req.Timeout != hc2.DefaultConnectTimeout {
		t.Errorf("Timeout = %v, want %v", req.Timeout, hc2.DefaultConnectTimeout)
	}
	if client.ID() != "test-client" {
		t.Errorf("ID() = %q, want test-client", client.ID())
	}
}

func TestClient_GeneratesID(t *testing.T) {
	a := hc2.New(hc2.Options{Transport: controllertest.New()})
	b := hc2.New(hc2.Options{Transport: controllertest.New()})
	defer a.Close()
	defer b.Close()

	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("IDs = %q, %q, want distinct non-empty", a.ID(), b.ID())
	}
}

func TestClient_Call(t *testing.T) {
	client, tr, _ := newTestClient(t)
	tr.Set("/callAction", controllertest.Reply{Status: 202, Body: "ok"})
	ctx := context.Background()

	body, err := client.Call(ctx, "kitchen/light", "setValue", 55)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("body = %q, want ok", body)
	}

	reqs := tr.Requests("/callAction")
	if len(reqs) != 1 {
		t.Fatalf("callAction requests = %d, want 1", len(reqs))
	}
	q := controllertest.Query(reqs[0])
	if q.Get("deviceID") != "10" || q.Get("name") != "setValue" || q.Get("arg1") != "55" {
		t.Errorf("query = %v", q)
	}
}

func TestClient_CallErrors(t *testing.T) {
	client, tr, _ := newTestClient(t)
	ctx := context.Background()

	if _, err := client.Call(ctx, "kitchen/light", "explode"); !errors.Is(err, directory.ErrActionNotSupported) {
		t.Errorf("unsupported action error = %v, want ErrActionNotSupported", err)
	}
	if _, err := client.Call(ctx, "garage/door", "turnOn"); !errors.Is(err, directory.ErrDeviceNotFound) {
		t.Errorf("unknown identifier error = %v, want ErrDeviceNotFound", err)
	}
	if got := tr.Count("/callAction"); got != 0 {
		t.Errorf("callAction requests = %d, want 0", got)
	}
}

func TestClient_EventsAndSystem(t *testing.T) {
	client, tr, clk := newTestClient(t)
	tr.Set("/refreshStates", controllertest.Reply{
		Body: `{"last":42,"events":[{"type":"DevicePropertyUpdatedEvent","data":{"id":10,"property":"value","newValue":"1","oldValue":"0"}}]}`,
	})

	var (
		mu      sync.Mutex
		got     []events.Event
		systems []status.Event
	)
	client.System(func(e status.Event) {
		mu.Lock()
		systems = append(systems, e)
		mu.Unlock()
	})
	client.Events(events.Criteria{Properties: []string{"value"}}, func(e events.Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})

	clk.Advance(0)
	clk.Advance(hc2.DefaultPollingInterval)

	mu.Lock()
	defer mu.Unlock()

	if len(got) != 2 || got[0].Identifier() != "kitchen/light" {
		t.Errorf("events = %+v, want two for kitchen/light", got)
	}
	// The first poll reports last=42, the directory refresh it triggers
	// reports connected (once for rooms and devices), and the second poll
	// reports last=42 again.
	want := []status.Event{status.Last(42), status.Connected(), status.Last(42)}
	if !slices.Equal(systems, want) {
		t.Errorf("system events = %v, want %v", systems, want)
	}

	client.Disconnect()
	if got := client.Engine().Cursor(); got != 0 {
		t.Errorf("Cursor() after Disconnect = %d, want 0", got)
	}
}
