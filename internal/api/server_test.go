package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/hc2-sync/internal/clock"
	"github.com/nerrad567/hc2-sync/internal/controller"
	"github.com/nerrad567/hc2-sync/internal/controller/controllertest"
	"github.com/nerrad567/hc2-sync/internal/directory"
	"github.com/nerrad567/hc2-sync/internal/hc2"
	"github.com/nerrad567/hc2-sync/internal/history"
	"github.com/nerrad567/hc2-sync/internal/infrastructure/config"
	"github.com/nerrad567/hc2-sync/internal/infrastructure/database"
	"github.com/nerrad567/hc2-sync/internal/infrastructure/logging"
	"github.com/nerrad567/hc2-sync/internal/relay"
	"github.com/nerrad567/hc2-sync/migrations"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

const (
	roomsBody   = `[{"id":1,"name":"Kitchen"},{"id":2,"name":"Living Room"}]`
	devicesBody = `[
		{"id":10,"name":"Light","roomID":1,"properties":{"value":"1"},"actions":{"turnOn":0,"setValue":1}},
		{"id":11,"name":"Lamp","roomID":2,"properties":{"value":"0"},"actions":{"turnOn":0}}
	]`
)

type testEnv struct {
	srv       *Server
	router    http.Handler
	transport *controllertest.Transport
	client    *hc2.Client
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

// testServer creates a Server over a scripted controller whose directory
// has already been loaded.
func testServer(t *testing.T, mutate ...func(*Deps)) *testEnv {
	t.Helper()

	tr := controllertest.New()
	tr.Set("/rooms", controllertest.Reply{Body: roomsBody})
	tr.Set("/devices", controllertest.Reply{Body: devicesBody})

	client := hc2.New(hc2.Options{
		Password:  "secret",
		ClientID:  "api-test",
		Transport: tr,
		Clock:     clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	})
	t.Cleanup(client.Close)

	if _, err := client.Devices(context.Background()); err != nil {
		t.Fatalf("Devices() error = %v", err)
	}

	deps := Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:  testLogger(),
		Client:  client,
		Version: "test",
	}
	for _, fn := range mutate {
		fn(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.hub.Run(ctx)

	return &testEnv{srv: srv, router: srv.buildRouter(), transport: tr, client: client}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return resp
}

// ─── Construction ──────────────────────────────────────────────────

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{Client: hc2.New(hc2.Options{Transport: controllertest.New()})}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: testLogger()}); err == nil {
		t.Error("New() without client should fail")
	}
}

func TestServer_CloseBeforeStart(t *testing.T) {
	env := testServer(t)
	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := env.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
}

// ─── Health / Middleware ───────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	resp := decodeBody(t, w)
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
}

func TestRequestID(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID should be generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-id-123")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "client-id-123" {
		t.Errorf("X-Request-ID = %q, want client-id-123", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	env := testServer(t, func(d *Deps) {
		d.Config.CORS.AllowedOrigins = []string{"http://panel.local"}
	})

	tests := []struct {
		origin    string
		wantAllow string
	}{
		{"http://panel.local", "http://panel.local"},
		{"http://evil.example", ""},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/v1/devices", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)

			if w.Code != http.StatusNoContent {
				t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	env := testServer(t)
	if w := env.do(t, http.MethodGet, "/api/v1/nonexistent", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Authentication ────────────────────────────────────────────────

func signToken(t *testing.T, secret string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "dashboard",
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return signed
}

func TestAuth(t *testing.T) {
	env := testServer(t, func(d *Deps) { d.Config.JWTSecret = testSecret })

	valid := signToken(t, testSecret, time.Now().Add(time.Hour))
	expired := signToken(t, testSecret, time.Now().Add(-time.Hour))
	wrongKey := signToken(t, "another-secret-key-at-least-32-chars", time.Now().Add(time.Hour))

	tests := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{"health is public", "/api/v1/health", "", http.StatusOK},
		{"missing token", "/api/v1/devices", "", http.StatusUnauthorized},
		{"malformed header", "/api/v1/devices", "Token " + valid, http.StatusUnauthorized},
		{"valid token", "/api/v1/devices", "Bearer " + valid, http.StatusOK},
		{"expired token", "/api/v1/devices", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong key", "/api/v1/devices", "Bearer " + wrongKey, http.StatusUnauthorized},
		{"query token", "/api/v1/devices?access_token=" + valid, "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestAuth_DisabledWithoutSecret(t *testing.T) {
	env := testServer(t)
	if w := env.do(t, http.MethodGet, "/api/v1/devices", ""); w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

// ─── Rooms ─────────────────────────────────────────────────────────

func TestListRooms(t *testing.T) {
	env := testServer(t)
	before := len(env.transport.All())

	w := env.do(t, http.MethodGet, "/api/v1/rooms", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := decodeBody(t, w)["count"]; got != float64(2) {
		t.Errorf("count = %v, want 2", got)
	}
	if len(env.transport.All()) != before {
		t.Error("cached listing should not query the controller")
	}

	w = env.do(t, http.MethodGet, "/api/v1/rooms?refresh=true", "")
	if w.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := len(env.transport.Requests("/rooms")); got != 2 {
		t.Errorf("/rooms requests = %d, want 2", got)
	}
}

func TestListRooms_RefreshFailure(t *testing.T) {
	env := testServer(t)
	env.transport.Set("/rooms", controllertest.Reply{Status: http.StatusInternalServerError})

	if w := env.do(t, http.MethodGet, "/api/v1/rooms?refresh=true", ""); w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
}

func TestGetRoom(t *testing.T) {
	env := testServer(t)

	tests := []struct {
		name     string
		target   string
		want     int
		wantName string
	}{
		{"known room", "/api/v1/rooms/2", http.StatusOK, "Living Room"},
		{"unknown room", "/api/v1/rooms/0", http.StatusOK, "Unknown"},
		{"missing", "/api/v1/rooms/99", http.StatusNotFound, ""},
		{"invalid id", "/api/v1/rooms/abc", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.target, "")
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.wantName != "" {
				if got := decodeBody(t, w)["name"]; got != tt.wantName {
					t.Errorf("name = %v, want %s", got, tt.wantName)
				}
			}
		})
	}
}

// ─── Devices ───────────────────────────────────────────────────────

func TestListDevices(t *testing.T) {
	env := testServer(t)

	tests := []struct {
		name      string
		target    string
		wantCount float64
	}{
		{"all", "/api/v1/devices", 2},
		{"by room", "/api/v1/devices?room=living-room", 1},
		{"unknown room", "/api/v1/devices?room=garage", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.target, "")
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}
			if got := decodeBody(t, w)["count"]; got != tt.wantCount {
				t.Errorf("count = %v, want %v", got, tt.wantCount)
			}
		})
	}
}

func TestListDevices_Refresh(t *testing.T) {
	env := testServer(t)
	env.transport.Set("/devices", controllertest.Reply{
		Body: `[{"id":12,"name":"Fan","roomID":1,"properties":{},"actions":{}}]`,
	})

	w := env.do(t, http.MethodGet, "/api/v1/devices?refresh=true", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	resp := decodeBody(t, w)
	devices, _ := resp["devices"].([]any) //nolint:errcheck // checked by length
	if len(devices) != 1 {
		t.Fatalf("devices = %v, want 1 entry", resp["devices"])
	}
	if id := devices[0].(map[string]any)["id"]; id != float64(12) {
		t.Errorf("id = %v, want 12", id)
	}

	env.transport.Set("/devices", controllertest.Reply{Err: context.DeadlineExceeded})
	if w := env.do(t, http.MethodGet, "/api/v1/devices?refresh=true", ""); w.Code != http.StatusBadGateway {
		t.Errorf("failed refresh status = %d, want %d", w.Code, http.StatusBadGateway)
	}
}

func TestGetDevice(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodGet, "/api/v1/devices/10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	resp := decodeBody(t, w)
	if resp["name"] != "Light" {
		t.Errorf("name = %v, want Light", resp["name"])
	}
	props, _ := resp["properties"].(map[string]any) //nolint:errcheck // checked below
	if props["value"] != float64(1) {
		t.Errorf("properties.value = %v, want decoded 1", props["value"])
	}

	if w := env.do(t, http.MethodGet, "/api/v1/devices/99", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/devices/x", ""); w.Code != http.StatusBadRequest {
		t.Errorf("invalid status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestListIdentifiers(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodGet, "/api/v1/identifiers", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	resp := decodeBody(t, w)
	ids, _ := resp["identifiers"].([]any) //nolint:errcheck // checked by length
	want := []string{"kitchen/light", "living-room/lamp"}
	if len(ids) != len(want) {
		t.Fatalf("identifiers = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("identifiers[%d] = %v, want %s", i, ids[i], want[i])
		}
	}
}

func TestLookup(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodGet, "/api/v1/lookup/kitchen/light", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if id := decodeBody(t, w)["id"]; id != float64(10) {
		t.Errorf("id = %v, want 10", id)
	}

	before := len(env.transport.Requests("/devices"))
	if w := env.do(t, http.MethodGet, "/api/v1/lookup/garage/door", ""); w.Code != http.StatusNotFound {
		t.Errorf("miss status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if got := len(env.transport.Requests("/devices")); got != before+1 {
		t.Errorf("miss should refresh once: /devices requests = %d, want %d", got, before+1)
	}
}

func TestLookup_RefreshFailure(t *testing.T) {
	env := testServer(t)
	env.transport.Set("/rooms", controllertest.Reply{Status: http.StatusServiceUnavailable})

	if w := env.do(t, http.MethodGet, "/api/v1/lookup/garage/door", ""); w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
}

// ─── Actions ───────────────────────────────────────────────────────

func TestCallAction(t *testing.T) {
	env := testServer(t)
	env.transport.Set("/callAction", controllertest.Reply{Status: http.StatusAccepted, Body: "ok"})

	w := env.do(t, http.MethodPost, "/api/v1/devices/10/actions/setValue", `[55]`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["action"] != "setValue" || resp["device_id"] != float64(10) || resp["result"] != "ok" {
		t.Errorf("response = %v", resp)
	}

	reqs := env.transport.Requests("/callAction")
	if len(reqs) != 1 {
		t.Fatalf("callAction requests = %d, want 1", len(reqs))
	}
	q := controllertest.Query(reqs[0])
	if q.Get("deviceID") != "10" || q.Get("name") != "setValue" || q.Get("arg1") != "55" {
		t.Errorf("query = %v", q)
	}
}

func TestCallAction_Errors(t *testing.T) {
	env := testServer(t)

	tests := []struct {
		name   string
		target string
		body   string
		reply  controllertest.Reply
		want   int
	}{
		{"invalid device id", "/api/v1/devices/0/actions/turnOn", "", controllertest.Reply{}, http.StatusBadRequest},
		{"body not array", "/api/v1/devices/10/actions/setValue", `{"v":1}`, controllertest.Reply{}, http.StatusBadRequest},
		{"missing device", "/api/v1/devices/99/actions/turnOn", "", controllertest.Reply{}, http.StatusNotFound},
		{"unsupported action", "/api/v1/devices/11/actions/setValue", `[1]`, controllertest.Reply{}, http.StatusUnprocessableEntity},
		{"controller failure", "/api/v1/devices/10/actions/turnOn", "", controllertest.Reply{Status: http.StatusInternalServerError}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.transport.Set("/callAction", tt.reply)
			w := env.do(t, http.MethodPost, tt.target, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestRawResult(t *testing.T) {
	if rawResult(nil) != nil {
		t.Error("rawResult(nil) should be nil")
	}
	if got, ok := rawResult([]byte(`{"ok":true}`)).(json.RawMessage); !ok || string(got) != `{"ok":true}` {
		t.Errorf("rawResult(json) = %v", got)
	}
	if got := rawResult([]byte("accepted")); got != "accepted" {
		t.Errorf("rawResult(text) = %v, want accepted", got)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"query failure", fmt.Errorf("%w: /devices", controller.ErrQueryFailed), http.StatusBadGateway},
		{"lookup with failed refresh", fmt.Errorf("%w: %w", directory.ErrDeviceNotFound, controller.ErrQueryFailed), http.StatusBadGateway},
		{"device", directory.ErrDeviceNotFound, http.StatusNotFound},
		{"room", fmt.Errorf("room 9: %w", directory.ErrRoomNotFound), http.StatusNotFound},
		{"action", directory.ErrActionNotSupported, http.StatusUnprocessableEntity},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

// ─── History ───────────────────────────────────────────────────────

func setupHistory(t *testing.T) history.Repository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "api.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return history.NewSQLiteRepository(db.DB)
}

func TestGetDeviceHistory(t *testing.T) {
	repo := setupHistory(t)
	env := testServer(t, func(d *Deps) { d.History = repo })
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, value := range []string{"0", "1", "0"} {
		if err := repo.Record(ctx, history.Entry{
			DeviceID:   10,
			Identifier: "kitchen/light",
			Property:   "value",
			NewValue:   value,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		target    string
		want      int
		wantCount float64
	}{
		{"default limit", "/api/v1/devices/10/history", http.StatusOK, 3},
		{"explicit limit", "/api/v1/devices/10/history?limit=2", http.StatusOK, 2},
		{"since filter", "/api/v1/devices/10/history?since=" + base.Add(30*time.Second).Format(time.RFC3339Nano), http.StatusOK, 2},
		{"other device", "/api/v1/devices/11/history", http.StatusOK, 0},
		{"limit too large", "/api/v1/devices/10/history?limit=500", http.StatusBadRequest, 0},
		{"invalid since", "/api/v1/devices/10/history?since=yesterday", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.target, "")
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
			if tt.want == http.StatusOK {
				if got := decodeBody(t, w)["count"]; got != tt.wantCount {
					t.Errorf("count = %v, want %v", got, tt.wantCount)
				}
			}
		})
	}
}

func TestGetDeviceHistory_Disabled(t *testing.T) {
	env := testServer(t)
	if w := env.do(t, http.MethodGet, "/api/v1/devices/10/history", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestParseHistoryLimit(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", defaultHistoryLimit, false},
		{"10", 10, false},
		{"200", 200, false},
		{"201", 0, true},
		{"0", 0, true},
		{"-1", 0, true},
		{"ten", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseHistoryLimit(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("limit = %d, want %d", got, tt.want)
			}
		})
	}
}

// ─── Status / Metrics ──────────────────────────────────────────────

type stubChecker bool

func (s stubChecker) IsConnected() bool { return bool(s) }

func TestStatus(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodGet, "/api/v1/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	st, _ := decodeBody(t, w)["status"].(map[string]any) //nolint:errcheck // checked below
	if st["type"] != "connected" {
		t.Errorf("status.type = %v, want connected", st["type"])
	}
}

func TestMetrics(t *testing.T) {
	env := testServer(t, func(d *Deps) { d.MQTT = stubChecker(true) })

	w := env.do(t, http.MethodGet, "/api/v1/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var m SystemMetrics
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Version != "test" {
		t.Errorf("Version = %q, want test", m.Version)
	}
	if m.Directory.Rooms != 2 || m.Directory.Devices != 2 {
		t.Errorf("Directory = %+v, want 2 rooms and 2 devices", m.Directory)
	}
	if !m.MQTT.Enabled || !m.MQTT.Connected {
		t.Errorf("MQTT = %+v, want enabled and connected", m.MQTT)
	}
	if m.Controller.Status != "connected" || !m.Controller.Connected {
		t.Errorf("Controller = %+v, want connected", m.Controller)
	}
	if m.Events.Running {
		t.Error("event loop should not run without subscribers")
	}
	if m.Database != nil {
		t.Error("Database metrics should be omitted without a database")
	}
	if m.Runtime.Goroutines <= 0 {
		t.Error("Goroutines should be positive")
	}
}

// ─── WebSocket Hub ─────────────────────────────────────────────────

func testHub() *Hub {
	return NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, testLogger())
}

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	subscribed := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{relay.ChannelPropertyUpdated: {}},
	}
	other := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{relay.ChannelSystemStatus: {}},
	}
	wildcard := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{WSChannelAll: {}},
	}
	hub.Register(subscribed)
	hub.Register(other)
	hub.Register(wildcard)

	hub.Broadcast(relay.ChannelPropertyUpdated, relay.PropertyMessage{ID: 10, Identifier: "kitchen/light"})

	for name, c := range map[string]*WSClient{"subscribed": subscribed, "wildcard": wildcard} {
		select {
		case msg := <-c.send:
			var wsMsg WSMessage
			if err := json.Unmarshal(msg, &wsMsg); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if wsMsg.Type != WSTypeEvent || wsMsg.EventType != relay.ChannelPropertyUpdated {
				t.Errorf("%s: message = %+v", name, wsMsg)
			}
		case <-time.After(time.Second):
			t.Errorf("%s: timed out waiting for broadcast message", name)
		}
	}

	select {
	case <-other.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := testHub()

	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

func TestParseChannels(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"single", `{"channels":["device.property_updated"]}`, false},
		{"wildcard", `{"channels":["*"]}`, false},
		{"empty", `{"channels":[]}`, true},
		{"missing", ``, true},
		{"unknown channel", `{"channels":["scene.activated"]}`, true},
		{"not an object", `[1,2]`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseChannels(json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // Test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return msg
}

func TestWebSocket_SubscribeAndReceive(t *testing.T) {
	env := testServer(t, func(d *Deps) { d.Config.JWTSecret = testSecret })
	httpSrv := httptest.NewServer(env.router)
	defer httpSrv.Close()

	base := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/api/v1/ws"

	if _, resp, err := websocket.DefaultDialer.Dial(base, nil); err == nil {
		t.Fatal("dial without token should fail")
	} else if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	token := signToken(t, testSecret, time.Now().Add(time.Hour))
	conn, _, err := websocket.DefaultDialer.Dial(base+"?access_token="+token, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{
		"type":    WSTypeSubscribe,
		"id":      "1",
		"payload": map[string]any{"channels": []string{relay.ChannelPropertyUpdated}},
	}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeResponse || msg.ID != "1" {
		t.Fatalf("subscribe reply = %+v", msg)
	}

	env.srv.Hub().Broadcast(relay.ChannelPropertyUpdated, relay.PropertyMessage{ID: 10, Identifier: "kitchen/light", Property: "value"})
	msg := readWS(t, conn)
	if msg.Type != WSTypeEvent || msg.EventType != relay.ChannelPropertyUpdated {
		t.Fatalf("event = %+v", msg)
	}
	var payload relay.PropertyMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.ID != 10 || payload.Identifier != "kitchen/light" {
		t.Errorf("payload = %+v", payload)
	}

	if err := conn.WriteJSON(map[string]any{"type": WSTypePing, "id": "2"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypePong || msg.ID != "2" {
		t.Errorf("ping reply = %+v", msg)
	}

	if err := conn.WriteJSON(map[string]any{"type": WSTypeStatus, "id": "3"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	msg = readWS(t, conn)
	if msg.Type != WSTypeResponse || !strings.Contains(string(msg.Payload), `"connected"`) {
		t.Errorf("status reply = %+v (%s)", msg, msg.Payload)
	}

	if err := conn.WriteJSON(map[string]any{"type": "bogus", "id": "4"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeError {
		t.Errorf("bogus reply = %+v", msg)
	}
}
