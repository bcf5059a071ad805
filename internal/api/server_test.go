package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/lightrelay/internal/audit"
	"github.com/nerrad567/lightrelay/internal/color"
	"github.com/nerrad567/lightrelay/internal/infrastructure/config"
	"github.com/nerrad567/lightrelay/internal/infrastructure/influxdb"
	"github.com/nerrad567/lightrelay/internal/infrastructure/logging"
	"github.com/nerrad567/lightrelay/internal/yeelight"
)

// ─── Fakes ─────────────────────────────────────────────────────────

type fakeDevices []yeelight.Stats

func (d fakeDevices) Addresses() []string {
	out := make([]string, len(d))
	for i, s := range d {
		out[i] = s.Address
	}
	return out
}

func (d fakeDevices) Stats() []yeelight.Stats { return d }

type fakeDB struct {
	err error
}

func (f fakeDB) HealthCheck(context.Context) error { return f.err }
func (f fakeDB) Stats() sql.DBStats                { return sql.DBStats{OpenConnections: 1, Idle: 1} }

type fakeBroker bool

func (b fakeBroker) IsConnected() bool { return bool(b) }

type fakeTelemetry influxdb.Stats

func (f fakeTelemetry) Stats() influxdb.Stats { return influxdb.Stats(f) }

type fakeAudit struct {
	mu     sync.Mutex
	filter audit.Filter
	result *audit.ListResult
	err    error
}

func (a *fakeAudit) Create(context.Context, *audit.AuditLog) error { return nil }

func (a *fakeAudit) List(_ context.Context, f audit.Filter) (*audit.ListResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.filter = f
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
}

func testDeps() Deps {
	return Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS:     config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Logger: testLogger(),
		Colors: color.Default(),
		Devices: fakeDevices{
			{Address: "10.0.0.1:55443", Requests: 4, Failures: 1, LastActivity: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)},
			{Address: "10.0.0.2:55443"},
		},
		Version: "test",
	}
}

func testServer(t *testing.T, mutate func(*Deps)) *Server {
	t.Helper()
	deps := testDeps()
	if mutate != nil {
		mutate(&deps)
	}
	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

func get(t *testing.T, srv *Server, target string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

// ─── Construction ──────────────────────────────────────────────────

func TestNew_RequiredDeps(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Deps)
	}{
		{"logger", func(d *Deps) { d.Logger = nil }},
		{"colors", func(d *Deps) { d.Colors = nil }},
		{"devices", func(d *Deps) { d.Devices = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := testDeps()
			tt.mutate(&deps)
			if _, err := New(deps); err == nil {
				t.Errorf("New() without %s error = nil", tt.name)
			}
		})
	}
}

func TestNew_ExternalHub(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, testLogger())
	srv := testServer(t, func(d *Deps) { d.Hub = hub })

	if srv.Hub() != hub || srv.ownHub {
		t.Error("server did not adopt the injected hub")
	}
}

// ─── Health and Metrics ────────────────────────────────────────────

func TestHealth(t *testing.T) {
	tests := []struct {
		name           string
		mutate         func(*Deps)
		wantStatus     string
		wantComponents map[string]string
	}{
		{"no optional components", nil, "ok", map[string]string{}},
		{"all healthy", func(d *Deps) {
			d.Database = fakeDB{}
			d.MQTT = fakeBroker(true)
		}, "ok", map[string]string{"database": "ok", "mqtt": "ok"}},
		{"mqtt down", func(d *Deps) { d.MQTT = fakeBroker(false) }, "degraded", map[string]string{"mqtt": "down"}},
		{"database down", func(d *Deps) { d.Database = fakeDB{err: errors.New("locked")} }, "degraded", map[string]string{"database": "down"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, testServer(t, tt.mutate), "/api/v1/health")
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}

			resp := decode[HealthResponse](t, w)
			if resp.Status != tt.wantStatus || resp.Version != "test" || resp.Devices != 2 {
				t.Errorf("health = %+v", resp)
			}
			if len(resp.Components) != len(tt.wantComponents) {
				t.Errorf("components = %v, want %v", resp.Components, tt.wantComponents)
			}
			for k, v := range tt.wantComponents {
				if resp.Components[k] != v {
					t.Errorf("components[%s] = %q, want %q", k, resp.Components[k], v)
				}
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	srv := testServer(t, func(d *Deps) {
		d.Database = fakeDB{}
		d.MQTT = fakeBroker(true)
		d.Telemetry = fakeTelemetry{FleetColors: 3, Commands: 5, BatchFailures: 1}
	})

	w := get(t, srv, "/api/v1/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	m := decode[SystemMetrics](t, w)
	if m.Devices != (DeviceMetrics{Total: 2, Requests: 4, Failures: 1}) {
		t.Errorf("devices = %+v", m.Devices)
	}
	if m.MQTT == nil || !m.MQTT.Connected || m.Database == nil || m.Database.OpenConnections != 1 {
		t.Errorf("mqtt = %+v database = %+v", m.MQTT, m.Database)
	}
	if m.Telemetry == nil || *m.Telemetry != (influxdb.Stats{FleetColors: 3, Commands: 5, BatchFailures: 1}) {
		t.Errorf("influxdb = %+v", m.Telemetry)
	}
	if m.Runtime.Goroutines == 0 {
		t.Error("runtime metrics not populated")
	}
}

// ─── Colors and Devices ────────────────────────────────────────────

func TestListColors(t *testing.T) {
	w := get(t, testServer(t, nil), "/api/v1/colors")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	resp := decode[struct {
		Colors []ColorResponse `json:"colors"`
		Count  int             `json:"count"`
	}](t, w)

	if resp.Count != 7 || len(resp.Colors) != 7 {
		t.Fatalf("count = %d, len = %d, want 7", resp.Count, len(resp.Colors))
	}
	want := []ColorResponse{
		{Index: 1, Name: "white", RGB: "#FFFFFF", Value: 0xFFFFFF},
		{Index: 2, Name: "red", RGB: "#FF0000", Value: 0xFF0000},
	}
	for i, c := range want {
		if resp.Colors[i] != c {
			t.Errorf("colors[%d] = %+v, want %+v", i, resp.Colors[i], c)
		}
	}
}

func TestListDevices(t *testing.T) {
	w := get(t, testServer(t, nil), "/api/v1/devices")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	resp := decode[struct {
		Devices []DeviceResponse `json:"devices"`
		Count   int              `json:"count"`
	}](t, w)

	if resp.Count != 2 {
		t.Fatalf("count = %d, want 2", resp.Count)
	}
	first := resp.Devices[0]
	if first.Index != 0 || first.Address != "10.0.0.1:55443" || first.Requests != 4 || first.Failures != 1 || first.LastActivity == nil {
		t.Errorf("devices[0] = %+v", first)
	}
	if resp.Devices[1].LastActivity != nil {
		t.Errorf("devices[1].LastActivity = %v, want omitted", resp.Devices[1].LastActivity)
	}
}

func TestListDevices_EmptyFleet(t *testing.T) {
	srv := testServer(t, func(d *Deps) { d.Devices = fakeDevices{} })

	w := get(t, srv, "/api/v1/devices")
	if !strings.Contains(w.Body.String(), `"devices":[]`) {
		t.Errorf("body = %s, want an empty devices array", w.Body.String())
	}
}

// ─── Command History ───────────────────────────────────────────────

func TestListCommands(t *testing.T) {
	repo := &fakeAudit{result: &audit.ListResult{
		Logs:  []audit.AuditLog{{ID: "aud-1", Action: "command", EntityType: "fleet", EntityID: "color", Source: "discord"}},
		Total: 1, Limit: 10, Offset: 5,
	}}
	srv := testServer(t, func(d *Deps) { d.Audit = repo })

	w := get(t, srv, "/api/v1/commands?command=color&source=discord&user=alice&since=2026-10-19T12:00:00Z&limit=10&offset=5")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	got := decode[audit.ListResult](t, w)
	if got.Total != 1 || len(got.Logs) != 1 || got.Logs[0].ID != "aud-1" {
		t.Errorf("result = %+v", got)
	}

	want := audit.Filter{
		Action:   audit.ActionCommand,
		EntityID: "color",
		Source:   "discord",
		UserID:   "alice",
		Since:    time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		Limit:    10,
		Offset:   5,
	}
	if !repo.filter.Since.Equal(want.Since) {
		t.Errorf("filter.Since = %v, want %v", repo.filter.Since, want.Since)
	}
	repo.filter.Since = want.Since
	if repo.filter != want {
		t.Errorf("filter = %+v, want %+v", repo.filter, want)
	}
}

func TestListCommands_Errors(t *testing.T) {
	tests := []struct {
		name       string
		repo       *fakeAudit
		query      string
		wantStatus int
	}{
		{"history disabled", nil, "", http.StatusServiceUnavailable},
		{"bad limit", &fakeAudit{}, "?limit=ten", http.StatusBadRequest},
		{"bad offset", &fakeAudit{}, "?offset=-x", http.StatusBadRequest},
		{"bad since", &fakeAudit{}, "?since=yesterday", http.StatusBadRequest},
		{"repository failure", &fakeAudit{err: errors.New("disk I/O error")}, "", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(t, func(d *Deps) {
				if tt.repo != nil {
					d.Audit = tt.repo
				}
			})

			w := get(t, srv, "/api/v1/commands"+tt.query)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if e := decode[Error](t, w); e.Status != tt.wantStatus || e.Code == "" {
				t.Errorf("error body = %+v", e)
			}
		})
	}
}

// ─── Middleware and Routing ────────────────────────────────────────

func TestRequestID(t *testing.T) {
	srv := testServer(t, nil)

	if id := get(t, srv, "/api/v1/health").Header().Get("X-Request-ID"); len(id) != 36 {
		t.Errorf("generated X-Request-ID = %q, want a UUID", id)
	}
	if id := get(t, srv, "/api/v1/health", "X-Request-ID", "client-id").Header().Get("X-Request-ID"); id != "client-id" {
		t.Errorf("X-Request-ID = %q, want client-id", id)
	}
}

func TestCORS(t *testing.T) {
	srv := testServer(t, func(d *Deps) { d.Config.CORS.AllowedOrigins = []string{"http://panel.local"} })
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/colors", nil)
	req.Header.Set("Origin", "http://panel.local")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://panel.local" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got != corsAllowedMethods {
		t.Errorf("Allow-Methods = %q", got)
	}

	w = get(t, srv, "/api/v1/colors", "Origin", "http://evil.example")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin for disallowed origin = %q, want empty", got)
	}
}

func TestRouting_ReadOnly(t *testing.T) {
	srv := testServer(t, nil)
	router := srv.buildRouter()

	tests := []struct {
		method     string
		target     string
		wantStatus int
	}{
		{http.MethodGet, "/api/v1/nope", http.StatusNotFound},
		{http.MethodPost, "/api/v1/colors", http.StatusMethodNotAllowed},
		{http.MethodDelete, "/api/v1/devices", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.target, nil))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	srv := testServer(t, nil)
	handler := srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

// ─── Hub ───────────────────────────────────────────────────────────

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, testLogger())

	subscribed := &WSClient{hub: hub, send: make(chan []byte, wsSendBufferSize), subscriptions: map[string]struct{}{"command.handled": {}}}
	other := &WSClient{hub: hub, send: make(chan []byte, wsSendBufferSize), subscriptions: map[string]struct{}{"fleet.color_applied": {}}}
	hub.Register(subscribed)
	hub.Register(other)

	hub.Broadcast("command.handled", map[string]any{"command": "colors"})

	select {
	case raw := <-subscribed.send:
		var msg WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type != WSTypeEvent || msg.EventType != "command.handled" {
			t.Errorf("message = %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}

	select {
	case <-other.send:
		t.Error("unsubscribed client received the broadcast")
	default:
	}

	hub.Unregister(subscribed)
	hub.Unregister(subscribed) // second unregister must not double-close
	if hub.ClientCount() != 1 {
		t.Errorf("ClientCount() = %d, want 1", hub.ClientCount())
	}
}

// ─── Live Server ───────────────────────────────────────────────────

func startServer(t *testing.T) *Server {
	t.Helper()
	srv := testServer(t, nil)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { srv.Close() }) //nolint:errcheck // Test cleanup
	return srv
}

func TestServer_StartAndClose(t *testing.T) {
	srv := testServer(t, nil)

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start = nil, want error")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestServer_StartPortInUse(t *testing.T) {
	first := startServer(t)

	second := testServer(t, func(d *Deps) {
		_, port, _ := strings.Cut(first.Addr(), ":")
		d.Config.Port = atoi(t, port)
	})
	if err := second.Start(context.Background()); err == nil {
		second.Close() //nolint:errcheck // Test cleanup
		t.Error("Start() on a bound port error = nil")
	}
}

func atoi(t *testing.T, s string) int {
	t.Helper()
	n, err := intParam(s)
	if err != nil {
		t.Fatalf("atoi(%q): %v", s, err)
	}
	return n
}

func dialWS(t *testing.T, srv *Server, query string) *websocket.Conn {
	t.Helper()
	ws, resp, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/api/v1/ws"+query, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocket_ChannelsQueryAndBroadcast(t *testing.T) {
	srv := startServer(t)
	ws := dialWS(t, srv, "?channels=fleet.color_applied")
	waitForClients(t, srv.Hub(), 1)

	srv.Hub().Broadcast("fleet.color_applied", map[string]any{"color": "red"})

	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // Test deadline
	var msg WSMessage
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read event: %v", err)
	}
	payload, _ := msg.Payload.(map[string]any)
	if msg.EventType != "fleet.color_applied" || payload["color"] != "red" {
		t.Errorf("event = %+v", msg)
	}
}

func TestWebSocket_SubscribeAndPing(t *testing.T) {
	srv := startServer(t)
	ws := dialWS(t, srv, "")
	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // Test deadline

	if err := ws.WriteJSON(WSMessage{Type: WSTypeSubscribe, ID: "sub-1", Payload: WSSubscribePayload{Channels: []string{"command.handled"}}}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read subscribe response: %v", err)
	}
	if resp.Type != WSTypeResponse || resp.ID != "sub-1" {
		t.Errorf("subscribe response = %+v", resp)
	}

	if err := ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "p-1"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if resp.Type != WSTypePong || resp.ID != "p-1" {
		t.Errorf("pong = %+v", resp)
	}

	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write invalid: %v", err)
	}
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read error: %v", err)
	}
	if resp.Type != WSTypeError {
		t.Errorf("invalid message response = %+v", resp)
	}
}
