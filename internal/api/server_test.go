package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/sunseeker-core/internal/device"
	"github.com/nerrad567/sunseeker-core/internal/engine"
	"github.com/nerrad567/sunseeker-core/internal/infrastructure/config"
	"github.com/nerrad567/sunseeker-core/internal/infrastructure/logging"
	"github.com/nerrad567/sunseeker-core/internal/mapimage"
)

// nopSyncer satisfies engine.Syncer; the API surface never triggers
// cloud fetches in these tests.
type nopSyncer struct{}

func (nopSyncer) RequestDeviceRefresh(string) {}
func (nopSyncer) RequestMapData(string)       {}
func (nopSyncer) RequestHeatMap(string)       {}
func (nopSyncer) RequestWifiMap(string)       {}
func (nopSyncer) RequestProperties(string)    {}
func (nopSyncer) RequestSchedule(string)      {}

// testServer creates a Server backed by a real engine with an empty store.
func testServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()

	eng := engine.New(device.NewStore(), mapimage.NewRenderer(25), nopSyncer{}, config.SyncConfig{})
	t.Cleanup(eng.Close)

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	srv, err := New(Deps{
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
		Logger:  log,
		Engine:  eng,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	// Initialise hub for tests
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv.hub = NewHub(srv.wsCfg, log)
	go srv.hub.Run(ctx)

	return srv, eng
}

// seedMower registers one legacy device with known telemetry.
func seedMower(t *testing.T, eng *engine.Engine, serial string) {
	t.Helper()

	eng.RegisterDevice(serial, device.VariantLegacy, engine.DeviceInfo{
		ID:    "101",
		Model: "S800",
		Name:  "Backyard",
	})
	if err := eng.ApplyStatus(serial, map[string]any{
		"electricity":    "88",
		"workStatusCode": float64(1),
		"stationFlag":    true,
	}); err != nil {
		t.Fatalf("ApplyStatus: %v", err)
	}
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID_Generated(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestCORS_Preflight(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
}

func TestNotFound(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Device Endpoint Tests ─────────────────────────────────────────

func TestListDevices_Empty(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if int(resp["count"].(float64)) != 0 {
		t.Errorf("count = %v, want 0", resp["count"])
	}
}

func TestListDevices(t *testing.T) {
	srv, eng := testServer(t)
	seedMower(t, eng, "SN-100")
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Devices []device.Device `json:"devices"`
		Count   int             `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1", resp.Count)
	}
	if resp.Devices[0].Serial != "SN-100" {
		t.Errorf("serial = %q, want SN-100", resp.Devices[0].Serial)
	}
	if resp.Devices[0].Power != 88 {
		t.Errorf("power = %d, want 88", resp.Devices[0].Power)
	}
}

func TestGetDevice(t *testing.T) {
	srv, eng := testServer(t)
	seedMower(t, eng, "SN-100")
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/SN-100", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var dev device.Device
	if err := json.Unmarshal(w.Body.Bytes(), &dev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if dev.Name != "Backyard" {
		t.Errorf("name = %q, want Backyard", dev.Name)
	}
	if dev.Mode != 1 {
		t.Errorf("mode = %d, want 1", dev.Mode)
	}
	if !dev.Station {
		t.Error("station = false, want true")
	}
}

func TestGetDevice_NotFound(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/NOPE", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}

	var apiErr Error
	if err := json.Unmarshal(w.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if apiErr.Code != ErrCodeNotFound {
		t.Errorf("error code = %q, want %q", apiErr.Code, ErrCodeNotFound)
	}
}

// ─── Image Endpoint Tests ──────────────────────────────────────────

func TestDeviceImage(t *testing.T) {
	srv, eng := testServer(t)
	seedMower(t, eng, "SN-100")
	router := srv.buildRouter()

	// Install a heat map via the same path the sync layer uses.
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := eng.ApplyHeatMap("SN-100", buf.Bytes()); err != nil {
		t.Fatalf("ApplyHeatMap: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/SN-100/heat.png", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}

	decoded, err := png.Decode(w.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := decoded.Bounds().Dx(); got != 4 {
		t.Errorf("width = %d, want 4", got)
	}
}

func TestDeviceImage_NotRendered(t *testing.T) {
	srv, eng := testServer(t)
	seedMower(t, eng, "SN-100")
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/SN-100/map.png", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestDeviceImage_DeviceNotFound(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/NOPE/live.png", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── History Endpoint Tests ────────────────────────────────────────

// historyTestDB creates an in-memory SQLite database with the
// state_transitions schema.
func historyTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE state_transitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			serial TEXT NOT NULL,
			field TEXT NOT NULL,
			old_value TEXT NOT NULL,
			new_value TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		);
		CREATE INDEX idx_state_transitions_serial ON state_transitions(serial, created_at);
	`
	if _, execErr := db.Exec(schema); execErr != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", execErr)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestDeviceHistory(t *testing.T) {
	srv, eng := testServer(t)
	seedMower(t, eng, "SN-100")

	repo := device.NewSQLiteHistoryRepository(historyTestDB(t))
	srv.history = repo
	if err := repo.Record(context.Background(), "SN-100", "mode", "0", "1"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	router := srv.buildRouter()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/SN-100/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Transitions []device.Transition `json:"transitions"`
		Count       int                 `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1", resp.Count)
	}
	if resp.Transitions[0].Field != "mode" {
		t.Errorf("field = %q, want mode", resp.Transitions[0].Field)
	}
}

func TestDeviceHistory_BadLimit(t *testing.T) {
	srv, eng := testServer(t)
	seedMower(t, eng, "SN-100")
	srv.history = device.NewSQLiteHistoryRepository(historyTestDB(t))

	router := srv.buildRouter()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/SN-100/history?limit=banana", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestDeviceHistory_Disabled(t *testing.T) {
	srv, eng := testServer(t)
	seedMower(t, eng, "SN-100")

	router := srv.buildRouter()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/SN-100/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Hub Tests ─────────────────────────────────────────────────────

func TestHub_BroadcastToSubscribed(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{"device.state_changed": {}},
	}
	hub.Register(client)

	hub.Broadcast("device.state_changed", map[string]any{"serial": "SN-100"})

	select {
	case msg := <-client.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.EventType != "device.state_changed" {
			t.Errorf("event_type = %q, want %q", wsMsg.EventType, "device.state_changed")
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	// Client subscribed to a different channel
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{"device.map_updated": {}},
	}
	hub.Register(client)

	hub.Broadcast("device.state_changed", map[string]any{"serial": "SN-100"})

	select {
	case <-client.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
		// OK, no message received
	}
}

func TestHub_ClientCount(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

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

	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

// ─── Event Relay Tests ─────────────────────────────────────────────

func TestRelayEvents_StateChange(t *testing.T) {
	srv, eng := testServer(t)
	seedMower(t, eng, "SN-100")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.relayEvents(ctx)

	client := &WSClient{
		hub:           srv.hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{"device.state_changed": {}},
	}
	srv.hub.Register(client)

	// Give the relay goroutine time to subscribe before publishing.
	time.Sleep(50 * time.Millisecond)

	eng.Bus().Publish(engine.Event{
		Serial:  "SN-100",
		Changes: engine.ChangeSet{StateChanged: true},
	})

	select {
	case msg := <-client.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.EventType != "device.state_changed" {
			t.Errorf("event_type = %q, want device.state_changed", wsMsg.EventType)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for relayed event")
	}
}

func TestRelayEvents_MapUpdate(t *testing.T) {
	srv, eng := testServer(t)
	seedMower(t, eng, "SN-100")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.relayEvents(ctx)

	client := &WSClient{
		hub:           srv.hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{"device.map_updated": {}},
	}
	srv.hub.Register(client)

	time.Sleep(50 * time.Millisecond)

	eng.Bus().Publish(engine.Event{
		Serial:  "SN-100",
		Changes: engine.ChangeSet{MapRegenerate: true},
	})

	select {
	case msg := <-client.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.EventType != "device.map_updated" {
			t.Errorf("event_type = %q, want device.map_updated", wsMsg.EventType)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for relayed event")
	}
}
