package engine

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/sunseeker-core/internal/device"
	"github.com/nerrad567/sunseeker-core/internal/infrastructure/config"
	"github.com/nerrad567/sunseeker-core/internal/mapimage"
)

const testTopic = "/app/1234/get"

// testGeometry is a 10x10 work square used wherever a render needs
// real geometry.
const testGeometry = `{
	"region_work": [{"id": 3, "name": "Front Lawn", "points": "[[0,0],[10,0],[10,10],[0,10]]"}]
}`

type fakeSyncer struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeSyncer) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeSyncer) RequestDeviceRefresh(serial string) { f.record("refresh:" + serial) }
func (f *fakeSyncer) RequestMapData(serial string)       { f.record("map:" + serial) }
func (f *fakeSyncer) RequestHeatMap(serial string)       { f.record("heat:" + serial) }
func (f *fakeSyncer) RequestWifiMap(serial string)       { f.record("wifi:" + serial) }
func (f *fakeSyncer) RequestProperties(serial string)    { f.record("props:" + serial) }
func (f *fakeSyncer) RequestSchedule(serial string)      { f.record("sched:" + serial) }

func (f *fakeSyncer) has(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (f *fakeSyncer) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

// newTestEngine builds an engine with one registered device and the
// first-message bootstrap already consumed.
func newTestEngine(t *testing.T, variant device.Variant) (*Engine, *device.Device, *fakeSyncer) {
	t.Helper()
	store := device.NewStore()
	d := store.GetOrCreate("SN100", variant)
	syncer := &fakeSyncer{}
	e := New(store, mapimage.NewRenderer(25), syncer, config.SyncConfig{CommandRepollDelay: 10})
	e.firstMessage.Store(true)
	t.Cleanup(e.Close)
	return e, d, syncer
}

func push(t *testing.T, e *Engine, doc map[string]any) {
	t.Helper()
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal push: %v", err)
	}
	if err := e.HandleMessage(testTopic, raw); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
}

func takeEvent(t *testing.T, ch <-chan Event) (Event, bool) {
	t.Helper()
	select {
	case ev := <-ch:
		return ev, true
	default:
		return Event{}, false
	}
}

// ===== Input handling =====

// TestHandleMessageMalformed verifies a bad payload errors without
// touching state.
func TestHandleMessageMalformed(t *testing.T) {
	e, _, _ := newTestEngine(t, device.VariantWireless)
	if err := e.HandleMessage(testTopic, []byte("{broken")); err == nil {
		t.Error("HandleMessage() error = nil, want parse failure")
	}
}

// TestHandleMessageUnknownSerial verifies pushes for unloaded devices
// are dropped silently.
func TestHandleMessageUnknownSerial(t *testing.T) {
	e, _, syncer := newTestEngine(t, device.VariantWireless)
	push(t, e, map[string]any{"deviceSn": "SN999", "mode": 2})
	if len(syncer.calls) != 0 {
		t.Errorf("syncer calls = %v, want none", syncer.calls)
	}
}

// TestUnload verifies pending timers are cancelled and later pushes
// for the serial are dropped.
func TestUnload(t *testing.T) {
	e, _, syncer := newTestEngine(t, device.VariantWireless)
	e.repollDelay = 10 * time.Millisecond

	push(t, e, map[string]any{"deviceSn": "SN100", "mode": 6, "errortype": 4})
	e.Unload("SN100")

	time.Sleep(50 * time.Millisecond)
	if got := syncer.count("refresh:SN100"); got != 0 {
		t.Errorf("deferred refreshes = %d, want 0 after unload", got)
	}

	before := len(syncer.calls)
	push(t, e, map[string]any{"deviceSn": "SN100", "mode": 2})
	if len(syncer.calls) != before {
		t.Errorf("syncer calls grew after unload: %v", syncer.calls)
	}
	if _, err := e.Snapshot("SN100"); err == nil {
		t.Error("Snapshot() after unload should fail")
	}
}

// TestFirstMessageBootstrap verifies the one-time property and
// schedule fetch for wireless devices.
func TestFirstMessageBootstrap(t *testing.T) {
	store := device.NewStore()
	store.GetOrCreate("SN100", device.VariantWireless)
	store.GetOrCreate("SN200", device.VariantLegacy)
	syncer := &fakeSyncer{}
	e := New(store, mapimage.NewRenderer(25), syncer, config.SyncConfig{})
	t.Cleanup(e.Close)

	push(t, e, map[string]any{"deviceSn": "SN100", "power": 80})
	push(t, e, map[string]any{"deviceSn": "SN100", "power": 81})

	if got := syncer.count("props:SN100"); got != 1 {
		t.Errorf("property fetches for SN100 = %d, want 1", got)
	}
	if !syncer.has("sched:SN100") {
		t.Error("schedule fetch for SN100 missing")
	}
	if syncer.has("props:SN200") {
		t.Error("legacy device got a property fetch")
	}
}

// ===== Mode and fault =====

// TestWorkingTransitionFlatMode verifies a flat mode push into a
// working state requests fresh geometry.
func TestWorkingTransitionFlatMode(t *testing.T) {
	e, d, syncer := newTestEngine(t, device.VariantWireless)
	_, events := e.Bus().Subscribe()

	push(t, e, map[string]any{"deviceSn": "SN100", "mode": 2})

	if d.Mode != 2 {
		t.Errorf("Mode = %d, want 2", d.Mode)
	}
	if !syncer.has("map:SN100") {
		t.Error("working transition did not request map data")
	}
	ev, ok := takeEvent(t, events)
	if !ok {
		t.Fatal("no event published")
	}
	if !ev.Changes.StateChanged || !ev.Changes.FetchMapData {
		t.Errorf("changes = %+v, want StateChanged and FetchMapData", ev.Changes)
	}

	// A duplicate push is silent.
	push(t, e, map[string]any{"deviceSn": "SN100", "mode": 2})
	if _, ok := takeEvent(t, events); ok {
		t.Error("duplicate push published an event")
	}
	if got := syncer.count("map:SN100"); got != 1 {
		t.Errorf("map fetches = %d, want 1 (no re-fetch while working)", got)
	}
}

// TestWorkingTransitionLegacy verifies the legacy working codes.
func TestWorkingTransitionLegacy(t *testing.T) {
	e, d, syncer := newTestEngine(t, device.VariantLegacy)

	// going_home is not a working state.
	push(t, e, map[string]any{"deviceSn": "SN100", "mode": 2})
	if syncer.has("map:SN100") {
		t.Error("legacy mode 2 requested map data, want none (going home)")
	}

	push(t, e, map[string]any{"deviceSn": "SN100", "mode": 7})
	if d.Mode != 7 {
		t.Errorf("Mode = %d, want 7", d.Mode)
	}
	if !syncer.has("map:SN100") {
		t.Error("border mowing transition did not request map data")
	}
}

// TestNestedStatusTransition verifies the wireless status envelope.
func TestNestedStatusTransition(t *testing.T) {
	e, d, syncer := newTestEngine(t, device.VariantWireless)

	push(t, e, map[string]any{
		"deviceSn": "SN100",
		"data":     map[string]any{"status": 2},
	})
	if d.Mode != 2 {
		t.Errorf("Mode = %d, want 2", d.Mode)
	}
	if !syncer.has("map:SN100") {
		t.Error("status transition did not request map data")
	}
}

// TestFaultRepoll verifies a fault change arms exactly one deferred
// refresh and that re-arming replaces the pending one.
func TestFaultRepoll(t *testing.T) {
	e, d, syncer := newTestEngine(t, device.VariantWireless)
	e.repollDelay = 10 * time.Millisecond

	push(t, e, map[string]any{"deviceSn": "SN100", "mode": 6, "errortype": 4})
	if d.FaultCode != 4 {
		t.Errorf("FaultCode = %d, want 4", d.FaultCode)
	}
	push(t, e, map[string]any{"deviceSn": "SN100", "mode": 6, "errortype": 5})

	time.Sleep(50 * time.Millisecond)
	if got := syncer.count("refresh:SN100"); got != 1 {
		t.Errorf("deferred refreshes = %d, want 1 (replaced, not stacked)", got)
	}

	// Mode without errortype clears the fault and re-arms.
	push(t, e, map[string]any{"deviceSn": "SN100", "mode": 1})
	if d.FaultCode != 0 {
		t.Errorf("FaultCode = %d, want 0 after clear", d.FaultCode)
	}
	time.Sleep(50 * time.Millisecond)
	if got := syncer.count("refresh:SN100"); got != 2 {
		t.Errorf("deferred refreshes = %d, want 2", got)
	}
}

// ===== Events =====

// TestReportWorkRecord verifies task completion reloads everything.
func TestReportWorkRecord(t *testing.T) {
	e, d, syncer := newTestEngine(t, device.VariantWireless)
	_, events := e.Bus().Subscribe()

	push(t, e, map[string]any{
		"deviceSn": "SN100",
		"id":       "report_work_record_17",
		"data":     map[string]any{},
	})

	if d.EventType != "report_work_record_17" {
		t.Errorf("EventType = %q, want the record id", d.EventType)
	}
	if d.EventCode != -1 {
		t.Errorf("EventCode = %d, want -1", d.EventCode)
	}
	if !syncer.has("map:SN100") {
		t.Error("work record did not request map data")
	}
	ev, ok := takeEvent(t, events)
	if !ok {
		t.Fatal("no event published")
	}
	if !ev.Changes.MapRegenerate || !ev.Changes.LiveMapRegenerate {
		t.Errorf("changes = %+v, want full map regenerate", ev.Changes)
	}
}

// TestCoverageMapAnnouncements verifies heat and wifi map URLs and
// fetches.
func TestCoverageMapAnnouncements(t *testing.T) {
	e, d, syncer := newTestEngine(t, device.VariantWireless)

	push(t, e, map[string]any{
		"deviceSn": "SN100",
		"id":       "evt-1",
		"data":     map[string]any{"event_code": 1, "url": "https://cdn.example.com/heat.png"},
	})
	if d.HeatMapURL != "https://cdn.example.com/heat.png" {
		t.Errorf("HeatMapURL = %q", d.HeatMapURL)
	}
	if !syncer.has("heat:SN100") {
		t.Error("heat map fetch missing")
	}

	push(t, e, map[string]any{
		"deviceSn": "SN100",
		"id":       "evt-2",
		"data":     map[string]any{"event_code": 3, "url": "https://cdn.example.com/wifi.png"},
	})
	if d.WifiMapURL != "https://cdn.example.com/wifi.png" {
		t.Errorf("WifiMapURL = %q", d.WifiMapURL)
	}
	if !syncer.has("wifi:SN100") {
		t.Error("wifi map fetch missing")
	}
	if d.EventCode != 3 || d.EventType != "evt-2" {
		t.Errorf("event = %d/%q, want 3/evt-2", d.EventCode, d.EventType)
	}
}

// ===== Telemetry merge =====

// TestNestedTelemetryMerge verifies the nested settings keys land on
// the right fields.
func TestNestedTelemetryMerge(t *testing.T) {
	e, d, _ := newTestEngine(t, device.VariantWireless)

	push(t, e, map[string]any{
		"deviceSn": "SN100",
		"data": map[string]any{
			"elec":           76,
			"work_time":      42,
			"rain":           map[string]any{"rain_flag": true, "delay": 30},
			"rain_countdown": 12,
			"mow_efficiency": map[string]any{"gap": 2, "speed": 3},
			"blade":          map[string]any{"speed": 4, "height": 55},
			"plan_angle":     map[string]any{"plan_value": 45, "plan_mode": 1},
			"wifi_sig":       -60,
			"net_4g_sig":     17,
			"task_total_area": 120.5,
			"task_cover_area": 80.25,
			"first_along_border": true,
			"follow_border_freq": 2,
			"work_touch_mode":    1,
			"ai_sensitivity":     2,
			"time_work_repeat":   true,
		},
	})

	if d.Power != 76 || d.WorkMinutes != 42 {
		t.Errorf("power/minutes = %d/%d, want 76/42", d.Power, d.WorkMinutes)
	}
	if !d.RainEnabled || d.RainDelaySet != 30 || d.RainDelayLeft != 12 {
		t.Errorf("rain = %v/%d/%d, want true/30/12", d.RainEnabled, d.RainDelaySet, d.RainDelayLeft)
	}
	if d.Gap != 2 || d.WorkSpeed != 3 {
		t.Errorf("efficiency = %d/%d, want 2/3", d.Gap, d.WorkSpeed)
	}
	if d.BladeSpeed != 4 || d.BladeHeight != 55 {
		t.Errorf("blade = %d/%d, want 4/55", d.BladeSpeed, d.BladeHeight)
	}
	if d.PlanAngle != 45 || d.PlanMode != 1 {
		t.Errorf("plan = %d/%d, want 45/1", d.PlanAngle, d.PlanMode)
	}
	if d.WifiLevel != -60 || d.Net4GSignal != 17 {
		t.Errorf("signal = %d/%d, want -60/17", d.WifiLevel, d.Net4GSignal)
	}
	if d.TaskTotal != 120.5 || d.TaskCover != 80.25 {
		t.Errorf("areas = %v/%v, want 120.5/80.25", d.TaskTotal, d.TaskCover)
	}
	if !d.BorderFirst || d.BorderMode != 2 {
		t.Errorf("border = %v/%d, want true/2", d.BorderFirst, d.BorderMode)
	}
	if d.AvoidObjects != 1 || d.AISensitivity != 2 || !d.TimeWorkRepeat {
		t.Errorf("settings = %d/%d/%v", d.AvoidObjects, d.AISensitivity, d.TimeWorkRepeat)
	}
}

// TestScheduleFlagMerge verifies the flexible-schedule flags.
func TestScheduleFlagMerge(t *testing.T) {
	e, d, _ := newTestEngine(t, device.VariantWireless)

	push(t, e, map[string]any{
		"deviceSn": "SN100",
		"data": map[string]any{
			"recommended_time_flag": 1,
			"time_custom_flag":      1,
			"pause":                 1,
			"time_zone":             7200,
		},
	})

	flex := d.Flexible()
	if !flex.Recommended || !flex.Custom || !flex.Paused {
		t.Errorf("flags = %v/%v/%v, want all set", flex.Recommended, flex.Custom, flex.Paused)
	}
	if flex.Timezone != 7200 {
		t.Errorf("Timezone = %d, want 7200", flex.Timezone)
	}
}

// ===== Position and path =====

// TestRobotPositionUpdate verifies position merge, path accumulation,
// the live render and the movement event.
func TestRobotPositionUpdate(t *testing.T) {
	e, d, _ := newTestEngine(t, device.VariantWireless)
	_, events := e.Bus().Subscribe()
	d.MapData = []byte(testGeometry)
	if err := e.renderer.GenerateBase(d); err != nil {
		t.Fatalf("GenerateBase() error = %v", err)
	}

	push(t, e, map[string]any{
		"deviceSn": "SN100",
		"data": map[string]any{
			"robot_pos": map[string]any{"angle": 1.57, "point": []any{5.0, 5.0}},
		},
	})

	if d.X != 5 || d.Y != 5 || d.Orientation != 1.57 {
		t.Errorf("pos = (%v, %v, %v), want (5, 5, 1.57)", d.X, d.Y, d.Orientation)
	}
	// The sample joined the path buffer; the render flush compacts it
	// down to its tail point.
	if len(d.LivePathPoints) != 1 {
		t.Errorf("path buffer = %d points, want 1", len(d.LivePathPoints))
	}
	if d.LiveImage == nil {
		t.Error("position update did not render the live composite")
	}
	ev, ok := takeEvent(t, events)
	if !ok {
		t.Fatal("position update published no event")
	}
	if !ev.Changes.RobotMoved {
		t.Errorf("changes = %+v, want RobotMoved", ev.Changes)
	}
}

// TestPathBufferThreshold verifies accumulation and the redraw
// threshold.
func TestPathBufferThreshold(t *testing.T) {
	e, d, _ := newTestEngine(t, device.VariantWireless)
	d.MapData = []byte(testGeometry)
	if err := e.renderer.GenerateBase(d); err != nil {
		t.Fatalf("GenerateBase() error = %v", err)
	}

	points := make([][]float64, 0, 60)
	for i := range 60 {
		points = append(points, []float64{float64(i) / 10, float64(i) / 10, 0})
	}
	raw, _ := json.Marshal(points)

	push(t, e, map[string]any{
		"deviceSn": "SN100",
		"data":     map[string]any{"path_info": map[string]any{"path": string(raw)}},
	})
	if len(d.LivePathPoints) != 60 {
		t.Fatalf("buffer = %d points, want 60", len(d.LivePathPoints))
	}
	if d.LiveImage != nil {
		t.Error("live composite rendered below the point threshold")
	}

	// A second batch crosses the threshold, draws and compacts.
	push(t, e, map[string]any{
		"deviceSn": "SN100",
		"data":     map[string]any{"path_info": map[string]any{"path": string(raw)}},
	})
	if d.LiveImage == nil {
		t.Error("live composite missing after crossing the threshold")
	}
	if len(d.LivePathPoints) != 1 {
		t.Errorf("buffer = %d points, want compacted to 1", len(d.LivePathPoints))
	}
}

// ===== Schedules =====

// TestTimeCustomList verifies the full-table replace from a wire
// list.
func TestTimeCustomList(t *testing.T) {
	e, d, _ := newTestEngine(t, device.VariantWireless)

	push(t, e, map[string]any{
		"deviceSn": "SN100",
		"data": map[string]any{
			"time_custom": []any{
				map[string]any{"period": []any{1}, "start": 3600, "end": 7200, "unlock": true, "active": true},
				map[string]any{"period": []any{1}, "start": 28800, "end": 36000, "unlock": true, "active": true},
			},
		},
	})

	flex := d.Flexible()
	slot1, err := flex.Day(1, 1)
	if err != nil {
		t.Fatalf("Day(1,1) error = %v", err)
	}
	slot2, err := flex.Day(1, 2)
	if err != nil {
		t.Fatalf("Day(1,2) error = %v", err)
	}
	if !slot1.Enabled || slot1.Start != 3600 || slot1.End != 7200 {
		t.Errorf("slot1 = %+v, want enabled 3600..7200", slot1)
	}
	if !slot2.Enabled || slot2.Start != 28800 {
		t.Errorf("slot2 = %+v, want enabled from 28800", slot2)
	}
}

// TestTimeCustomObject verifies the query-response shape carrying
// flags plus a table.
func TestTimeCustomObject(t *testing.T) {
	e, d, _ := newTestEngine(t, device.VariantWireless)

	push(t, e, map[string]any{
		"deviceSn": "SN100",
		"data": map[string]any{
			"time_custom": map[string]any{
				"recommended_time_work": 1,
				"time_zone":             3600,
				"pause":                 0,
				"time_custom_flag":      1,
				"time": []any{
					map[string]any{"period": []any{2}, "start": 21600, "end": 25200, "unlock": true, "active": true},
				},
			},
		},
	})

	flex := d.Flexible()
	if !flex.Recommended || !flex.Custom || flex.Timezone != 3600 {
		t.Errorf("flags = %v/%v/%d, want set/set/3600", flex.Recommended, flex.Custom, flex.Timezone)
	}
	slot, err := flex.Day(2, 1)
	if err != nil {
		t.Fatalf("Day(2,1) error = %v", err)
	}
	if !slot.Enabled || slot.Start != 21600 {
		t.Errorf("slot = %+v, want enabled from 21600", slot)
	}
}

// TestLegacySchedulePush verifies weekday pushes and the schedule
// event.
func TestLegacySchedulePush(t *testing.T) {
	e, d, _ := newTestEngine(t, device.VariantLegacy)
	_, events := e.Bus().Subscribe()

	push(t, e, map[string]any{
		"deviceSn": "SN100",
		"Mon": map[string]any{
			"slice":    []any{map[string]any{"start": 375, "end": 1440}},
			"Trimming": true,
		},
	})

	day, err := d.Legacy().Day(1)
	if err != nil {
		t.Fatalf("Day(1) error = %v", err)
	}
	if day.Start != "06:15" || day.End != "24:00" || !day.Trim {
		t.Errorf("day = %+v, want 06:15..24:00 trim", day)
	}

	ev, ok := takeEvent(t, events)
	if !ok {
		t.Fatal("no schedule event published")
	}
	if !ev.Changes.ScheduleChanged {
		t.Errorf("changes = %+v, want ScheduleChanged", ev.Changes)
	}
}

// ===== Legacy flat keys =====

// TestLegacyFlatMerge verifies legacy telemetry, zone settings and
// the connectivity string.
func TestLegacyFlatMerge(t *testing.T) {
	e, d, _ := newTestEngine(t, device.VariantLegacy)

	push(t, e, map[string]any{
		"deviceSn":       "SN100",
		"station":        1,
		"wifi_lv":        3,
		"rain_en":        1,
		"rain_status":    1,
		"rain_delay_set": 60,
		"rain_countdown": 45,
		"cur_min":        90,
		"data":           `{"online":"1"}`,
		"zoneOpenFlag":   1,
		"mul_en":         1,
		"mul_auto":       0,
		"mul_zon1":       25,
		"mul_zon4":       10,
		"mul_pro2":       2,
	})

	if !d.Station || d.WifiLevel != 3 {
		t.Errorf("station/wifi = %v/%d", d.Station, d.WifiLevel)
	}
	if !d.RainEnabled || d.RainStatus != 1 || d.RainDelaySet != 60 || d.RainDelayLeft != 45 {
		t.Errorf("rain = %v/%d/%d/%d", d.RainEnabled, d.RainStatus, d.RainDelaySet, d.RainDelayLeft)
	}
	if d.WorkMinutes != 90 {
		t.Errorf("WorkMinutes = %d, want 90", d.WorkMinutes)
	}
	if d.OnlineFlag != `{"online":"1"}` {
		t.Errorf("OnlineFlag = %q", d.OnlineFlag)
	}
	if !d.ZoneOpen || !d.MultiZone || d.MultiZoneAuto {
		t.Errorf("zone flags = %v/%v/%v", d.ZoneOpen, d.MultiZone, d.MultiZoneAuto)
	}
	if d.ZonePercents[0] != 25 || d.ZonePercents[3] != 10 || d.ZonePriorities[1] != 2 {
		t.Errorf("zones = %v %v", d.ZonePercents, d.ZonePriorities)
	}
}

// ===== Zone settings =====

// TestZoneSettingsMerge verifies per-zone pushes, including the drop
// of unknown zones.
func TestZoneSettingsMerge(t *testing.T) {
	e, d, _ := newTestEngine(t, device.VariantWireless)
	d.EnsureZone(3, "Front Lawn")

	push(t, e, map[string]any{
		"deviceSn": "SN100",
		"data": map[string]any{
			"custom_flag": true,
			"custom": []any{
				map[string]any{"region_id": 3, "work_gap": 2, "blade_height": 60, "setting": true},
				map[string]any{"region_id": 99, "work_gap": 9},
			},
		},
	})

	if !d.CustomZones {
		t.Error("CustomZones = false, want true")
	}
	zone, ok := d.Zone(3)
	if !ok {
		t.Fatal("zone 3 missing")
	}
	if zone.Gap != 2 || zone.BladeHeight != 60 || !zone.Setting {
		t.Errorf("zone = %+v, want gap 2 height 60 setting", zone)
	}
	if _, ok := d.Zone(99); ok {
		t.Error("unknown zone was created by a settings push")
	}
}
