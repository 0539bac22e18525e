package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nerrad567/sunseeker-core/internal/device"
	"github.com/nerrad567/sunseeker-core/internal/infrastructure/config"
	"github.com/nerrad567/sunseeker-core/internal/infrastructure/tsdb"
	"github.com/nerrad567/sunseeker-core/internal/mapimage"
	"github.com/nerrad567/sunseeker-core/internal/schedule"
)

// livePointThreshold is the buffered live-point count that forces a
// live composite redraw even without a position update.
const livePointThreshold = 100

// repollKind keys the deferred refresh armed after a fault-code
// change.
const repollKind = "repoll"

// Logger is the minimal logging interface the engine needs. It is
// satisfied by logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Syncer is the cloud-facing surface the engine drives. Implementations
// perform the work asynchronously; requests must not block the merge
// path.
type Syncer interface {
	// RequestDeviceRefresh re-polls status and settings for one device.
	RequestDeviceRefresh(serial string)

	// RequestMapData downloads fresh map geometry.
	RequestMapData(serial string)

	// RequestHeatMap and RequestWifiMap download the coverage image a
	// push just announced.
	RequestHeatMap(serial string)
	RequestWifiMap(serial string)

	// RequestProperties and RequestSchedule ask the device to push its
	// full property and schedule state.
	RequestProperties(serial string)
	RequestSchedule(serial string)
}

// SnapshotWriter receives telemetry snapshots after state changes. It
// is satisfied by tsdb.Client.
type SnapshotWriter interface {
	WriteSnapshot(serial string, snap tsdb.Snapshot)
}

// Engine merges push messages into device state, decides which map
// artifacts to rebuild and which cloud fetches to request, and fans
// change events out to subscribers.
type Engine struct {
	store    *device.Store
	renderer *mapimage.Renderer
	syncer   Syncer
	bus      *Bus
	coord    *Coordinator

	history   device.HistoryRepository
	telemetry SnapshotWriter

	repollDelay time.Duration
	logger      Logger

	firstMessage atomic.Bool
}

// New creates an engine around the given store, renderer and cloud
// syncer. History and telemetry sinks are optional and attached with
// setters.
func New(store *device.Store, renderer *mapimage.Renderer, syncer Syncer, cfg config.SyncConfig) *Engine {
	repoll := time.Duration(cfg.CommandRepollDelay) * time.Second
	if repoll <= 0 {
		repoll = 10 * time.Second
	}
	return &Engine{
		store:       store,
		renderer:    renderer,
		syncer:      syncer,
		bus:         NewBus(),
		coord:       NewCoordinator(),
		repollDelay: repoll,
		logger:      noopLogger{},
	}
}

// SetLogger installs a logger. Passing nil restores the no-op logger.
func (e *Engine) SetLogger(l Logger) {
	if l == nil {
		l = noopLogger{}
	}
	e.logger = l
}

// SetHistory attaches the transition history repository.
func (e *Engine) SetHistory(h device.HistoryRepository) { e.history = h }

// SetTelemetry attaches the time-series snapshot sink.
func (e *Engine) SetTelemetry(w SnapshotWriter) { e.telemetry = w }

// Bus returns the event bus for subscribers.
func (e *Engine) Bus() *Bus { return e.bus }

// Coordinator returns the per-device work coordinator.
func (e *Engine) Coordinator() *Coordinator { return e.coord }

// Unload drops one device: its pending timers are cancelled and
// further push messages for the serial are ignored.
func (e *Engine) Unload(serial string) {
	e.coord.Cancel(serial)
	e.store.Remove(serial)
}

// Close stops pending deferred work.
func (e *Engine) Close() { e.coord.Close() }

// Snapshot returns an isolated copy of one device, taken under its
// serialization lock.
func (e *Engine) Snapshot(serial string) (*device.Device, error) {
	d, err := e.store.Get(serial)
	if err != nil {
		return nil, err
	}
	var cp *device.Device
	e.coord.With(serial, func() {
		cp = d.DeepCopy()
	})
	return cp, nil
}

// Snapshots returns isolated copies of every loaded device.
func (e *Engine) Snapshots() []*device.Device {
	serials := e.store.Serials()
	out := make([]*device.Device, 0, len(serials))
	for _, serial := range serials {
		if cp, err := e.Snapshot(serial); err == nil {
			out = append(out, cp)
		}
	}
	return out
}

// HandleMessage merges one push message. Its signature matches
// mqtt.MessageHandler so it subscribes directly.
//
// Messages without a deviceSn, or for a serial the store does not
// know, are logged and dropped; a malformed message returns an error
// but never poisons the stream.
func (e *Engine) HandleMessage(topic string, raw []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("engine: malformed push on %s: %w", topic, err)
	}
	p := payload(doc)

	e.bootstrapOnFirstMessage()

	serial, ok := p.str("deviceSn")
	if !ok {
		e.logger.Debug("push without deviceSn dropped", "topic", topic)
		return nil
	}
	d, err := e.store.Get(serial)
	if err != nil {
		e.logger.Warn("push for unknown device dropped", "serial", serial)
		return nil
	}

	e.coord.With(serial, func() {
		m := &merger{d: d, cs: &ChangeSet{}}
		repoll := e.applyFlat(m, p)
		if nested, ok := p.child("data"); ok {
			repoll = e.applyNested(m, p, nested) || repoll
		}
		e.applyLegacy(m, p)
		e.finish(d, m, repoll)
	})
	return nil
}

// bootstrapOnFirstMessage requests full properties and schedules for
// every wireless device exactly once, on the first push of the
// session. Wireless devices only volunteer deltas; the baseline must
// be asked for.
func (e *Engine) bootstrapOnFirstMessage() {
	if e.firstMessage.Swap(true) {
		return
	}
	for _, serial := range e.store.Serials() {
		d, err := e.store.Get(serial)
		if err != nil || d.Variant != device.VariantWireless {
			continue
		}
		e.syncer.RequestProperties(serial)
		e.syncer.RequestSchedule(serial)
	}
}

// applyFlat handles the top-level telemetry keys shared by both
// variants. Returns whether a fault-driven repoll is due.
func (e *Engine) applyFlat(m *merger, p payload) bool {
	d := m.d

	if p.has("power") {
		m.setInt("power", &d.Power, p["power"])
	}

	repoll := false
	if p.has("mode") {
		if mode, ok := p.integer("mode"); ok {
			e.applyMode(m, mode)
		}
		repoll = e.applyFault(d, p)
	}
	return repoll
}

// applyMode merges a mode change and flags the map work a transition
// into a working state demands: the mower is about to cut new ground,
// so current geometry and both canvases go stale.
func (e *Engine) applyMode(m *merger, mode int) {
	d := m.d
	if d.Mode != mode && !device.WorkingState(d.Variant, d.Mode) && device.WorkingState(d.Variant, mode) {
		m.cs.MapRegenerate = true
		m.cs.LiveMapRegenerate = true
		m.cs.FetchMapData = true
	}
	m.setInt("mode", &d.Mode, mode)
}

// applyFault merges the fault code that rides along with mode updates.
// A missing errortype key means the fault cleared. Any change arms a
// deferred repoll because fault detail only comes from the HTTP API.
func (e *Engine) applyFault(d *device.Device, p payload) bool {
	if fault, ok := p.integer("errortype"); ok {
		if d.FaultCode != fault {
			d.FaultCode = fault
			return true
		}
		return false
	}
	if d.FaultCode != 0 {
		d.FaultCode = 0
		return true
	}
	return false
}

// applyNested handles the wireless envelope: everything under the
// "data" object plus the envelope-level id. Returns whether a
// fault-driven repoll is due.
func (e *Engine) applyNested(m *merger, top, data payload) bool {
	d := m.d

	repoll := false
	if data.has("status") {
		if mode, ok := data.integer("status"); ok {
			e.applyMode(m, mode)
		}
		repoll = e.applyFault(d, top)
	}

	e.applyEvents(m, top, data)
	e.applyScheduleFlags(m, data)
	e.applyTelemetry(m, data)
	e.applyPosition(m, data)
	e.applyTimeCustom(m, data)
	e.applyZones(m, data)

	return repoll
}

// applyEvents handles task-completion records and coverage-image
// announcements.
func (e *Engine) applyEvents(m *merger, top, data payload) {
	d := m.d

	id, hasID := top.str("id")
	if hasID && strings.Contains(id, "report_work_record") {
		// A task finished: the recorded path and geometry both moved
		// on, so everything reloads.
		m.cs.StateChanged = true
		m.cs.FetchMapData = true
		m.cs.MapRegenerate = true
		m.cs.LiveMapRegenerate = true
		d.EventType = id
		d.EventCode = -1
	}

	if code, ok := data.integer("event_code"); ok && code != 0 {
		if hasID {
			m.setString("event_type", &d.EventType, id)
		}
		m.setInt("event_code", &d.EventCode, code)
		if url, ok := data.str("url"); ok {
			switch d.EventCode {
			case 1:
				d.HeatMapURL = url
				m.cs.FetchHeatMap = true
			case 3:
				d.WifiMapURL = url
				m.cs.FetchWifiMap = true
			}
		}
	}
}

// applyScheduleFlags merges the flexible-schedule mode flags.
func (e *Engine) applyScheduleFlags(m *merger, data payload) {
	flex := m.d.Flexible()
	if flex == nil {
		return
	}
	if data.has("recommended_time_flag") {
		m.setBool("schedule_recommended", &flex.Recommended, data["recommended_time_flag"])
	}
	if data.has("time_custom_flag") {
		m.setBool("schedule_custom", &flex.Custom, data["time_custom_flag"])
	}
	if data.has("pause") {
		m.setBool("schedule_pause", &flex.Paused, data["pause"])
	}
	if data.has("time_zone") {
		m.setInt("schedule_timezone", &flex.Timezone, data["time_zone"])
	}
}

// applyTelemetry merges the plain nested telemetry and settings keys.
func (e *Engine) applyTelemetry(m *merger, data payload) {
	d := m.d

	if data.has("work_touch_mode") {
		m.setInt("avoid_objects", &d.AvoidObjects, data["work_touch_mode"])
	}
	if data.has("ai_sensitivity") {
		m.setInt("ai_sensitivity", &d.AISensitivity, data["ai_sensitivity"])
	}
	if data.has("work_time") {
		m.setInt("work_minutes", &d.WorkMinutes, data["work_time"])
	}
	if data.has("elec") {
		m.setInt("power", &d.Power, data["elec"])
	}
	if data.has("rain_countdown") {
		m.setInt("rain_delay_left", &d.RainDelayLeft, data["rain_countdown"])
	}
	if data.has("rain_status") {
		m.setInt("rain_status", &d.RainStatus, data["rain_status"])
	}
	if rain, ok := data.child("rain"); ok {
		if rain.has("rain_flag") {
			m.setBool("rain_enabled", &d.RainEnabled, rain["rain_flag"])
		}
		if rain.has("delay") {
			m.setInt("rain_delay_set", &d.RainDelaySet, rain["delay"])
		}
	}
	if data.has("robot_sig") {
		m.setInt("robot_signal", &d.RobotSignal, data["robot_sig"])
	}
	if data.has("first_along_border") {
		m.setBool("border_first", &d.BorderFirst, data["first_along_border"])
	}
	if data.has("follow_border_freq") {
		m.setInt("border_mode", &d.BorderMode, data["follow_border_freq"])
	}
	if data.has("wifi_sig") {
		m.setInt("wifi_level", &d.WifiLevel, data["wifi_sig"])
	}
	if data.has("task_total_area") {
		m.setFloat("task_total_area", &d.TaskTotal, data["task_total_area"])
	}
	if data.has("task_cover_area") {
		m.setFloat("task_cover_area", &d.TaskCover, data["task_cover_area"])
	}
	if data.has("net_4g_sig") {
		m.setInt("net_4g_signal", &d.Net4GSignal, data["net_4g_sig"])
	}
	if data.has("time_work_repeat") {
		m.setBool("time_work_repeat", &d.TimeWorkRepeat, data["time_work_repeat"])
	}
	if eff, ok := data.child("mow_efficiency"); ok {
		if eff.has("gap") {
			m.setInt("gap", &d.Gap, eff["gap"])
		}
		if eff.has("speed") {
			m.setInt("work_speed", &d.WorkSpeed, eff["speed"])
		}
	}
	if data.has("plan_value") {
		m.setInt("plan_angle", &d.PlanAngle, data["plan_value"])
	}
	if data.has("plan_mode") {
		m.setInt("plan_mode", &d.PlanMode, data["plan_mode"])
	}
	if plan, ok := data.child("plan_angle"); ok {
		if plan.has("plan_value") {
			m.setInt("plan_angle", &d.PlanAngle, plan["plan_value"])
		}
		if plan.has("plan_mode") {
			m.setInt("plan_mode", &d.PlanMode, plan["plan_mode"])
		}
	}
	if blade, ok := data.child("blade"); ok {
		if blade.has("speed") {
			m.setInt("blade_speed", &d.BladeSpeed, blade["speed"])
		}
		if blade.has("height") {
			m.setInt("blade_height", &d.BladeHeight, blade["height"])
		}
	}
}

// applyPosition merges robot position and buffered path points.
//
// Position samples assign without field-level change tracking: the
// robot reports continuously while moving and every sample matters
// for the live composite, not for observers.
func (e *Engine) applyPosition(m *merger, data payload) {
	d := m.d

	if pos, ok := data.child("robot_pos"); ok {
		if angle, ok := pos.float("angle"); ok {
			d.Orientation = angle
		}
		if point, ok := pos.list("point"); ok && len(point) >= 2 {
			x, okX := asFloat(point[0])
			y, okY := asFloat(point[1])
			if okX && okY {
				e.movePoint(m, x, y)
			}
		}
	}

	if info, ok := data.child("path_info"); ok {
		if raw, ok := info.str("path"); ok {
			var pts [][]float64
			if err := json.Unmarshal([]byte(raw), &pts); err != nil {
				e.logger.Warn("bad path_info payload dropped", "serial", d.Serial, "error", err)
				return
			}
			for _, pt := range pts {
				if len(pt) >= 2 {
					d.LivePathPoints = append(d.LivePathPoints, device.PathPoint{X: pt[0], Y: pt[1]})
				}
			}
			if len(d.LivePathPoints) > livePointThreshold {
				m.cs.RobotMoved = true
			}
		}
	}
}

// movePoint assigns the current position, accumulates it into the
// live-path buffer and flags a live redraw.
func (e *Engine) movePoint(m *merger, x, y float64) {
	d := m.d
	d.X, d.Y = x, y
	d.LivePathPoints = append(d.LivePathPoints, device.PathPoint{X: x, Y: y})
	m.cs.RobotMoved = true
}

// applyTimeCustom merges the flexible schedule's wire payloads. A list
// is the device's full current table and replaces local state; an
// object is the response to an explicit schedule query and carries the
// flags alongside an optional table.
func (e *Engine) applyTimeCustom(m *merger, data payload) {
	flex := m.d.Flexible()
	if flex == nil || !data.has("time_custom") {
		return
	}
	m.cs.StateChanged = true

	if list, ok := data.list("time_custom"); ok {
		e.applyWireList(flex, list)
		return
	}

	tc, ok := data.child("time_custom")
	if !ok {
		return
	}
	if v, ok := tc.boolean("recommended_time_work"); ok {
		flex.Recommended = v
	}
	if v, ok := tc.integer("time_zone"); ok {
		flex.Timezone = v
	}
	if v, ok := tc.boolean("pause"); ok {
		flex.Paused = v
	}
	if v, ok := tc.boolean("time_custom_flag"); ok {
		flex.Custom = v
	}
	if list, ok := tc.list("time"); ok && len(list) > 0 {
		e.applyWireList(flex, list)
	}
}

func (e *Engine) applyWireList(flex *schedule.Flexible, list []any) {
	var entries []schedule.WireEntry
	if err := reencode(list, &entries); err != nil {
		e.logger.Warn("bad time_custom payload dropped", "error", err)
		return
	}
	flex.ApplyWireList(entries)
}

// applyZones merges per-zone settings. Settings for a zone the map
// has not named yet are dropped; zones appear via geometry, never via
// settings pushes.
func (e *Engine) applyZones(m *merger, data payload) {
	d := m.d

	if data.has("custom_flag") {
		m.setBool("custom_zones", &d.CustomZones, data["custom_flag"])
	}

	list, ok := data.list("custom")
	if !ok {
		return
	}
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		e.mergeZoneEntry(m, payload(entry))
	}
}

// mergeZoneEntry merges one per-zone settings object, keyed by
// region_id. Both the push list and the polled customData document
// carry this shape.
func (e *Engine) mergeZoneEntry(m *merger, z payload) {
	d := m.d

	id, ok := z.integer("region_id")
	if !ok {
		return
	}
	zone, ok := d.Zone(id)
	if !ok {
		e.logger.Debug("settings for unknown zone dropped", "serial", d.Serial, "zone", id)
		return
	}
	prefix := fmt.Sprintf("zone%d.", id)
	if z.has("work_gap") {
		m.setInt(prefix+"gap", &zone.Gap, z["work_gap"])
	}
	if z.has("region_size") {
		m.setInt(prefix+"region_size", &zone.RegionSize, z["region_size"])
	}
	if z.has("blade_height") {
		m.setInt(prefix+"blade_height", &zone.BladeHeight, z["blade_height"])
	}
	if z.has("estimate_time") {
		m.setInt(prefix+"estimate_time", &zone.EstimateTime, z["estimate_time"])
	}
	if z.has("blade_speed") {
		m.setInt(prefix+"blade_speed", &zone.BladeSpeed, z["blade_speed"])
	}
	if z.has("plan_mode") {
		m.setInt(prefix+"plan_mode", &zone.PlanMode, z["plan_mode"])
	}
	if z.has("work_speed") {
		m.setInt(prefix+"work_speed", &zone.WorkSpeed, z["work_speed"])
	}
	if z.has("setting") {
		m.setBool(prefix+"setting", &zone.Setting, z["setting"])
	}
	if z.has("plan_angle") {
		m.setInt(prefix+"plan_angle", &zone.PlanAngle, z["plan_angle"])
	}
}

// applyLegacy handles the flat keys the legacy protocol sends beside
// the shared ones.
func (e *Engine) applyLegacy(m *merger, p payload) {
	d := m.d

	if p.has("station") {
		m.setBool("station", &d.Station, p["station"])
	}
	if p.has("wifi_lv") {
		m.setInt("wifi_level", &d.WifiLevel, p["wifi_lv"])
	}
	if p.has("rain_en") {
		m.setBool("rain_enabled", &d.RainEnabled, p["rain_en"])
	}
	if p.has("rain_status") {
		m.setInt("rain_status", &d.RainStatus, p["rain_status"])
	}
	if p.has("rain_delay_set") {
		m.setInt("rain_delay_set", &d.RainDelaySet, p["rain_delay_set"])
	}
	if p.has("rain_delay_left") {
		m.setInt("rain_delay_left", &d.RainDelayLeft, p["rain_delay_left"])
	}
	if p.has("rain_countdown") {
		m.setInt("rain_delay_left", &d.RainDelayLeft, p["rain_countdown"])
	}
	if p.has("cur_min") {
		m.setInt("work_minutes", &d.WorkMinutes, p["cur_min"])
	}

	// Legacy announces connectivity as a JSON string under "data";
	// the wireless envelope uses the same key for its object payload.
	if online, ok := p.str("data"); ok {
		m.setString("online", &d.OnlineFlag, online)
	}

	if p.has("zoneOpenFlag") {
		m.setBool("zone_open", &d.ZoneOpen, p["zoneOpenFlag"])
	}
	if p.has("mul_en") {
		m.setBool("multi_zone", &d.MultiZone, p["mul_en"])
	}
	if p.has("mul_auto") {
		m.setBool("multi_zone_auto", &d.MultiZoneAuto, p["mul_auto"])
	}
	zoneKeys := [4]string{"mul_zon1", "mul_zon2", "mul_zon3", "mul_zon4"}
	proKeys := [4]string{"mul_pro1", "mul_pro2", "mul_pro3", "mul_pro4"}
	for i := range zoneKeys {
		if p.has(zoneKeys[i]) {
			m.setInt(zoneKeys[i], &d.ZonePercents[i], p[zoneKeys[i]])
		}
		if p.has(proKeys[i]) {
			m.setInt(proKeys[i], &d.ZonePriorities[i], p[proKeys[i]])
		}
	}

	e.applyLegacySchedule(m, p)
}

var legacyDayKeys = []struct {
	key string
	day int
}{
	{"Mon", 1}, {"Tue", 2}, {"Wed", 3}, {"Thu", 4},
	{"Fri", 5}, {"Sat", 6}, {"Sun", 7},
}

func (e *Engine) applyLegacySchedule(m *merger, p payload) {
	leg := m.d.Legacy()
	if leg == nil {
		return
	}
	for _, dk := range legacyDayKeys {
		if !p.has(dk.key) {
			continue
		}
		dayPayload, _ := p.child(dk.key)
		if err := leg.UpdateFromPush(dayPayload, dk.day); err != nil {
			e.logger.Warn("legacy schedule update failed", "serial", m.d.Serial, "day", dk.key, "error", err)
			continue
		}
		m.cs.ScheduleChanged = true
	}
}

// finish runs the post-merge consequences: renders, cloud fetch
// requests, the deferred fault repoll, observer notification, history
// and telemetry.
func (e *Engine) finish(d *device.Device, m *merger, repoll bool) {
	cs := *m.cs

	if repoll {
		serial := d.Serial
		e.coord.ScheduleOnce(serial, repollKind, e.repollDelay, func() {
			e.syncer.RequestDeviceRefresh(serial)
		})
	}

	if cs.RobotMoved {
		if err := e.renderer.GenerateLive(d); err != nil {
			e.logger.Warn("live render failed", "serial", d.Serial, "error", err)
		}
	}
	switch {
	case cs.MapRegenerate && cs.LiveMapRegenerate:
		if err := e.renderer.ReloadMaps(d); err != nil {
			e.logger.Warn("map reload failed", "serial", d.Serial, "error", err)
		}
	case cs.LiveMapRegenerate:
		if err := e.renderer.GenerateLive(d); err != nil {
			e.logger.Warn("live render failed", "serial", d.Serial, "error", err)
		}
	}

	if cs.FetchMapData {
		e.syncer.RequestMapData(d.Serial)
	}
	if cs.FetchHeatMap {
		e.syncer.RequestHeatMap(d.Serial)
	}
	if cs.FetchWifiMap {
		e.syncer.RequestWifiMap(d.Serial)
	}

	if cs.Any() {
		e.bus.Publish(Event{Serial: d.Serial, Changes: cs})
	}

	e.recordHistory(d.Serial, m.changes)

	if cs.StateChanged && e.telemetry != nil {
		e.telemetry.WriteSnapshot(d.Serial, tsdb.Snapshot{
			Battery:     d.Power,
			Mode:        d.StateName(),
			RainStatus:  d.RainStatus,
			Signal:      d.WifiLevel,
			X:           d.X,
			Y:           d.Y,
			Orientation: int(d.Orientation),
		})
	}
}

func (e *Engine) recordHistory(serial string, changes []fieldChange) {
	if e.history == nil {
		return
	}
	for _, fc := range changes {
		if err := e.history.Record(context.Background(), serial, fc.field, fc.old, fc.new); err != nil {
			e.logger.Warn("transition history write failed", "serial", serial, "field", fc.field, "error", err)
		}
	}
}
