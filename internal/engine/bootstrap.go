package engine

import (
	"encoding/json"
	"fmt"
	"image"

	"github.com/nerrad567/sunseeker-core/internal/device"
	"github.com/nerrad567/sunseeker-core/internal/mapimage"
)

// DeviceInfo is the identity block from the vendor device list.
type DeviceInfo struct {
	ID            string
	Model         string
	Name          string
	Bluetooth     string
	WifiAddress   string
	RobotImageURL string
}

// RegisterDevice creates (or refreshes) a device from the vendor
// device list.
func (e *Engine) RegisterDevice(serial string, variant device.Variant, info DeviceInfo) *device.Device {
	d := e.store.GetOrCreate(serial, variant)
	e.coord.With(serial, func() {
		d.ID = info.ID
		d.Model = info.Model
		d.Name = info.Name
		d.Bluetooth = info.Bluetooth
		d.WifiAddress = info.WifiAddress
		d.RobotImageURL = info.RobotImageURL
	})
	return d
}

// ApplyStatus merges the polled status document (the "data" object of
// the device detail response).
//
// Polls run through the same change detection as the push stream: a
// repeat poll that matches stored state publishes nothing.
func (e *Engine) ApplyStatus(serial string, data map[string]any) error {
	d, err := e.store.Get(serial)
	if err != nil {
		return err
	}
	p := payload(data)

	e.coord.With(serial, func() {
		m := &merger{d: d, cs: &ChangeSet{}}

		if p.has("electricity") {
			m.setInt("power", &d.Power, p["electricity"])
		}
		if v, ok := p.integer("workStatusCode"); ok {
			e.applyMode(m, v)
		}
		if p.has("rainFlag") {
			m.setBool("rain_enabled", &d.RainEnabled, p["rainFlag"])
		}
		if p.has("rainDelayDuration") {
			m.setInt("rain_delay_set", &d.RainDelaySet, p["rainDelayDuration"])
		}
		// A missing rain status code means "not raining", not
		// "unknown".
		if p.has("rainStatusCode") {
			m.setInt("rain_status", &d.RainStatus, p["rainStatusCode"])
		} else {
			m.setInt("rain_status", &d.RainStatus, 0)
		}

		if d.Variant == device.VariantLegacy {
			if p.has("stationFlag") {
				m.setBool("station", &d.Station, p["stationFlag"])
			}
			if p.has("rainDelayLeft") {
				m.setInt("rain_delay_left", &d.RainDelayLeft, p["rainDelayLeft"])
			}
			if on, ok := p.boolean("onlineFlag"); ok && on {
				m.setString("online", &d.OnlineFlag, `{"online":"1"}`)
			}
		} else {
			if flex := d.Flexible(); flex != nil {
				if v, ok := p.boolean("timeCustomFlag"); ok && v {
					m.setBool("schedule_custom", &flex.Custom, true)
				}
				if v, ok := p.boolean("timeAutoFlag"); ok && v {
					m.setBool("schedule_recommended", &flex.Recommended, true)
				}
			}
			if v, ok := p.str("onlineFlag"); ok && v != "" {
				m.setString("online", &d.OnlineFlag, v)
			}
			if v, ok := p.boolean("customFlag"); ok && v {
				m.setBool("custom_zones", &d.CustomZones, true)
			}
		}

		e.finish(d, m, false)
	})
	return nil
}

// ApplySettings merges the polled settings document. Legacy accounts
// carry the zone percentages and the weekly schedule here; wireless
// accounts carry telemetry, position and per-zone settings. Change
// detection and event fan-out match the push path.
func (e *Engine) ApplySettings(serial string, data map[string]any) error {
	d, err := e.store.Get(serial)
	if err != nil {
		return err
	}
	p := payload(data)

	e.coord.With(serial, func() {
		m := &merger{d: d, cs: &ChangeSet{}}
		if d.Variant == device.VariantLegacy {
			e.applyLegacySettings(m, p)
		} else {
			e.applyWirelessSettings(m, p)
		}
		e.finish(d, m, false)
	})
	return nil
}

func (e *Engine) applyLegacySettings(m *merger, p payload) {
	d := m.d

	if p.has("zoneOpenFlag") {
		m.setBool("zone_open", &d.ZoneOpen, p["zoneOpenFlag"])
		m.setBool("multi_zone", &d.MultiZone, p["zoneOpenFlag"])
	}
	if p.has("zoneAutomaticFlag") {
		m.setBool("multi_zone_auto", &d.MultiZoneAuto, p["zoneAutomaticFlag"])
	}
	zoneKeys := [4]string{"zoneFirstPercentage", "zoneSecondPercentage", "zoneThirdPercentage", "zoneFourthPercentage"}
	proKeys := [4]string{"proFirst", "proSecond", "proThird", "proFour"}
	for i := range zoneKeys {
		if p.has(zoneKeys[i]) {
			m.setInt(fmt.Sprintf("mul_zon%d", i+1), &d.ZonePercents[i], p[zoneKeys[i]])
		}
		if p.has(proKeys[i]) {
			m.setInt(fmt.Sprintf("mul_pro%d", i+1), &d.ZonePriorities[i], p[proKeys[i]])
		}
	}

	leg := d.Legacy()
	if leg == nil {
		return
	}
	list, ok := p.list("deviceScheduleList")
	if !ok {
		return
	}
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ep := payload(entry)
		dayNum, ok := ep.integer("dayOfWeek")
		if !ok {
			continue
		}
		day, err := leg.Day(dayNum)
		if err != nil {
			e.logger.Warn("schedule entry with bad weekday dropped", "serial", d.Serial, "day", dayNum)
			continue
		}
		if start, ok := ep.str("startAt"); ok && len(start) >= 5 && day.Start != start[:5] {
			day.Start = start[:5]
			m.cs.ScheduleChanged = true
		}
		if end, ok := ep.str("endAt"); ok && len(end) >= 5 && day.End != end[:5] {
			day.End = end[:5]
			m.cs.ScheduleChanged = true
		}
		if trim, ok := ep.boolean("trimFlag"); ok && day.Trim != trim {
			day.Trim = trim
			m.cs.ScheduleChanged = true
		}
	}
}

func (e *Engine) applyWirelessSettings(m *merger, p payload) {
	d := m.d

	if p.has("rainCountdown") {
		m.setInt("rain_delay_left", &d.RainDelayLeft, p["rainCountdown"])
	}
	if p.has("net4gSig") {
		m.setInt("net_4g_signal", &d.Net4GSignal, p["net4gSig"])
	}
	if p.has("taskCoverArea") {
		m.setFloat("task_cover_area", &d.TaskCover, p["taskCoverArea"])
	}
	if p.has("taskTotalArea") {
		m.setFloat("task_total_area", &d.TaskTotal, p["taskTotalArea"])
	}
	if p.has("wifiLv") {
		m.setInt("wifi_level", &d.WifiLevel, p["wifiLv"])
	}
	if p.has("bladeSpeed") {
		m.setInt("blade_speed", &d.BladeSpeed, p["bladeSpeed"])
	}
	if p.has("bladeHeight") {
		m.setInt("blade_height", &d.BladeHeight, p["bladeHeight"])
	}

	// Position arrives as a JSON document nested in a string field.
	// Only an actual move counts: a poll repeating the parked position
	// must not grow the path buffer or force a render.
	if raw, ok := p.str("robotPos"); ok && raw != "" {
		var pos struct {
			Angle float64   `json:"angle"`
			Point []float64 `json:"point"`
		}
		if err := json.Unmarshal([]byte(raw), &pos); err != nil {
			e.logger.Warn("bad robotPos payload dropped", "serial", d.Serial, "error", err)
		} else {
			d.Orientation = pos.Angle
			if len(pos.Point) >= 2 && (pos.Point[0] != d.X || pos.Point[1] != d.Y) {
				e.movePoint(m, pos.Point[0], pos.Point[1])
			}
		}
	}

	if raw, ok := p.str("customData"); ok && raw != "" {
		e.applyCustomData(m, raw)
	}
}

// applyCustomData merges the per-zone settings document, a JSON array
// nested in a string field.
func (e *Engine) applyCustomData(m *merger, raw string) {
	var entries []map[string]any
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		e.logger.Warn("bad customData payload dropped", "serial", m.d.Serial, "error", err)
		return
	}
	for _, entry := range entries {
		e.mergeZoneEntry(m, payload(entry))
	}
}

// ApplyMapData installs a fresh geometry document, seeds the zone
// list from the named work regions and rebuilds every artifact.
func (e *Engine) ApplyMapData(serial string, raw []byte) error {
	d, err := e.store.Get(serial)
	if err != nil {
		return err
	}

	g, err := mapimage.ParseGeometry(raw)
	if err != nil {
		return fmt.Errorf("map data for %s: %w", serial, err)
	}

	e.coord.With(serial, func() {
		d.MapData = raw
		for _, meta := range g.WorkZones {
			if meta.ID != 0 || meta.Name != "" {
				d.EnsureZone(meta.ID, meta.Name)
			}
		}
		if rerr := e.renderer.ReloadMaps(d); rerr != nil {
			e.logger.Warn("map reload failed", "serial", serial, "error", rerr)
		}
	})

	e.bus.Publish(Event{Serial: serial, Changes: ChangeSet{MapRegenerate: true, LiveMapRegenerate: true}})
	return nil
}

// ApplyRealPath installs the downloaded mowing path document, a JSON
// array of [x, y, t] triples, and redraws the path and live overlays.
func (e *Engine) ApplyRealPath(serial string, raw []byte) error {
	d, err := e.store.Get(serial)
	if err != nil {
		return err
	}

	var triples [][]float64
	if err := json.Unmarshal(raw, &triples); err != nil {
		return fmt.Errorf("real path for %s: %w", serial, err)
	}

	e.coord.With(serial, func() {
		d.RealPath = d.RealPath[:0]
		for _, pt := range triples {
			if len(pt) >= 2 {
				d.RealPath = append(d.RealPath, device.PathPoint{X: pt[0], Y: pt[1]})
			}
		}
		if rerr := e.renderer.GeneratePath(d); rerr != nil {
			e.logger.Warn("path render failed", "serial", serial, "error", rerr)
			return
		}
		if rerr := e.renderer.GenerateLive(d); rerr != nil {
			e.logger.Warn("live render failed", "serial", serial, "error", rerr)
		}
	})

	e.bus.Publish(Event{Serial: serial, Changes: ChangeSet{MapRegenerate: true}})
	return nil
}

// ApplyCoverageURLs stores the coverage overlay download locations.
// Empty strings leave the previous URLs in place.
func (e *Engine) ApplyCoverageURLs(serial, heatURL, wifiURL string) error {
	d, err := e.store.Get(serial)
	if err != nil {
		return err
	}
	e.coord.With(serial, func() {
		if heatURL != "" {
			d.HeatMapURL = heatURL
		}
		if wifiURL != "" {
			d.WifiMapURL = wifiURL
		}
	})
	return nil
}

// ReportCommandResult surfaces a command outcome on the device. A
// non-empty message is a rejection or transport failure and is
// announced to subscribers; an empty message clears the previous one
// silently.
func (e *Engine) ReportCommandResult(serial, msg string) error {
	d, err := e.store.Get(serial)
	if err != nil {
		return err
	}
	e.coord.With(serial, func() {
		d.ErrorText = msg
	})
	if msg != "" {
		e.bus.Publish(Event{Serial: serial, Changes: ChangeSet{StateChanged: true}})
	}
	return nil
}

// ApplyHeatMap installs a downloaded coverage heat map.
func (e *Engine) ApplyHeatMap(serial string, data []byte) error {
	return e.applyOverlay(serial, data, func(d *device.Device, img image.Image) {
		d.HeatMap = img
	})
}

// ApplyWifiMap installs a downloaded wifi coverage map.
func (e *Engine) ApplyWifiMap(serial string, data []byte) error {
	return e.applyOverlay(serial, data, func(d *device.Device, img image.Image) {
		d.WifiMap = img
	})
}

func (e *Engine) applyOverlay(serial string, data []byte, set func(*device.Device, image.Image)) error {
	d, err := e.store.Get(serial)
	if err != nil {
		return err
	}
	img, err := mapimage.Decode(data)
	if err != nil {
		return fmt.Errorf("overlay for %s: %w", serial, err)
	}
	e.coord.With(serial, func() {
		set(d, img)
	})
	e.bus.Publish(Event{Serial: serial, Changes: ChangeSet{StateChanged: true}})
	return nil
}

// ApplyMarker installs a downloaded robot avatar as the live-map
// marker, normalized to the standard marker size.
func (e *Engine) ApplyMarker(serial string, data []byte) error {
	d, err := e.store.Get(serial)
	if err != nil {
		return err
	}
	img, err := mapimage.Decode(data)
	if err != nil {
		return fmt.Errorf("marker for %s: %w", serial, err)
	}
	e.coord.With(serial, func() {
		d.RobotMarker = mapimage.NormalizeMarker(img)
	})
	return nil
}
