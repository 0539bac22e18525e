package engine

import (
	"testing"

	"github.com/nerrad567/sunseeker-core/internal/device"
)

// ===== Status =====

// TestApplyStatusLegacy verifies the legacy baseline poll.
func TestApplyStatusLegacy(t *testing.T) {
	e, d, _ := newTestEngine(t, device.VariantLegacy)

	err := e.ApplyStatus("SN100", map[string]any{
		"electricity":       92,
		"workStatusCode":    "3",
		"stationFlag":       true,
		"rainFlag":          true,
		"rainDelayDuration": "120",
		"rainDelayLeft":     30,
		"onlineFlag":        true,
	})
	if err != nil {
		t.Fatalf("ApplyStatus() error = %v", err)
	}

	if d.Power != 92 || d.Mode != 3 {
		t.Errorf("power/mode = %d/%d, want 92/3", d.Power, d.Mode)
	}
	if !d.Station || !d.RainEnabled || d.RainDelaySet != 120 || d.RainDelayLeft != 30 {
		t.Errorf("station/rain = %v/%v/%d/%d", d.Station, d.RainEnabled, d.RainDelaySet, d.RainDelayLeft)
	}
	if d.RainStatus != 0 {
		t.Errorf("RainStatus = %d, want 0 when code absent", d.RainStatus)
	}
	if d.OnlineFlag != `{"online":"1"}` {
		t.Errorf("OnlineFlag = %q", d.OnlineFlag)
	}
}

// TestApplyStatusWireless verifies the wireless baseline poll.
func TestApplyStatusWireless(t *testing.T) {
	e, d, _ := newTestEngine(t, device.VariantWireless)

	err := e.ApplyStatus("SN100", map[string]any{
		"electricity":    50,
		"workStatusCode": 2,
		"rainStatusCode": 1,
		"timeCustomFlag": 1,
		"timeAutoFlag":   1,
		"onlineFlag":     "online",
		"customFlag":     true,
	})
	if err != nil {
		t.Fatalf("ApplyStatus() error = %v", err)
	}

	if d.Mode != 2 || d.RainStatus != 1 {
		t.Errorf("mode/rain = %d/%d, want 2/1", d.Mode, d.RainStatus)
	}
	flex := d.Flexible()
	if !flex.Custom || !flex.Recommended {
		t.Errorf("schedule flags = %v/%v, want both set", flex.Custom, flex.Recommended)
	}
	if d.OnlineFlag != "online" || !d.CustomZones {
		t.Errorf("online/custom = %q/%v", d.OnlineFlag, d.CustomZones)
	}

	if err := e.ApplyStatus("SN999", nil); err == nil {
		t.Error("ApplyStatus() for unknown serial, expected error")
	}
}

// TestStatusPollChangeDetection verifies a changed poll publishes one
// event and an identical follow-up poll publishes none.
func TestStatusPollChangeDetection(t *testing.T) {
	e, _, _ := newTestEngine(t, device.VariantLegacy)
	_, events := e.Bus().Subscribe()

	doc := map[string]any{"electricity": 55, "workStatusCode": 1}
	if err := e.ApplyStatus("SN100", doc); err != nil {
		t.Fatalf("ApplyStatus() error = %v", err)
	}
	ev, ok := takeEvent(t, events)
	if !ok {
		t.Fatal("changed poll published no event")
	}
	if !ev.Changes.StateChanged {
		t.Errorf("changes = %+v, want StateChanged", ev.Changes)
	}

	if err := e.ApplyStatus("SN100", doc); err != nil {
		t.Fatalf("ApplyStatus() error = %v", err)
	}
	if ev, ok := takeEvent(t, events); ok {
		t.Errorf("identical second poll published %+v", ev.Changes)
	}
}

// ===== Settings =====

// TestApplySettingsLegacy verifies zone percentages and the weekly
// schedule import.
func TestApplySettingsLegacy(t *testing.T) {
	e, d, _ := newTestEngine(t, device.VariantLegacy)

	err := e.ApplySettings("SN100", map[string]any{
		"zoneOpenFlag":         true,
		"zoneAutomaticFlag":    false,
		"zoneFirstPercentage":  40,
		"zoneSecondPercentage": 30,
		"zoneThirdPercentage":  20,
		"zoneFourthPercentage": 10,
		"proFirst":             1,
		"proFour":              4,
		"deviceScheduleList": []any{
			map[string]any{"dayOfWeek": 1, "startAt": "06:30:00", "endAt": "18:00:00", "trimFlag": true},
			map[string]any{"dayOfWeek": 9, "startAt": "06:30:00", "endAt": "18:00:00"},
		},
	})
	if err != nil {
		t.Fatalf("ApplySettings() error = %v", err)
	}

	if !d.ZoneOpen || !d.MultiZone || d.MultiZoneAuto {
		t.Errorf("zone flags = %v/%v/%v", d.ZoneOpen, d.MultiZone, d.MultiZoneAuto)
	}
	if d.ZonePercents != [4]int{40, 30, 20, 10} {
		t.Errorf("percents = %v", d.ZonePercents)
	}
	if d.ZonePriorities[0] != 1 || d.ZonePriorities[3] != 4 {
		t.Errorf("priorities = %v", d.ZonePriorities)
	}

	day, err := d.Legacy().Day(1)
	if err != nil {
		t.Fatalf("Day(1) error = %v", err)
	}
	if day.Start != "06:30" || day.End != "18:00" || !day.Trim {
		t.Errorf("monday = %+v, want 06:30..18:00 trim", day)
	}
}

// TestApplySettingsWireless verifies telemetry, the embedded position
// document and per-zone custom data.
func TestApplySettingsWireless(t *testing.T) {
	e, d, _ := newTestEngine(t, device.VariantWireless)
	d.EnsureZone(3, "Front Lawn")

	err := e.ApplySettings("SN100", map[string]any{
		"rainCountdown": 15,
		"net4gSig":      12,
		"taskCoverArea": 55.5,
		"taskTotalArea": 100.0,
		"wifiLv":        -55,
		"bladeSpeed":    3,
		"bladeHeight":   65,
		"robotPos":      `{"angle": 0.75, "point": [4.5, 2.25]}`,
		"customData":    `[{"region_id": 3, "work_gap": 2, "work_speed": 4}]`,
	})
	if err != nil {
		t.Fatalf("ApplySettings() error = %v", err)
	}

	if d.RainDelayLeft != 15 || d.Net4GSignal != 12 || d.WifiLevel != -55 {
		t.Errorf("telemetry = %d/%d/%d", d.RainDelayLeft, d.Net4GSignal, d.WifiLevel)
	}
	if d.TaskCover != 55.5 || d.TaskTotal != 100 {
		t.Errorf("areas = %v/%v", d.TaskCover, d.TaskTotal)
	}
	if d.BladeSpeed != 3 || d.BladeHeight != 65 {
		t.Errorf("blade = %d/%d", d.BladeSpeed, d.BladeHeight)
	}
	if d.Orientation != 0.75 || d.X != 4.5 || d.Y != 2.25 {
		t.Errorf("pos = (%v, %v, %v)", d.X, d.Y, d.Orientation)
	}

	zone, _ := d.Zone(3)
	if zone.Gap != 2 || zone.WorkSpeed != 4 {
		t.Errorf("zone = %+v, want gap 2 speed 4", zone)
	}
}

// TestSettingsPollChangeDetection verifies a repeated settings poll is
// silent and a parked position does not grow the path buffer.
func TestSettingsPollChangeDetection(t *testing.T) {
	e, d, _ := newTestEngine(t, device.VariantWireless)
	_, events := e.Bus().Subscribe()

	doc := map[string]any{
		"wifiLv":   -60,
		"robotPos": `{"angle": 0.5, "point": [3, 4]}`,
	}
	if err := e.ApplySettings("SN100", doc); err != nil {
		t.Fatalf("ApplySettings() error = %v", err)
	}
	ev, ok := takeEvent(t, events)
	if !ok {
		t.Fatal("changed poll published no event")
	}
	if !ev.Changes.StateChanged || !ev.Changes.RobotMoved {
		t.Errorf("changes = %+v, want StateChanged and RobotMoved", ev.Changes)
	}
	if len(d.LivePathPoints) != 1 {
		t.Errorf("path buffer = %d points, want 1", len(d.LivePathPoints))
	}

	if err := e.ApplySettings("SN100", doc); err != nil {
		t.Fatalf("ApplySettings() error = %v", err)
	}
	if ev, ok := takeEvent(t, events); ok {
		t.Errorf("identical second poll published %+v", ev.Changes)
	}
	if len(d.LivePathPoints) != 1 {
		t.Errorf("path buffer = %d points after repeat poll, want 1", len(d.LivePathPoints))
	}
}

// ===== Map data =====

// TestApplyMapData verifies geometry install, zone seeding and the
// artifact rebuild.
func TestApplyMapData(t *testing.T) {
	e, d, _ := newTestEngine(t, device.VariantWireless)
	_, events := e.Bus().Subscribe()

	if err := e.ApplyMapData("SN100", []byte(testGeometry)); err != nil {
		t.Fatalf("ApplyMapData() error = %v", err)
	}

	if d.BaseImage == nil || d.LiveImage == nil {
		t.Error("artifacts missing after map install")
	}
	zone, ok := d.Zone(3)
	if !ok || zone.Name != "Front Lawn" {
		t.Errorf("zone 3 = %v/%v, want seeded Front Lawn", zone, ok)
	}
	// The flexible schedule learned the zone name too.
	ids := d.Flexible().IDsByName([]string{"Front Lawn"})
	if len(ids) != 1 || ids[0] != 3 {
		t.Errorf("IDsByName = %v, want [3]", ids)
	}

	ev, ok := takeEvent(t, events)
	if !ok {
		t.Fatal("no event published")
	}
	if !ev.Changes.MapRegenerate {
		t.Errorf("changes = %+v, want MapRegenerate", ev.Changes)
	}

	if err := e.ApplyMapData("SN100", []byte("{broken")); err == nil {
		t.Error("ApplyMapData() with bad document, expected error")
	}
}

// ===== Registration =====

// TestRegisterDevice verifies identity fields land on the device.
func TestRegisterDevice(t *testing.T) {
	e, _, _ := newTestEngine(t, device.VariantWireless)

	d := e.RegisterDevice("SN300", device.VariantWireless, DeviceInfo{
		ID:            "dev-300",
		Model:         "X7",
		Name:          "Back garden",
		WifiAddress:   "10.0.0.9",
		RobotImageURL: "https://cdn.example.com/robot.png",
	})

	if d.ID != "dev-300" || d.Model != "X7" || d.Name != "Back garden" {
		t.Errorf("identity = %q/%q/%q", d.ID, d.Model, d.Name)
	}
	if d.WifiAddress != "10.0.0.9" || d.RobotImageURL == "" {
		t.Errorf("network = %q/%q", d.WifiAddress, d.RobotImageURL)
	}

	again := e.RegisterDevice("SN300", device.VariantWireless, DeviceInfo{ID: "dev-300b"})
	if again != d {
		t.Error("RegisterDevice() created a duplicate device")
	}
	if d.ID != "dev-300b" {
		t.Errorf("ID = %q, want refreshed dev-300b", d.ID)
	}
}
