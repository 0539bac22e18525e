package cloud

import (
	"context"
	"fmt"

	"github.com/nerrad567/sunseeker-core/internal/infrastructure/config"
	"github.com/nerrad567/sunseeker-core/internal/schedule"
)

// Work intents share the legacy numeric mode values; the wireless
// variant translates them to action verbs on the wire.
const (
	intentPause = 0
	intentStart = 1
	intentDock  = 2
	intentStop  = 4
)

// wirelessActions maps intents to the wireless action verb and
// command id.
var wirelessActions = map[int][2]string{
	intentStart: {"start", "startWork"},
	intentPause: {"pause", "pauseWork"},
	intentDock:  {"start_find_charger", "startFindCharger"},
	intentStop:  {"stop", "stopWork"},
}

// Start begins mowing. A non-zero zoneID scopes the run to one zone
// (wireless variant only).
func (c *Client) Start(ctx context.Context, serial string, zoneID int) error {
	return c.sendIntent(ctx, serial, intentStart, zoneID)
}

// Pause suspends the current run.
func (c *Client) Pause(ctx context.Context, serial string) error {
	return c.sendIntent(ctx, serial, intentPause, 0)
}

// Dock sends the mower back to the charger.
func (c *Client) Dock(ctx context.Context, serial string) error {
	return c.sendIntent(ctx, serial, intentDock, 0)
}

// Stop aborts the current run.
func (c *Client) Stop(ctx context.Context, serial string) error {
	return c.sendIntent(ctx, serial, intentStop, 0)
}

// Border starts a border cut. Only legacy mowers distinguish it from
// Stop; both share the same wire value.
func (c *Client) Border(ctx context.Context, serial string) error {
	return c.sendIntent(ctx, serial, intentStop, 0)
}

func (c *Client) sendIntent(ctx context.Context, serial string, intent, zoneID int) error {
	if c.variant == config.VariantLegacy {
		_, err := c.postEnvelope(ctx, "/app_mower/device/setWorkStatus", map[string]any{
			"appId":    c.UserID(),
			"deviceSn": serial,
			"mode":     intent,
		})
		return err
	}

	action, ok := wirelessActions[intent]
	if !ok {
		return fmt.Errorf("cloud: no action for intent %d", intent)
	}
	body := map[string]any{
		"appId":    c.UserID(),
		"cmd":      action[0],
		"deviceSn": serial,
		"id":       action[1],
		"method":   "action",
	}
	if zoneID != 0 {
		body["work_id"] = zoneID
	}
	_, err := c.postEnvelope(ctx, "/iot_mower/wireless/device/action", body)
	return err
}

// ===== Legacy settings =====

// SetZones writes the legacy multi-zone split: per-zone mowing
// percentages and starting-point priorities.
func (c *Client) SetZones(ctx context.Context, serial string, auto, enabled bool, percents, priorities [4]int) error {
	_, err := c.postEnvelope(ctx, "/app_mower/device/setZones", map[string]any{
		"appId":                c.UserID(),
		"deviceSn":             serial,
		"meterFirst":           0,
		"meterSecond":          0,
		"meterThird":           0,
		"meterFour":            0,
		"proFirst":             priorities[0],
		"proSecond":            priorities[1],
		"proThird":             priorities[2],
		"proFour":              priorities[3],
		"zoneAutomaticFlag":    auto,
		"zoneExFlag":           0,
		"zoneOpenFlag":         enabled,
		"zoneFirstPercentage":  percents[0],
		"zoneSecondPercentage": percents[1],
		"zoneThirdPercentage":  percents[2],
		"zoneFourthPercentage": percents[3],
	})
	return err
}

// ScheduleDay is one day of the legacy weekly schedule. Times are
// "HH:MM"; Day runs Monday=1 through Sunday=7.
type ScheduleDay struct {
	Day   int
	Start string
	End   string
	Trim  bool
}

// SetLegacySchedule writes the full weekly schedule. The endpoint
// replaces the whole week, so all seven days must be present.
func (c *Client) SetLegacySchedule(ctx context.Context, serial string, days []ScheduleDay) error {
	byDay := make(map[int]ScheduleDay, len(days))
	for _, d := range days {
		byDay[d.Day] = d
	}
	entries := make([]map[string]any, 0, 7)
	for day := 1; day <= 7; day++ {
		d, ok := byDay[day]
		if !ok {
			return fmt.Errorf("cloud: schedule missing day %d", day)
		}
		entries = append(entries, map[string]any{
			"dayOfWeek": day,
			"startAt":   d.Start + ":00",
			"endAt":     d.End + ":00",
			"trimFlag":  d.Trim,
		})
	}
	_, err := c.postEnvelope(ctx, "/app_mower/device-schedule/setScheduling", map[string]any{
		"appId":             c.UserID(),
		"autoFlag":          false,
		"deviceScheduleBOS": entries,
		"deviceSn":          serial,
	})
	return err
}

// ===== Rain handling =====

// SetRain enables or disables the rain sensor and sets the post-rain
// delay in minutes. The two variants use different endpoints.
func (c *Client) SetRain(ctx context.Context, serial string, enabled bool, delayMin int) error {
	if c.variant == config.VariantWireless {
		_, err := c.postEnvelope(ctx, "/iot_mower/wireless/device/set_property", map[string]any{
			"appId":     c.UserID(),
			"delay":     delayMin,
			"deviceSn":  serial,
			"id":        "setDevRain",
			"key":       "rain",
			"method":    "set_property",
			"rain_flag": enabled,
		})
		return err
	}
	_, err := c.postEnvelope(ctx, "/app_mower/device/setRain", map[string]any{
		"appId":             c.UserID(),
		"deviceSn":          serial,
		"rainDelayDuration": delayMin,
		"rainFlag":          enabled,
	})
	return err
}

// ===== Wireless properties =====

// setProperty posts one property write (or read request) on the
// wireless property endpoint.
func (c *Client) setProperty(ctx context.Context, serial, id, key, method string, extra map[string]any) error {
	body := map[string]any{
		"appId":    c.UserID(),
		"deviceSn": serial,
		"id":       id,
		"key":      key,
		"method":   method,
	}
	for k, v := range extra {
		body[k] = v
	}
	_, err := c.postEnvelope(ctx, "/iot_mower/wireless/device/set_property", body)
	return err
}

// SetBorderFrequency sets how often the mower follows the border.
func (c *Client) SetBorderFrequency(ctx context.Context, serial string, freq int) error {
	return c.setProperty(ctx, serial, "setFollowBorderFreq", "follow_border_freq", "set_property",
		map[string]any{"value": freq})
}

// SetPlanMode sets the mowing pattern and, for the custom pattern,
// its angle in degrees.
func (c *Client) SetPlanMode(ctx context.Context, serial string, mode, angle int) error {
	return c.setProperty(ctx, serial, "setPlanAngle", "plan_angle", "set_property",
		map[string]any{"plan_mode": mode, "plan_value": angle})
}

// SetAISensitivity sets the vision obstacle detection sensitivity.
func (c *Client) SetAISensitivity(ctx context.Context, serial string, value int) error {
	return c.setProperty(ctx, serial, "setAISensitivity", "ai_sensitivity", "set_property",
		map[string]any{"value": value})
}

// SetAvoidObjects sets the obstacle contact behaviour.
func (c *Client) SetAvoidObjects(ctx context.Context, serial string, value int) error {
	return c.setProperty(ctx, serial, "setWorkTouchMode", "work_touch_mode", "set_property",
		map[string]any{"value": value})
}

// SetBorderFirst selects whether a run starts with the border cut.
func (c *Client) SetBorderFirst(ctx context.Context, serial string, value bool) error {
	return c.setProperty(ctx, serial, "setFirstAlongBorder", "first_along_border", "set_property",
		map[string]any{"value": value})
}

// SetTimeWorkRepeat enables repeating the scheduled run until the
// area is covered.
func (c *Client) SetTimeWorkRepeat(ctx context.Context, serial string, value bool) error {
	return c.setProperty(ctx, serial, "setTimeWorkRepeat", "time_work_repeat", "set_property",
		map[string]any{"value": value})
}

// SetMowEfficiency sets the lane gap and driving speed.
func (c *Client) SetMowEfficiency(ctx context.Context, serial string, gap, speed int) error {
	return c.setProperty(ctx, serial, "setMowEfficiency", "mow_efficiency", "set_property",
		map[string]any{"gap": gap, "speed": speed})
}

// SetBladeSpeed sets the blade motor speed in rpm.
func (c *Client) SetBladeSpeed(ctx context.Context, serial string, speed int) error {
	return c.setProperty(ctx, serial, "setDevBlade", "blade", "set_property",
		map[string]any{"speed": speed})
}

// SetBladeHeight sets the cutting height in millimetres.
func (c *Client) SetBladeHeight(ctx context.Context, serial string, height int) error {
	return c.setProperty(ctx, serial, "setDevBlade", "blade", "set_property",
		map[string]any{"height": height})
}

// SetCustomZonesEnabled toggles per-zone settings on or off.
func (c *Client) SetCustomZonesEnabled(ctx context.Context, serial string, on bool) error {
	return c.setProperty(ctx, serial, "setCustomFlag", "custom_flag", "set_property",
		map[string]any{"value": on})
}

// ZoneSettings is the per-zone settings bundle for one work region.
type ZoneSettings struct {
	RegionID    int
	BladeHeight int
	BladeSpeed  int
	PlanAngle   int
	PlanMode    int
	WorkGap     int
	WorkSpeed   int
}

// SetZoneSettings writes the settings bundle for one zone.
func (c *Client) SetZoneSettings(ctx context.Context, serial string, z ZoneSettings) error {
	return c.setProperty(ctx, serial, "setCustom", "custom", "set_property",
		map[string]any{"value": []map[string]any{{
			"blade_height": z.BladeHeight,
			"blade_speed":  z.BladeSpeed,
			"plan_angle":   z.PlanAngle,
			"plan_mode":    z.PlanMode,
			"region_id":    z.RegionID,
			"work_gap":     z.WorkGap,
			"work_speed":   z.WorkSpeed,
		}}})
}

// FlexibleSchedule is the full wireless schedule write: the mode
// flags and the enabled slot list.
type FlexibleSchedule struct {
	Custom      bool
	Recommended bool
	Pause       bool
	Timezone    int
	Time        []schedule.WireEntry
}

// SetFlexibleSchedule writes the wireless schedule wholesale.
func (c *Client) SetFlexibleSchedule(ctx context.Context, serial string, s FlexibleSchedule) error {
	return c.setProperty(ctx, serial, "setTimeTactics", "time_tactics", "set_property",
		map[string]any{
			"time_custom_flag":      s.Custom,
			"recommended_time_flag": s.Recommended,
			"time":                  s.Time,
			"time_zone":             s.Timezone,
			"pause":                 s.Pause,
		})
}

// SetScheduleMode selects between no schedule (0), the recommended
// times (1) and the custom slot list (2).
func (c *Client) SetScheduleMode(ctx context.Context, serial string, mode int) error {
	switch mode {
	case 0:
		if err := c.setProperty(ctx, serial, "setTimeCustomFlag", "time_custom_flag", "set_property",
			map[string]any{"value": false}); err != nil {
			return err
		}
		return c.setProperty(ctx, serial, "setRecommendedTimeFlag", "recommended_time_flag", "set_property",
			map[string]any{"value": false})
	case 1:
		return c.setProperty(ctx, serial, "setRecommendedTimeFlag", "recommended_time_flag", "set_property",
			map[string]any{"value": true})
	case 2:
		return c.setProperty(ctx, serial, "setTimeCustomFlag", "time_custom_flag", "set_property",
			map[string]any{"value": true})
	}
	return fmt.Errorf("cloud: unknown schedule mode %d", mode)
}

// RequestScheduleData asks the device to push its schedule over MQTT.
func (c *Client) RequestScheduleData(ctx context.Context, serial string) error {
	return c.setProperty(ctx, serial, "getTimeTactics", "time_custom", "get_property", nil)
}

// RequestAllProperties asks the device to push its full property set
// over MQTT. Unlike schedule reads this goes to the get_property
// endpoint.
func (c *Client) RequestAllProperties(ctx context.Context, serial string) error {
	_, err := c.postEnvelope(ctx, "/iot_mower/wireless/device/get_property", map[string]any{
		"appId":    c.UserID(),
		"deviceSn": serial,
		"id":       "getDevAllProperty",
		"key":      "all",
		"method":   "get_property",
	})
	return err
}
