package engine

// ChangeSet captures what one push message altered and which follow-up
// actions it demands. The zero value means the message changed
// nothing.
type ChangeSet struct {
	// StateChanged is set when any tracked field took a new value.
	// An update that changes nothing leaves the whole set zero and
	// publishes no event, so duplicate payloads stay silent.
	StateChanged bool

	// ScheduleChanged is set when a weekday schedule update arrived.
	ScheduleChanged bool

	// MapRegenerate requests a full artifact rebuild from the current
	// geometry.
	MapRegenerate bool

	// LiveMapRegenerate requests a fresh live composite.
	LiveMapRegenerate bool

	// RobotMoved is set on a position update or when the live-point
	// buffer grew past its threshold; it redraws the live composite.
	RobotMoved bool

	// FetchMapData requests a new geometry download from the vendor
	// cloud before the next rebuild.
	FetchMapData bool

	// FetchHeatMap and FetchWifiMap request a download of the
	// coverage images the device just announced.
	FetchHeatMap bool
	FetchWifiMap bool
}

// Any reports whether the message had any effect at all.
func (c ChangeSet) Any() bool {
	return c.StateChanged || c.ScheduleChanged || c.MapRegenerate ||
		c.LiveMapRegenerate || c.RobotMoved || c.FetchMapData ||
		c.FetchHeatMap || c.FetchWifiMap
}
