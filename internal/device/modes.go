package device

// Mode codes shared by both protocol generations.
const (
	ModeError        = 6
	ModeReturnPause  = 8
	ModeCharging     = 9
	ModeChargingFull = 10
	ModeOffline      = 13
	ModeLocating     = 15
	ModeStop         = 18
)

// Legacy-only mode codes.
const (
	legacyModeStandby   = 0
	legacyModeMowing    = 1
	legacyModeGoingHome = 2
	legacyModeCharging  = 3
	legacyModeBorder    = 7
)

// Wireless-only mode codes.
const (
	wirelessModeIdle    = 1
	wirelessModeWorking = 2
	wirelessModePause   = 3
	wirelessModeReturn  = 7
)

var sharedModeNames = map[int]string{
	4:                "unknown_4",
	ModeError:        "error",
	ModeReturnPause:  "return_pause",
	ModeCharging:     "charging",
	ModeChargingFull: "charging_full",
	ModeOffline:      "offline",
	ModeLocating:     "locating",
	ModeStop:         "stop",
}

var legacyModeNames = map[int]string{
	legacyModeStandby:   "standby",
	legacyModeMowing:    "mowing",
	legacyModeGoingHome: "going_home",
	legacyModeCharging:  "charging",
	legacyModeBorder:    "mowing_border",
}

var wirelessModeNames = map[int]string{
	0:                   "unknown",
	wirelessModeIdle:    "idle",
	wirelessModeWorking: "working",
	wirelessModePause:   "pause",
	wirelessModeReturn:  "return",
}

// StateName maps a numeric mode code to its display name for the
// given variant. Unknown codes map to "unknown" so a new firmware
// value never breaks downstream consumers.
func StateName(variant Variant, mode int) string {
	var names map[int]string
	if variant == VariantWireless {
		names = wirelessModeNames
	} else {
		names = legacyModeNames
	}
	if name, ok := names[mode]; ok {
		return name
	}
	if name, ok := sharedModeNames[mode]; ok {
		return name
	}
	return "unknown"
}

// WorkingState reports whether a mode code counts as actively mowing
// for the given variant. Transitions into a working state trigger a
// fresh geometry fetch.
func WorkingState(variant Variant, mode int) bool {
	if variant == VariantWireless {
		return mode == wirelessModeWorking
	}
	return mode == legacyModeMowing || mode == legacyModeBorder
}

// IsWorking reports whether the device's current mode is a working
// state.
func (d *Device) IsWorking() bool {
	return WorkingState(d.Variant, d.Mode)
}

// StateName returns the display name of the device's current mode.
func (d *Device) StateName() string {
	return StateName(d.Variant, d.Mode)
}
