package device

import (
	"image"

	"github.com/nerrad567/sunseeker-core/internal/schedule"
)

// Variant identifies a mower's protocol generation.
//
// The two generations use incompatible wire shapes for both push
// payloads and commands; every encoder and parser switches on this.
type Variant string

const (
	// VariantLegacy is the original app protocol (flat push payloads,
	// 7-day schedule, fixed four-zone percentages).
	VariantLegacy Variant = "legacy"

	// VariantWireless is the newer protocol (nested push payloads,
	// flexible schedule, named zones, map geometry).
	VariantWireless Variant = "wireless"
)

// PathPoint is one accumulated robot position sample in device units.
type PathPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Zone is a named sub-region of a property with its own mowing
// parameters. Zone 0 ("Global") always exists; other zones appear
// when geometry or settings first mention them and are never deleted
// during a session.
type Zone struct {
	ID   int    `json:"id"`
	Name string `json:"name"`

	WorkSpeed    int  `json:"work_speed"`
	Gap          int  `json:"gap"`
	PlanMode     int  `json:"plan_mode"`
	PlanAngle    int  `json:"plan_angle"`
	BladeSpeed   int  `json:"blade_speed"`
	BladeHeight  int  `json:"blade_height"`
	RegionSize   int  `json:"region_size"`
	EstimateTime int  `json:"estimate_time"`
	Setting      bool `json:"setting"`
}

// Device is the canonical state record for one physical mower.
//
// It is pure data: all mutation is performed by the merge engine,
// serialized per serial number by the coordinator. Numeric settings
// default to zero until first synchronized.
type Device struct {
	// Identity
	Serial      string  `json:"serial"`
	ID          string  `json:"id"`
	Variant     Variant `json:"variant"`
	Model       string  `json:"model"`
	Name        string  `json:"name"`
	Bluetooth   string  `json:"bluetooth"`
	WifiAddress string  `json:"wifi_address"`

	// Telemetry
	Power       int     `json:"power"`
	Mode        int     `json:"mode"`
	FaultCode   int     `json:"fault_code"`
	Station     bool    `json:"station"`
	WifiLevel   int     `json:"wifi_level"`
	RobotSignal int     `json:"robot_signal"`
	RTKSignal   int     `json:"rtk_signal"`
	Net4GSignal int     `json:"net_4g_signal"`
	OnlineFlag  string  `json:"online_flag"`
	ErrorText   string  `json:"error_text"`
	WorkMinutes int     `json:"work_minutes"`
	TaskCover   float64 `json:"task_cover_area"`
	TaskTotal   float64 `json:"task_total_area"`

	// Rain sensor
	RainEnabled   bool `json:"rain_enabled"`
	RainStatus    int  `json:"rain_status"`
	RainDelaySet  int  `json:"rain_delay_set"`
	RainDelayLeft int  `json:"rain_delay_left"`

	// Legacy multi-zone settings
	ZoneOpen       bool   `json:"zone_open"`
	MultiZone      bool   `json:"multi_zone"`
	MultiZoneAuto  bool   `json:"multi_zone_auto"`
	ZonePercents   [4]int `json:"zone_percents"`
	ZonePriorities [4]int `json:"zone_priorities"`

	// Wireless settings
	TimeWorkRepeat bool   `json:"time_work_repeat"`
	PlanMode       int    `json:"plan_mode"`
	PlanAngle      int    `json:"plan_angle"`
	AvoidObjects   int    `json:"avoid_objects"`
	AISensitivity  int    `json:"ai_sensitivity"`
	Gap            int    `json:"gap"`
	WorkSpeed      int    `json:"work_speed"`
	BorderMode     int    `json:"border_mode"`
	BorderFirst    bool   `json:"border_first"`
	BladeSpeed     int    `json:"blade_speed"`
	BladeHeight    int    `json:"blade_height"`
	CustomZones    bool   `json:"custom_zones"`
	EventCode      int    `json:"event_code"`
	EventType      string `json:"event_type"`

	// Position
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Orientation float64 `json:"orientation"` // radians, as reported

	// Schedule (one model per variant)
	Schedule schedule.Model `json:"schedule"`

	// Zones
	Zones          []*Zone `json:"zones"`
	CurrentZoneID  int     `json:"current_zone_id"`
	SelectedZoneID int     `json:"selected_zone_id"`

	// Map geometry and derived transform. Bounds and canvas size are
	// recomputed from the union of all polygon collections on every
	// geometry load; they are the single source of truth for the
	// coordinate transform until the next load.
	MapData      []byte  `json:"-"`
	MapMinX      float64 `json:"map_min_x"`
	MapMaxX      float64 `json:"map_max_x"`
	MapMinY      float64 `json:"map_min_y"`
	MapMaxY      float64 `json:"map_max_y"`
	CanvasWidth  int     `json:"canvas_width"`
	CanvasHeight int     `json:"canvas_height"`
	MapPhi       float64 `json:"map_phi"`
	MapUpdated   bool    `json:"map_updated"`

	// Raster artifacts. Images are replaced wholesale on render,
	// never mutated in place, so copies may share them.
	BaseImage image.Image `json:"-"`
	PathImage image.Image `json:"-"`
	LiveImage image.Image `json:"-"`
	HeatMap   image.Image `json:"-"`
	WifiMap   image.Image `json:"-"`

	ImageState     string `json:"image_state"`
	LiveImageState string `json:"live_image_state"`

	HeatMapURL    string `json:"heat_map_url"`
	WifiMapURL    string `json:"wifi_map_url"`
	RobotImageURL string `json:"robot_image_url"`

	// RobotMarker is the cached marker asset for live composites.
	RobotMarker image.Image `json:"-"`

	// Path accumulation. LivePathPoints is the pending buffer drained
	// by the renderer; RealPath is the full recorded path replayed on
	// map reload.
	LivePathPoints []PathPoint `json:"-"`
	RealPath       []PathPoint `json:"-"`
}

// imageStateNotLoaded is the initial render state of map artifacts.
const (
	ImageStateNotLoaded = "not_loaded"
	ImageStateLoaded    = "loaded"
)

// New creates a Device with the schedule model matching its variant
// and the Global zone pre-seeded.
func New(serial string, variant Variant) *Device {
	d := &Device{
		Serial:         serial,
		Variant:        variant,
		ImageState:     ImageStateNotLoaded,
		LiveImageState: ImageStateNotLoaded,
		Zones:          []*Zone{{ID: 0, Name: "Global"}},
	}
	switch variant {
	case VariantWireless:
		d.Schedule = schedule.NewFlexible()
	default:
		d.Schedule = schedule.NewLegacy()
	}
	return d
}

// Zone returns the zone with the given id.
//
// Zones may be referenced before their geometry is loaded, so absence
// is an expected condition, not an error.
func (d *Device) Zone(id int) (*Zone, bool) {
	for _, z := range d.Zones {
		if z.ID == id {
			return z, true
		}
	}
	return nil, false
}

// EnsureZone returns the zone with the given id, creating it if absent.
// Newly created zones also register with the flexible schedule's
// translation table.
func (d *Device) EnsureZone(id int, name string) *Zone {
	if z, ok := d.Zone(id); ok {
		if name != "" && z.Name != name {
			z.Name = name
			d.syncZoneName(id, name)
		}
		return z
	}
	z := &Zone{ID: id, Name: name}
	d.Zones = append(d.Zones, z)
	d.syncZoneName(id, name)
	return z
}

// syncZoneName keeps the flexible schedule's zone table in step with
// the device zone list.
func (d *Device) syncZoneName(id int, name string) {
	if flex, ok := d.Schedule.(*schedule.Flexible); ok {
		flex.SetZone(id, name)
	}
}

// Flexible returns the flexible schedule model, or nil for legacy
// devices.
func (d *Device) Flexible() *schedule.Flexible {
	flex, _ := d.Schedule.(*schedule.Flexible)
	return flex
}

// Legacy returns the legacy schedule model, or nil for wireless
// devices.
func (d *Device) Legacy() *schedule.Legacy {
	leg, _ := d.Schedule.(*schedule.Legacy)
	return leg
}
