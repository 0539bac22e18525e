package schedule

// FlexibleDay is one (weekday, slot) window in the flexible model.
//
// Day numbers follow the wire convention: 0 = Sunday .. 6 = Saturday.
// Offsets are seconds since midnight.
type FlexibleDay struct {
	Day   int `json:"day"`
	Index int `json:"index"`

	Enabled bool `json:"enabled"`
	Unlock  bool `json:"unlock"`
	Active  bool `json:"active"`

	Start int `json:"start"`
	End   int `json:"end"`

	RegionIDs    []int `json:"region_id"`
	FollowBorder bool  `json:"need_fllow_boader"`
}

// ZoneRef pairs a zone id with its display name for wire translation.
type ZoneRef struct {
	ID   int
	Name string
}

// WireEntry is one window in the flexible schedule's wire list.
//
// The misspelled border key is the device's actual wire format.
type WireEntry struct {
	Unlock       bool  `json:"unlock"`
	Period       []int `json:"period"`
	Start        int   `json:"start"`
	Active       bool  `json:"active"`
	End          int   `json:"end"`
	RegionIDs    []int `json:"region_id,omitempty"`
	FollowBorder bool  `json:"need_fllow_boader"`
}

// SlotInput is one display-layer slot entry fed to EnabledTimeList.
type SlotInput struct {
	Enabled   bool
	Start     string // "HH:MM"
	End       string // "HH:MM"
	Locations []string
}

// slotsPerDay is the number of windows the model reserves per weekday.
const slotsPerDay = 2

// Flexible is the multi-window-per-day, per-zone scheduling model.
//
// It holds a fixed 14-record grid (7 days x 2 slots) created once at
// construction, three mode flags, a timezone offset, and a mirror of
// the device's zone table for name/id translation.
type Flexible struct {
	Paused      bool `json:"pause"`
	Custom      bool `json:"custom"`
	Recommended bool `json:"recommended"`

	// Timezone is the device-reported offset; zero until first sync.
	Timezone int `json:"timezone"`

	// Zones mirrors the owning device's zone table.
	Zones []ZoneRef `json:"zones"`

	Days []*FlexibleDay `json:"days"`
}

// NewFlexible returns an empty flexible schedule with its 14 slot
// records pre-created.
func NewFlexible() *Flexible {
	s := &Flexible{}
	for day := 0; day < 7; day++ {
		for index := 1; index <= slotsPerDay; index++ {
			s.Days = append(s.Days, &FlexibleDay{
				Day:    day,
				Index:  index,
				Unlock: true,
				Active: true,
			})
		}
	}
	return s
}

// Kind implements Model.
func (s *Flexible) Kind() Kind { return KindFlexible }

// IsEmpty reports whether no slot is enabled.
func (s *Flexible) IsEmpty() bool {
	for _, d := range s.Days {
		if d.Enabled {
			return false
		}
	}
	return true
}

// Day returns the record for (day, index).
//
// Parameters:
//   - day: Weekday number 0 (Sunday) .. 6 (Saturday)
//   - index: Slot number starting at 1
//
// Returns:
//   - *FlexibleDay: The record (live, not a copy)
//   - error: ErrDayNotFound when no such (day, slot) record exists
func (s *Flexible) Day(day, index int) (*FlexibleDay, error) {
	for _, d := range s.Days {
		if d.Day == day && d.Index == index {
			return d, nil
		}
	}
	return nil, ErrDayNotFound
}

// IDsByName resolves zone display names to ids.
// Unmatched names are silently dropped.
func (s *Flexible) IDsByName(names []string) []int {
	ids := []int{}
	for _, zone := range s.Zones {
		for _, name := range names {
			if zone.Name == name {
				ids = append(ids, zone.ID)
				break
			}
		}
	}
	return ids
}

// SetZone records or renames a zone in the translation table.
func (s *Flexible) SetZone(id int, name string) {
	for i := range s.Zones {
		if s.Zones[i].ID == id {
			s.Zones[i].Name = name
			return
		}
	}
	s.Zones = append(s.Zones, ZoneRef{ID: id, Name: name})
}

// zoneName resolves a zone id to its display name ("" when unknown).
func (s *Flexible) zoneName(id int) string {
	for _, zone := range s.Zones {
		if zone.ID == id {
			return zone.Name
		}
	}
	return ""
}

// GenerateTimeData produces the wire list of currently enabled slots.
// Disabled slots emit no entry.
func (s *Flexible) GenerateTimeData() []WireEntry {
	data := []WireEntry{}
	for _, d := range s.Days {
		if !d.Enabled {
			continue
		}
		data = append(data, WireEntry{
			Unlock:       d.Unlock,
			Period:       []int{d.Day},
			Start:        d.Start,
			Active:       d.Active,
			End:          d.End,
			RegionIDs:    d.RegionIDs,
			FollowBorder: d.FollowBorder,
		})
	}
	return data
}

// GenerateAttributeData produces the full 7-day, 2-slot display
// structure with zone names resolved from ids.
func (s *Flexible) GenerateAttributeData() map[string]any {
	locations := []string{}
	for _, zone := range s.Zones {
		locations = append(locations, zone.Name)
	}

	out := map[string]any{
		"recommended_time_work": s.Recommended,
		"user_defined":          s.Custom,
		"pause":                 s.Paused,
		"locations":             locations,
	}

	for day := 0; day < 7; day++ {
		slots := make([]map[string]any, 0, slotsPerDay)
		for index := 1; index <= slotsPerDay; index++ {
			d, err := s.Day(day, index)
			if err != nil {
				continue
			}
			names := []string{}
			for _, id := range d.RegionIDs {
				if name := s.zoneName(id); name != "" {
					names = append(names, name)
				}
			}
			slots = append(slots, map[string]any{
				"enabled":   d.Enabled,
				"starttime": secondsToHHMM(d.Start),
				"endtime":   secondsToHHMM(d.End),
				"locations": names,
			})
		}
		out[DayName(day)] = slots
	}

	return out
}

// EnabledTimeList converts a display-layer week structure into the
// wire list, in canonical day order (Sunday=0 .. Saturday=6).
//
// Times are converted from "HH:MM" to seconds since midnight; a
// missing or unparseable time defaults to offset 0 rather than
// failing the batch. Zone names resolve through the zone table;
// unknown day names are skipped.
func (s *Flexible) EnabledTimeList(week map[string][]SlotInput) []WireEntry {
	list := []WireEntry{}
	for day := 0; day < 7; day++ {
		entries, ok := week[DayName(day)]
		if !ok {
			continue
		}
		for _, entry := range entries {
			if !entry.Enabled {
				continue
			}
			item := WireEntry{
				Unlock: true,
				Period: []int{day},
				Start:  hhmmToSeconds(entry.Start),
				Active: true,
				End:    hhmmToSeconds(entry.End),
			}
			if len(entry.Locations) > 0 {
				item.RegionIDs = s.IDsByName(entry.Locations)
			}
			list = append(list, item)
		}
	}
	return list
}

// Reset disables every slot. Used before a bulk rebuild so stale
// windows do not survive a removal.
func (s *Flexible) Reset() {
	for _, d := range s.Days {
		d.Enabled = false
	}
}

// ApplyWireList rebuilds the slot grid from a wire list.
//
// All slots are first disabled, then each entry's period days are
// assigned slots in order. The wire list carries no slot numbers;
// they are reconstructed positionally: the slot index resets to 1
// whenever the day value changes and increments when the same day
// value repeats consecutively. This assumes the list is grouped by
// day; an interleaved list would corrupt slot assignment.
func (s *Flexible) ApplyWireList(entries []WireEntry) {
	s.Reset()

	lastDay := -1
	index := 1
	for _, entry := range entries {
		for _, day := range entry.Period {
			if day == lastDay {
				index++
			} else {
				index = 1
			}
			lastDay = day

			d, err := s.Day(day, index)
			if err != nil {
				continue
			}
			d.Enabled = true
			d.Unlock = entry.Unlock
			d.Active = entry.Active
			d.Start = entry.Start
			d.End = entry.End
			d.FollowBorder = entry.FollowBorder
			if entry.RegionIDs != nil {
				d.RegionIDs = append([]int(nil), entry.RegionIDs...)
			}
		}
	}
}
