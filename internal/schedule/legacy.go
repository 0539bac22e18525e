package schedule

// LegacyDay is one weekday's mowing window in the legacy model.
//
// Times are stored in "HH:MM" form as the wire format delivers them,
// with "24:00" meaning until midnight.
type LegacyDay struct {
	// Day is the weekday number, 1 (Monday) through 7 (Sunday).
	Day int `json:"day"`

	Start string `json:"start"`
	End   string `json:"end"`
	Trim  bool   `json:"trim"`

	// Raw is the last push payload received for this day, kept for
	// diagnostics.
	Raw map[string]any `json:"-"`
}

// IsEmpty reports whether no window is configured for this day.
func (d *LegacyDay) IsEmpty() bool {
	return d.Start == "00:00" && d.End == "00:00"
}

// Legacy is the fixed 7-day, single-window-per-day scheduling model.
//
// Mutation happens only through the merge engine (push payloads) or a
// set-schedule command echo; the model itself performs no I/O.
type Legacy struct {
	Days [7]*LegacyDay `json:"days"`
}

// NewLegacy returns an empty legacy schedule with all 7 days at 00:00.
func NewLegacy() *Legacy {
	s := &Legacy{}
	for i := range s.Days {
		s.Days[i] = &LegacyDay{
			Day:   i + 1,
			Start: "00:00",
			End:   "00:00",
		}
	}
	return s
}

// Kind implements Model.
func (s *Legacy) Kind() Kind { return KindLegacy }

// Day returns the record for weekday n (1 = Monday .. 7 = Sunday).
//
// Returns:
//   - *LegacyDay: The day record (live, not a copy)
//   - error: ErrDayNotFound for n outside 1..7
func (s *Legacy) Day(n int) (*LegacyDay, error) {
	if n < 1 || n > 7 {
		return nil, ErrDayNotFound
	}
	return s.Days[n-1], nil
}

// IsEmpty reports whether all 7 days are individually empty.
func (s *Legacy) IsEmpty() bool {
	for _, d := range s.Days {
		if !d.IsEmpty() {
			return false
		}
	}
	return true
}

// UpdateFromPush applies one day's push payload to the schedule.
//
// The payload shape is {"slice": [{"start": <min>, "end": <min>}, ...],
// "Trimming": <bool>} with minute offsets since midnight. An end value
// of 1440 renders as "24:00". Missing or unparseable fields leave the
// stored value untouched; this is a partial update, not a replace.
//
// Parameters:
//   - payload: The day's nested payload
//   - day: Weekday number 1..7
//
// Returns:
//   - error: ErrDayNotFound for an out-of-range day
func (s *Legacy) UpdateFromPush(payload map[string]any, day int) error {
	d, err := s.Day(day)
	if err != nil {
		return err
	}
	d.Raw = payload
	if len(payload) == 0 {
		return nil
	}

	if slices, ok := payload["slice"].([]any); ok && len(slices) > 0 {
		if first, ok := slices[0].(map[string]any); ok {
			if start, ok := toInt(first["start"]); ok {
				d.Start = minutesToHHMM(start)
			}
			if end, ok := toInt(first["end"]); ok {
				if end == endOfDayMinutes {
					d.End = "24:00"
				} else {
					d.End = minutesToHHMM(end)
				}
			}
		}
	}

	if trim, ok := payload["Trimming"].(bool); ok {
		d.Trim = trim
	}

	return nil
}
