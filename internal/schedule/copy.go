package schedule

// Copy returns a deep copy of the legacy schedule.
// Raw payload maps are shared; they are replaced, never mutated.
func (s *Legacy) Copy() Model {
	cpy := &Legacy{}
	for i, d := range s.Days {
		day := *d
		cpy.Days[i] = &day
	}
	return cpy
}

// Copy returns a deep copy of the flexible schedule.
func (s *Flexible) Copy() Model {
	cpy := &Flexible{
		Paused:      s.Paused,
		Custom:      s.Custom,
		Recommended: s.Recommended,
		Timezone:    s.Timezone,
	}
	if s.Zones != nil {
		cpy.Zones = append([]ZoneRef(nil), s.Zones...)
	}
	cpy.Days = make([]*FlexibleDay, len(s.Days))
	for i, d := range s.Days {
		day := *d
		if d.RegionIDs != nil {
			day.RegionIDs = append([]int(nil), d.RegionIDs...)
		}
		cpy.Days[i] = &day
	}
	return cpy
}
