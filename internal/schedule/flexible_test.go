package schedule

import (
	"errors"
	"reflect"
	"testing"
)

func TestNewFlexible_Grid(t *testing.T) {
	s := NewFlexible()

	if len(s.Days) != 14 {
		t.Fatalf("len(Days) = %d, want 14", len(s.Days))
	}
	if !s.IsEmpty() {
		t.Error("IsEmpty() = false for fresh schedule, want true")
	}

	for day := 0; day < 7; day++ {
		for index := 1; index <= 2; index++ {
			d, err := s.Day(day, index)
			if err != nil {
				t.Fatalf("Day(%d, %d) error = %v", day, index, err)
			}
			if !d.Unlock || !d.Active {
				t.Errorf("Day(%d, %d) unlock/active defaults wrong", day, index)
			}
		}
	}

	if _, err := s.Day(7, 1); !errors.Is(err, ErrDayNotFound) {
		t.Errorf("Day(7, 1) error = %v, want ErrDayNotFound", err)
	}
	if _, err := s.Day(0, 3); !errors.Is(err, ErrDayNotFound) {
		t.Errorf("Day(0, 3) error = %v, want ErrDayNotFound", err)
	}
}

func TestFlexible_IDsByName(t *testing.T) {
	s := NewFlexible()
	s.SetZone(0, "Global")
	s.SetZone(3, "Front")
	s.SetZone(5, "Back")

	ids := s.IDsByName([]string{"Back", "Front", "NoSuchZone"})
	// Table order, unmatched names dropped.
	want := []int{3, 5}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("IDsByName() = %v, want %v", ids, want)
	}
}

func TestFlexible_ApplyWireList_SlotReconstruction(t *testing.T) {
	s := NewFlexible()

	// Two windows for Monday (day 1), one for Tuesday (day 2).
	entries := []WireEntry{
		{Period: []int{1}, Start: 21600, End: 28800, Unlock: true, Active: true},
		{Period: []int{1}, Start: 50400, End: 57600, Unlock: true, Active: true},
		{Period: []int{2}, Start: 25200, End: 43200, Unlock: true, Active: true},
	}

	s.ApplyWireList(entries)

	mon1, _ := s.Day(1, 1)
	mon2, _ := s.Day(1, 2)
	tue1, _ := s.Day(2, 1)
	tue2, _ := s.Day(2, 2)

	if !mon1.Enabled || mon1.Start != 21600 {
		t.Errorf("Monday slot 1 = enabled=%v start=%d, want enabled 21600", mon1.Enabled, mon1.Start)
	}
	if !mon2.Enabled || mon2.Start != 50400 {
		t.Errorf("Monday slot 2 = enabled=%v start=%d, want enabled 50400", mon2.Enabled, mon2.Start)
	}
	if !tue1.Enabled || tue1.Start != 25200 {
		t.Errorf("Tuesday slot 1 = enabled=%v start=%d, want enabled 25200", tue1.Enabled, tue1.Start)
	}
	if tue2.Enabled {
		t.Error("Tuesday slot 2 enabled, want disabled")
	}
}

func TestFlexible_ApplyWireList_ResetsStaleSlots(t *testing.T) {
	s := NewFlexible()

	s.ApplyWireList([]WireEntry{
		{Period: []int{4}, Start: 21600, End: 28800},
	})
	thu, _ := s.Day(4, 1)
	if !thu.Enabled {
		t.Fatal("Thursday slot 1 not enabled after first apply")
	}

	// A later list without Thursday removes its window.
	s.ApplyWireList([]WireEntry{
		{Period: []int{5}, Start: 21600, End: 28800},
	})
	if thu.Enabled {
		t.Error("Thursday slot survived bulk rebuild, want disabled")
	}
}

func TestFlexible_EnabledTimeList_RoundTrip(t *testing.T) {
	s := NewFlexible()
	s.SetZone(2, "Front")

	week := map[string][]SlotInput{
		"monday": {
			{Enabled: true, Start: "06:00", End: "08:00", Locations: []string{"Front"}},
			{Enabled: true, Start: "14:00", End: "16:00"},
		},
		"wednesday": {
			{Enabled: false, Start: "09:00", End: "10:00"},
		},
		"sunday": {
			{Enabled: true, Start: "bogus", End: "12:00"},
		},
	}

	list := s.EnabledTimeList(week)

	// Canonical order: Sunday first, then Monday's two slots.
	if len(list) != 3 {
		t.Fatalf("len(list) = %d, want 3", len(list))
	}
	if list[0].Period[0] != 0 || list[0].Start != 0 || list[0].End != 43200 {
		t.Errorf("sunday entry = %+v, want period 0, start 0 (unparseable), end 43200", list[0])
	}
	if list[1].Period[0] != 1 || list[1].Start != 21600 {
		t.Errorf("monday slot 1 = %+v", list[1])
	}
	if !reflect.DeepEqual(list[1].RegionIDs, []int{2}) {
		t.Errorf("monday slot 1 regions = %v, want [2]", list[1].RegionIDs)
	}
	if list[2].Period[0] != 1 || list[2].Start != 50400 {
		t.Errorf("monday slot 2 = %+v", list[2])
	}

	// Re-ingesting the wire list restores the enabled windows.
	s.ApplyWireList(list)

	sun, _ := s.Day(0, 1)
	mon1, _ := s.Day(1, 1)
	mon2, _ := s.Day(1, 2)
	wed, _ := s.Day(3, 1)

	if !sun.Enabled || !mon1.Enabled || !mon2.Enabled {
		t.Error("round trip lost an enabled window")
	}
	if wed.Enabled {
		t.Error("disabled input slot became enabled after round trip")
	}
	if mon2.Start != 50400 || mon2.End != 57600 {
		t.Errorf("monday slot 2 = %d-%d, want 50400-57600", mon2.Start, mon2.End)
	}
}

func TestFlexible_GenerateTimeData(t *testing.T) {
	s := NewFlexible()
	d, _ := s.Day(2, 1)
	d.Enabled = true
	d.Start = 25200
	d.End = 43200
	d.RegionIDs = []int{1, 4}

	data := s.GenerateTimeData()
	if len(data) != 1 {
		t.Fatalf("len(data) = %d, want 1", len(data))
	}
	entry := data[0]
	if entry.Period[0] != 2 || entry.Start != 25200 || entry.End != 43200 {
		t.Errorf("entry = %+v", entry)
	}
	if !reflect.DeepEqual(entry.RegionIDs, []int{1, 4}) {
		t.Errorf("RegionIDs = %v, want [1 4]", entry.RegionIDs)
	}
}

func TestFlexible_GenerateAttributeData(t *testing.T) {
	s := NewFlexible()
	s.SetZone(3, "Back")
	d, _ := s.Day(5, 1)
	d.Enabled = true
	d.Start = 21600
	d.End = 28800
	d.RegionIDs = []int{3}

	out := s.GenerateAttributeData()

	friday, ok := out["friday"].([]map[string]any)
	if !ok || len(friday) != 2 {
		t.Fatalf("friday = %T %v", out["friday"], out["friday"])
	}
	if friday[0]["starttime"] != "06:00" || friday[0]["endtime"] != "08:00" {
		t.Errorf("friday slot 1 times = %v-%v", friday[0]["starttime"], friday[0]["endtime"])
	}
	names, _ := friday[0]["locations"].([]string)
	if !reflect.DeepEqual(names, []string{"Back"}) {
		t.Errorf("friday slot 1 locations = %v, want [Back]", names)
	}
	if friday[1]["enabled"] != false {
		t.Error("friday slot 2 should be disabled")
	}
}

func TestTimeConversions(t *testing.T) {
	tests := []struct {
		hhmm string
		secs int
	}{
		{"00:00", 0},
		{"06:15", 22500},
		{"23:59", 86340},
		{"bad", 0},
		{"1:2:3", 0},
	}
	for _, tt := range tests {
		if got := hhmmToSeconds(tt.hhmm); got != tt.secs {
			t.Errorf("hhmmToSeconds(%q) = %d, want %d", tt.hhmm, got, tt.secs)
		}
	}

	if got := minutesToHHMM(375); got != "06:15" {
		t.Errorf("minutesToHHMM(375) = %q, want 06:15", got)
	}
	if got := minutesToHHMM(1440); got != "00:00" {
		t.Errorf("minutesToHHMM(1440) = %q, want 00:00 (wrap)", got)
	}
	if got := secondsToHHMM(22500); got != "06:15" {
		t.Errorf("secondsToHHMM(22500) = %q, want 06:15", got)
	}
}
