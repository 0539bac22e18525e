package schedule

import (
	"errors"
	"testing"
)

func TestNewLegacy_IsEmpty(t *testing.T) {
	s := NewLegacy()

	if !s.IsEmpty() {
		t.Error("IsEmpty() = false for fresh schedule, want true")
	}

	for n := 1; n <= 7; n++ {
		d, err := s.Day(n)
		if err != nil {
			t.Fatalf("Day(%d) error = %v", n, err)
		}
		if d.Start != "00:00" || d.End != "00:00" {
			t.Errorf("Day(%d) = %s-%s, want 00:00-00:00", n, d.Start, d.End)
		}
	}
}

func TestLegacy_DayOutOfRange(t *testing.T) {
	s := NewLegacy()

	for _, n := range []int{0, 8, -1} {
		if _, err := s.Day(n); !errors.Is(err, ErrDayNotFound) {
			t.Errorf("Day(%d) error = %v, want ErrDayNotFound", n, err)
		}
	}
}

func TestLegacy_UpdateFromPush(t *testing.T) {
	s := NewLegacy()

	payload := map[string]any{
		"slice": []any{
			map[string]any{"start": "375", "end": "1440"},
		},
		"Trimming": true,
	}

	if err := s.UpdateFromPush(payload, 1); err != nil {
		t.Fatalf("UpdateFromPush() error = %v", err)
	}

	d, _ := s.Day(1)
	if d.Start != "06:15" {
		t.Errorf("Start = %q, want 06:15", d.Start)
	}
	if d.End != "24:00" {
		t.Errorf("End = %q, want 24:00", d.End)
	}
	if !d.Trim {
		t.Error("Trim = false, want true")
	}

	if s.IsEmpty() {
		t.Error("IsEmpty() = true after update, want false")
	}
}

func TestLegacy_UpdateFromPush_NumericMinutes(t *testing.T) {
	s := NewLegacy()

	// JSON numbers decode as float64.
	payload := map[string]any{
		"slice": []any{
			map[string]any{"start": float64(480), "end": float64(720)},
		},
	}

	if err := s.UpdateFromPush(payload, 3); err != nil {
		t.Fatalf("UpdateFromPush() error = %v", err)
	}

	d, _ := s.Day(3)
	if d.Start != "08:00" || d.End != "12:00" {
		t.Errorf("Day(3) = %s-%s, want 08:00-12:00", d.Start, d.End)
	}
}

func TestLegacy_UpdateFromPush_PartialUpdate(t *testing.T) {
	s := NewLegacy()
	d, _ := s.Day(2)
	d.Start = "07:30"
	d.End = "10:00"
	d.Trim = true

	// Payload with no slice and no Trimming leaves everything as is.
	if err := s.UpdateFromPush(map[string]any{"other": 1}, 2); err != nil {
		t.Fatalf("UpdateFromPush() error = %v", err)
	}

	if d.Start != "07:30" || d.End != "10:00" || !d.Trim {
		t.Errorf("partial update mutated untouched fields: %s-%s trim=%v",
			d.Start, d.End, d.Trim)
	}
}

func TestLegacy_UpdateFromPush_BadDay(t *testing.T) {
	s := NewLegacy()
	if err := s.UpdateFromPush(map[string]any{}, 9); !errors.Is(err, ErrDayNotFound) {
		t.Errorf("UpdateFromPush(day=9) error = %v, want ErrDayNotFound", err)
	}
}

func TestLegacy_Copy(t *testing.T) {
	s := NewLegacy()
	d, _ := s.Day(1)
	d.Start = "06:15"

	cpy := s.Copy().(*Legacy)
	cd, _ := cpy.Day(1)
	cd.Start = "09:00"

	if d.Start != "06:15" {
		t.Errorf("copy mutation leaked into original: Start = %q", d.Start)
	}
}
