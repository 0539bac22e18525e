package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	minutesPerHour   = 60
	secondsPerMinute = 60
	secondsPerHour   = 3600
	hoursPerDay      = 24

	// endOfDayMinutes is the wire value meaning "until midnight".
	// It renders as "24:00" rather than wrapping to "00:00".
	endOfDayMinutes = 1440
)

// minutesToHHMM converts a minutes-since-midnight offset to "HH:MM".
// Values beyond one day wrap, matching the wire format's clock arithmetic.
func minutesToHHMM(minutes int) string {
	h := (minutes / minutesPerHour) % hoursPerDay
	m := minutes % minutesPerHour
	return fmt.Sprintf("%02d:%02d", h, m)
}

// secondsToHHMM converts a seconds-since-midnight offset to "HH:MM".
func secondsToHHMM(seconds int) string {
	h := seconds / secondsPerHour
	m := (seconds % secondsPerHour) / secondsPerMinute
	return fmt.Sprintf("%02d:%02d", h, m)
}

// hhmmToSeconds converts a "HH:MM" string to seconds since midnight.
// Unparseable input yields 0 so one bad entry cannot fail a whole batch.
func hhmmToSeconds(hhmm string) int {
	parts := strings.Split(hhmm, ":")
	if len(parts) != 2 {
		return 0
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0
	}
	return h*secondsPerHour + m*secondsPerMinute
}

// dayNames maps flexible-model day numbers (0 = Sunday) to display names.
var dayNames = map[int]string{
	0: "sunday",
	1: "monday",
	2: "tuesday",
	3: "wednesday",
	4: "thursday",
	5: "friday",
	6: "saturday",
}

// dayNumbers is the inverse of dayNames.
var dayNumbers = map[string]int{
	"sunday":    0,
	"monday":    1,
	"tuesday":   2,
	"wednesday": 3,
	"thursday":  4,
	"friday":    5,
	"saturday":  6,
}

// DayName maps a flexible-model day number to its display name.
// Unknown numbers return "".
func DayName(day int) string {
	return dayNames[day]
}
