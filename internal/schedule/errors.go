package schedule

import "errors"

// Sentinel errors for schedule operations.
var (
	// ErrDayNotFound is returned for a day number (or day/slot pair)
	// outside the model's fixed range.
	ErrDayNotFound = errors.New("schedule: day not found")
)
