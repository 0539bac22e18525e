package device

import (
	"context"
	"time"
)

// Transition records a single observed change to one device field.
//
// Old and new values are stored as strings so the table can hold any
// field type without schema churn.
type Transition struct {
	// ID is the auto-incremented primary key for the row.
	ID int64 `json:"id"`

	// Serial is the device serial number.
	Serial string `json:"serial"`

	// Field is the name of the changed field (e.g. "mode", "power").
	Field string `json:"field"`

	// Old is the value before the change.
	Old string `json:"old"`

	// New is the value after the change.
	New string `json:"new"`

	// CreatedAt is the timestamp of the change (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// HistoryRepository stores and retrieves device field transitions.
//
// Implementations must be thread-safe and use UTC timestamps.
type HistoryRepository interface {
	// Record persists one field transition.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - serial: Device serial number
	//   - field: Name of the changed field
	//   - old: Value before the change
	//   - new: Value after the change
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	Record(ctx context.Context, serial, field, old, new string) error

	// Recent returns recent transitions for a device, newest first.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - serial: Device serial number
	//   - limit: Maximum entries to return (implementation may clamp bounds)
	//
	// Returns:
	//   - []Transition: Ordered newest-first entries (may be empty)
	//   - error: nil on success, otherwise the underlying query error
	Recent(ctx context.Context, serial string, limit int) ([]Transition, error)
}
