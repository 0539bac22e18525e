package device

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// SQLiteHistoryRepository implements HistoryRepository using SQLite.
//
// It stores one row per field transition in the state_transitions
// table.
type SQLiteHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteHistoryRepository creates a new SQLite history repository.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *SQLiteHistoryRepository: Repository instance ready for use
func NewSQLiteHistoryRepository(db *sql.DB) *SQLiteHistoryRepository {
	return &SQLiteHistoryRepository{db: db}
}

// Record inserts one field transition for a device.
func (r *SQLiteHistoryRepository) Record(ctx context.Context, serial, field, old, new string) error {
	if serial == "" {
		return fmt.Errorf("serial is required")
	}
	if field == "" {
		return fmt.Errorf("field is required")
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO state_transitions (serial, field, old_value, new_value) VALUES (?, ?, ?, ?)",
		serial,
		field,
		old,
		new,
	)
	if err != nil {
		return fmt.Errorf("inserting transition: %w", err)
	}

	return nil
}

// Recent returns recent transitions for a device, ordered newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - serial: Device serial number
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []Transition: Entries ordered by created_at DESC
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteHistoryRepository) Recent(ctx context.Context, serial string, limit int) ([]Transition, error) {
	if serial == "" {
		return nil, fmt.Errorf("serial is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, serial, field, old_value, new_value, created_at
		 FROM state_transitions
		 WHERE serial = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		serial,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying transitions: %w", err)
	}
	defer rows.Close()

	entries := make([]Transition, 0, limit)
	for rows.Next() {
		var entry Transition
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.Serial, &entry.Field, &entry.Old, &entry.New, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning transition: %w", err)
		}

		timestamp, err := parseHistoryTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transitions: %w", err)
	}

	return entries, nil
}

// Prune deletes transitions older than the given duration.
//
// Returns the number of rows deleted.
func (r *SQLiteHistoryRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM state_transitions WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting transitions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// parseHistoryTimestamp parses a timestamp stored in SQLite.
func parseHistoryTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}

	timestamp, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse("2006-01-02 15:04:05", value)
	if fallbackErr == nil {
		return fallback.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}
