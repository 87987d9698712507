package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultLimit = 50
	maxLimit     = 200

	// timestampLayout is fixed-width so text ordering matches time order.
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// SQLiteRepository implements Repository on the property_events table.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository over an open database.
//
// Parameters:
//   - db: Open SQLite connection with migrations applied
//
// Returns:
//   - *SQLiteRepository: Repository ready for use
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Record inserts one entry.
//
// Returns:
//   - error: ErrInvalidEntry when the device id or property is missing,
//     otherwise the database error
func (r *SQLiteRepository) Record(ctx context.Context, entry Entry) error {
	if entry.DeviceID <= 0 {
		return fmt.Errorf("%w: device id is required", ErrInvalidEntry)
	}
	if entry.Property == "" {
		return fmt.Errorf("%w: property is required", ErrInvalidEntry)
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO property_events (device_id, identifier, property, new_value, old_value, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.DeviceID,
		entry.Identifier,
		entry.Property,
		entry.NewValue,
		entry.OldValue,
		formatTimestamp(createdAt),
	)
	if err != nil {
		return fmt.Errorf("inserting property event: %w", err)
	}
	return nil
}

// List returns the newest entries for deviceID.
func (r *SQLiteRepository) List(ctx context.Context, deviceID int, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, identifier, property, new_value, old_value, created_at
		 FROM property_events
		 WHERE device_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		deviceID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying property events: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.Identifier, &e.Property, &e.NewValue, &e.OldValue, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning property event: %w", err)
		}

		e.CreatedAt, err = parseTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating property events: %w", err)
	}
	return entries, nil
}

// Prune deletes entries older than now-olderThan.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := formatTimestamp(r.now().Add(-olderThan))
	result, err := r.db.ExecContext(ctx, "DELETE FROM property_events WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting property events: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// parseTimestamp accepts the stored layout and plain RFC 3339.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}
	if t, err := time.Parse(timestampLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return t, nil
}
