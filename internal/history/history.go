package history

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidEntry is returned when an entry cannot be stored.
var ErrInvalidEntry = errors.New("history: invalid entry")

// Entry is one recorded property update.
type Entry struct {
	ID         int64     `json:"id"`
	DeviceID   int       `json:"device_id"`
	Identifier string    `json:"identifier"`
	Property   string    `json:"property"`
	NewValue   string    `json:"new_value"`
	OldValue   string    `json:"old_value"`
	CreatedAt  time.Time `json:"created_at"`
}

// Repository stores and retrieves property history.
//
// Implementations must be safe for concurrent use.
type Repository interface {
	// Record stores one entry. A zero CreatedAt means now.
	Record(ctx context.Context, entry Entry) error

	// List returns the newest entries for a device, newest first.
	// limit defaults to 50 and is clamped to 200.
	List(ctx context.Context, deviceID int, limit int) ([]Entry, error)

	// Prune deletes entries older than olderThan and returns how many.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}
