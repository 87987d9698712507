package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/hc2-sync/internal/infrastructure/database"
	"github.com/nerrad567/hc2-sync/migrations"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// setupRepository opens a migrated database with a fixed clock.
func setupRepository(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "history.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	repo := NewSQLiteRepository(db.DB)
	repo.now = func() time.Time { return now }
	return repo
}

func TestRecordAndList(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	entry := Entry{
		DeviceID:   10,
		Identifier: "kitchen/light",
		Property:   "value",
		NewValue:   "1",
		OldValue:   "0",
	}
	if err := repo.Record(ctx, entry); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	entries, err := repo.List(ctx, 10, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}

	got := entries[0]
	if got.ID == 0 {
		t.Error("ID = 0, want assigned id")
	}
	if got.Identifier != "kitchen/light" || got.Property != "value" || got.NewValue != "1" || got.OldValue != "0" {
		t.Errorf("entry = %+v", got)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, now)
	}
}

func TestRecord_Invalid(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		entry Entry
	}{
		{"missing device", Entry{Property: "value"}},
		{"missing property", Entry{DeviceID: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.Record(ctx, tt.entry); !errors.Is(err, ErrInvalidEntry) {
				t.Errorf("Record() error = %v, want ErrInvalidEntry", err)
			}
		})
	}
}

func TestList_NewestFirstAndLimits(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	for i := range 250 {
		err := repo.Record(ctx, Entry{
			DeviceID:  10,
			Property:  "value",
			NewValue:  time.Duration(i).String(),
			CreatedAt: now.Add(time.Duration(i) * time.Millisecond),
		})
		if err != nil {
			t.Fatalf("Record(%d) error = %v", i, err)
		}
	}
	if err := repo.Record(ctx, Entry{DeviceID: 11, Property: "value"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"default", 0, defaultLimit},
		{"explicit", 5, 5},
		{"clamped", 1000, maxLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := repo.List(ctx, 10, tt.limit)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(entries) != tt.want {
				t.Errorf("len(entries) = %d, want %d", len(entries), tt.want)
			}
			for i := 1; i < len(entries); i++ {
				if entries[i].CreatedAt.After(entries[i-1].CreatedAt) {
					t.Fatalf("entries not newest first at %d", i)
				}
			}
			for _, e := range entries {
				if e.DeviceID != 10 {
					t.Fatalf("entry for device %d in device 10 history", e.DeviceID)
				}
			}
		})
	}
}

func TestPrune(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	old := Entry{DeviceID: 10, Property: "value", CreatedAt: now.Add(-48 * time.Hour)}
	recent := Entry{DeviceID: 10, Property: "value", CreatedAt: now.Add(-time.Hour)}
	for _, e := range []Entry{old, recent} {
		if err := repo.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	deleted, err := repo.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	entries, _ := repo.List(ctx, 10, 0)
	if len(entries) != 1 || !entries[0].CreatedAt.Equal(recent.CreatedAt) {
		t.Errorf("remaining = %+v, want only the recent entry", entries)
	}

	if _, err := repo.Prune(ctx, 0); err == nil {
		t.Error("Prune(0) expected error")
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2026-03-01T12:00:00.250Z", now.Add(250 * time.Millisecond), false},
		{"2026-03-01T12:00:00Z", now, false},
		{"", time.Time{}, true},
		{"yesterday", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTimestamp(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseTimestamp() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("parseTimestamp() = %v, want %v", got, tt.want)
			}
		})
	}
}
