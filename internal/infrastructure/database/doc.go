// Package database opens the SQLite store used for property-event history
// and applies its schema migrations.
//
// The connection is tuned for a single writer (the relay) and occasional
// readers (the HTTP API):
//   - WAL journal so API reads do not block history writes
//   - busy timeout instead of immediate "database is locked" errors
//   - one open connection
//
// Migrations are read from any fs.FS, normally the embedded
// migrations.FS:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
