// Package database provides the SQLite connection behind the gate status
// history.
//
// The store is optional: the bridge runs without it and the current status
// never depends on it. When enabled it holds one append-only table of
// accepted status reports plus the schema_migrations bookkeeping table.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: "./data/portao.db", WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are plain YYYYMMDD_HHMMSS_name.up.sql / .down.sql pairs read
// from an fs.FS, normally the embedded migrations package.
package database
