// Package database provides the SQLite replica of hardware state used by
// the sqlite snapshot provider and the import command.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations live in the top-level migrations package, which registers an
// embedded filesystem in MigrationsFS. Each change is a pair of
// YYYYMMDD_HHMMSS_name.up.sql / .down.sql files. Tables use STRICT mode and
// every query is parameterised.
package database
