package database

import (
	"context"
	"io/fs"
	"testing"
	"testing/fstest"
)

var testMigrations = fstest.MapFS{
	"sql/20260301_090000_create_centrals.up.sql": {Data: []byte(
		`CREATE TABLE test_centrals (id TEXT PRIMARY KEY, name TEXT NOT NULL DEFAULT '') STRICT;`)},
	"sql/20260301_090000_create_centrals.down.sql": {Data: []byte(
		`DROP TABLE test_centrals;`)},
	"sql/20260302_100000_create_ports.up.sql": {Data: []byte(
		`CREATE TABLE test_ports (central_id TEXT NOT NULL REFERENCES test_centrals(id), port INTEGER NOT NULL) STRICT;`)},
	"sql/20260302_100000_create_ports.down.sql": {Data: []byte(
		`DROP TABLE test_ports;`)},
	"sql/README.md": {Data: []byte("ignored")},
}

// useMigrations swaps the package migration source for the duration of a test.
func useMigrations(t *testing.T, fsys fs.FS, dir string) {
	t.Helper()
	origFS, origDir := MigrationsFS, MigrationsDir
	MigrationsFS, MigrationsDir = fsys, dir
	t.Cleanup(func() { MigrationsFS, MigrationsDir = origFS, origDir })
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	if err != nil {
		t.Fatalf("sqlite_master query: %v", err)
	}
	return count == 1
}

func TestMigrate(t *testing.T) {
	useMigrations(t, testMigrations, "sql")
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	for _, table := range []string{"test_centrals", "test_ports"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s not created", table)
		}
	}

	applied, pending, err := db.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("applied=%d pending=%d, want 2, 0", len(applied), len(pending))
	}
	if applied[0].AppliedAt.IsZero() {
		t.Error("AppliedAt not recorded")
	}

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestRollback(t *testing.T) {
	useMigrations(t, testMigrations, "sql")
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.Rollback(ctx); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	if tableExists(t, db, "test_ports") {
		t.Error("latest migration not rolled back")
	}
	if !tableExists(t, db, "test_centrals") {
		t.Error("earlier migration rolled back too")
	}

	_, pending, err := db.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Name != "create_ports" {
		t.Errorf("pending = %+v, want create_ports", pending)
	}
}

func TestRollbackNothingApplied(t *testing.T) {
	useMigrations(t, testMigrations, "sql")
	db := openTestDB(t)

	if err := db.Rollback(context.Background()); err != nil {
		t.Errorf("Rollback() on fresh database error = %v", err)
	}
}

func TestMigrateNoMigrations(t *testing.T) {
	useMigrations(t, nil, ".")
	db := openTestDB(t)

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() with no migrations error = %v", err)
	}
}

func TestMigrateMissingUpFile(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20260301_090000_orphan.down.sql": {Data: []byte("DROP TABLE x;")},
	}, ".")
	db := openTestDB(t)

	if err := db.Migrate(context.Background()); err == nil {
		t.Error("Migrate() with a down-only migration succeeded")
	}
}

func TestMigrateFailureStops(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20260301_090000_good.up.sql": {Data: []byte("CREATE TABLE good (id INTEGER) STRICT;")},
		"20260302_090000_bad.up.sql":  {Data: []byte("CREATE TABLE nope (")},
	}, ".")
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err == nil {
		t.Fatal("Migrate() with broken SQL succeeded")
	}
	if !tableExists(t, db, "good") {
		t.Error("migration before the failure was not kept")
	}
	applied, _, err := db.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(applied) != 1 {
		t.Errorf("applied = %d, want 1", len(applied))
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantIsUp    bool
		wantOk      bool
	}{
		{"20260301_090000_hardware_snapshot.up.sql", "20260301_090000", true, true},
		{"20260301_090000_hardware_snapshot.down.sql", "20260301_090000", false, true},
		{"readme.txt", "", false, false},
		{"20260301_090000_hardware_snapshot.sql", "", false, false},
		{"invalid.up.sql", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if ok && (version != tt.wantVersion || isUp != tt.wantIsUp) {
				t.Errorf("got (%q, %v), want (%q, %v)", version, isUp, tt.wantVersion, tt.wantIsUp)
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	tests := map[string]string{
		"20260301_090000_hardware_snapshot.up.sql": "hardware_snapshot",
		"20260302_100000_port_keys.down.sql":       "port_keys",
	}
	for filename, want := range tests {
		if got := extractMigrationName(filename); got != want {
			t.Errorf("extractMigrationName(%q) = %q, want %q", filename, got, want)
		}
	}
}
