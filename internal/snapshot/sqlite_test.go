package snapshot

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/gray-logic-installer/internal/hardware"
	"github.com/nerrad567/gray-logic-installer/internal/infrastructure/database"
	_ "github.com/nerrad567/gray-logic-installer/migrations"
)

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func openReplica(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "hardware.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func newTestSQLiteProvider(db *database.DB) *SQLiteProvider {
	p := NewSQLiteProvider(db.DB)
	p.now = func() time.Time { return fixedNow }
	return p
}

func TestSQLiteProviderRoundTrip(t *testing.T) {
	db := openReplica(t)
	ctx := context.Background()
	central := loadTestCentral(t, "centrals.yaml")

	if err := Import(ctx, db, []hardware.Central{central}); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	p := newTestSQLiteProvider(db)
	for _, dir := range hardware.AllDirections() {
		t.Run(string(dir), func(t *testing.T) {
			got, err := p.Snapshot(ctx, "central-1", dir)
			if err != nil {
				t.Fatalf("Snapshot() error = %v", err)
			}
			want := central.Snapshot(dir, fixedNow)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("replica snapshot mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSQLiteProviderErrors(t *testing.T) {
	db := openReplica(t)
	p := newTestSQLiteProvider(db)
	ctx := context.Background()

	if _, err := p.Snapshot(ctx, "central-1", hardware.DirectionInput); !errors.Is(err, hardware.ErrNotFound) {
		t.Errorf("empty replica error = %v, want ErrNotFound", err)
	}
	if _, err := p.Snapshot(ctx, "central-1", "sideways"); !errors.Is(err, hardware.ErrInvalidDirection) {
		t.Errorf("bad direction error = %v, want ErrInvalidDirection", err)
	}

	db.Close() //nolint:errcheck // forcing a source failure
	if _, err := p.Snapshot(ctx, "central-1", hardware.DirectionInput); !errors.Is(err, hardware.ErrTransportFailure) {
		t.Errorf("closed database error = %v, want ErrTransportFailure", err)
	}
}

func TestImportReplacesCentral(t *testing.T) {
	db := openReplica(t)
	ctx := context.Background()
	central := loadTestCentral(t, "centrals.yaml")

	if err := Import(ctx, db, []hardware.Central{central}); err != nil {
		t.Fatalf("first Import() error = %v", err)
	}

	central.Name = "Renamed"
	central.Inputs = central.Inputs[1:]
	if err := Import(ctx, db, []hardware.Central{central}); err != nil {
		t.Fatalf("second Import() error = %v", err)
	}

	snap, err := newTestSQLiteProvider(db).Snapshot(ctx, "central-1", hardware.DirectionInput)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(snap.Ports) != 1 || snap.Ports[0].Index != 1 || snap.Ports[0].KeysOccupied() != 0 {
		t.Errorf("stale rows survived re-import: %+v", snap.Ports)
	}

	var name string
	if err := db.QueryRowContext(ctx, "SELECT name FROM centrals WHERE id = ?", "central-1").Scan(&name); err != nil {
		t.Fatalf("select name: %v", err)
	}
	if name != "Renamed" {
		t.Errorf("name = %q, want Renamed", name)
	}
}

func TestImportRollsBackOnConflict(t *testing.T) {
	db := openReplica(t)
	ctx := context.Background()
	good := loadTestCentral(t, "centrals.yaml")
	if err := Import(ctx, db, []hardware.Central{good}); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	// The same device on two input ports violates the replica's uniqueness.
	bad := hardware.Central{ID: "central-1", Inputs: []hardware.Port{
		{Index: 0, KeysLimit: 4, Slots: [hardware.SequenceLimit]*hardware.DeviceRef{{ID: "dup"}}},
		{Index: 1, KeysLimit: 4, Slots: [hardware.SequenceLimit]*hardware.DeviceRef{{ID: "dup"}}},
	}}
	if err := Import(ctx, db, []hardware.Central{bad}); err == nil {
		t.Fatal("Import() with duplicate device succeeded")
	}

	snap, err := newTestSQLiteProvider(db).Snapshot(ctx, "central-1", hardware.DirectionInput)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if diff := cmp.Diff(good.Snapshot(hardware.DirectionInput, fixedNow), snap); diff != "" {
		t.Errorf("failed import leaked changes (-want +got):\n%s", diff)
	}
}

func TestImportRejectsEmptyID(t *testing.T) {
	db := openReplica(t)
	if err := Import(context.Background(), db, []hardware.Central{{Name: "anonymous"}}); err == nil {
		t.Error("Import() without id succeeded")
	}
}
