package allocator

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/gray-logic-installer/internal/hardware"
)

func TestKeysAvailable(t *testing.T) {
	tests := []struct {
		name     string
		dir      hardware.Direction
		occupied int
		limit    int
		want     int
	}{
		{"input empty", hardware.DirectionInput, 0, 4, 4},
		{"input partial", hardware.DirectionInput, 3, 4, 1},
		{"input full", hardware.DirectionInput, 4, 4, 0},
		{"input over", hardware.DirectionInput, 5, 4, 0},
		{"output empty", hardware.DirectionOutput, 0, 8, 8},
		{"output one claimed", hardware.DirectionOutput, 1, 8, 0},
		{"zero limit", hardware.DirectionInput, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KeysAvailable(tt.dir, tt.occupied, tt.limit); got != tt.want {
				t.Errorf("KeysAvailable(%s, %d, %d) = %d, want %d", tt.dir, tt.occupied, tt.limit, got, tt.want)
			}
		})
	}
}

func TestScanInputPartiallyOccupied(t *testing.T) {
	snap := snapshot(hardware.DirectionInput, port(0, 4, 2, "dev-a", "dev-b"))

	got := Scan(snap)
	want := []PortAvailability{{
		Port:             0,
		Available:        true,
		KeysLimit:        4,
		KeysQuantity:     4,
		KeysAvailable:    2,
		Sequence:         []SlotAvailability{{Index: 2, Available: true}},
		SequenceOccupied: []int{0, 1},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Scan() mismatch (-want +got):\n%s", diff)
	}
}

func TestScanOutputAllOrNothing(t *testing.T) {
	p := port(0, 8, 0, "relay-1")
	p.Keys = []hardware.KeyUnit{{Index: 5, DeviceID: "relay-1"}}
	snap := snapshot(hardware.DirectionOutput, p)

	got := Scan(snap)
	if len(got) != 1 {
		t.Fatalf("len(Scan()) = %d, want 1", len(got))
	}
	if got[0].KeysAvailable != 0 || got[0].Available {
		t.Errorf("output port with one claimed unit: keysAvailable=%d available=%v, want 0, false",
			got[0].KeysAvailable, got[0].Available)
	}
}

func TestScanAllSlotsOccupiedIsIndependentOfCapacity(t *testing.T) {
	snap := snapshot(hardware.DirectionInput, port(0, 8, 4, "a", "b", "c", "d"))

	got := Scan(snap)[0]
	if len(got.Sequence) != 0 {
		t.Errorf("Sequence = %v, want empty", got.Sequence)
	}
	if got.Sequence == nil {
		t.Error("Sequence is nil, want empty slice")
	}
	if !got.Available || got.KeysAvailable != 4 {
		t.Errorf("available=%v keysAvailable=%d, want true, 4", got.Available, got.KeysAvailable)
	}
	if diff := cmp.Diff([]int{0, 1, 2, 3}, got.SequenceOccupied); diff != "" {
		t.Errorf("SequenceOccupied mismatch (-want +got):\n%s", diff)
	}
}

func TestScanMalformedPortIsolated(t *testing.T) {
	broken := hardware.Port{Index: 0, Label: "A", KeysLimit: 4}
	broken.MarkMalformed("missing occupancy entry")
	snap := snapshot(hardware.DirectionInput, broken, port(1, 4, 1, "dev-b"))

	got := Scan(snap)
	want := []PortAvailability{
		{
			Port:             0,
			Label:            "A",
			Sequence:         []SlotAvailability{},
			SequenceOccupied: []int{},
			Malformed:        true,
		},
		{
			Port:             1,
			Available:        true,
			KeysLimit:        4,
			KeysQuantity:     4,
			KeysAvailable:    3,
			Sequence:         []SlotAvailability{{Index: 1, Available: true}},
			SequenceOccupied: []int{0},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Scan() mismatch (-want +got):\n%s", diff)
	}
}

func TestScanFlagsInvariantViolations(t *testing.T) {
	tests := []struct {
		name string
		port hardware.Port
	}{
		{"hole before occupied slot", port(0, 4, 1, "a", "", "c")},
		{"keys over limit", port(0, 2, 3, "a")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Scan(snapshot(hardware.DirectionInput, tt.port))[0]
			if !got.Malformed || got.Available || got.KeysLimit != 0 || len(got.Sequence) != 0 {
				t.Errorf("Scan() = %+v, want malformed and unavailable", got)
			}
		})
	}
}

func TestScanContiguity(t *testing.T) {
	// However many slots are taken, at most one free slot is offered and it
	// directly follows the occupied prefix.
	for taken := 0; taken <= hardware.SequenceLimit; taken++ {
		ids := make([]string, taken)
		for i := range ids {
			ids[i] = string(rune('a' + i))
		}
		got := Scan(snapshot(hardware.DirectionInput, port(0, 8, taken, ids...)))[0]

		if len(got.SequenceOccupied) != taken {
			t.Errorf("taken=%d: SequenceOccupied = %v", taken, got.SequenceOccupied)
		}
		if taken == hardware.SequenceLimit {
			if len(got.Sequence) != 0 {
				t.Errorf("taken=%d: Sequence = %v, want empty", taken, got.Sequence)
			}
			continue
		}
		if len(got.Sequence) != 1 || got.Sequence[0].Index != taken {
			t.Errorf("taken=%d: Sequence = %v, want [{%d true}]", taken, got.Sequence, taken)
		}
	}
}

func TestScanInputCapacityMonotonic(t *testing.T) {
	const limit = 6
	prev := limit + 1
	for occupied := 0; occupied <= limit; occupied++ {
		got := Scan(snapshot(hardware.DirectionInput, port(0, limit, occupied)))[0]

		if got.KeysAvailable != limit-occupied {
			t.Errorf("occupied=%d: KeysAvailable = %d, want %d", occupied, got.KeysAvailable, limit-occupied)
		}
		if got.KeysAvailable != prev-1 {
			t.Errorf("occupied=%d: KeysAvailable did not drop by one (prev %d, now %d)", occupied, prev, got.KeysAvailable)
		}
		if wantAvail := occupied < limit; got.Available != wantAvail {
			t.Errorf("occupied=%d: Available = %v, want %v", occupied, got.Available, wantAvail)
		}
		prev = got.KeysAvailable
	}
}

func TestScanOutputUnavailableWheneverClaimed(t *testing.T) {
	const limit = 8
	for occupied := 1; occupied <= limit; occupied++ {
		got := Scan(snapshot(hardware.DirectionOutput, port(0, limit, occupied, "relay")))[0]
		if got.Available {
			t.Errorf("occupied=%d: output port reported available", occupied)
		}
	}
}

func TestScanIdempotent(t *testing.T) {
	snap := snapshot(hardware.DirectionInput,
		port(0, 4, 2, "a", "b"),
		port(1, 4, 0),
		port(2, 8, 8, "c", "d", "e", "f"),
	)

	first := Scan(snap)
	second := Scan(snap)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Scan() not idempotent (-first +second):\n%s", diff)
	}
}

func TestScanDoesNotModifySnapshot(t *testing.T) {
	snap := snapshot(hardware.DirectionInput, port(0, 4, 1, "a", "", "c"))
	before := snap.DeepCopy()

	Scan(snap)
	if diff := cmp.Diff(before, snap); diff != "" {
		t.Errorf("Scan() modified its input (-before +after):\n%s", diff)
	}
}

func TestScanNil(t *testing.T) {
	got := Scan(nil)
	if got == nil || len(got) != 0 {
		t.Errorf("Scan(nil) = %v, want empty non-nil slice", got)
	}
}

func TestScanKeysQuantityPassthrough(t *testing.T) {
	p := port(0, 4, 0)
	p.KeysQuantity = 3
	got := Scan(snapshot(hardware.DirectionInput, p))[0]
	if got.KeysQuantity != 3 || got.KeysLimit != 4 {
		t.Errorf("keysQuantity=%d keysLimit=%d, want 3, 4", got.KeysQuantity, got.KeysLimit)
	}
}

func TestScanMissingIndexEntry(t *testing.T) {
	doc := `{
	  "id": "central-1",
	  "ports": {"inputs": [
	    {"port": 0, "label": "A", "keysLimit": 4},
	    {"port": 1, "label": "B", "keysLimit": 4}
	  ]},
	  "indexGlobalKeys": {"inputs": {
	    "B": {"keysLimit": 4, "keys": ["dev-1"], "sequence": ["dev-1"]}
	  }}
	}`
	central, err := hardware.DecodeIndex([]byte(doc))
	if err != nil {
		t.Fatalf("DecodeIndex() error: %v", err)
	}

	got := Scan(central.Snapshot(hardware.DirectionInput, time.Time{}))
	if got[0].KeysLimit != 0 || got[0].Available {
		t.Errorf("port A = %+v, want keysLimit 0 and unavailable", got[0])
	}
	if !got[1].Available || got[1].KeysAvailable != 3 {
		t.Errorf("port B = %+v, want available with 3 keys", got[1])
	}
}
