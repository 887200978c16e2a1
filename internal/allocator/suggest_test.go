package allocator

import (
	"testing"

	"github.com/nerrad567/gray-logic-installer/internal/hardware"
)

func TestSuggest(t *testing.T) {
	// Port 0 has no keys left, port 2 has keys but no slot.
	ports := Scan(snapshot(hardware.DirectionInput,
		port(0, 4, 4, "full-a"),
		port(1, 4, 2, "kp-a", "kp-b"),
		port(2, 8, 4, "a", "b", "c", "d"),
		port(3, 8, 0),
	))

	tests := []struct {
		name     string
		units    int
		wantOK   bool
		wantPort int
		wantSlot int
	}{
		{"single unit", 1, true, 1, 2},
		{"zero treated as one", 0, true, 1, 2},
		{"two units", 2, true, 1, 2},
		{"keypad needs four", 4, true, 3, 0},
		{"too large", 9, false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Suggest(ports, tt.units)
			if ok != tt.wantOK {
				t.Fatalf("Suggest(%d) ok = %v, want %v", tt.units, ok, tt.wantOK)
			}
			if ok && (got.Port != tt.wantPort || got.Slot != tt.wantSlot) {
				t.Errorf("Suggest(%d) = %+v, want port %d slot %d", tt.units, got, tt.wantPort, tt.wantSlot)
			}
		})
	}
}

func TestSuggestSkipsClaimedOutput(t *testing.T) {
	ports := Scan(snapshot(hardware.DirectionOutput,
		port(0, 8, 1, "relay-1"),
		port(1, 8, 0),
	))

	got, ok := Suggest(ports, 1)
	if !ok || got.Port != 1 || got.Slot != 0 {
		t.Errorf("Suggest() = %+v, %v; want port 1 slot 0", got, ok)
	}
}

func TestSuggestEmpty(t *testing.T) {
	if _, ok := Suggest(nil, 1); ok {
		t.Error("Suggest(nil) returned a suggestion")
	}
}
