package allocator

import "github.com/nerrad567/gray-logic-installer/internal/hardware"

// SlotAvailability is one sequence slot offered for placement.
type SlotAvailability struct {
	Index     int  `json:"index"`
	Available bool `json:"available"`
}

// PortAvailability is the scanner's verdict for one port.
//
// Available and Sequence are independent signals: a port may have free key
// units while all four slots are taken, or the reverse.
type PortAvailability struct {
	Port          int    `json:"port"`
	Label         string `json:"label,omitempty"`
	Available     bool   `json:"available"`
	KeysLimit     int    `json:"keys_limit"`
	KeysQuantity  int    `json:"keys_quantity"`
	KeysAvailable int    `json:"keys_available"`

	// Sequence holds the first free slot, if any. Slots after it are never
	// offered because placement must stay contiguous.
	Sequence []SlotAvailability `json:"sequence"`
	// SequenceOccupied lists the occupied slots seen before the first gap.
	SequenceOccupied []int `json:"sequence_occupied"`

	Malformed bool `json:"malformed,omitempty"`
}

// FirstFreeSlot returns the offered slot index.
func (p PortAvailability) FirstFreeSlot() (int, bool) {
	for _, s := range p.Sequence {
		if s.Available {
			return s.Index, true
		}
	}
	return 0, false
}

// KeysAvailable applies the per-direction capacity policy.
//
// INPUT:  limit - occupied.
// OUTPUT: limit when nothing is claimed, otherwise 0.
func KeysAvailable(dir hardware.Direction, occupied, limit int) int {
	if limit <= 0 {
		return 0
	}
	switch dir {
	case hardware.DirectionOutput:
		if occupied > 0 {
			return 0
		}
		return limit
	default:
		if occupied >= limit {
			return 0
		}
		return limit - occupied
	}
}

// ScanPort computes availability for a single port.
func ScanPort(dir hardware.Direction, p *hardware.Port) PortAvailability {
	pa := PortAvailability{
		Port:             p.Index,
		Label:            p.Label,
		Sequence:         []SlotAvailability{},
		SequenceOccupied: []int{},
	}

	if p.Malformed || hardware.ValidatePort(p) != nil {
		pa.Malformed = true
		return pa
	}

	pa.KeysLimit = p.KeysLimit
	pa.KeysQuantity = p.Quantity()
	pa.KeysAvailable = KeysAvailable(dir, p.KeysOccupied(), p.KeysLimit)
	pa.Available = pa.KeysAvailable > 0

	for i := 0; i < hardware.SequenceLimit; i++ {
		if ref := p.Slots[i]; ref != nil && ref.ID != "" {
			pa.SequenceOccupied = append(pa.SequenceOccupied, i)
			continue
		}
		pa.Sequence = append(pa.Sequence, SlotAvailability{Index: i, Available: true})
		break
	}

	return pa
}

// Scan computes availability for every port of a snapshot, in snapshot order.
// Ports that break an invariant are reported unavailable with a zero key
// limit; the remaining ports are unaffected.
func Scan(snap *hardware.Snapshot) []PortAvailability {
	if snap == nil {
		return []PortAvailability{}
	}
	clean := hardware.Sanitize(snap)

	result := make([]PortAvailability, 0, len(clean.Ports))
	for i := range clean.Ports {
		result = append(result, ScanPort(clean.Direction, &clean.Ports[i]))
	}
	return result
}
