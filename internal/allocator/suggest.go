package allocator

// Suggestion is a default placement offered to a form before the operator
// picks. It is advisory; the committer performs the actual write.
type Suggestion struct {
	Port  int `json:"port"`
	Slot  int `json:"slot"`
	Units int `json:"units"`
}

// Suggest returns the first port, in scan order, that has a free slot and
// at least units free key units. units below 1 count as 1.
func Suggest(ports []PortAvailability, units int) (Suggestion, bool) {
	if units < 1 {
		units = 1
	}
	for _, p := range ports {
		if !p.Available || p.KeysAvailable < units {
			continue
		}
		slot, ok := p.FirstFreeSlot()
		if !ok {
			continue
		}
		return Suggestion{Port: p.Port, Slot: slot, Units: units}, true
	}
	return Suggestion{}, false
}
