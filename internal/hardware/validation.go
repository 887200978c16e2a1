package hardware

import (
	"errors"
	"fmt"
)

// ValidatePort checks the structural invariants of a single port.
// All violations are returned joined; nil means the port is well formed.
func ValidatePort(p *Port) error {
	var errs []error

	if p.Index < 0 {
		errs = append(errs, fmt.Errorf("%w: negative index %d", ErrInvalidPort, p.Index))
	}
	if p.KeysLimit < 0 {
		errs = append(errs, fmt.Errorf("%w: negative keys limit %d", ErrInvalidPort, p.KeysLimit))
	}

	seenFree := false
	for i, ref := range p.Slots {
		occupied := ref != nil && ref.ID != ""
		if !occupied {
			seenFree = true
			continue
		}
		if seenFree {
			errs = append(errs, fmt.Errorf("%w: slot %d occupied after a free slot", ErrNonContiguousSlots, i))
			break
		}
	}

	if occ := p.KeysOccupied(); occ > p.KeysLimit {
		errs = append(errs, fmt.Errorf("%w: %d occupied, limit %d", ErrKeysOverLimit, occ, p.KeysLimit))
	}
	units := make(map[int]struct{}, len(p.Keys))
	for _, k := range p.Keys {
		if k.Index < 0 || k.Index >= p.KeysLimit {
			errs = append(errs, fmt.Errorf("%w: key unit %d outside 0..%d", ErrKeysOverLimit, k.Index, p.KeysLimit-1))
			continue
		}
		if _, dup := units[k.Index]; dup {
			errs = append(errs, fmt.Errorf("%w: key unit %d claimed twice", ErrInvalidPort, k.Index))
		}
		units[k.Index] = struct{}{}
	}

	return errors.Join(errs...)
}

// Validate checks a snapshot against the hardware invariants.
//
// Every violation is collected; the returned error wraps one sentinel per
// problem so callers can test for a class with errors.Is.
func Validate(s *Snapshot) error {
	if s == nil {
		return fmt.Errorf("%w: nil snapshot", ErrMalformedSnapshot)
	}

	var errs []error
	if s.CentralID == "" {
		errs = append(errs, fmt.Errorf("%w: missing central id", ErrMalformedSnapshot))
	}
	if !s.Direction.IsValid() {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidDirection, s.Direction))
	}

	ports := make(map[int]struct{}, len(s.Ports))
	devices := make(map[string]int)
	for i := range s.Ports {
		p := &s.Ports[i]
		if _, dup := ports[p.Index]; dup {
			errs = append(errs, fmt.Errorf("%w: port %d listed twice", ErrInvalidPort, p.Index))
		}
		ports[p.Index] = struct{}{}

		if err := ValidatePort(p); err != nil {
			errs = append(errs, fmt.Errorf("port %d: %w", p.Index, err))
		}
		for _, ref := range p.Slots {
			if ref == nil || ref.ID == "" {
				continue
			}
			if prev, dup := devices[ref.ID]; dup {
				errs = append(errs, fmt.Errorf("%w: %s on ports %d and %d", ErrDuplicatePlacement, ref.ID, prev, p.Index))
				continue
			}
			devices[ref.ID] = p.Index
		}
	}

	return errors.Join(errs...)
}

// ValidatePlacement checks a placement coordinate before it is reported or committed.
func ValidatePlacement(p Placement) error {
	var errs []error
	if p.DeviceID == "" {
		errs = append(errs, errors.New("hardware: placement missing device id"))
	}
	if p.CentralID == "" {
		errs = append(errs, errors.New("hardware: placement missing central id"))
	}
	if !p.Direction.IsValid() {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidDirection, p.Direction))
	}
	if p.Port < 0 {
		errs = append(errs, fmt.Errorf("%w: negative index %d", ErrInvalidPort, p.Port))
	}
	if p.Slot < 0 || p.Slot >= SequenceLimit {
		errs = append(errs, fmt.Errorf("%w: %d", ErrSlotOutOfRange, p.Slot))
	}
	return errors.Join(errs...)
}

// Sanitize returns a copy of the snapshot with every port that breaks an
// invariant flagged Malformed. A device placed more than once leaves its
// first port intact and flags the port of each later occurrence.
func Sanitize(s *Snapshot) *Snapshot {
	if s == nil {
		return nil
	}
	out := s.DeepCopy()

	devices := make(map[string]int)
	for i := range out.Ports {
		p := &out.Ports[i]
		if err := ValidatePort(p); err != nil {
			p.MarkMalformed(err.Error())
		}
		for _, ref := range p.Slots {
			if ref == nil || ref.ID == "" {
				continue
			}
			if prev, dup := devices[ref.ID]; dup {
				p.MarkMalformed(fmt.Sprintf("%v: %s already on port %d", ErrDuplicatePlacement, ref.ID, prev))
				continue
			}
			devices[ref.ID] = p.Index
		}
	}
	return out
}
