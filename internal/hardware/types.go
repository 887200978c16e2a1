package hardware

import (
	"fmt"
	"strings"
	"time"
)

// SequenceLimit is the hardware's per-port sequence length.
const SequenceLimit = 4

// Direction selects one of a central's two independent port pools.
type Direction string

// Direction constants.
const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// AllDirections returns both directions in canonical order.
func AllDirections() []Direction {
	return []Direction{DirectionInput, DirectionOutput}
}

// ParseDirection converts a direction spelling into a Direction.
//
// The upstream documents use several spellings for the same pool:
// "input", "inputs" (indexGlobalKeys), "inputPorts" (menu tree) and
// upper-case "INPUT". All of them are accepted, likewise for output.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "input", "inputs", "inputports", "in":
		return DirectionInput, nil
	case "output", "outputs", "outputports", "out":
		return DirectionOutput, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

// IsValid reports whether d is one of the two known directions.
func (d Direction) IsValid() bool {
	return d == DirectionInput || d == DirectionOutput
}

// IndexKey returns the key used for this direction under indexGlobalKeys.
func (d Direction) IndexKey() string {
	return string(d) + "s"
}

// MenuKey returns the key used for this direction in the menu tree.
func (d Direction) MenuKey() string {
	return string(d) + "Ports"
}

// UnmarshalText accepts any spelling understood by ParseDirection.
// An empty value decodes to the zero Direction.
func (d *Direction) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = ""
		return nil
	}
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DeviceKind classifies the hardware wired into a slot.
type DeviceKind string

// DeviceKind constants.
const (
	DeviceKindKeypad4 DeviceKind = "keypad_4"
	DeviceKindKeypad2 DeviceKind = "keypad_2"
	DeviceKindModule  DeviceKind = "module"
	DeviceKindSensor  DeviceKind = "sensor"
	DeviceKindRelay   DeviceKind = "relay"
)

// KeyUnits returns how many key-capacity units a device of this kind claims.
// Unknown kinds claim a single unit.
func (k DeviceKind) KeyUnits() int {
	switch k {
	case DeviceKindKeypad4:
		return 4
	case DeviceKindKeypad2:
		return 2
	default:
		return 1
	}
}

// DeviceRef identifies the device held by a slot.
type DeviceRef struct {
	ID   string     `json:"id"`
	Name string     `json:"name,omitempty"`
	Kind DeviceKind `json:"kind,omitempty"`
}

// KeyUnit is one claimed key-capacity unit on a port.
// Unclaimed units are not listed; Index locates the unit within the port.
type KeyUnit struct {
	Index    int    `json:"index"`
	DeviceID string `json:"device_id"`
	Key      int    `json:"key,omitempty"` // key number on the claiming device, 1-based
}

// Port is a physical connector on a central.
type Port struct {
	Index int    `json:"port"`
	Label string `json:"label,omitempty"`

	// KeysLimit is the number of key-capacity units the port hosts.
	KeysLimit int `json:"keys_limit"`
	// KeysQuantity mirrors KeysLimit upstream; zero means "same as KeysLimit".
	KeysQuantity int `json:"keys_quantity,omitempty"`

	Keys  []KeyUnit                  `json:"keys,omitempty"`
	Slots [SequenceLimit]*DeviceRef `json:"slots"`

	// Malformed ports are reported as fully unavailable.
	Malformed bool   `json:"malformed,omitempty"`
	Fault     string `json:"fault,omitempty"`
}

// KeysOccupied returns the number of claimed key units.
func (p *Port) KeysOccupied() int {
	n := 0
	for _, k := range p.Keys {
		if k.DeviceID != "" {
			n++
		}
	}
	return n
}

// Quantity returns KeysQuantity, falling back to KeysLimit when unset.
func (p *Port) Quantity() int {
	if p.KeysQuantity > 0 {
		return p.KeysQuantity
	}
	return p.KeysLimit
}

// MarkMalformed flags the port as unusable and records why.
func (p *Port) MarkMalformed(reason string) {
	p.Malformed = true
	if p.Fault == "" {
		p.Fault = reason
	} else {
		p.Fault += "; " + reason
	}
}

// clone returns an independent copy of the port.
func (p Port) clone() Port {
	cpy := p
	if p.Keys != nil {
		cpy.Keys = make([]KeyUnit, len(p.Keys))
		copy(cpy.Keys, p.Keys)
	}
	for i, ref := range p.Slots {
		if ref != nil {
			r := *ref
			cpy.Slots[i] = &r
		}
	}
	return cpy
}

// Snapshot is one direction of one central at a point in time.
type Snapshot struct {
	CentralID string    `json:"central_id"`
	Direction Direction `json:"direction"`
	Ports     []Port    `json:"ports"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Port returns the port with the given index.
func (s *Snapshot) Port(index int) (*Port, bool) {
	for i := range s.Ports {
		if s.Ports[i].Index == index {
			return &s.Ports[i], true
		}
	}
	return nil, false
}

// DeepCopy returns an independent copy of the snapshot.
func (s *Snapshot) DeepCopy() *Snapshot {
	if s == nil {
		return nil
	}
	cpy := *s
	if s.Ports != nil {
		cpy.Ports = make([]Port, len(s.Ports))
		for i := range s.Ports {
			cpy.Ports[i] = s.Ports[i].clone()
		}
	}
	return &cpy
}

// MenuEntry is a device as listed under a port in the menu tree.
type MenuEntry struct {
	DeviceRef
	Sequence int `json:"sequence"`
}

// MenuPort is a port in the denormalized menu tree.
type MenuPort struct {
	Port    int         `json:"port"`
	Label   string      `json:"label,omitempty"`
	Devices []MenuEntry `json:"devices"`
}

// Menu derives the denormalized device-list view of the snapshot.
// Devices are listed in slot order; ports keep snapshot order.
func (s *Snapshot) Menu() []MenuPort {
	if s == nil {
		return []MenuPort{}
	}
	menu := make([]MenuPort, 0, len(s.Ports))
	for _, p := range s.Ports {
		mp := MenuPort{Port: p.Index, Label: p.Label, Devices: []MenuEntry{}}
		for i, ref := range p.Slots {
			if ref == nil || ref.ID == "" {
				continue
			}
			mp.Devices = append(mp.Devices, MenuEntry{DeviceRef: *ref, Sequence: i})
		}
		menu = append(menu, mp)
	}
	return menu
}

// Central is a physical home-automation controller.
type Central struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Inputs  []Port `json:"inputs"`
	Outputs []Port `json:"outputs"`
}

// Ports returns the port pool for a direction.
func (c *Central) Ports(d Direction) []Port {
	switch d {
	case DirectionInput:
		return c.Inputs
	case DirectionOutput:
		return c.Outputs
	default:
		return nil
	}
}

// Snapshot returns an independent snapshot of one direction.
func (c *Central) Snapshot(d Direction, fetchedAt time.Time) *Snapshot {
	src := c.Ports(d)
	ports := make([]Port, len(src))
	for i := range src {
		ports[i] = src[i].clone()
	}
	return &Snapshot{
		CentralID: c.ID,
		Direction: d,
		Ports:     ports,
		FetchedAt: fetchedAt,
	}
}

// Placement records where a device currently lives.
type Placement struct {
	DeviceID  string    `json:"device_id"`
	CentralID string    `json:"central_id"`
	Direction Direction `json:"direction"`
	Port      int       `json:"port"`
	Slot      int       `json:"slot"`
}

// String returns a compact human-readable form, e.g. "dev-1@central-1/input/2:0".
func (p Placement) String() string {
	return fmt.Sprintf("%s@%s/%s/%d:%d", p.DeviceID, p.CentralID, p.Direction, p.Port, p.Slot)
}
