package hardware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// indexDocument is the raw bitmap-style snapshot of one central.
//
//	{
//	  "id": "central-1",
//	  "ports": {"inputs": [{"port": 0, "label": "A", "keysLimit": 4}]},
//	  "indexGlobalKeys": {
//	    "inputs": {
//	      "A": {"keysLimit": 4, "keysQuantity": 4,
//	            "keys": ["dev-1", null, null, null],
//	            "sequence": [{"id": "dev-1"}, null, null, null]}
//	    }
//	  }
//	}
//
// Per-port entries under indexGlobalKeys are keyed by label, or by the port
// index when the port has no label.
type indexDocument struct {
	ID              string                                `json:"id"`
	Name            string                                `json:"name"`
	Ports           map[string]json.RawMessage            `json:"ports"`
	IndexGlobalKeys map[string]map[string]json.RawMessage `json:"indexGlobalKeys"`
}

type indexPortHeader struct {
	Port      int    `json:"port"`
	Label     string `json:"label"`
	KeysLimit int    `json:"keysLimit"`
}

type indexPortEntry struct {
	KeysLimit    *int              `json:"keysLimit"`
	KeysQuantity int               `json:"keysQuantity"`
	Keys         []*string         `json:"keys"`
	Sequence     []json.RawMessage `json:"sequence"`
}

// DecodeIndex decodes the index-shaped snapshot of a single central.
//
// The top-level document must be a JSON object carrying an id; anything else
// is ErrMalformedSnapshot. Individual ports whose occupancy entry is missing
// or unreadable are kept with KeysLimit 0 and flagged Malformed.
//
// Parameters:
//   - data: the raw JSON document
//
// Returns:
//   - *Central: both directions, each non-nil and in document order
//   - error: ErrMalformedSnapshot when the document itself is unusable
func DecodeIndex(data []byte) (*Central, error) {
	var doc indexDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSnapshot, err)
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("%w: missing central id", ErrMalformedSnapshot)
	}

	c := &Central{ID: doc.ID, Name: doc.Name, Inputs: []Port{}, Outputs: []Port{}}
	for _, dir := range AllDirections() {
		rawPorts, ok := portList(doc.Ports, dir)
		if !ok {
			continue
		}
		ports := decodeIndexPorts(rawPorts, doc.IndexGlobalKeys[dir.IndexKey()])
		switch dir {
		case DirectionInput:
			c.Inputs = ports
		case DirectionOutput:
			c.Outputs = ports
		}
	}
	return c, nil
}

// portList picks the single port list for dir. The index spelling
// ("inputs") wins; otherwise the alphabetically first alias is used and any
// other alias for the same direction is ignored.
func portList(lists map[string]json.RawMessage, dir Direction) (json.RawMessage, bool) {
	if raw, ok := lists[dir.IndexKey()]; ok {
		return raw, true
	}
	for _, name := range slices.Sorted(maps.Keys(lists)) {
		if d, err := ParseDirection(name); err == nil && d == dir {
			return lists[name], true
		}
	}
	return nil, false
}

func decodeIndexPorts(raw json.RawMessage, entries map[string]json.RawMessage) []Port {
	var headers []json.RawMessage
	if err := json.Unmarshal(raw, &headers); err != nil {
		return []Port{}
	}

	ports := make([]Port, 0, len(headers))
	for i, rawHeader := range headers {
		var h indexPortHeader
		if err := json.Unmarshal(rawHeader, &h); err != nil {
			p := Port{Index: i}
			p.MarkMalformed("unreadable port header: " + err.Error())
			ports = append(ports, p)
			continue
		}
		ports = append(ports, decodeIndexPort(h, entries))
	}
	return ports
}

func decodeIndexPort(h indexPortHeader, entries map[string]json.RawMessage) Port {
	p := Port{Index: h.Port, Label: h.Label}

	key := h.Label
	if key == "" {
		key = strconv.Itoa(h.Port)
	}
	raw, ok := entries[key]
	if !ok || isNull(raw) {
		p.MarkMalformed("missing occupancy entry " + strconv.Quote(key))
		return p
	}

	var e indexPortEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		p.MarkMalformed("unreadable occupancy entry: " + err.Error())
		return p
	}

	p.KeysLimit = h.KeysLimit
	if e.KeysLimit != nil {
		p.KeysLimit = *e.KeysLimit
	}
	p.KeysQuantity = e.KeysQuantity

	perDevice := make(map[string]int)
	for i, id := range e.Keys {
		if id == nil || *id == "" {
			continue
		}
		perDevice[*id]++
		p.Keys = append(p.Keys, KeyUnit{Index: i, DeviceID: *id, Key: perDevice[*id]})
	}

	for i, rawRef := range e.Sequence {
		ref, err := decodeDeviceRef(rawRef)
		if err != nil {
			p.MarkMalformed(fmt.Sprintf("unreadable slot %d: %v", i, err))
			continue
		}
		if ref == nil {
			continue
		}
		if i >= SequenceLimit {
			p.MarkMalformed(fmt.Sprintf("%v: %d", ErrSlotOutOfRange, i))
			continue
		}
		p.Slots[i] = ref
	}

	if err := ValidatePort(&p); err != nil {
		p.MarkMalformed(err.Error())
	}
	return p
}

// decodeDeviceRef accepts null, a bare device id string, or an object.
func decodeDeviceRef(raw json.RawMessage) (*DeviceRef, error) {
	if isNull(raw) {
		return nil, nil
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		if id == "" {
			return nil, nil
		}
		return &DeviceRef{ID: id}, nil
	}
	var ref DeviceRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, err
	}
	if ref.ID == "" {
		return nil, nil
	}
	return &ref, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// menuCentral is one central in the denormalized menu tree.
type menuCentral struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	InputPorts  []json.RawMessage `json:"inputPorts"`
	OutputPorts []json.RawMessage `json:"outputPorts"`
}

type menuPort struct {
	Port         int          `json:"port"`
	Label        string       `json:"label"`
	KeysLimit    int          `json:"keysLimit"`
	KeysQuantity int          `json:"keysQuantity"`
	Keys         []*string    `json:"keys"`
	Devices      []menuDevice `json:"devices"`
}

type menuDevice struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Kind     DeviceKind `json:"kind"`
	Sequence *int       `json:"sequence"`
}

// DecodeMenu decodes the denormalized menu tree.
//
// The document is either an array of centrals or a single central object.
// Each port lists the devices wired into it; a device's sequence defaults to
// its position in the list. When a port carries no explicit key bitmap, key
// units are assigned to devices in slot order according to their kind.
func DecodeMenu(data []byte) ([]Central, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedSnapshot)
	}

	var raw []menuCentral
	if trimmed[0] == '{' {
		var single menuCentral
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedSnapshot, err)
		}
		raw = []menuCentral{single}
	} else if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSnapshot, err)
	}

	centrals := make([]Central, 0, len(raw))
	for _, mc := range raw {
		if mc.ID == "" {
			continue
		}
		centrals = append(centrals, Central{
			ID:      mc.ID,
			Name:    mc.Name,
			Inputs:  decodeMenuPorts(mc.InputPorts),
			Outputs: decodeMenuPorts(mc.OutputPorts),
		})
	}
	return centrals, nil
}

func decodeMenuPorts(raw []json.RawMessage) []Port {
	ports := make([]Port, 0, len(raw))
	for i, r := range raw {
		var mp menuPort
		if err := json.Unmarshal(r, &mp); err != nil {
			p := Port{Index: i}
			p.MarkMalformed("unreadable port: " + err.Error())
			ports = append(ports, p)
			continue
		}
		ports = append(ports, decodeMenuPort(mp))
	}
	return ports
}

func decodeMenuPort(mp menuPort) Port {
	p := Port{
		Index:        mp.Port,
		Label:        mp.Label,
		KeysLimit:    mp.KeysLimit,
		KeysQuantity: mp.KeysQuantity,
	}

	for i, d := range mp.Devices {
		if d.ID == "" {
			continue
		}
		slot := i
		if d.Sequence != nil {
			slot = *d.Sequence
		}
		if slot < 0 || slot >= SequenceLimit {
			p.MarkMalformed(fmt.Sprintf("%v: device %s at %d", ErrSlotOutOfRange, d.ID, slot))
			continue
		}
		if p.Slots[slot] != nil {
			p.MarkMalformed(fmt.Sprintf("slot %d claimed by %s and %s", slot, p.Slots[slot].ID, d.ID))
			continue
		}
		p.Slots[slot] = &DeviceRef{ID: d.ID, Name: d.Name, Kind: d.Kind}
	}

	if mp.Keys != nil {
		perDevice := make(map[string]int)
		for i, id := range mp.Keys {
			if id == nil || *id == "" {
				continue
			}
			perDevice[*id]++
			p.Keys = append(p.Keys, KeyUnit{Index: i, DeviceID: *id, Key: perDevice[*id]})
		}
	} else {
		p.Keys = AssignKeyUnits(p.Slots)
	}

	if err := ValidatePort(&p); err != nil {
		p.MarkMalformed(err.Error())
	}
	return p
}

// AssignKeyUnits lays devices' key units out back to back in slot order.
func AssignKeyUnits(slots [SequenceLimit]*DeviceRef) []KeyUnit {
	var keys []KeyUnit
	next := 0
	for _, ref := range slots {
		if ref == nil {
			continue
		}
		for k := 1; k <= ref.Kind.KeyUnits(); k++ {
			keys = append(keys, KeyUnit{Index: next, DeviceID: ref.ID, Key: k})
			next++
		}
	}
	return keys
}
