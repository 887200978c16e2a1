package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-installer/internal/hardware"
)

// ErrUnsupportedFormat is returned for fixture files with an unknown extension.
var ErrUnsupportedFormat = errors.New("snapshot: unsupported fixture format")

// Fixture is an offline description of one or more centrals.
//
//	centrals:
//	  - id: central-1
//	    name: Main panel
//	    inputs:
//	      - port: 0
//	        label: A
//	        keys_limit: 8
//	        slots:
//	          - {id: kp-hall, name: Hall keypad, kind: keypad_4}
//	          - {id: pir-1, kind: sensor}
//
// A slot with an empty id is free. When keys is omitted the key units are
// assigned from the slot devices' kinds.
type Fixture struct {
	Centrals []FixtureCentral `yaml:"centrals" toml:"centrals" json:"centrals"`
}

// FixtureCentral is one central in a fixture.
type FixtureCentral struct {
	ID      string        `yaml:"id" toml:"id" json:"id"`
	Name    string        `yaml:"name" toml:"name" json:"name"`
	Inputs  []FixturePort `yaml:"inputs" toml:"inputs" json:"inputs"`
	Outputs []FixturePort `yaml:"outputs" toml:"outputs" json:"outputs"`
}

// FixturePort is one port in a fixture.
type FixturePort struct {
	Port         int             `yaml:"port" toml:"port" json:"port"`
	Label        string          `yaml:"label" toml:"label" json:"label"`
	KeysLimit    int             `yaml:"keys_limit" toml:"keys_limit" json:"keys_limit"`
	KeysQuantity int             `yaml:"keys_quantity" toml:"keys_quantity" json:"keys_quantity"`
	Slots        []FixtureDevice `yaml:"slots" toml:"slots" json:"slots"`
	// Keys lists the owner of each key unit by position; "" is unclaimed.
	Keys []string `yaml:"keys" toml:"keys" json:"keys"`
}

// FixtureDevice is a device wired into a slot.
type FixtureDevice struct {
	ID   string `yaml:"id" toml:"id" json:"id"`
	Name string `yaml:"name" toml:"name" json:"name"`
	Kind string `yaml:"kind" toml:"kind" json:"kind"`
}

// LoadFixture reads a fixture, choosing the decoder by file extension
// (.yaml, .yml, .toml or .json).
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture %s: %w", path, err)
	}
	return ParseFixture(filepath.Ext(path), data)
}

// ParseFixture decodes fixture data in the format named by ext.
func ParseFixture(ext string, data []byte) (*Fixture, error) {
	var f Fixture
	var err error
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &f)
	case "toml":
		err = toml.Unmarshal(data, &f)
	case "json":
		err = json.Unmarshal(data, &f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", hardware.ErrMalformedSnapshot, err)
	}
	return &f, nil
}

// Centrals converts the fixture into the canonical model. Ports that break
// a capacity rule are kept and flagged Malformed.
func (f *Fixture) Centrals() []hardware.Central {
	out := make([]hardware.Central, 0, len(f.Centrals))
	for _, fc := range f.Centrals {
		if fc.ID == "" {
			continue
		}
		out = append(out, hardware.Central{
			ID:      fc.ID,
			Name:    fc.Name,
			Inputs:  fixturePorts(fc.Inputs),
			Outputs: fixturePorts(fc.Outputs),
		})
	}
	return out
}

// Central returns the central with the given id.
func (f *Fixture) Central(id string) (hardware.Central, bool) {
	for _, c := range f.Centrals() {
		if c.ID == id {
			return c, true
		}
	}
	return hardware.Central{}, false
}

func fixturePorts(in []FixturePort) []hardware.Port {
	ports := make([]hardware.Port, 0, len(in))
	for _, fp := range in {
		ports = append(ports, fixturePort(fp))
	}
	return ports
}

func fixturePort(fp FixturePort) hardware.Port {
	p := hardware.Port{
		Index:        fp.Port,
		Label:        fp.Label,
		KeysLimit:    fp.KeysLimit,
		KeysQuantity: fp.KeysQuantity,
	}

	for i, d := range fp.Slots {
		if d.ID == "" {
			continue
		}
		if i >= hardware.SequenceLimit {
			p.MarkMalformed(fmt.Sprintf("%v: device %s at %d", hardware.ErrSlotOutOfRange, d.ID, i))
			continue
		}
		p.Slots[i] = &hardware.DeviceRef{ID: d.ID, Name: d.Name, Kind: hardware.DeviceKind(d.Kind)}
	}

	if fp.Keys != nil {
		perDevice := make(map[string]int)
		for i, owner := range fp.Keys {
			if owner == "" {
				continue
			}
			perDevice[owner]++
			p.Keys = append(p.Keys, hardware.KeyUnit{Index: i, DeviceID: owner, Key: perDevice[owner]})
		}
	} else {
		p.Keys = hardware.AssignKeyUnits(p.Slots)
	}

	if err := hardware.ValidatePort(&p); err != nil {
		p.MarkMalformed(err.Error())
	}
	return p
}
