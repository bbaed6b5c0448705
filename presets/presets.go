// Package presets loads named disk-format geometry presets (pc360, pc1440,
// amiga880, ...) from an embedded TOML document, the same embed+TOML
// pattern the teacher repo uses for its drive-profile config
// (config/config.go), repurposed here to describe disk formats rather than
// physical drive identity.
package presets

import (
	_ "embed"
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/dbalsom/fluxfox-sub001/chs"
)

//go:embed floppy.toml
var defaultPresetData []byte

// Format is one named disk-format geometry preset.
type Format struct {
	Name       string `toml:"name"`
	Cylinders  uint16 `toml:"cylinders"`
	Heads      uint8  `toml:"heads"`
	Sectors    uint8  `toml:"sectors"`
	SectorOff  uint8  `toml:"sector_off"`
	SectorSize int    `toml:"sector_size"`
	Encoding   string `toml:"encoding"`
	RateKbps   uint32 `toml:"rate_kbps"`
	RPM        uint16 `toml:"rpm"`
}

type document struct {
	Format []Format `toml:"format"`
}

// Layout converts the preset to a chs.SectorLayout.
func (f Format) Layout() chs.SectorLayout {
	return chs.NewSectorLayout(f.Cylinders, f.Heads, f.Sectors, f.SectorOff, f.SectorSize)
}

// EncodingValue parses the preset's encoding string into a chs.Encoding.
func (f Format) EncodingValue() chs.Encoding {
	switch f.Encoding {
	case "fm":
		return chs.EncodingFM
	case "mfm":
		return chs.EncodingMFM
	case "gcr":
		return chs.EncodingGCR
	default:
		return chs.EncodingUnknown
	}
}

// Registry holds a set of named Format presets.
type Registry struct {
	byName map[string]Format
	order  []string
}

// Default returns the registry of built-in presets embedded in this module.
func Default() (*Registry, error) {
	return Load(defaultPresetData)
}

// Load parses a TOML document (in the same shape as the embedded default)
// into a Registry.
func Load(data []byte) (*Registry, error) {
	var doc document
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, fmt.Errorf("presets: decoding toml: %w", err)
	}
	r := &Registry{byName: make(map[string]Format, len(doc.Format))}
	for _, f := range doc.Format {
		r.byName[f.Name] = f
		r.order = append(r.order, f.Name)
	}
	return r, nil
}

// Get looks up a preset by name.
func (r *Registry) Get(name string) (Format, bool) {
	f, ok := r.byName[name]
	return f, ok
}

// Names returns the preset names in declaration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
