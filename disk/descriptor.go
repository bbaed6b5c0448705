// Package disk implements DiskImage (spec §3/§6): the top-level container
// that owns an ordered track pool, a two-level physical-track index, and the
// shared per-image context threaded through every track. It is the parser
// boundary (§6): container-format parsers (out of scope here) call the
// AddTrack* constructors to populate an image, then higher layers call
// ReadSector/WriteSector against physical (cylinder, head) coordinates.
//
// Grounded on the teacher's hfe/hfe.go Disk/Header/TrackData shape (a single
// top-level "owns everything" struct built via a plain constructor
// function, no builder pattern) and original_source/src/disk.rs for the
// track_map/track_pool invariants spec §3 describes.
package disk

import "github.com/dbalsom/fluxfox-sub001/chs"

// Descriptor is a disk image's geometry and media characteristics (spec §3
// DiskImage.descriptor).
type Descriptor struct {
	Cylinders    uint16
	Heads        uint8
	DataRate     chs.DataRate
	Density      chs.Density
	Rpm          chs.RPM
	Encoding     chs.Encoding
	WriteProtect bool
	Platforms    []chs.Platform
}

// Layout returns the reference geometry this descriptor implies, given a
// per-track sector count and size (the descriptor itself does not carry a
// fixed sector count, since that can vary by schema/format).
func (d Descriptor) Layout(sectorsPerTrack uint8, sectorOff uint8, sectorSize int) chs.SectorLayout {
	return chs.NewSectorLayout(d.Cylinders, d.Heads, sectorsPerTrack, sectorOff, sectorSize)
}
