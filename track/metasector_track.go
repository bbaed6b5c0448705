package track

import (
	"fmt"

	"github.com/dbalsom/fluxfox-sub001/chs"
	"github.com/dbalsom/fluxfox-sub001/fferr"
	"github.com/dbalsom/fluxfox-sub001/shared"
)

// MetaSectorTrackParams describes a track handed to the core as a plain
// sector-list container (spec §6 add_track_metasector): a parser for a
// sector-level format (raw IMG, D64, ...) that carries no bitstream/flux
// representation at all, only already-decoded sector payloads in CHS order.
type MetaSectorTrackParams struct {
	Ch       chs.DiskCh
	Encoding chs.Encoding
	DataRate chs.DataRate
	Rpm      chs.RPM
	N        uint8
	// SectorOff is the first sector number on the track (1 for System34-style
	// containers, 0 for Amiga-style).
	SectorOff uint8
	Sectors   [][]byte
}

// metaSector is one already-decoded sector held by a MetaSectorTrack.
type metaSector struct {
	s    uint8
	data []byte
}

// MetaSectorTrack is the lowest-resolution Track variant (spec §3
// Resolution.MetaSector): it holds decoded sector payloads directly, with no
// underlying bitstream or flux representation, no markers, and no integrity
// fields to recompute — a container format that stores sectors as a plain
// array (a raw sector dump, a filesystem-image container) round-trips
// through this variant without ever synthesizing fake clocking.
type MetaSectorTrack struct {
	Ch       chs.DiskCh
	Encoding chs.Encoding
	DataRate chs.DataRate
	Rpm      chs.RPM
	N        uint8

	sectors []metaSector
	shared  *shared.DiskContext
}

// NewMetaSectorTrack builds a MetaSectorTrack from already-decoded sector
// payloads, numbered sequentially starting at p.SectorOff.
func NewMetaSectorTrack(p MetaSectorTrackParams, sharedCtx *shared.DiskContext) *MetaSectorTrack {
	t := &MetaSectorTrack{
		Ch:       p.Ch,
		Encoding: p.Encoding,
		DataRate: p.DataRate,
		Rpm:      p.Rpm,
		N:        p.N,
		shared:   sharedCtx,
	}
	for i, data := range p.Sectors {
		t.sectors = append(t.sectors, metaSector{s: p.SectorOff + uint8(i), data: data})
	}
	return t
}

func (t *MetaSectorTrack) find(id chs.DiskChsnQuery) (int, bool) {
	for i, sec := range t.sectors {
		chsn := chs.NewDiskChsn(t.Ch.C, t.Ch.H, sec.s, t.N)
		if id.Matches(chsn) {
			return i, true
		}
	}
	return -1, false
}

// HasSectorID reports whether the track contains a sector matching id.
func (t *MetaSectorTrack) HasSectorID(id chs.DiskChsnQuery) bool {
	_, ok := t.find(id)
	return ok
}

// SectorList returns one entry per sector; a MetaSectorTrack has no address
// or data integrity fields to check, so AddressError/DataError are always
// false and Deleted is always false.
func (t *MetaSectorTrack) SectorList() []SectorMapEntry {
	out := make([]SectorMapEntry, 0, len(t.sectors))
	for _, sec := range t.sectors {
		out = append(out, SectorMapEntry{Chsn: chs.NewDiskChsn(t.Ch.C, t.Ch.H, sec.s, t.N)})
	}
	return out
}

// ScanSector reports the match status of the sector matching id. A
// MetaSectorTrack has no marker/CRC machinery, so every matched sector
// always reports valid integrity and no_dam is never set.
func (t *MetaSectorTrack) ScanSector(id chs.DiskChsnQuery, _ int) (ScanSectorResult, error) {
	if _, ok := t.find(id); !ok {
		return ScanSectorResult{}, fmt.Errorf("track: sector %s: %w", id, fferr.ErrSectorIDNotFound)
	}
	return ScanSectorResult{AddressCrcValid: true, DataCrcValid: true}, nil
}

// ReadSector returns the stored payload for id. Scope is honored as a byte
// slice of the stored data: RwScopeCrcOnly returns an empty slice since a
// MetaSectorTrack carries no separate CRC field.
func (t *MetaSectorTrack) ReadSector(id chs.DiskChsnQuery, offset int, scope chs.RwScope) (ReadSectorResult, error) {
	idx, ok := t.find(id)
	if !ok {
		return ReadSectorResult{}, fmt.Errorf("track: sector %s: %w", id, fferr.ErrSectorIDNotFound)
	}
	data := t.sectors[idx].data
	if scope == chs.RwScopeCrcOnly {
		data = nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return ReadSectorResult{Data: out, AddressCrcValid: true, DataCrcValid: true}, nil
}

// WriteSector overwrites the stored payload for id.
func (t *MetaSectorTrack) WriteSector(id chs.DiskChsnQuery, offset int, data []byte, scope chs.RwScope, _ bool) (WriteSectorResult, error) {
	idx, ok := t.find(id)
	if !ok {
		return WriteSectorResult{}, fmt.Errorf("track: sector %s: %w", id, fferr.ErrSectorIDNotFound)
	}
	if scope == chs.RwScopeCrcOnly {
		return WriteSectorResult{AddressCrcValid: true, DataCrcValid: true}, nil
	}
	if len(data) != len(t.sectors[idx].data) {
		return WriteSectorResult{}, fmt.Errorf("track: write sector %s: %d bytes supplied, element wants %d: %w", id, len(data), len(t.sectors[idx].data), fferr.ErrParameter)
	}
	copy(t.sectors[idx].data, data)
	if t.shared != nil {
		t.shared.UpdateHash(data)
		t.shared.RecordSectorWrite()
	}
	return WriteSectorResult{AddressCrcValid: true, DataCrcValid: true}, nil
}

// RecalculateSectorCrc is a no-op for a MetaSectorTrack: there is no
// integrity field to recompute.
func (t *MetaSectorTrack) RecalculateSectorCrc(id chs.DiskChsnQuery, _ int) error {
	if !t.HasSectorID(id) {
		return fmt.Errorf("track: sector %s: %w", id, fferr.ErrSectorIDNotFound)
	}
	return nil
}

// ReadAllSectors concatenates every sector's payload from sector 1 through
// eot, in ascending sector-number order.
func (t *MetaSectorTrack) ReadAllSectors(n uint8, eot uint8) (ReadTrackResult, error) {
	var out []byte
	for s := uint8(1); s <= eot; s++ {
		q := chs.NewDiskChsnQuery(s).WithN(n)
		read, err := t.ReadSector(q, 0, chs.RwScopeAll)
		if err != nil {
			continue
		}
		out = append(out, read.Data...)
	}
	return ReadTrackResult{Data: out, BitLength: len(out) * 8}, nil
}

// NextID returns the sector ID immediately following cur's sector number.
func (t *MetaSectorTrack) NextID(cur chs.DiskChs) *chs.DiskChsn {
	var best *chs.DiskChsn
	for _, sec := range t.sectors {
		if sec.s > cur.S {
			if best == nil || sec.s < best.Chs.S {
				id := chs.NewDiskChsn(t.Ch.C, t.Ch.H, sec.s, t.N)
				best = &id
			}
		}
	}
	return best
}

// Read concatenates every sector's payload in stored order.
func (t *MetaSectorTrack) Read() ReadTrackResult {
	var out []byte
	for _, sec := range t.sectors {
		out = append(out, sec.data...)
	}
	return ReadTrackResult{Data: out, BitLength: len(out) * 8}
}

// ReadRaw is identical to Read for a MetaSectorTrack: there is no distinct
// raw-channel representation to fall back to.
func (t *MetaSectorTrack) ReadRaw() ReadTrackResult {
	return t.Read()
}

// Format replaces the track's sector payloads with fresh ones, filled with
// fillPattern (spec §4.4 format, generalized: a MetaSectorTrack has no
// gap/marker layout to lay out, only sector contents to (re)initialize).
func (t *MetaSectorTrack) Format(layout chs.SectorLayout, fillPattern []byte, n uint8) error {
	if len(fillPattern) == 0 {
		return fmt.Errorf("track: format: empty fill pattern: %w", fferr.ErrParameter)
	}
	size := chs.SizeFromN(n)
	t.N = n
	t.sectors = t.sectors[:0]
	for s := layout.SOff; s < layout.SOff+layout.S; s++ {
		data := make([]byte, size)
		for i := range data {
			data[i] = fillPattern[i%len(fillPattern)]
		}
		t.sectors = append(t.sectors, metaSector{s: s, data: data})
	}
	if t.shared != nil {
		t.shared.RecordTrackWrite()
	}
	return nil
}

// Analysis summarizes the track's sector layout (spec §4.4 analysis()). A
// MetaSectorTrack carries no address/data error fields, so AddressErrors and
// DataErrors are always zero.
func (t *MetaSectorTrack) Analysis() TrackAnalysis {
	a := TrackAnalysis{SectorCount: len(t.sectors), ConsistentSectorSize: true}
	prevS := -1
	size := -1
	for _, sec := range t.sectors {
		if prevS >= 0 && int(sec.s) != prevS+1 {
			a.NonconsecutiveIds = true
		}
		prevS = int(sec.s)
		if size < 0 {
			size = len(sec.data)
		} else if size != len(sec.data) {
			a.ConsistentSectorSize = false
		}
	}
	return a
}

// Info returns the visualizer-facing summary of this track (spec §6
// Track::info()).
func (t *MetaSectorTrack) Info() TrackInfo {
	return TrackInfo{
		Resolution: chs.ResolutionMetaSector,
		Encoding:   t.Encoding,
		DataRate:   t.DataRate,
		Density:    chs.DensityFromDataRate(t.DataRate),
		Rpm:        t.Rpm,
		BitLength:  len(t.sectors) * chs.SizeFromN(t.N) * 8,
		SectorCt:   len(t.sectors),
	}
}
