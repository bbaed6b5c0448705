// Package track's tagged Track variant, per spec §9 Design Notes: "the
// three variants are closed and known" so dispatch uses a sum type with
// helper methods rather than an interface/dynamic dispatch, matching the
// teacher's general preference for flat structs over trait objects.
package track

import (
	"github.com/dbalsom/fluxfox-sub001/bitstream"
	"github.com/dbalsom/fluxfox-sub001/chs"
	"github.com/dbalsom/fluxfox-sub001/fferr"
)

// Kind is the closed set of Track representations (spec §3 Track variant).
type Kind int

const (
	KindMetaSector Kind = iota
	KindBitStream
	KindFluxStream
)

func (k Kind) String() string {
	switch k {
	case KindBitStream:
		return "BitStream"
	case KindFluxStream:
		return "FluxStream"
	default:
		return "MetaSector"
	}
}

// Track wraps exactly one of MetaSectorTrack, BitStreamTrack or
// FluxStreamTrack and dispatches the common operations shared by all three
// (spec §3/§4.4/§6). Exactly one of Meta/Bit/Flux is non-nil, matching Kind.
type Track struct {
	Kind Kind
	Meta *MetaSectorTrack
	Bit  *BitStreamTrack
	Flux *FluxStreamTrack
}

// NewMetaSectorTrackVariant wraps a MetaSectorTrack as a Track.
func NewMetaSectorTrackVariant(t *MetaSectorTrack) Track {
	return Track{Kind: KindMetaSector, Meta: t}
}

// NewBitStreamTrackVariant wraps a BitStreamTrack as a Track.
func NewBitStreamTrackVariant(t *BitStreamTrack) Track {
	return Track{Kind: KindBitStream, Bit: t}
}

// NewFluxStreamTrackVariant wraps a FluxStreamTrack as a Track.
func NewFluxStreamTrackVariant(t *FluxStreamTrack) Track {
	return Track{Kind: KindFluxStream, Flux: t}
}

// Ch returns the track's physical location.
func (t *Track) Ch() chs.DiskCh {
	switch t.Kind {
	case KindMetaSector:
		return t.Meta.Ch
	case KindBitStream:
		return t.Bit.Ch
	default:
		return t.Flux.Ch
	}
}

// Info returns the visualizer-facing summary of this track (spec §6
// Track::info()).
func (t *Track) Info() TrackInfo {
	switch t.Kind {
	case KindMetaSector:
		return t.Meta.Info()
	case KindBitStream:
		return t.Bit.Info()
	default:
		return t.Flux.Info()
	}
}

// HasSectorID reports whether the track contains a header matching id.
func (t *Track) HasSectorID(id chs.DiskChsnQuery) bool {
	switch t.Kind {
	case KindMetaSector:
		return t.Meta.HasSectorID(id)
	case KindBitStream:
		return t.Bit.HasSectorID(id)
	default:
		return t.Flux.HasSectorID(id)
	}
}

// SectorList returns one entry per discovered sector (spec §6
// Track::sector_list()).
func (t *Track) SectorList() []SectorMapEntry {
	switch t.Kind {
	case KindMetaSector:
		return t.Meta.SectorList()
	case KindBitStream:
		return t.Bit.SectorList()
	default:
		return t.Flux.SectorList()
	}
}

// ScanSector reports the match/integrity status of the sector matching id,
// without decoding its payload (spec §4.4 scan_sector).
func (t *Track) ScanSector(id chs.DiskChsnQuery, offset int) (ScanSectorResult, error) {
	switch t.Kind {
	case KindMetaSector:
		return t.Meta.ScanSector(id, offset)
	case KindBitStream:
		return t.Bit.ScanSector(id, offset)
	default:
		return t.Flux.ScanSector(id, offset)
	}
}

// ReadSector reads the payload of the sector matching id (spec §4.4
// read_sector).
func (t *Track) ReadSector(id chs.DiskChsnQuery, offset int, scope chs.RwScope) (ReadSectorResult, error) {
	switch t.Kind {
	case KindMetaSector:
		return t.Meta.ReadSector(id, offset, scope)
	case KindBitStream:
		return t.Bit.ReadSector(id, offset, scope)
	default:
		return t.Flux.ReadSector(id, offset, scope)
	}
}

// WriteSector overwrites the payload of the sector matching id (spec §4.4
// write_sector).
func (t *Track) WriteSector(id chs.DiskChsnQuery, offset int, data []byte, scope chs.RwScope, writeDeleted bool) (WriteSectorResult, error) {
	switch t.Kind {
	case KindMetaSector:
		return t.Meta.WriteSector(id, offset, data, scope, writeDeleted)
	case KindBitStream:
		return t.Bit.WriteSector(id, offset, data, scope, writeDeleted)
	default:
		return t.Flux.WriteSector(id, offset, data, scope, writeDeleted)
	}
}

// RecalculateSectorCrc rewrites the sector's integrity field from its
// current payload contents.
func (t *Track) RecalculateSectorCrc(id chs.DiskChsnQuery, offset int) error {
	switch t.Kind {
	case KindMetaSector:
		return t.Meta.RecalculateSectorCrc(id, offset)
	case KindBitStream:
		return t.Bit.RecalculateSectorCrc(id, offset)
	default:
		return t.Flux.RecalculateSectorCrc(id, offset)
	}
}

// ReadAllSectors reads every sector's payload in ascending sector-ID order
// (spec §4.4 read_all_sectors).
func (t *Track) ReadAllSectors(n uint8, eot uint8) (ReadTrackResult, error) {
	switch t.Kind {
	case KindMetaSector:
		return t.Meta.ReadAllSectors(n, eot)
	case KindBitStream:
		return t.Bit.ReadAllSectors(n, eot)
	default:
		return t.Flux.ReadAllSectors(n, eot)
	}
}

// NextID returns the sector ID immediately following cur's sector number on
// this track, if any (spec §6 Track::next_id).
func (t *Track) NextID(cur chs.DiskChs) *chs.DiskChsn {
	switch t.Kind {
	case KindMetaSector:
		return t.Meta.NextID(cur)
	case KindBitStream:
		return t.Bit.NextID(cur)
	default:
		return t.Flux.NextID(cur)
	}
}

// Read decodes the whole track's data bytes.
func (t *Track) Read() (ReadTrackResult, error) {
	switch t.Kind {
	case KindMetaSector:
		return t.Meta.Read(), nil
	case KindBitStream:
		return t.Bit.Read(), nil
	default:
		return t.Flux.Read()
	}
}

// ReadRaw returns the track's raw channel bytes, undecoded.
func (t *Track) ReadRaw() (ReadTrackResult, error) {
	switch t.Kind {
	case KindMetaSector:
		return t.Meta.ReadRaw(), nil
	case KindBitStream:
		return t.Bit.ReadRaw(), nil
	default:
		return t.Flux.ReadRaw()
	}
}

// Format lays out a fresh track (spec §4.4 format). sectorData is consulted
// for KindBitStream (a System34/Amiga schema lays out concrete markers and
// gaps around it); fillPattern is consulted for KindMetaSector (there is no
// marker/gap layout, only sector contents to initialize). A FluxStreamTrack
// cannot be formatted directly, since its content is raw captured flux:
// Format returns ErrIncompatibleImage for it, whether or not its
// revolutions have been decoded.
func (t *Track) Format(layout chs.SectorLayout, sectorData [][]byte, fillPattern []byte, n uint8) error {
	switch t.Kind {
	case KindMetaSector:
		return t.Meta.Format(layout, fillPattern, n)
	case KindBitStream:
		return t.Bit.Format(layout, sectorData, n)
	default:
		return fferr.ErrIncompatibleImage
	}
}

// Analysis summarizes the track's sector layout health (spec §4.4
// analysis()).
func (t *Track) Analysis() (TrackAnalysis, error) {
	switch t.Kind {
	case KindMetaSector:
		return t.Meta.Analysis(), nil
	case KindBitStream:
		return t.Bit.Analysis(), nil
	default:
		return t.Flux.Analysis()
	}
}

// Stream returns the track's raw channel-bit stream, or nil for a
// MetaSectorTrack (which has none) or an unresolved FluxStreamTrack (spec §6
// Track::stream()).
func (t *Track) Stream() *bitstream.Stream {
	switch t.Kind {
	case KindBitStream:
		return t.Bit.Stream
	case KindFluxStream:
		if bt := t.Flux.getBitstream(); bt != nil {
			return bt.Stream
		}
	}
	return nil
}

// Metadata returns the track's discovered element list, or nil for a
// MetaSectorTrack or an unresolved FluxStreamTrack (spec §6
// Track::metadata()).
func (t *Track) Metadata() *TrackMetadata {
	switch t.Kind {
	case KindBitStream:
		return &t.Bit.Metadata
	case KindFluxStream:
		if bt := t.Flux.getBitstream(); bt != nil {
			return &bt.Metadata
		}
	}
	return nil
}

// DataRanges returns the track's SectorData bit ranges for IsData queries,
// or nil where Metadata does.
func (t *Track) DataRanges() []bitstream.DataRange {
	switch t.Kind {
	case KindBitStream:
		return t.Bit.DataRanges()
	case KindFluxStream:
		if bt := t.Flux.getBitstream(); bt != nil {
			return bt.DataRanges()
		}
	}
	return nil
}

// FluxDeltas returns the raw flux transition deltas of the track's best
// revolution, or nil for anything but a FluxStreamTrack (spec §6
// FluxStreamTrack::flux_deltas()).
func (t *Track) FluxDeltas() []float64 {
	if t.Kind != KindFluxStream {
		return nil
	}
	return t.Flux.FluxDeltas()
}

// RawFluxIter returns the flux deltas of every non-synthetic revolution,
// concatenated, or nil for anything but a FluxStreamTrack (spec §6
// FluxStreamTrack::raw_flux_iter()).
func (t *Track) RawFluxIter() []float64 {
	if t.Kind != KindFluxStream {
		return nil
	}
	return t.Flux.RawFluxIter()
}
