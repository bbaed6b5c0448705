// Package track implements the Track tagged variant (spec §3/§9): the
// MetaSectorTrack, BitStreamTrack and FluxStreamTrack representations of one
// physical track, a schema-agnostic generic element model shared by both
// track schemas, and the sector read/write/format operations common to all
// three variants.
//
// The generic element model (TrackElementInstance/GenericElement/
// TrackMetadata) is grounded on original_source/src/track_schema/mod.rs
// (TrackElementInstance, GenericTrackElement, the From<TrackElement> for
// GenericTrackElement conversion); the tagged-variant Track type follows
// spec §9 Design Notes ("use a tagged variant ... rather than dynamic
// dispatch — the three variants are closed and known") rather than an
// interface, matching the teacher's own preference for flat structs over
// dynamic dispatch.
package track

import (
	"github.com/dbalsom/fluxfox-sub001/chs"
	"github.com/dbalsom/fluxfox-sub001/sourcemap"
)

// SchemaKind is the closed set of track schemas (spec §9 "Schema dispatch").
type SchemaKind int

const (
	SchemaNone SchemaKind = iota
	SchemaSystem34
	SchemaAmiga
)

func (k SchemaKind) String() string {
	switch k {
	case SchemaSystem34:
		return "System34"
	case SchemaAmiga:
		return "Amiga"
	default:
		return "None"
	}
}

// GenericElement classifies a TrackElementInstance independent of which
// schema produced it (original_source/src/track_schema/mod.rs
// GenericTrackElement), so that schema-agnostic consumers (visualizers,
// track analysis) need not match on System34 vs. Amiga element types.
type GenericElement int

const (
	NullElement GenericElement = iota
	Marker
	SectorHeader
	SectorBadHeader
	SectorData
	SectorDeletedData
	SectorBadData
	SectorBadDeletedData
)

func (e GenericElement) String() string {
	switch e {
	case Marker:
		return "Marker"
	case SectorHeader:
		return "Sector Header"
	case SectorBadHeader:
		return "Sector Header (Bad)"
	case SectorData:
		return "Sector Data"
	case SectorDeletedData:
		return "Deleted Sector Data"
	case SectorBadData:
		return "Sector Data (Bad)"
	case SectorBadDeletedData:
		return "Deleted Sector Data (Bad)"
	default:
		return "Null"
	}
}

// TrackElementInstance is one discovered region of a track: a marker, a
// sector header, or a sector data field, with its bit-range location (spec
// §3 TrackMetadata).
type TrackElementInstance struct {
	Element GenericElement
	// Start, End is the element's full half-open bit range, including any
	// address-mark prefix and trailing CRC/checksum field.
	Start, End int
	// DataStart, DataEnd is the payload-only half-open bit range within
	// [Start,End). Equal to [Start,End) for elements with no separate
	// payload (markers, headers).
	DataStart, DataEnd int
	Chsn                         *chs.DiskChsn
	AddressError, DataError      bool
	Deleted, NoDam, LastSector   bool
}

// Contains reports whether bitIndex falls within the element's full range.
func (t TrackElementInstance) Contains(bitIndex int) bool {
	return bitIndex >= t.Start && bitIndex < t.End
}

// Range returns the element's full half-open bit range.
func (t TrackElementInstance) Range() (start, end int) {
	return t.Start, t.End
}

// Len returns the element's full bit length.
func (t TrackElementInstance) Len() int {
	return t.End - t.Start
}

// CrcRange returns the half-open bit range of the element's integrity field,
// derived schema-agnostically from DataStart/DataEnd relative to Start/End:
// a trailing CRC (System34-style, DataEnd < End) or, failing that, a prefix
// checksum (Amiga-style, DataStart > Start). The suffix case is checked
// first because a System34 SectorData element's Start also sits before an
// address-mark-and-tag prefix that is not itself the CRC field, so both
// conditions hold there; only the trailing range is its integrity field.
// ok is false for elements with no separate integrity field.
func (t TrackElementInstance) CrcRange() (start, end int, ok bool) {
	if t.DataEnd < t.End {
		return t.DataEnd, t.End, true
	}
	if t.DataStart > t.Start {
		return t.Start, t.DataStart, true
	}
	return 0, 0, false
}

// TrackMetadata is the ordered element list produced by scanning a
// BitStreamTrack, plus the derived sector-id lists the spec requires (§3).
type TrackMetadata struct {
	Items          []TrackElementInstance
	SectorIds      []chs.DiskChsn
	ValidSectorIds []chs.DiskChsn
	SourceMap      *sourcemap.Map
}

// SectorMapEntry is one row of Track::sector_list() (spec §6).
type SectorMapEntry struct {
	Chsn          chs.DiskChsn
	AddressError  bool
	DataError     bool
	Deleted       bool
}

// TrackInfo is the read-only visualizer-facing summary of a track (spec §6
// Track::info()).
type TrackInfo struct {
	Resolution chs.Resolution
	Encoding   chs.Encoding
	Schema     SchemaKind
	DataRate   chs.DataRate
	Density    chs.Density
	Rpm        chs.RPM
	BitLength  int
	SectorCt   int
}

// ReadSectorResult is the outcome of BitStreamTrack.ReadSector (spec §4.4).
type ReadSectorResult struct {
	Data            []byte
	AddressCrcValid bool
	DataCrcValid    bool
	DeletedMark     bool
	NoDam           bool
	WrongCylinder   bool
	BadCylinder     bool
	WrongHead       bool
}

// ScanSectorResult carries the same match/integrity flags as
// ReadSectorResult without the data payload (spec §4.4 scan_sector).
type ScanSectorResult struct {
	AddressCrcValid bool
	DataCrcValid    bool
	DeletedMark     bool
	NoDam           bool
	WrongCylinder   bool
	BadCylinder     bool
	WrongHead       bool
}

// WriteSectorResult is the outcome of BitStreamTrack.WriteSector.
type WriteSectorResult struct {
	AddressCrcValid bool
	DataCrcValid    bool
}

// ReadTrackResult is the outcome of a whole-track read (spec §4.4 read/
// read_raw, read_all_sectors).
type ReadTrackResult struct {
	Data      []byte
	BitLength int
}

// TrackAnalysis summarizes a track's sector layout health (spec §4.5 "Track
// analysis"), generalized across both schemas.
type TrackAnalysis struct {
	SectorCount          int
	NonconsecutiveIds    bool
	ConsistentSectorSize bool
	AddressErrors        int
	DataErrors           int
	DeletedSectors       int
}

// Quality-score weights for best-revolution selection (spec §4.2, formula
// given directly in spec.md): sector_count*W_sector - bad_sectors*W_bad +
// valid_ids*W_id.
const (
	WeightSector = 10
	WeightBad    = 25
	WeightValid  = 5
)
