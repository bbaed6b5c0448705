package disk

import (
	"fmt"

	"github.com/dbalsom/fluxfox-sub001/chs"
	"github.com/dbalsom/fluxfox-sub001/fferr"
	"github.com/dbalsom/fluxfox-sub001/shared"
	"github.com/dbalsom/fluxfox-sub001/sourcemap"
	"github.com/dbalsom/fluxfox-sub001/track"
)

// DiskImage owns every track of one floppy disk image (spec §3).
//
// Invariants maintained by every method below: every entry in trackMap
// references a valid trackPool index; a track's Ch() matches the (head,
// cylinder) key it is filed under; trackPool only grows (tracks are
// replaced in place by index, never removed), so a previously returned
// index stays valid for the lifetime of the image.
type DiskImage struct {
	Descriptor Descriptor

	trackPool []track.Track
	// trackMap[head][cylinder] is a list of trackPool indices. Exactly one
	// entry unless MultiResolution is set, in which case a single (c,h) may
	// carry one track per resolution (spec §3 "When multi-resolution is
	// enabled...").
	trackMap map[uint8]map[uint16][]int

	Shared          *shared.DiskContext
	SourceFormat    string
	SourceMap       *sourcemap.Map
	Resolution      chs.Resolution
	MultiResolution bool
}

// NewDiskImage creates an empty image with the given geometry. The track
// pool and map start empty; tracks are populated via the AddTrack*
// constructors below (spec §6 parser boundary).
func NewDiskImage(desc Descriptor) *DiskImage {
	return &DiskImage{
		Descriptor: desc,
		trackMap:   make(map[uint8]map[uint16][]int),
		Shared:     shared.NewDiskContext(),
		SourceMap:  sourcemap.New(),
		Resolution: chs.ResolutionMetaSector,
	}
}

// indexFor returns the pool index(es) filed for (c,h).
func (d *DiskImage) indexFor(ch chs.DiskCh) []int {
	byCyl, ok := d.trackMap[ch.H]
	if !ok {
		return nil
	}
	return byCyl[ch.C]
}

// fileTrack records a freshly appended trackPool index under (c,h).
func (d *DiskImage) fileTrack(ch chs.DiskCh, idx int) {
	byCyl, ok := d.trackMap[ch.H]
	if !ok {
		byCyl = make(map[uint16][]int)
		d.trackMap[ch.H] = byCyl
	}
	if !d.MultiResolution {
		byCyl[ch.C] = []int{idx}
		return
	}
	byCyl[ch.C] = append(byCyl[ch.C], idx)
}

// append adds t to the pool and files it, returning its stable pool index.
func (d *DiskImage) append(ch chs.DiskCh, t track.Track) int {
	idx := len(d.trackPool)
	d.trackPool = append(d.trackPool, t)
	d.fileTrack(ch, idx)
	return idx
}

// AddEmptyTrack creates a placeholder track of the given resolution at ch,
// with no sector content yet (spec §6 add_empty_track): a MetaSectorTrack
// with zero sectors, an all-zero BitStreamTrack of bitcellCt bits, or a
// FluxStreamTrack with zero revolutions, ready for Format or AddRevolution
// to populate.
func (d *DiskImage) AddEmptyTrack(ch chs.DiskCh, encoding chs.Encoding, resolution chs.Resolution, dataRate chs.DataRate, bitcellCt int, rpm chs.RPM) (int, error) {
	switch resolution {
	case chs.ResolutionMetaSector:
		mt := track.NewMetaSectorTrack(track.MetaSectorTrackParams{
			Ch: ch, Encoding: encoding, DataRate: dataRate, Rpm: rpm, SectorOff: 1,
		}, d.Shared)
		return d.append(ch, track.NewMetaSectorTrackVariant(mt)), nil
	case chs.ResolutionBitStream:
		data := make([]byte, (bitcellCt+7)/8)
		bt, err := track.NewBitStreamTrack(track.BitStreamTrackParams{
			Ch: ch, Encoding: encoding, DataRate: dataRate, Rpm: rpm, BitcellCt: bitcellCt, Data: data,
		}, d.Shared)
		if err != nil {
			return 0, fmt.Errorf("disk: add empty bitstream track %s: %w", ch, err)
		}
		return d.append(ch, track.NewBitStreamTrackVariant(bt)), nil
	case chs.ResolutionFluxStream:
		ft := track.NewFluxStreamTrack(ch, track.SchemaNone, d.Shared)
		return d.append(ch, track.NewFluxStreamTrackVariant(ft)), nil
	default:
		return 0, fmt.Errorf("disk: add empty track: resolution %s: %w", resolution, fferr.ErrUnsupportedFormat)
	}
}

// AddTrackBitstream adds a fully-populated BitStreamTrack from raw channel
// bytes (spec §6 add_track_bitstream): the track is scanned for markers and
// elements immediately, as BitStreamTrack construction always does.
func (d *DiskImage) AddTrackBitstream(p track.BitStreamTrackParams) (int, error) {
	bt, err := track.NewBitStreamTrack(p, d.Shared)
	if err != nil {
		return 0, fmt.Errorf("disk: add track bitstream %s: %w", p.Ch, err)
	}
	if d.Resolution == chs.ResolutionMetaSector && len(d.trackPool) == 0 {
		d.Resolution = chs.ResolutionBitStream
	}
	return d.append(p.Ch, track.NewBitStreamTrackVariant(bt)), nil
}

// AddTrackFluxstream adds an already-populated FluxStreamTrack (spec §6
// add_track_fluxstream): the parser is expected to have called
// AddRevolution for every captured revolution before handing the track to
// the image. Decoding (DecodeRevolutions/AnalyzeRevolutions) is the
// caller's responsibility, matching spec §4.2's description of those as
// distinct, explicitly-invoked steps.
func (d *DiskImage) AddTrackFluxstream(ft *track.FluxStreamTrack) (int, error) {
	if ft == nil {
		return 0, fmt.Errorf("disk: add track fluxstream: %w", fferr.ErrParameter)
	}
	if d.Resolution == chs.ResolutionMetaSector && len(d.trackPool) == 0 {
		d.Resolution = chs.ResolutionFluxStream
	}
	return d.append(ft.Ch, track.NewFluxStreamTrackVariant(ft)), nil
}

// AddTrackMetaSector adds a track whose sector payloads are already decoded
// (spec §6 add_track_metasector): sector-list container formats (raw
// dumps, D64-style images) have no bitstream or flux representation at all.
func (d *DiskImage) AddTrackMetaSector(p track.MetaSectorTrackParams) (int, error) {
	mt := track.NewMetaSectorTrack(p, d.Shared)
	return d.append(p.Ch, track.NewMetaSectorTrackVariant(mt)), nil
}

// WithTrack looks up the track at ch and hands it to fn as an exclusive
// borrow scoped to the call (spec §5 "Mutable-access discipline": the
// DiskImage enforces serialized access by exposing tracks through a method
// that returns an exclusive borrow scoped to a single operation, rather than
// a long-lived handle a caller could retain across unrelated operations).
// When MultiResolution is set and more than one track is filed at ch, the
// most recently filed entry is used.
func (d *DiskImage) WithTrack(ch chs.DiskCh, fn func(*track.Track) error) error {
	indices := d.indexFor(ch)
	if len(indices) == 0 {
		return fmt.Errorf("disk: track %s: %w", ch, fferr.ErrIncompatibleImage)
	}
	idx := indices[len(indices)-1]
	return fn(&d.trackPool[idx])
}

// ReadSector reads the payload of the sector matching q on the physical
// track at ch (spec §2 "Read flow", §6).
func (d *DiskImage) ReadSector(ch chs.DiskCh, q chs.DiskChsnQuery, scope chs.RwScope) (track.ReadSectorResult, error) {
	var result track.ReadSectorResult
	err := d.WithTrack(ch, func(t *track.Track) error {
		r, err := t.ReadSector(q, 0, scope)
		result = r
		return err
	})
	return result, err
}

// ScanSector reports the match/integrity status of the sector matching q
// on the physical track at ch, without decoding its payload.
func (d *DiskImage) ScanSector(ch chs.DiskCh, q chs.DiskChsnQuery) (track.ScanSectorResult, error) {
	var result track.ScanSectorResult
	err := d.WithTrack(ch, func(t *track.Track) error {
		r, err := t.ScanSector(q, 0)
		result = r
		return err
	})
	return result, err
}

// WriteSector requires exclusive mutable access to the containing track
// (spec §5): WithTrack already scopes the borrow to this single call, so no
// additional locking is needed beyond the per-track content it mutates.
func (d *DiskImage) WriteSector(ch chs.DiskCh, q chs.DiskChsnQuery, data []byte, scope chs.RwScope, writeDeleted bool) (track.WriteSectorResult, error) {
	var result track.WriteSectorResult
	err := d.WithTrack(ch, func(t *track.Track) error {
		r, err := t.WriteSector(q, 0, data, scope, writeDeleted)
		result = r
		return err
	})
	return result, err
}

// RecalculateSectorCrc rewrites the sector's integrity field from its
// current payload contents on the physical track at ch.
func (d *DiskImage) RecalculateSectorCrc(ch chs.DiskCh, q chs.DiskChsnQuery) error {
	return d.WithTrack(ch, func(t *track.Track) error {
		return t.RecalculateSectorCrc(q, 0)
	})
}

// FormatTrack lays out a fresh track at ch (spec §4.4 format).
func (d *DiskImage) FormatTrack(ch chs.DiskCh, layout chs.SectorLayout, sectorData [][]byte, fillPattern []byte, n uint8) error {
	return d.WithTrack(ch, func(t *track.Track) error {
		return t.Format(layout, sectorData, fillPattern, n)
	})
}

// TrackInfo returns the visualizer-facing summary of the track at ch.
func (d *DiskImage) TrackInfo(ch chs.DiskCh) (track.TrackInfo, error) {
	var info track.TrackInfo
	err := d.WithTrack(ch, func(t *track.Track) error {
		info = t.Info()
		return nil
	})
	return info, err
}

// TrackCount returns the number of tracks held in the pool (including any
// logically-superseded multi-resolution duplicates).
func (d *DiskImage) TrackCount() int {
	return len(d.trackPool)
}

// Hash returns the image's current whole-image content hash (spec §3
// "shared: ... used for whole-image hashing").
func (d *DiskImage) Hash() []byte {
	return d.Shared.Sum()
}
