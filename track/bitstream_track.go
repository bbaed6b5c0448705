package track

import (
	"fmt"

	"github.com/dbalsom/fluxfox-sub001/bitstream"
	"github.com/dbalsom/fluxfox-sub001/chs"
	"github.com/dbalsom/fluxfox-sub001/fferr"
	"github.com/dbalsom/fluxfox-sub001/schema/amiga"
	"github.com/dbalsom/fluxfox-sub001/schema/system34"
	"github.com/dbalsom/fluxfox-sub001/shared"
	"github.com/dbalsom/fluxfox-sub001/sourcemap"
)

// BitStreamTrackParams describes a track as handed to the core by a
// container parser (spec §6 add_track_bitstream).
type BitStreamTrackParams struct {
	Ch        chs.DiskCh
	Encoding  chs.Encoding
	Schema    SchemaKind
	DataRate  chs.DataRate
	Rpm       chs.RPM
	BitcellCt int
	Data      []byte // raw channel bytes, MSB-first
	Weak      []byte // optional weak-bit mask, same bit length as Data
	// AmigaSectorsPerTrack is only consulted when Schema is SchemaAmiga;
	// System34 recovers CHSN directly from each IDAM.
	AmigaSectorsPerTrack int
}

// BitStreamTrack composes a channel-bit codec (bitstream.Stream) with a
// track schema parser (spec §4.4): on construction it scans for markers and
// elements once, then serves every sector operation against the cached
// TrackMetadata.
type BitStreamTrack struct {
	Ch       chs.DiskCh
	Encoding chs.Encoding
	Schema   SchemaKind
	DataRate chs.DataRate
	Density  chs.Density
	Rpm      chs.RPM

	Stream   *bitstream.Stream
	Metadata TrackMetadata

	// dataRanges mirrors Metadata's SectorData elements as bitstream.DataRange
	// values, cached for Stream.IsData queries (spec §4.3 is_data) so
	// visualizers querying per bit-column don't rebuild the list each call.
	dataRanges []bitstream.DataRange

	shared *shared.DiskContext
}

// NewBitStreamTrack builds a BitStreamTrack from raw channel bytes and
// immediately scans it for markers and elements, matching the teacher's
// "decode once at construction" convention used throughout mfm/reader.go.
func NewBitStreamTrack(p BitStreamTrackParams, sharedCtx *shared.DiskContext) (*BitStreamTrack, error) {
	bitcellCt := p.BitcellCt
	if bitcellCt == 0 {
		bitcellCt = len(p.Data) * 8
	}
	bits := bitstream.NewBitsFromBytes(p.Data, bitcellCt)
	stream := bitstream.NewStream(bits, p.Encoding)
	if len(p.Weak) > 0 {
		stream.WeakMask = bitstream.NewBitsFromBytes(p.Weak, bitcellCt)
	}

	t := &BitStreamTrack{
		Ch:       p.Ch,
		Encoding: p.Encoding,
		Schema:   p.Schema,
		DataRate: p.DataRate,
		Density:  chs.DensityFromDataRate(p.DataRate),
		Rpm:      p.Rpm,
		Stream:   stream,
		shared:   sharedCtx,
	}
	if err := t.rescan(p.AmigaSectorsPerTrack); err != nil {
		return nil, err
	}
	return t, nil
}

// rescan re-runs schema element discovery against the current stream
// contents and rebuilds Metadata. Called at construction and after any
// operation that changes track content (format, sector write).
func (t *BitStreamTrack) rescan(amigaSectorsPerTrack int) error {
	t.Metadata = TrackMetadata{SourceMap: sourcemap.New()}

	switch t.Schema {
	case SchemaSystem34:
		elements, err := system34.ScanTrack(t.Stream)
		if err != nil {
			return fmt.Errorf("track: scan system34: %w", err)
		}
		t.absorbSystem34(elements)
	case SchemaAmiga:
		elements, err := amiga.ScanTrack(t.Stream)
		if err != nil {
			return fmt.Errorf("track: scan amiga: %w", err)
		}
		t.absorbAmiga(elements, amigaSectorsPerTrack)
	}
	return nil
}

// absorbSystem34 converts a system34.TrackElements scan result into the
// generic TrackMetadata shape, per original_source/src/track_schema/mod.rs's
// From<TrackElement> for GenericTrackElement conversion.
func (t *BitStreamTrack) absorbSystem34(elements *system34.TrackElements) {
	var dataRanges []bitstream.DataRange
	var lastHeaderIdx = -1

	for _, el := range elements.Elements {
		switch el.Kind {
		case system34.ElementIAM:
			t.Metadata.Items = append(t.Metadata.Items, TrackElementInstance{
				Element:   Marker,
				Start:     el.BitIndex,
				End:       el.BitIndex + bitstream.MFMByteLen*4,
				DataStart: el.BitIndex,
				DataEnd:   el.BitIndex + bitstream.MFMByteLen*4,
			})
		case system34.ElementIDAM:
			h := el.Header
			generic := SectorHeader
			if h.AddressError {
				generic = SectorBadHeader
			}
			t.Metadata.Items = append(t.Metadata.Items, TrackElementInstance{
				Element:      generic,
				Start:        h.BitIndex,
				End:          h.End,
				DataStart:    h.BitIndex,
				DataEnd:      h.End,
				Chsn:         &h.Chsn,
				AddressError: h.AddressError,
			})
			lastHeaderIdx = len(t.Metadata.Items) - 1
			t.Metadata.SectorIds = append(t.Metadata.SectorIds, h.Chsn)
			if !h.AddressError {
				t.Metadata.ValidSectorIds = append(t.Metadata.ValidSectorIds, h.Chsn)
			}
		case system34.ElementDAM, system34.ElementDDAM:
			d := el.Data
			generic := SectorData
			switch {
			case d.Deleted && d.DataError:
				generic = SectorBadDeletedData
			case d.Deleted:
				generic = SectorDeletedData
			case d.DataError:
				generic = SectorBadData
			}
			var chsn *chs.DiskChsn
			if lastHeaderIdx >= 0 {
				chsn = t.Metadata.Items[lastHeaderIdx].Chsn
			}
			t.Metadata.Items = append(t.Metadata.Items, TrackElementInstance{
				Element:   generic,
				Start:     d.BitIndex,
				End:       d.CrcEnd,
				DataStart: d.DataStart,
				DataEnd:   d.DataEnd,
				Chsn:      chsn,
				DataError: d.DataError,
				Deleted:   d.Deleted,
			})
			dataRanges = append(dataRanges, bitstream.DataRange{
				Start: d.BitIndex, End: d.CrcEnd,
				DataStart: d.DataStart, DataEnd: d.DataEnd,
			})
		}
	}
	if n := len(t.Metadata.Items); n > 0 {
		markLastSector(t.Metadata.Items)
	}
	t.Stream.EnsureMasks()
	t.dataRanges = dataRanges
}

// absorbAmiga converts an amiga.TrackElements scan result into the generic
// TrackMetadata shape. Amiga has no separate IAM-equivalent marker element:
// every sync begins a combined header+data record.
func (t *BitStreamTrack) absorbAmiga(elements *amiga.TrackElements, sectorsPerTrack int) {
	var dataRanges []bitstream.DataRange

	for _, s := range elements.Sectors {
		cylinder := uint16(s.Header.Info.Track / 2)
		head := uint8(s.Header.Info.Track % 2)
		id := chs.NewDiskChsn(cylinder, head, uint8(s.Header.Info.Sector), chs.NFromSize(amiga.SectorSize))

		headerGeneric := SectorHeader
		if s.Header.AddressError {
			headerGeneric = SectorBadHeader
		}
		t.Metadata.Items = append(t.Metadata.Items, TrackElementInstance{
			Element:      headerGeneric,
			Start:        s.Header.BitIndex,
			End:          s.Data.ChecksumStart,
			DataStart:    s.Header.BitIndex,
			DataEnd:      s.Data.ChecksumStart,
			Chsn:         &id,
			AddressError: s.Header.AddressError,
		})
		t.Metadata.SectorIds = append(t.Metadata.SectorIds, id)
		if !s.Header.AddressError {
			t.Metadata.ValidSectorIds = append(t.Metadata.ValidSectorIds, id)
		}

		dataGeneric := SectorData
		if s.Data.DataError {
			dataGeneric = SectorBadData
		}
		t.Metadata.Items = append(t.Metadata.Items, TrackElementInstance{
			Element:   dataGeneric,
			Start:     s.Data.ChecksumStart,
			End:       s.Data.DataEnd,
			DataStart: s.Data.DataStart,
			DataEnd:   s.Data.DataEnd,
			Chsn:      &id,
			DataError: s.Data.DataError,
		})
		dataRanges = append(dataRanges, bitstream.DataRange{
			Start: s.Data.ChecksumStart, End: s.Data.DataEnd,
			DataStart: s.Data.DataStart, DataEnd: s.Data.DataEnd,
		})
	}
	if sectorsPerTrack > 0 {
		markLastSectorAmiga(t.Metadata.Items, sectorsPerTrack-1)
	}
	t.Stream.EnsureMasks()
	t.dataRanges = dataRanges
}

func markLastSector(items []TrackElementInstance) {
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Element == SectorHeader || items[i].Element == SectorBadHeader {
			items[i].LastSector = true
			if i+1 < len(items) {
				switch items[i+1].Element {
				case SectorData, SectorDeletedData, SectorBadData, SectorBadDeletedData:
					items[i+1].LastSector = true
				}
			}
			return
		}
	}
}

func markLastSectorAmiga(items []TrackElementInstance, lastSectorNum int) {
	for i := range items {
		if items[i].Chsn != nil && int(items[i].Chsn.Chs.S) == lastSectorNum {
			items[i].LastSector = true
		}
	}
}

// HasSectorID reports whether the track contains a header matching id.
func (t *BitStreamTrack) HasSectorID(id chs.DiskChsnQuery) bool {
	for _, item := range t.Metadata.Items {
		if item.Chsn != nil && (item.Element == SectorHeader || item.Element == SectorBadHeader) && id.Matches(*item.Chsn) {
			return true
		}
	}
	return false
}

// SectorList returns one entry per discovered sector header (spec §6
// Track::sector_list()).
func (t *BitStreamTrack) SectorList() []SectorMapEntry {
	var out []SectorMapEntry
	for _, item := range t.Metadata.Items {
		if item.Chsn == nil || (item.Element != SectorHeader && item.Element != SectorBadHeader) {
			continue
		}
		entry := SectorMapEntry{Chsn: *item.Chsn, AddressError: item.AddressError}
		if data := t.matchingData(item); data != nil {
			entry.DataError = data.DataError
			entry.Deleted = data.Deleted
		}
		out = append(out, entry)
	}
	return out
}

// matchingData returns the SectorData element immediately following a
// SectorHeader item, or nil if the header has no DAM (spec §4.4 "no_dam").
func (t *BitStreamTrack) matchingData(header TrackElementInstance) *TrackElementInstance {
	found := false
	for _, item := range t.Metadata.Items {
		if !found {
			if item.Start == header.Start && item.End == header.End {
				found = true
			}
			continue
		}
		switch item.Element {
		case SectorData, SectorDeletedData, SectorBadData, SectorBadDeletedData:
			cpy := item
			return &cpy
		case SectorHeader, SectorBadHeader:
			return nil
		}
	}
	return nil
}

// findHeader walks Metadata.Items from offset looking for a header whose
// sector number matches id and whose c, h and n match wherever id sets them,
// per spec §4.4 "Sector matching". When no header matches, the returned
// flags accumulate the cylinder and head mismatches seen on headers with the
// right sector number, so callers can present useful diagnostics; an n
// mismatch skips the header without setting a flag.
func (t *BitStreamTrack) findHeader(id chs.DiskChsnQuery, offset int) (headerIdx int, flags struct {
	wrongCylinder, badCylinder, wrongHead bool
}, found bool) {
	var acc struct{ wrongCylinder, badCylinder, wrongHead bool }
	for i := offset; i < len(t.Metadata.Items); i++ {
		item := t.Metadata.Items[i]
		if item.Chsn == nil || (item.Element != SectorHeader && item.Element != SectorBadHeader) {
			continue
		}
		if item.Chsn.Chs.S != id.S {
			continue
		}
		var f struct{ wrongCylinder, badCylinder, wrongHead bool }
		if id.C != nil && *id.C != item.Chsn.Chs.C {
			if item.Chsn.Chs.C == chs.BadCylinderSentinel {
				f.badCylinder = true
			} else {
				f.wrongCylinder = true
			}
		}
		if id.H != nil && *id.H != item.Chsn.Chs.H {
			f.wrongHead = true
		}
		if f.wrongCylinder || f.badCylinder || f.wrongHead {
			acc.wrongCylinder = acc.wrongCylinder || f.wrongCylinder
			acc.badCylinder = acc.badCylinder || f.badCylinder
			acc.wrongHead = acc.wrongHead || f.wrongHead
			continue
		}
		if id.N != nil && *id.N != item.Chsn.N {
			continue
		}
		return i, f, true
	}
	return 0, acc, false
}

// ScanSector reports the integrity/match status of the sector matching id,
// without decoding its payload (spec §4.4 scan_sector).
func (t *BitStreamTrack) ScanSector(id chs.DiskChsnQuery, offset int) (ScanSectorResult, error) {
	idx, flags, found := t.findHeader(id, offset)
	if !found {
		return ScanSectorResult{}, fmt.Errorf("track: sector %s: %w", id, fferr.ErrSectorIDNotFound)
	}
	header := t.Metadata.Items[idx]
	result := ScanSectorResult{
		AddressCrcValid: !header.AddressError,
		WrongCylinder:   flags.wrongCylinder,
		BadCylinder:     flags.badCylinder,
		WrongHead:       flags.wrongHead,
	}
	data := t.matchingData(header)
	if data == nil {
		result.NoDam = true
		return result, nil
	}
	result.DataCrcValid = !data.DataError
	result.DeletedMark = data.Deleted
	return result, nil
}

// ReadSector reads the payload of the sector matching id, applying scope to
// select which byte range of the data element is returned (spec §4.4
// read_sector, "Scope semantics").
func (t *BitStreamTrack) ReadSector(id chs.DiskChsnQuery, offset int, scope chs.RwScope) (ReadSectorResult, error) {
	scan, err := t.ScanSector(id, offset)
	if err != nil {
		return ReadSectorResult{}, err
	}
	result := ReadSectorResult{
		AddressCrcValid: scan.AddressCrcValid,
		DataCrcValid:    scan.DataCrcValid,
		DeletedMark:     scan.DeletedMark,
		NoDam:           scan.NoDam,
		WrongCylinder:   scan.WrongCylinder,
		BadCylinder:     scan.BadCylinder,
		WrongHead:       scan.WrongHead,
	}
	if scan.NoDam {
		return result, nil
	}

	idx, _, _ := t.findHeader(id, offset)
	header := t.Metadata.Items[idx]
	data := t.matchingData(header)

	start, end := data.Start, data.End
	switch scope {
	case chs.RwScopeDataOnly:
		start, end = data.DataStart, data.DataEnd
	case chs.RwScopeCrcOnly:
		if cs, ce, ok := data.CrcRange(); ok {
			start, end = cs, ce
		}
	}

	nbits := end - start
	buf := make([]byte, (nbits+bitstream.MFMByteLen-1)/bitstream.MFMByteLen)
	t.Stream.ReadDecodedBuf(buf, start)
	result.Data = buf
	return result, nil
}

// WriteSector overwrites the payload of the sector matching id with data and
// always recomputes its integrity field (CRC-16 for System34, XOR-16 for
// Amiga) from the newly written payload before rescanning — the caller never
// supplies the CRC/checksum bytes themselves, matching spec §4.4
// write_sector and the §8 "Round-trip sector write" law ("the CRC was
// recomputed"). scope selects which bytes of the element data supplies:
// DataOnly wants just the payload, CrcOnly wants none (the current payload
// is reread and its integrity field rewritten in place), and All wants the
// full element (address-mark prefix, payload, and trailing/leading
// integrity field all at once) — but even then the supplied integrity bytes
// are discarded and replaced by the recomputed value, and the supplied
// prefix bytes are discarded in favor of re-asserting the marker with
// WriteRawBuf, since WriteEncodedBuf's MFM clock rule cannot reproduce a
// sync marker's clock-violation pattern.
func (t *BitStreamTrack) WriteSector(id chs.DiskChsnQuery, offset int, data []byte, scope chs.RwScope, writeDeleted bool) (WriteSectorResult, error) {
	scan, err := t.ScanSector(id, offset)
	if err != nil {
		return WriteSectorResult{}, err
	}
	if scan.NoDam {
		return WriteSectorResult{}, fmt.Errorf("track: sector %s: %w", id, fferr.ErrSectorIDNotFound)
	}
	if writeDeleted && t.Schema == SchemaAmiga {
		return WriteSectorResult{}, fmt.Errorf("track: write sector %s: amiga sectors have no deleted-data marker: %w", id, fferr.ErrParameter)
	}

	idx, _, _ := t.findHeader(id, offset)
	header := t.Metadata.Items[idx]
	elem := t.matchingData(header)

	payloadLen := (elem.DataEnd - elem.DataStart) / bitstream.MFMByteLen
	prefixLen := (elem.DataStart - elem.Start) / bitstream.MFMByteLen

	var payload []byte
	switch scope {
	case chs.RwScopeDataOnly:
		if len(data) != payloadLen {
			return WriteSectorResult{}, fmt.Errorf("track: write sector %s: %d bytes supplied, element wants %d: %w", id, len(data), payloadLen, fferr.ErrParameter)
		}
		payload = data
	case chs.RwScopeCrcOnly:
		payload = make([]byte, payloadLen)
		t.Stream.ReadDecodedBuf(payload, elem.DataStart)
	default: // chs.RwScopeAll
		suffixLen := (elem.End - elem.DataEnd) / bitstream.MFMByteLen
		wantBytes := prefixLen + payloadLen + suffixLen
		if len(data) != wantBytes {
			return WriteSectorResult{}, fmt.Errorf("track: write sector %s: %d bytes supplied, element wants %d: %w", id, len(data), wantBytes, fferr.ErrParameter)
		}
		payload = data[prefixLen : prefixLen+payloadLen]
	}

	switch t.Schema {
	case SchemaSystem34:
		t.writeSystem34SectorData(*elem, payload, writeDeleted)
	case SchemaAmiga:
		t.writeAmigaSectorData(*elem, payload)
	default:
		return WriteSectorResult{}, fmt.Errorf("track: write sector %s: schema %s: %w", id, t.Schema, fferr.ErrUnsupportedFormat)
	}

	if t.shared != nil {
		t.shared.UpdateHash(payload)
		t.shared.RecordSectorWrite()
	}

	amigaSectorsPerTrack := 0
	if t.Schema == SchemaAmiga {
		amigaSectorsPerTrack = countAmigaSectors(t.Metadata.Items)
	}
	if err := t.rescan(amigaSectorsPerTrack); err != nil {
		return WriteSectorResult{}, err
	}

	post, err := t.ScanSector(id, offset)
	if err != nil {
		return WriteSectorResult{}, err
	}
	if !post.DataCrcValid {
		return WriteSectorResult{AddressCrcValid: post.AddressCrcValid, DataCrcValid: false}, fferr.ErrData
	}
	return WriteSectorResult{AddressCrcValid: post.AddressCrcValid, DataCrcValid: post.DataCrcValid}, nil
}

// writeSystem34SectorData rewrites a DAM/DDAM element in place: the sync
// marker is re-asserted with WriteRawBuf (its clock-violation pattern is not
// reproducible through the normal MFM clock rule), the tag byte is chosen
// from deleted per spec §4.4 write_deleted, the payload is re-encoded, and
// the trailing CRC-16 is recomputed over marker+tag+payload exactly as
// system34.FormatTrack computes it for a freshly formatted sector.
func (t *BitStreamTrack) writeSystem34SectorData(elem TrackElementInstance, payload []byte, deleted bool) {
	t.Stream.WriteRawBuf(system34.EncodingToBytes(bitstream.A1Sync3), elem.Start)

	tag := bitstream.TagDAM
	if deleted {
		tag = bitstream.TagDDAM
	}
	tagStart := elem.DataStart - bitstream.MFMByteLen
	t.Stream.WriteEncodedBuf([]byte{tag}, tagStart)

	t.Stream.WriteEncodedBuf(payload, elem.DataStart)

	crc := system34.DataCrc(payload, deleted)
	t.Stream.WriteEncodedBuf([]byte{byte(crc >> 8), byte(crc)}, elem.DataEnd)
}

// writeAmigaSectorData rewrites an Amiga sector data element in place: the
// payload is split into its odd/even interleaved halves and folded into a
// running XOR-16 checksum the same way amiga.FormatTrack does, then the
// leading checksum field (elem.Start, preceding the payload for this
// schema) and the two interleaved halves are written.
func (t *BitStreamTrack) writeAmigaSectorData(elem TrackElementInstance, payload []byte) {
	oddBuf := make([]byte, len(payload)/2)
	evenBuf := make([]byte, len(payload)/2)
	var sum uint32
	for i := 0; i < len(payload)/4; i++ {
		word := uint32(payload[4*i])<<24 | uint32(payload[4*i+1])<<16 | uint32(payload[4*i+2])<<8 | uint32(payload[4*i+3])
		odd, even := amiga.Shuffle(word)
		sum ^= uint32(odd) ^ uint32(even)
		oddBuf[2*i] = byte(odd >> 8)
		oddBuf[2*i+1] = byte(odd)
		evenBuf[2*i] = byte(even >> 8)
		evenBuf[2*i+1] = byte(even)
	}

	t.Stream.WriteEncodedBuf([]byte{byte(sum >> 24), byte(sum >> 16), byte(sum >> 8), byte(sum)}, elem.Start)
	t.Stream.WriteEncodedBuf(oddBuf, elem.DataStart)
	t.Stream.WriteEncodedBuf(evenBuf, elem.DataStart+bitstream.MFMByteLen*len(oddBuf))
}

func countAmigaSectors(items []TrackElementInstance) int {
	n := 0
	for _, item := range items {
		if item.Element == SectorHeader || item.Element == SectorBadHeader {
			n++
		}
	}
	return n
}

// RecalculateSectorCrc rewrites the sector's integrity field (CRC-16 or
// XOR-16 checksum) from its current payload contents, without touching the
// payload itself (spec §4.4 recalculate_sector_crc). WriteSector's
// RwScopeCrcOnly path rereads the current payload and recomputes the
// integrity field from it, so no payload bytes need to be passed here.
func (t *BitStreamTrack) RecalculateSectorCrc(id chs.DiskChsnQuery, offset int) error {
	scan, err := t.ScanSector(id, offset)
	if err != nil {
		return err
	}
	if scan.NoDam {
		return fmt.Errorf("track: sector %s: %w", id, fferr.ErrSectorIDNotFound)
	}
	_, err = t.WriteSector(id, offset, nil, chs.RwScopeCrcOnly, scan.DeletedMark)
	return err
}

// ReadAllSectors reads the payloads of sector IDs 1 through eot in ascending
// order, concatenated (spec §4.4 read_all_sectors — the "Read Track" FDC
// command). An ID with no matching header, or whose header has no data
// element, contributes nothing; headers with a bad CRC are read like any
// other.
func (t *BitStreamTrack) ReadAllSectors(n uint8, eot uint8) (ReadTrackResult, error) {
	var out []byte
	for s := uint8(1); s <= eot; s++ {
		q := chs.NewDiskChsnQuery(s).WithN(n)
		read, err := t.ReadSector(q, 0, chs.RwScopeDataOnly)
		if err != nil {
			continue
		}
		out = append(out, read.Data...)
	}
	return ReadTrackResult{Data: out, BitLength: t.Stream.Len()}, nil
}

// NextID returns the sector ID immediately following cur's sector number on
// this track, if any (spec §6 Track::next_id).
func (t *BitStreamTrack) NextID(cur chs.DiskChs) *chs.DiskChsn {
	var best *chs.DiskChsn
	for _, id := range t.Metadata.SectorIds {
		if id.Chs.S > cur.S {
			if best == nil || id.Chs.S < best.Chs.S {
				idCopy := id
				best = &idCopy
			}
		}
	}
	return best
}

// Read decodes the whole track's data bytes (spec §6 Track::read_raw is the
// same stream without MFM decoding).
func (t *BitStreamTrack) Read() ReadTrackResult {
	buf := make([]byte, t.Stream.Len()/bitstream.MFMByteLen)
	t.Stream.ReadDecodedBuf(buf, 0)
	return ReadTrackResult{Data: buf, BitLength: t.Stream.Len()}
}

// ReadRaw returns the track's raw channel bytes, undecoded.
func (t *BitStreamTrack) ReadRaw() ReadTrackResult {
	buf := t.Stream.Bits.Bytes()
	return ReadTrackResult{Data: buf, BitLength: t.Stream.Len()}
}

// Format lays out a fresh track via the active schema and rescans it (spec
// §4.4 format).
func (t *BitStreamTrack) Format(layout chs.SectorLayout, sectorData [][]byte, n uint8) error {
	var stream *bitstream.Stream
	var err error

	switch t.Schema {
	case SchemaSystem34:
		stream, err = system34.FormatTrack(layout, sectorData, t.Ch.C, t.Ch.H, n, t.Stream.BitcellCt)
	case SchemaAmiga:
		trackNum := int(t.Ch.C)*2 + int(t.Ch.H)
		stream, err = amiga.FormatTrack(int(layout.S), trackNum, sectorData, t.Stream.BitcellCt)
	default:
		return fmt.Errorf("track: format: schema %s: %w", t.Schema, fferr.ErrUnsupportedFormat)
	}
	if err != nil {
		return err
	}

	t.Stream = stream
	if t.shared != nil {
		t.shared.RecordTrackWrite()
	}
	return t.rescan(int(layout.S))
}

// Analysis summarizes the track's sector layout health (spec §4.4
// analysis()).
func (t *BitStreamTrack) Analysis() TrackAnalysis {
	var a TrackAnalysis
	var prevS int = -1
	size := -1
	a.ConsistentSectorSize = true

	for _, item := range t.Metadata.Items {
		switch item.Element {
		case SectorHeader, SectorBadHeader:
			a.SectorCount++
			s := int(item.Chsn.Chs.S)
			if prevS >= 0 && s != prevS+1 {
				a.NonconsecutiveIds = true
			}
			prevS = s
			n := item.Chsn.Size()
			if size < 0 {
				size = n
			} else if size != n {
				a.ConsistentSectorSize = false
			}
			if item.AddressError {
				a.AddressErrors++
			}
		case SectorData, SectorDeletedData, SectorBadData, SectorBadDeletedData:
			if item.DataError {
				a.DataErrors++
			}
			if item.Deleted {
				a.DeletedSectors++
			}
		}
	}
	return a
}

// CalcQualityScore scores this track's decode quality for best-revolution
// selection (spec §4.2: sector_count*W_sector - bad_sectors*W_bad +
// valid_ids*W_id, formula given directly in spec.md).
func (t *BitStreamTrack) CalcQualityScore() int {
	sectorCount := 0
	badSectors := 0
	for _, item := range t.Metadata.Items {
		switch item.Element {
		case SectorHeader, SectorBadHeader:
			sectorCount++
		case SectorBadData, SectorBadDeletedData:
			badSectors++
		}
	}
	validIds := len(t.Metadata.ValidSectorIds)
	return sectorCount*WeightSector - badSectors*WeightBad + validIds*WeightValid
}

// Info returns the visualizer-facing summary of this track (spec §6
// Track::info()).
func (t *BitStreamTrack) Info() TrackInfo {
	return TrackInfo{
		Resolution: chs.ResolutionBitStream,
		Encoding:   t.Encoding,
		Schema:     t.Schema,
		DataRate:   t.DataRate,
		Density:    t.Density,
		Rpm:        t.Rpm,
		BitLength:  t.Stream.Len(),
		SectorCt:   countSectorHeaders(t.Metadata.Items),
	}
}

func countSectorHeaders(items []TrackElementInstance) int {
	n := 0
	for _, item := range items {
		if item.Element == SectorHeader || item.Element == SectorBadHeader {
			n++
		}
	}
	return n
}

// dataRanges is kept so Stream.IsData queries (spec §4.3) don't need to
// rebuild the range list on every call.
func (t *BitStreamTrack) DataRanges() []bitstream.DataRange {
	return t.dataRanges
}
