// Package system34 implements the IBM System/34 ("IBM PC") track schema
// (spec §5.1): marker/gap layout, sector header and data element discovery,
// CRC-16 integrity, and track formatting.
//
// The element discovery loop (scan for a sync marker, read its tag byte,
// decode a fixed-shape header or data field, fold the same bytes into a
// running CRC-16 starting from the value the sync bytes themselves would
// have produced) is grounded on the teacher's mfm/reader.go scanIBMPC and
// ReadSectorIBMPC. Track formatting is grounded on mfm/writer.go
// EncodeTrackIBMPC, generalized from its fixed 512-byte/9-sector-per-track
// shape to an arbitrary SectorLayout and size code N.
package system34

import (
	"fmt"

	"github.com/dbalsom/fluxfox-sub001/bitstream"
	"github.com/dbalsom/fluxfox-sub001/chs"
	"github.com/dbalsom/fluxfox-sub001/crc16"
	"github.com/dbalsom/fluxfox-sub001/fferr"
)

// GapByte is the standard MFM gap fill byte.
const GapByte = 0x4E

// SyncByte is the zero-fill preceding every sync marker.
const SyncByte = 0x00

// Standard System34 gap lengths in bytes, as used by the teacher's
// EncodeTrackIBMPC; callers needing a different track capacity may scale
// these, but a default format operation uses them unchanged.
const (
	GapPreIndex  = 80
	GapPostIndex = 50
	GapPostID    = 22
	GapPostData  = 108
	SyncLen      = 12
)

// ElementKind distinguishes the four System34 address-mark types.
type ElementKind int

const (
	ElementIAM ElementKind = iota
	ElementIDAM
	ElementDAM
	ElementDDAM
)

func (k ElementKind) String() string {
	switch k {
	case ElementIAM:
		return "IAM"
	case ElementIDAM:
		return "IDAM"
	case ElementDAM:
		return "DAM"
	case ElementDDAM:
		return "DDAM"
	default:
		return "Unknown"
	}
}

// SectorHeaderElement is a decoded IDAM: the sector's address fields plus
// its header CRC outcome.
type SectorHeaderElement struct {
	Chsn         chs.DiskChsn
	BitIndex     int // channel-bit offset of the A1A1A1 sync marker
	End          int // channel-bit offset one past the trailing 2-byte CRC
	Crc          chs.IntegrityCheck
	AddressError bool // header CRC failed
}

// SectorDataElement is a decoded DAM/DDAM: the sector's payload location and
// data CRC outcome.
type SectorDataElement struct {
	BitIndex  int // channel-bit offset of the A1A1A1 sync marker
	DataStart int // channel-bit offset of the first payload byte
	DataEnd   int // channel-bit offset one past the last payload byte
	CrcEnd    int // channel-bit offset one past the trailing 2-byte CRC
	Deleted   bool
	Crc       chs.IntegrityCheck
	DataError bool // data CRC failed
}

// Element is one discovered track element: exactly one of Header or Data is
// non-nil, selected by Kind.
type Element struct {
	Kind     ElementKind
	BitIndex int
	Header   *SectorHeaderElement
	Data     *SectorDataElement
}

// TrackElements is the full result of scanning one track's bitstream.
type TrackElements struct {
	Elements []Element
	// DataRanges mirrors each SectorDataElement as a bitstream.DataRange,
	// ready to hand to Stream.IsData.
	DataRanges []bitstream.DataRange
}

// HeaderCrc computes the CRC-16 of a sector header field (the three A1 sync
// bytes, the IDAM tag, and the four address bytes), matching the teacher's
// running-CRC convention in mfm/writer.go (seed 0xb230 is exactly this CRC
// over the sync+tag bytes alone).
func HeaderCrc(id chs.DiskChsn) uint16 {
	crc := crc16.InitialValue
	crc = crc16.Update(crc, []byte{0xA1, 0xA1, 0xA1, bitstream.TagIDAM})
	crc = crc16.Update(crc, []byte{byte(id.Chs.C), id.Chs.H, id.Chs.S, id.N})
	return crc
}

// DataCrc computes the CRC-16 of a sector data field (the three A1 sync
// bytes, the DAM/DDAM tag, and the payload).
func DataCrc(data []byte, deleted bool) uint16 {
	tag := bitstream.TagDAM
	if deleted {
		tag = bitstream.TagDDAM
	}
	crc := crc16.InitialValue
	crc = crc16.Update(crc, []byte{0xA1, 0xA1, 0xA1, tag})
	crc = crc16.Update(crc, data)
	return crc
}

// ScanTrack discovers every IAM/IDAM/DAM/DDAM element in stream, in the
// order they occur. A DAM/DDAM's payload length is taken from the size code
// N of whichever IDAM most recently preceded it, per the System34
// convention that a sector's header always comes before its data.
func ScanTrack(stream *bitstream.Stream) (*TrackElements, error) {
	result := &TrackElements{}
	offset := 0
	var pendingSize int = -1

	for {
		idamAt, _, idamFound := stream.FindMarker(bitstream.A1Sync3, offset, -1)
		iamAt, _, iamFound := stream.FindMarker(bitstream.C2Sync3, offset, -1)

		useIam := iamFound && (!idamFound || iamAt < idamAt)
		if useIam {
			result.Elements = append(result.Elements, Element{Kind: ElementIAM, BitIndex: iamAt})
			offset = iamAt + bitstream.C2Sync3.Len + bitstream.MFMByteLen
			continue
		}
		if !idamFound {
			break
		}

		bodyStart := idamAt + bitstream.A1Sync3.Len
		tag := stream.ReadDecodedU8(bodyStart)

		switch tag {
		case bitstream.TagIDAM:
			var hdr [4]byte
			stream.ReadDecodedBuf(hdr[:], bodyStart+bitstream.MFMByteLen)
			id := chs.NewDiskChsn(uint16(hdr[0]), hdr[1], hdr[2], hdr[3])

			var recorded [2]byte
			stream.ReadDecodedBuf(recorded[:], bodyStart+bitstream.MFMByteLen*5)
			recordedCrc := uint16(recorded[0])<<8 | uint16(recorded[1])
			calcCrc := HeaderCrc(id)

			pendingSize = chs.SizeFromN(id.N)

			result.Elements = append(result.Elements, Element{
				Kind:     ElementIDAM,
				BitIndex: idamAt,
				Header: &SectorHeaderElement{
					Chsn:     id,
					BitIndex: idamAt,
					End:      bodyStart + bitstream.MFMByteLen*7,
					Crc: chs.IntegrityCheck{
						Kind:       chs.IntegrityCrc16,
						Recorded:   uint32(recordedCrc),
						Calculated: uint32(calcCrc),
					},
					AddressError: recordedCrc != calcCrc,
				},
			})
			offset = bodyStart + bitstream.MFMByteLen*7

		case bitstream.TagDAM, bitstream.TagDDAM:
			if pendingSize < 0 {
				offset = bodyStart + bitstream.MFMByteLen
				continue
			}
			data := make([]byte, pendingSize)
			dataStart := bodyStart + bitstream.MFMByteLen
			stream.ReadDecodedBuf(data, dataStart)

			crcStart := dataStart + bitstream.MFMByteLen*pendingSize
			var recorded [2]byte
			stream.ReadDecodedBuf(recorded[:], crcStart)
			recordedCrc := uint16(recorded[0])<<8 | uint16(recorded[1])
			deleted := tag == bitstream.TagDDAM
			calcCrc := DataCrc(data, deleted)

			dataEnd := crcStart + bitstream.MFMByteLen*2
			result.Elements = append(result.Elements, Element{
				Kind:     map[bool]ElementKind{true: ElementDDAM, false: ElementDAM}[deleted],
				BitIndex: idamAt,
				Data: &SectorDataElement{
					BitIndex:  idamAt,
					DataStart: dataStart,
					DataEnd:   dataStart + bitstream.MFMByteLen*pendingSize,
					CrcEnd:    dataEnd,
					Deleted:   deleted,
					Crc: chs.IntegrityCheck{
						Kind:       chs.IntegrityCrc16,
						Recorded:   uint32(recordedCrc),
						Calculated: uint32(calcCrc),
					},
					DataError: recordedCrc != calcCrc,
				},
			})
			result.DataRanges = append(result.DataRanges, bitstream.DataRange{
				Start:     idamAt,
				End:       dataEnd,
				DataStart: dataStart,
				DataEnd:   dataStart + bitstream.MFMByteLen*pendingSize,
			})
			pendingSize = -1
			offset = dataEnd

		default:
			offset = bodyStart + bitstream.MFMByteLen
		}
	}

	return result, nil
}

// FindSector returns the SectorHeaderElement matching q, and the
// SectorDataElement immediately following it (the next DAM/DDAM after the
// header), if any.
func (t *TrackElements) FindSector(q chs.DiskChsnQuery) (*SectorHeaderElement, *SectorDataElement, error) {
	for i, el := range t.Elements {
		if el.Kind != ElementIDAM || !q.Matches(el.Header.Chsn) {
			continue
		}
		for j := i + 1; j < len(t.Elements); j++ {
			if t.Elements[j].Kind == ElementDAM || t.Elements[j].Kind == ElementDDAM {
				return el.Header, t.Elements[j].Data, nil
			}
			if t.Elements[j].Kind == ElementIDAM {
				break
			}
		}
		return el.Header, nil, nil
	}
	return nil, nil, fmt.Errorf("system34: sector %s: %w", q, fferr.ErrSectorIDNotFound)
}

// Analysis summarizes a scanned track's sector layout health (spec §5.1
// track analysis: duplicate/missing sectors, consistent size).
type Analysis struct {
	SectorCount          int
	NonconsecutiveIds    bool
	ConsistentSectorSize bool
	AddressErrors        int
	DataErrors           int
	DeletedSectors       int
}

// Analyze inspects the elements discovered by ScanTrack.
func Analyze(t *TrackElements) Analysis {
	var a Analysis
	var prevS int = -1
	size := -1
	a.ConsistentSectorSize = true

	for _, el := range t.Elements {
		switch el.Kind {
		case ElementIDAM:
			a.SectorCount++
			s := int(el.Header.Chsn.Chs.S)
			if prevS >= 0 && s != prevS+1 {
				a.NonconsecutiveIds = true
			}
			prevS = s
			n := chs.SizeFromN(el.Header.Chsn.N)
			if size < 0 {
				size = n
			} else if size != n {
				a.ConsistentSectorSize = false
			}
			if el.Header.AddressError {
				a.AddressErrors++
			}
		case ElementDAM, ElementDDAM:
			if el.Data.DataError {
				a.DataErrors++
			}
			if el.Data.Deleted {
				a.DeletedSectors++
			}
		}
	}
	return a
}

// FormatTrack lays out a complete System34 track: GAP4A, an index sync and
// IAM, GAP1, then for each sector a header sync/IDAM/CRC, GAP2, a data
// sync/DAM/payload/CRC, and GAP3, finally padded with GAP4B filler. This
// generalizes the teacher's EncodeTrackIBMPC (fixed 512-byte, 9-sector
// shape) to an arbitrary SectorLayout and per-sector size code n.
func FormatTrack(layout chs.SectorLayout, sectorData [][]byte, cylinder uint16, head uint8, n uint8, bitcellCt int) (*bitstream.Stream, error) {
	if len(sectorData) != int(layout.S) {
		return nil, fmt.Errorf("system34: format track: %d sectors supplied, layout wants %d: %w", len(sectorData), layout.S, fferr.ErrParameter)
	}

	bits := bitstream.NewBits(bitcellCt)
	stream := bitstream.NewStream(bits, chs.EncodingMFM)

	writeGap := func(n int) {
		for i := 0; i < n; i++ {
			stream.WriteEncodedBuf([]byte{GapByte}, stream.Len())
		}
	}
	writeSync := func() {
		for i := 0; i < SyncLen; i++ {
			stream.WriteEncodedBuf([]byte{SyncByte}, stream.Len())
		}
	}
	writeMarker := func(enc bitstream.MarkerEncoding) {
		stream.WriteRawBuf(EncodingToBytes(enc), stream.Len())
	}

	writeGap(GapPreIndex)
	writeSync()
	writeMarker(bitstream.C2Sync3)
	stream.WriteEncodedBuf([]byte{bitstream.TagIAM}, stream.Len())
	writeGap(GapPostIndex)

	for i := 0; i < int(layout.S); i++ {
		sectorNum := uint8(i) + layout.SOff
		id := chs.NewDiskChsn(cylinder, head, sectorNum, n)

		writeSync()
		writeMarker(bitstream.A1Sync3)
		stream.WriteEncodedBuf([]byte{bitstream.TagIDAM, byte(cylinder), head, sectorNum, n}, stream.Len())
		crc := HeaderCrc(id)
		stream.WriteEncodedBuf([]byte{byte(crc >> 8), byte(crc)}, stream.Len())

		writeGap(GapPostID)

		writeSync()
		writeMarker(bitstream.A1Sync3)
		stream.WriteEncodedBuf([]byte{bitstream.TagDAM}, stream.Len())
		data := sectorData[i]
		if data == nil {
			data = make([]byte, chs.SizeFromN(n))
		}
		stream.WriteEncodedBuf(data, stream.Len())
		dataCrc := DataCrc(data, false)
		stream.WriteEncodedBuf([]byte{byte(dataCrc >> 8), byte(dataCrc)}, stream.Len())

		writeGap(GapPostData)
	}

	if remaining := bitcellCt - stream.Len(); remaining > 0 {
		writeGap(remaining / bitstream.MFMByteLen)
	}

	return stream, nil
}

// EncodingToBytes expands a MarkerEncoding's fixed channel-bit pattern back
// into raw bytes, MSB-first, for WriteRawBuf. Exported so callers outside
// this package (track.BitStreamTrack's sector writer) can re-assert a
// marker's clock-violated pattern without going through WriteEncodedBuf's
// normal MFM clock rule.
func EncodingToBytes(enc bitstream.MarkerEncoding) []byte {
	nbytes := enc.Len / 8
	out := make([]byte, nbytes)
	for i := 0; i < nbytes; i++ {
		shift := uint(enc.Len - 8*(i+1))
		out[i] = byte(enc.Bits >> shift)
	}
	return out
}
