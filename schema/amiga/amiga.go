// Package amiga implements the Amiga trackdisk track schema (spec §5.2): a
// single marker pattern, odd/even bit-interleaved header and data fields,
// and XOR-based checksums, as used by the AmigaDOS trackdisk.device format.
//
// The odd/even interleave (a 32-bit word split into two 16-bit halves, one
// holding every other bit) and its unshuffle math are ported directly from
// the teacher's mfm/reader.go unshuffle helper; scanning for the marker and
// reading the header/label/data fields in order is grounded on
// mfm/reader.go scanAmiga, readLong and readDataAmiga.
package amiga

import (
	"fmt"

	"github.com/dbalsom/fluxfox-sub001/bitstream"
	"github.com/dbalsom/fluxfox-sub001/chs"
	"github.com/dbalsom/fluxfox-sub001/fferr"
)

// SectorSize is the fixed Amiga trackdisk sector payload size.
const SectorSize = 512

// LabelLongs is the number of reserved label longwords in a sector header.
const LabelLongs = 4

// unshuffle reconstructs a 32-bit word from its odd/even bit-interleaved
// halves (teacher's mfm/reader.go unshuffle, unchanged).
func unshuffle(odd, even uint16) uint32 {
	var word uint32
	for i := 0; i < 16; i++ {
		word <<= 2
		word |= uint32((even>>15)&1) | uint32((odd>>14)&2)
		odd <<= 1
		even <<= 1
	}
	return word
}

// Shuffle is the inverse of unshuffle: it splits a 32-bit word into its
// odd/even interleaved halves for encoding. Exported so callers outside this
// package (track.BitStreamTrack's sector writer) can recompute a data
// checksum from a rewritten payload using the same odd/even split as
// FormatTrack.
func Shuffle(word uint32) (odd, even uint16) {
	for i := 0; i < 16; i++ {
		shift := uint(30 - 2*i)
		pair := (word >> shift) & 3
		odd = (odd << 1) | uint16((pair>>1)&1)
		even = (even << 1) | uint16(pair&1)
	}
	return
}

// SectorInfo is a decoded sector header's identifying fields (the first
// interleaved long word, track/sector/sectorsToGap packed one byte each).
type SectorInfo struct {
	Format       byte
	Track        int
	Sector       int
	SectorsToGap int
}

// SectorHeaderElement is a decoded sector header.
type SectorHeaderElement struct {
	Info         SectorInfo
	Label        [LabelLongs]uint32
	BitIndex     int
	Crc          chs.IntegrityCheck
	AddressError bool
}

// SectorDataElement is a decoded sector data field.
type SectorDataElement struct {
	BitIndex       int
	ChecksumStart  int // bit offset of the 4-byte data checksum preceding the payload
	DataStart      int
	DataEnd        int
	Payload        []byte
	Crc            chs.IntegrityCheck
	DataError      bool
}

// Sector pairs a sector's header and data, as discovered together by
// ScanTrack (Amiga sector headers always have their data field adjacent).
type Sector struct {
	Header SectorHeaderElement
	Data   SectorDataElement
}

// TrackElements is the full result of scanning one Amiga track's bitstream.
type TrackElements struct {
	Sectors    []Sector
	DataRanges []bitstream.DataRange
}

// readInterleavedWord reads one 32-bit interleaved word (4 decoded bytes,
// i.e. 8 raw channel bytes: 2 odd bytes + 2 even bytes) at a clock-aligned bit
// offset, returning the reconstructed word and folding its odd/even bytes
// into the running XOR checksum.
func readInterleavedWord(stream *bitstream.Stream, bitIndex int, sum *uint32) uint32 {
	var buf [4]byte
	stream.ReadDecodedBuf(buf[:], bitIndex)
	odd := uint16(buf[0])<<8 | uint16(buf[1])
	even := uint16(buf[2])<<8 | uint16(buf[3])
	*sum ^= uint32(odd) ^ uint32(even)
	return unshuffle(odd, even)
}

// writeInterleavedWord writes one 32-bit interleaved word at bitIndex and
// folds it into the running checksum, returning the bit offset just past
// the written word.
func writeInterleavedWord(stream *bitstream.Stream, bitIndex int, word uint32, sum *uint32) int {
	odd, even := Shuffle(word)
	*sum ^= uint32(odd) ^ uint32(even)
	buf := []byte{byte(odd >> 8), byte(odd), byte(even >> 8), byte(even)}
	stream.WriteEncodedBuf(buf, bitIndex)
	return bitIndex + bitstream.MFMByteLen*4
}

// ScanTrack discovers every sector on an Amiga-format track.
func ScanTrack(stream *bitstream.Stream) (*TrackElements, error) {
	result := &TrackElements{}
	offset := 0

	for {
		markAt, _, found := stream.FindMarker(bitstream.AmigaSync, offset, -1)
		if !found {
			break
		}

		bitIndex := markAt
		bodyStart := markAt + bitstream.AmigaSync.Len

		var headerSum uint32
		infoWord := readInterleavedWord(stream, bodyStart, &headerSum)
		info := SectorInfo{
			Format:       byte(infoWord >> 24),
			Track:        int((infoWord >> 16) & 0xFF),
			Sector:       int((infoWord >> 8) & 0xFF),
			SectorsToGap: int(infoWord & 0xFF),
		}

		var label [LabelLongs]uint32
		pos := bodyStart + bitstream.MFMByteLen*4
		for i := 0; i < LabelLongs; i++ {
			label[i] = readInterleavedWord(stream, pos, &headerSum)
			pos += bitstream.MFMByteLen * 4
		}

		var recordedHeaderSum [4]byte
		stream.ReadDecodedBuf(recordedHeaderSum[:], pos)
		recordedSum := uint32(recordedHeaderSum[0])<<24 | uint32(recordedHeaderSum[1])<<16 | uint32(recordedHeaderSum[2])<<8 | uint32(recordedHeaderSum[3])
		pos += bitstream.MFMByteLen * 4

		header := SectorHeaderElement{
			Info:     info,
			Label:    label,
			BitIndex: bitIndex,
			Crc: chs.IntegrityCheck{
				Kind:       chs.IntegrityChecksum16,
				Recorded:   recordedSum,
				Calculated: headerSum,
			},
			AddressError: recordedSum != headerSum,
		}

		var recordedDataSum [4]byte
		stream.ReadDecodedBuf(recordedDataSum[:], pos)
		recordedDSum := uint32(recordedDataSum[0])<<24 | uint32(recordedDataSum[1])<<16 | uint32(recordedDataSum[2])<<8 | uint32(recordedDataSum[3])
		checksumStart := pos
		pos += bitstream.MFMByteLen * 4

		dataStart := pos
		data := make([]byte, SectorSize)
		var dataSum uint32
		oddBuf := make([]byte, SectorSize/2)
		evenBuf := make([]byte, SectorSize/2)
		stream.ReadDecodedBuf(oddBuf, pos)
		pos += bitstream.MFMByteLen * (SectorSize / 2)
		stream.ReadDecodedBuf(evenBuf, pos)
		pos += bitstream.MFMByteLen * (SectorSize / 2)

		for i := 0; i < SectorSize/4; i++ {
			odd := uint16(oddBuf[2*i])<<8 | uint16(oddBuf[2*i+1])
			even := uint16(evenBuf[2*i])<<8 | uint16(evenBuf[2*i+1])
			dataSum ^= uint32(odd) ^ uint32(even)
			word := unshuffle(odd, even)
			data[4*i] = byte(word >> 24)
			data[4*i+1] = byte(word >> 16)
			data[4*i+2] = byte(word >> 8)
			data[4*i+3] = byte(word)
		}

		dataEl := SectorDataElement{
			BitIndex:      bitIndex,
			ChecksumStart: checksumStart,
			DataStart:     dataStart,
			DataEnd:       pos,
			Payload:       data,
			Crc: chs.IntegrityCheck{
				Kind:       chs.IntegrityChecksum16,
				Recorded:   recordedDSum,
				Calculated: dataSum,
			},
			DataError: recordedDSum != dataSum,
		}

		result.Sectors = append(result.Sectors, Sector{Header: header, Data: dataEl})
		result.DataRanges = append(result.DataRanges, bitstream.DataRange{
			Start:     bitIndex,
			End:       pos,
			DataStart: dataStart,
			DataEnd:   pos,
		})

		offset = pos
	}

	return result, nil
}

// FindSector locates a sector by 0-based sector number.
func (t *TrackElements) FindSector(sector int) (*Sector, error) {
	for i := range t.Sectors {
		if t.Sectors[i].Header.Info.Sector == sector {
			return &t.Sectors[i], nil
		}
	}
	return nil, fmt.Errorf("amiga: sector %d: %w", sector, fferr.ErrSectorIDNotFound)
}

// Analysis summarizes a scanned Amiga track's sector layout health.
type Analysis struct {
	SectorCount   int
	AddressErrors int
	DataErrors    int
}

// Analyze inspects the sectors discovered by ScanTrack.
func Analyze(t *TrackElements) Analysis {
	var a Analysis
	a.SectorCount = len(t.Sectors)
	for _, s := range t.Sectors {
		if s.Header.AddressError {
			a.AddressErrors++
		}
		if s.Data.DataError {
			a.DataErrors++
		}
	}
	return a
}

// FormatTrack lays out a complete Amiga trackdisk track: for each sector, a
// sync marker, an interleaved header (format/track/sector/sectorsToGap,
// four label longs), the header checksum, the data checksum, then the
// sector payload itself interleaved odd-half-then-even-half. The two
// checksums are written as plain big-endian 4-byte fields, not in odd/even
// interleaved form, and ScanTrack reads them back the same way. This
// generalizes the teacher's readDataAmiga/readLong layout (read-only there)
// into a symmetric writer.
func FormatTrack(sectorsPerTrack int, track int, sectorData [][]byte, bitcellCt int) (*bitstream.Stream, error) {
	if len(sectorData) != sectorsPerTrack {
		return nil, fmt.Errorf("amiga: format track: %d sectors supplied, want %d: %w", len(sectorData), sectorsPerTrack, fferr.ErrParameter)
	}

	bits := bitstream.NewBits(bitcellCt)
	stream := bitstream.NewStream(bits, chs.EncodingMFM)

	for s := 0; s < sectorsPerTrack; s++ {
		markerBytes := []byte{0x44, 0x89, 0x44, 0x89}
		stream.WriteRawBuf(markerBytes, stream.Len())

		var headerSum uint32
		infoWord := uint32(0xFF)<<24 | uint32(track&0xFF)<<16 | uint32(s&0xFF)<<8 | uint32(sectorsPerTrack-s)
		pos := writeInterleavedWord(stream, stream.Len(), infoWord, &headerSum)

		for i := 0; i < LabelLongs; i++ {
			pos = writeInterleavedWord(stream, pos, 0, &headerSum)
		}

		stream.WriteEncodedBuf([]byte{byte(headerSum >> 24), byte(headerSum >> 16), byte(headerSum >> 8), byte(headerSum)}, pos)
		pos += bitstream.MFMByteLen * 4

		data := sectorData[s]
		if data == nil {
			data = make([]byte, SectorSize)
		}
		var dataSum uint32
		oddBuf := make([]byte, SectorSize/2)
		evenBuf := make([]byte, SectorSize/2)
		for i := 0; i < SectorSize/4; i++ {
			word := uint32(data[4*i])<<24 | uint32(data[4*i+1])<<16 | uint32(data[4*i+2])<<8 | uint32(data[4*i+3])
			odd, even := Shuffle(word)
			dataSum ^= uint32(odd) ^ uint32(even)
			oddBuf[2*i] = byte(odd >> 8)
			oddBuf[2*i+1] = byte(odd)
			evenBuf[2*i] = byte(even >> 8)
			evenBuf[2*i+1] = byte(even)
		}

		stream.WriteEncodedBuf([]byte{byte(dataSum >> 24), byte(dataSum >> 16), byte(dataSum >> 8), byte(dataSum)}, pos)
		pos += bitstream.MFMByteLen * 4

		stream.WriteEncodedBuf(oddBuf, pos)
		pos += bitstream.MFMByteLen * len(oddBuf)
		stream.WriteEncodedBuf(evenBuf, pos)
		pos += bitstream.MFMByteLen * len(evenBuf)
	}

	if remaining := bitcellCt - stream.Len(); remaining > 0 {
		gap := make([]byte, remaining/bitstream.MFMByteLen)
		stream.WriteEncodedBuf(gap, stream.Len())
	}

	return stream, nil
}
