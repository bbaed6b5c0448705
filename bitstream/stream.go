package bitstream

import "github.com/dbalsom/fluxfox-sub001/chs"

// MFMByteLen is the number of channel bits used to encode one data byte in
// FM or MFM: two channel bits (clock, data) per data bit.
const MFMByteLen = 16

// MfmOffset converts a decoded byte index n into its starting channel-bit
// offset.
func MfmOffset(n int) int {
	return n * MFMByteLen
}

// MarkerEncoding describes a fixed-length channel-bit pattern to search for,
// masked so that don't-care bits (typically clock bits inside a
// synchronization field) are ignored during comparison.
type MarkerEncoding struct {
	Bits uint64
	Mask uint64
	Len  int // bit width of the pattern, <= 64
}

// Stream is a track's raw channel-bit buffer plus the parallel clock-phase
// map and optional weak-bit/error masks (spec §3 BitStreamTrack, §4.3/§4.4).
//
// Invariant: Bits.Len() == ClockMap.Len(), and, when present,
// WeakMask.Len() and ErrorMask.Len() equal the same length.
type Stream struct {
	Bits      *Bits
	ClockMap  *Bits
	WeakMask  *Bits
	ErrorMask *Bits
	BitcellCt int
	Encoding  chs.Encoding
}

// NewStream wraps raw channel bits with a (possibly not yet populated)
// clock-phase map of equal length.
func NewStream(bits *Bits, encoding chs.Encoding) *Stream {
	return &Stream{
		Bits:      bits,
		ClockMap:  NewBitsFromBytes(nil, bits.Len()),
		BitcellCt: bits.Len(),
		Encoding:  encoding,
	}
}

// Len returns the number of raw channel bits in the stream.
func (s *Stream) Len() int {
	return s.Bits.Len()
}

// EnsureMasks allocates WeakMask/ErrorMask (all-false) if not already
// present, sized to match Bits.
func (s *Stream) EnsureMasks() {
	if s.WeakMask == nil {
		s.WeakMask = NewBitsFromBytes(nil, s.Len())
	}
	if s.ErrorMask == nil {
		s.ErrorMask = NewBitsFromBytes(nil, s.Len())
	}
}

// ReadRawBuf copies len(buf)*8 raw channel bits into buf, starting at
// bitIndex, MSB-first per byte.
func (s *Stream) ReadRawBuf(buf []byte, bitIndex int) {
	for i := 0; i < len(buf)*8; i++ {
		if s.Bits.Get(bitIndex + i) {
			buf[i/8] |= 1 << uint(7-(i%8))
		} else {
			buf[i/8] &^= 1 << uint(7-(i%8))
		}
	}
}

// ReadRawU8 reads a single raw channel byte (8 channel bits, not
// decoded) at bitIndex.
func (s *Stream) ReadRawU8(bitIndex int) byte {
	var buf [1]byte
	s.ReadRawBuf(buf[:], bitIndex)
	return buf[0]
}

// ReadDecodedBuf decodes len(buf) data bytes from FM/MFM-encoded channel
// bits starting at bitIndex, which must be clock-aligned (i.e. bitIndex
// points at a clock bit). Each 16-bit channel cell yields one data byte
// taken from the LSB of each (clock, data) pair.
func (s *Stream) ReadDecodedBuf(buf []byte, bitIndex int) {
	for i := range buf {
		var b byte
		for bitPos := 0; bitPos < 8; bitPos++ {
			// Each decoded bit is the second ("data") half-bit of a pair.
			idx := bitIndex + (i*8+bitPos)*2 + 1
			if s.Bits.Get(idx) {
				b |= 1 << uint(7-bitPos)
			}
		}
		buf[i] = b
	}
}

// ReadDecodedU8 decodes a single data byte at a clock-aligned bitIndex.
func (s *Stream) ReadDecodedU8(bitIndex int) byte {
	var buf [1]byte
	s.ReadDecodedBuf(buf[:], bitIndex)
	return buf[0]
}

// WriteRawBuf overwrites raw channel bits with the contents of buf,
// MSB-first per byte. Used only for pre-encoded markers, which violate the
// normal clock rule and so cannot be produced by WriteEncodedBuf.
func (s *Stream) WriteRawBuf(buf []byte, bitIndex int) {
	for i := 0; i < len(buf)*8; i++ {
		bit := (buf[i/8]>>uint(7-(i%8)))&1 != 0
		s.Bits.Set(bitIndex+i, bit)
		s.ClockMap.Set(bitIndex+i, i%2 == 0)
	}
	// A marker write clears the clock bit immediately preceding it, so a
	// later scan starting before the marker can resynchronize against it.
	if bitIndex > 0 {
		s.ClockMap.Set(bitIndex-1, false)
	}
}

// WriteEncodedBuf re-encodes each byte of buf as MFM/FM starting at
// bitIndex (which need not be clock-aligned on entry only in the sense that
// the clock bit of the very first encoded bit depends on whatever data bit
// precedes it in the stream), applying the standard clock rule
// clock = NOT(prevDataBit OR curDataBit), and updates the clock-phase map
// to mark the written bits as alternating clock/data.
func (s *Stream) WriteEncodedBuf(buf []byte, bitIndex int) {
	prevDataBit := false
	if bitIndex >= 2 {
		prevDataBit = s.Bits.Get(bitIndex - 1)
	}
	pos := bitIndex
	for _, b := range buf {
		for bitPos := 7; bitPos >= 0; bitPos-- {
			dataBit := (b>>uint(bitPos))&1 != 0
			clockBit := !(prevDataBit || dataBit)
			s.Bits.Set(pos, clockBit)
			s.ClockMap.Set(pos, true)
			pos++
			s.Bits.Set(pos, dataBit)
			s.ClockMap.Set(pos, false)
			pos++
			prevDataBit = dataBit
		}
	}
}

// FindMarker performs a linear search, starting at offset and stopping
// before limit (or at the end of the stream when limit is negative), for
// enc's bit pattern. On success it returns the bit index of the match and
// the 16-bit value of the raw channel bits immediately following the
// pattern (the marker's "tail", e.g. a System34 address-mark tag byte in
// its still-encoded form).
func (s *Stream) FindMarker(enc MarkerEncoding, offset int, limit int) (bitIndex int, tail uint16, found bool) {
	end := s.Len() - enc.Len
	if limit >= 0 && limit-1 < end {
		end = limit - 1
	}
	var window uint64
	// The window is rebuilt from the Len bits at each candidate position.
	if offset < 0 {
		offset = 0
	}
	for i := offset; i <= end; i++ {
		window = 0
		for b := 0; b < enc.Len; b++ {
			window <<= 1
			if s.Bits.Get(i + b) {
				window |= 1
			}
		}
		if window&enc.Mask == enc.Bits&enc.Mask {
			tailStart := i + enc.Len
			var t uint16
			for b := 0; b < 16; b++ {
				t <<= 1
				if s.Bits.Get(tailStart + b) {
					t |= 1
				}
			}
			return i, t, true
		}
	}
	return 0, 0, false
}

// IsData reports whether bitIndex lies within dataRanges, the set of known
// SectorData byte ranges on the track (as supplied by a TrackMetadata). In
// strict mode, bitIndex must fall strictly inside a range's data payload;
// in non-strict mode it may also fall within the range's address-mark
// prefix or CRC suffix.
func (s *Stream) IsData(bitIndex int, strict bool, dataRanges []DataRange) bool {
	for _, r := range dataRanges {
		lo, hi := r.Start, r.End
		if strict {
			lo, hi = r.DataStart, r.DataEnd
		}
		if bitIndex >= lo && bitIndex < hi {
			return true
		}
	}
	return false
}

// DataRange describes one SectorData element's bit extent, for IsData
// queries: [Start,End) is the whole element, [DataStart,DataEnd) is just
// the payload.
type DataRange struct {
	Start, End         int
	DataStart, DataEnd int
}

// MapDensity scales a fractional bit position (0..1) against this stream's
// ideal bitcell count, for visualizers that need to map an angular position
// on the medium to a bit offset regardless of a track's actual captured
// length (spec §6 Track::stream().map_density).
func (s *Stream) MapDensity(f float64) float64 {
	if s.BitcellCt == 0 {
		return f
	}
	return f * float64(s.Len()) / float64(s.BitcellCt)
}
