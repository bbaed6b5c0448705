package bitstream

// System34 and Amiga address marks are ordinary data bytes encoded with a
// deliberate violation of the MFM clock rule, so a scanner can find them
// without first being bit-synchronized. The channel-bit patterns below
// (0x4489 per 0xA1 byte, 0x5224 per 0xC2 byte) are the standard MFM
// encodings of those violations; the teacher's mfm/writer.go writeMarker
// and writeIndexMarker build the identical bit pattern by hand, half-bit by
// half-bit, which is where this codec's clock-violation convention comes
// from.

// A1Sync3 is the 48-bit channel pattern for three consecutive 0xA1 sync
// bytes (used before IDAM/DAM/DDAM address marks in a System34 track).
var A1Sync3 = MarkerEncoding{
	Bits: 0x448944894489,
	Mask: 0xFFFFFFFFFFFF,
	Len:  48,
}

// C2Sync3 is the 48-bit channel pattern for three consecutive 0xC2 sync
// bytes (used before the IAM index address mark in a System34 track).
var C2Sync3 = MarkerEncoding{
	Bits: 0x522452245224,
	Mask: 0xFFFFFFFFFFFF,
	Len:  48,
}

// AmigaSync is the 32-bit channel pattern 0x44894489: the Amiga trackdisk
// format's single marker, two 0xA1-style sync words, used before every
// sector's info field (there is no separate index or data address mark).
var AmigaSync = MarkerEncoding{
	Bits: 0x44894489,
	Mask: 0xFFFFFFFF,
	Len:  32,
}

// System34 address-mark tag bytes, read as the first decoded byte following
// an A1Sync3 match.
const (
	TagIDAM byte = 0xFE
	TagDAM  byte = 0xFB
	TagDDAM byte = 0xF8
)

// TagIAM is the address-mark byte following a C2Sync3 match.
const TagIAM byte = 0xFC
