package crc16

import "testing"

func TestChecksumEmpty(t *testing.T) {
	if got := Checksum(nil); got != InitialValue {
		t.Errorf("Checksum(nil) = %#04x, want %#04x", got, InitialValue)
	}
}

func TestUpdateByteMatchesUpdate(t *testing.T) {
	buf := []byte{0xA1, 0xA1, 0xA1, 0xFE, 0x00, 0x00, 0x01, 0x02}
	want := Checksum(buf)

	got := InitialValue
	for _, b := range buf {
		got = UpdateByte(got, b)
	}
	if got != want {
		t.Errorf("byte-at-a-time CRC = %#04x, want %#04x", got, want)
	}
}

func TestChecksumIsOrderSensitive(t *testing.T) {
	a := Checksum([]byte{0x01, 0x02})
	b := Checksum([]byte{0x02, 0x01})
	if a == b {
		t.Errorf("expected different CRCs for reordered input, got %#04x for both", a)
	}
}

// TestKnownVector pins the CRC-IBM-3740 implementation against a
// known-correct value for the classic "123456789" ASCII test vector, which
// this CRC variant (poly 0x1021, init 0xFFFF, no reflect, no final xor)
// should produce as 0x29B1.
func TestKnownVector(t *testing.T) {
	got := Checksum([]byte("123456789"))
	const want = 0x29B1
	if got != want {
		t.Errorf("Checksum(\"123456789\") = %#04x, want %#04x", got, want)
	}
}
