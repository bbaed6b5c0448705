package amiga

import "testing"

func TestShuffleUnshuffleRoundTrips(t *testing.T) {
	words := []uint32{0, 1, 0xFFFFFFFF, 0x12345678, 0xDEADBEEF, 0xA5A5A5A5}
	for _, w := range words {
		odd, even := Shuffle(w)
		got := unshuffle(odd, even)
		if got != w {
			t.Errorf("shuffle/unshuffle round trip: word %#x -> %#x", w, got)
		}
	}
}

func buildTestTrack(t *testing.T) *TrackElements {
	t.Helper()
	sectors := make([][]byte, 3)
	for i := range sectors {
		sectors[i] = make([]byte, SectorSize)
		for j := range sectors[i] {
			sectors[i][j] = byte(i + j)
		}
	}
	stream, err := FormatTrack(3, 5, sectors, 200000)
	if err != nil {
		t.Fatalf("FormatTrack: %v", err)
	}
	elements, err := ScanTrack(stream)
	if err != nil {
		t.Fatalf("ScanTrack: %v", err)
	}
	return elements
}

func TestFormatThenScanRoundTrips(t *testing.T) {
	elements := buildTestTrack(t)
	if len(elements.Sectors) != 3 {
		t.Fatalf("Sectors = %d, want 3", len(elements.Sectors))
	}
	for i, s := range elements.Sectors {
		if s.Header.AddressError {
			t.Errorf("sector %d: unexpected header checksum failure", i)
		}
		if s.Data.DataError {
			t.Errorf("sector %d: unexpected data checksum failure", i)
		}
		if s.Header.Info.Track != 5 {
			t.Errorf("sector %d: Track = %d, want 5", i, s.Header.Info.Track)
		}
	}
}

func TestFindSector(t *testing.T) {
	elements := buildTestTrack(t)
	s, err := elements.FindSector(1)
	if err != nil {
		t.Fatalf("FindSector: %v", err)
	}
	if s.Data.Payload[1] != 2 {
		t.Errorf("payload[1] = %d, want 2", s.Data.Payload[1])
	}
}

func TestFindSectorNotFound(t *testing.T) {
	elements := buildTestTrack(t)
	if _, err := elements.FindSector(99); err == nil {
		t.Errorf("expected error for nonexistent sector")
	}
}

func TestAnalyzeNoErrors(t *testing.T) {
	elements := buildTestTrack(t)
	a := Analyze(elements)
	if a.SectorCount != 3 {
		t.Errorf("SectorCount = %d, want 3", a.SectorCount)
	}
	if a.AddressErrors != 0 || a.DataErrors != 0 {
		t.Errorf("unexpected errors: %+v", a)
	}
}
