package system34

import (
	"testing"

	"github.com/dbalsom/fluxfox-sub001/bitstream"
	"github.com/dbalsom/fluxfox-sub001/chs"
)

func buildTestTrack(t *testing.T) *bitstream.Stream {
	t.Helper()
	layout := chs.NewSectorLayout(1, 1, 2, 1, 256)
	sectors := make([][]byte, 2)
	for i := range sectors {
		sectors[i] = make([]byte, 256)
		for j := range sectors[i] {
			sectors[i][j] = byte(i*16 + j)
		}
	}
	stream, err := FormatTrack(layout, sectors, 0, 0, chs.NFromSize(256), 100000)
	if err != nil {
		t.Fatalf("FormatTrack: %v", err)
	}
	return stream
}

func TestFormatThenScanRoundTrips(t *testing.T) {
	stream := buildTestTrack(t)

	elements, err := ScanTrack(stream)
	if err != nil {
		t.Fatalf("ScanTrack: %v", err)
	}

	var sawIAM, sawIDAM, sawDAM int
	for _, el := range elements.Elements {
		switch el.Kind {
		case ElementIAM:
			sawIAM++
		case ElementIDAM:
			sawIDAM++
			if el.Header.AddressError {
				t.Errorf("unexpected header CRC failure for sector %s", el.Header.Chsn)
			}
		case ElementDAM:
			sawDAM++
			if el.Data.DataError {
				t.Errorf("unexpected data CRC failure")
			}
		}
	}

	if sawIAM != 1 {
		t.Errorf("IAM count = %d, want 1", sawIAM)
	}
	if sawIDAM != 2 {
		t.Errorf("IDAM count = %d, want 2", sawIDAM)
	}
	if sawDAM != 2 {
		t.Errorf("DAM count = %d, want 2", sawDAM)
	}
}

func TestFindSectorAndReadData(t *testing.T) {
	stream := buildTestTrack(t)
	elements, err := ScanTrack(stream)
	if err != nil {
		t.Fatalf("ScanTrack: %v", err)
	}

	q := chs.NewDiskChsnQuery(2)
	hdr, data, err := elements.FindSector(q)
	if err != nil {
		t.Fatalf("FindSector: %v", err)
	}
	if hdr.Chsn.Chs.S != 2 {
		t.Errorf("found sector %d, want 2", hdr.Chsn.Chs.S)
	}
	if data == nil {
		t.Fatalf("expected data element for sector 2")
	}

	buf := make([]byte, data.DataEnd-data.DataStart)
	// DataStart/DataEnd are channel-bit offsets over a 16x expansion vs.
	// data bytes for MFM; decode directly via the stream instead of byte
	// length math to read the actual payload.
	payload := make([]byte, (data.DataEnd-data.DataStart)/bitstream.MFMByteLen)
	stream.ReadDecodedBuf(payload, data.DataStart)
	_ = buf
	if payload[0] != 16 {
		t.Errorf("first payload byte = %d, want 16", payload[0])
	}
}

func TestFindSectorNotFound(t *testing.T) {
	stream := buildTestTrack(t)
	elements, err := ScanTrack(stream)
	if err != nil {
		t.Fatalf("ScanTrack: %v", err)
	}
	if _, _, err := elements.FindSector(chs.NewDiskChsnQuery(99)); err == nil {
		t.Errorf("expected error for nonexistent sector")
	}
}

func TestAnalyzeConsistentSectors(t *testing.T) {
	stream := buildTestTrack(t)
	elements, err := ScanTrack(stream)
	if err != nil {
		t.Fatalf("ScanTrack: %v", err)
	}
	a := Analyze(elements)
	if a.SectorCount != 2 {
		t.Errorf("SectorCount = %d, want 2", a.SectorCount)
	}
	if !a.ConsistentSectorSize {
		t.Errorf("expected ConsistentSectorSize = true")
	}
	if a.NonconsecutiveIds {
		t.Errorf("expected consecutive sector IDs")
	}
}

func TestHeaderAndDataCrcDeterministic(t *testing.T) {
	id := chs.NewDiskChsn(5, 1, 3, 2)
	if HeaderCrc(id) != HeaderCrc(id) {
		t.Errorf("HeaderCrc not deterministic")
	}
	data := []byte{1, 2, 3, 4}
	if DataCrc(data, false) == DataCrc(data, true) {
		t.Errorf("deleted and non-deleted data CRCs should differ")
	}
}
