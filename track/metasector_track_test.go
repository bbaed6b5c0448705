package track

import (
	"testing"

	"github.com/dbalsom/fluxfox-sub001/chs"
	"github.com/dbalsom/fluxfox-sub001/shared"
)

func buildMetaSectorTrack(t *testing.T) *MetaSectorTrack {
	t.Helper()
	sectors := make([][]byte, 5)
	for i := range sectors {
		sectors[i] = make([]byte, 512)
		for j := range sectors[i] {
			sectors[i][j] = byte(i)
		}
	}
	return NewMetaSectorTrack(MetaSectorTrackParams{
		Ch:        chs.NewDiskCh(0, 0),
		Encoding:  chs.EncodingMFM,
		DataRate:  250,
		Rpm:       chs.RPM300,
		N:         chs.NFromSize(512),
		SectorOff: 1,
		Sectors:   sectors,
	}, shared.NewDiskContext())
}

func TestMetaSectorTrackSectorList(t *testing.T) {
	mt := buildMetaSectorTrack(t)
	list := mt.SectorList()
	if len(list) != 5 {
		t.Fatalf("SectorList len = %d, want 5", len(list))
	}
	for i, e := range list {
		if e.Chsn.Chs.S != uint8(i+1) {
			t.Errorf("entry %d sector = %d, want %d", i, e.Chsn.Chs.S, i+1)
		}
		if e.AddressError || e.DataError || e.Deleted {
			t.Errorf("entry %d unexpected error flags: %+v", i, e)
		}
	}
}

func TestMetaSectorTrackReadWriteRoundTrip(t *testing.T) {
	mt := buildMetaSectorTrack(t)
	q := chs.NewDiskChsnQuery(3).WithN(mt.N)

	want := make([]byte, 512)
	for i := range want {
		want[i] = byte(0xAA)
	}
	if _, err := mt.WriteSector(q, 0, want, chs.RwScopeAll, false); err != nil {
		t.Fatalf("WriteSector: %v", err)
	}

	read, err := mt.ReadSector(q, 0, chs.RwScopeAll)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if !read.AddressCrcValid || !read.DataCrcValid {
		t.Errorf("expected valid integrity flags, got %+v", read)
	}
	for i, b := range read.Data {
		if b != want[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, b, want[i])
		}
	}
}

func TestMetaSectorTrackSectorNotFound(t *testing.T) {
	mt := buildMetaSectorTrack(t)
	if _, err := mt.ReadSector(chs.NewDiskChsnQuery(99), 0, chs.RwScopeAll); err == nil {
		t.Errorf("expected error for nonexistent sector")
	}
}

func TestMetaSectorTrackFormat(t *testing.T) {
	mt := buildMetaSectorTrack(t)
	layout := chs.NewSectorLayout(1, 1, 3, 1, 256)
	if err := mt.Format(layout, []byte{0xF6}, chs.NFromSize(256)); err != nil {
		t.Fatalf("Format: %v", err)
	}
	list := mt.SectorList()
	if len(list) != 3 {
		t.Fatalf("SectorList len = %d, want 3", len(list))
	}
	read, err := mt.ReadSector(chs.NewDiskChsnQuery(1).WithN(mt.N), 0, chs.RwScopeAll)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	for _, b := range read.Data {
		if b != 0xF6 {
			t.Fatalf("fill byte = %#x, want 0xf6", b)
		}
	}
}

func TestMetaSectorTrackFormatEmptyFillIsError(t *testing.T) {
	mt := buildMetaSectorTrack(t)
	layout := chs.NewSectorLayout(1, 1, 3, 1, 256)
	if err := mt.Format(layout, nil, chs.NFromSize(256)); err == nil {
		t.Errorf("expected error for empty fill pattern")
	}
}

func TestMetaSectorTrackNextID(t *testing.T) {
	mt := buildMetaSectorTrack(t)
	next := mt.NextID(chs.NewDiskChs(0, 0, 2))
	if next == nil || next.Chs.S != 3 {
		t.Fatalf("NextID = %v, want sector 3", next)
	}
	if last := mt.NextID(chs.NewDiskChs(0, 0, 5)); last != nil {
		t.Errorf("expected nil past the last sector, got %v", last)
	}
}
