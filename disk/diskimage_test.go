package disk

import (
	"testing"

	"github.com/dbalsom/fluxfox-sub001/chs"
	"github.com/dbalsom/fluxfox-sub001/schema/system34"
	"github.com/dbalsom/fluxfox-sub001/track"
)

func testDescriptor() Descriptor {
	return Descriptor{
		Cylinders: 1,
		Heads:     1,
		DataRate:  250,
		Density:   chs.DensityDD,
		Rpm:       chs.RPM300,
		Encoding:  chs.EncodingMFM,
	}
}

func TestAddTrackMetaSectorAndReadSector(t *testing.T) {
	img := NewDiskImage(testDescriptor())
	ch := chs.NewDiskCh(0, 0)

	sectors := make([][]byte, 3)
	for i := range sectors {
		sectors[i] = make([]byte, 256)
		sectors[i][0] = byte(i + 1)
	}
	idx, err := img.AddTrackMetaSector(track.MetaSectorTrackParams{
		Ch: ch, Encoding: chs.EncodingMFM, DataRate: 250, Rpm: chs.RPM300,
		N: chs.NFromSize(256), SectorOff: 1, Sectors: sectors,
	})
	if err != nil {
		t.Fatalf("AddTrackMetaSector: %v", err)
	}
	if idx != 0 {
		t.Errorf("pool index = %d, want 0", idx)
	}
	if img.TrackCount() != 1 {
		t.Fatalf("TrackCount = %d, want 1", img.TrackCount())
	}

	q := chs.NewDiskChsnQuery(2).WithN(chs.NFromSize(256))
	read, err := img.ReadSector(ch, q, chs.RwScopeAll)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if read.Data[0] != 2 {
		t.Errorf("sector 2 first byte = %d, want 2", read.Data[0])
	}
}

func TestWriteSectorUpdatesImageHash(t *testing.T) {
	img := NewDiskImage(testDescriptor())
	ch := chs.NewDiskCh(0, 0)
	sectors := [][]byte{make([]byte, 256)}
	if _, err := img.AddTrackMetaSector(track.MetaSectorTrackParams{
		Ch: ch, N: chs.NFromSize(256), SectorOff: 1, Sectors: sectors,
	}); err != nil {
		t.Fatalf("AddTrackMetaSector: %v", err)
	}

	before := img.Hash()
	q := chs.NewDiskChsnQuery(1).WithN(chs.NFromSize(256))
	data := make([]byte, 256)
	data[0] = 0xFF
	if _, err := img.WriteSector(ch, q, data, chs.RwScopeAll, false); err != nil {
		t.Fatalf("WriteSector: %v", err)
	}
	after := img.Hash()
	if string(before) == string(after) {
		t.Errorf("expected image hash to change after a sector write")
	}
}

func TestReadSectorUnknownTrack(t *testing.T) {
	img := NewDiskImage(testDescriptor())
	_, err := img.ReadSector(chs.NewDiskCh(5, 1), chs.NewDiskChsnQuery(1), chs.RwScopeAll)
	if err == nil {
		t.Errorf("expected error reading an unpopulated track")
	}
}

func TestAddTrackBitstreamSystem34(t *testing.T) {
	img := NewDiskImage(testDescriptor())
	ch := chs.NewDiskCh(5, 0)

	layout := chs.NewSectorLayout(1, 1, 2, 1, 256)
	sectors := make([][]byte, 2)
	for i := range sectors {
		sectors[i] = make([]byte, 256)
		sectors[i][0] = byte(i + 10)
	}
	stream, err := system34.FormatTrack(layout, sectors, 5, 0, chs.NFromSize(256), 100000)
	if err != nil {
		t.Fatalf("FormatTrack: %v", err)
	}

	if _, err := img.AddTrackBitstream(track.BitStreamTrackParams{
		Ch: ch, Encoding: chs.EncodingMFM, Schema: track.SchemaSystem34,
		DataRate: 250, Rpm: chs.RPM300, BitcellCt: stream.Len(), Data: stream.Bits.Bytes(),
	}); err != nil {
		t.Fatalf("AddTrackBitstream: %v", err)
	}
	if img.Resolution != chs.ResolutionBitStream {
		t.Errorf("Resolution = %v, want BitStream", img.Resolution)
	}

	q := chs.NewDiskChsnQuery(2).WithN(chs.NFromSize(256))
	read, err := img.ReadSector(ch, q, chs.RwScopeAll)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if !read.DataCrcValid {
		t.Errorf("expected valid data CRC")
	}
	// RwScopeAll returns the whole element: three A1 sync bytes and the DAM
	// tag precede the payload.
	if read.Data[4] != 11 {
		t.Errorf("sector 2 first payload byte = %d, want 11", read.Data[4])
	}
}

func TestAddEmptyTrackEachResolution(t *testing.T) {
	img := NewDiskImage(testDescriptor())

	if _, err := img.AddEmptyTrack(chs.NewDiskCh(0, 0), chs.EncodingMFM, chs.ResolutionMetaSector, 250, 0, chs.RPM300); err != nil {
		t.Fatalf("AddEmptyTrack MetaSector: %v", err)
	}
	if _, err := img.AddEmptyTrack(chs.NewDiskCh(1, 0), chs.EncodingMFM, chs.ResolutionBitStream, 250, 1600, chs.RPM300); err != nil {
		t.Fatalf("AddEmptyTrack BitStream: %v", err)
	}
	if _, err := img.AddEmptyTrack(chs.NewDiskCh(2, 0), chs.EncodingMFM, chs.ResolutionFluxStream, 250, 0, chs.RPM300); err != nil {
		t.Fatalf("AddEmptyTrack FluxStream: %v", err)
	}
	if img.TrackCount() != 3 {
		t.Fatalf("TrackCount = %d, want 3", img.TrackCount())
	}

	// An unresolved (zero-revolution) FluxStreamTrack must surface
	// ResolveError rather than panic (spec §7 kind 4).
	if _, err := img.ReadSector(chs.NewDiskCh(2, 0), chs.NewDiskChsnQuery(1), chs.RwScopeAll); err == nil {
		t.Errorf("expected ResolveError reading an undecoded flux track")
	}
}

func TestMultiResolutionFilesMultipleTracksPerLocation(t *testing.T) {
	img := NewDiskImage(testDescriptor())
	img.MultiResolution = true
	ch := chs.NewDiskCh(3, 0)

	if _, err := img.AddTrackMetaSector(track.MetaSectorTrackParams{
		Ch: ch, N: chs.NFromSize(256), SectorOff: 1, Sectors: [][]byte{make([]byte, 256)},
	}); err != nil {
		t.Fatalf("AddTrackMetaSector: %v", err)
	}
	if _, err := img.AddEmptyTrack(ch, chs.EncodingMFM, chs.ResolutionBitStream, 250, 1600, chs.RPM300); err != nil {
		t.Fatalf("AddEmptyTrack: %v", err)
	}
	if got := len(img.indexFor(ch)); got != 2 {
		t.Fatalf("indexFor(ch) len = %d, want 2", got)
	}

	// WithTrack resolves to the most-recently-filed entry at a shared
	// location.
	var gotKind track.Kind
	if err := img.WithTrack(ch, func(t *track.Track) error {
		gotKind = t.Kind
		return nil
	}); err != nil {
		t.Fatalf("WithTrack: %v", err)
	}
	if gotKind != track.KindBitStream {
		t.Errorf("WithTrack resolved kind = %v, want KindBitStream", gotKind)
	}
}
