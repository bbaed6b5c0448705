package track

import (
	"testing"

	"github.com/dbalsom/fluxfox-sub001/bitstream"
	"github.com/dbalsom/fluxfox-sub001/chs"
	"github.com/dbalsom/fluxfox-sub001/pll"
	"github.com/dbalsom/fluxfox-sub001/schema/system34"
	"github.com/dbalsom/fluxfox-sub001/shared"
)

func TestTrackDispatchMetaSector(t *testing.T) {
	mt := buildMetaSectorTrack(t)
	tr := NewMetaSectorTrackVariant(mt)

	if tr.Kind != KindMetaSector {
		t.Fatalf("Kind = %v, want KindMetaSector", tr.Kind)
	}
	if tr.Ch() != mt.Ch {
		t.Errorf("Ch() = %v, want %v", tr.Ch(), mt.Ch)
	}
	if got := tr.Info().SectorCt; got != 5 {
		t.Errorf("Info().SectorCt = %d, want 5", got)
	}
	if tr.Stream() != nil {
		t.Errorf("expected nil Stream() for a MetaSectorTrack")
	}
	if tr.Metadata() != nil {
		t.Errorf("expected nil Metadata() for a MetaSectorTrack")
	}
}

func buildSystem34BitStreamTrack(t *testing.T) *BitStreamTrack {
	t.Helper()
	layout := chs.NewSectorLayout(1, 1, 3, 1, 256)
	sectors := make([][]byte, 3)
	for i := range sectors {
		sectors[i] = make([]byte, 256)
		for j := range sectors[i] {
			sectors[i][j] = byte(i*32 + j)
		}
	}
	stream, err := system34.FormatTrack(layout, sectors, 0, 0, chs.NFromSize(256), 100000)
	if err != nil {
		t.Fatalf("FormatTrack: %v", err)
	}
	bt, err := NewBitStreamTrack(BitStreamTrackParams{
		Ch:        chs.NewDiskCh(0, 0),
		Encoding:  chs.EncodingMFM,
		Schema:    SchemaSystem34,
		DataRate:  250,
		Rpm:       chs.RPM300,
		BitcellCt: stream.Len(),
		Data:      stream.Bits.Bytes(),
	}, shared.NewDiskContext())
	if err != nil {
		t.Fatalf("NewBitStreamTrack: %v", err)
	}
	return bt
}

func TestTrackDispatchBitStream(t *testing.T) {
	bt := buildSystem34BitStreamTrack(t)
	tr := NewBitStreamTrackVariant(bt)

	if tr.Kind != KindBitStream {
		t.Fatalf("Kind = %v, want KindBitStream", tr.Kind)
	}
	if tr.Stream() == nil {
		t.Fatalf("expected non-nil Stream() for a BitStreamTrack")
	}
	if tr.Metadata() == nil {
		t.Fatalf("expected non-nil Metadata() for a BitStreamTrack")
	}

	q := chs.NewDiskChsnQuery(2).WithN(chs.NFromSize(256))
	read, err := tr.ReadSector(q, 0, chs.RwScopeAll)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if !read.DataCrcValid {
		t.Errorf("expected valid data CRC on freshly formatted track")
	}

	zeroes := make([]byte, len(read.Data))
	if _, err := tr.WriteSector(q, 0, zeroes, chs.RwScopeAll, false); err != nil {
		t.Fatalf("WriteSector: %v", err)
	}
	read2, err := tr.ReadSector(q, 0, chs.RwScopeDataOnly)
	if err != nil {
		t.Fatalf("ReadSector after write: %v", err)
	}
	if !read2.DataCrcValid {
		t.Errorf("expected valid data CRC after round-trip write")
	}
	for _, b := range read2.Data {
		if b != 0 {
			t.Fatalf("expected all-zero payload after write, got byte %#x", b)
		}
	}

	if err := tr.Format(chs.NewSectorLayout(1, 1, 3, 1, 256), [][]byte{{}, {}}, nil, chs.NFromSize(256)); err == nil {
		t.Errorf("expected format with mismatched sector count to error")
	}
}

// fluxDeltasFromBits converts a raw channel-bit sequence into an idealized
// flux delta stream (one transition per '1' bit, exactly on the nominal
// clock), the same technique pll_test.go's idealMFMFlux uses, generalized to
// an arbitrary formatted track's bits instead of a hand-written pattern.
func fluxDeltasFromBits(bits *bitstream.Bits, baseClock float64) []float64 {
	var out []float64
	run := 0.0
	for i := 0; i < bits.Len(); i++ {
		run += baseClock
		if bits.Get(i) {
			out = append(out, run)
			run = 0.0
		}
	}
	if run > 0 {
		out = append(out, run)
	}
	return out
}

func TestTrackDispatchFluxStreamEndToEnd(t *testing.T) {
	layout := chs.NewSectorLayout(1, 1, 3, 1, 256)
	sectors := make([][]byte, 3)
	for i := range sectors {
		sectors[i] = make([]byte, 256)
		for j := range sectors[i] {
			sectors[i][j] = byte(i*32 + j)
		}
	}
	stream, err := system34.FormatTrack(layout, sectors, 0, 0, chs.NFromSize(256), 100000)
	if err != nil {
		t.Fatalf("FormatTrack: %v", err)
	}

	baseClock := pll.DefaultBaseClock
	deltas := fluxDeltasFromBits(stream.Bits, baseClock)

	sharedCtx := shared.NewDiskContext()
	ft := NewFluxStreamTrack(chs.NewDiskCh(0, 0), SchemaSystem34, sharedCtx)
	ft.AddRevolution(deltas, chs.RPM300.IndexTime())

	clockHint := baseClock
	rpmHint := chs.RPM300
	if err := ft.DecodeRevolutions(&clockHint, &rpmHint); err != nil {
		t.Fatalf("DecodeRevolutions: %v", err)
	}
	ft.AnalyzeRevolutions()

	tr := NewFluxStreamTrackVariant(ft)
	if tr.Kind != KindFluxStream {
		t.Fatalf("Kind = %v, want KindFluxStream", tr.Kind)
	}
	if tr.Metadata() == nil {
		t.Fatalf("expected non-nil Metadata() once a revolution has decoded")
	}

	list := tr.SectorList()
	if len(list) != 3 {
		t.Fatalf("SectorList len = %d, want 3", len(list))
	}

	q := chs.NewDiskChsnQuery(1).WithN(chs.NFromSize(256))
	read, err := tr.ReadSector(q, 0, chs.RwScopeDataOnly)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if !read.DataCrcValid {
		t.Errorf("expected valid data CRC from cleanly decoded flux, got %+v", read)
	}
	if len(read.Data) != 256 || read.Data[0] != 0 {
		t.Errorf("unexpected sector 1 payload: len=%d first=%#x", len(read.Data), read.Data[0])
	}
}

func TestTrackDispatchFluxStreamUnresolvedIsResolveError(t *testing.T) {
	ft := NewFluxStreamTrack(chs.NewDiskCh(0, 0), SchemaSystem34, shared.NewDiskContext())
	tr := NewFluxStreamTrackVariant(ft)
	if _, err := tr.ReadSector(chs.NewDiskChsnQuery(1), 0, chs.RwScopeAll); err == nil {
		t.Errorf("expected ResolveError before any revolution decoded")
	}
	if tr.Stream() != nil {
		t.Errorf("expected nil Stream() before any revolution decoded")
	}
}
