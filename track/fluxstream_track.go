package track

import (
	"fmt"
	"math"

	"github.com/dbalsom/fluxfox-sub001/bitstream"
	"github.com/dbalsom/fluxfox-sub001/chs"
	"github.com/dbalsom/fluxfox-sub001/fferr"
	"github.com/dbalsom/fluxfox-sub001/pll"
	"github.com/dbalsom/fluxfox-sub001/shared"
)

// FluxRevolution is one physical rotation of raw flux, possibly decoded
// (spec §3 FluxRevolution). It is constructed by a parser, decoded once into
// a BitStreamTrack, then immutable.
//
// Grounded on original_source/src/track/fluxstream.rs's FluxRevolution
// struct and its RawFluxIterator (Synthetic skip behavior).
type FluxRevolution struct {
	Ch         chs.DiskCh
	IndexTime  float64
	FluxDeltas []float64
	Synthetic  bool

	// Populated by decode.
	Bitstream *bitstream.Bits
	Markers   []int
	PllStats  pll.FluxStats
	Encoding  chs.Encoding
	DataRate  chs.DataRate
}

// ftCount returns the number of flux transitions in this revolution, used by
// the base-clock FT-count heuristic (spec §4.2).
func (r *FluxRevolution) ftCount() int {
	return len(r.FluxDeltas)
}

// FluxStreamTrack holds 1..N revolutions of raw flux for a single physical
// track, decodes each independently, and presents the best one as a
// BitStreamTrack (spec §4.2).
type FluxStreamTrack struct {
	Ch       chs.DiskCh
	Encoding chs.Encoding
	Schema   SchemaKind
	DataRate chs.DataRate

	revolutions        []*FluxRevolution
	decodedRevolutions []*BitStreamTrack
	bestRevolution     int
	resolved           *BitStreamTrack

	shared *shared.DiskContext
}

// NewFluxStreamTrack creates an empty flux track for ch, to be populated via
// AddRevolution.
func NewFluxStreamTrack(ch chs.DiskCh, schema SchemaKind, sharedCtx *shared.DiskContext) *FluxStreamTrack {
	return &FluxStreamTrack{Ch: ch, Schema: schema, shared: sharedCtx}
}

// AddRevolution appends one physical rotation's raw flux deltas (spec §4.2
// add_revolution).
func (f *FluxStreamTrack) AddRevolution(deltas []float64, indexTime float64) {
	f.revolutions = append(f.revolutions, &FluxRevolution{
		Ch:         f.Ch,
		IndexTime:  indexTime,
		FluxDeltas: append([]float64(nil), deltas...),
	})
}

// RevolutionCount returns the number of revolutions held (including any
// synthesized ones).
func (f *FluxStreamTrack) RevolutionCount() int {
	return len(f.revolutions)
}

// ftCountThresholds are the FT-count base-clock heuristic boundaries (spec
// §4.2, §9 Open Questions: "implementers should keep the thresholds
// configurable"). Exposed as package variables rather than inline constants
// so a caller with noisy HD/DD boundary flux can retune them.
var (
	FTThresholdHigh = 50000 // >= this many transitions -> 1us base clock
	FTThresholdLow  = 20000 // in [FTThresholdLow, FTThresholdHighBand) -> 2us
	FTThresholdHighBand = 41666
)

// DecodeRevolutions runs the PLL on every revolution, populating
// decodedRevolutions (spec §4.2 decode_revolutions). clockHint and rpmHint
// are optional explicit overrides; nil selects the heuristic chain.
func (f *FluxStreamTrack) DecodeRevolutions(clockHint *float64, rpmHint *chs.RPM) error {
	f.decodedRevolutions = make([]*BitStreamTrack, len(f.revolutions))

	for i, rev := range f.revolutions {
		baseRPM := chs.RPM300
		if rpmHint != nil {
			baseRPM = *rpmHint
		} else if rpm, ok := chs.RPMFromIndexTime(rev.IndexTime); ok {
			baseRPM = rpm
		}

		baseClock, haveHeuristic := selectBaseClock(clockHint, rev)
		if !haveHeuristic {
			baseClock = histogramBaseClock(rev.FluxDeltas, 0.02, pll.DefaultBaseClock)
		}
		baseClock = scaleClockForRPM(baseClock, baseRPM)

		// Refine using a start-of-track histogram (first 2% of the
		// revolution), per spec §4.2 "Histogram refinement": adopt it only
		// if it differs from the chosen base clock by less than 25%.
		if refined, ok := histogramPeak(rev.FluxDeltas, 0.02); ok {
			candidate := refined / 2.0
			if absRatio(candidate, baseClock) < 0.25 {
				baseClock = candidate
			}
		}

		cfg := pll.FromPreset(pll.PresetAggressive)
		cfg.BaseClock = baseClock
		decoder := pll.NewDecoder(cfg)

		var result pll.Result
		encoding := f.Encoding
		if encoding == chs.EncodingUnknown {
			encoding = chs.EncodingMFM
		}
		if encoding == chs.EncodingFM {
			result = decoder.DecodeFM(rev.FluxDeltas)
		} else {
			result = decoder.DecodeMFM(rev.FluxDeltas)
		}

		rev.Bitstream = result.Bits
		rev.Markers = result.Markers
		rev.PllStats = result.FluxStats
		rev.Encoding = encoding
		rev.DataRate = chs.DataRate(math.Round(1.0 / (2.0 * baseClock) / 1000.0))

		// A revolution producing fewer than 100 decoded bits is degenerate
		// (spec §4.1 Failure semantics) and is left undecoded.
		if rev.Bitstream.Len() < 100 {
			continue
		}

		bt, err := NewBitStreamTrack(BitStreamTrackParams{
			Ch:        f.Ch,
			Encoding:  encoding,
			Schema:    f.Schema,
			DataRate:  rev.DataRate,
			Rpm:       baseRPM,
			BitcellCt: rev.Bitstream.Len(),
			Data:      rev.Bitstream.Bytes(),
		}, f.shared)
		if err != nil {
			return fmt.Errorf("track: decode revolution %d: %w", i, err)
		}
		f.decodedRevolutions[i] = bt
	}
	return nil
}

// selectBaseClock applies the explicit-hint and FT-count steps of the
// base-clock selection chain (spec §4.2, steps 1-2).
func selectBaseClock(hint *float64, rev *FluxRevolution) (float64, bool) {
	if hint != nil {
		return *hint, true
	}
	ft := rev.ftCount()
	switch {
	case ft >= FTThresholdLow && ft < FTThresholdHighBand:
		return 2e-6, true
	case ft >= FTThresholdHigh:
		return 1e-6, true
	default:
		return 0, false
	}
}

// scaleClockForRPM scales a 300-RPM-nominal base clock to an observed RPM
// family by multiplying it by 300/rpm, so a faster-spinning disk gets a
// proportionally shorter clock cell (spec §4.2).
func scaleClockForRPM(baseClock float64, rpm chs.RPM) float64 {
	return baseClock * (300.0 / float64(rpm))
}

// histogramBaseClock and histogramPeak implement the "first-2%-of-track
// histogram peak" base-clock fallback (spec §4.2 step 3): the most common
// flux-delta value, bucketed to a coarse resolution, taken as the base
// transition time.
func histogramPeak(deltas []float64, fraction float64) (float64, bool) {
	n := int(float64(len(deltas)) * fraction)
	if n < 8 {
		n = len(deltas)
	}
	if n == 0 {
		return 0, false
	}
	sample := deltas[:n]

	const bucketWidth = 1e-7 // 0.1us buckets
	counts := make(map[int]int)
	for _, d := range sample {
		bucket := int(d / bucketWidth)
		counts[bucket]++
	}
	bestBucket, bestCount := 0, 0
	for b, c := range counts {
		if c > bestCount {
			bestBucket, bestCount = b, c
		}
	}
	if bestCount == 0 {
		return 0, false
	}
	return (float64(bestBucket) + 0.5) * bucketWidth, true
}

func histogramBaseClock(deltas []float64, fraction float64, fallback float64) float64 {
	if peak, ok := histogramPeak(deltas, fraction); ok {
		return peak / 2.0
	}
	return fallback
}

func absRatio(a, b float64) float64 {
	if b == 0 {
		return 1
	}
	d := (a - b) / b
	if d < 0 {
		return -d
	}
	return d
}

// SynthesizeRevolutions splices each adjacent pair of source revolutions
// into an additional synthetic revolution (spec §4.2 "Synthetic
// revolutions"): the tail of r_i joined with the head of r_{i+1}. Synthetic
// revolutions are diagnostic only: they are skipped by raw-flux iteration
// and never chosen as the best revolution unless no source revolution
// decoded (spec §9 Open Questions), which AnalyzeRevolutions enforces.
func (f *FluxStreamTrack) SynthesizeRevolutions() {
	n := len(f.revolutions)
	if n < 2 {
		return
	}
	var synthetic []*FluxRevolution
	for i := 0; i < n-1; i++ {
		a, b := f.revolutions[i], f.revolutions[i+1]
		half := len(a.FluxDeltas) / 2
		bHalf := len(b.FluxDeltas) / 2
		if half == 0 || bHalf == 0 {
			continue
		}
		deltas := append(append([]float64(nil), a.FluxDeltas[half:]...), b.FluxDeltas[:bHalf]...)
		synthetic = append(synthetic, &FluxRevolution{
			Ch:         f.Ch,
			IndexTime:  (a.IndexTime + b.IndexTime) / 2,
			FluxDeltas: deltas,
			Synthetic:  true,
		})
	}
	f.revolutions = append(f.revolutions, synthetic...)
}

// AnalyzeRevolutions picks bestRevolution by quality score (spec §4.2
// analyze_revolutions: BitStreamTrack.CalcQualityScore). Synthetic
// revolutions are only eligible when no source revolution decoded (spec §9).
func (f *FluxStreamTrack) AnalyzeRevolutions() {
	if len(f.revolutions) == 0 {
		return
	}

	anySourceDecoded := false
	for i, rev := range f.revolutions {
		if !rev.Synthetic && f.decodedRevolutions[i] != nil {
			anySourceDecoded = true
			break
		}
	}

	best := 0
	bestScore := -1 << 31
	for i, bt := range f.decodedRevolutions {
		if bt == nil {
			continue
		}
		if f.revolutions[i].Synthetic && anySourceDecoded {
			continue
		}
		score := bt.CalcQualityScore()
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	f.bestRevolution = best
	if bt := f.decodedRevolutions[best]; bt != nil {
		f.Encoding = bt.Encoding
	}
}

// getBitstream returns the resolved override, or the decoded best
// revolution, or nil if neither is available (spec §7 kind 4: ResolveError).
func (f *FluxStreamTrack) getBitstream() *BitStreamTrack {
	if f.resolved != nil {
		return f.resolved
	}
	if f.bestRevolution < len(f.decodedRevolutions) {
		return f.decodedRevolutions[f.bestRevolution]
	}
	return nil
}

// SetResolved overrides the decoded-revolution dispatch with an explicit
// BitStreamTrack, e.g. after a caller edits a specific revolution's content.
func (f *FluxStreamTrack) SetResolved(bt *BitStreamTrack) {
	f.resolved = bt
}

// FluxDeltas returns the flux deltas of the best revolution (spec §6
// FluxStreamTrack::flux_deltas()).
func (f *FluxStreamTrack) FluxDeltas() []float64 {
	if f.bestRevolution >= len(f.revolutions) {
		return nil
	}
	return f.revolutions[f.bestRevolution].FluxDeltas
}

// RawFluxIter returns every flux delta across every non-synthetic
// revolution, concatenated in order (spec §6 raw_flux_iter, grounded on
// original_source/src/track/fluxstream.rs RawFluxIterator).
func (f *FluxStreamTrack) RawFluxIter() []float64 {
	var out []float64
	for _, rev := range f.revolutions {
		if rev.Synthetic {
			continue
		}
		out = append(out, rev.FluxDeltas...)
	}
	return out
}

// Info returns the visualizer-facing summary of this track, delegating to
// the resolved bitstream when available (spec §6 Track::info()).
func (f *FluxStreamTrack) Info() TrackInfo {
	if bt := f.getBitstream(); bt != nil {
		info := bt.Info()
		info.Resolution = chs.ResolutionFluxStream
		return info
	}
	return TrackInfo{Resolution: chs.ResolutionFluxStream, Encoding: f.Encoding, Schema: f.Schema, DataRate: f.DataRate}
}

func (f *FluxStreamTrack) HasSectorID(id chs.DiskChsnQuery) bool {
	if bt := f.getBitstream(); bt != nil {
		return bt.HasSectorID(id)
	}
	return false
}

func (f *FluxStreamTrack) SectorList() []SectorMapEntry {
	if bt := f.getBitstream(); bt != nil {
		return bt.SectorList()
	}
	return nil
}

func (f *FluxStreamTrack) ReadSector(id chs.DiskChsnQuery, offset int, scope chs.RwScope) (ReadSectorResult, error) {
	bt := f.getBitstream()
	if bt == nil {
		return ReadSectorResult{}, fferr.ErrResolve
	}
	return bt.ReadSector(id, offset, scope)
}

func (f *FluxStreamTrack) ScanSector(id chs.DiskChsnQuery, offset int) (ScanSectorResult, error) {
	bt := f.getBitstream()
	if bt == nil {
		return ScanSectorResult{}, fferr.ErrResolve
	}
	return bt.ScanSector(id, offset)
}

func (f *FluxStreamTrack) WriteSector(id chs.DiskChsnQuery, offset int, data []byte, scope chs.RwScope, writeDeleted bool) (WriteSectorResult, error) {
	bt := f.getBitstream()
	if bt == nil {
		return WriteSectorResult{}, fferr.ErrResolve
	}
	return bt.WriteSector(id, offset, data, scope, writeDeleted)
}

func (f *FluxStreamTrack) RecalculateSectorCrc(id chs.DiskChsnQuery, offset int) error {
	bt := f.getBitstream()
	if bt == nil {
		return fferr.ErrResolve
	}
	return bt.RecalculateSectorCrc(id, offset)
}

func (f *FluxStreamTrack) ReadAllSectors(n uint8, eot uint8) (ReadTrackResult, error) {
	bt := f.getBitstream()
	if bt == nil {
		return ReadTrackResult{}, fferr.ErrResolve
	}
	return bt.ReadAllSectors(n, eot)
}

func (f *FluxStreamTrack) NextID(cur chs.DiskChs) *chs.DiskChsn {
	if bt := f.getBitstream(); bt != nil {
		return bt.NextID(cur)
	}
	return nil
}

func (f *FluxStreamTrack) Read() (ReadTrackResult, error) {
	bt := f.getBitstream()
	if bt == nil {
		return ReadTrackResult{}, fferr.ErrResolve
	}
	return bt.Read(), nil
}

func (f *FluxStreamTrack) ReadRaw() (ReadTrackResult, error) {
	bt := f.getBitstream()
	if bt == nil {
		return ReadTrackResult{}, fferr.ErrResolve
	}
	return bt.ReadRaw(), nil
}

func (f *FluxStreamTrack) Analysis() (TrackAnalysis, error) {
	bt := f.getBitstream()
	if bt == nil {
		return TrackAnalysis{}, fferr.ErrResolve
	}
	return bt.Analysis(), nil
}
