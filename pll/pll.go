// Package pll implements the Phase-Locked Loop flux decoder (spec §4.1):
// it converts a stream of flux delta times (seconds between adjacent
// magnetic flux reversals) into a clocked channel-bit stream plus marker
// offsets and decode diagnostics.
//
// The overall Decoder shape (a struct carrying PLL state, constructed once
// per revolution via a NewDecoder constructor) follows the teacher's
// original pll/pll.go Decoder/NewDecoder convention. The decode loop itself
// — flux-length classification by clock-tick count, the adjust_gate
// phase/clock correction scheme, and the exact constants — is grounded on
// the original Rust implementation (flux/pll.rs decode_mfm/decode_fm),
// since spec §4.1 describes that algorithm in detail and the teacher's own
// PLL (an SCP-style centre-locked loop tuned for its own capture format)
// takes a materially different approach.
package pll

import "github.com/dbalsom/fluxfox-sub001/bitstream"

// Preset selects a built-in PLL tuning.
type Preset int

const (
	PresetAggressive Preset = iota
	PresetConservative
)

// Config holds the tunable PLL coefficients (spec §4.1 Configuration).
type Config struct {
	// BaseClock is the nominal seconds-per-clock-cell at 300 RPM, before
	// any RPM scaling is applied.
	BaseClock float64
	// MaxAdjust bounds the working clock period to
	// BaseClock * (1 +/- MaxAdjust).
	MaxAdjust float64
	// PhaseGain is the loop filter's phase correction coefficient.
	PhaseGain float64
	// ClockGain is the loop filter's clock-rate correction coefficient.
	ClockGain float64
}

// DefaultBaseClock is the nominal 2us clock cell for a 300 RPM, 250 kbps
// disk (spec §4.2 fallback; original source flux/pll.rs BASE_CLOCK).
const DefaultBaseClock = 2e-6

// DefaultConfig returns the PLL coefficients used by both built-in presets;
// spec §4.1 defines a single set of constants and offers Aggressive /
// Conservative only as named slots for future tuning (kept distinct here so
// a caller can diverge them later without changing the call sites).
func DefaultConfig() Config {
	return Config{
		BaseClock: DefaultBaseClock,
		MaxAdjust: 0.15,
		PhaseGain: 0.65,
		ClockGain: 0.05,
	}
}

// FromPreset returns the Config for a named preset.
func FromPreset(p Preset) Config {
	switch p {
	case PresetConservative:
		return DefaultConfig()
	default:
		return DefaultConfig()
	}
}

// FluxStats tallies how the decoder classified every flux interval in one
// revolution (spec §4.1 Failure semantics / §8 invariant 2).
type FluxStats struct {
	Total        uint32
	Short        uint32
	Medium       uint32
	Long         uint32
	TooShort     uint32
	TooLong      uint32
	TooSlowBits  uint32
	ShortTime    float64
	ShortestFlux float64
	LongestFlux  float64
}

// StatEntry is one loop-filter diagnostic sample, emitted per flux
// transition (original source flux/pll.rs PllDecodeStatEntry).
type StatEntry struct {
	Time      float64
	Len       float64
	Predicted float64
	Clock     float64
	WindowMin float64
	WindowMax float64
	PhaseErr  float64
	PhaseAdj  float64
}

// Result is everything a single revolution decode produces.
type Result struct {
	Bits          *bitstream.Bits
	FluxStats     FluxStats
	Stats         []StatEntry
	Markers       []int // bit offsets of detected sync markers
	WorkingPeriod float64
}

// Decoder runs the PLL loop over one revolution's flux deltas.
type Decoder struct {
	cfg Config
}

// NewDecoder creates a PLL decoder using cfg (typically DefaultConfig(),
// possibly with BaseClock overridden by a clock hint or RPM scaling).
func NewDecoder(cfg Config) *Decoder {
	return &Decoder{cfg: cfg}
}

// DecodeMFM runs the MFM decode algorithm (spec §4.1 Algorithm (MFM)) over
// flux delta times in seconds.
func (d *Decoder) DecodeMFM(fluxDeltas []float64) Result {
	cfg := d.cfg
	bits := bitstream.NewBits(len(fluxDeltas) * 3)

	workingPeriod := cfg.BaseClock
	minClock := workingPeriod - workingPeriod*cfg.MaxAdjust
	maxClock := workingPeriod + workingPeriod*cfg.MaxAdjust

	time := workingPeriod / 2.0
	lastFluxTime := 0.0
	var shiftReg uint64
	var markers []int

	var phaseError, phaseAdjust float64
	adjustGate := 0

	var stats FluxStats
	stats.Total = uint32(len(fluxDeltas))
	var statEntries []StatEntry

	for idx, deltaTime := range fluxDeltas {
		if idx == 0 {
			stats.ShortestFlux = deltaTime
		} else if deltaTime < stats.ShortestFlux {
			stats.ShortestFlux = deltaTime
		}
		if deltaTime > stats.LongestFlux {
			stats.LongestFlux = deltaTime
		}

		thisFluxTime := lastFluxTime + deltaTime

		time += phaseAdjust
		clockTicksSinceFlux := 0
		for time < thisFluxTime {
			time += workingPeriod
			clockTicksSinceFlux++
		}

		fluxLength := clockTicksSinceFlux

		switch {
		case fluxLength < 2:
			stats.TooShort++
		case fluxLength > 4:
			stats.TooLong++
			stats.TooSlowBits += uint32(fluxLength - 4)
		}

		switch fluxLength {
		case 2:
			stats.ShortTime += deltaTime
			stats.Short++
		case 3:
			stats.Medium++
		case 4:
			stats.Long++
		}

		if fluxLength > 0 {
			for i := 0; i < fluxLength-1; i++ {
				bits.Push(false)
				shiftReg <<= 1
			}
			bits.Push(true)
			shiftReg <<= 1
			shiftReg |= 1
		}

		// MFM sync detection: three A1 bytes encoded with a clock
		// violation produce the fixed channel pattern 0x4489 per byte.
		if shiftReg&0xFFFFFFFFFFFF0000 == 0x4489448944890000 {
			markers = append(markers, bits.Len()-64)
		}

		windowMax := (time - thisFluxTime) + deltaTime
		windowMin := windowMax - workingPeriod
		windowCenter := windowMax - workingPeriod/2.0

		lastPhaseError := phaseError
		phaseError = deltaTime - windowCenter

		if phaseError < 0 {
			if adjustGate < 0 {
				adjustGate--
			} else {
				adjustGate = -1
			}
		} else {
			if adjustGate > 0 {
				adjustGate++
			} else {
				adjustGate = 1
			}
		}

		minPhaseError := phaseError
		if absF64(lastPhaseError) < absF64(phaseError) {
			minPhaseError = lastPhaseError
		}
		phaseAdjust = cfg.PhaseGain * minPhaseError

		statEntries = append(statEntries, StatEntry{
			Time:      time,
			Len:       deltaTime,
			Predicted: windowMin + phaseAdjust,
			Clock:     workingPeriod,
			WindowMin: windowMin,
			WindowMax: windowMax,
			PhaseErr:  phaseError,
			PhaseAdj:  phaseAdjust,
		})

		if absI(adjustGate) > 1 {
			workingPeriod += cfg.ClockGain * phaseError
			workingPeriod = clamp(workingPeriod, minClock, maxClock)
		}

		lastFluxTime = thisFluxTime
	}

	return Result{
		Bits:          bits,
		FluxStats:     stats,
		Stats:         statEntries,
		Markers:       markers,
		WorkingPeriod: workingPeriod,
	}
}

// DecodeFM runs the FM decode algorithm (spec §4.1 FM variant).
func (d *Decoder) DecodeFM(fluxDeltas []float64) Result {
	cfg := d.cfg
	bits := bitstream.NewBits(len(fluxDeltas) * 2)

	workingPeriod := cfg.BaseClock * 2.0
	minClock := workingPeriod - workingPeriod*cfg.MaxAdjust
	maxClock := workingPeriod + workingPeriod*cfg.MaxAdjust

	time := -workingPeriod / 2.0
	lastFluxTime := 0.0
	var shiftReg uint64
	var markers []int
	phaseAccumulator := 0.0

	var stats FluxStats
	stats.Total = uint32(len(fluxDeltas))

	for idx, deltaTime := range fluxDeltas {
		if idx == 0 {
			stats.ShortestFlux = deltaTime
		} else if deltaTime < stats.ShortestFlux {
			stats.ShortestFlux = deltaTime
		}
		if deltaTime > stats.LongestFlux {
			stats.LongestFlux = deltaTime
		}

		nextFluxTime := lastFluxTime + deltaTime

		clockTicksSinceFlux := 0
		for (time + phaseAccumulator) < nextFluxTime {
			time += workingPeriod
			clockTicksSinceFlux++
		}
		time += phaseAccumulator
		phaseAccumulator = 0.0

		fluxLength := clockTicksSinceFlux
		switch {
		case fluxLength == 0:
			stats.TooShort++
		case fluxLength == 1:
			stats.ShortTime += deltaTime
			stats.Short++
		case fluxLength == 2:
			stats.Long++
		default:
			stats.TooLong++
			stats.TooSlowBits += uint32(fluxLength - 2)
		}

		if fluxLength > 0 {
			for i := 0; i < fluxLength-1; i++ {
				bits.Push(false)
				shiftReg <<= 1
			}
			bits.Push(true)
			shiftReg <<= 1
			shiftReg |= 1
		}

		if shiftReg&0xAAAAAAAAAAAAAAAA == 0xAAAAAAAAAAAAA02A {
			markers = append(markers, bits.Len()-16)
		}

		predictedFluxTime := lastFluxTime + float64(clockTicksSinceFlux)*workingPeriod
		phaseError := nextFluxTime - predictedFluxTime
		pTerm := (cfg.PhaseGain * phaseError) / workingPeriod

		workingPeriod += pTerm
		workingPeriod = clamp(workingPeriod, minClock, maxClock)

		phaseAccumulator += phaseError
		if absF64(phaseAccumulator) > workingPeriod {
			phaseAccumulator = modF64(phaseAccumulator, workingPeriod)
		}

		lastFluxTime = nextFluxTime
	}

	return Result{
		Bits:          bits,
		FluxStats:     stats,
		Markers:       markers,
		WorkingPeriod: workingPeriod,
	}
}

func absF64(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func absI(i int) int {
	if i < 0 {
		return -i
	}
	return i
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func modF64(a, b float64) float64 {
	if b == 0 {
		return a
	}
	for a > b {
		a -= b
	}
	for a < -b {
		a += b
	}
	return a
}
