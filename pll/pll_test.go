package pll

import "testing"

// idealMFMFlux builds a flux delta sequence for the given MFM bit pattern
// (clock/data interleaved), one delta per '1' bit, at exactly the nominal
// clock rate -- the easiest case a PLL must track losslessly.
func idealMFMFlux(cfg Config, bits []bool) []float64 {
	var out []float64
	run := 0.0
	for _, b := range bits {
		run += cfg.BaseClock
		if b {
			out = append(out, run)
			run = 0.0
		}
	}
	if run > 0 {
		out = append(out, run)
	}
	return out
}

func TestDecodeMFMRecoversBitCount(t *testing.T) {
	cfg := DefaultConfig()
	// A1 A1 A1 sync pattern in MFM channel bits (clock+data interleaved),
	// 3 bytes = 48 channel bits.
	pattern := []bool{
		false, true, false, false, false, true, false, false, true, false, false, false, true, false, false, true,
		false, true, false, false, false, true, false, false, true, false, false, false, true, false, false, true,
		false, true, false, false, false, true, false, false, true, false, false, false, true, false, false, true,
	}
	flux := idealMFMFlux(cfg, pattern)

	d := NewDecoder(cfg)
	res := d.DecodeMFM(flux)

	if res.Bits.Len() == 0 {
		t.Fatalf("expected decoded bits, got none")
	}
	if res.Bits.Len() != len(pattern) {
		t.Errorf("decoded %d bits, want %d", res.Bits.Len(), len(pattern))
	}
	if res.FluxStats.Total != uint32(len(flux)) {
		t.Errorf("FluxStats.Total = %d, want %d", res.FluxStats.Total, len(flux))
	}
	if res.FluxStats.TooShort != 0 || res.FluxStats.TooLong != 0 {
		t.Errorf("unexpected out-of-range flux classifications: %+v", res.FluxStats)
	}
}

func TestDecodeMFMFindsSyncMarker(t *testing.T) {
	cfg := DefaultConfig()
	// A1 A1 A1 sync (0x4489 x3) followed by an encoded 0xFB tag (0x5545):
	// the decoder reports the marker once 16 more channel bits follow it.
	pattern := []bool{
		false, true, false, false, false, true, false, false, true, false, false, false, true, false, false, true,
		false, true, false, false, false, true, false, false, true, false, false, false, true, false, false, true,
		false, true, false, false, false, true, false, false, true, false, false, false, true, false, false, true,
		false, true, false, true, false, true, false, true, false, true, false, false, false, true, false, true,
	}
	flux := idealMFMFlux(cfg, pattern)

	d := NewDecoder(cfg)
	res := d.DecodeMFM(flux)

	if len(res.Markers) == 0 {
		t.Errorf("expected at least one marker detected in A1 A1 A1 sync pattern")
	}
}

func TestDecodeFMProducesBits(t *testing.T) {
	cfg := DefaultConfig()
	fmClock := cfg.BaseClock * 2.0
	var flux []float64
	for i := 0; i < 64; i++ {
		flux = append(flux, fmClock)
	}

	d := NewDecoder(cfg)
	res := d.DecodeFM(flux)

	if res.Bits.Len() == 0 {
		t.Fatalf("expected decoded bits, got none")
	}
	if res.FluxStats.Total != uint32(len(flux)) {
		t.Errorf("FluxStats.Total = %d, want %d", res.FluxStats.Total, len(flux))
	}
}

func TestWorkingPeriodStaysWithinBounds(t *testing.T) {
	cfg := DefaultConfig()
	// Slightly slow flux (disk spinning a bit under nominal speed) should
	// pull the working clock up, but never past the configured bound.
	var flux []float64
	for i := 0; i < 200; i++ {
		flux = append(flux, cfg.BaseClock*2.05)
	}

	d := NewDecoder(cfg)
	res := d.DecodeMFM(flux)

	maxClock := cfg.BaseClock * (1 + cfg.MaxAdjust)
	minClock := cfg.BaseClock * (1 - cfg.MaxAdjust)
	if res.WorkingPeriod > maxClock || res.WorkingPeriod < minClock {
		t.Errorf("WorkingPeriod = %v, want within [%v, %v]", res.WorkingPeriod, minClock, maxClock)
	}
}

func TestFromPresetReturnsUsableConfig(t *testing.T) {
	for _, p := range []Preset{PresetAggressive, PresetConservative} {
		cfg := FromPreset(p)
		if cfg.BaseClock <= 0 || cfg.MaxAdjust <= 0 {
			t.Errorf("preset %v produced invalid config %+v", p, cfg)
		}
	}
}
