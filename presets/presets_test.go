package presets

import "testing"

func TestDefaultLoadsKnownFormats(t *testing.T) {
	reg, err := Default()
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}

	pc360, ok := reg.Get("pc360")
	if !ok {
		t.Fatalf("expected pc360 preset to exist")
	}
	layout := pc360.Layout()
	if got := layout.TotalSectors(); got != 40*2*9 {
		t.Errorf("pc360 TotalSectors() = %d, want %d", got, 40*2*9)
	}

	amiga, ok := reg.Get("amiga880")
	if !ok {
		t.Fatalf("expected amiga880 preset to exist")
	}
	if amiga.SectorOff != 0 {
		t.Errorf("amiga880 SectorOff = %d, want 0", amiga.SectorOff)
	}
}

func TestNamesNonEmpty(t *testing.T) {
	reg, err := Default()
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}
	if len(reg.Names()) == 0 {
		t.Errorf("expected at least one preset name")
	}
}
