package render

import (
	"testing"

	"github.com/flybywiresim/ndterrain-core/accel"
	"github.com/flybywiresim/ndterrain-core/terrain"
)

func testThresholdsNormal() Thresholds {
	return Thresholds{
		Mode: ModeNormal,
		Normal: NormalThresholds{
			LowDensityGreen:   1000,
			HighDensityGreen:  2000,
			LowDensityYellow:  3000,
			HighDensityYellow: 4000,
			HighDensityRed:    5000,
		},
	}
}

func TestColorizeSentinelsIgnoreThresholds(t *testing.T) {
	local := NewLocalMap(4, 4)
	local.Data[0] = terrain.Water
	local.Data[1] = terrain.Unknown
	local.Data[2] = terrain.Invalid

	f, err := Colorize(accel.NewCPUPool(1), local, testThresholdsNormal(), 0, NewDefaultPatternMap())
	if err != nil {
		t.Fatal(err)
	}

	if got := *f.at(2, 0); got != colorTransparent {
		t.Errorf("invalid elevation should render transparent, got %+v", got)
	}
	if got := *f.at(1, 0); got != colorMagenta {
		t.Errorf("unknown elevation should render magenta, got %+v", got)
	}
}

func TestColorizeFrameHasMetadataRow(t *testing.T) {
	local := NewLocalMap(4, 4)
	f, err := Colorize(accel.NewCPUPool(1), local, testThresholdsNormal(), 0, NewDefaultPatternMap())
	if err != nil {
		t.Fatal(err)
	}
	if f.Height != local.Height {
		t.Fatalf("Frame.Height should track the map payload, got %d", f.Height)
	}
	if len(f.Pixels) != f.Width*(f.Height+1) {
		t.Fatalf("expected an extra metadata row, got %d pixels for %dx%d", len(f.Pixels), f.Width, f.Height)
	}
}

func TestColorizeNormalHighDensityRed(t *testing.T) {
	th := testThresholdsNormal()
	got := colorizePixel(6000, th, 0, NewDefaultPatternMap(), 0, 0)
	if got != colorHighRed {
		t.Errorf("expected high-density red above HighDensityRed, got %+v", got)
	}
}

func TestColorizeBelowCutOffIsTransparent(t *testing.T) {
	th := testThresholdsNormal()
	got := colorizePixel(6000, th, 7000, NewDefaultPatternMap(), 0, 0)
	if got != colorTransparent {
		t.Errorf("elevation below cut-off should never draw, got %+v", got)
	}
}

func TestColorizePeaksSolidGreen(t *testing.T) {
	th := Thresholds{Mode: ModePeaks, Peaks: PeaksThresholds{LowerDensity: 1000, HigherDensity: 2000, SolidDensity: 3000}}
	got := colorizePixel(4000, th, 0, NewDefaultPatternMap(), 0, 0)
	if got != colorHighGreen {
		t.Errorf("expected solid-density peaks color to reuse high-green, got %+v", got)
	}
}

func TestFrameCloneDoesNotAliasSource(t *testing.T) {
	f := &Frame{Width: 2, Height: 2, Pixels: make([]RGBA, 6)}
	f.Pixels[0] = colorHighRed

	c := f.Clone()
	c.Pixels[0] = colorTransparent

	if f.Pixels[0] != colorHighRed {
		t.Fatalf("mutating the clone must not affect the source frame")
	}
}
