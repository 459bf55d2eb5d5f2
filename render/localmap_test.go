package render

import (
	"testing"

	"github.com/flybywiresim/ndterrain-core/accel"
	"github.com/flybywiresim/ndterrain-core/terrain"
)

func TestProjectLocalMapArcModeOutOfFanIsInvalid(t *testing.T) {
	acc := accel.NewCPUPool(2)
	tex, _ := acc.UploadGrid(make([]int16, 100*100), 100, 100)

	out := NewLocalMap(756, 492)
	ego := EgoFrame{EgoPixelX: 50, EgoPixelY: 50, LatStep: 0.001, LonStep: 0.001}
	aircraft := AircraftPosition{Lat: 47, Lon: 11, HeadingDeg: 0}

	if err := ProjectLocalMap(acc, tex, out, aircraft, ego, 10, true); err != nil {
		t.Fatal(err)
	}

	// top-left corner pixel is far outside the arc's fan.
	if v := out.At(0, 0); v != terrain.Invalid {
		t.Errorf("expected Invalid outside the arc fan, got %d", v)
	}
}

func TestMetersPerPixelDoublesInArcMode(t *testing.T) {
	rose := MetersPerPixel(10, 492, false)
	arc := MetersPerPixel(10, 492, true)
	if arc != 2*rose {
		t.Errorf("expected arc-mode meters-per-pixel to double: rose=%v arc=%v", rose, arc)
	}
}
