package render

import (
	"bytes"
	"image/png"
	"testing"
)

func TestNewDisplayGeometryDimensions(t *testing.T) {
	arc := NewDisplayGeometry(true)
	if arc.MapWidth != 756 || arc.MapHeight != 492 {
		t.Errorf("arc mode dimensions wrong: %+v", arc)
	}
	rose := NewDisplayGeometry(false)
	if rose.MapWidth != 678 || rose.MapHeight != 250 {
		t.Errorf("rose mode dimensions wrong: %+v", rose)
	}
	if arc.MapOffsetX != (CanvasSize-arc.MapWidth)/2 {
		t.Errorf("arc MapOffsetX not centered: %+v", arc)
	}
}

func TestEncodePNGProducesCanvasSizedImage(t *testing.T) {
	c := NewCanvas()
	data, err := EncodePNG(c)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	b := img.Bounds()
	if b.Dx() != CanvasSize || b.Dy() != CanvasSize {
		t.Errorf("expected %dx%d PNG, got %dx%d", CanvasSize, CanvasSize, b.Dx(), b.Dy())
	}
}

func TestPaintFullPlacesMapAtOffset(t *testing.T) {
	geom := NewDisplayGeometry(false)
	f := &Frame{Width: geom.MapWidth, Height: geom.MapHeight, Pixels: make([]RGBA, geom.MapWidth*(geom.MapHeight+1))}
	*f.at(0, 0) = colorHighRed

	c := NewCanvas()
	paintFull(c, f, geom)

	if got := c.get(geom.MapOffsetX, RenderingMapStartOffsetY); got != colorHighRed {
		t.Errorf("expected painted pixel at map origin, got %+v", got)
	}
	if got := c.get(0, 0); got != backgroundColor {
		t.Errorf("outside the map region should stay background, got %+v", got)
	}
}

func TestBuildMetadataNormalModeMaxAboveRedIsCaution(t *testing.T) {
	th := testThresholdsNormal()
	th.MaxElevation = 9000 // >= HighDensityRed (5000)
	meta := BuildMetadata(th, 0, 10, 1)

	if meta.MaximumElevationMode != ModeCaution {
		t.Errorf("max elevation above HighDensityRed should report caution, got %v", meta.MaximumElevationMode)
	}
}

func TestResetMetadataMatchesSpec(t *testing.T) {
	m := ResetMetadata()
	if m.MinimumElevation != -1 || m.MaximumElevation != -1 || !m.FirstFrame || m.FrameByteCount != 0 || m.DisplayRange != 0 || m.DisplayMode != 0 {
		t.Errorf("reset metadata does not match §4.10, got %+v", m)
	}
}
