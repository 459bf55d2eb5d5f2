package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	ndmath "github.com/flybywiresim/ndterrain-core/math"
)

const (
	CanvasSize             = 768
	RenderingMapStartOffsetY = 128
	sweepAngularStep       = 4 // degrees per tick, round(90/1000*40)
	sweepTickInterval      = 40 // ms
	sweepFullSweepDegrees  = 90
)

var backgroundColor = RGBA{4, 4, 5, 255}

// DisplayGeometry is the per-side map placement derived from arc/rose
// mode, per §3.
type DisplayGeometry struct {
	ArcMode    bool
	MapWidth   int
	MapHeight  int
	MapOffsetX int
}

// NewDisplayGeometry computes MapWidth/MapHeight/MapOffsetX for the
// given mode, matching the fixed dimensions in §3 exactly.
func NewDisplayGeometry(arcMode bool) DisplayGeometry {
	g := DisplayGeometry{ArcMode: arcMode}
	if arcMode {
		g.MapWidth, g.MapHeight = 756, 492
	} else {
		g.MapWidth, g.MapHeight = 678, 250
	}
	g.MapOffsetX = (CanvasSize - g.MapWidth) / 2
	return g
}

// ElevationMode mirrors the outbound metadata's severity enumeration.
type ElevationMode int

const (
	ModePeaksSeverity ElevationMode = iota
	ModeCaution
	ModeWarning
)

// FrameMetadata is the outbound sidecar accompanying every emitted PNG,
// built directly from Thresholds per the §6 mapping — never decoded
// from the colorizer's embedded metadata row, which exists only for
// parity with the source's image-embedded convention.
type FrameMetadata struct {
	MinimumElevation     float32
	MinimumElevationMode ElevationMode
	MaximumElevation     float32
	MaximumElevationMode ElevationMode
	FirstFrame           bool
	DisplayRange         float32
	DisplayMode          int
	FrameByteCount       int
}

// BuildMetadata implements the §6 "Metadata mapping" section. In normal
// mode MinimumElevationMode is Warning when lowDensityYellow <=
// highDensityGreen (else PeaksSeverity), and MaximumElevationMode is
// Caution when maxElevation >= highDensityRed (else Warning). In peaks
// mode both modes are PeaksSeverity.
func BuildMetadata(t Thresholds, cutOffAltitude float32, displayRange float32, displayMode int) FrameMetadata {
	if t.Mode == ModeNormal {
		n := t.Normal
		minElev := max32(cutOffAltitude, n.LowDensityGreen)
		minMode := ModePeaksSeverity
		if n.LowDensityYellow <= n.HighDensityGreen {
			minMode = ModeWarning
		}
		maxMode := ModeWarning
		if t.MaxElevation >= n.HighDensityRed {
			maxMode = ModeCaution
		}
		return FrameMetadata{
			MinimumElevation:     minElev,
			MinimumElevationMode: minMode,
			MaximumElevation:     t.MaxElevation,
			MaximumElevationMode: maxMode,
			DisplayRange:         displayRange,
			DisplayMode:          displayMode,
		}
	}

	if t.MaxElevation < 0 {
		return FrameMetadata{
			MinimumElevation:     -1,
			MinimumElevationMode: ModePeaksSeverity,
			MaximumElevation:     0,
			MaximumElevationMode: ModePeaksSeverity,
			DisplayRange:         displayRange,
			DisplayMode:          displayMode,
		}
	}

	p := t.Peaks
	return FrameMetadata{
		MinimumElevation:     max32(p.LowerDensity, t.MinElevation),
		MinimumElevationMode: ModePeaksSeverity,
		MaximumElevation:     t.MaxElevation,
		MaximumElevationMode: ModePeaksSeverity,
		DisplayRange:         displayRange,
		DisplayMode:          displayMode,
	}
}

// ResetMetadata is the metadata sent on reconfiguration, per §4.10.
func ResetMetadata() FrameMetadata {
	return FrameMetadata{MinimumElevation: -1, MaximumElevation: -1, FirstFrame: true, FrameByteCount: 0, DisplayRange: 0, DisplayMode: 0}
}

// Canvas is the 768x768 RGBA screen buffer.
type Canvas struct {
	Pixels [CanvasSize * CanvasSize]RGBA
}

func NewCanvas() *Canvas {
	c := &Canvas{}
	for i := range c.Pixels {
		c.Pixels[i] = backgroundColor
	}
	return c
}

func (c *Canvas) set(x, y int, v RGBA) {
	if x < 0 || x >= CanvasSize || y < 0 || y >= CanvasSize {
		return
	}
	c.Pixels[y*CanvasSize+x] = v
}

func (c *Canvas) get(x, y int) RGBA {
	if x < 0 || x >= CanvasSize || y < 0 || y >= CanvasSize {
		return backgroundColor
	}
	return c.Pixels[y*CanvasSize+x]
}

// paintFull paints frame's map payload (its metadata row stripped)
// directly at (geom.MapOffsetX, RenderingMapStartOffsetY), with no
// sweep.
func paintFull(c *Canvas, frame *Frame, geom DisplayGeometry) {
	for y := 0; y < geom.MapHeight; y++ {
		for x := 0; x < geom.MapWidth; x++ {
			c.set(geom.MapOffsetX+x, RenderingMapStartOffsetY+y, *frame.at(x, y))
		}
	}
}

// paintSweep implements the arc-mode sweep transition of §4.9:
// pixels within [startAngle, endAngle] come from newFrame; the rest
// from prevFrame (or background if nil).
func paintSweep(c *Canvas, newFrame, prevFrame *Frame, geom DisplayGeometry, startAngle, endAngle float32) {
	for y := 0; y < geom.MapHeight; y++ {
		for x := 0; x < geom.MapWidth; x++ {
			dx := float32(x) - float32(CanvasSize)/2
			dy := float32(geom.MapHeight - y)
			dist := ndmath.Sqrt(dx*dx + dy*dy)

			var px RGBA
			if dist == 0 {
				px = *newFrame.at(x, y)
			} else {
				angle := ndmath.Degrees(ndmath.SafeACos(dy / dist))
				if angle >= startAngle && angle <= endAngle {
					px = *newFrame.at(x, y)
				} else if prevFrame != nil {
					px = *prevFrame.at(x, y)
				} else {
					px = backgroundColor
				}
			}
			c.set(geom.MapOffsetX+x, RenderingMapStartOffsetY+y, px)
		}
	}
}

// EncodePNG encodes the canvas as a standard RGBA PNG, 768x768.
func EncodePNG(c *Canvas) ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, CanvasSize, CanvasSize))
	for y := 0; y < CanvasSize; y++ {
		for x := 0; x < CanvasSize; x++ {
			p := c.get(x, y)
			img.SetNRGBA(x, y, color.NRGBA{R: p.R, G: p.G, B: p.B, A: p.A})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
