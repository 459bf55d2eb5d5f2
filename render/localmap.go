// Package render implements the per-frame rendering pipeline: the
// local-map projection, its patch histogram, threshold selection,
// pixel colorization, the cut-off altitude rule, and the frame
// compositor with its sweep transition.
package render

import (
	"github.com/flybywiresim/ndterrain-core/accel"
	ndmath "github.com/flybywiresim/ndterrain-core/math"
	"github.com/flybywiresim/ndterrain-core/terrain"
)

// LocalMap is a (Width x Height) row-major grid of elevations, origin
// bottom, one per display pixel.
type LocalMap struct {
	Width, Height int
	Data          []int16
}

func NewLocalMap(width, height int) *LocalMap {
	return &LocalMap{Width: width, Height: height, Data: make([]int16, width*height)}
}

func (m *LocalMap) At(x, y int) int16 { return m.Data[y*m.Width+x] }

// AircraftPosition is the subset of aircraft state the projector and
// cut-off rule need.
type AircraftPosition struct {
	Lat, Lon, HeadingDeg float32
}

// EgoFrame carries the world-map placement needed to convert a
// projected (lat, lon) back into a world-grid sample.
type EgoFrame struct {
	EgoPixelX, EgoPixelY float32
	LatStep, LonStep     float64 // per-sample steps of the world grid
}

// ProjectLocalMap runs C4: for every output pixel, computes the
// geographic coordinate that pixel represents and samples the world
// texture there. metersPerPixel must already include the arc-mode
// doubling described in §4.4.
func ProjectLocalMap(acc accel.Accelerator, tex accel.Texture, out *LocalMap, aircraft AircraftPosition, ego EgoFrame, metersPerPixel float32, arcMode bool) error {
	w, h := out.Width, out.Height
	worldW, worldH := tex.Width(), tex.Height()

	kernel := func(rowStart, rowEnd int) {
		for y := rowStart; y < rowEnd; y++ {
			for x := 0; x < w; x++ {
				out.Data[y*w+x] = projectPixel(tex, x, y, w, h, worldW, worldH, aircraft, ego, metersPerPixel, arcMode)
			}
		}
	}

	return acc.Dispatch(h, kernel)
}

func projectPixel(tex accel.Texture, x, y, ndWidth, ndHeight, worldW, worldH int, aircraft AircraftPosition, ego EgoFrame, metersPerPixel float32, arcMode bool) int16 {
	dx := float32(x) - float32(ndWidth)/2
	dy := float32(ndHeight - y)

	distancePx := ndmath.Sqrt(dx*dx + dy*dy)
	if arcMode && distancePx > float32(ndHeight) {
		return terrain.Invalid
	}
	if distancePx == 0 {
		distancePx = 1e-6
	}

	dMeters := distancePx * metersPerPixel / 2

	angle := ndmath.Degrees(ndmath.SafeACos(dy / distancePx))
	if dx < 0 {
		angle = 360 - angle
	}
	bearing := ndmath.NormalizeHeading(angle + aircraft.HeadingDeg)

	lat2, lon2 := ndmath.ProjectWGS84(aircraft.Lat, aircraft.Lon, bearing, dMeters)

	worldDx := (float64(lon2) - float64(aircraft.Lon)) / ego.LonStep
	worldDy := (float64(aircraft.Lat) - float64(lat2)) / ego.LatStep

	wx := int(ndmath.Floor(ego.EgoPixelX + float32(worldDx)))
	wy := int(ndmath.Floor(ego.EgoPixelY + float32(worldDy)))

	if wx < 0 || wx >= worldW || wy < 0 || wy >= worldH {
		return terrain.Unknown
	}
	return tex.Sample(wx, wy)
}

// MetersPerPixel implements the §4.4 formula, including the arc-mode
// doubling.
func MetersPerPixel(rangeNM float32, ndHeight int, arcMode bool) float32 {
	m := ndmath.Round(rangeNM * 1852 / float32(ndHeight))
	if arcMode {
		m *= 2
	}
	return m
}
