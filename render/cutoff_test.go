package render

import (
	"testing"

	"github.com/flybywiresim/ndterrain-core/accel"
	"github.com/flybywiresim/ndterrain-core/log"
	ndmath "github.com/flybywiresim/ndterrain-core/math"
	"github.com/flybywiresim/ndterrain-core/terrain"
	"github.com/flybywiresim/ndterrain-core/worldmap"
)

type flatSource struct{ elev int16 }

func (s *flatSource) DecodeTile(row, col int) (*terrain.ElevationMap, int, bool, error) {
	m := terrain.NewElevationMap(4, 4)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			m.Set(r, c, s.elev)
		}
	}
	return m, row*1000 + col, true, nil
}

func newCutoffCache(t *testing.T, aircraft ndmath.Point2LL) *worldmap.Cache {
	dem := terrain.DEM{SWLat: 40, SWLon: 10, LatStep: 1, LonStep: 1, NumRows: 90, NumCols: 90, ElevationResolution: 30}
	lg := log.New("info", t.TempDir())
	store := terrain.NewStore(dem, &flatSource{elev: 1000}, lg)
	store.VisibilityRange = 60

	cache := worldmap.NewCache(store, accel.NewCPUPool(2), lg)
	grid := store.CreateGridLookupTable(aircraft)
	store.UpdatePosition(grid)
	cache.Rebuild(grid)
	cache.RecomputeEgoPixel(aircraft, grid)
	return cache
}

func TestCutOffAltitudeInvalidDestination(t *testing.T) {
	aircraft := ndmath.Point2LL{10.5, 40.5}
	cache := newCutoffCache(t, aircraft)
	got := CutOffAltitude(cache, aircraft, 5000, Destination{Valid: false})
	if got != terrain.HistMinElev {
		t.Errorf("expected %v for no destination, got %v", terrain.HistMinElev, got)
	}
}

func TestCutOffAltitudeEmptyCacheIsInvalid(t *testing.T) {
	aircraft := ndmath.Point2LL{10.5, 40.5}
	dem := terrain.DEM{SWLat: 40, SWLon: 10, LatStep: 1, LonStep: 1, NumRows: 90, NumCols: 90, ElevationResolution: 30}
	lg := log.New("info", t.TempDir())
	store := terrain.NewStore(dem, &flatSource{elev: 1000}, lg)
	cache := worldmap.NewCache(store, accel.NewCPUPool(2), lg) // never Rebuild: empty grid

	got := CutOffAltitude(cache, aircraft, 5000, Destination{Lat: aircraft.Latitude(), Lon: aircraft.Longitude(), Valid: true})
	if got != terrain.HistMinElev {
		t.Errorf("expected %v when the world-map cache is empty, got %v", terrain.HistMinElev, got)
	}
}

func TestCutOffAltitudeDistantDestinationIsMax(t *testing.T) {
	aircraft := ndmath.Point2LL{10.5, 40.5}
	cache := newCutoffCache(t, aircraft)

	destLat, destLon := ndmath.ProjectWGS84(aircraft.Latitude(), aircraft.Longitude(), 90, 10*1852)
	got := CutOffAltitude(cache, aircraft, 5000, Destination{Lat: destLat, Lon: destLon, Valid: true})
	if got != cutOffMax {
		t.Errorf("destination 10nm away should yield the max cut-off, got %v", got)
	}
}

func TestCutOffAltitudeCloseDestinationIsMin(t *testing.T) {
	aircraft := ndmath.Point2LL{10.5, 40.5}
	cache := newCutoffCache(t, aircraft)

	destLat, destLon := ndmath.ProjectWGS84(aircraft.Latitude(), aircraft.Longitude(), 90, 0.5*1852)
	got := CutOffAltitude(cache, aircraft, 1000, Destination{Lat: destLat, Lon: destLon, Valid: true})
	if got != cutOffMin {
		t.Errorf("destination within 1nm and level glide should yield the min cut-off, got %v", got)
	}
}

// TestCutOffAltitudeDistanceBoundaryIsInclusive covers spec.md §8's
// boundary requirement that d_nm == 4.0 yields exactly cutOffMax; a
// strict "> 4.0" guard would instead fall through, and with the
// destination level with the aircraft (glide angle 0) that produces
// cutOffMin. Projecting 4 nm through float32 lands a hair short of 4.0,
// so the destination is a fixed point whose computed distance is
// exactly 4.0.
func TestCutOffAltitudeDistanceBoundaryIsInclusive(t *testing.T) {
	aircraft := ndmath.Point2LL{10.5, 40.5}
	cache := newCutoffCache(t, aircraft)

	destLat, destLon := float32(40.4992599), float32(10.5876074)
	if d := ndmath.DistanceWGS84NM(aircraft, ndmath.Point2LL{destLon, destLat}); d != 4.0 {
		t.Fatalf("test destination is %v nm away, not exactly 4", d)
	}
	got := CutOffAltitude(cache, aircraft, 1000, Destination{Lat: destLat, Lon: destLon, Valid: true})
	if got != cutOffMax {
		t.Errorf("destination at exactly 4nm must yield the max cut-off, got %v", got)
	}
}

// TestCutOffAltitudeGlideBoundaryIsInclusive covers spec.md §8's
// boundary requirement that a glide angle of exactly 3 degrees yields
// cutOffMax rather than falling through to the interpolation branch. A
// tiny margin above the exact 3-degree altitude is used because the
// destination's distance is itself derived from a geodesic projection,
// so a bit-exact glide angle can't be guaranteed without running the
// code. With the margin the angle is just above 3 degrees, so this
// checks that the glide branch returns cutOffMax near the threshold; it
// does not tell ">=" apart from "> maxGlideAngle".
func TestCutOffAltitudeGlideBoundaryIsInclusive(t *testing.T) {
	aircraft := ndmath.Point2LL{10.5, 40.5}
	cache := newCutoffCache(t, aircraft)

	const dNM = 2.0
	destLat, destLon := ndmath.ProjectWGS84(aircraft.Latitude(), aircraft.Longitude(), 90, dNM*1852)

	altitude := float32(1000) + ndmath.Tan(maxGlideAngle)*float32(dNM)*feetPerNM*1.0001
	got := CutOffAltitude(cache, aircraft, altitude, Destination{Lat: destLat, Lon: destLon, Valid: true})
	if got != cutOffMax {
		t.Errorf("glide angle at the 3-degree threshold must yield the max cut-off, got %v", got)
	}
}

func TestCutOffAltitudeInterpolatesBetweenBounds(t *testing.T) {
	aircraft := ndmath.Point2LL{10.5, 40.5}
	cache := newCutoffCache(t, aircraft)

	destLat, destLon := ndmath.ProjectWGS84(aircraft.Latitude(), aircraft.Longitude(), 90, 2.5*1852)
	got := CutOffAltitude(cache, aircraft, 1100, Destination{Lat: destLat, Lon: destLon, Valid: true})
	if got < cutOffMin || got > cutOffMax {
		t.Errorf("interpolated cut-off %v outside [%v, %v]", got, cutOffMin, cutOffMax)
	}
}
