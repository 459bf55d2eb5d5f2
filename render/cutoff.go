package render

import (
	ndmath "github.com/flybywiresim/ndterrain-core/math"
	"github.com/flybywiresim/ndterrain-core/terrain"
	"github.com/flybywiresim/ndterrain-core/worldmap"
)

const (
	cutOffMin = 200
	cutOffMax = 400
	feetPerNM = 6076.12
	maxGlideAngle = 0.0523599 // 3 degrees, radians
)

// Destination is the aircraft's active destination, if any.
type Destination struct {
	Lat, Lon float32
	Valid    bool
}

// CutOffAltitude implements C8: the elevation floor below which
// terrain is not drawn, biased down as the aircraft nears a valid
// destination so the runway environment isn't hidden.
func CutOffAltitude(cache *worldmap.Cache, aircraft ndmath.Point2LL, altitude float32, dest Destination) float32 {
	if !dest.Valid {
		return terrain.HistMinElev
	}

	destPoint := ndmath.Point2LL{dest.Lon, dest.Lat}
	dElev := cache.ExtractElevation(aircraft, dest.Lat, dest.Lon)
	if dElev == terrain.Invalid {
		return terrain.HistMinElev
	}

	dNM := ndmath.DistanceWGS84NM(aircraft, destPoint)

	if dNM >= 4.0 {
		return cutOffMax
	}

	glide := ndmath.Atan((altitude - float32(dElev)) / (dNM * feetPerNM))
	if glide >= maxGlideAngle {
		return cutOffMax
	}

	if dNM <= 1.0 || glide == 0 {
		return cutOffMin
	}

	// linear interpolation between 400 @ 1nm and 200 @ 4nm
	frac := (dNM - 1.0) / (4.0 - 1.0)
	v := cutOffMax + frac*(cutOffMin-cutOffMax)
	return ndmath.Clamp(v, cutOffMin, cutOffMax)
}
