// Package math provides the float32-oriented scalar and geodesic
// primitives shared by the rendering pipeline. It deliberately shadows
// the standard library package name; callers that also need the
// standard library import it as gomath, as this package does internally.
package math

import (
	gomath "math"

	"golang.org/x/exp/constraints"
)

// Degrees converts an angle expressed in radians to degrees.
func Degrees(r float32) float32 {
	return r * 180 / gomath.Pi
}

// Radians converts an angle expressed in degrees to radians.
func Radians(d float32) float32 {
	return d / 180 * gomath.Pi
}

func Sin(a float32) float32  { return float32(gomath.Sin(float64(a))) }
func Cos(a float32) float32  { return float32(gomath.Cos(float64(a))) }
func Tan(a float32) float32  { return float32(gomath.Tan(float64(a))) }
func Sqrt(a float32) float32 { return float32(gomath.Sqrt(float64(a))) }
func Atan(a float32) float32 { return float32(gomath.Atan(float64(a))) }

func Atan2(y, x float32) float32 {
	return float32(gomath.Atan2(float64(y), float64(x)))
}

// SafeACos clamps its argument to [-1,1] before calling acos, guarding
// against the small floating point overshoot that great-circle geometry
// tends to produce right at the poles of the input domain.
func SafeACos(a float32) float32 {
	return float32(gomath.Acos(float64(Clamp(a, -1, 1))))
}

func Mod(a, b float32) float32 { return float32(gomath.Mod(float64(a), float64(b))) }

func Floor(v float32) float32 { return float32(gomath.Floor(float64(v))) }
func Ceil(v float32) float32  { return float32(gomath.Ceil(float64(v))) }
func Round(v float32) float32 { return float32(gomath.Round(float64(v))) }

func Abs[V constraints.Integer | constraints.Float](x V) V {
	if x < 0 {
		return -x
	}
	return x
}

func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

func Sqr[V constraints.Integer | constraints.Float](v V) V { return v * v }

func Clamp[T constraints.Ordered](x T, low T, high T) T {
	if x < low {
		return low
	} else if x > high {
		return high
	}
	return x
}

func Lerp(x, a, b float32) float32 {
	return (1-x)*a + x*b
}
