package math

// Point2LL is a point on the Earth in geographic coordinates.
// As in the wider stack's convention, index 0 is longitude and index 1
// is latitude.
type Point2LL [2]float32

func (p Point2LL) Longitude() float32 { return p[0] }
func (p Point2LL) Latitude() float32  { return p[1] }

func (p Point2LL) IsZero() bool { return p[0] == 0 && p[1] == 0 }
