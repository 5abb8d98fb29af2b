// Package geo is the planar geometry kernel for guidance math.
//
// Everything works on a local tangent plane in meters: easting along X,
// northing along Y. Headings are compass style, radians clockwise from due
// north, so heading 0 points up the northing axis.
package geo

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
	. "math"
)

// ErrDegenerate is returned when a segment's endpoints coincide and no
// direction can be derived from it.
var ErrDegenerate = errors.New("geo: segment endpoints coincide")

// Point is a position on the local plane in meters.
type Point struct {
	Easting  float64 `json:"easting"`
	Northing float64 `json:"northing"`
}

// PathPoint is a Point carrying the path heading at that point.
type PathPoint struct {
	Easting  float64 `json:"easting"`
	Northing float64 `json:"northing"`
	Heading  float64 `json:"heading"`
}

func (p PathPoint) Point() Point {
	return Point{Easting: p.Easting, Northing: p.Northing}
}

func (p Point) Vec2() mgl64.Vec2 {
	return mgl64.Vec2{p.Easting, p.Northing}
}

func FromVec2(v mgl64.Vec2) Point {
	return Point{Easting: v.X(), Northing: v.Y()}
}

// Distance is the straight-line distance between two points in meters.
func Distance(a, b Point) float64 {
	return Sqrt(DistanceSquared(a, b))
}

// DistanceSquared skips the square root for comparison work in tight loops.
func DistanceSquared(a, b Point) float64 {
	de := b.Easting - a.Easting
	dn := b.Northing - a.Northing
	return de*de + dn*dn
}

// SegmentHeading is the compass heading of travel from a to b.
func SegmentHeading(a, b Point) float64 {
	return Atan2(b.Easting-a.Easting, b.Northing-a.Northing)
}

// Offset moves p by dist meters along heading.
func Offset(p Point, heading, dist float64) Point {
	return Point{
		Easting:  p.Easting + Sin(heading)*dist,
		Northing: p.Northing + Cos(heading)*dist,
	}
}

// AngleDiff is the magnitude of the smallest rotation between two headings.
// The result is always in [0, pi] no matter what range the inputs use.
func AngleDiff(a, b float64) float64 {
	d := Mod(a-b, 2*Pi)
	if d < 0 {
		d += 2 * Pi
	}
	if d > Pi {
		d = 2*Pi - d
	}
	return d
}

// WrapAngle normalizes an angle to (-pi, pi].
func WrapAngle(a float64) float64 {
	a = Mod(a, 2*Pi)
	if a > Pi {
		a -= 2 * Pi
	} else if a <= -Pi {
		a += 2 * Pi
	}
	return a
}

// ProjectOnLine drops probe p onto the infinite line through a and b. It
// returns the foot point and the unclamped parameter t, where t=0 lands on
// a and t=1 on b.
func ProjectOnLine(a, b, p Point) (Point, float64, error) {
	lenSq := DistanceSquared(a, b)
	if lenSq == 0 {
		return Point{}, 0, ErrDegenerate
	}
	t := ((p.Easting-a.Easting)*(b.Easting-a.Easting) +
		(p.Northing-a.Northing)*(b.Northing-a.Northing)) / lenSq
	return lerp(a, b, t), t, nil
}

// ProjectOnSegment is ProjectOnLine with t clamped to [0, 1] so the foot
// point never leaves the segment.
func ProjectOnSegment(a, b, p Point) (Point, float64, error) {
	_, t, err := ProjectOnLine(a, b, p)
	if err != nil {
		return Point{}, 0, err
	}
	t = mgl64.Clamp(t, 0, 1)
	return lerp(a, b, t), t, nil
}

// CrossTrack is the signed lateral distance from probe p to the infinite
// line through a and b. Positive means p sits to the right of the direction
// of travel a->b, negative to the left.
func CrossTrack(a, b, p Point) (float64, error) {
	l := Distance(a, b)
	if l == 0 {
		return 0, ErrDegenerate
	}
	de := b.Easting - a.Easting
	dn := b.Northing - a.Northing
	return (dn*(p.Easting-a.Easting) - de*(p.Northing-a.Northing)) / l, nil
}

func lerp(a, b Point, t float64) Point {
	return Point{
		Easting:  a.Easting + (b.Easting-a.Easting)*t,
		Northing: a.Northing + (b.Northing-a.Northing)*t,
	}
}
