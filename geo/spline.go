package geo

// CatmullRom evaluates a uniform Catmull-Rom segment between p1 and p2 at
// t in [0, 1], with p0 and p3 as the neighboring control points. The
// polynomial form involves no division, so repeated control points collapse
// toward the shared point instead of producing NaN.
func CatmullRom(p0, p1, p2, p3 Point, t float64) Point {
	v0, v1, v2, v3 := p0.Vec2(), p1.Vec2(), p2.Vec2(), p3.Vec2()

	c1 := v1.Mul(2)
	c2 := v2.Sub(v0)
	c3 := v0.Mul(2).Sub(v1.Mul(5)).Add(v2.Mul(4)).Sub(v3)
	c4 := v1.Mul(3).Sub(v0).Sub(v2.Mul(3)).Add(v3)

	out := c1.Add(c2.Mul(t)).Add(c3.Mul(t * t)).Add(c4.Mul(t * t * t)).Mul(0.5)
	return FromVec2(out)
}

// CatmullRomHeading is the heading of travel along the segment at t. When
// the tangent vanishes (repeated control points) it falls back to the
// p1->p2 chord, and to heading 0 if that is degenerate too.
func CatmullRomHeading(p0, p1, p2, p3 Point, t float64) float64 {
	v0, v1, v2, v3 := p0.Vec2(), p1.Vec2(), p2.Vec2(), p3.Vec2()

	c2 := v2.Sub(v0)
	c3 := v0.Mul(2).Sub(v1.Mul(5)).Add(v2.Mul(4)).Sub(v3)
	c4 := v1.Mul(3).Sub(v0).Sub(v2.Mul(3)).Add(v3)

	d := c2.Add(c3.Mul(2 * t)).Add(c4.Mul(3 * t * t)).Mul(0.5)
	if d.LenSqr() > 1e-12 {
		return SegmentHeading(Point{}, FromVec2(d))
	}
	if DistanceSquared(p1, p2) > 0 {
		return SegmentHeading(p1, p2)
	}
	return 0
}

// SmoothPath resamples a recorded polyline through Catmull-Rom splines,
// inserting per intermediate points inside every segment. The first and
// last vertices are reused as virtual neighbors so the output still passes
// through both ends. Inputs that are too short to smooth come back as a
// copy.
func SmoothPath(pts []PathPoint, per int) []PathPoint {
	if len(pts) < 3 || per < 1 {
		out := make([]PathPoint, len(pts))
		copy(out, pts)
		return out
	}

	out := make([]PathPoint, 0, len(pts)+(len(pts)-1)*per)
	last := len(pts) - 1
	for i := 0; i < last; i++ {
		p0 := pts[clampIndex(i-1, last)].Point()
		p1 := pts[i].Point()
		p2 := pts[i+1].Point()
		p3 := pts[clampIndex(i+2, last)].Point()

		out = append(out, pts[i])
		for s := 1; s <= per; s++ {
			t := float64(s) / float64(per+1)
			pt := CatmullRom(p0, p1, p2, p3, t)
			out = append(out, PathPoint{
				Easting:  pt.Easting,
				Northing: pt.Northing,
				Heading:  CatmullRomHeading(p0, p1, p2, p3, t),
			})
		}
	}
	out = append(out, pts[last])
	return out
}

func clampIndex(i, max int) int {
	if i < 0 {
		return 0
	}
	if i > max {
		return max
	}
	return i
}
