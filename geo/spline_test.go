package geo

import (
	. "github.com/smartystreets/goconvey/convey"
	. "math"
	"testing"
)

func TestCatmullRom(t *testing.T) {
	Convey("a spline segment through four control points", t, func() {
		p0 := Point{-10, 0}
		p1 := Point{0, 0}
		p2 := Point{10, 5}
		p3 := Point{20, 5}

		Convey("interpolates the inner points exactly at t=0 and t=1", func() {
			s := CatmullRom(p0, p1, p2, p3, 0)
			So(s.Easting, ShouldAlmostEqual, p1.Easting, 1e-12)
			So(s.Northing, ShouldAlmostEqual, p1.Northing, 1e-12)

			s = CatmullRom(p0, p1, p2, p3, 1)
			So(s.Easting, ShouldAlmostEqual, p2.Easting, 1e-12)
			So(s.Northing, ShouldAlmostEqual, p2.Northing, 1e-12)
		})

		Convey("the midpoint stays between the inner points", func() {
			s := CatmullRom(p0, p1, p2, p3, 0.5)
			So(s.Easting, ShouldBeBetween, p1.Easting, p2.Easting)
			So(s.Northing, ShouldBeBetween, p1.Northing-0.5, p2.Northing+0.5)
		})

		Convey("collinear control points yield a straight segment", func() {
			q0 := Point{0, 0}
			q1 := Point{0, 10}
			q2 := Point{0, 20}
			q3 := Point{0, 30}
			for _, tt := range []float64{0, 0.25, 0.5, 0.75, 1} {
				s := CatmullRom(q0, q1, q2, q3, tt)
				So(s.Easting, ShouldAlmostEqual, 0, 1e-12)
				So(s.Northing, ShouldAlmostEqual, 10+10*tt, 1e-9)
			}
		})
	})

	Convey("repeated control points never produce NaN", t, func() {
		p := Point{3, 4}
		for _, tt := range []float64{0, 0.5, 1} {
			s := CatmullRom(p, p, p, p, tt)
			So(IsNaN(s.Easting), ShouldBeFalse)
			So(IsNaN(s.Northing), ShouldBeFalse)
			So(s.Easting, ShouldAlmostEqual, p.Easting, 1e-12)
			So(s.Northing, ShouldAlmostEqual, p.Northing, 1e-12)
		}

		Convey("and the heading falls back instead of blowing up", func() {
			h := CatmullRomHeading(p, p, p, p, 0.5)
			So(IsNaN(h), ShouldBeFalse)
			So(h, ShouldAlmostEqual, 0, 1e-12)
		})
	})

	Convey("headings follow the direction of travel", t, func() {
		q0 := Point{0, -10}
		q1 := Point{0, 0}
		q2 := Point{0, 10}
		q3 := Point{0, 20}
		h := CatmullRomHeading(q0, q1, q2, q3, 0.5)
		So(h, ShouldAlmostEqual, 0, 1e-9) // due north
	})
}

func TestSmoothPath(t *testing.T) {
	Convey("resampling a recorded polyline", t, func() {
		pts := []PathPoint{
			{0, 0, 0},
			{0, 10, 0},
			{5, 20, 0},
			{15, 25, 0},
		}

		out := SmoothPath(pts, 3)

		Convey("keeps both endpoints", func() {
			So(out[0].Easting, ShouldAlmostEqual, pts[0].Easting, 1e-12)
			So(out[0].Northing, ShouldAlmostEqual, pts[0].Northing, 1e-12)
			last := out[len(out)-1]
			So(last.Easting, ShouldAlmostEqual, pts[3].Easting, 1e-12)
			So(last.Northing, ShouldAlmostEqual, pts[3].Northing, 1e-12)
		})

		Convey("inserts the requested number of intermediate points", func() {
			So(len(out), ShouldEqual, len(pts)+(len(pts)-1)*3)
		})

		Convey("every sample carries a finite heading", func() {
			for _, p := range out[1:] {
				So(IsNaN(p.Heading), ShouldBeFalse)
			}
		})
	})

	Convey("inputs too short to smooth come back as a copy", t, func() {
		pts := []PathPoint{{0, 0, 0}, {10, 0, Pi / 2}}
		out := SmoothPath(pts, 5)
		So(len(out), ShouldEqual, 2)
		So(out[1], ShouldResemble, pts[1])

		Convey("which is detached from the input backing array", func() {
			out[0].Easting = 99
			So(pts[0].Easting, ShouldAlmostEqual, 0, 1e-12)
		})
	})
}
