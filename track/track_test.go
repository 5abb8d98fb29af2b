package track

import (
	"github.com/openfieldag/gosteer/geo"
	. "github.com/smartystreets/goconvey/convey"
	. "math"
	"testing"
)

func snakeCurve() *Track {
	t, err := NewCurve("snake", []geo.PathPoint{
		{Easting: 0, Northing: 0, Heading: 0},
		{Easting: 0, Northing: 10, Heading: 0},
		{Easting: 3, Northing: 20, Heading: 0},
		{Easting: 10, Northing: 28, Heading: 0},
		{Easting: 20, Northing: 30, Heading: 0},
	}, ModeCurve)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNewABLine(t *testing.T) {
	Convey("an AB line built from two anchors", t, func() {
		ab, err := NewABLine("north field 1", geo.Point{Easting: 0, Northing: 0}, geo.Point{Easting: 0, Northing: 100})
		So(err, ShouldBeNil)
		So(ab.Mode, ShouldEqual, ModeLine)
		So(len(ab.Points), ShouldEqual, 2)

		Convey("derives its heading from the anchors", func() {
			So(ab.Points[0].Heading, ShouldAlmostEqual, 0, 1e-12)
			So(ab.Points[1].Heading, ShouldAlmostEqual, 0, 1e-12)
		})

		Convey("gets a usable identity", func() {
			So(ab.ID.String(), ShouldNotEqual, "00000000-0000-0000-0000-000000000000")
		})

		Convey("coincident anchors are rejected", func() {
			_, err := NewABLine("broken", geo.Point{Easting: 5, Northing: 5}, geo.Point{Easting: 5, Northing: 5})
			So(err, ShouldEqual, geo.ErrDegenerate)
		})
	})
}

func TestNewCurve(t *testing.T) {
	Convey("a recorded curve", t, func() {
		src := []geo.PathPoint{{Easting: 0, Northing: 0, Heading: 0}, {Easting: 0, Northing: 10, Heading: 0}, {Easting: 10, Northing: 10, Heading: 0}}
		c, err := NewCurve("headland", src, ModeCurve)
		So(err, ShouldBeNil)

		Convey("copies the input instead of aliasing it", func() {
			src[0].Easting = 99
			So(c.Points[0].Easting, ShouldAlmostEqual, 0, 1e-12)
		})

		Convey("derives interior headings from neighbors", func() {
			So(c.Points[0].Heading, ShouldAlmostEqual, 0, 1e-12)
			// middle point looks from (0,0) to (10,10): northeast
			So(c.Points[1].Heading, ShouldAlmostEqual, Pi/4, 1e-9)
			So(c.Points[2].Heading, ShouldAlmostEqual, Pi/2, 1e-9)
		})

		Convey("needs at least two points", func() {
			_, err := NewCurve("stub", src[:1], ModeCurve)
			So(err, ShouldEqual, ErrTooFewPoints)
		})
	})

	Convey("closed modes wrap the heading derivation", t, func() {
		ring := []geo.PathPoint{{Easting: 0, Northing: 0, Heading: 0}, {Easting: 0, Northing: 10, Heading: 0}, {Easting: 10, Northing: 10, Heading: 0}, {Easting: 10, Northing: 0, Heading: 0}}
		c, err := NewCurve("boundary", ring, ModeBoundaryOuter)
		So(err, ShouldBeNil)
		// first point looks from last vertex to second vertex: due north is
		// the average direction of travel through the corner
		So(c.Points[0].Heading, ShouldAlmostEqual, geo.SegmentHeading(geo.Point{Easting: 10, Northing: 0}, geo.Point{Easting: 0, Northing: 10}), 1e-9)
	})
}

func TestNearestLine(t *testing.T) {
	Convey("projection onto a northbound AB line", t, func() {
		ab, _ := NewABLine("ab", geo.Point{Easting: 0, Northing: 0}, geo.Point{Easting: 0, Northing: 100})

		Convey("a probe east of the line reads a positive cross-track", func() {
			p, ok := ab.Nearest(geo.Point{Easting: 2.5, Northing: 40})
			So(ok, ShouldBeTrue)
			So(p.CrossTrack, ShouldAlmostEqual, 2.5, 1e-9)
			So(p.Closest.Easting, ShouldAlmostEqual, 0, 1e-9)
			So(p.Closest.Northing, ShouldAlmostEqual, 40, 1e-9)
			So(p.Heading, ShouldAlmostEqual, 0, 1e-12)
		})

		Convey("the line extends past its anchors", func() {
			p, ok := ab.Nearest(geo.Point{Easting: -1, Northing: 250})
			So(ok, ShouldBeTrue)
			So(p.Closest.Northing, ShouldAlmostEqual, 250, 1e-9)
			So(p.CrossTrack, ShouldAlmostEqual, -1, 1e-9)
		})

		Convey("a two-point curve over the same anchors agrees exactly", func() {
			cv, err := NewCurve("same", []geo.PathPoint{{Easting: 0, Northing: 0, Heading: 0}, {Easting: 0, Northing: 100, Heading: 0}}, ModeCurve)
			So(err, ShouldBeNil)

			for _, probe := range []geo.Point{{Easting: 1, Northing: 5}, {Easting: -1, Northing: 5}, {Easting: 2.5, Northing: 40}} {
				pl, ok := ab.Nearest(probe)
				So(ok, ShouldBeTrue)
				pc, ok := cv.Nearest(probe)
				So(ok, ShouldBeTrue)
				So(pc.CrossTrack, ShouldAlmostEqual, pl.CrossTrack, 1e-12)
				So(pc.Heading, ShouldAlmostEqual, pl.Heading, 1e-12)
			}
		})
	})
}

func TestNearestCurve(t *testing.T) {
	Convey("projection onto a recorded curve", t, func() {
		c := snakeCurve()

		Convey("lands on the closest segment", func() {
			p, ok := c.Nearest(geo.Point{Easting: 1, Northing: 5})
			So(ok, ShouldBeTrue)
			So(p.IndexA, ShouldEqual, 0)
			So(p.IndexB, ShouldEqual, 1)
			So(p.CrossTrack, ShouldAlmostEqual, 1, 1e-9)
		})

		Convey("clamps past the last vertex", func() {
			p, ok := c.Nearest(geo.Point{Easting: 30, Northing: 40})
			So(ok, ShouldBeTrue)
			So(p.IndexB, ShouldEqual, len(c.Points)-1)
			So(p.T, ShouldAlmostEqual, 1, 1e-12)
			So(p.Closest.Easting, ShouldAlmostEqual, 20, 1e-9)
			So(p.Closest.Northing, ShouldAlmostEqual, 30, 1e-9)
		})

		Convey("an equidistant probe picks the lowest segment index", func() {
			u, err := NewCurve("u", []geo.PathPoint{
				{Easting: 0, Northing: 0, Heading: 0},
				{Easting: 0, Northing: 10, Heading: 0},
				{Easting: 4, Northing: 10, Heading: 0},
				{Easting: 4, Northing: 0, Heading: 0},
			}, ModeCurve)
			So(err, ShouldBeNil)

			p, ok := u.Nearest(geo.Point{Easting: 2, Northing: 5})
			So(ok, ShouldBeTrue)
			So(p.IndexA, ShouldEqual, 0)
			So(p.CrossTrack, ShouldAlmostEqual, 2, 1e-9)
		})

		Convey("a track of coincident points cannot be projected onto", func() {
			dead, err := NewCurve("dead", []geo.PathPoint{{Easting: 5, Northing: 5, Heading: 0}, {Easting: 5, Northing: 5, Heading: 0}}, ModeCurve)
			So(err, ShouldBeNil)
			_, ok := dead.Nearest(geo.Point{Easting: 0, Northing: 0})
			So(ok, ShouldBeFalse)
		})

		Convey("zero-length interior segments are skipped, not fatal", func() {
			c2, err := NewCurve("dup", []geo.PathPoint{
				{Easting: 0, Northing: 0, Heading: 0},
				{Easting: 0, Northing: 10, Heading: 0},
				{Easting: 0, Northing: 10, Heading: 0},
				{Easting: 0, Northing: 20, Heading: 0},
			}, ModeCurve)
			So(err, ShouldBeNil)
			p, ok := c2.Nearest(geo.Point{Easting: 1, Northing: 12})
			So(ok, ShouldBeTrue)
			So(IsNaN(p.CrossTrack), ShouldBeFalse)
			So(p.CrossTrack, ShouldAlmostEqual, 1, 1e-9)
		})
	})
}

func TestGoalPoint(t *testing.T) {
	Convey("goal points on an AB line never run out", t, func() {
		ab, _ := NewABLine("ab", geo.Point{Easting: 0, Northing: 0}, geo.Point{Easting: 0, Northing: 100})
		p, _ := ab.Nearest(geo.Point{Easting: 3, Northing: 99})

		goal, ok := ab.GoalPoint(p, 50)
		So(ok, ShouldBeTrue)
		So(goal.Northing, ShouldAlmostEqual, 149, 1e-9)
		So(goal.Easting, ShouldAlmostEqual, 0, 1e-9)
	})

	Convey("goal points on a curve walk across vertices", t, func() {
		c, _ := NewCurve("l", []geo.PathPoint{
			{Easting: 0, Northing: 0, Heading: 0},
			{Easting: 0, Northing: 10, Heading: 0},
			{Easting: 10, Northing: 10, Heading: 0},
		}, ModeCurve)
		p, ok := c.Nearest(geo.Point{Easting: -1, Northing: 6})
		So(ok, ShouldBeTrue)

		goal, ok := c.GoalPoint(p, 7)
		So(ok, ShouldBeTrue)
		// 4m finishes the first segment, 3m into the eastbound one
		So(goal.Easting, ShouldAlmostEqual, 3, 1e-9)
		So(goal.Northing, ShouldAlmostEqual, 10, 1e-9)
	})

	Convey("negative distances walk backward for reverse driving", t, func() {
		c, _ := NewCurve("l", []geo.PathPoint{
			{Easting: 0, Northing: 0, Heading: 0},
			{Easting: 0, Northing: 10, Heading: 0},
			{Easting: 10, Northing: 10, Heading: 0},
		}, ModeCurve)

		Convey("within the path", func() {
			p, ok := c.Nearest(geo.Point{Easting: 4, Northing: 11})
			So(ok, ShouldBeTrue)
			goal, ok := c.GoalPoint(p, -7)
			So(ok, ShouldBeTrue)
			// 4m back to the corner, 3m down the first segment
			So(goal.Easting, ShouldAlmostEqual, 0, 1e-9)
			So(goal.Northing, ShouldAlmostEqual, 7, 1e-9)
		})

		Convey("running out the start reports end of path", func() {
			p, _ := c.Nearest(geo.Point{Easting: -1, Northing: 2})
			goal, ok := c.GoalPoint(p, -5)
			So(ok, ShouldBeFalse)
			So(goal.Easting, ShouldAlmostEqual, 0, 1e-9)
			So(goal.Northing, ShouldAlmostEqual, 0, 1e-9)
		})

		Convey("and an AB line just extends the other way", func() {
			ab, _ := NewABLine("ab", geo.Point{Easting: 0, Northing: 0}, geo.Point{Easting: 0, Northing: 100})
			p, _ := ab.Nearest(geo.Point{Easting: 1, Northing: 10})
			goal, ok := ab.GoalPoint(p, -15)
			So(ok, ShouldBeTrue)
			So(goal.Northing, ShouldAlmostEqual, -5, 1e-9)
		})
	})

	Convey("an open curve that ends early says so", t, func() {
		c, _ := NewCurve("short", []geo.PathPoint{
			{Easting: 0, Northing: 0, Heading: 0},
			{Easting: 0, Northing: 10, Heading: 0},
			{Easting: 0, Northing: 20, Heading: 0},
		}, ModeCurve)
		p, ok := c.Nearest(geo.Point{Easting: 1, Northing: 18})
		So(ok, ShouldBeTrue)

		goal, ok := c.GoalPoint(p, 8)
		So(ok, ShouldBeFalse)
		// the terminal point comes back, not an extrapolation
		So(goal.Easting, ShouldAlmostEqual, 0, 1e-9)
		So(goal.Northing, ShouldAlmostEqual, 20, 1e-9)
	})

	Convey("overrunning a quarter-circle clamps to the arc", t, func() {
		arc := make([]geo.PathPoint, 5)
		for i := range arc {
			a := float64(i) / 4 * (Pi / 2)
			arc[i] = geo.PathPoint{Easting: 10 * Sin(a), Northing: 10 - 10*Cos(a)}
		}
		c, err := NewCurve("quarter", arc, ModeCurve)
		So(err, ShouldBeNil)

		p, ok := c.Nearest(geo.Point{Easting: arc[2].Easting, Northing: arc[2].Northing})
		So(ok, ShouldBeTrue)

		// twice the remaining length cannot be reached on an open curve
		goal, ok := c.GoalPoint(p, 16)
		So(ok, ShouldBeFalse)
		So(goal.Easting, ShouldAlmostEqual, arc[4].Easting, 1e-9)
		So(goal.Northing, ShouldAlmostEqual, arc[4].Northing, 1e-9)
	})

	Convey("closed loops wrap instead of ending", t, func() {
		loop, err := NewCurve("loop", []geo.PathPoint{
			{Easting: 0, Northing: 0, Heading: 0},
			{Easting: 0, Northing: 10, Heading: 0},
			{Easting: 10, Northing: 10, Heading: 0},
			{Easting: 10, Northing: 0, Heading: 0},
		}, ModeClosedLoop)
		So(err, ShouldBeNil)

		p, ok := loop.Nearest(geo.Point{Easting: -1, Northing: 5})
		So(ok, ShouldBeTrue)
		So(p.Closest.Northing, ShouldAlmostEqual, 5, 1e-9)

		Convey("a goal inside the loop length stays on it", func() {
			goal, ok := loop.GoalPoint(p, 10)
			So(ok, ShouldBeTrue)
			So(goal.Easting, ShouldAlmostEqual, 5, 1e-9)
			So(goal.Northing, ShouldAlmostEqual, 10, 1e-9)
		})

		Convey("a goal past the closing segment wraps to the start", func() {
			goal, ok := loop.GoalPoint(p, 38)
			So(ok, ShouldBeTrue)
			So(goal.Easting, ShouldAlmostEqual, 0, 1e-9)
			So(goal.Northing, ShouldAlmostEqual, 3, 1e-9)
		})
	})
}

func TestNudge(t *testing.T) {
	Convey("nudging a northbound AB line", t, func() {
		ab, _ := NewABLine("ab", geo.Point{Easting: 0, Northing: 0}, geo.Point{Easting: 0, Northing: 100})
		ab.Nudge(2)

		Convey("moves it east and accumulates the offset", func() {
			So(ab.NudgeTotal, ShouldAlmostEqual, 2, 1e-12)
			So(ab.Points[0].Easting, ShouldAlmostEqual, 2, 1e-9)
			So(ab.Points[1].Easting, ShouldAlmostEqual, 2, 1e-9)
			So(ab.Points[0].Northing, ShouldAlmostEqual, 0, 1e-9)
		})

		Convey("shifts later cross-track readings by the same amount", func() {
			p, ok := ab.Nearest(geo.Point{Easting: 5, Northing: 50})
			So(ok, ShouldBeTrue)
			So(p.CrossTrack, ShouldAlmostEqual, 3, 1e-9)
		})
	})

	Convey("equal and opposite nudges restore a curve", t, func() {
		c := snakeCurve()
		before := make([]geo.PathPoint, len(c.Points))
		copy(before, c.Points)

		c.Nudge(2.5)
		c.Nudge(-2.5)

		So(c.NudgeTotal, ShouldAlmostEqual, 0, 1e-12)
		for i := range before {
			So(c.Points[i].Easting, ShouldAlmostEqual, before[i].Easting, 1e-9)
			So(c.Points[i].Northing, ShouldAlmostEqual, before[i].Northing, 1e-9)
			So(c.Points[i].Heading, ShouldAlmostEqual, before[i].Heading, 1e-12)
		}
	})

	Convey("zeroing returns an accumulated offset in one step", t, func() {
		c := snakeCurve()
		orig := c.Points[2].Easting
		c.Nudge(0.3)
		c.Nudge(0.3)
		c.Nudge(-0.1)
		So(c.NudgeTotal, ShouldAlmostEqual, 0.5, 1e-12)

		c.ZeroNudge()
		So(c.NudgeTotal, ShouldAlmostEqual, 0, 1e-12)
		So(c.Points[2].Easting, ShouldAlmostEqual, orig, 1e-9)
	})
}

func TestAppendAndLength(t *testing.T) {
	Convey("curves accept recorded points, lines do not", t, func() {
		c := snakeCurve()
		n := len(c.Points)
		So(c.Append(geo.PathPoint{Easting: 30, Northing: 30, Heading: Pi / 2}), ShouldBeNil)
		So(len(c.Points), ShouldEqual, n+1)

		ab, _ := NewABLine("ab", geo.Point{Easting: 0, Northing: 0}, geo.Point{Easting: 0, Northing: 100})
		So(ab.Append(geo.PathPoint{Easting: 5, Northing: 5, Heading: 0}), ShouldEqual, ErrNotCurve)
	})

	Convey("length covers the closing segment only for closed modes", t, func() {
		pts := []geo.PathPoint{{Easting: 0, Northing: 0, Heading: 0}, {Easting: 0, Northing: 10, Heading: 0}, {Easting: 10, Northing: 10, Heading: 0}, {Easting: 10, Northing: 0, Heading: 0}}

		open, _ := NewCurve("open", pts, ModeCurve)
		So(open.Length(), ShouldAlmostEqual, 30, 1e-9)

		ring, _ := NewCurve("ring", pts, ModeBoundaryOuter)
		So(ring.Length(), ShouldAlmostEqual, 40, 1e-9)
	})
}

func TestModeNames(t *testing.T) {
	Convey("mode names round-trip through ParseMode", t, func() {
		for m := ModeLine; m <= ModeClosedLoop; m++ {
			back, ok := ParseMode(m.String())
			So(ok, ShouldBeTrue)
			So(back, ShouldEqual, m)
		}

		_, ok := ParseMode("zigzag")
		So(ok, ShouldBeFalse)
	})
}

func BenchmarkTrack_NearestLine(b *testing.B) {
	b.ReportAllocs()
	ab, _ := NewABLine("ab", geo.Point{Easting: 0, Northing: 0}, geo.Point{Easting: 0, Northing: 100})
	probe := geo.Point{Easting: 2.5, Northing: 40}

	for n := 0; n < b.N; n++ {
		ab.Nearest(probe)
	}
}

func BenchmarkTrack_NearestCurve(b *testing.B) {
	b.ReportAllocs()
	c := snakeCurve()
	probe := geo.Point{Easting: 4, Northing: 18}

	for n := 0; n < b.N; n++ {
		c.Nearest(probe)
	}
}
