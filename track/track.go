// Package track is the unified path model. AB lines, recorded curves,
// boundary rings and closed loops all share one point-slice representation
// so the guidance loop projects onto any of them through the same two
// calls.
package track

import (
	"errors"

	"github.com/google/uuid"
	"github.com/openfieldag/gosteer/geo"
	. "math"
)

var (
	ErrTooFewPoints = errors.New("track: need at least two points")
	ErrNotCurve     = errors.New("track: only curve tracks accept recorded points")
)

// Mode tells projection how to treat the point slice.
type Mode uint8

const (
	ModeLine          Mode = iota // two points defining an infinite AB line
	ModeCurve                     // recorded polyline, clamped to its extent
	ModeBoundaryOuter             // field outer boundary ring
	ModeBoundaryInner             // inner exclusion ring
	ModeBoundaryCurve             // guidance curve derived from a boundary
	ModeClosedLoop                // recorded loop, wraps instead of ending
)

func (m Mode) String() string {
	switch m {
	case ModeLine:
		return "line"
	case ModeCurve:
		return "curve"
	case ModeBoundaryOuter:
		return "boundary-outer"
	case ModeBoundaryInner:
		return "boundary-inner"
	case ModeBoundaryCurve:
		return "boundary-curve"
	case ModeClosedLoop:
		return "closed-loop"
	}
	return "unknown"
}

// Closed reports whether the final point connects back to the first.
func (m Mode) Closed() bool {
	switch m {
	case ModeBoundaryOuter, ModeBoundaryInner, ModeBoundaryCurve, ModeClosedLoop:
		return true
	}
	return false
}

// ParseMode maps the names String produces back to a Mode.
func ParseMode(s string) (Mode, bool) {
	for m := ModeLine; m <= ModeClosedLoop; m++ {
		if m.String() == s {
			return m, true
		}
	}
	return 0, false
}

// Track is one guidance path.
type Track struct {
	ID     uuid.UUID       `json:"id"`
	Name   string          `json:"name"`
	Mode   Mode            `json:"mode"`
	Points []geo.PathPoint `json:"points"`
	// NudgeTotal is the running sum of applied lateral nudges in meters,
	// positive to the right of travel.
	NudgeTotal float64 `json:"nudge_total"`
	Visible    bool    `json:"visible"`
}

// NewABLine builds an infinite-line track through a and b. Headings are
// rederived from the two points wherever they are needed, so they cannot
// drift out of sync with the geometry.
func NewABLine(name string, a, b geo.Point) (*Track, error) {
	if geo.DistanceSquared(a, b) == 0 {
		return nil, geo.ErrDegenerate
	}
	h := geo.SegmentHeading(a, b)
	return &Track{
		ID:   uuid.New(),
		Name: name,
		Mode: ModeLine,
		Points: []geo.PathPoint{
			{Easting: a.Easting, Northing: a.Northing, Heading: h},
			{Easting: b.Easting, Northing: b.Northing, Heading: h},
		},
		Visible: true,
	}, nil
}

// NewCurve builds a polyline track of any non-line mode. The input is
// copied, and each point's heading is derived from its neighbors.
func NewCurve(name string, pts []geo.PathPoint, mode Mode) (*Track, error) {
	if mode == ModeLine {
		return NewABLineFromPoints(name, pts)
	}
	if len(pts) < 2 {
		return nil, ErrTooFewPoints
	}
	cp := make([]geo.PathPoint, len(pts))
	copy(cp, pts)
	deriveHeadings(cp, mode.Closed())
	return &Track{
		ID:      uuid.New(),
		Name:    name,
		Mode:    mode,
		Points:  cp,
		Visible: true,
	}, nil
}

// NewABLineFromPoints is NewABLine for callers holding a point slice.
func NewABLineFromPoints(name string, pts []geo.PathPoint) (*Track, error) {
	if len(pts) < 2 {
		return nil, ErrTooFewPoints
	}
	return NewABLine(name, pts[0].Point(), pts[len(pts)-1].Point())
}

func deriveHeadings(pts []geo.PathPoint, closed bool) {
	n := len(pts)
	if n < 2 {
		return
	}
	for i := range pts {
		prev, next := i-1, i+1
		if closed {
			prev = (i - 1 + n) % n
			next = (i + 1) % n
		} else {
			if prev < 0 {
				prev = 0
			}
			if next >= n {
				next = n - 1
			}
		}
		a, b := pts[prev].Point(), pts[next].Point()
		if geo.DistanceSquared(a, b) == 0 {
			continue // repeated vertex, keep whatever heading it carried
		}
		pts[i].Heading = geo.SegmentHeading(a, b)
	}
}

// Clone returns a deep copy so callers can hand tracks across goroutines
// without sharing the point slice.
func (t *Track) Clone() *Track {
	cp := *t
	cp.Points = make([]geo.PathPoint, len(t.Points))
	copy(cp.Points, t.Points)
	return &cp
}

// Length is the polyline length in meters, including the closing segment
// for closed modes. Line tracks report the AB anchor distance.
func (t *Track) Length() float64 {
	if len(t.Points) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(t.Points); i++ {
		sum += geo.Distance(t.Points[i-1].Point(), t.Points[i].Point())
	}
	if t.Mode.Closed() {
		sum += geo.Distance(t.Points[len(t.Points)-1].Point(), t.Points[0].Point())
	}
	return sum
}

// Append adds a recorded point to a non-line track.
func (t *Track) Append(p geo.PathPoint) error {
	if t.Mode == ModeLine {
		return ErrNotCurve
	}
	t.Points = append(t.Points, p)
	return nil
}

// Nudge shifts the whole track sideways by meters, positive to the right
// of travel, and adds it to the running total. Headings are left alone so
// equal and opposite nudges cancel exactly.
func (t *Track) Nudge(meters float64) {
	if t.Mode == ModeLine && len(t.Points) >= 2 {
		h := geo.SegmentHeading(t.Points[0].Point(), t.Points[1].Point())
		for i := range t.Points {
			p := geo.Offset(t.Points[i].Point(), h+Pi/2, meters)
			t.Points[i].Easting = p.Easting
			t.Points[i].Northing = p.Northing
		}
	} else {
		for i := range t.Points {
			p := geo.Offset(t.Points[i].Point(), t.Points[i].Heading+Pi/2, meters)
			t.Points[i].Easting = p.Easting
			t.Points[i].Northing = p.Northing
		}
	}
	t.NudgeTotal += meters
}

// ZeroNudge undoes the accumulated nudge offset.
func (t *Track) ZeroNudge() {
	t.Nudge(-t.NudgeTotal)
}

// Projection is where a probe landed on a track.
type Projection struct {
	IndexA, IndexB int     // endpoints of the winning segment
	T              float64 // parametric position on that segment
	Closest        geo.Point
	CrossTrack     float64 // meters, positive right of travel
	Heading        float64 // direction of travel along the segment
}

// Nearest projects probe onto the track. ok is false when the track has
// too few points or every segment is degenerate; the caller must treat
// that cycle as having no guidance.
func (t *Track) Nearest(probe geo.Point) (Projection, bool) {
	if len(t.Points) < 2 {
		return Projection{}, false
	}
	if t.Mode == ModeLine {
		return t.nearestLine(probe)
	}
	return t.nearestPolyline(probe)
}

func (t *Track) nearestLine(probe geo.Point) (Projection, bool) {
	a, b := t.Points[0].Point(), t.Points[1].Point()
	foot, tt, err := geo.ProjectOnLine(a, b, probe)
	if err != nil {
		return Projection{}, false
	}
	xte, _ := geo.CrossTrack(a, b, probe)
	return Projection{
		IndexA:     0,
		IndexB:     1,
		T:          tt,
		Closest:    foot,
		CrossTrack: xte,
		Heading:    geo.SegmentHeading(a, b),
	}, true
}

func (t *Track) nearestPolyline(probe geo.Point) (Projection, bool) {
	n := len(t.Points)
	segs := n - 1
	if t.Mode.Closed() {
		segs = n
	}

	var best Projection
	bestD := Inf(1)
	found := false
	for i := 0; i < segs; i++ {
		ia, ib := i, i+1
		if ib == n {
			ib = 0
		}
		a, b := t.Points[ia].Point(), t.Points[ib].Point()
		foot, tt, err := geo.ProjectOnSegment(a, b, probe)
		if err != nil {
			continue // zero-length segment
		}
		d := geo.DistanceSquared(probe, foot)
		// strict less-than keeps the lowest segment index on ties
		if d < bestD {
			bestD = d
			xte, _ := geo.CrossTrack(a, b, probe)
			best = Projection{
				IndexA:     ia,
				IndexB:     ib,
				T:          tt,
				Closest:    foot,
				CrossTrack: xte,
				Heading:    geo.SegmentHeading(a, b),
			}
			found = true
		}
	}
	return best, found
}

// GoalPoint walks dist meters along the track from a projection and
// returns the point it reaches. Negative distances walk backward toward
// the start, which is how reverse driving projects its goal. Line tracks
// extend forever in both directions. Open curves that run out of path
// return their terminal point with ok false; closed modes wrap instead.
func (t *Track) GoalPoint(from Projection, dist float64) (geo.Point, bool) {
	if len(t.Points) < 2 {
		return geo.Point{}, false
	}
	if dist == 0 {
		return from.Closest, true
	}
	if t.Mode == ModeLine {
		return geo.Offset(from.Closest, from.Heading, dist), true
	}
	if dist < 0 {
		return t.walkBackward(from, -dist)
	}
	return t.walkForward(from, dist)
}

func (t *Track) walkForward(from Projection, dist float64) (geo.Point, bool) {
	n := len(t.Points)
	closed := t.Mode.Closed()
	cur := from.Closest
	idx := from.IndexB
	remaining := dist

	// bounded at two laps so a near-zero-length loop cannot spin forever
	for hop := 0; hop <= 2*n; hop++ {
		next := t.Points[idx].Point()
		step := geo.Distance(cur, next)
		if step >= remaining && step > 0 {
			return geo.Offset(cur, geo.SegmentHeading(cur, next), remaining), true
		}
		remaining -= step
		cur = next
		idx++
		if idx == n {
			if !closed {
				return cur, false
			}
			idx = 0
		}
	}
	return cur, false
}

func (t *Track) walkBackward(from Projection, dist float64) (geo.Point, bool) {
	n := len(t.Points)
	closed := t.Mode.Closed()
	cur := from.Closest
	idx := from.IndexA
	remaining := dist

	for hop := 0; hop <= 2*n; hop++ {
		next := t.Points[idx].Point()
		step := geo.Distance(cur, next)
		if step >= remaining && step > 0 {
			return geo.Offset(cur, geo.SegmentHeading(cur, next), remaining), true
		}
		remaining -= step
		cur = next
		idx--
		if idx < 0 {
			if !closed {
				return cur, false
			}
			idx = n - 1
		}
	}
	return cur, false
}
