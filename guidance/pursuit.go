package guidance

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/openfieldag/gosteer/geo"
	. "math"
)

// pursuit is the geometric look-ahead loop: project a goal point along the
// path and steer onto the arc that reaches it. Reverse driving walks the
// goal backward and mirrors the arc, since the same wheel angle curves the
// opposite way when the rear leads.
func pursuit(in *Input) Result {
	proj, ok := in.Track.Nearest(in.Pivot)
	if !ok {
		return Result{}
	}

	res := Result{
		CrossTrack:   proj.CrossTrack,
		Closest:      proj.Closest,
		HeadingError: mgl64.RadToDeg(geo.WrapAngle(in.Heading - proj.Heading)),
	}

	dist := in.Pursuit.GoalDistance
	if dist <= 0 {
		return res
	}
	if in.Reverse {
		dist = -dist
	}

	goal, ok := in.Track.GoalPoint(proj, dist)
	if !ok {
		res.EndOfPath = true
		return res
	}
	res.Goal = goal
	res.HasGoal = true

	travelHeading := in.Heading
	if in.Reverse {
		travelHeading += Pi
	}

	dE := goal.Easting - in.Pivot.Easting
	dN := goal.Northing - in.Pivot.Northing
	chordSq := dE*dE + dN*dN
	if chordSq == 0 {
		// goal collapsed onto the pivot, no direction to steer toward
		return Result{CrossTrack: proj.CrossTrack, Closest: proj.Closest}
	}

	sinH, cosH := Sincos(travelHeading)
	lateral := cosH*dE - sinH*dN // positive when the goal sits right of travel

	steerRad := Atan(2 * lateral * in.Wheelbase / chordSq)
	if in.Reverse {
		steerRad = -steerRad
	}
	steerDeg := mgl64.RadToDeg(steerRad)

	// the integral trims persistent offset toward the line, so it carries
	// the opposite sign of the cross-track error
	steerDeg += in.Carried.accumulate(-proj.CrossTrack, in.Pursuit.IntegralGain, in.Pursuit.IntegralMax)

	return finish(in, steerDeg, res)
}
