package guidance

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/openfieldag/gosteer/geo"
	. "math"
)

// stanley is the heading plus cross-track convergence loop, measured at
// the steer axle. The integral shifts the reference line sideways, which
// burns off steady-state offset on side slopes without touching the
// proportional terms.
func stanley(in *Input) Result {
	proj, ok := in.Track.Nearest(in.SteerPos)
	if !ok {
		return Result{}
	}

	hErr := geo.WrapAngle(in.Heading - proj.Heading)

	res := Result{
		CrossTrack:   proj.CrossTrack,
		Closest:      proj.Closest,
		HeadingError: mgl64.RadToDeg(hErr),
	}

	effXte := proj.CrossTrack +
		in.Carried.accumulate(proj.CrossTrack, in.Stanley.IntegralGain, in.Stanley.IntegralMax)

	floor := in.Stanley.SpeedFloor
	if floor <= 0 {
		floor = defaultSpeedFloor
	}
	speed := Max(in.Speed, floor)

	crossTerm := Atan(in.Stanley.DistanceGain * effXte / speed)

	var steerRad float64
	if in.Reverse {
		// backing up flips the curvature response: the same wheel angle
		// swings the leading end the other way
		steerRad = hErr*in.Stanley.HeadingGain - crossTerm
	} else {
		steerRad = -(hErr*in.Stanley.HeadingGain + crossTerm)
	}
	steerDeg := mgl64.RadToDeg(steerRad)

	return finish(in, steerDeg, res)
}
