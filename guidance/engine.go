package guidance

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/openfieldag/gosteer/geo"
	"github.com/openfieldag/gosteer/track"
	. "math"
)

// PursuitTuning holds the pursuit loop's knobs. GoalDistance is the
// look-ahead in meters; callers wanting speed-dependent look-ahead scale it
// before the cycle, the loop itself never does.
type PursuitTuning struct {
	GoalDistance float64
	IntegralGain float64
	IntegralMax  float64
}

// StanleyTuning holds the heading/cross-track loop's knobs. SpeedFloor is
// the minimum speed used in the cross-track term; without it the atan
// argument grows without bound as the vehicle slows to a stop.
type StanleyTuning struct {
	HeadingGain  float64
	DistanceGain float64
	IntegralGain float64
	IntegralMax  float64
	SpeedFloor   float64
}

const defaultSpeedFloor = 0.5 // m/s

// Input is everything one cycle needs. The orchestrator owns it and the
// carried State; the loops never retain either past the call.
type Input struct {
	Track     *track.Track
	Algorithm Algorithm

	Pivot    geo.Point // rear-axle reference, the pursuit loop measures here
	SteerPos geo.Point // front-axle reference, the stanley loop measures here
	Heading  float64   // radians, compass
	Speed    float64   // m/s ground speed, never negative
	Reverse  bool

	// Roll in radians, positive right-side-down. NaN means no usable roll
	// source this cycle and skips the side-hill term entirely.
	Roll     float64
	RollGain float64

	Wheelbase     float64
	MaxSteerAngle float64 // degrees

	Pursuit PursuitTuning
	Stanley StanleyTuning

	Carried *State
}

// Result is one cycle's output. Valid false means no steering authority:
// SteerAngle is zero and only CrossTrack, Closest and EndOfPath may carry
// partial diagnostics.
type Result struct {
	Valid bool `json:"valid"`

	SteerAngle    float64 `json:"steer_angle"`     // degrees, clamped
	RawSteerAngle float64 `json:"raw_steer_angle"` // degrees, before the clamp
	CrossTrack    float64 `json:"cross_track"`     // meters, positive right of path
	HeadingError  float64 `json:"heading_error"`   // degrees, travel vs path

	Closest   geo.Point `json:"closest"`
	Goal      geo.Point `json:"goal"` // pursuit only
	HasGoal   bool      `json:"has_goal"`
	EndOfPath bool      `json:"end_of_path"`
}

// Compute runs one guidance cycle. When the (track, algorithm, direction)
// tuple differs from the previous cycle the carried state is reset first,
// so the first cycle after any switch behaves exactly like a first-ever
// cycle with the same inputs.
//
// Data-quality problems (no track, too few points, degenerate projection,
// non-finite fix fields) all come back as an invalid zero-steer Result,
// never as a panic: a guidance dropout must drop authority, not the
// process.
func Compute(in *Input) Result {
	if in.Track == nil || len(in.Track.Points) < 2 {
		return Result{}
	}
	if IsNaN(in.Heading) || IsInf(in.Heading, 0) ||
		IsNaN(in.Pivot.Easting) || IsNaN(in.Pivot.Northing) ||
		IsNaN(in.SteerPos.Easting) || IsNaN(in.SteerPos.Northing) {
		return Result{}
	}

	key := Key{Track: in.Track.ID, Algorithm: in.Algorithm, Reverse: in.Reverse}
	if in.Carried.Fresh(key) {
		in.Carried.Reset(key)
	}

	var res Result
	switch in.Algorithm {
	case Stanley:
		res = stanley(in)
	default:
		res = pursuit(in)
	}

	if res.Valid {
		in.Carried.observe(res.CrossTrack)
	}
	return res
}

// finish applies the side-hill term and the steer clamp, shared by both
// loops.
func finish(in *Input, steerDeg float64, res Result) Result {
	if !IsNaN(in.Roll) && in.RollGain != 0 {
		steerDeg += mgl64.RadToDeg(in.Roll) * in.RollGain
	}
	res.RawSteerAngle = steerDeg
	res.SteerAngle = mgl64.Clamp(steerDeg, -in.MaxSteerAngle, in.MaxSteerAngle)
	res.Valid = true
	return res
}
