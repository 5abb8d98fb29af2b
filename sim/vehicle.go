// Package sim provides a kinematic bicycle-model tractor for closed-loop
// testing without hardware. It implements transport.Sender, so the pilot
// drives it exactly as it would drive the real module link.
package sim

import (
	"sync"
	"time"

	. "math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/openfieldag/gosteer/geo"
	"github.com/openfieldag/gosteer/gps"
	"github.com/openfieldag/gosteer/pgn"
)

// Vehicle integrates a kinematic bicycle model. Steer commands arrive
// through Send as ordinary wire frames; Step advances the model and
// returns the fix a receiver at the pivot would produce. Speed is set by
// the scenario, not the controller, matching a tractor where the operator
// holds the throttle.
type Vehicle struct {
	mu sync.Mutex

	Wheelbase    float64 // metres
	MaxSteerRate float64 // wheel slew limit, degrees per second
	Speed        float64 // m/s, negative drives in reverse

	plane   *geo.LocalPlane
	now     time.Time
	easting float64
	north   float64
	heading float64 // radians compass
	steer   float64 // current wheel angle, degrees
	target  float64 // commanded wheel angle, degrees
	engaged bool

	// Frames counts accepted command frames.
	Frames uint64
}

// New places the vehicle at the plane origin, heading north.
func New(originLat, originLon float64) *Vehicle {
	return &Vehicle{
		Wheelbase:    2.8,
		MaxSteerRate: 30,
		plane:        geo.NewLocalPlane(originLat, originLon),
		now:          time.Now(),
	}
}

// Send implements transport.Sender. Steer command frames move the wheel
// target; anything else is ignored the way firmware ignores frames not
// addressed to it. A disabled command centres the wheel, mirroring the
// module dropping its output stage.
func (v *Vehicle) Send(raw []byte) error {
	f, err := pgn.Validate(raw)
	if err != nil {
		return nil
	}
	if f.PGN() != pgn.PGNSteerData {
		return nil
	}
	cmd, err := pgn.ParseSteerData(&f)
	if err != nil {
		return nil
	}

	v.mu.Lock()
	v.Frames++
	v.engaged = cmd.SteerEnabled
	if cmd.SteerEnabled {
		v.target = cmd.SteerAngle
	} else {
		v.target = 0
	}
	v.mu.Unlock()
	return nil
}

// Close implements transport.Sender.
func (v *Vehicle) Close() error {
	return nil
}

// SetSpeed changes the commanded ground speed, negative for reverse.
// The operator holds the throttle, so this is safe mid-run.
func (v *Vehicle) SetSpeed(ms float64) {
	v.mu.Lock()
	v.Speed = ms
	v.mu.Unlock()
}

// SetPose teleports the vehicle within the plane.
func (v *Vehicle) SetPose(easting, northing, headingRad float64) {
	v.mu.Lock()
	v.easting = easting
	v.north = northing
	v.heading = headingRad
	v.mu.Unlock()
}

// Pose returns the pivot position and nose heading.
func (v *Vehicle) Pose() (easting, northing, headingRad float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.easting, v.north, v.heading
}

// SteerAngle returns the current wheel angle in degrees.
func (v *Vehicle) SteerAngle() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.steer
}

// Step advances the model by dt seconds and returns the resulting fix.
func (v *Vehicle) Step(dt float64) gps.Fix {
	v.mu.Lock()
	defer v.mu.Unlock()

	// slew the wheel toward the command
	maxDelta := v.MaxSteerRate * dt
	v.steer += mgl64.Clamp(v.target-v.steer, -maxDelta, maxDelta)

	// positive wheel angle turns the nose clockwise
	if v.Wheelbase > 0 {
		v.heading += v.Speed / v.Wheelbase * Tan(mgl64.DegToRad(v.steer)) * dt
	}
	v.easting += v.Speed * Sin(v.heading) * dt
	v.north += v.Speed * Cos(v.heading) * dt
	v.now = v.now.Add(time.Duration(dt * float64(time.Second)))

	lat, lon, _ := v.plane.ToGeodetic(geo.Point{Easting: v.easting, Northing: v.north})

	h := Mod(v.heading, 2*Pi)
	if h < 0 {
		h += 2 * Pi
	}
	return gps.Fix{
		Time:       v.now,
		Latitude:   lat,
		Longitude:  lon,
		Speed:      Abs(v.Speed),
		Heading:    h,
		Quality:    gps.QualityFixedRTK,
		Satellites: 14,
		HDOP:       0.7,
		Roll:       NaN(),
		Pitch:      NaN(),
		YawRate:    NaN(),
	}
}

// FeedbackFrame fills f with the feedback the module firmware would send
// for the current wheel state.
func (v *Vehicle) FeedbackFrame(f *pgn.Frame) {
	v.mu.Lock()
	fb := pgn.SteerFeedback{
		SteerAngle:  v.steer,
		Heading:     NaN(),
		Roll:        NaN(),
		SteerSwitch: v.engaged,
	}
	v.mu.Unlock()
	pgn.EncodeFromSteer(&fb, f)
}
