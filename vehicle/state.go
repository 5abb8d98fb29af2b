// Package vehicle holds the shared vehicle record. The guidance cycle is
// the only writer; the API, console and websocket watchers read consistent
// copies through Snapshot. Mutating methods write in place and do not
// allocate, so the record is safe to touch from the 10 Hz loop.
package vehicle

import (
	"sync"
	"time"

	. "math"

	"github.com/openfieldag/gosteer/gps"
	"github.com/openfieldag/gosteer/guidance"
)

// Snapshot is one consistent copy of the vehicle record. Readers always
// take the whole struct; reading fields one at a time could mix values
// from two different cycles. Float fields are sanitised on write so the
// struct always marshals to JSON.
type Snapshot struct {
	// raw fix
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Altitude   float64   `json:"altitude"`
	Quality    int       `json:"quality"`
	Satellites int       `json:"satellites"`
	HDOP       float64   `json:"hdop"`
	DiffAge    float64   `json:"diff_age"`
	LastFix    time.Time `json:"last_fix"`

	// localised position
	Easting  float64 `json:"easting"`
	Northing float64 `json:"northing"`
	Heading  float64 `json:"heading"` // radians, compass
	Speed    float64 `json:"speed"`   // m/s
	Reverse  bool    `json:"reverse"`
	GPSValid bool    `json:"gps_valid"`

	// attitude
	Roll     float64 `json:"roll"`  // radians
	Pitch    float64 `json:"pitch"` // radians
	YawRate  float64 `json:"yaw_rate"`
	IMUValid bool    `json:"imu_valid"`

	// guidance output
	CrossTrack    float64 `json:"cross_track"` // metres, positive right
	SteerAngleSet float64 `json:"steer_angle_set"`
	HeadingError  float64 `json:"heading_error"` // degrees
	OnTrack       bool    `json:"on_track"`
	GuidanceValid bool    `json:"guidance_valid"`
	SteerEnabled  bool    `json:"steer_enabled"`

	// steer module feedback
	SteerAngleActual float64 `json:"steer_angle_actual"`
	SteerSwitch      bool    `json:"steer_switch"`
	WorkSwitch       bool    `json:"work_switch"`
	PWM              uint8   `json:"pwm"`

	// implement
	Sections uint16 `json:"sections"`
}

// State wraps a Snapshot behind a mutex.
type State struct {
	mu sync.Mutex
	s  Snapshot
}

func New() *State {
	return &State{}
}

// UpdateFix writes the parsed fix and its localised position. valid
// combines fix quality with successful localisation; heading and attitude
// fields are only overwritten when the fix actually carried them.
func (st *State) UpdateFix(f *gps.Fix, easting, northing float64, valid bool) {
	st.mu.Lock()
	st.s.Latitude = f.Latitude
	st.s.Longitude = f.Longitude
	st.s.Altitude = f.Altitude
	st.s.Quality = f.Quality
	st.s.Satellites = f.Satellites
	st.s.HDOP = f.HDOP
	st.s.DiffAge = f.DiffAge
	st.s.LastFix = f.Time
	st.s.Easting = easting
	st.s.Northing = northing
	st.s.Speed = f.Speed
	st.s.GPSValid = valid
	if !IsNaN(f.Heading) {
		st.s.Heading = f.Heading
	}
	if !IsNaN(f.Roll) {
		st.s.Roll = f.Roll
		st.s.Pitch = nanToZero(f.Pitch)
		st.s.YawRate = nanToZero(f.YawRate)
		st.s.IMUValid = true
	}
	st.mu.Unlock()
}

// UpdateIMU stores attitude arriving outside the fix stream, such as a
// roll frame from the steer module.
func (st *State) UpdateIMU(roll, pitch, yawRate float64) {
	if IsNaN(roll) {
		return
	}
	st.mu.Lock()
	st.s.Roll = roll
	st.s.Pitch = nanToZero(pitch)
	st.s.YawRate = nanToZero(yawRate)
	st.s.IMUValid = true
	st.mu.Unlock()
}

// ApplyControl stores the cycle's guidance result. An invalid result
// forces the command fields to no-authority values so a stale steer angle
// can never linger in the record. engaged reflects the operator's wish;
// the module is only enabled when the result can back it up.
func (st *State) ApplyControl(res *guidance.Result, engaged, onTrack bool) {
	st.mu.Lock()
	st.s.CrossTrack = res.CrossTrack
	st.s.HeadingError = res.HeadingError
	if res.Valid {
		st.s.SteerAngleSet = res.SteerAngle
		st.s.GuidanceValid = true
		st.s.OnTrack = onTrack
	} else {
		st.s.SteerAngleSet = 0
		st.s.GuidanceValid = false
		st.s.OnTrack = false
	}
	st.s.SteerEnabled = engaged && res.Valid
	st.mu.Unlock()
}

// ApplySteerFeedback records what the steer module reported back.
func (st *State) ApplySteerFeedback(actualDeg float64, steerSwitch, workSwitch bool, pwm uint8) {
	st.mu.Lock()
	st.s.SteerAngleActual = actualDeg
	st.s.SteerSwitch = steerSwitch
	st.s.WorkSwitch = workSwitch
	st.s.PWM = pwm
	st.mu.Unlock()
}

// SetSections writes the implement section mask.
func (st *State) SetSections(mask uint16) {
	st.mu.Lock()
	st.s.Sections = mask
	st.mu.Unlock()
}

// SetReverse flags that the machine is driving in reverse.
func (st *State) SetReverse(reverse bool) {
	st.mu.Lock()
	st.s.Reverse = reverse
	st.mu.Unlock()
}

// DropAuthority zeroes every field that could command the wheel. The
// watchdog calls this when the fix feed goes quiet.
func (st *State) DropAuthority() {
	st.mu.Lock()
	st.s.SteerAngleSet = 0
	st.s.GuidanceValid = false
	st.s.SteerEnabled = false
	st.s.GPSValid = false
	st.s.OnTrack = false
	st.mu.Unlock()
}

// Snapshot returns a consistent copy of the record.
func (st *State) Snapshot() Snapshot {
	st.mu.Lock()
	s := st.s
	st.mu.Unlock()
	return s
}

func nanToZero(v float64) float64 {
	if IsNaN(v) {
		return 0
	}
	return v
}
