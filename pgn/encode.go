package pgn

import (
	"encoding/binary"

	. "math"

	"github.com/openfieldag/gosteer/vehicle"
)

// EncodeSteerData fills f with the per-cycle command frame:
//
//	[5..6]  ground speed, km/h x10, uint16
//	[7]     status bits
//	[8..9]  set steer angle, degrees x100, int16
//	[10]    cross-track error, cm, int8 saturating
//	[11..12] section mask, uint16
//
// Out-of-range values saturate rather than wrap, so a huge cross-track
// error still reads as hard-off-line instead of flipping sign.
func EncodeSteerData(snap *vehicle.Snapshot, f *Frame) {
	f.begin(PGNSteerData)
	p := f.Payload()

	binary.BigEndian.PutUint16(p[0:2], satU16(snap.Speed*3.6*10))

	var status byte
	if snap.SteerSwitch {
		status |= StatusSteerSwitch
	}
	if snap.WorkSwitch {
		status |= StatusWorkSwitch
	}
	if snap.SteerEnabled {
		status |= StatusSteerEnabled
	}
	if snap.GPSValid {
		status |= StatusGPSValid
	}
	if snap.GuidanceValid {
		status |= StatusGuidanceValid
	}
	p[2] = status

	binary.BigEndian.PutUint16(p[3:5], uint16(sat16(snap.SteerAngleSet*100)))
	p[5] = byte(sat8(snap.CrossTrack * 100))
	binary.BigEndian.PutUint16(p[6:8], snap.Sections)

	f.seal()
}

// MachineControl carries the non-steering machine outputs.
type MachineControl struct {
	UTurn   uint8 `json:"uturn"`
	HydLift uint8 `json:"hyd_lift"`
	Tram    uint8 `json:"tram"`
	GeoStop bool  `json:"geo_stop"`
}

// EncodeMachineData fills f with the machine module frame: uturn, ground
// speed km/h x10, hydraulic lift, tramline, geo-stop flag, section mask.
// Speed is m/s like everywhere else in the pipeline.
func EncodeMachineData(mc *MachineControl, speed float64, sections uint16, f *Frame) {
	f.begin(PGNMachineData)
	p := f.Payload()

	p[0] = mc.UTurn
	p[1] = satU8(speed * 3.6 * 10)
	p[2] = mc.HydLift
	p[3] = mc.Tram
	if mc.GeoStop {
		p[4] = 1
	} else {
		p[4] = 0
	}
	p[5] = 0
	binary.BigEndian.PutUint16(p[6:8], sections)

	f.seal()
}

// SteerSettings are the motor-drive gains pushed to the steer module.
type SteerSettings struct {
	GainP        float64 `json:"gain_p" yaml:"gain_p"`
	HighPWM      uint8   `json:"high_pwm" yaml:"high_pwm"`
	LowPWM       uint8   `json:"low_pwm" yaml:"low_pwm"`
	MinPWM       uint8   `json:"min_pwm" yaml:"min_pwm"`
	CountsPerDeg uint8   `json:"counts_per_deg" yaml:"counts_per_deg"`
	WASOffset    int16   `json:"was_offset" yaml:"was_offset"`
	AckermanFix  uint8   `json:"ackerman_fix" yaml:"ackerman_fix"`
}

// EncodeSteerSettings fills f with the gain frame. GainP travels as a
// tenth-resolution byte.
func EncodeSteerSettings(s *SteerSettings, f *Frame) {
	f.begin(PGNSteerSettings)
	p := f.Payload()

	p[0] = byte(satU8(s.GainP * 10))
	p[1] = s.HighPWM
	p[2] = s.LowPWM
	p[3] = s.MinPWM
	p[4] = s.CountsPerDeg
	binary.BigEndian.PutUint16(p[5:7], uint16(s.WASOffset))
	p[7] = s.AckermanFix

	f.seal()
}

// SteerConfig describes the module wiring: sensor and motor inversions,
// valve type and the encoder safety limit.
type SteerConfig struct {
	InvertWAS     bool  `json:"invert_was" yaml:"invert_was"`
	InvertSteer   bool  `json:"invert_steer" yaml:"invert_steer"`
	InvertRelays  bool  `json:"invert_relays" yaml:"invert_relays"`
	DanfossValve  bool  `json:"danfoss_valve" yaml:"danfoss_valve"`
	PulseCountMax uint8 `json:"pulse_count_max" yaml:"pulse_count_max"`
	MinSpeed      uint8 `json:"min_speed" yaml:"min_speed"` // km/h x10
}

// EncodeSteerConfig fills f with the wiring frame.
func EncodeSteerConfig(c *SteerConfig, f *Frame) {
	f.begin(PGNSteerConfig)
	p := f.Payload()

	var set byte
	if c.InvertWAS {
		set |= 1 << 0
	}
	if c.InvertSteer {
		set |= 1 << 1
	}
	if c.InvertRelays {
		set |= 1 << 2
	}
	if c.DanfossValve {
		set |= 1 << 3
	}
	p[0] = set
	p[1] = c.PulseCountMax
	p[2] = c.MinSpeed
	for i := 3; i < PayloadLen; i++ {
		p[i] = 0
	}

	f.seal()
}

// EncodeFromSteer builds the module feedback frame. The simulator and the
// codec tests use it; real hardware produces the same bytes.
func EncodeFromSteer(fb *SteerFeedback, f *Frame) {
	f.beginAs(SourceSteerModule, PGNFromSteer)
	p := f.Payload()

	binary.BigEndian.PutUint16(p[0:2], uint16(sat16(fb.SteerAngle*100)))
	if IsNaN(fb.Heading) {
		binary.BigEndian.PutUint16(p[2:4], noHeading)
	} else {
		binary.BigEndian.PutUint16(p[2:4], satU16(fb.Heading*10))
	}
	if IsNaN(fb.Roll) {
		binary.BigEndian.PutUint16(p[4:6], uint16(int16(noAngle)))
	} else {
		binary.BigEndian.PutUint16(p[4:6], uint16(sat16(fb.Roll*10)))
	}
	var sw byte
	if fb.SteerSwitch {
		sw |= 1 << 0
	}
	if fb.WorkSwitch {
		sw |= 1 << 1
	}
	p[6] = sw
	p[7] = fb.PWM

	f.seal()
}

// EncodeIMU builds an attitude frame from degree values; NaN fields
// travel as the no-data markers.
func EncodeIMU(r *IMUReading, f *Frame) {
	f.beginAs(SourceSteerModule, PGNIMUData)
	p := f.Payload()

	if IsNaN(r.Heading) {
		binary.BigEndian.PutUint16(p[0:2], noHeading)
	} else {
		binary.BigEndian.PutUint16(p[0:2], satU16(r.Heading*10))
	}
	for i, v := range [...]float64{r.Roll, r.Pitch, r.YawRate} {
		off := 2 + 2*i
		if IsNaN(v) {
			binary.BigEndian.PutUint16(p[off:off+2], uint16(int16(noAngle)))
		} else {
			binary.BigEndian.PutUint16(p[off:off+2], uint16(sat16(v*10)))
		}
	}

	f.seal()
}

// EncodeHello builds the boot frame carrying the firmware version string,
// truncated to the 8 payload bytes and NUL padded.
func EncodeHello(version string, f *Frame) {
	f.beginAs(SourceSteerModule, PGNHelloFromSteer)
	p := f.Payload()
	for i := range p {
		p[i] = 0
	}
	copy(p, version)

	f.seal()
}

// The saturating converters round first so values a hair under a step do
// not truncate down a unit.

func sat16(v float64) int16 {
	v = Round(v)
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	}
	return int16(v)
}

func satU16(v float64) uint16 {
	v = Round(v)
	switch {
	case v > 65535:
		return 65535
	case v < 0:
		return 0
	}
	return uint16(v)
}

func sat8(v float64) int8 {
	v = Round(v)
	switch {
	case v > 127:
		return 127
	case v < -128:
		return -128
	}
	return int8(v)
}

func satU8(v float64) uint8 {
	v = Round(v)
	switch {
	case v > 255:
		return 255
	case v < 0:
		return 0
	}
	return uint8(v)
}
