package pgn

import (
	"encoding/binary"
	"strings"

	. "math"
)

// No-data markers used by modules that lack the sensor in question.
const (
	noHeading = 65535 // uint16 fields
	noAngle   = 32767 // int16 fields
)

// SteerFeedback is what the steer module reports back each cycle. Angles
// are degrees; Heading and Roll are NaN when the module has no such
// sensor.
type SteerFeedback struct {
	SteerAngle  float64 `json:"steer_angle"`
	Heading     float64 `json:"heading"`
	Roll        float64 `json:"roll"`
	SteerSwitch bool    `json:"steer_switch"`
	WorkSwitch  bool    `json:"work_switch"`
	PWM         uint8   `json:"pwm"`
}

// ParseFromSteer reads the feedback frame:
//
//	[5..6]  actual steer angle, degrees x100, int16
//	[7..8]  heading, degrees x10, uint16, 65535 = none
//	[9..10] roll, degrees x10, int16, 32767 = none
//	[11]    switch byte: bit0 steer switch, bit1 work switch
//	[12]    pwm drive level
func ParseFromSteer(f *Frame) (SteerFeedback, error) {
	if f.PGN() != PGNFromSteer {
		return SteerFeedback{}, ErrWrongPGN
	}
	p := f.Payload()
	fb := SteerFeedback{
		SteerAngle:  float64(int16(binary.BigEndian.Uint16(p[0:2]))) / 100,
		Heading:     headingTenths(binary.BigEndian.Uint16(p[2:4])),
		Roll:        angleTenths(int16(binary.BigEndian.Uint16(p[4:6]))),
		SteerSwitch: p[6]&(1<<0) != 0,
		WorkSwitch:  p[6]&(1<<1) != 0,
		PWM:         p[7],
	}
	return fb, nil
}

// IMUReading is one attitude frame, all fields degrees (deg/s for the yaw
// rate), NaN where the sensor sent the no-data marker.
type IMUReading struct {
	Heading float64 `json:"heading"`
	Roll    float64 `json:"roll"`
	Pitch   float64 `json:"pitch"`
	YawRate float64 `json:"yaw_rate"`
}

// ParseIMU reads the IMU frame: heading x10 uint16, then roll, pitch and
// yaw rate as x10 int16 values.
func ParseIMU(f *Frame) (IMUReading, error) {
	if f.PGN() != PGNIMUData {
		return IMUReading{}, ErrWrongPGN
	}
	p := f.Payload()
	r := IMUReading{
		Heading: headingTenths(binary.BigEndian.Uint16(p[0:2])),
		Roll:    angleTenths(int16(binary.BigEndian.Uint16(p[2:4]))),
		Pitch:   angleTenths(int16(binary.BigEndian.Uint16(p[4:6]))),
		YawRate: angleTenths(int16(binary.BigEndian.Uint16(p[6:8]))),
	}
	return r, nil
}

// ParseHello reads the boot frame. The payload is the module firmware
// version as ASCII, NUL padded.
func ParseHello(f *Frame) (string, error) {
	if f.PGN() != PGNHelloFromSteer {
		return "", ErrWrongPGN
	}
	return strings.TrimRight(string(f.Payload()), "\x00 "), nil
}

// SteerCommand is the decoded per-cycle command frame. The simulator uses
// it to close the loop; units are back in metres and m/s.
type SteerCommand struct {
	Speed         float64 // m/s
	SteerAngle    float64 // degrees
	CrossTrack    float64 // metres
	Sections      uint16
	SteerSwitch   bool
	WorkSwitch    bool
	SteerEnabled  bool
	GPSValid      bool
	GuidanceValid bool
}

// ParseSteerData decodes what EncodeSteerData produced.
func ParseSteerData(f *Frame) (SteerCommand, error) {
	if f.PGN() != PGNSteerData {
		return SteerCommand{}, ErrWrongPGN
	}
	p := f.Payload()
	status := p[2]
	c := SteerCommand{
		Speed:         float64(binary.BigEndian.Uint16(p[0:2])) / 10 / 3.6,
		SteerAngle:    float64(int16(binary.BigEndian.Uint16(p[3:5]))) / 100,
		CrossTrack:    float64(int8(p[5])) / 100,
		Sections:      binary.BigEndian.Uint16(p[6:8]),
		SteerSwitch:   status&StatusSteerSwitch != 0,
		WorkSwitch:    status&StatusWorkSwitch != 0,
		SteerEnabled:  status&StatusSteerEnabled != 0,
		GPSValid:      status&StatusGPSValid != 0,
		GuidanceValid: status&StatusGuidanceValid != 0,
	}
	return c, nil
}

func headingTenths(v uint16) float64 {
	if v == noHeading {
		return NaN()
	}
	return float64(v) / 10
}

func angleTenths(v int16) float64 {
	if v == noAngle {
		return NaN()
	}
	return float64(v) / 10
}
