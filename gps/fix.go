// Package gps parses the position/attitude feed into plain fix structs for
// the guidance loop. The loop consumes parsed fixes only; raw sentence
// handling stays here.
package gps

import (
	"time"
)

// Fix quality values follow the GGA convention.
const (
	QualityNone     = 0
	QualityGPS      = 1
	QualityDGPS     = 2
	QualityFixedRTK = 4
	QualityFloatRTK = 5
)

// Fix is one parsed position/attitude sample. Angular fields are radians.
// Heading, Roll, Pitch and YawRate are NaN when the feed carried no usable
// value for them; consumers must check before steering on them.
type Fix struct {
	Time       time.Time // receive time, drives the watchdog
	Latitude   float64
	Longitude  float64
	Altitude   float64
	Speed      float64 // m/s over ground
	Heading    float64
	Quality    int
	Satellites int
	HDOP       float64
	DiffAge    float64 // seconds since the last differential correction
	Roll       float64
	Pitch      float64
	YawRate    float64 // rad/s
}

// Valid reports whether the fix carries a usable position.
func (f Fix) Valid() bool {
	return f.Quality > QualityNone
}
