package gps

import (
	"errors"
	"strconv"
	"strings"
	"time"

	. "math"

	"github.com/go-gl/mathgl/mgl64"
)

// metres per second in one knot
const knots = 0.514444

// pandaNoData marks an absent IMU field in PANDA sentences.
const pandaNoData = 65535

var errHemisphere = errors.New("gps: bad hemisphere")

// Parser assembles fixes from an NMEA sentence stream. GGA sentences
// complete a positional fix using the most recent VTG speed and course;
// PANDA sentences carry position and IMU in a single line. Sentences with
// a bad checksum are dropped and counted.
type Parser struct {
	speed  float64 // last VTG ground speed, m/s
	course float64 // last VTG true course, radians
	hasVTG bool

	// BadChecksum counts sentences rejected by the checksum test.
	BadChecksum uint64
}

// Parse consumes one sentence. done is true when the sentence completed a
// positional fix; VTG and unrecognised sentences update internal state and
// return done false.
func (p *Parser) Parse(line string) (fix Fix, done bool) {
	body, ok := checksumOK(strings.TrimSpace(line))
	if !ok {
		p.BadChecksum++
		return Fix{}, false
	}

	fields := strings.Split(body, ",")
	switch {
	case strings.HasSuffix(fields[0], "GGA"):
		return p.parseGGA(fields)
	case strings.HasSuffix(fields[0], "VTG"):
		p.parseVTG(fields)
	case fields[0] == "PANDA":
		return p.parsePANDA(fields)
	}
	return Fix{}, false
}

// checksumOK validates the $...*HH envelope and returns the body between
// the dollar and the star.
func checksumOK(line string) (string, bool) {
	if len(line) < 4 || line[0] != '$' {
		return "", false
	}
	star := strings.LastIndexByte(line, '*')
	if star < 0 || star+3 > len(line) {
		return "", false
	}
	want, err := strconv.ParseUint(line[star+1:star+3], 16, 8)
	if err != nil {
		return "", false
	}
	var sum byte
	for i := 1; i < star; i++ {
		sum ^= line[i]
	}
	if sum != byte(want) {
		return "", false
	}
	return line[1:star], true
}

func (p *Parser) parseGGA(f []string) (Fix, bool) {
	if len(f) < 10 {
		return Fix{}, false
	}
	lat, err := parseCoord(f[2], f[3])
	if err != nil {
		return Fix{}, false
	}
	lon, err := parseCoord(f[4], f[5])
	if err != nil {
		return Fix{}, false
	}

	fix := Fix{
		Time:      time.Now(),
		Latitude:  lat,
		Longitude: lon,
		Heading:   NaN(),
		Roll:      NaN(),
		Pitch:     NaN(),
		YawRate:   NaN(),
	}
	fix.Quality, _ = strconv.Atoi(f[6])
	fix.Satellites, _ = strconv.Atoi(f[7])
	fix.HDOP, _ = strconv.ParseFloat(f[8], 64)
	fix.Altitude, _ = strconv.ParseFloat(f[9], 64)
	if len(f) > 13 {
		fix.DiffAge, _ = strconv.ParseFloat(f[13], 64)
	}
	if p.hasVTG {
		fix.Speed = p.speed
		fix.Heading = p.course
	}
	return fix, true
}

func (p *Parser) parseVTG(f []string) {
	if len(f) < 6 {
		return
	}
	course, err1 := strconv.ParseFloat(f[1], 64)
	kn, err2 := strconv.ParseFloat(f[5], 64)
	if err1 != nil || err2 != nil {
		return
	}
	p.course = mgl64.DegToRad(course)
	p.speed = kn * knots
	p.hasVTG = true
}

// parsePANDA reads the combined position/IMU sentence:
// $PANDA,utc,lat,NS,lon,EW,quality,sats,hdop,alt,age,speedKn,
// heading10,roll10,pitch10,yawRate10*HH
// where the last four fields are tenths of a degree (deg/s for yaw rate).
func (p *Parser) parsePANDA(f []string) (Fix, bool) {
	if len(f) < 16 {
		return Fix{}, false
	}
	lat, err := parseCoord(f[2], f[3])
	if err != nil {
		return Fix{}, false
	}
	lon, err := parseCoord(f[4], f[5])
	if err != nil {
		return Fix{}, false
	}

	fix := Fix{
		Time:      time.Now(),
		Latitude:  lat,
		Longitude: lon,
	}
	fix.Quality, _ = strconv.Atoi(f[6])
	fix.Satellites, _ = strconv.Atoi(f[7])
	fix.HDOP, _ = strconv.ParseFloat(f[8], 64)
	fix.Altitude, _ = strconv.ParseFloat(f[9], 64)
	fix.DiffAge, _ = strconv.ParseFloat(f[10], 64)
	kn, _ := strconv.ParseFloat(f[11], 64)
	fix.Speed = kn * knots
	fix.Heading = tenthsDeg(f[12])
	fix.Roll = tenthsDeg(f[13])
	fix.Pitch = tenthsDeg(f[14])
	fix.YawRate = tenthsDeg(f[15])
	if IsNaN(fix.Heading) && p.hasVTG {
		fix.Heading = p.course
	}
	return fix, true
}

// parseCoord converts the ddmm.mmmm form plus hemisphere letter into
// signed decimal degrees.
func parseCoord(v, hemi string) (float64, error) {
	raw, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	deg := Floor(raw / 100)
	dec := deg + (raw-deg*100)/60
	switch hemi {
	case "N", "E":
	case "S", "W":
		dec = -dec
	default:
		return 0, errHemisphere
	}
	return dec, nil
}

func tenthsDeg(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v == pandaNoData {
		return NaN()
	}
	return mgl64.DegToRad(v / 10)
}
