package geo

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
	. "math"
)

// ErrNoOrigin is returned when converting through a plane whose origin has
// not been anchored yet.
var ErrNoOrigin = errors.New("geo: local plane has no origin")

// LocalPlane is a flat-earth approximation anchored at an origin latitude
// and longitude. The meter-per-degree scale factors follow the WGS84 series
// expansion and are recomputed only when the origin moves, keeping the
// per-fix conversion to two multiplies.
type LocalPlane struct {
	originLat  float64 // degrees
	originLon  float64
	mPerDegLat float64
	mPerDegLon float64
	hasOrigin  bool
}

// NewLocalPlane returns a plane already anchored at lat, lon.
func NewLocalPlane(lat, lon float64) *LocalPlane {
	lp := &LocalPlane{}
	lp.SetOrigin(lat, lon)
	return lp
}

func (lp *LocalPlane) HasOrigin() bool {
	return lp.hasOrigin
}

func (lp *LocalPlane) Origin() (lat, lon float64) {
	return lp.originLat, lp.originLon
}

// SetOrigin anchors the plane and refreshes the scale factors for that
// latitude.
func (lp *LocalPlane) SetOrigin(lat, lon float64) {
	phi := mgl64.DegToRad(lat)
	lp.originLat = lat
	lp.originLon = lon
	lp.mPerDegLat = 111132.92 - 559.82*Cos(2*phi) + 1.175*Cos(4*phi) - 0.0023*Cos(6*phi)
	lp.mPerDegLon = 111412.84*Cos(phi) - 93.5*Cos(3*phi) + 0.118*Cos(5*phi)
	lp.hasOrigin = true
}

// ToLocal converts a geodetic position to plane meters relative to the
// origin.
func (lp *LocalPlane) ToLocal(lat, lon float64) (Point, error) {
	if !lp.hasOrigin {
		return Point{}, ErrNoOrigin
	}
	return Point{
		Easting:  (lon - lp.originLon) * lp.mPerDegLon,
		Northing: (lat - lp.originLat) * lp.mPerDegLat,
	}, nil
}

// ToGeodetic converts plane meters back to a geodetic position.
func (lp *LocalPlane) ToGeodetic(p Point) (lat, lon float64, err error) {
	if !lp.hasOrigin {
		return 0, 0, ErrNoOrigin
	}
	lat = lp.originLat + p.Northing/lp.mPerDegLat
	lon = lp.originLon + p.Easting/lp.mPerDegLon
	return lat, lon, nil
}
