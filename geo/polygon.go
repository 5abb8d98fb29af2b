package geo

// PointInPolygon reports whether p lies inside the ring by casting a ray
// east and counting edge crossings. The ring closes itself from the last
// vertex back to the first. Fewer than three vertices contain nothing.
func PointInPolygon(ring []PathPoint, p Point) bool {
	if len(ring) < 3 {
		return false
	}

	inside := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		vi, vj := ring[i], ring[j]
		if (vi.Northing > p.Northing) != (vj.Northing > p.Northing) {
			x := (vj.Easting-vi.Easting)*(p.Northing-vi.Northing)/
				(vj.Northing-vi.Northing) + vi.Easting
			if p.Easting < x {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// PolygonArea is the unsigned area enclosed by the ring in square meters.
func PolygonArea(ring []PathPoint) float64 {
	if len(ring) < 3 {
		return 0
	}

	var sum float64
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		sum += (ring[j].Easting + ring[i].Easting) * (ring[j].Northing - ring[i].Northing)
		j = i
	}
	if sum < 0 {
		sum = -sum
	}
	return sum / 2
}

// Centroid is the area-weighted center of the ring. ok is false when the
// ring encloses no area, in which case the plain vertex average is returned
// so callers still get something drawable.
func Centroid(ring []PathPoint) (c Point, ok bool) {
	if len(ring) == 0 {
		return Point{}, false
	}

	var area, cx, cy float64
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		cross := ring[j].Easting*ring[i].Northing - ring[i].Easting*ring[j].Northing
		area += cross
		cx += (ring[j].Easting + ring[i].Easting) * cross
		cy += (ring[j].Northing + ring[i].Northing) * cross
		j = i
	}

	if area == 0 {
		for _, v := range ring {
			c.Easting += v.Easting
			c.Northing += v.Northing
		}
		c.Easting /= float64(len(ring))
		c.Northing /= float64(len(ring))
		return c, false
	}

	c.Easting = cx / (3 * area)
	c.Northing = cy / (3 * area)
	return c, true
}
