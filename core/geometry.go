package core

import "math"

// Meters-per-degree constants for the local equirectangular approximation.
// The planner targets bounded mid-latitude areas of interest, so a fixed
// longitude scale is accurate enough and keeps every distance, step cost,
// and heuristic in the same metric.
const (
	MetersPerDegreeLat = 111320.0
	MetersPerDegreeLon = 85000.0
)

// Coordinate is a WGS 84 latitude/longitude pair (EPSG:4326), degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DistanceTo returns the planar ground distance to other in metres.
func (c Coordinate) DistanceTo(other Coordinate) float64 {
	dLat := (other.Lat - c.Lat) * MetersPerDegreeLat
	dLon := (other.Lon - c.Lon) * MetersPerDegreeLon
	return math.Sqrt(dLat*dLat + dLon*dLon)
}

// pointInPolygon reports whether p lies inside the ring via ray casting.
// The ring does not need to repeat its first vertex.
func pointInPolygon(p Coordinate, ring []Coordinate) bool {
	if len(ring) < 3 {
		return false
	}
	inside := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		a, b := ring[i], ring[j]
		if (a.Lon > p.Lon) != (b.Lon > p.Lon) {
			cross := (b.Lat-a.Lat)*(p.Lon-a.Lon)/(b.Lon-a.Lon) + a.Lat
			if p.Lat < cross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// distanceToSegment returns the planar distance in metres from p to the
// segment a-b.
func distanceToSegment(p, a, b Coordinate) float64 {
	ax := (p.Lon - a.Lon) * MetersPerDegreeLon
	ay := (p.Lat - a.Lat) * MetersPerDegreeLat
	bx := (b.Lon - a.Lon) * MetersPerDegreeLon
	by := (b.Lat - a.Lat) * MetersPerDegreeLat

	segLen2 := bx*bx + by*by
	if segLen2 == 0 {
		return math.Sqrt(ax*ax + ay*ay)
	}
	t := (ax*bx + ay*by) / segLen2
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	dx := ax - t*bx
	dy := ay - t*by
	return math.Sqrt(dx*dx + dy*dy)
}

// distanceToPolygon returns 0 when p is inside the ring, otherwise the
// planar distance to the nearest edge.
func distanceToPolygon(p Coordinate, ring []Coordinate) float64 {
	if pointInPolygon(p, ring) {
		return 0
	}
	best := math.Inf(1)
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		if d := distanceToSegment(p, ring[j], ring[i]); d < best {
			best = d
		}
		j = i
	}
	return best
}
