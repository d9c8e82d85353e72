// Package geo has the coordinate helpers behind the nearby bus stop search.
package geo

import "math"

const earthRadiusMeters = 6_371_000

// Point is a WGS84 position in decimal degrees, as DataMall reports stops.
type Point struct {
	Lat float64
	Lon float64
}

// Valid reports whether p lies within WGS84 bounds.
func (p Point) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lon) &&
		p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// DistanceTo returns the great-circle distance to q in metres.
func (p Point) DistanceTo(q Point) float64 {
	sinLat := math.Sin(radians(q.Lat-p.Lat) / 2)
	sinLon := math.Sin(radians(q.Lon-p.Lon) / 2)
	h := sinLat*sinLat + math.Cos(radians(p.Lat))*math.Cos(radians(q.Lat))*sinLon*sinLon
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(math.Min(h, 1)))
}

// Box is a latitude/longitude rectangle. It narrows the indexed scan before
// exact distances are computed.
type Box struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// BoxAround returns a box holding every point within radiusMeters of p.
// Near the poles the longitude span widens to the whole circle.
func BoxAround(p Point, radiusMeters float64) Box {
	latDeg := degrees(radiusMeters / earthRadiusMeters)
	lonDeg := 180.0
	if c := math.Cos(radians(p.Lat)); c > 1e-9 {
		lonDeg = math.Min(latDeg/c, 180)
	}
	return Box{
		MinLat: p.Lat - latDeg,
		MaxLat: p.Lat + latDeg,
		MinLon: p.Lon - lonDeg,
		MaxLon: p.Lon + lonDeg,
	}
}

// Contains reports whether p falls inside b, edges included.
func (b Box) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }
