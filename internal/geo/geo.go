// Package geo provides geographic primitives and the location sample feed.
package geo

import (
	"errors"
	"math"
	"time"
)

// ErrPositionUnavailable indicates the location sensor denied access or timed out.
// It is surfaced to the session layer; no retry happens at this level.
var ErrPositionUnavailable = errors.New("position unavailable")

const earthRadiusMeters = 6371008.8

// Point is a single timestamped location sample.
type Point struct {
	Lat float64   `json:"lat"`
	Lon float64   `json:"lon"`
	At  time.Time `json:"at"`
}

// Haversine returns the great-circle distance between two points in meters.
func Haversine(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// SphericalArea computes the enclosed area in square meters of the polygon
// formed by the vertex sequence, closing the last vertex back to the first.
// It uses the spherical excess form of the shoelace formula, which keeps the
// result translation-invariant for small regions and zero for collinear sets.
func SphericalArea(points []Point) float64 {
	if len(points) < 3 {
		return 0
	}

	var sum float64
	for i := range points {
		p1 := points[i]
		p2 := points[(i+1)%len(points)]
		lon1 := p1.Lon * math.Pi / 180
		lon2 := p2.Lon * math.Pi / 180
		lat1 := p1.Lat * math.Pi / 180
		lat2 := p2.Lat * math.Pi / 180
		sum += (lon2 - lon1) * (2 + math.Sin(lat1) + math.Sin(lat2))
	}
	return math.Abs(sum * earthRadiusMeters * earthRadiusMeters / 2)
}
