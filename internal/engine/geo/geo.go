// Package geo holds the distance and time helpers used by both engine modes.
package geo

import (
	"math"
	"time"

	"petcare-workers/internal/models"
)

const (
	earthRadiusMeters = 6371008.8
	metersPerMile     = 1609.344
)

// DistanceMeters is the great-circle (haversine) distance between a and b.
func DistanceMeters(a, b models.GeoPoint) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	if h > 1 {
		h = 1
	}
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// DistanceMiles is DistanceMeters expressed in statute miles.
func DistanceMiles(a, b models.GeoPoint) float64 {
	return DistanceMeters(a, b) / metersPerMile
}

// MilesToMeters converts statute miles to meters.
func MilesToMeters(miles float64) float64 {
	return miles * metersPerMile
}

// AbsDelta returns |a - b|.
func AbsDelta(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
