package geo

import (
	"testing"
	"time"

	"petcare-workers/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMeters(t *testing.T) {
	tests := []struct {
		name     string
		a, b     models.GeoPoint
		expected float64
		delta    float64
	}{
		{"same point", models.GeoPoint{Lat: 40.7128, Lng: -74.0060}, models.GeoPoint{Lat: 40.7128, Lng: -74.0060}, 0, 0.001},
		{"one degree of latitude", models.GeoPoint{Lat: 0, Lng: 0}, models.GeoPoint{Lat: 1, Lng: 0}, 111195, 50},
		{"new york to los angeles", models.GeoPoint{Lat: 40.7128, Lng: -74.0060}, models.GeoPoint{Lat: 34.0522, Lng: -118.2437}, 3935746, 5000},
		{"antipodal", models.GeoPoint{Lat: 0, Lng: 0}, models.GeoPoint{Lat: 0, Lng: 180}, 20015115, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, DistanceMeters(tt.a, tt.b), tt.delta)
		})
	}
}

func TestDistanceMeters_Symmetric(t *testing.T) {
	a := models.GeoPoint{Lat: 51.5074, Lng: -0.1278}
	b := models.GeoPoint{Lat: 48.8566, Lng: 2.3522}
	assert.InDelta(t, DistanceMeters(a, b), DistanceMeters(b, a), 1e-6)
}

func TestDistanceMiles(t *testing.T) {
	a := models.GeoPoint{Lat: 0, Lng: 0}
	b := models.GeoPoint{Lat: 1, Lng: 0}
	assert.InDelta(t, 69.09, DistanceMiles(a, b), 0.05)
	assert.InDelta(t, 1609.344, MilesToMeters(1), 1e-9)
}

func TestAbsDelta(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(36 * time.Hour)

	assert.Equal(t, 36*time.Hour, AbsDelta(now, later))
	assert.Equal(t, 36*time.Hour, AbsDelta(later, now))
	assert.Equal(t, time.Duration(0), AbsDelta(now, now))
}
