// internal/models/place.go
package models

import "strings"

// GeoPoint is a WGS84 coordinate in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the point was never set.
func (p GeoPoint) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0
}

// Category values understood by the keyword expander.
const (
	CategoryServices = "services"
	CategoryHealth   = "health"
	CategoryParks    = "parks"
	CategoryStores   = "stores"
	CategoryShelters = "shelters"
)

// QueryContext is the immutable input of one Discovery call.
type QueryContext struct {
	Category     string   `json:"category"`
	FreeText     string   `json:"freeText,omitempty"`
	Origin       GeoPoint `json:"origin"`
	RadiusMeters int      `json:"radiusMeters,omitempty"`
	Limit        int      `json:"limit,omitempty"`
}

// HasFreeText reports whether the caller supplied a free-text override.
func (q QueryContext) HasFreeText() bool {
	return strings.TrimSpace(q.FreeText) != ""
}

// CandidateStub is a raw keyword-search hit from the place provider.
type CandidateStub struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Types []string `json:"types,omitempty"`
}

// CandidateDetail is the full place record for one provider id.
type CandidateDetail struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Address     string   `json:"address,omitempty"`
	Location    GeoPoint `json:"location"`
	Phone       string   `json:"phone,omitempty"`
	Website     string   `json:"website,omitempty"`
	OpenNow     *bool    `json:"openNow,omitempty"`
	Hours       []string `json:"hours,omitempty"`
	Rating      float64  `json:"rating"`
	ReviewCount int      `json:"reviewCount"`
	PhotoRef    string   `json:"photoRef,omitempty"`
	TypeLabel   string   `json:"typeLabel,omitempty"`
}

// ScoredCandidate is a detail with its best relevance score in a run.
type ScoredCandidate struct {
	CandidateDetail
	Score   int    `json:"score"`
	Keyword string `json:"keyword"`
}

// DetailFields is the default field mask requested from the provider.
var DetailFields = []string{
	"place_id", "name", "formatted_address", "geometry", "formatted_phone_number",
	"website", "opening_hours", "rating", "user_ratings_total", "photos", "types",
}
