// internal/models/pet.go
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind discriminates lost and found reports.
type Kind string

const (
	KindLost  Kind = "lost"
	KindFound Kind = "found"
)

// Opposite returns the kind a report of this kind is matched against.
func (k Kind) Opposite() Kind {
	if k == KindLost {
		return KindFound
	}
	return KindLost
}

// ParseKind normalizes a wire value into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindLost:
		return KindLost, nil
	case KindFound:
		return KindFound, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

var ErrUnknownKind = errors.New("unknown report kind")

// Size categories in ascending order.
const (
	SizeSmall  = "Small"
	SizeMedium = "Medium"
	SizeLarge  = "Large"
	SizeXLarge = "X-Large"
)

// PetProfile is the kind-independent comparison view of a report.
// Missing fields are zero values; Location is nil when unknown.
type PetProfile struct {
	Type           string
	Breed          string
	PrimaryColor   string
	SecondaryColor string
	Size           string
	Gender         string
	Features       string
	Location       *GeoPoint
	CreatedAt      time.Time
	Microchip      string
}

// Report is either a LostReport or a FoundReport.
type Report interface {
	ReportID() string
	Kind() Kind
	Profile() PetProfile
}

// LostReport is filed by an owner whose pet is missing.
type LostReport struct {
	ID                 string    `json:"id"`
	PetName            string    `json:"petName,omitempty"`
	Type               string    `json:"type"`
	Breed              string    `json:"breed,omitempty"`
	PrimaryColor       string    `json:"primaryColor,omitempty"`
	SecondaryColor     string    `json:"secondaryColor,omitempty"`
	Size               string    `json:"size,omitempty"`
	Gender             string    `json:"gender,omitempty"`
	DistinctiveFeature string    `json:"distinctiveFeatures,omitempty"`
	LastSeenLocation   *GeoPoint `json:"lastSeenLocation,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	Microchip          string    `json:"microchipNumber,omitempty"`
}

func (r *LostReport) ReportID() string { return r.ID }
func (r *LostReport) Kind() Kind       { return KindLost }

func (r *LostReport) Profile() PetProfile {
	return PetProfile{
		Type:           r.Type,
		Breed:          r.Breed,
		PrimaryColor:   r.PrimaryColor,
		SecondaryColor: r.SecondaryColor,
		Size:           r.Size,
		Gender:         r.Gender,
		Features:       r.DistinctiveFeature,
		Location:       r.LastSeenLocation,
		CreatedAt:      r.CreatedAt,
		Microchip:      r.Microchip,
	}
}

// FoundReport is filed by someone who found an animal. Breed is a guess.
type FoundReport struct {
	ID                 string    `json:"id"`
	Type               string    `json:"type"`
	ApproximateBreed   string    `json:"approximateBreed,omitempty"`
	PrimaryColor       string    `json:"primaryColor,omitempty"`
	SecondaryColor     string    `json:"secondaryColor,omitempty"`
	Size               string    `json:"size,omitempty"`
	Gender             string    `json:"gender,omitempty"`
	DistinctiveFeature string    `json:"distinctiveFeatures,omitempty"`
	FoundLocation      *GeoPoint `json:"foundLocation,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	Microchip          string    `json:"microchipNumber,omitempty"`
}

func (r *FoundReport) ReportID() string { return r.ID }
func (r *FoundReport) Kind() Kind       { return KindFound }

func (r *FoundReport) Profile() PetProfile {
	return PetProfile{
		Type:           r.Type,
		Breed:          r.ApproximateBreed,
		PrimaryColor:   r.PrimaryColor,
		SecondaryColor: r.SecondaryColor,
		Size:           r.Size,
		Gender:         r.Gender,
		Features:       r.DistinctiveFeature,
		Location:       r.FoundLocation,
		CreatedAt:      r.CreatedAt,
		Microchip:      r.Microchip,
	}
}

// PetRecord is the JSON envelope for a Report, discriminated by "kind".
type PetRecord struct {
	Report
}

func (p PetRecord) MarshalJSON() ([]byte, error) {
	if p.Report == nil {
		return []byte("null"), nil
	}
	body, err := json.Marshal(p.Report)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["kind"], _ = json.Marshal(p.Report.Kind())
	return json.Marshal(fields)
}

func (p *PetRecord) UnmarshalJSON(data []byte) error {
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	kind, err := ParseKind(head.Kind)
	if err != nil {
		return err
	}
	switch kind {
	case KindLost:
		var r LostReport
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		p.Report = &r
	case KindFound:
		var r FoundReport
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		p.Report = &r
	}
	return nil
}

// Confidence buckets a match score.
type Confidence string

const (
	ConfidenceVeryLow Confidence = "VeryLow"
	ConfidenceLow     Confidence = "Low"
	ConfidenceMedium  Confidence = "Medium"
	ConfidenceHigh    Confidence = "High"
)

// MatchResult points at the other record of a scored pair.
type MatchResult struct {
	RecordID   string     `json:"recordId"`
	RecordKind Kind       `json:"recordKind"`
	Score      int        `json:"score"`
	Confidence Confidence `json:"confidence"`
}

// MatchBreakdown itemizes one RecordMatcher computation.
type MatchBreakdown struct {
	Type           float64 `json:"type"`
	Breed          float64 `json:"breed"`
	Color          float64 `json:"color"`
	SecondaryColor float64 `json:"secondaryColor"`
	Size           float64 `json:"size"`
	Gender         float64 `json:"gender"`
	Location       float64 `json:"location"`
	Recency        float64 `json:"recency"`
	Features       float64 `json:"features"`
	MicrochipMatch bool    `json:"microchipMatch"`
	Score          int     `json:"score"`
}
