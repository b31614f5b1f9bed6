// internal/workers/discovery/discover-places/models.go
package discoverplaces

import (
	"petcare-workers/internal/engine/aggregate"
	"petcare-workers/internal/models"
)

type Input struct {
	Category     string          `json:"category"`
	FreeText     string          `json:"freeText,omitempty"`
	Origin       models.GeoPoint `json:"origin"`
	RadiusMeters int             `json:"radiusMeters,omitempty"`
	Limit        int             `json:"limit,omitempty"`
}

func (i *Input) query() models.QueryContext {
	return models.QueryContext{
		Category:     i.Category,
		FreeText:     i.FreeText,
		Origin:       i.Origin,
		RadiusMeters: i.RadiusMeters,
		Limit:        i.Limit,
	}
}

// Source values reported in Output.
const (
	SourcePrimary  = "primary"
	SourceFallback = "fallback"
)

type Output struct {
	RunID        string                   `json:"runId"`
	Candidates   []models.ScoredCandidate `json:"candidates"`
	Keywords     []string                 `json:"keywords"`
	TypeHint     string                   `json:"typeHint"`
	Category     string                   `json:"category"`
	Partial      bool                     `json:"partial"`
	Source       string                   `json:"source"`
	FallbackUsed bool                     `json:"fallbackUsed"`
	Stats        []aggregate.KeywordStat  `json:"stats"`
}
