// Package relevance scores one Discovery candidate against the query that
// surfaced it. Scores are additive and signed; only their ordering is meaningful.
package relevance

import (
	"math"
	"strings"

	"petcare-workers/internal/engine/tables"
	"petcare-workers/internal/models"
)

// Scoring constants.
const (
	AllTermsBonus      = 50
	PerTermBonus       = 10
	KeywordExactBonus  = 30
	KeywordContains    = 15
	ServiceMatchBonus  = 40
	ServiceMissPenalty = -20
	CategoryBonus      = 20
	RatingMultiplier   = 2
	ReviewsPerPoint    = 50
	MaxReviewPoints    = 10
)

// Scorer is safe for concurrent use.
type Scorer struct {
	tables *tables.Tables
}

func NewScorer(t *tables.Tables) *Scorer {
	return &Scorer{tables: t}
}

// Score returns the relevance of detail for the given keyword and query.
func (s *Scorer) Score(detail models.CandidateDetail, keyword string, q models.QueryContext) int {
	name := strings.ToLower(detail.Name)
	score := 0.0

	if q.HasFreeText() {
		score += freeTextScore(name, q.FreeText)
		for _, svc := range s.DetectServices(q.FreeText) {
			if containsAny(name, svc.Terms) {
				score += ServiceMatchBonus
			} else {
				score += ServiceMissPenalty
			}
		}
	}

	if kw := strings.ToLower(strings.TrimSpace(keyword)); kw != "" {
		if name == kw {
			score += KeywordExactBonus
		} else if strings.Contains(name, kw) {
			score += KeywordContains
		}
	}

	category, _ := s.tables.Category(q.Category)
	if containsAny(name, category.BonusTerms) {
		score += CategoryBonus
	}

	score += detail.Rating * RatingMultiplier
	score += float64(min(detail.ReviewCount/ReviewsPerPoint, MaxReviewPoints))

	return int(math.Round(score))
}

// DetectServices returns the services whose triggers appear in the free-text.
func (s *Scorer) DetectServices(freeText string) []tables.Service {
	text := strings.ToLower(freeText)
	var out []tables.Service
	for _, svc := range s.tables.Services() {
		if containsAny(text, svc.Triggers) {
			out = append(out, svc)
		}
	}
	return out
}

func freeTextScore(name, freeText string) float64 {
	terms := strings.Fields(strings.ToLower(freeText))
	hits := 0
	for _, term := range terms {
		if strings.Contains(name, term) {
			hits++
		}
	}
	score := float64(hits * PerTermBonus)
	if len(terms) > 0 && hits == len(terms) {
		score += AllTermsBonus
	}
	return score
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if t := strings.ToLower(strings.TrimSpace(term)); t != "" && strings.Contains(text, t) {
			return true
		}
	}
	return false
}
