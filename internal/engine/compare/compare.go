// Package compare implements the per-field similarity functions of the record
// matcher. Every comparator returns 0 when either side is missing.
package compare

import (
	"strings"
	"time"

	"petcare-workers/internal/engine/geo"
	"petcare-workers/internal/engine/tables"
	"petcare-workers/internal/models"
)

// Partial-credit multipliers.
const (
	ContainsCredit     = 0.7
	BreedSynonymCredit = 0.5
	ColorSynonymCredit = 0.6
	AdjacentSizeCredit = 0.5
)

// GeoTier is one distance band of the location comparator.
type GeoTier struct {
	MaxMiles float64
	Credit   float64
}

// geoTiers are evaluated in order; the first band whose bound exceeds the distance wins.
var geoTiers = []GeoTier{
	{MaxMiles: 1, Credit: 1.0},
	{MaxMiles: 5, Credit: 0.8},
	{MaxMiles: 10, Credit: 0.5},
	{MaxMiles: 20, Credit: 0.3},
}

// RecencyTier is one band of the time-decay bonus.
type RecencyTier struct {
	Within time.Duration
	Bonus  float64
}

var recencyTiers = []RecencyTier{
	{Within: 24 * time.Hour, Bonus: 5},
	{Within: 3 * 24 * time.Hour, Bonus: 3},
	{Within: 7 * 24 * time.Hour, Bonus: 1},
}

const (
	FeatureOverlapBonus = 10.0
	FeatureOverlapMin   = 2
)

// featureSuffixes are the endings accepted after a vocabulary stem ("spot" -> "spots", "spotted").
var featureSuffixes = []string{"", "s", "es", "d", "ed", "ted", "y", "ty"}

// Comparators holds the vocabulary-backed comparators.
type Comparators struct {
	tables *tables.Tables
}

func New(t *tables.Tables) *Comparators {
	return &Comparators{tables: t}
}

func present(s string) bool {
	return strings.TrimSpace(s) != ""
}

// Exact gives full weight on case-insensitive equality.
func Exact(a, b string, weight float64) float64 {
	if !present(a) || !present(b) {
		return 0
	}
	if tables.Normalize(a) == tables.Normalize(b) {
		return weight
	}
	return 0
}

// ExactOrContains gives full weight on equality and ContainsCredit when one
// value contains the other.
func ExactOrContains(a, b string, weight float64) float64 {
	if !present(a) || !present(b) {
		return 0
	}
	na, nb := tables.Normalize(a), tables.Normalize(b)
	if na == nb {
		return weight
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return weight * ContainsCredit
	}
	return 0
}

// Breed compares breeds, giving partial credit for synonyms.
func (c *Comparators) Breed(a, b string, weight float64) float64 {
	return synonym(a, b, weight, BreedSynonymCredit, c.tables.BreedBucket)
}

// Color compares colors, giving partial credit for synonyms.
func (c *Comparators) Color(a, b string, weight float64) float64 {
	return synonym(a, b, weight, ColorSynonymCredit, c.tables.ColorBucket)
}

func synonym(a, b string, weight, credit float64, bucket func(string) (int, bool)) float64 {
	if !present(a) || !present(b) {
		return 0
	}
	if tables.Normalize(a) == tables.Normalize(b) {
		return weight
	}
	ba, okA := bucket(a)
	bb, okB := bucket(b)
	if okA && okB && ba == bb {
		return weight * credit
	}
	return 0
}

// Size gives full weight on equal size categories and AdjacentSizeCredit for neighbours.
func (c *Comparators) Size(a, b string, weight float64) float64 {
	if !present(a) || !present(b) {
		return 0
	}
	if tables.Normalize(a) == tables.Normalize(b) {
		return weight
	}
	ra, okA := c.tables.SizeRank(a)
	rb, okB := c.tables.SizeRank(b)
	if !okA || !okB {
		return 0
	}
	if d := ra - rb; d == 1 || d == -1 {
		return weight * AdjacentSizeCredit
	}
	return 0
}

// Location scores two coordinates by distance band.
func Location(a, b *models.GeoPoint, weight float64) float64 {
	if a == nil || b == nil {
		return 0
	}
	miles := geo.DistanceMiles(*a, *b)
	for _, tier := range geoTiers {
		if miles < tier.MaxMiles {
			return weight * tier.Credit
		}
	}
	return 0
}

// Recency is the flat time-decay bonus.
func Recency(a, b time.Time) float64 {
	if a.IsZero() || b.IsZero() {
		return 0
	}
	delta := geo.AbsDelta(a, b)
	for _, tier := range recencyTiers {
		if delta < tier.Within {
			return tier.Bonus
		}
	}
	return 0
}

// FeatureOverlap is the flat bonus for distinctive-feature texts sharing at
// least FeatureOverlapMin vocabulary terms.
func (c *Comparators) FeatureOverlap(a, b string) float64 {
	if !present(a) || !present(b) {
		return 0
	}
	inA := c.featureTerms(a)
	if len(inA) < FeatureOverlapMin {
		return 0
	}
	shared := 0
	for term := range c.featureTerms(b) {
		if inA[term] {
			shared++
		}
	}
	if shared >= FeatureOverlapMin {
		return FeatureOverlapBonus
	}
	return 0
}

func (c *Comparators) featureTerms(text string) map[string]bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	})
	found := make(map[string]bool)
	for _, term := range c.tables.FeatureTerms() {
		for _, w := range words {
			if matchesStem(w, term) {
				found[term] = true
				break
			}
		}
	}
	return found
}

func matchesStem(word, stem string) bool {
	if !strings.HasPrefix(word, stem) {
		return false
	}
	rest := word[len(stem):]
	for _, suffix := range featureSuffixes {
		if rest == suffix {
			return true
		}
	}
	return false
}
