// Package match scores lost/found report pairs and builds ranked match sets.
package match

import (
	"math"
	"sort"
	"strings"

	"petcare-workers/internal/engine/compare"
	"petcare-workers/internal/engine/tables"
	"petcare-workers/internal/models"

	"golang.org/x/sync/errgroup"
)

// Factor weights.
const (
	WeightType           = 30.0
	WeightBreed          = 20.0
	WeightColor          = 15.0
	WeightSecondaryColor = 5.0
	WeightSize           = 10.0
	WeightGender         = 10.0
	WeightLocation       = 15.0

	MaxScore = 100
)

// Confidence thresholds.
const (
	HighThreshold   = 80
	MediumThreshold = 60
	LowThreshold    = 40
)

// ConfidenceFor labels a score.
func ConfidenceFor(score int) models.Confidence {
	switch {
	case score >= HighThreshold:
		return models.ConfidenceHigh
	case score >= MediumThreshold:
		return models.ConfidenceMedium
	case score >= LowThreshold:
		return models.ConfidenceLow
	default:
		return models.ConfidenceVeryLow
	}
}

// Matcher computes pair scores. It holds no mutable state.
type Matcher struct {
	cmp *compare.Comparators
}

func NewMatcher(t *tables.Tables) *Matcher {
	return &Matcher{cmp: compare.New(t)}
}

// Match returns the 0-100 compatibility of a and b.
func (m *Matcher) Match(a, b models.Report) int {
	return m.Explain(a, b).Score
}

// Explain returns the per-factor contributions behind Match.
func (m *Matcher) Explain(a, b models.Report) models.MatchBreakdown {
	if a == nil || b == nil {
		return models.MatchBreakdown{}
	}
	pa, pb := a.Profile(), b.Profile()

	if microchipMatch(pa.Microchip, pb.Microchip) {
		return models.MatchBreakdown{MicrochipMatch: true, Score: MaxScore}
	}

	bd := models.MatchBreakdown{
		Type:           compare.ExactOrContains(pa.Type, pb.Type, WeightType),
		Breed:          m.cmp.Breed(pa.Breed, pb.Breed, WeightBreed),
		Color:          m.cmp.Color(pa.PrimaryColor, pb.PrimaryColor, WeightColor),
		SecondaryColor: compare.Exact(pa.SecondaryColor, pb.SecondaryColor, WeightSecondaryColor),
		Size:           m.cmp.Size(pa.Size, pb.Size, WeightSize),
		Gender:         compare.Exact(knownGender(pa.Gender), knownGender(pb.Gender), WeightGender),
		Location:       compare.Location(pa.Location, pb.Location, WeightLocation),
		Recency:        compare.Recency(pa.CreatedAt, pb.CreatedAt),
		Features:       m.cmp.FeatureOverlap(pa.Features, pb.Features),
	}

	sum := bd.Type + bd.Breed + bd.Color + bd.SecondaryColor + bd.Size +
		bd.Gender + bd.Location + bd.Recency + bd.Features
	bd.Score = clamp(int(math.Round(sum)))
	return bd
}

func microchipMatch(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && b != "" && strings.EqualFold(a, b)
}

func knownGender(g string) string {
	if strings.EqualFold(strings.TrimSpace(g), "unknown") {
		return ""
	}
	return g
}

func clamp(score int) int {
	if score > MaxScore {
		return MaxScore
	}
	if score < 0 {
		return 0
	}
	return score
}

const (
	DefaultThreshold         = LowThreshold
	DefaultParallelThreshold = 256
)

// BuilderConfig tunes a Builder.
type BuilderConfig struct {
	Threshold         int
	ParallelThreshold int
	Workers           int
}

// Builder runs a Matcher over a candidate pool.
type Builder struct {
	matcher *Matcher
	cfg     BuilderConfig
}

// NewBuilder never lets the threshold drop below LowThreshold.
func NewBuilder(m *Matcher, cfg BuilderConfig) *Builder {
	if cfg.Threshold < LowThreshold {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.ParallelThreshold <= 0 {
		cfg.ParallelThreshold = DefaultParallelThreshold
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	return &Builder{matcher: m, cfg: cfg}
}

// FindMatches scores subject against every record in pool and returns the
// results at or above the threshold, best first, ties in pool order. The
// subject itself is skipped when it appears in the pool.
func (b *Builder) FindMatches(subject models.Report, pool []models.Report) []models.MatchResult {
	out := []models.MatchResult{}
	if subject == nil {
		return out
	}

	scores := make([]int, len(pool))
	skip := make([]bool, len(pool))
	scoreAt := func(i int) {
		cand := pool[i]
		if cand == nil || isSelf(subject, cand) {
			skip[i] = true
			return
		}
		scores[i] = b.matcher.Match(subject, cand)
	}

	if len(pool) > b.cfg.ParallelThreshold {
		var g errgroup.Group
		g.SetLimit(b.cfg.Workers)
		for i := range pool {
			i := i
			g.Go(func() error {
				scoreAt(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range pool {
			scoreAt(i)
		}
	}

	for i, cand := range pool {
		if skip[i] || scores[i] < b.cfg.Threshold {
			continue
		}
		out = append(out, models.MatchResult{
			RecordID:   cand.ReportID(),
			RecordKind: cand.Kind(),
			Score:      scores[i],
			Confidence: ConfidenceFor(scores[i]),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

func isSelf(subject, cand models.Report) bool {
	return subject.Kind() == cand.Kind() && subject.ReportID() != "" && subject.ReportID() == cand.ReportID()
}
