// Package engine wires the Discovery and Matching components behind two entry
// points.
package engine

import (
	"context"

	"petcare-workers/internal/common/logger"
	"petcare-workers/internal/engine/aggregate"
	"petcare-workers/internal/engine/keywords"
	"petcare-workers/internal/engine/match"
	"petcare-workers/internal/engine/relevance"
	"petcare-workers/internal/engine/tables"
	"petcare-workers/internal/models"
)

type Options struct {
	Tables        *tables.Tables
	Provider      aggregate.PlaceProvider
	Aggregator    aggregate.Config
	Builder       match.BuilderConfig
	MaxExpansions int
	Logger        logger.Logger
}

// DiscoveryResult is the outcome of one Discover call.
type DiscoveryResult struct {
	Plan       keywords.Plan
	Candidates []models.ScoredCandidate
	Partial    bool
	Stats      []aggregate.KeywordStat
}

type Engine struct {
	tables     *tables.Tables
	expander   *keywords.Expander
	scorer     *relevance.Scorer
	aggregator *aggregate.Aggregator
	matcher    *match.Matcher
	builder    *match.Builder
}

// New builds an Engine. Tables default to the embedded set; Provider may be
// nil for a matching-only engine.
func New(opts Options) *Engine {
	t := opts.Tables
	if t == nil {
		t = tables.MustDefault()
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	e := &Engine{
		tables:   t,
		expander: keywords.NewExpander(t, opts.MaxExpansions),
		scorer:   relevance.NewScorer(t),
		matcher:  match.NewMatcher(t),
	}
	e.builder = match.NewBuilder(e.matcher, opts.Builder)
	if opts.Provider != nil {
		e.aggregator = aggregate.New(opts.Provider, e.scorer, opts.Aggregator, log)
	}
	return e
}

// WithProvider returns a copy of e that discovers through p.
func (e *Engine) WithProvider(p aggregate.PlaceProvider, log logger.Logger) *Engine {
	cfg := aggregate.Config{}
	if e.aggregator != nil {
		cfg = e.aggregator.Config()
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	clone := *e
	clone.aggregator = aggregate.New(p, e.scorer, cfg, log)
	return &clone
}

// Plan returns the keyword plan Discover would use for q.
func (e *Engine) Plan(q models.QueryContext) keywords.Plan {
	return e.expander.Expand(q)
}

// Discover expands q into keywords and aggregates the provider results.
// The candidate slice is never nil. Errors from the aggregator, notably
// aggregate.ErrProviderUnavailable, are returned unchanged.
func (e *Engine) Discover(ctx context.Context, q models.QueryContext) (DiscoveryResult, error) {
	plan := e.expander.Expand(q)
	if e.aggregator == nil {
		return DiscoveryResult{Plan: plan, Candidates: []models.ScoredCandidate{}}, aggregate.ErrProviderUnavailable
	}

	res, err := e.aggregator.Aggregate(ctx, q, plan)
	return DiscoveryResult{
		Plan:       plan,
		Candidates: res.Candidates,
		Partial:    res.Partial,
		Stats:      res.Stats,
	}, err
}

func (e *Engine) FindMatches(subject models.Report, pool []models.Report) []models.MatchResult {
	return e.builder.FindMatches(subject, pool)
}

func (e *Engine) Match(a, b models.Report) int {
	return e.matcher.Match(a, b)
}

func (e *Engine) Explain(a, b models.Report) models.MatchBreakdown {
	return e.matcher.Explain(a, b)
}

// Score rates a single candidate the way Discover does.
func (e *Engine) Score(detail models.CandidateDetail, keyword string, q models.QueryContext) int {
	return e.scorer.Score(detail, keyword, q)
}
