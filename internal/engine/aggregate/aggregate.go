// Package aggregate fans a keyword plan out to a place provider, scores every
// candidate and merges the hits into a deduplicated, ranked top-N list.
package aggregate

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"petcare-workers/internal/common/logger"
	"petcare-workers/internal/common/observability"
	"petcare-workers/internal/engine/keywords"
	"petcare-workers/internal/models"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// PlaceProvider is the external place search service.
// An empty slice from Search means no results, not a failure.
type PlaceProvider interface {
	Search(ctx context.Context, origin models.GeoPoint, radiusMeters int, keyword, typeHint string) ([]models.CandidateStub, error)
	GetDetails(ctx context.Context, id string, fields []string) (models.CandidateDetail, error)
}

// Scorer rates one candidate detail for the keyword that surfaced it.
type Scorer interface {
	Score(detail models.CandidateDetail, keyword string, q models.QueryContext) int
}

var (
	// ErrProviderUnavailable is returned with an empty result when no
	// keyword search succeeded.
	ErrProviderUnavailable = errors.New("place provider unavailable")
	ErrNoKeywords          = errors.New("keyword plan is empty")
)

const (
	DefaultWorkerLimit  = 4
	DefaultCallTimeout  = 5 * time.Second
	DefaultDeadline     = 15 * time.Second
	DefaultMaxResults   = 20
	DefaultRadiusMeters = 5000
)

type Config struct {
	WorkerLimit   int
	CallTimeout   time.Duration
	Deadline      time.Duration
	MaxResults    int
	DefaultRadius int
}

func (c Config) withDefaults() Config {
	if c.WorkerLimit <= 0 {
		c.WorkerLimit = DefaultWorkerLimit
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.Deadline <= 0 {
		c.Deadline = DefaultDeadline
	}
	if c.MaxResults <= 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.DefaultRadius <= 0 {
		c.DefaultRadius = DefaultRadiusMeters
	}
	return c
}

// Keyword outcome states.
const (
	StatusPending   = "pending"
	StatusOK        = "ok"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
)

// KeywordStat is the outcome of one keyword search.
type KeywordStat struct {
	Keyword    string `json:"keyword"`
	Status     string `json:"status"`
	Results    int    `json:"results"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

// Result is the merged output of one aggregation run.
type Result struct {
	Candidates     []models.ScoredCandidate `json:"candidates"`
	Partial        bool                     `json:"partial"`
	Stats          []KeywordStat            `json:"stats"`
	DetailFailures int                      `json:"detailFailures"`
}

// Succeeded counts the keyword searches that returned without error.
func (r Result) Succeeded() int {
	n := 0
	for _, s := range r.Stats {
		if s.Status == StatusOK {
			n++
		}
	}
	return n
}

type Aggregator struct {
	provider PlaceProvider
	scorer   Scorer
	cfg      Config
	logger   logger.Logger
}

func New(provider PlaceProvider, scorer Scorer, cfg Config, log logger.Logger) *Aggregator {
	return &Aggregator{
		provider: provider,
		scorer:   scorer,
		cfg:      cfg.withDefaults(),
		logger:   log.WithFields(map[string]interface{}{"component": "aggregator"}),
	}
}

// Config returns the effective configuration.
func (a *Aggregator) Config() Config { return a.cfg }

// Aggregate runs every keyword of plan against the provider and returns at
// most N candidates sorted by descending score.
//
// When the aggregation deadline (or ctx) expires the candidates merged so far
// are returned with Partial set. If nothing was collected and no search
// succeeded the result is empty and the error is ErrProviderUnavailable, or
// the ctx error when the caller gave up.
func (a *Aggregator) Aggregate(ctx context.Context, q models.QueryContext, plan keywords.Plan) (Result, error) {
	if len(plan.Keywords) == 0 {
		return Result{Candidates: []models.ScoredCandidate{}}, ErrNoKeywords
	}

	ctx, span := observability.StartSpan(ctx, "aggregate.Aggregate")
	defer span.End()

	limit := q.Limit
	if limit <= 0 {
		limit = a.cfg.MaxResults
	}
	radius := q.RadiusMeters
	if radius <= 0 {
		radius = a.cfg.DefaultRadius
	}

	runCtx, cancel := context.WithTimeout(ctx, a.cfg.Deadline)
	defer cancel()

	r := newRun(a, q, plan, radius)
	start := time.Now()

	done := make(chan struct{})
	go func() {
		defer close(done)
		g := new(errgroup.Group)
		g.SetLimit(a.cfg.WorkerLimit)
		for i, kw := range plan.Keywords {
			if runCtx.Err() != nil {
				break
			}
			i, kw := i, kw
			g.Go(func() error {
				r.searchKeyword(runCtx, i, kw)
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-runCtx.Done():
	}

	result := r.close(limit)

	span.SetAttributes(
		attribute.Int("keywords", len(plan.Keywords)),
		attribute.Int("candidates", len(result.Candidates)),
		attribute.Bool("partial", result.Partial),
	)

	fields := map[string]interface{}{
		"keywords":       len(plan.Keywords),
		"succeeded":      result.Succeeded(),
		"candidates":     len(result.Candidates),
		"partial":        result.Partial,
		"detailFailures": result.DetailFailures,
		"durationMs":     time.Since(start).Milliseconds(),
	}

	if result.Succeeded() == 0 && len(result.Candidates) == 0 {
		a.logger.Warn("no keyword search succeeded", fields)
		empty := Result{Candidates: []models.ScoredCandidate{}, Partial: result.Partial, Stats: result.Stats}
		if err := ctx.Err(); err != nil {
			return empty, err
		}
		return empty, ErrProviderUnavailable
	}

	a.logger.Info("aggregation completed", fields)
	return result, nil
}

// discovery is the position at which a candidate was surfaced.
type discovery struct {
	keyword int
	stub    int
}

func (d discovery) before(o discovery) bool {
	if d.keyword != o.keyword {
		return d.keyword < o.keyword
	}
	return d.stub < o.stub
}

type entry struct {
	candidate models.ScoredCandidate
	best      discovery
	first     discovery
}

type detailOutcome struct {
	detail models.CandidateDetail
	err    error
}

// run is the mutable state of one Aggregate call.
type run struct {
	agg    *Aggregator
	query  models.QueryContext
	plan   keywords.Plan
	radius int

	mu             sync.Mutex
	closed         bool
	entries        map[string]*entry
	stats          []KeywordStat
	detailFailures int

	flight    singleflight.Group
	detailsMu sync.Mutex
	details   map[string]detailOutcome
}

func newRun(a *Aggregator, q models.QueryContext, plan keywords.Plan, radius int) *run {
	stats := make([]KeywordStat, len(plan.Keywords))
	for i, kw := range plan.Keywords {
		stats[i] = KeywordStat{Keyword: kw, Status: StatusPending}
	}
	return &run{
		agg:     a,
		query:   q,
		plan:    plan,
		radius:  radius,
		entries: make(map[string]*entry),
		stats:   stats,
		details: make(map[string]detailOutcome),
	}
}

func (r *run) searchKeyword(ctx context.Context, idx int, keyword string) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, r.agg.cfg.CallTimeout)
	stubs, err := r.agg.provider.Search(callCtx, r.query.Origin, r.radius, keyword, r.plan.TypeHint)
	cancel()
	if err != nil {
		r.agg.logger.Warn("keyword search failed", map[string]interface{}{
			"keyword": keyword,
			"error":   err.Error(),
		})
		r.setStat(idx, StatusFailed, 0, err, start)
		return
	}

	for i, stub := range stubs {
		if stub.ID == "" || ctx.Err() != nil {
			continue
		}
		detail, err := r.detail(ctx, stub)
		if err != nil {
			continue
		}
		r.merge(models.ScoredCandidate{
			CandidateDetail: detail,
			Score:           r.agg.scorer.Score(detail, keyword, r.query),
			Keyword:         keyword,
		}, discovery{keyword: idx, stub: i})
	}
	r.setStat(idx, StatusOK, len(stubs), nil, start)
}

// detail fetches the detail of stub at most once per run. Concurrent callers
// for the same id share the in-flight request.
func (r *run) detail(ctx context.Context, stub models.CandidateStub) (models.CandidateDetail, error) {
	v, _, _ := r.flight.Do(stub.ID, func() (interface{}, error) {
		r.detailsMu.Lock()
		cached, ok := r.details[stub.ID]
		r.detailsMu.Unlock()
		if ok {
			return cached, nil
		}

		callCtx, cancel := context.WithTimeout(ctx, r.agg.cfg.CallTimeout)
		defer cancel()
		d, err := r.agg.provider.GetDetails(callCtx, stub.ID, models.DetailFields)
		if err == nil {
			if d.ID == "" {
				d.ID = stub.ID
			}
			if d.Name == "" {
				d.Name = stub.Name
			}
		} else {
			r.agg.logger.Warn("detail fetch failed", map[string]interface{}{
				"placeId": stub.ID,
				"error":   err.Error(),
			})
			r.mu.Lock()
			r.detailFailures++
			r.mu.Unlock()
		}

		out := detailOutcome{detail: d, err: err}
		r.detailsMu.Lock()
		r.details[stub.ID] = out
		r.detailsMu.Unlock()
		return out, nil
	})
	out := v.(detailOutcome)
	return out.detail, out.err
}

func (r *run) merge(c models.ScoredCandidate, at discovery) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	cur, ok := r.entries[c.ID]
	if !ok {
		r.entries[c.ID] = &entry{candidate: c, best: at, first: at}
		return
	}
	if at.before(cur.first) {
		cur.first = at
	}
	if c.Score > cur.candidate.Score || (c.Score == cur.candidate.Score && at.before(cur.best)) {
		cur.candidate = c
		cur.best = at
	}
}

func (r *run) setStat(idx int, status string, results int, err error, start time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	s := &r.stats[idx]
	s.Status = status
	s.Results = results
	s.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		s.Error = err.Error()
	}
}

// close freezes the run and returns the ranked snapshot. Writes arriving
// afterwards are dropped.
func (r *run) close(limit int) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true

	res := Result{
		Stats:          make([]KeywordStat, len(r.stats)),
		DetailFailures: r.detailFailures,
	}
	copy(res.Stats, r.stats)
	for i := range res.Stats {
		if res.Stats[i].Status == StatusPending {
			res.Stats[i].Status = StatusAbandoned
			res.Partial = true
		}
	}

	ranked := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		ranked = append(ranked, e)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].candidate.Score != ranked[j].candidate.Score {
			return ranked[i].candidate.Score > ranked[j].candidate.Score
		}
		return ranked[i].first.before(ranked[j].first)
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	res.Candidates = make([]models.ScoredCandidate, len(ranked))
	for i, e := range ranked {
		res.Candidates[i] = e.candidate
	}
	return res
}
