package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"petcare-workers/internal/common/logger"
	"petcare-workers/internal/engine/keywords"
	"petcare-workers/internal/engine/relevance"
	"petcare-workers/internal/engine/tables"
	"petcare-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Fakes
// ==========================

type fakeProvider struct {
	mu sync.Mutex

	stubs     map[string][]models.CandidateStub
	searchErr map[string]error
	block     map[string]bool
	delay     time.Duration
	details   map[string]models.CandidateDetail
	detailErr map[string]error

	searchCalls map[string]int
	detailCalls map[string]int
	radii       []int
	inFlight    int
	maxInFlight int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		stubs:       map[string][]models.CandidateStub{},
		searchErr:   map[string]error{},
		block:       map[string]bool{},
		details:     map[string]models.CandidateDetail{},
		detailErr:   map[string]error{},
		searchCalls: map[string]int{},
		detailCalls: map[string]int{},
	}
}

func (f *fakeProvider) Search(ctx context.Context, _ models.GeoPoint, radius int, keyword, _ string) ([]models.CandidateStub, error) {
	f.mu.Lock()
	f.searchCalls[keyword]++
	f.radii = append(f.radii, radius)
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	blocked := f.block[keyword]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if blocked {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.searchErr[keyword]; err != nil {
		return nil, err
	}
	return f.stubs[keyword], nil
}

func (f *fakeProvider) GetDetails(_ context.Context, id string, _ []string) (models.CandidateDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls[id]++
	if err := f.detailErr[id]; err != nil {
		return models.CandidateDetail{}, err
	}
	if d, ok := f.details[id]; ok {
		return d, nil
	}
	return models.CandidateDetail{ID: id}, nil
}

type scoreFunc func(detail models.CandidateDetail, keyword string, q models.QueryContext) int

func (f scoreFunc) Score(detail models.CandidateDetail, keyword string, q models.QueryContext) int {
	return f(detail, keyword, q)
}

func constantScore(n int) Scorer {
	return scoreFunc(func(models.CandidateDetail, string, models.QueryContext) int { return n })
}

func stubs(ids ...string) []models.CandidateStub {
	out := make([]models.CandidateStub, len(ids))
	for i, id := range ids {
		out[i] = models.CandidateStub{ID: id, Name: "Place " + id}
	}
	return out
}

func plan(kws ...string) keywords.Plan {
	return keywords.Plan{Keywords: kws, TypeHint: "point_of_interest"}
}

func ids(cands []models.ScoredCandidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.ID
	}
	return out
}

// Abandoned searches may log after the test returns, so the no-op logger is used.
func newAggregator(_ *testing.T, p PlaceProvider, s Scorer, cfg Config) *Aggregator {
	return New(p, s, cfg, logger.NewNoOpLogger())
}

// ==========================
// Merge semantics
// ==========================

func TestAggregate_DedupAndDetailOncePerID(t *testing.T) {
	p := newFakeProvider()
	p.stubs["k1"] = stubs("a", "b")
	p.stubs["k2"] = stubs("b", "c", "a")
	p.stubs["k3"] = stubs("a")

	agg := newAggregator(t, p, constantScore(1), Config{})
	res, err := agg.Aggregate(context.Background(), models.QueryContext{}, plan("k1", "k2", "k3"))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a", "b", "c"}, ids(res.Candidates))
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1}, p.detailCalls)
	assert.False(t, res.Partial)
	assert.Equal(t, 3, res.Succeeded())
}

func TestAggregate_MaxKeep(t *testing.T) {
	byKeyword := scoreFunc(func(_ models.CandidateDetail, kw string, _ models.QueryContext) int {
		return map[string]int{"low": 12, "high": 31}[kw]
	})

	for _, order := range [][]string{{"low", "high"}, {"high", "low"}} {
		t.Run(fmt.Sprint(order), func(t *testing.T) {
			p := newFakeProvider()
			p.stubs["low"] = stubs("p1")
			p.stubs["high"] = stubs("p1")

			res, err := newAggregator(t, p, byKeyword, Config{}).
				Aggregate(context.Background(), models.QueryContext{}, plan(order...))
			require.NoError(t, err)

			require.Len(t, res.Candidates, 1)
			assert.Equal(t, 31, res.Candidates[0].Score)
			assert.Equal(t, "high", res.Candidates[0].Keyword)
		})
	}
}

func TestAggregate_TiesKeepDiscoveryOrder(t *testing.T) {
	p := newFakeProvider()
	p.stubs["k1"] = stubs("a", "b")
	p.stubs["k2"] = stubs("c", "a")

	res, err := newAggregator(t, p, constantScore(10), Config{}).
		Aggregate(context.Background(), models.QueryContext{}, plan("k1", "k2"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, ids(res.Candidates))
	assert.Equal(t, "k1", res.Candidates[0].Keyword)
}

func TestAggregate_TopNSortedDescending(t *testing.T) {
	p := newFakeProvider()
	var all []string
	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("p%02d", i)
		all = append(all, id)
		p.details[id] = models.CandidateDetail{ID: id, ReviewCount: i}
	}
	p.stubs["k1"] = stubs(all[:15]...)
	p.stubs["k2"] = stubs(all[10:]...)

	byReviews := scoreFunc(func(d models.CandidateDetail, _ string, _ models.QueryContext) int {
		return d.ReviewCount % 7
	})

	for _, limit := range []int{0, 5} {
		t.Run(fmt.Sprintf("limit=%d", limit), func(t *testing.T) {
			res, err := newAggregator(t, p, byReviews, Config{MaxResults: 8}).
				Aggregate(context.Background(), models.QueryContext{Limit: limit}, plan("k1", "k2"))
			require.NoError(t, err)

			want := limit
			if want == 0 {
				want = 8
			}
			assert.Len(t, res.Candidates, want)

			seen := map[string]bool{}
			for i, c := range res.Candidates {
				assert.False(t, seen[c.ID], "duplicate id %s", c.ID)
				seen[c.ID] = true
				if i > 0 {
					assert.LessOrEqual(t, c.Score, res.Candidates[i-1].Score)
				}
			}
		})
	}
}

func TestAggregate_DefaultsToTwentyResults(t *testing.T) {
	p := newFakeProvider()
	var all []string
	for i := 0; i < 25; i++ {
		all = append(all, fmt.Sprintf("p%02d", i))
	}
	p.stubs["k1"] = stubs(all...)

	res, err := newAggregator(t, p, constantScore(0), Config{}).
		Aggregate(context.Background(), models.QueryContext{}, plan("k1"))
	require.NoError(t, err)
	assert.Len(t, res.Candidates, DefaultMaxResults)
}

func TestAggregate_WithRelevanceScorer(t *testing.T) {
	p := newFakeProvider()
	p.stubs["dog park"] = stubs("park", "store")
	p.details["park"] = models.CandidateDetail{ID: "park", Name: "Central Dog Park", Rating: 4.5}
	p.details["store"] = models.CandidateDetail{ID: "store", Name: "Kibble Barn", Rating: 5}

	scorer := relevance.NewScorer(tables.MustDefault())
	res, err := newAggregator(t, p, scorer, Config{}).
		Aggregate(context.Background(), models.QueryContext{Category: models.CategoryParks}, plan("dog park"))
	require.NoError(t, err)

	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "park", res.Candidates[0].ID)
	assert.Equal(t, 15+20+9, res.Candidates[0].Score)
	assert.Equal(t, "Central Dog Park", res.Candidates[0].Name)
}

// ==========================
// Failure policy
// ==========================

func TestAggregate_PartialFailure(t *testing.T) {
	p := newFakeProvider()
	p.stubs["k1"] = stubs("a")
	p.searchErr["k2"] = errors.New("connection reset")
	p.stubs["k3"] = stubs("c")

	res, err := newAggregator(t, p, constantScore(1), Config{}).
		Aggregate(context.Background(), models.QueryContext{}, plan("k1", "k2", "k3"))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a", "c"}, ids(res.Candidates))
	assert.False(t, res.Partial)
	require.Len(t, res.Stats, 3)
	assert.Equal(t, StatusOK, res.Stats[0].Status)
	assert.Equal(t, StatusFailed, res.Stats[1].Status)
	assert.Equal(t, "connection reset", res.Stats[1].Error)
	assert.Equal(t, 1, res.Stats[2].Results)
}

func TestAggregate_AllSearchesFailed(t *testing.T) {
	p := newFakeProvider()
	p.searchErr["k1"] = errors.New("boom")
	p.searchErr["k2"] = errors.New("boom")

	res, err := newAggregator(t, p, constantScore(1), Config{}).
		Aggregate(context.Background(), models.QueryContext{}, plan("k1", "k2"))

	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.NotNil(t, res.Candidates)
	assert.Empty(t, res.Candidates)
	assert.Len(t, res.Stats, 2)
}

func TestAggregate_EmptyResultsAreNotFailures(t *testing.T) {
	p := newFakeProvider()
	p.stubs["k1"] = nil

	res, err := newAggregator(t, p, constantScore(1), Config{}).
		Aggregate(context.Background(), models.QueryContext{}, plan("k1"))
	require.NoError(t, err)
	assert.Empty(t, res.Candidates)
	assert.Equal(t, 1, res.Succeeded())
}

func TestAggregate_DetailFailureExcludesCandidate(t *testing.T) {
	p := newFakeProvider()
	p.stubs["k1"] = stubs("a", "b", "")
	p.stubs["k2"] = stubs("b")
	p.detailErr["b"] = errors.New("not found")

	res, err := newAggregator(t, p, constantScore(1), Config{}).
		Aggregate(context.Background(), models.QueryContext{}, plan("k1", "k2"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, ids(res.Candidates))
	assert.Equal(t, 1, res.DetailFailures)
	assert.Equal(t, 1, p.detailCalls["b"])
	assert.Equal(t, "Place a", res.Candidates[0].Name)
}

func TestAggregate_EmptyPlan(t *testing.T) {
	_, err := newAggregator(t, newFakeProvider(), constantScore(1), Config{}).
		Aggregate(context.Background(), models.QueryContext{}, keywords.Plan{})
	assert.ErrorIs(t, err, ErrNoKeywords)
}

// ==========================
// Concurrency and deadlines
// ==========================

func TestAggregate_DeadlineReturnsPartial(t *testing.T) {
	p := newFakeProvider()
	p.stubs["fast"] = stubs("a", "b")
	p.block["slow"] = true

	start := time.Now()
	res, err := newAggregator(t, p, constantScore(1), Config{Deadline: 100 * time.Millisecond}).
		Aggregate(context.Background(), models.QueryContext{}, plan("fast", "slow"))
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, res.Partial)
	assert.ElementsMatch(t, []string{"a", "b"}, ids(res.Candidates))
	assert.Equal(t, StatusAbandoned, res.Stats[1].Status)
}

func TestAggregate_DeadlineWithNothingCollected(t *testing.T) {
	p := newFakeProvider()
	p.block["slow"] = true

	res, err := newAggregator(t, p, constantScore(1), Config{Deadline: 50 * time.Millisecond}).
		Aggregate(context.Background(), models.QueryContext{}, plan("slow"))

	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.True(t, res.Partial)
	assert.Empty(t, res.Candidates)
}

func TestAggregate_CallTimeoutIsPerSearch(t *testing.T) {
	p := newFakeProvider()
	p.stubs["fast"] = stubs("a")
	p.block["hung"] = true

	res, err := newAggregator(t, p, constantScore(1), Config{
		CallTimeout: 50 * time.Millisecond,
		Deadline:    5 * time.Second,
	}).Aggregate(context.Background(), models.QueryContext{}, plan("fast", "hung"))
	require.NoError(t, err)

	assert.False(t, res.Partial)
	assert.Equal(t, StatusFailed, res.Stats[1].Status)
	assert.Equal(t, []string{"a"}, ids(res.Candidates))
}

func TestAggregate_WorkerLimit(t *testing.T) {
	p := newFakeProvider()
	p.delay = 20 * time.Millisecond
	var kws []string
	for i := 0; i < 6; i++ {
		kw := fmt.Sprintf("k%d", i)
		kws = append(kws, kw)
		p.stubs[kw] = stubs(kw + "-id")
	}

	res, err := newAggregator(t, p, constantScore(1), Config{WorkerLimit: 2}).
		Aggregate(context.Background(), models.QueryContext{}, plan(kws...))
	require.NoError(t, err)

	assert.Len(t, res.Candidates, 6)
	assert.LessOrEqual(t, p.maxInFlight, 2)
	for _, kw := range kws {
		assert.Equal(t, 1, p.searchCalls[kw])
	}
}

func TestAggregate_RadiusDefault(t *testing.T) {
	p := newFakeProvider()
	p.stubs["k1"] = stubs("a")

	agg := newAggregator(t, p, constantScore(1), Config{})
	_, err := agg.Aggregate(context.Background(), models.QueryContext{}, plan("k1"))
	require.NoError(t, err)
	_, err = agg.Aggregate(context.Background(), models.QueryContext{RadiusMeters: 1200}, plan("k1"))
	require.NoError(t, err)

	assert.Equal(t, []int{DefaultRadiusMeters, 1200}, p.radii)
}
