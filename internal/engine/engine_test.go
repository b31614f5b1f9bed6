package engine

import (
	"context"
	"errors"
	"testing"

	"petcare-workers/internal/common/logger"
	"petcare-workers/internal/engine/aggregate"
	"petcare-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticProvider struct {
	byKeyword map[string][]models.CandidateDetail
	err       error
	keywords  []string
}

func (p *staticProvider) Search(_ context.Context, _ models.GeoPoint, _ int, keyword, _ string) ([]models.CandidateStub, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.keywords = append(p.keywords, keyword)
	var out []models.CandidateStub
	for _, d := range p.byKeyword[keyword] {
		out = append(out, models.CandidateStub{ID: d.ID, Name: d.Name})
	}
	return out, nil
}

func (p *staticProvider) GetDetails(_ context.Context, id string, _ []string) (models.CandidateDetail, error) {
	for _, list := range p.byKeyword {
		for _, d := range list {
			if d.ID == id {
				return d, nil
			}
		}
	}
	return models.CandidateDetail{}, errors.New("unknown id")
}

func TestDiscover(t *testing.T) {
	provider := &staticProvider{byKeyword: map[string][]models.CandidateDetail{
		"dog trainer": {
			{ID: "t1", Name: "Bark Busters Dog Trainer", Rating: 4.8, ReviewCount: 210},
			{ID: "g1", Name: "Suds Pet Spa", Rating: 4.9, ReviewCount: 900},
		},
		"puppy training": {
			{ID: "t2", Name: "Puppy Training Academy", Rating: 4.2, ReviewCount: 40},
			{ID: "t1", Name: "Bark Busters Dog Trainer", Rating: 4.8, ReviewCount: 210},
		},
	}}

	e := New(Options{Provider: provider, Logger: logger.NewTestLogger(t), Aggregator: aggregate.Config{WorkerLimit: 1}})
	res, err := e.Discover(context.Background(), models.QueryContext{
		Category: models.CategoryServices,
		FreeText: "dog trainer",
		Limit:    2,
	})
	require.NoError(t, err)

	assert.Equal(t, "dog trainer", res.Plan.Keywords[0])
	assert.ElementsMatch(t, res.Plan.Keywords, provider.keywords)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "t1", res.Candidates[0].ID)
	assert.Equal(t, "dog trainer", res.Candidates[0].Keyword)
	assert.Equal(t, "t2", res.Candidates[1].ID)
	assert.False(t, res.Partial)
}

func TestDiscover_ProviderUnavailable(t *testing.T) {
	e := New(Options{Provider: &staticProvider{err: errors.New("dial tcp: refused")}})

	res, err := e.Discover(context.Background(), models.QueryContext{Category: models.CategoryHealth})
	assert.ErrorIs(t, err, aggregate.ErrProviderUnavailable)
	assert.NotNil(t, res.Candidates)
	assert.Empty(t, res.Candidates)
	assert.Equal(t, "veterinary_care", res.Plan.TypeHint)
}

func TestDiscover_WithoutProvider(t *testing.T) {
	_, err := New(Options{}).Discover(context.Background(), models.QueryContext{})
	assert.ErrorIs(t, err, aggregate.ErrProviderUnavailable)
}

func TestWithProvider(t *testing.T) {
	failing := New(Options{Provider: &staticProvider{err: errors.New("down")}})
	fallback := failing.WithProvider(&staticProvider{byKeyword: map[string][]models.CandidateDetail{
		"dog park": {{ID: "p1", Name: "Riverside Dog Park"}},
	}}, nil)

	res, err := fallback.Discover(context.Background(), models.QueryContext{Category: models.CategoryParks})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "p1", res.Candidates[0].ID)

	_, err = failing.Discover(context.Background(), models.QueryContext{Category: models.CategoryParks})
	assert.ErrorIs(t, err, aggregate.ErrProviderUnavailable)
}

func TestFindMatches(t *testing.T) {
	e := New(Options{})
	lost := &models.LostReport{ID: "l1", Type: "Dog", Breed: "Husky", PrimaryColor: "Gray", Gender: "Male"}
	pool := []models.Report{
		&models.FoundReport{ID: "f1", Type: "Cat"},
		&models.FoundReport{ID: "f2", Type: "Dog", ApproximateBreed: "Siberian Husky", PrimaryColor: "silver", Gender: "male"},
		&models.FoundReport{ID: "f3", Microchip: "X"},
	}

	got := e.FindMatches(lost, pool)
	require.Len(t, got, 1)
	assert.Equal(t, "f2", got[0].RecordID)
	assert.Equal(t, 30+10+9+10, got[0].Score)
	assert.Equal(t, models.ConfidenceLow, got[0].Confidence)

	assert.Equal(t, got[0].Score, e.Match(lost, pool[1]))
	assert.Equal(t, got[0].Score, e.Explain(lost, pool[1]).Score)
}
