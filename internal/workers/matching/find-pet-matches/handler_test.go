package findpetmatches

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "petcare-workers/internal/common/errors"
	"petcare-workers/internal/common/logger"
	"petcare-workers/internal/common/metrics"
	"petcare-workers/internal/engine"
	"petcare-workers/internal/models"
	"petcare-workers/internal/records"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	reports  map[string]models.Report
	pool     []models.Report
	listErr  error
	getErr   error
	listKind models.Kind
	limit    int
}

func (f *fakeSource) ListReports(_ context.Context, kind models.Kind, limit int) ([]models.Report, error) {
	f.listKind = kind
	f.limit = limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.pool, nil
}

func (f *fakeSource) GetReport(_ context.Context, _ models.Kind, id string) (models.Report, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	r, ok := f.reports[id]
	if !ok {
		return nil, records.ErrRecordNotFound
	}
	return r, nil
}

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func lostLab() *models.LostReport {
	return &models.LostReport{
		ID:               "lost-1",
		PetName:          "Max",
		Type:             "Dog",
		Breed:            "Labrador Retriever",
		PrimaryColor:     "Black",
		Size:             models.SizeLarge,
		Gender:           "Male",
		LastSeenLocation: &models.GeoPoint{Lat: 37.7749, Lng: -122.4194},
		CreatedAt:        now,
	}
}

func foundLab(id string) *models.FoundReport {
	return &models.FoundReport{
		ID:               id,
		Type:             "Dog",
		ApproximateBreed: "Labrador",
		PrimaryColor:     "Black",
		Size:             models.SizeLarge,
		Gender:           "Male",
		FoundLocation:    &models.GeoPoint{Lat: 37.7755, Lng: -122.4180},
		CreatedAt:        now.Add(6 * time.Hour),
	}
}

func foundCat() *models.FoundReport {
	return &models.FoundReport{
		ID:            "found-cat",
		Type:          "Cat",
		PrimaryColor:  "White",
		Size:          models.SizeSmall,
		FoundLocation: &models.GeoPoint{Lat: 40.71, Lng: -74.0},
		CreatedAt:     now.Add(-90 * 24 * time.Hour),
	}
}

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second, PoolLimit: 100, MaxResults: 10}
}

func createTestHandler(t *testing.T, source records.RecordSource) *Handler {
	h, err := NewHandler(HandlerOptions{
		Config: createTestConfig(),
		Engine: engine.New(engine.Options{}),
		Source: source,
		Logger: logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

func requireCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, code, stdErr.Code)
}

func TestExecute_InlineSubjectAndPool(t *testing.T) {
	h := createTestHandler(t, nil)

	out, err := h.Execute(context.Background(), &Input{
		Subject: &models.PetRecord{Report: lostLab()},
		Pool: []models.PetRecord{
			{Report: foundCat()},
			{Report: foundLab("found-1")},
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, "lost-1", out.SubjectID)
	assert.Equal(t, models.KindLost, out.SubjectKind)
	assert.Equal(t, 2, out.PoolSize)
	require.Len(t, out.Matches, 1)
	assert.Equal(t, "found-1", out.Matches[0].RecordID)
	assert.Equal(t, models.KindFound, out.Matches[0].RecordKind)
	assert.GreaterOrEqual(t, out.Matches[0].Score, 40)
	assert.Equal(t, 1, out.MatchCount)
}

func TestExecute_LoadsSubjectAndPoolFromSource(t *testing.T) {
	source := &fakeSource{
		reports: map[string]models.Report{"lost-1": lostLab()},
		pool:    []models.Report{foundLab("found-1"), foundLab("found-2"), foundCat()},
	}
	h := createTestHandler(t, source)

	out, err := h.Execute(context.Background(), &Input{SubjectID: "lost-1", SubjectKind: "lost"})
	require.NoError(t, err)

	assert.Equal(t, models.KindFound, source.listKind)
	assert.Equal(t, 100, source.limit)
	assert.Equal(t, 3, out.PoolSize)
	require.Len(t, out.Matches, 2)
	assert.Equal(t, "found-1", out.Matches[0].RecordID)
	assert.Equal(t, "found-2", out.Matches[1].RecordID)
}

func emittedMatches() float64 {
	total := 0.0
	for _, c := range []models.Confidence{models.ConfidenceHigh, models.ConfidenceMedium, models.ConfidenceLow, models.ConfidenceVeryLow} {
		total += testutil.ToFloat64(metrics.MatchResults.WithLabelValues(string(c)))
	}
	return total
}

func TestExecute_Limit(t *testing.T) {
	source := &fakeSource{pool: []models.Report{foundLab("found-1"), foundLab("found-2"), foundLab("found-3")}}
	h := createTestHandler(t, source)
	before := emittedMatches()

	out, err := h.Execute(context.Background(), &Input{Subject: &models.PetRecord{Report: lostLab()}, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, out.Matches, 2)
	assert.True(t, out.Truncated)
	assert.Equal(t, 3, out.PoolSize)
	assert.Equal(t, before+2, emittedMatches())
}

func TestExecute_EmptyInlinePool(t *testing.T) {
	h := createTestHandler(t, &fakeSource{listErr: errors.New("must not be called")})

	out, err := h.Execute(context.Background(), &Input{
		Subject: &models.PetRecord{Report: lostLab()},
		Pool:    []models.PetRecord{},
	})
	require.NoError(t, err)
	assert.NotNil(t, out.Matches)
	assert.Empty(t, out.Matches)
}

func TestExecute_Errors(t *testing.T) {
	tests := []struct {
		name   string
		source records.RecordSource
		input  *Input
		code   apperrors.ErrorCode
	}{
		{"nil input", nil, nil, apperrors.ErrCodeInvalidInput},
		{"no subject", &fakeSource{}, &Input{}, apperrors.ErrCodeInvalidInput},
		{"bad kind", &fakeSource{}, &Input{SubjectID: "x", SubjectKind: "stray"}, apperrors.ErrCodeInvalidInput},
		{"id without source", nil, &Input{SubjectID: "x", SubjectKind: "lost"}, apperrors.ErrCodeInvalidInput},
		{"pool without source", nil, &Input{Subject: &models.PetRecord{Report: lostLab()}}, apperrors.ErrCodeInvalidInput},
		{"subject not found", &fakeSource{}, &Input{SubjectID: "missing", SubjectKind: "found"}, apperrors.ErrCodeRecordNotFound},
		{"subject lookup fails", &fakeSource{getErr: errors.New("conn reset")}, &Input{SubjectID: "x", SubjectKind: "lost"}, apperrors.ErrCodeRecordSourceFailed},
		{"pool load fails", &fakeSource{listErr: errors.New("timeout")}, &Input{Subject: &models.PetRecord{Report: lostLab()}}, apperrors.ErrCodeRecordSourceFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := createTestHandler(t, tt.source)
			_, err := h.Execute(context.Background(), tt.input)
			requireCode(t, err, tt.code)
		})
	}
}

func TestParseInput(t *testing.T) {
	h := createTestHandler(t, nil)

	input, err := h.parseInput(`{
		"subject": {"kind": "found", "id": "f1", "type": "Cat", "primaryColor": "Orange"},
		"pool": [{"kind": "lost", "id": "l1", "type": "Cat", "petName": "Tiger"}]
	}`)
	require.NoError(t, err)
	require.NotNil(t, input.Subject)
	assert.Equal(t, models.KindFound, input.Subject.Kind())
	require.Len(t, input.Pool, 1)
	assert.Equal(t, "l1", input.Pool[0].ReportID())

	_, err = h.parseInput(`{"subject": {"kind": "stray", "id": "x"}}`)
	requireCode(t, err, apperrors.ErrCodeParseError)
}
