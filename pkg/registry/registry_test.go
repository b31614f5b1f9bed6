package registry

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repoRegistryPath(t *testing.T) string {
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "..", "configs", "activity-registry.json")
}

func TestLoadRegistry_ShippedFile(t *testing.T) {
	reg, err := LoadRegistry(repoRegistryPath(t))
	require.NoError(t, err)

	for _, taskType := range []string{"discover-places", "find-pet-matches", "calculate-pet-match-score"} {
		a, ok := reg.Find(taskType)
		require.True(t, ok, taskType)
		assert.NotEmpty(t, a.InputSchema, taskType)
		assert.NotEmpty(t, a.ErrorCodes, taskType)
	}
	assert.Len(t, reg.InputSchemas(), 3)
}

func TestParse_RejectsDuplicates(t *testing.T) {
	_, err := Parse([]byte(`{"activities":[{"id":"a","taskType":"x"},{"id":"b","taskType":"x"}]}`))
	assert.ErrorContains(t, err, "duplicate")
}

func TestParse_RejectsMissingTaskType(t *testing.T) {
	_, err := Parse([]byte(`{"activities":[{"id":"a"}]}`))
	assert.Error(t, err)
}

func TestFind_Unknown(t *testing.T) {
	reg, err := Parse([]byte(`{"activities":[]}`))
	require.NoError(t, err)
	_, ok := reg.Find("nope")
	assert.False(t, ok)
}
