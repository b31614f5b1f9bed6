package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registryPath = "../../../configs/activity-registry.json"

func TestLoadAndValidate_ShippedRegistry(t *testing.T) {
	reg, err := loadAndValidate(registryPath)
	require.NoError(t, err)
	assert.Len(t, reg.Activities, len(implemented))
}

func TestLoadAndValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", `{"activities":[]}`},
		{"missing display name", `{"activities":[{"id":"a","taskType":"a","category":"x","inputSchema":{"type":"object"}}]}`},
		{"missing schema", `{"activities":[{"id":"a","displayName":"A","taskType":"a","category":"x"}]}`},
		{"worker not registered", `{"activities":[{"id":"a","displayName":"A","taskType":"a","category":"x","inputSchema":{"type":"object"}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "registry.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))
			_, err := loadAndValidate(path)
			assert.Error(t, err)
		})
	}
}

func TestCheckVariables(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"category":"parks","origin":{"lat":1,"lng":2}}`), 0o600))
	require.NoError(t, os.WriteFile(bad, []byte(`{"category":"parks"}`), 0o600))

	msgs, err := checkVariables(registryPath, "discover-places", good)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	msgs, err = checkVariables(registryPath, "discover-places", bad)
	require.NoError(t, err)
	assert.NotEmpty(t, msgs)

	_, err = checkVariables(registryPath, "unknown-task", good)
	assert.Error(t, err)
}
