package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/gridcache/pkg/config"
)

func TestGenerateSchema(t *testing.T) {
	data, err := generateSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, "gridcache configuration", schema["title"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"logging", "prefetch", "eviction", "thumbnail", "catalog"} {
		assert.Contains(t, props, key)
	}
}

func TestWarningsFor(t *testing.T) {
	cfg := config.GetDefaultConfig()
	assert.Contains(t, warningsFor(cfg), "catalog.path not set; simulate needs --library")

	cfg.Catalog.Path = t.TempDir()
	assert.Empty(t, warningsFor(cfg))

	cfg.Prefetch.ChunkSize = cfg.Prefetch.Window + 1
	assert.Len(t, warningsFor(cfg), 1)
}

func TestSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range Cmd.Commands() {
		names[c.Name()] = true
	}
	for _, n := range []string{"init", "validate", "show", "schema"} {
		assert.True(t, names[n], n)
	}
}
