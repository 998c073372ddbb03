package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/entityres/internal/scorer"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "entityres.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Database.Path)
	assert.Equal(t, "none", cfg.Oracle.Provider)
	assert.Equal(t, scorer.DefaultConfig(), cfg.Scorer)
	assert.Equal(t, 25, cfg.Resolver.CandidateLimit)
	assert.Equal(t, 0.7, cfg.Resolver.VerifyThreshold)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/registry.db
embedding:
  provider: local
  dimension: 64
oracle:
  provider: ollama
  model: llama3.1
  timeout: 5s
scorer:
  thresholds:
    accept: 0.9
resolver:
  own_domains: [ordersdesk.io]
  candidate_limit: 10
log:
  level: debug
  format: json
`)

	v := New()
	cfg, err := Load(v, path)
	require.NoError(t, err)
	assert.Equal(t, path, ConfigFileUsed(v))

	assert.Equal(t, "/tmp/registry.db", cfg.Database.Path)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, 64, cfg.Embedding.Dimension)
	assert.Equal(t, "ollama", cfg.Oracle.Provider)
	assert.Equal(t, 5*time.Second, cfg.Oracle.Timeout)
	assert.Equal(t, 0.9, cfg.Scorer.Thresholds.Accept)
	// untouched siblings keep their defaults
	assert.Equal(t, scorer.DefaultConfig().Thresholds.Margin, cfg.Scorer.Thresholds.Margin)
	assert.Equal(t, []string{"ordersdesk.io"}, cfg.Resolver.OwnDomains)
	assert.Equal(t, 10, cfg.Resolver.CandidateLimit)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\n")
	t.Setenv("ENTITYRES_LOG_LEVEL", "warn")
	t.Setenv("ENTITYRES_DATABASE_PATH", "/var/lib/entityres.db")

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/var/lib/entityres.db", cfg.Database.Path)
}

func TestLoad_ProviderNamesIgnoreCase(t *testing.T) {
	path := writeConfig(t, `
embedding:
  provider: LOCAL
oracle:
  provider: Ollama
log:
  level: DEBUG
`)
	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, "ollama", cfg.Oracle.Provider)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad log level", "log:\n  level: verbose\n"},
		{"unknown oracle", "oracle:\n  provider: anthropic\n"},
		{"arbitrate above accept", "scorer:\n  thresholds:\n    accept: 0.7\n    arbitrate: 0.8\n"},
		{"negative cache size", "cache:\n  size: -1\n"},
		{"malformed yaml", "log: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(New(), writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(New(), filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}

func TestResolverOptions(t *testing.T) {
	path := writeConfig(t, `
resolver:
  own_domains: [ordersdesk.io]
  timeout: 2s
  batch_concurrency: 8
  prefilter: true
oracle:
  attempts: 3
`)
	cfg, err := Load(New(), path)
	require.NoError(t, err)

	opts := cfg.ResolverOptions()
	assert.Equal(t, []string{"ordersdesk.io"}, opts.OwnDomains)
	assert.Equal(t, 2*time.Second, opts.Timeout)
	assert.Equal(t, 8, opts.BatchConcurrency)
	assert.Equal(t, 3, opts.OracleAttempts)
	assert.True(t, opts.Searcher.Prefilter)
	assert.Equal(t, 25, opts.Searcher.Limit)
	require.NotNil(t, opts.Scorer)
	assert.Equal(t, cfg.Scorer, *opts.Scorer)
}
