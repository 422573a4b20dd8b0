package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Join.Q)
	assert.Equal(t, "inclusive", cfg.Join.Boundary)
	assert.Equal(t, "reject", cfg.Join.Unknown)
	assert.Equal(t, []string{"tsv"}, cfg.Output.Formats())
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qgjoin.yaml")
	data := []byte(`
join:
  q: 3
  boundary: legacy
  workers: 4
output:
  format: tsv, postgres
redis:
  enabled: true
  cacheTTL: 30s
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Join.Q)
	assert.Equal(t, "legacy", cfg.Join.Boundary)
	assert.Equal(t, 4, cfg.Join.Workers)
	assert.Equal(t, 512, cfg.Join.BatchSize, "unset fields keep defaults")
	assert.Equal(t, []string{"tsv", "postgres"}, cfg.Output.Formats())
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("QG_Q", "4")
	t.Setenv("QG_UNKNOWN", "skip")
	t.Setenv("QG_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("QG_REDIS_ADDR", "cache:6379")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Join.Q)
	assert.Equal(t, "skip", cfg.Join.Unknown)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("join: [unterminated"), 0o644))
	_, err := Load(path)
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero q", func(c *Config) { c.Join.Q = 0 }},
		{"zero workers", func(c *Config) { c.Join.Workers = 0 }},
		{"zero batch", func(c *Config) { c.Join.BatchSize = 0 }},
		{"negative limit", func(c *Config) { c.Join.Limit = -1 }},
		{"bad format", func(c *Config) { c.Output.Format = "tsv,xml" }},
		{"bad boundary", func(c *Config) { c.Join.Boundary = "sideways" }},
		{"bad unknown policy", func(c *Config) { c.Join.Unknown = "ignore" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), apperrors.ErrInvalidConfig)
		})
	}

	cfg := Default()
	cfg.Join.Boundary = " Legacy"
	cfg.Join.Unknown = "SKIP"
	assert.NoError(t, cfg.Validate())
}

func TestPostgresDSN(t *testing.T) {
	dsn := Default().Postgres.DSN()
	assert.Equal(t, "host=localhost port=5432 user=qgjoin password=localdev dbname=qgjoin sslmode=disable", dsn)
}
