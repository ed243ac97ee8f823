package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.DatabaseURL = "postgres://localhost/research"
	cfg.LLM.APIKey = "test-key"
	return cfg
}

func TestDefault_Values(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 1500, cfg.Index.ChunkSize)
	assert.Equal(t, 1000, cfg.Index.EmbedPrefix)
	assert.Equal(t, 1200, cfg.Index.PayloadPrefix)
	assert.Equal(t, 200, cfg.Index.MinTextLength)
	assert.Equal(t, 1, cfg.Worker.MaxAttempts, "no retry unless configured")
	assert.True(t, cfg.Discovery.SkipSitemaps)
	assert.True(t, cfg.Discovery.SkipWordPress)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout())
}

func TestLoadConfig_ValidJSON(t *testing.T) {
	content := `{
		"database_url": "postgres://db/research",
		"discovery": {"searxng_url": "http://searx:8080", "skip_sitemaps": false},
		"index": {"chunk_size": 900}
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)

	assert.Equal(t, "postgres://db/research", cfg.DatabaseURL)
	assert.Equal(t, "http://searx:8080", cfg.Discovery.SearxngURL)
	assert.False(t, cfg.Discovery.SkipSitemaps)
	assert.True(t, cfg.Discovery.SkipWordPress, "unset fields keep defaults")
	assert.Equal(t, 900, cfg.Index.ChunkSize)
	assert.Equal(t, 1200, cfg.Index.PayloadPrefix)
}

func TestLoadConfig_ValidYAML(t *testing.T) {
	content := `
database_url: postgres://db/research
blob:
  backend: gcs
  bucket: research-blobs
discovery:
  skip_wordpress: false
  seed_domains: [example.com]
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)

	assert.Equal(t, BlobBackendGCS, cfg.Blob.Backend)
	assert.Equal(t, "research-blobs", cfg.Blob.Bucket)
	assert.False(t, cfg.Discovery.SkipWordPress)
	assert.Equal(t, []string{"example.com"}, cfg.Discovery.SeedDomains)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{ invalid json }`), 0644))

	cfg, err := LoadConfig(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/research")
	t.Setenv("SKIP_SITEMAPS", "0")
	t.Setenv("SKIP_WORDPRESS", "1")
	t.Setenv("DISCOVERY_SEED_DOMAINS", "a.example, b.example ,")
	t.Setenv("WORKER_MAX_ATTEMPTS", "3")
	t.Setenv("FETCH_HOST_RATE", "0.5")
	t.Setenv("INDEX_CHUNK_SIZE", "not-a-number")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("RATE_LIMIT_WHITELIST", "10.0.0.1,10.0.0.2")

	cfg := Default()
	cfg.ApplyEnv()

	assert.Equal(t, "postgres://env/research", cfg.DatabaseURL)
	assert.False(t, cfg.Discovery.SkipSitemaps)
	assert.True(t, cfg.Discovery.SkipWordPress)
	assert.Equal(t, []string{"a.example", "b.example"}, cfg.Discovery.SeedDomains)
	assert.Equal(t, 3, cfg.Worker.MaxAttempts)
	assert.Equal(t, 0.5, cfg.Fetch.HostRatePerSecond)
	assert.Equal(t, 1500, cfg.Index.ChunkSize, "unparseable values keep the default")
	assert.False(t, cfg.Server.RateLimit.Enabled)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Server.RateLimit.Whitelist)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(_ *Config) {}, ""},
		{"missing database", func(c *Config) { c.DatabaseURL = "" }, "DatabaseURL"},
		{"unknown blob backend", func(c *Config) { c.Blob.Backend = "s3" }, "Backend"},
		{"gcs without bucket", func(c *Config) { c.Blob.Backend = BlobBackendGCS }, "blob.bucket"},
		{"gemini without key", func(c *Config) { c.LLM.APIKey = "" }, "llm.api_key"},
		{"ollama without key", func(c *Config) { c.LLM.Provider = ProviderOllama; c.LLM.APIKey = "" }, ""},
		{"google half configured", func(c *Config) { c.Discovery.GoogleAPIKey = "k" }, "google_cx"},
		{"bad searxng url", func(c *Config) { c.Discovery.SearxngURL = "not a url" }, "SearxngURL"},
		{"zero chunk size", func(c *Config) { c.Index.ChunkSize = 0 }, "ChunkSize"},
		{"embed prefix over payload", func(c *Config) { c.Index.EmbedPrefix = 5000 }, "embed_prefix"},
		{"bad seed domain", func(c *Config) { c.Discovery.SeedDomains = []string{"not a host"} }, "SeedDomains"},
		{"bad whitelist ip", func(c *Config) { c.Server.RateLimit.Whitelist = []string{"localhost"} }, "Whitelist"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{"database_url": "postgres://file/db", "llm": {"api_key": "k"}}`), 0644))
	t.Setenv("DATABASE_URL", "postgres://env/db")

	cfg, err := Load(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/db", cfg.DatabaseURL)
}
