// Package config provides configuration loading and validation for the research pipeline.
// Values come from defaults, an optional JSON or YAML file, then environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Blob backends
const (
	BlobBackendGCS   = "gcs"
	BlobBackendLocal = "local"
)

// LLM providers
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// Config is the full runtime configuration. It is passed explicitly to every
// component constructor; nothing reads it from a package global.
type Config struct {
	DatabaseURL string `json:"database_url" yaml:"database_url" validate:"required"`
	LogLevel    string `json:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	Blob      BlobConfig      `json:"blob" yaml:"blob"`
	LLM       LLMConfig       `json:"llm" yaml:"llm"`
	Discovery DiscoveryConfig `json:"discovery" yaml:"discovery"`
	Fetch     FetchConfig     `json:"fetch" yaml:"fetch"`
	Index     IndexConfig     `json:"index" yaml:"index"`
	Worker    WorkerConfig    `json:"worker" yaml:"worker"`
	Server    ServerConfig    `json:"server" yaml:"server"`
}

// BlobConfig selects where raw and normalized content is stored.
type BlobConfig struct {
	Backend  string `json:"backend" yaml:"backend" validate:"oneof=gcs local"`
	Bucket   string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	LocalDir string `json:"local_dir,omitempty" yaml:"local_dir,omitempty"`
}

// LLMConfig configures embeddings and timeline synthesis.
type LLMConfig struct {
	Provider     string `json:"provider" yaml:"provider" validate:"oneof=gemini ollama"`
	APIKey       string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	OllamaHost   string `json:"ollama_host,omitempty" yaml:"ollama_host,omitempty" validate:"omitempty,url"`
	ChatModel    string `json:"chat_model,omitempty" yaml:"chat_model,omitempty"`
	EmbedModel   string `json:"embed_model,omitempty" yaml:"embed_model,omitempty"`
	EmbeddingDim int    `json:"embedding_dim" yaml:"embedding_dim" validate:"min=1"`
}

// DiscoveryConfig configures the discovery providers. SkipSitemaps and
// SkipWordPress gate the slower optional providers.
type DiscoveryConfig struct {
	SearxngURL    string   `json:"searxng_url,omitempty" yaml:"searxng_url,omitempty" validate:"omitempty,url"`
	GoogleAPIKey  string   `json:"google_api_key,omitempty" yaml:"google_api_key,omitempty"`
	GoogleCX      string   `json:"google_cx,omitempty" yaml:"google_cx,omitempty"`
	MaxResults    int      `json:"max_results" yaml:"max_results" validate:"min=1"`
	SeedDomains   []string `json:"seed_domains,omitempty" yaml:"seed_domains,omitempty" validate:"dive,hostname"`
	SkipSitemaps  bool     `json:"skip_sitemaps" yaml:"skip_sitemaps"`
	SkipWordPress bool     `json:"skip_wordpress" yaml:"skip_wordpress"`
}

// FetchConfig configures outbound content fetching.
type FetchConfig struct {
	TimeoutSeconds    int     `json:"timeout_seconds" yaml:"timeout_seconds" validate:"min=1"`
	UserAgent         string  `json:"user_agent" yaml:"user_agent" validate:"required"`
	UseBrowser        bool    `json:"use_browser" yaml:"use_browser"`
	HostRatePerSecond float64 `json:"host_rate_per_second" yaml:"host_rate_per_second" validate:"gt=0"`
}

// IndexConfig configures chunking and embedding input sizes, in characters.
type IndexConfig struct {
	ChunkSize     int `json:"chunk_size" yaml:"chunk_size" validate:"min=1"`
	EmbedPrefix   int `json:"embed_prefix" yaml:"embed_prefix" validate:"min=1"`
	PayloadPrefix int `json:"payload_prefix" yaml:"payload_prefix" validate:"min=1"`
	MinTextLength int `json:"min_text_length" yaml:"min_text_length" validate:"min=0"`
}

// WorkerConfig configures the task worker pool and the per-stage retry policy.
type WorkerConfig struct {
	Concurrency         int `json:"concurrency" yaml:"concurrency" validate:"min=1"`
	PollIntervalMillis  int `json:"poll_interval_ms" yaml:"poll_interval_ms" validate:"min=10"`
	LeaseSeconds        int `json:"lease_seconds" yaml:"lease_seconds" validate:"min=1"`
	MaxAttempts         int `json:"max_attempts" yaml:"max_attempts" validate:"min=1"`
	RetryBackoffSeconds int `json:"retry_backoff_seconds" yaml:"retry_backoff_seconds" validate:"min=0"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port      int             `json:"port" yaml:"port" validate:"min=1,max=65535"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig configures per-client API rate limiting. Route specific
// limits for job creation and re-analysis are built in.
type RateLimitConfig struct {
	Enabled          bool     `json:"enabled" yaml:"enabled"`
	DefaultPerMinute int      `json:"default_per_minute" yaml:"default_per_minute" validate:"min=1"`
	Whitelist        []string `json:"whitelist,omitempty" yaml:"whitelist,omitempty" validate:"dive,ip"`
	Blacklist        []string `json:"blacklist,omitempty" yaml:"blacklist,omitempty" validate:"dive,ip"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Blob: BlobConfig{
			Backend:  BlobBackendLocal,
			LocalDir: "data/blobs",
		},
		LLM: LLMConfig{
			Provider:     ProviderGemini,
			OllamaHost:   "http://localhost:11434",
			EmbeddingDim: 768,
		},
		Discovery: DiscoveryConfig{
			MaxResults:    25,
			SeedDomains:   []string{"medium.com", "substack.com", "wordpress.com"},
			SkipSitemaps:  true,
			SkipWordPress: true,
		},
		Fetch: FetchConfig{
			TimeoutSeconds:    30,
			UserAgent:         "SubjectResearchBot/1.0",
			HostRatePerSecond: 2,
		},
		Index: IndexConfig{
			ChunkSize:     1500,
			EmbedPrefix:   1000,
			PayloadPrefix: 1200,
			MinTextLength: 200,
		},
		Worker: WorkerConfig{
			Concurrency:         4,
			PollIntervalMillis:  500,
			LeaseSeconds:        300,
			MaxAttempts:         1,
			RetryBackoffSeconds: 30,
		},
		Server: ServerConfig{
			Port:      8080,
			RateLimit: RateLimitConfig{Enabled: true, DefaultPerMinute: 1000},
		},
	}
}

// Load builds a Config from defaults, the optional file at path and the environment,
// then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig loads configuration from a JSON or YAML file on top of the defaults.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from environment variables that are set.
func (c *Config) ApplyEnv() {
	c.DatabaseURL = getEnvString("DATABASE_URL", c.DatabaseURL)
	c.LogLevel = getEnvString("LOG_LEVEL", c.LogLevel)

	c.Blob.Backend = getEnvString("BLOB_BACKEND", c.Blob.Backend)
	c.Blob.Bucket = getEnvString("GCS_BUCKET", c.Blob.Bucket)
	c.Blob.LocalDir = getEnvString("BLOB_DIR", c.Blob.LocalDir)

	c.LLM.Provider = getEnvString("LLM_PROVIDER", c.LLM.Provider)
	c.LLM.APIKey = getEnvString("GEMINI_API_KEY", c.LLM.APIKey)
	c.LLM.OllamaHost = getEnvString("OLLAMA_HOST", c.LLM.OllamaHost)
	c.LLM.ChatModel = getEnvString("LLM_CHAT_MODEL", c.LLM.ChatModel)
	c.LLM.EmbedModel = getEnvString("LLM_EMBED_MODEL", c.LLM.EmbedModel)
	c.LLM.EmbeddingDim = getEnvInt("EMBEDDING_DIM", c.LLM.EmbeddingDim)

	c.Discovery.SearxngURL = getEnvString("SEARXNG_URL", c.Discovery.SearxngURL)
	c.Discovery.GoogleAPIKey = getEnvString("GOOGLE_SEARCH_API_KEY", c.Discovery.GoogleAPIKey)
	c.Discovery.GoogleCX = getEnvString("GOOGLE_SEARCH_CX", c.Discovery.GoogleCX)
	c.Discovery.MaxResults = getEnvInt("DISCOVERY_MAX_RESULTS", c.Discovery.MaxResults)
	c.Discovery.SeedDomains = getEnvList("DISCOVERY_SEED_DOMAINS", c.Discovery.SeedDomains)
	c.Discovery.SkipSitemaps = getEnvBool("SKIP_SITEMAPS", c.Discovery.SkipSitemaps)
	c.Discovery.SkipWordPress = getEnvBool("SKIP_WORDPRESS", c.Discovery.SkipWordPress)

	c.Fetch.TimeoutSeconds = getEnvInt("FETCH_TIMEOUT_SECONDS", c.Fetch.TimeoutSeconds)
	c.Fetch.UserAgent = getEnvString("FETCH_USER_AGENT", c.Fetch.UserAgent)
	c.Fetch.UseBrowser = getEnvBool("FETCH_USE_BROWSER", c.Fetch.UseBrowser)
	c.Fetch.HostRatePerSecond = getEnvFloat("FETCH_HOST_RATE", c.Fetch.HostRatePerSecond)

	c.Index.ChunkSize = getEnvInt("INDEX_CHUNK_SIZE", c.Index.ChunkSize)
	c.Index.MinTextLength = getEnvInt("INDEX_MIN_TEXT_LENGTH", c.Index.MinTextLength)

	c.Worker.Concurrency = getEnvInt("WORKER_CONCURRENCY", c.Worker.Concurrency)
	c.Worker.MaxAttempts = getEnvInt("WORKER_MAX_ATTEMPTS", c.Worker.MaxAttempts)
	c.Worker.RetryBackoffSeconds = getEnvInt("WORKER_RETRY_BACKOFF_SECONDS", c.Worker.RetryBackoffSeconds)

	c.Server.Port = getEnvInt("PORT", c.Server.Port)
	c.Server.RateLimit.Enabled = getEnvBool("RATE_LIMIT_ENABLED", c.Server.RateLimit.Enabled)
	c.Server.RateLimit.DefaultPerMinute = getEnvInt("RATE_LIMIT_DEFAULT_LIMIT", c.Server.RateLimit.DefaultPerMinute)
	c.Server.RateLimit.Whitelist = getEnvList("RATE_LIMIT_WHITELIST", c.Server.RateLimit.Whitelist)
	c.Server.RateLimit.Blacklist = getEnvList("RATE_LIMIT_BLACKLIST", c.Server.RateLimit.Blacklist)
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if c.Blob.Backend == BlobBackendGCS && c.Blob.Bucket == "" {
		return fmt.Errorf("config error: 'blob.bucket' is required for the gcs backend")
	}
	if c.Blob.Backend == BlobBackendLocal && c.Blob.LocalDir == "" {
		return fmt.Errorf("config error: 'blob.local_dir' is required for the local backend")
	}
	if c.LLM.Provider == ProviderGemini && c.LLM.APIKey == "" {
		return fmt.Errorf("config error: 'llm.api_key' is required for the gemini provider")
	}
	if (c.Discovery.GoogleAPIKey == "") != (c.Discovery.GoogleCX == "") {
		return fmt.Errorf("config error: 'discovery.google_api_key' and 'discovery.google_cx' must be set together")
	}
	if c.Index.EmbedPrefix > c.Index.PayloadPrefix {
		return fmt.Errorf("config error: 'index.embed_prefix' must not exceed 'index.payload_prefix'")
	}

	return nil
}

// FetchTimeout returns the per-request fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// PollInterval returns how often idle workers poll the queue.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Worker.PollIntervalMillis) * time.Millisecond
}

// Lease returns how long a dequeued task stays invisible to other workers.
func (c *Config) Lease() time.Duration {
	return time.Duration(c.Worker.LeaseSeconds) * time.Second
}

// RetryBackoff returns the delay before a retried task becomes visible again.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Worker.RetryBackoffSeconds) * time.Second
}
