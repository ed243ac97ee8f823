// Package llm provides LLM configuration and client abstractions for text
// generation and embeddings across providers.
package llm

import (
	"fmt"

	"github.com/jonathan/subject-research/internal/config"
)

const defaultTemperature float32 = 0.1

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierStandard is the first choice for structured output such as timelines
	TierStandard ModelTier = "standard"
	// TierAdvanced is the escalation tier when standard output is invalid or empty
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
	// ProviderOllama is a local Ollama server
	ProviderOllama Provider = "ollama"
)

// Config holds the model configuration for the application
type Config struct {
	Provider   Provider
	Models     map[ModelTier]string
	EmbedModel string
	// EmbedDim is the expected vector length; zero skips the check.
	EmbedDim    int
	Temperature float32
	// Host is the base URL of a self-hosted provider.
	Host string
}

// DefaultConfig returns the default configuration (currently Gemini)
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		EmbedModel: "text-embedding-004",
	}
}

// DefaultOllamaConfig returns the default configuration for a local Ollama server
func DefaultOllamaConfig() *Config {
	return &Config{
		Provider: ProviderOllama,
		Models: map[ModelTier]string{
			TierStandard: "llama3.1",
		},
		EmbedModel: "nomic-embed-text",
		Host:       "http://localhost:11434",
	}
}

// FromSettings builds a Config from the application LLM settings. A configured
// chat model replaces every tier; a configured embed model replaces the default.
func FromSettings(s config.LLMConfig) *Config {
	var c *Config
	switch Provider(s.Provider) {
	case ProviderOllama:
		c = DefaultOllamaConfig()
		if s.OllamaHost != "" {
			c.Host = s.OllamaHost
		}
	default:
		c = DefaultGeminiConfig()
	}
	if s.ChatModel != "" {
		for tier := range c.Models {
			c.Models[tier] = s.ChatModel
		}
	}
	if s.EmbedModel != "" {
		c.EmbedModel = s.EmbedModel
	}
	c.EmbedDim = s.EmbeddingDim
	return c
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// tiers without their own model share the standard one
	return c.Models[TierStandard]
}

func (c *Config) temperature() float32 {
	if c.Temperature > 0 {
		return c.Temperature
	}
	return defaultTemperature
}

// checkDim rejects empty vectors and, when EmbedDim is set, vectors of any
// other length.
func (c *Config) checkDim(v []float32) ([]float32, error) {
	if len(v) == 0 {
		return nil, fmt.Errorf("empty embedding in response")
	}
	if c.EmbedDim > 0 && len(v) != c.EmbedDim {
		return nil, fmt.Errorf("%w: %s returned %d, want %d", ErrDimensionMismatch, c.EmbedModel, len(v), c.EmbedDim)
	}
	return v, nil
}
