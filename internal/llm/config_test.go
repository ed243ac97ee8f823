package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/subject-research/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, ProviderGemini, config.Provider)
	assert.Equal(t, "gemini-2.5-flash", config.GetModel(TierStandard))
	assert.Equal(t, "gemini-2.5-pro", config.GetModel(TierAdvanced))
}

func TestGetModel_FallsBackToStandard(t *testing.T) {
	config := DefaultOllamaConfig()

	assert.Equal(t, "llama3.1", config.GetModel(TierAdvanced))
	assert.Equal(t, "llama3.1", config.GetModel("unknown"))
}

func TestGetModel_EmptyConfig(t *testing.T) {
	config := &Config{
		Provider: ProviderGemini,
		Models:   map[ModelTier]string{},
	}

	assert.Equal(t, "", config.GetModel(TierAdvanced))
}

func TestModelTierConstants(t *testing.T) {
	assert.Equal(t, ModelTier("standard"), TierStandard)
	assert.Equal(t, ModelTier("advanced"), TierAdvanced)
}

func TestProviderConstants(t *testing.T) {
	assert.Equal(t, Provider("gemini"), ProviderGemini)
	assert.Equal(t, Provider("ollama"), ProviderOllama)
}

func TestFromSettings(t *testing.T) {
	gemini := FromSettings(config.LLMConfig{Provider: "gemini"})
	assert.Equal(t, ProviderGemini, gemini.Provider)
	assert.Equal(t, "text-embedding-004", gemini.EmbedModel)

	ollama := FromSettings(config.LLMConfig{
		Provider:   "ollama",
		OllamaHost: "http://ollama:11434",
		ChatModel:  "qwen2.5",
		EmbedModel: "mxbai-embed-large",
	})
	assert.Equal(t, ProviderOllama, ollama.Provider)
	assert.Equal(t, "http://ollama:11434", ollama.Host)
	assert.Equal(t, "qwen2.5", ollama.GetModel(TierAdvanced))
	assert.Equal(t, "qwen2.5", ollama.GetModel(TierStandard))
	assert.Equal(t, "mxbai-embed-large", ollama.EmbedModel)

	sized := FromSettings(config.LLMConfig{Provider: "gemini", EmbeddingDim: 768})
	assert.Equal(t, 768, sized.EmbedDim)
}

func TestConfig_Temperature(t *testing.T) {
	assert.Equal(t, defaultTemperature, DefaultConfig().temperature())
	assert.Equal(t, float32(0.7), (&Config{Temperature: 0.7}).temperature())
}

func TestConfig_CheckDim(t *testing.T) {
	c := &Config{EmbedModel: "e", EmbedDim: 3}

	v, err := c.checkDim([]float32{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, v, 3)

	_, err = c.checkDim([]float32{1, 2})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = c.checkDim(nil)
	assert.Error(t, err)

	_, err = (&Config{}).checkDim([]float32{1})
	assert.NoError(t, err)
}
