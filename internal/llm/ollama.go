package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaClient implements Client against the Ollama HTTP API.
type OllamaClient struct {
	http   *http.Client
	config *Config
}

// NewOllamaClient creates a client for config.Host. A nil httpClient uses a
// client with a two minute timeout.
func NewOllamaClient(config *Config, httpClient *http.Client) (*OllamaClient, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("ollama host is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &OllamaClient{http: httpClient, config: config}, nil
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Error   string        `json:"error,omitempty"`
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// GenerateContent generates text content using the specified model tier
func (c *OllamaClient) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return c.chat(ctx, prompt, tier, "")
}

// GenerateJSON asks the model for a JSON response
func (c *OllamaClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	text, err := c.chat(ctx, prompt, tier, "json")
	if err != nil {
		return "", err
	}
	return CleanJSONBlock(text), nil
}

func (c *OllamaClient) chat(ctx context.Context, prompt string, tier ModelTier, format string) (string, error) {
	modelName := c.config.GetModel(tier)
	if modelName == "" {
		return "", fmt.Errorf("no model configured for tier %s", tier)
	}

	var resp ollamaChatResponse
	err := c.post(ctx, "/api/chat", ollamaChatRequest{
		Model:    modelName,
		Messages: []ollamaMessage{{Role: "user", Content: prompt}},
		Stream:   false,
		Format:   format,
		Options:  map[string]any{"temperature": c.config.temperature()},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("failed to generate content: %s", resp.Error)
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		return "", fmt.Errorf("no content in response")
	}
	return resp.Message.Content, nil
}

// Embed returns the embedding of text
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.config.EmbedModel == "" {
		return nil, fmt.Errorf("no embedding model configured")
	}
	var resp ollamaEmbedResponse
	if err := c.post(ctx, "/api/embeddings", ollamaEmbedRequest{Model: c.config.EmbedModel, Prompt: text}, &resp); err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("failed to embed content: %s", resp.Error)
	}
	return c.config.checkDim(resp.Embedding)
}

func (c *OllamaClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.config.Host, "/")+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ollama returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return json.Unmarshal(data, out)
}

// GetModel returns the model name for a tier
func (c *OllamaClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Close is a no-op; the HTTP client holds no dedicated resources.
func (c *OllamaClient) Close() error {
	return nil
}
