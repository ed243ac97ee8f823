package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOllamaTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat":
			var req ollamaChatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.False(t, req.Stream)
			content := "plain answer"
			if req.Format == "json" {
				content = "```json\n{\"timeline\": []}\n```"
			}
			_ = json.NewEncoder(w).Encode(ollamaChatResponse{Message: ollamaMessage{Role: "assistant", Content: content}})
		case "/api/embeddings":
			var req ollamaEmbedRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "nomic-embed-text", req.Model)
			_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
		default:
			http.Error(w, "model not found", http.StatusNotFound)
		}
	}))
}

func TestOllamaClient(t *testing.T) {
	srv := newOllamaTestServer(t)
	defer srv.Close()

	cfg := DefaultOllamaConfig()
	cfg.Host = srv.URL
	client, err := NewOllamaClient(cfg, srv.Client())
	require.NoError(t, err)
	ctx := context.Background()

	text, err := client.GenerateContent(ctx, "hi", TierStandard)
	require.NoError(t, err)
	assert.Equal(t, "plain answer", text)

	js, err := client.GenerateJSON(ctx, "hi", TierStandard)
	require.NoError(t, err)
	assert.Equal(t, `{"timeline": []}`, js)

	vec, err := client.Embed(ctx, "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.NoError(t, client.Close())
}

func TestOllamaClient_EmbedDimensionMismatch(t *testing.T) {
	srv := newOllamaTestServer(t)
	defer srv.Close()

	cfg := DefaultOllamaConfig()
	cfg.Host = srv.URL
	cfg.EmbedDim = 768
	client, err := NewOllamaClient(cfg, srv.Client())
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestOllamaClient_HTTPError(t *testing.T) {
	srv := newOllamaTestServer(t)
	defer srv.Close()

	cfg := DefaultOllamaConfig()
	cfg.Host = srv.URL + "/missing"
	client, err := NewOllamaClient(cfg, srv.Client())
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestNewOllamaClient_RequiresHost(t *testing.T) {
	_, err := NewOllamaClient(&Config{Provider: ProviderOllama}, nil)
	assert.Error(t, err)
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient(context.Background(), &Config{Provider: "mystery"}, "")
	assert.Error(t, err)
}

func TestNewGeminiClient_RequiresAPIKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), DefaultGeminiConfig(), "")
	assert.Error(t, err)
}
