package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/subject-research/internal/config"
)

func newTestClient() *Client {
	return NewClient(config.FetchConfig{TimeoutSeconds: 5, UserAgent: DefaultUserAgent}, nil)
}

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.UserAgent())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html><body><h1>Test</h1></body></html>"))
	}))
	defer server.Close()

	result, err := newTestClient().Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, server.URL, result.URL)
	assert.Contains(t, string(result.Body), "<h1>Test</h1>")
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", result.ContentType)
	assert.False(t, result.Rendered)
}

func TestClient_Get_InvalidURL(t *testing.T) {
	for _, raw := range []string{"not-a-valid-url", "ftp://example.com/file", "https://"} {
		_, err := newTestClient().Get(context.Background(), raw)
		require.Error(t, err, raw)

		var fetchErr *Error
		assert.ErrorAs(t, err, &fetchErr)
		assert.Contains(t, err.Error(), "invalid URL")
	}
}

func TestClient_Get_NonSuccessStatus(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusMovedPermanently} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			// no Location header so the client does not follow the redirect
			w.WriteHeader(code)
		}))

		result, err := newTestClient().Get(context.Background(), server.URL)
		require.Error(t, err)
		assert.Nil(t, result)

		var fetchErr *Error
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, code, fetchErr.StatusCode)
		server.Close()
	}
}

func TestClient_Get_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	c := newTestClient()
	c.http.Timeout = 20 * time.Millisecond
	_, err := c.Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP request failed")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		url         string
		expected    Classification
	}{
		{"pdf mime", "application/pdf", "https://a/x", Classification{ExtPDF, MIMEPDF}},
		{"pdf suffix wins over html mime", "text/html", "https://a/paper.PDF", Classification{ExtPDF, MIMEPDF}},
		{"pdf mime with params", "Application/PDF; name=x", "https://a/x", Classification{ExtPDF, MIMEPDF}},
		{"html", "text/html; charset=utf-8", "https://a/x", Classification{ExtHTML, MIMEHTML}},
		{"xhtml", "application/xhtml+xml", "https://a/x", Classification{ExtHTML, MIMEHTML}},
		{"missing mime", "", "https://a/x", Classification{ExtHTML, MIMEHTML}},
		{"plain text treated as html", "text/plain", "https://a/x", Classification{ExtHTML, MIMEHTML}},
		{"json is binary", "application/json", "https://a/x", Classification{ExtBinary, "application/json"}},
		{"json with params", "application/ld+json; charset=utf-8", "https://a/x", Classification{ExtBinary, "application/ld+json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.contentType, tt.url))
		})
	}
}

func TestHostLimiter_SeparateHosts(t *testing.T) {
	l := NewHostLimiter(1)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Wait(ctx, "https://a.example/1"))
	require.NoError(t, l.Wait(ctx, "https://b.example/1"))
	// A second request to the same host must wait about a second, past the deadline.
	assert.Error(t, l.Wait(ctx, "https://a.example/2"))
}

func TestHostLimiter_Disabled(t *testing.T) {
	l := NewHostLimiter(0)
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Wait(context.Background(), "https://a.example/"))
	}
}

func TestRobotsPolicy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := NewRobotsPolicy(server.Client(), "SubjectResearchBot/1.0", nil)
	ctx := context.Background()
	assert.True(t, p.Allowed(ctx, server.URL+"/public/page"))
	assert.False(t, p.Allowed(ctx, server.URL+"/private/page"))
	assert.True(t, p.Allowed(ctx, server.URL))
}

func TestRobotsPolicy_UnreachableAllows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := NewRobotsPolicy(server.Client(), "bot", nil)
	assert.True(t, p.Allowed(context.Background(), server.URL+"/anything"))
	assert.True(t, p.Allowed(context.Background(), "http://127.0.0.1:1/closed"))
}

func TestRobotsPolicy_MissingFileAllows(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	p := NewRobotsPolicy(server.Client(), "bot", nil)
	assert.True(t, p.Allowed(context.Background(), server.URL+"/x"))
}

func TestClient_BrowserFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><div id="root"></div></body></html>`))
	}))
	defer server.Close()

	c := NewClient(config.FetchConfig{TimeoutSeconds: 5, UserAgent: "bot", UseBrowser: true}, nil)
	rendered := "<html><body><main>" + strings.Repeat("rendered text ", 50) + "</main></body></html>"
	c.render = func(_ context.Context, url string, _ time.Duration) (string, error) {
		assert.Equal(t, server.URL, url)
		return rendered, nil
	}

	res, err := c.Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.True(t, res.Rendered)
	assert.Equal(t, rendered, string(res.Body))
}

func TestClient_NoBrowserForLongPages(t *testing.T) {
	body := "<html><body><main>" + strings.Repeat("plenty of text ", 60) + "</main></body></html>"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	c := NewClient(config.FetchConfig{TimeoutSeconds: 5, UserAgent: "bot", UseBrowser: true}, nil)
	c.render = func(context.Context, string, time.Duration) (string, error) {
		t.Fatal("renderer should not be called")
		return "", nil
	}

	res, err := c.Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.False(t, res.Rendered)
	assert.Equal(t, body, string(res.Body))
}

func TestNeedsRender(t *testing.T) {
	assert.True(t, needsRender("   short   "))
	assert.False(t, needsRender(strings.Repeat("a", MinVisibleText)))
	assert.True(t, needsRender(strings.Repeat("é", MinVisibleText-1)))
}
