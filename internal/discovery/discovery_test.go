package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/jonathan/subject-research/internal/config"
	"github.com/jonathan/subject-research/internal/types"
)

type stubProvider struct {
	name  string
	items []types.DiscoveryItem
	err   error
	panic bool
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Discover(_ context.Context, _ string) ([]types.DiscoveryItem, error) {
	if s.panic {
		panic("boom")
	}
	return s.items, s.err
}

func item(url, provider string) types.DiscoveryItem {
	return types.DiscoveryItem{URL: url, Kind: types.KindWebpage, Provider: provider, Title: url, Confidence: 0.6}
}

func TestAggregator_MergesInProviderOrderAndDedups(t *testing.T) {
	a := NewAggregator([]Provider{
		&stubProvider{name: "a", items: []types.DiscoveryItem{item("https://x.test/1", "a"), item("https://x.test/2", "a")}},
		&stubProvider{name: "b", items: []types.DiscoveryItem{item("https://x.test/2", "b"), item("https://x.test/3", "b")}},
	}, 0, nil)

	got := a.Discover(context.Background(), "Ada Lovelace")

	require.Len(t, got, 3)
	assert.Equal(t, "https://x.test/1", got[0].URL)
	assert.Equal(t, "https://x.test/2", got[1].URL)
	assert.Equal(t, "a", got[1].Provider, "first occurrence wins")
	assert.Equal(t, "https://x.test/3", got[2].URL)
}

func TestAggregator_FailingProviderContributesNothing(t *testing.T) {
	a := NewAggregator([]Provider{
		&stubProvider{name: "bad", err: errors.New("network down")},
		&stubProvider{name: "panics", panic: true},
		&stubProvider{name: "good", items: []types.DiscoveryItem{item("https://x.test/ok", "good")}},
	}, 0, nil)

	got := a.Discover(context.Background(), "subject")

	require.Len(t, got, 1)
	assert.Equal(t, "good", got[0].Provider)
}

func TestAggregator_AllProvidersFail(t *testing.T) {
	a := NewAggregator([]Provider{&stubProvider{name: "bad", err: errors.New("x")}}, 0, nil)
	assert.Empty(t, a.Discover(context.Background(), "subject"))
}

func TestAggregator_TruncatesPerProvider(t *testing.T) {
	var items []types.DiscoveryItem
	for i := 0; i < 5; i++ {
		items = append(items, item(fmt.Sprintf("https://x.test/%d", i), "a"))
	}
	a := NewAggregator([]Provider{&stubProvider{name: "a", items: items}}, 2, nil)

	assert.Len(t, a.Discover(context.Background(), "s"), 2)
}

func TestFromConfig_SkipFlags(t *testing.T) {
	cfg := config.Default().Discovery
	cfg.SearxngURL = "http://searx.local"

	a, err := FromConfig(context.Background(), cfg, "test-agent", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"searxng"}, a.Providers())

	cfg.SkipSitemaps = false
	cfg.SkipWordPress = false
	a, err = FromConfig(context.Background(), cfg, "test-agent", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"searxng", "sitemap", "wordpress"}, a.Providers())
}

func TestSearxNG_Discover(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, `"Ada Lovelace"`, r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "year", r.URL.Query().Get("time_range"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"url":"https://a.test/post","title":"Post","publishedDate":"2024-01-02"},
			{"url":"https://a.test/paper.pdf"},
			{"title":"no url"}
		]}`))
	}))
	defer srv.Close()

	p := NewSearxNG(srv.URL+"/", srv.Client(), 10)
	got, err := p.Discover(context.Background(), "Ada Lovelace")

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Post", got[0].Title)
	assert.Equal(t, "2024-01-02", got[0].PublishedAt)
	assert.Equal(t, "searxng", got[0].Provider)
	assert.InDelta(t, SearxNGConfidence, got[0].Confidence, 1e-9)
	assert.Equal(t, "https://a.test/paper.pdf", got[1].Title, "title falls back to url")
	assert.Equal(t, types.KindPDF, got[1].Kind)
}

func TestSearxNG_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewSearxNG(srv.URL, srv.Client(), 10).Discover(context.Background(), "x")
	assert.Error(t, err)
}

func TestSitemap_Discover(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			w.WriteHeader(http.StatusNotFound)
		case "/sitemap_index.xml":
			fmt.Fprintf(w, `<?xml version="1.0"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>%s/posts.xml</loc></sitemap>
</sitemapindex>`, srv.URL)
		case "/posts.xml":
			_, _ = w.Write([]byte(`<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://blog.test/ada-lovelace-notes</loc><lastmod>2023-05-01</lastmod></url>
  <url><loc>https://blog.test/unrelated</loc></url>
  <url><loc>https://blog.test/More-Ada-Lovelace</loc></url>
</urlset>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewSitemap([]string{strings.TrimPrefix(srv.URL, "http://")}, srv.Client(), "test-agent", 10)
	p.scheme = "http"

	got, err := p.Discover(context.Background(), "ada-lovelace")

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "https://blog.test/ada-lovelace-notes", got[0].URL)
	assert.Equal(t, "2023-05-01", got[0].PublishedAt)
	assert.Equal(t, "sitemap", got[0].Provider)
	assert.InDelta(t, SitemapConfidence, got[0].Confidence, 1e-9)
	assert.Equal(t, "https://blog.test/More-Ada-Lovelace", got[1].URL)
}

func TestSitemap_NoSitemapFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not xml"))
	}))
	defer srv.Close()

	p := NewSitemap([]string{strings.TrimPrefix(srv.URL, "http://")}, srv.Client(), "test-agent", 10)
	p.scheme = "http"

	got, err := p.Discover(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWordPress_Discover(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wp/v2/search", r.URL.Path)
		assert.Equal(t, "Ada Lovelace", r.URL.Query().Get("search"))
		assert.Equal(t, "10", r.URL.Query().Get("per_page"))
		_, _ = w.Write([]byte(`[
			{"url":"https://wp.test/a","title":"First"},
			{"link":"https://wp.test/b","title":{"rendered":"Second"}},
			{"title":"missing link"}
		]`))
	}))
	defer srv.Close()

	p := NewWordPress([]string{strings.TrimPrefix(srv.URL, "http://")}, srv.Client(), "test-agent", 10)
	p.scheme = "http"

	got, err := p.Discover(context.Background(), "Ada Lovelace")

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "First", got[0].Title)
	assert.Equal(t, "https://wp.test/b", got[1].URL)
	assert.Equal(t, "Second", got[1].Title)
	assert.Equal(t, "wordpress", got[1].Provider)
}

func TestWordPress_DomainWithoutAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewWordPress([]string{strings.TrimPrefix(srv.URL, "http://")}, srv.Client(), "test-agent", 10)
	p.scheme = "http"

	got, err := p.Discover(context.Background(), "x")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGoogle_Discover(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-cx", r.URL.Query().Get("cx"))
		assert.Equal(t, `"Ada Lovelace"`, r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[
			{"link":"https://g.test/a","title":"A"},
			{"link":"https://g.test/report","title":"Report","mime":"application/pdf"}
		]}`))
	}))
	defer srv.Close()

	g, err := NewGoogle(context.Background(), "key", "test-cx", 10,
		option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	got, err := g.Discover(context.Background(), "Ada Lovelace")

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "google", got[0].Provider)
	assert.Equal(t, types.KindWebpage, got[0].Kind)
	assert.Equal(t, types.KindPDF, got[1].Kind)
}

func TestKindForURL(t *testing.T) {
	assert.Equal(t, types.KindPDF, kindForURL("https://x.test/A.PDF"))
	assert.Equal(t, types.KindFeed, kindForURL("https://x.test/feed/"))
	assert.Equal(t, types.KindWebpage, kindForURL("https://x.test/post"))
}
