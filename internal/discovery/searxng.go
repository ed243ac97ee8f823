package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jonathan/subject-research/internal/types"
)

// SearxNGConfidence is the confidence assigned to metasearch results.
const SearxNGConfidence = 0.6

// SearxNG queries a SearXNG instance's JSON API for the quoted subject.
type SearxNG struct {
	baseURL    string
	client     *http.Client
	maxResults int
}

// NewSearxNG creates a provider for the instance at baseURL.
func NewSearxNG(baseURL string, client *http.Client, maxResults int) *SearxNG {
	return &SearxNG{baseURL: strings.TrimRight(baseURL, "/"), client: client, maxResults: maxResults}
}

// Name returns the provider name recorded on sources.
func (s *SearxNG) Name() string { return "searxng" }

type searxngResponse struct {
	Results []struct {
		URL           string `json:"url"`
		Title         string `json:"title"`
		PublishedDate string `json:"publishedDate"`
	} `json:"results"`
}

// Discover returns recent results for the exact subject phrase.
func (s *SearxNG) Discover(ctx context.Context, subject string) ([]types.DiscoveryItem, error) {
	params := url.Values{}
	params.Set("q", fmt.Sprintf("%q", subject))
	params.Set("format", "json")
	params.Set("time_range", "year")
	params.Set("safesearch", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searxng request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("searxng returned HTTP %d", resp.StatusCode)
	}

	var data searxngResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode searxng response: %w", err)
	}

	items := make([]types.DiscoveryItem, 0, len(data.Results))
	for _, r := range data.Results {
		if r.URL == "" {
			continue
		}
		title := r.Title
		if title == "" {
			title = r.URL
		}
		items = append(items, types.DiscoveryItem{
			URL:         r.URL,
			Kind:        kindForURL(r.URL),
			Provider:    s.Name(),
			Title:       title,
			PublishedAt: r.PublishedDate,
			Confidence:  SearxNGConfidence,
		})
	}
	return limit(items, s.maxResults), nil
}
