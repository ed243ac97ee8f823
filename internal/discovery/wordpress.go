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

// WordPressConfidence is the confidence assigned to WordPress search hits.
const WordPressConfidence = 0.6

// WordPress queries the REST search endpoint of seed domains running WordPress.
type WordPress struct {
	domains    []string
	client     *http.Client
	userAgent  string
	maxResults int
	scheme     string
}

// NewWordPress creates a provider over the given seed domains.
func NewWordPress(domains []string, client *http.Client, userAgent string, maxResults int) *WordPress {
	return &WordPress{domains: domains, client: client, userAgent: userAgent, maxResults: maxResults, scheme: "https"}
}

// Name returns the provider name recorded on sources.
func (w *WordPress) Name() string { return "wordpress" }

type wordpressHit struct {
	URL   string          `json:"url"`
	Link  string          `json:"link"`
	Title json.RawMessage `json:"title"`
}

// title handles both the search endpoint's plain string and the posts
// endpoint's {"rendered": "..."} object.
func (h wordpressHit) title() string {
	var s string
	if err := json.Unmarshal(h.Title, &s); err == nil {
		return s
	}
	var rendered struct {
		Rendered string `json:"rendered"`
	}
	if err := json.Unmarshal(h.Title, &rendered); err == nil {
		return rendered.Rendered
	}
	return ""
}

// Discover searches every seed domain; domains without the API are skipped.
func (w *WordPress) Discover(ctx context.Context, subject string) ([]types.DiscoveryItem, error) {
	var out []types.DiscoveryItem
	for _, domain := range w.domains {
		hits, err := w.search(ctx, domain, subject)
		if err != nil {
			continue
		}
		for _, h := range hits {
			link := h.URL
			if link == "" {
				link = h.Link
			}
			if link == "" {
				continue
			}
			title := h.title()
			if title == "" {
				title = link
			}
			out = append(out, types.DiscoveryItem{
				URL:        link,
				Kind:       kindForURL(link),
				Provider:   w.Name(),
				Title:      title,
				Confidence: WordPressConfidence,
			})
			if w.maxResults > 0 && len(out) >= w.maxResults {
				return out, nil
			}
		}
	}
	return out, nil
}

func (w *WordPress) search(ctx context.Context, domain, subject string) ([]wordpressHit, error) {
	params := url.Values{}
	params.Set("search", subject)
	params.Set("per_page", "10")
	endpoint := fmt.Sprintf("%s://%s/wp-json/wp/v2/search?%s", w.scheme, strings.TrimSuffix(domain, "/"), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", w.userAgent)
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var hits []wordpressHit
	if err := json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		return nil, err
	}
	return hits, nil
}
