package discovery

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	"github.com/jonathan/subject-research/internal/types"
)

// GoogleConfidence is the confidence assigned to Custom Search results.
const GoogleConfidence = 0.6

// Google queries a Programmable Search Engine through the Custom Search API.
type Google struct {
	svc        *customsearch.Service
	cx         string
	maxResults int
}

// NewGoogle creates a provider for the search engine cx.
func NewGoogle(ctx context.Context, apiKey, cx string, maxResults int, opts ...option.ClientOption) (*Google, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create customsearch service: %w", err)
	}
	return &Google{svc: svc, cx: cx, maxResults: maxResults}, nil
}

// Name returns the provider name recorded on sources.
func (g *Google) Name() string { return "google" }

// Discover returns the first page of results for the quoted subject.
func (g *Google) Discover(ctx context.Context, subject string) ([]types.DiscoveryItem, error) {
	resp, err := g.svc.Cse.List().Cx(g.cx).Q(fmt.Sprintf("%q", subject)).Num(10).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	items := make([]types.DiscoveryItem, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.Link == "" {
			continue
		}
		kind := kindForURL(it.Link)
		if strings.Contains(strings.ToLower(it.Mime), "pdf") {
			kind = types.KindPDF
		}
		title := it.Title
		if title == "" {
			title = it.Link
		}
		items = append(items, types.DiscoveryItem{
			URL:        it.Link,
			Kind:       kind,
			Provider:   g.Name(),
			Title:      title,
			Confidence: GoogleConfidence,
		})
	}
	return limit(items, g.maxResults), nil
}
