// Package discovery finds candidate sources about a subject by querying
// independent providers and merging their results.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/subject-research/internal/config"
	"github.com/jonathan/subject-research/internal/ident"
	"github.com/jonathan/subject-research/internal/types"
)

// DefaultProviderTimeout bounds each provider's HTTP requests.
const DefaultProviderTimeout = 20 * time.Second

// Provider returns candidate items for a subject.
type Provider interface {
	Name() string
	Discover(ctx context.Context, subject string) ([]types.DiscoveryItem, error)
}

// Options selects the optional providers. Both default to skipped because
// they query every seed domain and are slow.
type Options struct {
	SkipSitemaps  bool
	SkipWordPress bool
}

// Aggregator fans a subject out to its providers.
type Aggregator struct {
	providers  []Provider
	maxResults int
	logger     *slog.Logger
}

// NewAggregator creates an Aggregator over providers. maxResults caps each
// provider's contribution; zero means no cap.
func NewAggregator(providers []Provider, maxResults int, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{providers: providers, maxResults: maxResults, logger: logger}
}

// FromConfig builds the providers enabled by cfg. SearXNG and Google Custom
// Search are enabled when their endpoints or keys are configured; sitemap and
// WordPress probing follow the skip flags.
func FromConfig(ctx context.Context, cfg config.DiscoveryConfig, userAgent string, logger *slog.Logger) (*Aggregator, error) {
	client := &http.Client{Timeout: DefaultProviderTimeout}
	opts := Options{SkipSitemaps: cfg.SkipSitemaps, SkipWordPress: cfg.SkipWordPress}

	var providers []Provider
	if cfg.SearxngURL != "" {
		providers = append(providers, NewSearxNG(cfg.SearxngURL, client, cfg.MaxResults))
	}
	if cfg.GoogleAPIKey != "" {
		g, err := NewGoogle(ctx, cfg.GoogleAPIKey, cfg.GoogleCX, cfg.MaxResults)
		if err != nil {
			return nil, err
		}
		providers = append(providers, g)
	}
	if !opts.SkipSitemaps {
		providers = append(providers, NewSitemap(cfg.SeedDomains, client, userAgent, cfg.MaxResults))
	}
	if !opts.SkipWordPress {
		providers = append(providers, NewWordPress(cfg.SeedDomains, client, userAgent, cfg.MaxResults))
	}
	return NewAggregator(providers, cfg.MaxResults, logger), nil
}

// Providers returns the names of the enabled providers in query order.
func (a *Aggregator) Providers() []string {
	names := make([]string, len(a.providers))
	for i, p := range a.providers {
		names[i] = p.Name()
	}
	return names
}

// Discover queries every provider concurrently and returns their items merged
// in provider order with duplicate URLs removed, first occurrence winning.
// A failing provider is logged and contributes nothing.
func (a *Aggregator) Discover(ctx context.Context, subject string) []types.DiscoveryItem {
	results := make([][]types.DiscoveryItem, len(a.providers))

	var g errgroup.Group
	for i, p := range a.providers {
		g.Go(func() error {
			items, err := a.run(ctx, p, subject)
			if err != nil {
				a.logger.Error("discovery provider failed", "provider", p.Name(), "subject", subject, "error", err)
				return nil
			}
			if a.maxResults > 0 && len(items) > a.maxResults {
				items = items[:a.maxResults]
			}
			a.logger.Debug("discovery provider finished", "provider", p.Name(), "items", len(items))
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	var merged []types.DiscoveryItem
	for _, items := range results {
		merged = append(merged, items...)
	}
	return ident.DedupByURL(merged)
}

// run calls the provider, turning a panic into an error.
func (a *Aggregator) run(ctx context.Context, p Provider, subject string) (items []types.DiscoveryItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panicked: %v", r)
		}
	}()
	return p.Discover(ctx, subject)
}

// kindForURL guesses the item kind from the URL path.
func kindForURL(rawURL string) string {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return types.KindPDF
	case strings.HasSuffix(lower, ".rss") || strings.HasSuffix(lower, "/feed") || strings.HasSuffix(lower, "/feed/"):
		return types.KindFeed
	default:
		return types.KindWebpage
	}
}

// limit truncates items to max when max is positive.
func limit(items []types.DiscoveryItem, max int) []types.DiscoveryItem {
	if max > 0 && len(items) > max {
		return items[:max]
	}
	return items
}
