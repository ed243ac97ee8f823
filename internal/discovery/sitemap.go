package discovery

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jonathan/subject-research/internal/types"
)

// SitemapConfidence is the confidence assigned to sitemap matches.
const SitemapConfidence = 0.55

// maxSitemapDepth bounds recursion through nested sitemap indexes.
const maxSitemapDepth = 3

var sitemapPaths = []string{"/sitemap.xml", "/sitemap_index.xml", "/sitemap-index.xml"}

// Sitemap scans the sitemaps of seed domains for URLs mentioning the subject.
type Sitemap struct {
	domains    []string
	client     *http.Client
	userAgent  string
	maxResults int
	scheme     string
}

// NewSitemap creates a provider over the given seed domains.
func NewSitemap(domains []string, client *http.Client, userAgent string, maxResults int) *Sitemap {
	return &Sitemap{domains: domains, client: client, userAgent: userAgent, maxResults: maxResults, scheme: "https"}
}

// Name returns the provider name recorded on sources.
func (s *Sitemap) Name() string { return "sitemap" }

type sitemapDoc struct {
	XMLName xml.Name
	URLs    []struct {
		Loc     string `xml:"loc"`
		LastMod string `xml:"lastmod"`
	} `xml:"url"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// Discover returns sitemap entries whose URL contains the subject, case-insensitively.
// Domains without a reachable sitemap are skipped.
func (s *Sitemap) Discover(ctx context.Context, subject string) ([]types.DiscoveryItem, error) {
	needle := strings.ToLower(subject)
	var out []types.DiscoveryItem
	for _, domain := range s.domains {
		body, ok := s.locate(ctx, domain)
		if !ok {
			continue
		}
		out = append(out, s.parse(ctx, body, needle, 0, s.maxResults-len(out))...)
		if s.maxResults > 0 && len(out) >= s.maxResults {
			break
		}
	}
	return limit(out, s.maxResults), nil
}

// locate returns the first sitemap document found on domain.
func (s *Sitemap) locate(ctx context.Context, domain string) ([]byte, bool) {
	base := fmt.Sprintf("%s://%s", s.scheme, strings.TrimSuffix(domain, "/"))
	for _, path := range sitemapPaths {
		body, err := s.get(ctx, base+path)
		if err != nil {
			continue
		}
		if bytes.HasPrefix(bytes.TrimSpace(body), []byte("<")) {
			return body, true
		}
	}
	return nil, false
}

func (s *Sitemap) parse(ctx context.Context, body []byte, needle string, depth, remaining int) []types.DiscoveryItem {
	if depth > maxSitemapDepth || (s.maxResults > 0 && remaining <= 0) {
		return nil
	}

	var doc sitemapDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil
	}

	var items []types.DiscoveryItem
	full := func() bool { return s.maxResults > 0 && len(items) >= remaining }

	if doc.XMLName.Local == "sitemapindex" {
		for _, sm := range doc.Sitemaps {
			loc := strings.TrimSpace(sm.Loc)
			if loc == "" {
				continue
			}
			child, err := s.get(ctx, loc)
			if err != nil {
				continue
			}
			items = append(items, s.parse(ctx, child, needle, depth+1, remaining-len(items))...)
			if full() {
				break
			}
		}
		return items
	}

	for _, u := range doc.URLs {
		loc := strings.TrimSpace(u.Loc)
		if loc == "" || !strings.Contains(strings.ToLower(loc), needle) {
			continue
		}
		items = append(items, types.DiscoveryItem{
			URL:         loc,
			Kind:        kindForURL(loc),
			Provider:    s.Name(),
			Title:       loc,
			PublishedAt: strings.TrimSpace(u.LastMod),
			Confidence:  SitemapConfidence,
		})
		if full() {
			break
		}
	}
	return items
}

func (s *Sitemap) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}
