package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/jonathan/subject-research/internal/config"
	"github.com/jonathan/subject-research/internal/extract"
)

// Client fetches source URLs politely: one limiter per host, a bounded timeout,
// a descriptive user agent and, when enabled, a browser render for HTML pages
// whose visible text is too short.
type Client struct {
	http      *http.Client
	userAgent string
	timeout   time.Duration
	limiter   *HostLimiter
	robots    *RobotsPolicy
	logger    *slog.Logger

	useBrowser bool
	render     Renderer
}

// NewClient creates a Client from the fetch configuration.
func NewClient(cfg config.FetchConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	httpClient := &http.Client{Timeout: timeout}

	return &Client{
		http:       httpClient,
		userAgent:  userAgent,
		timeout:    timeout,
		limiter:    NewHostLimiter(cfg.HostRatePerSecond),
		robots:     NewRobotsPolicy(httpClient, userAgent, logger),
		logger:     logger,
		useBrowser: cfg.UseBrowser,
		render:     RenderInBrowser,
	}
}

// Allowed reports whether robots.txt permits fetching rawURL.
func (c *Client) Allowed(ctx context.Context, rawURL string) bool {
	return c.robots.Allowed(ctx, rawURL)
}

// Get fetches rawURL after waiting for its host's turn.
func (c *Client) Get(ctx context.Context, rawURL string) (*Result, error) {
	if err := c.limiter.Wait(ctx, rawURL); err != nil {
		return nil, &Error{URL: rawURL, Message: "rate limit wait interrupted", Cause: err}
	}

	res, err := c.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if c.useBrowser && Classify(res.ContentType, rawURL).Ext == ExtHTML {
		c.maybeRender(ctx, res)
	}
	return res, nil
}

func (c *Client) maybeRender(ctx context.Context, res *Result) {
	text, err := extract.HTMLToText(res.Body, res.URL)
	if err == nil && !needsRender(text) {
		return
	}
	html, err := c.render(ctx, res.URL, c.timeout)
	if err != nil {
		c.logger.Warn("browser render failed, keeping HTTP body", "url", res.URL, "error", err)
		return
	}
	c.logger.Debug("rendered page in browser", "url", res.URL, "bytes", len(html))
	res.Body = []byte(html)
	res.Rendered = true
}

func (c *Client) fetch(ctx context.Context, rawURL string) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &Error{URL: rawURL, Message: "invalid URL", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{URL: rawURL, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{URL: rawURL, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{URL: rawURL, StatusCode: resp.StatusCode, Message: fmt.Sprintf("HTTP status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return nil, &Error{URL: rawURL, Message: "failed to read response body", Cause: err}
	}

	return &Result{
		URL:         rawURL,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}, nil
}
