package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chromedp/chromedp"
)

// MinVisibleText is the visible-text length, in runes, below which an HTML page
// is assumed to be rendered client side.
const MinVisibleText = 500

// renderSettle is how long a page may run scripts after body is ready.
const renderSettle = 3 * time.Second

// Renderer returns the HTML of a page after scripts have run.
type Renderer func(ctx context.Context, url string, timeout time.Duration) (string, error)

func needsRender(visibleText string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(visibleText)) < MinVisibleText
}

// RenderInBrowser loads url in headless Chrome and returns the rendered document.
func RenderInBrowser(ctx context.Context, url string, timeout time.Duration) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(DefaultUserAgent),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	runCtx, cancelRun := context.WithTimeout(tabCtx, timeout+renderSettle)
	defer cancelRun()

	var html string
	if err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(renderSettle),
		chromedp.OuterHTML("html", &html),
	); err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	return html, nil
}
