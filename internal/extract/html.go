// Package extract converts fetched HTML and PDF bytes to plain text.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLToText returns the main readable text of an HTML page. pageURL picks
// platform specific selectors and may be empty.
func HTMLToText(body []byte, pageURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	pr := profileFor(DetectPlatform(pageURL))
	doc.Find(strings.Join(append(boilerplate[:len(boilerplate):len(boilerplate)], pr.noise...), ", ")).Remove()

	return cleanWhitespace(mainSelection(doc, pr.content).Text()), nil
}

// mainSelection returns the first element matching the earliest selector in
// order, or body when none match.
func mainSelection(doc *goquery.Document, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if found := doc.Find(sel); found.Length() > 0 {
			return found.First()
		}
	}
	return doc.Find("body")
}

// cleanWhitespace trims every line, drops blank lines and collapses runs of
// spaces and tabs inside a line.
func cleanWhitespace(text string) string {
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	return b.String()
}
