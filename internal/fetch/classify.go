package fetch

import "strings"

// Raw object extensions
const (
	ExtPDF    = ".pdf"
	ExtHTML   = ".html"
	ExtBinary = ".bin"
)

// Normalized MIME types
const (
	MIMEPDF  = "application/pdf"
	MIMEHTML = "text/html"
)

// Classification is the storage extension and MIME type recorded for fetched bytes.
type Classification struct {
	Ext  string
	MIME string
}

// Classify decides how fetched bytes are stored and later extracted. A PDF
// MIME type or a URL ending in .pdf wins; HTML MIME types and anything that
// is neither PDF nor JSON are treated as HTML; the rest is opaque binary.
func Classify(contentType, rawURL string) Classification {
	ctype := BaseMIME(contentType)
	isPDF := strings.Contains(ctype, "pdf")

	switch {
	case isPDF || strings.HasSuffix(strings.ToLower(rawURL), ".pdf"):
		return Classification{Ext: ExtPDF, MIME: MIMEPDF}
	case strings.Contains(ctype, "html") || !strings.Contains(ctype, "json"):
		return Classification{Ext: ExtHTML, MIME: MIMEHTML}
	default:
		return Classification{Ext: ExtBinary, MIME: ctype}
	}
}

// BaseMIME strips parameters from a Content-Type header and lowercases it.
func BaseMIME(contentType string) string {
	base, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}
