package extract

import (
	"net/url"
	"strings"
)

// Platform is a publishing platform with a known page layout.
type Platform string

const (
	PlatformMedium    Platform = "medium"
	PlatformSubstack  Platform = "substack"
	PlatformWordPress Platform = "wordpress"
	PlatformUnknown   Platform = "unknown"
)

// profile lists where a platform keeps article text and which blocks to drop
// before reading it.
type profile struct {
	content []string
	noise   []string
}

var genericProfile = profile{
	content: []string{"main", "article", "[role='main']", ".content", "#content", ".main-content", "#main-content"},
}

var profiles = map[Platform]profile{
	PlatformMedium: {
		content: []string{"article section", "article", "main"},
		noise:   []string{".pw-multi-vote-count", ".speechify-ignore"},
	},
	PlatformSubstack: {
		content: []string{".available-content", ".body.markup", "article"},
		noise:   []string{".subscription-widget-wrap", ".post-footer", ".paywall"},
	},
	PlatformWordPress: {
		content: []string{".entry-content", ".post-content", "article", "main"},
		noise:   []string{".sharedaddy", ".jp-relatedposts", ".wp-block-buttons"},
	},
}

// always removed, whatever the platform
var boilerplate = []string{
	"nav", "footer", "header", "script", "style", "noscript", "iframe", "svg",
	".ad", ".advertisement", ".ads", ".sidebar", ".cookie-banner", ".popup",
	"form", ".social-share", ".share-buttons", ".social-links",
	".cookie-consent", ".gdpr-notice", ".comments", "#comments",
}

// hostSuffixes maps a registrable domain to the platform serving it and its
// subdomains.
var hostSuffixes = []struct {
	domain   string
	platform Platform
}{
	{"medium.com", PlatformMedium},
	{"substack.com", PlatformSubstack},
	{"wordpress.com", PlatformWordPress},
}

// DetectPlatform identifies the publishing platform from a page URL.
func DetectPlatform(pageURL string) Platform {
	u, err := url.Parse(pageURL)
	if err != nil {
		return PlatformUnknown
	}
	host := strings.ToLower(u.Hostname())
	for _, hs := range hostSuffixes {
		if host == hs.domain || strings.HasSuffix(host, "."+hs.domain) {
			return hs.platform
		}
	}
	return PlatformUnknown
}

func profileFor(p Platform) profile {
	if pr, ok := profiles[p]; ok {
		return pr
	}
	return genericProfile
}
