package ratelimit

import (
	"time"

	"github.com/jonathan/subject-research/internal/config"
)

// EndpointConfig overrides the default limit for one route.
type EndpointConfig struct {
	// Path is a route pattern; segments written as {name} match any value.
	Path   string
	Method string
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// FromSettings builds the limiter configuration from the server settings.
func FromSettings(s config.RateLimitConfig) *Config {
	if !s.Enabled {
		return &Config{Enabled: false}
	}
	return &Config{
		Enabled:         true,
		DefaultLimit:    s.DefaultPerMinute,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		Whitelist:       toSet(s.Whitelist),
		Blacklist:       toSet(s.Blacklist),
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs limits the routes that enqueue pipeline work.
// Everything else falls back to the default limit; health is unlimited.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		{Path: "/jobs", Method: "POST", Limit: 20, Window: time.Hour, Burst: 3},
		{Path: "/jobs/{id}/analyze", Method: "POST", Limit: 60, Window: time.Hour, Burst: 5},
		{Path: "/jobs/{id}/stream", Method: "GET", Limit: 120, Window: time.Hour, Burst: 10},
	}
}

func toSet(list []string) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, v := range list {
		set[v] = true
	}
	return set
}
