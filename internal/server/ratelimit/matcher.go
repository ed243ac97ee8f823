package ratelimit

import (
	"strings"
)

var unlimited = &EndpointConfig{}

// MatchEndpoint returns the config whose pattern matches path and method, or
// nil. When several patterns match, the one with the most literal segments
// wins. GET /health is always unlimited.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if path == "/health" && method == "GET" {
		return unlimited
	}

	segments := split(path)
	var (
		best      *EndpointConfig
		bestScore = -1
	)
	for i := range configs {
		ec := &configs[i]
		if ec.Method != method {
			continue
		}
		if score, ok := match(split(ec.Path), segments); ok && score > bestScore {
			best, bestScore = ec, score
		}
	}
	return best
}

// match reports whether pattern matches segments and how many pattern
// segments matched literally.
func match(pattern, segments []string) (int, bool) {
	if len(pattern) != len(segments) {
		return 0, false
	}
	literal := 0
	for i, p := range pattern {
		if strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
			if segments[i] == "" {
				return 0, false
			}
			continue
		}
		if p != segments[i] {
			return 0, false
		}
		literal++
	}
	return literal, true
}

func split(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}
