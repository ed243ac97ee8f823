// Package blob stores raw and normalized content under hierarchical keys and
// returns a location string that later stages use to read it back.
package blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jonathan/subject-research/internal/config"
)

// ErrNotFound is returned by Get when no object exists at the location.
var ErrNotFound = errors.New("blob not found")

// Store is a content-addressed object store.
type Store interface {
	// Put writes data under key and returns its location.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Get reads the object at a location previously returned by Put.
	Get(ctx context.Context, location string) ([]byte, error)
	// Close releases any resources held by the store.
	Close() error
}

// Open creates the store selected by cfg.
func Open(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	switch cfg.Backend {
	case config.BlobBackendGCS:
		return NewGCS(ctx, cfg.Bucket)
	case config.BlobBackendLocal:
		return NewLocal(cfg.LocalDir)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Backend)
	}
}

// parseLocation splits "scheme://bucket/key" into its parts.
func parseLocation(location string) (scheme, bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", "", fmt.Errorf("invalid blob location %q: %w", location, err)
	}
	if u.Scheme == "" {
		return "", "", "", fmt.Errorf("invalid blob location %q: missing scheme", location)
	}
	return u.Scheme, u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("blob key is empty")
	}
	if strings.HasPrefix(key, "/") {
		return fmt.Errorf("blob key %q must be relative", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return fmt.Errorf("blob key %q must not contain '..'", key)
		}
	}
	return nil
}
