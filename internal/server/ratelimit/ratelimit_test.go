package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/subject-research/internal/config"
)

func TestLimiter_Allow(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute})
	defer limiter.Stop()

	for i := 0; i < 10; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/jobs/1", "GET")
		require.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 10, info.Limit)
	}

	allowed, info := limiter.Allow("127.0.0.1", "/jobs/1", "GET")
	assert.False(t, allowed)
	assert.Positive(t, info.RetryAfter)
	assert.Equal(t, 0, info.Remaining)
}

func TestLimiter_SeparateBucketsPerClientAndEndpoint(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Minute})
	defer limiter.Stop()

	allowed, _ := limiter.Allow("a", "/jobs", "GET")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow("a", "/jobs", "GET")
	assert.False(t, allowed)

	allowed, _ = limiter.Allow("b", "/jobs", "GET")
	assert.True(t, allowed, "other client has its own bucket")
	allowed, _ = limiter.Allow("a", "/health-ish", "GET")
	assert.True(t, allowed, "other endpoint has its own bucket")
}

func TestLimiter_WhitelistAndBlacklist(t *testing.T) {
	limiter := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
		Whitelist:     map[string]bool{"10.0.0.1": true},
		Blacklist:     map[string]bool{"10.0.0.2": true},
	})
	defer limiter.Stop()

	for i := 0; i < 5; i++ {
		allowed, _ := limiter.Allow("10.0.0.1", "/jobs", "GET")
		assert.True(t, allowed)
	}
	allowed, _ := limiter.Allow("10.0.0.2", "/jobs", "GET")
	assert.False(t, allowed)
}

func TestLimiter_Disabled(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: false})
	defer limiter.Stop()

	for i := 0; i < 100; i++ {
		allowed, _ := limiter.Allow("c", "/jobs", "POST")
		assert.True(t, allowed)
	}
}

func TestLimiter_EndpointSpecific(t *testing.T) {
	limiter := NewLimiter(&Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		EndpointConfigs: DefaultEndpointConfigs(),
	})
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		allowed, _ := limiter.Allow("c", "/jobs", "POST")
		assert.True(t, allowed, "burst request %d", i+1)
	}
	allowed, info := limiter.Allow("c", "/jobs", "POST")
	assert.False(t, allowed)
	assert.Equal(t, 20, info.Limit)

	allowed, _ = limiter.Allow("c", "/jobs", "GET")
	assert.True(t, allowed, "reads use the default limit")
}

func TestLimiter_HealthUnlimited(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Minute})
	defer limiter.Stop()

	for i := 0; i < 10; i++ {
		allowed, _ := limiter.Allow("c", "/health", "GET")
		assert.True(t, allowed)
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: true, DefaultLimit: 50, DefaultWindow: time.Hour})
	defer limiter.Stop()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := limiter.Allow("shared", "/jobs", "GET")
			if ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestLimiter_CleanupBuckets(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute})
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		limiter.Allow(fmt.Sprintf("client-%d", i), "/jobs", "GET")
	}
	require.Equal(t, 3, limiter.bucketCount())

	limiter.cleanupBuckets(time.Now().Add(time.Minute))
	assert.Equal(t, 0, limiter.bucketCount())
}

func TestLimiter_PatternSharesBucket(t *testing.T) {
	limiter := NewLimiter(&Config{
		Enabled:         true,
		DefaultLimit:    100,
		DefaultWindow:   time.Minute,
		EndpointConfigs: []EndpointConfig{{Path: "/jobs/{id}/analyze", Method: "POST", Limit: 1, Window: time.Hour, Burst: 1}},
	})
	defer limiter.Stop()

	allowed, _ := limiter.Allow("c", "/jobs/a/analyze", "POST")
	assert.True(t, allowed)
	allowed, info := limiter.Allow("c", "/jobs/b/analyze", "POST")
	assert.False(t, allowed)
	assert.Positive(t, info.RetryAfter)
	assert.Equal(t, 1, limiter.bucketCount())
}

func TestNewLimiter_NilConfig(t *testing.T) {
	limiter := NewLimiter(nil)
	defer limiter.Stop()
	limiter.Stop()

	allowed, info := limiter.Allow("c", "/jobs", "GET")
	assert.True(t, allowed)
	assert.Equal(t, 1000, info.Limit)
}

func TestMatchEndpoint(t *testing.T) {
	configs := DefaultEndpointConfigs()

	got := MatchEndpoint("/jobs", "POST", configs)
	require.NotNil(t, got)
	assert.Equal(t, "/jobs", got.Path)

	got = MatchEndpoint("/jobs/123/analyze", "POST", configs)
	require.NotNil(t, got)
	assert.Equal(t, "/jobs/{id}/analyze", got.Path)

	got = MatchEndpoint("/jobs/123/stream/", "GET", configs)
	require.NotNil(t, got)
	assert.Equal(t, "/jobs/{id}/stream", got.Path)

	assert.Nil(t, MatchEndpoint("/jobs/123", "GET", configs))
	assert.Nil(t, MatchEndpoint("/jobs/123/analyze", "GET", configs))
	assert.Nil(t, MatchEndpoint("/jobs/123/analyze/extra", "POST", configs))

	health := MatchEndpoint("/health", "GET", configs)
	require.NotNil(t, health)
	assert.Zero(t, health.Limit)
}

func TestMatchEndpoint_PrefersLiteralSegments(t *testing.T) {
	configs := []EndpointConfig{
		{Path: "/jobs/{id}", Method: "GET", Limit: 1},
		{Path: "/jobs/export", Method: "GET", Limit: 2},
	}

	assert.Equal(t, 2, MatchEndpoint("/jobs/export", "GET", configs).Limit)
	assert.Equal(t, 1, MatchEndpoint("/jobs/42", "GET", configs).Limit)
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings(config.RateLimitConfig{
		Enabled:          true,
		DefaultPerMinute: 42,
		Whitelist:        []string{"1.1.1.1", "2.2.2.2"},
	})
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 42, cfg.DefaultLimit)
	assert.Equal(t, time.Minute, cfg.DefaultWindow)
	assert.True(t, cfg.Whitelist["2.2.2.2"])
	assert.Empty(t, cfg.Blacklist)
	assert.NotEmpty(t, cfg.EndpointConfigs)

	assert.False(t, FromSettings(config.RateLimitConfig{Enabled: false}).Enabled)
}
