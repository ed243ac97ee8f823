// Package ratelimit limits API requests per client and endpoint with token buckets.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleTTL is how long an unused bucket survives a sweep.
const idleTTL = time.Hour

// Info describes the state of the bucket that served a request.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

func defaultConfig() *Config {
	return &Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter keeps one token bucket per client and endpoint. Requests that match
// a configured pattern share the pattern's bucket, so /jobs/a/analyze and
// /jobs/b/analyze draw from the same budget.
type Limiter struct {
	cfg *Config

	mu      sync.Mutex
	buckets map[string]*bucket

	done     chan struct{}
	stopOnce sync.Once
}

// NewLimiter creates a limiter and, when enabled, starts its idle sweeper.
func NewLimiter(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = defaultConfig()
	}
	l := &Limiter{cfg: cfg, buckets: make(map[string]*bucket)}
	if cfg.Enabled && cfg.CleanupInterval > 0 {
		l.done = make(chan struct{})
		go l.sweep(cfg.CleanupInterval)
	}
	return l
}

// Allow takes one token for clientID on path and method and reports whether
// the request may proceed.
func (l *Limiter) Allow(clientID, path, method string) (bool, Info) {
	switch {
	case !l.cfg.Enabled, l.cfg.Whitelist[clientID]:
		return true, Info{Allowed: true}
	case l.cfg.Blacklist[clientID]:
		return false, Info{}
	}

	ec, scope := l.policy(path, method)
	if ec.Limit <= 0 || ec.Window <= 0 {
		return true, Info{Allowed: true}
	}

	lim := l.bucket(clientID+"|"+scope, ec)
	now := time.Now()
	ok := lim.AllowN(now, 1)
	return ok, describe(lim, now, ec.Limit, ok)
}

// policy returns the endpoint rule for a request and the bucket scope it
// belongs to.
func (l *Limiter) policy(path, method string) (EndpointConfig, string) {
	if ec := MatchEndpoint(path, method, l.cfg.EndpointConfigs); ec != nil {
		return *ec, ec.Method + " " + ec.Path
	}
	return EndpointConfig{
		Limit:  l.cfg.DefaultLimit,
		Window: l.cfg.DefaultWindow,
		Burst:  l.cfg.DefaultLimit,
	}, method + " " + path
}

func (l *Limiter) bucket(key string, ec EndpointConfig) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.buckets[key]
	if b == nil {
		burst := ec.Burst
		if burst <= 0 {
			burst = ec.Limit
		}
		b = &bucket{lim: rate.NewLimiter(rate.Limit(float64(ec.Limit)/ec.Window.Seconds()), burst)}
		l.buckets[key] = b
	}
	b.seen = time.Now()
	return b.lim
}

func describe(lim *rate.Limiter, now time.Time, limit int, allowed bool) Info {
	perSec := float64(lim.Limit())
	tokens := lim.TokensAt(now)

	info := Info{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: max(int(tokens), 0),
		ResetTime: now.Add(secs((float64(lim.Burst()) - tokens) / perSec)),
	}
	if !allowed {
		info.RetryAfter = secs((1 - tokens) / perSec)
	}
	return info
}

func secs(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

func (l *Limiter) sweep(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-l.done:
			return
		case now := <-t.C:
			l.cleanupBuckets(now.Add(-idleTTL))
		}
	}
}

// cleanupBuckets drops buckets idle since before cutoff.
func (l *Limiter) cleanupBuckets(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, k)
		}
	}
}

// Stop ends the sweeper. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		if l.done != nil {
			close(l.done)
		}
	})
}

func (l *Limiter) bucketCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
