// Package ratelimit limits requests per client and endpoint with token buckets.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter manages one token bucket per client and endpoint.
type Limiter struct {
	config  *Config
	now     func() time.Time
	mu      sync.Mutex
	buckets map[string]*bucket

	cleanupStop chan struct{}
	stopOnce    sync.Once
}

// NewLimiter creates a new rate limiter with the given configuration.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = DefaultConfig()
	}
	l := &Limiter{
		config:  config,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	if config.Enabled && config.CleanupInterval > 0 {
		l.cleanupStop = make(chan struct{})
		go l.cleanup(config.CleanupInterval)
	}
	return l
}

// Allow checks if a request from the given client is allowed for the specified endpoint.
func (l *Limiter) Allow(clientID string, endpoint string, method string) (bool, Info) {
	if !l.config.Enabled || l.config.Whitelist[clientID] {
		return true, Info{Allowed: true}
	}
	if l.config.Blacklist[clientID] {
		return false, Info{Allowed: false}
	}

	limit, window, burst, key := l.config.DefaultLimit, l.config.DefaultWindow, 0, "*"
	if ep := MatchEndpoint(endpoint, method, l.config.EndpointConfigs); ep != nil {
		if ep.Limit == 0 {
			return true, Info{Allowed: true}
		}
		limit, window, burst, key = ep.Limit, ep.Window, ep.Burst, ep.Method+" "+ep.Path
	}
	if limit <= 0 || window <= 0 {
		return true, Info{Allowed: true}
	}
	if burst <= 0 {
		burst = limit
	}

	now := l.now()
	b := l.bucket(clientID+"|"+key, limit, window, burst, now)
	allowed := b.limiter.AllowN(now, 1)

	tokens := b.limiter.TokensAt(now)
	perSecond := float64(b.limiter.Limit())
	info := Info{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: max(0, int(math.Floor(tokens))),
		ResetTime: now.Add(secondsToDuration((float64(burst) - tokens) / perSecond)),
	}
	if !allowed {
		info.RetryAfter = secondsToDuration((1 - tokens) / perSecond)
	}
	return allowed, info
}

func (l *Limiter) bucket(key string, limit int, window time.Duration, burst int, now time.Time) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		every := rate.Limit(float64(limit) / window.Seconds())
		b = &bucket{limiter: rate.NewLimiter(every, burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b
}

// cleanup drops buckets idle for longer than the interval
func (l *Limiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.cleanupStop:
			return
		case <-ticker.C:
			l.evictIdle(interval)
		}
	}
}

func (l *Limiter) evictIdle(idle time.Duration) {
	cutoff := l.now().Add(-idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// Size returns the number of tracked buckets
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Stop stops the cleanup goroutine.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		if l.cleanupStop != nil {
			close(l.cleanupStop)
		}
	})
}

func secondsToDuration(s float64) time.Duration {
	if s <= 0 || math.IsInf(s, 0) || math.IsNaN(s) {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
