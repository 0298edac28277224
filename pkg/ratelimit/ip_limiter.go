package ratelimit

import (
	"sync"
	"time"
)

type ipEntry struct {
	bucket   *TokenBucket
	lastSeen time.Time
}

// IPRateLimiter keeps one token bucket per client IP
type IPRateLimiter struct {
	limiters   map[string]*ipEntry
	mu         sync.Mutex
	maxTokens  float64
	refillRate float64
	idleTTL    time.Duration
	allowed    int64
	rejected   int64
	stopChan   chan struct{}
	stopOnce   sync.Once
}

// NewIPRateLimiter creates a new IPRateLimiter and starts its idle-entry sweeper
func NewIPRateLimiter(maxTokens, refillRate float64) *IPRateLimiter {
	limiter := &IPRateLimiter{
		limiters:   make(map[string]*ipEntry),
		maxTokens:  maxTokens,
		refillRate: refillRate,
		idleTTL:    10 * time.Minute,
		stopChan:   make(chan struct{}),
	}

	go limiter.cleanupLoop(time.NewTicker(limiter.idleTTL))

	return limiter
}

// Allow checks if a request from the given IP can proceed
func (ipl *IPRateLimiter) Allow(ip string) bool {
	ipl.mu.Lock()
	entry, exists := ipl.limiters[ip]
	if !exists {
		entry = &ipEntry{bucket: NewTokenBucket(ipl.maxTokens, ipl.refillRate)}
		ipl.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	ipl.mu.Unlock()

	ok := entry.bucket.Allow()

	ipl.mu.Lock()
	if ok {
		ipl.allowed++
	} else {
		ipl.rejected++
	}
	ipl.mu.Unlock()

	return ok
}

// Sweep drops buckets that have not been used since before cutoff.
func (ipl *IPRateLimiter) Sweep(cutoff time.Time) int {
	ipl.mu.Lock()
	defer ipl.mu.Unlock()

	removed := 0
	for ip, entry := range ipl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(ipl.limiters, ip)
			removed++
		}
	}
	return removed
}

func (ipl *IPRateLimiter) cleanupLoop(ticker *time.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ipl.Sweep(time.Now().Add(-ipl.idleTTL))
		case <-ipl.stopChan:
			return
		}
	}
}

// GetMetrics returns counters for the admin endpoint
func (ipl *IPRateLimiter) GetMetrics() map[string]interface{} {
	ipl.mu.Lock()
	defer ipl.mu.Unlock()

	return map[string]interface{}{
		"tracked_clients": len(ipl.limiters),
		"allowed":         ipl.allowed,
		"rejected":        ipl.rejected,
		"max_tokens":      ipl.maxTokens,
		"refill_rate":     ipl.refillRate,
	}
}

// Stop stops the sweeper goroutine
func (ipl *IPRateLimiter) Stop() {
	ipl.stopOnce.Do(func() { close(ipl.stopChan) })
}
