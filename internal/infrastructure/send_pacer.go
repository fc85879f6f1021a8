package infrastructure

import (
	"sync"
	"time"
)

// SendPacer implements token bucket rate limiting per page. The Send
// API throttles per page, so outbound automation traffic is paced
// before each call instead of burning the page's quota on bursts.
type SendPacer struct {
	mu          sync.RWMutex
	buckets     map[string]*tokenBucket
	rate        float64 // tokens per second
	maxTokens   float64 // burst capacity
	cleanupTick time.Duration
}

type tokenBucket struct {
	tokens     float64
	lastUpdate time.Time
}

// NewSendPacer creates a pacer with specified rate and burst.
// rate: sends per second allowed per page
// burst: maximum burst capacity
func NewSendPacer(rate float64, burst int) *SendPacer {
	sp := &SendPacer{
		buckets:     make(map[string]*tokenBucket),
		rate:        rate,
		maxTokens:   float64(burst),
		cleanupTick: 5 * time.Minute,
	}

	// Start cleanup goroutine
	go sp.cleanup()

	return sp
}

// Allow checks if the page can send now (consumes 1 token if allowed).
func (sp *SendPacer) Allow(pageID string) bool {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	bucket, exists := sp.buckets[pageID]
	now := time.Now()

	if !exists {
		// Create new bucket with full tokens
		sp.buckets[pageID] = &tokenBucket{
			tokens:     sp.maxTokens - 1, // Consume 1 token
			lastUpdate: now,
		}
		return true
	}

	// Refill tokens based on time elapsed
	elapsed := now.Sub(bucket.lastUpdate).Seconds()
	bucket.tokens += elapsed * sp.rate
	if bucket.tokens > sp.maxTokens {
		bucket.tokens = sp.maxTokens
	}
	bucket.lastUpdate = now

	if bucket.tokens >= 1 {
		bucket.tokens -= 1
		return true
	}

	return false
}

// WaitTime returns how long to wait before the page's next send is allowed.
func (sp *SendPacer) WaitTime(pageID string) time.Duration {
	sp.mu.RLock()
	defer sp.mu.RUnlock()

	bucket, exists := sp.buckets[pageID]
	if !exists {
		return 0
	}

	now := time.Now()
	elapsed := now.Sub(bucket.lastUpdate).Seconds()
	currentTokens := bucket.tokens + elapsed*sp.rate

	if currentTokens >= 1 {
		return 0
	}

	// Calculate wait time for 1 token
	needed := 1 - currentTokens
	waitSeconds := needed / sp.rate
	return time.Duration(waitSeconds * float64(time.Second))
}

// cleanup removes stale buckets periodically.
func (sp *SendPacer) cleanup() {
	ticker := time.NewTicker(sp.cleanupTick)
	for range ticker.C {
		sp.mu.Lock()
		now := time.Now()
		for pageID, bucket := range sp.buckets {
			// Remove buckets not used in last 10 minutes
			if now.Sub(bucket.lastUpdate) > 10*time.Minute {
				delete(sp.buckets, pageID)
			}
		}
		sp.mu.Unlock()
	}
}
