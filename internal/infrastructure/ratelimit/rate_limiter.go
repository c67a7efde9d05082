package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	ActionSendMessage = "send_message"
	ActionMarkRead    = "mark_read"
)

// Limit is a token bucket: Burst actions at once, one more every Every.
type Limit struct {
	Burst int
	Every time.Duration
}

// DefaultLimits throttle the user-triggered writes sent to the marketplace.
var DefaultLimits = map[string]Limit{
	// 10 messages per minute
	ActionSendMessage: {Burst: 10, Every: 6 * time.Second},
	// 30 mark-read clicks per minute
	ActionMarkRead: {Burst: 30, Every: 2 * time.Second},
}

var fallbackLimit = Limit{Burst: 20, Every: 3 * time.Second}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one bucket per key and action.
type RateLimiter struct {
	limits  map[string]Limit
	buckets map[string]*bucket
	mutex   sync.Mutex
	now     func() time.Time
}

// NewRateLimiter uses DefaultLimits when limits is nil.
func NewRateLimiter(limits map[string]Limit) *RateLimiter {
	if limits == nil {
		limits = DefaultLimits
	}
	return &RateLimiter{
		limits:  limits,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (rl *RateLimiter) limitFor(action string) Limit {
	if limit, ok := rl.limits[action]; ok {
		return limit
	}
	return fallbackLimit
}

// Allow consumes a token for key/action. When none is left it reports how
// long until the next one.
func (rl *RateLimiter) Allow(key, action string) (bool, time.Duration) {
	now := rl.now()

	rl.mutex.Lock()
	b, exists := rl.buckets[key+":"+action]
	if !exists {
		limit := rl.limitFor(action)
		b = &bucket{limiter: rate.NewLimiter(rate.Every(limit.Every), limit.Burst)}
		rl.buckets[key+":"+action] = b
	}
	b.lastSeen = now
	rl.mutex.Unlock()

	reservation := b.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, 0
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// GetStatus returns the tokens left for key/action and the bucket size.
func (rl *RateLimiter) GetStatus(key, action string) (tokens int, maxTokens int) {
	rl.mutex.Lock()
	b, exists := rl.buckets[key+":"+action]
	rl.mutex.Unlock()

	limit := rl.limitFor(action)
	if !exists {
		return limit.Burst, limit.Burst
	}
	return int(b.limiter.TokensAt(rl.now())), limit.Burst
}

// Cleanup drops buckets idle for longer than idle.
func (rl *RateLimiter) Cleanup(idle time.Duration) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > idle {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanupRoutine prunes idle buckets every 30 minutes until ctx is done.
func (rl *RateLimiter) StartCleanupRoutine(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Cleanup(time.Hour)
			}
		}
	}()
}
