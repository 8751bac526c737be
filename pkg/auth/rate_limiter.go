package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter limits request rates per key
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// SlidingWindowLimiter implements a sliding-window rate limiter
type SlidingWindowLimiter struct {
	limit      int
	windowSize time.Duration
	windows    map[string]*window
	mu         sync.Mutex
}

type window struct {
	timestamps []time.Time
}

// NewSlidingWindowLimiter creates a sliding window limiter
func NewSlidingWindowLimiter(limit int, windowSize time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		limit:      limit,
		windowSize: windowSize,
		windows:    make(map[string]*window),
	}
}

// Allow checks if a request is allowed under the limit
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-l.windowSize)

	w, exists := l.windows[key]
	if !exists {
		w = &window{}
		l.windows[key] = w
	}

	// Drop timestamps that fell out of the window
	valid := w.timestamps[:0]
	for _, ts := range w.timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}
	w.timestamps = valid

	if len(w.timestamps) >= l.limit {
		return false, nil
	}

	w.timestamps = append(w.timestamps, now)
	return true, nil
}

// Reset clears the window for a key
func (l *SlidingWindowLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
	return nil
}

// IPRateLimiter limits requests per client IP
type IPRateLimiter struct {
	limiter *SlidingWindowLimiter
}

// NewIPRateLimiter creates an IP-based rate limiter
func NewIPRateLimiter(requestsPerMinute int) *IPRateLimiter {
	return &IPRateLimiter{
		limiter: NewSlidingWindowLimiter(requestsPerMinute, time.Minute),
	}
}

// Allow checks if a request from an IP is allowed
func (l *IPRateLimiter) Allow(ctx context.Context, ip string) (bool, error) {
	return l.limiter.Allow(ctx, "ip:"+ip)
}

// UserRateLimiter limits requests per authenticated user
type UserRateLimiter struct {
	limiter *SlidingWindowLimiter
}

// NewUserRateLimiter creates a user-based rate limiter
func NewUserRateLimiter(requestsPerMinute int) *UserRateLimiter {
	return &UserRateLimiter{
		limiter: NewSlidingWindowLimiter(requestsPerMinute, time.Minute),
	}
}

// Allow checks if a request from a user is allowed
func (l *UserRateLimiter) Allow(ctx context.Context, userID string) (bool, error) {
	return l.limiter.Allow(ctx, "user:"+userID)
}
