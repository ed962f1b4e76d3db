// Package ratelimit implements Discord API rate limiting based on response headers.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Bucket represents a rate limit bucket for a specific Discord API route
type Bucket struct {
	Remaining int           // Requests remaining in current window
	Limit     int           // Total requests allowed per window
	ResetAt   time.Time     // When the rate limit resets
	limiter   *rate.Limiter // Token bucket rate limiter
	mu        sync.Mutex
}

// RateLimiter manages rate limits for Discord API routes
type RateLimiter struct {
	buckets map[string]*Bucket // route -> bucket
	mu      sync.Mutex
	logger  *zap.Logger
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*Bucket),
		logger:  logger,
	}
}

// getBucket retrieves or creates a bucket for a route
func (rl *RateLimiter) getBucket(route string) *Bucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if bucket, exists := rl.buckets[route]; exists {
		return bucket
	}

	// 5 requests per second until the route's real limit is learned from headers.
	bucket := &Bucket{
		Remaining: 5,
		Limit:     5,
		ResetAt:   time.Now().Add(1 * time.Second),
		limiter:   rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
	}

	rl.buckets[route] = bucket
	return bucket
}

// Wait blocks until a request to route is allowed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, route string) error {
	bucket := rl.getBucket(route)

	bucket.mu.Lock()
	var wait time.Duration
	if bucket.Remaining <= 0 && time.Now().Before(bucket.ResetAt) {
		wait = time.Until(bucket.ResetAt)
	}
	limiter := bucket.limiter
	bucket.mu.Unlock()

	if wait > 0 {
		rl.logger.Warn("rate limit exhausted, waiting",
			zap.String("route", route),
			zap.Duration("wait_duration", wait),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limiter wait cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	return nil
}

// UpdateFromHeaders updates a bucket from Discord's X-RateLimit-* response headers
func (rl *RateLimiter) UpdateFromHeaders(route string, headers http.Header) {
	if headers.Get("X-RateLimit-Limit") == "" && headers.Get("X-RateLimit-Remaining") == "" {
		return
	}

	bucket := rl.getBucket(route)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	if val, err := strconv.Atoi(headers.Get("X-RateLimit-Remaining")); err == nil {
		bucket.Remaining = val
	}

	if val, err := strconv.Atoi(headers.Get("X-RateLimit-Limit")); err == nil {
		bucket.Limit = val
	}

	// Reset-After is relative and immune to clock skew; Reset is an epoch with fractional seconds.
	if after, err := strconv.ParseFloat(headers.Get("X-RateLimit-Reset-After"), 64); err == nil {
		bucket.ResetAt = time.Now().Add(time.Duration(after * float64(time.Second)))
	} else if reset, ok := parseReset(headers.Get("X-RateLimit-Reset")); ok {
		bucket.ResetAt = reset
	}

	if bucket.Limit > 0 {
		resetDuration := time.Until(bucket.ResetAt)
		if resetDuration > 0 {
			tokensPerSecond := float64(bucket.Limit) / resetDuration.Seconds()
			bucket.limiter = rate.NewLimiter(rate.Limit(tokensPerSecond), bucket.Limit)
		}
	}

	rl.logger.Debug("updated rate limit from headers",
		zap.String("route", route),
		zap.Int("remaining", bucket.Remaining),
		zap.Int("limit", bucket.Limit),
		zap.Time("reset_at", bucket.ResetAt),
	)
}

// HandleRateLimitResponse records a 429 and returns how long the caller should back off.
func (rl *RateLimiter) HandleRateLimitResponse(route string, headers http.Header) time.Duration {
	bucket := rl.getBucket(route)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	var retryAfter time.Duration
	if seconds, err := strconv.ParseFloat(headers.Get("Retry-After"), 64); err == nil {
		retryAfter = time.Duration(seconds * float64(time.Second))
	}

	if retryAfter == 0 {
		if reset, ok := parseReset(headers.Get("X-RateLimit-Reset")); ok {
			retryAfter = time.Until(reset)
		}
	}

	if retryAfter <= 0 {
		retryAfter = 1 * time.Second
	}

	bucket.Remaining = 0
	bucket.ResetAt = time.Now().Add(retryAfter)

	rl.logger.Warn("rate limited by Discord API",
		zap.String("route", route),
		zap.Duration("retry_after", retryAfter),
	)

	return retryAfter
}

// GetStatus returns the current rate limit status for a route
func (rl *RateLimiter) GetStatus(route string) (remaining int, limit int, resetAt time.Time) {
	bucket := rl.getBucket(route)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	return bucket.Remaining, bucket.Limit, bucket.ResetAt
}

// Reset clears all rate limit buckets
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.buckets = make(map[string]*Bucket)
}

// parseReset accepts RFC3339 or a Unix epoch with optional fractional seconds.
func parseReset(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		whole := int64(secs)
		return time.Unix(whole, int64((secs-float64(whole))*float64(time.Second))), true
	}
	return time.Time{}, false
}
