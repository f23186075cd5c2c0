// Package ratelimit implements a fixed-window per-(identity, action) request
// limiter backed by Redis. The limiter fails open: when Redis is absent or
// unreachable the request is allowed, so the limiter never becomes a single
// point of failure for the API.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Result is the outcome of an Allow check.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter counts requests per (identity, action) within a fixed window.
type Limiter struct {
	client   *redis.Client
	window   time.Duration
	ceilings map[string]int
	fallback int
}

// DefaultCeilings holds the per-action request ceilings for a 60s window.
// Money-moving actions are tighter than reads.
func DefaultCeilings() map[string]int {
	return map[string]int{
		"register": 3,
		"transfer": 10,
		"purchase": 10,
		"withdraw": 5,
		"adjust":   30,
	}
}

// New creates a limiter. client may be nil, in which case every request is
// allowed.
func New(client *redis.Client, window time.Duration, ceilings map[string]int, fallback int) *Limiter {
	if ceilings == nil {
		ceilings = DefaultCeilings()
	}
	if fallback <= 0 {
		fallback = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{client: client, window: window, ceilings: ceilings, fallback: fallback}
}

// Allow checks and consumes one request slot for (identity, action).
func (l *Limiter) Allow(ctx context.Context, identity, action string) Result {
	if l.client == nil {
		return Result{Allowed: true}
	}

	ceiling, ok := l.ceilings[action]
	if !ok {
		ceiling = l.fallback
	}

	key := fmt.Sprintf("ratelimit:%s:%s", action, identity)

	// INCR and EXPIRE go through one MULTI/EXEC so a crash between the two
	// cannot leave a counter without a TTL.
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Str("action", action).Msg("rate limiter unavailable, failing open")
		return Result{Allowed: true}
	}
	count := incr.Val()

	if count <= int64(ceiling) {
		return Result{Allowed: true}
	}

	retryAfter := l.window
	if ttl, err := l.client.TTL(ctx, key).Result(); err == nil && ttl > 0 {
		retryAfter = ttl
	}
	return Result{Allowed: false, RetryAfter: retryAfter}
}
