package usecases

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"entropy-gate.backend/internal/config"
	"entropy-gate.backend/pkg/logger"
	"entropy-gate.backend/pkg/metrics"
)

// RateLimitResult is one sliding-window decision.
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// RateLimiter enforces named sliding-window policies against Redis.
// Store failures fail open: availability of the generation endpoint wins
// over strict enforcement during infra outages.
type RateLimiter struct {
	redisClient func() *goredis.Client
	policies    map[string]config.RateLimitPolicy
}

// NewRateLimiter creates a rate limiter over the given named policies.
func NewRateLimiter(redisClient func() *goredis.Client, policies ...config.RateLimitPolicy) *RateLimiter {
	m := make(map[string]config.RateLimitPolicy, len(policies))
	for _, p := range policies {
		m[p.Name] = p
	}
	return &RateLimiter{
		redisClient: redisClient,
		policies:    m,
	}
}

// Policy returns a named policy and whether it exists.
func (rl *RateLimiter) Policy(name string) (config.RateLimitPolicy, bool) {
	p, ok := rl.policies[name]
	return p, ok
}

// Check applies the named policy to one client identity. limitOverride, when
// positive, replaces the policy limit (per-key limits). The window update is
// atomic per key: expired members are dropped, the survivors counted and the
// new entry added in one transactional pipeline, so concurrent requests from
// the same identity cannot together exceed the limit.
func (rl *RateLimiter) Check(ctx context.Context, identity, policyName string, limitOverride int) *RateLimitResult {
	policy, ok := rl.policies[policyName]
	if !ok {
		policy = config.RateLimitPolicy{Name: policyName, Limit: 100, Window: time.Minute}
	}

	limit := policy.Limit
	if limitOverride > 0 {
		limit = limitOverride
	}

	now := time.Now()
	resetAt := now.Add(policy.Window)

	client := rl.redisClient()
	if client == nil {
		return rl.failOpen(ctx, policyName, limit, resetAt, fmt.Errorf("redis client not initialized"))
	}

	key := "ratelimit:" + policy.Name + ":" + identity
	member := strconv.FormatInt(now.UnixNano(), 10) + ":" + uuid.NewString()
	windowStart := strconv.FormatInt(now.Add(-policy.Window).UnixNano(), 10)

	pipe := client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", windowStart)
	card := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, goredis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.Expire(ctx, key, policy.Window)

	if _, err := pipe.Exec(ctx); err != nil {
		return rl.failOpen(ctx, policyName, limit, resetAt, err)
	}

	count := int(card.Val())
	if count >= limit {
		// Over the limit: the optimistic add must not consume window capacity.
		if err := client.ZRem(ctx, key, member).Err(); err != nil {
			logger.Warn(ctx, "Failed to roll back rate limit entry", zap.Error(err))
		}
		metrics.RateLimitHits.WithLabelValues(policy.Name).Inc()
		return &RateLimitResult{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: policy.Window,
		}
	}

	return &RateLimitResult{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - count - 1,
		ResetAt:   resetAt,
	}
}

func (rl *RateLimiter) failOpen(ctx context.Context, policyName string, limit int, resetAt time.Time, err error) *RateLimitResult {
	logger.Error(ctx, "Rate limit store unreachable, failing open",
		zap.String("policy", policyName),
		zap.Error(err),
	)
	return &RateLimitResult{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit,
		ResetAt:   resetAt,
	}
}
