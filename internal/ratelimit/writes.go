package ratelimit

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fatura/internal/config"
)

const keyUserWrites = "fatura:writes:user:%s"

// WriteLimiter throttles mutating API calls per user. A nil limiter
// allows everything.
type WriteLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewWriteLimiter(cfg config.Config, bucket *TokenBucket) (*WriteLimiter, error) {
	if !cfg.RateLimit.Enabled {
		return nil, nil
	}
	if bucket == nil {
		return nil, errors.New("rate limit requires REDIS_ADDR")
	}
	if cfg.RateLimit.WriteRate <= 0 || cfg.RateLimit.WriteBurst <= 0 {
		return nil, errors.New("write rate limit must be positive")
	}
	return &WriteLimiter{
		bucket: bucket,
		rate:   cfg.RateLimit.WriteRate,
		burst:  cfg.RateLimit.WriteBurst,
	}, nil
}

func (l *WriteLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *WriteLimiter) AllowUser(ctx context.Context, userID snowflake.ID) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyUserWrites, userID.String()), l.rate, l.burst)
}
