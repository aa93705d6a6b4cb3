package ratelimit

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/fatura/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 8*time.Second, bucketTTL(5, 20))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
	assert.Equal(t, time.Second, bucketTTL(0, 10))
}

func TestEvaluateRetryAfter(t *testing.T) {
	denied := evaluate(false, 0.5, 2, 10)
	assert.False(t, denied.Allowed)
	assert.Equal(t, 250*time.Millisecond, denied.RetryAfter)
	assert.Equal(t, 10, denied.Limit)

	allowed := evaluate(true, 3.7, 2, 10)
	assert.True(t, allowed.Allowed)
	assert.Equal(t, 3, allowed.Remaining)
	assert.Zero(t, allowed.RetryAfter)
}

func TestScriptValueParsing(t *testing.T) {
	assert.Equal(t, int64(1), toInt(int64(1)))
	assert.Equal(t, int64(7), toInt("7"))
	assert.Equal(t, 2.5, toFloat("2.5"))
	assert.Equal(t, float64(3), toFloat(int64(3)))
	assert.Zero(t, toFloat(nil))
}

func TestWriteLimiterDisabled(t *testing.T) {
	limiter, err := NewWriteLimiter(config.Config{}, nil)
	require.NoError(t, err)
	assert.False(t, limiter.Enabled())

	result, err := limiter.AllowUser(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestWriteLimiterRequiresRedis(t *testing.T) {
	_, err := NewWriteLimiter(config.Config{RateLimit: config.RateLimitConfig{Enabled: true, WriteRate: 1, WriteBurst: 1}}, nil)
	assert.Error(t, err)
}

func TestNilLockerAndBucket(t *testing.T) {
	assert.Nil(t, NewLocker(nil))
	assert.Nil(t, NewTokenBucket(nil))

	var locker *Locker
	lease, err := locker.Acquire(context.Background(), "recurring_due", time.Second)
	assert.ErrorIs(t, err, ErrLockUnavailable)
	assert.Nil(t, lease)
	assert.NoError(t, lease.Release(context.Background()))
	assert.Empty(t, lease.Key())
}

func TestAcquireValidatesBeforeCallingRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	locker := NewLocker(client)

	_, err := locker.Acquire(context.Background(), "  ", time.Second)
	assert.ErrorIs(t, err, ErrInvalidLease)
	_, err = locker.Acquire(context.Background(), "recurring_due", 0)
	assert.ErrorIs(t, err, ErrInvalidLease)
}
