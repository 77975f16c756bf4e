package external

import (
	"context"

	"go-dm/internal/application/ports"
	"go-dm/internal/ratelimit"
)

// RedisRateLimiter 令牌桶限流适配器
type RedisRateLimiter struct {
	bucket *ratelimit.TokenBucketLimiter
}

// NewRedisRateLimiter 创建限流适配器
func NewRedisRateLimiter(bucket *ratelimit.TokenBucketLimiter) ports.RateLimiter {
	return &RedisRateLimiter{bucket: bucket}
}

// Allow 检查是否允许请求
func (l *RedisRateLimiter) Allow(ctx context.Context, key string, ratePerSec, burst int) (bool, error) {
	allowed, _, err := l.bucket.Allow(ctx, key, ratePerSec, burst)
	return allowed, err
}
