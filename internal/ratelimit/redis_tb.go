package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBucketLimiter 基于 Redis 的令牌桶限流：
// - 两个键：<key>:t（令牌数）、<key>:ts（上次补充时间）
// - Lua 原子脚本：计算补充、扣减与过期
// - Redis 出错时返回 allowed=true 与错误，由调用方决定是否放行
type TokenBucketLimiter struct {
	client *redis.Client
}

func NewTokenBucketLimiter(c *redis.Client) *TokenBucketLimiter {
	return &TokenBucketLimiter{client: c}
}

var luaScript = redis.NewScript(`
local tokens_key = KEYS[1]
local ts_key = KEYS[2]
local rate = tonumber(ARGV[1])        -- 每秒新增令牌
local burst = tonumber(ARGV[2])       -- 桶容量
local now_ms = tonumber(ARGV[3])      -- 当前时间毫秒
local ttl_ms = tonumber(ARGV[4])      -- 空闲过期

local tokens = tonumber(redis.call('GET', tokens_key))
if tokens == nil then tokens = burst end
local ts = tonumber(redis.call('GET', ts_key))
if ts == nil then ts = now_ms end

local delta = math.max(0, now_ms - ts) / 1000.0
local new_tokens = math.min(burst, tokens + delta * rate)

local allowed = 0
if new_tokens >= 1 then
  allowed = 1
  new_tokens = new_tokens - 1
end

redis.call('SET', tokens_key, new_tokens, 'PX', ttl_ms)
redis.call('SET', ts_key, now_ms, 'PX', ttl_ms)

return {allowed, math.floor(new_tokens)}
`)

// IdleTTL 桶从空到满所需时间再加一秒，过期后等价于满桶
func IdleTTL(ratePerSec, burst int) time.Duration {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	refill := time.Duration(burst) * time.Second / time.Duration(ratePerSec)
	return refill + time.Second
}

// Allow 尝试消耗一个令牌，返回 (allowed, remainingTokens)
// key 建议按 动作:用户 维度划分，如 dm:tb:send:<userId>
func (l *TokenBucketLimiter) Allow(ctx context.Context, key string, ratePerSec, burst int) (bool, int64, error) {
	nowMs := time.Now().UnixMilli()
	ttl := IdleTTL(ratePerSec, burst).Milliseconds()
	vals, err := luaScript.Run(ctx, l.client, []string{key + ":t", key + ":ts"}, ratePerSec, burst, nowMs, ttl).Result()
	if err != nil {
		return true, 0, err
	}
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 2 {
		return true, 0, nil
	}
	allowed, _ := arr[0].(int64)
	rem, _ := arr[1].(int64)
	return allowed == 1, rem, nil
}
