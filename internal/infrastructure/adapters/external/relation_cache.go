package external

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"go-dm/internal/application/ports"
	"go-dm/internal/cache"
	"go-dm/internal/domain/valueobjects"
)

// CachedRelationOracle 关系查询的 Redis 读穿缓存
// 关注关系允许最终一致，缓存故障时直接回源
type CachedRelationOracle struct {
	next   ports.RelationshipOracle
	client *redis.Client
	ttl    time.Duration
	logger ports.LogService
}

// NewCachedRelationOracle 包装一个关系查询实现；client 为 nil 时直接返回 next
func NewCachedRelationOracle(next ports.RelationshipOracle, client *redis.Client, ttl time.Duration, logger ports.LogService) ports.RelationshipOracle {
	if client == nil {
		return next
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedRelationOracle{next: next, client: client, ttl: ttl, logger: logger}
}

// GetRelation 先查缓存，未命中回源并回填
func (o *CachedRelationOracle) GetRelation(ctx context.Context, a, b string) (valueobjects.RelationType, error) {
	key := cache.RelationKey(a, b)
	v, err := o.client.Get(ctx, key).Result()
	if err == nil {
		if rt := valueobjects.RelationType(v); rt.IsValid() {
			return rt, nil
		}
	} else if err != redis.Nil {
		o.logger.Warn(ctx, "关系缓存读取失败", map[string]interface{}{"key": key, "error": err.Error()})
	}

	rt, err := o.next.GetRelation(ctx, a, b)
	if err != nil {
		return "", err
	}
	if err := o.client.Set(ctx, key, string(rt), o.ttl).Err(); err != nil {
		o.logger.Warn(ctx, "关系缓存回填失败", map[string]interface{}{"key": key, "error": err.Error()})
	}
	return rt, nil
}
