package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// 本包封装 Redis 客户端与私信服务用到的键：
// - 在线集合：dm:presence:online
// - 用户设备集合：dm:presence:devices:<userId>
// - 投递通道：dm:deliver:<userId>
// - 关系缓存：dm:rel:<a>:<b>
var (
	redisClient *redis.Client
)

func InitRedis(addr, pass string, db int) *redis.Client {
	redisClient = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})
	return redisClient
}

func Client() *redis.Client { return redisClient }

func OnlineUsersKey() string                 { return "dm:presence:online" }
func DeliverChannel(userID string) string    { return fmt.Sprintf("dm:deliver:%s", userID) }
func DevicePresenceKey(userID string) string { return fmt.Sprintf("dm:presence:devices:%s", userID) }

// RelationKey 关系缓存键，方向敏感：a 视角下与 b 的关系
func RelationKey(a, b string) string { return fmt.Sprintf("dm:rel:%s:%s", a, b) }

// SetDeviceOnline/SetDeviceOffline 维护多设备在线状态：
// - 上线：写入用户设备集合 + 全局在线集合
// - 下线：从设备集合移除；若集合为空，则从全局在线集合移除
func SetDeviceOnline(ctx context.Context, c *redis.Client, userID, deviceID string) error {
	pipe := c.TxPipeline()
	pipe.SAdd(ctx, DevicePresenceKey(userID), deviceID)
	pipe.SAdd(ctx, OnlineUsersKey(), userID)
	_, err := pipe.Exec(ctx)
	return err
}

func SetDeviceOffline(ctx context.Context, c *redis.Client, userID, deviceID string) error {
	if err := c.SRem(ctx, DevicePresenceKey(userID), deviceID).Err(); err != nil {
		return err
	}
	if n, err := c.SCard(ctx, DevicePresenceKey(userID)).Result(); err == nil && n == 0 {
		_ = c.SRem(ctx, OnlineUsersKey(), userID).Err()
	}
	return nil
}

// IsOnline 是否有任一设备在线
func IsOnline(ctx context.Context, c *redis.Client, userID string) (bool, error) {
	return c.SIsMember(ctx, OnlineUsersKey(), userID).Result()
}
