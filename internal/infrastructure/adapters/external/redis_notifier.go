package external

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"go-dm/internal/application/ports"
	"go-dm/internal/cache"
)

// RedisNotifier 将通知发布到用户投递通道，由 WS/TCP 网关订阅下发
type RedisNotifier struct {
	client  *redis.Client
	logger  ports.LogService
	timeout time.Duration
}

// NewRedisNotifier 创建通知适配器
func NewRedisNotifier(client *redis.Client, logger ports.LogService) *RedisNotifier {
	return &RedisNotifier{client: client, logger: logger, timeout: 2 * time.Second}
}

// envelope 与网关下行帧一致：{"action":..., "data":...}
type envelope struct {
	Action string                 `json:"action"`
	Data   map[string]interface{} `json:"data,omitempty"`
	Title  string                 `json:"title,omitempty"`
	Body   string                 `json:"content,omitempty"`
}

// Notify 异步发布，不阻塞调用方，失败只记录
func (n *RedisNotifier) Notify(ctx context.Context, userID string, notification *ports.Notification) {
	if n == nil || n.client == nil || notification == nil {
		return
	}
	payload, err := json.Marshal(&envelope{
		Action: notification.Type,
		Data:   notification.Data,
		Title:  notification.Title,
		Body:   notification.Content,
	})
	if err != nil {
		n.logger.Error(ctx, "通知序列化失败", err, map[string]interface{}{"userId": userID, "type": notification.Type})
		return
	}

	detached := context.WithoutCancel(ctx)
	go func() {
		pctx, cancel := context.WithTimeout(detached, n.timeout)
		defer cancel()
		if err := n.client.Publish(pctx, cache.DeliverChannel(userID), payload).Err(); err != nil {
			n.logger.Warn(pctx, "通知发布失败", map[string]interface{}{"userId": userID, "type": notification.Type, "error": err.Error()})
		}
	}()
}
