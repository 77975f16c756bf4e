package ports

import (
	"context"

	"go-dm/internal/domain/valueobjects"
)

//go:generate mockgen -destination=../usecases/mocks/mock_services.go -package=mocks go-dm/internal/application/ports RelationshipOracle,ProfileLookup,MediaStore,NotificationSink,EventPublisher,RateLimiter

// RelationshipOracle 关注关系查询端口（外部只读，允许最终一致）
type RelationshipOracle interface {
	// GetRelation 返回 a 视角下与 b 的关系
	GetRelation(ctx context.Context, a, b string) (valueobjects.RelationType, error)
}

// Profile 用户展示信息
type Profile struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	AvatarRef   string `json:"avatar"`
}

// ProfileLookup 用户资料查询端口
type ProfileLookup interface {
	// BatchGet 批量获取，不存在的用户不出现在结果中
	BatchGet(ctx context.Context, ids []string) (map[string]Profile, error)
}

// MediaStore 媒体资源解析端口（上传不在本服务内）
type MediaStore interface {
	// Resolve 将媒体引用解析为可访问的 URL
	Resolve(ctx context.Context, mediaRef string) (string, error)
}

// Notification 通知对象
type Notification struct {
	Type    string                 `json:"type"`
	Title   string                 `json:"title,omitempty"`
	Content string                 `json:"content,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// NotificationSink 通知下发端口：尽力而为，不阻塞发送流程，也不返回错误
type NotificationSink interface {
	// Notify 向用户下发事件
	Notify(ctx context.Context, userID string, notification *Notification)
}

// MessageEvent 消息提交事件（供对账、推送等下游消费）
type MessageEvent struct {
	Type       string `json:"type"`
	MessageID  string `json:"messageId"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Status     string `json:"status"`
	TS         int64  `json:"ts"`
}

// EventPublisher 消息事件发布端口
type EventPublisher interface {
	// PublishMessage 异步发布，失败仅记录
	PublishMessage(ctx context.Context, event *MessageEvent)
}

// IDGenerator ID生成器端口
type IDGenerator interface {
	// GenerateMessageID 生成消息ID
	GenerateMessageID() string
}

// RateLimiter 限流器端口
type RateLimiter interface {
	// Allow 检查是否允许请求
	Allow(ctx context.Context, key string, ratePerSec, burst int) (bool, error)
}

// MetricsService 指标服务端口
type MetricsService interface {
	// SendOutcome 记录一次发送的判定结果与耗时
	SendOutcome(outcome, reason string, latencyMS float64)
	// PairEstablished 会话对建立
	PairEstablished()
	// ViewRepair 会话行修复结果
	ViewRepair(result string)
}

// LogService 日志服务端口
type LogService interface {
	// Info 记录信息日志
	Info(ctx context.Context, message string, fields map[string]interface{})
	// Error 记录错误日志
	Error(ctx context.Context, message string, err error, fields map[string]interface{})
	// Warn 记录警告日志
	Warn(ctx context.Context, message string, fields map[string]interface{})
	// Debug 记录调试日志
	Debug(ctx context.Context, message string, fields map[string]interface{})
}
