package ports

import (
	"context"
	"time"

	"go-dm/internal/domain/entities"
	"go-dm/internal/domain/valueobjects"
)

// MessageRepository 消息仓储端口（消息日志，系统唯一事实来源）
type MessageRepository interface {
	// Append 写入消息，写入成功即为发送的提交点
	Append(ctx context.Context, message *entities.Message) error
	// GetByID 根据ID获取消息，不存在时返回 nil, nil
	GetByID(ctx context.Context, id string) (*entities.Message, error)
	// ListVisible 分页拉取 owner 与 other 之间 owner 可见的消息，按时间倒序
	ListVisible(ctx context.Context, ownerID, otherID string, offset, limit int) ([]*entities.Message, error)
	// LastVisible 获取 owner 会话行应展示的最后一条消息，用于重建会话行
	// 被接收方拉黑时 owner 发出的消息不计入
	LastVisible(ctx context.Context, ownerID, otherID string) (*entities.Message, error)
	// CountUnread 统计 other 发给 reader 且 reader 可见的未读消息数
	CountUnread(ctx context.Context, readerID, otherID string) (int64, error)
	// MarkRead 将 other 发给 reader 的未读消息标记为已读，返回影响行数
	MarkRead(ctx context.Context, readerID, otherID string, at time.Time) (int64, error)
	// Withdraw 撤回消息；已撤回时返回 false
	Withdraw(ctx context.Context, id string, content string) (bool, error)
	// SoftDelete 单侧软删除
	SoftDelete(ctx context.Context, id string, bySender bool) error
}

// PairRepository 会话对仓储端口
type PairRepository interface {
	// Get 获取会话对，不存在时返回 nil, nil
	Get(ctx context.Context, key entities.PairKey) (*entities.ConversationPair, error)
	// CreateIfAbsent 仅当不存在时插入，返回是否由本次创建
	CreateIfAbsent(ctx context.Context, pair *entities.ConversationPair) (bool, error)
	// TouchLastMessage 单调推进最后消息时间
	TouchLastMessage(ctx context.Context, key entities.PairKey, at time.Time) error
	// CompareAndSetStatus 原子比较并设置状态，返回是否由本次完成转换
	CompareAndSetStatus(ctx context.Context, key entities.PairKey, from, to valueobjects.PairStatus) (bool, error)
	// ListActiveSince 列出最后消息时间不早于 since 的会话对（对账用）
	ListActiveSince(ctx context.Context, since time.Time, limit int) ([]*entities.ConversationPair, error)
}

// ViewUpsert 会话行的增量更新
type ViewUpsert struct {
	OwnerID      string
	OtherUserID  string
	RelationType valueobjects.RelationType
	MessageID    string
	Preview      string
	MessageAt    time.Time
	IsMine       bool
	IncrUnread   bool
	// IsInitiator 为 nil 时不修改已有行的发起方标记
	IsInitiator *bool
}

// ViewRepository 会话视图仓储端口
type ViewRepository interface {
	// Upsert 按 (owner, other) 唯一键插入或更新，未读数原子自增，新消息会取消隐藏
	Upsert(ctx context.Context, u *ViewUpsert) error
	// Replace 用由消息日志推导出的结果覆盖派生字段（置顶/免打扰保留）
	Replace(ctx context.Context, v *entities.ConversationView) error
	// EnsureExists 仅当不存在时插入空会话行
	EnsureExists(ctx context.Context, v *entities.ConversationView) error
	// Get 获取会话行，不存在时返回 nil, nil
	Get(ctx context.Context, ownerID, otherID string) (*entities.ConversationView, error)
	// List 列出未隐藏的会话行：置顶优先，再按最后消息时间倒序
	List(ctx context.Context, ownerID string, offset, limit int) ([]*entities.ConversationView, error)
	// ClearUnread 清空未读数
	ClearUnread(ctx context.Context, ownerID, otherID string) error
	// SetHidden 设置隐藏标记，返回行是否存在
	SetHidden(ctx context.Context, ownerID, otherID string, hidden bool) (bool, error)
	// SetPinned 设置置顶，返回行是否存在
	SetPinned(ctx context.Context, ownerID, otherID string, pinned bool) (bool, error)
	// SetMuted 设置免打扰，返回行是否存在
	SetMuted(ctx context.Context, ownerID, otherID string, muted bool) (bool, error)
	// TotalUnread 未隐藏会话的未读总数
	TotalUnread(ctx context.Context, ownerID string) (int64, error)
}

// BlockRepository 拉黑仓储端口，写入幂等
type BlockRepository interface {
	// Insert 不存在时插入，返回是否新插入
	Insert(ctx context.Context, edge *entities.BlockEdge) (bool, error)
	// Delete 存在时删除，返回是否删除
	Delete(ctx context.Context, blockerID, blockedID string) (bool, error)
	// Exists 是否存在 blocker→blocked 的拉黑边
	Exists(ctx context.Context, blockerID, blockedID string) (bool, error)
	// ListByBlocker 分页获取拉黑列表
	ListByBlocker(ctx context.Context, blockerID string, offset, limit int) ([]*entities.BlockEdge, error)
	// CountByBlocker 拉黑数量
	CountByBlocker(ctx context.Context, blockerID string) (int64, error)
}

// GreetingRepository 打招呼额度账本，必须支持 insert-if-absent
type GreetingRepository interface {
	// InsertIfAbsent 不存在时插入，返回是否由本次插入
	InsertIfAbsent(ctx context.Context, record *entities.GreetingRecord) (bool, error)
	// Exists 是否已用掉额度
	Exists(ctx context.Context, senderID, targetID string) (bool, error)
	// Delete 删除单向记录
	Delete(ctx context.Context, senderID, targetID string) error
	// DeletePair 删除双向记录
	DeletePair(ctx context.Context, key entities.PairKey) error
}

// PreferenceRepository 私信偏好仓储端口
type PreferenceRepository interface {
	// Get 获取偏好，不存在时返回 nil, nil
	Get(ctx context.Context, userID string) (*entities.MessagePreference, error)
	// Save 插入或更新
	Save(ctx context.Context, pref *entities.MessagePreference) error
}
