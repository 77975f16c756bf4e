package entities

import "time"

// BlockEdge 有向拉黑关系：BlockerID 拉黑了 BlockedID，仅阻断 Blocked→Blocker 方向的消息
type BlockEdge struct {
	BlockerID string    `json:"blockerId"`
	BlockedID string    `json:"blockedId"`
	CreatedAt time.Time `json:"createdAt"`
}

// BlockStatus 两个用户之间的双向拉黑状态（viewer 视角）
type BlockStatus struct {
	BlockedByMe bool `json:"blockedByMe"`
	BlockingMe  bool `json:"blockingMe"`
}

// GreetingRecord 发送方已对目标用掉的唯一一次"打招呼"额度
type GreetingRecord struct {
	SenderID  string
	TargetID  string
	CreatedAt time.Time
}
