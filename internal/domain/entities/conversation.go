package entities

import (
	"time"

	"go-dm/internal/domain/valueobjects"
)

// PairKey 无序用户对的规范化键：Low < High
type PairKey struct {
	Low  string
	High string
}

// NewPairKey 规范化 (a, b)
func NewPairKey(a, b string) PairKey {
	if a < b {
		return PairKey{Low: a, High: b}
	}
	return PairKey{Low: b, High: a}
}

// Contains 是否包含该用户
func (k PairKey) Contains(userID string) bool {
	return userID == k.Low || userID == k.High
}

// Other 返回另一方
func (k PairKey) Other(userID string) string {
	if userID == k.Low {
		return k.High
	}
	return k.Low
}

// ConversationPair 会话对的权威状态（每对用户唯一一条）
type ConversationPair struct {
	Key           PairKey
	InitiatorID   string
	Status        valueobjects.PairStatus
	CreatedAt     time.Time
	LastMessageAt time.Time
}

// NewConversationPair 首条消息时创建；首次接触即互关则直接 Established
func NewConversationPair(initiatorID, otherID string, relation valueobjects.RelationType, at time.Time) *ConversationPair {
	status := valueobjects.PairStatusPending
	if relation == valueobjects.RelationMutual {
		status = valueobjects.PairStatusEstablished
	}
	return &ConversationPair{
		Key:           NewPairKey(initiatorID, otherID),
		InitiatorID:   initiatorID,
		Status:        status,
		CreatedAt:     at,
		LastMessageAt: at,
	}
}

// IsEstablished 是否已建立
func (p *ConversationPair) IsEstablished() bool {
	return p != nil && p.Status.IsEstablished()
}

// CanBeEstablishedBy 非发起方在 Pending 状态下的回复会建立会话
func (p *ConversationPair) CanBeEstablishedBy(senderID string) bool {
	return p != nil && p.Status == valueobjects.PairStatusPending && senderID != p.InitiatorID && p.Key.Contains(senderID)
}

// ConversationView 以 owner 视角的会话投影（每对用户两行）
type ConversationView struct {
	OwnerID            string                    `json:"ownerId"`
	OtherUserID        string                    `json:"otherUserId"`
	RelationType       valueobjects.RelationType `json:"relationType"`
	UnreadCount        int64                     `json:"unreadCount"`
	LastMessageID      string                    `json:"lastMessageId,omitempty"`
	LastMessagePreview string                    `json:"preview"`
	LastMessageAt      *time.Time                `json:"lastMessageAt,omitempty"`
	LastMessageIsMine  bool                      `json:"lastMessageIsMine"`
	IsInitiator        bool                      `json:"isInitiator"`
	// IsBlockedByOther 读取时由拉黑表填充，不落库
	IsBlockedByOther   bool                      `json:"isBlockedByOther"`
	Pinned             bool                      `json:"pinned"`
	Muted              bool                      `json:"muted"`
	Hidden             bool                      `json:"-"`
	UpdatedAt          time.Time                 `json:"updatedAt"`
}

// DriftsFrom 与由消息日志推导出的期望行比较，判断是否需要修复
func (v *ConversationView) DriftsFrom(expected *ConversationView) bool {
	if v == nil || expected == nil {
		return v != expected
	}
	return v.LastMessageID != expected.LastMessageID || v.UnreadCount != expected.UnreadCount
}
