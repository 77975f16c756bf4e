package usecases

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"go-dm/internal/application/ports"
	"go-dm/internal/domain/entities"
	"go-dm/internal/domain/valueobjects"
)

// ConversationViewStore 维护每对用户的两行 owner 视角投影
// 投影可由消息日志幂等重建，不是事实来源
type ConversationViewStore struct {
	views      ports.ViewRepository
	messages   ports.MessageRepository
	pairs      ports.PairRepository
	oracle     ports.RelationshipOracle
	previewLen int
	logger     ports.LogService
}

// NewConversationViewStore 创建会话视图存储
func NewConversationViewStore(
	views ports.ViewRepository,
	messages ports.MessageRepository,
	pairs ports.PairRepository,
	oracle ports.RelationshipOracle,
	previewLen int,
	logger ports.LogService,
) *ConversationViewStore {
	if previewLen <= 0 {
		previewLen = 100
	}
	return &ConversationViewStore{
		views:      views,
		messages:   messages,
		pairs:      pairs,
		oracle:     oracle,
		previewLen: previewLen,
		logger:     logger,
	}
}

// Upsert 将一条消息投影到 owner 的会话行
// 接收方对其不可见的消息不会触碰接收方的行；被接收方拉黑时发出的消息不触碰任何一行
func (s *ConversationViewStore) Upsert(
	ctx context.Context,
	ownerID, otherUserID string,
	msg *entities.Message,
	isRecipient bool,
	relation valueobjects.RelationType,
	pair *entities.ConversationPair,
) error {
	if !msg.ProjectsToViews() || (isRecipient && !msg.ReceiverVisible()) {
		return nil
	}
	if relation == "" {
		relation = s.relation(ctx, ownerID, otherUserID)
	}
	u := &ports.ViewUpsert{
		OwnerID:      ownerID,
		OtherUserID:  otherUserID,
		RelationType: relation,
		MessageID:    msg.ID(),
		Preview:      msg.Preview(s.previewLen),
		MessageAt:    msg.CreatedAt(),
		IsMine:       !isRecipient,
		IncrUnread:   isRecipient,
	}
	if pair != nil {
		initiator := pair.InitiatorID == ownerID
		u.IsInitiator = &initiator
	}
	if err := s.views.Upsert(ctx, u); err != nil {
		return errors.Wrap(err, "viewStore.Upsert")
	}
	return nil
}

// Derive 由消息日志推导 owner 行的期望状态；无任何可见消息时返回 nil
func (s *ConversationViewStore) Derive(ctx context.Context, ownerID, otherUserID string) (*entities.ConversationView, error) {
	last, err := s.messages.LastVisible(ctx, ownerID, otherUserID)
	if err != nil {
		return nil, errors.Wrap(err, "viewStore.Derive.LastVisible")
	}
	if last == nil {
		return nil, nil
	}
	unread, err := s.messages.CountUnread(ctx, ownerID, otherUserID)
	if err != nil {
		return nil, errors.Wrap(err, "viewStore.Derive.CountUnread")
	}
	at := last.CreatedAt()
	return &entities.ConversationView{
		OwnerID:            ownerID,
		OtherUserID:        otherUserID,
		UnreadCount:        unread,
		LastMessageID:      last.ID(),
		LastMessagePreview: last.Preview(s.previewLen),
		LastMessageAt:      &at,
		LastMessageIsMine:  last.SenderID() == ownerID,
	}, nil
}

// Rebuild 幂等重建 owner 行：派生字段以消息日志为准，置顶/免打扰保留
// 比行内记录更新的消息会取消隐藏
func (s *ConversationViewStore) Rebuild(ctx context.Context, ownerID, otherUserID string) error {
	expected, err := s.Derive(ctx, ownerID, otherUserID)
	if err != nil {
		return err
	}
	existing, err := s.views.Get(ctx, ownerID, otherUserID)
	if err != nil {
		return errors.Wrap(err, "viewStore.Rebuild.Get")
	}
	if expected == nil {
		if existing == nil {
			return nil
		}
		// 全部消息已不可见：保留行，仅清空派生字段
		expected = &entities.ConversationView{OwnerID: ownerID, OtherUserID: otherUserID}
	}

	expected.RelationType = s.relation(ctx, ownerID, otherUserID)
	pair, err := s.pairs.Get(ctx, entities.NewPairKey(ownerID, otherUserID))
	if err != nil {
		return errors.Wrap(err, "viewStore.Rebuild.Pair")
	}
	if pair != nil {
		expected.IsInitiator = pair.InitiatorID == ownerID
	}
	if existing != nil {
		expected.Hidden = existing.Hidden && !newerThan(expected.LastMessageAt, existing.LastMessageAt)
		if pair == nil {
			expected.IsInitiator = existing.IsInitiator
		}
	}
	if err := s.views.Replace(ctx, expected); err != nil {
		return errors.Wrap(err, "viewStore.Rebuild.Replace")
	}
	return nil
}

// List 列出未隐藏的会话：置顶优先，再按最后消息时间倒序
func (s *ConversationViewStore) List(ctx context.Context, ownerID string, offset, limit int) ([]*entities.ConversationView, error) {
	return s.views.List(ctx, ownerID, offset, limit)
}

// Get 获取 owner 的会话行
func (s *ConversationViewStore) Get(ctx context.Context, ownerID, otherUserID string) (*entities.ConversationView, error) {
	return s.views.Get(ctx, ownerID, otherUserID)
}

// GetUnreadCount 只读 owner 自己的行
func (s *ConversationViewStore) GetUnreadCount(ctx context.Context, ownerID, otherUserID string) (int64, error) {
	v, err := s.views.Get(ctx, ownerID, otherUserID)
	if err != nil || v == nil {
		return 0, err
	}
	return v.UnreadCount, nil
}

// Ensure 确保 owner 行存在（发起会话入口），不会改动已有行
func (s *ConversationViewStore) Ensure(ctx context.Context, ownerID, otherUserID string) (*entities.ConversationView, error) {
	v, err := s.views.Get(ctx, ownerID, otherUserID)
	if err != nil {
		return nil, err
	}
	if v != nil {
		if v.Hidden {
			if _, err := s.views.SetHidden(ctx, ownerID, otherUserID, false); err != nil {
				return nil, err
			}
			v.Hidden = false
		}
		return v, nil
	}
	v = &entities.ConversationView{
		OwnerID:      ownerID,
		OtherUserID:  otherUserID,
		RelationType: s.relation(ctx, ownerID, otherUserID),
	}
	if err := s.views.EnsureExists(ctx, v); err != nil {
		return nil, err
	}
	return s.views.Get(ctx, ownerID, otherUserID)
}

// ClearUnread 清空 owner 行的未读数
func (s *ConversationViewStore) ClearUnread(ctx context.Context, ownerID, otherUserID string) error {
	return s.views.ClearUnread(ctx, ownerID, otherUserID)
}

// Hide 仅隐藏 owner 自己的行，返回行是否存在
func (s *ConversationViewStore) Hide(ctx context.Context, ownerID, otherUserID string) (bool, error) {
	return s.views.SetHidden(ctx, ownerID, otherUserID, true)
}

// SetPinned 置顶/取消置顶
func (s *ConversationViewStore) SetPinned(ctx context.Context, ownerID, otherUserID string, pinned bool) (bool, error) {
	return s.views.SetPinned(ctx, ownerID, otherUserID, pinned)
}

// SetMuted 免打扰开关
func (s *ConversationViewStore) SetMuted(ctx context.Context, ownerID, otherUserID string, muted bool) (bool, error) {
	return s.views.SetMuted(ctx, ownerID, otherUserID, muted)
}

// TotalUnread 未读总数
func (s *ConversationViewStore) TotalUnread(ctx context.Context, ownerID string) (int64, error) {
	return s.views.TotalUnread(ctx, ownerID)
}

func (s *ConversationViewStore) relation(ctx context.Context, ownerID, otherUserID string) valueobjects.RelationType {
	rel, err := s.oracle.GetRelation(ctx, ownerID, otherUserID)
	if err != nil {
		s.logger.Warn(ctx, "查询关注关系失败，按陌生人处理", map[string]interface{}{
			"ownerId": ownerID,
			"otherId": otherUserID,
			"error":   err.Error(),
		})
		return valueobjects.RelationStranger
	}
	return rel
}

func newerThan(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.After(*b)
}
