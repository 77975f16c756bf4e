package usecases

import (
	"context"

	"go-dm/internal/application/ports"
	"go-dm/internal/domain/entities"
	appErrors "go-dm/pkg/errors"
)

// ConversationItem 会话列表项：owner 行 + 对方展示信息
type ConversationItem struct {
	*entities.ConversationView
	OtherUser *ports.Profile `json:"otherUser,omitempty"`
}

// ListConversations 会话列表，批量补全对方资料；资料服务失败时降级为不带资料
func (uc *MessagingUseCase) ListConversations(ctx context.Context, ownerID string, page, size int) ([]ConversationItem, error) {
	if !validUserID(ownerID) {
		return nil, appErrors.ErrInvalidUserID
	}
	offset, limit := normalizePage(page, size)
	views, err := uc.views.List(ctx, ownerID, offset, limit)
	if err != nil {
		uc.logger.Error(ctx, "拉取会话列表失败", err, map[string]interface{}{"ownerId": ownerID})
		return nil, appErrors.ErrStoreUnavailable(err)
	}
	ids := make([]string, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.OtherUserID)
	}
	profiles := uc.lookupProfiles(ctx, ids)
	items := make([]ConversationItem, 0, len(views))
	for _, v := range views {
		uc.fillBlockedByOther(ctx, v)
		item := ConversationItem{ConversationView: v}
		if p, ok := profiles[v.OtherUserID]; ok {
			p := p
			item.OtherUser = &p
		}
		items = append(items, item)
	}
	return items, nil
}

// fillBlockedByOther 查询对方是否拉黑了 owner；查询失败时按未拉黑展示
func (uc *MessagingUseCase) fillBlockedByOther(ctx context.Context, v *entities.ConversationView) {
	blocked, err := uc.blocks.Exists(ctx, v.OtherUserID, v.OwnerID)
	if err != nil {
		uc.logger.Warn(ctx, "查询拉黑状态失败", map[string]interface{}{"ownerId": v.OwnerID, "otherId": v.OtherUserID, "error": err.Error()})
		return
	}
	v.IsBlockedByOther = blocked
}

func (uc *MessagingUseCase) lookupProfiles(ctx context.Context, ids []string) map[string]ports.Profile {
	if uc.profiles == nil || len(ids) == 0 {
		return nil
	}
	profiles, err := uc.profiles.BatchGet(ctx, ids)
	if err != nil {
		uc.logger.Warn(ctx, "批量查询用户资料失败", map[string]interface{}{"count": len(ids), "error": err.Error()})
		return nil
	}
	return profiles
}

// GetOrCreateConversation 从资料页发起会话：确保 owner 行存在并可见
func (uc *MessagingUseCase) GetOrCreateConversation(ctx context.Context, ownerID, otherUserID string) (*ConversationItem, error) {
	if err := validatePair(ownerID, otherUserID); err != nil {
		return nil, err
	}
	if ownerID == otherUserID {
		return nil, appErrors.ErrSelfMessage
	}
	if err := uc.ensureUserExists(ctx, otherUserID); err != nil {
		return nil, err
	}
	v, err := uc.views.Ensure(ctx, ownerID, otherUserID)
	if err != nil {
		uc.logger.Error(ctx, "创建会话失败", err, map[string]interface{}{"ownerId": ownerID, "otherId": otherUserID})
		return nil, appErrors.ErrStoreUnavailable(err)
	}
	uc.fillBlockedByOther(ctx, v)
	item := &ConversationItem{ConversationView: v}
	if p, ok := uc.lookupProfiles(ctx, []string{otherUserID})[otherUserID]; ok {
		item.OtherUser = &p
	}
	return item, nil
}

// DeleteConversation 仅隐藏 owner 自己的会话行，不影响对方与消息
func (uc *MessagingUseCase) DeleteConversation(ctx context.Context, ownerID, otherUserID string) error {
	if err := validatePair(ownerID, otherUserID); err != nil {
		return err
	}
	ok, err := uc.views.Hide(ctx, ownerID, otherUserID)
	if err != nil {
		uc.logger.Error(ctx, "删除会话失败", err, map[string]interface{}{"ownerId": ownerID, "otherId": otherUserID})
		return appErrors.ErrStoreUnavailable(err)
	}
	if !ok {
		return appErrors.ErrConversationAbsent
	}
	return nil
}

// GetUnreadCount 单个会话未读数
func (uc *MessagingUseCase) GetUnreadCount(ctx context.Context, ownerID, otherUserID string) (int64, error) {
	if err := validatePair(ownerID, otherUserID); err != nil {
		return 0, err
	}
	n, err := uc.views.GetUnreadCount(ctx, ownerID, otherUserID)
	if err != nil {
		return 0, appErrors.ErrStoreUnavailable(err)
	}
	return n, nil
}

// TotalUnread 未读总数（隐藏的会话不计）
func (uc *MessagingUseCase) TotalUnread(ctx context.Context, ownerID string) (int64, error) {
	if !validUserID(ownerID) {
		return 0, appErrors.ErrInvalidUserID
	}
	n, err := uc.views.TotalUnread(ctx, ownerID)
	if err != nil {
		return 0, appErrors.ErrStoreUnavailable(err)
	}
	return n, nil
}

// SetPinned 置顶会话
func (uc *MessagingUseCase) SetPinned(ctx context.Context, ownerID, otherUserID string, pinned bool) error {
	if err := validatePair(ownerID, otherUserID); err != nil {
		return err
	}
	ok, err := uc.views.SetPinned(ctx, ownerID, otherUserID, pinned)
	if err != nil {
		return appErrors.ErrStoreUnavailable(err)
	}
	if !ok {
		return appErrors.ErrConversationAbsent
	}
	return nil
}

// SetMuted 会话免打扰
func (uc *MessagingUseCase) SetMuted(ctx context.Context, ownerID, otherUserID string, muted bool) error {
	if err := validatePair(ownerID, otherUserID); err != nil {
		return err
	}
	ok, err := uc.views.SetMuted(ctx, ownerID, otherUserID, muted)
	if err != nil {
		return appErrors.ErrStoreUnavailable(err)
	}
	if !ok {
		return appErrors.ErrConversationAbsent
	}
	return nil
}
