package usecases

import (
	"context"

	"go-dm/internal/application/ports"
	"go-dm/internal/domain/entities"
	appErrors "go-dm/pkg/errors"
)

// BlockedUser 拉黑列表项
type BlockedUser struct {
	entities.BlockEdge
	User *ports.Profile `json:"user,omitempty"`
}

// Block 拉黑（幂等），只影响之后的投递判定
func (uc *MessagingUseCase) Block(ctx context.Context, blockerID, targetID string) error {
	if err := validatePair(blockerID, targetID); err != nil {
		return err
	}
	if blockerID == targetID {
		return appErrors.ErrSelfBlock
	}
	if err := uc.ensureUserExists(ctx, targetID); err != nil {
		return err
	}
	inserted, err := uc.blocks.Insert(ctx, &entities.BlockEdge{BlockerID: blockerID, BlockedID: targetID, CreatedAt: uc.now()})
	if err != nil {
		uc.logger.Error(ctx, "拉黑失败", err, map[string]interface{}{"blockerId": blockerID, "targetId": targetID})
		return appErrors.ErrStoreUnavailable(err)
	}
	if inserted {
		uc.logger.Info(ctx, "用户已拉黑", map[string]interface{}{"blockerId": blockerID, "targetId": targetID})
	}
	return nil
}

// Unblock 取消拉黑（幂等）
// 会话尚未建立时清空双方招呼记录，重新开始一轮首次接触
func (uc *MessagingUseCase) Unblock(ctx context.Context, blockerID, targetID string) error {
	if err := validatePair(blockerID, targetID); err != nil {
		return err
	}
	if blockerID == targetID {
		return appErrors.ErrSelfBlock
	}
	deleted, err := uc.blocks.Delete(ctx, blockerID, targetID)
	if err != nil {
		uc.logger.Error(ctx, "取消拉黑失败", err, map[string]interface{}{"blockerId": blockerID, "targetId": targetID})
		return appErrors.ErrStoreUnavailable(err)
	}
	if !deleted {
		return nil
	}
	pair, err := uc.state.Get(ctx, blockerID, targetID)
	if err != nil {
		uc.logger.Warn(ctx, "查询会话对失败，保留招呼记录", map[string]interface{}{"blockerId": blockerID, "targetId": targetID, "error": err.Error()})
		return nil
	}
	if !pair.IsEstablished() {
		if err := uc.greetings.DeletePair(ctx, entities.NewPairKey(blockerID, targetID)); err != nil {
			uc.logger.Warn(ctx, "清理招呼记录失败", map[string]interface{}{"blockerId": blockerID, "targetId": targetID, "error": err.Error()})
		}
	}
	uc.logger.Info(ctx, "用户已取消拉黑", map[string]interface{}{"blockerId": blockerID, "targetId": targetID})
	return nil
}

// BlockStatus viewer 与 other 之间的双向拉黑状态
func (uc *MessagingUseCase) BlockStatus(ctx context.Context, viewerID, otherUserID string) (*entities.BlockStatus, error) {
	if err := validatePair(viewerID, otherUserID); err != nil {
		return nil, err
	}
	byMe, err := uc.blocks.Exists(ctx, viewerID, otherUserID)
	if err != nil {
		return nil, appErrors.ErrStoreUnavailable(err)
	}
	byOther, err := uc.blocks.Exists(ctx, otherUserID, viewerID)
	if err != nil {
		return nil, appErrors.ErrStoreUnavailable(err)
	}
	return &entities.BlockStatus{BlockedByMe: byMe, BlockingMe: byOther}, nil
}

// ListBlocked 拉黑列表（按拉黑时间倒序）
func (uc *MessagingUseCase) ListBlocked(ctx context.Context, blockerID string, page, size int) ([]BlockedUser, error) {
	if !validUserID(blockerID) {
		return nil, appErrors.ErrInvalidUserID
	}
	offset, limit := normalizePage(page, size)
	edges, err := uc.blocks.ListByBlocker(ctx, blockerID, offset, limit)
	if err != nil {
		uc.logger.Error(ctx, "拉取拉黑列表失败", err, map[string]interface{}{"blockerId": blockerID})
		return nil, appErrors.ErrStoreUnavailable(err)
	}
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.BlockedID)
	}
	profiles := uc.lookupProfiles(ctx, ids)
	out := make([]BlockedUser, 0, len(edges))
	for _, e := range edges {
		item := BlockedUser{BlockEdge: *e}
		if p, ok := profiles[e.BlockedID]; ok {
			p := p
			item.User = &p
		}
		out = append(out, item)
	}
	return out, nil
}

// CountBlocked 拉黑数量
func (uc *MessagingUseCase) CountBlocked(ctx context.Context, blockerID string) (int64, error) {
	if !validUserID(blockerID) {
		return 0, appErrors.ErrInvalidUserID
	}
	n, err := uc.blocks.CountByBlocker(ctx, blockerID)
	if err != nil {
		return 0, appErrors.ErrStoreUnavailable(err)
	}
	return n, nil
}
