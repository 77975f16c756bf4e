package usecases

import (
	"context"
	"time"

	"go-dm/internal/application/ports"
	"go-dm/internal/domain/entities"
	appErrors "go-dm/pkg/errors"
)

// PreferenceUseCase 私信偏好用例（MessagePreferenceStore）
// 行不存在时按默认值返回，首次修改时落库
type PreferenceUseCase struct {
	repo                 ports.PreferenceRepository
	defaultAllowStranger bool
	logger               ports.LogService
	now                  func() time.Time
}

// NewPreferenceUseCase 创建偏好用例
func NewPreferenceUseCase(repo ports.PreferenceRepository, defaultAllowStranger bool, logger ports.LogService) *PreferenceUseCase {
	return &PreferenceUseCase{
		repo:                 repo,
		defaultAllowStranger: defaultAllowStranger,
		logger:               logger,
		now:                  time.Now,
	}
}

// PreferencePatch 部分更新，nil 字段保持不变
type PreferencePatch struct {
	AllowStrangerMessage        *bool `json:"allowStrangerMessage"`
	AllowNonMutualFollowMessage *bool `json:"allowNonMutualFollowMessage"`
	NotificationEnabled         *bool `json:"notificationEnabled"`
}

// Get 获取用户偏好，缺失时返回默认值，不会因缺失而失败
func (uc *PreferenceUseCase) Get(ctx context.Context, userID string) (*entities.MessagePreference, error) {
	pref, err := uc.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pref == nil {
		return entities.DefaultMessagePreference(userID, uc.defaultAllowStranger), nil
	}
	return pref, nil
}

// GetSettings 对外查询
func (uc *PreferenceUseCase) GetSettings(ctx context.Context, userID string) (*entities.MessagePreference, error) {
	if !validUserID(userID) {
		return nil, appErrors.ErrInvalidUserID
	}
	pref, err := uc.Get(ctx, userID)
	if err != nil {
		uc.logger.Error(ctx, "获取私信设置失败", err, map[string]interface{}{"userId": userID})
		return nil, appErrors.ErrStoreUnavailable(err)
	}
	return pref, nil
}

// Update 只允许本人修改自己的偏好
func (uc *PreferenceUseCase) Update(ctx context.Context, userID string, patch *PreferencePatch) (*entities.MessagePreference, error) {
	if !validUserID(userID) {
		return nil, appErrors.ErrInvalidUserID
	}
	pref, err := uc.Get(ctx, userID)
	if err != nil {
		uc.logger.Error(ctx, "获取私信设置失败", err, map[string]interface{}{"userId": userID})
		return nil, appErrors.ErrStoreUnavailable(err)
	}
	if patch != nil {
		if patch.AllowStrangerMessage != nil {
			pref.AllowStrangerMessage = *patch.AllowStrangerMessage
		}
		if patch.AllowNonMutualFollowMessage != nil {
			pref.AllowNonMutualFollowMessage = *patch.AllowNonMutualFollowMessage
		}
		if patch.NotificationEnabled != nil {
			pref.NotificationEnabled = *patch.NotificationEnabled
		}
	}
	pref.UpdatedAt = uc.now().UTC()
	if err := uc.repo.Save(ctx, pref); err != nil {
		uc.logger.Error(ctx, "保存私信设置失败", err, map[string]interface{}{"userId": userID})
		return nil, appErrors.ErrStoreUnavailable(err)
	}
	uc.logger.Info(ctx, "私信设置已更新", map[string]interface{}{
		"userId":         userID,
		"allowStranger":  pref.AllowStrangerMessage,
		"allowNonMutual": pref.AllowNonMutualFollowMessage,
		"notification":   pref.NotificationEnabled,
	})
	return pref, nil
}

// Reset 恢复为全部开启
func (uc *PreferenceUseCase) Reset(ctx context.Context, userID string) (*entities.MessagePreference, error) {
	on := true
	return uc.Update(ctx, userID, &PreferencePatch{
		AllowStrangerMessage:        &on,
		AllowNonMutualFollowMessage: &on,
		NotificationEnabled:         &on,
	})
}
