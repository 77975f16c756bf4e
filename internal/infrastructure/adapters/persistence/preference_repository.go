package persistence

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"go-dm/internal/application/ports"
	"go-dm/internal/domain/entities"
)

// PreferenceRepositoryAdapter 私信偏好仓储适配器
type PreferenceRepositoryAdapter struct {
	db      *sql.DB
	dialect Dialect
}

// NewPreferenceRepositoryAdapter 创建偏好仓储适配器
func NewPreferenceRepositoryAdapter(db *sql.DB, dialect Dialect) ports.PreferenceRepository {
	return &PreferenceRepositoryAdapter{db: db, dialect: dialect}
}

// Get 获取偏好
func (r *PreferenceRepositoryAdapter) Get(ctx context.Context, userID string) (*entities.MessagePreference, error) {
	query := `SELECT user_id, allow_stranger, allow_non_mutual, notification_enabled, updated_at
			  FROM dm_message_preferences WHERE user_id = ?`

	var p entities.MessagePreference
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID,
		&p.AllowStrangerMessage,
		&p.AllowNonMutualFollowMessage,
		&p.NotificationEnabled,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "preferenceRepo.Get.Scan")
	}
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// Save 插入或更新
func (r *PreferenceRepositoryAdapter) Save(ctx context.Context, p *entities.MessagePreference) error {
	d := r.dialect
	query := `INSERT INTO dm_message_preferences(user_id, allow_stranger, allow_non_mutual, notification_enabled, updated_at)
			  VALUES(?, ?, ?, ?, ?) ` + d.onConflict("user_id") + `
			  allow_stranger = ` + d.inserted("allow_stranger") + `,
			  allow_non_mutual = ` + d.inserted("allow_non_mutual") + `,
			  notification_enabled = ` + d.inserted("notification_enabled") + `,
			  updated_at = ` + d.inserted("updated_at")

	_, err := r.db.ExecContext(ctx, query,
		p.UserID, p.AllowStrangerMessage, p.AllowNonMutualFollowMessage, p.NotificationEnabled, p.UpdatedAt.UTC())
	return errors.Wrap(err, "preferenceRepo.Save.Exec")
}
