package persistence

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"go-dm/internal/application/ports"
)

// ProfileLookupAdapter 读取用户服务维护的 users 表
type ProfileLookupAdapter struct {
	db *sql.DB
}

// NewProfileLookupAdapter 创建用户资料查询适配器
func NewProfileLookupAdapter(db *sql.DB) ports.ProfileLookup {
	return &ProfileLookupAdapter{db: db}
}

// BatchGet 批量获取用户资料，不存在的ID被忽略
func (r *ProfileLookupAdapter) BatchGet(ctx context.Context, ids []string) (map[string]ports.Profile, error) {
	profiles := make(map[string]ports.Profile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT id, nickname, avatar_url FROM users WHERE id IN (` + placeholders(len(ids)) + `)`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "profileLookup.BatchGet.Query")
	}
	defer rows.Close()

	for rows.Next() {
		var p ports.Profile
		if err := rows.Scan(&p.UserID, &p.DisplayName, &p.AvatarRef); err != nil {
			return nil, errors.Wrap(err, "profileLookup.BatchGet.Scan")
		}
		profiles[p.UserID] = p
	}
	return profiles, errors.Wrap(rows.Err(), "profileLookup.BatchGet.Rows")
}
