package persistence

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"go-dm/internal/application/ports"
	"go-dm/internal/domain/entities"
)

// GreetingRepositoryAdapter 打招呼额度账本
// (sender_id, target_id) 主键是并发首条消息只放行一条的依据
type GreetingRepositoryAdapter struct {
	db      *sql.DB
	dialect Dialect
}

// NewGreetingRepositoryAdapter 创建打招呼账本适配器
func NewGreetingRepositoryAdapter(db *sql.DB, dialect Dialect) ports.GreetingRepository {
	return &GreetingRepositoryAdapter{db: db, dialect: dialect}
}

// InsertIfAbsent 返回 true 表示本次拿到了额度
func (r *GreetingRepositoryAdapter) InsertIfAbsent(ctx context.Context, g *entities.GreetingRecord) (bool, error) {
	query := r.dialect.insertIgnore() + ` INTO dm_greetings(sender_id, target_id, created_at) VALUES(?, ?, ?)`
	result, err := r.db.ExecContext(ctx, query, g.SenderID, g.TargetID, g.CreatedAt.UTC())
	if err != nil {
		return false, errors.Wrap(err, "greetingRepo.InsertIfAbsent.Exec")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "greetingRepo.InsertIfAbsent.RowsAffected")
	}
	return n == 1, nil
}

// Exists 是否已用掉额度
func (r *GreetingRepositoryAdapter) Exists(ctx context.Context, senderID, targetID string) (bool, error) {
	ok, err := rowExists(ctx, r.db,
		`SELECT 1 FROM dm_greetings WHERE sender_id = ? AND target_id = ? LIMIT 1`, senderID, targetID)
	return ok, errors.Wrap(err, "greetingRepo.Exists")
}

// Delete 删除单向记录
func (r *GreetingRepositoryAdapter) Delete(ctx context.Context, senderID, targetID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM dm_greetings WHERE sender_id = ? AND target_id = ?`, senderID, targetID)
	return errors.Wrap(err, "greetingRepo.Delete.Exec")
}

// DeletePair 删除双向记录
func (r *GreetingRepositoryAdapter) DeletePair(ctx context.Context, key entities.PairKey) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM dm_greetings WHERE (sender_id = ? AND target_id = ?) OR (sender_id = ? AND target_id = ?)`,
		key.Low, key.High, key.High, key.Low)
	return errors.Wrap(err, "greetingRepo.DeletePair.Exec")
}
