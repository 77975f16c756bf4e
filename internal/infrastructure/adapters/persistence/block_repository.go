package persistence

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"go-dm/internal/application/ports"
	"go-dm/internal/domain/entities"
)

// BlockRepositoryAdapter 拉黑关系仓储适配器
type BlockRepositoryAdapter struct {
	db      *sql.DB
	dialect Dialect
}

// NewBlockRepositoryAdapter 创建拉黑仓储适配器
func NewBlockRepositoryAdapter(db *sql.DB, dialect Dialect) ports.BlockRepository {
	return &BlockRepositoryAdapter{db: db, dialect: dialect}
}

// Insert 重复拉黑不报错
func (r *BlockRepositoryAdapter) Insert(ctx context.Context, edge *entities.BlockEdge) (bool, error) {
	query := r.dialect.insertIgnore() + ` INTO dm_blocks(blocker_id, blocked_id, created_at) VALUES(?, ?, ?)`
	result, err := r.db.ExecContext(ctx, query, edge.BlockerID, edge.BlockedID, edge.CreatedAt.UTC())
	if err != nil {
		return false, errors.Wrap(err, "blockRepo.Insert.Exec")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "blockRepo.Insert.RowsAffected")
	}
	return n == 1, nil
}

// Delete 取消拉黑
func (r *BlockRepositoryAdapter) Delete(ctx context.Context, blockerID, blockedID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM dm_blocks WHERE blocker_id = ? AND blocked_id = ?`, blockerID, blockedID)
	if err != nil {
		return false, errors.Wrap(err, "blockRepo.Delete.Exec")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "blockRepo.Delete.RowsAffected")
	}
	return n > 0, nil
}

// Exists 是否存在拉黑边
func (r *BlockRepositoryAdapter) Exists(ctx context.Context, blockerID, blockedID string) (bool, error) {
	ok, err := rowExists(ctx, r.db,
		`SELECT 1 FROM dm_blocks WHERE blocker_id = ? AND blocked_id = ? LIMIT 1`, blockerID, blockedID)
	return ok, errors.Wrap(err, "blockRepo.Exists")
}

// ListByBlocker 按拉黑时间倒序
func (r *BlockRepositoryAdapter) ListByBlocker(ctx context.Context, blockerID string, offset, limit int) ([]*entities.BlockEdge, error) {
	query := `SELECT blocker_id, blocked_id, created_at FROM dm_blocks
			  WHERE blocker_id = ? ORDER BY created_at DESC, blocked_id ASC LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, blockerID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "blockRepo.ListByBlocker.Query")
	}
	defer rows.Close()

	edges := make([]*entities.BlockEdge, 0, limit)
	for rows.Next() {
		var e entities.BlockEdge
		if err := rows.Scan(&e.BlockerID, &e.BlockedID, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "blockRepo.ListByBlocker.Scan")
		}
		e.CreatedAt = e.CreatedAt.UTC()
		edges = append(edges, &e)
	}
	return edges, errors.Wrap(rows.Err(), "blockRepo.ListByBlocker.Rows")
}

// CountByBlocker 拉黑数量
func (r *BlockRepositoryAdapter) CountByBlocker(ctx context.Context, blockerID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dm_blocks WHERE blocker_id = ?`, blockerID).Scan(&n)
	return n, errors.Wrap(err, "blockRepo.CountByBlocker.Scan")
}
