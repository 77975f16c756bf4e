package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"go-dm/internal/application/ports"
	"go-dm/internal/domain/entities"
	"go-dm/internal/domain/valueobjects"
)

const pairColumns = `user_low, user_high, initiator_id, status, created_at, last_message_at`

// PairRepositoryAdapter 会话对仓储适配器
type PairRepositoryAdapter struct {
	db      *sql.DB
	dialect Dialect
}

// NewPairRepositoryAdapter 创建会话对仓储适配器
func NewPairRepositoryAdapter(db *sql.DB, dialect Dialect) ports.PairRepository {
	return &PairRepositoryAdapter{db: db, dialect: dialect}
}

// Get 获取会话对
func (r *PairRepositoryAdapter) Get(ctx context.Context, key entities.PairKey) (*entities.ConversationPair, error) {
	query := `SELECT ` + pairColumns + ` FROM dm_conversation_pairs WHERE user_low = ? AND user_high = ?`
	p, err := scanPair(r.db.QueryRowContext(ctx, query, key.Low, key.High))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "pairRepo.Get.Scan")
	}
	return p, nil
}

// CreateIfAbsent 唯一键保证并发首条消息只创建一次
func (r *PairRepositoryAdapter) CreateIfAbsent(ctx context.Context, p *entities.ConversationPair) (bool, error) {
	query := r.dialect.insertIgnore() + ` INTO dm_conversation_pairs(` + pairColumns + `) VALUES(?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		p.Key.Low, p.Key.High, p.InitiatorID, string(p.Status), p.CreatedAt.UTC(), p.LastMessageAt.UTC())
	if err != nil {
		return false, errors.Wrap(err, "pairRepo.CreateIfAbsent.Exec")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "pairRepo.CreateIfAbsent.RowsAffected")
	}
	return n == 1, nil
}

// TouchLastMessage 只会向后推进
func (r *PairRepositoryAdapter) TouchLastMessage(ctx context.Context, key entities.PairKey, at time.Time) error {
	query := `UPDATE dm_conversation_pairs SET last_message_at = ?
			  WHERE user_low = ? AND user_high = ? AND last_message_at < ?`
	_, err := r.db.ExecContext(ctx, query, at.UTC(), key.Low, key.High, at.UTC())
	return errors.Wrap(err, "pairRepo.TouchLastMessage.Exec")
}

// CompareAndSetStatus 条件更新，影响行数为 1 表示本次完成转换
func (r *PairRepositoryAdapter) CompareAndSetStatus(ctx context.Context, key entities.PairKey, from, to valueobjects.PairStatus) (bool, error) {
	query := `UPDATE dm_conversation_pairs SET status = ? WHERE user_low = ? AND user_high = ? AND status = ?`
	result, err := r.db.ExecContext(ctx, query, string(to), key.Low, key.High, string(from))
	if err != nil {
		return false, errors.Wrap(err, "pairRepo.CompareAndSetStatus.Exec")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "pairRepo.CompareAndSetStatus.RowsAffected")
	}
	return n == 1, nil
}

// ListActiveSince 对账扫描
func (r *PairRepositoryAdapter) ListActiveSince(ctx context.Context, since time.Time, limit int) ([]*entities.ConversationPair, error) {
	query := `SELECT ` + pairColumns + ` FROM dm_conversation_pairs
			  WHERE last_message_at >= ? ORDER BY last_message_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, since.UTC(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "pairRepo.ListActiveSince.Query")
	}
	defer rows.Close()

	var pairs []*entities.ConversationPair
	for rows.Next() {
		p, err := scanPair(rows)
		if err != nil {
			return nil, errors.Wrap(err, "pairRepo.ListActiveSince.Scan")
		}
		pairs = append(pairs, p)
	}
	return pairs, errors.Wrap(rows.Err(), "pairRepo.ListActiveSince.Rows")
}

func scanPair(row rowScanner) (*entities.ConversationPair, error) {
	var (
		p      entities.ConversationPair
		status string
	)
	if err := row.Scan(&p.Key.Low, &p.Key.High, &p.InitiatorID, &status, &p.CreatedAt, &p.LastMessageAt); err != nil {
		return nil, err
	}
	p.Status = valueobjects.PairStatus(status)
	p.CreatedAt = p.CreatedAt.UTC()
	p.LastMessageAt = p.LastMessageAt.UTC()
	return &p, nil
}
