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

const messageColumns = `id, sender_id, receiver_id, content, media_ref, kind, status, block_reason,
	receiver_visible, is_read, read_at, sender_deleted, receiver_deleted, created_at`

// owner 可见：自己发的未删除，或对方发的且接收方可见、未删除
const visibleToOwner = `((sender_id = ? AND receiver_id = ? AND sender_deleted = 0)
	OR (sender_id = ? AND receiver_id = ? AND receiver_visible = 1 AND receiver_deleted = 0))`

// MessageRepositoryAdapter 消息日志的 SQL 实现
type MessageRepositoryAdapter struct {
	db *sql.DB
}

// NewMessageRepositoryAdapter 创建消息仓储适配器
func NewMessageRepositoryAdapter(db *sql.DB) ports.MessageRepository {
	return &MessageRepositoryAdapter{db: db}
}

// Append 写入消息
func (r *MessageRepositoryAdapter) Append(ctx context.Context, m *entities.Message) error {
	query := `INSERT INTO dm_messages(` + messageColumns + `)
			  VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var readAt interface{}
	if m.ReadAt() != nil {
		readAt = m.ReadAt().UTC()
	}
	_, err := r.db.ExecContext(ctx, query,
		m.ID(),
		m.SenderID(),
		m.ReceiverID(),
		m.Content(),
		m.MediaRef(),
		int(m.Kind()),
		int(m.Status()),
		string(m.BlockReason()),
		m.ReceiverVisible(),
		m.IsRead(),
		readAt,
		m.SenderDeleted(),
		m.ReceiverDeleted(),
		m.CreatedAt().UTC(),
	)
	return errors.Wrap(err, "messageRepo.Append.Exec")
}

// GetByID 根据ID获取消息
func (r *MessageRepositoryAdapter) GetByID(ctx context.Context, id string) (*entities.Message, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM dm_messages WHERE id = ?`, id)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "messageRepo.GetByID.Scan")
	}
	return m, nil
}

// ListVisible 分页拉取 owner 可见的消息，按时间倒序
func (r *MessageRepositoryAdapter) ListVisible(ctx context.Context, ownerID, otherID string, offset, limit int) ([]*entities.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM dm_messages WHERE ` + visibleToOwner + `
			  ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, ownerID, otherID, otherID, ownerID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "messageRepo.ListVisible.Query")
	}
	defer rows.Close()

	messages := make([]*entities.Message, 0, limit)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, errors.Wrap(err, "messageRepo.ListVisible.Scan")
		}
		messages = append(messages, m)
	}
	return messages, errors.Wrap(rows.Err(), "messageRepo.ListVisible.Rows")
}

// LastVisible 获取 owner 会话行应展示的最后一条消息
func (r *MessageRepositoryAdapter) LastVisible(ctx context.Context, ownerID, otherID string) (*entities.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM dm_messages WHERE ` + visibleToOwner + `
			  AND NOT (sender_id = ? AND block_reason = ?)
			  ORDER BY created_at DESC, id DESC LIMIT 1`

	row := r.db.QueryRowContext(ctx, query, ownerID, otherID, otherID, ownerID,
		ownerID, string(valueobjects.BlockReasonReceiverBlocked))
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "messageRepo.LastVisible.Scan")
	}
	return m, nil
}

// CountUnread 统计未读数
func (r *MessageRepositoryAdapter) CountUnread(ctx context.Context, readerID, otherID string) (int64, error) {
	query := `SELECT COUNT(*) FROM dm_messages
			  WHERE sender_id = ? AND receiver_id = ? AND receiver_visible = 1
			  AND receiver_deleted = 0 AND is_read = 0 AND status <> ?`

	var n int64
	err := r.db.QueryRowContext(ctx, query, otherID, readerID, int(valueobjects.DeliveryStatusWithdrawn)).Scan(&n)
	return n, errors.Wrap(err, "messageRepo.CountUnread.Scan")
}

// MarkRead 批量标记已读，已读和已撤回的消息不受影响
func (r *MessageRepositoryAdapter) MarkRead(ctx context.Context, readerID, otherID string, at time.Time) (int64, error) {
	query := `UPDATE dm_messages SET is_read = 1, read_at = ?
			  WHERE sender_id = ? AND receiver_id = ? AND receiver_visible = 1 AND is_read = 0 AND status <> ?`

	result, err := r.db.ExecContext(ctx, query, at.UTC(), otherID, readerID, int(valueobjects.DeliveryStatusWithdrawn))
	if err != nil {
		return 0, errors.Wrap(err, "messageRepo.MarkRead.Exec")
	}
	n, err := result.RowsAffected()
	return n, errors.Wrap(err, "messageRepo.MarkRead.RowsAffected")
}

// Withdraw 撤回消息
func (r *MessageRepositoryAdapter) Withdraw(ctx context.Context, id string, content string) (bool, error) {
	query := `UPDATE dm_messages SET status = ?, content = ?, media_ref = '' WHERE id = ? AND status <> ?`

	withdrawn := int(valueobjects.DeliveryStatusWithdrawn)
	result, err := r.db.ExecContext(ctx, query, withdrawn, content, id, withdrawn)
	if err != nil {
		return false, errors.Wrap(err, "messageRepo.Withdraw.Exec")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "messageRepo.Withdraw.RowsAffected")
	}
	return n > 0, nil
}

// SoftDelete 单侧软删除
func (r *MessageRepositoryAdapter) SoftDelete(ctx context.Context, id string, bySender bool) error {
	query := `UPDATE dm_messages SET receiver_deleted = 1 WHERE id = ?`
	if bySender {
		query = `UPDATE dm_messages SET sender_deleted = 1 WHERE id = ?`
	}
	_, err := r.db.ExecContext(ctx, query, id)
	return errors.Wrap(err, "messageRepo.SoftDelete.Exec")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*entities.Message, error) {
	var (
		dto         entities.MessageDTO
		kind        int
		status      int
		blockReason string
		readAt      sql.NullTime
	)
	err := row.Scan(
		&dto.ID,
		&dto.SenderID,
		&dto.ReceiverID,
		&dto.Content,
		&dto.MediaRef,
		&kind,
		&status,
		&blockReason,
		&dto.ReceiverVisible,
		&dto.Read,
		&readAt,
		&dto.SenderDeleted,
		&dto.ReceiverDeleted,
		&dto.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	dto.Kind = valueobjects.MessageKind(kind)
	dto.Status = valueobjects.DeliveryStatus(status)
	dto.BlockReason = valueobjects.BlockReason(blockReason)
	dto.CreatedAt = dto.CreatedAt.UTC()
	if readAt.Valid {
		t := readAt.Time.UTC()
		dto.ReadAt = &t
	}
	return entities.FromMessageDTO(dto), nil
}
