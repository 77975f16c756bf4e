package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"go-dm/internal/application/ports"
	"go-dm/internal/domain/entities"
	"go-dm/internal/domain/valueobjects"
)

const viewColumns = `owner_id, other_user_id, relation_type, unread_count, last_message_id, last_message_preview,
	last_message_at, last_message_is_mine, is_initiator, pinned, muted, hidden, updated_at`

// ViewRepositoryAdapter 会话视图仓储适配器
type ViewRepositoryAdapter struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// NewViewRepositoryAdapter 创建会话视图仓储适配器
func NewViewRepositoryAdapter(db *sql.DB, dialect Dialect) ports.ViewRepository {
	return &ViewRepositoryAdapter{db: db, dialect: dialect, now: func() time.Time { return time.Now().UTC() }}
}

// Upsert 单条语句完成插入或更新
// 未读数原子自增；仅当新消息不早于当前最后消息时才覆盖预览字段，last_message_at 放在最后赋值
func (r *ViewRepositoryAdapter) Upsert(ctx context.Context, u *ports.ViewUpsert) error {
	d := r.dialect
	newer := fmt.Sprintf("(last_message_at IS NULL OR %s >= last_message_at)", d.inserted("last_message_at"))
	pick := func(col string) string {
		return fmt.Sprintf("%s = CASE WHEN %s THEN %s ELSE %s END", col, newer, d.inserted(col), col)
	}
	initiator := "is_initiator = is_initiator"
	if u.IsInitiator != nil {
		initiator = "is_initiator = " + d.inserted("is_initiator")
	}

	query := `INSERT INTO dm_conversation_views(` + viewColumns + `)
			  VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, 0, ?) ` + d.onConflict("owner_id", "other_user_id") + `
			  unread_count = unread_count + ` + d.inserted("unread_count") + `,
			  hidden = 0,
			  relation_type = ` + d.inserted("relation_type") + `,
			  ` + initiator + `,
			  ` + pick("last_message_id") + `,
			  ` + pick("last_message_preview") + `,
			  ` + pick("last_message_is_mine") + `,
			  updated_at = ` + d.inserted("updated_at") + `,
			  ` + pick("last_message_at")

	var incr int64
	if u.IncrUnread {
		incr = 1
	}
	isInitiator := u.IsInitiator != nil && *u.IsInitiator

	_, err := r.db.ExecContext(ctx, query,
		u.OwnerID,
		u.OtherUserID,
		string(u.RelationType),
		incr,
		u.MessageID,
		u.Preview,
		u.MessageAt.UTC(),
		u.IsMine,
		isInitiator,
		r.now(),
	)
	return errors.Wrap(err, "viewRepo.Upsert.Exec")
}

// Replace 覆盖派生字段，置顶与免打扰保持不变
func (r *ViewRepositoryAdapter) Replace(ctx context.Context, v *entities.ConversationView) error {
	d := r.dialect
	set := func(col string) string { return col + " = " + d.inserted(col) }

	query := `INSERT INTO dm_conversation_views(` + viewColumns + `)
			  VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ` + d.onConflict("owner_id", "other_user_id") + `
			  ` + set("relation_type") + `,
			  ` + set("unread_count") + `,
			  ` + set("last_message_id") + `,
			  ` + set("last_message_preview") + `,
			  ` + set("last_message_at") + `,
			  ` + set("last_message_is_mine") + `,
			  ` + set("is_initiator") + `,
			  ` + set("hidden") + `,
			  ` + set("updated_at")

	_, err := r.db.ExecContext(ctx, query, viewArgs(v, r.now())...)
	return errors.Wrap(err, "viewRepo.Replace.Exec")
}

// EnsureExists 仅在缺失时插入
func (r *ViewRepositoryAdapter) EnsureExists(ctx context.Context, v *entities.ConversationView) error {
	query := r.dialect.insertIgnore() + ` INTO dm_conversation_views(` + viewColumns + `)
			  VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, viewArgs(v, r.now())...)
	return errors.Wrap(err, "viewRepo.EnsureExists.Exec")
}

// Get 获取会话行
func (r *ViewRepositoryAdapter) Get(ctx context.Context, ownerID, otherID string) (*entities.ConversationView, error) {
	query := `SELECT ` + viewColumns + ` FROM dm_conversation_views WHERE owner_id = ? AND other_user_id = ?`
	v, err := scanView(r.db.QueryRowContext(ctx, query, ownerID, otherID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "viewRepo.Get.Scan")
	}
	return v, nil
}

// List 置顶优先，再按最后消息时间倒序
func (r *ViewRepositoryAdapter) List(ctx context.Context, ownerID string, offset, limit int) ([]*entities.ConversationView, error) {
	query := `SELECT ` + viewColumns + ` FROM dm_conversation_views
			  WHERE owner_id = ? AND hidden = 0
			  ORDER BY pinned DESC, last_message_at DESC, other_user_id ASC LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "viewRepo.List.Query")
	}
	defer rows.Close()

	views := make([]*entities.ConversationView, 0, limit)
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, errors.Wrap(err, "viewRepo.List.Scan")
		}
		views = append(views, v)
	}
	return views, errors.Wrap(rows.Err(), "viewRepo.List.Rows")
}

// ClearUnread 清空未读
func (r *ViewRepositoryAdapter) ClearUnread(ctx context.Context, ownerID, otherID string) error {
	query := `UPDATE dm_conversation_views SET unread_count = 0 WHERE owner_id = ? AND other_user_id = ?`
	_, err := r.db.ExecContext(ctx, query, ownerID, otherID)
	return errors.Wrap(err, "viewRepo.ClearUnread.Exec")
}

// SetHidden 设置隐藏
func (r *ViewRepositoryAdapter) SetHidden(ctx context.Context, ownerID, otherID string, hidden bool) (bool, error) {
	return r.setFlag(ctx, "hidden", ownerID, otherID, hidden)
}

// SetPinned 设置置顶
func (r *ViewRepositoryAdapter) SetPinned(ctx context.Context, ownerID, otherID string, pinned bool) (bool, error) {
	return r.setFlag(ctx, "pinned", ownerID, otherID, pinned)
}

// SetMuted 设置免打扰
func (r *ViewRepositoryAdapter) SetMuted(ctx context.Context, ownerID, otherID string, muted bool) (bool, error) {
	return r.setFlag(ctx, "muted", ownerID, otherID, muted)
}

func (r *ViewRepositoryAdapter) setFlag(ctx context.Context, col, ownerID, otherID string, value bool) (bool, error) {
	query := `UPDATE dm_conversation_views SET ` + col + ` = ? WHERE owner_id = ? AND other_user_id = ?`
	result, err := r.db.ExecContext(ctx, query, value, ownerID, otherID)
	if err != nil {
		return false, errors.Wrap(err, "viewRepo.setFlag.Exec")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "viewRepo.setFlag.RowsAffected")
	}
	if n > 0 {
		return true, nil
	}
	return rowExists(ctx, r.db,
		`SELECT 1 FROM dm_conversation_views WHERE owner_id = ? AND other_user_id = ?`, ownerID, otherID)
}

// TotalUnread 未隐藏会话的未读总数
func (r *ViewRepositoryAdapter) TotalUnread(ctx context.Context, ownerID string) (int64, error) {
	query := `SELECT COALESCE(SUM(unread_count), 0) FROM dm_conversation_views WHERE owner_id = ? AND hidden = 0`
	var n int64
	err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&n)
	return n, errors.Wrap(err, "viewRepo.TotalUnread.Scan")
}

func viewArgs(v *entities.ConversationView, now time.Time) []interface{} {
	var lastAt interface{}
	if v.LastMessageAt != nil {
		lastAt = v.LastMessageAt.UTC()
	}
	updatedAt := v.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}
	relation := v.RelationType
	if relation == "" {
		relation = valueobjects.RelationStranger
	}
	return []interface{}{
		v.OwnerID,
		v.OtherUserID,
		string(relation),
		v.UnreadCount,
		v.LastMessageID,
		v.LastMessagePreview,
		lastAt,
		v.LastMessageIsMine,
		v.IsInitiator,
		v.Pinned,
		v.Muted,
		v.Hidden,
		updatedAt.UTC(),
	}
}

func scanView(row rowScanner) (*entities.ConversationView, error) {
	var (
		v        entities.ConversationView
		relation string
		lastAt   sql.NullTime
	)
	err := row.Scan(
		&v.OwnerID,
		&v.OtherUserID,
		&relation,
		&v.UnreadCount,
		&v.LastMessageID,
		&v.LastMessagePreview,
		&lastAt,
		&v.LastMessageIsMine,
		&v.IsInitiator,
		&v.Pinned,
		&v.Muted,
		&v.Hidden,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.RelationType = valueobjects.RelationType(relation)
	v.UpdatedAt = v.UpdatedAt.UTC()
	if lastAt.Valid {
		t := lastAt.Time.UTC()
		v.LastMessageAt = &t
	}
	return &v, nil
}
