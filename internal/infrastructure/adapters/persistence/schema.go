package persistence

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS dm_messages (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		sender_id VARCHAR(64) NOT NULL,
		receiver_id VARCHAR(64) NOT NULL,
		content TEXT NOT NULL,
		media_ref VARCHAR(512) NOT NULL DEFAULT '',
		kind TINYINT NOT NULL,
		status TINYINT NOT NULL,
		block_reason VARCHAR(32) NOT NULL DEFAULT '',
		receiver_visible TINYINT NOT NULL DEFAULT 0,
		is_read TINYINT NOT NULL DEFAULT 0,
		read_at DATETIME(3) NULL,
		sender_deleted TINYINT NOT NULL DEFAULT 0,
		receiver_deleted TINYINT NOT NULL DEFAULT 0,
		created_at DATETIME(3) NOT NULL,
		INDEX idx_sender_created (sender_id, created_at),
		INDEX idx_receiver_created (receiver_id, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS dm_conversation_pairs (
		user_low VARCHAR(64) NOT NULL,
		user_high VARCHAR(64) NOT NULL,
		initiator_id VARCHAR(64) NOT NULL,
		status VARCHAR(16) NOT NULL,
		created_at DATETIME(3) NOT NULL,
		last_message_at DATETIME(3) NOT NULL,
		PRIMARY KEY (user_low, user_high),
		INDEX idx_last_message (last_message_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS dm_conversation_views (
		owner_id VARCHAR(64) NOT NULL,
		other_user_id VARCHAR(64) NOT NULL,
		relation_type VARCHAR(16) NOT NULL DEFAULT 'stranger',
		unread_count BIGINT NOT NULL DEFAULT 0,
		last_message_id VARCHAR(64) NOT NULL DEFAULT '',
		last_message_preview VARCHAR(512) NOT NULL DEFAULT '',
		last_message_at DATETIME(3) NULL,
		last_message_is_mine TINYINT NOT NULL DEFAULT 0,
		is_initiator TINYINT NOT NULL DEFAULT 0,
		pinned TINYINT NOT NULL DEFAULT 0,
		muted TINYINT NOT NULL DEFAULT 0,
		hidden TINYINT NOT NULL DEFAULT 0,
		updated_at DATETIME(3) NOT NULL,
		PRIMARY KEY (owner_id, other_user_id),
		INDEX idx_owner_list (owner_id, hidden, pinned, last_message_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS dm_greetings (
		sender_id VARCHAR(64) NOT NULL,
		target_id VARCHAR(64) NOT NULL,
		created_at DATETIME(3) NOT NULL,
		PRIMARY KEY (sender_id, target_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS dm_blocks (
		blocker_id VARCHAR(64) NOT NULL,
		blocked_id VARCHAR(64) NOT NULL,
		created_at DATETIME(3) NOT NULL,
		PRIMARY KEY (blocker_id, blocked_id),
		INDEX idx_blocker_created (blocker_id, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS dm_message_preferences (
		user_id VARCHAR(64) NOT NULL PRIMARY KEY,
		allow_stranger TINYINT NOT NULL DEFAULT 1,
		allow_non_mutual TINYINT NOT NULL DEFAULT 1,
		notification_enabled TINYINT NOT NULL DEFAULT 1,
		updated_at DATETIME(3) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// 只读协作表：线上由用户/关注服务维护，本地与测试时一并创建
var mysqlCollaboratorSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		nickname VARCHAR(64) NOT NULL DEFAULT '',
		avatar_url VARCHAR(512) NOT NULL DEFAULT ''
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS follows (
		follower_id VARCHAR(64) NOT NULL,
		followee_id VARCHAR(64) NOT NULL,
		PRIMARY KEY (follower_id, followee_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// SQLite 的 DATETIME 列会被驱动解析为 time.Time，不能带精度
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS dm_messages (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		sender_id VARCHAR(64) NOT NULL,
		receiver_id VARCHAR(64) NOT NULL,
		content TEXT NOT NULL,
		media_ref VARCHAR(512) NOT NULL DEFAULT '',
		kind TINYINT NOT NULL,
		status TINYINT NOT NULL,
		block_reason VARCHAR(32) NOT NULL DEFAULT '',
		receiver_visible TINYINT NOT NULL DEFAULT 0,
		is_read TINYINT NOT NULL DEFAULT 0,
		read_at DATETIME NULL,
		sender_deleted TINYINT NOT NULL DEFAULT 0,
		receiver_deleted TINYINT NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sender_created ON dm_messages (sender_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_receiver_created ON dm_messages (receiver_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS dm_conversation_pairs (
		user_low VARCHAR(64) NOT NULL,
		user_high VARCHAR(64) NOT NULL,
		initiator_id VARCHAR(64) NOT NULL,
		status VARCHAR(16) NOT NULL,
		created_at DATETIME NOT NULL,
		last_message_at DATETIME NOT NULL,
		PRIMARY KEY (user_low, user_high)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_last_message ON dm_conversation_pairs (last_message_at)`,
	`CREATE TABLE IF NOT EXISTS dm_conversation_views (
		owner_id VARCHAR(64) NOT NULL,
		other_user_id VARCHAR(64) NOT NULL,
		relation_type VARCHAR(16) NOT NULL DEFAULT 'stranger',
		unread_count BIGINT NOT NULL DEFAULT 0,
		last_message_id VARCHAR(64) NOT NULL DEFAULT '',
		last_message_preview VARCHAR(512) NOT NULL DEFAULT '',
		last_message_at DATETIME NULL,
		last_message_is_mine TINYINT NOT NULL DEFAULT 0,
		is_initiator TINYINT NOT NULL DEFAULT 0,
		pinned TINYINT NOT NULL DEFAULT 0,
		muted TINYINT NOT NULL DEFAULT 0,
		hidden TINYINT NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (owner_id, other_user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_owner_list ON dm_conversation_views (owner_id, hidden, pinned, last_message_at)`,
	`CREATE TABLE IF NOT EXISTS dm_greetings (
		sender_id VARCHAR(64) NOT NULL,
		target_id VARCHAR(64) NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (sender_id, target_id)
	)`,
	`CREATE TABLE IF NOT EXISTS dm_blocks (
		blocker_id VARCHAR(64) NOT NULL,
		blocked_id VARCHAR(64) NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (blocker_id, blocked_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_blocker_created ON dm_blocks (blocker_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS dm_message_preferences (
		user_id VARCHAR(64) NOT NULL PRIMARY KEY,
		allow_stranger TINYINT NOT NULL DEFAULT 1,
		allow_non_mutual TINYINT NOT NULL DEFAULT 1,
		notification_enabled TINYINT NOT NULL DEFAULT 1,
		updated_at DATETIME NOT NULL
	)`,
}

var sqliteCollaboratorSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		nickname VARCHAR(64) NOT NULL DEFAULT '',
		avatar_url VARCHAR(512) NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS follows (
		follower_id VARCHAR(64) NOT NULL,
		followee_id VARCHAR(64) NOT NULL,
		PRIMARY KEY (follower_id, followee_id)
	)`,
}

// Migrate 建表（幂等）。withCollaborators 为 true 时同时创建 users/follows
func Migrate(ctx context.Context, db *sql.DB, d Dialect, withCollaborators bool) error {
	stmts := mysqlSchema
	collab := mysqlCollaboratorSchema
	if d == DialectSQLite {
		stmts = sqliteSchema
		collab = sqliteCollaboratorSchema
	}
	if withCollaborators {
		stmts = append(append([]string{}, stmts...), collab...)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "persistence.Migrate.Exec")
		}
	}
	return nil
}
