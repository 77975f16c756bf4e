package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Dialect 区分 MySQL（线上）与 SQLite（本地/测试）的少量语法差异
type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite3"
)

// DialectFor 根据驱动名选择方言，未知驱动按 MySQL 处理
func DialectFor(driver string) Dialect {
	if driver == string(DialectSQLite) || driver == "sqlite" {
		return DialectSQLite
	}
	return DialectMySQL
}

// insertIgnore 唯一键冲突时静默忽略
func (d Dialect) insertIgnore() string {
	if d == DialectSQLite {
		return "INSERT OR IGNORE"
	}
	return "INSERT IGNORE"
}

// onConflict 唯一键冲突时转为更新，后接 SET 子句
func (d Dialect) onConflict(keys ...string) string {
	if d == DialectSQLite {
		return "ON CONFLICT(" + strings.Join(keys, ", ") + ") DO UPDATE SET"
	}
	return "ON DUPLICATE KEY UPDATE"
}

// inserted 引用冲突时本次插入的值
func (d Dialect) inserted(col string) string {
	if d == DialectSQLite {
		return "excluded." + col
	}
	return fmt.Sprintf("VALUES(%s)", col)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// rowExists 用于区分"行不存在"与"值未变化"（MySQL 对未变化的行返回 0 影响行数）
func rowExists(ctx context.Context, db *sql.DB, query string, args ...interface{}) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "rowExists.Scan")
	}
	return true, nil
}
