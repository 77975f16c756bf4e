package sqlstore

import (
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite3"
)

// PoolConfig 连接池参数，零值使用默认
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open 打开数据库连接池
// sqlite3 仅用于本地与测试：单连接，避免 database is locked
func Open(driver, dsn string, pool PoolConfig) (*sql.DB, error) {
	if driver == "" {
		driver = DriverMySQL
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "sqlstore.Open %s", driver)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		return db, nil
	}

	if pool.MaxOpenConns <= 0 {
		pool.MaxOpenConns = 100
	}
	if pool.MaxIdleConns <= 0 {
		pool.MaxIdleConns = 20
	}
	if pool.ConnMaxLifetime <= 0 {
		pool.ConnMaxLifetime = 30 * time.Minute
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	return db, nil
}
