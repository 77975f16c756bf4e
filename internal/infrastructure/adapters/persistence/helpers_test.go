package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"go-dm/internal/domain/entities"
	"go-dm/internal/domain/valueobjects"
	"go-dm/internal/store/sqlstore"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := sqlstore.Open(sqlstore.DriverSQLite, dsn, sqlstore.PoolConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(context.Background(), db, DialectSQLite, true))
	return db
}

func newMessage(t *testing.T, id, from, to string, status valueobjects.DeliveryStatus, at time.Time) *entities.Message {
	t.Helper()
	reason := valueobjects.BlockReasonNone
	if status == valueobjects.DeliveryStatusBlocked {
		reason = valueobjects.BlockReasonKnockUsed
	}
	m, err := entities.NewMessage(id, from, to, valueobjects.MessageKindText, "body "+id, "", status, reason, at)
	require.NoError(t, err)
	return m
}

func newBlockedMessage(t *testing.T, id, from, to string, reason valueobjects.BlockReason, at time.Time) *entities.Message {
	t.Helper()
	m, err := entities.NewMessage(id, from, to, valueobjects.MessageKindText, "body "+id, "", valueobjects.DeliveryStatusBlocked, reason, at)
	require.NoError(t, err)
	return m
}

func Test_Dialect(t *testing.T) {
	require.Equal(t, DialectSQLite, DialectFor("sqlite3"))
	require.Equal(t, DialectMySQL, DialectFor("mysql"))
	require.Equal(t, DialectMySQL, DialectFor(""))

	require.Equal(t, "INSERT IGNORE", DialectMySQL.insertIgnore())
	require.Equal(t, "VALUES(unread_count)", DialectMySQL.inserted("unread_count"))
	require.Equal(t, "excluded.unread_count", DialectSQLite.inserted("unread_count"))
	require.Equal(t, "ON CONFLICT(a, b) DO UPDATE SET", DialectSQLite.onConflict("a", "b"))
	require.Equal(t, "?,?,?", placeholders(3))
	require.Equal(t, "", placeholders(0))
}

func Test_Migrate_Idempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, Migrate(context.Background(), db, DialectSQLite, true))
}
