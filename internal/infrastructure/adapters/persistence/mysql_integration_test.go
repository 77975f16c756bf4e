//go:build integration

package persistence

import (
	"context"
	"database/sql"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mysql"

	"go-dm/internal/domain/entities"
	"go-dm/internal/domain/valueobjects"
	"go-dm/internal/store/sqlstore"
)

var mysqlDB *sql.DB

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := mysql.Run(ctx,
		"mysql:8.0.36",
		mysql.WithDatabase("godm"),
		mysql.WithUsername("root"),
		mysql.WithPassword("password"),
	)
	if err != nil {
		log.Printf("failed to start container: %s", err)
		os.Exit(1)
	}

	dsn, err := container.ConnectionString(ctx, "parseTime=true", "loc=UTC")
	if err != nil {
		log.Fatalf("failed to get connection string: %v", err)
	}
	mysqlDB, err = sqlstore.Open(sqlstore.DriverMySQL, dsn, sqlstore.PoolConfig{MaxOpenConns: 16})
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	if err := Migrate(ctx, mysqlDB, DialectMySQL, true); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	code := m.Run()

	_ = mysqlDB.Close()
	if err := container.Terminate(ctx); err != nil {
		log.Printf("failed to terminate container: %s", err)
	}
	os.Exit(code)
}

func Test_MySQL_ViewUpsert(t *testing.T) {
	ctx := context.Background()
	repo := NewViewRepositoryAdapter(mysqlDB, DialectMySQL)

	require.NoError(t, repo.Upsert(ctx, upsert("my-bob", "my-alice", "m2", base.Add(time.Second), true)))
	require.NoError(t, repo.Upsert(ctx, upsert("my-bob", "my-alice", "m1", base, true)))

	v, err := repo.Get(ctx, "my-bob", "my-alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.UnreadCount)
	assert.Equal(t, "m2", v.LastMessageID)
	assert.True(t, v.LastMessageAt.Equal(base.Add(time.Second)))

	// MySQL 对值未变化的行返回 0 影响行数
	ok, err := repo.SetPinned(ctx, "my-bob", "my-alice", false)
	require.NoError(t, err)
	assert.True(t, ok)
}

func Test_MySQL_ConcurrentUpsertUnread(t *testing.T) {
	ctx := context.Background()
	repo := NewViewRepositoryAdapter(mysqlDB, DialectMySQL)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, repo.Upsert(ctx, upsert("my-carol", "my-dave", "c", base.Add(time.Duration(i)*time.Millisecond), true)))
		}(i)
	}
	wg.Wait()

	v, err := repo.Get(ctx, "my-carol", "my-dave")
	require.NoError(t, err)
	assert.Equal(t, int64(20), v.UnreadCount)
}

func Test_MySQL_PairCAS(t *testing.T) {
	ctx := context.Background()
	repo := NewPairRepositoryAdapter(mysqlDB, DialectMySQL)
	key := entities.NewPairKey("my-erin", "my-frank")

	created, err := repo.CreateIfAbsent(ctx, entities.NewConversationPair("my-erin", "my-frank", valueobjects.RelationStranger, base))
	require.NoError(t, err)
	require.True(t, created)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.CompareAndSetStatus(ctx, key, valueobjects.PairStatusPending, valueobjects.PairStatusEstablished)
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func Test_MySQL_GreetingInsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	repo := NewGreetingRepositoryAdapter(mysqlDB, DialectMySQL)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.InsertIfAbsent(ctx, &entities.GreetingRecord{SenderID: "my-gina", TargetID: "my-hank", CreatedAt: base})
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}
