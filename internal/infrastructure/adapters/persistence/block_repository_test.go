package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-dm/internal/domain/entities"
)

func Test_BlockRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewBlockRepositoryAdapter(newTestDB(t), DialectSQLite)

	t.Run("happy path - insert is idempotent", func(t *testing.T) {
		ok, err := repo.Insert(ctx, &entities.BlockEdge{BlockerID: "alice", BlockedID: "bob", CreatedAt: base})
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = repo.Insert(ctx, &entities.BlockEdge{BlockerID: "alice", BlockedID: "bob", CreatedAt: base})
		require.NoError(t, err)
		assert.False(t, ok)

		exists, err := repo.Exists(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.True(t, exists)
		// 有向
		exists, err = repo.Exists(ctx, "bob", "alice")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("list newest first", func(t *testing.T) {
		_, err := repo.Insert(ctx, &entities.BlockEdge{BlockerID: "alice", BlockedID: "carol", CreatedAt: base.Add(time.Minute)})
		require.NoError(t, err)

		edges, err := repo.ListByBlocker(ctx, "alice", 0, 10)
		require.NoError(t, err)
		require.Len(t, edges, 2)
		assert.Equal(t, "carol", edges[0].BlockedID)

		n, err := repo.CountByBlocker(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		ok, err := repo.Delete(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = repo.Delete(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func Test_GreetingRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGreetingRepositoryAdapter(newTestDB(t), DialectSQLite)

	t.Run("happy path - single winner", func(t *testing.T) {
		ok, err := repo.InsertIfAbsent(ctx, &entities.GreetingRecord{SenderID: "alice", TargetID: "bob", CreatedAt: base})
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = repo.InsertIfAbsent(ctx, &entities.GreetingRecord{SenderID: "alice", TargetID: "bob", CreatedAt: base})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete pair removes both directions", func(t *testing.T) {
		_, err := repo.InsertIfAbsent(ctx, &entities.GreetingRecord{SenderID: "bob", TargetID: "alice", CreatedAt: base})
		require.NoError(t, err)
		require.NoError(t, repo.DeletePair(ctx, entities.NewPairKey("bob", "alice")))

		for _, dir := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
			ok, err := repo.Exists(ctx, dir[0], dir[1])
			require.NoError(t, err)
			assert.False(t, ok)
		}
	})

	t.Run("delete single direction", func(t *testing.T) {
		_, err := repo.InsertIfAbsent(ctx, &entities.GreetingRecord{SenderID: "carol", TargetID: "dave", CreatedAt: base})
		require.NoError(t, err)
		require.NoError(t, repo.Delete(ctx, "carol", "dave"))
		ok, err := repo.Exists(ctx, "carol", "dave")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func Test_PreferenceRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewPreferenceRepositoryAdapter(newTestDB(t), DialectSQLite)

	p, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, p)

	pref := entities.DefaultMessagePreference("alice", true)
	pref.UpdatedAt = base
	require.NoError(t, repo.Save(ctx, pref))

	pref.AllowStrangerMessage = false
	pref.UpdatedAt = base.Add(time.Minute)
	require.NoError(t, repo.Save(ctx, pref))

	got, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, got.AllowStrangerMessage)
	assert.True(t, got.AllowNonMutualFollowMessage)
	assert.True(t, got.UpdatedAt.Equal(base.Add(time.Minute)))
}
