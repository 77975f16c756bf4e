package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-dm/internal/domain/valueobjects"
)

func Test_ProfileLookup_BatchGet(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	_, err := db.Exec(`INSERT INTO users(id, nickname, avatar_url) VALUES ('alice', 'Alice', 'a.png'), ('bob', 'Bob', '')`)
	require.NoError(t, err)
	lookup := NewProfileLookupAdapter(db)

	t.Run("happy path - missing ids skipped", func(t *testing.T) {
		got, err := lookup.BatchGet(ctx, []string{"alice", "bob", "ghost"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "Alice", got["alice"].DisplayName)
		assert.Equal(t, "a.png", got["alice"].AvatarRef)
	})

	t.Run("empty input", func(t *testing.T) {
		got, err := lookup.BatchGet(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func Test_FollowOracle_GetRelation(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	_, err := db.Exec(`INSERT INTO follows(follower_id, followee_id) VALUES ('alice', 'bob'), ('bob', 'alice'), ('carol', 'alice')`)
	require.NoError(t, err)
	oracle := NewFollowOracleAdapter(db)

	cases := []struct {
		a, b string
		want valueobjects.RelationType
	}{
		{"alice", "bob", valueobjects.RelationMutual},
		{"carol", "alice", valueobjects.RelationFollowing},
		{"alice", "carol", valueobjects.RelationStranger},
		{"alice", "dave", valueobjects.RelationStranger},
	}
	for _, c := range cases {
		got, err := oracle.GetRelation(ctx, c.a, c.b)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "%s→%s", c.a, c.b)
	}
}
