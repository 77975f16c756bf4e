package usecases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "go-dm/pkg/errors"
)

func Test_Block_ReceiverBlockedSender(t *testing.T) {
	h := newHarness(t, defaultConfig())
	ctx := context.Background()
	require.NoError(t, h.uc.Block(ctx, "bob", "alice"))

	res := h.send("alice", "bob", "hi")
	assert.Equal(t, "blocked", res.Outcome)
	assert.Nil(t, h.view("bob", "alice"))
	assert.Nil(t, h.view("alice", "bob"))
	assert.Nil(t, h.pair("alice", "bob"))
	assert.Empty(t, h.notificationsFor("bob", "message.new"))
	// 发送方自己的历史里仍然能看到
	assert.Equal(t, []string{res.MessageID}, h.visibleIDs("alice", "bob"))
}

func Test_Block_SenderRowFrozenAfterBeingBlocked(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.mutual("alice", "bob")
	ctx := context.Background()

	first := h.send("bob", "alice", "before block")
	require.Equal(t, "delivered", first.Outcome)
	before := h.view("bob", "alice")
	require.NotNil(t, before)

	require.NoError(t, h.uc.Block(ctx, "alice", "bob"))
	res := h.send("bob", "alice", "after block")
	assert.Equal(t, "blocked", res.Outcome)

	after := h.view("bob", "alice")
	require.NotNil(t, after)
	assert.Equal(t, first.MessageID, after.LastMessageID)
	assert.Equal(t, before.LastMessagePreview, after.LastMessagePreview)
	assert.Equal(t, before.LastMessageAt, after.LastMessageAt)

	t.Run("rebuild keeps the row frozen", func(t *testing.T) {
		require.NoError(t, h.uc.views.Rebuild(ctx, "bob", "alice"))
		assert.Equal(t, first.MessageID, h.view("bob", "alice").LastMessageID)
	})

	t.Run("history still shows the blocked message to the sender", func(t *testing.T) {
		assert.Equal(t, []string{res.MessageID, first.MessageID}, h.visibleIDs("bob", "alice"))
	})
}

func Test_Block_SenderBlockedReceiver(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.mutual("alice", "bob")
	ctx := context.Background()
	require.NoError(t, h.uc.Block(ctx, "alice", "bob"))

	res := h.send("alice", "bob", "hi")
	assert.Equal(t, "blocked", res.Outcome)
	assert.Nil(t, h.view("bob", "alice"))

	v := h.view("alice", "bob")
	require.NotNil(t, v)
	assert.Equal(t, res.MessageID, v.LastMessageID)
}

func Test_Block_ExistingConversationStaysEstablished(t *testing.T) {
	h := newHarness(t, defaultConfig())
	h.mutual("alice", "bob")
	ctx := context.Background()
	h.send("alice", "bob", "hello")
	before := h.view("bob", "alice")

	require.NoError(t, h.uc.Block(ctx, "bob", "alice"))
	assert.Equal(t, "blocked", h.send("alice", "bob", "still there?").Outcome)
	// 被拉黑后发来的消息不触碰拉黑方的会话行
	after := h.view("bob", "alice")
	assert.Equal(t, before.LastMessageID, after.LastMessageID)
	assert.Equal(t, before.UnreadCount, after.UnreadCount)

	require.NoError(t, h.uc.Unblock(ctx, "bob", "alice"))
	_, err := h.db.Exec(`DELETE FROM follows`)
	require.NoError(t, err)

	assert.True(t, h.pair("alice", "bob").IsEstablished())
	assert.Equal(t, "delivered", h.send("alice", "bob", "back").Outcome)
}

func Test_Unblock_StartsFreshKnock(t *testing.T) {
	h := newHarness(t, defaultConfig())
	ctx := context.Background()

	assert.Equal(t, "pending", h.send("alice", "bob", "hi").Outcome)
	require.NoError(t, h.uc.Block(ctx, "bob", "alice"))
	require.NoError(t, h.uc.Unblock(ctx, "bob", "alice"))

	assert.False(t, h.greetingUsed("alice", "bob"))
	assert.Equal(t, "pending", h.send("alice", "bob", "hi, one more time").Outcome)
	assert.Equal(t, "blocked", h.send("alice", "bob", "please").Outcome)
}

func Test_Block_Management(t *testing.T) {
	h := newHarness(t, defaultConfig())
	ctx := context.Background()

	t.Run("happy path - idempotent block and status", func(t *testing.T) {
		require.NoError(t, h.uc.Block(ctx, "alice", "bob"))
		require.NoError(t, h.uc.Block(ctx, "alice", "bob"))
		require.NoError(t, h.uc.Block(ctx, "alice", "carol"))

		st, err := h.uc.BlockStatus(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.True(t, st.BlockedByMe)
		assert.False(t, st.BlockingMe)

		st, err = h.uc.BlockStatus(ctx, "bob", "alice")
		require.NoError(t, err)
		assert.False(t, st.BlockedByMe)
		assert.True(t, st.BlockingMe)
	})

	t.Run("list with profiles", func(t *testing.T) {
		list, err := h.uc.ListBlocked(ctx, "alice", 1, 20)
		require.NoError(t, err)
		require.Len(t, list, 2)
		for _, b := range list {
			require.NotNil(t, b.User)
			assert.Equal(t, b.BlockedID, b.User.UserID)
		}

		n, err := h.uc.CountBlocked(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("unblock is idempotent", func(t *testing.T) {
		require.NoError(t, h.uc.Unblock(ctx, "alice", "bob"))
		require.NoError(t, h.uc.Unblock(ctx, "alice", "bob"))
		n, err := h.uc.CountBlocked(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("invalid targets", func(t *testing.T) {
		assert.ErrorIs(t, h.uc.Block(ctx, "alice", "alice"), appErrors.ErrSelfBlock)
		assert.ErrorIs(t, h.uc.Block(ctx, "alice", "zoe"), appErrors.ErrUserNotFound)
		assert.ErrorIs(t, h.uc.Unblock(ctx, "", "bob"), appErrors.ErrInvalidUserID)
	})
}
