package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-dm/internal/domain/entities"
	"go-dm/internal/domain/valueobjects"
)

func Test_ConversationViewStore_Upsert(t *testing.T) {
	h := newHarness(t, defaultConfig())
	store := h.uc.ViewStore()
	ctx := context.Background()

	t.Run("blocked message never reaches the recipient row", func(t *testing.T) {
		msg := stateMessage(t, "b1", "alice", "bob", valueobjects.DeliveryStatusBlocked, epoch)
		require.NoError(t, store.Upsert(ctx, "bob", "alice", msg, true, valueobjects.RelationStranger, nil))
		assert.Nil(t, h.view("bob", "alice"))

		require.NoError(t, store.Upsert(ctx, "alice", "bob", msg, false, valueobjects.RelationStranger, nil))
		v := h.view("alice", "bob")
		require.NotNil(t, v)
		assert.True(t, v.LastMessageIsMine)
		assert.Zero(t, v.UnreadCount)
	})

	t.Run("receiver blocked message touches neither row", func(t *testing.T) {
		msg, err := entities.NewMessage("rb1", "erin", "frank", valueobjects.MessageKindText, "hi", "",
			valueobjects.DeliveryStatusBlocked, valueobjects.BlockReasonReceiverBlocked, epoch)
		require.NoError(t, err)
		require.NoError(t, store.Upsert(ctx, "erin", "frank", msg, false, valueobjects.RelationStranger, nil))
		require.NoError(t, store.Upsert(ctx, "frank", "erin", msg, true, valueobjects.RelationStranger, nil))
		assert.Nil(t, h.view("erin", "frank"))
		assert.Nil(t, h.view("frank", "erin"))
	})

	t.Run("happy path - recipient unread grows", func(t *testing.T) {
		for i, id := range []string{"d1", "d2"} {
			msg := stateMessage(t, id, "carol", "dave", valueobjects.DeliveryStatusDelivered, epoch.Add(time.Duration(i)*time.Second))
			require.NoError(t, store.Upsert(ctx, "dave", "carol", msg, true, "", nil))
		}
		v := h.view("dave", "carol")
		require.NotNil(t, v)
		assert.Equal(t, int64(2), v.UnreadCount)
		assert.Equal(t, "d2", v.LastMessageID)
		assert.Equal(t, valueobjects.RelationStranger, v.RelationType)
	})
}

func Test_ConversationViewStore_Derive(t *testing.T) {
	h := newHarness(t, defaultConfig())
	store := h.uc.ViewStore()
	ctx := context.Background()

	v, err := store.Derive(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Nil(t, v)

	h.mutual("alice", "bob")
	h.send("alice", "bob", "one")
	res := h.send("alice", "bob", "two")

	v, err = store.Derive(ctx, "bob", "alice")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, res.MessageID, v.LastMessageID)
	assert.Equal(t, int64(2), v.UnreadCount)
	assert.False(t, v.LastMessageIsMine)
	assert.Equal(t, "two", v.LastMessagePreview)
}

func Test_ConversationViewStore_Rebuild(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path - drift corrected, pin kept", func(t *testing.T) {
		h := newHarness(t, defaultConfig())
		store := h.uc.ViewStore()
		h.mutual("alice", "bob")
		h.send("alice", "bob", "one")
		res := h.send("alice", "bob", "two")
		require.NoError(t, h.uc.SetPinned(ctx, "bob", "alice", true))

		_, err := h.db.Exec(`UPDATE dm_conversation_views SET unread_count = 99, last_message_id = 'bogus' WHERE owner_id = 'bob'`)
		require.NoError(t, err)

		require.NoError(t, store.Rebuild(ctx, "bob", "alice"))
		v := h.view("bob", "alice")
		assert.Equal(t, int64(2), v.UnreadCount)
		assert.Equal(t, res.MessageID, v.LastMessageID)
		assert.True(t, v.Pinned)
		assert.False(t, v.IsInitiator)
		assert.Equal(t, valueobjects.RelationMutual, v.RelationType)
	})

	t.Run("idempotent", func(t *testing.T) {
		h := newHarness(t, defaultConfig())
		store := h.uc.ViewStore()
		h.send("alice", "bob", "hi")

		require.NoError(t, store.Rebuild(ctx, "bob", "alice"))
		first := h.view("bob", "alice")
		require.NoError(t, store.Rebuild(ctx, "bob", "alice"))
		second := h.view("bob", "alice")
		assert.Equal(t, first.LastMessageID, second.LastMessageID)
		assert.Equal(t, first.UnreadCount, second.UnreadCount)
	})

	t.Run("hidden stays hidden until a newer message", func(t *testing.T) {
		h := newHarness(t, defaultConfig())
		store := h.uc.ViewStore()
		h.mutual("alice", "bob")
		h.send("alice", "bob", "hello")
		require.NoError(t, h.uc.DeleteConversation(ctx, "bob", "alice"))

		require.NoError(t, store.Rebuild(ctx, "bob", "alice"))
		assert.True(t, h.view("bob", "alice").Hidden)

		late := stateMessage(t, "late", "alice", "bob", valueobjects.DeliveryStatusDelivered, epoch.Add(time.Hour))
		require.NoError(t, h.messages.Append(ctx, late))
		require.NoError(t, store.Rebuild(ctx, "bob", "alice"))
		v := h.view("bob", "alice")
		assert.False(t, v.Hidden)
		assert.Equal(t, "late", v.LastMessageID)
	})

	t.Run("missing row is recreated", func(t *testing.T) {
		h := newHarness(t, defaultConfig())
		store := h.uc.ViewStore()
		h.send("alice", "bob", "knock")
		_, err := h.db.Exec(`DELETE FROM dm_conversation_views`)
		require.NoError(t, err)

		require.NoError(t, store.Rebuild(ctx, "alice", "bob"))
		v := h.view("alice", "bob")
		require.NotNil(t, v)
		assert.True(t, v.IsInitiator)
		assert.True(t, v.LastMessageIsMine)
	})

	t.Run("no messages and no row is a no-op", func(t *testing.T) {
		h := newHarness(t, defaultConfig())
		require.NoError(t, h.uc.ViewStore().Rebuild(ctx, "alice", "bob"))
		assert.Nil(t, h.view("alice", "bob"))
	})

	t.Run("all messages deleted keeps an empty row", func(t *testing.T) {
		h := newHarness(t, defaultConfig())
		res := h.send("alice", "bob", "oops")
		require.NoError(t, h.uc.DeleteMessage(ctx, "alice", res.MessageID))

		require.NoError(t, h.uc.ViewStore().Rebuild(ctx, "alice", "bob"))
		v := h.view("alice", "bob")
		require.NotNil(t, v)
		assert.Empty(t, v.LastMessageID)
		assert.Nil(t, v.LastMessageAt)
	})
}

func Test_ConversationViewStore_Ensure(t *testing.T) {
	h := newHarness(t, defaultConfig())
	store := h.uc.ViewStore()
	ctx := context.Background()
	h.send("alice", "bob", "hi")
	require.NoError(t, h.uc.DeleteConversation(ctx, "bob", "alice"))

	v, err := store.Ensure(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.False(t, v.Hidden)
	assert.Equal(t, int64(1), v.UnreadCount)
	assert.False(t, h.view("bob", "alice").Hidden)
}
