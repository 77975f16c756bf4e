package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-dm/internal/domain/valueobjects"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTextMessage(t *testing.T, status valueobjects.DeliveryStatus, reason valueobjects.BlockReason) *Message {
	t.Helper()
	m, err := NewMessage("m1", "alice", "bob", valueobjects.MessageKindText, "hello", "", status, reason, t0)
	require.NoError(t, err)
	return m
}

func Test_NewMessage(t *testing.T) {
	t.Run("happy path - delivered is visible to receiver", func(t *testing.T) {
		m := newTextMessage(t, valueobjects.DeliveryStatusDelivered, valueobjects.BlockReasonKnockUsed)
		assert.True(t, m.ReceiverVisible())
		assert.Equal(t, valueobjects.BlockReasonNone, m.BlockReason())
	})

	t.Run("happy path - blocked keeps reason and is hidden from receiver", func(t *testing.T) {
		m := newTextMessage(t, valueobjects.DeliveryStatusBlocked, valueobjects.BlockReasonReceiverBlocked)
		assert.False(t, m.ReceiverVisible())
		assert.Equal(t, valueobjects.BlockReasonReceiverBlocked, m.BlockReason())
		assert.True(t, m.VisibleTo("alice"))
		assert.False(t, m.VisibleTo("bob"))
	})

	t.Run("only receiver blocked messages stay out of the views", func(t *testing.T) {
		assert.False(t, newTextMessage(t, valueobjects.DeliveryStatusBlocked, valueobjects.BlockReasonReceiverBlocked).ProjectsToViews())
		assert.True(t, newTextMessage(t, valueobjects.DeliveryStatusBlocked, valueobjects.BlockReasonSenderBlocked).ProjectsToViews())
		assert.True(t, newTextMessage(t, valueobjects.DeliveryStatusBlocked, valueobjects.BlockReasonKnockUsed).ProjectsToViews())
		assert.True(t, newTextMessage(t, valueobjects.DeliveryStatusDelivered, "").ProjectsToViews())
	})

	t.Run("rejects self message", func(t *testing.T) {
		_, err := NewMessage("m1", "alice", "alice", valueobjects.MessageKindText, "hi", "", valueobjects.DeliveryStatusDelivered, "", t0)
		assert.Error(t, err)
	})

	t.Run("rejects withdrawn as initial status", func(t *testing.T) {
		_, err := NewMessage("m1", "alice", "bob", valueobjects.MessageKindText, "hi", "", valueobjects.DeliveryStatusWithdrawn, "", t0)
		assert.Error(t, err)
	})

	t.Run("rejects empty content", func(t *testing.T) {
		_, err := NewMessage("m1", "alice", "bob", valueobjects.MessageKindText, "", "", valueobjects.DeliveryStatusDelivered, "", t0)
		assert.Error(t, err)
	})
}

func Test_Message_Withdraw(t *testing.T) {
	t.Run("happy path - sender within window", func(t *testing.T) {
		m := newTextMessage(t, valueobjects.DeliveryStatusPending, "")
		require.NoError(t, m.Withdraw("alice", t0.Add(time.Minute), 2*time.Minute))
		assert.True(t, m.IsWithdrawn())
		assert.Equal(t, WithdrawnContent, m.Content())
		assert.Equal(t, WithdrawnContent, m.Preview(10))
		// 撤回不改变接收方可见性
		assert.True(t, m.ReceiverVisible())
	})

	t.Run("not sender", func(t *testing.T) {
		m := newTextMessage(t, valueobjects.DeliveryStatusDelivered, "")
		assert.ErrorIs(t, m.Withdraw("bob", t0, time.Minute), ErrNotMessageSender)
	})

	t.Run("window passed", func(t *testing.T) {
		m := newTextMessage(t, valueobjects.DeliveryStatusDelivered, "")
		assert.ErrorIs(t, m.Withdraw("alice", t0.Add(3*time.Minute), 2*time.Minute), ErrWithdrawWindowPassed)
	})

	t.Run("twice", func(t *testing.T) {
		m := newTextMessage(t, valueobjects.DeliveryStatusDelivered, "")
		require.NoError(t, m.Withdraw("alice", t0, time.Minute))
		assert.ErrorIs(t, m.Withdraw("alice", t0, time.Minute), ErrMessageWithdrawn)
	})
}

func Test_Message_MarkDeletedBy(t *testing.T) {
	m := newTextMessage(t, valueobjects.DeliveryStatusDelivered, "")
	require.NoError(t, m.MarkDeletedBy("bob"))
	assert.True(t, m.VisibleTo("alice"))
	assert.False(t, m.VisibleTo("bob"))
	assert.ErrorIs(t, m.MarkDeletedBy("carol"), ErrNotMessageMember)
	assert.Equal(t, "bob", m.OtherParty("alice"))
}

func Test_Message_Preview(t *testing.T) {
	t.Run("truncates by rune", func(t *testing.T) {
		m, err := NewMessage("m1", "alice", "bob", valueobjects.MessageKindText, "你好世界呀", "", valueobjects.DeliveryStatusDelivered, "", t0)
		require.NoError(t, err)
		assert.Equal(t, "你好世...", m.Preview(3))
		assert.Equal(t, "你好世界呀", m.Preview(5))
	})

	t.Run("image placeholder", func(t *testing.T) {
		m, err := NewMessage("m1", "alice", "bob", valueobjects.MessageKindImage, "", "uploads/a.png", valueobjects.DeliveryStatusDelivered, "", t0)
		require.NoError(t, err)
		assert.Equal(t, "[image]", m.Preview(10))
	})

	t.Run("link prefix", func(t *testing.T) {
		m, err := NewMessage("m1", "alice", "bob", valueobjects.MessageKindLink, "https://x.io", "", valueobjects.DeliveryStatusDelivered, "", t0)
		require.NoError(t, err)
		assert.Equal(t, "[link] https://x.io", m.Preview(50))
	})
}

func Test_MessageDTO_RoundTrip(t *testing.T) {
	m := newTextMessage(t, valueobjects.DeliveryStatusBlocked, valueobjects.BlockReasonKnockUsed)
	back := FromMessageDTO(m.ToDTO())
	assert.Equal(t, m, back)
}
