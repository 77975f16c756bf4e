package usecases

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-dm/internal/application/usecases/mocks"
	"go-dm/internal/domain/entities"
	"go-dm/internal/domain/valueobjects"
)

func newGateFixture(t *testing.T, systemAllowStranger bool) (*harness, *mocks.MockRelationshipOracle, *DeliveryGate) {
	h := newHarness(t, defaultConfig())
	oracle := mocks.NewMockRelationshipOracle(h.ctrl)
	gate := NewDeliveryGate(h.blocks, oracle, h.uc.Preferences(), h.greetings, h.pairs, systemAllowStranger)
	return h, oracle, gate
}

func Test_DeliveryGate_Classify(t *testing.T) {
	ctx := context.Background()

	t.Run("receiver block wins over mutual follow", func(t *testing.T) {
		h, _, gate := newGateFixture(t, true)
		_, err := h.blocks.Insert(ctx, &entities.BlockEdge{BlockerID: "bob", BlockedID: "alice", CreatedAt: epoch})
		require.NoError(t, err)
		_, err = h.blocks.Insert(ctx, &entities.BlockEdge{BlockerID: "alice", BlockedID: "bob", CreatedAt: epoch})
		require.NoError(t, err)

		d, err := gate.Classify(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.Equal(t, valueobjects.DeliveryStatusBlocked, d.Status)
		assert.Equal(t, valueobjects.BlockReasonReceiverBlocked, d.Reason)
	})

	t.Run("sender block", func(t *testing.T) {
		h, _, gate := newGateFixture(t, true)
		_, err := h.blocks.Insert(ctx, &entities.BlockEdge{BlockerID: "alice", BlockedID: "bob", CreatedAt: epoch})
		require.NoError(t, err)

		d, err := gate.Classify(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.Equal(t, valueobjects.BlockReasonSenderBlocked, d.Reason)
		assert.Empty(t, d.Relation)
	})

	t.Run("happy path - mutual follow delivers regardless of preferences", func(t *testing.T) {
		h, oracle, gate := newGateFixture(t, false)
		off := false
		_, err := h.uc.Preferences().Update(ctx, "bob", &PreferencePatch{AllowStrangerMessage: &off, AllowNonMutualFollowMessage: &off})
		require.NoError(t, err)
		oracle.EXPECT().GetRelation(gomock.Any(), "alice", "bob").Return(valueobjects.RelationMutual, nil)

		d, err := gate.Classify(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.Equal(t, valueobjects.DeliveryStatusDelivered, d.Status)
		assert.Equal(t, valueobjects.RelationMutual, d.Relation)
	})

	t.Run("one-way follow honours receiver preference", func(t *testing.T) {
		h, oracle, gate := newGateFixture(t, true)
		oracle.EXPECT().GetRelation(gomock.Any(), "alice", "bob").Return(valueobjects.RelationFollowing, nil).Times(2)

		d, err := gate.Classify(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.Equal(t, valueobjects.DeliveryStatusDelivered, d.Status)

		off := false
		_, err = h.uc.Preferences().Update(ctx, "bob", &PreferencePatch{AllowNonMutualFollowMessage: &off})
		require.NoError(t, err)
		d, err = gate.Classify(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.Equal(t, valueobjects.DeliveryStatusPending, d.Status)
	})

	t.Run("established pair delivers to strangers", func(t *testing.T) {
		h, oracle, gate := newGateFixture(t, true)
		pair := entities.NewConversationPair("alice", "bob", valueobjects.RelationMutual, epoch)
		_, err := h.pairs.CreateIfAbsent(ctx, pair)
		require.NoError(t, err)
		oracle.EXPECT().GetRelation(gomock.Any(), gomock.Any(), gomock.Any()).Return(valueobjects.RelationStranger, nil).Times(2)

		for _, from := range []string{"alice", "bob"} {
			d, err := gate.Classify(ctx, from, entities.NewPairKey("alice", "bob").Other(from))
			require.NoError(t, err)
			assert.Equal(t, valueobjects.DeliveryStatusDelivered, d.Status)
			require.NotNil(t, d.Pair)
		}
	})

	t.Run("established pair is blocked once the receiver stops accepting strangers", func(t *testing.T) {
		h, oracle, gate := newGateFixture(t, true)
		oracle.EXPECT().GetRelation(gomock.Any(), gomock.Any(), gomock.Any()).Return(valueobjects.RelationStranger, nil).AnyTimes()
		h.uc.gate = gate

		assert.Equal(t, "pending", h.send("alice", "bob", "hi").Outcome)
		assert.Equal(t, "delivered", h.send("bob", "alice", "hi back").Outcome)
		require.True(t, h.pair("alice", "bob").IsEstablished())

		off := false
		_, err := h.uc.Preferences().Update(ctx, "bob", &PreferencePatch{AllowStrangerMessage: &off})
		require.NoError(t, err)

		d, err := gate.Classify(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.Equal(t, valueobjects.DeliveryStatusBlocked, d.Status)
		assert.Equal(t, valueobjects.BlockReasonStrangerDisallowed, d.Reason)

		// alice 仍接收陌生人，bob 发给她不受影响
		d, err = gate.Classify(ctx, "bob", "alice")
		require.NoError(t, err)
		assert.Equal(t, valueobjects.DeliveryStatusDelivered, d.Status)
	})

	t.Run("system switch also blocks established strangers", func(t *testing.T) {
		h, oracle, gate := newGateFixture(t, false)
		_, err := h.pairs.CreateIfAbsent(ctx, entities.NewConversationPair("alice", "bob", valueobjects.RelationMutual, epoch))
		require.NoError(t, err)
		oracle.EXPECT().GetRelation(gomock.Any(), "alice", "bob").Return(valueobjects.RelationStranger, nil)

		d, err := gate.Classify(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.Equal(t, valueobjects.BlockReasonStrangerDisallowed, d.Reason)
	})

	t.Run("pending pair delivers only the reply", func(t *testing.T) {
		h, oracle, gate := newGateFixture(t, true)
		_, err := h.pairs.CreateIfAbsent(ctx, entities.NewConversationPair("alice", "bob", valueobjects.RelationStranger, epoch))
		require.NoError(t, err)
		_, err = h.greetings.InsertIfAbsent(ctx, &entities.GreetingRecord{SenderID: "alice", TargetID: "bob", CreatedAt: epoch})
		require.NoError(t, err)
		oracle.EXPECT().GetRelation(gomock.Any(), gomock.Any(), gomock.Any()).Return(valueobjects.RelationStranger, nil).Times(2)

		d, err := gate.Classify(ctx, "bob", "alice")
		require.NoError(t, err)
		assert.Equal(t, valueobjects.DeliveryStatusDelivered, d.Status)

		d, err = gate.Classify(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.Equal(t, valueobjects.DeliveryStatusBlocked, d.Status)
		assert.Equal(t, valueobjects.BlockReasonKnockUsed, d.Reason)
	})

	t.Run("stranger disallowed by system or receiver", func(t *testing.T) {
		_, oracle, gate := newGateFixture(t, false)
		oracle.EXPECT().GetRelation(gomock.Any(), "alice", "bob").Return(valueobjects.RelationStranger, nil)
		d, err := gate.Classify(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.Equal(t, valueobjects.BlockReasonStrangerDisallowed, d.Reason)

		h, oracle, gate := newGateFixture(t, true)
		off := false
		_, err = h.uc.Preferences().Update(ctx, "bob", &PreferencePatch{AllowStrangerMessage: &off})
		require.NoError(t, err)
		oracle.EXPECT().GetRelation(gomock.Any(), "alice", "bob").Return(valueobjects.RelationStranger, nil)
		d, err = gate.Classify(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.Equal(t, valueobjects.BlockReasonStrangerDisallowed, d.Reason)
	})

	t.Run("first contact is pending and does not write", func(t *testing.T) {
		h, oracle, gate := newGateFixture(t, true)
		oracle.EXPECT().GetRelation(gomock.Any(), "alice", "bob").Return(valueobjects.RelationStranger, nil)

		d, err := gate.Classify(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.Equal(t, valueobjects.DeliveryStatusPending, d.Status)
		assert.Nil(t, d.Pair)
		assert.False(t, h.greetingUsed("alice", "bob"))
	})

	t.Run("oracle failure surfaces", func(t *testing.T) {
		_, oracle, gate := newGateFixture(t, true)
		oracle.EXPECT().GetRelation(gomock.Any(), gomock.Any(), gomock.Any()).Return(valueobjects.RelationType(""), errors.New("follow service down"))

		_, err := gate.Classify(ctx, "alice", "bob")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "follow service down")
	})
}
