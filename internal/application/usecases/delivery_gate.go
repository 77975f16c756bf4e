package usecases

import (
	"context"

	"github.com/pkg/errors"

	"go-dm/internal/application/ports"
	"go-dm/internal/domain/entities"
	"go-dm/internal/domain/valueobjects"
)

// Decision 投递闸门的判定结果
type Decision struct {
	Status valueobjects.DeliveryStatus
	Reason valueobjects.BlockReason
	// Relation 发送方视角的关系；因拉黑提前返回时为空
	Relation valueobjects.RelationType
	// Pair 判定时读到的会话对，可能为 nil
	Pair *entities.ConversationPair
}

// DeliveryGate 投递闸门：对每次发送做分类，只读不写
//
// 判定顺序（先命中先返回）：
//  1. 接收方拉黑了发送方 → Blocked
//  2. 发送方拉黑了接收方 → Blocked（仅发送方可见）
//  3. 互相关注 → Delivered
//  4. 单向关注且接收方允许非互关私信 → Delivered
//  5. 系统或接收方不接收陌生人私信 → Blocked，已建立的会话对也不例外
//  6. 会话对已建立，或 Pending 且接收方是发起方（即回复对方的招呼）→ Delivered
//  7. 首次接触：已用掉招呼额度 → Blocked；否则 Pending
type DeliveryGate struct {
	blocks    ports.BlockRepository
	oracle    ports.RelationshipOracle
	prefs     *PreferenceUseCase
	greetings ports.GreetingRepository
	pairs     ports.PairRepository
	// systemAllowStranger 系统级陌生人私信开关，与用户偏好取与
	systemAllowStranger bool
}

// NewDeliveryGate 创建投递闸门
func NewDeliveryGate(
	blocks ports.BlockRepository,
	oracle ports.RelationshipOracle,
	prefs *PreferenceUseCase,
	greetings ports.GreetingRepository,
	pairs ports.PairRepository,
	systemAllowStranger bool,
) *DeliveryGate {
	return &DeliveryGate{
		blocks:              blocks,
		oracle:              oracle,
		prefs:               prefs,
		greetings:           greetings,
		pairs:               pairs,
		systemAllowStranger: systemAllowStranger,
	}
}

// Classify 判定 sender → receiver 的一次发送
func (g *DeliveryGate) Classify(ctx context.Context, senderID, receiverID string) (*Decision, error) {
	blocked, err := g.blocks.Exists(ctx, receiverID, senderID)
	if err != nil {
		return nil, errors.Wrap(err, "gate.Classify.ReceiverBlock")
	}
	if blocked {
		return blockedDecision(valueobjects.BlockReasonReceiverBlocked), nil
	}
	blocked, err = g.blocks.Exists(ctx, senderID, receiverID)
	if err != nil {
		return nil, errors.Wrap(err, "gate.Classify.SenderBlock")
	}
	if blocked {
		return blockedDecision(valueobjects.BlockReasonSenderBlocked), nil
	}

	relation, err := g.oracle.GetRelation(ctx, senderID, receiverID)
	if err != nil {
		return nil, errors.Wrap(err, "gate.Classify.GetRelation")
	}
	d := &Decision{Relation: relation}
	if relation == valueobjects.RelationMutual {
		d.Status = valueobjects.DeliveryStatusDelivered
		return d, nil
	}

	pref, err := g.prefs.Get(ctx, receiverID)
	if err != nil {
		return nil, errors.Wrap(err, "gate.Classify.Preference")
	}
	if relation == valueobjects.RelationFollowing && pref.AllowNonMutualFollowMessage {
		d.Status = valueobjects.DeliveryStatusDelivered
		return d, nil
	}

	if !g.systemAllowStranger || !pref.AllowStrangerMessage {
		d.Status = valueobjects.DeliveryStatusBlocked
		d.Reason = valueobjects.BlockReasonStrangerDisallowed
		return d, nil
	}

	// 会话对只免除招呼额度，不绕过陌生人开关
	pair, err := g.pairs.Get(ctx, entities.NewPairKey(senderID, receiverID))
	if err != nil {
		return nil, errors.Wrap(err, "gate.Classify.Pair")
	}
	d.Pair = pair
	if pair.IsEstablished() || pair.CanBeEstablishedBy(senderID) {
		d.Status = valueobjects.DeliveryStatusDelivered
		return d, nil
	}

	// 首次接触
	used, err := g.greetings.Exists(ctx, senderID, receiverID)
	if err != nil {
		return nil, errors.Wrap(err, "gate.Classify.Greeting")
	}
	if used {
		d.Status = valueobjects.DeliveryStatusBlocked
		d.Reason = valueobjects.BlockReasonKnockUsed
		return d, nil
	}
	d.Status = valueobjects.DeliveryStatusPending
	return d, nil
}

func blockedDecision(reason valueobjects.BlockReason) *Decision {
	return &Decision{Status: valueobjects.DeliveryStatusBlocked, Reason: reason}
}
