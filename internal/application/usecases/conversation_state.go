package usecases

import (
	"context"

	"github.com/pkg/errors"

	"go-dm/internal/application/ports"
	"go-dm/internal/domain/entities"
	"go-dm/internal/domain/valueobjects"
)

// Transition 一次推进的结果
type Transition struct {
	Pair        *entities.ConversationPair
	Created     bool
	Established bool
}

// ConversationStateMachine 会话对状态机：Pending → Established，Established 为吸收态
// 状态转换使用存储层 CAS，只有一个并发写者能完成转换，失败者不重试
type ConversationStateMachine struct {
	pairs     ports.PairRepository
	greetings ports.GreetingRepository
	metrics   ports.MetricsService
	logger    ports.LogService
}

// NewConversationStateMachine 创建会话状态机
func NewConversationStateMachine(pairs ports.PairRepository, greetings ports.GreetingRepository, metrics ports.MetricsService, logger ports.LogService) *ConversationStateMachine {
	return &ConversationStateMachine{pairs: pairs, greetings: greetings, metrics: metrics, logger: logger}
}

// Get 获取会话对
func (sm *ConversationStateMachine) Get(ctx context.Context, a, b string) (*entities.ConversationPair, error) {
	return sm.pairs.Get(ctx, entities.NewPairKey(a, b))
}

// Advance 根据已落库的消息推进会话对
// relation 为发送方视角的关系，只在首次创建会话对时使用
func (sm *ConversationStateMachine) Advance(ctx context.Context, msg *entities.Message, relation valueobjects.RelationType) (*Transition, error) {
	if !msg.Status().DrivesConversation() {
		return &Transition{}, nil
	}
	candidate := entities.NewConversationPair(msg.SenderID(), msg.ReceiverID(), relation, msg.CreatedAt())
	created, err := sm.pairs.CreateIfAbsent(ctx, candidate)
	if err != nil {
		return nil, errors.Wrap(err, "stateMachine.Advance.CreateIfAbsent")
	}
	if created {
		return &Transition{Pair: candidate, Created: true}, nil
	}

	key := candidate.Key
	pair, err := sm.pairs.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, "stateMachine.Advance.Get")
	}
	if pair == nil {
		return nil, errors.Errorf("stateMachine.Advance: pair %s/%s vanished", key.Low, key.High)
	}
	if err := sm.pairs.TouchLastMessage(ctx, key, msg.CreatedAt()); err != nil {
		return nil, errors.Wrap(err, "stateMachine.Advance.TouchLastMessage")
	}
	if msg.CreatedAt().After(pair.LastMessageAt) {
		pair.LastMessageAt = msg.CreatedAt()
	}

	tr := &Transition{Pair: pair}
	if !pair.CanBeEstablishedBy(msg.SenderID()) {
		return tr, nil
	}
	ok, err := sm.pairs.CompareAndSetStatus(ctx, key, valueobjects.PairStatusPending, valueobjects.PairStatusEstablished)
	if err != nil {
		return nil, errors.Wrap(err, "stateMachine.Advance.CompareAndSetStatus")
	}
	// CAS 失败说明已被并发写者建立
	pair.Status = valueobjects.PairStatusEstablished
	if !ok {
		return tr, nil
	}
	tr.Established = true
	sm.metrics.PairEstablished()
	sm.logger.Info(ctx, "会话已建立", map[string]interface{}{
		"userLow":   key.Low,
		"userHigh":  key.High,
		"initiator": pair.InitiatorID,
		"messageId": msg.ID(),
	})
	if err := sm.greetings.DeletePair(ctx, key); err != nil {
		// 已建立的会话对不再读取招呼记录
		sm.logger.Warn(ctx, "清理招呼记录失败", map[string]interface{}{
			"userLow":  key.Low,
			"userHigh": key.High,
			"error":    err.Error(),
		})
	}
	return tr, nil
}
