package external

import (
	"context"
	"encoding/json"

	"go-dm/internal/application/ports"
	"go-dm/internal/domain/entities"
	"go-dm/internal/mq"
)

// KafkaEventPublisher 将消息提交事件写入 Kafka，key 为规范化的用户对
type KafkaEventPublisher struct {
	producer *mq.KafkaProducer
	logger   ports.LogService
}

// NewKafkaEventPublisher producer 为 nil 时发布为空操作
func NewKafkaEventPublisher(producer *mq.KafkaProducer, logger ports.LogService) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, logger: logger}
}

// PublishMessage 非阻塞发布
func (p *KafkaEventPublisher) PublishMessage(ctx context.Context, event *ports.MessageEvent) {
	if p == nil || p.producer == nil || event == nil {
		return
	}
	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Error(ctx, "事件序列化失败", err, map[string]interface{}{"messageId": event.MessageID})
		return
	}
	key := PairPartitionKey(event.SenderID, event.ReceiverID)
	if !p.producer.Publish(value, []byte(key)) {
		p.logger.Warn(ctx, "事件发布被丢弃", map[string]interface{}{"messageId": event.MessageID, "type": event.Type})
	}
}

// PairPartitionKey 同一对用户的事件进入同一分区
func PairPartitionKey(a, b string) string {
	k := entities.NewPairKey(a, b)
	return k.Low + ":" + k.High
}
