package mq

import (
	"context"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// KafkaProducer 异步生产者简易封装，发送失败只打日志
type KafkaProducer struct {
	Async sarama.AsyncProducer
	Topic string
}

func NewKafkaProducer(brokersCSV, topic string) (*KafkaProducer, error) {
	brokers := SplitBrokers(brokersCSV)
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers 为空")
	}
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = false
	cfg.Producer.Return.Errors = true
	// 同一对用户的事件落到同一分区
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	p, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "sarama.NewAsyncProducer")
	}
	go func() {
		for perr := range p.Errors() {
			log.WithField("topic", topic).WithError(perr.Err).Warn("kafka 发送失败")
		}
	}()
	return &KafkaProducer{Async: p, Topic: topic}, nil
}

// Publish 非阻塞写入，缓冲区满时丢弃
func (p *KafkaProducer) Publish(value []byte, key []byte) bool {
	if p == nil || p.Async == nil {
		return false
	}
	msg := &sarama.ProducerMessage{Topic: p.Topic, Key: sarama.ByteEncoder(key), Value: sarama.ByteEncoder(value)}
	select {
	case p.Async.Input() <- msg:
		return true
	default:
		return false
	}
}

func (p *KafkaProducer) Close() error {
	if p == nil || p.Async == nil {
		return nil
	}
	return p.Async.Close()
}

// ConsumeGroup 以消费组方式持续消费，直到 ctx 取消
func ConsumeGroup(ctx context.Context, brokersCSV, groupID string, topics []string, h sarama.ConsumerGroupHandler) error {
	cfg := sarama.NewConfig()
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	client, err := sarama.NewConsumerGroup(SplitBrokers(brokersCSV), groupID, cfg)
	if err != nil {
		return errors.Wrap(err, "sarama.NewConsumerGroup")
	}
	defer client.Close()

	for {
		if err := client.Consume(ctx, topics, h); err != nil {
			log.WithField("group", groupID).WithError(err).Error("consume error")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// SplitBrokers 解析逗号分隔的 broker 列表
func SplitBrokers(csv string) []string {
	var out []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
