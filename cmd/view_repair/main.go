package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/IBM/sarama"
	"github.com/joho/godotenv"

	"go-dm/internal/alog"
	"go-dm/internal/application/ports"
	"go-dm/internal/application/usecases"
	"go-dm/internal/bootstrap"
	"go-dm/internal/config"
	"go-dm/internal/metrics"
	"go-dm/internal/mq"
)

// repairHandler 消费消息事件，对事件涉及的会话对做幂等重建
type repairHandler struct {
	ctx        context.Context
	reconciler *usecases.Reconciler
}

func (h *repairHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *repairHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }
func (h *repairHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var evt ports.MessageEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			alog.Logger().WithError(err).Warn("丢弃无法解析的消息事件")
		} else if evt.SenderID != "" && evt.ReceiverID != "" {
			if err := h.reconciler.RepairPair(h.ctx, evt.SenderID, evt.ReceiverID); err != nil {
				alog.Logger().WithError(err).WithField("messageId", evt.MessageID).Error("会话行重建失败")
			}
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	alog.Setup(cfg.LogLevel, cfg.LogFormat)
	if cfg.EnableMetrics {
		metrics.Init()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "view_repair")
	if err != nil {
		alog.Logger().WithError(err).Fatal("启动失败")
	}
	defer app.Close()

	go app.RunRepairLoop(ctx)

	if cfg.KafkaBrokers == "" {
		alog.Logger().Warn("DM_KAFKA_BROKERS 未配置，仅执行定时对账")
		<-ctx.Done()
		return
	}
	h := &repairHandler{ctx: ctx, reconciler: app.Reconciler}
	if err := mq.ConsumeGroup(ctx, cfg.KafkaBrokers, cfg.KafkaRepairGroup, []string{cfg.KafkaMessageTopic}, h); err != nil {
		alog.Logger().WithError(err).Fatal("消费组启动失败")
	}
}
