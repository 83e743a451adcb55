package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/aihub/ai-gateway/internal/logger"
	"github.com/aihub/ai-gateway/internal/models"
	"go.uber.org/zap"
)

// UsageEventHandler 用量事件处理函数
type UsageEventHandler func(ctx context.Context, event *models.UsageEvent) error

// Consumer 用量事件消费者
//
// 网关自身发布用量事件，消费侧用于对账与审计日志，
// 处理失败不标记offset，等待下一轮重试。
type Consumer struct {
	group   sarama.ConsumerGroup
	groupID string
	topic   string
	handler UsageEventHandler
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var globalConsumer *Consumer

// InitConsumer 初始化用量事件消费者
func InitConsumer(brokers []string, groupID, topic string, handler UsageEventHandler) error {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Return.Errors = true
	config.Version = sarama.V2_6_0_0

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return fmt.Errorf("创建Kafka消费者组失败: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	globalConsumer = &Consumer{
		group:   group,
		groupID: groupID,
		topic:   topic,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}

	logger.Info("Kafka消费者初始化成功",
		zap.Strings("brokers", brokers),
		zap.String("group_id", groupID),
		zap.String("topic", topic))

	globalConsumer.start()

	return nil
}

// GetConsumer 获取全局消费者实例
func GetConsumer() *Consumer {
	return globalConsumer
}

// start 启动消费循环
func (c *Consumer) start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				logger.Info("Kafka消费者停止")
				return
			default:
				handler := &usageEventGroupHandler{handler: c.handler}
				if err := c.group.Consume(c.ctx, []string{c.topic}, handler); err != nil {
					logger.Error("消费用量事件失败", zap.Error(err))
					time.Sleep(5 * time.Second)
				}
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range c.group.Errors() {
			logger.Error("Kafka消费者错误", zap.Error(err))
		}
	}()
}

// Close 关闭消费者
func (c *Consumer) Close() error {
	if c == nil {
		return nil
	}
	c.cancel()
	c.wg.Wait()
	if c.group != nil {
		return c.group.Close()
	}
	return nil
}

// usageEventGroupHandler 消费者组处理器
type usageEventGroupHandler struct {
	handler UsageEventHandler
}

// Setup 会话开始
func (h *usageEventGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup 会话结束
func (h *usageEventGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim 消费消息
func (h *usageEventGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			var event models.UsageEvent
			if err := json.Unmarshal(message.Value, &event); err != nil {
				// 格式损坏的消息直接跳过，避免卡住分区
				logger.Warn("用量事件解析失败，跳过",
					zap.String("topic", message.Topic),
					zap.Int64("offset", message.Offset),
					zap.Error(err))
				session.MarkMessage(message, "")
				continue
			}

			if err := h.handler(session.Context(), &event); err != nil {
				logger.Error("处理用量事件失败",
					zap.String("event_id", event.EventID),
					zap.Int("partition", int(message.Partition)),
					zap.Int64("offset", message.Offset),
					zap.Error(err))
				// 不标记消息，等待重试
				continue
			}

			session.MarkMessage(message, "")
			logger.Debug("用量事件处理成功",
				zap.String("event_id", event.EventID),
				zap.Int64("offset", message.Offset))

		case <-session.Context().Done():
			return nil
		}
	}
}

// LogUsageEvent 默认用量事件处理器：结构化落日志供对账
func LogUsageEvent(_ context.Context, event *models.UsageEvent) error {
	logger.Info("Usage event consumed",
		zap.String("event_id", event.EventID),
		zap.String("user_id", event.UserID),
		zap.String("interaction", event.Interaction),
		zap.String("credit_type", event.CreditType),
		zap.Int("credits_used", event.CreditsUsed),
		zap.Int("tokens_used", event.TokensUsed),
		zap.String("status", event.Status))
	return nil
}
