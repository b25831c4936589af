// Package messaging 期权领域事件发布
package messaging

import (
	"context"
	"log/slog"

	"github.com/wyfcoding/vectorplus/internal/options/domain"
	"github.com/wyfcoding/vectorplus/pkg/metrics"
	"github.com/wyfcoding/vectorplus/pkg/mq"
	"github.com/wyfcoding/vectorplus/pkg/protocol"
)

// JSONSender mq.Producer 的发送能力
type JSONSender interface {
	SendJSON(ctx context.Context, topic, key string, value any, headers map[string]string) error
}

// KafkaPublisher 以事件名为 header 写入同一个 topic，按期权 ID 分区
type KafkaPublisher struct {
	sender  JSONSender
	topic   string
	metrics *metrics.Metrics
}

func NewKafkaPublisher(sender JSONSender, topic string, m *metrics.Metrics) *KafkaPublisher {
	return &KafkaPublisher{sender: sender, topic: topic, metrics: m}
}

var (
	_ domain.EventPublisher = (*KafkaPublisher)(nil)
	_ JSONSender            = (*mq.Producer)(nil)
)

func (p *KafkaPublisher) Publish(ctx context.Context, key string, event domain.DomainEvent) error {
	err := p.sender.SendJSON(ctx, p.topic, key, event, map[string]string{"event": event.EventName()})
	if p.metrics != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		p.metrics.EventsPublished.WithLabelValues(p.topic, result).Inc()
	}
	return err
}

// LogPublisher 未启用 Kafka 时只记录日志
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, key string, event domain.DomainEvent) error {
	p.logger.InfoContext(ctx, "domain event", "event", event.EventName(), "key", key, "occurred_at", event.OccurredAt())
	return nil
}

// EventKey 事件分区键
func EventKey(id protocol.Hash) string { return id.Hex() }
