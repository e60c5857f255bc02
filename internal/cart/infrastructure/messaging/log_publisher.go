package messaging

import (
	"context"
	"log/slog"

	"github.com/wyfcoding/shoppingcart/internal/cart/domain"
)

// LogEventPublisher 在未启用 Kafka 时把事件写入结构化日志
type LogEventPublisher struct {
	logger *slog.Logger
}

var _ domain.EventPublisher = (*LogEventPublisher)(nil)

// NewLogEventPublisher 创建日志事件发布器
func NewLogEventPublisher(logger *slog.Logger) *LogEventPublisher {
	return &LogEventPublisher{logger: logger}
}

// Publish 以 info 级别记录事件
func (p *LogEventPublisher) Publish(ctx context.Context, topic string, key string, event any) error {
	p.logger.InfoContext(ctx, "cart event",
		"topic", topic,
		"key", key,
		"event", event,
	)
	return nil
}
