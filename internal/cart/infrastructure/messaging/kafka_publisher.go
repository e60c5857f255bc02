// Package messaging 提供购物车领域事件的发布实现
package messaging

import (
	"context"
	"fmt"

	"github.com/wyfcoding/shoppingcart/internal/cart/domain"
)

// MessageSender 是 mq.KafkaProducer 的发送能力
type MessageSender interface {
	SendMessage(ctx context.Context, topic string, key string, value any) error
}

// KafkaEventPublisher 将领域事件写入 Kafka，主题即事件主题
type KafkaEventPublisher struct {
	sender MessageSender
}

var _ domain.EventPublisher = (*KafkaEventPublisher)(nil)

// NewKafkaEventPublisher 创建 Kafka 事件发布器
func NewKafkaEventPublisher(sender MessageSender) *KafkaEventPublisher {
	return &KafkaEventPublisher{sender: sender}
}

// Publish 发布事件，key 为购物车 ID，保证同一购物车的事件有序
func (p *KafkaEventPublisher) Publish(ctx context.Context, topic string, key string, event any) error {
	if err := p.sender.SendMessage(ctx, topic, key, event); err != nil {
		return fmt.Errorf("publish %s event for cart %s: %w", topic, key, err)
	}
	return nil
}
