package domain

import (
	"context"
	"time"
)

// 事件主题
const (
	TopicCartCreated    = "cart.created"
	TopicCartItemsAdded = "cart.items.added"
	TopicCartDeleted    = "cart.deleted"
	TopicCartEvicted    = "cart.evicted"
)

// EventPublisher 领域事件发布接口
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, event any) error
}

// CartCreatedEvent 购物车创建事件
type CartCreatedEvent struct {
	CartID    int64     `json:"cart_id"`
	Timestamp time.Time `json:"timestamp"`
}

// CartItemsAddedEvent 购物车添加商品事件
type CartItemsAddedEvent struct {
	CartID    int64     `json:"cart_id"`
	ItemIDs   []int64   `json:"item_ids"`
	ItemCount int       `json:"item_count"`
	Timestamp time.Time `json:"timestamp"`
}

// CartDeletedEvent 购物车删除事件
type CartDeletedEvent struct {
	CartID    int64     `json:"cart_id"`
	Timestamp time.Time `json:"timestamp"`
}

// CartEvictedEvent 购物车因不活跃被清理事件
type CartEvictedEvent struct {
	CartID           int64     `json:"cart_id"`
	InactivityWindow string    `json:"inactivity_window"`
	Timestamp        time.Time `json:"timestamp"`
}
