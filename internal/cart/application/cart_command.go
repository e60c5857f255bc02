package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/wyfcoding/shoppingcart/internal/cart/domain"
	"github.com/wyfcoding/shoppingcart/pkg/logger"
	"github.com/wyfcoding/shoppingcart/pkg/metrics"
)

// AddItemsCommand 向购物车合并商品命令
type AddItemsCommand struct {
	CartID int64
	Items  map[int64]ItemView
}

// DeleteCartCommand 删除购物车命令
type DeleteCartCommand struct {
	CartID int64
}

// CartCommandService 购物车命令服务
type CartCommandService struct {
	repo      domain.CartRepository
	publisher domain.EventPublisher
	clock     domain.Clock
	metrics   metrics.CartCollector
	window    time.Duration
}

// NewCartCommandService 创建购物车命令服务实例
func NewCartCommandService(
	repo domain.CartRepository,
	publisher domain.EventPublisher,
	clock domain.Clock,
	collector metrics.CartCollector,
	window time.Duration,
) *CartCommandService {
	return &CartCommandService{
		repo:      repo,
		publisher: publisher,
		clock:     clock,
		metrics:   collector,
		window:    window,
	}
}

// CreateCart 创建空购物车
func (s *CartCommandService) CreateCart(ctx context.Context) CartView {
	cart := s.repo.Create()

	s.metrics.RecordCartCreated()
	s.metrics.SetActiveCarts(s.repo.Len())
	logger.Debug(ctx, "cart created", "cart_id", cart.ID)

	s.publish(ctx, domain.TopicCartCreated, cart.ID, domain.CartCreatedEvent{
		CartID:    cart.ID,
		Timestamp: cart.LastActivity,
	})
	return toCartView(cart)
}

// AddItems 合并商品到购物车，同 ID 的商品被覆盖
func (s *CartCommandService) AddItems(ctx context.Context, cmd AddItemsCommand) (CartView, error) {
	items := toDomainItems(cmd.Items)
	if err := domain.ValidateItems(items); err != nil {
		return CartView{}, err
	}

	cart, err := s.repo.Merge(cmd.CartID, items)
	if err != nil {
		return CartView{}, translate(cmd.CartID, err)
	}

	ids := make([]int64, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	s.publish(ctx, domain.TopicCartItemsAdded, cart.ID, domain.CartItemsAddedEvent{
		CartID:    cart.ID,
		ItemIDs:   ids,
		ItemCount: len(cart.Items),
		Timestamp: cart.LastActivity,
	})
	return toCartView(cart), nil
}

// DeleteCart 删除购物车
func (s *CartCommandService) DeleteCart(ctx context.Context, cmd DeleteCartCommand) error {
	if err := s.repo.Delete(cmd.CartID); err != nil {
		return translate(cmd.CartID, err)
	}

	s.metrics.RecordCartDeleted()
	s.metrics.SetActiveCarts(s.repo.Len())

	s.publish(ctx, domain.TopicCartDeleted, cmd.CartID, domain.CartDeletedEvent{
		CartID:    cmd.CartID,
		Timestamp: s.clock.Now(),
	})
	return nil
}

// RunEvictionSweep 清理所有超过不活跃窗口的购物车，返回被清理的 ID。
// 单次执行中的 panic 会被恢复并记录，不会向上传播。
func (s *CartCommandService) RunEvictionSweep(ctx context.Context) (evicted []int64) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "cart eviction sweep panicked", "panic", r)
		}
	}()

	defer logger.LogDuration(ctx, "cart eviction sweep finished", "inactivity_window", s.window.String())()

	start := time.Now()
	now := s.clock.Now()
	evicted = s.repo.SweepExpired(now, s.window)

	s.metrics.RecordSweep(len(evicted), time.Since(start))
	s.metrics.SetActiveCarts(s.repo.Len())

	for _, id := range evicted {
		logger.Info(ctx, "cart evicted for inactivity",
			"cart_id", id,
			"inactivity_window", s.window.String(),
		)
		s.publish(ctx, domain.TopicCartEvicted, id, domain.CartEvictedEvent{
			CartID:           id,
			InactivityWindow: s.window.String(),
			Timestamp:        now,
		})
	}
	return evicted
}

// publish 发布事件，失败只记录日志，不影响调用方
func (s *CartCommandService) publish(ctx context.Context, topic string, cartID int64, event any) {
	if err := s.publisher.Publish(ctx, topic, strconv.FormatInt(cartID, 10), event); err != nil {
		s.metrics.RecordPublishFailure(topic)
		logger.Warn(ctx, "failed to publish cart event",
			"topic", topic,
			"cart_id", cartID,
			"error", err,
		)
	}
}

// translate 将存储层的 ErrCartNotFound 转换为携带 ID 的错误
func translate(id int64, err error) error {
	if errors.Is(err, domain.ErrCartNotFound) {
		return domain.NewCartNotFoundError(id)
	}
	return fmt.Errorf("cart %d: %w", id, err)
}
