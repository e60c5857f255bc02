package application

import (
	"context"
	"time"

	"github.com/wyfcoding/shoppingcart/internal/cart/domain"
	"github.com/wyfcoding/shoppingcart/pkg/metrics"
)

// DefaultInactivityWindow 默认不活跃窗口
const DefaultInactivityWindow = 10 * time.Minute

// CartApplicationService 购物车服务门面，整合命令服务和查询服务
type CartApplicationService struct {
	commandService *CartCommandService
	queryService   *CartQueryService
}

// Option 配置 CartApplicationService
type Option func(*options)

type options struct {
	clock     domain.Clock
	collector metrics.CartCollector
	window    time.Duration
}

// WithClock 指定时间源
func WithClock(clock domain.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithMetrics 指定指标收集器
func WithMetrics(collector metrics.CartCollector) Option {
	return func(o *options) { o.collector = collector }
}

// WithInactivityWindow 指定不活跃窗口
func WithInactivityWindow(window time.Duration) Option {
	return func(o *options) { o.window = window }
}

// NewCartApplicationService 创建购物车服务门面实例
func NewCartApplicationService(
	repo domain.CartRepository,
	publisher domain.EventPublisher,
	opts ...Option,
) *CartApplicationService {
	o := options{
		clock:     domain.SystemClock{},
		collector: metrics.NopCollector{},
		window:    DefaultInactivityWindow,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &CartApplicationService{
		commandService: NewCartCommandService(repo, publisher, o.clock, o.collector, o.window),
		queryService:   NewCartQueryService(repo),
	}
}

// CreateCart 创建购物车
func (s *CartApplicationService) CreateCart(ctx context.Context) CartView {
	return s.commandService.CreateCart(ctx)
}

// GetCart 获取购物车，不存在时返回 *domain.CartNotFoundError
func (s *CartApplicationService) GetCart(ctx context.Context, id int64) (CartView, error) {
	return s.queryService.GetCart(ctx, id)
}

// AddItems 合并商品到购物车
func (s *CartApplicationService) AddItems(ctx context.Context, id int64, items map[int64]ItemView) (CartView, error) {
	return s.commandService.AddItems(ctx, AddItemsCommand{
		CartID: id,
		Items:  items,
	})
}

// DeleteCart 删除购物车
func (s *CartApplicationService) DeleteCart(ctx context.Context, id int64) error {
	return s.commandService.DeleteCart(ctx, DeleteCartCommand{CartID: id})
}

// RunEvictionSweep 执行一次过期清理
func (s *CartApplicationService) RunEvictionSweep(ctx context.Context) []int64 {
	return s.commandService.RunEvictionSweep(ctx)
}

// CountCarts 返回当前购物车数量
func (s *CartApplicationService) CountCarts(ctx context.Context) int {
	return s.queryService.CountCarts(ctx)
}
