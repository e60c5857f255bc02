// Package memory 提供进程内的购物车存储
package memory

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wyfcoding/shoppingcart/internal/cart/domain"
)

// CartRepository 基于读写锁保护的 map 实现 domain.CartRepository。
// 所有修改在同一把锁内完成，因此同一购物车上的操作全序执行。
type CartRepository struct {
	mu     sync.RWMutex
	carts  map[int64]*domain.Cart
	nextID atomic.Int64
	clock  domain.Clock
}

var _ domain.CartRepository = (*CartRepository)(nil)

// NewCartRepository 创建内存购物车存储，ID 从 1 开始分配
func NewCartRepository(clock domain.Clock) *CartRepository {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &CartRepository{
		carts: make(map[int64]*domain.Cart),
		clock: clock,
	}
}

// Create 分配 ID 并保存空购物车
func (r *CartRepository) Create() domain.Cart {
	id := r.nextID.Add(1)

	r.mu.Lock()
	defer r.mu.Unlock()

	cart := domain.NewCart(id, r.clock.Now())
	r.carts[id] = cart
	return cart.Snapshot()
}

// Get 返回购物车快照
func (r *CartRepository) Get(id int64) (domain.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.carts[id]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	return cart.Snapshot(), nil
}

// Merge 写入条目并刷新活跃时间
func (r *CartRepository) Merge(id int64, items map[int64]domain.Item) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cart, ok := r.carts[id]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	cart.Merge(items, r.clock.Now())
	return cart.Snapshot(), nil
}

// Delete 删除购物车
func (r *CartRepository) Delete(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.carts[id]; !ok {
		return domain.ErrCartNotFound
	}
	delete(r.carts, id)
	return nil
}

// SweepExpired 在一次加锁内选出并删除所有过期购物车
func (r *CartRepository) SweepExpired(now time.Time, window time.Duration) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []int64
	for id, cart := range r.carts {
		if domain.IsExpired(now, cart.LastActivity, window) {
			evicted = append(evicted, id)
		}
	}
	for _, id := range evicted {
		delete(r.carts, id)
	}
	slices.Sort(evicted)
	return evicted
}

// Len 返回当前购物车数量
func (r *CartRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.carts)
}
