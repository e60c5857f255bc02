package domain

import "time"

// CartRepository 购物车存储接口。实现需保证并发安全，且只返回快照。
type CartRepository interface {
	// Create 分配下一个 ID 并保存一个空购物车
	Create() Cart
	// Get 返回购物车快照，不更新活跃时间
	Get(id int64) (Cart, error)
	// Merge 原子地检查存在性、写入条目并刷新活跃时间
	Merge(id int64, items map[int64]Item) (Cart, error)
	// Delete 删除购物车，不存在时返回 ErrCartNotFound
	Delete(id int64) error
	// SweepExpired 删除所有 now - lastActivity >= window 的购物车，按 ID 升序返回
	SweepExpired(now time.Time, window time.Duration) []int64
	// Len 返回当前购物车数量
	Len() int
}
