package domain

import (
	"fmt"
	"time"
)

// Item 购物车中的一个商品条目
type Item struct {
	ID          int64
	Description string
	Quantity    int
}

// Validate 校验条目，数量不能为负
func (i Item) Validate() error {
	if i.Quantity < 0 {
		return fmt.Errorf("item %d: %w", i.ID, ErrInvalidQuantity)
	}
	return nil
}

// Cart 购物车实体，仅由存储持有，对外只暴露快照
type Cart struct {
	ID    int64
	Items map[int64]Item
	// 最近一次创建或合并的时间，读取不会更新它
	LastActivity time.Time
}

// NewCart 创建一个空购物车
func NewCart(id int64, now time.Time) *Cart {
	return &Cart{
		ID:           id,
		Items:        make(map[int64]Item),
		LastActivity: now,
	}
}

// Merge 按 key 覆盖写入条目（后写者胜，不累加数量），并刷新活跃时间
func (c *Cart) Merge(items map[int64]Item, now time.Time) {
	for id, item := range items {
		c.Items[id] = item
	}
	c.LastActivity = now
}

// Snapshot 返回深拷贝，调用方对其修改不会影响存储中的状态
func (c *Cart) Snapshot() Cart {
	items := make(map[int64]Item, len(c.Items))
	for id, item := range c.Items {
		items[id] = item
	}
	return Cart{
		ID:           c.ID,
		Items:        items,
		LastActivity: c.LastActivity,
	}
}

// IsExpired 判断购物车是否超过不活跃窗口，边界值（恰好等于窗口）视为过期。
// lastActivity 晚于 now 时返回 false。
func IsExpired(now, lastActivity time.Time, window time.Duration) bool {
	return now.Sub(lastActivity) >= window
}

// ValidateItems 校验一批待合并的条目
func ValidateItems(items map[int64]Item) error {
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}
