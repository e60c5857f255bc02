package application

import (
	"time"

	"github.com/wyfcoding/shoppingcart/internal/cart/domain"
)

// ItemView 商品条目的对外表示，数量字段沿用 amount
type ItemView struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	Quantity    int    `json:"amount"`
}

// CartView 购物车的对外表示
type CartView struct {
	ID          int64              `json:"id"`
	Products    map[int64]ItemView `json:"products"`
	LastUpdated time.Time          `json:"lastUpdated"`
}

func toCartView(c domain.Cart) CartView {
	products := make(map[int64]ItemView, len(c.Items))
	for id, item := range c.Items {
		products[id] = ItemView{
			ID:          item.ID,
			Description: item.Description,
			Quantity:    item.Quantity,
		}
	}
	return CartView{
		ID:          c.ID,
		Products:    products,
		LastUpdated: c.LastActivity,
	}
}

func toDomainItems(items map[int64]ItemView) map[int64]domain.Item {
	out := make(map[int64]domain.Item, len(items))
	for id, item := range items {
		out[id] = domain.Item{
			ID:          item.ID,
			Description: item.Description,
			Quantity:    item.Quantity,
		}
	}
	return out
}
