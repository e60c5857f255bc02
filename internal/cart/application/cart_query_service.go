package application

import (
	"context"

	"github.com/wyfcoding/shoppingcart/internal/cart/domain"
)

// CartQueryService 购物车查询服务
type CartQueryService struct {
	repo domain.CartRepository
}

// NewCartQueryService 创建购物车查询服务实例
func NewCartQueryService(
	repo domain.CartRepository,
) *CartQueryService {
	return &CartQueryService{
		repo: repo,
	}
}

// GetCart 根据 ID 获取购物车，不会刷新活跃时间
func (s *CartQueryService) GetCart(_ context.Context, id int64) (CartView, error) {
	cart, err := s.repo.Get(id)
	if err != nil {
		return CartView{}, translate(id, err)
	}
	return toCartView(cart), nil
}

// CountCarts 返回当前存活的购物车数量
func (s *CartQueryService) CountCarts(_ context.Context) int {
	return s.repo.Len()
}
