package domain

import (
	"errors"
	"fmt"
)

// CodeCartNotFound 购物车不存在的错误码
const CodeCartNotFound = "CART_NOT_FOUND"

var (
	// ErrCartNotFound 购物车不存在（从未创建、已删除或已过期）
	ErrCartNotFound = errors.New("cart not found")
	// ErrInvalidQuantity 商品数量为负
	ErrInvalidQuantity = errors.New("quantity must not be negative")
)

// CartNotFoundError 携带购物车 ID 的不存在错误，errors.Is 可匹配 ErrCartNotFound
type CartNotFoundError struct {
	CartID int64
}

// NewCartNotFoundError 创建 CartNotFoundError
func NewCartNotFoundError(id int64) *CartNotFoundError {
	return &CartNotFoundError{CartID: id}
}

func (e *CartNotFoundError) Error() string {
	return fmt.Sprintf("Cart with given id: %d was not found", e.CartID)
}

// Code 返回机器可读的错误码
func (e *CartNotFoundError) Code() string {
	return CodeCartNotFound
}

func (e *CartNotFoundError) Unwrap() error {
	return ErrCartNotFound
}
