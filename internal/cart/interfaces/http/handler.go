// Package http 提供购物车的 HTTP 接口
package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/shoppingcart/internal/cart/application"
	"github.com/wyfcoding/shoppingcart/internal/cart/domain"
	"github.com/wyfcoding/shoppingcart/pkg/logger"
)

// CodeInvalidRequest 请求参数非法的错误码
const CodeInvalidRequest = "INVALID_REQUEST"

// CartService HTTP 层依赖的购物车服务
type CartService interface {
	CreateCart(ctx context.Context) application.CartView
	GetCart(ctx context.Context, id int64) (application.CartView, error)
	AddItems(ctx context.Context, id int64, items map[int64]application.ItemView) (application.CartView, error)
	DeleteCart(ctx context.Context, id int64) error
	CountCarts(ctx context.Context) int
}

// ErrorResponse 错误响应体
type ErrorResponse struct {
	ErrorMessage string `json:"errorMessage"`
	ErrorCode    string `json:"errorCode"`
}

// CartHandler HTTP 处理器
// 负责处理与购物车相关的 HTTP 请求
type CartHandler struct {
	svc         CartService
	serviceName string
}

// NewCartHandler 创建 HTTP 处理器实例
func NewCartHandler(svc CartService, serviceName string) *CartHandler {
	return &CartHandler{svc: svc, serviceName: serviceName}
}

// RegisterRoutes 注册路由，/carts 与 /api/v1/carts 指向同一组处理函数
func (h *CartHandler) RegisterRoutes(router gin.IRouter) {
	for _, prefix := range []string{"/carts", "/api/v1/carts"} {
		api := router.Group(prefix)
		{
			api.POST("", h.CreateCart)       // 创建购物车
			api.GET("/:id", h.GetCart)       // 获取购物车
			api.POST("/:id", h.AddItems)     // 合并商品
			api.DELETE("/:id", h.DeleteCart) // 删除购物车
		}
	}
	router.GET("/health", h.Health)
}

// CreateCart 创建购物车
func (h *CartHandler) CreateCart(c *gin.Context) {
	view := h.svc.CreateCart(c.Request.Context())
	c.JSON(http.StatusCreated, view)
}

// GetCart 获取购物车
func (h *CartHandler) GetCart(c *gin.Context) {
	id, ok := h.cartID(c)
	if !ok {
		return
	}

	view, err := h.svc.GetCart(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// AddItems 合并商品，请求体为 商品ID -> 商品 的映射
func (h *CartHandler) AddItems(c *gin.Context) {
	id, ok := h.cartID(c)
	if !ok {
		return
	}

	var items map[int64]application.ItemView
	if err := c.ShouldBindJSON(&items); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return
	}

	view, err := h.svc.AddItems(c.Request.Context(), id, items)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeleteCart 删除购物车，成功时响应体为空
func (h *CartHandler) DeleteCart(c *gin.Context) {
	id, ok := h.cartID(c)
	if !ok {
		return
	}

	if err := h.svc.DeleteCart(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// Health 健康检查
func (h *CartHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.serviceName,
		"carts":   h.svc.CountCarts(c.Request.Context()),
	})
}

func (h *CartHandler) cartID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.badRequest(c, "invalid cart id: "+c.Param("id"))
		return 0, false
	}
	return id, true
}

func (h *CartHandler) badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		ErrorMessage: msg,
		ErrorCode:    CodeInvalidRequest,
	})
}

// handleError 将领域错误映射为 HTTP 响应
func (h *CartHandler) handleError(c *gin.Context, err error) {
	var notFound *domain.CartNotFoundError
	switch {
	case errors.As(err, &notFound):
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{
			ErrorMessage: notFound.Error(),
			ErrorCode:    notFound.Code(),
		})
	case errors.Is(err, domain.ErrInvalidQuantity):
		h.badRequest(c, err.Error())
	default:
		logger.Error(c.Request.Context(), "cart request failed", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
			ErrorMessage: "internal server error",
			ErrorCode:    "INTERNAL",
		})
	}
}
