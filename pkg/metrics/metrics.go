// Package metrics 提供 Prometheus 指标定义、注册与暴露
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/shoppingcart/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数，按 method/path/status 区分
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// gRPC 请求计数
	GRPCRequestsTotal *prometheus.CounterVec

	// 业务指标
	CartsActive         prometheus.Gauge
	CartsCreatedTotal   prometheus.Counter
	CartsDeletedTotal   prometheus.Counter
	CartsEvictedTotal   prometheus.Counter
	CartSweepDuration   prometheus.Histogram
	EventsPublishFailed *prometheus.CounterVec
}

// New 创建指标实例，serviceName 作为常量标签附加到所有指标
func New(serviceName string) *Metrics {
	labels := prometheus.Labels{"service": serviceName}
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "Total HTTP requests",
			ConstLabels: labels,
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "path"}),

		GRPCRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "grpc_requests_total",
			Help:        "Total gRPC requests",
			ConstLabels: labels,
		}, []string{"method", "code"}),

		CartsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "carts_active",
			Help:        "Number of carts currently held in memory",
			ConstLabels: labels,
		}),
		CartsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "carts_created_total",
			Help:        "Total carts created",
			ConstLabels: labels,
		}),
		CartsDeletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "carts_deleted_total",
			Help:        "Total carts deleted by clients",
			ConstLabels: labels,
		}),
		CartsEvictedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "carts_evicted_total",
			Help:        "Total carts evicted for inactivity",
			ConstLabels: labels,
		}),
		CartSweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "cart_sweep_duration_seconds",
			Help:        "Duration of one eviction sweep in seconds",
			ConstLabels: labels,
			Buckets:     []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}),
		EventsPublishFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "cart_events_publish_failed_total",
			Help:        "Total cart events that could not be published",
			ConstLabels: labels,
		}, []string{"topic"}),
	}
}

// Register 将所有指标注册到给定的 Registerer
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GRPCRequestsTotal,
		m.CartsActive,
		m.CartsCreatedTotal,
		m.CartsDeletedTotal,
		m.CartsEvictedTotal,
		m.CartSweepDuration,
		m.EventsPublishFailed,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return fmt.Errorf("register metric: %w", err)
		}
	}

	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// NewServer 创建 Prometheus HTTP 服务器，由调用方负责启动与关闭
func NewServer(port int, path string, gatherer prometheus.Gatherer) *http.Server {
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// CartCollector 购物车业务指标收集器接口
type CartCollector interface {
	// 记录购物车创建
	RecordCartCreated()
	// 记录购物车删除
	RecordCartDeleted()
	// 记录一次清理：被清理的数量与耗时
	RecordSweep(evicted int, duration time.Duration)
	// 更新活跃购物车数
	SetActiveCarts(count int)
	// 记录事件发布失败
	RecordPublishFailure(topic string)
}

// HTTPCollector HTTP 指标收集器接口
type HTTPCollector interface {
	RecordHTTPRequest(method, path string, statusCode int, duration time.Duration)
}

// GRPCCollector gRPC 指标收集器接口
type GRPCCollector interface {
	RecordGRPCRequest(method, code string)
}

// DefaultCollector 默认指标收集器实现
type DefaultCollector struct {
	metrics *Metrics
}

// NewDefaultCollector 创建默认指标收集器
func NewDefaultCollector(metrics *Metrics) *DefaultCollector {
	return &DefaultCollector{metrics: metrics}
}

// RecordHTTPRequest 记录 HTTP 请求
func (c *DefaultCollector) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	c.metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	c.metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordGRPCRequest 记录 gRPC 请求
func (c *DefaultCollector) RecordGRPCRequest(method, code string) {
	c.metrics.GRPCRequestsTotal.WithLabelValues(method, code).Inc()
}

// RecordCartCreated 记录购物车创建
func (c *DefaultCollector) RecordCartCreated() {
	c.metrics.CartsCreatedTotal.Inc()
}

// RecordCartDeleted 记录购物车删除
func (c *DefaultCollector) RecordCartDeleted() {
	c.metrics.CartsDeletedTotal.Inc()
}

// RecordSweep 记录清理结果
func (c *DefaultCollector) RecordSweep(evicted int, duration time.Duration) {
	c.metrics.CartsEvictedTotal.Add(float64(evicted))
	c.metrics.CartSweepDuration.Observe(duration.Seconds())
}

// SetActiveCarts 更新活跃购物车数
func (c *DefaultCollector) SetActiveCarts(count int) {
	c.metrics.CartsActive.Set(float64(count))
}

// RecordPublishFailure 记录事件发布失败
func (c *DefaultCollector) RecordPublishFailure(topic string) {
	c.metrics.EventsPublishFailed.WithLabelValues(topic).Inc()
}

// NopCollector 不记录任何指标，用于测试和关闭指标的场景
type NopCollector struct{}

// RecordHTTPRequest 空实现
func (NopCollector) RecordHTTPRequest(string, string, int, time.Duration) {
}

// RecordGRPCRequest 空实现
func (NopCollector) RecordGRPCRequest(string, string) {
}

// RecordCartCreated 空实现
func (NopCollector) RecordCartCreated() {
}

// RecordCartDeleted 空实现
func (NopCollector) RecordCartDeleted() {
}

// RecordSweep 空实现
func (NopCollector) RecordSweep(int, time.Duration) {
}

// SetActiveCarts 空实现
func (NopCollector) SetActiveCarts(int) {
}

// RecordPublishFailure 空实现
func (NopCollector) RecordPublishFailure(string) {
}
