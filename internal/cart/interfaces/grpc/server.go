// Package grpc 暴露购物车服务的 gRPC 健康检查与反射
package grpc

import (
	"errors"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/wyfcoding/shoppingcart/pkg/config"
	"github.com/wyfcoding/shoppingcart/pkg/metrics"
	"github.com/wyfcoding/shoppingcart/pkg/middleware"
	"github.com/wyfcoding/shoppingcart/pkg/ratelimit"
)

// ServiceName 健康检查中使用的服务名
const ServiceName = "shoppingcart.v1.CartService"

// Server gRPC 服务器，注册标准健康检查服务
type Server struct {
	srv    *grpc.Server
	health *health.Server
}

// NewServer 创建 gRPC 服务器。limiter 为 nil 时不限流。
func NewServer(collector metrics.GRPCCollector, limiter ratelimit.RateLimiter, rl config.RateLimitConfig) *Server {
	interceptors := []grpc.UnaryServerInterceptor{
		middleware.GRPCRecoveryInterceptor(),
		middleware.GRPCLoggingInterceptor(collector),
	}
	if limiter != nil {
		interceptors = append(interceptors, middleware.GRPCRateLimitInterceptor(limiter, rl))
	}

	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors...),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &Server{srv: srv, health: hs}
}

// Serve 在 lis 上阻塞提供服务。先于 Serve 完成的 Shutdown 视为正常退出。
func (s *Server) Serve(lis net.Listener) error {
	if err := s.srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// MarkNotServing 将所有服务标记为 NOT_SERVING，通知负载均衡摘除流量
func (s *Server) MarkNotServing() {
	s.health.Shutdown()
}

// Shutdown 标记 NOT_SERVING 后优雅停止
func (s *Server) Shutdown() {
	s.MarkNotServing()
	s.srv.GracefulStop()
}
