// CartService 主程序
// 功能：提供内存购物车的创建、查询、合并商品、删除，以及不活跃购物车的定期清理
// 架构：DDD 分层 + Gin HTTP + gRPC 健康检查 + Kafka 事件
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/shoppingcart/internal/cart/application"
	"github.com/wyfcoding/shoppingcart/internal/cart/domain"
	"github.com/wyfcoding/shoppingcart/internal/cart/infrastructure/messaging"
	"github.com/wyfcoding/shoppingcart/internal/cart/infrastructure/persistence/memory"
	cartgrpc "github.com/wyfcoding/shoppingcart/internal/cart/interfaces/grpc"
	carthttp "github.com/wyfcoding/shoppingcart/internal/cart/interfaces/http"
	"github.com/wyfcoding/shoppingcart/pkg/cache"
	"github.com/wyfcoding/shoppingcart/pkg/config"
	"github.com/wyfcoding/shoppingcart/pkg/grpcclient"
	"github.com/wyfcoding/shoppingcart/pkg/logger"
	"github.com/wyfcoding/shoppingcart/pkg/metrics"
	"github.com/wyfcoding/shoppingcart/pkg/middleware"
	"github.com/wyfcoding/shoppingcart/pkg/mq"
	"github.com/wyfcoding/shoppingcart/pkg/ratelimit"
	"github.com/wyfcoding/shoppingcart/pkg/trace"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		configPath  string
		healthcheck bool
	)
	flag.StringVar(&configPath, "config", "configs/cart/config.toml", "path to config file")
	flag.BoolVar(&healthcheck, "healthcheck", false, "probe the local gRPC health service and exit")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if healthcheck {
		if err := probe(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "unhealthy: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Fatal(context.Background(), "CartService exited with error", "error", err)
	}
	logger.Info(context.Background(), "CartService stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	logger.Info(ctx, "Starting CartService",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
		"inactivity_window", cfg.Cart.InactivityWindow.String(),
		"sweep_interval", cfg.Cart.SweepInterval.String(),
	)

	// 3. 初始化追踪
	if cfg.Tracing.Enabled {
		shutdown, err := trace.InitTracer(ctx, trace.Config{
			ServiceName:  cfg.ServiceName,
			Version:      cfg.Version,
			Environment:  cfg.Environment,
			Endpoint:     cfg.Tracing.CollectorEndpoint,
			SamplingRate: cfg.Tracing.SamplingRate,
		})
		if err != nil {
			logger.Error(ctx, "Failed to initialize tracer", "error", err)
		} else {
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := shutdown(flushCtx); err != nil {
					logger.Error(ctx, "Failed to shutdown tracer", "error", err)
				}
			}()
			logger.Info(ctx, "Tracer initialized", "endpoint", cfg.Tracing.CollectorEndpoint)
		}
	}

	// 4. 初始化指标
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	var collector interface {
		metrics.CartCollector
		metrics.HTTPCollector
		metrics.GRPCCollector
	} = metrics.NopCollector{}
	if cfg.Metrics.Enabled {
		m := metrics.New(cfg.ServiceName)
		if err := m.Register(registry); err != nil {
			return err
		}
		collector = metrics.NewDefaultCollector(m)
	}

	// 5. 初始化事件发布
	var publisher domain.EventPublisher = messaging.NewLogEventPublisher(logger.Get())
	if cfg.Kafka.Enabled {
		producer, err := mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			TopicPrefix:  cfg.Kafka.TopicPrefix,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		if err != nil {
			return fmt.Errorf("create kafka producer: %w", err)
		}
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Error(ctx, "Failed to close Kafka producer", "error", err)
			}
		}()
		publisher = messaging.NewKafkaEventPublisher(producer)
	}

	// 6. 初始化限流器
	limiter, closeLimiter, err := newRateLimiter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	// 7. 初始化存储与应用服务
	clock := domain.SystemClock{}
	repo := memory.NewCartRepository(clock)
	appService := application.NewCartApplicationService(repo, publisher,
		application.WithClock(clock),
		application.WithMetrics(collector),
		application.WithInactivityWindow(cfg.Cart.InactivityWindow),
	)
	job := application.NewEvictionJob(appService, logger.Get(), cfg.Cart.SweepInterval)

	// 8. 创建服务器
	httpServer, err := createHTTPServer(cfg, appService, collector, limiter)
	if err != nil {
		return err
	}
	grpcServer := cartgrpc.NewServer(collector, limiter, cfg.RateLimit)
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		job.Start(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info(gctx, "Starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.GRPC.Enabled {
		g.Go(func() error {
			addr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
			lis, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen on gRPC address: %w", err)
			}
			logger.Info(gctx, "Starting gRPC server", "addr", addr)
			return grpcServer.Serve(lis)
		})
	}

	if metricsServer != nil {
		g.Go(func() error {
			logger.Info(gctx, "Starting Prometheus HTTP server", "addr", metricsServer.Addr, "path", cfg.Metrics.Path)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	// 9. 优雅关停
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background(), "Shutting down CartService")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error(shutdownCtx, "HTTP server shutdown error", "error", err)
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error(shutdownCtx, "Metrics server shutdown error", "error", err)
			}
		}
		grpcServer.Shutdown()
		return nil
	})

	return g.Wait()
}

// createHTTPServer 创建 HTTP 服务器
func createHTTPServer(cfg *config.Config, svc carthttp.CartService, collector metrics.HTTPCollector, limiter ratelimit.RateLimiter) (*http.Server, error) {
	router, err := newRouter(cfg, svc, collector, limiter)
	if err != nil {
		return nil, err
	}

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}, nil
}

// newRouter 创建 gin 路由并挂载中间件
func newRouter(cfg *config.Config, svc carthttp.CartService, collector metrics.HTTPCollector, limiter ratelimit.RateLimiter) (*gin.Engine, error) {
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// 仅信任配置中的代理，否则 ClientIP 可被 X-Forwarded-For 伪造
	if err := router.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid http.trusted_proxies: %w", err)
	}

	// 添加中间件
	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.GinLoggingMiddleware())
	router.Use(middleware.GinMetricsMiddleware(collector))
	router.Use(middleware.GinCORSMiddleware())
	if limiter != nil {
		router.Use(middleware.RateLimitMiddleware(limiter, cfg.RateLimit))
	}

	// 注册路由
	carthttp.NewCartHandler(svc, cfg.ServiceName).RegisterRoutes(router)
	return router, nil
}

// newRateLimiter 按配置选择限流后端，未启用时返回 nil
func newRateLimiter(ctx context.Context, cfg *config.Config) (ratelimit.RateLimiter, func(), error) {
	noop := func() {}
	if !cfg.RateLimit.Enabled {
		return nil, noop, nil
	}
	if cfg.RateLimit.Backend != "redis" {
		return ratelimit.NewLocalRateLimiter(), noop, nil
	}

	rdb, err := cache.NewClient(ctx, cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		return nil, noop, err
	}
	return ratelimit.NewRedisRateLimiter(rdb), func() {
		if err := rdb.Close(); err != nil {
			logger.Error(context.Background(), "Failed to close Redis client", "error", err)
		}
	}, nil
}

// probe 检查本机 gRPC 健康状态，用于容器健康检查
func probe(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, err := grpcclient.NewClient(grpcclient.ClientConfig{
		Target:     fmt.Sprintf("127.0.0.1:%d", cfg.GRPC.Port),
		MaxRetries: 2,
		RetryDelay: 200 * time.Millisecond,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	return grpcclient.CheckHealth(ctx, conn, cartgrpc.ServiceName)
}
