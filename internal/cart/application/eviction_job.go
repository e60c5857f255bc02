package application

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper 执行一次过期清理
type Sweeper interface {
	RunEvictionSweep(ctx context.Context) []int64
}

// EvictionJob 定期清理不活跃的购物车
type EvictionJob struct {
	sweeper  Sweeper
	logger   *slog.Logger
	interval time.Duration
}

// NewEvictionJob 创建清理任务，interval 非正时使用 DefaultInactivityWindow
func NewEvictionJob(sweeper Sweeper, logger *slog.Logger, interval time.Duration) *EvictionJob {
	if interval <= 0 {
		interval = DefaultInactivityWindow
	}
	return &EvictionJob{
		sweeper:  sweeper,
		logger:   logger,
		interval: interval,
	}
}

// Start 阻塞运行，直到 ctx 被取消
func (j *EvictionJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("Cart eviction job started", "interval", j.interval)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("Cart eviction job stopped")
			return
		case <-ticker.C:
			j.run(ctx)
		}
	}
}

// run 执行一次清理，panic 不会中断 ticker
func (j *EvictionJob) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			j.logger.Error("cart eviction run panicked", "panic", r)
		}
	}()

	evicted := j.sweeper.RunEvictionSweep(ctx)
	if len(evicted) > 0 {
		j.logger.Info("cart eviction run finished", "evicted", len(evicted))
	}
}
