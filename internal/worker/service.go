package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dfinsell-next/internal/config"
	"github.com/dfinsell-next/internal/constants"
	"github.com/dfinsell-next/internal/logger"
	"github.com/dfinsell-next/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	noncePurgeInterval = time.Hour
	staleSweepInterval = 5 * time.Minute
	staleSweepBatch    = 100
)

// Service 后台任务服务：asynq 消费 + 定时同步/清理。
// 队列未启用时只运行定时任务。
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
	sync     config.SyncConfig

	wg sync.WaitGroup
}

// NewService 创建后台任务服务
func NewService(cfg *config.Config, consumer *Consumer) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	s := &Service{
		name:     "worker",
		consumer: consumer,
		sync:     cfg.Sync,
	}
	if cfg.Queue.Enabled {
		opt, serverCfg := queue.BuildServerConfig(&cfg.Queue)
		s.server = asynq.NewServer(opt, serverCfg)
		s.mux = asynq.NewServeMux()
		consumer.Register(s.mux)
	} else {
		logger.Warnw("worker_queue_disabled_tickers_only")
	}
	return s, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.consumer == nil {
		return errors.New("worker not initialized")
	}
	s.startLoops(ctx)
	if s.server == nil {
		<-ctx.Done()
		return nil
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	if s.server != nil {
		s.server.Shutdown()
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) startLoops(ctx context.Context) {
	c := s.consumer
	if c.AccountSyncService != nil && s.sync.Enabled {
		s.runLoop(ctx, "account_sync", s.sync.Interval(), func(ctx context.Context) {
			if _, err := c.AccountSyncService.Sync(ctx, constants.SyncTriggerCron); err != nil {
				logger.Warnw("worker_account_sync_failed", "error", err)
			}
		})
	}
	if c.NonceService != nil {
		s.runLoop(ctx, "nonce_purge", noncePurgeInterval, func(context.Context) {
			purged, err := c.NonceService.PurgeExpired()
			if err != nil {
				logger.Warnw("worker_nonce_purge_failed", "error", err)
				return
			}
			if purged > 0 {
				logger.Debugw("worker_nonce_purged", "count", purged)
			}
		})
	}
	if c.OrderExpiryService != nil {
		s.runLoop(ctx, "order_expiry_sweep", staleSweepInterval, func(ctx context.Context) {
			if _, err := c.OrderExpiryService.SweepStale(ctx, staleSweepBatch); err != nil {
				logger.Warnw("worker_order_expiry_sweep_failed", "error", err)
			}
		})
	}
}

// runLoop 立即执行一次，随后按间隔执行，直到 ctx 结束
func (s *Service) runLoop(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		logger.Warnw("worker_loop_skipped_invalid_interval", "loop", name)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
}
