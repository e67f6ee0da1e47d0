package worker

import (
	"context"
	"errors"
	"time"

	"github.com/custom-pricing/internal/config"
	"github.com/custom-pricing/internal/logger"
	"github.com/custom-pricing/internal/queue"

	"github.com/hibiken/asynq"
)

const defaultWarningSweepInterval = time.Hour

// Service asynq 消费者与周期调度器
// 信号由 app.Runner 统一处理，这里只用 Start/Shutdown，不用 Server.Run。
type Service struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	consumer  *Consumer
	interval  time.Duration
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		server:    asynq.NewServer(opt, serverCfg),
		scheduler: queue.NewScheduler(cfg),
		mux:       mux,
		consumer:  consumer,
		interval:  consumer.sweepInterval(),
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	return "worker"
}

// Start 启动消费与调度，阻塞到 ctx 结束
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	if s.consumer.ready() {
		entryID, err := queue.ScheduleWarningSweep(s.scheduler, s.interval)
		if err != nil {
			return err
		}
		if err := s.scheduler.Start(); err != nil {
			return err
		}
		logger.Infow("worker_warning_sweep_scheduled", "entry_id", entryID, "interval", s.interval.String())
		// 启动时先复核一轮，不等第一个周期
		if err := s.consumer.QueueClient.EnqueueWarningSweep(); err != nil {
			logger.Warnw("worker_warning_sweep_enqueue_failed", "error", err)
		}
	}
	<-ctx.Done()
	return nil
}

// Stop 先停调度再停消费，进行中的任务最多等待 ShutdownTimeout
func (s *Service) Stop(_ context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	if s.consumer.ready() {
		s.scheduler.Shutdown()
	}
	s.server.Shutdown()
	return nil
}
