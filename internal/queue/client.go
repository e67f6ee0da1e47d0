package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custom-pricing/internal/config"
	"github.com/custom-pricing/internal/constants"
	"github.com/custom-pricing/internal/logger"

	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue 默认队列名称
	DefaultQueue = constants.QueueDefault

	defaultConcurrency = 10
	shutdownTimeout    = 8 * time.Second
	warningUniqueTTL   = 30 * time.Second
	warningMaxRetry    = 3
)

// Client 队列客户端，未启用时所有投递都是空操作
type Client struct {
	client *asynq.Client
}

// NewClient 创建队列客户端
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{}, nil
	}
	return &Client{client: asynq.NewClient(RedisOpt(cfg))}, nil
}

// Enabled 判断是否启用
func (c *Client) Enabled() bool {
	return c != nil && c.client != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

// enqueue 投递任务，unique 窗口内的重复任务视为成功
func (c *Client) enqueue(task *asynq.Task, opts ...asynq.Option) error {
	if !c.Enabled() {
		return nil
	}
	opts = append([]asynq.Option{asynq.Queue(DefaultQueue)}, opts...)
	_, err := c.client.Enqueue(task, opts...)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// EnqueuePricingRuleWarning 推送规则定价预警复核任务
// 同一规则在 unique 窗口内只保留一个待执行任务，连续保存不会重复复核。
func (c *Client) EnqueuePricingRuleWarning(payload PricingRuleWarningPayload, delay time.Duration) error {
	task, err := NewPricingRuleWarningTask(payload)
	if err != nil {
		return err
	}
	if delay < 0 {
		delay = 0
	}
	return c.enqueue(task,
		asynq.ProcessIn(delay),
		asynq.MaxRetry(warningMaxRetry),
		asynq.Unique(warningUniqueTTL),
	)
}

// EnqueueWarningSweep 立即投递一次全量复核
func (c *Client) EnqueueWarningSweep() error {
	return c.enqueue(NewPricingRuleWarningSweepTask(), asynq.MaxRetry(0), asynq.Unique(time.Minute))
}

// ScheduleWarningSweep 注册周期性全量复核
func ScheduleWarningSweep(scheduler *asynq.Scheduler, interval time.Duration) (string, error) {
	if scheduler == nil {
		return "", errors.New("scheduler is nil")
	}
	if interval < time.Minute {
		interval = time.Minute
	}
	return scheduler.Register("@every "+interval.String(), NewPricingRuleWarningSweepTask(),
		asynq.Queue(DefaultQueue),
		asynq.MaxRetry(0),
		asynq.Unique(interval/2),
	)
}

// BuildServerConfig 生成队列服务配置，日志统一走 zap
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	concurrency := defaultConcurrency
	queues := map[string]int{DefaultQueue: 1}
	if cfg != nil {
		if cfg.Concurrency > 0 {
			concurrency = cfg.Concurrency
		}
		if len(cfg.Queues) > 0 {
			queues = cfg.Queues
		}
	}
	return RedisOpt(cfg), asynq.Config{
		Concurrency:     concurrency,
		Queues:          queues,
		ShutdownTimeout: shutdownTimeout,
		Logger:          logger.S().Named("asynq"),
		ErrorHandler:    asynq.ErrorHandlerFunc(logTaskFailure),
	}
}

// NewScheduler 创建周期任务调度器
func NewScheduler(cfg *config.QueueConfig) *asynq.Scheduler {
	return asynq.NewScheduler(RedisOpt(cfg), &asynq.SchedulerOpts{
		Logger: logger.S().Named("asynq_scheduler"),
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
				logger.Warnw("queue_scheduled_enqueue_failed", "error", err)
			}
		},
	})
}

func logTaskFailure(ctx context.Context, task *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	logger.Warnw("queue_task_failed",
		"task", task.Type(),
		"retried", retried,
		"max_retry", maxRetry,
		"error", err,
	)
}

// RedisOpt 队列 Redis 连接参数
func RedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	opt := asynq.RedisClientOpt{Addr: "127.0.0.1:6379"}
	if cfg == nil {
		return opt
	}
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port <= 0 {
		port = 6379
	}
	opt.Addr = fmt.Sprintf("%s:%d", host, port)
	opt.Password = cfg.Password
	opt.DB = cfg.DB
	return opt
}
