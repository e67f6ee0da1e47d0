package worker

import (
	"context"
	"errors"
	"time"

	"github.com/custom-pricing/internal/logger"
	"github.com/custom-pricing/internal/provider"
	"github.com/custom-pricing/internal/queue"
	"github.com/custom-pricing/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskPricingRuleWarning, c.handlePricingRuleWarning)
	mux.HandleFunc(queue.TaskPricingRuleWarningSweep, c.handlePricingRuleWarningSweep)
}

func (c *Consumer) ready() bool {
	return c != nil && c.Container != nil && c.PricingRuleService != nil
}

func (c *Consumer) sweepInterval() time.Duration {
	if c.ready() && c.Config != nil && c.Config.Pricing.WarningSweepMinutes > 0 {
		return time.Duration(c.Config.Pricing.WarningSweepMinutes) * time.Minute
	}
	return defaultWarningSweepInterval
}

// handlePricingRuleWarningSweep 全量复核 new_price 规则，店铺改价后预警随之更新
// 队列可用时拆成单条任务投递，失败不重试，等下个周期。
func (c *Consumer) handlePricingRuleWarningSweep(ctx context.Context, _ *asynq.Task) error {
	if !c.ready() {
		return nil
	}
	count, err := c.PricingRuleService.SweepWarnings(ctx)
	if err != nil {
		logger.Warnw("worker_pricing_rule_warning_sweep_failed", "error", err)
		return err
	}
	logger.Infow("worker_pricing_rule_warning_sweep_done", "rules", count)
	return nil
}

func (c *Consumer) handlePricingRuleWarning(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_pricing_rule_warning_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := queue.ParsePricingRuleWarningPayload(task)
	if err != nil {
		// 载荷错误重试也不会成功
		logger.Warnw("worker_pricing_rule_warning_invalid_payload", "error", err)
		return nil
	}
	if !c.ready() {
		logger.Warnw("worker_pricing_rule_warning_skip_service_nil", "rule_id", payload.RuleID)
		return nil
	}
	warnings, err := c.PricingRuleService.CheckWarnings(ctx, payload.RuleID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPricingRuleNotFound):
			logger.Debugw("worker_pricing_rule_warning_skip_rule_not_found", "rule_id", payload.RuleID)
			return nil
		default:
			logger.Warnw("worker_pricing_rule_warning_failed", "rule_id", payload.RuleID, "error", err)
			return err
		}
	}
	logger.Infow("worker_pricing_rule_warning_checked",
		"rule_id", payload.RuleID,
		"reason", payload.Reason,
		"warnings", len(warnings),
	)
	return nil
}
