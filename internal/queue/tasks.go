package queue

import (
	"encoding/json"
	"fmt"

	"github.com/custom-pricing/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskPricingRuleWarning 单条规则的定价预警复核
	TaskPricingRuleWarning = constants.TaskPricingRulePriceWarning
	// TaskPricingRuleWarningSweep 全量复核，由调度器周期投递
	TaskPricingRuleWarningSweep = constants.TaskPricingRulePriceWarningSweep
)

// PricingRuleWarningPayload 定价预警复核任务载荷
type PricingRuleWarningPayload struct {
	RuleID uint   `json:"rule_id"`
	Reason string `json:"reason,omitempty"` // saved / sweep
}

// NewPricingRuleWarningTask 创建定价预警复核任务
func NewPricingRuleWarningTask(payload PricingRuleWarningPayload) (*asynq.Task, error) {
	if payload.RuleID == 0 {
		return nil, fmt.Errorf("pricing rule warning task requires rule id")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPricingRuleWarning, body), nil
}

// ParsePricingRuleWarningPayload 解析任务载荷
func ParsePricingRuleWarningPayload(task *asynq.Task) (PricingRuleWarningPayload, error) {
	var payload PricingRuleWarningPayload
	if task == nil {
		return payload, fmt.Errorf("nil task")
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("decode %s payload: %w", task.Type(), err)
	}
	if payload.RuleID == 0 {
		return payload, fmt.Errorf("%s payload missing rule id", task.Type())
	}
	return payload, nil
}

// NewPricingRuleWarningSweepTask 创建全量复核任务，无载荷
func NewPricingRuleWarningSweepTask() *asynq.Task {
	return asynq.NewTask(TaskPricingRuleWarningSweep, nil)
}
