package cache

import (
	"context"
	"time"

	"github.com/custom-pricing/internal/pricing"
)

const ruleSnapshotKey = "pricing:rules:snapshot"

// RuleSnapshot 下发给店铺的规则快照，顺序即优先级
type RuleSnapshot struct {
	Source      string         `json:"source"`
	Rules       []pricing.Rule `json:"rules"`
	GeneratedAt int64          `json:"generated_at"`
}

// GetRuleSnapshot 读取规则快照
func GetRuleSnapshot(ctx context.Context) (*RuleSnapshot, bool, error) {
	var snapshot RuleSnapshot
	hit, err := GetJSON(ctx, ruleSnapshotKey, &snapshot)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &snapshot, true, nil
}

// SetRuleSnapshot 写入规则快照
func SetRuleSnapshot(ctx context.Context, snapshot *RuleSnapshot, ttl time.Duration) error {
	if snapshot == nil || ttl <= 0 {
		return nil
	}
	return SetJSON(ctx, ruleSnapshotKey, snapshot, ttl)
}

// DelRuleSnapshot 规则变更后清除快照
func DelRuleSnapshot(ctx context.Context) error {
	return Del(ctx, ruleSnapshotKey)
}
