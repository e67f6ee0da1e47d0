package models

import "time"

// PricingRuleAuditLog 定价规则变更记录
// 说明：规则顺序与内容直接影响店铺价格，每次增删改都留下快照便于回溯。
type PricingRuleAuditLog struct {
	ID               uint      `gorm:"primarykey" json:"id"`
	RuleID           uint      `gorm:"index;not null" json:"rule_id"`
	OperatorAdminID  uint      `gorm:"index;not null" json:"operator_admin_id"`
	OperatorUsername string    `gorm:"type:varchar(100);index;not null;default:''" json:"operator_username"`
	Action           string    `gorm:"type:varchar(50);index;not null" json:"action"`
	RequestID        string    `gorm:"type:varchar(64);index;not null;default:''" json:"request_id"`
	BeforeJSON       JSON      `gorm:"type:json" json:"before"`
	AfterJSON        JSON      `gorm:"type:json" json:"after"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (PricingRuleAuditLog) TableName() string {
	return "pricing_rule_audit_logs"
}
