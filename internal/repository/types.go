package repository

import "time"

// PricingRuleListFilter 后台规则列表筛选
type PricingRuleListFilter struct {
	Page         int
	PageSize     int
	Status       string
	Mode         string
	CustomerType string
	ProductType  string
	Search       string
	Tag          string
}

// PricingRuleAuditLogListFilter 规则变更记录筛选
type PricingRuleAuditLogListFilter struct {
	Page            int
	PageSize        int
	RuleID          uint
	OperatorAdminID uint
	Action          string
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
}
