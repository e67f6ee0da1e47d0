package models

import (
	"strconv"
	"time"

	"github.com/custom-pricing/internal/pricing"

	"gorm.io/gorm"
)

// PricingRule 定价规则表
// 自增 ID 即创建顺序，下发给店铺时按 ID 升序排列，顺序决定优先级。
type PricingRule struct {
	ID                uint           `gorm:"primarykey" json:"id"`                               // 主键
	Name              string         `gorm:"type:varchar(255);not null;default:''" json:"name"`  // 规则名称
	Status            string         `gorm:"type:varchar(20);not null;index" json:"status"`      // active / inactive
	CustomerType      string         `gorm:"type:varchar(32);not null" json:"customer_type"`     // 客户定向类型
	CustomerIDs       StringArray    `gorm:"type:json" json:"customer_ids"`                      // 指定客户
	CustomerTags      StringArray    `gorm:"type:json" json:"customer_tags"`                     // 客户标签
	ProductType       string         `gorm:"type:varchar(32);not null" json:"product_type"`      // 商品定向类型
	ProductIDs        StringArray    `gorm:"type:json" json:"product_ids"`                       // 商品/规格/集合 ID
	ProductTags       StringArray    `gorm:"type:json" json:"product_tags"`                      // 商品标签
	ProductItems      TargetItems    `gorm:"type:json" json:"product_items"`                     // 选中商品的 handle 等引用
	Mode              string         `gorm:"type:varchar(20);not null" json:"mode"`              // 定价方式
	Value             Money          `gorm:"type:decimal(20,2);not null;default:0" json:"value"` // 定价参数
	Warnings          PriceWarnings  `gorm:"type:json" json:"warnings"`                          // 最近一次复核的预警
	WarningsCheckedAt *time.Time     `json:"warnings_checked_at"`                                // 最近一次复核时间
	CreatedBy         uint           `gorm:"index;not null;default:0" json:"created_by"`         // 创建人
	CreatedAt         time.Time      `gorm:"index" json:"created_at"`                            // 创建时间
	UpdatedAt         time.Time      `json:"updated_at"`                                         // 更新时间
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`                                     // 软删除时间
}

// TableName 指定表名
func (PricingRule) TableName() string {
	return "pricing_rules"
}

// RuleID 下发给店铺的规则 ID
func (r PricingRule) RuleID() string {
	return strconv.FormatUint(uint64(r.ID), 10)
}

// ToRule 转换为引擎使用的规则
func (r PricingRule) ToRule() pricing.Rule {
	value := r.Value.Float()
	return pricing.Rule{
		ID:     r.RuleID(),
		Name:   r.Name,
		Status: pricing.RuleStatus(r.Status),
		Customer: pricing.CustomerTarget{
			Type:        pricing.CustomerTargetType(r.CustomerType),
			CustomerIDs: cloneStrings(r.CustomerIDs),
			Tags:        cloneStrings(r.CustomerTags),
		},
		Product: pricing.ProductTarget{
			Type:  pricing.ProductTargetType(r.ProductType),
			IDs:   cloneStrings(r.ProductIDs),
			Tags:  cloneStrings(r.ProductTags),
			Items: cloneItems(r.ProductItems),
		},
		Pricing: pricing.Pricing{
			Mode:  pricing.Mode(r.Mode),
			Value: value,
		},
	}
}

// ApplyRule 用规则内容覆盖可编辑字段（不修改 ID）
func (r *PricingRule) ApplyRule(rule pricing.Rule) {
	r.Name = rule.Name
	r.Status = string(rule.Status)
	r.CustomerType = string(rule.Customer.Type)
	r.CustomerIDs = StringArray(cloneStrings(rule.Customer.CustomerIDs))
	r.CustomerTags = StringArray(cloneStrings(rule.Customer.Tags))
	r.ProductType = string(rule.Product.Type)
	r.ProductIDs = StringArray(cloneStrings(rule.Product.IDs))
	r.ProductTags = StringArray(cloneStrings(rule.Product.Tags))
	r.ProductItems = TargetItems(cloneItems(rule.Product.Items))
	r.Mode = string(rule.Pricing.Mode)
	r.Value = NewMoneyFromFloat(rule.Pricing.Value)
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func cloneItems(items []pricing.TargetItem) []pricing.TargetItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]pricing.TargetItem, len(items))
	copy(out, items)
	return out
}
