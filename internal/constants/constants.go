package constants

// 规则状态与定向类型的后台取值，与 pricing 包保持一致
const (
	PricingRuleStatusActive   = "active"
	PricingRuleStatusInactive = "inactive"
)

// 规则来源
const (
	RuleSourceDB   = "db"
	RuleSourceFile = "file"
)

// 规则审计动作
const (
	PricingRuleAuditCreate = "rule_create"
	PricingRuleAuditUpdate = "rule_update"
	PricingRuleAuditDelete = "rule_delete"
)

// 会话消息类型（websocket）
const (
	SessionMessageInit            = "init"
	SessionMessageVariantChanged  = "variant_changed"
	SessionMessageQuantityChanged = "quantity_changed"
	SessionMessageCartMutated     = "cart_mutated"
	SessionMessageRegionMutated   = "region_mutated"
	SessionMessageCardsInserted   = "cards_inserted"
	SessionMessageReady           = "ready"
	SessionMessagePatch           = "patch"
	SessionMessageError           = "error"
)

// 队列常量
const (
	QueueDefault                     = "default"
	TaskPricingRulePriceWarning      = "pricing:rule_price_warning"
	TaskPricingRulePriceWarningSweep = "pricing:rule_price_warning_sweep"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "cp"
)

// 定价预警提示：结账不会按高于原价的新价格收取
const PriceWarningMessage = "new price is higher than the product's original price; checkout cannot increase the price, the shopper will be charged the original price"
