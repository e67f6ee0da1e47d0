package pricing

import "math"

// ComputePrice 根据规则计算展示价
// 内部保持浮点运算，只在格式化时舍入到最小货币单位。
func ComputePrice(rule Rule, original float64) float64 {
	value := rule.Pricing.Value
	switch rule.Pricing.Mode {
	case ModePercentOff:
		return original * (1 - value/100)
	case ModeAmountOff:
		return math.Max(0, original-value)
	case ModeNewPrice:
		// 允许高于原价，结账时仍按原价收取，由后台校验给出预警
		return value
	default:
		return original
	}
}

// PriceWarning 定价预警：新价格高于权威原价
type PriceWarning struct {
	RuleID        string  `json:"rule_id,omitempty"`
	ProductID     string  `json:"product_id"`
	VariantID     string  `json:"variant_id,omitempty"`
	Handle        string  `json:"handle,omitempty"`
	Title         string  `json:"title,omitempty"`
	OriginalPrice float64 `json:"original_price"`
	NewPrice      float64 `json:"new_price"`
	Message       string  `json:"message"`
}

// ExceedsOriginal 规则为 new_price 且新价格高于原价
func ExceedsOriginal(rule Rule, original float64) bool {
	return rule.Pricing.Mode == ModeNewPrice && rule.Pricing.Value > original
}
