package pricing

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRule 规则数据不合法
var ErrInvalidRule = errors.New("invalid pricing rule")

// RuleStatus 规则状态
type RuleStatus string

const (
	StatusActive   RuleStatus = "active"
	StatusInactive RuleStatus = "inactive"
)

// CustomerTargetType 客户定向类型
type CustomerTargetType string

const (
	CustomerAll         CustomerTargetType = "all"
	CustomerLoggedIn    CustomerTargetType = "logged_in"
	CustomerNonLoggedIn CustomerTargetType = "non_logged_in"
	CustomerSpecific    CustomerTargetType = "specific"
	CustomerTags        CustomerTargetType = "tags"
)

// ProductTargetType 商品定向类型
type ProductTargetType string

const (
	ProductAll              ProductTargetType = "all"
	ProductSpecificProducts ProductTargetType = "specific_products"
	ProductSpecificVariants ProductTargetType = "specific_variants"
	ProductCollections      ProductTargetType = "collections"
	ProductTags             ProductTargetType = "tags"
)

// Mode 定价方式
type Mode string

const (
	ModePercentOff Mode = "percent_off"
	ModeAmountOff  Mode = "amount_off"
	ModeNewPrice   Mode = "new_price"
)

// CustomerTarget 客户定向条件
type CustomerTarget struct {
	Type        CustomerTargetType `json:"type" yaml:"type"`
	CustomerIDs []string           `json:"customer_ids,omitempty" yaml:"customer_ids,omitempty"`
	Tags        []string           `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// TargetItem 后台选择商品时带出的引用信息（用于定价预警查询）
type TargetItem struct {
	ProductID string `json:"product_id" yaml:"product_id"`
	VariantID string `json:"variant_id,omitempty" yaml:"variant_id,omitempty"`
	Handle    string `json:"handle" yaml:"handle"`
	Title     string `json:"title,omitempty" yaml:"title,omitempty"`
}

// ProductTarget 商品定向条件
type ProductTarget struct {
	Type  ProductTargetType `json:"type" yaml:"type"`
	IDs   []string          `json:"ids,omitempty" yaml:"ids,omitempty"`
	Tags  []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
	Items []TargetItem      `json:"items,omitempty" yaml:"items,omitempty"`
}

// hasItemFor 指定商品/规格目标下，id 是否有对应条目
// 其它目标类型不需要条目。
func (t ProductTarget) hasItemFor(id string) bool {
	if t.Type != ProductSpecificProducts && t.Type != ProductSpecificVariants {
		return true
	}
	want := NormalizeID(id)
	for _, item := range t.Items {
		got := item.ProductID
		if t.Type == ProductSpecificVariants {
			got = item.VariantID
		}
		if NormalizeID(got) == want {
			return true
		}
	}
	return false
}

// Pricing 定价参数
type Pricing struct {
	Mode  Mode    `json:"mode" yaml:"mode"`
	Value float64 `json:"value" yaml:"value"`
}

// Rule 定价规则
// 规则列表的顺序即优先级：解析时取第一条启用且命中的规则。
type Rule struct {
	ID       string         `json:"id" yaml:"id"`
	Name     string         `json:"name,omitempty" yaml:"name,omitempty"`
	Status   RuleStatus     `json:"status" yaml:"status"`
	Customer CustomerTarget `json:"customer_target" yaml:"customer_target"`
	Product  ProductTarget  `json:"product_target" yaml:"product_target"`
	Pricing  Pricing        `json:"pricing" yaml:"pricing"`
}

// IsActive 是否参与解析
func (r Rule) IsActive() bool {
	return r.Status == StatusActive
}

// Validate 校验规则是否满足数据约束
func (r Rule) Validate() error {
	switch r.Status {
	case StatusActive, StatusInactive:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidRule, r.Status)
	}

	switch r.Customer.Type {
	case CustomerAll, CustomerLoggedIn, CustomerNonLoggedIn:
	case CustomerSpecific:
		if len(nonEmpty(r.Customer.CustomerIDs)) == 0 {
			return fmt.Errorf("%w: specific customer target requires customer ids", ErrInvalidRule)
		}
	case CustomerTags:
		if len(nonEmpty(r.Customer.Tags)) == 0 {
			return fmt.Errorf("%w: tag customer target requires tags", ErrInvalidRule)
		}
	default:
		return fmt.Errorf("%w: unknown customer target %q", ErrInvalidRule, r.Customer.Type)
	}

	switch r.Product.Type {
	case ProductAll:
	case ProductSpecificProducts, ProductSpecificVariants, ProductCollections:
		if len(nonEmpty(r.Product.IDs)) == 0 {
			return fmt.Errorf("%w: product target %s requires ids", ErrInvalidRule, r.Product.Type)
		}
	case ProductTags:
		if len(nonEmpty(r.Product.Tags)) == 0 {
			return fmt.Errorf("%w: tag product target requires tags", ErrInvalidRule)
		}
	default:
		return fmt.Errorf("%w: unknown product target %q", ErrInvalidRule, r.Product.Type)
	}
	for _, item := range r.Product.Items {
		if strings.TrimSpace(item.Handle) == "" {
			return fmt.Errorf("%w: product item %q has no handle", ErrInvalidRule, item.ProductID)
		}
	}

	// new_price 保存时要逐个读取选中商品的原价，每个 id 都要有带 handle 的条目
	if r.Pricing.Mode == ModeNewPrice {
		for _, id := range nonEmpty(r.Product.IDs) {
			if !r.Product.hasItemFor(id) {
				return fmt.Errorf("%w: new_price target %q has no product item with a handle", ErrInvalidRule, id)
			}
		}
	}

	value := r.Pricing.Value
	switch r.Pricing.Mode {
	case ModePercentOff:
		if !(value > 0 && value <= 100) {
			return fmt.Errorf("%w: percent_off must be in (0,100], got %v", ErrInvalidRule, value)
		}
	case ModeAmountOff:
		if !(value >= 0) {
			return fmt.Errorf("%w: amount_off must be >= 0, got %v", ErrInvalidRule, value)
		}
	case ModeNewPrice:
		if !(value >= 0) {
			return fmt.Errorf("%w: new_price must be >= 0, got %v", ErrInvalidRule, value)
		}
	default:
		return fmt.Errorf("%w: unknown pricing mode %q", ErrInvalidRule, r.Pricing.Mode)
	}
	return nil
}

// ValidateAll 校验整组规则，返回第一条不合法规则的错误
func ValidateAll(rules []Rule) error {
	seen := make(map[string]struct{}, len(rules))
	for i, rule := range rules {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("rule #%d (%s): %w", i, rule.ID, err)
		}
		id := strings.TrimSpace(rule.ID)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("rule #%d: %w: duplicate id %q", i, ErrInvalidRule, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func nonEmpty(values []string) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			result = append(result, v)
		}
	}
	return result
}
