package pricing

import "strings"

// ShopperContext 访客上下文，每个会话只解析一次
type ShopperContext struct {
	LoggedIn   bool     `json:"logged_in"`
	CustomerID string   `json:"customer_id,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// NewShopperContext 根据客户 ID 与标签构建访客上下文
// 未登录访客不携带 ID 与标签。
func NewShopperContext(customerID string, tags []string) ShopperContext {
	id := strings.TrimSpace(customerID)
	if NormalizeID(id) == "" {
		return ShopperContext{}
	}
	return ShopperContext{
		LoggedIn:   true,
		CustomerID: id,
		Tags:       cleanTags(tags),
	}
}

// ProductContext 商品上下文，每次触发重新计算
type ProductContext struct {
	ProductID   string   `json:"product_id"`
	Handle      string   `json:"handle,omitempty"`
	VariantID   string   `json:"variant_id,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Collections []string `json:"collections,omitempty"`
}

// Empty 是否无法识别商品
func (p ProductContext) Empty() bool {
	return NormalizeID(p.ProductID) == "" && strings.TrimSpace(p.Handle) == ""
}

// OriginalPrice 权威原价：标价与划线价取较大者
func OriginalPrice(price, compareAtPrice float64) float64 {
	if compareAtPrice > price {
		return compareAtPrice
	}
	return price
}

func cleanTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}
