package pricing

import "strings"

// NormalizeID 去掉非数字字符，统一 gid://shopify/Product/1 与 1 两种写法
func NormalizeID(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CustomerMatches 判断访客是否命中规则的客户定向
func CustomerMatches(rule Rule, shopper ShopperContext) bool {
	switch rule.Customer.Type {
	case CustomerAll:
		return true
	case CustomerLoggedIn:
		return shopper.LoggedIn
	case CustomerNonLoggedIn:
		return !shopper.LoggedIn
	case CustomerSpecific:
		if !shopper.LoggedIn {
			return false
		}
		return containsID(rule.Customer.CustomerIDs, shopper.CustomerID)
	case CustomerTags:
		if !shopper.LoggedIn {
			return false
		}
		return intersects(rule.Customer.Tags, shopper.Tags)
	default:
		return false
	}
}

// ProductMatches 判断商品/规格是否命中规则的商品定向
func ProductMatches(rule Rule, product ProductContext) bool {
	switch rule.Product.Type {
	case ProductAll:
		return true
	case ProductSpecificProducts:
		return containsID(rule.Product.IDs, product.ProductID)
	case ProductSpecificVariants:
		return containsID(rule.Product.IDs, product.VariantID)
	case ProductCollections:
		for _, collection := range product.Collections {
			if containsID(rule.Product.IDs, collection) {
				return true
			}
		}
		return false
	case ProductTags:
		return intersects(rule.Product.Tags, product.Tags)
	default:
		return false
	}
}

func containsID(ids []string, target string) bool {
	normalized := NormalizeID(target)
	if normalized == "" {
		return false
	}
	for _, id := range ids {
		if NormalizeID(id) == normalized {
			return true
		}
	}
	return false
}

// intersects 标签大小写敏感
func intersects(ruleTags, contextTags []string) bool {
	if len(ruleTags) == 0 || len(contextTags) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(contextTags))
	for _, tag := range contextTags {
		trimmed := strings.TrimSpace(tag)
		if trimmed != "" {
			set[trimmed] = struct{}{}
		}
	}
	for _, tag := range ruleTags {
		if _, ok := set[strings.TrimSpace(tag)]; ok {
			return true
		}
	}
	return false
}
