package pricing

// Resolve 按列表顺序返回第一条启用且客户、商品条件均命中的规则
// 列表顺序由规则来源决定（后台按创建顺序下发），没有额外的优先级字段。
func Resolve(rules []Rule, shopper ShopperContext, product ProductContext) (*Rule, bool) {
	for i := range rules {
		rule := rules[i]
		if !rule.IsActive() {
			continue
		}
		if !CustomerMatches(rule, shopper) {
			continue
		}
		if !ProductMatches(rule, product) {
			continue
		}
		return &rule, true
	}
	return nil, false
}

// Overlap 两条启用规则可能命中同一访客与商品
type Overlap struct {
	EarlierID string `json:"earlier_id"`
	LaterID   string `json:"later_id"`
}

// FindOverlaps 找出可能相互遮蔽的规则对（保守判断，只排除明确不相交的情况）
func FindOverlaps(rules []Rule) []Overlap {
	overlaps := make([]Overlap, 0)
	for i := 0; i < len(rules); i++ {
		if !rules[i].IsActive() {
			continue
		}
		for j := i + 1; j < len(rules); j++ {
			if !rules[j].IsActive() {
				continue
			}
			if customerTargetsOverlap(rules[i].Customer, rules[j].Customer) &&
				productTargetsOverlap(rules[i].Product, rules[j].Product) {
				overlaps = append(overlaps, Overlap{EarlierID: rules[i].ID, LaterID: rules[j].ID})
			}
		}
	}
	return overlaps
}

func customerTargetsOverlap(a, b CustomerTarget) bool {
	if a.Type == CustomerAll || b.Type == CustomerAll {
		return true
	}
	// 未登录访客不会命中 specific/tags/logged_in
	if a.Type == CustomerNonLoggedIn || b.Type == CustomerNonLoggedIn {
		return a.Type == b.Type
	}
	if a.Type == CustomerSpecific && b.Type == CustomerSpecific {
		return idSetsIntersect(a.CustomerIDs, b.CustomerIDs)
	}
	return true
}

func productTargetsOverlap(a, b ProductTarget) bool {
	if a.Type == ProductAll || b.Type == ProductAll {
		return true
	}
	if a.Type == b.Type && (a.Type == ProductSpecificProducts || a.Type == ProductSpecificVariants) {
		return idSetsIntersect(a.IDs, b.IDs)
	}
	return true
}

func idSetsIntersect(a, b []string) bool {
	for _, id := range a {
		if containsID(b, id) {
			return true
		}
	}
	return false
}
