package pricing

import "testing"

func activeRule(id string, customer CustomerTarget, product ProductTarget, pricing Pricing) Rule {
	return Rule{
		ID:       id,
		Status:   StatusActive,
		Customer: customer,
		Product:  product,
		Pricing:  pricing,
	}
}

func TestResolveSkipsInactiveRules(t *testing.T) {
	inactive := activeRule("1", CustomerTarget{Type: CustomerAll}, ProductTarget{Type: ProductAll}, Pricing{Mode: ModePercentOff, Value: 50})
	inactive.Status = StatusInactive
	rules := []Rule{inactive}

	if rule, ok := Resolve(rules, ShopperContext{}, ProductContext{ProductID: "1"}); ok || rule != nil {
		t.Fatalf("inactive rule should never resolve, got %+v", rule)
	}

	fallback := activeRule("2", CustomerTarget{Type: CustomerAll}, ProductTarget{Type: ProductAll}, Pricing{Mode: ModeAmountOff, Value: 1})
	rules = append(rules, fallback)
	rule, ok := Resolve(rules, ShopperContext{}, ProductContext{ProductID: "1"})
	if !ok || rule.ID != "2" {
		t.Fatalf("want rule 2 got %+v", rule)
	}
}

func TestResolveFirstMatchWinsByOrder(t *testing.T) {
	first := activeRule("first", CustomerTarget{Type: CustomerAll}, ProductTarget{Type: ProductSpecificProducts, IDs: []string{"gid://shopify/Product/10"}}, Pricing{Mode: ModePercentOff, Value: 10})
	second := activeRule("second", CustomerTarget{Type: CustomerAll}, ProductTarget{Type: ProductAll}, Pricing{Mode: ModePercentOff, Value: 30})
	product := ProductContext{ProductID: "10"}

	rule, ok := Resolve([]Rule{first, second}, ShopperContext{}, product)
	if !ok || rule.ID != "first" {
		t.Fatalf("want first got %+v", rule)
	}

	rule, ok = Resolve([]Rule{second, first}, ShopperContext{}, product)
	if !ok || rule.ID != "second" {
		t.Fatalf("order swap should pick second, got %+v", rule)
	}
}

func TestResolveNoMatch(t *testing.T) {
	rule := activeRule("1", CustomerTarget{Type: CustomerLoggedIn}, ProductTarget{Type: ProductAll}, Pricing{Mode: ModePercentOff, Value: 10})
	if got, ok := Resolve([]Rule{rule}, ShopperContext{}, ProductContext{ProductID: "1"}); ok {
		t.Fatalf("logged out shopper should not match logged_in rule, got %+v", got)
	}
}

func TestResolveReturnsCopy(t *testing.T) {
	rules := []Rule{activeRule("1", CustomerTarget{Type: CustomerAll}, ProductTarget{Type: ProductAll}, Pricing{Mode: ModePercentOff, Value: 10})}
	rule, _ := Resolve(rules, ShopperContext{}, ProductContext{ProductID: "1"})
	rule.Pricing.Value = 99
	if rules[0].Pricing.Value != 10 {
		t.Fatalf("resolve must not expose source rule, source mutated to %v", rules[0].Pricing.Value)
	}
}

func TestFindOverlaps(t *testing.T) {
	rules := []Rule{
		activeRule("vip", CustomerTarget{Type: CustomerTags, Tags: []string{"vip"}}, ProductTarget{Type: ProductAll}, Pricing{Mode: ModePercentOff, Value: 10}),
		activeRule("guest", CustomerTarget{Type: CustomerNonLoggedIn}, ProductTarget{Type: ProductAll}, Pricing{Mode: ModePercentOff, Value: 5}),
		activeRule("p1", CustomerTarget{Type: CustomerAll}, ProductTarget{Type: ProductSpecificProducts, IDs: []string{"1"}}, Pricing{Mode: ModeAmountOff, Value: 5}),
		activeRule("p2", CustomerTarget{Type: CustomerSpecific, CustomerIDs: []string{"7"}}, ProductTarget{Type: ProductSpecificProducts, IDs: []string{"2"}}, Pricing{Mode: ModeAmountOff, Value: 5}),
	}
	overlaps := FindOverlaps(rules)

	want := map[string]bool{
		"vip|p1":   true,
		"vip|p2":   true,
		"guest|p1": true,
	}
	for _, item := range overlaps {
		key := item.EarlierID + "|" + item.LaterID
		if !want[key] {
			t.Fatalf("unexpected overlap %s", key)
		}
		delete(want, key)
	}
	if len(want) != 0 {
		t.Fatalf("missing overlaps: %v", want)
	}
}
