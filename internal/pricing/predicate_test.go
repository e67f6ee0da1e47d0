package pricing

import "testing"

func TestNormalizeID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "gid://shopify/Customer/42", want: "42"},
		{in: " 42 ", want: "42"},
		{in: "gid://shopify/ProductVariant/", want: ""},
		{in: "", want: ""},
	}
	for _, item := range cases {
		if got := NormalizeID(item.in); got != item.want {
			t.Fatalf("normalize id failed, in=%q want=%q got=%q", item.in, item.want, got)
		}
	}
}

func TestCustomerTagsNeverMatchLoggedOut(t *testing.T) {
	rule := Rule{Status: StatusActive, Customer: CustomerTarget{Type: CustomerTags, Tags: []string{"wholesale"}}}

	loggedOut := ShopperContext{Tags: []string{"wholesale"}}
	if CustomerMatches(rule, loggedOut) {
		t.Fatalf("logged out shopper must not match tag rule")
	}
	if CustomerMatches(rule, NewShopperContext("", []string{"wholesale"})) {
		t.Fatalf("shopper without id must not carry tags")
	}

	if !CustomerMatches(rule, NewShopperContext("gid://shopify/Customer/5", []string{"retail", "wholesale"})) {
		t.Fatalf("logged in shopper with wholesale tag should match")
	}
	if CustomerMatches(rule, NewShopperContext("5", []string{"Wholesale"})) {
		t.Fatalf("tag matching is case sensitive")
	}
	if CustomerMatches(rule, NewShopperContext("5", nil)) {
		t.Fatalf("logged in shopper without tags should not match")
	}
}

func TestCustomerMatchesLoginStates(t *testing.T) {
	guest := NewShopperContext("", nil)
	member := NewShopperContext("9", nil)

	all := Rule{Customer: CustomerTarget{Type: CustomerAll}}
	if !CustomerMatches(all, guest) || !CustomerMatches(all, member) {
		t.Fatalf("all should match everyone")
	}
	loggedIn := Rule{Customer: CustomerTarget{Type: CustomerLoggedIn}}
	if CustomerMatches(loggedIn, guest) || !CustomerMatches(loggedIn, member) {
		t.Fatalf("logged_in mismatch")
	}
	nonLoggedIn := Rule{Customer: CustomerTarget{Type: CustomerNonLoggedIn}}
	if !CustomerMatches(nonLoggedIn, guest) || CustomerMatches(nonLoggedIn, member) {
		t.Fatalf("non_logged_in mismatch")
	}
	specific := Rule{Customer: CustomerTarget{Type: CustomerSpecific, CustomerIDs: []string{"gid://shopify/Customer/9"}}}
	if !CustomerMatches(specific, member) {
		t.Fatalf("specific should match normalized id")
	}
	if CustomerMatches(specific, guest) {
		t.Fatalf("specific should not match guest")
	}
	unknown := Rule{Customer: CustomerTarget{Type: "vip_only"}}
	if CustomerMatches(unknown, member) {
		t.Fatalf("unknown target should not match")
	}
}

func TestProductMatches(t *testing.T) {
	product := ProductContext{
		ProductID:   "gid://shopify/Product/100",
		VariantID:   "200",
		Tags:        []string{"summer", "sale"},
		Collections: []string{"300", "301"},
	}

	cases := []struct {
		name   string
		target ProductTarget
		want   bool
	}{
		{name: "all", target: ProductTarget{Type: ProductAll}, want: true},
		{name: "product hit", target: ProductTarget{Type: ProductSpecificProducts, IDs: []string{"100"}}, want: true},
		{name: "product miss", target: ProductTarget{Type: ProductSpecificProducts, IDs: []string{"101"}}, want: false},
		{name: "variant hit", target: ProductTarget{Type: ProductSpecificVariants, IDs: []string{"gid://shopify/ProductVariant/200"}}, want: true},
		{name: "variant ignores product id", target: ProductTarget{Type: ProductSpecificVariants, IDs: []string{"100"}}, want: false},
		{name: "collection hit", target: ProductTarget{Type: ProductCollections, IDs: []string{"gid://shopify/Collection/301"}}, want: true},
		{name: "collection miss", target: ProductTarget{Type: ProductCollections, IDs: []string{"999"}}, want: false},
		{name: "tag hit", target: ProductTarget{Type: ProductTags, Tags: []string{"sale"}}, want: true},
		{name: "tag case", target: ProductTarget{Type: ProductTags, Tags: []string{"SALE"}}, want: false},
		{name: "unknown", target: ProductTarget{Type: "brand"}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule := Rule{Product: tc.target}
			if got := ProductMatches(rule, product); got != tc.want {
				t.Fatalf("want %v got %v", tc.want, got)
			}
		})
	}
}

func TestProductMatchesMissingData(t *testing.T) {
	rule := Rule{Product: ProductTarget{Type: ProductSpecificVariants, IDs: []string{"1"}}}
	if ProductMatches(rule, ProductContext{ProductID: "1"}) {
		t.Fatalf("missing variant id should not match")
	}
	emptyID := Rule{Product: ProductTarget{Type: ProductSpecificProducts, IDs: []string{"gid://shopify/Product/"}}}
	if ProductMatches(emptyID, ProductContext{ProductID: "abc"}) {
		t.Fatalf("ids normalizing to empty must not match each other")
	}
}
