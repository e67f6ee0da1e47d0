package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/custom-pricing/internal/pricing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestMoneyJSON(t *testing.T) {
	raw, err := json.Marshal(NewMoneyFromFloat(19.899))
	if err != nil {
		t.Fatalf("marshal money failed: %v", err)
	}
	if string(raw) != "19.90" {
		t.Fatalf("money should marshal as a two decimal number, got %s", raw)
	}

	cases := []struct {
		input string
		want  float64
	}{
		{input: `12.345`, want: 12.35},
		{input: `"7.1"`, want: 7.1},
		{input: `null`, want: 0},
	}
	for _, tc := range cases {
		var m Money
		if err := json.Unmarshal([]byte(tc.input), &m); err != nil {
			t.Fatalf("unmarshal %s failed: %v", tc.input, err)
		}
		if m.Float() != tc.want {
			t.Fatalf("unmarshal %s want %v got %v", tc.input, tc.want, m.Float())
		}
	}
	var bad Money
	if err := json.Unmarshal([]byte(`"ten"`), &bad); err == nil {
		t.Fatalf("non numeric money should fail")
	}
}

func TestPricingRuleRoundTrip(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&PricingRule{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	rule := pricing.Rule{
		Name:     "Guest tee price",
		Status:   pricing.StatusActive,
		Customer: pricing.CustomerTarget{Type: pricing.CustomerTags, Tags: []string{"VIP", "wholesale"}},
		Product: pricing.ProductTarget{
			Type:  pricing.ProductSpecificProducts,
			IDs:   []string{"1001"},
			Items: []pricing.TargetItem{{ProductID: "1001", Handle: "classic-tee", Title: "Classic Tee"}},
		},
		Pricing: pricing.Pricing{Mode: pricing.ModeNewPrice, Value: 19.9},
	}
	row := &PricingRule{}
	row.ApplyRule(rule)
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("create rule failed: %v", err)
	}

	var loaded PricingRule
	if err := db.First(&loaded, row.ID).Error; err != nil {
		t.Fatalf("load rule failed: %v", err)
	}
	got := loaded.ToRule()
	if got.ID != loaded.RuleID() || got.ID == "" {
		t.Fatalf("rule id should be the row id, got %q", got.ID)
	}
	if got.Pricing.Value != 19.9 || got.Pricing.Mode != pricing.ModeNewPrice {
		t.Fatalf("pricing lost in round trip: %+v", got.Pricing)
	}
	if len(got.Customer.Tags) != 2 || got.Customer.Tags[0] != "VIP" {
		t.Fatalf("customer tags should keep case and order: %v", got.Customer.Tags)
	}
	if len(got.Product.Items) != 1 || got.Product.Items[0].Handle != "classic-tee" {
		t.Fatalf("product items lost: %+v", got.Product.Items)
	}
	if got.Customer.CustomerIDs != nil {
		t.Fatalf("empty id list should stay nil, got %v", got.Customer.CustomerIDs)
	}
}
