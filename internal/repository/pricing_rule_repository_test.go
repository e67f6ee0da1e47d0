package repository

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/custom-pricing/internal/models"
	"github.com/custom-pricing/internal/pricing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupPricingRuleRepositoryTest(t *testing.T) (*GormPricingRuleRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.PricingRule{}, &models.PricingRuleAuditLog{}); err != nil {
		t.Fatalf("migrate pricing rule failed: %v", err)
	}
	return NewPricingRuleRepository(db), db
}

func createPricingRule(t *testing.T, repo *GormPricingRuleRepository, rule pricing.Rule) *models.PricingRule {
	t.Helper()
	row := &models.PricingRule{}
	row.ApplyRule(rule)
	if err := repo.Create(row); err != nil {
		t.Fatalf("create rule failed: %v", err)
	}
	return row
}

func vipRule(name string, status pricing.RuleStatus) pricing.Rule {
	return pricing.Rule{
		Name:     name,
		Status:   status,
		Customer: pricing.CustomerTarget{Type: pricing.CustomerTags, Tags: []string{"vip"}},
		Product: pricing.ProductTarget{
			Type:  pricing.ProductSpecificProducts,
			IDs:   []string{"gid://shopify/Product/1001"},
			Items: []pricing.TargetItem{{ProductID: "1001", Handle: "tee", Title: "Tee"}},
		},
		Pricing: pricing.Pricing{Mode: pricing.ModePercentOff, Value: 12.5},
	}
}

func TestPricingRuleRoundTrip(t *testing.T) {
	repo, _ := setupPricingRuleRepositoryTest(t)
	created := createPricingRule(t, repo, vipRule("VIP tee", pricing.StatusActive))

	got, err := repo.GetByID(created.ID)
	if err != nil {
		t.Fatalf("get rule failed: %v", err)
	}
	if got == nil {
		t.Fatalf("rule should exist")
	}
	rule := got.ToRule()
	if rule.ID != fmt.Sprint(created.ID) {
		t.Fatalf("rule id want %d got %s", created.ID, rule.ID)
	}
	if rule.Pricing.Value != 12.5 || rule.Pricing.Mode != pricing.ModePercentOff {
		t.Fatalf("unexpected pricing %+v", rule.Pricing)
	}
	if len(rule.Customer.Tags) != 1 || rule.Customer.Tags[0] != "vip" {
		t.Fatalf("unexpected customer tags %v", rule.Customer.Tags)
	}
	if len(rule.Product.Items) != 1 || rule.Product.Items[0].Handle != "tee" {
		t.Fatalf("unexpected product items %+v", rule.Product.Items)
	}
	if err := rule.Validate(); err != nil {
		t.Fatalf("stored rule should stay valid: %v", err)
	}

	missing, err := repo.GetByID(created.ID + 100)
	if err != nil || missing != nil {
		t.Fatalf("missing rule want nil,nil got %v,%v", missing, err)
	}
}

func TestListOrderedKeepsInsertionOrder(t *testing.T) {
	repo, _ := setupPricingRuleRepositoryTest(t)
	first := createPricingRule(t, repo, vipRule("first", pricing.StatusActive))
	second := createPricingRule(t, repo, vipRule("second", pricing.StatusInactive))
	third := createPricingRule(t, repo, vipRule("third", pricing.StatusActive))

	// 更新不改变顺序
	first.Name = "first-renamed"
	if err := repo.Update(first); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	all, err := repo.ListOrdered(false)
	if err != nil {
		t.Fatalf("list ordered failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != first.ID || all[1].ID != second.ID || all[2].ID != third.ID {
		t.Fatalf("unexpected order %+v", all)
	}

	active, err := repo.ListOrdered(true)
	if err != nil {
		t.Fatalf("list active failed: %v", err)
	}
	if len(active) != 2 || active[0].ID != first.ID || active[1].ID != third.ID {
		t.Fatalf("unexpected active rules %+v", active)
	}

	if err := repo.Delete(first.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	active, _ = repo.ListOrdered(true)
	if len(active) != 1 || active[0].ID != third.ID {
		t.Fatalf("deleted rule should be gone, got %+v", active)
	}
}

func TestPricingRuleListFilters(t *testing.T) {
	repo, _ := setupPricingRuleRepositoryTest(t)
	createPricingRule(t, repo, vipRule("VIP tee", pricing.StatusActive))
	createPricingRule(t, repo, vipRule("VIP hat", pricing.StatusInactive))
	createPricingRule(t, repo, pricing.Rule{
		Name:     "Wholesale",
		Status:   pricing.StatusActive,
		Customer: pricing.CustomerTarget{Type: pricing.CustomerTags, Tags: []string{"wholesale"}},
		Product:  pricing.ProductTarget{Type: pricing.ProductTags, Tags: []string{"bulk"}},
		Pricing:  pricing.Pricing{Mode: pricing.ModeAmountOff, Value: 5},
	})

	rules, total, err := repo.List(PricingRuleListFilter{Page: 1, PageSize: 10, Status: "active"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 2 || len(rules) != 2 {
		t.Fatalf("active filter want 2 got total=%d len=%d", total, len(rules))
	}

	rules, total, err = repo.List(PricingRuleListFilter{Page: 1, PageSize: 10, Search: "vip"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if total != 2 || rules[0].Name != "VIP tee" {
		t.Fatalf("search want 2 ordered rules got total=%d %+v", total, rules)
	}

	rules, total, err = repo.List(PricingRuleListFilter{Page: 1, PageSize: 10, Tag: "bulk"})
	if err != nil {
		t.Fatalf("tag filter failed: %v", err)
	}
	if total != 1 || rules[0].Name != "Wholesale" {
		t.Fatalf("tag filter want wholesale got total=%d %+v", total, rules)
	}

	rules, total, err = repo.List(PricingRuleListFilter{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("paged list failed: %v", err)
	}
	if total != 3 || len(rules) != 1 || rules[0].Name != "Wholesale" {
		t.Fatalf("page 2 want last rule got total=%d %+v", total, rules)
	}
}

func TestUpdateWarnings(t *testing.T) {
	repo, _ := setupPricingRuleRepositoryTest(t)
	rule := vipRule("new price", pricing.StatusActive)
	rule.Pricing = pricing.Pricing{Mode: pricing.ModeNewPrice, Value: 120}
	row := createPricingRule(t, repo, rule)

	candidates, err := repo.ListWarningCandidates()
	if err != nil {
		t.Fatalf("list candidates failed: %v", err)
	}
	if len(candidates) != 1 || candidates[0] != row.ID {
		t.Fatalf("unexpected candidates %v", candidates)
	}

	checkedAt := time.Now().Truncate(time.Second)
	warnings := models.PriceWarnings{{RuleID: row.RuleID(), ProductID: "1001", Handle: "tee", OriginalPrice: 100, NewPrice: 120, Message: "higher"}}
	if err := repo.UpdateWarnings(row.ID, warnings, checkedAt); err != nil {
		t.Fatalf("update warnings failed: %v", err)
	}
	got, err := repo.GetByID(row.ID)
	if err != nil || got == nil {
		t.Fatalf("reload failed: %v", err)
	}
	if len(got.Warnings) != 1 || got.Warnings[0].OriginalPrice != 100 {
		t.Fatalf("unexpected warnings %+v", got.Warnings)
	}
	if got.WarningsCheckedAt == nil {
		t.Fatalf("checked at should be set")
	}
	if got.Name != "new price" {
		t.Fatalf("other columns should stay untouched, got %s", got.Name)
	}
}
