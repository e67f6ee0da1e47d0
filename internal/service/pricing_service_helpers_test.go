package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/custom-pricing/internal/config"
	"github.com/custom-pricing/internal/models"
	"github.com/custom-pricing/internal/repository"
	"github.com/custom-pricing/internal/storefront"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// stubCatalog 按 handle 返回固定商品数据
type stubCatalog struct {
	mu       sync.Mutex
	products map[string]*storefront.ProductData
	calls    map[string]int
}

func newStubCatalog(products ...*storefront.ProductData) *stubCatalog {
	c := &stubCatalog{products: map[string]*storefront.ProductData{}, calls: map[string]int{}}
	for _, p := range products {
		c.products[p.Handle] = p
	}
	return c
}

func (c *stubCatalog) FetchProduct(_ context.Context, handle string) (*storefront.ProductData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[handle]++
	data, ok := c.products[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storefront.ErrFetchFailed, handle)
	}
	return data, nil
}

func teeProduct() *storefront.ProductData {
	return &storefront.ProductData{
		ID:     "1001",
		Handle: "tee",
		Title:  "Tee",
		Variants: []storefront.VariantData{
			{ID: "11", Title: "S", Price: 100},
			{ID: "12", Title: "M", Price: 130},
		},
	}
}

func capProduct() *storefront.ProductData {
	return &storefront.ProductData{
		ID:     "2001",
		Handle: "cap",
		Title:  "Cap",
		Variants: []storefront.VariantData{
			{ID: "21", Title: "Default Title", Price: 80, CompareAtPrice: 140},
		},
	}
}

type pricingRuleTestEnv struct {
	db      *gorm.DB
	repo    *repository.GormPricingRuleRepository
	audit   *PricingRuleAuditService
	source  *RuleSourceService
	catalog *stubCatalog
	svc     *PricingRuleService
}

func setupPricingRuleServiceTest(t *testing.T) *pricingRuleTestEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Admin{}, &models.PricingRule{}, &models.PricingRuleAuditLog{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	repo := repository.NewPricingRuleRepository(db)
	audit := NewPricingRuleAuditService(repository.NewPricingRuleAuditLogRepository(db))
	source := NewRuleSourceService(config.PricingConfig{RuleSource: "db"}, repo)
	catalog := newStubCatalog(teeProduct(), capProduct())
	svc := NewPricingRuleService(repo, audit, NewPriceWarningService(catalog, 2), source, nil)
	return &pricingRuleTestEnv{db: db, repo: repo, audit: audit, source: source, catalog: catalog, svc: svc}
}
