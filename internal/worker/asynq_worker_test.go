package worker

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/custom-pricing/internal/config"
	"github.com/custom-pricing/internal/models"
	"github.com/custom-pricing/internal/pricing"
	"github.com/custom-pricing/internal/provider"
	"github.com/custom-pricing/internal/queue"
	"github.com/custom-pricing/internal/repository"
	"github.com/custom-pricing/internal/service"
	"github.com/custom-pricing/internal/storefront"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

type fixedCatalog map[string]*storefront.ProductData

func (f fixedCatalog) FetchProduct(_ context.Context, handle string) (*storefront.ProductData, error) {
	if data, ok := f[handle]; ok {
		return data, nil
	}
	return nil, storefront.ErrFetchFailed
}

func setupWorkerTest(t *testing.T) (*Consumer, repository.PricingRuleRepository) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.PricingRule{}, &models.PricingRuleAuditLog{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	repo := repository.NewPricingRuleRepository(db)
	catalog := fixedCatalog{"tee": {ID: "1001", Handle: "tee", Variants: []storefront.VariantData{{ID: "11", Price: 100}}}}
	cfg := &config.Config{}
	svc := service.NewPricingRuleService(
		repo,
		service.NewPricingRuleAuditService(repository.NewPricingRuleAuditLogRepository(db)),
		service.NewPriceWarningService(catalog, 1),
		service.NewRuleSourceService(cfg.Pricing, repo),
		nil,
	)
	return NewConsumer(&provider.Container{Config: cfg, PricingRuleRepo: repo, PricingRuleService: svc}), repo
}

func TestHandlePricingRuleWarningPersistsWarnings(t *testing.T) {
	consumer, repo := setupWorkerTest(t)
	row := &models.PricingRule{}
	row.ApplyRule(pricing.Rule{
		Status:   pricing.StatusActive,
		Customer: pricing.CustomerTarget{Type: pricing.CustomerAll},
		Product: pricing.ProductTarget{
			Type:  pricing.ProductSpecificProducts,
			IDs:   []string{"1001"},
			Items: []pricing.TargetItem{{ProductID: "1001", Handle: "tee"}},
		},
		Pricing: pricing.Pricing{Mode: pricing.ModeNewPrice, Value: 150},
	})
	if err := repo.Create(row); err != nil {
		t.Fatalf("create rule failed: %v", err)
	}

	task, err := queue.NewPricingRuleWarningTask(queue.PricingRuleWarningPayload{RuleID: row.ID, Reason: "saved"})
	if err != nil {
		t.Fatalf("new task failed: %v", err)
	}
	if err := consumer.handlePricingRuleWarning(context.Background(), task); err != nil {
		t.Fatalf("handle task failed: %v", err)
	}
	stored, err := repo.GetByID(row.ID)
	if err != nil || stored == nil {
		t.Fatalf("reload rule failed: %v", err)
	}
	if len(stored.Warnings) != 1 || stored.Warnings[0].OriginalPrice != 100 || stored.WarningsCheckedAt == nil {
		t.Fatalf("unexpected warnings: %+v", stored.Warnings)
	}
}

func TestHandlePricingRuleWarningSkipsUnrecoverable(t *testing.T) {
	consumer, _ := setupWorkerTest(t)

	missing, _ := queue.NewPricingRuleWarningTask(queue.PricingRuleWarningPayload{RuleID: 404})
	if err := consumer.handlePricingRuleWarning(context.Background(), missing); err != nil {
		t.Fatalf("missing rule should be skipped, got %v", err)
	}
	garbage := asynq.NewTask(queue.TaskPricingRuleWarning, []byte("{"))
	if err := consumer.handlePricingRuleWarning(context.Background(), garbage); err != nil {
		t.Fatalf("bad payload should be dropped, got %v", err)
	}
	var nilConsumer *Consumer
	if err := nilConsumer.handlePricingRuleWarning(context.Background(), missing); err != nil {
		t.Fatalf("nil consumer should no-op, got %v", err)
	}
}

func TestRegisterPricingRuleWarningHandler(t *testing.T) {
	consumer, _ := setupWorkerTest(t)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	task := asynq.NewTask(queue.TaskPricingRuleWarning, []byte(`{"rule_id":404}`))
	if err := mux.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("registered handler should process task, got %v", err)
	}
}

func TestHandlePricingRuleWarningSweepChecksSynchronously(t *testing.T) {
	consumer, repo := setupWorkerTest(t)
	row := &models.PricingRule{}
	row.ApplyRule(pricing.Rule{
		Status:   pricing.StatusActive,
		Customer: pricing.CustomerTarget{Type: pricing.CustomerAll},
		Product: pricing.ProductTarget{
			Type:  pricing.ProductSpecificProducts,
			IDs:   []string{"1001"},
			Items: []pricing.TargetItem{{ProductID: "1001", Handle: "tee"}},
		},
		Pricing: pricing.Pricing{Mode: pricing.ModeNewPrice, Value: 120},
	})
	if err := repo.Create(row); err != nil {
		t.Fatalf("create rule failed: %v", err)
	}

	mux := asynq.NewServeMux()
	consumer.Register(mux)
	if err := mux.ProcessTask(context.Background(), queue.NewPricingRuleWarningSweepTask()); err != nil {
		t.Fatalf("sweep task failed: %v", err)
	}
	stored, err := repo.GetByID(row.ID)
	if err != nil || stored == nil {
		t.Fatalf("reload rule failed: %v", err)
	}
	if len(stored.Warnings) != 1 || stored.WarningsCheckedAt == nil {
		t.Fatalf("sweep without queue should check rules inline, got %+v", stored.Warnings)
	}
}

func TestSweepInterval(t *testing.T) {
	consumer, _ := setupWorkerTest(t)
	if got := consumer.sweepInterval(); got != defaultWarningSweepInterval {
		t.Fatalf("default interval want %v got %v", defaultWarningSweepInterval, got)
	}
	consumer.Config.Pricing.WarningSweepMinutes = 15
	if got := consumer.sweepInterval(); got != 15*time.Minute {
		t.Fatalf("configured interval want 15m got %v", got)
	}
	var empty *Consumer
	if empty.ready() {
		t.Fatalf("nil consumer should not be ready")
	}
}
