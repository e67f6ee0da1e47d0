package main

import (
	"errors"
	"flag"

	"github.com/custom-pricing/internal/authz"
	"github.com/custom-pricing/internal/config"
	"github.com/custom-pricing/internal/logger"
	"github.com/custom-pricing/internal/models"
	"github.com/custom-pricing/internal/pricing"
	"github.com/custom-pricing/internal/repository"
	"github.com/custom-pricing/internal/service"
)

type demoAdmin struct {
	Username string
	Password string
	Role     string
}

func main() {
	var withAdmins bool
	flag.BoolVar(&withAdmins, "admins", true, "同时创建演示管理员（pricing_viewer / pricing_editor）")
	flag.Parse()

	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.ToDBOptions()); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 演示规则：按创建顺序决定优先级
	rules := []pricing.Rule{
		{
			Name:     "Wholesale 25% off everything",
			Status:   pricing.StatusActive,
			Customer: pricing.CustomerTarget{Type: pricing.CustomerTags, Tags: []string{"wholesale"}},
			Product:  pricing.ProductTarget{Type: pricing.ProductAll},
			Pricing:  pricing.Pricing{Mode: pricing.ModePercentOff, Value: 25},
		},
		{
			Name:     "Members $5 off summer collection",
			Status:   pricing.StatusActive,
			Customer: pricing.CustomerTarget{Type: pricing.CustomerLoggedIn},
			Product:  pricing.ProductTarget{Type: pricing.ProductCollections, IDs: []string{"summer"}},
			Pricing:  pricing.Pricing{Mode: pricing.ModeAmountOff, Value: 5},
		},
		{
			Name:     "Guest price for the classic tee",
			Status:   pricing.StatusActive,
			Customer: pricing.CustomerTarget{Type: pricing.CustomerNonLoggedIn},
			Product: pricing.ProductTarget{
				Type:  pricing.ProductSpecificProducts,
				IDs:   []string{"1001"},
				Items: []pricing.TargetItem{{ProductID: "1001", Handle: "classic-tee", Title: "Classic Tee"}},
			},
			Pricing: pricing.Pricing{Mode: pricing.ModeNewPrice, Value: 19.9},
		},
		{
			Name:     "Clearance tag 40% off (paused)",
			Status:   pricing.StatusInactive,
			Customer: pricing.CustomerTarget{Type: pricing.CustomerAll},
			Product:  pricing.ProductTarget{Type: pricing.ProductTags, Tags: []string{"clearance"}},
			Pricing:  pricing.Pricing{Mode: pricing.ModePercentOff, Value: 40},
		},
	}

	ruleRepo := repository.NewPricingRuleRepository(models.DB)
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			stdLog.Printf("Skip invalid demo rule %q: %v", rule.Name, err)
			continue
		}
		var count int64
		if err := models.DB.Model(&models.PricingRule{}).Where("name = ?", rule.Name).Count(&count).Error; err != nil {
			stdLog.Printf("Failed to check rule %q: %v", rule.Name, err)
			continue
		}
		if count > 0 {
			stdLog.Printf("Rule already exists: %s", rule.Name)
			continue
		}
		row := &models.PricingRule{}
		row.ApplyRule(rule)
		if err := ruleRepo.Create(row); err != nil {
			stdLog.Printf("Failed to create rule %q: %v", rule.Name, err)
			continue
		}
		stdLog.Printf("Created rule #%d: %s", row.ID, rule.Name)
	}

	if !withAdmins {
		stdLog.Println("Seed completed (rules only)")
		return
	}

	// 角色与演示管理员
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		stdLog.Fatalf("Failed to init authz: %v", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		stdLog.Fatalf("Failed to bootstrap roles: %v", err)
	}
	authService := service.NewAuthService(cfg, repository.NewAdminRepository(models.DB))
	admins := []demoAdmin{
		{Username: "pricing-viewer", Password: "Viewer#2024demo", Role: authz.RolePricingViewer},
		{Username: "pricing-editor", Password: "Editor#2024demo", Role: authz.RolePricingEditor},
	}
	for _, item := range admins {
		admin, err := authService.CreateAdmin(item.Username, item.Password, false)
		if errors.Is(err, service.ErrAdminExists) {
			stdLog.Printf("Admin already exists: %s", item.Username)
			continue
		}
		if err != nil {
			stdLog.Printf("Failed to create admin %s: %v", item.Username, err)
			continue
		}
		if err := authzService.SetAdminRoles(admin.ID, []string{item.Role}); err != nil {
			stdLog.Printf("Failed to assign role %s to %s: %v", item.Role, item.Username, err)
			continue
		}
		stdLog.Printf("Created admin %s with role %s", item.Username, item.Role)
	}

	stdLog.Println("Seed completed")
}
