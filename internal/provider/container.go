package provider

import (
	"time"

	"github.com/custom-pricing/internal/authz"
	"github.com/custom-pricing/internal/cache"
	"github.com/custom-pricing/internal/config"
	"github.com/custom-pricing/internal/logger"
	"github.com/custom-pricing/internal/models"
	"github.com/custom-pricing/internal/queue"
	"github.com/custom-pricing/internal/repository"
	"github.com/custom-pricing/internal/service"
	"github.com/custom-pricing/internal/storefront"
)

// Container 依赖注入容器
type Container struct {
	Config           *config.Config
	QueueClient      *queue.Client
	StorefrontClient *storefront.Client

	// Repositories
	AdminRepo               repository.AdminRepository
	PricingRuleRepo         repository.PricingRuleRepository
	PricingRuleAuditLogRepo repository.PricingRuleAuditLogRepository

	// Services
	AuthzService            *authz.Service
	AuthService             *service.AuthService
	PricingRuleAuditService *service.PricingRuleAuditService
	PriceWarningService     *service.PriceWarningService
	RuleSourceService       *service.RuleSourceService
	PricingRuleService      *service.PricingRuleService
	StorefrontService       *service.StorefrontService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:           cfg,
		QueueClient:      queueClient,
		StorefrontClient: NewStorefrontClient(cfg.Storefront),
	}
	if !c.StorefrontClient.Enabled() {
		logger.Warnw("provider_storefront_base_url_empty", "hint", "catalog prices and price warnings are disabled")
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

// NewStorefrontClient 按配置创建店铺接口客户端
func NewStorefrontClient(cfg config.StorefrontConfig) *storefront.Client {
	return storefront.NewClient(storefront.ClientConfig{
		BaseURL:         cfg.BaseURL,
		ProductPath:     cfg.ProductPath,
		CartPath:        cfg.CartPath,
		Timeout:         time.Duration(cfg.TimeoutMS) * time.Millisecond,
		RetryMax:        cfg.RetryMax,
		ProductCacheTTL: time.Duration(cfg.ProductCacheSeconds) * time.Second,
	}, logger.S())
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.PricingRuleRepo = repository.NewPricingRuleRepository(db)
	c.PricingRuleAuditLogRepo = repository.NewPricingRuleAuditLogRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	var catalog storefront.ProductFetcher
	if c.StorefrontClient.Enabled() {
		catalog = c.StorefrontClient
	}

	c.AuthService = service.NewAuthService(c.Config, c.AdminRepo)
	c.PricingRuleAuditService = service.NewPricingRuleAuditService(c.PricingRuleAuditLogRepo)
	c.PriceWarningService = service.NewPriceWarningService(catalog, c.Config.Pricing.WarningCheckConcurrency)
	c.RuleSourceService = service.NewRuleSourceService(c.Config.Pricing, c.PricingRuleRepo)
	c.PricingRuleService = service.NewPricingRuleService(c.PricingRuleRepo, c.PricingRuleAuditService, c.PriceWarningService, c.RuleSourceService, c.QueueClient)
	c.StorefrontService = service.NewStorefrontService(c.Config, c.RuleSourceService, c.StorefrontClient)
}
