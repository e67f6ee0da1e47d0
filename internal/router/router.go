package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/custom-pricing/internal/authz"
	"github.com/custom-pricing/internal/cache"
	"github.com/custom-pricing/internal/config"
	"github.com/custom-pricing/internal/constants"
	adminhandlers "github.com/custom-pricing/internal/http/handlers/admin"
	publichandlers "github.com/custom-pricing/internal/http/handlers/public"
	"github.com/custom-pricing/internal/http/response"
	"github.com/custom-pricing/internal/logger"
	"github.com/custom-pricing/internal/metrics"
	"github.com/custom-pricing/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.Z()
	r := gin.New()

	// 初始化 Handler（按店铺侧/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = constants.RedisPrefixDefault
	}
	redisClient := cache.Client()
	adminLoginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		MessageKey:    "error.login_too_many",
	}
	storefrontRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:storefront", redisPrefix),
		WindowSeconds: cfg.Security.PublicRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.PublicRateLimit.MaxRequests,
		FailOpen:      true,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(MetricsMiddleware())
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		// 店铺侧接口（主题脚本调用，无需登录）
		storefront := apiV1.Group("/storefront")
		{
			storefront.GET("/rules", publicHandler.GetStorefrontRules)
			storefront.POST("/render", RateLimitMiddleware(redisClient, storefrontRule, KeyByIP), publicHandler.RenderStorefront)
			storefront.POST("/quote", RateLimitMiddleware(redisClient, storefrontRule, KeyByIP), publicHandler.QuoteStorefront)
			storefront.GET("/session", RateLimitMiddleware(redisClient, storefrontRule, KeyByIP), publicHandler.StorefrontSession)
		}

		// 管理员接口
		admin := apiV1.Group("/admin")
		{
			// 登录接口（无需鉴权）
			admin.POST("/login", RateLimitMiddleware(redisClient, adminLoginRule, KeyByIPAndJSONField("username")), adminHandler.AdminLogin)

			// 仅需登录：个人信息与密码
			self := admin.Group("")
			self.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo))
			{
				self.PUT("/password", adminHandler.UpdateAdminPassword)
				self.GET("/authz/me", adminHandler.GetAuthzMe)
			}

			// 需要角色授权的接口
			authorized := admin.Group("")
			authorized.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo), AdminRBACMiddleware(c.AuthzService))
			{
				// 定价规则
				authorized.GET("/pricing-rules", adminHandler.ListPricingRules)
				authorized.POST("/pricing-rules", adminHandler.CreatePricingRule)
				authorized.POST("/pricing-rules/validate", adminHandler.ValidatePricingRule)
				authorized.GET("/pricing-rules/:id", adminHandler.GetPricingRule)
				authorized.PUT("/pricing-rules/:id", adminHandler.UpdatePricingRule)
				authorized.DELETE("/pricing-rules/:id", adminHandler.DeletePricingRule)
				authorized.POST("/pricing-rules/:id/warnings", adminHandler.RecheckPricingRuleWarnings)
				authorized.GET("/pricing-rule-audits", adminHandler.ListPricingRuleAudits)
				authorized.GET("/storefront/rules", adminHandler.GetStorefrontRules)

				// 权限管理
				authorized.GET("/authz/roles", adminHandler.ListAuthzRoles)
				authorized.GET("/authz/admins", adminHandler.ListAuthzAdmins)
				authorized.PUT("/authz/admins/:id/roles", adminHandler.SetAuthzAdminRoles)
				authorized.GET("/authz/permissions/catalog", func(ctx *gin.Context) {
					response.Success(ctx, buildAdminPermissionCatalog(r))
				})
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	if path := strings.TrimSpace(cfg.Server.MetricsPath); path != "" {
		r.GET(path, gin.WrapH(metrics.Handler()))
	}

	return r
}

type adminPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

// buildAdminPermissionCatalog 从已注册路由生成可授权的权限列表
func buildAdminPermissionCatalog(engine *gin.Engine) []adminPermissionCatalogItem {
	if engine == nil {
		return []adminPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/admin/") {
			continue
		}
		switch item.Path {
		case "/api/v1/admin/login", "/api/v1/admin/password", "/api/v1/admin/authz/me":
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, adminPermissionCatalogItem{
			Module:     deriveAdminPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func deriveAdminPermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 {
		return segments[0]
	}
	if segments[0] != "admin" {
		return segments[0]
	}
	switch segments[1] {
	case "authz":
		return "authz"
	case "pricing-rules", "pricing-rule-audits", "storefront":
		return "pricing"
	}
	return segments[1]
}
