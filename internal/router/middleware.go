package router

import (
	"strconv"
	"strings"
	"time"

	"github.com/custom-pricing/internal/authz"
	"github.com/custom-pricing/internal/cache"
	"github.com/custom-pricing/internal/config"
	handlershared "github.com/custom-pricing/internal/http/handlers/shared"
	"github.com/custom-pricing/internal/http/response"
	"github.com/custom-pricing/internal/i18n"
	"github.com/custom-pricing/internal/logger"
	"github.com/custom-pricing/internal/metrics"
	"github.com/custom-pricing/internal/repository"
	"github.com/custom-pricing/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

var defaultCORSHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Accept-Encoding",
	"Accept-Language",
	"Authorization",
	"Cache-Control",
	"X-Requested-With",
}

// 店铺脚本需要读取的响应头
var exposedCORSHeaders = []string{
	requestIDHeader,
	"X-RateLimit-Limit",
	"X-RateLimit-Remaining",
	"Retry-After",
}

// CORSMiddleware 跨域中间件
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	methodsHeader := strings.Join(defaultIfEmpty(cfg.AllowedMethods, []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}), ", ")
	headersHeader := strings.Join(defaultIfEmpty(cfg.AllowedHeaders, defaultCORSHeaders), ", ")
	exposeHeader := strings.Join(exposedCORSHeaders, ", ")

	return func(c *gin.Context) {
		header := c.Writer.Header()
		if allowedOrigin := resolveAllowedOrigin(c.GetHeader("Origin"), allowedOrigins, cfg.AllowCredentials); allowedOrigin != "" {
			header.Set("Access-Control-Allow-Origin", allowedOrigin)
			if allowedOrigin != "*" {
				header.Add("Vary", "Origin")
			}
		}
		if cfg.AllowCredentials {
			header.Set("Access-Control-Allow-Credentials", "true")
		}
		header.Set("Access-Control-Allow-Headers", headersHeader)
		header.Set("Access-Control-Allow-Methods", methodsHeader)
		header.Set("Access-Control-Expose-Headers", exposeHeader)
		if cfg.MaxAge > 0 {
			header.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

func defaultIfEmpty(values, fallback []string) []string {
	if len(values) == 0 {
		return fallback
	}
	return values
}

// resolveAllowedOrigin 通配符且允许凭证时回显 Origin，否则按白名单精确匹配
func resolveAllowedOrigin(origin string, allowedOrigins []string, allowCredentials bool) string {
	for _, allowed := range allowedOrigins {
		if allowed != "*" {
			continue
		}
		if allowCredentials && origin != "" {
			return origin
		}
		return "*"
	}
	if origin == "" {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// RequestIDMiddleware 请求 ID 中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(handlershared.RequestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}

// LoggerMiddleware 结构化请求日志中间件
// websocket 会话在连接关闭后才返回，latency 即会话时长。
func LoggerMiddleware(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.L()
	}
	sugar := log.Sugar()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []interface{}{
			"request_id", getRequestID(c),
			"method", c.Request.Method,
			"route", c.FullPath(),
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
			sugar.Infow("session", fields...)
			return
		}
		if len(c.Errors) > 0 {
			sugar.Errorw("request", append(fields, "errors", c.Errors.String())...)
			return
		}
		sugar.Infow("request", fields...)
	}
}

// MetricsMiddleware 按路由模板记录请求数与耗时
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		streaming := strings.EqualFold(c.GetHeader("Upgrade"), "websocket")
		metrics.ObserveHTTP(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start), streaming)
	}
}

func getRequestID(c *gin.Context) string {
	return handlershared.ContextString(c, handlershared.RequestIDKey)
}

func abortUnauthorized(c *gin.Context, key string) {
	response.Unauthorized(c, i18n.T(i18n.ResolveLocale(c), key))
	c.Abort()
}

// bearerToken 解析 Authorization 头，返回 i18n 错误键
func bearerToken(header string) (string, string) {
	if header == "" {
		return "", "error.auth_header_missing"
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", "error.auth_header_invalid"
	}
	return strings.TrimSpace(parts[1]), ""
}

// JWTAuthMiddleware JWT 鉴权中间件
func JWTAuthMiddleware(secretKey string, adminRepo repository.AdminRepository) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return func(c *gin.Context) {
		if secretKey == "" {
			abortUnauthorized(c, "error.jwt_secret_missing")
			return
		}
		if adminRepo == nil {
			abortUnauthorized(c, "error.token_invalid")
			return
		}
		tokenString, errKey := bearerToken(c.GetHeader("Authorization"))
		if errKey != "" {
			abortUnauthorized(c, errKey)
			return
		}

		claims := &service.JWTClaims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(secretKey), nil
		})
		if err != nil || !token.Valid || claims.AdminID == 0 {
			abortUnauthorized(c, "error.token_invalid")
			return
		}

		state, err := cache.LoadAdminAuthState(c.Request.Context(), claims.AdminID, adminRepo.GetByID)
		if err != nil || state == nil {
			abortUnauthorized(c, "error.token_invalid")
			return
		}
		var issuedAt time.Time
		if claims.IssuedAt != nil {
			issuedAt = claims.IssuedAt.Time
		}
		if !state.Accepts(claims.TokenVersion, issuedAt) {
			abortUnauthorized(c, "error.token_revoked")
			return
		}

		c.Set(handlershared.AdminIDKey, claims.AdminID)
		c.Set(handlershared.UsernameKey, claims.Username)
		c.Set(handlershared.IsSuperKey, state.IsSuper)
		c.Next()
	}
}

// AdminRBACMiddleware 管理端 RBAC 鉴权中间件，超级管理员直接放行
func AdminRBACMiddleware(authzService *authz.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authzService == nil {
			logger.Errorw("admin_rbac_service_unavailable")
			abortUnauthorized(c, "error.unauthorized")
			return
		}
		if c.GetBool(handlershared.IsSuperKey) {
			c.Next()
			return
		}

		adminID, ok := handlershared.AdminID(c)
		if !ok {
			abortUnauthorized(c, "error.unauthorized")
			return
		}

		resource := c.FullPath()
		if strings.TrimSpace(resource) == "" {
			resource = c.Request.URL.Path
		}

		allowed, err := authzService.EnforceAdmin(adminID, resource, c.Request.Method)
		if err != nil {
			logger.Errorw("admin_rbac_enforce_failed",
				"admin_id", adminID,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"error", err,
			)
			abortUnauthorized(c, "error.unauthorized")
			return
		}
		if !allowed {
			logger.Warnw("admin_rbac_permission_denied",
				"admin_id", adminID,
				"method", c.Request.Method,
				"resource", authz.NormalizeObject(resource),
			)
			response.Forbidden(c, i18n.T(i18n.ResolveLocale(c), "error.forbidden"))
			c.Abort()
			return
		}
		c.Next()
	}
}
