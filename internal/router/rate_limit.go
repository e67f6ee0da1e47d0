package router

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/custom-pricing/internal/http/response"
	"github.com/custom-pricing/internal/i18n"
	"github.com/custom-pricing/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/tidwall/gjson"
)

// RateLimitKeyFunc 生成限流 key 的函数
type RateLimitKeyFunc func(*gin.Context) string

// RateLimitRule 限流规则
// FailOpen 为 true 时 Redis 不可用直接放行：店铺页面宁可不限流也不能因此显示不出价格。
type RateLimitRule struct {
	Prefix        string
	WindowSeconds int
	MaxRequests   int
	MessageKey    string
	FailOpen      bool
}

// 固定窗口计数，返回 {当前计数, 剩余 TTL}
var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("TTL", KEYS[1])
return {current, ttl}
`)

// RateLimitMiddleware Redis 频率限制中间件
func RateLimitMiddleware(client *redis.Client, rule RateLimitRule, keyFunc RateLimitKeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || rule.WindowSeconds <= 0 || rule.MaxRequests <= 0 {
			c.Next()
			return
		}

		key := ""
		if keyFunc != nil {
			key = strings.TrimSpace(keyFunc(c))
		}
		if key == "" {
			key = c.ClientIP()
		}
		if rule.Prefix != "" {
			key = fmt.Sprintf("%s:%s", rule.Prefix, key)
		}

		count, ttlSeconds, err := runRateLimit(c, client, key, rule.WindowSeconds)
		if err != nil {
			if rule.FailOpen {
				logger.Warnw("rate_limit_unavailable_fail_open", "key", key, "error", err)
				c.Next()
				return
			}
			response.Error(c, response.CodeInternal, i18n.T(i18n.ResolveLocale(c), "error.rate_limit_unavailable"))
			c.Abort()
			return
		}

		remaining := int64(rule.MaxRequests) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rule.MaxRequests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(rule.MaxRequests) {
			waitSeconds := retryAfterSeconds(ttlSeconds, rule.WindowSeconds)
			c.Header("Retry-After", strconv.Itoa(waitSeconds))
			msgKey := strings.TrimSpace(rule.MessageKey)
			if msgKey == "" {
				msgKey = "error.rate_limited"
			}
			response.Error(c, response.CodeTooManyRequests, i18n.Sprintf(i18n.ResolveLocale(c), msgKey, waitSeconds))
			c.Abort()
			return
		}

		c.Next()
	}
}

func runRateLimit(c *gin.Context, client *redis.Client, key string, windowSeconds int) (int64, int64, error) {
	result, err := rateLimitScript.Run(c.Request.Context(), client, []string{key}, windowSeconds).Int64Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(result) < 2 {
		return 0, 0, fmt.Errorf("unexpected rate limit reply: %v", result)
	}
	return result[0], result[1], nil
}

// retryAfterSeconds TTL 缺失（-1/-2）时按整个窗口计算，至少 1 秒
func retryAfterSeconds(ttlSeconds int64, windowSeconds int) int {
	wait := int(ttlSeconds)
	if wait < 1 {
		wait = windowSeconds
	}
	if wait < 1 {
		wait = 1
	}
	return wait
}

// KeyByIP 使用 IP 作为限流 key
func KeyByIP(c *gin.Context) string {
	return c.ClientIP()
}

// KeyByIPAndJSONField 使用 IP + JSON 字段作为限流 key
func KeyByIPAndJSONField(field string) RateLimitKeyFunc {
	return func(c *gin.Context) string {
		value := strings.ToLower(strings.TrimSpace(readJSONField(c, field)))
		if value == "" {
			return c.ClientIP()
		}
		return fmt.Sprintf("%s|%s", value, c.ClientIP())
	}
}

// readJSONField 读取请求体中的字符串字段并回填请求体
func readJSONField(c *gin.Context, field string) string {
	if c == nil || c.Request == nil || c.Request.Body == nil {
		return ""
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}
	value := gjson.GetBytes(body, gjson.Escape(field))
	if value.Type != gjson.String {
		return ""
	}
	return strings.TrimSpace(value.String())
}
