package shared

import (
	"errors"

	"github.com/custom-pricing/internal/http/response"
	"github.com/custom-pricing/internal/i18n"
	"github.com/custom-pricing/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if id := ContextString(c, RequestIDKey); id != "" {
		return logger.SW("request_id", id)
	}
	return logger.S()
}

// RespondError 返回国际化错误响应
func RespondError(c *gin.Context, code int, key string, err error) {
	RespondErrorWithMsg(c, code, i18n.T(i18n.ResolveLocale(c), key), err)
}

// RespondErrorWithMsg 返回自定义消息错误响应，有原始错误时记录日志
func RespondErrorWithMsg(c *gin.Context, code int, msg string, err error) {
	if err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", code,
			"message", msg,
			"error", err,
		)
	}
	response.Error(c, code, msg)
}

// MappedError 业务错误到接口错误响应的映射
type MappedError struct {
	Target error
	Code   int
	Key    string
}

// RespondMappedError 命中映射时返回对应错误，否则按兜底错误返回并记录原始错误。
func RespondMappedError(c *gin.Context, err error, rules []MappedError, fallbackCode int, fallbackKey string) {
	for _, rule := range rules {
		if errors.Is(err, rule.Target) {
			RespondError(c, rule.Code, rule.Key, nil)
			return
		}
	}
	RespondError(c, fallbackCode, fallbackKey, err)
}
