package public

import (
	handlershared "github.com/custom-pricing/internal/http/handlers/shared"
	"github.com/custom-pricing/internal/http/response"
	"github.com/custom-pricing/internal/service"

	"github.com/gin-gonic/gin"
)

var renderErrorRules = []handlershared.MappedError{
	{Target: service.ErrRenderInputInvalid, Code: response.CodeBadRequest, Key: "error.render_html_invalid"},
	{Target: service.ErrRuleSourceUnavailable, Code: response.CodeInternal, Key: "error.pricing_rules_unavailable"},
}

var quoteErrorRules = []handlershared.MappedError{
	{Target: service.ErrQuoteContextMissing, Code: response.CodeBadRequest, Key: "error.quote_context_missing"},
	{Target: service.ErrQuotePriceUnavailable, Code: response.CodeBadRequest, Key: "error.quote_price_unavailable"},
	{Target: service.ErrRuleSourceUnavailable, Code: response.CodeInternal, Key: "error.pricing_rules_unavailable"},
}

func respondWithMappedError(c *gin.Context, err error, rules []handlershared.MappedError, fallbackCode int, fallbackKey string) {
	handlershared.RespondMappedError(c, err, rules, fallbackCode, fallbackKey)
}

func respondError(c *gin.Context, code int, key string, err error) {
	handlershared.RespondError(c, code, key, err)
}
