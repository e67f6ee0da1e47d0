package public

import (
	"encoding/json"
	"strings"

	"github.com/custom-pricing/internal/http/response"
	"github.com/custom-pricing/internal/metrics"
	"github.com/custom-pricing/internal/service"

	"github.com/gin-gonic/gin"
)

// cartCookieName 店铺购物车 cookie
const cartCookieName = "cart"

// CustomerPayload 访客信息（由主题脚本从 Liquid 变量带出）
type CustomerPayload struct {
	ID   string   `json:"id"`
	Tags []string `json:"tags"`
}

// RenderRequest 页面渲染请求
type RenderRequest struct {
	HTML       string          `json:"html" binding:"required"`
	URL        string          `json:"url"`
	Customer   CustomerPayload `json:"customer"`
	CartCookie string          `json:"cart_cookie"`
	Cart       json.RawMessage `json:"cart"`
}

func (r RenderRequest) toInput(c *gin.Context) service.RenderInput {
	cookie := strings.TrimSpace(r.CartCookie)
	if cookie == "" {
		if value, err := c.Cookie(cartCookieName); err == nil {
			cookie = value
		}
	}
	return service.RenderInput{
		HTML:         r.HTML,
		URL:          r.URL,
		CustomerID:   r.Customer.ID,
		CustomerTags: r.Customer.Tags,
		CartCookie:   cookie,
		CartJSON:     r.Cart,
	}
}

// QuoteRequest 单品报价请求
type QuoteRequest struct {
	ProductID      string          `json:"product_id"`
	VariantID      string          `json:"variant_id"`
	Handle         string          `json:"handle"`
	Tags           []string        `json:"tags"`
	Collections    []string        `json:"collections"`
	Customer       CustomerPayload `json:"customer"`
	Price          *float64        `json:"price"`
	CompareAtPrice *float64        `json:"compare_at_price"`
	Quantity       int             `json:"quantity"`
	MoneyFormat    string          `json:"money_format"`
}

// GetStorefrontRules 店铺脚本拉取当前启用的规则
func (h *Handler) GetStorefrontRules(c *gin.Context) {
	rules, source, err := h.StorefrontService.Rules(c.Request.Context())
	if err != nil {
		respondError(c, response.CodeInternal, "error.pricing_rules_unavailable", err)
		return
	}
	response.Success(c, gin.H{
		"source": source,
		"rules":  rules,
	})
}

// RenderStorefront 对整页 HTML 执行一次价格计算
func (h *Handler) RenderStorefront(c *gin.Context) {
	var req RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	result, err := h.StorefrontService.Render(c.Request.Context(), req.toInput(c))
	metrics.RecordStorefront("render", result != nil && len(result.Patches) > 0, err)
	if err != nil {
		respondWithMappedError(c, err, renderErrorRules, response.CodeInternal, "error.render_failed")
		return
	}
	response.Success(c, result)
}

// QuoteStorefront 单品报价，供购物车抽屉等无整页 HTML 的场景使用
func (h *Handler) QuoteStorefront(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	result, err := h.StorefrontService.Quote(c.Request.Context(), service.QuoteInput{
		ProductID:      req.ProductID,
		VariantID:      req.VariantID,
		Handle:         req.Handle,
		Tags:           req.Tags,
		Collections:    req.Collections,
		CustomerID:     req.Customer.ID,
		CustomerTags:   req.Customer.Tags,
		Price:          req.Price,
		CompareAtPrice: req.CompareAtPrice,
		Quantity:       req.Quantity,
		MoneyFormat:    req.MoneyFormat,
	})
	metrics.RecordStorefront("quote", result != nil && result.Applied, err)
	if err != nil {
		respondWithMappedError(c, err, quoteErrorRules, response.CodeInternal, "error.quote_failed")
		return
	}
	response.Success(c, result)
}
