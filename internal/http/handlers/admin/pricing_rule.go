package admin

import (
	"strings"

	handlershared "github.com/custom-pricing/internal/http/handlers/shared"
	"github.com/custom-pricing/internal/http/response"
	"github.com/custom-pricing/internal/pricing"
	"github.com/custom-pricing/internal/repository"
	"github.com/custom-pricing/internal/service"

	"github.com/gin-gonic/gin"
)

// PricingRuleRequest 创建/更新/校验规则请求
type PricingRuleRequest struct {
	Name           string                 `json:"name"`
	Status         string                 `json:"status"`
	CustomerTarget pricing.CustomerTarget `json:"customer_target" binding:"required"`
	ProductTarget  pricing.ProductTarget  `json:"product_target" binding:"required"`
	Pricing        struct {
		Mode  string  `json:"mode" binding:"required"`
		Value float64 `json:"value"`
	} `json:"pricing" binding:"required"`
}

func (r PricingRuleRequest) toInput() service.PricingRuleInput {
	return service.PricingRuleInput{
		Name:     r.Name,
		Status:   r.Status,
		Customer: r.CustomerTarget,
		Product:  r.ProductTarget,
		Mode:     r.Pricing.Mode,
		Value:    r.Pricing.Value,
	}
}

// 规则接口的业务错误映射
var pricingRuleErrorRules = []mappedHandlerError{
	{Target: service.ErrPricingRuleNotFound, Code: response.CodeNotFound, Key: "error.pricing_rule_not_found"},
	{Target: service.ErrPricingRuleInvalid, Code: response.CodeBadRequest, Key: "error.pricing_rule_invalid"},
}

// ListPricingRules 规则列表（按 ID 升序，即解析顺序）
func (h *Handler) ListPricingRules(c *gin.Context) {
	page, pageSize := handlershared.PageParams(c)
	items, total, err := h.PricingRuleService.List(repository.PricingRuleListFilter{
		Page:         page,
		PageSize:     pageSize,
		Status:       c.Query("status"),
		Mode:         c.Query("mode"),
		CustomerType: strings.TrimSpace(c.Query("customer_type")),
		ProductType:  strings.TrimSpace(c.Query("product_type")),
		Search:       c.Query("search"),
		Tag:          c.Query("tag"),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.pricing_rule_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, items, response.BuildPagination(page, pageSize, total))
}

// GetPricingRule 规则详情
func (h *Handler) GetPricingRule(c *gin.Context) {
	id, ok := parsePricingRuleID(c)
	if !ok {
		return
	}
	rule, err := h.PricingRuleService.Get(id)
	if err != nil {
		respondWithMappedError(c, err, pricingRuleErrorRules, response.CodeInternal, "error.pricing_rule_fetch_failed")
		return
	}
	response.Success(c, rule)
}

// ValidatePricingRule 校验未保存的规则：返回预警与遮蔽关系，不落库
// 编辑已有规则时通过 ?id= 指定位置。
func (h *Handler) ValidatePricingRule(c *gin.Context) {
	var req PricingRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	id, err := handlershared.ParseUintQuery(c, "id")
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.pricing_rule_id_invalid", nil)
		return
	}
	result, err := h.PricingRuleService.Validate(c.Request.Context(), id, req.toInput())
	if err != nil {
		respondWithMappedError(c, err, pricingRuleErrorRules, response.CodeInternal, "error.pricing_rule_validate_failed")
		return
	}
	response.Success(c, result)
}

// CreatePricingRule 创建规则
func (h *Handler) CreatePricingRule(c *gin.Context) {
	var req PricingRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	result, err := h.PricingRuleService.Create(c.Request.Context(), req.toInput(), pricingRuleOperator(c))
	if err != nil {
		respondWithMappedError(c, err, pricingRuleErrorRules, response.CodeInternal, "error.pricing_rule_create_failed")
		return
	}
	requestLog(c).Infow("admin_pricing_rule_created",
		"rule_id", result.Rule.ID,
		"operator_admin_id", pricingRuleOperator(c).AdminID,
		"warnings", len(result.Warnings),
		"overlaps", len(result.Overlaps),
	)
	response.Success(c, result)
}

// UpdatePricingRule 更新规则
func (h *Handler) UpdatePricingRule(c *gin.Context) {
	id, ok := parsePricingRuleID(c)
	if !ok {
		return
	}
	var req PricingRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	result, err := h.PricingRuleService.Update(c.Request.Context(), id, req.toInput(), pricingRuleOperator(c))
	if err != nil {
		respondWithMappedError(c, err, pricingRuleErrorRules, response.CodeInternal, "error.pricing_rule_update_failed")
		return
	}
	requestLog(c).Infow("admin_pricing_rule_updated",
		"rule_id", id,
		"operator_admin_id", pricingRuleOperator(c).AdminID,
		"warnings", len(result.Warnings),
	)
	response.Success(c, result)
}

// DeletePricingRule 删除规则
func (h *Handler) DeletePricingRule(c *gin.Context) {
	id, ok := parsePricingRuleID(c)
	if !ok {
		return
	}
	if err := h.PricingRuleService.Delete(c.Request.Context(), id, pricingRuleOperator(c)); err != nil {
		respondWithMappedError(c, err, pricingRuleErrorRules, response.CodeInternal, "error.pricing_rule_delete_failed")
		return
	}
	requestLog(c).Infow("admin_pricing_rule_deleted",
		"rule_id", id,
		"operator_admin_id", pricingRuleOperator(c).AdminID,
	)
	response.Success(c, nil)
}

// RecheckPricingRuleWarnings 立即按权威原价复核预警
func (h *Handler) RecheckPricingRuleWarnings(c *gin.Context) {
	id, ok := parsePricingRuleID(c)
	if !ok {
		return
	}
	warnings, err := h.PricingRuleService.CheckWarnings(c.Request.Context(), id)
	if err != nil {
		respondWithMappedError(c, err, pricingRuleErrorRules, response.CodeInternal, "error.pricing_rule_fetch_failed")
		return
	}
	response.Success(c, gin.H{"warnings": warnings})
}

// ListPricingRuleAudits 规则变更记录
func (h *Handler) ListPricingRuleAudits(c *gin.Context) {
	page, pageSize := handlershared.PageParams(c)

	ruleID, err := handlershared.ParseUintQuery(c, "rule_id")
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	operatorAdminID, err := handlershared.ParseUintQuery(c, "operator_admin_id")
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	createdFrom, err := handlershared.ParseTimeQuery(c, "created_from")
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	createdTo, err := handlershared.ParseTimeQuery(c, "created_to")
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	items, total, err := h.PricingRuleAuditService.ListForAdmin(repository.PricingRuleAuditLogListFilter{
		Page:            page,
		PageSize:        pageSize,
		RuleID:          ruleID,
		OperatorAdminID: operatorAdminID,
		Action:          strings.TrimSpace(c.Query("action")),
		CreatedFrom:     createdFrom,
		CreatedTo:       createdTo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.pricing_rule_audit_failed", err)
		return
	}
	response.SuccessWithPage(c, items, response.BuildPagination(page, pageSize, total))
}

// GetStorefrontRules 预览当前下发给店铺的规则快照
func (h *Handler) GetStorefrontRules(c *gin.Context) {
	snap, err := h.RuleSourceService.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, response.CodeInternal, "error.pricing_rules_unavailable", err)
		return
	}
	response.Success(c, snap)
}

func parsePricingRuleID(c *gin.Context) (uint, bool) {
	id, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.pricing_rule_id_invalid", nil)
	}
	return id, ok
}

func pricingRuleOperator(c *gin.Context) service.PricingRuleOperator {
	adminID, _ := handlershared.AdminID(c)
	return service.PricingRuleOperator{
		AdminID:   adminID,
		Username:  handlershared.ContextString(c, handlershared.UsernameKey),
		RequestID: handlershared.ContextString(c, handlershared.RequestIDKey),
	}
}
