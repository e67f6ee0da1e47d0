package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custom-pricing/internal/constants"
	"github.com/custom-pricing/internal/logger"
	"github.com/custom-pricing/internal/metrics"
	"github.com/custom-pricing/internal/models"
	"github.com/custom-pricing/internal/pricing"
	"github.com/custom-pricing/internal/queue"
	"github.com/custom-pricing/internal/repository"

	"gorm.io/gorm"
)

// draftRuleID 校验未保存规则时使用的占位 ID
const draftRuleID = "draft"

// PricingRuleInput 创建/更新规则输入
type PricingRuleInput struct {
	Name     string
	Status   string
	Customer pricing.CustomerTarget
	Product  pricing.ProductTarget
	Mode     string
	Value    float64
}

// PricingRuleOperator 操作人信息（写入变更记录）
type PricingRuleOperator struct {
	AdminID   uint
	Username  string
	RequestID string
}

// PricingRuleResult 保存/校验结果
// Warnings 与 Overlaps 只是提示，不影响保存。
type PricingRuleResult struct {
	Rule     *models.PricingRule    `json:"rule,omitempty"`
	Warnings []pricing.PriceWarning `json:"warnings"`
	Overlaps []pricing.Overlap      `json:"overlaps"`
}

// PricingRuleService 后台定价规则服务
type PricingRuleService struct {
	repo     repository.PricingRuleRepository
	audit    *PricingRuleAuditService
	warnings *PriceWarningService
	source   *RuleSourceService
	queue    *queue.Client
}

// NewPricingRuleService 创建定价规则服务
func NewPricingRuleService(repo repository.PricingRuleRepository, audit *PricingRuleAuditService, warnings *PriceWarningService, source *RuleSourceService, queueClient *queue.Client) *PricingRuleService {
	return &PricingRuleService{
		repo:     repo,
		audit:    audit,
		warnings: warnings,
		source:   source,
		queue:    queueClient,
	}
}

// List 后台规则列表
func (s *PricingRuleService) List(filter repository.PricingRuleListFilter) ([]models.PricingRule, int64, error) {
	filter.Status = strings.ToLower(strings.TrimSpace(filter.Status))
	filter.Mode = strings.ToLower(strings.TrimSpace(filter.Mode))
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Tag = strings.TrimSpace(filter.Tag)
	items, total, err := s.repo.List(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrPricingRuleFetchFailed, err)
	}
	return items, total, nil
}

// Get 获取规则详情
func (s *PricingRuleService) Get(id uint) (*models.PricingRule, error) {
	if id == 0 {
		return nil, ErrPricingRuleNotFound
	}
	rule, err := s.repo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPricingRuleFetchFailed, err)
	}
	if rule == nil {
		return nil, ErrPricingRuleNotFound
	}
	return rule, nil
}

// Validate 校验未保存的规则，返回预警与遮蔽关系；id 非 0 时按已有规则的位置判断遮蔽
func (s *PricingRuleService) Validate(ctx context.Context, id uint, input PricingRuleInput) (*PricingRuleResult, error) {
	rule, err := buildPricingRule(input)
	if err != nil {
		return nil, err
	}
	rule.ID = draftRuleID
	if id > 0 {
		rule.ID = models.PricingRule{ID: id}.RuleID()
	}
	overlaps, err := s.overlapsFor(rule)
	if err != nil {
		return nil, err
	}
	return &PricingRuleResult{
		Warnings: s.checkWarnings(ctx, rule),
		Overlaps: overlaps,
	}, nil
}

// Create 创建规则，新规则排在列表末尾
func (s *PricingRuleService) Create(ctx context.Context, input PricingRuleInput, operator PricingRuleOperator) (*PricingRuleResult, error) {
	rule, err := buildPricingRule(input)
	if err != nil {
		return nil, err
	}
	row := &models.PricingRule{CreatedBy: operator.AdminID}
	row.ApplyRule(rule)

	err = s.repo.Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(row); err != nil {
			return err
		}
		return s.audit.WithTx(tx).Record(PricingRuleAuditInput{
			RuleID:           row.ID,
			OperatorAdminID:  operator.AdminID,
			OperatorUsername: operator.Username,
			Action:           constants.PricingRuleAuditCreate,
			RequestID:        operator.RequestID,
			After:            row,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPricingRuleCreateFailed, err)
	}
	return s.afterSave(ctx, row)
}

// Update 更新规则内容，不改变规则顺序
func (s *PricingRuleService) Update(ctx context.Context, id uint, input PricingRuleInput, operator PricingRuleOperator) (*PricingRuleResult, error) {
	existing, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	rule, err := buildPricingRule(input)
	if err != nil {
		return nil, err
	}
	before := *existing
	existing.ApplyRule(rule)

	err = s.repo.Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Update(existing); err != nil {
			return err
		}
		return s.audit.WithTx(tx).Record(PricingRuleAuditInput{
			RuleID:           existing.ID,
			OperatorAdminID:  operator.AdminID,
			OperatorUsername: operator.Username,
			Action:           constants.PricingRuleAuditUpdate,
			RequestID:        operator.RequestID,
			Before:           &before,
			After:            existing,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPricingRuleUpdateFailed, err)
	}
	return s.afterSave(ctx, existing)
}

// Delete 删除规则（软删除）
func (s *PricingRuleService) Delete(ctx context.Context, id uint, operator PricingRuleOperator) error {
	existing, err := s.Get(id)
	if err != nil {
		return err
	}
	err = s.repo.Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Delete(existing.ID); err != nil {
			return err
		}
		return s.audit.WithTx(tx).Record(PricingRuleAuditInput{
			RuleID:           existing.ID,
			OperatorAdminID:  operator.AdminID,
			OperatorUsername: operator.Username,
			Action:           constants.PricingRuleAuditDelete,
			RequestID:        operator.RequestID,
			Before:           existing,
		})
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPricingRuleDeleteFailed, err)
	}
	s.invalidate(ctx)
	return nil
}

// CheckWarnings 重新读取权威原价并保存预警（异步任务入口）
func (s *PricingRuleService) CheckWarnings(ctx context.Context, id uint) ([]pricing.PriceWarning, error) {
	row, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	warnings := s.checkWarnings(ctx, row.ToRule())
	if err := s.repo.UpdateWarnings(row.ID, models.PriceWarnings(warnings), time.Now()); err != nil {
		metrics.RecordWarningCheck(0, err)
		return nil, fmt.Errorf("%w: %v", ErrPricingRuleUpdateFailed, err)
	}
	metrics.RecordWarningCheck(len(warnings), nil)
	return warnings, nil
}

// SweepWarnings 定期复核所有启用的 new_price 规则
// 队列可用时逐条投递任务，否则同步复核。
func (s *PricingRuleService) SweepWarnings(ctx context.Context) (int, error) {
	ids, err := s.repo.ListWarningCandidates()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPricingRuleFetchFailed, err)
	}
	count := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if s.queue.Enabled() {
			if err := s.queue.EnqueuePricingRuleWarning(queue.PricingRuleWarningPayload{RuleID: id, Reason: "sweep"}, 0); err != nil {
				logger.Warnw("pricing_rule_warning_sweep_enqueue_failed", "rule_id", id, "error", err)
				continue
			}
		} else if _, err := s.CheckWarnings(ctx, id); err != nil {
			if errors.Is(err, ErrPricingRuleNotFound) {
				continue
			}
			logger.Warnw("pricing_rule_warning_sweep_check_failed", "rule_id", id, "error", err)
			continue
		}
		count++
	}
	return count, nil
}

// afterSave 保存后：同步给出预警与遮蔽提示，清理快照并投递复核任务
func (s *PricingRuleService) afterSave(ctx context.Context, row *models.PricingRule) (*PricingRuleResult, error) {
	s.invalidate(ctx)
	rule := row.ToRule()
	warnings := s.checkWarnings(ctx, rule)
	now := time.Now()
	if err := s.repo.UpdateWarnings(row.ID, models.PriceWarnings(warnings), now); err != nil {
		logger.Warnw("pricing_rule_warning_persist_failed", "rule_id", row.ID, "error", err)
	} else {
		row.Warnings = models.PriceWarnings(warnings)
		row.WarningsCheckedAt = &now
	}
	if NeedsPriceWarningCheck(rule) {
		payload := queue.PricingRuleWarningPayload{RuleID: row.ID, Reason: "saved"}
		if err := s.queue.EnqueuePricingRuleWarning(payload, time.Minute); err != nil {
			logger.Warnw("pricing_rule_warning_enqueue_failed", "rule_id", row.ID, "error", err)
		}
	}
	overlaps, err := s.overlapsFor(rule)
	if err != nil {
		logger.Warnw("pricing_rule_overlap_check_failed", "rule_id", row.ID, "error", err)
		overlaps = []pricing.Overlap{}
	}
	return &PricingRuleResult{Rule: row, Warnings: warnings, Overlaps: overlaps}, nil
}

// overlapsFor 在当前顺序中放入 rule（已存在则替换，否则追加），只返回与它相关的遮蔽关系
func (s *PricingRuleService) overlapsFor(rule pricing.Rule) ([]pricing.Overlap, error) {
	rows, err := s.repo.ListOrdered(true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPricingRuleFetchFailed, err)
	}
	ordered := make([]pricing.Rule, 0, len(rows)+1)
	placed := false
	for _, row := range rows {
		item := row.ToRule()
		if item.ID == rule.ID {
			item = rule
			placed = true
		}
		ordered = append(ordered, item)
	}
	if !placed {
		ordered = append(ordered, rule)
	}
	out := make([]pricing.Overlap, 0)
	for _, overlap := range pricing.FindOverlaps(ordered) {
		if overlap.EarlierID == rule.ID || overlap.LaterID == rule.ID {
			out = append(out, overlap)
		}
	}
	return out, nil
}

func (s *PricingRuleService) checkWarnings(ctx context.Context, rule pricing.Rule) []pricing.PriceWarning {
	if s.warnings == nil {
		return []pricing.PriceWarning{}
	}
	return s.warnings.Check(ctx, rule)
}

func (s *PricingRuleService) invalidate(ctx context.Context) {
	if s.source != nil {
		s.source.Invalidate(ctx)
	}
}

// buildPricingRule 规范化输入并校验
// 指定商品/规格只给了 items 时，ID 列表从 items 补齐。
func buildPricingRule(input PricingRuleInput) (pricing.Rule, error) {
	status := strings.ToLower(strings.TrimSpace(input.Status))
	if status == "" {
		status = constants.PricingRuleStatusActive
	}
	rule := pricing.Rule{
		Name:   strings.TrimSpace(input.Name),
		Status: pricing.RuleStatus(status),
		Customer: pricing.CustomerTarget{
			Type:        pricing.CustomerTargetType(strings.ToLower(strings.TrimSpace(string(input.Customer.Type)))),
			CustomerIDs: normalizeIDList(input.Customer.CustomerIDs),
			Tags:        normalizeTagList(input.Customer.Tags),
		},
		Product: pricing.ProductTarget{
			Type:  pricing.ProductTargetType(strings.ToLower(strings.TrimSpace(string(input.Product.Type)))),
			IDs:   normalizeIDList(input.Product.IDs),
			Tags:  normalizeTagList(input.Product.Tags),
			Items: normalizeItems(input.Product.Items),
		},
		Pricing: pricing.Pricing{
			Mode:  pricing.Mode(strings.ToLower(strings.TrimSpace(input.Mode))),
			Value: pricing.RoundMinor(input.Value),
		},
	}
	if len(rule.Product.IDs) == 0 {
		switch rule.Product.Type {
		case pricing.ProductSpecificProducts:
			for _, item := range rule.Product.Items {
				rule.Product.IDs = appendUnique(rule.Product.IDs, item.ProductID)
			}
		case pricing.ProductSpecificVariants:
			for _, item := range rule.Product.Items {
				rule.Product.IDs = appendUnique(rule.Product.IDs, item.VariantID)
			}
		}
	}
	if err := rule.Validate(); err != nil {
		return pricing.Rule{}, fmt.Errorf("%w: %v", ErrPricingRuleInvalid, err)
	}
	return rule, nil
}

func normalizeIDList(values []string) []string {
	var out []string
	for _, value := range values {
		out = appendUnique(out, pricing.NormalizeID(value))
	}
	return out
}

// normalizeTagList 标签区分大小写，只去空白与重复
func normalizeTagList(values []string) []string {
	var out []string
	for _, value := range values {
		out = appendUnique(out, strings.TrimSpace(value))
	}
	return out
}

func normalizeItems(items []pricing.TargetItem) []pricing.TargetItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]pricing.TargetItem, 0, len(items))
	for _, item := range items {
		out = append(out, pricing.TargetItem{
			ProductID: pricing.NormalizeID(item.ProductID),
			VariantID: pricing.NormalizeID(item.VariantID),
			Handle:    strings.TrimSpace(item.Handle),
			Title:     strings.TrimSpace(item.Title),
		})
	}
	return out
}

func appendUnique(list []string, value string) []string {
	if value == "" {
		return list
	}
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}
