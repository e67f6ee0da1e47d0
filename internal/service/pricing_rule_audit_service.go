package service

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/custom-pricing/internal/models"
	"github.com/custom-pricing/internal/repository"

	"gorm.io/gorm"
)

// PricingRuleAuditInput 规则变更记录输入
type PricingRuleAuditInput struct {
	RuleID           uint
	OperatorAdminID  uint
	OperatorUsername string
	Action           string
	RequestID        string
	Before           *models.PricingRule
	After            *models.PricingRule
}

// PricingRuleAuditService 规则变更记录服务
type PricingRuleAuditService struct {
	repo repository.PricingRuleAuditLogRepository
}

// NewPricingRuleAuditService 创建规则变更记录服务
func NewPricingRuleAuditService(repo repository.PricingRuleAuditLogRepository) *PricingRuleAuditService {
	return &PricingRuleAuditService{repo: repo}
}

// WithTx 绑定事务
func (s *PricingRuleAuditService) WithTx(tx *gorm.DB) *PricingRuleAuditService {
	if s == nil || s.repo == nil || tx == nil {
		return s
	}
	return &PricingRuleAuditService{repo: s.repo.WithTx(tx)}
}

// Record 写入一条变更记录，缺少操作人或动作时忽略
func (s *PricingRuleAuditService) Record(input PricingRuleAuditInput) error {
	if s == nil || s.repo == nil {
		return nil
	}
	if input.OperatorAdminID == 0 || input.RuleID == 0 {
		return nil
	}
	if strings.TrimSpace(input.Action) == "" {
		return nil
	}
	item := &models.PricingRuleAuditLog{
		RuleID:           input.RuleID,
		OperatorAdminID:  input.OperatorAdminID,
		OperatorUsername: strings.TrimSpace(input.OperatorUsername),
		Action:           strings.TrimSpace(input.Action),
		RequestID:        strings.TrimSpace(input.RequestID),
		BeforeJSON:       ruleSnapshotJSON(input.Before),
		AfterJSON:        ruleSnapshotJSON(input.After),
		CreatedAt:        time.Now(),
	}
	return s.repo.Create(item)
}

// ListForAdmin 管理端查询规则变更记录
func (s *PricingRuleAuditService) ListForAdmin(filter repository.PricingRuleAuditLogListFilter) ([]models.PricingRuleAuditLog, int64, error) {
	if s == nil || s.repo == nil {
		return []models.PricingRuleAuditLog{}, 0, nil
	}
	return s.repo.ListAdmin(filter)
}

func ruleSnapshotJSON(rule *models.PricingRule) models.JSON {
	if rule == nil {
		return nil
	}
	raw, err := json.Marshal(rule)
	if err != nil {
		return nil
	}
	out := models.JSON{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
