package repository

import (
	"github.com/custom-pricing/internal/models"

	"gorm.io/gorm"
)

// PricingRuleAuditLogRepository 规则变更记录数据访问接口
type PricingRuleAuditLogRepository interface {
	Create(log *models.PricingRuleAuditLog) error
	ListAdmin(filter PricingRuleAuditLogListFilter) ([]models.PricingRuleAuditLog, int64, error)
	WithTx(tx *gorm.DB) *GormPricingRuleAuditLogRepository
}

// GormPricingRuleAuditLogRepository GORM 实现
type GormPricingRuleAuditLogRepository struct {
	db *gorm.DB
}

// NewPricingRuleAuditLogRepository 创建规则变更记录仓库
func NewPricingRuleAuditLogRepository(db *gorm.DB) *GormPricingRuleAuditLogRepository {
	return &GormPricingRuleAuditLogRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPricingRuleAuditLogRepository) WithTx(tx *gorm.DB) *GormPricingRuleAuditLogRepository {
	if tx == nil {
		return r
	}
	return &GormPricingRuleAuditLogRepository{db: tx}
}

// Create 写入变更记录
func (r *GormPricingRuleAuditLogRepository) Create(log *models.PricingRuleAuditLog) error {
	if log == nil {
		return nil
	}
	return r.db.Create(log).Error
}

// ListAdmin 管理端查询变更记录，最新的在前
func (r *GormPricingRuleAuditLogRepository) ListAdmin(filter PricingRuleAuditLogListFilter) ([]models.PricingRuleAuditLog, int64, error) {
	query := r.db.Model(&models.PricingRuleAuditLog{})
	if filter.RuleID != 0 {
		query = query.Where("rule_id = ?", filter.RuleID)
	}
	if filter.OperatorAdminID != 0 {
		query = query.Where("operator_admin_id = ?", filter.OperatorAdminID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = query.Scopes(paginate(filter.Page, filter.PageSize))

	logs := make([]models.PricingRuleAuditLog, 0)
	if err := query.Order("id DESC").Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
