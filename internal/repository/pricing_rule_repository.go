package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/custom-pricing/internal/models"

	"gorm.io/gorm"
)

// PricingRuleRepository 定价规则数据访问接口
type PricingRuleRepository interface {
	GetByID(id uint) (*models.PricingRule, error)
	Create(rule *models.PricingRule) error
	Update(rule *models.PricingRule) error
	Delete(id uint) error
	List(filter PricingRuleListFilter) ([]models.PricingRule, int64, error)
	ListOrdered(onlyActive bool) ([]models.PricingRule, error)
	ListWarningCandidates() ([]uint, error)
	UpdateWarnings(id uint, warnings models.PriceWarnings, checkedAt time.Time) error
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) *GormPricingRuleRepository
}

// GormPricingRuleRepository GORM 实现
type GormPricingRuleRepository struct {
	db *gorm.DB
}

// NewPricingRuleRepository 创建定价规则仓库
func NewPricingRuleRepository(db *gorm.DB) *GormPricingRuleRepository {
	return &GormPricingRuleRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPricingRuleRepository) WithTx(tx *gorm.DB) *GormPricingRuleRepository {
	if tx == nil {
		return r
	}
	return &GormPricingRuleRepository{db: tx}
}

// Transaction 执行事务
func (r *GormPricingRuleRepository) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

// GetByID 根据 ID 获取规则
func (r *GormPricingRuleRepository) GetByID(id uint) (*models.PricingRule, error) {
	var rule models.PricingRule
	if err := r.db.First(&rule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

// Create 创建规则
func (r *GormPricingRuleRepository) Create(rule *models.PricingRule) error {
	return r.db.Create(rule).Error
}

// Update 更新规则
func (r *GormPricingRuleRepository) Update(rule *models.PricingRule) error {
	return r.db.Save(rule).Error
}

// Delete 删除规则（软删除）
func (r *GormPricingRuleRepository) Delete(id uint) error {
	if id == 0 {
		return nil
	}
	return r.db.Delete(&models.PricingRule{}, id).Error
}

// List 后台分页列表，按 ID 升序展示以体现优先级
func (r *GormPricingRuleRepository) List(filter PricingRuleListFilter) ([]models.PricingRule, int64, error) {
	query := r.db.Model(&models.PricingRule{})
	dialect := dialectOf(r.db)
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if mode := strings.TrimSpace(filter.Mode); mode != "" {
		query = query.Where("mode = ?", mode)
	}
	if customerType := strings.TrimSpace(filter.CustomerType); customerType != "" {
		query = query.Where("customer_type = ?", customerType)
	}
	if productType := strings.TrimSpace(filter.ProductType); productType != "" {
		query = query.Where("product_type = ?", productType)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		// 同时匹配规则名与选中商品的 handle / 标题
		condition, args := dialect.likeAny(search, "name", dialect.text("product_items"))
		query = query.Where(condition, args...)
	}
	if tag := strings.TrimSpace(filter.Tag); tag != "" {
		query = query.Where(
			"("+dialect.jsonArrayContains("customer_tags")+" OR "+dialect.jsonArrayContains("product_tags")+")",
			tag, tag,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = query.Scopes(paginate(filter.Page, filter.PageSize))

	rules := make([]models.PricingRule, 0)
	if err := query.Order("id ASC").Find(&rules).Error; err != nil {
		return nil, 0, err
	}
	return rules, total, nil
}

// ListOrdered 规则来源：按 ID 升序返回全部规则
func (r *GormPricingRuleRepository) ListOrdered(onlyActive bool) ([]models.PricingRule, error) {
	query := r.db.Model(&models.PricingRule{})
	if onlyActive {
		query = query.Where("status = ?", "active")
	}
	rules := make([]models.PricingRule, 0)
	if err := query.Order("id ASC").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// ListWarningCandidates 需要复核预警的启用规则（new_price）
func (r *GormPricingRuleRepository) ListWarningCandidates() ([]uint, error) {
	ids := make([]uint, 0)
	err := r.db.Model(&models.PricingRule{}).
		Where("mode = ?", "new_price").
		Where("status = ?", "active").
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// UpdateWarnings 写入复核结果，不触碰其它字段
func (r *GormPricingRuleRepository) UpdateWarnings(id uint, warnings models.PriceWarnings, checkedAt time.Time) error {
	if id == 0 {
		return nil
	}
	if warnings == nil {
		warnings = models.PriceWarnings{}
	}
	return r.db.Model(&models.PricingRule{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"warnings":            warnings,
			"warnings_checked_at": checkedAt,
		}).Error
}
