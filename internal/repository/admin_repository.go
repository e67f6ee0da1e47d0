package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/custom-pricing/internal/models"

	"gorm.io/gorm"
)

// AdminRepository 管理员数据访问接口
// 查询不到记录时返回 (nil, nil)。
type AdminRepository interface {
	GetByUsername(username string) (*models.Admin, error)
	GetByID(id uint) (*models.Admin, error)
	Create(admin *models.Admin) error
	Count() (int64, error)
	List() ([]models.Admin, error)
	RecordLogin(id uint, at time.Time) error
	UpdateCredentials(admin *models.Admin) error
}

// GormAdminRepository GORM 实现
type GormAdminRepository struct {
	db *gorm.DB
}

// NewAdminRepository 创建管理员仓库
func NewAdminRepository(db *gorm.DB) *GormAdminRepository {
	return &GormAdminRepository{db: db}
}

func (r *GormAdminRepository) first(query *gorm.DB) (*models.Admin, error) {
	var admin models.Admin
	err := query.First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

func (r *GormAdminRepository) GetByUsername(username string) (*models.Admin, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, nil
	}
	return r.first(r.db.Where("username = ?", username))
}

func (r *GormAdminRepository) GetByID(id uint) (*models.Admin, error) {
	if id == 0 {
		return nil, nil
	}
	return r.first(r.db.Where("id = ?", id))
}

func (r *GormAdminRepository) Create(admin *models.Admin) error {
	return r.db.Create(admin).Error
}

// Count 未删除的管理员数量
func (r *GormAdminRepository) Count() (int64, error) {
	var total int64
	err := r.db.Model(&models.Admin{}).Count(&total).Error
	return total, err
}

// List 按 ID 升序
func (r *GormAdminRepository) List() ([]models.Admin, error) {
	var admins []models.Admin
	if err := r.db.Order("id asc").Find(&admins).Error; err != nil {
		return nil, err
	}
	return admins, nil
}

// RecordLogin 只更新登录时间，不碰凭证字段
func (r *GormAdminRepository) RecordLogin(id uint, at time.Time) error {
	return r.db.Model(&models.Admin{}).Where("id = ?", id).Update("last_login_at", at).Error
}

// UpdateCredentials 写回密码与 Token 失效信息
func (r *GormAdminRepository) UpdateCredentials(admin *models.Admin) error {
	if admin == nil || admin.ID == 0 {
		return errors.New("admin id is required")
	}
	return r.db.Model(admin).
		Select("password_hash", "token_version", "token_invalid_before").
		Updates(admin).Error
}
