package models

import (
	"time"

	"gorm.io/gorm"
)

// Admin 后台管理员
// 角色不落在本表，由 casbin 策略表按 admin:<id> 维护。
type Admin struct {
	ID           uint   `gorm:"primarykey" json:"id"`
	Username     string `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string `gorm:"not null" json:"-"`
	// TokenVersion 自增后旧 Token 全部失效
	TokenVersion       uint64         `gorm:"not null;default:0" json:"-"`
	TokenInvalidBefore *time.Time     `gorm:"index" json:"-"`
	IsSuper            bool           `gorm:"not null;default:false;index" json:"is_super"` // 跳过 RBAC
	LastLoginAt        *time.Time     `json:"last_login_at"`
	CreatedAt          time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName 指定表名
func (Admin) TableName() string {
	return "admins"
}
