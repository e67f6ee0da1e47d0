package service

import (
	"context"
	"strings"
	"time"

	"github.com/custom-pricing/internal/cache"
	"github.com/custom-pricing/internal/config"
	"github.com/custom-pricing/internal/logger"
	"github.com/custom-pricing/internal/models"
	"github.com/custom-pricing/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultAdminUsername = "admin"
	defaultAdminPassword = "admin123"
)

// AuthService 认证服务
type AuthService struct {
	cfg       *config.Config
	adminRepo repository.AdminRepository
}

// NewAuthService 创建认证服务实例
func NewAuthService(cfg *config.Config, adminRepo repository.AdminRepository) *AuthService {
	return &AuthService{
		cfg:       cfg,
		adminRepo: adminRepo,
	}
}

// HashPassword 使用 bcrypt 加密密码
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword 验证密码
func (s *AuthService) VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ValidatePassword 校验密码是否符合策略
func (s *AuthService) ValidatePassword(username, password string) error {
	if s == nil || s.cfg == nil {
		return nil
	}
	return validatePassword(s.cfg.Security.PasswordPolicy, username, password)
}

// JWTClaims JWT 声明
type JWTClaims struct {
	AdminID      uint   `json:"admin_id"`
	Username     string `json:"username"`
	TokenVersion uint64 `json:"token_version"`
	jwt.RegisteredClaims
}

// GenerateJWT 生成 JWT Token
func (s *AuthService) GenerateJWT(admin *models.Admin) (string, time.Time, error) {
	expiresAt := time.Now().Add(time.Duration(s.cfg.JWT.ExpireHours) * time.Hour)

	claims := JWTClaims{
		AdminID:      admin.ID,
		Username:     admin.Username,
		TokenVersion: admin.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.JWT.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// Login 管理员登录
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.Admin, string, time.Time, error) {
	admin, err := s.adminRepo.GetByUsername(strings.TrimSpace(username))
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if admin == nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}

	if err := s.VerifyPassword(admin.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.GenerateJWT(admin)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	now := time.Now()
	if err := s.adminRepo.RecordLogin(admin.ID, now); err != nil {
		return nil, "", time.Time{}, err
	}
	admin.LastLoginAt = &now
	if err := cache.StoreAdminAuthState(ctx, admin); err != nil {
		logger.Warnw("admin_auth_state_cache_failed", "admin_id", admin.ID, "error", err)
	}

	return admin, token, expiresAt, nil
}

// ChangePassword 修改管理员密码
// 修改后 TokenVersion 自增，此前签发的 Token 全部失效。
func (s *AuthService) ChangePassword(ctx context.Context, adminID uint, oldPassword, newPassword string) error {
	admin, err := s.adminRepo.GetByID(adminID)
	if err != nil {
		return err
	}
	if admin == nil {
		return ErrNotFound
	}

	if err := s.VerifyPassword(admin.PasswordHash, oldPassword); err != nil {
		return ErrInvalidPassword
	}

	if err := s.ValidatePassword(admin.Username, newPassword); err != nil {
		return err
	}

	hashedPassword, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}

	admin.PasswordHash = hashedPassword
	now := time.Now()
	admin.TokenVersion++
	admin.TokenInvalidBefore = &now
	if err := s.adminRepo.UpdateCredentials(admin); err != nil {
		return err
	}
	if err := cache.StoreAdminAuthState(ctx, admin); err != nil {
		// 写失败时删掉旧快照，旧 Token 不能再命中缓存
		logger.Warnw("admin_auth_state_cache_failed", "admin_id", admin.ID, "error", err)
		_ = cache.DelAdminAuthState(ctx, admin.ID)
	}
	return nil
}

// CreateAdmin 创建管理员账号，密码需满足策略
func (s *AuthService) CreateAdmin(username, password string, isSuper bool) (*models.Admin, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidCredentials
	}
	existing, err := s.adminRepo.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAdminExists
	}
	if err := s.ValidatePassword(username, password); err != nil {
		return nil, err
	}
	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}
	admin := &models.Admin{
		Username:     username,
		PasswordHash: hash,
		IsSuper:      isSuper,
	}
	if err := s.adminRepo.Create(admin); err != nil {
		return nil, err
	}
	return admin, nil
}

// EnsureDefaultAdmin 首次启动且没有任何管理员时创建超级管理员
// 初始密码不走密码策略，未提供时使用 admin123 并提示修改。
func (s *AuthService) EnsureDefaultAdmin(username, password string) (bool, error) {
	total, err := s.adminRepo.Count()
	if err != nil {
		return false, err
	}
	if total > 0 {
		return false, nil
	}

	username = strings.TrimSpace(username)
	if username == "" {
		username = defaultAdminUsername
	}
	usingDefault := password == ""
	if usingDefault {
		password = defaultAdminPassword
	}
	hash, err := s.HashPassword(password)
	if err != nil {
		return false, err
	}
	if err := s.adminRepo.Create(&models.Admin{Username: username, PasswordHash: hash, IsSuper: true}); err != nil {
		return false, err
	}
	if usingDefault {
		logger.Warnw("default_admin_created_with_default_password", "username", username)
	} else {
		logger.Infow("default_admin_created", "username", username)
	}
	return true, nil
}
