package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/custom-pricing/internal/models"
)

const authStateTTL = 10 * time.Minute

// AdminAuthState 管理员鉴权快照，JWT 中间件每个请求都要读
type AdminAuthState struct {
	AdminID      uint   `json:"admin_id"`
	Username     string `json:"username"`
	TokenVersion uint64 `json:"token_version"`
	// TokenInvalidBefore Unix 秒，0 表示未设置
	TokenInvalidBefore int64 `json:"token_invalid_before"`
	IsSuper            bool  `json:"is_super"`
	CachedAt           int64 `json:"cached_at"`
}

// Accepts Token 版本一致且签发时间不早于失效时间点
func (s *AdminAuthState) Accepts(tokenVersion uint64, issuedAt time.Time) bool {
	if s == nil || s.TokenVersion != tokenVersion {
		return false
	}
	if s.TokenInvalidBefore <= 0 {
		return true
	}
	return !issuedAt.IsZero() && issuedAt.Unix() >= s.TokenInvalidBefore
}

func adminAuthStateKey(adminID uint) string {
	return fmt.Sprintf("admin:auth:%d", adminID)
}

// BuildAdminAuthState 从管理员模型构建快照
func BuildAdminAuthState(admin *models.Admin) *AdminAuthState {
	if admin == nil {
		return nil
	}
	state := &AdminAuthState{
		AdminID:      admin.ID,
		Username:     admin.Username,
		TokenVersion: admin.TokenVersion,
		IsSuper:      admin.IsSuper,
		CachedAt:     time.Now().Unix(),
	}
	if admin.TokenInvalidBefore != nil {
		state.TokenInvalidBefore = admin.TokenInvalidBefore.Unix()
	}
	return state
}

// LoadAdminAuthState 先读缓存，未命中或 Redis 出错时走 load 并回填
// 管理员不存在时返回 (nil, nil)。
func LoadAdminAuthState(ctx context.Context, adminID uint, load func(uint) (*models.Admin, error)) (*AdminAuthState, error) {
	if adminID == 0 {
		return nil, nil
	}
	var cached AdminAuthState
	if hit, err := GetJSON(ctx, adminAuthStateKey(adminID), &cached); err == nil && hit {
		return &cached, nil
	}
	admin, err := load(adminID)
	if err != nil || admin == nil {
		return nil, err
	}
	state := BuildAdminAuthState(admin)
	_ = SetJSON(ctx, adminAuthStateKey(adminID), state, authStateTTL)
	return state, nil
}

// StoreAdminAuthState 凭证或登录信息变化后刷新快照
func StoreAdminAuthState(ctx context.Context, admin *models.Admin) error {
	state := BuildAdminAuthState(admin)
	if state == nil || state.AdminID == 0 {
		return nil
	}
	return SetJSON(ctx, adminAuthStateKey(state.AdminID), state, authStateTTL)
}

// DelAdminAuthState 删除快照
func DelAdminAuthState(ctx context.Context, adminID uint) error {
	if adminID == 0 {
		return nil
	}
	return Del(ctx, adminAuthStateKey(adminID))
}
