package admin

import (
	"errors"
	"time"

	handlershared "github.com/custom-pricing/internal/http/handlers/shared"
	"github.com/custom-pricing/internal/http/response"
	"github.com/custom-pricing/internal/i18n"
	"github.com/custom-pricing/internal/models"
	"github.com/custom-pricing/internal/service"

	"github.com/gin-gonic/gin"
)

type loginPayload struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type changePasswordPayload struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// adminProfile 后台前端据 roles 决定是否展示编辑入口
type adminProfile struct {
	ID       uint     `json:"id"`
	Username string   `json:"username"`
	IsSuper  bool     `json:"is_super"`
	Roles    []string `json:"roles"`
}

type loginResult struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expires_at"`
	Admin     adminProfile `json:"admin"`
}

var loginErrorRules = []mappedHandlerError{
	{Target: service.ErrInvalidCredentials, Code: response.CodeUnauthorized, Key: "error.admin_login_invalid"},
}

var changePasswordErrorRules = []mappedHandlerError{
	{Target: service.ErrInvalidPassword, Code: response.CodeBadRequest, Key: "error.password_old_invalid"},
	{Target: service.ErrNotFound, Code: response.CodeNotFound, Key: "error.user_not_found"},
}

// AdminLogin 管理员登录
func (h *Handler) AdminLogin(c *gin.Context) {
	var req loginPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	admin, token, expiresAt, err := h.AuthService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondWithMappedError(c, err, loginErrorRules, response.CodeInternal, "error.login_failed")
		return
	}
	requestLog(c).Infow("admin_login", "admin_id", admin.ID, "client_ip", c.ClientIP())
	response.Success(c, loginResult{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		Admin:     h.profileOf(c, admin),
	})
}

// UpdateAdminPassword 修改自己的密码，成功后旧 Token 全部失效
func (h *Handler) UpdateAdminPassword(c *gin.Context) {
	id, ok := requireAdminID(c)
	if !ok {
		return
	}
	var req changePasswordPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	err := h.AuthService.ChangePassword(c.Request.Context(), id, req.OldPassword, req.NewPassword)
	if respondPasswordPolicyError(c, err) {
		return
	}
	if err != nil {
		respondWithMappedError(c, err, changePasswordErrorRules, response.CodeInternal, "error.save_failed")
		return
	}
	requestLog(c).Infow("admin_password_changed", "admin_id", id)
	response.Success(c, nil)
}

// profileOf 角色读取失败不影响登录，只记日志
func (h *Handler) profileOf(c *gin.Context, admin *models.Admin) adminProfile {
	profile := adminProfile{ID: admin.ID, Username: admin.Username, IsSuper: admin.IsSuper, Roles: []string{}}
	if h.AuthzService == nil || admin.IsSuper {
		return profile
	}
	roles, err := h.AuthzService.GetAdminRoles(admin.ID)
	if err != nil {
		requestLog(c).Warnw("admin_login_roles_failed", "admin_id", admin.ID, "error", err)
		return profile
	}
	profile.Roles = roles
	return profile
}

// respondPasswordPolicyError 密码策略错误带参数，单独格式化
func respondPasswordPolicyError(c *gin.Context, err error) bool {
	if !errors.Is(err, service.ErrWeakPassword) {
		return false
	}
	var perr interface {
		Key() string
		Args() []interface{}
	}
	if errors.As(err, &perr) {
		respondErrorWithMsg(c, response.CodeBadRequest, i18n.Sprintf(i18n.ResolveLocale(c), perr.Key(), perr.Args()...), nil)
		return true
	}
	respondError(c, response.CodeBadRequest, "error.password_weak", nil)
	return true
}

// requireAdminID 读取登录管理员 ID，缺失时直接返回未授权
func requireAdminID(c *gin.Context) (uint, bool) {
	id, ok := handlershared.AdminID(c)
	if !ok {
		respondError(c, response.CodeUnauthorized, "error.unauthorized", nil)
	}
	return id, ok
}
