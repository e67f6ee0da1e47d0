package admin

import (
	"errors"

	"github.com/custom-pricing/internal/authz"
	handlershared "github.com/custom-pricing/internal/http/handlers/shared"
	"github.com/custom-pricing/internal/http/response"
	"github.com/custom-pricing/internal/logger"

	"github.com/gin-gonic/gin"
)

type authzSetAdminRolesPayload struct {
	Roles []string `json:"roles"`
}

// GetAuthzMe 获取当前管理员权限快照
func (h *Handler) GetAuthzMe(c *gin.Context) {
	adminID, ok := requireAdminID(c)
	if !ok {
		return
	}

	roles, err := h.AuthzService.GetAdminRoles(adminID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.authz_fetch_failed", err)
		return
	}
	policies, err := h.AuthzService.GetAdminPolicies(adminID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.authz_fetch_failed", err)
		return
	}

	response.Success(c, gin.H{
		"admin_id": adminID,
		"is_super": c.GetBool(handlershared.IsSuperKey),
		"roles":    roles,
		"policies": policies,
	})
}

// ListAuthzRoles 角色与策略矩阵（只读，预置角色在启动时写入）
func (h *Handler) ListAuthzRoles(c *gin.Context) {
	matrix, err := h.AuthzService.RoleMatrix()
	if err != nil {
		respondError(c, response.CodeInternal, "error.authz_fetch_failed", err)
		return
	}
	response.Success(c, matrix)
}

// ListAuthzAdmins 获取管理员列表
func (h *Handler) ListAuthzAdmins(c *gin.Context) {
	admins, err := h.AdminRepo.List()
	if err != nil {
		respondError(c, response.CodeInternal, "error.authz_fetch_failed", err)
		return
	}

	items := make([]gin.H, 0, len(admins))
	for _, admin := range admins {
		roles, roleErr := h.AuthzService.GetAdminRoles(admin.ID)
		if roleErr != nil {
			respondError(c, response.CodeInternal, "error.authz_fetch_failed", roleErr)
			return
		}
		items = append(items, gin.H{
			"id":            admin.ID,
			"username":      admin.Username,
			"is_super":      admin.IsSuper,
			"last_login_at": admin.LastLoginAt,
			"created_at":    admin.CreatedAt,
			"roles":         roles,
		})
	}

	response.Success(c, items)
}

// SetAuthzAdminRoles 设置管理员角色
func (h *Handler) SetAuthzAdminRoles(c *gin.Context) {
	adminID, ok := parseAdminIDParam(c)
	if !ok {
		return
	}
	admin, err := h.AdminRepo.GetByID(adminID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.save_failed", err)
		return
	}
	if admin == nil {
		respondError(c, response.CodeBadRequest, "error.admin_id_invalid", nil)
		return
	}

	var req authzSetAdminRolesPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	if err := h.AuthzService.SetAdminRoles(adminID, req.Roles); err != nil {
		if errors.Is(err, authz.ErrUnknownRole) {
			respondError(c, response.CodeBadRequest, "error.authz_role_unknown", err)
			return
		}
		respondError(c, response.CodeInternal, "error.save_failed", err)
		return
	}

	operatorID, _ := handlershared.AdminID(c)
	logger.Infow("admin_authz_admin_roles_updated",
		"operator_admin_id", operatorID,
		"target_admin_id", adminID,
		"roles", req.Roles,
	)

	response.Success(c, nil)
}

func parseAdminIDParam(c *gin.Context) (uint, bool) {
	id, ok := handlershared.ParseIDParam(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.admin_id_invalid", nil)
	}
	return id, ok
}
