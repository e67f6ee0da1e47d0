package authz

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/casbin/casbin/v3/util"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

const (
	apiV1Prefix     = "/api/v1"
	casbinTableName = "casbin_rule"
	adminSubjectFmt = "admin:%d"
	rolePrefix      = "role:"
)

// 角色只来自预置矩阵，管理员与角色、角色与角色之间都走 g
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

var (
	errUnavailable = errors.New("authz service unavailable")
	errNoAdmin     = errors.New("admin id is required")

	// ErrUnknownRole 角色不在预置矩阵中
	ErrUnknownRole = errors.New("unknown role")
)

// Policy 权限策略
type Policy struct {
	Subject string `json:"subject"`
	Object  string `json:"object"`
	Action  string `json:"action"`
}

// RolePolicies 角色、继承关系与直接策略
type RolePolicies struct {
	Role     string   `json:"role"`
	Inherits []string `json:"inherits"`
	Policies []Policy `json:"policies"`
}

// Service Casbin 授权服务
// 超级管理员在中间件层直接放行，不经过这里。
type Service struct {
	enforcer *casbin.SyncedEnforcer
}

// NewService 创建授权服务，策略持久化在 casbin_rule 表
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("authz db is nil")
	}
	adapter, err := gormadapter.NewAdapterByDBUseTableName(db, "", casbinTableName)
	if err != nil {
		return nil, fmt.Errorf("create authz adapter failed: %w", err)
	}
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("load authz model failed: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("init authz enforcer failed: %w", err)
	}
	enforcer.AddFunction("keyMatch2", util.KeyMatch2Func)
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load authz policy failed: %w", err)
	}
	return &Service{enforcer: enforcer}, nil
}

func (s *Service) ready() error {
	if s == nil || s.enforcer == nil {
		return errUnavailable
	}
	return nil
}

// EnforceAdmin 判断管理员能否以 act 访问 obj，obj 可带 /api/v1 前缀
func (s *Service) EnforceAdmin(adminID uint, obj, act string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	return s.enforcer.Enforce(SubjectForAdmin(adminID), NormalizeObject(obj), NormalizeAction(act))
}

// RoleMatrix 角色矩阵，按角色名排序
func (s *Service) RoleMatrix() ([]RolePolicies, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rules, err := s.enforcer.GetPolicy()
	if err != nil {
		return nil, fmt.Errorf("list policies failed: %w", err)
	}
	byRole := map[string]*RolePolicies{}
	for _, item := range convertPolicies(rules) {
		if !strings.HasPrefix(item.Subject, rolePrefix) {
			continue
		}
		entry, ok := byRole[item.Subject]
		if !ok {
			entry = &RolePolicies{Role: item.Subject, Inherits: []string{}}
			byRole[item.Subject] = entry
		}
		entry.Policies = append(entry.Policies, item)
	}

	out := make([]RolePolicies, 0, len(byRole))
	for role, entry := range byRole {
		parents, err := s.enforcer.GetRolesForUser(role)
		if err != nil {
			return nil, fmt.Errorf("get role inheritance failed: %w", err)
		}
		entry.Inherits = append(entry.Inherits, onlyRoles(parents)...)
		sortPolicies(entry.Policies)
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out, nil
}

// SetAdminRoles 覆盖设置管理员角色，任一角色未知时不做任何修改
func (s *Service) SetAdminRoles(adminID uint, roles []string) error {
	if adminID == 0 {
		return errNoAdmin
	}
	if err := s.ready(); err != nil {
		return err
	}
	subject := SubjectForAdmin(adminID)

	links := make([][]string, 0, len(roles))
	seen := map[string]bool{}
	for _, role := range roles {
		normalized, err := NormalizeRole(role)
		if err != nil {
			return err
		}
		if seen[normalized] {
			continue
		}
		known, err := s.hasRole(normalized)
		if err != nil {
			return err
		}
		if !known {
			return fmt.Errorf("%w: %s", ErrUnknownRole, normalized)
		}
		seen[normalized] = true
		links = append(links, []string{subject, normalized})
	}

	if _, err := s.enforcer.RemoveFilteredNamedGroupingPolicy("g", 0, subject); err != nil {
		return fmt.Errorf("clear admin roles failed: %w", err)
	}
	if len(links) == 0 {
		return nil
	}
	if _, err := s.enforcer.AddNamedGroupingPolicies("g", links); err != nil {
		return fmt.Errorf("assign admin roles failed: %w", err)
	}
	return nil
}

// GetAdminRoles 管理员直接拥有的角色
func (s *Service) GetAdminRoles(adminID uint) ([]string, error) {
	if adminID == 0 {
		return nil, errNoAdmin
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	roles, err := s.enforcer.GetRolesForUser(SubjectForAdmin(adminID))
	if err != nil {
		return nil, fmt.Errorf("get admin roles failed: %w", err)
	}
	filtered := onlyRoles(roles)
	sort.Strings(filtered)
	return filtered, nil
}

// GetAdminPolicies 管理员生效策略，包含继承角色带来的部分
func (s *Service) GetAdminPolicies(adminID uint) ([]Policy, error) {
	if adminID == 0 {
		return nil, errNoAdmin
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	rules, err := s.enforcer.GetImplicitPermissionsForUser(SubjectForAdmin(adminID))
	if err != nil {
		return nil, fmt.Errorf("get admin policies failed: %w", err)
	}
	policies := convertPolicies(rules)
	sortPolicies(policies)
	return policies, nil
}

func (s *Service) hasRole(role string) (bool, error) {
	rules, err := s.enforcer.GetFilteredPolicy(0, role)
	if err != nil {
		return false, fmt.Errorf("check role failed: %w", err)
	}
	return len(rules) > 0, nil
}

func onlyRoles(subjects []string) []string {
	out := make([]string, 0, len(subjects))
	for _, subject := range subjects {
		if strings.HasPrefix(subject, rolePrefix) {
			out = append(out, subject)
		}
	}
	return out
}

func convertPolicies(rules [][]string) []Policy {
	policies := make([]Policy, 0, len(rules))
	for _, rule := range rules {
		if len(rule) < 3 {
			continue
		}
		policies = append(policies, Policy{
			Subject: strings.TrimSpace(rule[0]),
			Object:  NormalizeObject(rule[1]),
			Action:  NormalizeAction(rule[2]),
		})
	}
	return policies
}

func sortPolicies(policies []Policy) {
	sort.Slice(policies, func(i, j int) bool {
		a, b := policies[i], policies[j]
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		if a.Object != b.Object {
			return a.Object < b.Object
		}
		return a.Action < b.Action
	})
}

// SubjectForAdmin 管理员主体标识
func SubjectForAdmin(adminID uint) string {
	return fmt.Sprintf(adminSubjectFmt, adminID)
}

// NormalizeRole 统一为 role: 前缀，空格替换为下划线
func NormalizeRole(role string) (string, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(role), " ", "_")
	normalized = strings.TrimPrefix(normalized, rolePrefix)
	if normalized == "" {
		return "", fmt.Errorf("role is required")
	}
	return rolePrefix + normalized, nil
}

// NormalizeObject 去掉 /api/v1 前缀，与路由表中的资源路径对齐
func NormalizeObject(object string) string {
	normalized := "/" + strings.TrimLeft(strings.TrimSpace(object), "/")
	if normalized == apiV1Prefix {
		return "/"
	}
	if rest, ok := strings.CutPrefix(normalized, apiV1Prefix+"/"); ok {
		return "/" + rest
	}
	return normalized
}

// NormalizeAction HTTP 方法统一大写
func NormalizeAction(action string) string {
	return strings.ToUpper(strings.TrimSpace(action))
}
