package authz

import "fmt"

// 预置角色名称
const (
	RolePricingViewer = "pricing_viewer"
	RolePricingEditor = "pricing_editor"
)

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 系统预置角色矩阵
// 规则顺序决定店铺价格，只有编辑者能增删改；校验接口不落库，查看者也可调用。
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: RolePricingViewer,
			Policies: []Policy{
				{Object: "/admin/pricing-rules", Action: "GET"},
				{Object: "/admin/pricing-rules/:id", Action: "GET"},
				{Object: "/admin/pricing-rules/validate", Action: "POST"},
				{Object: "/admin/pricing-rule-audits", Action: "GET"},
				{Object: "/admin/storefront/rules", Action: "GET"},
			},
		},
		{
			Role:     RolePricingEditor,
			Inherits: []string{RolePricingViewer},
			Policies: []Policy{
				{Object: "/admin/pricing-rules", Action: "POST"},
				{Object: "/admin/pricing-rules/:id", Action: "PUT"},
				{Object: "/admin/pricing-rules/:id", Action: "DELETE"},
				{Object: "/admin/pricing-rules/:id/warnings", Action: "POST"},
			},
		},
	}
}

// BootstrapBuiltinRoles 把预置角色的策略与继承同步到 casbin_rule
// 矩阵里删掉的策略会一并撤销，管理员与角色的绑定保持不变。
func (s *Service) BootstrapBuiltinRoles() error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, seed := range BuiltinRoleSeeds() {
		if err := s.syncRole(seed); err != nil {
			return fmt.Errorf("sync role %s failed: %w", seed.Role, err)
		}
	}
	return nil
}

func (s *Service) syncRole(seed RoleSeed) error {
	role, err := NormalizeRole(seed.Role)
	if err != nil {
		return err
	}

	want := make(map[[2]string]bool, len(seed.Policies))
	for _, policy := range seed.Policies {
		action := NormalizeAction(policy.Action)
		if action == "" {
			return fmt.Errorf("policy action is required")
		}
		want[[2]string{NormalizeObject(policy.Object), action}] = true
	}

	existing, err := s.enforcer.GetFilteredPolicy(0, role)
	if err != nil {
		return err
	}
	var stale [][]string
	for _, rule := range existing {
		if len(rule) < 3 {
			continue
		}
		key := [2]string{rule[1], rule[2]}
		if want[key] {
			delete(want, key)
			continue
		}
		stale = append(stale, rule)
	}
	if len(stale) > 0 {
		if _, err := s.enforcer.RemovePolicies(stale); err != nil {
			return err
		}
	}
	if len(want) > 0 {
		missing := make([][]string, 0, len(want))
		for key := range want {
			missing = append(missing, []string{role, key[0], key[1]})
		}
		if _, err := s.enforcer.AddPolicies(missing); err != nil {
			return err
		}
	}

	if _, err := s.enforcer.RemoveFilteredNamedGroupingPolicy("g", 0, role); err != nil {
		return err
	}
	if len(seed.Inherits) == 0 {
		return nil
	}
	links := make([][]string, 0, len(seed.Inherits))
	for _, parent := range seed.Inherits {
		parentRole, err := NormalizeRole(parent)
		if err != nil {
			return err
		}
		links = append(links, []string{role, parentRole})
	}
	_, err = s.enforcer.AddNamedGroupingPolicies("g", links)
	return err
}
