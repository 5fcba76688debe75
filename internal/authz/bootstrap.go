package authz

import "fmt"

// RoleSeed 预置角色
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 网关后台预置角色
//
// readonly_auditor 可查看所有后台资源；account_manager 维护账户列表并可手动同步；
// gateway_manager 维护网关设置；support 只看订单。
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role:     "readonly_auditor",
			Policies: []Policy{{Object: "/admin/*", Action: "GET"}},
		},
		{
			Role:     "account_manager",
			Inherits: []string{"readonly_auditor"},
			Policies: []Policy{
				{Object: "/admin/accounts", Action: "PUT"},
				{Object: "/admin/manual-sync", Action: "POST"},
			},
		},
		{
			Role:     "gateway_manager",
			Inherits: []string{"readonly_auditor"},
			Policies: []Policy{{Object: "/admin/settings", Action: "PUT"}},
		},
		{
			Role: "support",
			Policies: []Policy{
				{Object: "/admin/orders", Action: "GET"},
				{Object: "/admin/orders/:id", Action: "GET"},
			},
		},
	}
}

// BootstrapBuiltinRoles 幂等写入预置角色、继承关系与策略
func (s *Service) BootstrapBuiltinRoles() error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, seed := range BuiltinRoleSeeds() {
		role, err := NormalizeRole(seed.Role)
		if err != nil {
			return err
		}
		if _, err := s.registerRole(role); err != nil {
			return err
		}
		for _, parent := range seed.Inherits {
			parentRole, err := NormalizeRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("link role %s to %s failed: %w", role, parentRole, err)
			}
		}
		for _, policy := range seed.Policies {
			if err := s.GrantRolePolicy(role, policy.Object, policy.Action); err != nil {
				return fmt.Errorf("seed %s policy failed: %w", role, err)
			}
		}
	}
	return nil
}
