package authz

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthzServiceTest(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	return svc
}

func TestAllowedFollowsRoutePattern(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.GrantRolePolicy("ops", "/admin/orders/:id", "GET"); err != nil {
		t.Fatalf("grant role policy failed: %v", err)
	}
	if _, err := svc.AssignRoles(1, []string{"ops"}); err != nil {
		t.Fatalf("assign roles failed: %v", err)
	}

	allow, err := svc.Allowed(1, "get", "/dfinsell/v1/admin/orders/42")
	if err != nil {
		t.Fatalf("allowed failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected GET order detail to be allowed")
	}
	if allow, _ := svc.Allowed(1, "POST", "/dfinsell/v1/admin/orders/42"); allow {
		t.Fatalf("expected POST to be denied")
	}
	if allow, _ := svc.Allowed(2, "GET", "/dfinsell/v1/admin/orders/42"); allow {
		t.Fatalf("admin without roles should be denied")
	}
}

func TestAssignRolesOverridesAndRejectsUnknown(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.GrantRolePolicy("ops", "/admin/orders", "GET"); err != nil {
		t.Fatalf("grant ops policy failed: %v", err)
	}
	if err := svc.GrantRolePolicy("accounts", "/admin/accounts", "PUT"); err != nil {
		t.Fatalf("grant accounts policy failed: %v", err)
	}

	if _, err := svc.AssignRoles(2, []string{"ops"}); err != nil {
		t.Fatalf("assign first role failed: %v", err)
	}
	assigned, err := svc.AssignRoles(2, []string{"role:accounts", "accounts"})
	if err != nil {
		t.Fatalf("assign second role failed: %v", err)
	}
	if len(assigned) != 1 || assigned[0] != "role:accounts" {
		t.Fatalf("assigned want [role:accounts] got %v", assigned)
	}
	roles, err := svc.AdminRoles(2)
	if err != nil {
		t.Fatalf("admin roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:accounts" {
		t.Fatalf("roles want [role:accounts] got %v", roles)
	}
	if allow, _ := svc.Allowed(2, "GET", "/admin/orders"); allow {
		t.Fatalf("expected old role permission removed")
	}
	if allow, _ := svc.Allowed(2, "PUT", "/admin/accounts"); !allow {
		t.Fatalf("expected new role permission granted")
	}

	if _, err := svc.AssignRoles(2, []string{"superuser"}); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("unknown role want ErrUnknownRole got %v", err)
	}
	if roles, _ := svc.AdminRoles(2); len(roles) != 1 {
		t.Fatalf("rejected assignment must keep existing roles, got %v", roles)
	}
	if _, err := svc.AssignRoles(2, []string{"  "}); !errors.Is(err, ErrRoleRequired) {
		t.Fatalf("blank role want ErrRoleRequired got %v", err)
	}
}

func TestNormalizeObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "/dfinsell/v1/admin/accounts", want: "/admin/accounts"},
		{in: "/admin/orders/:id", want: "/admin/orders/:id"},
		{in: "admin/settings", want: "/admin/settings"},
		{in: "/dfinsell/v1", want: "/"},
		{in: "/dfinsell/v1x", want: "/dfinsell/v1x"},
		{in: "", want: "/"},
	}
	for _, item := range cases {
		if got := NormalizeObject(item.in); got != item.want {
			t.Fatalf("normalize object in=%q want=%q got=%q", item.in, item.want, got)
		}
	}
}

func TestBootstrapBuiltinRoles(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}
	// 重复执行保持幂等
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}

	roles, err := svc.ListRoles()
	if err != nil {
		t.Fatalf("list roles failed: %v", err)
	}
	want := []string{"role:account_manager", "role:gateway_manager", "role:readonly_auditor", "role:support"}
	if strings.Join(roles, ",") != strings.Join(want, ",") {
		t.Fatalf("roles want %v got %v", want, roles)
	}

	policies, err := svc.RolePolicies("account_manager")
	if err != nil {
		t.Fatalf("role policies failed: %v", err)
	}
	if len(policies) != 2 || policies[0].Object != "/admin/accounts" || policies[1].Action != "POST" {
		t.Fatalf("unexpected account_manager policies: %+v", policies)
	}

	if _, err := svc.AssignRoles(3, []string{"account_manager"}); err != nil {
		t.Fatalf("assign roles failed: %v", err)
	}
	cases := []struct {
		method, path string
		want         bool
	}{
		{"GET", "/dfinsell/v1/admin/settings", true},
		{"PUT", "/dfinsell/v1/admin/settings", false},
		{"PUT", "/dfinsell/v1/admin/accounts", true},
		{"GET", "/dfinsell/v1/admin/sync-token", true},
		{"POST", "/dfinsell/v1/admin/manual-sync", true},
	}
	for _, tc := range cases {
		allow, err := svc.Allowed(3, tc.method, tc.path)
		if err != nil {
			t.Fatalf("allowed %s %s failed: %v", tc.method, tc.path, err)
		}
		if allow != tc.want {
			t.Fatalf("%s %s want %v got %v", tc.method, tc.path, tc.want, allow)
		}
	}
}
