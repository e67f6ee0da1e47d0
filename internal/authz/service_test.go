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
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}
	return svc
}

func TestViewerAndEditorPermissions(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.SetAdminRoles(3, []string{RolePricingViewer}); err != nil {
		t.Fatalf("set viewer role failed: %v", err)
	}
	if err := svc.SetAdminRoles(4, []string{"role:" + RolePricingEditor}); err != nil {
		t.Fatalf("set editor role failed: %v", err)
	}

	cases := []struct {
		admin uint
		obj   string
		act   string
		allow bool
	}{
		{admin: 3, obj: "/api/v1/admin/pricing-rules", act: "get", allow: true},
		{admin: 3, obj: "/api/v1/admin/pricing-rules/validate", act: "POST", allow: true},
		{admin: 3, obj: "/api/v1/admin/pricing-rules", act: "POST", allow: false},
		{admin: 3, obj: "/api/v1/admin/pricing-rules/7", act: "DELETE", allow: false},
		{admin: 4, obj: "/api/v1/admin/pricing-rules/7", act: "GET", allow: true},
		{admin: 4, obj: "/api/v1/admin/pricing-rules/7", act: "PUT", allow: true},
		{admin: 4, obj: "/admin/pricing-rules/7/warnings", act: "POST", allow: true},
		{admin: 5, obj: "/api/v1/admin/pricing-rules", act: "GET", allow: false},
	}
	for _, item := range cases {
		allow, err := svc.EnforceAdmin(item.admin, item.obj, item.act)
		if err != nil {
			t.Fatalf("enforce %d %s %s failed: %v", item.admin, item.act, item.obj, err)
		}
		if allow != item.allow {
			t.Fatalf("admin %d %s %s want %v got %v", item.admin, item.act, item.obj, item.allow, allow)
		}
	}
}

func TestSetAdminRolesOverride(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.SetAdminRoles(2, []string{RolePricingEditor}); err != nil {
		t.Fatalf("set editor failed: %v", err)
	}
	if err := svc.SetAdminRoles(2, []string{RolePricingViewer, RolePricingViewer}); err != nil {
		t.Fatalf("set viewer failed: %v", err)
	}
	roles, err := svc.GetAdminRoles(2)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:"+RolePricingViewer {
		t.Fatalf("roles want [role:%s], got=%v", RolePricingViewer, roles)
	}
	allow, err := svc.EnforceAdmin(2, "/admin/pricing-rules", "POST")
	if err != nil {
		t.Fatalf("enforce failed: %v", err)
	}
	if allow {
		t.Fatalf("editor permission should be removed")
	}

	if err := svc.SetAdminRoles(2, nil); err != nil {
		t.Fatalf("clear roles failed: %v", err)
	}
	roles, _ = svc.GetAdminRoles(2)
	if len(roles) != 0 {
		t.Fatalf("roles should be empty, got %v", roles)
	}
}

func TestSetAdminRolesRejectsUnknownRole(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.SetAdminRoles(6, []string{RolePricingViewer}); err != nil {
		t.Fatalf("set viewer failed: %v", err)
	}
	err := svc.SetAdminRoles(6, []string{RolePricingEditor, "auditor"})
	if !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("want ErrUnknownRole got %v", err)
	}
	roles, _ := svc.GetAdminRoles(6)
	if len(roles) != 1 || roles[0] != "role:"+RolePricingViewer {
		t.Fatalf("failed update must keep previous roles, got %v", roles)
	}
	if err := svc.SetAdminRoles(0, []string{RolePricingViewer}); err == nil {
		t.Fatalf("admin id 0 should be rejected")
	}
}

func TestRoleMatrixAndImplicitPolicies(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	// 重复同步不产生重复策略
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}

	matrix, err := svc.RoleMatrix()
	if err != nil {
		t.Fatalf("role matrix failed: %v", err)
	}
	if len(matrix) != 2 {
		t.Fatalf("want 2 roles got %+v", matrix)
	}
	editor, viewer := matrix[0], matrix[1]
	if editor.Role != "role:"+RolePricingEditor || viewer.Role != "role:"+RolePricingViewer {
		t.Fatalf("matrix should be sorted by role, got %s %s", editor.Role, viewer.Role)
	}
	if len(editor.Policies) != 4 || len(viewer.Policies) != 5 {
		t.Fatalf("unexpected policy counts editor=%d viewer=%d", len(editor.Policies), len(viewer.Policies))
	}
	if len(editor.Inherits) != 1 || editor.Inherits[0] != viewer.Role || len(viewer.Inherits) != 0 {
		t.Fatalf("unexpected inheritance editor=%v viewer=%v", editor.Inherits, viewer.Inherits)
	}

	if err := svc.SetAdminRoles(4, []string{RolePricingEditor}); err != nil {
		t.Fatalf("set editor role failed: %v", err)
	}
	policies, err := svc.GetAdminPolicies(4)
	if err != nil {
		t.Fatalf("get admin policies failed: %v", err)
	}
	if len(policies) != 9 {
		t.Fatalf("editor effective policies want 9 got %d: %+v", len(policies), policies)
	}
}

func TestBootstrapRevokesStalePolicies(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if _, err := svc.enforcer.AddPolicy("role:"+RolePricingViewer, "/admin/pricing-rules/:id", "DELETE"); err != nil {
		t.Fatalf("add stale policy failed: %v", err)
	}
	if err := svc.SetAdminRoles(9, []string{RolePricingViewer}); err != nil {
		t.Fatalf("set viewer failed: %v", err)
	}
	if allow, _ := svc.EnforceAdmin(9, "/admin/pricing-rules/1", "DELETE"); !allow {
		t.Fatalf("stale policy should be effective before sync")
	}
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	if allow, _ := svc.EnforceAdmin(9, "/admin/pricing-rules/1", "DELETE"); allow {
		t.Fatalf("stale policy should be revoked")
	}
}

func TestNormalizeObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "/api/v1/admin/pricing-rules/:id", want: "/admin/pricing-rules/:id"},
		{in: "/admin/pricing-rules/:id", want: "/admin/pricing-rules/:id"},
		{in: "admin/pricing-rules", want: "/admin/pricing-rules"},
		{in: "/api/v1", want: "/"},
		{in: "/api/v1x", want: "/api/v1x"},
		{in: "", want: "/"},
	}
	for _, item := range cases {
		if got := NormalizeObject(item.in); got != item.want {
			t.Fatalf("normalize object in=%q want=%q got=%q", item.in, item.want, got)
		}
	}
}

func TestNormalizeRole(t *testing.T) {
	for in, want := range map[string]string{
		"pricing_viewer":      "role:pricing_viewer",
		"role:pricing_viewer": "role:pricing_viewer",
		" pricing editor ":    "role:pricing_editor",
	} {
		got, err := NormalizeRole(in)
		if err != nil || got != want {
			t.Fatalf("normalize role %q want %q got %q err=%v", in, want, got, err)
		}
	}
	if _, err := NormalizeRole("role:"); err == nil {
		t.Fatalf("empty role should fail")
	}
}

func TestNilServiceUnavailable(t *testing.T) {
	var svc *Service
	if _, err := svc.EnforceAdmin(1, "/admin/pricing-rules", "GET"); !errors.Is(err, errUnavailable) {
		t.Fatalf("want errUnavailable got %v", err)
	}
}
