package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/custom-pricing/internal/authz"
	handlershared "github.com/custom-pricing/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupRBACTest(t *testing.T) *authz.Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	svc, err := authz.NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap roles failed: %v", err)
	}
	return svc
}

func rbacEngine(svc *authz.Service, adminID uint, isSuper bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("admin_id", adminID)
		c.Set(handlershared.IsSuperKey, isSuper)
		c.Next()
	})
	r.Use(AdminRBACMiddleware(svc))
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status_code": 0}) }
	r.GET("/api/v1/admin/pricing-rules", ok)
	r.PUT("/api/v1/admin/pricing-rules/:id", ok)
	r.DELETE("/api/v1/admin/pricing-rules/:id", ok)
	return r
}

func rbacStatus(t *testing.T, r *gin.Engine, method, path string) int {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	var resp struct {
		StatusCode int `json:"status_code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v body=%s", err, w.Body.String())
	}
	return resp.StatusCode
}

func TestAdminRBACMiddlewarePricingRoles(t *testing.T) {
	svc := setupRBACTest(t)
	if err := svc.SetAdminRoles(7, []string{authz.RolePricingViewer}); err != nil {
		t.Fatalf("set viewer role failed: %v", err)
	}
	if err := svc.SetAdminRoles(8, []string{authz.RolePricingEditor}); err != nil {
		t.Fatalf("set editor role failed: %v", err)
	}

	viewer := rbacEngine(svc, 7, false)
	if code := rbacStatus(t, viewer, http.MethodGet, "/api/v1/admin/pricing-rules"); code != 0 {
		t.Fatalf("viewer list want 0 got %d", code)
	}
	if code := rbacStatus(t, viewer, http.MethodPut, "/api/v1/admin/pricing-rules/3"); code != 403 {
		t.Fatalf("viewer update want 403 got %d", code)
	}

	editor := rbacEngine(svc, 8, false)
	if code := rbacStatus(t, editor, http.MethodDelete, "/api/v1/admin/pricing-rules/3"); code != 0 {
		t.Fatalf("editor delete want 0 got %d", code)
	}

	nobody := rbacEngine(svc, 9, false)
	if code := rbacStatus(t, nobody, http.MethodGet, "/api/v1/admin/pricing-rules"); code != 403 {
		t.Fatalf("admin without roles want 403 got %d", code)
	}

	super := rbacEngine(svc, 9, true)
	if code := rbacStatus(t, super, http.MethodDelete, "/api/v1/admin/pricing-rules/3"); code != 0 {
		t.Fatalf("super admin want 0 got %d", code)
	}
}

func TestBuildAdminPermissionCatalog(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	noop := func(c *gin.Context) {}
	r.POST("/api/v1/admin/login", noop)
	r.PUT("/api/v1/admin/password", noop)
	r.GET("/api/v1/admin/pricing-rules", noop)
	r.GET("/api/v1/admin/pricing-rules/:id", noop)
	r.GET("/api/v1/admin/authz/roles", noop)
	r.POST("/api/v1/storefront/render", noop)

	items := buildAdminPermissionCatalog(r)
	if len(items) != 3 {
		t.Fatalf("catalog want 3 items got %+v", items)
	}
	if items[0].Module != "authz" || items[0].Permission != "GET:/admin/authz/roles" {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if items[1].Module != "pricing" || items[1].Object != "/admin/pricing-rules" {
		t.Fatalf("unexpected second item: %+v", items[1])
	}
	if items[2].Object != "/admin/pricing-rules/:id" {
		t.Fatalf("unexpected third item: %+v", items[2])
	}
}
