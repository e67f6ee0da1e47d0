package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/custom-pricing/internal/config"
	"github.com/custom-pricing/internal/models"
	"github.com/custom-pricing/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthServiceTest(t *testing.T) (*AuthService, repository.AdminRepository) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Admin{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	cfg := &config.Config{}
	cfg.JWT.SecretKey = "test-secret-key-with-enough-entropy-0123"
	cfg.JWT.ExpireHours = 1
	cfg.Security.PasswordPolicy = config.PasswordPolicyConfig{MinLength: 8, RequireUpper: true, RequireLower: true, RequireNumber: true}
	repo := repository.NewAdminRepository(db)
	return NewAuthService(cfg, repo), repo
}

func TestValidatePasswordPolicy(t *testing.T) {
	policy := config.PasswordPolicyConfig{MinLength: 8, RequireUpper: true, RequireLower: true, RequireNumber: true, RequireSpecial: true}
	cases := []struct {
		username string
		password string
		wantKey  string
	}{
		{password: "Ab1!", wantKey: "error.password_min_length"},
		{password: "abcdefg1!", wantKey: "error.password_require_upper"},
		{password: "ABCDEFG1!", wantKey: "error.password_require_lower"},
		{password: "Abcdefgh!", wantKey: "error.password_require_number"},
		{password: "Abcdefg12", wantKey: "error.password_require_special"},
		{username: "Editor", password: "myEDITOR#2024", wantKey: "error.password_contains_username"},
		{username: "ed", password: "Ed#2024edit", wantKey: ""},
		{password: "Pricing#2024", wantKey: ""},
	}
	for _, tc := range cases {
		err := validatePassword(policy, tc.username, tc.password)
		if tc.wantKey == "" {
			if err != nil {
				t.Fatalf("%q should pass, got %v", tc.password, err)
			}
			continue
		}
		var perr passwordPolicyError
		if !errors.As(err, &perr) || perr.Key() != tc.wantKey {
			t.Fatalf("%q want %s got %v", tc.password, tc.wantKey, err)
		}
		if !errors.Is(err, ErrWeakPassword) {
			t.Fatalf("policy error should match ErrWeakPassword")
		}
	}

	if err := validatePassword(config.PasswordPolicyConfig{}, "", "x"); err != nil {
		t.Fatalf("empty policy should accept anything, got %v", err)
	}
}

func TestEnsureDefaultAdminOnlyOnce(t *testing.T) {
	svc, repo := setupAuthServiceTest(t)

	created, err := svc.EnsureDefaultAdmin("", "")
	if err != nil || !created {
		t.Fatalf("first call should create admin, created=%v err=%v", created, err)
	}
	admin, err := repo.GetByUsername("admin")
	if err != nil || admin == nil || !admin.IsSuper {
		t.Fatalf("default admin should be super, got %+v err=%v", admin, err)
	}

	created, err = svc.EnsureDefaultAdmin("other", "Other#2024x")
	if err != nil || created {
		t.Fatalf("second call should be a no-op, created=%v err=%v", created, err)
	}
}

func TestCreateAdminLoginAndChangePassword(t *testing.T) {
	svc, _ := setupAuthServiceTest(t)
	ctx := context.Background()

	admin, err := svc.CreateAdmin("pricing-editor", "Editor#2024demo", false)
	if err != nil {
		t.Fatalf("create admin failed: %v", err)
	}
	if _, err := svc.CreateAdmin("pricing-editor", "Editor#2024demo", false); !errors.Is(err, ErrAdminExists) {
		t.Fatalf("duplicate username want ErrAdminExists got %v", err)
	}
	if _, err := svc.CreateAdmin("weak", "short", false); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("weak password want ErrWeakPassword got %v", err)
	}

	if _, _, _, err := svc.Login(ctx, "pricing-editor", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password want ErrInvalidCredentials got %v", err)
	}
	logged, token, _, err := svc.Login(ctx, " pricing-editor ", "Editor#2024demo")
	if err != nil || token == "" || logged.LastLoginAt == nil {
		t.Fatalf("login failed: token=%q err=%v", token, err)
	}

	if err := svc.ChangePassword(ctx, admin.ID, "wrong", "Editor#2025demo"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("wrong old password want ErrInvalidPassword got %v", err)
	}
	if err := svc.ChangePassword(ctx, admin.ID, "Editor#2024demo", "Editor#2025demo"); err != nil {
		t.Fatalf("change password failed: %v", err)
	}
	if _, _, _, err := svc.Login(ctx, "pricing-editor", "Editor#2025demo"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
}
