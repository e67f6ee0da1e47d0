package service

import (
	"strings"
	"unicode"

	"github.com/custom-pricing/internal/config"
)

// passwordPolicyError 携带 i18n 键与参数，Is 判定为 ErrWeakPassword
type passwordPolicyError struct {
	key  string
	args []interface{}
}

func (e passwordPolicyError) Error() string { return e.key }
func (e passwordPolicyError) Is(target error) bool { return target == ErrWeakPassword }
func (e passwordPolicyError) Key() string { return e.key }
func (e passwordPolicyError) Args() []interface{} { return e.args }

type charClasses struct {
	upper, lower, number, special bool
}

func classify(password string) charClasses {
	var c charClasses
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			c.upper = true
		case unicode.IsLower(r):
			c.lower = true
		case unicode.IsDigit(r):
			c.number = true
		default:
			c.special = true
		}
	}
	return c
}

// validatePassword 按配置校验密码，username 非空时密码不得包含账号名（忽略大小写）
func validatePassword(policy config.PasswordPolicyConfig, username, password string) error {
	if policy.MinLength > 0 && len([]rune(password)) < policy.MinLength {
		return passwordPolicyError{key: "error.password_min_length", args: []interface{}{policy.MinLength}}
	}

	classes := classify(password)
	checks := []struct {
		required bool
		present  bool
		key      string
	}{
		{policy.RequireUpper, classes.upper, "error.password_require_upper"},
		{policy.RequireLower, classes.lower, "error.password_require_lower"},
		{policy.RequireNumber, classes.number, "error.password_require_number"},
		{policy.RequireSpecial, classes.special, "error.password_require_special"},
	}
	for _, check := range checks {
		if check.required && !check.present {
			return passwordPolicyError{key: check.key}
		}
	}

	username = strings.ToLower(strings.TrimSpace(username))
	if len(username) >= 3 && strings.Contains(strings.ToLower(password), username) {
		return passwordPolicyError{key: "error.password_contains_username"}
	}
	return nil
}
