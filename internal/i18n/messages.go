package i18n

var catalogs = map[string]map[string]string{
	LocaleZH: {
		"error.bad_request":                  "请求参数错误",
		"error.unauthorized":                 "未登录或登录已失效",
		"error.token_invalid":                "无效的登录凭证",
		"error.token_revoked":                "登录凭证已失效，请重新登录",
		"error.forbidden":                    "没有访问权限",
		"error.authz_unavailable":            "权限服务不可用",
		"error.internal":                     "服务器内部错误",
		"error.not_found":                    "资源不存在",
		"error.rate_limited":                 "请求过于频繁，请 %d 秒后再试",
		"error.rate_limit_unavailable":       "限流服务暂不可用",
		"error.admin_login_invalid":          "用户名或密码错误",
		"error.login_failed":                 "登录失败",
		"error.admin_id_invalid":             "管理员 ID 无效",
		"error.admin_id_type_invalid":        "管理员 ID 类型错误",
		"error.user_not_found":               "管理员不存在",
		"error.password_old_invalid":         "原密码错误",
		"error.password_weak":                "密码强度不足",
		"error.password_min_length":          "密码长度不能少于 %d 位",
		"error.password_require_upper":       "密码需包含大写字母",
		"error.password_require_lower":       "密码需包含小写字母",
		"error.password_require_number":      "密码需包含数字",
		"error.password_require_special":     "密码需包含特殊字符",
		"error.password_contains_username":   "密码不能包含账号名",
		"error.save_failed":                  "保存失败",
		"error.pricing_rule_id_invalid":      "规则 ID 无效",
		"error.pricing_rule_not_found":       "定价规则不存在",
		"error.pricing_rule_invalid":         "定价规则不合法",
		"error.pricing_rule_fetch_failed":    "获取定价规则失败",
		"error.pricing_rule_create_failed":   "创建定价规则失败",
		"error.pricing_rule_update_failed":   "更新定价规则失败",
		"error.pricing_rule_delete_failed":   "删除定价规则失败",
		"error.pricing_rule_validate_failed": "定价规则校验失败",
		"error.pricing_rule_audit_failed":    "获取规则变更记录失败",
		"error.pricing_rules_unavailable":    "规则暂不可用",
		"error.render_html_invalid":          "页面 HTML 无法解析",
		"error.render_failed":                "价格渲染失败",
		"error.quote_context_missing":        "缺少商品信息",
		"error.quote_price_unavailable":      "无法确定商品原价",
		"error.quote_failed":                 "报价失败",
		"error.session_upgrade_failed":       "会话建立失败",
		"error.session_closed":               "会话已关闭",
		"error.authz_fetch_failed":           "获取权限信息失败",
		"error.authz_role_unknown":           "角色不存在",
		"error.auth_header_missing":          "缺少 Authorization 请求头",
		"error.auth_header_invalid":          "Authorization 请求头格式错误",
		"error.jwt_secret_missing":           "未配置 JWT 密钥",
		"error.login_too_many":               "登录尝试过于频繁，请 %d 秒后再试",
	},
	LocaleTW: {
		"error.bad_request":                  "請求參數錯誤",
		"error.unauthorized":                 "未登入或登入已失效",
		"error.token_invalid":                "無效的登入憑證",
		"error.token_revoked":                "登入憑證已失效，請重新登入",
		"error.forbidden":                    "沒有存取權限",
		"error.internal":                     "伺服器內部錯誤",
		"error.rate_limited":                 "請求過於頻繁，請 %d 秒後再試",
		"error.admin_login_invalid":          "使用者名稱或密碼錯誤",
		"error.password_min_length":          "密碼長度不能少於 %d 位",
		"error.pricing_rule_not_found":       "定價規則不存在",
		"error.pricing_rule_invalid":         "定價規則不合法",
		"error.pricing_rule_validate_failed": "定價規則校驗失敗",
		"error.render_failed":                "價格渲染失敗",
		"error.quote_failed":                 "報價失敗",
	},
	LocaleEN: {
		"error.bad_request":                  "Invalid request",
		"error.unauthorized":                 "Not signed in or session expired",
		"error.token_invalid":                "Invalid token",
		"error.token_revoked":                "Token revoked, please sign in again",
		"error.forbidden":                    "Permission denied",
		"error.authz_unavailable":            "Authorization service unavailable",
		"error.internal":                     "Internal server error",
		"error.not_found":                    "Not found",
		"error.rate_limited":                 "Too many requests, please retry in %d seconds",
		"error.rate_limit_unavailable":       "Rate limiter unavailable",
		"error.admin_login_invalid":          "Invalid username or password",
		"error.login_failed":                 "Login failed",
		"error.admin_id_invalid":             "Invalid admin id",
		"error.admin_id_type_invalid":        "Invalid admin id type",
		"error.user_not_found":               "Admin not found",
		"error.password_old_invalid":         "Current password is incorrect",
		"error.password_weak":                "Password is too weak",
		"error.password_min_length":          "Password must be at least %d characters",
		"error.password_require_upper":       "Password must contain an uppercase letter",
		"error.password_require_lower":       "Password must contain a lowercase letter",
		"error.password_require_number":      "Password must contain a number",
		"error.password_require_special":     "Password must contain a special character",
		"error.password_contains_username":   "Password must not contain the username",
		"error.save_failed":                  "Save failed",
		"error.pricing_rule_id_invalid":      "Invalid rule id",
		"error.pricing_rule_not_found":       "Pricing rule not found",
		"error.pricing_rule_invalid":         "Invalid pricing rule",
		"error.pricing_rule_fetch_failed":    "Failed to load pricing rules",
		"error.pricing_rule_create_failed":   "Failed to create pricing rule",
		"error.pricing_rule_update_failed":   "Failed to update pricing rule",
		"error.pricing_rule_delete_failed":   "Failed to delete pricing rule",
		"error.pricing_rule_validate_failed": "Failed to validate pricing rule",
		"error.pricing_rule_audit_failed":    "Failed to load rule change history",
		"error.pricing_rules_unavailable":    "Pricing rules unavailable",
		"error.render_html_invalid":          "Page HTML could not be parsed",
		"error.render_failed":                "Price rendering failed",
		"error.quote_context_missing":        "Product information is missing",
		"error.quote_price_unavailable":      "Original price unavailable",
		"error.quote_failed":                 "Quote failed",
		"error.session_upgrade_failed":       "Failed to open session",
		"error.session_closed":               "Session closed",
		"error.authz_fetch_failed":           "Failed to load permissions",
		"error.authz_role_unknown":           "Unknown role",
		"error.auth_header_missing":          "Authorization header is missing",
		"error.auth_header_invalid":          "Authorization header is malformed",
		"error.jwt_secret_missing":           "JWT secret is not configured",
		"error.login_too_many":               "Too many login attempts, please retry in %d seconds",
	},
}
