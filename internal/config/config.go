package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/custom-pricing/internal/logger"
	"github.com/custom-pricing/internal/models"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Queue      QueueConfig      `mapstructure:"queue"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Security   SecurityConfig   `mapstructure:"security"`
	Storefront StorefrontConfig `mapstructure:"storefront"`
	Pricing    PricingConfig    `mapstructure:"pricing"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
	// 不设置写超时：websocket 会话为长连接
	ReadHeaderTimeoutSeconds int `mapstructure:"read_header_timeout_seconds"`
	IdleTimeoutSeconds       int `mapstructure:"idle_timeout_seconds"`
	ShutdownTimeoutSeconds   int `mapstructure:"shutdown_timeout_seconds"`
	// MetricsPath 为空时不暴露 Prometheus 指标
	MetricsPath string `mapstructure:"metrics_path"`
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
		Level:      c.Level,
		Console:    c.Console,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver      string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN         string             `mapstructure:"dsn"`    // 数据库连接串
	Pool        DatabasePoolConfig `mapstructure:"pool"`
	SlowQueryMS int                `mapstructure:"slow_query_ms"`
	LogSQL      bool               `mapstructure:"log_sql"`
}

// ToDBOptions 转换为连接参数
func (c DatabaseConfig) ToDBOptions() models.DBOptions {
	return models.DBOptions{
		Driver:          c.Driver,
		DSN:             c.DSN,
		MaxOpenConns:    c.Pool.MaxOpenConns,
		MaxIdleConns:    c.Pool.MaxIdleConns,
		ConnMaxLifetime: time.Duration(c.Pool.ConnMaxLifetimeSeconds) * time.Second,
		ConnMaxIdleTime: time.Duration(c.Pool.ConnMaxIdleTimeSeconds) * time.Second,
		SlowThreshold:   time.Duration(c.SlowQueryMS) * time.Millisecond,
		LogSQL:          c.LogSQL,
	}
}

// JWTConfig 后台 JWT 配置
type JWTConfig struct {
	SecretKey   string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	LoginRateLimit  LoginRateLimitConfig  `mapstructure:"login_rate_limit"`
	PublicRateLimit PublicRateLimitConfig `mapstructure:"public_rate_limit"`
	PasswordPolicy  PasswordPolicyConfig  `mapstructure:"password_policy"`
}

// LoginRateLimitConfig 登录限流配置
type LoginRateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxAttempts   int `mapstructure:"max_attempts"`
	BlockSeconds  int `mapstructure:"block_seconds"`
}

// PublicRateLimitConfig 店铺侧渲染/报价接口限流（按 IP）
type PublicRateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
}

// PasswordPolicyConfig 密码策略配置
type PasswordPolicyConfig struct {
	MinLength      int  `mapstructure:"min_length"`
	RequireUpper   bool `mapstructure:"require_upper"`
	RequireLower   bool `mapstructure:"require_lower"`
	RequireNumber  bool `mapstructure:"require_number"`
	RequireSpecial bool `mapstructure:"require_special"`
}

// StorefrontConfig 店铺接口与主题配置
type StorefrontConfig struct {
	BaseURL             string          `mapstructure:"base_url"`
	ProductPath         string          `mapstructure:"product_path"`
	CartPath            string          `mapstructure:"cart_path"`
	TimeoutMS           int             `mapstructure:"timeout_ms"`
	RetryMax            int             `mapstructure:"retry_max"`
	ProductCacheSeconds int             `mapstructure:"product_cache_seconds"`
	MoneyFormat         string          `mapstructure:"money_format"`
	Selectors           SelectorsConfig `mapstructure:"selectors"`
}

// SelectorsConfig 主题选择器覆盖，留空使用内置默认值
type SelectorsConfig struct {
	ProductPrice  string `mapstructure:"product_price"`
	Card          string `mapstructure:"card"`
	CardPrice     string `mapstructure:"card_price"`
	CartLine      string `mapstructure:"cart_line"`
	CartPrice     string `mapstructure:"cart_price"`
	CartLineTotal string `mapstructure:"cart_line_total"`
	Current       string `mapstructure:"current"`
	Compare       string `mapstructure:"compare"`
	Quantity      string `mapstructure:"quantity"`
}

// PricingConfig 规则来源与重算节奏
type PricingConfig struct {
	RuleSource              string `mapstructure:"rule_source"` // db / file
	RulesFile               string `mapstructure:"rules_file"`
	VariantRetryDelaysMS    []int  `mapstructure:"variant_retry_delays_ms"`
	CartRefreshDelayMS      int    `mapstructure:"cart_refresh_delay_ms"`
	RuleCacheSeconds        int    `mapstructure:"rule_cache_seconds"`
	WarningCheckConcurrency int    `mapstructure:"warning_check_concurrency"`
	WarningSweepMinutes     int    `mapstructure:"warning_sweep_minutes"`
	SessionIdleSeconds      int    `mapstructure:"session_idle_seconds"`
}

// Load 从 config.yml 加载配置
func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")     // 从当前目录查找
	viper.AddConfigPath("./")    // 备用路径
	viper.AddConfigPath("../")   // 如果从 cmd/server 运行
	viper.AddConfigPath("./etc") // etc 文件夹

	// 设置默认值（可选）
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("server.read_header_timeout_seconds", 10)
	viper.SetDefault("server.idle_timeout_seconds", 120)
	viper.SetDefault("server.shutdown_timeout_seconds", 10)
	viper.SetDefault("server.metrics_path", "/metrics")
	viper.SetDefault("log.dir", "")
	viper.SetDefault("log.filename", "pricing.log")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 7)
	viper.SetDefault("log.max_age_days", 30)
	viper.SetDefault("log.compress", true)
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", "./db/pricing.db")
	viper.SetDefault("database.pool.max_open_conns", 1)
	viper.SetDefault("database.pool.max_idle_conns", 1)
	viper.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	viper.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	viper.SetDefault("database.slow_query_ms", 200)
	viper.SetDefault("database.log_sql", false)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expire_hours", 24)
	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "127.0.0.1")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.prefix", "cp")
	viper.SetDefault("queue.enabled", true)
	viper.SetDefault("queue.host", "127.0.0.1")
	viper.SetDefault("queue.port", 6379)
	viper.SetDefault("queue.password", "")
	viper.SetDefault("queue.db", 1)
	viper.SetDefault("queue.concurrency", 10)
	viper.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	viper.SetDefault("cors.allowed_origins", []string{"*"})
	viper.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
		"X-CSRF-Token",
	})
	viper.SetDefault("cors.allow_credentials", true)
	viper.SetDefault("cors.max_age", 600)
	viper.SetDefault("security.login_rate_limit.window_seconds", 300)
	viper.SetDefault("security.login_rate_limit.max_attempts", 5)
	viper.SetDefault("security.login_rate_limit.block_seconds", 900)
	viper.SetDefault("security.password_policy.min_length", 8)
	viper.SetDefault("security.password_policy.require_upper", true)
	viper.SetDefault("security.password_policy.require_lower", true)
	viper.SetDefault("security.password_policy.require_number", true)
	viper.SetDefault("security.password_policy.require_special", false)
	viper.SetDefault("security.public_rate_limit.window_seconds", 60)
	viper.SetDefault("security.public_rate_limit.max_requests", 120)
	viper.SetDefault("storefront.base_url", "")
	viper.SetDefault("storefront.product_path", "/products/%s.js")
	viper.SetDefault("storefront.cart_path", "/cart.js")
	viper.SetDefault("storefront.timeout_ms", 3000)
	viper.SetDefault("storefront.retry_max", 2)
	viper.SetDefault("storefront.product_cache_seconds", 60)
	viper.SetDefault("storefront.money_format", "${{amount}}")
	viper.SetDefault("pricing.rule_source", "db")
	viper.SetDefault("pricing.rules_file", "./rules.yml")
	viper.SetDefault("pricing.variant_retry_delays_ms", []int{0, 100, 350, 800})
	viper.SetDefault("pricing.cart_refresh_delay_ms", 150)
	viper.SetDefault("pricing.rule_cache_seconds", 30)
	viper.SetDefault("pricing.warning_check_concurrency", 4)
	viper.SetDefault("pricing.warning_sweep_minutes", 60)
	viper.SetDefault("pricing.session_idle_seconds", 600)

	// 环境变量支持
	viper.AutomaticEnv()                                   // 自动读取环境变量
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 将 . 替换为 _ (例如 server.port -> SERVER_PORT)

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}

	return &cfg
}
