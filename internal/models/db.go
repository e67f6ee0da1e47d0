package models

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	applogger "github.com/custom-pricing/internal/logger"

	"github.com/glebarez/sqlite" // 纯 Go SQLite 驱动（基于 modernc.org/sqlite）
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// DBOptions 数据库连接参数
type DBOptions struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// SlowThreshold 慢查询阈值，0 使用 200ms
	SlowThreshold time.Duration
	// LogSQL 为 true 时记录每条 SQL，否则只记录慢查询与错误
	LogSQL bool
}

// InitDB 初始化全局连接
func InitDB(opts DBOptions) error {
	db, err := Open(opts)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open 按驱动打开连接并设置连接池
func Open(opts DBOptions) (*gorm.DB, error) {
	dialector, err := dialectorFor(opts.Driver, opts.DSN)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger(opts)})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns >= 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if opts.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}
	return db, nil
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		if path := sqliteFilePath(dsn); path != "" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir failed: %w", err)
			}
		}
		return sqlite.Open(dsn), nil
	case "postgres", "postgresql":
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// sqliteFilePath 返回 DSN 对应的文件路径，内存库返回空串
func sqliteFilePath(dsn string) string {
	path := strings.TrimPrefix(strings.TrimSpace(dsn), "file:")
	query := ""
	if idx := strings.Index(path, "?"); idx >= 0 {
		path, query = path[:idx], path[idx+1:]
	}
	if path == "" || path == ":memory:" || strings.Contains(query, "mode=memory") {
		return ""
	}
	return path
}

func newGormLogger(opts DBOptions) gormlogger.Interface {
	level := gormlogger.Warn
	if opts.LogSQL {
		level = gormlogger.Info
	}
	slow := opts.SlowThreshold
	if slow <= 0 {
		slow = 200 * time.Millisecond
	}
	return gormlogger.New(applogger.StdLogger(), gormlogger.Config{
		SlowThreshold:             slow,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}

// AutoMigrate 迁移全局连接
func AutoMigrate() error {
	return Migrate(DB)
}

// Migrate 迁移所有数据表
func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	return db.AutoMigrate(
		&Admin{},
		&PricingRule{},
		&PricingRuleAuditLog{},
	)
}
