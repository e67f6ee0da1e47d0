package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/custom-pricing/internal/app"
	"github.com/custom-pricing/internal/config"
	"github.com/custom-pricing/internal/logger"
	"github.com/custom-pricing/internal/models"
	"github.com/custom-pricing/internal/repository"
	"github.com/custom-pricing/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	ansiReset     = "\033[0m"
	ansiBold      = "\033[1m"
	ansiDim       = "\033[2m"
	ansiGreen     = "\033[32m"
	ansiBlue      = "\033[34m"
	ansiCyan      = "\033[36m"
	ansiBrightMag = "\033[95m"
)

func main() {
	printStartupBanner()

	// 加载配置
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()

	if cfg.Server.Mode == "release" {
		if isWeakSecret(cfg.JWT.SecretKey) {
			stdLog.Fatalf("JWT secret 过弱或仍为默认值，请在生产环境中配置强随机密钥")
		}
	} else if isWeakSecret(cfg.JWT.SecretKey) {
		stdLog.Printf("警告: JWT secret 过弱或仍为默认值，建议在生产环境中更换")
	}

	// 初始化数据库
	if err := models.InitDB(cfg.Database.ToDBOptions()); err != nil {
		stdLog.Fatalf("数据库初始化失败: %v", err)
	}

	// 自动迁移数据库表
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("数据库迁移失败: %v", err)
	}

	// 初始化默认管理员账号
	defaultAdminUser := os.Getenv("CP_DEFAULT_ADMIN_USERNAME")
	defaultAdminPass := os.Getenv("CP_DEFAULT_ADMIN_PASSWORD")
	if cfg.Server.Mode == "release" && defaultAdminPass == "" {
		stdLog.Printf("警告: 未设置 CP_DEFAULT_ADMIN_PASSWORD，已跳过默认管理员初始化")
	} else {
		authService := service.NewAuthService(cfg, repository.NewAdminRepository(models.DB))
		if _, err := authService.EnsureDefaultAdmin(defaultAdminUser, defaultAdminPass); err != nil {
			stdLog.Printf("警告: 初始化默认管理员失败: %v", err)
		}
	}

	// 设置 Gin 模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 解析命令行参数
	var mode string
	flag.StringVar(&mode, "mode", app.ModeAll, "启动模式: all (默认), api, worker")
	flag.Parse()
	if _, err := app.ParseMode(mode); err != nil {
		stdLog.Fatalf("启动参数错误: %v", err)
	}

	if err := app.Run(app.Options{
		Config:  cfg,
		Logger:  logger.S(),
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		Mode:    mode,
	}); err != nil {
		stdLog.Fatalf("服务运行失败: %v", err)
	}
}

func printStartupBanner() {
	fmt.Println(ansiBrightMag + "╔══════════════════════════════════════════════════════════════╗" + ansiReset)
	fmt.Println(ansiBrightMag + "║               Storefront Custom Pricing 启动中               ║" + ansiReset)
	fmt.Println(ansiBrightMag + "╚══════════════════════════════════════════════════════════════╝" + ansiReset)
	fmt.Println(ansiCyan + " ██████╗██████╗ " + ansiReset)
	fmt.Println(ansiCyan + "██╔════╝██╔══██╗" + ansiReset)
	fmt.Println(ansiCyan + "██║     ██████╔╝" + ansiReset)
	fmt.Println(ansiCyan + "██║     ██╔═══╝ " + ansiReset)
	fmt.Println(ansiCyan + "╚██████╗██║     " + ansiReset)
	fmt.Println(ansiCyan + " ╚═════╝╚═╝     " + ansiReset)
	fmt.Println(ansiGreen + ansiBold + "Endpoints" + ansiReset)
	fmt.Println(ansiBlue + "• Storefront: /api/v1/storefront/{rules,render,quote,session}" + ansiReset)
	fmt.Println(ansiBlue + "• Admin:      /api/v1/admin/pricing-rules" + ansiReset)
	fmt.Println(ansiBlue + "• Health:     /health" + ansiReset)
	fmt.Println(ansiDim + "--------------------------------------------------------------" + ansiReset)
}

func isWeakSecret(secret string) bool {
	if len(secret) < 32 {
		return true
	}
	normalized := strings.ToLower(secret)
	if strings.Contains(normalized, "change-me") ||
		strings.Contains(normalized, "change-in-production") ||
		strings.Contains(normalized, "your-secret-key") {
		return true
	}
	return false
}
