package app

import (
	"errors"

	"github.com/custom-pricing/internal/config"
	"github.com/custom-pricing/internal/provider"
	"github.com/custom-pricing/internal/router"
	"github.com/custom-pricing/internal/worker"
)

// BuildRunner 按启动模式组装服务
func BuildRunner(cfg *config.Config, opts Options) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	container := provider.NewContainer(cfg)

	var services []Service
	if opts.runsHTTP() {
		services = append(services, NewHTTPService(cfg.Server, router.SetupRouter(cfg, container)))
	}
	if opts.runsWorker() {
		workerService, err := worker.NewService(&cfg.Queue, worker.NewConsumer(container))
		if err != nil {
			return nil, err
		}
		services = append(services, workerService)
	}
	return NewRunner(services...), nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts, err := normalizeOptions(opts)
	if err != nil {
		return err
	}
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, err := BuildRunner(opts.Config, opts)
	if err != nil {
		return err
	}
	opts.Logger.Infow("app_start",
		"addr", opts.Config.Server.Host+":"+opts.Config.Server.Port,
		"mode", opts.Mode,
		"rule_source", opts.Config.Pricing.RuleSource,
	)
	return RunWithOptions(runner, opts)
}
