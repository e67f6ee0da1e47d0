package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custom-pricing/internal/cache"
	"github.com/custom-pricing/internal/config"
	"github.com/custom-pricing/internal/constants"
	"github.com/custom-pricing/internal/logger"
	"github.com/custom-pricing/internal/pricing"
	"github.com/custom-pricing/internal/repository"
	"github.com/custom-pricing/internal/rulefile"
)

// RuleSourceService 规则来源：数据库或规则文件，Redis 缓存快照
// 快照包含停用规则，保证下发顺序与后台一致；解析时会跳过停用规则。
type RuleSourceService struct {
	source string
	repo   repository.PricingRuleRepository
	file   *rulefile.FileSource
	ttl    time.Duration
}

// NewRuleSourceService 创建规则来源服务
func NewRuleSourceService(cfg config.PricingConfig, repo repository.PricingRuleRepository) *RuleSourceService {
	source := strings.ToLower(strings.TrimSpace(cfg.RuleSource))
	if source != constants.RuleSourceFile {
		source = constants.RuleSourceDB
	}
	s := &RuleSourceService{
		source: source,
		repo:   repo,
		ttl:    time.Duration(cfg.RuleCacheSeconds) * time.Second,
	}
	if source == constants.RuleSourceFile {
		s.file = rulefile.NewFileSource(cfg.RulesFile)
	}
	return s
}

// Source 当前来源名称
func (s *RuleSourceService) Source() string {
	return s.source
}

// Rules 有序规则列表
func (s *RuleSourceService) Rules(ctx context.Context) ([]pricing.Rule, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.Rules, nil
}

// Snapshot 优先读取缓存，未命中时从来源加载并回写
func (s *RuleSourceService) Snapshot(ctx context.Context) (*cache.RuleSnapshot, error) {
	if cached, hit, err := cache.GetRuleSnapshot(ctx); err != nil {
		logger.Warnw("pricing_rule_snapshot_cache_get_failed", "error", err)
	} else if hit && cached.Source == s.source {
		return cached, nil
	}

	rules, err := s.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRuleSourceUnavailable, err)
	}
	snapshot := &cache.RuleSnapshot{
		Source:      s.source,
		Rules:       rules,
		GeneratedAt: time.Now().Unix(),
	}
	if err := cache.SetRuleSnapshot(ctx, snapshot, s.ttl); err != nil {
		logger.Warnw("pricing_rule_snapshot_cache_set_failed", "error", err)
	}
	return snapshot, nil
}

// Invalidate 规则变更后清除快照
func (s *RuleSourceService) Invalidate(ctx context.Context) {
	if err := cache.DelRuleSnapshot(ctx); err != nil {
		logger.Warnw("pricing_rule_snapshot_cache_del_failed", "error", err)
	}
}

func (s *RuleSourceService) load(ctx context.Context) ([]pricing.Rule, error) {
	if s.file != nil {
		return s.file.Rules(ctx)
	}
	if s.repo == nil {
		return []pricing.Rule{}, nil
	}
	rows, err := s.repo.ListOrdered(false)
	if err != nil {
		return nil, err
	}
	rules := make([]pricing.Rule, 0, len(rows))
	for _, row := range rows {
		rules = append(rules, row.ToRule())
	}
	return rules, nil
}
