package service

import (
	"context"
	"strings"

	"github.com/custom-pricing/internal/constants"
	"github.com/custom-pricing/internal/logger"
	"github.com/custom-pricing/internal/pricing"
	"github.com/custom-pricing/internal/storefront"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultWarningConcurrency = 4

// PriceWarningService 规则保存时复核 new_price 是否高于权威原价
// 结账只能降价，高出部分只在店铺展示，这里只给出预警，不阻止保存。
type PriceWarningService struct {
	fetcher     storefront.ProductFetcher
	concurrency int
	log         *zap.SugaredLogger
}

// NewPriceWarningService 创建预警服务；fetcher 为空时不做复核
func NewPriceWarningService(fetcher storefront.ProductFetcher, concurrency int) *PriceWarningService {
	if concurrency <= 0 {
		concurrency = defaultWarningConcurrency
	}
	return &PriceWarningService{
		fetcher:     fetcher,
		concurrency: concurrency,
		log:         logger.S(),
	}
}

// NeedsPriceWarningCheck 只有指定商品/规格的 new_price 规则需要复核
func NeedsPriceWarningCheck(rule pricing.Rule) bool {
	if rule.Pricing.Mode != pricing.ModeNewPrice {
		return false
	}
	switch rule.Product.Type {
	case pricing.ProductSpecificProducts, pricing.ProductSpecificVariants:
		return len(rule.Product.Items) > 0
	default:
		return false
	}
}

// Check 并发读取选中商品的权威原价，返回所有高于原价的条目
// 单个商品读取失败只记录日志，结果按选中顺序排列。
func (s *PriceWarningService) Check(ctx context.Context, rule pricing.Rule) []pricing.PriceWarning {
	if s == nil || s.fetcher == nil || !NeedsPriceWarningCheck(rule) {
		return []pricing.PriceWarning{}
	}
	items := rule.Product.Items
	results := make([][]pricing.PriceWarning, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, item := range items {
		handle := strings.TrimSpace(item.Handle)
		if handle == "" {
			s.log.Debugw("price_warning_item_skip_no_handle", "rule_id", rule.ID, "product_id", item.ProductID)
			continue
		}
		g.Go(func() error {
			data, err := s.fetcher.FetchProduct(gctx, handle)
			if err != nil {
				s.log.Warnw("price_warning_fetch_failed", "rule_id", rule.ID, "handle", handle, "error", err)
				return nil
			}
			results[i] = itemWarnings(rule, item, data)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]pricing.PriceWarning, 0)
	for _, list := range results {
		out = append(out, list...)
	}
	return out
}

func itemWarnings(rule pricing.Rule, item pricing.TargetItem, data *storefront.ProductData) []pricing.PriceWarning {
	if data == nil {
		return nil
	}
	variants := data.Variants
	if variantID := pricing.NormalizeID(item.VariantID); variantID != "" {
		variant, ok := data.Variant(variantID)
		if !ok {
			return nil
		}
		variants = []storefront.VariantData{*variant}
	}
	productID := pricing.NormalizeID(item.ProductID)
	if productID == "" {
		productID = data.ID
	}
	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = data.Title
	}
	var out []pricing.PriceWarning
	for _, variant := range variants {
		original := variant.OriginalPrice()
		if original <= 0 || !pricing.ExceedsOriginal(rule, original) {
			continue
		}
		out = append(out, pricing.PriceWarning{
			RuleID:        rule.ID,
			ProductID:     productID,
			VariantID:     variant.ID,
			Handle:        data.Handle,
			Title:         variantTitle(title, variant.Title),
			OriginalPrice: original,
			NewPrice:      rule.Pricing.Value,
			Message:       constants.PriceWarningMessage,
		})
	}
	return out
}

func variantTitle(product, variant string) string {
	variant = strings.TrimSpace(variant)
	if variant == "" || strings.EqualFold(variant, "Default Title") {
		return product
	}
	if product == "" {
		return variant
	}
	return product + " - " + variant
}
