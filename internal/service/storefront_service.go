package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/custom-pricing/internal/config"
	"github.com/custom-pricing/internal/constants"
	"github.com/custom-pricing/internal/logger"
	"github.com/custom-pricing/internal/presentation"
	"github.com/custom-pricing/internal/pricing"
	"github.com/custom-pricing/internal/reactivity"
	"github.com/custom-pricing/internal/rulefile"
	"github.com/custom-pricing/internal/storefront"

	"go.uber.org/zap"
)

// RenderInput 渲染/会话输入：店铺页面 HTML 与访客信息
type RenderInput struct {
	HTML         string
	URL          string
	CustomerID   string
	CustomerTags []string
	CartCookie   string
	CartJSON     json.RawMessage
}

// RenderResult 渲染结果
type RenderResult struct {
	HTML       string             `json:"html"`
	RuleSource string             `json:"rule_source"`
	Patches    []reactivity.Patch `json:"patches"`
}

// QuoteInput 报价输入：不需要页面，直接给出商品上下文
type QuoteInput struct {
	ProductID      string
	VariantID      string
	Handle         string
	Tags           []string
	Collections    []string
	CustomerID     string
	CustomerTags   []string
	Price          *float64
	CompareAtPrice *float64
	Quantity       int
	MoneyFormat    string
}

// QuoteFormatted 按店铺货币格式输出的金额
type QuoteFormatted struct {
	Price     string `json:"price"`
	CompareAt string `json:"compare_at,omitempty"`
	LineTotal string `json:"line_total"`
}

// QuoteResult 报价结果
type QuoteResult struct {
	ProductID     string                `json:"product_id"`
	VariantID     string                `json:"variant_id,omitempty"`
	RuleID        string                `json:"rule_id,omitempty"`
	Applied       bool                  `json:"applied"`
	OriginalPrice float64               `json:"original_price"`
	Price         float64               `json:"price"`
	CompareAt     float64               `json:"compare_at,omitempty"`
	Quantity      int                   `json:"quantity"`
	LineTotal     float64               `json:"line_total"`
	Formatted     QuoteFormatted        `json:"formatted"`
	Warning       *pricing.PriceWarning `json:"warning,omitempty"`
}

// StorefrontService 店铺侧价格渲染、报价与实时会话
type StorefrontService struct {
	rules       *RuleSourceService
	client      *storefront.Client
	selectors   presentation.Selectors
	moneyFormat string
	reactivity  reactivity.Config
	sessionIdle time.Duration
	log         *zap.SugaredLogger
}

// NewStorefrontService 创建店铺服务
func NewStorefrontService(cfg *config.Config, rules *RuleSourceService, client *storefront.Client) *StorefrontService {
	svc := &StorefrontService{
		rules:       rules,
		client:      client,
		selectors:   SelectorsFromConfig(cfg.Storefront.Selectors),
		moneyFormat: strings.TrimSpace(cfg.Storefront.MoneyFormat),
		reactivity:  ReactivityConfig(cfg.Pricing, cfg.Storefront),
		sessionIdle: time.Duration(cfg.Pricing.SessionIdleSeconds) * time.Second,
		log:         logger.S(),
	}
	if svc.moneyFormat == "" {
		svc.moneyFormat = pricing.DefaultMoneyFormat
	}
	if svc.sessionIdle <= 0 {
		svc.sessionIdle = 10 * time.Minute
	}
	return svc
}

// SelectorsFromConfig 配置中的选择器覆盖默认值
func SelectorsFromConfig(cfg config.SelectorsConfig) presentation.Selectors {
	return presentation.Selectors{
		ProductPrice:  cfg.ProductPrice,
		Card:          cfg.Card,
		CardPrice:     cfg.CardPrice,
		CartLine:      cfg.CartLine,
		CartPrice:     cfg.CartPrice,
		CartLineTotal: cfg.CartLineTotal,
		Current:       cfg.Current,
		Compare:       cfg.Compare,
		Quantity:      cfg.Quantity,
	}.WithDefaults()
}

// ReactivityConfig 延迟表与读取超时
func ReactivityConfig(pricingCfg config.PricingConfig, storefrontCfg config.StorefrontConfig) reactivity.Config {
	cfg := reactivity.DefaultConfig()
	if pricingCfg.VariantRetryDelaysMS != nil {
		delays := make([]time.Duration, 0, len(pricingCfg.VariantRetryDelaysMS))
		for _, ms := range pricingCfg.VariantRetryDelaysMS {
			delays = append(delays, time.Duration(ms)*time.Millisecond)
		}
		cfg.VariantDelays = delays
	}
	if pricingCfg.CartRefreshDelayMS >= 0 {
		cfg.CartDelay = time.Duration(pricingCfg.CartRefreshDelayMS) * time.Millisecond
	}
	if storefrontCfg.TimeoutMS > 0 {
		cfg.FetchTimeout = time.Duration(storefrontCfg.TimeoutMS) * time.Millisecond
	}
	return cfg
}

// SessionIdle 会话空闲超时
func (s *StorefrontService) SessionIdle() time.Duration {
	return s.sessionIdle
}

// Rules 当前规则快照（供店铺脚本读取）
func (s *StorefrontService) Rules(ctx context.Context) ([]pricing.Rule, string, error) {
	if s.rules == nil {
		return []pricing.Rule{}, "", nil
	}
	snapshot, err := s.rules.Snapshot(ctx)
	if err != nil {
		return nil, "", err
	}
	return snapshot.Rules, snapshot.Source, nil
}

// Render 对页面执行一次完整计算（商品区、列表卡片、购物车），返回改写后的 HTML
func (s *StorefrontService) Render(ctx context.Context, input RenderInput) (*RenderResult, error) {
	page, rules, source, err := s.preparePage(ctx, input)
	if err != nil {
		return nil, err
	}
	pipeline, err := s.buildPipeline(page, rules, input)
	if err != nil {
		return nil, err
	}
	sched := reactivity.NewManualScheduler()
	controller := reactivity.NewController(page, pipeline, s.reactivity, sched, nil, s.log)
	patches := controller.Handle(ctx, reactivity.PageLoaded{})
	if patches == nil {
		patches = []reactivity.Patch{}
	}
	html, err := page.HTML()
	if err != nil {
		return nil, err
	}
	return &RenderResult{HTML: html, RuleSource: source, Patches: patches}, nil
}

// Quote 直接计算单个商品的展示价
func (s *StorefrontService) Quote(ctx context.Context, input QuoteInput) (*QuoteResult, error) {
	product := pricing.ProductContext{
		ProductID:   pricing.NormalizeID(input.ProductID),
		VariantID:   pricing.NormalizeID(input.VariantID),
		Handle:      strings.TrimSpace(input.Handle),
		Tags:        normalizeTagList(input.Tags),
		Collections: normalizeIDList(input.Collections),
	}

	var base storefront.Baseline
	haveBase := false
	if input.Price != nil && *input.Price > 0 {
		base.Price = *input.Price
		if input.CompareAtPrice != nil {
			base.CompareAt = *input.CompareAtPrice
		}
		haveBase = true
	}
	if product.Handle != "" && s.client.Enabled() {
		data, err := s.client.FetchProduct(ctx, product.Handle)
		switch {
		case err == nil:
			if product.ProductID == "" {
				product.ProductID = data.ID
			}
			product.Tags = mergeUnique(product.Tags, data.Tags)
			product.Collections = mergeUnique(product.Collections, data.Collections)
			if !haveBase {
				if b, err := storefront.VariantBaseline(data, product); err == nil {
					base = b
					haveBase = true
				}
			}
			// 未指定规格时按默认规格匹配，与调用方是否带价格无关
			if product.VariantID == "" {
				if variant, ok := data.DefaultVariant(); ok {
					product.VariantID = variant.ID
				}
			}
		case !haveBase:
			s.log.Debugw("storefront_quote_fetch_failed", "handle", product.Handle, "error", err)
		}
	}
	if product.ProductID == "" {
		return nil, ErrQuoteContextMissing
	}
	if !haveBase || base.Original() <= 0 {
		return nil, ErrQuotePriceUnavailable
	}

	rules, err := s.currentRules(ctx)
	if err != nil {
		return nil, err
	}
	shopper := pricing.NewShopperContext(input.CustomerID, input.CustomerTags)
	quantity := input.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	format := strings.TrimSpace(input.MoneyFormat)
	if format == "" {
		format = s.moneyFormat
	}

	result := &QuoteResult{
		ProductID:     product.ProductID,
		VariantID:     product.VariantID,
		OriginalPrice: base.Original(),
		Price:         base.Price,
		CompareAt:     base.CompareAt,
		Quantity:      quantity,
	}
	if rule, ok := pricing.Resolve(rules, shopper, product); ok {
		original := base.Original()
		result.RuleID = rule.ID
		result.Applied = true
		result.Price = pricing.ComputePrice(*rule, original)
		result.CompareAt = original
		if pricing.ExceedsOriginal(*rule, original) {
			result.Warning = &pricing.PriceWarning{
				RuleID:        rule.ID,
				ProductID:     product.ProductID,
				VariantID:     product.VariantID,
				Handle:        product.Handle,
				OriginalPrice: original,
				NewPrice:      rule.Pricing.Value,
				Message:       constants.PriceWarningMessage,
			}
		}
	}
	if pricing.RoundMinor(result.CompareAt) == pricing.RoundMinor(result.Price) {
		result.CompareAt = 0
	}
	result.LineTotal = pricing.RoundMinor(result.Price * float64(quantity))
	result.Formatted = QuoteFormatted{
		Price:     pricing.FormatMoney(result.Price, format),
		LineTotal: pricing.FormatMoney(result.LineTotal, format),
	}
	if result.CompareAt > 0 {
		result.Formatted.CompareAt = pricing.FormatMoney(result.CompareAt, format)
	}
	return result, nil
}

// preparePage 解析页面并确定规则：页面内嵌规则优先，否则使用规则来源
func (s *StorefrontService) preparePage(ctx context.Context, input RenderInput) (*storefront.Page, []pricing.Rule, string, error) {
	if strings.TrimSpace(input.HTML) == "" {
		return nil, nil, "", ErrRenderInputInvalid
	}
	page, err := storefront.ParsePage(strings.NewReader(input.HTML), strings.TrimSpace(input.URL))
	if err != nil {
		return nil, nil, "", errors.Join(ErrRenderInputInvalid, err)
	}
	embedded, err := rulefile.FromPage(page)
	switch {
	case err == nil:
		return page, embedded, "page", nil
	case !errors.Is(err, rulefile.ErrNoRules):
		s.log.Warnw("storefront_embedded_rules_invalid", "url", input.URL, "error", err)
	}
	rules, err := s.currentRules(ctx)
	if err != nil {
		return nil, nil, "", err
	}
	source := ""
	if s.rules != nil {
		source = s.rules.Source()
	}
	return page, rules, source, nil
}

func (s *StorefrontService) currentRules(ctx context.Context) ([]pricing.Rule, error) {
	if s.rules == nil {
		return []pricing.Rule{}, nil
	}
	return s.rules.Rules(ctx)
}

// buildPipeline 每个页面独立的一组组件
// 原价来源依次为页面结构化数据、店铺商品接口、渲染文本。
func (s *StorefrontService) buildPipeline(page *storefront.Page, rules []pricing.Rule, input RenderInput) (reactivity.Pipeline, error) {
	locator := presentation.NewLocator(s.selectors)
	extractor := storefront.NewExtractor(s.selectors.Card, s.log)
	domText := presentation.NewDOMTextPriceSource(locator)
	prices := storefront.NewChainPriceSource(s.log, storefront.NewStructuredPriceSource(extractor))

	var catalog storefront.ProductFetcher
	if s.client.Enabled() {
		catalog = s.client
		prices.Append(storefront.NewCatalogPriceSource(s.client))
	}
	prices.Append(domText)

	var cart storefront.CartFetcher
	switch {
	case len(input.CartJSON) > 0:
		snapshot, err := storefront.ParseCartJSON(input.CartJSON)
		if err != nil {
			return reactivity.Pipeline{}, errors.Join(ErrRenderInputInvalid, err)
		}
		cart = storefront.StaticCart{Cart: snapshot}
	case strings.TrimSpace(input.CartCookie) != "" && s.client.Enabled():
		cart = s.client.CartFor(input.CartCookie)
	}

	shopper := extractor.ShopperContext(page)
	if strings.TrimSpace(input.CustomerID) != "" {
		shopper = pricing.NewShopperContext(input.CustomerID, input.CustomerTags)
	}

	return reactivity.Pipeline{
		Rules:      rules,
		Shopper:    shopper,
		Extractor:  extractor,
		Prices:     prices,
		Catalog:    catalog,
		Cart:       cart,
		Locator:    locator,
		Applicator: presentation.NewApplicator(locator, presentation.MoneyFormat(page, s.moneyFormat), s.log),
		DOMText:    domText,
	}, nil
}

func mergeUnique(a, b []string) []string {
	out := a
	for _, value := range b {
		out = appendUnique(out, value)
	}
	return out
}
