package storefront

import (
	"context"
	"errors"
	"fmt"

	"github.com/custom-pricing/internal/pricing"

	"go.uber.org/zap"
)

// Baseline 规格未改价时的标价与划线价
type Baseline struct {
	Price     float64 `json:"price"`
	CompareAt float64 `json:"compare_at,omitempty"`
}

// Original 权威原价
func (b Baseline) Original() float64 {
	return pricing.OriginalPrice(b.Price, b.CompareAt)
}

// PriceSource 原价来源
type PriceSource interface {
	Name() string
	Baseline(ctx context.Context, page *Page, product pricing.ProductContext) (Baseline, error)
}

// ProductFetcher 按 handle 读取商品数据
type ProductFetcher interface {
	FetchProduct(ctx context.Context, handle string) (*ProductData, error)
}

// CartFetcher 读取当前会话的购物车
type CartFetcher interface {
	FetchCart(ctx context.Context) (*Cart, error)
}

// StaticCart 固定购物车快照（请求体直接携带时使用）
type StaticCart struct {
	Cart *Cart
}

// FetchCart 返回快照
func (s StaticCart) FetchCart(_ context.Context) (*Cart, error) {
	if s.Cart == nil {
		return nil, ErrPriceUnavailable
	}
	return s.Cart, nil
}

// StructuredPriceSource 页面内嵌商品数据（JSON 块或页面状态）
type StructuredPriceSource struct {
	extractor *Extractor
}

// NewStructuredPriceSource 创建结构化原价来源
func NewStructuredPriceSource(extractor *Extractor) *StructuredPriceSource {
	return &StructuredPriceSource{extractor: extractor}
}

// Name 来源名
func (s *StructuredPriceSource) Name() string { return "structured" }

// Baseline 从页面数据读取规格价格
func (s *StructuredPriceSource) Baseline(_ context.Context, page *Page, product pricing.ProductContext) (Baseline, error) {
	if data, ok := s.extractor.StructuredProduct(page); ok {
		if base, err := VariantBaseline(data, product); err == nil {
			return base, nil
		}
	}
	if data, ok := s.extractor.StateProduct(page); ok {
		return VariantBaseline(data, product)
	}
	return Baseline{}, ErrPriceUnavailable
}

// CatalogPriceSource 店铺商品接口
type CatalogPriceSource struct {
	fetcher ProductFetcher
}

// NewCatalogPriceSource 创建商品接口原价来源
func NewCatalogPriceSource(fetcher ProductFetcher) *CatalogPriceSource {
	return &CatalogPriceSource{fetcher: fetcher}
}

// Name 来源名
func (s *CatalogPriceSource) Name() string { return "catalog" }

// Baseline 按 handle 拉取商品后取规格价格
func (s *CatalogPriceSource) Baseline(ctx context.Context, _ *Page, product pricing.ProductContext) (Baseline, error) {
	if s.fetcher == nil || product.Handle == "" {
		return Baseline{}, ErrPriceUnavailable
	}
	data, err := s.fetcher.FetchProduct(ctx, product.Handle)
	if err != nil {
		return Baseline{}, err
	}
	return VariantBaseline(data, product)
}

// ChainPriceSource 依次尝试多个来源，首个成功即返回
type ChainPriceSource struct {
	sources []PriceSource
	log     *zap.SugaredLogger
}

// NewChainPriceSource 创建链式原价来源
func NewChainPriceSource(log *zap.SugaredLogger, sources ...PriceSource) *ChainPriceSource {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &ChainPriceSource{sources: sources, log: log}
}

// Name 来源名
func (c *ChainPriceSource) Name() string { return "chain" }

// Append 追加兜底来源
func (c *ChainPriceSource) Append(source PriceSource) {
	c.sources = append(c.sources, source)
}

// Baseline 依次尝试；全部失败返回 ErrPriceUnavailable
func (c *ChainPriceSource) Baseline(ctx context.Context, page *Page, product pricing.ProductContext) (Baseline, error) {
	var lastErr error
	for _, source := range c.sources {
		if err := ctx.Err(); err != nil {
			return Baseline{}, err
		}
		base, err := source.Baseline(ctx, page, product)
		if err == nil {
			return base, nil
		}
		lastErr = err
		if !errors.Is(err, ErrPriceUnavailable) {
			c.log.Debugw("pricing_price_source_failed",
				"source", source.Name(),
				"product_id", product.ProductID,
				"variant_id", product.VariantID,
				"error", err,
			)
		}
	}
	if lastErr != nil && !errors.Is(lastErr, ErrPriceUnavailable) {
		return Baseline{}, fmt.Errorf("%w: %v", ErrPriceUnavailable, lastErr)
	}
	return Baseline{}, ErrPriceUnavailable
}

// VariantBaseline 数据与上下文的商品必须一致；未指定规格时取默认规格
func VariantBaseline(data *ProductData, product pricing.ProductContext) (Baseline, error) {
	if data == nil {
		return Baseline{}, ErrPriceUnavailable
	}
	if product.ProductID != "" && data.ID != "" && pricing.NormalizeID(product.ProductID) != data.ID {
		return Baseline{}, ErrPriceUnavailable
	}
	variant, ok := data.Variant(product.VariantID)
	if !ok {
		if product.VariantID != "" {
			return Baseline{}, ErrPriceUnavailable
		}
		variant, ok = data.DefaultVariant()
		if !ok {
			return Baseline{}, ErrPriceUnavailable
		}
	}
	return variant.Baseline(), nil
}
