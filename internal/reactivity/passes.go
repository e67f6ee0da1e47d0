package reactivity

import (
	"context"
	"errors"

	"github.com/custom-pricing/internal/presentation"
	"github.com/custom-pricing/internal/pricing"
	"github.com/custom-pricing/internal/storefront"
)

// productPass 商品页：提取上下文 -> 原价 -> 匹配规则 -> 写入
func (c *Controller) productPass(ctx context.Context) []presentation.Region {
	regions := unprocessed(c.p.Locator.Product(c.page))
	if len(regions) == 0 {
		return nil
	}
	product, err := c.p.Extractor.ProductContext(c.page)
	if err != nil {
		c.log.Debugw("pricing_product_context_missing", "url", c.page.URL.String())
		return nil
	}
	base, err := c.productBaseline(ctx, product)
	if err != nil {
		c.log.Debugw("pricing_original_unavailable",
			"product_id", product.ProductID,
			"variant_id", product.VariantID,
			"error", err,
		)
		return nil
	}
	return c.applyRule(regions, product, base, nil)
}

// productBaseline 同一规格复用缓存原价；规格切换时缓存已被清空
func (c *Controller) productBaseline(ctx context.Context, product pricing.ProductContext) (storefront.Baseline, error) {
	if c.original != nil && c.originalProduct == product.ProductID && c.originalVariant == product.VariantID {
		return *c.original, nil
	}
	if c.p.Prices == nil {
		return storefront.Baseline{}, storefront.ErrPriceUnavailable
	}
	fctx, cancel := c.fetchContext(ctx)
	defer cancel()
	base, err := c.p.Prices.Baseline(fctx, c.page, product)
	if err != nil {
		return storefront.Baseline{}, err
	}
	if base.Original() <= 0 {
		return storefront.Baseline{}, storefront.ErrPriceUnavailable
	}
	c.original = &base
	c.originalProduct = product.ProductID
	c.originalVariant = product.VariantID
	return base, nil
}

// applyRule 对一组区域写入同一结果；adjust 用于补充区间、数量等
func (c *Controller) applyRule(regions []presentation.Region, product pricing.ProductContext, base storefront.Baseline, adjust func(*presentation.Stamp, *pricing.Rule)) []presentation.Region {
	rule, ok := pricing.Resolve(c.p.Rules, c.p.Shopper, product)
	var stamp presentation.Stamp
	if ok {
		original := base.Original()
		stamp = presentation.RuleStamp(*rule, original, pricing.ComputePrice(*rule, original))
	} else {
		rule = nil
		stamp = presentation.NativeStamp(base)
	}
	if adjust != nil {
		adjust(&stamp, rule)
	}
	var written []presentation.Region
	for _, region := range regions {
		if c.p.Applicator.ApplyStamp(region, stamp) {
			written = append(written, region)
		}
	}
	c.record(written, stamp, product)
	return written
}

// cardPass 列表卡片：按 handle 取商品数据，区间价两端分别计算
func (c *Controller) cardPass(ctx context.Context, regions []presentation.Region) []presentation.Region {
	var touched []presentation.Region
	for _, region := range unprocessed(regions) {
		card := c.p.Locator.CardScope(region)
		if card.Length() == 0 {
			continue
		}
		ref, err := c.p.Extractor.CardContext(c.page, card)
		if err != nil {
			continue
		}
		data := c.catalogProduct(ctx, ref.Handle)
		product := pricing.ProductContext{
			ProductID:   ref.ProductID,
			Handle:      ref.Handle,
			VariantID:   ref.VariantID,
			Tags:        ref.Tags,
			Collections: ref.Collections,
		}
		if data != nil {
			if product.ProductID == "" {
				product.ProductID = data.ID
			}
			product.Tags = mergeList(product.Tags, data.Tags)
			product.Collections = mergeList(product.Collections, data.Collections)
		}
		if pricing.NormalizeID(product.ProductID) == "" {
			continue
		}

		var base storefront.Baseline
		var maxOriginal, maxPrice float64
		switch {
		case data != nil && product.VariantID != "":
			base, err = storefront.VariantBaseline(data, product)
		case data != nil:
			var low, high *storefront.VariantData
			low, high = bounds(data)
			if low == nil {
				err = storefront.ErrPriceUnavailable
				break
			}
			product.VariantID = low.ID
			base = low.Baseline()
			if high.OriginalPrice() > low.OriginalPrice() && c.renderedRange(region) {
				maxOriginal = high.OriginalPrice()
				maxPrice = high.Price
			}
		default:
			base, err = c.regionBaseline(region)
		}
		if err != nil {
			c.log.Debugw("pricing_card_original_unavailable", "region_id", region.ID, "handle", ref.Handle, "error", err)
			continue
		}

		touched = append(touched, c.applyRule([]presentation.Region{region}, product, base, func(stamp *presentation.Stamp, rule *pricing.Rule) {
			if maxOriginal <= 0 {
				return
			}
			if rule != nil {
				stamp.MaxPrice = pricing.ComputePrice(*rule, maxOriginal)
				if stamp.Compare > 0 {
					stamp.MaxCompare = maxOriginal
				}
				return
			}
			stamp.MaxPrice = maxPrice
		})...)
	}
	return touched
}

// cartPass 购物车行：原价优先取购物车接口的折前价
func (c *Controller) cartPass(ctx context.Context) []presentation.Region {
	regions := unprocessed(c.p.Locator.Cart(c.page))
	if len(regions) == 0 {
		return nil
	}
	cart := c.cartSnapshot(ctx)
	var touched []presentation.Region
	for _, region := range regions {
		line, hasLine := cart.Line(c.p.Locator.LineKey(region), c.p.Locator.LineVariantID(region))
		product := pricing.ProductContext{VariantID: pricing.NormalizeID(c.p.Locator.LineVariantID(region))}
		if hasLine {
			product.ProductID = line.ProductID
			product.Handle = line.Handle
			product.VariantID = line.VariantID
		}
		if product.ProductID == "" {
			if id, ok := region.Sel.Attr("data-product-id"); ok {
				product.ProductID = pricing.NormalizeID(id)
			}
		}
		data := c.catalogProduct(ctx, product.Handle)
		if data != nil {
			if product.ProductID == "" {
				product.ProductID = data.ID
			}
			product.Tags = data.Tags
			product.Collections = data.Collections
		}
		if product.ProductID == "" {
			continue
		}

		var base storefront.Baseline
		var err error
		switch {
		case hasLine && line.HasOriginal:
			base = line.Baseline()
		case data != nil:
			base, err = storefront.VariantBaseline(data, product)
		default:
			base, err = c.regionBaseline(region)
		}
		if err != nil || base.Original() <= 0 {
			c.log.Debugw("pricing_cart_original_unavailable", "region_id", region.ID, "variant_id", product.VariantID, "error", err)
			continue
		}

		qty, ok := c.p.Locator.Quantity(region)
		if !ok {
			qty = 1
			if hasLine && line.Quantity > 0 {
				qty = line.Quantity
			}
		}
		touched = append(touched, c.applyRule([]presentation.Region{region}, product, base, func(stamp *presentation.Stamp, _ *pricing.Rule) {
			stamp.Quantity = qty
		})...)
	}
	return touched
}

// cartSnapshot 每次失效后只读取一次；失败时返回 nil
func (c *Controller) cartSnapshot(ctx context.Context) *storefront.Cart {
	if c.cartLoaded {
		return c.cart
	}
	c.cartLoaded = true
	if c.p.Cart == nil {
		return nil
	}
	fctx, cancel := c.fetchContext(ctx)
	defer cancel()
	cart, err := c.p.Cart.FetchCart(fctx)
	if err != nil {
		if !errors.Is(err, storefront.ErrPriceUnavailable) {
			c.log.Warnw("pricing_cart_fetch_failed", "error", err)
		}
		return nil
	}
	c.cart = cart
	return cart
}

// catalogProduct 会话内按 handle 缓存商品数据，失败返回 nil
func (c *Controller) catalogProduct(ctx context.Context, handle string) *storefront.ProductData {
	if handle == "" || c.p.Catalog == nil {
		return nil
	}
	if data, ok := c.products[handle]; ok {
		return data
	}
	fctx, cancel := c.fetchContext(ctx)
	defer cancel()
	data, err := c.p.Catalog.FetchProduct(fctx, handle)
	if err != nil {
		c.log.Debugw("pricing_catalog_fetch_failed", "handle", handle, "error", err)
		data = nil
	}
	c.products[handle] = data
	return data
}

// regionBaseline 无商品数据时：已写入的区域沿用记录的原价，否则读取渲染文本
func (c *Controller) regionBaseline(region presentation.Region) (storefront.Baseline, error) {
	if stamp, ok := c.applied[region.ID]; ok && stamp.Original > 0 {
		return storefront.Baseline{Price: stamp.Original}, nil
	}
	if c.p.DOMText == nil {
		return storefront.Baseline{}, storefront.ErrPriceUnavailable
	}
	return c.p.DOMText.RegionBaseline(region)
}

func (c *Controller) renderedRange(region presentation.Region) bool {
	if stamp, ok := c.applied[region.ID]; ok {
		return stamp.MaxPrice > 0
	}
	if region.Stamped() || c.p.DOMText == nil {
		return false
	}
	return c.p.DOMText.RenderedRange(region)
}

func bounds(data *storefront.ProductData) (*storefront.VariantData, *storefront.VariantData) {
	var low, high *storefront.VariantData
	for i := range data.Variants {
		variant := &data.Variants[i]
		if low == nil || variant.OriginalPrice() < low.OriginalPrice() {
			low = variant
		}
		if high == nil || variant.OriginalPrice() > high.OriginalPrice() {
			high = variant
		}
	}
	return low, high
}

func unprocessed(regions []presentation.Region) []presentation.Region {
	out := regions[:0:0]
	for _, region := range regions {
		if !region.Processed() {
			out = append(out, region)
		}
	}
	return out
}

func mergeList(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, item := range list {
			if _, ok := seen[item]; ok {
				continue
			}
			seen[item] = struct{}{}
			out = append(out, item)
		}
	}
	return out
}
