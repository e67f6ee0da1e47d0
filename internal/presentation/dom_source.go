package presentation

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/custom-pricing/internal/pricing"
	"github.com/custom-pricing/internal/storefront"

	"github.com/PuerkitoBio/goquery"
)

var rangeSeparator = regexp.MustCompile(`\d\s*(?:–|—|-|~|to)\s*\D?\s*\d`)

// DOMTextPriceSource 渲染文本兜底来源
// 只读取从未被引擎写入过的区域，避免把改价结果当作原价。
type DOMTextPriceSource struct {
	locator *Locator
}

// NewDOMTextPriceSource 创建文本兜底来源
func NewDOMTextPriceSource(locator *Locator) *DOMTextPriceSource {
	return &DOMTextPriceSource{locator: locator}
}

// Name 来源名
func (s *DOMTextPriceSource) Name() string { return "dom_text" }

// Baseline 取首个商品价格区域的文本
func (s *DOMTextPriceSource) Baseline(_ context.Context, page *storefront.Page, _ pricing.ProductContext) (storefront.Baseline, error) {
	regions := s.locator.Product(page)
	if len(regions) == 0 {
		return storefront.Baseline{}, storefront.ErrPriceUnavailable
	}
	return s.RegionBaseline(regions[0])
}

// RegionBaseline 解析区域文本；已写入过或文本过期的区域直接拒绝
func (s *DOMTextPriceSource) RegionBaseline(region Region) (storefront.Baseline, error) {
	if region.Stamped() || region.Stale() {
		return storefront.Baseline{}, storefront.ErrPriceUnavailable
	}
	block := region.Sel
	if region.Kind == KindCart {
		block = region.Sel.Find(s.locator.sel.CartPrice).First()
	}
	compareSel := s.locator.compareSelector()
	var compareValues []float64
	block.Find(compareSel).Each(func(_ int, c *goquery.Selection) {
		compareValues = append(compareValues, ParseMoneyText(c.Text())...)
	})
	var currentValues []float64
	block.Find(s.locator.currentSelector()).Each(func(_ int, c *goquery.Selection) {
		if c.Closest(compareSel).Length() > 0 {
			return
		}
		currentValues = append(currentValues, ParseMoneyText(c.Text())...)
	})

	base := storefront.Baseline{}
	switch {
	case len(currentValues) > 0:
		base.Price = currentValues[0]
		base.CompareAt = maxOf(compareValues)
	default:
		all := ParseMoneyText(block.Text())
		if len(all) == 0 {
			return storefront.Baseline{}, storefront.ErrPriceUnavailable
		}
		base.Price = minOf(all)
		if top := maxOf(all); top > base.Price {
			base.CompareAt = top
		}
	}
	if base.Price <= 0 && base.CompareAt <= 0 {
		return storefront.Baseline{}, storefront.ErrPriceUnavailable
	}
	return base, nil
}

// RenderedRange 区域是否以价格区间展示：data-price-max，或单个现价元素内出现 "a – b"
func (s *DOMTextPriceSource) RenderedRange(region Region) bool {
	if _, ok := region.Sel.Attr("data-price-max"); ok {
		return true
	}
	compareSel := s.locator.compareSelector()
	currents := region.Sel.Find(s.locator.currentSelector())
	if currents.Length() == 0 {
		currents = region.Sel
	}
	ranged := false
	currents.EachWithBreak(func(_ int, c *goquery.Selection) bool {
		if c.Closest(compareSel).Length() > 0 {
			return true
		}
		text := c.Text()
		ranged = len(ParseMoneyText(text)) >= 2 && rangeSeparator.MatchString(text)
		return !ranged
	})
	return ranged
}

// MoneyFormat 页面声明的金额格式，缺失时使用 fallback
func MoneyFormat(page *storefront.Page, fallback string) string {
	if raw := strings.TrimSpace(page.Find(`script[data-money-format]`).First().Text()); raw != "" {
		var format string
		if err := json.Unmarshal([]byte(raw), &format); err == nil && strings.TrimSpace(format) != "" {
			return format
		}
		return raw
	}
	if value, ok := page.Find(`[data-money-format]`).First().Attr("data-money-format"); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func maxOf(values []float64) float64 {
	var top float64
	for _, v := range values {
		if v > top {
			top = v
		}
	}
	return top
}

func minOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	low := values[0]
	for _, v := range values[1:] {
		if v < low {
			low = v
		}
	}
	return low
}
