package storefront

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/custom-pricing/internal/pricing"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var productJSONSelectors = []string{
	`script[data-product-json]`,
	`script#ProductJson`,
	`script[id^="ProductJson-"]`,
}

var customerJSONSelectors = []string{
	`script[data-customer-json]`,
	`script#cp-customer`,
}

var pageStatePattern = regexp.MustCompile(`(?:ShopifyAnalytics\.meta|\bvar\s+meta)\s*=\s*\{`)

// CardRef 商品卡片上的商品标识
type CardRef struct {
	ProductID   string
	Handle      string
	VariantID   string
	Tags        []string
	Collections []string
}

// Extractor 从页面中提取商品/规格/顾客上下文
// 探测顺序固定：结构化数据块 > 加购表单 > data 属性 > 全局页面状态。
type Extractor struct {
	cardSelector string
	log          *zap.SugaredLogger
}

// NewExtractor 创建提取器，cardSelector 用于排除卡片内的 data-product-id
func NewExtractor(cardSelector string, log *zap.SugaredLogger) *Extractor {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Extractor{cardSelector: strings.TrimSpace(cardSelector), log: log}
}

// StructuredProduct 页面内嵌的商品 JSON 块
func (e *Extractor) StructuredProduct(page *Page) (*ProductData, bool) {
	for _, selector := range productJSONSelectors {
		var found *ProductData
		page.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			product, err := ParseProductJSON([]byte(strings.TrimSpace(s.Text())))
			if err != nil {
				e.log.Debugw("storefront_product_json_invalid", "selector", selector, "error", err)
				return true
			}
			found = product
			return false
		})
		if found != nil {
			return found, true
		}
	}
	return nil, false
}

// PageState 全局页面状态对象（ShopifyAnalytics.meta / var meta）
func (e *Extractor) PageState(page *Page) (gjson.Result, bool) {
	var state gjson.Result
	found := false
	page.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if _, external := s.Attr("src"); external {
			return true
		}
		text := s.Text()
		for _, loc := range pageStatePattern.FindAllStringIndex(text, -1) {
			var raw json.RawMessage
			decoder := json.NewDecoder(strings.NewReader(text[loc[1]-1:]))
			if err := decoder.Decode(&raw); err != nil {
				continue
			}
			parsed := gjson.ParseBytes(raw)
			if parsed.IsObject() {
				state = parsed
				found = true
				return false
			}
		}
		return true
	})
	return state, found
}

// StateProduct 页面状态中的商品（价格为分）
func (e *Extractor) StateProduct(page *Page) (*ProductData, bool) {
	state, ok := e.PageState(page)
	if !ok {
		return nil, false
	}
	node := state.Get("product")
	if !node.IsObject() {
		return nil, false
	}
	product := productFromResult(node)
	if product.ID == "" {
		return nil, false
	}
	product.SelectedVariantID = idString(state.Get("selectedVariantId"))
	return product, true
}

// ProductContext 当前商品页上下文；商品 ID 取不到时返回 ErrMissingContext
func (e *Extractor) ProductContext(page *Page) (pricing.ProductContext, error) {
	structured, hasStructured := e.StructuredProduct(page)
	stateProduct, hasState := e.StateProduct(page)

	ctx := pricing.ProductContext{}
	switch {
	case hasStructured && structured.ID != "":
		ctx.ProductID = structured.ID
	case e.formProductID(page) != "":
		ctx.ProductID = e.formProductID(page)
	case e.attrProductID(page) != "":
		ctx.ProductID = e.attrProductID(page)
	case hasState:
		ctx.ProductID = stateProduct.ID
	}
	if ctx.ProductID == "" {
		return pricing.ProductContext{}, ErrMissingContext
	}

	if hasStructured {
		ctx.Handle = structured.Handle
		ctx.Tags = structured.Tags
	}
	if ctx.Handle == "" {
		ctx.Handle = e.pageAttr(page, "data-product-handle")
	}
	if ctx.Handle == "" {
		ctx.Handle = page.PathHandle()
	}
	if len(ctx.Tags) == 0 {
		ctx.Tags = SplitList(e.pageAttr(page, "data-product-tags"))
	}

	var data *ProductData
	if hasStructured {
		data = structured
	} else if hasState {
		data = stateProduct
	}
	ctx.VariantID = e.variantID(page, data, stateProduct)
	ctx.Collections = e.collections(page, structured)
	return ctx, nil
}

// variantID 规格解析顺序：URL > 加购表单 > 选项匹配 > 商品数据默认 > 页面状态
func (e *Extractor) variantID(page *Page, data *ProductData, stateProduct *ProductData) string {
	if id := pricing.NormalizeID(page.QueryVariant()); id != "" {
		return id
	}
	if id := formVariantID(page); id != "" {
		return id
	}
	if data != nil {
		if variant, ok := data.MatchOptions(page.SelectedOptions()); ok {
			return variant.ID
		}
		if variant, ok := data.DefaultVariant(); ok {
			return variant.ID
		}
	}
	if stateProduct != nil {
		return stateProduct.SelectedVariantID
	}
	return ""
}

func formVariantID(page *Page) string {
	var id string
	page.addToCartVariantControls().EachWithBreak(func(_ int, s *goquery.Selection) bool {
		switch goquery.NodeName(s) {
		case "select":
			option := s.Find("option[selected]").First()
			if option.Length() > 0 {
				id = pricing.NormalizeID(optionValue(option))
			}
		case "input":
			inputType, _ := s.Attr("type")
			if strings.EqualFold(inputType, "radio") {
				if _, checked := s.Attr("checked"); !checked {
					return true
				}
			}
			value, _ := s.Attr("value")
			id = pricing.NormalizeID(value)
		}
		return id == ""
	})
	return id
}

func (e *Extractor) formProductID(page *Page) string {
	for _, selector := range []string{
		`form[action*="/cart/add"] [name="product-id"]`,
		`form[action*="/cart/add"] [name="product_id"]`,
	} {
		if value, ok := page.Find(selector).First().Attr("value"); ok {
			if id := pricing.NormalizeID(value); id != "" {
				return id
			}
		}
	}
	return ""
}

func (e *Extractor) attrProductID(page *Page) string {
	return pricing.NormalizeID(e.pageAttr(page, "data-product-id"))
}

// pageAttr 取页面上首个非卡片内元素的属性值
func (e *Extractor) pageAttr(page *Page, attr string) string {
	var value string
	page.Find("[" + attr + "]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if e.cardSelector != "" && (s.Is(e.cardSelector) || s.Closest(e.cardSelector).Length() > 0) {
			return true
		}
		raw, _ := s.Attr(attr)
		value = strings.TrimSpace(raw)
		return value == ""
	})
	return value
}

// collections 合并商品数据、页面脚本块与 data 属性中的集合
func (e *Extractor) collections(page *Page, structured *ProductData) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(ids []string) {
		for _, id := range ids {
			if _, ok := seen[id]; ok || id == "" {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	if structured != nil {
		add(structured.Collections)
	}
	page.Find(`script[data-product-collections]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if gjson.Valid(raw) {
			add(idList(gjson.Parse(raw)))
		}
	})
	for _, part := range SplitList(e.pageAttr(page, "data-collection-ids")) {
		add([]string{pricing.NormalizeID(part)})
	}
	return out
}

// PageCollectionID 集合页的集合 ID
func (e *Extractor) PageCollectionID(page *Page) string {
	if state, ok := e.PageState(page); ok {
		if strings.EqualFold(state.Get("page.resourceType").String(), "collection") {
			if id := idString(state.Get("page.resourceId")); id != "" {
				return id
			}
		}
	}
	return pricing.NormalizeID(e.pageAttr(page, "data-collection-id"))
}

// CardContext 卡片商品上下文；卡片既无 ID 也无 handle 时返回 ErrMissingContext
func (e *Extractor) CardContext(page *Page, card *goquery.Selection) (CardRef, error) {
	ref := CardRef{
		ProductID: pricing.NormalizeID(cardAttr(card, "data-product-id")),
		Handle:    strings.TrimSpace(cardAttr(card, "data-product-handle")),
		VariantID: pricing.NormalizeID(cardAttr(card, "data-variant-id")),
		Tags:      SplitList(cardAttr(card, "data-product-tags")),
	}
	if ref.Handle == "" {
		if href, ok := card.Find(`a[href*="/products/"]`).First().Attr("href"); ok {
			ref.Handle = HandleFromPath(stripQuery(href))
		}
	}
	if ref.ProductID == "" && ref.Handle == "" {
		return CardRef{}, ErrMissingContext
	}
	for _, part := range SplitList(cardAttr(card, "data-collection-ids")) {
		if id := pricing.NormalizeID(part); id != "" {
			ref.Collections = append(ref.Collections, id)
		}
	}
	if pageCollection := e.PageCollectionID(page); pageCollection != "" {
		ref.Collections = append(ref.Collections, pageCollection)
	}
	return ref, nil
}

// ShopperContext 顾客上下文；未登录或 ID 无效时为空上下文
func (e *Extractor) ShopperContext(page *Page) pricing.ShopperContext {
	for _, selector := range customerJSONSelectors {
		raw := strings.TrimSpace(page.Find(selector).First().Text())
		if raw == "" || !gjson.Valid(raw) {
			continue
		}
		node := gjson.Parse(raw)
		if customer := node.Get("customer"); customer.IsObject() {
			node = customer
		}
		return pricing.NewShopperContext(node.Get("id").String(), stringList(node.Get("tags")))
	}
	if state, ok := e.PageState(page); ok {
		if id := state.Get("page.customerId"); id.Exists() {
			return pricing.NewShopperContext(id.String(), nil)
		}
	}
	return pricing.ShopperContext{}
}

func cardAttr(card *goquery.Selection, attr string) string {
	if value, ok := card.Attr(attr); ok && strings.TrimSpace(value) != "" {
		return value
	}
	value, _ := card.Find("[" + attr + "]").First().Attr(attr)
	return value
}

func stripQuery(href string) string {
	if idx := strings.IndexAny(href, "?#"); idx >= 0 {
		return href[:idx]
	}
	return href
}
