package storefront

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/custom-pricing/internal/pricing"

	"github.com/tidwall/gjson"
)

// VariantData 规格
type VariantData struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Price          float64  `json:"price"`
	CompareAtPrice float64  `json:"compare_at_price,omitempty"`
	Options        []string `json:"options,omitempty"`
	Available      bool     `json:"available"`
}

// OriginalPrice 规格原价（划线价与售价取大）
func (v VariantData) OriginalPrice() float64 {
	return pricing.OriginalPrice(v.Price, v.CompareAtPrice)
}

// Baseline 规格价格
func (v VariantData) Baseline() Baseline {
	return Baseline{Price: v.Price, CompareAt: v.CompareAtPrice}
}

// ProductData 页面内嵌或店铺接口返回的商品数据
type ProductData struct {
	ID                string        `json:"id"`
	Handle            string        `json:"handle"`
	Title             string        `json:"title"`
	Tags              []string      `json:"tags,omitempty"`
	Collections       []string      `json:"collections,omitempty"`
	Variants          []VariantData `json:"variants"`
	SelectedVariantID string        `json:"selected_variant_id,omitempty"`
}

// Variant 按规格 ID 查找
func (p *ProductData) Variant(id string) (*VariantData, bool) {
	target := pricing.NormalizeID(id)
	if target == "" {
		return nil, false
	}
	for i := range p.Variants {
		if pricing.NormalizeID(p.Variants[i].ID) == target {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// DefaultVariant 已选规格 > 首个可售规格 > 首个规格
func (p *ProductData) DefaultVariant() (*VariantData, bool) {
	if variant, ok := p.Variant(p.SelectedVariantID); ok {
		return variant, true
	}
	for i := range p.Variants {
		if p.Variants[i].Available {
			return &p.Variants[i], true
		}
	}
	if len(p.Variants) > 0 {
		return &p.Variants[0], true
	}
	return nil, false
}

// MatchOptions 按选项位置匹配规格，所有已选选项都相等才算命中
func (p *ProductData) MatchOptions(selected map[int]string) (*VariantData, bool) {
	if len(selected) == 0 {
		return nil, false
	}
	for i := range p.Variants {
		variant := &p.Variants[i]
		matched := true
		for index, value := range selected {
			if index >= len(variant.Options) || !strings.EqualFold(strings.TrimSpace(variant.Options[index]), strings.TrimSpace(value)) {
				matched = false
				break
			}
		}
		if matched {
			return variant, true
		}
	}
	return nil, false
}

// PriceBounds 各规格原价的最小值与最大值
func (p *ProductData) PriceBounds() (float64, float64, bool) {
	if len(p.Variants) == 0 {
		return 0, 0, false
	}
	minPrice := p.Variants[0].OriginalPrice()
	maxPrice := minPrice
	for _, variant := range p.Variants[1:] {
		price := variant.OriginalPrice()
		if price < minPrice {
			minPrice = price
		}
		if price > maxPrice {
			maxPrice = price
		}
	}
	return minPrice, maxPrice, true
}

// ParseProductJSON 解析商品 JSON（/products/<handle>.js 或主题内嵌块）
// 数字价格按分计，字符串价格按元计。
func ParseProductJSON(raw []byte) (*ProductData, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: product json", ErrInvalidPayload)
	}
	root := gjson.ParseBytes(raw)
	if wrapped := root.Get("product"); wrapped.IsObject() {
		root = wrapped
	}
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: product json is not an object", ErrInvalidPayload)
	}
	product := productFromResult(root)
	if product.ID == "" && product.Handle == "" {
		return nil, fmt.Errorf("%w: product json without id or handle", ErrInvalidPayload)
	}
	return product, nil
}

func productFromResult(root gjson.Result) *ProductData {
	product := &ProductData{
		ID:          idString(root.Get("id")),
		Handle:      strings.TrimSpace(root.Get("handle").String()),
		Title:       strings.TrimSpace(root.Get("title").String()),
		Tags:        stringList(root.Get("tags")),
		Collections: idList(root.Get("collections")),
	}
	root.Get("variants").ForEach(func(_, item gjson.Result) bool {
		product.Variants = append(product.Variants, variantFromResult(item))
		return true
	})
	selected := root.Get("selected_or_first_available_variant.id")
	if !selected.Exists() {
		selected = root.Get("selected_variant_id")
	}
	product.SelectedVariantID = idString(selected)
	return product
}

func variantFromResult(item gjson.Result) VariantData {
	variant := VariantData{
		ID:        idString(item.Get("id")),
		Title:     strings.TrimSpace(item.Get("title").String()),
		Available: true,
	}
	if variant.Title == "" {
		variant.Title = strings.TrimSpace(item.Get("public_title").String())
	}
	if price, ok := PriceValue(item.Get("price")); ok {
		variant.Price = price
	}
	if compareAt, ok := PriceValue(item.Get("compare_at_price")); ok {
		variant.CompareAtPrice = compareAt
	}
	if available := item.Get("available"); available.Exists() {
		variant.Available = available.Bool()
	}
	if options := item.Get("options"); options.IsArray() {
		for _, option := range options.Array() {
			variant.Options = append(variant.Options, option.String())
		}
	} else {
		for _, key := range []string{"option1", "option2", "option3"} {
			option := item.Get(key)
			if !option.Exists() || option.Type == gjson.Null {
				break
			}
			variant.Options = append(variant.Options, option.String())
		}
	}
	return variant
}

// PriceValue 数字按分、字符串按元
func PriceValue(value gjson.Result) (float64, bool) {
	switch value.Type {
	case gjson.Number:
		return value.Float() / 100, true
	case gjson.String:
		text := strings.TrimSpace(value.Str)
		if text == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func idString(value gjson.Result) string {
	if !value.Exists() || value.Type == gjson.Null {
		return ""
	}
	return pricing.NormalizeID(value.String())
}

// idList 支持 [1,2]、["1","2"]、[{"id":1}] 与 "1,2"
func idList(value gjson.Result) []string {
	var ids []string
	add := func(item gjson.Result) {
		if item.IsObject() {
			item = item.Get("id")
		}
		if id := idString(item); id != "" {
			ids = append(ids, id)
		}
	}
	switch {
	case value.IsArray():
		value.ForEach(func(_, item gjson.Result) bool {
			add(item)
			return true
		})
	case value.Type == gjson.String:
		for _, part := range strings.Split(value.Str, ",") {
			if id := pricing.NormalizeID(part); id != "" {
				ids = append(ids, id)
			}
		}
	case value.Type == gjson.Number:
		add(value)
	}
	return ids
}

// stringList 支持数组与逗号分隔字符串
func stringList(value gjson.Result) []string {
	var items []string
	switch {
	case value.IsArray():
		value.ForEach(func(_, item gjson.Result) bool {
			if text := strings.TrimSpace(item.String()); text != "" {
				items = append(items, text)
			}
			return true
		})
	case value.Type == gjson.String:
		items = SplitList(value.Str)
	}
	return items
}

// SplitList 逗号分隔列表
func SplitList(raw string) []string {
	var items []string
	for _, part := range strings.Split(raw, ",") {
		if text := strings.TrimSpace(part); text != "" {
			items = append(items, text)
		}
	}
	return items
}
