package storefront

import (
	"fmt"
	"strings"

	"github.com/custom-pricing/internal/pricing"

	"github.com/tidwall/gjson"
)

// CartLine 购物车行
type CartLine struct {
	Key           string  `json:"key"`
	VariantID     string  `json:"variant_id"`
	ProductID     string  `json:"product_id"`
	Handle        string  `json:"handle"`
	Title         string  `json:"title"`
	Quantity      int     `json:"quantity"`
	Price         float64 `json:"price"`
	OriginalPrice float64 `json:"original_price"`
	HasOriginal   bool    `json:"has_original"`
}

// Cart 购物车快照（/cart.js）
type Cart struct {
	Token     string     `json:"token"`
	Currency  string     `json:"currency"`
	ItemCount int        `json:"item_count"`
	Lines     []CartLine `json:"lines"`
}

// ParseCartJSON 解析购物车 JSON，价格为分
func ParseCartJSON(raw []byte) (*Cart, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: cart json", ErrInvalidPayload)
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: cart json is not an object", ErrInvalidPayload)
	}
	cart := &Cart{
		Token:     strings.TrimSpace(root.Get("token").String()),
		Currency:  strings.TrimSpace(root.Get("currency").String()),
		ItemCount: int(root.Get("item_count").Int()),
	}
	root.Get("items").ForEach(func(_, item gjson.Result) bool {
		line := CartLine{
			Key:       strings.TrimSpace(item.Get("key").String()),
			VariantID: idString(item.Get("variant_id")),
			ProductID: idString(item.Get("product_id")),
			Handle:    strings.TrimSpace(item.Get("handle").String()),
			Title:     strings.TrimSpace(item.Get("title").String()),
			Quantity:  int(item.Get("quantity").Int()),
		}
		if price, ok := PriceValue(item.Get("final_price")); ok {
			line.Price = price
		} else if price, ok := PriceValue(item.Get("price")); ok {
			line.Price = price
		}
		if price, ok := PriceValue(item.Get("original_price")); ok {
			line.OriginalPrice = price
			line.HasOriginal = true
		} else if item.Get("price").Exists() {
			line.OriginalPrice = line.Price
			line.HasOriginal = true
		}
		cart.Lines = append(cart.Lines, line)
		return true
	})
	return cart, nil
}

// Baseline 行的单价与折前价
func (l CartLine) Baseline() Baseline {
	return Baseline{Price: l.Price, CompareAt: l.OriginalPrice}
}

// Line 按行 key 查找，key 缺失时按规格 ID 查找
func (c *Cart) Line(key, variantID string) (*CartLine, bool) {
	if c == nil {
		return nil, false
	}
	key = strings.TrimSpace(key)
	if key != "" {
		for i := range c.Lines {
			if c.Lines[i].Key == key {
				return &c.Lines[i], true
			}
		}
	}
	variant := pricing.NormalizeID(variantID)
	if variant == "" {
		return nil, false
	}
	for i := range c.Lines {
		if c.Lines[i].VariantID == variant {
			return &c.Lines[i], true
		}
	}
	return nil, false
}
