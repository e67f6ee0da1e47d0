package presentation

import (
	"strconv"
	"strings"

	"github.com/custom-pricing/internal/storefront"

	"github.com/PuerkitoBio/goquery"
)

// Kind 价格区域类型
type Kind string

const (
	KindProduct Kind = "product"
	KindCard    Kind = "card"
	KindCart    Kind = "cart"
)

// 区域上的标记属性
const (
	AttrRegion    = "data-cp-region"
	AttrKind      = "data-cp-kind"
	AttrProcessed = "data-cp-processed"
	AttrStamped   = "data-cp-stamped"
	AttrOriginal  = "data-cp-original"
	AttrPrice     = "data-cp-price"
	AttrRule      = "data-cp-rule"
	AttrRevealed  = "data-cp-revealed"
	AttrWritten   = "data-cp-written"
	AttrCreated   = "data-cp-created"
	AttrCurrent   = "data-cp-current"
	AttrCollapsed = "data-cp-collapsed"
	AttrStale     = "data-cp-stale"
)

// Selectors 主题相关的 CSS 选择器
type Selectors struct {
	ProductPrice  string `mapstructure:"product_price" json:"product_price"`
	Card          string `mapstructure:"card" json:"card"`
	CardPrice     string `mapstructure:"card_price" json:"card_price"`
	CartLine      string `mapstructure:"cart_line" json:"cart_line"`
	CartPrice     string `mapstructure:"cart_price" json:"cart_price"`
	CartLineTotal string `mapstructure:"cart_line_total" json:"cart_line_total"`
	Current       string `mapstructure:"current" json:"current"`
	Compare       string `mapstructure:"compare" json:"compare"`
	Quantity      string `mapstructure:"quantity" json:"quantity"`
}

// DefaultSelectors 兼容 Dawn 系主题与 data-cp-* 显式标注
func DefaultSelectors() Selectors {
	return Selectors{
		ProductPrice:  `[data-cp-product-price], .product__info-container .price, .product-single__price, .product__price`,
		Card:          `[data-cp-card], .card-wrapper, .product-card, .grid-product`,
		CardPrice:     `[data-cp-card-price], .price, .product-card__price`,
		CartLine:      `[data-cp-cart-line], .cart-item, [data-cart-item-key]`,
		CartPrice:     `[data-cp-line-price], .cart-item__price, .cart-item__details .price`,
		CartLineTotal: `[data-cp-line-total], .cart-item__totals .price, .cart-item__total`,
		Current:       `[data-cp-current-price], .price-item--regular, .price-item--sale, .price-item--last, .money`,
		Compare:       `s, del, [data-cp-compare], .price-item--compare, .compare-at-price`,
		Quantity:      `input[name="updates[]"], input[name="quantity"], [data-quantity-input]`,
	}
}

// WithDefaults 空字段使用默认值
func (s Selectors) WithDefaults() Selectors {
	def := DefaultSelectors()
	fill := func(value *string, fallback string) {
		if strings.TrimSpace(*value) == "" {
			*value = fallback
		}
	}
	fill(&s.ProductPrice, def.ProductPrice)
	fill(&s.Card, def.Card)
	fill(&s.CardPrice, def.CardPrice)
	fill(&s.CartLine, def.CartLine)
	fill(&s.CartPrice, def.CartPrice)
	fill(&s.CartLineTotal, def.CartLineTotal)
	fill(&s.Current, def.Current)
	fill(&s.Compare, def.Compare)
	fill(&s.Quantity, def.Quantity)
	return s
}

// Region 已定位的价格区域
type Region struct {
	Kind Kind
	ID   string
	Sel  *goquery.Selection
}

// Processed 当前上下文下是否已处理
func (r Region) Processed() bool {
	value, _ := r.Sel.Attr(AttrProcessed)
	return value == "1"
}

// MarkProcessed 标记已处理
func (r Region) MarkProcessed() {
	r.Sel.SetAttr(AttrProcessed, "1")
}

// ClearProcessed 清除处理标记，仅由响应控制器调用
func (r Region) ClearProcessed() {
	r.Sel.RemoveAttr(AttrProcessed)
}

// Stamped 区域是否含有引擎写入的价格
func (r Region) Stamped() bool {
	_, ok := r.Sel.Attr(AttrStamped)
	return ok
}

// MarkStale 规格已切换但主题尚未重绘，区域文本不能当作原价
func (r Region) MarkStale() {
	r.Sel.SetAttr(AttrStale, "1")
}

// Stale 区域文本是否属于上一个规格
func (r Region) Stale() bool {
	_, ok := r.Sel.Attr(AttrStale)
	return ok
}

// ClearStamp 去掉引擎写入标记，区域内容已由主题重新渲染时使用
func (r Region) ClearStamp() {
	for _, attr := range []string{AttrStamped, AttrOriginal, AttrPrice, AttrRule, AttrCollapsed, AttrStale} {
		r.Sel.RemoveAttr(attr)
	}
}

// Locator 区域定位
type Locator struct {
	sel Selectors
}

// NewLocator 创建定位器
func NewLocator(sel Selectors) *Locator {
	return &Locator{sel: sel.WithDefaults()}
}

// Selectors 当前选择器
func (l *Locator) Selectors() Selectors {
	return l.sel
}

// Product 商品页价格区域（排除卡片与购物车内的价格）
func (l *Locator) Product(page *storefront.Page) []Region {
	var regions []Region
	page.Find(l.sel.ProductPrice).Each(func(_ int, s *goquery.Selection) {
		if l.insideCard(s) || l.insideCartLine(s) || s.ParentsFiltered(l.sel.ProductPrice).Length() > 0 {
			return
		}
		regions = append(regions, ensureRegion(page, s, KindProduct))
	})
	return regions
}

// Cards root 下的卡片价格区域
func (l *Locator) Cards(page *storefront.Page, root *goquery.Selection) []Region {
	var regions []Region
	cards := root.Find(l.sel.Card).AddSelection(root.Filter(l.sel.Card))
	cards.Each(func(_ int, card *goquery.Selection) {
		if card.ParentsFiltered(l.sel.Card).Length() > 0 {
			return
		}
		price := card.Find(l.sel.CardPrice).First()
		if price.Length() == 0 {
			return
		}
		regions = append(regions, ensureRegion(page, price, KindCard))
	})
	return regions
}

// Cart 购物车行区域
func (l *Locator) Cart(page *storefront.Page) []Region {
	var regions []Region
	page.Find(l.sel.CartLine).Each(func(_ int, line *goquery.Selection) {
		if line.ParentsFiltered(l.sel.CartLine).Length() > 0 {
			return
		}
		regions = append(regions, ensureRegion(page, line, KindCart))
	})
	return regions
}

// ByID 按区域标识查找
func (l *Locator) ByID(page *storefront.Page, id string) (Region, bool) {
	s := page.Find(`[` + AttrRegion + `="` + escapeAttr(id) + `"]`).First()
	if s.Length() == 0 {
		return Region{}, false
	}
	kind, _ := s.Attr(AttrKind)
	return Region{Kind: Kind(kind), ID: id, Sel: s}, true
}

// CardScope 卡片区域所属的卡片元素
func (l *Locator) CardScope(region Region) *goquery.Selection {
	return region.Sel.Closest(l.sel.Card)
}

// LineKey 购物车行 key
func (l *Locator) LineKey(region Region) string {
	for _, attr := range []string{"data-cart-item-key", "data-line-key", "data-key"} {
		if value, ok := region.Sel.Attr(attr); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// LineVariantID 购物车行的规格 ID
func (l *Locator) LineVariantID(region Region) string {
	value, _ := region.Sel.Attr("data-variant-id")
	return strings.TrimSpace(value)
}

// Quantity 购物车行数量，输入框优先
func (l *Locator) Quantity(region Region) (int, bool) {
	if value, ok := region.Sel.Find(l.sel.Quantity).First().Attr("value"); ok {
		if qty, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && qty >= 0 {
			return qty, true
		}
	}
	if value, ok := region.Sel.Attr("data-quantity"); ok {
		if qty, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && qty >= 0 {
			return qty, true
		}
	}
	return 0, false
}

// SetQuantity 写回数量输入框
func (l *Locator) SetQuantity(region Region, qty int) {
	input := region.Sel.Find(l.sel.Quantity).First()
	if input.Length() > 0 {
		input.SetAttr("value", strconv.Itoa(qty))
		return
	}
	region.Sel.SetAttr("data-quantity", strconv.Itoa(qty))
}

// CartLineByKey 按行 key 查找购物车区域
func (l *Locator) CartLineByKey(page *storefront.Page, key string) (Region, bool) {
	for _, region := range l.Cart(page) {
		if l.LineKey(region) == key {
			return region, true
		}
	}
	return Region{}, false
}

func (l *Locator) currentSelector() string {
	return l.sel.Current + ", [" + AttrCurrent + "]"
}

func (l *Locator) compareSelector() string {
	return l.sel.Compare + ", [" + AttrCreated + "]"
}

func (l *Locator) insideCard(s *goquery.Selection) bool {
	return s.Closest(l.sel.Card).Length() > 0
}

func (l *Locator) insideCartLine(s *goquery.Selection) bool {
	return s.Closest(l.sel.CartLine).Length() > 0
}

func ensureRegion(page *storefront.Page, s *goquery.Selection, kind Kind) Region {
	id, ok := s.Attr(AttrRegion)
	if !ok || strings.TrimSpace(id) == "" {
		id = page.NewRegionID(string(kind))
		s.SetAttr(AttrRegion, id)
	}
	s.SetAttr(AttrKind, string(kind))
	return Region{Kind: kind, ID: id, Sel: s}
}

func escapeAttr(value string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(value)
}
