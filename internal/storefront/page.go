package storefront

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
)

// Page 店铺页面快照（goquery 文档 + 当前 URL）
// 只能由单个会话的事件循环修改。
type Page struct {
	Doc *goquery.Document
	URL *url.URL
}

// ParsePage 解析页面 HTML
func ParsePage(r io.Reader, rawURL string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse page html failed: %w", err)
	}
	return NewPage(doc, rawURL), nil
}

// NewPage 基于已解析的文档创建页面
func NewPage(doc *goquery.Document, rawURL string) *Page {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed == nil {
		parsed = &url.URL{Path: "/"}
	}
	return &Page{Doc: doc, URL: parsed}
}

// HTML 输出当前文档
func (p *Page) HTML() (string, error) {
	return p.Doc.Html()
}

// Find 在整个文档中查找
func (p *Page) Find(selector string) *goquery.Selection {
	return p.Doc.Find(selector)
}

// NewRegionID 生成区域标识
func (p *Page) NewRegionID(kind string) string {
	return kind + "-" + uuid.NewString()[:8]
}

// QueryVariant URL 中的 ?variant=
func (p *Page) QueryVariant() string {
	if p.URL == nil {
		return ""
	}
	return strings.TrimSpace(p.URL.Query().Get("variant"))
}

// PathHandle 从 /products/<handle> 路径取商品 handle
func (p *Page) PathHandle() string {
	if p.URL == nil {
		return ""
	}
	return HandleFromPath(p.URL.Path)
}

// HandleFromPath 解析 /products/<handle> 或 /collections/x/products/<handle>
func HandleFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == "products" {
			handle := parts[i+1]
			if dot := strings.Index(handle, "."); dot >= 0 {
				handle = handle[:dot]
			}
			return handle
		}
	}
	return ""
}

// SelectVariant 规格切换：同步 URL 参数与加购表单
func (p *Page) SelectVariant(variantID string) {
	variantID = strings.TrimSpace(variantID)
	if p.URL != nil {
		query := p.URL.Query()
		if variantID == "" {
			query.Del("variant")
		} else {
			query.Set("variant", variantID)
		}
		p.URL.RawQuery = query.Encode()
	}
	p.addToCartVariantControls().Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "select":
			s.Find("option").RemoveAttr("selected")
			s.Find("option").FilterFunction(func(_ int, o *goquery.Selection) bool {
				value, _ := o.Attr("value")
				return value == variantID
			}).SetAttr("selected", "selected")
		case "input":
			if inputType, _ := s.Attr("type"); strings.EqualFold(inputType, "radio") {
				value, _ := s.Attr("value")
				if value == variantID {
					s.SetAttr("checked", "checked")
				} else {
					s.RemoveAttr("checked")
				}
				return
			}
			s.SetAttr("value", variantID)
		}
	})
}

// SelectOptions 选项切换（尺码/颜色），key 为选项位置（从 0 开始）
// 直接的规格控件会被清空，规格改由选项匹配得出。
func (p *Page) SelectOptions(values map[int]string) {
	for index, value := range values {
		attr := strconv.Itoa(index)
		p.Doc.Find(`select[data-option-index="` + attr + `"]`).Each(func(_ int, s *goquery.Selection) {
			s.Find("option").RemoveAttr("selected")
			s.Find("option").FilterFunction(func(_ int, o *goquery.Selection) bool {
				return optionValue(o) == value
			}).SetAttr("selected", "selected")
		})
		p.Doc.Find(`input[type="radio"][data-option-index="` + attr + `"]`).Each(func(_ int, s *goquery.Selection) {
			current, _ := s.Attr("value")
			if current == value {
				s.SetAttr("checked", "checked")
			} else {
				s.RemoveAttr("checked")
			}
		})
	}
	if p.URL != nil {
		query := p.URL.Query()
		query.Del("variant")
		p.URL.RawQuery = query.Encode()
	}
	p.addToCartVariantControls().Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "select":
			s.Find("option").RemoveAttr("selected")
		case "input":
			if inputType, _ := s.Attr("type"); strings.EqualFold(inputType, "radio") {
				s.RemoveAttr("checked")
				return
			}
			s.SetAttr("value", "")
		}
	})
}

// SelectedOptions 当前选项选择（位置 -> 值）
func (p *Page) SelectedOptions() map[int]string {
	selected := make(map[int]string)
	p.Doc.Find(`select[data-option-index]`).Each(func(_ int, s *goquery.Selection) {
		index, ok := optionIndex(s)
		if !ok {
			return
		}
		if option := s.Find("option[selected]").First(); option.Length() > 0 {
			selected[index] = optionValue(option)
		}
	})
	p.Doc.Find(`input[type="radio"][data-option-index][checked]`).Each(func(_ int, s *goquery.Selection) {
		index, ok := optionIndex(s)
		if !ok {
			return
		}
		value, _ := s.Attr("value")
		selected[index] = value
	})
	return selected
}

func (p *Page) addToCartVariantControls() *goquery.Selection {
	return p.Doc.Find(`form[action*="/cart/add"] [name="id"]`)
}

func optionIndex(s *goquery.Selection) (int, bool) {
	raw, ok := s.Attr("data-option-index")
	if !ok {
		return 0, false
	}
	index, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || index < 0 {
		return 0, false
	}
	return index, true
}

func optionValue(option *goquery.Selection) string {
	if value, ok := option.Attr("value"); ok {
		return value
	}
	return strings.TrimSpace(option.Text())
}
