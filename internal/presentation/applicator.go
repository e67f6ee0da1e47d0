package presentation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/custom-pricing/internal/pricing"
	"github.com/custom-pricing/internal/storefront"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// ErrRegionEmpty 区域内没有可写的价格元素
var ErrRegionEmpty = errors.New("region has no price elements")

var hiddenClasses = []string{"visually-hidden", "visibility-hidden", "hidden", "hide"}

// Stamp 一次写入区域的价格值
type Stamp struct {
	RuleID     string  `json:"rule_id,omitempty"`
	Original   float64 `json:"original"`
	Price      float64 `json:"price"`
	Compare    float64 `json:"compare,omitempty"`
	MaxPrice   float64 `json:"max_price,omitempty"`
	MaxCompare float64 `json:"max_compare,omitempty"`
	Quantity   int     `json:"quantity,omitempty"`
	Native     bool    `json:"native,omitempty"`
}

// RuleStamp 命中规则时的写入值；改价后与原价相同则不显示划线价
func RuleStamp(rule pricing.Rule, original, custom float64) Stamp {
	stamp := Stamp{RuleID: rule.ID, Original: original, Price: custom}
	if pricing.RoundMinor(custom) != pricing.RoundMinor(original) {
		stamp.Compare = original
	}
	return stamp
}

// NativeStamp 无规则时恢复店铺原生价格
func NativeStamp(base storefront.Baseline) Stamp {
	stamp := Stamp{Original: base.Original(), Price: base.Price, Native: true}
	if pricing.RoundMinor(base.CompareAt) > pricing.RoundMinor(base.Price) {
		stamp.Compare = base.CompareAt
	}
	return stamp
}

// Applicator 价格写入器，每个会话一个
type Applicator struct {
	locator *Locator
	format  string
	log     *zap.SugaredLogger
}

// NewApplicator 创建写入器
func NewApplicator(locator *Locator, moneyFormat string, log *zap.SugaredLogger) *Applicator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if strings.TrimSpace(moneyFormat) == "" {
		moneyFormat = pricing.DefaultMoneyFormat
	}
	return &Applicator{locator: locator, format: moneyFormat, log: log}
}

// MoneyFormat 当前金额格式
func (a *Applicator) MoneyFormat() string {
	return a.format
}

// Apply 对未处理区域写入改价与划线原价，返回实际写入的区域
func (a *Applicator) Apply(regions []Region, rule pricing.Rule, original, custom float64) []Region {
	stamp := RuleStamp(rule, original, custom)
	var written []Region
	for _, region := range regions {
		if a.ApplyStamp(region, stamp) {
			written = append(written, region)
		}
	}
	return written
}

// Restore 无规则：引擎写过的区域恢复原生价格，未写过的只标记已处理
func (a *Applicator) Restore(regions []Region, base storefront.Baseline) []Region {
	stamp := NativeStamp(base)
	var written []Region
	for _, region := range regions {
		if a.ApplyStamp(region, stamp) {
			written = append(written, region)
		}
	}
	return written
}

// ApplyStamp 单个区域写入；已处理区域跳过，单个区域失败只记录日志
func (a *Applicator) ApplyStamp(region Region, stamp Stamp) bool {
	if region.Processed() {
		return false
	}
	if stamp.Native && !region.Stamped() {
		region.MarkProcessed()
		return false
	}
	if err := a.Write(region, stamp); err != nil {
		a.log.Warnw("pricing_region_apply_failed",
			"region_id", region.ID,
			"kind", region.Kind,
			"rule_id", stamp.RuleID,
			"error", err,
		)
		return false
	}
	return true
}

// Write 写入区域并标记；不读取区域已有文本
func (a *Applicator) Write(region Region, stamp Stamp) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("write region %s: %v", region.ID, r)
		}
	}()
	if region.Sel == nil || region.Sel.Length() == 0 {
		return ErrRegionEmpty
	}
	switch region.Kind {
	case KindCart:
		unit := region.Sel.Find(a.locator.sel.CartPrice)
		total := region.Sel.Find(a.locator.sel.CartLineTotal)
		if unit.Length() == 0 && total.Length() == 0 {
			return ErrRegionEmpty
		}
		unit.Each(func(_ int, block *goquery.Selection) {
			a.writeBlock(block, stamp.Price, stamp.Compare, 0, 0)
		})
		if stamp.Quantity > 0 {
			qty := float64(stamp.Quantity)
			total.Each(func(_ int, block *goquery.Selection) {
				a.writeBlock(block, stamp.Price*qty, stamp.Compare*qty, 0, 0)
			})
		}
	default:
		a.writeBlock(region.Sel, stamp.Price, stamp.Compare, stamp.MaxPrice, stamp.MaxCompare)
	}
	a.mark(region, stamp)
	return nil
}

func (a *Applicator) writeBlock(block *goquery.Selection, price, compare, maxPrice, maxCompare float64) {
	compareSel := a.locator.compareSelector()
	currents := block.Find(a.locator.currentSelector()).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Closest(compareSel).Length() == 0
	})
	compares := block.Find(compareSel)
	if currents.Length() == 0 {
		// 没有独立的现价元素时重建区域内容
		block.SetHtml(`<span ` + AttrCurrent + `="1"></span>`)
		currents = block.Find(`[` + AttrCurrent + `]`)
		compares = block.Find(compareSel)
	}
	currents.SetText(a.money(price, maxPrice))

	if compare <= 0 {
		hideCompares(block, compares)
		return
	}
	if compares.Length() == 0 {
		block.AppendHtml(`<s ` + AttrCreated + `="1"></s>`)
		compares = block.Find(`[` + AttrCreated + `]`)
	}
	compares.SetText(a.money(compare, maxCompare))
	compares.SetAttr(AttrWritten, "1")
	revealCompares(block, compares)
}

func (a *Applicator) money(amount, maxAmount float64) string {
	if maxAmount > 0 && pricing.RoundMinor(maxAmount) != pricing.RoundMinor(amount) {
		return pricing.FormatMoney(amount, a.format) + " – " + pricing.FormatMoney(maxAmount, a.format)
	}
	return pricing.FormatMoney(amount, a.format)
}

func (a *Applicator) mark(region Region, stamp Stamp) {
	region.MarkProcessed()
	if stamp.Native {
		region.ClearStamp()
		return
	}
	region.Sel.SetAttr(AttrStamped, "1")
	region.Sel.SetAttr(AttrOriginal, minorString(stamp.Original))
	region.Sel.SetAttr(AttrPrice, minorString(stamp.Price))
	if stamp.RuleID != "" {
		region.Sel.SetAttr(AttrRule, stamp.RuleID)
	}
	if stamp.MaxPrice > 0 && pricing.RoundMinor(stamp.MaxPrice) == pricing.RoundMinor(stamp.Price) {
		region.Sel.SetAttr(AttrCollapsed, "1")
	} else {
		region.Sel.RemoveAttr(AttrCollapsed)
	}
}

// revealCompares 划线价及其祖先（区域内）强制可见
func revealCompares(block, compares *goquery.Selection) {
	compares.Each(func(_ int, compare *goquery.Selection) {
		targets := compare.AddSelection(compare.ParentsUntilSelection(block))
		targets.Each(func(_ int, s *goquery.Selection) {
			if unhide(s) {
				s.SetAttr(AttrRevealed, "1")
			}
		})
	})
}

// hideCompares 移除引擎创建的划线价，隐藏引擎显示过或写过的划线价
func hideCompares(block, compares *goquery.Selection) {
	compares.Each(func(_ int, compare *goquery.Selection) {
		if _, created := compare.Attr(AttrCreated); created {
			compare.Remove()
			return
		}
		if _, written := compare.Attr(AttrWritten); written {
			compare.SetAttr("hidden", "hidden")
			compare.RemoveAttr(AttrWritten)
		}
	})
	block.Find(`[` + AttrRevealed + `]`).Each(func(_ int, s *goquery.Selection) {
		s.SetAttr("hidden", "hidden")
		s.RemoveAttr(AttrRevealed)
	})
}

func unhide(s *goquery.Selection) bool {
	changed := false
	if _, ok := s.Attr("hidden"); ok {
		s.RemoveAttr("hidden")
		changed = true
	}
	if style, ok := s.Attr("style"); ok {
		if cleaned, removed := stripDisplayNone(style); removed {
			if cleaned == "" {
				s.RemoveAttr("style")
			} else {
				s.SetAttr("style", cleaned)
			}
			changed = true
		}
	}
	for _, class := range hiddenClasses {
		if s.HasClass(class) {
			s.RemoveClass(class)
			changed = true
		}
	}
	return changed
}

func stripDisplayNone(style string) (string, bool) {
	var kept []string
	removed := false
	for _, decl := range strings.Split(style, ";") {
		trimmed := strings.TrimSpace(decl)
		if trimmed == "" {
			continue
		}
		compact := strings.ReplaceAll(strings.ToLower(trimmed), " ", "")
		if strings.HasPrefix(compact, "display:none") {
			removed = true
			continue
		}
		kept = append(kept, trimmed)
	}
	return strings.Join(kept, "; "), removed
}

func minorString(amount float64) string {
	return strconv.FormatFloat(pricing.RoundMinor(amount), 'f', 2, 64)
}
