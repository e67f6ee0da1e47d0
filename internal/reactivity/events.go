package reactivity

import "github.com/custom-pricing/internal/presentation"

// Event 控制器事件
type Event interface {
	eventName() string
}

// PageLoaded 页面首次加载
type PageLoaded struct{}

// VariantChanged 规格切换；VariantID 为空时按选项值匹配
type VariantChanged struct {
	VariantID string         `json:"variant_id,omitempty"`
	Options   map[int]string `json:"options,omitempty"`
}

// QuantityChanged 购物车行数量变化
type QuantityChanged struct {
	LineKey  string `json:"line_key"`
	Quantity int    `json:"quantity"`
}

// CartMutated 外部购物车更新（AJAX 加购等）
type CartMutated struct{}

// RegionMutated 主题重绘了某个价格区域
type RegionMutated struct {
	RegionID string `json:"region_id"`
	HTML     string `json:"html"`
}

// CardsInserted 列表追加了新卡片（无限滚动等）
type CardsInserted struct {
	ContainerSelector string `json:"container_selector,omitempty"`
	HTML              string `json:"html"`
}

// Shutdown 结束事件循环
type Shutdown struct{}

type scope uint8

const (
	scopeProduct scope = 1 << iota
	scopeCards
	scopeCart

	scopeAll = scopeProduct | scopeCards | scopeCart
)

// reevaluate 延迟重算（由调度器投递）
type reevaluate struct {
	scope scope
}

func (PageLoaded) eventName() string      { return "page_loaded" }
func (VariantChanged) eventName() string  { return "variant_changed" }
func (QuantityChanged) eventName() string { return "quantity_changed" }
func (CartMutated) eventName() string     { return "cart_mutated" }
func (RegionMutated) eventName() string   { return "region_mutated" }
func (CardsInserted) eventName() string   { return "cards_inserted" }
func (Shutdown) eventName() string        { return "shutdown" }
func (reevaluate) eventName() string      { return "reevaluate" }

// Patch 单个区域的新 HTML
type Patch struct {
	RegionID string            `json:"region_id"`
	Kind     presentation.Kind `json:"kind"`
	HTML     string            `json:"html"`
	RuleID   string            `json:"rule_id,omitempty"`
}

// PatchSink 接收每次处理产生的补丁
type PatchSink func([]Patch)
