package reactivity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custom-pricing/internal/presentation"
	"github.com/custom-pricing/internal/pricing"
	"github.com/custom-pricing/internal/storefront"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// ErrControllerClosed 控制器已停止
var ErrControllerClosed = errors.New("controller closed")

// State 控制器状态
type State int32

const (
	StateIdle State = iota
	StateEvaluating
	StateApplied
)

func (s State) String() string {
	switch s {
	case StateEvaluating:
		return "evaluating"
	case StateApplied:
		return "applied"
	default:
		return "idle"
	}
}

// Pipeline 一次计算用到的组件
type Pipeline struct {
	Rules      []pricing.Rule
	Shopper    pricing.ShopperContext
	Extractor  *storefront.Extractor
	Prices     storefront.PriceSource
	Catalog    storefront.ProductFetcher
	Cart       storefront.CartFetcher
	Locator    *presentation.Locator
	Applicator *presentation.Applicator
	DOMText    *presentation.DOMTextPriceSource
}

// Config 控制器参数
type Config struct {
	VariantDelays []time.Duration
	CartDelay     time.Duration
	FetchTimeout  time.Duration
	QueueSize     int
}

// DefaultConfig 默认延迟表
func DefaultConfig() Config {
	return Config{
		VariantDelays: []time.Duration{0, 100 * time.Millisecond, 350 * time.Millisecond, 800 * time.Millisecond},
		CartDelay:     150 * time.Millisecond,
		FetchTimeout:  3 * time.Second,
		QueueSize:     64,
	}
}

// Controller 单个页面会话的响应控制器
// 缓存与处理标记只在事件循环内读写。
type Controller struct {
	page  *storefront.Page
	p     Pipeline
	cfg   Config
	sched Scheduler
	sink  PatchSink
	log   *zap.SugaredLogger

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	state     atomic.Int32

	original        *storefront.Baseline
	originalProduct string
	originalVariant string
	cart            *storefront.Cart
	cartLoaded      bool
	products        map[string]*storefront.ProductData
	applied         map[string]appliedStamp
	emitted         map[string]string
}

// appliedStamp 区域最近一次写入的值及其对应的商品规格
type appliedStamp struct {
	presentation.Stamp
	product string
}

func productKey(product pricing.ProductContext) string {
	return pricing.NormalizeID(product.ProductID) + "/" + pricing.NormalizeID(product.VariantID)
}

// NewController 创建控制器
func NewController(page *storefront.Page, pipeline Pipeline, cfg Config, sched Scheduler, sink PatchSink, log *zap.SugaredLogger) *Controller {
	def := DefaultConfig()
	if cfg.VariantDelays == nil {
		cfg.VariantDelays = def.VariantDelays
	}
	if cfg.CartDelay < 0 {
		cfg.CartDelay = 0
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if sched == nil {
		sched = TimerScheduler{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Controller{
		page:     page,
		p:        pipeline,
		cfg:      cfg,
		sched:    sched,
		sink:     sink,
		log:      log,
		events:   make(chan Event, cfg.QueueSize),
		done:     make(chan struct{}),
		products: make(map[string]*storefront.ProductData),
		applied:  make(map[string]appliedStamp),
		emitted:  make(map[string]string),
	}
}

// State 当前状态
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Page 会话页面（只能在事件循环停止后读取）
func (c *Controller) Page() *storefront.Page {
	return c.page
}

// Dispatch 投递事件；控制器已停止时返回 ErrControllerClosed
func (c *Controller) Dispatch(ev Event) error {
	select {
	case <-c.done:
		return ErrControllerClosed
	default:
	}
	select {
	case c.events <- ev:
		return nil
	case <-c.done:
		return ErrControllerClosed
	}
}

// Run 事件循环，直到 Shutdown 或 ctx 结束
func (c *Controller) Run(ctx context.Context) error {
	defer c.close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.events:
			if _, stop := ev.(Shutdown); stop {
				return nil
			}
			c.Handle(ctx, ev)
			if len(c.events) == 0 {
				c.state.Store(int32(StateIdle))
			}
		}
	}
}

func (c *Controller) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.state.Store(int32(StateIdle))
	})
}

// Handle 同步处理单个事件，返回本次产生的补丁
func (c *Controller) Handle(ctx context.Context, ev Event) []Patch {
	var touched []presentation.Region
	switch e := ev.(type) {
	case PageLoaded:
		touched = c.pass(ctx, scopeAll)
	case VariantChanged:
		touched = c.onVariantChanged(ctx, e)
	case QuantityChanged:
		c.onCartChanged(e.LineKey, e.Quantity, true)
	case CartMutated:
		c.onCartChanged("", 0, false)
	case RegionMutated:
		touched = c.onRegionMutated(ctx, e)
	case CardsInserted:
		touched = c.onCardsInserted(ctx, e)
	case reevaluate:
		c.clearProcessed(e.scope)
		touched = c.pass(ctx, e.scope)
	case Shutdown:
		c.close()
	}
	patches := c.patches(touched)
	if len(patches) > 0 && c.sink != nil {
		c.sink(patches)
	}
	return patches
}

// onVariantChanged 先清空处理标记与原价缓存，再计算并按延迟表重算
func (c *Controller) onVariantChanged(ctx context.Context, e VariantChanged) []presentation.Region {
	switch {
	case strings.TrimSpace(e.VariantID) != "":
		c.page.SelectVariant(e.VariantID)
	case len(e.Options) > 0:
		c.page.SelectOptions(e.Options)
	}
	c.clearProcessed(scopeAll)
	c.original = nil
	c.originalProduct = ""
	c.originalVariant = ""
	// 旧规格的写入记录不能再用于重绘，区域文本等主题重绘后才可读
	for _, region := range c.p.Locator.Product(c.page) {
		delete(c.applied, region.ID)
		region.MarkStale()
	}

	touched := c.pass(ctx, scopeAll)
	for _, delay := range c.cfg.VariantDelays {
		if delay <= 0 {
			continue
		}
		c.schedule(delay, reevaluate{scope: scopeProduct})
	}
	return touched
}

// onCartChanged 只影响购物车区域，延迟后重算
func (c *Controller) onCartChanged(lineKey string, qty int, setQuantity bool) {
	if setQuantity && lineKey != "" {
		if region, ok := c.p.Locator.CartLineByKey(c.page, lineKey); ok {
			c.p.Locator.SetQuantity(region, qty)
		}
	}
	c.cart = nil
	c.cartLoaded = false
	c.clearProcessed(scopeCart)
	c.schedule(c.cfg.CartDelay, reevaluate{scope: scopeCart})
}

// onRegionMutated 区域被主题重绘：同一规格只用已知的值重新写入，不从页面重新推导原价
// 规格已变或没有记录时，重绘内容是主题的原生价格，去掉旧标记后重新计算。
func (c *Controller) onRegionMutated(ctx context.Context, e RegionMutated) []presentation.Region {
	region, ok := c.p.Locator.ByID(c.page, e.RegionID)
	if !ok {
		c.log.Debugw("pricing_region_not_found", "region_id", e.RegionID)
		return nil
	}
	region.Sel.SetHtml(e.HTML)
	region.ClearProcessed()
	if record, known := c.applied[region.ID]; known && c.sameProduct(region, record) {
		if err := c.p.Applicator.Write(region, record.Stamp); err != nil {
			c.log.Warnw("pricing_region_apply_failed", "region_id", region.ID, "error", err)
			return nil
		}
		return []presentation.Region{region}
	}
	delete(c.applied, region.ID)
	region.ClearStamp()
	return c.pass(ctx, scopeOf(region.Kind))
}

// sameProduct 商品区域的记录只在页面仍是同一规格时有效
func (c *Controller) sameProduct(region presentation.Region, record appliedStamp) bool {
	if region.Kind != presentation.KindProduct {
		return true
	}
	product, err := c.p.Extractor.ProductContext(c.page)
	if err != nil {
		return true
	}
	return productKey(product) == record.product
}

// onCardsInserted 只处理新插入的卡片
func (c *Controller) onCardsInserted(ctx context.Context, e CardsInserted) []presentation.Region {
	selector := strings.TrimSpace(e.ContainerSelector)
	if selector == "" {
		selector = "body"
	}
	container := c.page.Find(selector).First()
	if container.Length() == 0 {
		c.log.Debugw("pricing_card_container_not_found", "selector", selector)
		return nil
	}
	before := container.Children().Length()
	container.AppendHtml(e.HTML)
	inserted := container.Children().Slice(before, goquery.ToEnd)
	return c.guard("cards", func() []presentation.Region {
		return c.cardPass(ctx, c.p.Locator.Cards(c.page, inserted))
	})
}

func (c *Controller) pass(ctx context.Context, sc scope) []presentation.Region {
	c.state.Store(int32(StateEvaluating))
	defer c.state.Store(int32(StateApplied))

	var touched []presentation.Region
	if sc&scopeProduct != 0 {
		touched = append(touched, c.guard("product", func() []presentation.Region {
			return c.productPass(ctx)
		})...)
	}
	if sc&scopeCards != 0 {
		touched = append(touched, c.guard("cards", func() []presentation.Region {
			return c.cardPass(ctx, c.p.Locator.Cards(c.page, c.page.Doc.Selection))
		})...)
	}
	if sc&scopeCart != 0 {
		touched = append(touched, c.guard("cart", func() []presentation.Region {
			return c.cartPass(ctx)
		})...)
	}
	return touched
}

// guard 单个子流程失败不影响其它区域与后续事件
func (c *Controller) guard(name string, fn func() []presentation.Region) (regions []presentation.Region) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorw("pricing_pass_failed", "pass", name, "panic", r)
			regions = nil
		}
	}()
	return fn()
}

func (c *Controller) schedule(delay time.Duration, ev Event) {
	c.sched.After(delay, func() {
		if err := c.Dispatch(ev); err != nil {
			c.log.Debugw("pricing_reevaluate_dropped", "event", ev.eventName(), "error", err)
		}
	})
}

func (c *Controller) clearProcessed(sc scope) {
	var regions []presentation.Region
	if sc&scopeProduct != 0 {
		regions = append(regions, c.p.Locator.Product(c.page)...)
	}
	if sc&scopeCards != 0 {
		regions = append(regions, c.p.Locator.Cards(c.page, c.page.Doc.Selection)...)
	}
	if sc&scopeCart != 0 {
		regions = append(regions, c.p.Locator.Cart(c.page)...)
	}
	for _, region := range regions {
		region.ClearProcessed()
	}
}

func (c *Controller) record(regions []presentation.Region, stamp presentation.Stamp, product pricing.ProductContext) {
	for _, region := range regions {
		if stamp.Native {
			delete(c.applied, region.ID)
			continue
		}
		c.applied[region.ID] = appliedStamp{Stamp: stamp, product: productKey(product)}
	}
}

// patches 仅输出 HTML 有变化的区域
func (c *Controller) patches(regions []presentation.Region) []Patch {
	var out []Patch
	seen := make(map[string]struct{}, len(regions))
	for _, region := range regions {
		if _, dup := seen[region.ID]; dup {
			continue
		}
		seen[region.ID] = struct{}{}
		html, err := goquery.OuterHtml(region.Sel)
		if err != nil {
			c.log.Warnw("pricing_patch_render_failed", "region_id", region.ID, "error", err)
			continue
		}
		if c.emitted[region.ID] == html {
			continue
		}
		c.emitted[region.ID] = html
		patch := Patch{RegionID: region.ID, Kind: region.Kind, HTML: html}
		if stamp, ok := c.applied[region.ID]; ok {
			patch.RuleID = stamp.RuleID
		}
		out = append(out, patch)
	}
	return out
}

func (c *Controller) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.cfg.FetchTimeout)
}

func scopeOf(kind presentation.Kind) scope {
	switch kind {
	case presentation.KindCard:
		return scopeCards
	case presentation.KindCart:
		return scopeCart
	default:
		return scopeProduct
	}
}
