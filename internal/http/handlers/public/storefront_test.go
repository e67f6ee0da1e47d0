package public

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/custom-pricing/internal/config"
	"github.com/custom-pricing/internal/constants"
	"github.com/custom-pricing/internal/models"
	"github.com/custom-pricing/internal/pricing"
	"github.com/custom-pricing/internal/provider"
	"github.com/custom-pricing/internal/repository"
	"github.com/custom-pricing/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

const productPageHTML = `<html><head></head><body>
<script type="application/json" data-product-json>
{"id": 1001, "handle": "tee", "title": "Tee", "tags": ["sale"],
 "variants": [
   {"id": 11, "price": 10000, "options": ["S"], "available": true},
   {"id": 12, "price": 5000, "options": ["M"], "available": true}
 ]}
</script>
<form action="/cart/add" method="post">
  <select name="id">
    <option value="11" selected>S</option>
    <option value="12">M</option>
  </select>
</form>
<div class="product__info-container">
  <div class="price"><span class="price-item price-item--regular">$100.00</span><s class="price-item--compare" hidden></s></div>
</div>
</body></html>`

type apiResponse struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func setupStorefrontHandlerTest(t *testing.T, rules ...pricing.Rule) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.PricingRule{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	repo := repository.NewPricingRuleRepository(db)
	for _, rule := range rules {
		row := &models.PricingRule{}
		row.ApplyRule(rule)
		if err := repo.Create(row); err != nil {
			t.Fatalf("create rule failed: %v", err)
		}
	}

	cfg := &config.Config{}
	cfg.CORS.AllowedOrigins = []string{"*"}
	cfg.Pricing.RuleSource = constants.RuleSourceDB
	cfg.Pricing.VariantRetryDelaysMS = []int{0}
	cfg.Pricing.SessionIdleSeconds = 5
	client := provider.NewStorefrontClient(cfg.Storefront)
	source := service.NewRuleSourceService(cfg.Pricing, repo)
	container := &provider.Container{
		Config:            cfg,
		StorefrontClient:  client,
		PricingRuleRepo:   repo,
		RuleSourceService: source,
		StorefrontService: service.NewStorefrontService(cfg, source, client),
	}

	h := New(container)
	r := gin.New()
	r.GET("/storefront/rules", h.GetStorefrontRules)
	r.POST("/storefront/render", h.RenderStorefront)
	r.POST("/storefront/quote", h.QuoteStorefront)
	r.GET("/storefront/session", h.StorefrontSession)
	return r
}

func saleRule() pricing.Rule {
	return pricing.Rule{
		Name:     "Sale tags",
		Status:   pricing.StatusActive,
		Customer: pricing.CustomerTarget{Type: pricing.CustomerAll},
		Product:  pricing.ProductTarget{Type: pricing.ProductTags, Tags: []string{"sale"}},
		Pricing:  pricing.Pricing{Mode: pricing.ModePercentOff, Value: 20},
	}
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) apiResponse {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("http status want 200 got %d", w.Code)
	}
	var resp apiResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v body=%s", err, w.Body.String())
	}
	return resp
}

func TestGetStorefrontRules(t *testing.T) {
	r := setupStorefrontHandlerTest(t, saleRule())
	resp := doJSON(t, r, http.MethodGet, "/storefront/rules", nil)
	if resp.StatusCode != 0 {
		t.Fatalf("status_code want 0 got %d msg=%s", resp.StatusCode, resp.Msg)
	}
	var data struct {
		Source string         `json:"source"`
		Rules  []pricing.Rule `json:"rules"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("unmarshal data failed: %v", err)
	}
	if data.Source != constants.RuleSourceDB || len(data.Rules) != 1 || data.Rules[0].ID != "1" {
		t.Fatalf("unexpected rules payload: %+v", data)
	}
}

func TestRenderStorefrontAppliesDBRule(t *testing.T) {
	r := setupStorefrontHandlerTest(t, saleRule())
	resp := doJSON(t, r, http.MethodPost, "/storefront/render", gin.H{
		"html": productPageHTML,
		"url":  "https://shop.test/products/tee",
	})
	if resp.StatusCode != 0 {
		t.Fatalf("status_code want 0 got %d msg=%s", resp.StatusCode, resp.Msg)
	}
	var data service.RenderResult
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("unmarshal data failed: %v", err)
	}
	if data.RuleSource != constants.RuleSourceDB {
		t.Fatalf("rule source want db got %q", data.RuleSource)
	}
	if !strings.Contains(data.HTML, "$80.00") || !strings.Contains(data.HTML, "$100.00") {
		t.Fatalf("rendered html should show $80.00 over $100.00: %s", data.HTML)
	}
}

func TestRenderStorefrontRejectsMissingHTML(t *testing.T) {
	r := setupStorefrontHandlerTest(t)
	resp := doJSON(t, r, http.MethodPost, "/storefront/render", gin.H{"url": "https://shop.test/"})
	if resp.StatusCode != 400 {
		t.Fatalf("status_code want 400 got %d", resp.StatusCode)
	}
}

func TestQuoteStorefront(t *testing.T) {
	r := setupStorefrontHandlerTest(t, saleRule())
	resp := doJSON(t, r, http.MethodPost, "/storefront/quote", gin.H{
		"product_id": "gid://shopify/Product/1001",
		"variant_id": "11",
		"tags":       []string{"sale"},
		"price":      50,
		"quantity":   2,
	})
	if resp.StatusCode != 0 {
		t.Fatalf("status_code want 0 got %d msg=%s", resp.StatusCode, resp.Msg)
	}
	var data service.QuoteResult
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("unmarshal data failed: %v", err)
	}
	if !data.Applied || data.RuleID != "1" || data.Price != 40 || data.CompareAt != 50 || data.LineTotal != 80 {
		t.Fatalf("unexpected quote: %+v", data)
	}

	missing := doJSON(t, r, http.MethodPost, "/storefront/quote", gin.H{"price": 10})
	if missing.StatusCode != 400 {
		t.Fatalf("quote without product want 400 got %d", missing.StatusCode)
	}
}

func readReply(t *testing.T, conn *websocket.Conn) sessionReply {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var reply sessionReply
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read session reply failed: %v", err)
	}
	return reply
}

func TestStorefrontSessionWebsocket(t *testing.T) {
	r := setupStorefrontHandlerTest(t, saleRule())
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/storefront/session"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(gin.H{
		"type": constants.SessionMessageInit,
		"html": productPageHTML,
		"url":  "https://shop.test/products/tee",
	}); err != nil {
		t.Fatalf("write init failed: %v", err)
	}

	ready := readReply(t, conn)
	if ready.Type != constants.SessionMessageReady || ready.SessionID == "" || ready.RuleSource != constants.RuleSourceDB {
		t.Fatalf("unexpected ready reply: %+v", ready)
	}
	first := readReply(t, conn)
	if first.Type != constants.SessionMessagePatch || len(first.Patches) != 1 || !strings.Contains(first.Patches[0].HTML, "$80.00") {
		t.Fatalf("unexpected first patch: %+v", first)
	}

	if err := conn.WriteJSON(gin.H{"type": constants.SessionMessageVariantChanged, "variant_id": "12"}); err != nil {
		t.Fatalf("write variant change failed: %v", err)
	}
	second := readReply(t, conn)
	if second.Type != constants.SessionMessagePatch || len(second.Patches) != 1 || !strings.Contains(second.Patches[0].HTML, "$40.00") {
		t.Fatalf("unexpected variant patch: %+v", second)
	}

	if err := conn.WriteJSON(gin.H{"type": "unknown"}); err != nil {
		t.Fatalf("write unknown failed: %v", err)
	}
	if reply := readReply(t, conn); reply.Type != constants.SessionMessageError {
		t.Fatalf("unknown message want error reply got %+v", reply)
	}
}

func TestStorefrontSessionRequiresInit(t *testing.T) {
	r := setupStorefrontHandlerTest(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/storefront/session"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(gin.H{"type": constants.SessionMessageCartMutated}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if reply := readReply(t, conn); reply.Type != constants.SessionMessageError {
		t.Fatalf("want error reply got %+v", reply)
	}
}

func TestSessionEventMapping(t *testing.T) {
	cases := []struct {
		msg sessionMessage
		ok  bool
	}{
		{msg: sessionMessage{Type: constants.SessionMessageVariantChanged, VariantID: "12"}, ok: true},
		{msg: sessionMessage{Type: constants.SessionMessageVariantChanged}, ok: false},
		{msg: sessionMessage{Type: constants.SessionMessageQuantityChanged, LineKey: "11:abc", Quantity: 3}, ok: true},
		{msg: sessionMessage{Type: constants.SessionMessageQuantityChanged, Quantity: 3}, ok: false},
		{msg: sessionMessage{Type: constants.SessionMessageCartMutated}, ok: true},
		{msg: sessionMessage{Type: constants.SessionMessageRegionMutated, RegionID: "cp-1", HTML: "<span>$1</span>"}, ok: true},
		{msg: sessionMessage{Type: constants.SessionMessageCardsInserted}, ok: false},
		{msg: sessionMessage{Type: constants.SessionMessageInit}, ok: false},
	}
	for _, item := range cases {
		if _, ok := sessionEvent(item.msg); ok != item.ok {
			t.Fatalf("sessionEvent(%s) ok want %v got %v", item.msg.Type, item.ok, ok)
		}
	}
}
