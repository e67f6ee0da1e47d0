package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/custom-pricing/internal/config"
	"github.com/custom-pricing/internal/presentation"
	"github.com/custom-pricing/internal/pricing"
	"github.com/custom-pricing/internal/reactivity"
	"github.com/custom-pricing/internal/storefront"
)

const storefrontProductPage = `<html><head>
<script type="application/json" id="cp-pricing-rules">
{"rules":[
  {"id":"5","status":"inactive","customer_target":{"type":"all"},"product_target":{"type":"all"},"pricing":{"mode":"percent_off","value":50}},
  {"id":"6","status":"active","customer_target":{"type":"all"},"product_target":{"type":"all"},"pricing":{"mode":"percent_off","value":20}}
]}
</script>
</head><body>
<script type="application/json" data-product-json>
{"id": 1001, "handle": "tee", "title": "Tee",
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

func newTestStorefrontService(client *storefront.Client) *StorefrontService {
	cfg := &config.Config{}
	cfg.Pricing.VariantRetryDelaysMS = []int{0}
	return NewStorefrontService(cfg, nil, client)
}

func TestRenderUsesEmbeddedRules(t *testing.T) {
	svc := newTestStorefrontService(nil)
	result, err := svc.Render(context.Background(), RenderInput{HTML: storefrontProductPage, URL: "https://shop.test/products/tee"})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if result.RuleSource != "page" {
		t.Fatalf("want page rule source got %q", result.RuleSource)
	}
	if len(result.Patches) != 1 || result.Patches[0].RuleID != "6" || result.Patches[0].Kind != presentation.KindProduct {
		t.Fatalf("unexpected patches: %+v", result.Patches)
	}
	if !strings.Contains(result.HTML, "$80.00") || !strings.Contains(result.HTML, "$100.00") {
		t.Fatalf("rendered html should show $80.00 over $100.00: %s", result.HTML)
	}
}

func TestRenderRejectsEmptyHTML(t *testing.T) {
	svc := newTestStorefrontService(nil)
	if _, err := svc.Render(context.Background(), RenderInput{HTML: "  "}); !errors.Is(err, ErrRenderInputInvalid) {
		t.Fatalf("want ErrRenderInputInvalid got %v", err)
	}
	if _, err := svc.Render(context.Background(), RenderInput{HTML: storefrontProductPage, CartJSON: []byte("not json")}); !errors.Is(err, ErrRenderInputInvalid) {
		t.Fatalf("bad cart json want ErrRenderInputInvalid got %v", err)
	}
}

func TestQuoteWithExplicitPrice(t *testing.T) {
	env := setupPricingRuleServiceTest(t)
	ctx := context.Background()
	if _, err := env.svc.Create(ctx, allProductsInput("amount_off", 15), testOperator); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	svc := NewStorefrontService(&config.Config{}, env.source, nil)

	price := 40.0
	quote, err := svc.Quote(ctx, QuoteInput{ProductID: "gid://shopify/Product/7", Price: &price, Quantity: 2})
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if !quote.Applied || quote.RuleID != "1" || quote.Price != 25 || quote.CompareAt != 40 || quote.LineTotal != 50 {
		t.Fatalf("unexpected quote: %+v", quote)
	}
	if quote.Formatted.Price != "$25.00" || quote.Formatted.CompareAt != "$40.00" || quote.Formatted.LineTotal != "$50.00" {
		t.Fatalf("unexpected formatted quote: %+v", quote.Formatted)
	}

	if _, err := svc.Quote(ctx, QuoteInput{Price: &price}); !errors.Is(err, ErrQuoteContextMissing) {
		t.Fatalf("want ErrQuoteContextMissing got %v", err)
	}
	if _, err := svc.Quote(ctx, QuoteInput{ProductID: "7"}); !errors.Is(err, ErrQuotePriceUnavailable) {
		t.Fatalf("want ErrQuotePriceUnavailable got %v", err)
	}
}

func TestQuoteFetchesCatalogAndFlagsNewPriceAboveOriginal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products/tee.js" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1001,"handle":"tee","title":"Tee","tags":["summer"],"variants":[{"id":11,"price":10000,"compare_at_price":null}]}`))
	}))
	defer server.Close()

	env := setupPricingRuleServiceTest(t)
	ctx := context.Background()
	input := teeNewPriceInput(120)
	input.Customer.Type = "logged_in"
	if _, err := env.svc.Create(ctx, input, testOperator); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	client := storefront.NewClient(storefront.ClientConfig{BaseURL: server.URL, Timeout: time.Second}, nil)
	svc := NewStorefrontService(&config.Config{}, env.source, client)

	guest, err := svc.Quote(ctx, QuoteInput{Handle: "tee"})
	if err != nil {
		t.Fatalf("guest quote failed: %v", err)
	}
	if guest.Applied || guest.Price != 100 || guest.VariantID != "11" || guest.CompareAt != 0 {
		t.Fatalf("guest should see the native price, got %+v", guest)
	}

	member, err := svc.Quote(ctx, QuoteInput{Handle: "tee", CustomerID: "77"})
	if err != nil {
		t.Fatalf("member quote failed: %v", err)
	}
	if !member.Applied || member.Price != 120 || member.Warning == nil || member.Warning.OriginalPrice != 100 {
		t.Fatalf("member should see new price with warning, got %+v", member)
	}
}

func TestQuoteWithPriceUsesDefaultVariantForTargeting(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1001,"handle":"tee","title":"Tee","variants":[{"id":11,"price":10000,"available":true},{"id":12,"price":5000,"available":true}]}`))
	}))
	defer server.Close()

	env := setupPricingRuleServiceTest(t)
	ctx := context.Background()
	input := PricingRuleInput{
		Name:     "Small tee",
		Customer: pricing.CustomerTarget{Type: pricing.CustomerAll},
		Product: pricing.ProductTarget{
			Type:  pricing.ProductSpecificVariants,
			Items: []pricing.TargetItem{{ProductID: "1001", VariantID: "11", Handle: "tee"}},
		},
		Mode:  "percent_off",
		Value: 10,
	}
	if _, err := env.svc.Create(ctx, input, testOperator); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	client := storefront.NewClient(storefront.ClientConfig{BaseURL: server.URL, Timeout: time.Second}, nil)
	svc := NewStorefrontService(&config.Config{}, env.source, client)

	price := 50.0
	quote, err := svc.Quote(ctx, QuoteInput{Handle: "tee", Price: &price})
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if quote.VariantID != "11" || !quote.Applied || quote.Price != 45 || quote.CompareAt != 50 {
		t.Fatalf("explicit price should still match the default variant, got %+v", quote)
	}
}

func TestSessionAppliesAndReactsToVariantChange(t *testing.T) {
	svc := newTestStorefrontService(nil)
	var mu sync.Mutex
	var patches []reactivity.Patch
	got := make(chan struct{}, 8)
	sink := func(batch []reactivity.Patch) {
		mu.Lock()
		patches = append(patches, batch...)
		mu.Unlock()
		got <- struct{}{}
	}

	session, err := svc.OpenSession(context.Background(), RenderInput{HTML: storefrontProductPage, URL: "https://shop.test/products/tee"}, sink)
	if err != nil {
		t.Fatalf("open session failed: %v", err)
	}
	if session.ID == "" {
		t.Fatalf("session id should be set")
	}
	waitPatch(t, got)

	if err := session.Dispatch(reactivity.VariantChanged{VariantID: "12"}); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	waitPatch(t, got)

	session.Close()
	if err := session.Err(); err != nil {
		t.Fatalf("session ended with error: %v", err)
	}
	html, err := session.HTML()
	if err != nil {
		t.Fatalf("html failed: %v", err)
	}
	if !strings.Contains(html, "$40.00") || !strings.Contains(html, "$50.00") {
		t.Fatalf("variant M should render $40.00 over $50.00: %s", html)
	}
	if err := session.Dispatch(reactivity.PageLoaded{}); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("want ErrSessionClosed got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(patches) < 2 || patches[0].RuleID != "6" {
		t.Fatalf("unexpected patches: %+v", patches)
	}
}

func waitPatch(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for patch")
	}
}
