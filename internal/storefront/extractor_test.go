package storefront

import (
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

const productPageHTML = `<html><body>
<script type="application/json" data-product-json>
{"id": 7001, "handle": "linen-shirt", "title": "Linen Shirt", "tags": ["summer", "linen"],
 "variants": [
   {"id": 41, "title": "S / White", "price": 4000, "compare_at_price": null, "options": ["S", "White"], "available": true},
   {"id": 42, "title": "M / White", "price": 3000, "compare_at_price": 3500, "options": ["M", "White"], "available": true}
 ]}
</script>
<script type="application/json" data-product-collections>[{"id": 301}, 302]</script>
<script type="application/json" data-customer-json>{"id": 555, "tags": "wholesale, vip"}</script>
<form action="/cart/add" method="post">
  <select name="id">
    <option value="41">S</option>
    <option value="42">M</option>
  </select>
  <select data-option-index="0"><option value="S">S</option><option value="M">M</option></select>
</form>
<div class="product-card" data-product-id="9999" data-product-handle="other"></div>
</body></html>`

func mustPage(t *testing.T, html, rawURL string) *Page {
	t.Helper()
	page, err := ParsePage(strings.NewReader(html), rawURL)
	if err != nil {
		t.Fatalf("parse page failed: %v", err)
	}
	return page
}

func TestProductContextFromStructuredBlock(t *testing.T) {
	page := mustPage(t, productPageHTML, "https://shop.test/products/linen-shirt?variant=42")
	extractor := NewExtractor(".product-card", nil)

	ctx, err := extractor.ProductContext(page)
	if err != nil {
		t.Fatalf("product context failed: %v", err)
	}
	if ctx.ProductID != "7001" || ctx.Handle != "linen-shirt" {
		t.Fatalf("unexpected product identity: %+v", ctx)
	}
	if ctx.VariantID != "42" {
		t.Fatalf("url variant should win, got %q", ctx.VariantID)
	}
	if len(ctx.Tags) != 2 || ctx.Tags[0] != "summer" {
		t.Fatalf("unexpected tags: %v", ctx.Tags)
	}
	if len(ctx.Collections) != 2 || ctx.Collections[0] != "301" || ctx.Collections[1] != "302" {
		t.Fatalf("unexpected collections: %v", ctx.Collections)
	}
}

func TestVariantResolutionOrder(t *testing.T) {
	extractor := NewExtractor(".product-card", nil)

	page := mustPage(t, productPageHTML, "https://shop.test/products/linen-shirt")
	ctx, err := extractor.ProductContext(page)
	if err != nil {
		t.Fatalf("product context failed: %v", err)
	}
	if ctx.VariantID != "41" {
		t.Fatalf("without url or selection default variant should be used, got %q", ctx.VariantID)
	}

	page.SelectVariant("42")
	if page.QueryVariant() != "42" {
		t.Fatalf("select variant should update url, got %q", page.QueryVariant())
	}
	ctx, _ = extractor.ProductContext(page)
	if ctx.VariantID != "42" {
		t.Fatalf("selected variant should be used, got %q", ctx.VariantID)
	}

	page.SelectOptions(map[int]string{0: "M"})
	if page.QueryVariant() != "" {
		t.Fatalf("option change should drop url variant")
	}
	ctx, _ = extractor.ProductContext(page)
	if ctx.VariantID != "42" {
		t.Fatalf("option matching should resolve M, got %q", ctx.VariantID)
	}
	page.SelectOptions(map[int]string{0: "S"})
	ctx, _ = extractor.ProductContext(page)
	if ctx.VariantID != "41" {
		t.Fatalf("option matching should resolve S, got %q", ctx.VariantID)
	}
}

func TestProductContextFallsBackToPageState(t *testing.T) {
	html := `<html><body>
<script>
var meta = {"product":{"id":8123,"variants":[{"id":11,"price":2500},{"id":12,"price":2700}]},"selectedVariantId":"12","page":{"pageType":"product","customerId":77}};
for (var attr in meta) { window.ShopifyAnalytics.meta[attr] = meta[attr]; }
</script>
</body></html>`
	page := mustPage(t, html, "https://shop.test/products/mug")
	extractor := NewExtractor("", nil)

	ctx, err := extractor.ProductContext(page)
	if err != nil {
		t.Fatalf("product context failed: %v", err)
	}
	if ctx.ProductID != "8123" || ctx.Handle != "mug" {
		t.Fatalf("unexpected context: %+v", ctx)
	}
	if ctx.VariantID != "12" {
		t.Fatalf("page state selected variant should be used, got %q", ctx.VariantID)
	}

	shopper := extractor.ShopperContext(page)
	if !shopper.LoggedIn || shopper.CustomerID != "77" {
		t.Fatalf("customer id should come from page state: %+v", shopper)
	}
}

func TestProductContextFormAndAttrFallbacks(t *testing.T) {
	extractor := NewExtractor(".card", nil)

	form := mustPage(t, `<form action="/cart/add"><input type="hidden" name="product-id" value="66"><input type="hidden" name="id" value="660"></form>`, "https://shop.test/products/a")
	ctx, err := extractor.ProductContext(form)
	if err != nil || ctx.ProductID != "66" || ctx.VariantID != "660" {
		t.Fatalf("form fallback failed: %+v %v", ctx, err)
	}

	attr := mustPage(t, `<div class="card" data-product-id="1"></div><section data-product-id="2"></section>`, "https://shop.test/products/b")
	ctx, err = extractor.ProductContext(attr)
	if err != nil || ctx.ProductID != "2" {
		t.Fatalf("card ids must be ignored, got %+v %v", ctx, err)
	}

	empty := mustPage(t, `<div class="card" data-product-id="1"></div>`, "https://shop.test/")
	if _, err := extractor.ProductContext(empty); !errors.Is(err, ErrMissingContext) {
		t.Fatalf("want ErrMissingContext got %v", err)
	}
}

func TestShopperContext(t *testing.T) {
	extractor := NewExtractor("", nil)

	page := mustPage(t, productPageHTML, "https://shop.test/products/linen-shirt")
	shopper := extractor.ShopperContext(page)
	if !shopper.LoggedIn || shopper.CustomerID != "555" {
		t.Fatalf("unexpected shopper: %+v", shopper)
	}
	if len(shopper.Tags) != 2 || shopper.Tags[0] != "wholesale" || shopper.Tags[1] != "vip" {
		t.Fatalf("unexpected tags: %v", shopper.Tags)
	}

	anonymous := mustPage(t, `<script data-customer-json>{"id": null, "tags": ["wholesale"]}</script>`, "https://shop.test/")
	if got := extractor.ShopperContext(anonymous); got.LoggedIn || len(got.Tags) != 0 {
		t.Fatalf("logged out shopper must not carry tags: %+v", got)
	}

	none := mustPage(t, `<p>hi</p>`, "https://shop.test/")
	if got := extractor.ShopperContext(none); got.LoggedIn {
		t.Fatalf("missing customer data should be logged out")
	}
}

func TestCardContext(t *testing.T) {
	html := `<html><body>
<script>var meta = {"page":{"resourceType":"collection","resourceId":900}};</script>
<div class="card" data-product-id="5" data-product-tags="a, b"><span class="price">$10.00</span></div>
<div class="card"><a href="/collections/all/products/blue-mug?variant=3">Mug</a></div>
<div class="card"><span>no identity</span></div>
</body></html>`
	page := mustPage(t, html, "https://shop.test/collections/all")
	extractor := NewExtractor(".card", nil)

	cards := page.Find(".card")
	var refs []CardRef
	var missing int
	cards.Each(func(_ int, s *goquery.Selection) {
		ref, err := extractor.CardContext(page, s)
		if err != nil {
			if !errors.Is(err, ErrMissingContext) {
				t.Fatalf("unexpected error: %v", err)
			}
			missing++
			return
		}
		refs = append(refs, ref)
	})
	if missing != 1 || len(refs) != 2 {
		t.Fatalf("want 2 refs and 1 missing, got %d and %d", len(refs), missing)
	}
	if refs[0].ProductID != "5" || len(refs[0].Tags) != 2 {
		t.Fatalf("unexpected first card: %+v", refs[0])
	}
	if refs[1].Handle != "blue-mug" {
		t.Fatalf("handle should come from link, got %+v", refs[1])
	}
	if len(refs[0].Collections) != 1 || refs[0].Collections[0] != "900" {
		t.Fatalf("collection page id should apply to cards: %v", refs[0].Collections)
	}
}

func TestHandleFromPath(t *testing.T) {
	cases := map[string]string{
		"/products/shirt":                   "shirt",
		"/collections/sale/products/shirt":  "shirt",
		"/products/shirt.js":                "shirt",
		"/collections/sale":                 "",
		"/":                                 "",
	}
	for path, want := range cases {
		if got := HandleFromPath(path); got != want {
			t.Fatalf("path %q want %q got %q", path, want, got)
		}
	}
}
