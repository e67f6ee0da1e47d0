package rulefile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/custom-pricing/internal/pricing"
	"github.com/custom-pricing/internal/storefront"
)

const rulesYAML = `
rules:
  - name: VIP collection
    status: active
    customer_target:
      type: tags
      tags: [vip]
    product_target:
      type: collections
      ids: ["gid://shopify/Collection/9"]
    pricing:
      mode: percent_off
      value: 20
  - id: "40"
    name: Everyone
    status: inactive
    customer_target:
      type: all
    product_target:
      type: all
    pricing:
      mode: amount_off
      value: 5
`

func TestParseYAMLKeepsOrder(t *testing.T) {
	rules, err := Parse([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("want 2 rules got %d", len(rules))
	}
	if rules[0].ID != "1" || rules[1].ID != "40" {
		t.Fatalf("unexpected ids: %q %q", rules[0].ID, rules[1].ID)
	}
	if rules[0].Customer.Type != pricing.CustomerTags || rules[0].Pricing.Value != 20 {
		t.Fatalf("unexpected first rule: %+v", rules[0])
	}
	if rules[1].IsActive() {
		t.Fatalf("second rule should be inactive")
	}
}

func TestParseJSONList(t *testing.T) {
	raw := `[{"id":"7","status":"active","customer_target":{"type":"all"},"product_target":{"type":"all"},"pricing":{"mode":"new_price","value":9.5}}]`
	rules, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(rules) != 1 || rules[0].Pricing.Mode != pricing.ModeNewPrice || rules[0].Pricing.Value != 9.5 {
		t.Fatalf("unexpected rules: %+v", rules)
	}
}

func TestParseRejectsInvalidRule(t *testing.T) {
	raw := `[{"id":"1","status":"active","customer_target":{"type":"all"},"product_target":{"type":"all"},"pricing":{"mode":"percent_off","value":150}}]`
	if _, err := Parse([]byte(raw)); !errors.Is(err, pricing.ErrInvalidRule) {
		t.Fatalf("want ErrInvalidRule got %v", err)
	}
}

func TestParseEmpty(t *testing.T) {
	rules, err := Parse([]byte("  \n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if rules == nil || len(rules) != 0 {
		t.Fatalf("want empty list got %v", rules)
	}
}

func TestFileSourceAndMarshal(t *testing.T) {
	rules, err := Parse([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	data, err := Marshal(rules)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "rules.yml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	loaded, err := NewFileSource(path).Rules(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(loaded) != 2 || loaded[0].ID != "1" || loaded[1].ID != "40" {
		t.Fatalf("unexpected loaded rules: %+v", loaded)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatalf("missing file should fail")
	}
}

func TestFromPage(t *testing.T) {
	html := `<html><head><script type="application/json" id="cp-pricing-rules">
{"rules":[{"id":"3","status":"active","customer_target":{"type":"logged_in"},"product_target":{"type":"tags","tags":["sale"]},"pricing":{"mode":"percent_off","value":10}}]}
</script></head><body></body></html>`
	page, err := storefront.ParsePage(strings.NewReader(html), "https://shop.test/")
	if err != nil {
		t.Fatalf("parse page failed: %v", err)
	}
	rules, err := FromPage(page)
	if err != nil {
		t.Fatalf("from page failed: %v", err)
	}
	if len(rules) != 1 || rules[0].ID != "3" || rules[0].Customer.Type != pricing.CustomerLoggedIn {
		t.Fatalf("unexpected rules: %+v", rules)
	}

	empty, _ := storefront.ParsePage(strings.NewReader("<html></html>"), "https://shop.test/")
	if _, err := FromPage(empty); !errors.Is(err, ErrNoRules) {
		t.Fatalf("want ErrNoRules got %v", err)
	}
}
