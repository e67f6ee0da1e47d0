package repository

import "testing"

func TestParseDialect(t *testing.T) {
	cases := map[string]sqlDialect{
		"postgres":    dialectPostgres,
		" PostgreSQL": dialectPostgres,
		"sqlite":      dialectSQLite,
		"":            dialectSQLite,
		"mysql":       dialectSQLite,
	}
	for name, want := range cases {
		if got := parseDialect(name); got != want {
			t.Fatalf("parseDialect(%q) want %s got %s", name, want, got)
		}
	}
	if dialectOf(nil) != dialectSQLite {
		t.Fatalf("nil db should default to sqlite")
	}
}

func TestJSONArrayContains(t *testing.T) {
	got := dialectSQLite.jsonArrayContains("product_tags")
	want := "EXISTS (SELECT 1 FROM json_each(product_tags) WHERE json_each.value = ?)"
	if got != want {
		t.Fatalf("sqlite expr mismatch, want %s got %s", want, got)
	}
	got = dialectPostgres.jsonArrayContains("product_tags")
	want = "(product_tags::jsonb @> jsonb_build_array(CAST(? AS text)))"
	if got != want {
		t.Fatalf("postgres expr mismatch, want %s got %s", want, got)
	}
}

func TestLikeAny(t *testing.T) {
	condition, args := dialectSQLite.likeAny("50%_off", "name", " ", dialectSQLite.text("product_items"))
	if condition != `(name LIKE ? ESCAPE '\' OR product_items LIKE ? ESCAPE '\')` {
		t.Fatalf("unexpected sqlite condition %s", condition)
	}
	if len(args) != 2 || args[0] != `%50\%\_off%` {
		t.Fatalf("wildcards should be escaped, got %v", args)
	}

	condition, _ = dialectPostgres.likeAny("tee", "name", dialectPostgres.text("product_items"))
	if condition != `(name ILIKE ? ESCAPE '\' OR product_items::text ILIKE ? ESCAPE '\')` {
		t.Fatalf("unexpected postgres condition %s", condition)
	}

	if condition, args := dialectSQLite.likeAny("x"); condition != "" || args != nil {
		t.Fatalf("no columns should produce no condition")
	}
}
