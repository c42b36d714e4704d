package rules

import (
	"reflect"
	"testing"

	"pricewatch/internal/domain"
)

func TestSplitSelectors(t *testing.T) {
	t.Parallel()

	got := SplitSelectors("span.price-new || .product-price || title")
	want := []string{"span.price-new", ".product-price", "title"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected selectors: %v", got)
	}
}

func TestSplitSelectorsDropsBlankEntries(t *testing.T) {
	t.Parallel()

	got := SplitSelectors("  ||  .sku ||   || h1.code")
	want := []string{".sku", "h1.code"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected selectors: %v", got)
	}

	if len(SplitSelectors("")) != 0 {
		t.Fatalf("empty cell must produce no selectors")
	}
}

func TestResolverResolve(t *testing.T) {
	t.Parallel()

	resolver := NewResolver([]domain.SelectorRuleSet{
		NewRuleSet(1, "h1.name || title", ".sku", ".price", ".stock"),
		NewRuleSet(2, "", ".code", ".amount", ""),
	})

	set := resolver.Resolve(1)
	if set.SiteID != 1 || len(set.ProductName) != 2 || set.ProductName[0] != "h1.name" {
		t.Fatalf("unexpected rule set for site 1: %+v", set)
	}

	set = resolver.Resolve(2)
	if len(set.ProductName) != 0 || len(set.Code) != 1 {
		t.Fatalf("unexpected rule set for site 2: %+v", set)
	}
}

func TestResolverUnknownSiteIsEmptyNotError(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(nil)
	set := resolver.Resolve(42)
	if set.SiteID != 42 {
		t.Fatalf("expected site id carried through, got %d", set.SiteID)
	}
	if !set.Empty() {
		t.Fatalf("expected empty rule set, got %+v", set)
	}
}
