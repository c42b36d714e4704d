package rules

import (
	"strings"

	"pricewatch/internal/domain"
)

// FallbackSeparator splits a configured selector cell into its ordered
// fallback entries. The first entry has the highest priority.
const FallbackSeparator = "||"

// SplitSelectors parses one rule cell into an ordered selector list.
// Whitespace-only entries are dropped; order is preserved.
func SplitSelectors(cell string) []string {
	parts := strings.Split(cell, FallbackSeparator)
	selectors := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			selectors = append(selectors, trimmed)
		}
	}
	return selectors
}

// NewRuleSet builds a SelectorRuleSet from the raw rule cells of one site.
func NewRuleSet(siteID int, productName, code, price, stock string) domain.SelectorRuleSet {
	return domain.SelectorRuleSet{
		SiteID:      siteID,
		ProductName: SplitSelectors(productName),
		Code:        SplitSelectors(code),
		Price:       SplitSelectors(price),
		Stock:       SplitSelectors(stock),
	}
}

// Resolver maps a site identifier to its selector rule set.
type Resolver struct {
	sets map[int]domain.SelectorRuleSet
}

// NewResolver indexes the rule sets loaded from the configuration store.
// Later duplicates for the same site replace earlier ones.
func NewResolver(sets []domain.SelectorRuleSet) *Resolver {
	indexed := make(map[int]domain.SelectorRuleSet, len(sets))
	for _, set := range sets {
		indexed[set.SiteID] = set
	}
	return &Resolver{sets: indexed}
}

// Resolve returns the rule set for a site. An unconfigured site yields an
// empty rule set, not an error: every extraction for it returns "" until
// rules appear in the store.
func (r *Resolver) Resolve(siteID int) domain.SelectorRuleSet {
	if set, ok := r.sets[siteID]; ok {
		return set
	}
	return domain.SelectorRuleSet{SiteID: siteID}
}
