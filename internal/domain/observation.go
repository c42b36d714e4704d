package domain

import (
	"fmt"
	"time"
)

// Target is one (site identifier, URL) pair to be scraped. The site
// identifier selects the extraction rules for the page.
type Target struct {
	SiteID int
	URL    string
}

// SelectorRuleSet holds the ordered fallback selector lists for each
// extracted field of one site. Entries are CSS selectors, except the
// literal "title" token which means "use the document title".
type SelectorRuleSet struct {
	SiteID      int
	ProductName []string
	Code        []string
	Price       []string
	Stock       []string
}

// Empty reports whether the rule set has no selectors configured at all.
func (r SelectorRuleSet) Empty() bool {
	return len(r.ProductName) == 0 && len(r.Code) == 0 && len(r.Price) == 0 && len(r.Stock) == 0
}

// Price is an optional decimal price. Valid is false when extraction could
// not produce a usable number; invalid prices never reach the historical
// store or any comparison.
type Price struct {
	Value float64
	Valid bool
}

// NewPrice wraps a concrete parsed value.
func NewPrice(v float64) Price {
	return Price{Value: v, Valid: true}
}

// Observation is one timestamped snapshot of a product page.
type Observation struct {
	SiteID      int
	ProductName string
	Code        string
	Price       Price
	Stock       string
	Timestamp   time.Time
	URL         string
}

// ItemKey is the stable identity used to track one product across runs.
type ItemKey struct {
	SiteID int
	Code   string
	URL    string
}

// Key returns the observation's item identity key.
func (o Observation) Key() ItemKey {
	return ItemKey{SiteID: o.SiteID, Code: o.Code, URL: o.URL}
}

// Page is the body a fetch produced for a target, tagged with the tier
// ("direct", "solver", "browser") that finally delivered it.
type Page struct {
	StatusCode int
	Body       []byte
	Via        string
}

// AlertDirection tells which way a price moved.
type AlertDirection string

const (
	DirectionIncreased AlertDirection = "increased"
	DirectionDecreased AlertDirection = "decreased"
)

// AlertEvent describes one threshold-crossing price move. It is derived
// during change detection and handed to the notification channel, never
// persisted.
type AlertEvent struct {
	Key           ItemKey
	PreviousPrice float64
	CurrentPrice  float64
	DeltaAbs      float64
	DeltaPct      float64
	MinPriceEver  float64
	Stock         string
	URL           string
	Direction     AlertDirection
}

// Message renders the event in notification form.
func (e AlertEvent) Message() string {
	return fmt.Sprintf("[%d] [%s] Price %s to %.2f from %.2f, difference of %.2f%% %s (lowest ever %.2f)",
		int(e.DeltaAbs), e.Stock, string(e.Direction), e.CurrentPrice, e.PreviousPrice,
		e.DeltaPct*100, e.URL, e.MinPriceEver)
}
