package ports

import (
	"context"
	"time"

	"pricewatch/internal/domain"
)

// ConfigStore exposes the run inputs kept in the external configuration
// store. All reads happen once per run; a failure here is fatal.
type ConfigStore interface {
	// ListTargets returns the target set, deduplicated by URL with blank
	// rows dropped.
	ListTargets(ctx context.Context) ([]domain.Target, error)

	// ListUserAgents returns the user-agent pool for header rotation.
	ListUserAgents(ctx context.Context) ([]string, error)

	// GetSelectorRules returns the per-site selector rule sets.
	GetSelectorRules(ctx context.Context) ([]domain.SelectorRuleSet, error)

	// GetThreshold returns the alert threshold as a positive fraction,
	// read after scraping and before change detection.
	GetThreshold(ctx context.Context) (float64, error)
}

// HistoryStore owns the append-only historical snapshot log.
type HistoryStore interface {
	// AppendObservations writes the run batch in a single call with
	// all-or-nothing semantics.
	AppendObservations(ctx context.Context, batch []domain.Observation) error

	// ReadAll returns the full log; callers must skip rows without a
	// valid price before grouping.
	ReadAll(ctx context.Context) ([]domain.Observation, error)
}

// Notifier delivers outbound messages. Delivery is fire-and-forget:
// failures are logged by callers and never abort a run.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// PageFetcher retrieves one target's page body through whatever fallback
// ladder the implementation carries.
type PageFetcher interface {
	Fetch(ctx context.Context, target domain.Target) (domain.Page, error)
}

// Scheduler controls when runs execute in watch mode.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
