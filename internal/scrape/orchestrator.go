package scrape

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"pricewatch/internal/domain"
	"pricewatch/internal/extract"
	"pricewatch/internal/ports"
	"pricewatch/internal/rules"
)

// TargetFailure records why one target contributed nothing this run.
type TargetFailure struct {
	Target domain.Target
	Reason string
}

// RunResult is the outcome of one scrape phase: the accepted batch in
// completion order plus every skipped target with its reason.
type RunResult struct {
	Batch    []domain.Observation
	Failures []TargetFailure
	Duration time.Duration
}

// Orchestrator drives fetch, extraction, and normalization across the
// full target set concurrently and applies the quality gate.
type Orchestrator struct {
	fetcher ports.PageFetcher
	logger  *slog.Logger
	now     func() time.Time
}

// NewOrchestrator wires the fetcher; concurrency is bounded by the
// fetcher's own admission semaphore.
func NewOrchestrator(fetcher ports.PageFetcher, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{fetcher: fetcher, logger: logger, now: time.Now}
}

// Run scrapes every target and returns the accepted batch. Each target
// contributes at most one observation; every failure mode recovers
// locally and only costs coverage.
func (o *Orchestrator) Run(ctx context.Context, targets []domain.Target, resolver *rules.Resolver) RunResult {
	start := o.now()

	var (
		mu     sync.Mutex
		result RunResult
		wg     sync.WaitGroup
	)

	for _, target := range targets {
		wg.Add(1)
		go func(target domain.Target) {
			defer wg.Done()

			obs, err := o.scrapeOne(ctx, target, resolver.Resolve(target.SiteID))

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				o.logger.Warn("target skipped", "site", target.SiteID, "url", target.URL, "reason", err)
				result.Failures = append(result.Failures, TargetFailure{Target: target, Reason: err.Error()})
				return
			}
			result.Batch = append(result.Batch, obs)
		}(target)
	}
	wg.Wait()

	result.Duration = o.now().Sub(start)
	return result
}

func (o *Orchestrator) scrapeOne(ctx context.Context, target domain.Target, ruleSet domain.SelectorRuleSet) (domain.Observation, error) {
	page, err := o.fetcher.Fetch(ctx, target)
	if err != nil {
		return domain.Observation{}, err
	}
	if len(page.Body) == 0 {
		return domain.Observation{}, fmt.Errorf("empty body")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return domain.Observation{}, fmt.Errorf("parse document: %w", err)
	}

	name := extract.Extract(doc, ruleSet.ProductName, true)
	code := extract.Extract(doc, ruleSet.Code, false)
	rawPrice := extract.Extract(doc, ruleSet.Price, false)
	stock := extract.Extract(doc, ruleSet.Stock, false)
	price := extract.ParsePrice(rawPrice)

	// Quality gate: a missing code or unparseable price almost always
	// means a bot block or template mismatch; storing it would poison the
	// historical log with false price drops.
	if code == "" {
		return domain.Observation{}, fmt.Errorf("quality gate: missing product code")
	}
	if !price.Valid {
		return domain.Observation{}, fmt.Errorf("quality gate: unparseable price %q", rawPrice)
	}

	return domain.Observation{
		SiteID:      target.SiteID,
		ProductName: name,
		Code:        code,
		Price:       price,
		Stock:       stock,
		Timestamp:   o.now(),
		URL:         target.URL,
	}, nil
}
