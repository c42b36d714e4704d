package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"pricewatch/internal/domain"
	"pricewatch/internal/ports"
)

// StatusAccessDenied is the custom "access denied" status some storefront
// mitigation layers answer with instead of 403.
const StatusAccessDenied = 511

// maxBodyBytes caps response reads to prevent runaway downloads.
const maxBodyBytes = 10 << 20

// Config controls fetch behavior for one run.
type Config struct {
	// Timeout bounds the direct HTTP request.
	Timeout time.Duration

	// Concurrency is the admission semaphore size shared across all
	// targets. It exists to dodge anti-bot volumetric detection, not for
	// local resource limits. Observed useful values: 2-4.
	Concurrency int

	// JitterMin/JitterMax bound the random delay preceding every request.
	JitterMin time.Duration
	JitterMax time.Duration

	// HardFallbackHosts lists hosts allowed to escalate past the direct
	// tier when challenged.
	HardFallbackHosts []string

	// RenderHosts lists hosts that require full script execution and may
	// use the headless-browser tier.
	RenderHosts []string
}

// Fetcher performs the tiered fetch ladder for one target: direct HTTP,
// then the challenge solver, then a headless-browser render. Tiers are an
// explicit ordered chain; the first success wins and a stage without a
// further applicable stage fails the target for this run.
type Fetcher struct {
	client      *http.Client
	headers     *HeaderPool
	solver      *SolverClient
	renderer    *Renderer
	sem         chan struct{}
	jitterMin   time.Duration
	jitterMax   time.Duration
	hardHosts   map[string]struct{}
	renderHosts map[string]struct{}
	logger      *slog.Logger
}

var _ ports.PageFetcher = (*Fetcher)(nil)

// New builds a Fetcher. Solver and renderer are optional tiers; passing
// nil disables them.
func New(cfg Config, headers *HeaderPool, solver *SolverClient, renderer *Renderer, logger *slog.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if headers == nil {
		headers = NewHeaderPool(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Fetcher{
		client:      &http.Client{Timeout: cfg.Timeout},
		headers:     headers,
		solver:      solver,
		renderer:    renderer,
		sem:         make(chan struct{}, cfg.Concurrency),
		jitterMin:   cfg.JitterMin,
		jitterMax:   cfg.JitterMax,
		hardHosts:   hostSet(cfg.HardFallbackHosts),
		renderHosts: hostSet(cfg.RenderHosts),
		logger:      logger,
	}
}

// Fetch retrieves one target under the shared concurrency bound. A failed
// target is reported, never retried again within the run.
func (f *Fetcher) Fetch(ctx context.Context, target domain.Target) (domain.Page, error) {
	select {
	case f.sem <- struct{}{}:
	case <-ctx.Done():
		return domain.Page{}, ctx.Err()
	}
	defer func() { <-f.sem }()

	if err := sleepBetween(ctx, f.jitterMin, f.jitterMax); err != nil {
		return domain.Page{}, err
	}

	page, err := f.direct(ctx, target)
	if err != nil {
		return domain.Page{}, fmt.Errorf("direct fetch %s: %w", target.URL, err)
	}
	if page.StatusCode == http.StatusOK && !Blocked(page.Body) {
		return page, nil
	}

	host := hostOf(target.URL)
	if !challenged(page) {
		return domain.Page{}, fmt.Errorf("fetch %s: status %d with no applicable fallback", target.URL, page.StatusCode)
	}
	if _, allowed := f.hardHosts[host]; !allowed {
		return domain.Page{}, fmt.Errorf("fetch %s: challenged (status %d), host not on hard-fallback list", target.URL, page.StatusCode)
	}

	if f.solver != nil {
		f.logger.Debug("escalating to challenge solver", "url", target.URL, "status", page.StatusCode)
		status, body, err := f.solver.Get(ctx, target.URL)
		if err == nil && status == http.StatusOK && !Blocked(body) {
			return domain.Page{StatusCode: status, Body: body, Via: "solver"}, nil
		}
		if err != nil {
			f.logger.Debug("challenge solver failed", "url", target.URL, "error", err)
		}
	}

	if _, render := f.renderHosts[host]; render && f.renderer != nil {
		f.logger.Debug("escalating to browser render", "url", target.URL)
		body, err := f.renderer.Render(ctx, target.URL)
		if err == nil && len(body) > 0 {
			return domain.Page{StatusCode: http.StatusOK, Body: body, Via: "browser"}, nil
		}
		if err != nil {
			f.logger.Debug("browser render failed", "url", target.URL, "error", err)
		}
	}

	return domain.Page{}, fmt.Errorf("fetch %s: all fallbacks exhausted (last status %d)", target.URL, page.StatusCode)
}

func (f *Fetcher) direct(ctx context.Context, target domain.Target) (domain.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return domain.Page{}, fmt.Errorf("build request: %w", err)
	}
	f.headers.Apply(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.Page{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.Page{}, fmt.Errorf("read body: %w", err)
	}

	return domain.Page{StatusCode: resp.StatusCode, Body: body, Via: "direct"}, nil
}

// challenged reports whether a direct result looks like an anti-bot
// challenge worth escalating, as opposed to a plain failure (404, 500).
func challenged(page domain.Page) bool {
	switch page.StatusCode {
	case http.StatusForbidden, StatusAccessDenied:
		return true
	case http.StatusOK:
		return Blocked(page.Body)
	default:
		return false
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func hostSet(hosts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		if h != "" {
			set[h] = struct{}{}
		}
	}
	return set
}
