package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Renderer drives a stealth headless browser for hosts that require full
// script execution before their markup is usable. Chrome is launched
// lazily on first use and reused across renders.
type Renderer struct {
	mu        sync.Mutex
	browser   *rod.Browser
	lnch      *launcher.Launcher
	timeout   time.Duration
	settleMin time.Duration
	settleMax time.Duration
	logger    *slog.Logger
}

// NewRenderer configures the render tier. The settle window is a short
// randomized delay after DOMContentLoaded so lazy-loaded content lands.
func NewRenderer(timeout, settleMin, settleMax time.Duration, logger *slog.Logger) *Renderer {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	if settleMax < settleMin {
		settleMax = settleMin
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		timeout:   timeout,
		settleMin: settleMin,
		settleMax: settleMax,
		logger:    logger,
	}
}

// Render navigates to the page, waits for DOM content loaded plus the
// settle delay, and captures the rendered HTML.
func (r *Renderer) Render(ctx context.Context, pageURL string) ([]byte, error) {
	browser, err := r.ensure()
	if err != nil {
		return nil, err
	}

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("browser: create stealth page: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	page = page.Context(navCtx)

	wait := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := page.Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	wait()

	if err := sleepBetween(navCtx, r.settleMin, r.settleMax); err != nil {
		return nil, err
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("browser: capture html: %w", err)
	}
	return []byte(html), nil
}

// Close shuts down Chrome if it was launched.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		_ = r.browser.Close()
		r.browser = nil
	}
	if r.lnch != nil {
		r.lnch.Cleanup()
		r.lnch = nil
	}
}

func (r *Renderer) ensure() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New().
		Headless(true).
		Set("disable-blink-features", "AutomationControlled")

	wsURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browser: launch: %w", err)
	}

	browser := rod.New().ControlURL(wsURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	r.logger.Info("headless browser launched", "url", wsURL)
	r.lnch = l
	r.browser = browser
	return browser, nil
}

// sleepBetween waits a random duration in [min, max], honoring ctx.
func sleepBetween(ctx context.Context, min, max time.Duration) error {
	delay := min
	if max > min {
		delay += time.Duration(rand.Int63n(int64(max - min + 1)))
	}
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
