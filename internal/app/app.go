package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pricewatch/internal/config"
	"pricewatch/internal/detect"
	"pricewatch/internal/fetch"
	"pricewatch/internal/infrastructure/scheduler"
	"pricewatch/internal/infrastructure/storage"
	"pricewatch/internal/infrastructure/telegram"
	"pricewatch/internal/logging"
	"pricewatch/internal/ports"
	"pricewatch/internal/rules"
	"pricewatch/internal/scrape"
)

// Application wires the stores, the scrape pipeline, and notification
// delivery into runnable cycles.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *storage.Store
	solver   *fetch.SolverClient
	renderer *fetch.Renderer
	notifier ports.Notifier
}

// New connects the configuration store and prepares the fetch tiers. A
// store connection failure is the one fatal startup error.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := storage.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("configuration store: %w", err)
	}

	var solver *fetch.SolverClient
	if cfg.Fetch.SolverURL != "" {
		solver = fetch.NewSolverClient(cfg.Fetch.SolverURL, cfg.Fetch.SolverTimeout())
	}

	var renderer *fetch.Renderer
	if len(cfg.Fetch.RenderHosts) > 0 {
		renderer = fetch.NewRenderer(
			cfg.Fetch.BrowserTimeout(),
			cfg.Fetch.SettleMin(),
			cfg.Fetch.SettleMax(),
			baseLogger.With("component", "browser"),
		)
	}

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		store:    store,
		solver:   solver,
		renderer: renderer,
		notifier: telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID),
	}, nil
}

// Close releases the browser and the store connection.
func (a *Application) Close() {
	if a.renderer != nil {
		a.renderer.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

// Run executes one full scrape-persist-compare-notify cycle. The returned
// error is non-nil only for configuration load failures; everything else
// degrades into skipped targets and log lines.
func (a *Application) Run(ctx context.Context) error {
	log := a.logger.With("component", "run")

	targets, err := a.store.ListTargets(ctx)
	if err != nil {
		return fmt.Errorf("load targets: %w", err)
	}
	agents, err := a.store.ListUserAgents(ctx)
	if err != nil {
		return fmt.Errorf("load user agents: %w", err)
	}
	ruleSets, err := a.store.GetSelectorRules(ctx)
	if err != nil {
		return fmt.Errorf("load selector rules: %w", err)
	}

	fetcher := fetch.New(fetch.Config{
		Timeout:           a.cfg.Fetch.Timeout(),
		Concurrency:       a.cfg.Fetch.Concurrency,
		JitterMin:         a.cfg.Fetch.JitterMin(),
		JitterMax:         a.cfg.Fetch.JitterMax(),
		HardFallbackHosts: a.cfg.Fetch.HardFallbackHosts,
		RenderHosts:       a.cfg.Fetch.RenderHosts,
	}, fetch.NewHeaderPool(agents), a.solver, a.renderer, a.logger.With("component", "fetch"))

	orchestrator := scrape.NewOrchestrator(fetcher, a.logger.With("component", "scrape"))
	result := orchestrator.Run(ctx, targets, rules.NewResolver(ruleSets))

	log.Info("scrape finished",
		"targets", len(targets),
		"accepted", len(result.Batch),
		"failed", len(result.Failures),
		"duration", result.Duration.Round(time.Millisecond))

	appended := false
	if len(result.Batch) > 0 {
		if err := a.store.AppendObservations(ctx, result.Batch); err != nil {
			log.Error("append observations failed, skipping change detection", "error", err)
		} else {
			appended = true
		}
	}

	if appended {
		a.detectAndAlert(ctx, result, log)
	}

	monitor := detect.Monitor{Floor: a.cfg.Coverage.Floor}
	coverage, warn := monitor.Evaluate(len(result.Batch), len(targets))
	log.Info("run coverage", "coverage", fmt.Sprintf("%.0f%%", coverage*100))
	if warn {
		a.send(ctx, detect.WarningMessage(len(result.Batch), len(targets), coverage))
	}

	return nil
}

func (a *Application) detectAndAlert(ctx context.Context, result scrape.RunResult, log *slog.Logger) {
	threshold, err := a.store.GetThreshold(ctx)
	if err != nil {
		log.Error("load threshold, skipping change detection", "error", err)
		return
	}

	history, err := a.store.ReadAll(ctx)
	if err != nil {
		log.Error("read historical log, skipping change detection", "error", err)
		return
	}

	alerts := detect.Alerts(history, result.Batch, threshold)
	log.Info("change detection finished", "threshold", threshold, "alerts", len(alerts))

	for _, event := range alerts {
		log.Info("price alert",
			"site", event.Key.SiteID,
			"code", event.Key.Code,
			"previous", event.PreviousPrice,
			"current", event.CurrentPrice,
			"delta_pct", fmt.Sprintf("%.2f%%", event.DeltaPct*100),
			"url", event.URL)
		a.send(ctx, event.Message())
	}
}

// send delivers one message; a dead notification channel only costs a
// log line, never the run.
func (a *Application) send(ctx context.Context, message string) {
	if err := a.notifier.Notify(ctx, message); err != nil {
		a.logger.Warn("notification failed", "error", err)
	}
}

// Watch runs cycles on the configured cron schedule until ctx is
// cancelled.
func (a *Application) Watch(ctx context.Context) error {
	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location())

	err := driver.Start(ctx, func(trigger time.Time) {
		a.logger.Info("scheduled run starting", "trigger", trigger.Format(time.RFC3339))
		if err := a.Run(ctx); err != nil {
			a.logger.Error("scheduled run failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return driver.Stop(stopCtx)
}
