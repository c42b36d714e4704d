package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"pricewatch/internal/app"
	"pricewatch/internal/config"
	"pricewatch/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	watch := flag.Bool("watch", false, "run on the configured cron schedule instead of once")
	flag.Parse()

	// Optional .env for local runs; real deployments set the environment.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer application.Close()

	if *watch {
		if err := application.Watch(ctx); err != nil {
			logger.Error("watch mode failed", "error", err)
			return 1
		}
		return 0
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("run failed", "error", err)
		return 1
	}
	return 0
}
