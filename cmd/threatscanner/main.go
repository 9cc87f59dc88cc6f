package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"ThreatScanner/internal/app"
	"ThreatScanner/internal/config"
	"ThreatScanner/internal/logging"
)

func main() {
	once := flag.Bool("once", false, "run a single batch pass and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	if *once {
		if err := application.Run(ctx); err != nil {
			logger.Error("batch run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := application.Start(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
