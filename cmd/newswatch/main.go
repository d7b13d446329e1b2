package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/deusflow/newswatch/internal/app"
	"github.com/deusflow/newswatch/internal/config"
	"github.com/deusflow/newswatch/internal/logger"
	"github.com/deusflow/newswatch/internal/metrics"
	"github.com/deusflow/newswatch/internal/monitor"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, config.ErrHelp) {
			fmt.Println(err)
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	logger.Init(cfg.LogLevel)
	logger.Info("Starting newswatch", "digest_mode", cfg.DigestMode, "run_interval", cfg.RunInterval)
	logger.Debug("Configuration loaded",
		"companies", cfg.CompaniesPath,
		"state", cfg.StatePath,
		"lookback_hours", cfg.LookbackHours,
		"max_per_company", cfg.MaxPerCompany,
		"broad_mode", cfg.BroadMode,
		"commands", cfg.EnableCommands,
		"commands_only", cfg.CommandsOnly)
	os.Exit(run(cfg))
}

func run(cfg *config.Config) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MonitoringEnabled {
		srv := monitor.New(cfg.MonitoringPort, metrics.Global, logger.New("monitor"))
		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Error("Monitoring server error", "error", err)
			}
		}()
	}

	runner, closeFn, err := app.Build(ctx, cfg, metrics.Global, logger.Logger)
	if err != nil {
		logger.Error("Startup failed", "error", err)
		return 1
	}
	defer func() {
		if err := closeFn(); err != nil {
			logger.Warn("Close summarizer", "error", err)
		}
	}()

	if err := runner.Run(ctx); err != nil {
		logger.Error("Run failed", "error", err)
		return 1
	}
	return 0
}
