package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"sectorwatch/internal/config"
	"sectorwatch/internal/engine"
	"sectorwatch/internal/gateway"
	"sectorwatch/internal/sector"
	"sectorwatch/internal/util"
)

func main() {
	cfgPath := "config/sectorwatch.yaml"
	if p := os.Getenv("SECTORWATCH_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	client := gateway.New(gateway.OptionsFromConfig(cfg), cfg.Credentials(), logger)
	builder := sector.NewSnapshotBuilder(
		client,
		cfg.Dashboard.Sectors,
		cfg.Dashboard.Benchmark,
		cfg.Dashboard.SectorPause,
		logger,
	)

	opts := engine.Options{
		Interval: cfg.Dashboard.RefreshInterval,
		Color:    cfg.Dashboard.Color,
	}
	if cfg.Dashboard.MarketHoursOnly {
		cal := util.NewTradingCalendar(cfg.Dashboard.MarketMIC)
		logger.Info("market-hours gate enabled", "mic", cal.MIC())
		opts.Clock = cal
	}
	eng := engine.NewEngine(builder, sector.NewHistory(cfg.Dashboard.HistorySize), os.Stdout, opts, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Later calls reconnect on demand, so a failed first attempt is not fatal.
	if err := client.Connect(ctx); err != nil {
		logger.Warn("initial connect failed", "error", err)
	}

	logger.Info("sector dashboard running, press Ctrl+C to stop",
		"sectors", len(cfg.Dashboard.Sectors),
		"benchmark", cfg.Dashboard.Benchmark,
	)
	if err := eng.Run(ctx); err != nil {
		logger.Error("dashboard stopped with error", "error", err)
		os.Exit(1)
	}
}
