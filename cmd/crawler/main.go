// ====================================
// File: cmd/crawler/main.go
// ====================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/app"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/config"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file (json or yaml)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logs := logger.NewLogBuffer(500)
	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.Log.File
	logCfg.Development = cfg.Log.Development
	logCfg.Buffer = logs

	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("🚀 Starting leaderboard crawler",
		zap.String("trade_type", cfg.TradeType),
		zap.String("storage", cfg.Storage.Driver))

	if err := app.NewRunner(cfg, log, logs).Run(ctx); err != nil {
		log.Error("Crawler execution error", zap.Error(err))
		_ = logger.Sync(log)
		os.Exit(1)
	}
}
