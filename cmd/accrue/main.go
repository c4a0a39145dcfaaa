package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"cryptoprofit/internal/accrual"
	"cryptoprofit/internal/config"
	"cryptoprofit/internal/db"
	"cryptoprofit/internal/events"
	"cryptoprofit/internal/ledger"
	"cryptoprofit/internal/logger"
	"cryptoprofit/internal/notify"
)

// accrue runs a single accrual batch and exits; intended for cron.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	zlog, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal(err)
	}
	defer zlog.Sync()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		zlog.Fatal("connect database", zap.Error(err))
	}
	defer pool.Close()

	ledgerSvc := ledger.NewService(pool, cfg.StoreTimeout)
	runner := accrual.NewRunner(pool, ledgerSvc, notify.NewDisabled(), events.NewBus(), zlog, cfg.StoreTimeout)

	summary, err := runner.Run(ctx)
	if err != nil {
		zlog.Fatal("accrual run failed", zap.Error(err))
	}
	zlog.Info("accrual finished",
		zap.Int("positions", summary.Positions),
		zap.Int("users", summary.Users),
		zap.String("total", summary.Total.StringFixed(2)),
	)
}
