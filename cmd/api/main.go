package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cryptoprofit/internal/accrual"
	"cryptoprofit/internal/auth"
	"cryptoprofit/internal/config"
	"cryptoprofit/internal/db"
	"cryptoprofit/internal/events"
	"cryptoprofit/internal/gateway"
	"cryptoprofit/internal/health"
	"cryptoprofit/internal/httpserver"
	"cryptoprofit/internal/ledger"
	"cryptoprofit/internal/logger"
	"cryptoprofit/internal/miners"
	"cryptoprofit/internal/notify"
	"cryptoprofit/internal/referral"
)

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

	commissionRate, err := decimal.NewFromString(cfg.CommissionRate)
	if err != nil {
		zlog.Fatal("invalid referral commission rate", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		zlog.Fatal("connect database", zap.Error(err))
	}
	defer pool.Close()

	bus := events.NewBus()
	notifier := notify.NewLogNotifier(zlog)
	gw := gateway.NewClient(gateway.Config{
		APIURL:     cfg.GatewayAPIURL,
		APIKey:     cfg.GatewayAPIKey,
		APISecret:  cfg.GatewaySecret,
		IPNSecret:  cfg.IPNSecret,
		Currency:   cfg.GatewayCurrency,
		IPNBaseURL: cfg.CallbackBaseURL,
	})

	ledgerSvc := ledger.NewService(pool, cfg.StoreTimeout)
	referralSvc := referral.NewService(pool, cfg.StoreTimeout)
	settler := referral.NewSettler(commissionRate, ledgerSvc)
	minersSvc := miners.NewService(pool, ledgerSvc, settler, cfg.StoreTimeout)
	authSvc := auth.NewService(pool, referralSvc, cfg.JWTIssuer, []byte(cfg.JWTSecret), cfg.JWTTTL, cfg.StoreTimeout)
	runner := accrual.NewRunner(pool, ledgerSvc, notifier, bus, zlog, cfg.StoreTimeout)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		AuthHandler:     auth.NewHandler(authSvc),
		LedgerHandler:   ledger.NewHandler(ledgerSvc, gw, notifier, bus, cfg.AppMode, zlog),
		MinersHandler:   miners.NewHandler(minersSvc, notifier, bus, zlog),
		ReferralHandler: referral.NewHandler(referralSvc),
		HealthHandler:   health.NewHandler(pool),
		AccrualRunner:   runner,
		AuthService:     authSvc,
		EventsWSHandler: httpserver.NewEventsWSHandler(bus, authSvc, cfg.WebSocketOrigin, zlog),
		InternalToken:   cfg.InternalToken,
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	if cfg.AccrualInterval > 0 {
		runner.StartWorker(ctx, cfg.AccrualInterval)
		zlog.Info("accrual worker started", zap.Duration("interval", cfg.AccrualInterval))
	}

	zlog.Info("server listening", zap.String("addr", cfg.HTTPAddr), zap.String("mode", cfg.AppMode))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		zlog.Fatal("server exited", zap.Error(err))
	}
}
