package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"school-payment-ledger/internal/config"
	"school-payment-ledger/internal/domain/ports/adapter"
	pg "school-payment-ledger/internal/infra/db/postgres"
	"school-payment-ledger/internal/infra/logging"
	"school-payment-ledger/internal/infra/metrics"
	"school-payment-ledger/internal/infra/notify"
	gw "school-payment-ledger/internal/infra/payment"
	red "school-payment-ledger/internal/infra/redis"
	"school-payment-ledger/internal/infra/sched"
	"school-payment-ledger/internal/infra/web"
	"school-payment-ledger/internal/infra/worker"
	"school-payment-ledger/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (insecure gateway allowed)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	planRepo := pg.NewPlanRepo(pool)
	installmentRepo := pg.NewInstallmentRepo(pool)
	gatewayRepo := pg.NewGatewayPaymentRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Collaborators ----
	receipts := notify.NewReceiptIssuer(logger)
	students := notify.NewStudentLifecycle(logger)
	audit := notify.NewAuditSink(logger)

	pool2 := worker.NewPool(cfg.Ledger.Workers, logger)
	pool2.Start(ctx)
	defer pool2.Stop()

	// ---- Gateway adapter ----
	var gateway adapter.PaymentGateway
	if cfg.Gateway.BaseURL == "" && cfg.Runtime.Dev {
		logger.Warn().Msg("no gateway configured; using noop gateway")
		gateway = gw.NewNoopGateway()
	} else {
		gateway = gw.NewHTTPGateway(cfg.Gateway, cfg.Runtime.Dev, logger)
	}

	// ---- Use cases ----
	recorderUC := usecase.NewRecorderUseCase(planRepo, installmentRepo, tm,
		receipts, students, audit, pool2, cfg.Ledger.Epsilon(), logger)
	planUC := usecase.NewPlanUseCase(planRepo, installmentRepo, tm, audit, logger)
	gatewayUC := usecase.NewGatewayUseCase(gatewayRepo, installmentRepo, gateway, recorderUC, locker, logger)
	overdueUC := usecase.NewOverdueUseCase(installmentRepo, logger)

	// ---- Background workers ----
	sweeper := sched.NewOverdueSweeper(overdueUC, cfg.Sweeper.Interval, cfg.Sweeper.ThresholdDays, logger)
	go sweeper.Start(ctx)
	reconciler := sched.NewIntentReconciler(gatewayUC, gatewayRepo, gateway,
		cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, logger)
	go reconciler.Start(ctx)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Server.APISecret, cfg.Server.TokenTTL)
	srv := web.NewServer(planUC, recorderUC, gatewayUC, overdueUC, gateway, cfg.Gateway.Currency, auth, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	cancel()
}
