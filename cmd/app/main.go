// File: cmd/app/main.go
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

	"github.com/shopspring/decimal"

	"zeen-connect/internal/config"
	"zeen-connect/internal/domain/ports/adapter"
	"zeen-connect/internal/infra/adapters/disbursement"
	"zeen-connect/internal/infra/adapters/gateway"
	"zeen-connect/internal/infra/adapters/subscription"
	pg "zeen-connect/internal/infra/db/postgres"
	"zeen-connect/internal/infra/logging"
	"zeen-connect/internal/infra/metrics"
	red "zeen-connect/internal/infra/redis"
	"zeen-connect/internal/infra/sched"
	"zeen-connect/internal/infra/security"
	"zeen-connect/internal/infra/web"
	"zeen-connect/internal/infra/worker"
	"zeen-connect/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop gateways, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Encryption ----
	encKey := cfg.Security.EncryptionKey
	if len(encKey) != 32 {
		logger.Warn().Msg("security.encryption_key not set or not 32 bytes; falling back to dev key (INSECURE)")
		encKey = "0123456789abcdef0123456789abcdef"
	}
	encSvc, err := security.NewEncryptionService(encKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("encryption")
	}

	// ---- Repositories ----
	txm := pg.NewTxManager(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	ledgerRepo := pg.NewLedgerRepo(pool)
	payoutRepo := pg.NewPayoutRepo(pool)
	providerRepo := pg.NewProviderRepo(pool)

	// ---- Gateways ----
	var escrow adapter.GatewayStrategy
	var disburser adapter.DisbursementGateway
	splitFactories := map[string]usecase.SplitFactory{}
	if cfg.Runtime.Dev {
		escrow = gateway.NewNoopGateway()
		disburser = disbursement.NewNoopDisbursement()
	} else {
		escrow = gateway.NewWiPayEscrowGateway(&cfg.Gateways)
		disburser = disbursement.NewWiPayDisbursement(&cfg.Gateways)
		splitFactories["wipay-split"] = gateway.NewWiPaySplitFactory(&cfg.Gateways)
	}

	resolver := usecase.NewGatewayResolver(escrow, splitFactories, encSvc, logger)
	if !cfg.Runtime.Dev {
		// Shared split instance for webhook routing by name; per-provider
		// instances come from the factory at charge time.
		resolver.RegisterGateway(gateway.NewWiPaySplitGateway(&cfg.Gateways, "", ""))
	}

	// ---- Use cases ----
	tiers := subscription.NewStaticTierService(&cfg.Fees)
	feeCalc := usecase.NewFeeCalculator(tiers, decimal.NewFromFloat(cfg.Fees.GatewayRate))
	ledgerSvc := usecase.NewLedgerService(ledgerRepo, paymentRepo, payoutRepo, providerRepo,
		txm, locker, cfg.Redis.LockTTL, logger)
	paymentMgr := usecase.NewPaymentManager(feeCalc, resolver, ledgerSvc, paymentRepo,
		cfg.Gateways.ReturnURL, cfg.Gateways.CancelURL, logger)
	payoutSched := usecase.NewPayoutScheduler(payoutRepo, providerRepo, ledgerSvc, disburser,
		usecase.PayoutPolicy{
			Cadence:       cfg.Payout.Cadence,
			MinimumAmount: decimal.NewFromFloat(cfg.Payout.MinimumAmount),
			Currency:      cfg.Payout.Currency,
			Method:        cfg.Payout.Method,
			BatchLimit:    cfg.Payout.BatchLimit,
		}, logger)

	// ---- Background workers ----
	wp := worker.NewPool(4, logger)
	wp.Start(ctx)
	defer wp.Stop()

	payoutWorker := sched.NewPayoutWorker(payoutSched, wp, cfg.Payout, logger)
	if err := payoutWorker.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("payout worker")
	}

	reconciler := sched.NewPaymentReconciler(paymentMgr, cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, logger)
	go func() { _ = reconciler.Run(ctx) }()

	// DB pool gauge refresh.
	go func() {
		t := time.NewTicker(15 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				st := pool.Stat()
				metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
			}
		}
	}()

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Admin.SessionSecret, !cfg.Runtime.Dev, "", 30*time.Minute)
	server := web.NewServer(paymentMgr, ledgerSvc, payoutSched, resolver, providerRepo,
		cfg.Admin.APIKey, auth, logger)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler: server.Router(),
	}
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	payoutWorker.Stop()
	cancel()
}
