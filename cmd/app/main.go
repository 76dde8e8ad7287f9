package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"exam-access/internal/config"
	"exam-access/internal/domain/ports/adapter"
	"exam-access/internal/domain/ports/repository"
	payAdapters "exam-access/internal/infra/adapters/payment"
	tele "exam-access/internal/infra/adapters/telegram"
	"exam-access/internal/infra/api"
	"exam-access/internal/infra/api/apiv1"
	pg "exam-access/internal/infra/db/postgres"
	"exam-access/internal/infra/logging"
	"exam-access/internal/infra/metrics"
	red "exam-access/internal/infra/redis"
	"exam-access/internal/infra/sched"
	"exam-access/internal/infra/worker"
	"exam-access/internal/usecase"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop processor, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		logging.New(config.LogConfig{}, *devMode).Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	go pg.ReportPoolStats(ctx, pool, 15*time.Second)

	// ---- Redis (optional) ----
	var (
		redisClient red.RedisClient
		limiter     usecase.RateLimiter
		locker      red.Locker
		ledger      red.AlertLedger
		tokenStore  adapter.TokenStore = payAdapters.NewMemoryTokenStore()
	)
	if strings.TrimSpace(cfg.Redis.URL) != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer rc.Close()
		redisClient = rc
		limiter = red.NewRateLimiter(rc)
		locker = red.NewLocker(rc)
		ledger = red.NewAlertLedger(rc)
		if strings.EqualFold(cfg.Payment.AzamPay.TokenStore, "redis") {
			tokenStore = red.NewTokenStore(rc)
		}
	} else {
		logger.Warn().Msg("redis not configured; rate limiting and catalog cache disabled")
	}

	// ---- Repositories ----
	var materialRepo repository.MaterialRepository = pg.NewMaterialRepo(pool)
	if redisClient != nil {
		materialRepo = pg.NewMaterialRepoCacheDecorator(materialRepo, redisClient, cfg.Redis.TTL, logger)
	}
	paymentRepo := pg.NewPaymentRepo(pool)
	codeRepo := pg.NewAccessCodeRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	roleRepo := pg.NewRoleRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Adapters ----
	gateway := newGateway(cfg, tokenStore, logger)

	var chat adapter.AdminNotifier
	if bot, err := tele.NewAdminBotNotifier(cfg.Notify, logger); err != nil {
		logger.Warn().Err(err).Msg("admin notifications go to the log only")
		chat = tele.NewNoopNotifier(logger)
	} else {
		chat = bot
	}
	alerts := worker.NewPool(2, logger)
	alerts.Start(context.Background())
	notifier := worker.NewAsyncNotifier(chat, alerts, logger)

	// ---- Use cases ----
	checkoutUC := usecase.NewCheckoutUseCase(paymentRepo, materialRepo, gateway, usecase.CheckoutConfig{
		Currency:     cfg.Payment.Currency,
		CountryCode:  cfg.Payment.CountryCode,
		IDPrefix:     cfg.Payment.IDPrefix,
		PremiumPrice: cfg.Payment.PremiumPrice,
		Dev:          cfg.Runtime.Dev,
	}, logger)
	premiumUC := usecase.NewPremiumUseCase(subRepo, materialRepo, cfg.Payment.PremiumPeriod, logger)
	reconcileUC := usecase.NewReconcileUseCase(paymentRepo, codeRepo, premiumUC, notifier, txManager, logger)
	statusUC := usecase.NewStatusUseCase(paymentRepo, logger)
	redeemUC := usecase.NewRedeemUseCase(codeRepo, materialRepo, logger)
	codesUC := usecase.NewAccessCodeUseCase(codeRepo, materialRepo, limiter, notifier, usecase.AccessCodeConfig{
		ControlNumberPrefix: cfg.Access.ControlNumberPrefix,
		RequestLimit:        cfg.Access.RequestLimit,
		RequestWindow:       cfg.Access.RequestWindow,
		MaxGenerate:         cfg.Access.MaxGenerate,
		Dev:                 cfg.Runtime.Dev,
	}, logger)

	// ---- HTTP ----
	v1 := apiv1.NewServer(apiv1.Deps{
		Checkout:       checkoutUC,
		Reconcile:      reconcileUC,
		Status:         statusUC,
		Redeem:         redeemUC,
		Codes:          codesUC,
		Premium:        premiumUC,
		Auth:           apiv1.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, roleRepo),
		Limiter:        limiter,
		ClientLimit:    cfg.HTTP.ClientLimit,
		ClientWindow:   cfg.HTTP.ClientWindow,
		CallbackSecret: cfg.Payment.AzamPay.CallbackSecret,
	}, logger)
	router := api.NewRouter(cfg.HTTP, v1, healthCheck(pool, redisClient), logger)
	server := api.NewServer(cfg.HTTP, router, logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Stale payment monitor ----
	// Sends synchronously; the monitor re-alerts when delivery fails.
	monitor := sched.NewStalePaymentMonitor(paymentRepo, chat, locker, ledger, cfg.Scheduler.StaleScanInterval, cfg.Scheduler.StaleAfter, logger)
	go func() {
		defer wg.Done()
		if err := monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("stale payment monitor stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sigc:
		logger.Info().Str("signal", s.String()).Msg("shutdown requested")
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
	wg.Wait()
	alerts.Stop()
	logger.Info().Msg("bye")
}

// newGateway returns the AzamPay gateway, or the noop gateway in dev mode.
func newGateway(cfg *config.Config, store adapter.TokenStore, logger *zerolog.Logger) adapter.PaymentGateway {
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode: charges are not sent to the processor")
		return payAdapters.NewNoopPaymentGateway()
	}
	g, err := payAdapters.NewAzamPayGateway(cfg.Payment.AzamPay, store, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("azampay gateway")
	}
	return g
}

func healthCheck(pool *pgxpool.Pool, rc red.RedisClient) api.HealthCheck {
	return func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return err
		}
		if rc != nil {
			return rc.Ping(ctx)
		}
		return nil
	}
}
