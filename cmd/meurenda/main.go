package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"meurenda/internal/backend"
	"meurenda/internal/cache"
	"meurenda/internal/cli"
	apphttp "meurenda/internal/http"
	"meurenda/internal/identity"
	applog "meurenda/internal/log"
	"meurenda/internal/middleware/ratelimit"
	"meurenda/internal/services"
	"meurenda/internal/state"
	"meurenda/internal/webhook"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentApp)
	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	var publisher services.SyncPublisher
	if res.Publisher != nil {
		publisher = res.Publisher
	}

	finance := services.NewFinanceService(state.NewStore(), res.Persister, publisher, logger)
	loc := cfg.Location()
	finance.SetClock(func() time.Time { return time.Now().In(loc) })
	if err := finance.Load(ctx); err != nil {
		// A corrupt data file must not be silently replaced by an empty ledger.
		logger.Error("Failed to load state", applog.FieldError, err)
		_ = res.Close()
		os.Exit(1)
	}

	if cfg.KiwifyWebhookSecret == "" {
		logger.Warn("KIWIFY_WEBHOOK_SECRET is empty, webhook calls will be rejected")
	}
	provisioner := identity.NewProvisioner(res.Users, logger.WithComponent(applog.ComponentIdentity).Slog())
	hook := webhook.NewHandler(cfg.KiwifyWebhookSecret, provisioner, logger)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:    ":" + cfg.Port,
		Finance: finance,
		Webhook: hook,
		Pinger:  res.Pinger,
		Logger:  logger,
		RateLimit: ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
			CleanupInterval:   5 * time.Minute,
		},
		TrustedProxies: cfg.TrustedProxies,
		Caches:         []cache.Cleaner{finance.ReportCache(), hook.ProcessedOrders()},
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting meurenda server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"sync_enabled", publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()
	cli.RunCleanup(logger, cfg.ShutdownTimeout, func(context.Context) error { return res.Close() })
	if runErr != nil {
		logger.Error("Server error", applog.FieldError, runErr, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
