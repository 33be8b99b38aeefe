package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"topup-store/internal/auth"
	"topup-store/internal/cache"
	"topup-store/internal/catalog"
	"topup-store/internal/config"
	"topup-store/internal/events"
	"topup-store/internal/httpserver"
	"topup-store/internal/jobs"
	"topup-store/internal/lifecycle"
	"topup-store/internal/logging"
	"topup-store/internal/metrics"
	"topup-store/internal/notify"
	"topup-store/internal/realtime"
	"topup-store/internal/repo"
	"topup-store/internal/supabase"
	"topup-store/migrations"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting topup-store", "env", cfg.AppEnv, "driver", cfg.DatabaseDriver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricRegistry := metrics.Registry(cfg.MetricsNamespace)

	repository, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer repository.Close()
	logger.Info("database migrated")

	sb, err := supabase.New(supabase.Config{
		URL:        cfg.SupabaseURL,
		AnonKey:    cfg.SupabaseAnonKey,
		ServiceKey: cfg.SupabaseServiceKey,
		Timeout:    cfg.SupabaseTimeout,
	}, logger, metricRegistry)
	if err != nil {
		return fmt.Errorf("init supabase client: %w", err)
	}

	memBroker := realtime.NewMemoryBroker(64, logger, metricRegistry)
	var (
		publisher realtime.Publisher = memBroker
		store     cache.Store        = cache.NewMemory()
	)
	if cfg.RedisAddr != "" {
		redisClient := cache.New(cache.Config{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			UseTLS:    cfg.RedisTLS,
			Namespace: "topup:",
		}, logger)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("failed closing redis", "error", err)
			}
		}()
		if err := redisClient.Ping(ctx); err != nil {
			logger.Warn("redis ping failed", "error", err)
		}
		store = redisClient

		redisBroker := realtime.NewRedisBroker(redisClient.Client(), memBroker, logger)
		publisher = redisBroker
		go func() {
			if err := redisBroker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("realtime relay stopped", "error", err)
			}
		}()
	}

	var sink events.Sink = events.Discard{}
	if len(cfg.KafkaBrokers) > 0 {
		producer := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, 256, logger, metricRegistry)
		producer.Start(ctx)
		defer producer.Close()
		sink = producer
	}

	notifiers, closeNotifiers, err := buildNotifiers(ctx, cfg, logger, metricRegistry)
	if err != nil {
		return err
	}
	defer closeNotifiers()

	lc, err := lifecycle.NewService(lifecycle.Options{
		Store:           repository,
		Objects:         sb,
		Publisher:       publisher,
		Events:          sink,
		Notifier:        notifiers,
		Logger:          logger,
		Metrics:         metricRegistry,
		ReceiptsBucket:  cfg.ReceiptsBucket,
		MaxReceiptBytes: cfg.MaxReceiptBytes,
	})
	if err != nil {
		return fmt.Errorf("init lifecycle: %w", err)
	}
	defer lc.Wait()

	cat := catalog.New(repository, lc, store, cfg.CatalogCacheTTL, logger, metricRegistry)
	authSvc := auth.NewService(sb, repository, logger)
	var verifier auth.TokenVerifier = auth.NewVerifier(cfg.SupabaseJWTSecret)
	if cfg.SupabaseJWTSecret == "" {
		logger.Info("no JWT secret configured, verifying access tokens with supabase")
		verifier = auth.NewRemoteVerifier(sb)
	}

	limiter := httpserver.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := limiter.Cleanup(); n > 0 {
					logger.Debug("rate limiter pruned", "callers", n)
				}
			}
		}
	}()

	scheduler := jobs.NewScheduler(logger)
	sweeper := jobs.NewSweeper(sb, repository, cfg.ReceiptsBucket, cfg.OrphanMinAge, logger, metricRegistry)
	if err := scheduler.AddSweeper(cfg.OrphanSweepSchedule, sweeper, 5*time.Minute); err != nil {
		return fmt.Errorf("schedule receipt sweeper: %w", err)
	}
	scheduler.Start()

	router := httpserver.NewRouter(httpserver.Deps{
		Auth:            authSvc,
		Verifier:        verifier,
		Lifecycle:       lc,
		Catalog:         cat,
		Accounts:        repository,
		Health:          repository,
		Realtime:        realtime.NewHandler(memBroker, logger, nil),
		Limiter:         limiter,
		MaxReceiptBytes: cfg.MaxReceiptBytes,
		Logger:          logger,
		Metrics:         metricRegistry,
	})
	httpSrv := httpserver.New(cfg.HTTPListenAddr, router, logger, cfg.PublicBasePath)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	scheduler.Stop(shutdownCtx)

	return nil
}

func openRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) (repo.Repository, error) {
	var (
		r   repo.Repository
		dir string
		err error
	)
	switch cfg.DatabaseDriver {
	case config.DriverSQLite:
		r, err = repo.NewSQLite(ctx, cfg.SQLitePath, logger)
		dir = migrations.SQLiteDir
	default:
		r, err = repo.New(ctx, cfg.DatabaseURL, cfg.SupabaseSchema, logger)
		dir = migrations.PostgresDir
	}
	if err != nil {
		return nil, fmt.Errorf("init repository: %w", err)
	}

	sub, err := fs.Sub(migrations.Files, dir)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	if err := r.RunMigrations(ctx, sub); err != nil {
		r.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return r, nil
}

func buildNotifiers(ctx context.Context, cfg config.Config, logger *slog.Logger, m *metrics.Metrics) (notify.Notifier, func(), error) {
	var list []notify.Notifier
	closeFn := func() {}

	if cfg.TelegramBotToken != "" {
		tg, err := notify.NewTelegram(notify.TelegramConfig{
			Token:  cfg.TelegramBotToken,
			ChatID: cfg.TelegramChatID,
		}, logger, m)
		if err != nil {
			return nil, closeFn, fmt.Errorf("init telegram notifier: %w", err)
		}
		list = append(list, tg)
	}

	if cfg.WhatsAppAdminJID != "" {
		wa, err := notify.NewWhatsApp(ctx, notify.WhatsAppConfig{
			StorePath: cfg.WhatsAppStorePath,
			LogLevel:  cfg.WhatsAppLogLevel,
			AdminJID:  cfg.WhatsAppAdminJID,
		}, logger, m)
		if err != nil {
			return nil, closeFn, fmt.Errorf("init whatsapp notifier: %w", err)
		}
		if err := wa.Start(ctx); err != nil {
			wa.Close()
			return nil, closeFn, fmt.Errorf("start whatsapp notifier: %w", err)
		}
		closeFn = wa.Close
		list = append(list, wa)
	}

	if len(list) == 0 {
		logger.Warn("no operator notifier configured")
	}
	return notify.Combine(list...), closeFn, nil
}
