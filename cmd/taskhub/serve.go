package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/taskhub/pkg/analytics"
	"github.com/platinummonkey/taskhub/pkg/api"
	"github.com/platinummonkey/taskhub/pkg/audit"
	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/broadcast"
	"github.com/platinummonkey/taskhub/pkg/config"
	"github.com/platinummonkey/taskhub/pkg/httputil"
	"github.com/platinummonkey/taskhub/pkg/middleware"
	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/rbac"
	"github.com/platinummonkey/taskhub/pkg/storage"
	"github.com/platinummonkey/taskhub/pkg/storage/memory"
	"github.com/platinummonkey/taskhub/pkg/storage/postgres"
	"github.com/platinummonkey/taskhub/pkg/tracker"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout).WithField("service", appName)

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: Version,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("init otel: %w", err)
	}

	// everything opened below is released here if startup fails
	var undo undoStack
	defer undo.run()
	undo.push(func() { _ = observability.ShutdownOTel(context.Background(), providers, logger) })

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	store, redisClient, err := openStore(ctx, cfg.Storage, metrics, logger)
	if err != nil {
		return err
	}
	closeStore := func(context.Context) error {
		err := store.Close()
		if redisClient != nil {
			err = errors.Join(err, redisClient.Close())
		}
		return err
	}
	undo.push(func() { _ = closeStore(context.Background()) })

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  cfg.Auth.AccessSecret,
		RefreshSecret: cfg.Auth.RefreshSecret,
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
		Issuer:        cfg.Auth.Issuer,
	})
	if err != nil {
		return fmt.Errorf("token service: %w", err)
	}

	sinks, closeSinks, err := buildSinks(cfg.Broadcast, redisClient, logger)
	if err != nil {
		return err
	}
	undo.push(closeSinks)
	dispatcher := broadcast.NewDispatcher(cfg.Broadcast.Timeout, metrics, sinks...)

	recorder := audit.NewRecorder(store, metrics)
	services := tracker.New(tracker.Deps{
		Store:       store,
		Policy:      rbac.NewPolicy(cfg.Auth.MembersCanCreateProjects),
		Tokens:      tokens,
		Hasher:      auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		Recorder:    recorder,
		Broadcaster: dispatcher,
		Metrics:     metrics,
		Names:       tracker.NewNameCache(cfg.Storage.NameCacheSize, cfg.Storage.NameCacheTTL),
	}, tracker.Config{
		AllowRoleOnSignup: cfg.Auth.AllowRoleOnSignup,
		MinPasswordLength: cfg.Auth.MinPasswordLength,
	})

	limiter := loginLimiter(cfg.Server, redisClient)
	proxies, err := httputil.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}

	var redisForHealth *redis.Client
	if redisClient != nil {
		redisForHealth = redisClient.Client()
	}
	opts := api.Options{
		Services:       services,
		Recorder:       recorder,
		Tokens:         tokens,
		LoginLimiter:   limiter,
		TrustedProxies: proxies,
		Logger:         logger,
		Metrics:        metrics,
		Health:         observability.NewHealthChecker(store, redisForHealth, Version),
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		CookieSecure:   cfg.Server.CookieSecure,
		ServiceName:    cfg.Observability.OTelServiceName,
	}
	if cfg.Observability.MetricsEnabled {
		opts.Gatherer = registry
	}
	server := api.NewServer(opts)

	scheduler, err := analytics.NewScheduler(analytics.NewAggregator(store, metrics), cfg.Observability.GaugeSchedule, logger)
	if err != nil {
		return err
	}
	scheduler.Start()

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc("analytics", scheduler.Stop)
	shutdown.RegisterShutdownFunc("broadcast", func(ctx context.Context) error {
		err := dispatcher.Close(ctx)
		closeSinks()
		return err
	})
	shutdown.RegisterShutdownFunc("store", closeStore)
	shutdown.RegisterShutdownFunc("otel", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})
	undo.disarm()

	serverErr := make(chan error, 1)
	go func() {
		logger.WithFields(map[string]interface{}{
			"addr":    httpServer.Addr,
			"storage": cfg.Storage.Type,
			"version": Version,
		}).Info("Starting taskhub API server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err, ok := <-serverErr:
		if ok {
			logger.WithError(err).Error("HTTP server failed")
			_ = shutdown.Shutdown(context.Background())
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		return shutdown.WaitForShutdown(ctx)
	}
}

// undoStack releases resources in reverse order of acquisition
type undoStack []func()

func (u *undoStack) push(fn func()) { *u = append(*u, fn) }

// disarm hands ownership to the shutdown manager
func (u *undoStack) disarm() { *u = nil }

func (u *undoStack) run() {
	for i := len(*u) - 1; i >= 0; i-- {
		(*u)[i]()
	}
	*u = nil
}

// openStore builds the document store named by cfg.Type. SQL stores are
// migrated on open. When RedisURL is set a Redis client is returned too, and
// with CacheEnabled the store is wrapped in the user cache.
func openStore(ctx context.Context, cfg storage.Config, metrics *observability.Metrics, logger *observability.Logger) (storage.Store, *postgres.RedisClient, error) {
	var store storage.Store
	switch cfg.Type {
	case "memory":
		logger.Warn("Using in-memory storage; data is lost on restart")
		store = memory.New()
	case "postgres", "sqlite":
		sqlStore, err := postgres.Open(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s store: %w", cfg.Type, err)
		}
		if err := sqlStore.Migrate(ctx); err != nil {
			sqlStore.Close()
			return nil, nil, fmt.Errorf("migrate %s store: %w", cfg.Type, err)
		}
		store = sqlStore
	default:
		return nil, nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}

	if cfg.RedisURL == "" {
		return store, nil, nil
	}

	redisClient, err := postgres.NewRedisClient(cfg)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	if cfg.CacheEnabled {
		store = postgres.NewCachedStore(store, redisClient, metrics)
	}
	return store, redisClient, nil
}

// buildSinks creates a sink per configured transport. The returned func
// releases connections the sinks own.
func buildSinks(cfg config.BroadcastConfig, redisClient *postgres.RedisClient, logger *observability.Logger) ([]broadcast.Sink, func(), error) {
	var sinks []broadcast.Sink
	closers := []func(){}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.RedisChannel != "" && redisClient != nil {
		sinks = append(sinks, broadcast.NewRedisSink(redisClient.Client(), cfg.RedisChannel))
	}

	if cfg.NATSURL != "" {
		conn, err := broadcast.ConnectNATS(cfg.NATSURL)
		if err != nil {
			return nil, closeAll, fmt.Errorf("connect nats: %w", err)
		}
		closers = append(closers, conn.Close)
		sinks = append(sinks, broadcast.NewNATSSink(conn, cfg.NATSSubjectPrefix))
	}

	if cfg.WebhookURL != "" {
		sink, err := broadcast.NewWebhookSink(broadcast.WebhookConfig{
			URL:           cfg.WebhookURL,
			Secret:        cfg.WebhookSecret,
			Timeout:       cfg.Timeout,
			MaxAttempts:   cfg.WebhookMaxAttempts,
			RatePerSecond: cfg.WebhookRatePerSecond,
		})
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("webhook sink: %w", err)
		}
		sinks = append(sinks, sink)
	}

	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	logger.WithField("sinks", names).Info("Broadcast sinks configured")
	return sinks, closeAll, nil
}

// loginLimiter counts login attempts in Redis when available so every
// replica shares the budget; otherwise it keeps buckets in process
func loginLimiter(cfg config.ServerConfig, redisClient *postgres.RedisClient) middleware.Limiter {
	limits := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.LoginRatePerMinute,
		WindowDuration:    time.Minute,
		BurstSize:         cfg.LoginRateBurst,
	}
	if redisClient != nil {
		return middleware.NewDistributedRateLimiter(redisClient, limits, "")
	}
	return middleware.NewRateLimiter(limits)
}
