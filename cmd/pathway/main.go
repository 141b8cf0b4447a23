package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/pathwayhq/pathway/pkg/api"
	"github.com/pathwayhq/pathway/pkg/authctx"
	"github.com/pathwayhq/pathway/pkg/claims"
	"github.com/pathwayhq/pathway/pkg/config"
	"github.com/pathwayhq/pathway/pkg/directory"
	"github.com/pathwayhq/pathway/pkg/identity"
	"github.com/pathwayhq/pathway/pkg/invites"
	"github.com/pathwayhq/pathway/pkg/middleware"
	"github.com/pathwayhq/pathway/pkg/observability"
	"github.com/pathwayhq/pathway/pkg/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithField("environment", cfg.Environment).Info("starting pathway")

	ctx := context.Background()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	db, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		logger.WithError(err).Error("failed to connect to postgres")
		os.Exit(1)
	}
	defer db.Close()

	if err := storage.Migrate(ctx, db); err != nil {
		logger.WithError(err).Error("failed to run migrations")
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Error("failed to connect to redis")
			os.Exit(1)
		}
	}

	provider, err := buildClaimsProvider(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Error("failed to build claims provider")
		os.Exit(1)
	}

	identityStore := identity.NewPostgresStore(db, logger)
	directoryStore := directory.NewPostgresStore(db, logger)
	builder := authctx.NewBuilder(identityStore, directoryStore, logger)
	inviteService := invites.NewService(db, logger, cfg.Auth.InviteTTL)

	authMiddleware := middleware.NewAuthMiddleware(
		provider, builder, metrics, logger,
		cfg.Auth.CookieMaxAge, cfg.IsProduction(),
	)

	var rateLimit func(http.Handler) http.Handler
	if redisClient != nil {
		rateLimit = middleware.NewDistributedRateLimitMiddleware(redisClient, metrics, logger).Handler
	} else {
		rateLimit = middleware.NewRateLimitMiddleware(metrics).Handler
	}

	server := api.NewServer(api.Deps{
		Auth:           authMiddleware,
		RateLimit:      rateLimit,
		RequestTimeout: cfg.Database.QueryTimeout,
		Metrics:        metrics,
		Invites:        inviteService,
		Logger:         logger,
	})

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthServer := newHealthServer(cfg, db, redisClient, registry)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@hourly", func() {
		removed, err := inviteService.CleanupExpired(context.Background())
		if err != nil {
			logger.WithError(err).Warn("invite cleanup failed")
			return
		}
		if removed > 0 {
			logger.WithField("removed", removed).Info("cleaned up expired invites")
		}
	}); err != nil {
		logger.WithError(err).Error("failed to schedule invite cleanup")
		os.Exit(1)
	}
	if _, err := scheduler.AddFunc("@every 30s", func() {
		stats := db.Stats()
		metrics.ObserveDBStats(stats.InUse, stats.Idle)
	}); err != nil {
		logger.WithError(err).Error("failed to schedule db stats sampling")
		os.Exit(1)
	}
	scheduler.Start()

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		scheduler.Stop()
		return nil
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return redisClient.Close()
		})
	}

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()

	go func() {
		logger.WithField("addr", apiServer.Addr).Info("api server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("api server failed")
			os.Exit(1)
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("shutdown failed")
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// buildClaimsProvider selects the claims provider. Production always
// verifies against the OIDC issuer; development may opt into the
// unverified payload decoder.
func buildClaimsProvider(ctx context.Context, cfg *config.Config, logger *observability.Logger) (claims.Provider, error) {
	if cfg.Auth.InsecureClaims && !cfg.IsProduction() {
		logger.Warn("using unverified claims decoder, do not use outside development")
		return claims.NewInsecureDecoder(cfg.Auth.Provider), nil
	}
	return claims.NewVerifyingProvider(ctx, cfg.Auth.Provider, cfg.Auth.OIDCIssuerURL, cfg.Auth.OIDCClientID)
}

func newHealthServer(cfg *config.Config, db *sql.DB, redisClient *redis.Client, registry *prometheus.Registry) *http.Server {
	checker := observability.NewHealthChecker(db, redisClient)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", checker.Liveness)
	mux.HandleFunc("/readyz", checker.Readiness)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(mux, registry)
	}

	return &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: mux,
	}
}
