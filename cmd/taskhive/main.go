package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/taskhive/taskhive/pkg/api"
	"github.com/taskhive/taskhive/pkg/auth"
	"github.com/taskhive/taskhive/pkg/config"
	"github.com/taskhive/taskhive/pkg/middleware"
	"github.com/taskhive/taskhive/pkg/observability"
	"github.com/taskhive/taskhive/pkg/sso"
	"github.com/taskhive/taskhive/pkg/storage"
	"github.com/taskhive/taskhive/pkg/users"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "taskhive: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("Starting taskhive")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Warn("Tracing disabled: OpenTelemetry init failed")
	}
	defer otelProviders.Shutdown(context.Background())

	db, err := storage.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := storage.Migrate(ctx, db); err != nil {
		return err
	}
	storage.StartPoolMetrics(ctx, db, metrics, 15*time.Second)

	userStore := users.NewPostgresStore(db, logger)
	if err := storage.SeedAdmin(ctx, userStore, cfg.Auth.SeedAdminPassword, logger); err != nil {
		return err
	}

	// Redis only backs rate limiting; without it the credential endpoints
	// are simply unthrottled.
	var redisClient *redis.Client
	var limiter *middleware.RateLimiter
	if cfg.Redis.URL != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("Redis unreachable, rate limiting disabled")
			redisClient.Close()
			redisClient = nil
		} else {
			defer redisClient.Close()
			limiter = middleware.NewRateLimiter(redisClient, middleware.DefaultRateLimitConfig(), "taskhive", logger)
		}
	}

	issuer := auth.NewTokenIssuer(
		[]byte(cfg.Auth.JWTSecret),
		time.Duration(cfg.Auth.AccessTokenMinutes)*time.Minute,
		time.Duration(cfg.Auth.RefreshTokenDays)*24*time.Hour,
	)
	authService := auth.NewService(userStore, issuer, logger, metrics)
	gate := middleware.NewAuthGate(issuer, userStore, logger, metrics)

	registrars := []api.RouteRegistrar{
		auth.NewHandler(authService, logger),
		api.NewProjectHandler(storage.NewProjectStore(db, logger), logger),
		api.NewTaskHandler(storage.NewTaskStore(db, logger), storage.NewProjectStore(db, logger), userStore, logger),
		api.NewCommentHandler(storage.NewCommentStore(db, logger), storage.NewTaskStore(db, logger), logger),
	}

	if ssoHandler := buildSSO(ctx, cfg, userStore, issuer, logger); ssoHandler != nil {
		registrars = append(registrars, ssoHandler)
	}

	server := api.NewServer(cfg, logger, metrics, gate, limiter, cfg.Observability.OTelEnabled, registrars...)

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux(db, redisClient, metrics),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Infof("API server listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.Infof("Health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("API server shutdown failed")
		}
		return healthServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// healthMux serves the probe and metrics endpoints on the health port, kept
// off the public listener.
func healthMux(db *sql.DB, redisClient *redis.Client, metrics *observability.Metrics) http.Handler {
	checker := observability.NewHealthChecker(db, redisClient)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", checker.Liveness)
	mux.HandleFunc("/readyz", checker.Readiness)
	if metrics != nil {
		mux.Handle("/metrics", metrics.Handler())
	}
	return mux
}

// buildSSO wires the configured federated login providers. Providers with
// incomplete credentials are skipped, and with none configured the routes
// are not mounted at all.
func buildSSO(ctx context.Context, cfg *config.Config, store users.Store, issuer *auth.TokenIssuer, logger *observability.Logger) *sso.Handler {
	var providers []sso.Provider

	if cfg.SSO.GitHubClientID != "" && cfg.SSO.GitHubClientSecret != "" {
		providers = append(providers, sso.NewGitHubProvider(
			cfg.SSO.GitHubClientID,
			cfg.SSO.GitHubClientSecret,
			cfg.SSO.CallbackBaseURL+"/api/sso/github/callback",
		))
		logger.Info("Federated login enabled for github")
	}

	if cfg.SSO.OIDCIssuerURL != "" && cfg.SSO.OIDCClientID != "" {
		provider, err := sso.NewOIDCProvider(ctx, "oidc",
			cfg.SSO.OIDCIssuerURL,
			cfg.SSO.OIDCClientID,
			cfg.SSO.OIDCClientSecret,
			cfg.SSO.CallbackBaseURL+"/api/sso/oidc/callback",
			cfg.SSO.OIDCScopes,
		)
		if err != nil {
			logger.WithError(err).Error("OIDC discovery failed, provider disabled")
		} else {
			providers = append(providers, provider)
			logger.Info("Federated login enabled for oidc")
		}
	}

	if len(providers) == 0 {
		return nil
	}

	provisioner := sso.NewProvisioner(store, logger)
	return sso.NewHandler(provisioner, issuer, cfg.SSO.FrontendRedirectURL, logger, providers...)
}
