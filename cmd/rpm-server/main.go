package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rpm/rpm/internal/config"
	"github.com/rpm/rpm/internal/domain/alerts"
	"github.com/rpm/rpm/internal/domain/analytics"
	"github.com/rpm/rpm/internal/domain/audit"
	"github.com/rpm/rpm/internal/domain/identity"
	"github.com/rpm/rpm/internal/domain/patient"
	"github.com/rpm/rpm/internal/domain/rules"
	"github.com/rpm/rpm/internal/domain/vitals"
	"github.com/rpm/rpm/internal/platform/auth"
	"github.com/rpm/rpm/internal/platform/db"
	"github.com/rpm/rpm/internal/platform/events"
	"github.com/rpm/rpm/internal/platform/kafka"
	"github.com/rpm/rpm/internal/platform/metrics"
	"github.com/rpm/rpm/internal/platform/middleware"
	"github.com/rpm/rpm/internal/platform/webhook"
	"github.com/rpm/rpm/internal/platform/websocket"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "rpm-server",
		Short: "Remote patient monitoring API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(simulateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env, level string) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if env == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	if lvl, err := zerolog.ParseLevel(level); err == nil && level != "" {
		logger = logger.Level(lvl)
	}
	return logger
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	tokens := auth.NewTokenManager(cfg.JWTSecret, time.Duration(cfg.JWTTTLMinutes)*time.Minute)

	// Broadcast targets
	hub := websocket.NewHub(logger,
		websocket.WithSendBuffer(cfg.WSSendBuffer),
		websocket.WithWriteTimeout(cfg.WSWriteTimeout),
	)
	defer hub.Close()
	sink := events.Fanout{hub}
	if cfg.KafkaEnabled() {
		pub, err := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create kafka publisher")
		}
		defer pub.Close()
		sink = append(sink, pub)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("mirroring events to kafka")
	}
	if len(cfg.WebhookURLs) > 0 {
		var opts []webhook.Option
		if cfg.WebhookCriticalOnly {
			opts = append(opts, webhook.WithCriticalOnly())
		}
		notifier, err := webhook.NewNotifier(cfg.WebhookURLs, cfg.WebhookSecret, logger, opts...)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create webhook notifier")
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := notifier.Close(closeCtx); err != nil {
				logger.Warn().Err(err).Msg("webhook queue not drained before exit")
			}
		}()
		sink = append(sink, notifier)
	}

	// Repositories
	ruleRepo := rules.NewRepoPG(pool)
	alertRepo := alerts.NewRepoPG(pool)
	vitalRepo := vitals.NewRepoPG(pool)
	patientRepo := patient.NewRepoPG(pool)

	ruleStore := rules.NewStore(ruleRepo, logger, rules.WithCacheTTL(cfg.RuleCacheTTL))
	if _, err := ruleStore.SeedDefaults(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed default rules")
	}

	auditSvc := audit.NewService(audit.NewRepoPG(pool))
	patientSvc := patient.NewService(patientRepo, logger)
	alertSvc := alerts.NewService(alertRepo, sink, logger)
	ingestSvc := vitals.NewService(
		db.NewTxRunner(pool),
		vitalRepo,
		alertRepo,
		patientSvc,
		alerts.NewEvaluator(ruleStore, alertRepo),
		alerts.NewCorrelationDetector(vitalRepo),
		sink,
		logger,
	)
	aggregator := analytics.NewAggregator(vitalRepo, alertRepo, patientRepo,
		analytics.WithTimeout(cfg.AnalyticsTimeout),
	)
	identitySvc := identity.NewService(identity.NewRepoPG(pool), tokens, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(tokens, auth.AuthSkipper))
	} else {
		e.Use(auth.JWTMiddleware(tokens, auth.AuthSkipper))
	}
	e.Use(middleware.Audit(logger, auditSvc))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":      "ok",
			"version":     version,
			"subscribers": hub.ClientCount(),
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", metrics.Handler())
	websocket.NewHandler(hub, tokens).RegisterRoutes(e)

	apiV1 := e.Group("/api/v1")
	identity.NewHandler(identitySvc).RegisterRoutes(apiV1)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	vitals.NewHandler(ingestSvc).RegisterRoutes(apiV1)
	alerts.NewHandler(alertSvc).RegisterRoutes(apiV1)
	rules.NewHandler(ruleStore).RegisterRoutes(apiV1)
	analytics.NewHandler(aggregator).RegisterRoutes(apiV1)
	audit.NewHandler(auditSvc).RegisterRoutes(apiV1)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
