package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tempvox/internal/core/ports"
	"tempvox/internal/core/services"
	httphandlers "tempvox/internal/handlers/http"
	"tempvox/internal/infrastructure/gateway"
	"tempvox/internal/infrastructure/middleware"
	"tempvox/internal/infrastructure/monitoring"
	"tempvox/internal/infrastructure/platform"
	repositories "tempvox/internal/infrastructure/repositories"
	"tempvox/pkg/config"
	"tempvox/pkg/cooldown"
	"tempvox/pkg/logger"
	"tempvox/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/tempvox/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}

	if err != nil {
		// Fallback to defaults if config cannot be loaded
		cfg = config.DefaultConfig()
	}

	// Initialize logger
	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	// Initialize tracing
	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerEndpoint,
		Environment: "production",
		SampleRate:  1.0,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	// Initialize repository factory
	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	// Initialize repositories
	instanceRepo := repoFactory.CreateInstanceRepository()
	profileRepo := repoFactory.CreateProfileRepository()
	policyRepo := repoFactory.CreatePolicyRepository()

	// Cooldown backend follows the repository backend: redis when
	// available so windows survive restarts, in-memory otherwise.
	var cooldowns ports.CooldownService
	var memoryCooldowns *cooldown.MemoryStore
	if client := repoFactory.RedisClient(); client != nil {
		cooldowns = cooldown.NewRedisStore(client)
	} else {
		memoryCooldowns = cooldown.NewMemoryStore(time.Minute)
		cooldowns = memoryCooldowns
	}

	// Platform adapters
	platformClient := platform.NewClient(cfg.Platform.BaseURL, cfg.Platform.Token, log)
	surfaceClient := platform.NewSurfaceClient(platformClient)

	// Initialize monitoring
	prometheusCollector := monitoring.NewPrometheusCollector()

	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddCheck("repositories", repoFactory.HealthCheck, 2*time.Second)

	// Initialize services
	executor := services.NewKeyedExecutor()
	profileSync := services.NewProfileSync(profileRepo, log)
	surfaceSync := services.NewSurfaceSynchronizer(surfaceClient, platformClient, instanceRepo, log)
	orchestrator := services.NewOrchestrator(
		instanceRepo,
		policyRepo,
		platformClient,
		profileSync,
		surfaceSync,
		cooldowns,
		prometheusCollector,
		executor,
		log,
	)

	sweeper := services.NewSweeper(
		policyRepo,
		instanceRepo,
		platformClient,
		orchestrator,
		prometheusCollector,
		services.SweeperConfig{
			Interval:            cfg.Sweeper.Interval,
			InactivityThreshold: cfg.Sweeper.InactivityThreshold,
		},
		log,
	)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	go sweeper.Start(runCtx)

	// Membership event consumer (optional; the webhook endpoint covers
	// deployments without a gateway socket).
	if cfg.Gateway.URL != "" {
		gatewayClient := gateway.NewClient(gateway.Config{
			URL:               cfg.Gateway.URL,
			Token:             cfg.Gateway.Token,
			ReconnectInterval: cfg.Gateway.ReconnectInterval,
			MaxReconnectDelay: cfg.Gateway.MaxReconnectDelay,
			PingInterval:      cfg.Gateway.PingInterval,
		}, orchestrator, log)
		go gatewayClient.Run(runCtx)
	}

	// Initialize HTTP handlers
	instanceHandler := httphandlers.NewInstanceHandler(orchestrator, healthChecker)

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}
	if cfg.RateLimiting.Enabled {
		router.Use(middleware.RateLimitMiddleware(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.Burst))
	}

	instanceHandler.SetupRoutes(router, middleware.AuthMiddleware(cfg.Auth.JWTSecret))

	// Prometheus metrics endpoint
	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting tempvox steward on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signals or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down tempvox steward...")

	runCancel()
	sweeper.Stop()
	if memoryCooldowns != nil {
		memoryCooldowns.Stop()
	}

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Shutdown HTTP server gracefully
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Server shutdown failed", "error", err)
	}

	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Tracer shutdown failed", "error", err)
	}

	log.Info("Server stopped")
}
