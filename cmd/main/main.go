package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/cache"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/config"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/healthcheck"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/jetstream"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/notify"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/observer"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/storage"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/tenant"
	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/usecase"
	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/logger"
	"gitlab.com/nestestates/api/agent-lifecycle-service/pkg/utils"
	"go.uber.org/zap"
)

func main() {
	// Set timezone to UTC
	time.Local = time.UTC

	// Load configuration
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Initialize Metrics conditionally
	metricsEnabled := cfg.Metrics.Enabled // Rely solely on the config flag
	observer.InitMetrics(metricsEnabled)

	// Log startup information
	logger.Log.Info("Starting Agent Lifecycle Service",
		zap.String("environment", cfg.Environment),
		zap.String("company_id", cfg.Company.ID),
		zap.String("nats_url", cfg.NATS.URL),
	)

	// Initialize repositories
	postgresRepo, err := initPostgresRepo(cfg.Database.PostgresDSN, cfg.Database.PostgresAutoMigrate, cfg.Company.ID)
	if err != nil {
		logger.Log.Fatal("Failed to initialize Postgres repository", zap.Error(err))
	}

	// Initialize JetStream client - only takes URL
	jsClient, err := initJetStreamClient(cfg.NATS.URL)
	if err != nil {
		logger.Log.Fatal("Failed to initialize JetStream client", zap.Error(err))
	}

	// Create repository adapters for the service
	agentRepo := storage.NewAgentRepoAdapter(postgresRepo)
	profileRepo := storage.NewProfileRepoAdapter(postgresRepo)
	checklistRepo := storage.NewChecklistRepoAdapter(postgresRepo)
	buildRepo := storage.NewBuildQueueRepoAdapter(postgresRepo)
	auditRepo := storage.NewAuditLogRepoAdapter(postgresRepo)

	// Create notification worker pool
	notifier, err := notify.NewNatsNotifier(cfg.WorkerPools.Notification, jsClient, logger.Log)
	if err != nil {
		logger.Log.Fatal("Failed to initialize notification worker pool", zap.Error(err))
	}

	// Create service, injecting the notifier
	service := usecase.NewLifecycleService(agentRepo, profileRepo, checklistRepo, buildRepo, auditRepo, notifier)
	if cfg.Cache.DetectionEnabled {
		service = service.WithDetectionCache(cache.NewDetectionCache(cfg.Company.ID, cfg.Cache.ExpectedBranches, cfg.Cache.FalsePositiveRate))
	}

	// Create and set up processor - takes the full config object
	processor := usecase.NewProcessor(service, jsClient, cfg, cfg.Company.ID)
	if err := processor.Setup(); err != nil {
		logger.Log.Fatal("Failed to set up processor", zap.Error(err))
	}

	// Create health check server
	healthServer := healthcheck.NewServer(strconv.Itoa(cfg.Server.Port), logger.Log)

	// Register metrics handler if enabled BEFORE starting the server
	if metricsEnabled {
		healthServer.RegisterMetricsHandler(promhttp.Handler())
		logger.Log.Info("Metrics endpoint enabled", zap.String("path", "/metrics"), zap.Int("port", cfg.Server.Port))
	} else {
		logger.Log.Info("Metrics endpoint disabled for environment", zap.String("environment", cfg.Environment))
	}

	// Start health check server (which now might include /metrics)
	healthServer.Start()

	logger.Log.Info("Health check endpoints available",
		zap.String("health", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("readiness", fmt.Sprintf("http://localhost:%d/ready", cfg.Server.Port)),
	)

	// Start processor
	if err := processor.Start(); err != nil {
		logger.Log.Fatal("Failed to start processor", zap.Error(err))
	}
	logger.Log.Info("Event processor started successfully")

	// Periodically refresh the build queue depth gauge for the dashboard
	statsCtx, statsCancel := context.WithCancel(tenant.WithCompanyID(context.Background(), cfg.Company.ID))
	defer statsCancel()
	if metricsEnabled {
		utils.SafeGo(func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-statsCtx.Done():
					return
				case <-ticker.C:
					if _, err := service.QueueStats(statsCtx); err != nil {
						logger.Log.Warn("Failed to refresh build queue stats", zap.Error(err))
					}
				}
			}
		}, func(r interface{}, stack []byte) {
			logger.Log.Error("Panic in build queue stats refresher",
				zap.Any("panic", r),
				zap.ByteString("stack", stack),
			)
		})
	}

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Log.Info("Received termination signal", zap.String("signal", sig.String()))

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Log.Info("Starting graceful shutdown", zap.Duration("timeout", 30*time.Second))
	statsCancel()

	// Use WaitGroup to track shutdown of all components
	var wg sync.WaitGroup

	// Components: processor, notifier, health server, databases
	numComponents := 4
	wg.Add(numComponents)

	// Shutdown processor (JetStream consumer)
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping event processor")
		start := time.Now()
		processor.Stop()
		logger.Log.Info("[shutdown] Event processor stopped",
			zap.Duration("duration", time.Since(start)))
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping event processor",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done() // Ensure WaitGroup is decremented even in case of panic
	})

	// Shutdown notification worker pool. The processor stops first in practice
	// so no new notifications get submitted past this point.
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping notification worker pool")
		start := time.Now()
		notifier.Stop()
		logger.Log.Info("[shutdown] Notification worker pool stopped",
			zap.Duration("duration", time.Since(start)))
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping notification worker pool",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Shutdown health check server (includes metrics if enabled)
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping health check server")
		start := time.Now()
		if err := healthServer.Stop(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Error stopping health check server", zap.Error(err))
		} else {
			logger.Log.Info("[shutdown] Health check server stopped",
				zap.Duration("duration", time.Since(start)))
		}
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping health check server",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Close database connections
	utils.SafeGo(func() {
		defer wg.Done()

		// Close Postgres Connection (repo itself doesn't have Close, need underlying DB)
		logger.Log.Info("[shutdown] Closing PostgreSQL connection")
		pgStart := time.Now()
		if err := postgresRepo.Close(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Failed to close PostgreSQL connection", zap.Error(err))
		} else {
			logger.Log.Info("[shutdown] PostgreSQL connection closed",
				zap.Duration("duration", time.Since(pgStart)))
		}

		// Close JetStream connection
		logger.Log.Info("[shutdown] Closing JetStream connection")
		jsStart := time.Now()
		jsClient.Close()
		logger.Log.Info("[shutdown] JetStream connection closed",
			zap.Duration("duration", time.Since(jsStart)))
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while closing database connections",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Wait with a timeout for all components to shut down
	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Log.Info("[shutdown] All components stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Log.Warn("[shutdown] Graceful shutdown timed out, forcing exit")
	}

	logger.Log.Info("Agent Lifecycle Service shutdown complete")
}

// Initialize PostgreSQL repository
func initPostgresRepo(dsn string, autoMigrate bool, companyID string) (*storage.PostgresRepo, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	repo, err := storage.NewPostgresRepo(dsn, autoMigrate, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres repository: %w", err)
	}

	logger.Log.Info("Initialized PostgreSQL repository")
	return repo, nil
}

// initJetStreamClient initializes the JetStream client
func initJetStreamClient(url string) (*jetstream.Client, error) {
	client, err := jetstream.NewClient(url)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream client: %w", err)
	}
	// Note: Stream and consumer setup is handled within the processor Setup method
	return client, nil
}
