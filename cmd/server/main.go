// Package main provides the API server entry point for the monitoring service.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/safebase-monitor/internal/api"
	"github.com/safebase-monitor/internal/chat"
	"github.com/safebase-monitor/internal/config"
	"github.com/safebase-monitor/internal/logging"
	"github.com/safebase-monitor/internal/notify"
	"github.com/safebase-monitor/internal/scheduler"
	"github.com/safebase-monitor/internal/scorer"
	"github.com/safebase-monitor/internal/service"
	"github.com/safebase-monitor/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	redisCache, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisCache.Close()

	// ClickHouse is optional; the archive and its history range queries are
	// simply unavailable without it.
	var archive service.SnapshotArchiver
	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Warn("ClickHouse unavailable, snapshot archive disabled")
	} else {
		defer clickhouse.Close()
		archiveRepo := storage.NewSnapshotArchiveRepository(clickhouse)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := archiveRepo.EnsureSchema(ctx); err != nil {
			logger.WithError(err).Warn("Failed to ensure archive schema, snapshot archive disabled")
		} else {
			archive = archiveRepo
		}
		cancel()
	}

	logger.Info("Database connections established")

	// Repositories and domain stores
	watchlistRepo := storage.NewWatchlistRepository(postgres)
	alertRepo := storage.NewAlertRepository(postgres)
	history := storage.NewSnapshotHistory(redisCache, cfg.Monitor.HistorySize)
	quota := storage.NewQuotaTracker(redisCache, cfg.RateLimit.FreeDailyAnalyses)

	// External collaborators
	riskScorer := scorer.NewClient(cfg.Scorer.BaseURL, cfg.Scorer.Timeout, logger)
	chatClient := chat.NewClient(cfg.Chat.BaseURL, cfg.Chat.Timeout)

	// Alert delivery
	dispatcher := notify.NewDispatcher(
		cfg.Notify,
		redisCache,
		logger,
		notify.NewEmailSender(cfg.Notify.SMTP),
		notify.NewTelegramSender(cfg.Notify.Telegram),
		notify.NewLogSender(logger),
	)

	// Services
	logger.Info("Initializing services...")

	monitorService := service.NewMonitorService(
		cfg.Monitor,
		cfg.Scorer,
		watchlistRepo,
		alertRepo,
		history,
		archive,
		riskScorer,
		dispatcher,
		logger,
	)

	analyzeService := service.NewAnalyzeService(riskScorer, quota, logger)

	// Poll scheduler
	sched, err := scheduler.New(cfg.Monitor, watchlistRepo, monitorService, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create scheduler")
	}

	schedCtx, schedCancel := context.WithCancel(context.Background())
	defer schedCancel()
	if err := sched.Start(schedCtx); err != nil {
		logger.WithError(err).Fatal("Failed to start scheduler")
	}

	logger.Info("Services initialized")

	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		FreeTierRPS:     cfg.RateLimit.FreeTier,
		PaidTierRPS:     cfg.RateLimit.PaidTier,
	}

	server := api.NewServer(serverConfig, analyzeService, monitorService, chatClient, sched, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := sched.Stop(ctx); err != nil {
		logger.WithError(err).Error("Scheduler did not stop cleanly")
	}

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
