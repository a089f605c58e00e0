package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/talentcove/company-switch/internal/credstore"
	"github.com/talentcove/company-switch/internal/database"
	"github.com/talentcove/company-switch/internal/journal"
	"github.com/talentcove/company-switch/internal/rolestore"
	"github.com/talentcove/company-switch/internal/selection"
	"github.com/talentcove/company-switch/internal/tasks"
	"github.com/talentcove/company-switch/pkg/config"
	"github.com/talentcove/company-switch/pkg/crypto"
	"github.com/talentcove/company-switch/pkg/queue"
	"github.com/talentcove/company-switch/pkg/util"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting company-switch worker")

	if err := util.ValidateCronExpr(cfg.Repair.SweepSchedule); err != nil {
		logger.Error("invalid sweep schedule", "schedule", cfg.Repair.SweepSchedule, "error", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	// The worker needs redis; repairs flow through it.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	cache := selection.NewCache(selection.NewRedisStore(redisClient, cfg.Selection.TTL()))

	encryptor, err := crypto.NewEncryptor(cfg.Repair.EncryptionKey)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}

	roleStore := rolestore.NewClient(cfg.RoleStore.BaseURL, "", cfg.RoleStore.Timeout(), logger)
	credentials := credstore.NewService(db, encryptor, logger)
	recorder := journal.NewRecorder(db, logger)
	asynqClient := queue.NewClient(&cfg.Redis)

	// Create Asynq server
	srv := queue.NewServer(&cfg.Redis, 10)

	// Create task handler
	handler := tasks.NewHandler(logger, roleStore, credentials, cache, recorder, asynqClient)

	// Register handlers
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	// Periodic drift sweep
	scheduler := queue.NewScheduler(&cfg.Redis)
	if _, err := scheduler.Register(cfg.Repair.SweepSchedule, tasks.NewDriftSweepTask()); err != nil {
		logger.Error("failed to register drift sweep", "error", err)
		os.Exit(1)
	}

	// Handle shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down worker...")
		scheduler.Shutdown()
		srv.Shutdown()
		cancel()
	}()

	go func() {
		if err := scheduler.Run(); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	nextSweep, err := util.NextCronTime(cfg.Repair.SweepSchedule, time.Now())
	if err != nil {
		logger.Error("failed to compute next sweep", "error", err)
		os.Exit(1)
	}
	logger.Info("worker started, waiting for tasks...",
		"sweep_schedule", cfg.Repair.SweepSchedule,
		"next_sweep", nextSweep,
	)

	// Start the server
	if err := srv.Run(mux); err != nil {
		logger.Error("worker error", "error", err)
	}

	// Wait for context cancellation
	<-ctx.Done()

	asynqClient.Close()
	redisClient.Close()

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("worker stopped")
}
