package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/talentcove/company-switch/internal/api"
	"github.com/talentcove/company-switch/internal/auth"
	"github.com/talentcove/company-switch/internal/credstore"
	"github.com/talentcove/company-switch/internal/database"
	"github.com/talentcove/company-switch/internal/journal"
	"github.com/talentcove/company-switch/internal/rolestore"
	"github.com/talentcove/company-switch/internal/selection"
	"github.com/talentcove/company-switch/pkg/config"
	"github.com/talentcove/company-switch/pkg/crypto"
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

	logger.Info("starting company-switch server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
		"role_store", cfg.RoleStore.BaseURL,
	)

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

	// Connect to Redis; fall back to the in-memory selection store when it
	// is unreachable.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("failed to connect to Redis, selections will not survive restarts", "error", err)
		redisClient = nil
	}

	var selectionStore selection.Store
	if redisClient != nil {
		selectionStore = selection.NewRedisStore(redisClient, cfg.Selection.TTL())
	} else {
		selectionStore = selection.NewMemoryStore()
	}
	cache := selection.NewCache(selectionStore)

	// Asynq client for enqueuing repair tasks
	var asynqClient *asynq.Client
	if redisClient != nil {
		asynqClient = asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
		})
	}

	// Role store base client; handlers specialize it with each caller's
	// bearer token.
	roleStore := rolestore.NewClient(cfg.RoleStore.BaseURL, "", cfg.RoleStore.Timeout(), logger)

	// Encryptor for service credentials at rest
	encryptionKey := cfg.Repair.EncryptionKey
	if encryptionKey == "" {
		encryptionKey, err = crypto.GenerateKey()
		if err != nil {
			logger.Error("failed to generate encryption key", "error", err)
			os.Exit(1)
		}
		logger.Warn("ENCRYPTION_KEY not set, generated an ephemeral key - store credentials will be unreadable after restart")
	}
	encryptor, err := crypto.NewEncryptor(encryptionKey)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, 24*time.Hour)
	recorder := journal.NewRecorder(db, logger)
	credentials := credstore.NewService(db, encryptor, logger)

	// Create router
	router := api.NewRouter(api.RouterConfig{
		DB:            db,
		Redis:         redisClient,
		Logger:        logger,
		JWTService:    jwtService,
		RoleStore:     roleStore,
		Cache:         cache,
		Journal:       recorder,
		Credentials:   credentials,
		AsynqClient:   asynqClient,
		AutoRepair:    cfg.Repair.AutoEnqueue,
		RateLimitReqs: cfg.RateLimit.Requests,
		RateLimitSecs: cfg.RateLimit.WindowSeconds,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if asynqClient != nil {
		asynqClient.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("server stopped")
}
