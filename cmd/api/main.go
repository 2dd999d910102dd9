package main

import (
	"context"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mjs/cacophony-api/internal/recording"
	"github.com/mjs/cacophony-api/pkg/common"
	"github.com/mjs/cacophony-api/pkg/config"
	"github.com/mjs/cacophony-api/pkg/database"
	"github.com/mjs/cacophony-api/pkg/health"
	"github.com/mjs/cacophony-api/pkg/logger"
	"github.com/mjs/cacophony-api/pkg/middleware"
	"github.com/mjs/cacophony-api/pkg/storage"
)

const (
	serviceName    = "recording-api"
	serviceVersion = "1.0.0"
)

func main() {
	// Load configuration
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	// Connect to PostgreSQL
	pool, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(pool)
	logger.Info("connected to PostgreSQL")

	// Connect to object storage
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := storage.NewS3Storage(ctx, storage.S3Config{
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
	})
	if err != nil {
		logger.Fatal("failed to connect to object storage", zap.Error(err))
	}
	logger.Info("connected to object storage", zap.String("bucket", cfg.Storage.Bucket))

	// Wire up the recording service
	mime := recording.NewMimeResolver()
	builder := recording.NewMetadataBuilder(mime, recording.DefaultStateTable())
	tokens := recording.NewTokenIssuer([]byte(cfg.JWT.Secret))
	repo := recording.NewRepository(pool)
	service := recording.NewService(repo, store, builder, mime, tokens)
	handler := recording.NewHandler(service)

	// Set up Gin router
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Middleware chain
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.Metrics(serviceName))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.Server.CORSOrigins, ",")
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	// Health check and metrics (no auth required)
	healthChecks := map[string]func() error{
		"database": health.DatabaseChecker(pool),
		"storage":  health.StorageChecker(store),
	}
	router.GET("/healthz", common.HealthCheckWithDeps(serviceName, serviceVersion, healthChecks))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	handler.RegisterRoutes(router, cfg.JWT.Secret)

	// Start server
	addr := ":" + cfg.Server.Port
	logger.Info("recording API starting", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
