package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	quillconfig "quill/internal/config"
	"quill/internal/drafter"
	"quill/internal/feed"
	"quill/internal/handlers"
	"quill/internal/organizer"
	"quill/internal/pipeline"
	"quill/internal/posts"
	"quill/pkg/config"
	"quill/pkg/database"
	"quill/pkg/llm"
	"quill/pkg/logging"
	"quill/pkg/monitoring"
	"quill/pkg/server"
	"quill/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("quill")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Quill (Post-to-Blog Pipeline API)")

	cfg := quillconfig.LoadConfig()

	// Connect to database and apply the blog_posts schema
	dbConfig := database.DefaultConfig()
	dbConfig.URL = cfg.DatabaseURL
	db := database.MustConnect(dbConfig, logger)
	defer func() { _ = db.Close() }()

	schemaCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.ApplySchema(schemaCtx, db, logger); err != nil {
		cancel()
		logger.WithError(err).Fatal("Failed to apply database schema")
	}
	cancel()

	// Optional Redis for caching handle lookups
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("Invalid REDIS_URL - handle caching disabled")
		} else {
			redisClient = redis.NewClient(redisOpts)
			defer func() { _ = redisClient.Close() }()
		}
	}

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("quill", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("quill", version.Version, version.GitCommit)

	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
	}))
	if redisClient != nil {
		healthChecker.AddCheck("redis", monitoring.RedisHealthCheck(redisClient))
	}

	pipelineRuns, stageDuration, rateLimitWaits := metricsCollector.CreatePipelineMetrics()

	// Social feed client
	feedOpts := []feed.Option{
		feed.WithRateLimitWaitHook(func(delay time.Duration) {
			rateLimitWaits.WithLabelValues().Inc()
		}),
	}
	if redisClient != nil {
		feedOpts = append(feedOpts, feed.WithHandleCache(redisClient))
	}
	feedClient := feed.NewClient(cfg.FeedAPIURL, cfg.FeedBearerToken, cfg.SnapshotPath, logger, feedOpts...)

	// The two model providers. Each role reads its own ORGANIZER_*/DRAFTER_*
	// variables and falls back to the shared LLM_* ones.
	organizerProvider, err := llm.NewProvider(llm.LoadConfigFor("ORGANIZER"))
	if err != nil {
		logger.WithError(err).Fatal("Failed to configure organizer provider")
	}
	drafterProvider, err := llm.NewProvider(llm.LoadConfigFor("DRAFTER"))
	if err != nil {
		logger.WithError(err).Fatal("Failed to configure drafter provider")
	}

	pipe := pipeline.New(
		feedClient,
		organizer.New(organizerProvider, logger),
		drafter.New(drafterProvider, logger),
		&pipeline.Metrics{Runs: pipelineRuns, StageDuration: stageDuration},
		logger,
	)

	store := posts.NewStore(db, logger)

	// Setup router with unified monitoring (health/metrics) and the API routes
	router := server.SetupServiceRouter(logger, "quill", healthChecker, metricsCollector)
	handlers.New(pipe, feedClient, store, cfg.FeedUserID, logger).RegisterRoutes(router)

	// Start HTTP server with graceful shutdown
	serverConfig := server.DefaultConfig("quill", cfg.Port)
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}
