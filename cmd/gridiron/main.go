package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/fortuna/gridiron/internal/api/mcp"
	"github.com/fortuna/gridiron/internal/api/rest"
	"github.com/fortuna/gridiron/internal/api/websocket"
	"github.com/fortuna/gridiron/internal/cache"
	"github.com/fortuna/gridiron/internal/config"
	"github.com/fortuna/gridiron/internal/consumer"
	"github.com/fortuna/gridiron/internal/logging"
	"github.com/fortuna/gridiron/internal/notify"
	"github.com/fortuna/gridiron/internal/publisher"
	"github.com/fortuna/gridiron/internal/replay"
	"github.com/fortuna/gridiron/internal/scheduler"
	"github.com/fortuna/gridiron/internal/service"
	"github.com/fortuna/gridiron/internal/store"
	"github.com/fortuna/gridiron/internal/store/memory"
	"github.com/fortuna/gridiron/internal/store/repository"
	"github.com/rs/zerolog"
)

const (
	serviceName    = "gridiron"
	serviceVersion = "1.0.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("info", false)
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger := logging.New(cfg.Service.LogLevel, cfg.Service.PrettyLogs)
	logger.Info().Str("version", serviceVersion).Msgf("Starting %s - fantasy scoring service", serviceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	var (
		st     store.Store
		jobs   replay.JobStore
		checks = map[string]func(context.Context) error{}
	)
	switch cfg.Service.Storage {
	case "memory":
		st = memory.New()
		jobs = replay.NewMemoryJobs()
		logger.Warn().Msg("Using in-memory storage; state is lost on restart")
	default:
		db, err := store.NewDatabase(cfg.Database.URL, logging.Component(logger, "database"))
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()
		logger.Info().Msg("✓ Connected to database")

		if err := db.RunMigrations(cfg.Database.MigrationsDir); err != nil {
			logger.Fatal().Err(err).Msg("Failed to run database migrations")
		}
		logger.Info().Msg("✓ Database migrations applied")

		st = repository.NewStore(db)
		jobs = replay.NewRepository(db)
		checks["postgres"] = db.HealthCheck
	}

	// Redis: score cache, event streams and the stat consumer
	var (
		scores cache.Scores
		sinks  publisher.Fanout
		redisC *cache.RedisCache
	)
	if cfg.Redis.URL != "" {
		redisC = connectRedis(cfg.Redis.URL, logger)
		defer redisC.Close()
		scores = redisC
		checks["redis"] = redisC.HealthCheck
		sinks = append(sinks, publisher.NewRedisStreamPublisher(redisC.Client(), cfg.Redis.StreamPrefix))
		logger.Info().Msg("✓ Connected to Redis")
	} else {
		scores = cache.NewMemoryCache()
		logger.Warn().Msg("REDIS_URL not set; using in-process score cache")
	}

	hub := websocket.NewHub(logging.Component(logger, "websocket"))
	go hub.Run(ctx)
	sinks = append(sinks, hub)

	var messenger scheduler.Messenger
	if cfg.Telegram.Enabled() {
		tg, err := notify.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID, logging.Component(logger, "telegram"))
		if err != nil {
			logger.Error().Err(err).Msg("Telegram disabled")
		} else {
			messenger = tg
			sinks = append(sinks, tg)
			logger.Info().Msg("✓ Telegram notifier ready")
		}
	}

	// Replays and the league service
	scorer := replay.NewScorer(scores, logging.Component(logger, "replay"))
	runner := replay.NewRunner(st, scorer, sinks, cfg.Replay.Workers, logging.Component(logger, "replay"))
	replays := replay.NewService(jobs, runner, logging.Component(logger, "replay"))
	replays.Start()
	logger.Info().Int("workers", cfg.Replay.Workers).Msg("✓ Replay service started")

	svc := service.New(st, service.Options{
		Cache:   scores,
		Events:  sinks,
		Replays: replays,
		Logger:  logging.Component(logger, "service"),
	})

	if redisC != nil {
		c := consumer.NewStreamConsumer(redisC.Client(), svc, cfg.Redis.StatsStream,
			cfg.Redis.ConsumerGroup, cfg.Redis.ConsumerName, logging.Component(logger, "consumer"))
		go func() {
			if err := c.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("Stat consumer stopped")
			}
		}()
		logger.Info().Str("stream", cfg.Redis.StatsStream).Msg("✓ Stat consumer started")
	}

	var sched *scheduler.Orchestrator
	if cfg.Scheduler.Enabled {
		schedCfg := scheduler.DefaultConfig()
		schedCfg.Timezone = cfg.Scheduler.Timezone
		schedCfg.DigestCron = cfg.Scheduler.DigestCron
		schedCfg.WarmInterval = cfg.Scheduler.WarmInterval

		sched, err = scheduler.NewOrchestrator(svc, messenger, schedCfg, logging.Component(logger, "scheduler"))
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create scheduler")
		}
		if err := sched.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start scheduler")
		}
		logger.Info().Msg("✓ Scheduler started")
	}

	status := map[string]func() map[string]interface{}{"websocket": hub.Metrics}
	if sched != nil {
		status["scheduler"] = sched.GetStatus
	}

	// REST API with MCP mounted at /mcp
	mcp := mcpserver.NewServer(svc, serviceVersion, logging.Component(logger, "mcp"))
	restServer := rest.NewServer(cfg.Service.RESTPort, svc, replays, rest.Options{
		CORSOrigins: cfg.Service.CORSOrigins,
		MCP:         mcp.Handler(),
		Checks:      checks,
		Status:      status,
		Logger:      logging.Component(logger, "rest"),
	})
	go func() {
		if err := restServer.Start(); err != nil {
			logger.Error().Err(err).Msg("REST server error")
		}
	}()
	logger.Info().Str("port", cfg.Service.RESTPort).Msg("✓ REST API server listening")

	wsServer := websocket.NewServer(hub, cfg.Service.CORSOrigins, logging.Component(logger, "websocket"))
	go func() {
		if err := wsServer.Start(cfg.Service.WSPort); err != nil {
			logger.Error().Err(err).Msg("WebSocket server error")
		}
	}()
	logger.Info().Str("port", cfg.Service.WSPort).Msg("✓ WebSocket server listening")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutting down gracefully...")
	cancel()
	if sched != nil {
		if err := sched.Stop(); err != nil {
			logger.Error().Err(err).Msg("Scheduler shutdown error")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := restServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("REST API server shutdown error")
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("WebSocket server shutdown error")
	}
	if err := replays.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Replay service shutdown error")
	}

	logger.Info().Msg("Gridiron stopped")
}

func connectRedis(url string, logger zerolog.Logger) *cache.RedisCache {
	const maxRetries = 30
	retryDelay := 2 * time.Second

	for i := 0; ; i++ {
		rc, err := cache.NewRedisCache(url)
		if err == nil {
			return rc
		}
		if i >= maxRetries-1 {
			logger.Fatal().Err(err).Int("attempts", maxRetries).Msg("Failed to connect to Redis")
		}
		logger.Warn().Err(err).Msgf("Redis connection attempt %d/%d failed (retrying in %v)", i+1, maxRetries, retryDelay)
		time.Sleep(retryDelay)
	}
}
