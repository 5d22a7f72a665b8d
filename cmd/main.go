package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/news-digest/internal/adapters/clickhouse"
	"github.com/selivandex/news-digest/internal/adapters/config"
	"github.com/selivandex/news-digest/internal/adapters/database"
	"github.com/selivandex/news-digest/internal/adapters/news"
	redisAdapter "github.com/selivandex/news-digest/internal/adapters/redis"
	"github.com/selivandex/news-digest/internal/adapters/telegram"
	"github.com/selivandex/news-digest/internal/api"
	"github.com/selivandex/news-digest/internal/digest"
	"github.com/selivandex/news-digest/internal/health"
	"github.com/selivandex/news-digest/internal/preferences"
	"github.com/selivandex/news-digest/internal/sentiment"
	"github.com/selivandex/news-digest/internal/users"
	"github.com/selivandex/news-digest/internal/workers"
	"github.com/selivandex/news-digest/pkg/logger"
	"github.com/selivandex/news-digest/pkg/worker"
)

func main() {
	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// infrastructure holds optional connections; nil fields are disabled
type infrastructure struct {
	db         *database.DB
	redis      *redisAdapter.Client
	clickhouse *database.DB
}

func (i *infrastructure) close() {
	if i.clickhouse != nil {
		i.clickhouse.Close()
	}
	if i.redis != nil {
		i.redis.Close()
	}
	if i.db != nil {
		i.db.Close()
	}
}

func run(ctx context.Context) error {
	cfg, err := initConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("news digest starting...",
		zap.String("news_provider", cfg.News.Provider),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("sentiment", cfg.Sentiment.Strategy),
	)

	infra, err := initInfrastructure(cfg)
	if err != nil {
		return err
	}
	defer infra.close()

	store, err := initStore(cfg, infra.db)
	if err != nil {
		return err
	}

	aggregator, err := initAggregator(cfg, infra.redis)
	if err != nil {
		return err
	}

	eventWriter := initAnalytics(ctx, cfg, infra.clickhouse)

	var sink preferences.EventSink
	if eventWriter != nil {
		sink = eventWriter
	}

	service := preferences.NewService(store, sink)
	engine := preferences.NewEngine(store)

	probes := health.NewChecker()
	if infra.db != nil {
		probes.Add("database", infra.db)
	}
	if infra.redis != nil {
		probes.Add("redis", infra.redis)
	}
	if infra.clickhouse != nil {
		probes.Add("clickhouse", infra.clickhouse)
	}

	server := api.NewServer(cfg.HTTP.Port, aggregator, service, engine, probes)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error("api server failed", zap.Error(err))
		}
	}()

	workerGroup := startBackgroundWorkers(ctx, cfg, store, engine, infra.redis)

	startTelegramBot(ctx, cfg, store, aggregator, service, engine)

	probes.SetReady(true)

	<-ctx.Done()

	probes.SetReady(false)
	return performGracefulShutdown(cfg, server, workerGroup, eventWriter)
}

// initConfig loads configuration and initializes logger
func initConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, nil
}

// initInfrastructure opens the connections the configuration asks for.
// ClickHouse is best effort; Postgres and Redis failures abort startup.
func initInfrastructure(cfg *config.Config) (*infrastructure, error) {
	infra := &infrastructure{}

	if cfg.Storage.Driver == "postgres" {
		db, err := initDatabase(cfg)
		if err != nil {
			return nil, err
		}
		infra.db = db
	}

	if cfg.Redis.Enabled {
		redisClient, err := initRedis(cfg)
		if err != nil {
			infra.close()
			return nil, err
		}
		infra.redis = redisClient
	}

	if cfg.ClickHouse.Enabled {
		ch, err := initClickHouse(cfg)
		if err != nil {
			logger.Warn("ClickHouse not available, read analytics disabled", zap.Error(err))
		} else {
			infra.clickhouse = ch
		}
	}

	return infra, nil
}

// initDatabase initializes database connection with sqlx
func initDatabase(cfg *config.Config) (*database.DB, error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, err
	}

	if cfg.Storage.AutoMigrate {
		if err := database.RunMigrations(db.Conn(), cfg.Storage.MigrationsPath); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return db, nil
}

// initRedis initializes Redis client with Redlock support
func initRedis(cfg *config.Config) (*redisAdapter.Client, error) {
	redisClient, err := redisAdapter.New(&cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Health(ctx); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("redis health check failed: %w", err)
	}

	logger.Info("redis connection established (redlock)",
		zap.String("addr", cfg.Redis.GetAddr()),
	)

	return redisClient, nil
}

// initClickHouse initializes ClickHouse connection
func initClickHouse(cfg *config.Config) (*database.DB, error) {
	ch, err := database.NewClickHouse(cfg.ClickHouse.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := ch.Health(ctx); err != nil {
		ch.Close()
		return nil, fmt.Errorf("ClickHouse ping failed: %w", err)
	}

	logger.Info("ClickHouse connection established",
		zap.String("host", cfg.ClickHouse.Host),
		zap.String("database", cfg.ClickHouse.Database),
	)

	return ch, nil
}

// initStore picks the preference and history store
func initStore(cfg *config.Config, db *database.DB) (users.Store, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		return users.NewRepository(db.DB()), nil
	case "memory":
		logger.Warn("⚠️ using in-memory storage, preferences and history are lost on restart")
		return users.NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// initAggregator wires source, scorer and seen memory together
func initAggregator(cfg *config.Config, redisClient *redisAdapter.Client) (*digest.Aggregator, error) {
	var cache news.BatchCache
	if redisClient != nil {
		cache = redisClient
	}

	source, err := news.NewFromConfig(&cfg.News, cache)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize news source: %w", err)
	}

	scorer, err := sentiment.New(sentiment.Options{
		Strategy:  cfg.Sentiment.Strategy,
		OpenAIKey: cfg.Sentiment.OpenAIKey,
		Model:     cfg.Sentiment.Model,
		Timeout:   cfg.Sentiment.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sentiment scorer: %w", err)
	}

	memory := digest.NewSeenMemory(
		digest.WithLimits(cfg.Digest.MemoryCapacity, cfg.Digest.MemoryRetain),
		digest.WithTTL(cfg.Digest.MemoryTTL),
	)

	aggregator := digest.NewAggregator(source, scorer, memory, digest.Options{
		Country:      cfg.News.Country,
		PageSize:     cfg.News.PageSize,
		HeadlineSize: cfg.News.HeadlineSize,
		HeadlineKeep: cfg.News.HeadlineKeep,
		Concurrency:  cfg.News.FetchConcurrency,
		Lookback:     cfg.News.Lookback,
		FetchTimeout: cfg.News.FetchTimeout,
		ScoreTimeout: cfg.Sentiment.Timeout,
	})

	logger.Info("✅ news aggregator initialized",
		zap.String("source", source.Name()),
		zap.String("scorer", scorer.Name()),
	)

	return aggregator, nil
}

// initAnalytics starts the ClickHouse read event writer
func initAnalytics(ctx context.Context, cfg *config.Config, ch *database.DB) *clickhouse.ReadEventWriter {
	if ch == nil {
		return nil
	}

	repo := clickhouse.NewRepository(ch.DB())
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Warn("failed to prepare ClickHouse schema, read analytics disabled", zap.Error(err))
		return nil
	}

	logger.Info("✅ read analytics enabled",
		zap.Int("batch_size", cfg.ClickHouse.BatchSize),
		zap.Duration("flush_interval", cfg.ClickHouse.FlushInterval),
	)

	return clickhouse.NewReadEventWriter(repo, cfg.ClickHouse.BatchSize, cfg.ClickHouse.FlushInterval)
}

// startBackgroundWorkers starts the periodic auto-adjust worker
func startBackgroundWorkers(
	ctx context.Context,
	cfg *config.Config,
	store users.Store,
	engine *preferences.Engine,
	redisClient *redisAdapter.Client,
) *worker.Group {
	group := worker.NewGroup(ctx)

	if !cfg.Adjust.Enabled {
		logger.Info("auto-adjust worker disabled")
		return group
	}

	var locker redisAdapter.Locker = redisAdapter.NewLocalLocker()
	if redisClient != nil {
		locker = redisClient.Locker()
	}

	group.Go(workers.NewAutoAdjustWorker(
		store,
		engine,
		locker,
		cfg.Adjust.Interval,
		cfg.Adjust.LockTTL,
	), cfg.Adjust.Interval)

	return group
}

// startTelegramBot starts the digest bot when enabled
func startTelegramBot(
	ctx context.Context,
	cfg *config.Config,
	store users.Store,
	aggregator *digest.Aggregator,
	service *preferences.Service,
	engine *preferences.Engine,
) {
	if !cfg.Telegram.Enabled {
		return
	}

	bot, err := telegram.NewBot(cfg.Telegram.BotToken, store, aggregator, service, engine)
	if err != nil {
		logger.Error("failed to create telegram bot", zap.Error(err))
		return
	}

	go func() {
		if err := bot.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("telegram bot error", zap.Error(err))
		}
	}()

	logger.Info("📱 Telegram bot started")
}

// performGracefulShutdown stops serving, then drains workers and analytics
func performGracefulShutdown(
	cfg *config.Config,
	server *api.Server,
	workerGroup *worker.Group,
	eventWriter *clickhouse.ReadEventWriter,
) error {
	logger.Info("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("api server shutdown error", zap.Error(err))
	}

	workerGroup.Stop(cfg.HTTP.ShutdownTimeout)

	if eventWriter != nil {
		if err := eventWriter.Close(); err != nil {
			logger.Error("failed to flush read events", zap.Error(err))
		}
	}

	logger.Info("✅ shutdown complete")
	return nil
}
