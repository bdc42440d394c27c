package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkmetrics/internal/aggregate"
	"github.com/MrSnakeDoc/linkmetrics/internal/cache"
	"github.com/MrSnakeDoc/linkmetrics/internal/config"
	"github.com/MrSnakeDoc/linkmetrics/internal/entity"
	"github.com/MrSnakeDoc/linkmetrics/internal/httpserver"
	"github.com/MrSnakeDoc/linkmetrics/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkmetrics/internal/index"
	"github.com/MrSnakeDoc/linkmetrics/internal/logger"
	"github.com/MrSnakeDoc/linkmetrics/internal/provider"
	"github.com/MrSnakeDoc/linkmetrics/internal/redis"
	"github.com/MrSnakeDoc/linkmetrics/internal/scheduler"
	redisstore "github.com/MrSnakeDoc/linkmetrics/internal/store/redis"
	sqlstore "github.com/MrSnakeDoc/linkmetrics/internal/store/sqlite"
	"github.com/MrSnakeDoc/linkmetrics/internal/utils"
	"github.com/MrSnakeDoc/linkmetrics/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	store       *sqlstore.Store
	redisClient *goredis.Client
	warmer      *scheduler.CacheWarmer
	refresher   *scheduler.RefreshScheduler
	pruner      *scheduler.MetricPruner
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Durable store first - nothing works without it
	store, err := sqlstore.Open(cfg.DatabasePath, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to open store: %v", err)
		os.Exit(1)
	}

	// Cache tier: redis when configured, in-process LRU otherwise
	var (
		tier        cache.Tier
		sharedCache deps.Pinger
		redisClient *goredis.Client
	)
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		redisClient, err = redis.Connect(context.Background(), redis.Options{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			DB:             cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, loggerClient)
		if err != nil {
			loggerClient.Errorf("Failed to connect to Redis: %v", err)
			os.Exit(1)
		}
		redisTier := redisstore.NewTier(redisClient)
		if cfg.CacheFlushOnStart {
			n, err := redisTier.Flush(context.Background(), "")
			if err != nil {
				loggerClient.Warn("failed to flush redis cache", logger.Error(err))
			} else {
				loggerClient.Info("redis cache flushed", logger.Int("deleted", n))
			}
		}
		tier, sharedCache = redisTier, redisTier
		loggerClient.Info("Redis cache tier initialized successfully")
	default:
		tier = cache.NewMemoryTier(cfg.MemoryCacheSize, cfg.CacheTTL)
		loggerClient.Info("in-memory cache tier initialized",
			logger.Int("size", cfg.MemoryCacheSize))
	}

	resolver := cache.NewResolver(tier, cache.Options{
		TTL:         cfg.CacheTTL,
		NegativeTTL: cfg.CacheNegativeTTL,
		Logger:      loggerClient,
	})
	entities := entity.NewResolver(resolver, store, loggerClient)

	// Providers
	providerCfg, err := provider.NewLoader(cfg.ProvidersFile).Load()
	if err != nil {
		loggerClient.Errorf("Failed to load providers: %v", err)
		os.Exit(1)
	}
	registry := provider.NewDefaultRegistry(providerCfg)
	dispatcher := provider.NewDispatcher(registry, store, provider.DispatcherOptions{
		Limiter:     provider.LimiterFromConfig(providerCfg),
		Invalidator: entities,
		Logger:      loggerClient,
	})
	loggerClient.Info("providers registered",
		logger.Strings("services", registry.Services()),
		logger.Strings("families", registry.Families()))

	aggregator := aggregate.New(resolver, store, dispatcher, aggregate.Options{
		MaxConcurrency: cfg.MaxConcurrency,
		Logger:         loggerClient,
	})

	// Background jobs
	memIndex := index.NewMemoryIndex()
	refreshTrigger := make(chan struct{}, 1)

	refresher := scheduler.NewRefreshScheduler(
		store,
		dispatcher,
		memIndex,
		loggerClient,
		cfg.RefreshInterval,
		refreshTrigger,
	)

	pruner := scheduler.NewMetricPruner(
		store,
		loggerClient,
		cfg.GCInterval,
		cfg.MetricRetention,
	)

	var warmer *scheduler.CacheWarmer
	if cfg.CacheWarmup {
		warmer = scheduler.NewCacheWarmer(store, entities, loggerClient)
	}

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:             loggerClient,
		StartTime:          time.Now(),
		Version:            version.Version,
		Commit:             version.Commit,
		BuildDate:          version.BuildDate,
		GoVersion:          version.GoVersion,
		TimeNow:            time.Now,
		AllowedHosts:       cfg.AllowedHosts,
		AllowedCIDRS:       cfg.AllowedCIDRS,
		TrustProxy:         cfg.TrustProxy,
		RateLimitBurst:     cfg.RateLimitBurst,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RateLimitEntries:   cfg.RateLimitEntries,
		Store:              store,
		Entities:           entities,
		Aggregator:         aggregator,
		Dispatcher:         dispatcher,
		CacheStats:         resolver.Stats,
		SharedCache:        sharedCache,
		MemoryIndex:        memIndex,
		RefreshTrigger:     refreshTrigger,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		store:       store,
		redisClient: redisClient,
		warmer:      warmer,
		refresher:   refresher,
		pruner:      pruner,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting linkmetrics v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Warm the cache before the refresh run rewrites records
	if a.warmer != nil {
		if err := a.warmer.Warm(ctx); err != nil {
			a.logger.Warn("failed to warm cache on startup, will resolve lazily",
				logger.Error(err))
		}
	}

	// Start refresh scheduler (first run starts immediately)
	if err := a.refresher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start refresh scheduler: %w", err)
	}
	a.logger.Info("refresh scheduler started",
		logger.Duration("interval", a.cfg.RefreshInterval))

	// Start metric pruner
	if err := a.pruner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start metric pruner: %w", err)
	}
	a.logger.Info("metric pruner started",
		logger.Duration("interval", a.cfg.GCInterval),
		logger.Duration("retention", a.cfg.MetricRetention))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	a.refresher.Stop()
	a.pruner.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if a.redisClient != nil {
		utils.MustClose(a.redisClient, "redis", a.logger)
	}
	utils.MustClose(a.store, "store", a.logger)

	a.logger.Info("✅ linkmetrics stopped cleanly")
	_ = a.logger.Sync()
	return nil
}
