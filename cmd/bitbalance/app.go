package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"bitbalance/internal/adapter/broadcast"
	"bitbalance/internal/adapter/cache"
	"bitbalance/internal/adapter/generator"
	"bitbalance/internal/adapter/handler"
	"bitbalance/internal/adapter/notifier"
	"bitbalance/internal/adapter/provider"
	"bitbalance/internal/adapter/storage"
	"bitbalance/internal/application/pipeline"
	"bitbalance/internal/application/service"
	"bitbalance/internal/application/usecase"
	"bitbalance/internal/domain/model"
	"bitbalance/internal/domain/port"
	"bitbalance/internal/infrastructure/config"
	"bitbalance/internal/infrastructure/logger"
)

// App holds every component the commands share.
type App struct {
	config      *config.Config
	logger      *slog.Logger
	store       *storage.SQLAdapter
	redis       *cache.RedisAdapter
	cache       port.PriceCache
	tracker     *service.Tracker
	broadcaster *broadcast.Broadcaster
	modeService *service.ModeService
	chain       port.PriceProvider
	poller      *service.Poller
	alerts      *service.AlertService
	prices      *usecase.PriceUseCase
}

func loadConfig() (*config.Config, error) {
	path := *configPath
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && path == defaultConfigPath {
		path = ""
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*storage.SQLAdapter, error) {
	store, err := storage.Open(ctx, cfg.Storage.Driver, cfg.StorageDSN())
	if err != nil {
		return nil, err
	}
	if err := store.InitSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// newApp wires storage, cache, price chain and services from cfg.
func newApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("starting bitbalance", "version", version, "storage", cfg.Storage.Driver, "redis", cfg.Redis.Enabled)

	app := &App{
		config:      cfg,
		logger:      log,
		broadcaster: broadcast.New(log),
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.store = store

	if cfg.Redis.Enabled {
		redisAdapter, err := cache.NewRedisAdapter(ctx, cfg.RedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		app.redis = redisAdapter
		app.cache = redisAdapter
	} else {
		app.cache = cache.NewMemoryCache()
	}

	initial, _ := model.ParseDataMode(cfg.Mode.Initial)
	app.modeService = service.NewModeService(initial, log)
	app.tracker = service.NewTracker(store, log)

	sources, err := buildSources(cfg, log)
	if err != nil {
		app.Close()
		return nil, err
	}

	chain, err := pipeline.Build(sources, pipeline.Deps{
		Store:       store,
		Tracker:     app.tracker,
		Cache:       app.cache,
		Broadcaster: app.broadcaster,
		Modes:       app.modeService,
		Test:        generator.NewTestGenerator(log),
		Logger:      log,
	}, pipeline.Options{
		Retry: pipeline.RetryPolicy{
			RetryCount:     cfg.Resilience.RetryCount,
			InitialDelay:   cfg.Resilience.InitialDelay,
			Exponential:    cfg.Resilience.ExponentialBackoff,
			MaxDelay:       cfg.Resilience.MaxDelay,
			AttemptTimeout: cfg.Resilience.AttemptTimeout,
		},
		Breaker: pipeline.BreakerConfig{
			FailureThreshold: cfg.Resilience.BreakerFailureThreshold,
			SuccessThreshold: 1,
			OpenTimeout:      cfg.Resilience.BreakerOpenTimeout,
		},
		CacheTTL: cfg.Cache.TTL,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	app.chain = chain

	app.poller = service.NewPoller(chain, app.tracker, app.broadcaster, service.PollerConfig{
		Interval:           cfg.Poller.Interval,
		MaxSymbolsPerCycle: cfg.Poller.MaxSymbolsPerCycle,
		Workers:            cfg.Poller.Workers,
	}, log)
	app.alerts = service.NewAlertService(store, chain, newNotifier(cfg, log), log)
	app.prices = usecase.NewPriceUseCase(chain, store, app.tracker, log)

	return app, nil
}

func buildSources(cfg *config.Config, log *slog.Logger) ([]pipeline.Stage, error) {
	stages := make([]pipeline.Stage, 0, len(cfg.Providers.Order))
	for _, name := range cfg.Providers.Order {
		src := cfg.Source(name)
		p, err := provider.New(name, provider.Options{
			BaseURL: src.BaseURL,
			APIKey:  src.APIKey,
			Timeout: src.Timeout,
		}, nil, log)
		if err != nil {
			return nil, fmt.Errorf("failed to configure provider %s: %w", name, err)
		}
		stages = append(stages, pipeline.Stage{Name: p.Name(), Provider: p})
	}
	return stages, nil
}

func newNotifier(cfg *config.Config, log *slog.Logger) port.Notifier {
	if cfg.Notifier.Kind == "webhook" {
		return notifier.NewWebhookNotifier(cfg.Notifier.WebhookURL, cfg.Notifier.Timeout, log)
	}
	return notifier.NewLogNotifier(log)
}

func (a *App) routes() handler.Handlers {
	// a nil *RedisAdapter must not become a non-nil Pinger
	var cachePinger handler.Pinger
	if a.redis != nil {
		cachePinger = a.redis
	}

	return handler.Handlers{
		Price: handler.NewPriceHandler(a.prices, a.logger),
		Alert: handler.NewAlertHandler(a.alerts, a.logger),
		Mode:  handler.NewModeHandler(a.modeService, a.logger),
		Health: handler.NewHealthHandler(a.store, cachePinger,
			func() string { return a.poller.State().String() },
			func() string { return a.modeService.GetCurrentMode().String() },
			a.logger),
		WS: handler.NewWSHandler(a.broadcaster, a.logger),
	}
}

func (a *App) Close() {
	if a.poller != nil {
		a.poller.Stop()
	}
	if a.broadcaster != nil {
		a.broadcaster.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("failed to close redis", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("failed to close storage", "error", err)
		}
	}
}
