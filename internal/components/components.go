package components

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"accizard/internal/api"
	"accizard/internal/api/handlers/http/system"
	"accizard/internal/config"
	"accizard/internal/console"
	"accizard/internal/domain"
	"accizard/internal/geocode"
	"accizard/internal/mapview"
	"accizard/internal/redis"
	"accizard/internal/service"
	"accizard/internal/storage/memory"
	"accizard/internal/storage/postgres"
	"accizard/internal/workers"
	"accizard/pkg/logger"

	"github.com/paulmach/orb"
)

type Components struct {
	logger      *slog.Logger
	HttpServer  *api.Server
	Postgres    *postgres.Postgres
	Redis       *redis.Redis
	Sessions    *console.Registry
	Maintenance *workers.Maintenance
	// Activity is nil when the activity webhook is disabled.
	Activity   *service.ActivitySender
	labelCache *geocode.MemoryLabelCache
}

type storeDeps struct {
	repo  service.PinRepository
	stats service.StatsRepository
}

func InitComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	c := &Components{logger: logger}

	var deps storeDeps
	switch cfg.Store.Driver {
	case "memory":
		logger.Info("Using in-memory pin store")
		mem := memory.NewPinStore()
		deps = storeDeps{repo: mem, stats: mem}
	default:
		logger.Info("Initializing Postgres")
		storage, err := postgres.NewPostgres(ctx, cfg, logger)
		if err != nil {
			logger.Error("Failed to init postgres", slog.Any("error", err))
			return nil, fmt.Errorf("failed to init postgres: %w", err)
		}
		c.Postgres = storage
		deps = storeDeps{repo: storage.Pins(), stats: storage.Stats()}
	}

	var (
		feed       service.ChangeFeed = memory.NewFeed()
		labels     geocode.LabelCache
		pinOptions []service.PinStoreOption
		activityQ  *redis.ActivityQueue
	)
	if cfg.Redis.Enabled {
		logger.Info("Initializing Redis")
		redisClient, err := redis.NewRedis(ctx, cfg, logger)
		if err != nil {
			c.ShutdownAll()
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		c.Redis = redisClient

		feed = redis.NewPinFeed(redisClient.Client, cfg.Redis.FeedChannel, logger)
		labels = redis.NewLabelCache(redisClient, cfg.Redis.GeocodeTTL)
		activityQ = redis.NewActivityQueue(redisClient.Client, cfg.Redis.ActivityQueue)
		pinOptions = append(pinOptions,
			service.WithHeatmapCache(redis.NewHeatmapCache(redisClient), cfg.Redis.HeatmapTTL),
			service.WithActivityQueue(activityQ),
		)
	} else {
		logger.Info("Redis disabled, using in-memory feed and label cache")
		c.labelCache = geocode.NewMemoryLabelCache(cfg.Redis.GeocodeTTL)
		labels = c.labelCache
	}

	provider, err := newProvider(cfg.Geocode)
	if err != nil {
		c.ShutdownAll()
		return nil, fmt.Errorf("failed to init geocode provider: %w", err)
	}
	geo := geocode.NewClient(provider, labels, geocode.Options{
		Search: geocode.SearchOptions{
			Proximity: domain.LatLng{Lat: cfg.Geocode.ProximityLat, Lng: cfg.Geocode.ProximityLng},
			Country:   cfg.Geocode.Country,
			Limit:     cfg.Geocode.Limit,
		},
		Timeout:    cfg.Geocode.Timeout,
		RatePerSec: cfg.Geocode.RatePerSec,
	}, logger)

	pins := service.NewPinStore(deps.repo, feed, logger, pinOptions...)
	statsSvc := service.NewStatsService(deps.stats)
	srv := service.NewService(pins, statsSvc)

	c.Sessions = console.NewRegistry(ctx, pins, geo, console.Options{
		Map: mapview.Config{
			Center:         orb.Point{cfg.Map.CenterLng, cfg.Map.CenterLat},
			Zoom:           cfg.Map.Zoom,
			Style:          cfg.Map.Style,
			InitTimeout:    cfg.Map.InitTimeout,
			SearchControl:  cfg.Map.SearchControl,
			RoutePaddingPx: cfg.Map.RoutePaddingPx,
		},
		Debounce: cfg.Geocode.Debounce,
	}, cfg.Map.SessionIdleTTL, logger)

	c.Maintenance = workers.NewMaintenance(pins, c.Sessions, cfg.Map.HeatmapRefresh, 2, logger)

	if activityQ != nil && !cfg.Activity.Disabled {
		c.Activity = service.NewActivitySender(logger, cfg.Activity, activityQ)
	}

	checks := map[string]system.Pinger{}
	if c.Postgres != nil {
		checks["postgres"] = c.Postgres
	}
	if c.Redis != nil {
		checks["redis"] = c.Redis
	}

	c.HttpServer = api.NewServer(ctx, cfg, logger, api.Deps{
		Service:  srv,
		Lookup:   geo,
		Sessions: c.Sessions,
		Checks:   checks,
	})
	logger.Info("Initialized server",
		slog.String("store", cfg.Store.Driver),
		slog.String("geocode_provider", provider.Name()),
		slog.Bool("activity", c.Activity != nil),
	)

	return c, nil
}

func newProvider(cfg config.GeocodeConfig) (geocode.Provider, error) {
	switch cfg.Provider {
	case "google":
		return geocode.NewGoogleProvider(cfg.AccessToken, cfg.BaseURL, cfg.Timeout)
	default:
		return geocode.NewMapboxProvider(cfg.BaseURL, cfg.AccessToken, cfg.Timeout), nil
	}
}

func SetupLogger(env string) *slog.Logger {
	switch env {
	case "local":
		return logger.SetupPrettySlog()
	case "dev":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	case "prod":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	default:
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	}
}

func (c *Components) ShutdownAll() {
	start := time.Now()
	c.logger.Info("Component shutdown started")

	if c.Sessions != nil {
		c.Sessions.Close()
	}
	if c.labelCache != nil {
		c.labelCache.Close()
	}
	if c.Postgres != nil {
		c.Postgres.Pool.Close()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.logger.Error("Redis close failed", slog.String("err", err.Error()))
		}
	}

	c.logger.Info("All components stopped",
		slog.Duration("latency", time.Since(start)))
}
