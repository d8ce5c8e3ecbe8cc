package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string         `json:"env"`
	Http     HttpConfig     `json:"http"`
	Store    StoreConfig    `json:"store"`
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
	Geocode  GeocodeConfig  `json:"geocode"`
	Map      MapConfig      `json:"map"`
	APIKey   string         `json:"api_key,omitempty"`
	Activity ActivityConfig `json:"activity"`
}

type HttpConfig struct {
	Port            string        `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

type StoreConfig struct {
	// Driver is "postgres" or "memory".
	Driver string `json:"driver"`
}

type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	Password string `json:"password,omitempty"`
	SSLMode  string `json:"ssl_mode"`

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type RedisConfig struct {
	// Enabled false runs the feed, caches and activity queue in memory.
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db"`

	FeedChannel   string        `json:"feed_channel"`
	HeatmapTTL    time.Duration `json:"heatmap_ttl"`
	GeocodeTTL    time.Duration `json:"geocode_ttl"`
	ActivityQueue string        `json:"activity_queue"`
}

type GeocodeConfig struct {
	// Provider is "mapbox" or "google".
	Provider     string        `json:"provider"`
	AccessToken  string        `json:"access_token,omitempty"`
	BaseURL      string        `json:"base_url"`
	ProximityLat float64       `json:"proximity_lat"`
	ProximityLng float64       `json:"proximity_lng"`
	Country      string        `json:"country"`
	Limit        int           `json:"limit"`
	Timeout      time.Duration `json:"timeout"`
	RatePerSec   float64       `json:"rate_per_sec"`
	Debounce     time.Duration `json:"debounce"`
}

type MapConfig struct {
	CenterLat      float64       `json:"center_lat"`
	CenterLng      float64       `json:"center_lng"`
	Zoom           float64       `json:"zoom"`
	Style          string        `json:"style"`
	InitTimeout    time.Duration `json:"init_timeout"`
	SearchControl  bool          `json:"search_control"`
	HeatmapRefresh time.Duration `json:"heatmap_refresh"`
	RoutePaddingPx int           `json:"route_padding_px"`
	SessionIdleTTL time.Duration `json:"session_idle_ttl"`
}

type ActivityConfig struct {
	URL      string `json:"url"`
	Disabled bool   `json:"disabled"`
}

func Load() (*Config, error) {

	stdLogger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		stdLogger.Warn(".env load warning", slog.Any("error", err))
	}

	cfg := &Config{
		Env: getEnv("ENV", "local"),
		Http: HttpConfig{
			Port:            getEnv("HTTP_PORT", ":8080"),
			ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("HTTP_WRITE_TIMEOUT", 0),
			ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", "postgres"),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "pg-local"),
			Port:            getEnvInt("POSTGRES_PORT", 5432),
			Database:        getEnv("POSTGRES_DB", "accizard"),
			User:            getEnv("POSTGRES_USER", "postgres"),
			Password:        getEnv("POSTGRES_PASSWORD", "postgres"),
			SSLMode:         getEnv("POSTGRES_SSL_MODE", "disable"),
			MaxConns:        20,
			MinConns:        1,
			MaxConnLifetime: 1 * time.Hour,
		},
		Redis: RedisConfig{
			Enabled:       getEnvBool("REDIS_ENABLED", true),
			Addr:          getEnv("REDIS_ADDR", "redis-local:6379"),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvInt("REDIS_DB", 0),
			FeedChannel:   getEnv("REDIS_FEED_CHANNEL", "pins:changes"),
			HeatmapTTL:    getEnvDuration("REDIS_HEATMAP_TTL", 5*time.Minute),
			GeocodeTTL:    getEnvDuration("REDIS_GEOCODE_TTL", 24*time.Hour),
			ActivityQueue: getEnv("REDIS_ACTIVITY_QUEUE", "activity:queue"),
		},
		Geocode: GeocodeConfig{
			Provider:     getEnv("GEOCODE_PROVIDER", "mapbox"),
			AccessToken:  getEnv("GEOCODE_ACCESS_TOKEN", ""),
			BaseURL:      getEnv("GEOCODE_BASE_URL", ""),
			ProximityLat: getEnvFloat("GEOCODE_PROXIMITY_LAT", 14.1122),
			ProximityLng: getEnvFloat("GEOCODE_PROXIMITY_LNG", 121.5569),
			Country:      getEnv("GEOCODE_COUNTRY", "ph"),
			Limit:        getEnvInt("GEOCODE_LIMIT", 5),
			Timeout:      getEnvDuration("GEOCODE_TIMEOUT", 8*time.Second),
			RatePerSec:   getEnvFloat("GEOCODE_RATE_PER_SEC", 10),
			Debounce:     getEnvDuration("GEOCODE_DEBOUNCE", 300*time.Millisecond),
		},
		Map: MapConfig{
			CenterLat:      getEnvFloat("MAP_CENTER_LAT", 14.1122),
			CenterLng:      getEnvFloat("MAP_CENTER_LNG", 121.5569),
			Zoom:           getEnvFloat("MAP_ZOOM", 13),
			Style:          getEnv("MAP_STYLE", "streets"),
			InitTimeout:    getEnvDuration("MAP_INIT_TIMEOUT", 10*time.Second),
			SearchControl:  getEnvBool("MAP_SEARCH_CONTROL", true),
			HeatmapRefresh: getEnvDuration("MAP_HEATMAP_REFRESH", time.Minute),
			RoutePaddingPx: getEnvInt("MAP_ROUTE_PADDING_PX", 50),
			SessionIdleTTL: getEnvDuration("MAP_SESSION_IDLE_TTL", 2*time.Hour),
		},
		APIKey: getEnv("API_KEY", "super-secret-key"),
		Activity: ActivityConfig{
			URL:      getEnv("ACTIVITY_WEBHOOK_URL", ""),
			Disabled: getEnvBool("ACTIVITY_WEBHOOK_DISABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	stdLogger.Info("Config loaded successfully",
		slog.String("env", cfg.Env),
		slog.String("http_port", cfg.Http.Port),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("postgres_db", cfg.Postgres.Database),
		slog.Bool("redis_enabled", cfg.Redis.Enabled),
		slog.String("redis_addr", cfg.Redis.Addr),
		slog.String("geocode_provider", cfg.Geocode.Provider),
		slog.Bool("activity_disabled", cfg.Activity.Disabled))

	return cfg, nil
}

func (c *Config) Validate() error {

	if c.Http.Port == "" || (len(c.Http.Port) > 0 && c.Http.Port[0] != ':') {
		return errors.New("HTTP_PORT must start with ':' like ':8080'")
	}

	switch c.Store.Driver {
	case "postgres":
		if c.Postgres.Host == "" {
			return errors.New("POSTGRES_HOST required")
		}
	case "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", c.Store.Driver)
	}

	switch c.Geocode.Provider {
	case "mapbox", "google":
	default:
		return fmt.Errorf("GEOCODE_PROVIDER must be mapbox or google, got %q", c.Geocode.Provider)
	}

	if c.Geocode.Limit < 1 || c.Geocode.Limit > 10 {
		return errors.New("GEOCODE_LIMIT must be 1-10")
	}

	if c.Map.CenterLat < -90 || c.Map.CenterLat > 90 || c.Map.CenterLng < -180 || c.Map.CenterLng > 180 {
		return errors.New("MAP_CENTER_LAT/MAP_CENTER_LNG out of range")
	}

	if !c.Activity.Disabled && c.Activity.URL == "" {
		c.Activity.Disabled = true
	}

	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
