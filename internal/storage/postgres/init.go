package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"accizard/internal/config"
	"accizard/pkg/e"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Postgres struct {
	Pool *pgxpool.Pool
	Pin  PinRepository
	Stat StatsRepository
}

func NewPostgres(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Postgres, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Database,
		cfg.Postgres.SSLMode,
	)

	logger.Info("Connecting to Postgres",
		slog.String("host", cfg.Postgres.Host),
		slog.Int("port", cfg.Postgres.Port),
		slog.String("db", cfg.Postgres.Database),
	)

	configNew, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("Failed to parse pgx config", slog.String("error", err.Error()))
		return nil, e.Wrap("storage.pg.NewPostgres.ParseConfig", err)
	}
	configNew.MaxConns = cfg.Postgres.MaxConns
	configNew.MinConns = cfg.Postgres.MinConns
	configNew.MaxConnLifetime = cfg.Postgres.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, configNew)
	if err != nil {
		logger.Error("Failed to create pgx pool", slog.String("error", err.Error()))
		return nil, e.Wrap("storage.pg.NewPostgres.NewWithConfig", err)
	}

	logger.Info("Pinging Postgres database")
	err = pool.Ping(ctx)
	if err != nil {
		logger.Error("Failed to ping Postgres database", slog.String("error", err.Error()))
		pool.Close()
		return nil, e.Wrap("storage.pg.NewPostgres.Ping", err)
	}
	logger.Info("Connected to Postgres successfully")

	if err := EnsureSchema(ctx, pool); err != nil {
		logger.Error("Failed to ensure schema", slog.String("error", err.Error()))
		pool.Close()
		return nil, e.Wrap("storage.pg.NewPostgres.EnsureSchema", err)
	}

	pg := &Postgres{
		Pool: pool,
		Pin:  NewPinRepo(pool, logger),
		Stat: NewStats(pool, logger),
	}

	logger.Info("Postgres repositories created")
	return pg, nil
}

// EnsureSchema creates the pins table and its indexes if they are missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE EXTENSION IF NOT EXISTS postgis;

		CREATE TABLE IF NOT EXISTS pins (
			id              uuid PRIMARY KEY,
			type            text NOT NULL,
			title           varchar(60) NOT NULL CHECK (title <> ''),
			geo_point       geography(Point, 4326) NOT NULL,
			location_name   text NOT NULL CHECK (location_name <> ''),
			report_id       text,
			created_at      timestamptz NOT NULL,
			updated_at      timestamptz NOT NULL,
			created_by      text NOT NULL DEFAULT '',
			created_by_name text NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_pins_type_created_at ON pins (type, created_at);
		CREATE INDEX IF NOT EXISTS idx_pins_created_at ON pins (created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating pins table: %w", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.Pool.Ping(ctx)
}
