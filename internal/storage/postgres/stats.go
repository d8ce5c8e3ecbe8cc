package postgres

import (
	"context"
	"log/slog"
	"time"

	"accizard/internal/domain"
	"accizard/pkg/e"

	"github.com/jackc/pgx/v5/pgxpool"
)

type StatsRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewStats(pool *pgxpool.Pool, logger *slog.Logger) *StatsRepo {
	return &StatsRepo{pool: pool, logger: logger}
}

func (p *StatsRepo) CountByType(ctx context.Context, since time.Time) (map[domain.PinType]int64, error) {
	const op = "postgres.Pin.CountByType"

	const query = `
		SELECT type, COUNT(*)
		FROM pins
		WHERE created_at >= $1
		GROUP BY type
	`

	rows, err := p.pool.Query(ctx, query, since)
	if err != nil {
		p.logger.Error("db query failed",
			slog.String("op", op),
			slog.Any("error", err),
			slog.Time("since", since),
		)
		return nil, e.WrapError(ctx, op, err)
	}
	defer rows.Close()

	counts := make(map[domain.PinType]int64)
	for rows.Next() {
		var (
			t   domain.PinType
			cnt int64
		)
		if err := rows.Scan(&t, &cnt); err != nil {
			p.logger.Error("row scan failed", slog.String("op", op), slog.Any("error", err))
			return nil, e.WrapError(ctx, op, err)
		}
		counts[t] = cnt
	}
	if err := rows.Err(); err != nil {
		p.logger.Error("rows err", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}

	return counts, nil
}
