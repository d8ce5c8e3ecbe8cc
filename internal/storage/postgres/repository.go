package postgres

import (
	"context"
	"time"

	"accizard/internal/domain"

	"github.com/google/uuid"
)

type PinRepository interface {
	Create(ctx context.Context, pin *domain.Pin) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Pin, error)
	Update(ctx context.Context, pin *domain.Pin) error
	Delete(ctx context.Context, id uuid.UUID) error
	Query(ctx context.Context, q domain.PinQuery) ([]domain.Pin, error)
	Coordinates(ctx context.Context) ([]domain.HeatPoint, error)
}

type StatsRepository interface {
	CountByType(ctx context.Context, since time.Time) (map[domain.PinType]int64, error)
}

func (p *Postgres) Pins() PinRepository    { return p.Pin }
func (p *Postgres) Stats() StatsRepository { return p.Stat }
