package service

import (
	"context"
	"time"

	"accizard/internal/domain"

	"github.com/google/uuid"
)

//go:generate mockgen -source=service.go -destination=mocks/mock.go
type PinRepository interface {
	Create(ctx context.Context, pin *domain.Pin) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Pin, error)
	Update(ctx context.Context, pin *domain.Pin) error
	Delete(ctx context.Context, id uuid.UUID) error
	Query(ctx context.Context, q domain.PinQuery) ([]domain.Pin, error)
	Coordinates(ctx context.Context) ([]domain.HeatPoint, error)
}

// ChangeFeed is the realtime side of the backing store.
type ChangeFeed interface {
	Publish(ctx context.Context, change domain.PinChange) error
	Subscribe(ctx context.Context) (<-chan domain.PinChange, func(), error)
}

type HeatmapCache interface {
	GetPoints(ctx context.Context) ([]domain.HeatPoint, error)
	SetPoints(ctx context.Context, points []domain.HeatPoint, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type ActivityQueue interface {
	Enqueue(ctx context.Context, event domain.ActivityEvent) error
}

type StatsRepository interface {
	CountByType(ctx context.Context, since time.Time) (map[domain.PinType]int64, error)
}

type StatsService interface {
	GetStats(ctx context.Context, req domain.StatsRequest) (*domain.PinStats, error)
}

type Service struct {
	Pins         *PinStore
	StatsService StatsService
}

func NewService(pins *PinStore, statsService StatsService) *Service {
	return &Service{
		Pins:         pins,
		StatsService: statsService,
	}
}

func (s *Service) GetStats(ctx context.Context, req domain.StatsRequest) (*domain.PinStats, error) {
	return s.StatsService.GetStats(ctx, req)
}
