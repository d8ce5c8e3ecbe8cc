package service

import (
	"context"
	"fmt"
	"time"

	"accizard/internal/domain"
	"accizard/pkg/validator"
)

type statsService struct {
	repo StatsRepository
	now  func() time.Time
}

func NewStatsService(repo StatsRepository) StatsService {
	return &statsService{repo: repo, now: time.Now}
}

func (s *statsService) GetStats(ctx context.Context, req domain.StatsRequest) (*domain.PinStats, error) {
	minutes := req.Minutes
	if minutes == 0 {
		minutes = 60
	}
	if err := validator.Validate(domain.StatsRequest{Minutes: minutes}); err != nil {
		return nil, fmt.Errorf("service.Stats.GetStats: %w", err)
	}

	since := s.now().Add(-time.Duration(minutes) * time.Minute)
	counts, err := s.repo.CountByType(ctx, since)
	if err != nil {
		return nil, storeErr("service.Stats.GetStats", err)
	}

	stats := &domain.PinStats{
		ByType:  make(map[domain.PinType]int64, len(counts)),
		Minutes: minutes,
	}
	for typ, n := range counts {
		stats.ByType[typ] = n
		stats.Total += n
		if typ.IsFacility() {
			stats.Facilities += n
		} else {
			stats.Accidents += n
		}
	}
	return stats, nil
}
