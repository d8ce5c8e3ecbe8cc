package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"accizard/internal/domain"
	"accizard/pkg/e"
	"accizard/pkg/validator"

	"github.com/google/uuid"
)

// PinStore owns the canonical pin collection. Mutations go to the repository
// and are announced on the change feed; subscribers re-query on each event.
type PinStore struct {
	repo     PinRepository
	feed     ChangeFeed
	heat     HeatmapCache
	activity ActivityQueue
	logger   *slog.Logger
	heatTTL  time.Duration
	now      func() time.Time
	live     atomic.Int64
}

type PinStoreOption func(*PinStore)

func WithHeatmapCache(c HeatmapCache, ttl time.Duration) PinStoreOption {
	return func(s *PinStore) {
		s.heat = c
		s.heatTTL = ttl
	}
}

func WithActivityQueue(q ActivityQueue) PinStoreOption {
	return func(s *PinStore) { s.activity = q }
}

func NewPinStore(repo PinRepository, feed ChangeFeed, logger *slog.Logger, opts ...PinStoreOption) *PinStore {
	s := &PinStore{
		repo:    repo,
		feed:    feed,
		logger:  logger,
		heatTTL: 5 * time.Minute,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PinStore) Create(ctx context.Context, data domain.CreatePinData, by domain.Operator) (uuid.UUID, error) {
	const op = "service.PinStore.Create"

	data.Title = strings.TrimSpace(data.Title)
	data.LocationName = strings.TrimSpace(data.LocationName)
	if err := validator.Validate(data); err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	pin := &domain.Pin{
		ID:            uuid.New(),
		Type:          data.Type,
		Title:         data.Title,
		Latitude:      *data.Latitude,
		Longitude:     *data.Longitude,
		LocationName:  data.LocationName,
		ReportID:      data.ReportID,
		CreatedAt:     s.now(),
		CreatedBy:     by.ID,
		CreatedByName: by.Name,
	}
	pin.Normalize()

	if err := s.repo.Create(ctx, pin); err != nil {
		s.logger.Error("pin create failed", slog.String("op", op), slog.Any("error", err))
		return uuid.Nil, storeErr(op, err)
	}

	s.logger.Info("pin created",
		slog.String("id", pin.ID.String()),
		slog.String("type", string(pin.Type)),
		slog.String("created_by", by.ID),
	)
	s.afterMutation(ctx, domain.PinCreated, pin, by)
	return pin.ID, nil
}

// Update applies a partial patch. The type of a pin linked to a report is
// locked and any attempt to change it is ignored.
func (s *PinStore) Update(ctx context.Context, id uuid.UUID, patch domain.UpdatePinData, by domain.Operator) error {
	const op = "service.PinStore.Update"

	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		patch.Title = &t
	}
	if patch.LocationName != nil {
		l := strings.TrimSpace(*patch.LocationName)
		patch.LocationName = &l
	}
	if err := validator.Validate(patch); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	pin, err := s.repo.Get(ctx, id)
	if err != nil {
		return storeErr(op, err)
	}
	if patch.Empty() {
		return nil
	}

	if patch.Type != nil {
		if pin.HasReport() && *patch.Type != pin.Type {
			s.logger.Warn("type change ignored for report-linked pin",
				slog.String("id", id.String()),
				slog.String("report_id", *pin.ReportID),
				slog.String("requested", string(*patch.Type)),
			)
		} else {
			pin.Type = *patch.Type
		}
	}
	if patch.Title != nil {
		pin.Title = *patch.Title
	}
	if patch.Latitude != nil {
		pin.Latitude = *patch.Latitude
	}
	if patch.Longitude != nil {
		pin.Longitude = *patch.Longitude
	}
	if patch.LocationName != nil {
		pin.LocationName = *patch.LocationName
	}
	pin.Normalize()
	pin.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, pin); err != nil {
		s.logger.Error("pin update failed", slog.String("op", op), slog.String("id", id.String()), slog.Any("error", err))
		return storeErr(op, err)
	}

	s.afterMutation(ctx, domain.PinUpdated, pin, by)
	return nil
}

// Delete removes a pin. Deleting an unknown id is an error.
func (s *PinStore) Delete(ctx context.Context, id uuid.UUID, by domain.Operator) error {
	const op = "service.PinStore.Delete"

	pin, err := s.repo.Get(ctx, id)
	if err != nil {
		return storeErr(op, err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("pin delete failed", slog.String("op", op), slog.String("id", id.String()), slog.Any("error", err))
		return storeErr(op, err)
	}

	s.logger.Info("pin deleted", slog.String("id", id.String()), slog.String("deleted_by", by.ID))
	s.afterMutation(ctx, domain.PinDeleted, pin, by)
	return nil
}

func (s *PinStore) Get(ctx context.Context, id uuid.UUID) (*domain.Pin, error) {
	const op = "service.PinStore.Get"

	pin, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, storeErr(op, err)
	}
	pin.Normalize()
	return pin, nil
}

// List is a one-shot read under the same predicate Subscribe uses.
func (s *PinStore) List(ctx context.Context, filter domain.PinFilter) ([]domain.Pin, error) {
	const op = "service.PinStore.List"

	pins, err := s.repo.Query(ctx, filter.Query())
	if err != nil {
		return nil, storeErr(op, err)
	}
	return applySearch(pins, filter), nil
}

// Coordinates returns the full unfiltered coordinate set, served from the
// heatmap cache when present.
func (s *PinStore) Coordinates(ctx context.Context) ([]domain.HeatPoint, error) {
	const op = "service.PinStore.Coordinates"

	if s.heat != nil {
		points, err := s.heat.GetPoints(ctx)
		if err != nil {
			s.logger.Warn("heatmap cache read failed", slog.Any("error", err))
		} else if points != nil {
			return points, nil
		}
	}

	points, err := s.repo.Coordinates(ctx)
	if err != nil {
		return nil, storeErr(op, err)
	}

	if s.heat != nil {
		if err := s.heat.SetPoints(ctx, points, s.heatTTL); err != nil {
			s.logger.Warn("heatmap cache write failed", slog.Any("error", err))
		}
	}
	return points, nil
}

// RefreshCoordinates rebuilds the heatmap cache from the repository.
func (s *PinStore) RefreshCoordinates(ctx context.Context) (int, error) {
	const op = "service.PinStore.RefreshCoordinates"

	points, err := s.repo.Coordinates(ctx)
	if err != nil {
		return 0, storeErr(op, err)
	}
	if s.heat != nil {
		if err := s.heat.SetPoints(ctx, points, s.heatTTL); err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
	}
	return len(points), nil
}

func (s *PinStore) afterMutation(ctx context.Context, action domain.PinChangeOp, pin *domain.Pin, by domain.Operator) {
	change := domain.PinChange{Op: action, ID: pin.ID, At: s.now()}
	if err := s.feed.Publish(ctx, change); err != nil {
		s.logger.Error("publish pin change failed", slog.String("id", pin.ID.String()), slog.Any("error", err))
	}

	if s.heat != nil {
		if err := s.heat.Invalidate(ctx); err != nil {
			s.logger.Warn("heatmap cache invalidate failed", slog.Any("error", err))
		}
	}

	if s.activity != nil {
		ev := domain.ActivityEvent{
			Action:       action,
			PinID:        pin.ID,
			PinTitle:     pin.Title,
			OperatorID:   by.ID,
			OperatorName: by.Name,
			At:           change.At,
		}
		if err := s.activity.Enqueue(ctx, ev); err != nil {
			s.logger.Error("enqueue activity failed", slog.Any("error", err))
		}
	}
}

func applySearch(pins []domain.Pin, filter domain.PinFilter) []domain.Pin {
	out := make([]domain.Pin, 0, len(pins))
	for _, p := range pins {
		p.Normalize()
		if filter.MatchesSearch(p) {
			out = append(out, p)
		}
	}
	return out
}

// storeErr keeps the error kinds callers branch on and classifies everything
// else as a persistence failure.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, e.ErrNotFound),
		errors.Is(err, e.ErrPersistence),
		errors.Is(err, e.ErrValidation),
		errors.Is(err, e.ErrPermissionDenied),
		errors.Is(err, e.ErrCanceled),
		errors.Is(err, e.ErrDeadline):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, e.ErrPersistence, err)
	}
}
