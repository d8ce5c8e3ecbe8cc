package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"accizard/internal/domain"
	"accizard/pkg/e"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PinRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPinRepo(pool *pgxpool.Pool, logger *slog.Logger) *PinRepo {
	return &PinRepo{pool: pool, logger: logger}
}

const pinColumns = `
	id,
	type,
	title,
	ST_Y(geo_point::geometry) AS lat,
	ST_X(geo_point::geometry) AS lng,
	location_name,
	report_id,
	created_at,
	updated_at,
	created_by,
	created_by_name`

func scanPin(row pgx.Row) (domain.Pin, error) {
	var pin domain.Pin
	err := row.Scan(
		&pin.ID,
		&pin.Type,
		&pin.Title,
		&pin.Latitude,
		&pin.Longitude,
		&pin.LocationName,
		&pin.ReportID,
		&pin.CreatedAt,
		&pin.UpdatedAt,
		&pin.CreatedBy,
		&pin.CreatedByName,
	)
	pin.Normalize()
	return pin, err
}

func (p *PinRepo) Create(ctx context.Context, pin *domain.Pin) error {
	const op = "postgres.Pin.Create"

	const query = `
		INSERT INTO pins (id, type, title, geo_point, location_name, report_id,
		                  created_at, updated_at, created_by, created_by_name)
		VALUES ($1, $2, $3, ST_SetSRID(ST_MakePoint($4, $5), 4326), $6, $7, $8, $9, $10, $11)
	`

	if pin.ID == uuid.Nil {
		pin.ID = uuid.New()
	}
	now := time.Now().UTC()
	if pin.CreatedAt.IsZero() {
		pin.CreatedAt = now
	}
	pin.UpdatedAt = now
	pin.Normalize()

	_, err := p.pool.Exec(ctx, query,
		pin.ID,
		pin.Type,
		pin.Title,
		pin.Longitude,
		pin.Latitude,
		pin.LocationName,
		pin.ReportID,
		pin.CreatedAt,
		pin.UpdatedAt,
		pin.CreatedBy,
		pin.CreatedByName,
	)
	if err != nil {
		p.logger.Error("db exec failed",
			slog.String("op", op),
			slog.Any("error", err),
		)
		return e.WrapError(ctx, op, err)
	}

	return nil
}

func (p *PinRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Pin, error) {
	const op = "postgres.Pin.Get"

	query := `SELECT ` + pinColumns + ` FROM pins WHERE id = $1`

	pin, err := scanPin(p.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, e.ErrNotFound)
		}
		p.logger.Error("db queryrow scan failed", slog.String("op", op), slog.Any("error", err), slog.String("id", id.String()))
		return nil, e.WrapError(ctx, op, err)
	}

	return &pin, nil
}

// Update writes every mutable column; last write wins.
func (p *PinRepo) Update(ctx context.Context, pin *domain.Pin) error {
	const op = "postgres.Pin.Update"

	const query = `
		UPDATE pins
		SET type          = $2,
			title         = $3,
			geo_point     = ST_SetSRID(ST_MakePoint($4, $5), 4326),
			location_name = $6,
			updated_at    = $7
		WHERE id = $1
	`

	pin.UpdatedAt = time.Now().UTC()
	pin.Normalize()

	cmd, err := p.pool.Exec(ctx, query,
		pin.ID,
		pin.Type,
		pin.Title,
		pin.Longitude,
		pin.Latitude,
		pin.LocationName,
		pin.UpdatedAt,
	)
	if err != nil {
		p.logger.Error("db exec failed", slog.String("op", op), slog.Any("error", err), slog.String("id", pin.ID.String()))
		return e.WrapError(ctx, op, err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, e.ErrNotFound)
	}

	return nil
}

func (p *PinRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.Pin.Delete"

	const query = `DELETE FROM pins WHERE id = $1`

	cmd, err := p.pool.Exec(ctx, query, id)
	if err != nil {
		p.logger.Error("db exec failed", slog.String("op", op), slog.Any("error", err), slog.String("id", id.String()))
		return e.WrapError(ctx, op, err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, e.ErrNotFound)
	}

	return nil
}

// Query evaluates the store-side predicate: type IN (...) and an inclusive
// created_at range.
func (p *PinRepo) Query(ctx context.Context, q domain.PinQuery) ([]domain.Pin, error) {
	const op = "postgres.Pin.Query"

	var (
		where []string
		args  []any
	)
	if len(q.Types) > 0 {
		types := make([]string, 0, len(q.Types))
		for _, t := range q.Types {
			types = append(types, string(t))
		}
		args = append(args, types)
		where = append(where, fmt.Sprintf("type = ANY($%d)", len(args)))
	}
	if q.CreatedFrom != nil {
		args = append(args, *q.CreatedFrom)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if q.CreatedTo != nil {
		args = append(args, *q.CreatedTo)
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	query := `SELECT ` + pinColumns + ` FROM pins`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		p.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	defer rows.Close()

	pins := make([]domain.Pin, 0, 32)
	for rows.Next() {
		pin, err := scanPin(rows)
		if err != nil {
			p.logger.Error("row scan failed", slog.String("op", op), slog.Any("error", err))
			return nil, e.WrapError(ctx, op, err)
		}
		pins = append(pins, pin)
	}
	if err := rows.Err(); err != nil {
		p.logger.Error("rows err", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}

	return pins, nil
}

// Coordinates returns every pin position regardless of filter, for the heatmap.
func (p *PinRepo) Coordinates(ctx context.Context) ([]domain.HeatPoint, error) {
	const op = "postgres.Pin.Coordinates"

	const query = `
		SELECT ST_Y(geo_point::geometry), ST_X(geo_point::geometry)
		FROM pins
	`

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		p.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	defer rows.Close()

	points := make([]domain.HeatPoint, 0, 64)
	for rows.Next() {
		pt := domain.HeatPoint{Weight: 1}
		if err := rows.Scan(&pt.Lat, &pt.Lng); err != nil {
			p.logger.Error("row scan failed", slog.String("op", op), slog.Any("error", err))
			return nil, e.WrapError(ctx, op, err)
		}
		points = append(points, pt)
	}
	if err := rows.Err(); err != nil {
		p.logger.Error("rows err", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}

	return points, nil
}
