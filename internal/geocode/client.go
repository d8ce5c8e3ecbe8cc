package geocode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"accizard/internal/domain"
	"accizard/pkg/e"

	"golang.org/x/time/rate"
)

const (
	UnknownLocation = "Unknown Location"
	MinQueryLength  = 3
)

// LabelCache remembers reverse-geocoded labels by position.
type LabelCache interface {
	GetLabel(ctx context.Context, lat, lng float64) (string, bool, error)
	SetLabel(ctx context.Context, lat, lng float64, label string) error
}

type Options struct {
	Search     SearchOptions
	Timeout    time.Duration
	RatePerSec float64
}

type Client struct {
	provider Provider
	cache    LabelCache
	limiter  *rate.Limiter
	opts     Options
	logger   *slog.Logger
	offline  atomic.Bool
}

func NewClient(provider Provider, cache LabelCache, opts Options, logger *slog.Logger) *Client {
	limit := rate.Inf
	burst := 1
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
		burst = int(opts.RatePerSec) + 1
	}
	return &Client{
		provider: provider,
		cache:    cache,
		limiter:  rate.NewLimiter(limit, burst),
		opts:     opts,
		logger:   logger.With(slog.String("provider", provider.Name())),
	}
}

// Online is false after a request failed to reach the provider at all and
// true again after the next request that did.
func (c *Client) Online() bool {
	return !c.offline.Load()
}

// Search returns forward-search suggestions; queries under three characters
// return nothing without contacting the provider.
func (c *Client) Search(ctx context.Context, query string) []domain.Suggestion {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < MinQueryLength {
		return []domain.Suggestion{}
	}

	ctx, cancel := c.begin(ctx)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return []domain.Suggestion{}
	}
	out, err := c.provider.Forward(ctx, query, c.opts.Search)
	if c.absorb(ctx, "search", err) {
		return []domain.Suggestion{}
	}
	if out == nil {
		out = []domain.Suggestion{}
	}
	return out
}

// ReverseGeocode returns the most specific place label for the position, or
// UnknownLocation.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) string {
	if c.cache != nil {
		label, ok, err := c.cache.GetLabel(ctx, lat, lng)
		if err != nil {
			c.logger.Warn("label cache read failed", slog.Any("error", err))
		} else if ok {
			return label
		}
	}

	ctx, cancel := c.begin(ctx)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return UnknownLocation
	}
	label, err := c.provider.Reverse(ctx, lat, lng)
	if c.absorb(ctx, "reverse", err) {
		return UnknownLocation
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return UnknownLocation
	}

	if c.cache != nil {
		if err := c.cache.SetLabel(ctx, lat, lng, label); err != nil {
			c.logger.Warn("label cache write failed", slog.Any("error", err))
		}
	}
	return label
}

// ComputeRoute returns the driving route, or nil when it is unavailable.
func (c *Client) ComputeRoute(ctx context.Context, origin, dest domain.LatLng) *domain.Route {
	ctx, cancel := c.begin(ctx)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil
	}
	route, err := c.provider.Directions(ctx, origin, dest)
	if c.absorb(ctx, "directions", err) {
		return nil
	}
	if route == nil || len(route.Geometry) < 2 {
		return nil
	}
	return route
}

// TravelInfo is the popup travel line from origin to dest; without an origin
// or a route it is marked unavailable.
func (c *Client) TravelInfo(ctx context.Context, origin *domain.LatLng, dest domain.LatLng) domain.TravelInfo {
	if origin == nil {
		return domain.TravelInfo{}
	}
	route := c.ComputeRoute(ctx, *origin, dest)
	if route == nil {
		return domain.TravelInfo{}
	}
	return domain.TravelInfo{
		Available:     true,
		DurationLabel: route.DurationLabel,
		DistanceKm:    route.DistanceKm,
		DistanceLabel: FormatDistanceLabel(route.DistanceKm),
	}
}

func (c *Client) begin(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.Timeout > 0 {
		return context.WithTimeout(ctx, c.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

// absorb logs err and records connectivity. It reports whether the caller
// must fall back.
func (c *Client) absorb(ctx context.Context, call string, err error) bool {
	if err == nil {
		c.offline.Store(false)
		return false
	}
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return true
	}

	if isConnectivity(err) {
		c.offline.Store(true)
	}
	c.logger.Warn("geocode call failed",
		slog.String("call", call),
		slog.Any("error", fmt.Errorf("%w: %w", e.ErrGeocodeUnavailable, err)),
	)
	return true
}

func isConnectivity(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
