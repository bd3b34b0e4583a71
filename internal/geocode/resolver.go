// Package geocode resolves coordinate pairs to place names through a
// persistent cache backed by a rate-limited external reverse geocoder.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-ingest/internal/domain"
	"github.com/couchcryptid/quake-ingest/internal/observability"
)

// Cache is the persisted coordinate-to-name mapping. A failed resolution
// is never stored, so later lookups for the same pair retry the external
// call.
type Cache interface {
	LookupPlace(ctx context.Context, lat, lon float64) (string, bool)
	StorePlace(ctx context.Context, lat, lon float64, name string) error
}

// ReverseClient performs one external reverse-geocode lookup.
type ReverseClient interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

// Resolver implements domain.Resolver: cache hits short-circuit, misses
// perform one external call followed by an unconditional courtesy delay
// required by the upstream acceptable-use policy. It never fails; every
// error degrades to a typed failure Resolution.
type Resolver struct {
	cache   Cache
	client  ReverseClient
	delay   time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a Resolver. Pass a nil clock to use the real clock.
func New(cache Cache, client ReverseClient, delay time.Duration, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Resolver {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Resolver{
		cache:   cache,
		client:  client,
		delay:   delay,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
	}
}

// Resolve returns the place name for a coordinate pair. Cache hits return
// immediately with no external call and no delay.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64) domain.Resolution {
	if name, ok := r.cache.LookupPlace(ctx, lat, lon); ok {
		r.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return domain.Resolution{Name: name, FromCache: true}
	}
	r.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	start := r.clock.Now()
	name, err := r.client.Reverse(ctx, lat, lon)
	r.metrics.GeocodeDuration.Observe(r.clock.Since(start).Seconds())

	if err != nil {
		reason := classify(err)
		r.metrics.GeocodeRequests.WithLabelValues(reason.String()).Inc()
		r.logger.Warn("reverse geocode failed",
			"lat", lat, "lon", lon, "reason", reason.String(), "error", err)
		return domain.Unresolved(reason)
	}
	r.metrics.GeocodeRequests.WithLabelValues("success").Inc()

	if name == "" {
		// The upstream answered but named nothing; still worth caching so
		// the pair is not re-queried.
		name = fmt.Sprintf("unnamed area (%g, %g)", lat, lon)
	}
	if err := r.cache.StorePlace(ctx, lat, lon, name); err != nil {
		r.logger.Warn("geocode cache store failed", "lat", lat, "lon", lon, "error", err)
	}

	// Courtesy delay after every external call, not interruptible by the
	// context: it is bounded, small, and the usage policy asks for it.
	if r.delay > 0 {
		r.clock.Sleep(r.delay)
	}
	return domain.Resolved(name)
}

// classify maps a client error onto the failure taxonomy: timeouts,
// network-level failures, malformed responses, everything else unknown.
func classify(err error) domain.FailureReason {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.FailureTimeout
	}
	if errors.Is(err, domain.ErrMalformed) {
		return domain.FailureMalformed
	}
	if errors.Is(err, domain.ErrUpstream) {
		return domain.FailureNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return domain.FailureTimeout
		}
		return domain.FailureNetwork
	}
	return domain.FailureUnknown
}
