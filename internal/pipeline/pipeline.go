// Package pipeline orchestrates one ingest cycle: fetch raw events from
// the feed, discard records already in the ledger, enrich the rest with
// a place name and timing data, persist them, then announce.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-ingest/internal/domain"
	"github.com/couchcryptid/quake-ingest/internal/observability"
)

// ErrFetchFailed marks a cycle that never got a usable feed response.
// The scheduler treats it as routine upstream weather rather than a
// fault in this service.
var ErrFetchFailed = errors.New("feed fetch failed")

// Fetcher reads the raw events that occurred inside a time window.
type Fetcher interface {
	Fetch(ctx context.Context, start, end time.Time) ([]domain.RawQuake, error)
}

// Ledger is the persisted record of everything already ingested.
type Ledger interface {
	EventExists(ctx context.Context, id string) bool
	InsertEvent(ctx context.Context, ev domain.QuakeEvent) error
}

// Announcer delivers a newly persisted event to an output. Delivery is
// best effort; implementations log their own failures.
type Announcer interface {
	Announce(ctx context.Context, a domain.Announcement)
}

// CycleStats summarizes one ingest cycle.
type CycleStats struct {
	Fetched    int
	New        int
	Duplicates int
	Skipped    int
	Failed     int
}

// Pipeline wires the stages of a cycle together.
type Pipeline struct {
	fetcher    Fetcher
	ledger     Ledger
	resolver   domain.Resolver
	announcers []Announcer
	location   *time.Location
	clock      clockwork.Clock
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// New creates a Pipeline. location may be nil, in which case local times
// are announced in UTC. Pass a nil clock to use the real clock.
func New(fetcher Fetcher, ledger Ledger, resolver domain.Resolver, announcers []Announcer,
	location *time.Location, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Pipeline {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		fetcher:    fetcher,
		ledger:     ledger,
		resolver:   resolver,
		announcers: announcers,
		location:   location,
		clock:      clock,
		metrics:    metrics,
		logger:     logger,
	}
}

// RunCycle processes every event the feed reports for [start, end].
// A fetch error aborts the cycle with ErrFetchFailed; per-record
// failures are counted and never abort the cycle.
func (p *Pipeline) RunCycle(ctx context.Context, start, end time.Time) (CycleStats, error) {
	cycleStart := p.clock.Now()

	raws, err := p.fetcher.Fetch(ctx, start, end)
	if err != nil {
		p.metrics.FetchFailures.Inc()
		return CycleStats{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	stats := CycleStats{Fetched: len(raws)}
	for _, raw := range raws {
		p.processRecord(ctx, raw, &stats)
	}

	p.metrics.CycleDuration.Observe(p.clock.Since(cycleStart).Seconds())
	if stats.New > 0 || stats.Failed > 0 {
		p.logger.Info("cycle complete",
			"fetched", stats.Fetched,
			"new", stats.New,
			"duplicates", stats.Duplicates,
			"skipped", stats.Skipped,
			"failed", stats.Failed,
		)
	}
	return stats, nil
}

// processRecord runs one raw event through dedup, enrichment, persistence
// and announcement. A panic is contained to the record so one poisoned
// payload cannot take the cycle down.
func (p *Pipeline) processRecord(ctx context.Context, raw domain.RawQuake, stats *CycleStats) {
	defer func() {
		if r := recover(); r != nil {
			stats.Failed++
			p.metrics.RecordFailures.Inc()
			p.logger.Error("record processing panicked",
				"id", raw.ID, "panic", r, "payload", payloadSnippet(raw.RawPayload))
		}
	}()

	if raw.ID == "" {
		stats.Skipped++
		p.logger.Warn("record without identifier skipped", "payload", payloadSnippet(raw.RawPayload))
		return
	}
	if p.ledger.EventExists(ctx, raw.ID) {
		stats.Duplicates++
		p.metrics.DuplicatesSkipped.Inc()
		return
	}
	if raw.Lat == nil || raw.Lon == nil {
		stats.Skipped++
		p.logger.Warn("record without coordinates skipped",
			"id", raw.ID,
			"reason", domain.FailureNoCoordinates.String(),
			"payload", payloadSnippet(raw.RawPayload))
		return
	}

	ev := domain.QuakeEvent{
		ID:        raw.ID,
		TimeRaw:   raw.Time,
		Lat:       raw.Lat,
		Lon:       raw.Lon,
		DepthKm:   raw.DepthKm,
		Magnitude: raw.Magnitude,
		Region:    raw.Region,
	}
	if t, ok := domain.ParseEventTime(raw.Time); ok {
		ev.EventTime = t
	}

	res := p.resolver.Resolve(ctx, *raw.Lat, *raw.Lon)
	ev.PlaceName = res.PlaceName(*raw.Lat, *raw.Lon)
	ev.RecordedAt = p.clock.Now().UTC()

	if err := p.ledger.InsertEvent(ctx, ev); err != nil {
		stats.Failed++
		p.metrics.RecordFailures.Inc()
		p.logger.Error("event persist failed", "id", ev.ID, "error", err)
		return
	}
	stats.New++
	p.metrics.EventsIngested.Inc()

	// Announce strictly after a successful insert so a persistence
	// failure never produces a phantom announcement.
	ann := domain.Announcement{
		Event:        ev,
		LocalTime:    domain.FormatLocalTime(ev.EventTime, p.location),
		DelayMinutes: domain.DelayMinutes(ev.EventTime, p.clock.Now().UTC()),
	}
	for _, a := range p.announcers {
		a.Announce(ctx, ann)
	}
	p.logger.Info("event ingested", "id", ev.ID, "place", ev.PlaceName, "delay_min", ann.DelayMinutes)
}

// payloadSnippet bounds a raw payload for log output.
func payloadSnippet(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
