// Package store provides SQLite-backed durable storage for the event
// ledger and the geocode cache. The ledger is the single source of truth
// for "this event has been processed"; the cache guarantees at most one
// external geocode lookup per exact coordinate pair.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"

	"github.com/couchcryptid/quake-ingest/internal/domain"
)

// Store wraps a SQLite database holding the events and geocode_cache tables.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	clock  clockwork.Clock
}

// Open opens (or creates) a SQLite database at the given path and
// configures WAL mode. Pass a nil clock to use the real clock.
func Open(path string, logger *slog.Logger, clock clockwork.Clock) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite exec %s: %w", pragma, err)
		}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{db: db, logger: logger, clock: clock}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	event_time  TEXT NOT NULL,
	lat         REAL NOT NULL,
	lon         REAL NOT NULL,
	depth_km    REAL,
	magnitude   REAL,
	region      TEXT,
	place_name  TEXT,
	recorded_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS geocode_cache (
	lat  REAL NOT NULL,
	lon  REAL NOT NULL,
	name TEXT NOT NULL,
	PRIMARY KEY (lat, lon)
);

CREATE INDEX IF NOT EXISTS idx_events_event_time ON events(event_time);
CREATE INDEX IF NOT EXISTS idx_geocode_cache_lat_lon ON geocode_cache(lat, lon);
`

// Migrate creates the tables and indexes if they do not exist. A failure
// here is fatal at bootstrap; the service cannot run without its ledger.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, migration); err != nil {
		return fmt.Errorf("sqlite migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EventExists reports whether a record with the given identifier is
// already persisted. An empty identifier is "not existing" without
// querying storage, and storage errors degrade to false: both fail
// closed to "new", never to "duplicate".
func (s *Store) EventExists(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM events WHERE id = ? LIMIT 1`, id,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		s.logger.Error("ledger existence check failed", "event_id", id, "error", err)
		return false
	}
	return true
}

// InsertEvent persists one record, insert-or-no-op keyed by id, so a
// duplicate race between overlapping cycles or a retry after a crash
// degrades to a silent no-op. Identifier, raw event time and both
// coordinates are mandatory: a record missing any of them is rejected
// and logged, never stored partially. RecordedAt is taken from the
// event when set, otherwise stamped here at first persistence.
func (s *Store) InsertEvent(ctx context.Context, ev domain.QuakeEvent) error {
	if err := requiredFields(ev); err != nil {
		s.logger.Warn("event insert rejected", "event_id", ev.ID, "error", err)
		return err
	}

	recordedAt := ev.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = s.clock.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO events
			(id, event_time, lat, lon, depth_km, magnitude, region, place_name, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.TimeRaw, *ev.Lat, *ev.Lon,
		nullableFloat(ev.DepthKm), nullableFloat(ev.Magnitude),
		ev.Region, ev.PlaceName, recordedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", ev.ID, err)
	}
	return nil
}

// RecentEvents returns all records with an event time at or after the
// cutoff, newest first, for reporting. Storage errors during this read
// degrade to an empty sequence rather than failing the caller.
func (s *Store) RecentEvents(ctx context.Context, cutoff time.Time) []domain.QuakeEvent {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_time, lat, lon, depth_km, magnitude, region, place_name, recorded_at
		FROM events
		WHERE event_time >= ?
		ORDER BY event_time DESC`,
		cutoff.UTC().Format("2006-01-02T15:04:05"),
	)
	if err != nil {
		s.logger.Error("ledger read failed", "error", err)
		return nil
	}
	defer rows.Close()

	var events []domain.QuakeEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			s.logger.Error("ledger row scan failed", "error", err)
			return nil
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("ledger read failed", "error", err)
		return nil
	}
	return events
}

// LookupPlace returns the cached place name for the exact coordinate
// pair. Absence is not an error; storage errors degrade to a miss.
func (s *Store) LookupPlace(ctx context.Context, lat, lon float64) (string, bool) {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM geocode_cache WHERE lat = ? AND lon = ?`, lat, lon,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false
	}
	if err != nil {
		s.logger.Error("geocode cache read failed", "lat", lat, "lon", lon, "error", err)
		return "", false
	}
	return name, true
}

// StorePlace caches a resolved place name for the exact coordinate pair,
// insert-or-no-op. An empty name is rejected: failed resolutions are
// never cached, so they are retried on the next occurrence of the pair.
func (s *Store) StorePlace(ctx context.Context, lat, lon float64, name string) error {
	if name == "" {
		return errors.New("refusing to cache an empty place name")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO geocode_cache (lat, lon, name) VALUES (?, ?, ?)`,
		lat, lon, name,
	)
	if err != nil {
		return fmt.Errorf("store place (%g, %g): %w", lat, lon, err)
	}
	return nil
}

// requiredFields rejects partial rows before they reach the ledger.
// The raw time is stored as-is and not re-validated here; only its
// presence is required.
func requiredFields(ev domain.QuakeEvent) error {
	switch {
	case ev.ID == "":
		return errors.New("event missing identifier")
	case ev.TimeRaw == "":
		return errors.New("event missing time")
	case ev.Lat == nil:
		return errors.New("event missing latitude")
	case ev.Lon == nil:
		return errors.New("event missing longitude")
	}
	return nil
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func scanEvent(rows *sql.Rows) (domain.QuakeEvent, error) {
	var ev domain.QuakeEvent
	var lat, lon float64
	var depth, mag sql.NullFloat64
	var region, place sql.NullString
	var recordedAt string

	if err := rows.Scan(&ev.ID, &ev.TimeRaw, &lat, &lon, &depth, &mag, &region, &place, &recordedAt); err != nil {
		return domain.QuakeEvent{}, err
	}

	ev.Lat = &lat
	ev.Lon = &lon
	if depth.Valid {
		ev.DepthKm = &depth.Float64
	}
	if mag.Valid {
		ev.Magnitude = &mag.Float64
	}
	ev.Region = region.String
	ev.PlaceName = place.String

	// Best-effort parses for rendering; failures keep the zero value.
	ev.EventTime, _ = domain.ParseEventTime(ev.TimeRaw)
	if t, err := time.Parse(time.RFC3339, recordedAt); err == nil {
		ev.RecordedAt = t
	}
	return ev, nil
}
