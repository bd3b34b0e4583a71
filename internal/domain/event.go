package domain

import "time"

// RawQuake is a single feed record as returned by the event query, before
// dedup and enrichment. Pointer fields distinguish absent values from
// legitimate zeros; an event on the equator is not an event without
// coordinates.
type RawQuake struct {
	ID        string
	Time      string
	Lat       *float64
	Lon       *float64
	DepthKm   *float64
	Magnitude *float64
	Region    string

	// RawPayload is the original feature JSON, retained so processing
	// failures can be logged with enough context to diagnose.
	RawPayload []byte
}

// QuakeEvent is the enriched, persisted representation of a seismic event.
// Once persisted, a given ID is immutable and never re-inserted.
type QuakeEvent struct {
	ID string `json:"id"`

	// TimeRaw is the upstream time string, stored as-is and never
	// re-validated. EventTime is its parsed form; zero when the upstream
	// string was unparsable.
	TimeRaw   string    `json:"time"`
	EventTime time.Time `json:"-"`

	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	DepthKm   *float64 `json:"depth_km,omitempty"`
	Magnitude *float64 `json:"magnitude,omitempty"`
	Region    string   `json:"region,omitempty"`
	PlaceName string   `json:"place_name,omitempty"`

	// RecordedAt is set by this system at the moment of first
	// persistence. Never upstream-supplied.
	RecordedAt time.Time `json:"recorded_at"`
}

// Announcement pairs a newly persisted event with its display fields.
// All fields are computed before any formatting happens.
type Announcement struct {
	Event     QuakeEvent `json:"event"`
	LocalTime string     `json:"local_time"`

	// DelayMinutes is the ingestion delay, clamped at zero and rounded
	// to one decimal. Nil when the event time is unknown.
	DelayMinutes *float64 `json:"delay_minutes,omitempty"`
}
