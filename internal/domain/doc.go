// Package domain models seismic event records from the EMSC seismic portal.
//
// # Data Source
//
// Events originate from the EMSC FDSNWS event service
// (https://www.seismicportal.eu/fdsnws/event/1/query), queried as GeoJSON
// for a bounding box, minimum magnitude, and time window. Each feature
// exposes at least a stable identifier ("unid"), an event time, latitude,
// longitude, depth, magnitude, and a free-text Flynn region label.
//
// # Identifiers
//
// The upstream "unid" is globally unique and is the primary key of the
// event ledger. Records without one cannot be deduplicated and are skipped
// during ingestion. Once persisted, a record is immutable: it is never
// re-inserted or updated, and the ledger insert is an insert-or-no-op so
// that overlapping poll windows and retries stay idempotent.
//
// # Time Format
//
//	2024-01-01T10:00:00.123456Z
//
// ISO-8601 with an optional trailing "Z" and optional fractional seconds.
// Fractions longer than six digits are truncated (the upstream sometimes
// reports nanosecond noise). Unparsable strings degrade to "time unknown":
// local-time rendering and ingestion-delay computation both produce an
// explicit unavailable label instead of failing the record.
//
// # Place Names
//
// Place names come from a Nominatim-style reverse geocoder keyed by the
// exact coordinate pair. The external service is consulted at most once
// per pair for the lifetime of the geocode cache; failed resolutions are
// never cached, so they are retried the next time the pair appears. The
// upstream usage policy requires an identifying client tag and a minimum
// spacing between requests, enforced by the resolver's courtesy delay.
package domain
