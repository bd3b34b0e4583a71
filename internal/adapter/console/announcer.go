// Package console renders ingested events for a human watching the
// process output.
package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/quake-ingest/internal/domain"
)

// Announcer prints a formatted block per newly ingested event. Safe for
// use from a single pipeline goroutine; the mutex guards against a
// future second announcer sharing the writer.
type Announcer struct {
	mu     sync.Mutex
	w      io.Writer
	logger *slog.Logger
}

// NewAnnouncer creates a console Announcer writing to w.
func NewAnnouncer(w io.Writer, logger *slog.Logger) *Announcer {
	return &Announcer{w: w, logger: logger}
}

// Announce writes one event block. Every field is computed before the
// first byte is written so a partial block never appears.
func (a *Announcer) Announce(_ context.Context, ann domain.Announcement) {
	ev := ann.Event

	var b strings.Builder
	fmt.Fprintf(&b, "%s quake: %s\n", magnitudeLabel(ev.Magnitude), ev.PlaceName)
	fmt.Fprintf(&b, "  time:   %s (delay %s)\n", ann.LocalTime, delayLabel(ann.DelayMinutes))
	fmt.Fprintf(&b, "  coords: %s\n", coordsLabel(ev.Lat, ev.Lon))
	fmt.Fprintf(&b, "  depth:  %s\n", depthLabel(ev.DepthKm))
	if ev.Region != "" {
		fmt.Fprintf(&b, "  region: %s\n", ev.Region)
	}
	fmt.Fprintf(&b, "  id:     %s\n", ev.ID)

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := io.WriteString(a.w, b.String()); err != nil {
		a.logger.Warn("console announce failed", "id", ev.ID, "error", err)
	}
}

// PrintSummary writes a one-line-per-event digest of recently persisted
// events, shown once at startup.
func PrintSummary(w io.Writer, events []domain.QuakeEvent, window time.Duration, loc *time.Location) {
	if len(events) == 0 {
		fmt.Fprintf(w, "no events recorded in the last %s\n", window)
		return
	}
	fmt.Fprintf(w, "%d event(s) recorded in the last %s:\n", len(events), window)
	for _, ev := range events {
		fmt.Fprintf(w, "  %s  %-5s %s\n",
			domain.FormatLocalTime(ev.EventTime, loc), magnitudeLabel(ev.Magnitude), ev.PlaceName)
	}
}

func magnitudeLabel(m *float64) string {
	if m == nil {
		return "M?"
	}
	return fmt.Sprintf("M%.1f", *m)
}

func depthLabel(d *float64) string {
	if d == nil {
		return "? km"
	}
	return fmt.Sprintf("%.1f km", *d)
}

func coordsLabel(lat, lon *float64) string {
	if lat == nil || lon == nil {
		return "unknown"
	}
	return fmt.Sprintf("%.4f, %.4f", *lat, *lon)
}

func delayLabel(d *float64) string {
	if d == nil {
		return "unavailable"
	}
	return fmt.Sprintf("%.1f min", *d)
}
