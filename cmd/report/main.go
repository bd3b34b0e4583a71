// Command report prints a digest of recently persisted events from an
// existing ledger database, without starting the service.
//
// Usage:
//
//	go run ./cmd/report -db quake.db -window 24h -tz Europe/Istanbul
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/quake-ingest/internal/adapter/console"
	"github.com/couchcryptid/quake-ingest/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	dbPath := flag.String("db", "quake.db", "path to the ledger database")
	window := flag.Duration("window", 24*time.Hour, "lookback window")
	tz := flag.String("tz", "", "IANA timezone for rendering, empty for UTC")
	flag.Parse()

	var location *time.Location
	if *tz != "" {
		loc, err := time.LoadLocation(*tz)
		if err != nil {
			return fmt.Errorf("unknown timezone %q: %w", *tz, err)
		}
		location = loc
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(*dbPath, logger, nil)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	events := st.RecentEvents(ctx, time.Now().UTC().Add(-*window))
	console.PrintSummary(os.Stdout, events, *window, location)
	return nil
}
