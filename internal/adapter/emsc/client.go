// Package emsc fetches seismic event records from an EMSC FDSNWS event
// endpoint.
package emsc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/quake-ingest/internal/domain"
	"github.com/couchcryptid/quake-ingest/internal/observability"
)

// Config holds the query filters applied to every fetch.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	MinLat       float64
	MaxLat       float64
	MinLon       float64
	MaxLon       float64
	MinMagnitude float64
}

// Client queries the upstream feed for candidate event records.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cfg        Config
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a feed client with a bounded request timeout.
func NewClient(cfg Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}
}

// Fetch retrieves the raw event records for the window [start, end],
// filtered by the configured bounding box and minimum magnitude.
//
// A timeout or network failure is returned to the caller, which must
// distinguish "nothing happened" from "we couldn't ask". An HTTP-level
// success with an unparsable body degrades to an empty sequence: no
// events this cycle, not an error.
func (c *Client) Fetch(ctx context.Context, start, end time.Time) ([]domain.RawQuake, error) {
	params := url.Values{
		"starttime": {start.UTC().Format("2006-01-02T15:04:05")},
		"endtime":   {end.UTC().Format("2006-01-02T15:04:05")},
		"minlat":    {formatFloat(c.cfg.MinLat)},
		"maxlat":    {formatFloat(c.cfg.MaxLat)},
		"minlon":    {formatFloat(c.cfg.MinLon)},
		"maxlon":    {formatFloat(c.cfg.MaxLon)},
		"minmag":    {formatFloat(c.cfg.MinMagnitude)},
		"format":    {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request: %w", err)
	}

	reqStart := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.FetchDuration.Observe(time.Since(reqStart).Seconds())
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	// The feed answers 204 when the window holds no events.
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("feed status %d: %s", resp.StatusCode, body)
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		c.logger.Error("feed response not parsable, treating as empty", "error", err)
		return nil, nil
	}

	records := make([]domain.RawQuake, 0, len(fc.Features))
	for _, raw := range fc.Features {
		var f feature
		if err := json.Unmarshal(raw, &f); err != nil {
			c.logger.Warn("skipping malformed feed record", "error", err, "raw", string(raw))
			continue
		}
		records = append(records, domain.RawQuake{
			ID:         f.Properties.Unid,
			Time:       f.Properties.Time,
			Lat:        f.Properties.Lat,
			Lon:        f.Properties.Lon,
			DepthKm:    f.Properties.Depth,
			Magnitude:  f.Properties.Mag,
			Region:     f.Properties.FlynnRegion,
			RawPayload: raw,
		})
	}

	c.metrics.EventsFetched.Add(float64(len(records)))
	c.logger.Info("feed fetch complete", "events", len(records),
		"start", start.UTC().Format(time.RFC3339), "end", end.UTC().Format(time.RFC3339))
	return records, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Feed API response types (GeoJSON feature collection).

type featureCollection struct {
	Features []json.RawMessage `json:"features"`
}

type feature struct {
	ID         string     `json:"id"`
	Properties properties `json:"properties"`
}

type properties struct {
	Unid        string   `json:"unid"`
	Time        string   `json:"time"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
	Depth       *float64 `json:"depth"`
	Mag         *float64 `json:"mag"`
	FlynnRegion string   `json:"flynn_region"`
}
