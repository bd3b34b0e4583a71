// Package nominatim implements reverse geocoding against a Nominatim-style
// endpoint. The upstream usage policy requires an identifying User-Agent
// and a minimum spacing between requests; the spacing is enforced by the
// resolver, not here.
package nominatim

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
)

// Client performs single reverse-geocode lookups with a bounded timeout.
type Client struct {
	baseURL    string
	httpClient *http.Client
	zoom       int
	userAgent  string
	logger     *slog.Logger
}

// NewClient creates a reverse-geocoding client. The userAgent tag is
// mandatory under the upstream acceptable-use policy.
func NewClient(baseURL string, timeout time.Duration, zoom int, userAgent string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		zoom:      zoom,
		userAgent: userAgent,
		logger:    logger,
	}
}

// Reverse resolves a coordinate pair to a display name. A missing
// display-name field in an otherwise valid response yields an empty
// string with no error; the caller decides the fallback. Decode failures
// are wrapped with domain.ErrMalformed and non-success statuses with
// domain.ErrUpstream so the resolver can classify them.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	params := url.Values{
		"format":         {"json"},
		"lat":            {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":            {strconv.FormatFloat(lon, 'f', -1, 64)},
		"zoom":           {strconv.Itoa(c.zoom)},
		"addressdetails": {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create geocode request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrUpstream, resp.StatusCode, body)
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMalformed, err)
	}

	if r.DisplayName == "" {
		c.logger.Debug("geocode response had no display name", "lat", lat, "lon", lon)
	}
	return r.DisplayName, nil
}

type response struct {
	DisplayName string `json:"display_name"`
}
