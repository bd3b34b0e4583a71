package nominatim

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-ingest/internal/domain"
)

const testUserAgent = "quake-ingest-test/1.0"

func testClient(baseURL string) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(baseURL, 5*time.Second, 10, testUserAgent, logger)
}

func TestReverse_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testUserAgent, r.Header.Get("User-Agent"))
		q := r.URL.Query()
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "38.5", q.Get("lat"))
		assert.Equal(t, "27", q.Get("lon"))
		assert.Equal(t, "10", q.Get("zoom"))
		assert.Equal(t, "1", q.Get("addressdetails"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"display_name": "İzmir, Aegean Region, Türkiye"}`))
	}))
	defer srv.Close()

	name, err := testClient(srv.URL).Reverse(context.Background(), 38.5, 27.0)
	require.NoError(t, err)
	assert.Equal(t, "İzmir, Aegean Region, Türkiye", name)
}

func TestReverse_MissingDisplayName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"place_id": 12345}`))
	}))
	defer srv.Close()

	name, err := testClient(srv.URL).Reverse(context.Background(), 38.5, 27.0)
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestReverse_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<gateway timeout>"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Reverse(context.Background(), 38.5, 27.0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformed)
}

func TestReverse_UpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Reverse(context.Background(), 38.5, 27.0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestReverse_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"display_name": "too late"}`))
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewClient(srv.URL, 20*time.Millisecond, 10, testUserAgent, logger)

	_, err := c.Reverse(context.Background(), 38.5, 27.0)
	require.Error(t, err)
}
