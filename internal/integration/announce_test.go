//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/quake-ingest/internal/adapter/emsc"
	"github.com/couchcryptid/quake-ingest/internal/adapter/kafka"
	"github.com/couchcryptid/quake-ingest/internal/adapter/nominatim"
	"github.com/couchcryptid/quake-ingest/internal/config"
	"github.com/couchcryptid/quake-ingest/internal/domain"
	"github.com/couchcryptid/quake-ingest/internal/geocode"
	"github.com/couchcryptid/quake-ingest/internal/observability"
	"github.com/couchcryptid/quake-ingest/internal/pipeline"
	"github.com/couchcryptid/quake-ingest/internal/store"
)

const testTopic = "quake-events-test"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka launches a single-node Kafka and returns its broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("quake-ingest-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "resolve broker addresses")
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkago.Dial("tcp",
		net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// feedResponse builds a minimal upstream feed body with one event.
func feedResponse(id string) string {
	return fmt.Sprintf(`{"features":[{
		"id": %q,
		"properties": {
			"unid": %q,
			"time": "2024-01-01T10:00:00.0Z",
			"lat": 38.5, "lon": 27.0,
			"depth": 7.0, "mag": 4.2,
			"flynn_region": "WESTERN TURKEY"
		}
	}]}`, id, id)
}

// TestIngestAnnouncesToKafka runs a full cycle against fake upstreams and
// a real broker: one new feed event ends up persisted in SQLite and
// published, fully enriched, on the sink topic.
func TestIngestAnnouncesToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, feedResponse("20240101_0001"))
	}))
	t.Cleanup(feed.Close)

	geocoder := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"display_name": "İzmir, Türkiye"}`)
	}))
	t.Cleanup(geocoder.Close)

	logger := discardLogger()
	metrics := observability.NewMetricsForTesting()

	st, err := store.Open(filepath.Join(t.TempDir(), "quake.db"), logger, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(ctx))

	fetcher := emsc.NewClient(emsc.Config{
		BaseURL: feed.URL,
		Timeout: 10 * time.Second,
		MinLat:  35, MaxLat: 43,
		MinLon: 25, MaxLon: 45,
		MinMagnitude: 2.0,
	}, metrics, logger)

	reverse := nominatim.NewClient(geocoder.URL, 10*time.Second, 10, "quake-ingest-test/1.0", logger)
	resolver := geocode.New(st, reverse, 0, nil, metrics, logger)

	publisher := kafka.NewPublisher(&config.Config{
		KafkaBrokers: []string{broker},
		KafkaTopic:   testTopic,
	}, logger)
	t.Cleanup(func() { _ = publisher.Close() })

	p := pipeline.New(fetcher, st, resolver, []pipeline.Announcer{publisher}, nil, nil, metrics, logger)

	end := time.Now().UTC()
	stats, err := p.RunCycle(ctx, end.Add(-2*time.Hour), end)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.New)

	// The row is in the ledger.
	events := st.RecentEvents(ctx, time.Time{})
	require.Len(t, events, 1)
	assert.Equal(t, "20240101_0001", events[0].ID)
	assert.Equal(t, "İzmir, Türkiye", events[0].PlaceName)

	// The announcement is on the sink topic.
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()
	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	assert.Equal(t, []byte("20240101_0001"), msg.Key)

	var ann domain.Announcement
	require.NoError(t, json.Unmarshal(msg.Value, &ann))
	assert.Equal(t, "20240101_0001", ann.Event.ID)
	assert.Equal(t, "İzmir, Türkiye", ann.Event.PlaceName)
	require.NotNil(t, ann.Event.Magnitude)
	assert.Equal(t, 4.2, *ann.Event.Magnitude)

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "WESTERN TURKEY", headers["region"])
	recordedAt, err := time.Parse(time.RFC3339, headers["recorded_at"])
	require.NoError(t, err, "recorded_at should be valid RFC3339")
	assert.False(t, recordedAt.IsZero(), "recorded_at must carry the ingestion stamp")
	assert.False(t, ann.Event.RecordedAt.IsZero())

	// A second cycle over the overlapping window is a pure no-op.
	stats, err = p.RunCycle(ctx, end.Add(-2*time.Hour), end)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.New)
	assert.Equal(t, 1, stats.Duplicates)
}
