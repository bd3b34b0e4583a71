// Package kafka publishes announcements of newly ingested events to a
// sink topic, for downstream consumers that want the stream without
// polling the database.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/quake-ingest/internal/config"
	"github.com/couchcryptid/quake-ingest/internal/domain"
)

// Publisher produces one message per announcement. It implements
// pipeline.Announcer: publish failures are logged, never propagated,
// so a broker outage cannot stall ingestion.
type Publisher struct {
	writer  *kafkago.Writer
	timeout time.Duration
	logger  *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured sink topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, timeout: 10 * time.Second, logger: logger}
}

// Announce publishes one announcement under its own timeout so a slow
// broker cannot hold up the rest of the cycle.
func (p *Publisher) Announce(ctx context.Context, ann domain.Announcement) {
	msg, err := serializeToMessage(ann)
	if err != nil {
		p.logger.Error("announcement serialize failed", "id", ann.Event.ID, "error", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		p.logger.Error("announcement publish failed", "id", ann.Event.ID, "error", err)
	}
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals an announcement into a Kafka message keyed
// by event id, so replays of one event land in one partition.
func serializeToMessage(ann domain.Announcement) (kafkago.Message, error) {
	data, err := json.Marshal(ann)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize announcement: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(ann.Event.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "region", Value: []byte(ann.Event.Region)},
			{Key: "recorded_at", Value: []byte(ann.Event.RecordedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
