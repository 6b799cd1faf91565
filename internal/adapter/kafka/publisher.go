package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/geosphere-warnings/internal/observability"
	"github.com/couchcryptid/geosphere-warnings/internal/sensor"
)

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher exports sensor snapshots to a Kafka topic. Enqueue never
// blocks: if a snapshot is still waiting when a newer one arrives, the
// older one is dropped.
type Publisher struct {
	writer  messageWriter
	pending chan sensor.Snapshot
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewPublisher creates a Kafka producer for the snapshot topic.
func NewPublisher(brokers []string, topic string, metrics *observability.Metrics, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return newPublisher(w, metrics, logger)
}

func newPublisher(w messageWriter, metrics *observability.Metrics, logger *slog.Logger) *Publisher {
	return &Publisher{
		writer:  w,
		pending: make(chan sensor.Snapshot, 1),
		metrics: metrics,
		logger:  logger.With("component", "kafka_publisher"),
		now:     time.Now,
	}
}

// Enqueue schedules snap for publishing, replacing any snapshot not yet sent.
// It is safe to use as a sensor update callback.
func (p *Publisher) Enqueue(snap sensor.Snapshot) {
	for {
		select {
		case p.pending <- snap:
			return
		default:
		}
		select {
		case <-p.pending:
		default:
		}
	}
}

// Run publishes queued snapshots until ctx is cancelled. Write failures are
// logged and counted; the next snapshot is attempted regardless.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-p.pending:
			if err := p.publish(ctx, snap); err != nil {
				p.metrics.PublishErrors.Inc()
				p.logger.Error("publish snapshot", "error", err)
				continue
			}
			p.metrics.SnapshotsPublished.Inc()
			p.logger.Debug("snapshot published", "unique_id", snap.UniqueID, "state", snap.Count)
		}
	}
}

func (p *Publisher) publish(ctx context.Context, snap sensor.Snapshot) error {
	msg, err := serializeSnapshot(snap, p.now())
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeSnapshot marshals a snapshot into a message keyed by the entity's
// unique ID, so a compacted topic keeps the latest state per location.
func serializeSnapshot(snap sensor.Snapshot, publishedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize snapshot: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(snap.UniqueID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "active_warnings", Value: []byte(strconv.Itoa(snap.Count))},
			{Key: "published_at", Value: []byte(publishedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
