package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/temcen/gamepulse/internal/config"
	"github.com/temcen/gamepulse/pkg/models"
)

const (
	DefaultCatalogEventsTopic = "catalog-events"
	EventCatalogRefreshed     = "catalog.refreshed"
)

type CatalogEvent struct {
	EventID     uuid.UUID               `json:"event_id"`
	Type        string                  `json:"type"`
	SnapshotID  uuid.UUID               `json:"snapshot_id"`
	GameCount   int                     `json:"game_count"`
	SourceCount int                     `json:"source_count"`
	Stats       *models.AggregateResult `json:"stats,omitempty"`
	Timestamp   time.Time               `json:"timestamp"`
}

// NewRefreshedEvent describes a freshly stored snapshot.
func NewRefreshedEvent(snapshot *models.Snapshot) CatalogEvent {
	return CatalogEvent{
		EventID:     uuid.New(),
		Type:        EventCatalogRefreshed,
		SnapshotID:  snapshot.ID,
		GameCount:   len(snapshot.Games),
		SourceCount: snapshot.SourceCount,
		Stats:       snapshot.Stats,
		Timestamp:   time.Now().UTC(),
	}
}

type Publisher interface {
	PublishRefreshed(ctx context.Context, event CatalogEvent) error
	Close() error
}

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *logrus.Logger
}

// NewPublisher returns a Kafka publisher when brokers are configured and a no-op otherwise.
func NewPublisher(cfg *config.Config, logger *logrus.Logger) Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		logger.Info("No Kafka brokers configured, catalog events disabled")
		return NoopPublisher{}
	}

	topic := cfg.Kafka.Topics.CatalogEvents
	if topic == "" {
		topic = DefaultCatalogEventsTopic
	}

	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Kafka.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
		topic:  topic,
		logger: logger,
	}
}

func (p *KafkaPublisher) PublishRefreshed(ctx context.Context, event CatalogEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal catalog event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.SnapshotID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.EventID.String())},
			{Key: "timestamp", Value: []byte(event.Timestamp.Format(time.RFC3339))},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithError(err).WithField("snapshot_id", event.SnapshotID).Error("Failed to publish catalog event")
		return fmt.Errorf("failed to write catalog event to Kafka: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"snapshot_id": event.SnapshotID,
		"event_type":  event.Type,
		"topic":       p.topic,
	}).Info("Catalog event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type NoopPublisher struct{}

func (NoopPublisher) PublishRefreshed(context.Context, CatalogEvent) error { return nil }

func (NoopPublisher) Close() error { return nil }

// BrokerCheck dials the first reachable broker. It returns nil when no brokers are configured.
func BrokerCheck(brokers []string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if len(brokers) == 0 {
			return nil
		}
		var lastErr error
		for _, broker := range brokers {
			conn, err := kafka.DialContext(ctx, "tcp", broker)
			if err != nil {
				lastErr = err
				continue
			}
			return conn.Close()
		}
		return fmt.Errorf("no Kafka broker reachable: %w", lastErr)
	}
}
