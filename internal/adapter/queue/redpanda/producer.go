// Package redpanda publishes interview lifecycle events to Redpanda/Kafka.
// Downstream consumers (scoring, notifications, analytics) subscribe to the
// events topic; publishing is best-effort and never blocks a session
// transition.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-interview-engine/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-engine/internal/domain"
)

// TopicInterviewEvents is the Kafka topic for session lifecycle events.
const TopicInterviewEvents = "interview-events"

// Producer wraps a Kafka producer and implements domain.EventPublisher.
type Producer struct {
	client *kgo.Client
	topic  string
}

// NewProducer constructs a Producer and ensures the events topic exists.
func NewProducer(brokers []string) (*Producer, error) {
	return newProducerForTopic(brokers, TopicInterviewEvents)
}

func newProducerForTopic(brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	slog.Info("creating redpanda producer", slog.Any("brokers", brokers), slog.String("topic", topic))

	kotelTracer := kotel.NewTracer(
		kotel.TracerProvider(otel.GetTracerProvider()),
	)
	kotelService := kotel.NewKotel(
		kotel.WithTracer(kotelTracer),
	)

	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1000000),
		kgo.WithHooks(kotelService.Hooks()...),
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("redpanda client: %w", err)
	}

	if err := createTopicIfNotExists(context.Background(), client, topic, 1, 1); err != nil {
		// The topic may already exist or the broker may auto-create it.
		slog.Warn("failed to create topic",
			slog.String("topic", topic), slog.Any("error", err))
	}
	return &Producer{client: client, topic: topic}, nil
}

// PublishSessionEvent implements domain.EventPublisher. The application ID is
// the record key so all events for one session stay ordered on a partition.
func (p *Producer) PublishSessionEvent(ctx domain.Context, ev domain.SessionEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		observability.EventPublishFailuresTotal.Inc()
		return fmt.Errorf("marshal event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(ev.ApplicationID),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "event", Value: []byte(ev.Event)},
			{Key: "application_id", Value: []byte(ev.ApplicationID)},
		},
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		observability.EventPublishFailuresTotal.Inc()
		slog.Error("failed to publish session event",
			slog.String("event", ev.Event),
			slog.String("application_id", ev.ApplicationID),
			slog.Any("error", err))
		return fmt.Errorf("produce: %w", err)
	}
	slog.Debug("session event published",
		slog.String("event", ev.Event),
		slog.String("application_id", ev.ApplicationID))
	return nil
}

// Ping checks broker connectivity.
func (p *Producer) Ping(ctx domain.Context) error {
	if p.client == nil {
		return fmt.Errorf("redpanda client not configured")
	}
	return p.client.Ping(ctx)
}

// Close closes the producer.
func (p *Producer) Close() error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}
