package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher delivers audit events to a Kafka topic. Delivery is
// fire-and-forget behind a circuit breaker: when the broker stays down the
// breaker opens and events are dropped instead of piling up.
type KafkaPublisher struct {
	client  *kgo.Client
	topic   string
	breaker *circuitBreaker
	logger  *slog.Logger
}

// NewKafkaPublisher connects to the brokers and returns a publisher for the
// given topic.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProduceRequestTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaPublisher{
		client:  client,
		topic:   topic,
		breaker: newCircuitBreaker(5, time.Minute),
		logger:  logger,
	}, nil
}

// Publish serializes the event and hands it to the producer. The returned
// error covers serialization and an open circuit only; broker results arrive
// asynchronously and feed the breaker.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	if !p.breaker.allow() {
		return fmt.Errorf("audit publisher circuit open, dropping %s", event.Action)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.DocumentHash.String()),
		Value: value,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.breaker.recordFailure()
			p.logger.Warn("audit event delivery failed",
				"action", string(event.Action), "error", err)
			return
		}
		p.breaker.recordSuccess()
	})
	return nil
}

// Close flushes pending records and releases the client.
func (p *KafkaPublisher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warn("audit publisher flush failed", "error", err)
	}
	p.client.Close()
	return nil
}
