// Package eventbus publishes completed ScoringEvents to Kafka/Redpanda for
// external analytics consumers. Best-effort only: a publish failure is
// logged and swallowed, never surfaced as a processing error, matching
// domain.EventPublisher's "never on the critical path of mark_processed"
// contract.
package eventbus

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/quave-io/frida-go/internal/domain"
)

// KafkaPublisher implements domain.EventPublisher over a franz-go client.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

// NewKafkaPublisher constructs a KafkaPublisher. Unlike the durable work
// queue, this producer carries no transactional/exactly-once configuration
// — publication here is a side channel, not the source of truth.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("%w: no kafka brokers configured", domain.ErrConfig)
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchMaxBytes(1_000_000),
		kgo.RequestRetries(3),
	)
	if err != nil {
		return nil, fmt.Errorf("op=eventbus.NewKafkaPublisher: %w: %w", domain.ErrConfig, err)
	}
	return &KafkaPublisher{client: client, topic: topic}, nil
}

// scoringEventRecord is the wire shape published to the scoring events
// topic.
type scoringEventRecord struct {
	TransactionID int64                 `json:"transaction_id"`
	Event         domain.ScoringEvent   `json:"event"`
	Triggered     []domain.TriggeredRule `json:"triggered_rules"`
}

// PublishScoringEvent fires the record asynchronously; the callback only
// logs, it never blocks the caller or returns an error from the broker
// round trip.
func (p *KafkaPublisher) PublishScoringEvent(ctx domain.Context, transactionID int64, event domain.ScoringEvent, triggered []domain.TriggeredRule) error {
	payload, err := json.Marshal(scoringEventRecord{TransactionID: transactionID, Event: event, Triggered: triggered})
	if err != nil {
		return fmt.Errorf("op=eventbus.PublishScoringEvent: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(fmt.Sprintf("%d", transactionID)),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			slog.Warn("scoring event publish failed", slog.Int64("transaction_id", transactionID), slog.Any("error", err))
		}
	})
	return nil
}

// Close releases the client's connections without flushing first; records
// still buffered are not delivered.
func (p *KafkaPublisher) Close() error {
	p.client.Close()
	return nil
}

var _ domain.EventPublisher = (*KafkaPublisher)(nil)
