package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// KafkaPublisher writes delta events to a Kafka topic, keyed by the pair so
// changes for one (entity, country) stay ordered within a partition.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *zap.Logger
}

// NewKafka connects to the brokers and creates the topic when missing.
func NewKafka(ctx context.Context, brokers []string, topic string, logger *zap.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping kafka: %w", err)
	}

	adm := kadm.NewClient(client)
	if _, err := adm.CreateTopic(ctx, 1, 1, nil, topic); err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("create topic %s: %w", topic, err)
	}

	return &KafkaPublisher{client: client, topic: topic, logger: logger}, nil
}

// Publish produces all events synchronously and fails on the first error.
func (p *KafkaPublisher) Publish(ctx context.Context, evts []Event) error {
	if len(evts) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(evts))
	for _, e := range evts {
		payload, err := Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		records = append(records, &kgo.Record{
			Topic: p.topic,
			Key:   []byte(fmt.Sprintf("%d/%s", e.EntityID, e.Country)),
			Value: payload,
		})
	}

	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce events: %w", err)
	}
	p.logger.Debug("published delta events",
		zap.Int("count", len(evts)),
		zap.String("topic", p.topic))
	return nil
}

func (p *KafkaPublisher) Close() error {
	p.client.Close()
	return nil
}
