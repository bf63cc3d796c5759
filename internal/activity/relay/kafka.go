package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaEmitter produces relay records with franz-go. Produces are synchronous;
// the worker is already off the request path so latency here is acceptable in
// exchange for a definite error signal.
type KafkaEmitter struct {
	client *kgo.Client
	topic  string
}

// NewKafkaEmitter connects to the brokers and ensures the relay topic exists.
func NewKafkaEmitter(brokers []string, topic string) (*KafkaEmitter, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProduceRequestTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}

	return &KafkaEmitter{client: client, topic: topic}, nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	topics, err := adm.ListTopics(ctx)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}
	if topics.Has(topic) {
		return nil
	}
	if _, err := adm.CreateTopic(ctx, -1, -1, nil, topic); err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	return nil
}

// Emit produces one record keyed by organization ID.
func (e *KafkaEmitter) Emit(ctx context.Context, key string, payload []byte) error {
	record := &kgo.Record{
		Topic: e.topic,
		Key:   []byte(key),
		Value: payload,
	}
	return e.client.ProduceSync(ctx, record).FirstErr()
}

// Close flushes and closes the underlying client.
func (e *KafkaEmitter) Close() {
	e.client.Close()
}
