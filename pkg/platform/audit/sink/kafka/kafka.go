// Package kafka publishes audit events to a Kafka topic via franz-go.
// Produces are fire-and-forget: the delivery callback only logs failures.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"tenderwatch/pkg/platform/audit"
)

// Sink delivers audit events to a Kafka topic.
type Sink struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// New constructs a Kafka-backed audit sink.
func New(brokers []string, topic string, logger *slog.Logger) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Sink{
		client: client,
		topic:  topic,
		logger: logger,
	}, nil
}

func (s *Sink) Publish(event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.Action),
		Value: payload,
	}
	s.client.Produce(context.Background(), record, func(_ *kgo.Record, err error) {
		if err != nil {
			s.logger.Warn("audit event delivery failed",
				"topic", s.topic,
				"action", event.Action,
				"error", err,
			)
		}
	})
	return nil
}

func (s *Sink) Close() error {
	s.client.Close()
	return nil
}
