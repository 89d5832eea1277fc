// Package producer publishes emergency lifecycle events to Kafka.
package producer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/afikmenashe/campus-alert/internal/events"
	kafkautil "github.com/afikmenashe/campus-alert/pkg/kafka"
)

// ContentType is set on every message so consumers know how to decode it.
const ContentType = "application/x-protobuf"

// Publisher is what the coordinator needs from an event sink.
type Publisher interface {
	Publish(ctx context.Context, changed *events.EmergencyChanged) error
	Close() error
}

// Producer wraps a Kafka writer for the emergency.changed topic.
type Producer struct {
	writer kafkautil.MessageWriter
	topic  string
}

// NewProducer creates a Kafka producer with synchronous, at-least-once writes.
func NewProducer(brokers string, topic string) (*Producer, error) {
	if err := kafkautil.ValidateProducerParams(brokers, topic); err != nil {
		return nil, err
	}
	brokerList := kafkautil.ParseBrokers(brokers)
	if len(brokerList) == 0 {
		return nil, fmt.Errorf("brokers cannot be empty")
	}

	slog.Info("Initializing Kafka producer",
		"brokers", brokerList,
		"topic", topic,
	)
	kafkautil.CreateTopicIfNotExists(brokerList[0], topic)

	return NewProducerWithWriter(kafkautil.NewWriter(brokerList, topic), topic), nil
}

// NewProducerWithWriter creates a producer over an existing writer.
func NewProducerWithWriter(w kafkautil.MessageWriter, topic string) *Producer {
	return &Producer{writer: w, topic: topic}
}

// Publish encodes the event and writes it keyed by emergency id, so all events
// of one emergency land on the same partition in order.
func (p *Producer) Publish(ctx context.Context, changed *events.EmergencyChanged) error {
	if !events.ValidAction(changed.Action) {
		return fmt.Errorf("invalid event action %q", changed.Action)
	}

	payload, err := changed.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode emergency changed event: %w", err)
	}
	ts, err := events.EncodeTime(changed.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to encode event time: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(changed.EmergencyID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "schema_version", Value: []byte(strconv.Itoa(changed.SchemaVersion))},
			{Key: "action", Value: []byte(changed.Action)},
			{Key: "emergency_id", Value: []byte(changed.EmergencyID)},
			{Key: "content-type", Value: []byte(ContentType)},
			{Key: "occurred_at", Value: ts},
		},
		Time: changed.OccurredAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	slog.Info("Published emergency changed event",
		"emergency_id", changed.EmergencyID,
		"action", changed.Action,
		"topic", p.topic,
	)
	return nil
}

// Close gracefully closes the Kafka writer.
func (p *Producer) Close() error {
	slog.Info("Closing Kafka producer", "topic", p.topic)
	return p.writer.Close()
}

// NoOpPublisher drops every event. It is used when no brokers are configured.
type NoOpPublisher struct{}

func (NoOpPublisher) Publish(context.Context, *events.EmergencyChanged) error { return nil }
func (NoOpPublisher) Close() error { return nil }

var (
	_ Publisher = (*Producer)(nil)
	_ Publisher = NoOpPublisher{}
)
