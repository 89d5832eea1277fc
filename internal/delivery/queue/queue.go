// Package queue hands notifications to an external gateway by publishing
// them to a Kafka topic.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/afikmenashe/campus-alert/internal/notification"
	kafkautil "github.com/afikmenashe/campus-alert/pkg/kafka"
)

// Sender publishes one message per payload, keyed by recipient id so that a
// guardian's messages stay ordered within a partition.
type Sender struct {
	writer kafkautil.MessageWriter
	topic  string
}

// NewSender creates a Kafka-backed sender for topic.
func NewSender(brokers, topic string) (*Sender, error) {
	if err := kafkautil.ValidateProducerParams(brokers, topic); err != nil {
		return nil, err
	}
	brokerList := kafkautil.ParseBrokers(brokers)
	if len(brokerList) == 0 {
		return nil, fmt.Errorf("brokers cannot be empty")
	}

	kafkautil.CreateTopicIfNotExists(brokerList[0], topic)
	return NewSenderWithWriter(kafkautil.NewWriter(brokerList, topic), topic), nil
}

// NewSenderWithWriter creates a sender over an existing writer.
func NewSenderWithWriter(w kafkautil.MessageWriter, topic string) *Sender {
	return &Sender{writer: w, topic: topic}
}

// Type returns the channel name this sender handles.
func (s *Sender) Type() string {
	return "kafka"
}

// Send publishes the payload as JSON.
func (s *Sender) Send(ctx context.Context, p notification.Payload) error {
	value, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(p.RecipientID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "emergency_id", Value: []byte(p.EmergencyID)},
			{Key: "kind", Value: []byte(p.Kind)},
			{Key: "content-type", Value: []byte("application/json")},
		},
		Time: p.Timestamp,
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	slog.Debug("Published notification",
		"topic", s.topic,
		"emergency_id", p.EmergencyID,
		"recipient_id", p.RecipientID,
	)
	return nil
}

// Close closes the underlying writer.
func (s *Sender) Close() error {
	return s.writer.Close()
}
