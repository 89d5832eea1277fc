package producer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afikmenashe/campus-alert/internal/events"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func header(msg kafka.Message, key string) []byte {
	for _, h := range msg.Headers {
		if h.Key == key {
			return h.Value
		}
	}
	return nil
}

func TestNewProducer_Validation(t *testing.T) {
	tests := []struct {
		name    string
		brokers string
		topic   string
		errMsg  string
	}{
		{name: "empty brokers", brokers: "", topic: "emergency.changed", errMsg: "brokers cannot be empty"},
		{name: "empty topic", brokers: "localhost:9092", topic: "", errMsg: "topic cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProducer(tt.brokers, tt.topic)
			assert.EqualError(t, err, tt.errMsg)
		})
	}
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, "emergency.changed")
	occurred := time.Date(2026, 4, 1, 10, 15, 0, 0, time.UTC)

	err := p.Publish(context.Background(), &events.EmergencyChanged{
		EmergencyID:   "EMRG_20260401_101500",
		Action:        events.ActionResolved,
		ScopeType:     "all",
		Targeted:      3,
		Sent:          3,
		OccurredAt:    occurred,
		SchemaVersion: events.SchemaVersion,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, []byte("EMRG_20260401_101500"), msg.Key)
	assert.Equal(t, "RESOLVED", string(header(msg, "action")))
	assert.Equal(t, "1", string(header(msg, "schema_version")))
	assert.Equal(t, ContentType, string(header(msg, "content-type")))

	decoded, err := events.Decode(msg.Value, header(msg, "occurred_at"))
	require.NoError(t, err)
	assert.Equal(t, "EMRG_20260401_101500", decoded.EmergencyID)
	assert.Equal(t, 3, decoded.Sent)
	assert.True(t, decoded.OccurredAt.Equal(occurred))
}

func TestProducer_PublishErrors(t *testing.T) {
	p := NewProducerWithWriter(&fakeWriter{}, "emergency.changed")
	err := p.Publish(context.Background(), &events.EmergencyChanged{Action: "EXPLODED"})
	assert.ErrorContains(t, err, "invalid event action")

	failing := NewProducerWithWriter(&fakeWriter{err: errors.New("broker down")}, "emergency.changed")
	err = failing.Publish(context.Background(), &events.EmergencyChanged{Action: events.ActionTriggered})
	assert.ErrorContains(t, err, "broker down")
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, NewProducerWithWriter(w, "t").Close())
	assert.True(t, w.closed)
}

func TestNoOpPublisher(t *testing.T) {
	var p Publisher = NoOpPublisher{}
	assert.NoError(t, p.Publish(context.Background(), &events.EmergencyChanged{}))
	assert.NoError(t, p.Close())
}
