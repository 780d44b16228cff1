package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer used by KafkaStream.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter creates a writer for topic on brokers.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
	}
}

// KafkaStream appends every delivery to a Kafka topic for downstream
// consumers such as reporting. User events are keyed by user id so each
// user's events stay ordered within a partition.
type KafkaStream struct {
	w MessageWriter
}

// NewKafkaStream creates a stream on w.
func NewKafkaStream(w MessageWriter) *KafkaStream {
	return &KafkaStream{w: w}
}

// Name implements Sink.
func (k *KafkaStream) Name() string { return "kafka" }

// Deliver writes d as one JSON message.
func (k *KafkaStream) Deliver(ctx context.Context, d Delivery) error {
	value, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode delivery: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(messageKey(d)),
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(d.Event.Type)},
			{Key: "event_id", Value: []byte(d.Event.ID)},
		},
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write event %s: %w", d.Event.ID, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaStream) Close() error {
	return k.w.Close()
}

func messageKey(d Delivery) string {
	if !d.Broadcast && d.UserID != 0 {
		return "user-" + strconv.FormatInt(d.UserID, 10)
	}
	if d.Event.EntityID != 0 {
		return string(d.Event.Type) + "-" + strconv.FormatInt(d.Event.EntityID, 10)
	}
	return d.Event.ID
}

var _ Sink = (*KafkaStream)(nil)
