// Package kafka streams task lifecycle events to a Kafka topic.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aiadmin/ai-admin/internal/events"
	"github.com/segmentio/kafka-go"
)

// DefaultTopic receives task events when none is configured.
const DefaultTopic = "ai-admin.task-events"

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter creates a Kafka writer for topic. Messages are keyed by task ID so
// every event of one task lands on the same partition, in order.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		MaxAttempts:            3,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		AllowAutoTopicCreation: true,
	}
}

// Publisher is an events.EventHandler that writes each event to Kafka.
type Publisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(writer messageWriter, logger *slog.Logger) *Publisher {
	return &Publisher{
		writer: writer,
		logger: logger.With("component", "kafka_publisher"),
	}
}

// HandleEvent publishes the event.
func (p *Publisher) HandleEvent(ctx context.Context, event *events.TaskEvent) error {
	payload, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("marshal task event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TaskID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "task_type", Value: []byte(event.Kind)},
		},
		Time: event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("kafka publish %s for %s: %w", event.Type, event.TaskID, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
