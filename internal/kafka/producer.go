package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/recommendation-performance/internal/models"
)

// messageWriter is the subset of *kafka.Writer the producer uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes performance events to Kafka
type Producer struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
		now:    time.Now,
	}
}

// PublishRunCompleted publishes the counters of a finished evaluation run
func (p *Producer) PublishRunCompleted(ctx context.Context, result *models.EvaluationRunResult) error {
	event := models.PerformanceEvent{
		EventType: models.EventEvaluationRunCompleted,
		Timestamp: p.now().UTC(),
		Run:       result,
	}
	return p.publish(ctx, result.Scope, event)
}

// PublishStatusChanged publishes a snapshot status transition, keyed by user
// so a user's transitions stay ordered
func (p *Producer) PublishStatusChanged(ctx context.Context, change models.StatusChange) error {
	event := models.PerformanceEvent{
		EventType: models.EventSnapshotStatusChanged,
		Timestamp: p.now().UTC(),
		Status:    &change,
	}
	return p.publish(ctx, change.UserID, event)
}

func (p *Producer) publish(ctx context.Context, key string, event models.PerformanceEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
