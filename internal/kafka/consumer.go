package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/recommendation-performance/internal/models"
	"github.com/trogers1052/recommendation-performance/internal/performance"
)

// RecommendationRecorder snapshots recommendations as they are generated
type RecommendationRecorder interface {
	RecordRecommendation(ctx context.Context, rec *models.Recommendation, hint models.EntryHint) (*models.RecommendationSnapshot, error)
}

// messageReader is the subset of *kafka.Reader the consumer uses
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Config() kafka.ReaderConfig
	Close() error
}

// Consumer handles consuming recommendation events from Kafka and snapshots
// each new recommendation at generation time. Recommendations the consumer
// misses are picked up by the backfill step of the next evaluation run.
type Consumer struct {
	reader   messageReader
	recorder RecommendationRecorder
	log      zerolog.Logger
}

// NewConsumer creates a new Kafka consumer for recommendation events
func NewConsumer(brokers []string, topic, groupID string, recorder RecommendationRecorder, log zerolog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader:   reader,
		recorder: recorder,
		log:      log.With().Str("component", "recommendation-consumer").Logger(),
	}
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start(ctx context.Context) error {
	c.log.Info().Str("topic", c.reader.Config().Topic).Msg("Starting Kafka consumer")

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("Kafka consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.log.Error().Err(err).Msg("Error reading message")
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				c.log.Error().Err(err).
					Int("partition", msg.Partition).
					Int64("offset", msg.Offset).
					Msg("Error processing message")
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event models.RecommendationEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal recommendation event: %w", err)
	}

	if event.EventType != models.EventRecommendationGenerated {
		c.log.Debug().Str("event_type", event.EventType).Msg("Ignoring event")
		return nil
	}

	rec, hint, err := convertEvent(event)
	if err != nil {
		return fmt.Errorf("failed to convert recommendation event: %w", err)
	}

	snapshot, err := c.recorder.RecordRecommendation(ctx, rec, hint)
	if errors.Is(err, performance.ErrDisabled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to record recommendation %s: %w", rec.ID, err)
	}

	if snapshot == nil {
		c.log.Debug().Str("recommendation_id", rec.ID).Msg("Recommendation already snapshotted")
		return nil
	}

	c.log.Info().
		Str("recommendation_id", rec.ID).
		Str("user_id", rec.UserID).
		Str("ticker", snapshot.Ticker).
		Str("action", snapshot.Action).
		Str("entry_price", snapshot.EntryPrice.String()).
		Msg("Recorded recommendation snapshot")
	return nil
}

// convertEvent maps a RecommendationEvent to a recommendation and the entry
// metadata the producer already knew
func convertEvent(event models.RecommendationEvent) (*models.Recommendation, models.EntryHint, error) {
	data := event.Data
	var hint models.EntryHint

	if data.RecommendationID == "" {
		return nil, hint, fmt.Errorf("missing recommendation_id")
	}
	if data.UserID == "" {
		return nil, hint, fmt.Errorf("missing user_id for recommendation %s", data.RecommendationID)
	}

	if data.EntryPrice != "" {
		price, err := decimal.NewFromString(data.EntryPrice)
		if err != nil {
			return nil, hint, fmt.Errorf("invalid entry price %s: %w", data.EntryPrice, err)
		}
		hint.Price = price
	}
	hint.Currency = data.Currency
	hint.RiskLevel = data.RiskLevel
	if data.IdeaID != "" {
		ideaID := data.IdeaID
		hint.IdeaID = &ideaID
	}

	generatedAt := event.Timestamp
	if data.GeneratedAt != "" {
		t, err := time.Parse(time.RFC3339, data.GeneratedAt)
		if err != nil {
			// Try parsing without timezone
			t, err = time.Parse("2006-01-02T15:04:05", data.GeneratedAt)
		}
		if err == nil {
			generatedAt = t
		}
	}
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}

	rec := &models.Recommendation{
		ID:          data.RecommendationID,
		UserID:      data.UserID,
		Ticker:      strings.ToUpper(strings.TrimSpace(data.Ticker)),
		Action:      data.Action,
		Confidence:  data.Confidence,
		GeneratedAt: generatedAt.UTC(),
	}
	if data.HoldingID != "" {
		holdingID := data.HoldingID
		rec.LinkedHoldingID = &holdingID
	}
	return rec, hint, nil
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
