package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/recommendation-performance/internal/models"
	"github.com/trogers1052/recommendation-performance/internal/performance"
)

// MockRecorder implements RecommendationRecorder for testing
type MockRecorder struct {
	mu    sync.Mutex
	seen  map[string]bool
	recs  []*models.Recommendation
	hints []models.EntryHint
	err   error
}

func NewMockRecorder() *MockRecorder {
	return &MockRecorder{seen: make(map[string]bool)}
}

func (m *MockRecorder) RecordRecommendation(ctx context.Context, rec *models.Recommendation, hint models.EntryHint) (*models.RecommendationSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	m.recs = append(m.recs, rec)
	m.hints = append(m.hints, hint)
	if m.seen[rec.ID] {
		return nil, nil
	}
	m.seen[rec.ID] = true
	return &models.RecommendationSnapshot{
		ID:         "snap-" + rec.ID,
		Ticker:     rec.Ticker,
		Action:     rec.Action,
		EntryPrice: hint.Price,
	}, nil
}

func (m *MockRecorder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}

// MockReader replays queued messages and then blocks until the context ends
type MockReader struct {
	messages []kafka.Message
	errs     []error
	closed   bool
}

func (r *MockReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return kafka.Message{}, err
	}
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		return msg, nil
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *MockReader) Config() kafka.ReaderConfig {
	return kafka.ReaderConfig{Topic: "recommendations.generated"}
}

func (r *MockReader) Close() error {
	r.closed = true
	return nil
}

func newTestConsumer(recorder RecommendationRecorder, reader messageReader) *Consumer {
	return &Consumer{reader: reader, recorder: recorder, log: zerolog.Nop()}
}

func recommendationMessage(t *testing.T, data models.RecommendationData) kafka.Message {
	t.Helper()
	value, err := json.Marshal(models.RecommendationEvent{
		EventType:     models.EventRecommendationGenerated,
		Source:        "idea-engine",
		SchemaVersion: "1",
		Timestamp:     time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC),
		Data:          data,
	})
	require.NoError(t, err)
	return kafka.Message{Key: []byte(data.UserID), Value: value}
}

func TestProcessMessage_RecordsRecommendation(t *testing.T) {
	recorder := NewMockRecorder()
	c := newTestConsumer(recorder, &MockReader{})

	msg := recommendationMessage(t, models.RecommendationData{
		RecommendationID: "rec-1",
		UserID:           "user-1",
		Ticker:           " asml ",
		Action:           "buy",
		Confidence:       82.5,
		HoldingID:        "h-1",
		IdeaID:           "idea-1",
		EntryPrice:       "650.125",
		Currency:         "EUR",
		RiskLevel:        "medium",
		GeneratedAt:      "2024-03-01T14:30:00+01:00",
	})

	require.NoError(t, c.processMessage(context.Background(), msg))
	require.Equal(t, 1, recorder.Calls())

	rec := recorder.recs[0]
	assert.Equal(t, "rec-1", rec.ID)
	assert.Equal(t, "user-1", rec.UserID)
	assert.Equal(t, "ASML", rec.Ticker)
	assert.Equal(t, 82.5, rec.Confidence)
	require.NotNil(t, rec.LinkedHoldingID)
	assert.Equal(t, "h-1", *rec.LinkedHoldingID)
	assert.Equal(t, time.Date(2024, 3, 1, 13, 30, 0, 0, time.UTC), rec.GeneratedAt)

	hint := recorder.hints[0]
	assert.True(t, hint.Price.Equal(decimal.RequireFromString("650.125")))
	assert.Equal(t, "EUR", hint.Currency)
	assert.Equal(t, "medium", hint.RiskLevel)
	require.NotNil(t, hint.IdeaID)
	assert.Equal(t, "idea-1", *hint.IdeaID)
}

func TestProcessMessage_DefaultsToEventTimestamp(t *testing.T) {
	recorder := NewMockRecorder()
	c := newTestConsumer(recorder, &MockReader{})

	msg := recommendationMessage(t, models.RecommendationData{
		RecommendationID: "rec-1", UserID: "user-1", Ticker: "SAP", Action: "sell", Confidence: 40,
	})

	require.NoError(t, c.processMessage(context.Background(), msg))
	rec := recorder.recs[0]
	assert.Equal(t, time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC), rec.GeneratedAt)
	assert.Nil(t, rec.LinkedHoldingID)
	assert.True(t, recorder.hints[0].Price.IsZero())
	assert.Nil(t, recorder.hints[0].IdeaID)
}

func TestProcessMessage_IgnoresOtherEvents(t *testing.T) {
	recorder := NewMockRecorder()
	c := newTestConsumer(recorder, &MockReader{})

	value, err := json.Marshal(models.RecommendationEvent{EventType: "RECOMMENDATION_DISMISSED"})
	require.NoError(t, err)

	require.NoError(t, c.processMessage(context.Background(), kafka.Message{Value: value}))
	assert.Equal(t, 0, recorder.Calls())
}

func TestProcessMessage_Errors(t *testing.T) {
	c := newTestConsumer(NewMockRecorder(), &MockReader{})

	t.Run("Malformed JSON", func(t *testing.T) {
		err := c.processMessage(context.Background(), kafka.Message{Value: []byte("{not json")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to unmarshal")
	})

	t.Run("Missing user", func(t *testing.T) {
		msg := recommendationMessage(t, models.RecommendationData{RecommendationID: "rec-1", Ticker: "ASML", Action: "buy"})
		require.Error(t, c.processMessage(context.Background(), msg))
	})

	t.Run("Invalid entry price", func(t *testing.T) {
		msg := recommendationMessage(t, models.RecommendationData{
			RecommendationID: "rec-1", UserID: "user-1", Ticker: "ASML", Action: "buy", EntryPrice: "abc",
		})
		err := c.processMessage(context.Background(), msg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid entry price")
	})

	t.Run("Recorder failure", func(t *testing.T) {
		recorder := NewMockRecorder()
		recorder.err = errors.New("database unavailable")
		c := newTestConsumer(recorder, &MockReader{})

		msg := recommendationMessage(t, models.RecommendationData{RecommendationID: "rec-1", UserID: "user-1", Ticker: "ASML", Action: "buy"})
		err := c.processMessage(context.Background(), msg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database unavailable")
	})

	t.Run("Disabled tracking is not an error", func(t *testing.T) {
		recorder := NewMockRecorder()
		recorder.err = performance.ErrDisabled
		c := newTestConsumer(recorder, &MockReader{})

		msg := recommendationMessage(t, models.RecommendationData{RecommendationID: "rec-1", UserID: "user-1", Ticker: "ASML", Action: "buy"})
		assert.NoError(t, c.processMessage(context.Background(), msg))
	})
}

func TestProcessMessage_DuplicateIsNotAnError(t *testing.T) {
	recorder := NewMockRecorder()
	c := newTestConsumer(recorder, &MockReader{})
	msg := recommendationMessage(t, models.RecommendationData{RecommendationID: "rec-1", UserID: "user-1", Ticker: "ASML", Action: "buy"})

	require.NoError(t, c.processMessage(context.Background(), msg))
	require.NoError(t, c.processMessage(context.Background(), msg))
	assert.Equal(t, 2, recorder.Calls())
}

func TestConsumerStart_ProcessesUntilCancelled(t *testing.T) {
	recorder := NewMockRecorder()
	reader := &MockReader{
		errs: []error{errors.New("broker not available")},
		messages: []kafka.Message{
			{Value: []byte("garbage")},
			recommendationMessage(t, models.RecommendationData{RecommendationID: "rec-1", UserID: "user-1", Ticker: "ASML", Action: "buy"}),
			recommendationMessage(t, models.RecommendationData{RecommendationID: "rec-2", UserID: "user-2", Ticker: "SAP", Action: "hold"}),
		},
	}
	c := newTestConsumer(recorder, reader)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return recorder.Calls() == 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after cancellation")
	}
}
