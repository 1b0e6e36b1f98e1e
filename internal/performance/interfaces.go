package performance

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/recommendation-performance/internal/models"
)

// PriceProvider is the external source of instrument prices. Unknown tickers
// yield an empty series rather than an error.
type PriceProvider interface {
	GetPriceHistory(ctx context.Context, ticker string, days int) ([]models.PricePoint, error)
	GetCurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error)
}

// SnapshotStore persists recommendation snapshots
type SnapshotStore interface {
	CreateSnapshot(ctx context.Context, s *models.RecommendationSnapshot) (bool, error)
	ListOpenSnapshots(ctx context.Context, userID string) ([]*models.RecommendationSnapshot, error)
	UpdateSnapshotStatus(ctx context.Context, id, status string) error
	ListUserIDsForEvaluation(ctx context.Context) ([]string, error)
}

// EvaluationStore persists per-horizon evaluations
type EvaluationStore interface {
	GetEvaluationsBySnapshotIDs(ctx context.Context, snapshotIDs []string) (map[string][]*models.RecommendationEvaluation, error)
	UpsertEvaluation(ctx context.Context, e *models.RecommendationEvaluation) (bool, error)
}

// RecommendationSource gives read access to recommendations and the holdings
// and ideas used to price them
type RecommendationSource interface {
	ListRecommendationsWithoutSnapshot(ctx context.Context, userID string) ([]*models.Recommendation, error)
	GetHolding(ctx context.Context, userID, holdingID string) (*models.Holding, error)
	GetLatestIdeaByTicker(ctx context.Context, userID, ticker string) (*models.Idea, error)
}

// ReportStore serves the read-side queries
type ReportStore interface {
	CountSnapshotsByStatus(ctx context.Context, userID string, r models.DateRange) (models.StatusCounts, error)
	ListEvaluationRecords(ctx context.Context, userID string, horizons []int, r models.DateRange) ([]*models.EvaluationRecord, error)
	ListOutcomeSnapshots(ctx context.Context, userID string, f models.OutcomeFilter) ([]*models.RecommendationSnapshot, int, error)
}

// Store is everything the service needs from persistence
type Store interface {
	SnapshotStore
	EvaluationStore
	RecommendationSource
	ReportStore
}

// EventPublisher announces evaluation activity to other services
type EventPublisher interface {
	PublishRunCompleted(ctx context.Context, result *models.EvaluationRunResult) error
	PublishStatusChanged(ctx context.Context, change models.StatusChange) error
}
