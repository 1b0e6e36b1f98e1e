// Package performance scores AI recommendations against realized market
// prices and reports how well they did.
package performance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/trogers1052/recommendation-performance/internal/config"
	"github.com/trogers1052/recommendation-performance/internal/models"
	"golang.org/x/sync/errgroup"
)

// AllUsers selects every user with recommendations in RunEvaluation
const AllUsers = "all"

// Default outcome listing page settings
const (
	DefaultPage  = 1
	DefaultLimit = 20
)

// Service is the entry point for evaluation runs and performance reports
type Service struct {
	cfg        config.PerformanceConfig
	store      Store
	prices     PriceProvider
	publisher  EventPublisher
	now        func() time.Time
	validate   *validator.Validate
	log        zerolog.Logger
	evaluator  *Evaluator
	backfiller *Backfiller
}

// Option configures the Service
type Option func(*Service)

// WithEventPublisher publishes run results and status changes
func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a performance service
func NewService(cfg config.PerformanceConfig, store Store, prices PriceProvider, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		store:    store,
		prices:   prices,
		now:      time.Now,
		validate: validator.New(),
		log:      log.With().Str("component", "performance").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.Concurrency < 1 {
		s.cfg.Concurrency = 1
	}

	s.evaluator = NewEvaluator(store, store, s.publisher, cfg.Horizons, log)
	s.backfiller = NewBackfiller(store, store, prices, cfg.PriceTimeout, cfg.DefaultCurrency, log)
	return s
}

// Enabled reports whether performance tracking is switched on
func (s *Service) Enabled() bool {
	return s.cfg.Enabled
}

// Horizons returns the configured evaluation horizons in days
func (s *Service) Horizons() []int {
	return s.cfg.Horizons
}

// RunEvaluation backfills missing snapshots and then evaluates open ones,
// either for one user or for AllUsers. Failures are counted in the result
// rather than returned; the run is successful when none occurred.
func (s *Service) RunEvaluation(ctx context.Context, userID string) (*models.EvaluationRunResult, error) {
	if !s.cfg.Enabled {
		return nil, ErrDisabled
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidUser
	}

	now := s.now().UTC()
	result := &models.EvaluationRunResult{Scope: userID, StartedAt: now}
	cache := NewPriceCache(s.prices, s.cfg.PriceTimeout)

	users := []string{userID}
	if userID == AllUsers {
		ids, err := s.store.ListUserIDsForEvaluation(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("Failed to list users for evaluation")
			result.Errors++
			users = nil
		} else {
			users = ids
		}
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)

	for _, id := range users {
		id := id
		g.Go(func() error {
			userResult := s.runUser(ctx, id, now, cache)
			mu.Lock()
			result.Merge(userResult)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	result.FinishedAt = s.now().UTC()
	result.Success = result.Errors == 0

	s.log.Info().
		Str("scope", result.Scope).
		Int("users", result.UsersProcessed).
		Int("snapshots_checked", result.SnapshotsChecked).
		Int("recorded", result.EvaluationsRecorded).
		Int("missing", result.EvaluationsMissing).
		Int("backfilled", result.Backfill.Created).
		Int("price_fetches", cache.Fetches()).
		Int("errors", result.Errors).
		Dur("duration", result.FinishedAt.Sub(result.StartedAt)).
		Msg("Evaluation run complete")

	if s.publisher != nil {
		if err := s.publisher.PublishRunCompleted(ctx, result); err != nil {
			s.log.Warn().Err(err).Msg("Failed to publish run result")
		}
	}
	return result, nil
}

func (s *Service) runUser(ctx context.Context, userID string, now time.Time, cache *PriceCache) *models.EvaluationRunResult {
	result := &models.EvaluationRunResult{UsersProcessed: 1}

	backfill, err := s.backfiller.BackfillUser(ctx, userID)
	result.Backfill = backfill
	if err != nil {
		result.Errors++
		s.log.Error().Err(err).Str("user_id", userID).Msg("Backfill failed")
	}

	if err := s.evaluator.EvaluateUser(ctx, userID, now, cache, result); err != nil {
		result.Errors++
		s.log.Error().Err(err).Str("user_id", userID).Msg("Evaluation failed")
	}
	return result
}

// RecordRecommendation snapshots a recommendation at generation time. It
// returns nil without error when the recommendation was already snapshotted.
func (s *Service) RecordRecommendation(ctx context.Context, rec *models.Recommendation, hint models.EntryHint) (*models.RecommendationSnapshot, error) {
	if !s.cfg.Enabled {
		return nil, ErrDisabled
	}
	if rec == nil || strings.TrimSpace(rec.UserID) == "" {
		return nil, ErrInvalidUser
	}
	return s.backfiller.Snapshot(ctx, rec, hint)
}

// GetOverview summarizes a user's recommendation performance. Storage
// failures yield an empty overview.
func (s *Service) GetOverview(ctx context.Context, userID string, r models.DateRange) (*models.Overview, error) {
	if err := s.checkRead(userID, r); err != nil {
		return nil, err
	}

	counts, err := s.store.CountSnapshotsByStatus(ctx, userID, r)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to count snapshots")
		return BuildOverview(models.StatusCounts{}, nil, s.cfg.Horizons), nil
	}
	records, err := s.store.ListEvaluationRecords(ctx, userID, s.cfg.Horizons, r)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to load evaluations")
		return BuildOverview(models.StatusCounts{}, nil, s.cfg.Horizons), nil
	}
	return BuildOverview(counts, records, s.cfg.Horizons), nil
}

// GetScoreboard ranks outcomes at one configured horizon
func (s *Service) GetScoreboard(ctx context.Context, userID string, horizon int, r models.DateRange) (*models.Scoreboard, error) {
	if err := s.checkRead(userID, r); err != nil {
		return nil, err
	}
	if !s.cfg.HasHorizon(horizon) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHorizon, horizon)
	}

	records, err := s.store.ListEvaluationRecords(ctx, userID, []int{horizon}, r)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to load evaluations")
		return BuildScoreboard(nil, horizon), nil
	}
	return BuildScoreboard(records, horizon), nil
}

// ListOutcomes returns one page of snapshots with their evaluations
func (s *Service) ListOutcomes(ctx context.Context, userID string, f models.OutcomeFilter) (*models.OutcomePage, error) {
	if err := s.checkRead(userID, f.Range); err != nil {
		return nil, err
	}
	if f.Page == 0 {
		f.Page = DefaultPage
	}
	if f.Limit == 0 {
		f.Limit = DefaultLimit
	}
	f.Action = strings.ToLower(strings.TrimSpace(f.Action))
	f.Result = strings.ToLower(strings.TrimSpace(f.Result))
	f.Ticker = strings.TrimSpace(f.Ticker)

	if err := s.validate.Struct(f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	if !s.cfg.HasHorizon(f.Horizon) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHorizon, f.Horizon)
	}

	empty := BuildOutcomePage(nil, nil, 0, f)

	snapshots, total, err := s.store.ListOutcomeSnapshots(ctx, userID, f)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to list outcomes")
		return empty, nil
	}

	ids := make([]string, len(snapshots))
	for i, snap := range snapshots {
		ids[i] = snap.ID
	}
	evaluations, err := s.store.GetEvaluationsBySnapshotIDs(ctx, ids)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to load outcome evaluations")
		return empty, nil
	}
	return BuildOutcomePage(snapshots, evaluations, total, f), nil
}

func (s *Service) checkRead(userID string, r models.DateRange) error {
	if !s.cfg.Enabled {
		return ErrDisabled
	}
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidUser
	}
	if !r.Valid() {
		return fmt.Errorf("%w: from is after to", ErrInvalidFilter)
	}
	return nil
}
