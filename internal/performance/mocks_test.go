package performance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/recommendation-performance/internal/models"
)

var errStore = errors.New("store unavailable")

// MockStore implements Store in memory
type MockStore struct {
	mu              sync.Mutex
	snapshots       map[string]*models.RecommendationSnapshot
	evaluations     map[string]*models.RecommendationEvaluation // key: snapshotID/horizon
	recommendations []*models.Recommendation
	holdings        map[string]*models.Holding
	ideas           []*models.Idea
	nextID          int

	// Fail makes every call return errStore
	Fail bool

	Calls             int
	UpsertCalls       int
	StatusUpdateCalls int
}

func NewMockStore() *MockStore {
	return &MockStore{
		snapshots:   make(map[string]*models.RecommendationSnapshot),
		evaluations: make(map[string]*models.RecommendationEvaluation),
		holdings:    make(map[string]*models.Holding),
	}
}

func evalKey(snapshotID string, horizon int) string {
	return fmt.Sprintf("%s/%d", snapshotID, horizon)
}

func (m *MockStore) enter() error {
	m.Calls++
	if m.Fail {
		return errStore
	}
	return nil
}

// AddSnapshot stores a snapshot directly, bypassing backfill
func (m *MockStore) AddSnapshot(s *models.RecommendationSnapshot) *models.RecommendationSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		m.nextID++
		s.ID = fmt.Sprintf("snap-%d", m.nextID)
	}
	if s.Status == "" {
		s.Status = models.StatusPending
	}
	if s.ConfidenceBucket == "" {
		s.ConfidenceBucket = ConfidenceBucket(s.Confidence)
	}
	if s.GeneratedDate.IsZero() {
		s.GeneratedDate = models.DayOf(s.GeneratedAt)
	}
	m.snapshots[s.ID] = s
	return s
}

// AddEvaluation stores an evaluation directly
func (m *MockStore) AddEvaluation(e *models.RecommendationEvaluation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluations[evalKey(e.SnapshotID, e.HorizonDays)] = e
}

func (m *MockStore) Evaluation(snapshotID string, horizon int) *models.RecommendationEvaluation {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.evaluations[evalKey(snapshotID, horizon)]
	if !ok {
		return nil
	}
	c := *e
	return &c
}

func (m *MockStore) Snapshot(id string) *models.RecommendationSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[id]
	if !ok {
		return nil
	}
	c := *s
	return &c
}

func (m *MockStore) SnapshotCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshots)
}

func (m *MockStore) CreateSnapshot(ctx context.Context, s *models.RecommendationSnapshot) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return false, err
	}
	if s.RecommendationID != nil {
		for _, existing := range m.snapshots {
			if existing.RecommendationID != nil && *existing.RecommendationID == *s.RecommendationID {
				return false, nil
			}
		}
	}
	if s.ID == "" {
		m.nextID++
		s.ID = fmt.Sprintf("snap-%d", m.nextID)
	}
	c := *s
	m.snapshots[s.ID] = &c
	return true, nil
}

func (m *MockStore) ListOpenSnapshots(ctx context.Context, userID string) ([]*models.RecommendationSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	var out []*models.RecommendationSnapshot
	for _, s := range m.snapshots {
		if s.UserID == userID && s.Status != models.StatusScored {
			c := *s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockStore) UpdateSnapshotStatus(ctx context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return err
	}
	m.StatusUpdateCalls++
	s, ok := m.snapshots[id]
	if !ok {
		return fmt.Errorf("snapshot %s not found", id)
	}
	s.Status = status
	return nil
}

func (m *MockStore) ListUserIDsForEvaluation(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, s := range m.snapshots {
		seen[s.UserID] = true
	}
	for _, r := range m.recommendations {
		seen[r.UserID] = true
	}
	var ids []string
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MockStore) GetEvaluationsBySnapshotIDs(ctx context.Context, ids []string) (map[string][]*models.RecommendationEvaluation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	out := make(map[string][]*models.RecommendationEvaluation)
	for _, id := range ids {
		for _, e := range m.evaluations {
			if e.SnapshotID == id {
				c := *e
				out[id] = append(out[id], &c)
			}
		}
	}
	return out, nil
}

func (m *MockStore) UpsertEvaluation(ctx context.Context, e *models.RecommendationEvaluation) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return false, err
	}
	m.UpsertCalls++
	key := evalKey(e.SnapshotID, e.HorizonDays)
	if existing, ok := m.evaluations[key]; ok && existing.DataQuality == models.DataQualityOK {
		return false, nil
	}
	c := *e
	if c.ID == "" {
		c.ID = "eval-" + key
	}
	m.evaluations[key] = &c
	return true, nil
}

func (m *MockStore) ListRecommendationsWithoutSnapshot(ctx context.Context, userID string) ([]*models.Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	var out []*models.Recommendation
	for _, r := range m.recommendations {
		if r.UserID != userID {
			continue
		}
		found := false
		for _, s := range m.snapshots {
			if s.RecommendationID != nil && *s.RecommendationID == r.ID {
				found = true
				break
			}
		}
		if !found {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockStore) GetHolding(ctx context.Context, userID, holdingID string) (*models.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	h, ok := m.holdings[holdingID]
	if !ok || h.UserID != userID {
		return nil, nil
	}
	return h, nil
}

func (m *MockStore) GetLatestIdeaByTicker(ctx context.Context, userID, ticker string) (*models.Idea, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	var latest *models.Idea
	for _, idea := range m.ideas {
		if idea.UserID != userID || !strings.EqualFold(idea.Ticker, ticker) {
			continue
		}
		if latest == nil || idea.GeneratedAt.After(latest.GeneratedAt) {
			latest = idea
		}
	}
	return latest, nil
}

func inRange(r models.DateRange, day time.Time) bool {
	if r.From != nil && day.Before(models.DayOf(*r.From)) {
		return false
	}
	if r.To != nil && day.After(models.DayOf(*r.To)) {
		return false
	}
	return true
}

func (m *MockStore) CountSnapshotsByStatus(ctx context.Context, userID string, r models.DateRange) (models.StatusCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var counts models.StatusCounts
	if err := m.enter(); err != nil {
		return counts, err
	}
	for _, s := range m.snapshots {
		if s.UserID != userID || !inRange(r, s.GeneratedDate) {
			continue
		}
		counts.Total++
		switch s.Status {
		case models.StatusPending:
			counts.Pending++
		case models.StatusScored:
			counts.Scored++
		case models.StatusStale:
			counts.Stale++
		}
	}
	return counts, nil
}

func (m *MockStore) ListEvaluationRecords(ctx context.Context, userID string, horizons []int, r models.DateRange) ([]*models.EvaluationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	wanted := make(map[int]bool)
	for _, h := range horizons {
		wanted[h] = true
	}
	var out []*models.EvaluationRecord
	for _, e := range m.evaluations {
		s := m.snapshots[e.SnapshotID]
		if s == nil || s.UserID != userID || !wanted[e.HorizonDays] || !inRange(r, s.GeneratedDate) {
			continue
		}
		out = append(out, &models.EvaluationRecord{
			SnapshotID:       s.ID,
			Ticker:           s.Ticker,
			Action:           s.Action,
			Confidence:       s.Confidence,
			ConfidenceBucket: s.ConfidenceBucket,
			RiskLevel:        s.RiskLevel,
			HorizonDays:      e.HorizonDays,
			DataQuality:      e.DataQuality,
			ReturnPct:        e.ReturnPct,
			IsWin:            e.IsWin,
		})
	}
	return out, nil
}

func (m *MockStore) ListOutcomeSnapshots(ctx context.Context, userID string, f models.OutcomeFilter) ([]*models.RecommendationSnapshot, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, 0, err
	}
	var matched []*models.RecommendationSnapshot
	for _, s := range m.snapshots {
		if s.UserID != userID || !inRange(f.Range, s.GeneratedDate) {
			continue
		}
		if f.Ticker != "" && !strings.Contains(strings.ToUpper(s.Ticker), strings.ToUpper(f.Ticker)) {
			continue
		}
		if f.Action != "" && s.Action != f.Action {
			continue
		}
		if f.Result != "" && OutcomeResult(m.evaluations[evalKey(s.ID, f.Horizon)]) != f.Result {
			continue
		}
		matched = append(matched, s)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].GeneratedAt.Equal(matched[j].GeneratedAt) {
			return matched[i].GeneratedAt.After(matched[j].GeneratedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	start := f.Offset()
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// MockPriceProvider serves fixed price series
type MockPriceProvider struct {
	mu      sync.Mutex
	series  map[string][]models.PricePoint
	current map[string]decimal.Decimal
	errs    map[string]error

	HistoryCalls int
	CurrentCalls int
}

func NewMockPriceProvider() *MockPriceProvider {
	return &MockPriceProvider{
		series:  make(map[string][]models.PricePoint),
		current: make(map[string]decimal.Decimal),
		errs:    make(map[string]error),
	}
}

// SetPrice adds a daily point for ticker
func (p *MockPriceProvider) SetPrice(ticker string, day time.Time, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.series[ticker] = append(p.series[ticker], models.PricePoint{
		Price:     decimal.NewFromFloat(price),
		Timestamp: day,
	})
}

func (p *MockPriceProvider) SetError(ticker string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[ticker] = err
}

func (p *MockPriceProvider) SetCurrent(ticker string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current[ticker] = decimal.NewFromFloat(price)
}

func (p *MockPriceProvider) GetPriceHistory(ctx context.Context, ticker string, days int) ([]models.PricePoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.HistoryCalls++
	if err := p.errs[ticker]; err != nil {
		return nil, err
	}
	// Newest first, to prove callers do not rely on provider ordering.
	src := p.series[ticker]
	out := make([]models.PricePoint, len(src))
	for i := range src {
		out[len(src)-1-i] = src[i]
	}
	return out, nil
}

func (p *MockPriceProvider) GetCurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CurrentCalls++
	if err := p.errs[ticker]; err != nil {
		return decimal.Zero, err
	}
	price, ok := p.current[ticker]
	if !ok {
		return decimal.Zero, nil
	}
	return price, nil
}

// MockPublisher records published events
type MockPublisher struct {
	mu      sync.Mutex
	Runs    []*models.EvaluationRunResult
	Changes []models.StatusChange
}

func (p *MockPublisher) PublishRunCompleted(ctx context.Context, result *models.EvaluationRunResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Runs = append(p.Runs, result)
	return nil
}

func (p *MockPublisher) PublishStatusChanged(ctx context.Context, change models.StatusChange) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Changes = append(p.Changes, change)
	return nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }
