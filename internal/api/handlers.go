// Package api exposes the performance service over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/recommendation-performance/internal/models"
	"github.com/trogers1052/recommendation-performance/internal/performance"
	"github.com/trogers1052/recommendation-performance/internal/prices"
)

// Request headers
const (
	HeaderUserID         = "X-User-ID"
	HeaderSchedulerToken = "X-Scheduler-Token"
)

const (
	dateLayout         = "2006-01-02"
	defaultHistoryDays = 30
	maxHistoryDays     = 3650
)

// PerformanceService is the part of performance.Service the handlers call
type PerformanceService interface {
	Enabled() bool
	RunEvaluation(ctx context.Context, userID string) (*models.EvaluationRunResult, error)
	GetOverview(ctx context.Context, userID string, r models.DateRange) (*models.Overview, error)
	GetScoreboard(ctx context.Context, userID string, horizon int, r models.DateRange) (*models.Scoreboard, error)
	ListOutcomes(ctx context.Context, userID string, f models.OutcomeFilter) (*models.OutcomePage, error)
}

// PriceStore reads and writes the daily price table
type PriceStore interface {
	prices.PriceStore
	CreatePriceDataBatch(ctx context.Context, bars []*models.PriceDataDaily) error
}

// CacheInvalidator drops cached prices after new bars are ingested
type CacheInvalidator interface {
	Invalidate(ctx context.Context, ticker string) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	perf           PerformanceService
	priceStore     PriceStore
	history        *prices.DatabaseProvider
	cache          CacheInvalidator
	schedulerToken string
	log            zerolog.Logger
}

// NewHandler creates a new Handler. cache may be nil.
func NewHandler(perf PerformanceService, priceStore PriceStore, cache CacheInvalidator, schedulerToken string, log zerolog.Logger) *Handler {
	return &Handler{
		perf:           perf,
		priceStore:     priceStore,
		history:        prices.NewDatabaseProvider(priceStore),
		cache:          cache,
		schedulerToken: schedulerToken,
		log:            log.With().Str("component", "api").Logger(),
	}
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":              "healthy",
		"performance_enabled": h.perf.Enabled(),
	})
}

// Evaluate handles POST /api/v1/performance/evaluate
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if userID == performance.AllUsers {
		respondError(w, http.StatusBadRequest, "invalid user id", "invalid_user")
		return
	}

	result, err := h.perf.RunEvaluation(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// EvaluateAll handles POST /api/v1/performance/evaluate/all
func (h *Handler) EvaluateAll(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(HeaderSchedulerToken)
	if h.schedulerToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.schedulerToken)) != 1 {
		respondError(w, http.StatusForbidden, "forbidden", "forbidden")
		return
	}

	result, err := h.perf.RunEvaluation(r.Context(), performance.AllUsers)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetOverview handles GET /api/v1/performance/overview
func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	dr, err := parseDateRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), "invalid_filter")
		return
	}

	overview, err := h.perf.GetOverview(r.Context(), userID, dr)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, overview)
}

// GetScoreboard handles GET /api/v1/performance/scoreboard
func (h *Handler) GetScoreboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	dr, err := parseDateRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), "invalid_filter")
		return
	}
	horizon, err := queryInt(r, "horizon", performance.CalibrationHorizon)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), "invalid_horizon")
		return
	}

	board, err := h.perf.GetScoreboard(r.Context(), userID, horizon, dr)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, board)
}

// ListOutcomes handles GET /api/v1/performance/outcomes
func (h *Handler) ListOutcomes(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	dr, err := parseDateRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), "invalid_filter")
		return
	}

	q := r.URL.Query()
	f := models.OutcomeFilter{
		Ticker: q.Get("ticker"),
		Action: q.Get("action"),
		Result: q.Get("result"),
		Range:  dr,
	}
	if f.Horizon, err = queryInt(r, "horizon", performance.CalibrationHorizon); err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), "invalid_horizon")
		return
	}
	if f.Page, err = queryInt(r, "page", performance.DefaultPage); err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), "invalid_filter")
		return
	}
	if f.Limit, err = queryInt(r, "limit", performance.DefaultLimit); err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), "invalid_filter")
		return
	}

	page, err := h.perf.ListOutcomes(r.Context(), userID, f)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

type priceBar struct {
	Date   string              `json:"date"`
	Open   decimal.Decimal     `json:"open"`
	High   decimal.Decimal     `json:"high"`
	Low    decimal.Decimal     `json:"low"`
	Close  decimal.Decimal     `json:"close"`
	Volume int64               `json:"volume"`
	VWAP   decimal.NullDecimal `json:"vwap"`
}

// IngestPrices handles POST /api/v1/prices/{symbol}
func (h *Handler) IngestPrices(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(mux.Vars(r)["symbol"]))

	var req struct {
		Bars []priceBar `json:"bars"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "invalid_body")
		return
	}
	if len(req.Bars) == 0 {
		respondError(w, http.StatusBadRequest, "bars are required", "invalid_body")
		return
	}

	bars := make([]*models.PriceDataDaily, 0, len(req.Bars))
	for _, b := range req.Bars {
		date, err := time.Parse(dateLayout, b.Date)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid date: "+b.Date, "invalid_body")
			return
		}
		if !b.Close.IsPositive() {
			respondError(w, http.StatusBadRequest, "close must be positive for "+b.Date, "invalid_body")
			return
		}
		bar := &models.PriceDataDaily{
			Symbol: symbol,
			Date:   date,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
		if b.VWAP.Valid {
			bar.VWAP = b.VWAP.Decimal
		}
		bars = append(bars, bar)
	}

	if err := h.priceStore.CreatePriceDataBatch(r.Context(), bars); err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to store price data")
		respondError(w, http.StatusInternalServerError, "failed to store price data", "internal")
		return
	}

	if h.cache != nil {
		if err := h.cache.Invalidate(r.Context(), symbol); err != nil {
			h.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to invalidate price cache")
		}
	}

	h.log.Info().Str("symbol", symbol).Int("bars", len(bars)).Msg("Ingested price data")
	respondJSON(w, http.StatusCreated, map[string]interface{}{"symbol": symbol, "stored": len(bars)})
}

// GetPriceHistory handles GET /api/v1/prices/{symbol}?days=N
func (h *Handler) GetPriceHistory(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(mux.Vars(r)["symbol"]))
	days, err := queryInt(r, "days", defaultHistoryDays)
	if err != nil || days < 1 || days > maxHistoryDays {
		respondError(w, http.StatusBadRequest, "days must be between 1 and 3650", "invalid_days")
		return
	}

	points, err := h.history.GetPriceHistory(r.Context(), symbol, days)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to load price history")
		respondError(w, http.StatusInternalServerError, "failed to load price history", "internal")
		return
	}
	if len(points) == 0 {
		respondError(w, http.StatusNotFound, "no price data for "+symbol, "not_found")
		return
	}
	respondJSON(w, http.StatusOK, prices.HistoryResponse{Symbol: symbol, Points: points})
}

// GetLatestPrice handles GET /api/v1/prices/{symbol}/latest
func (h *Handler) GetLatestPrice(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(mux.Vars(r)["symbol"]))

	bar, err := h.priceStore.GetLatestPriceData(r.Context(), symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to load latest price")
		respondError(w, http.StatusInternalServerError, "failed to load latest price", "internal")
		return
	}
	if bar == nil {
		respondError(w, http.StatusNotFound, "no price data for "+symbol, "not_found")
		return
	}
	respondJSON(w, http.StatusOK, prices.LatestResponse{Symbol: symbol, Price: bar.Close, Timestamp: bar.Date})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, performance.ErrDisabled):
		respondError(w, http.StatusServiceUnavailable, "performance tracking disabled", "disabled")
	case errors.Is(err, performance.ErrInvalidUser):
		respondError(w, http.StatusUnauthorized, err.Error(), "unauthorized")
	case errors.Is(err, performance.ErrInvalidHorizon):
		respondError(w, http.StatusBadRequest, err.Error(), "invalid_horizon")
	case errors.Is(err, performance.ErrInvalidFilter):
		respondError(w, http.StatusBadRequest, err.Error(), "invalid_filter")
	default:
		h.log.Error().Err(err).Msg("Request failed")
		respondError(w, http.StatusInternalServerError, "internal error", "internal")
	}
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "missing "+HeaderUserID+" header", "unauthorized")
		return "", false
	}
	return userID, true
}

func parseDateRange(r *http.Request) (models.DateRange, error) {
	var dr models.DateRange
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &dr.From}, {"to", &dr.To}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return dr, errors.New("invalid " + p.name + " date, expected YYYY-MM-DD")
		}
		*p.dst = &t
	}
	return dr, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("invalid " + name + ": " + raw)
	}
	return v, nil
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondError(w http.ResponseWriter, status int, msg, code string) {
	respondJSON(w, status, errorResponse{Error: msg, Code: code})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
