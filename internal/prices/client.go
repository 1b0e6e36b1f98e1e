package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/recommendation-performance/internal/models"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds a single HTTP request
	DefaultTimeout = 10 * time.Second

	// DefaultRateLimit is the default request rate per second
	DefaultRateLimit = 5
)

// HistoryResponse is the price history payload of the price API
type HistoryResponse struct {
	Symbol string              `json:"symbol"`
	Points []models.PricePoint `json:"points"`
}

// LatestResponse is the latest price payload of the price API
type LatestResponse struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// APIError is returned for unexpected HTTP status codes
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("price api %s returned %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// Client reads prices from a remote price service over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRateLimit sets the request rate per second
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *Client) {
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithLogger sets a logger
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a price API client
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetPriceHistory fetches the last days days of prices. Unknown tickers
// yield an empty series.
func (c *Client) GetPriceHistory(ctx context.Context, ticker string, days int) ([]models.PricePoint, error) {
	params := url.Values{}
	params.Set("days", strconv.Itoa(days))

	var resp HistoryResponse
	found, err := c.get(ctx, "/api/v1/prices/"+url.PathEscape(strings.ToUpper(ticker)), params, &resp)
	if err != nil || !found {
		return nil, err
	}
	return resp.Points, nil
}

// GetCurrentPrice fetches the latest price, zero for unknown tickers
func (c *Client) GetCurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	var resp LatestResponse
	found, err := c.get(ctx, "/api/v1/prices/"+url.PathEscape(strings.ToUpper(ticker))+"/latest", nil, &resp)
	if err != nil || !found {
		return decimal.Zero, err
	}
	return resp.Price, nil
}

// get performs a GET request and decodes the JSON body into result. found is
// false on 404.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug().Str("url", reqURL).Msg("Price API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return false, &APIError{StatusCode: resp.StatusCode, Message: string(body), Endpoint: path}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return true, nil
}
