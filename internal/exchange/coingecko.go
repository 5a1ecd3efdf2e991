package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	qerrors "github.com/johnayoung/go-quote-forecaster/internal/errors"
	"github.com/johnayoung/go-quote-forecaster/internal/models"
)

const (
	// CoinGecko public API base URL
	coingeckoBaseURL = "https://api.coingecko.com/api/v3"

	// API endpoints
	simplePriceEndpoint = "/simple/price"
	pingEndpoint        = "/ping"

	defaultCurrency       = "usd"
	defaultMaxRetries     = 3
	defaultBackoff        = 2 * time.Second
	defaultRequestTimeout = 10 * time.Second
	defaultRatePerMinute  = 30

	healthCheckTimeout = 5 * time.Second
	maxErrorBodyBytes  = 512
)

// CoinGeckoConfig configures the CoinGecko client.
type CoinGeckoConfig struct {
	BaseURL        string
	Currency       string
	MaxRetries     int           // total attempts, at least 1
	Backoff        time.Duration // linear unit: sleeps are Backoff, 2*Backoff, ...
	RequestTimeout time.Duration
	RatePerMinute  int
}

// CoinGeckoClient implements PriceFetcher against the CoinGecko simple price API.
type CoinGeckoClient struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	baseURL     string
	currency    string
	maxRetries  int
	backoff     time.Duration
	logger      *slog.Logger

	// newTimer is swapped in tests to observe backoff sleeps without waiting.
	newTimer func() backoff.Timer
}

// Option customizes a CoinGeckoClient.
type Option func(*CoinGeckoClient)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *CoinGeckoClient) { c.httpClient = client }
}

// WithRateLimiter replaces the request rate limiter.
func WithRateLimiter(limiter *rate.Limiter) Option {
	return func(c *CoinGeckoClient) { c.rateLimiter = limiter }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *CoinGeckoClient) { c.logger = logger }
}

// WithTimer sets the timer factory used between retry attempts.
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(c *CoinGeckoClient) { c.newTimer = newTimer }
}

// NewCoinGeckoClient creates a client, filling zero config values with defaults.
func NewCoinGeckoClient(cfg CoinGeckoConfig, opts ...Option) *CoinGeckoClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = coingeckoBaseURL
	}
	if cfg.Currency == "" {
		cfg.Currency = defaultCurrency
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = defaultRatePerMinute
	}

	c := &CoinGeckoClient{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		rateLimiter: rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), 1),
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		currency:    strings.ToLower(cfg.Currency),
		maxRetries:  cfg.MaxRetries,
		backoff:     cfg.Backoff,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPrices implements the PriceFetcher interface.
func (c *CoinGeckoClient) FetchPrices(ctx context.Context, assetIDs []string) (map[string]models.PriceQuote, error) {
	ids, err := normalizeAssetIDs(assetIDs)
	if err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", c.currency)
	query.Set("include_24hr_change", "true")
	requestURL := c.baseURL + simplePriceEndpoint + "?" + query.Encode()

	c.logger.Debug("fetching prices from CoinGecko", "assets", ids, "currency", c.currency)

	payload, err := c.getWithRetry(ctx, requestURL)
	if err != nil {
		return nil, err
	}

	return c.extractQuotes(ids, payload)
}

// HealthCheck implements the HealthChecker interface.
func (c *CoinGeckoClient) HealthCheck(ctx context.Context) error {
	healthCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(healthCtx, http.MethodGet, c.baseURL+pingEndpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}
	return nil
}

type priceEntry map[string]json.RawMessage

// getWithRetry performs the GET, retrying transport failures, non-2xx statuses
// and undecodable payloads up to maxRetries attempts with linear backoff.
func (c *CoinGeckoClient) getWithRetry(ctx context.Context, requestURL string) (map[string]priceEntry, error) {
	var (
		payload    map[string]priceEntry
		attempts   int
		statusCode int
	)

	operation := func() error {
		attempts++
		statusCode = 0

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "go-quote-forecaster/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			statusCode = resp.StatusCode
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, maxErrorBodyBytes))
		}

		decoded := make(map[string]priceEntry)
		if err := json.NewDecoder(bytes.NewReader(body)).Decode(&decoded); err != nil {
			return &qerrors.ResponseShapeError{Reason: "payload is not a JSON object of assets", Err: err}
		}

		payload = decoded
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(qerrors.NewLinearBackoff(c.backoff, 0), uint64(c.maxRetries-1)),
		ctx,
	)

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("price request failed, retrying",
			"attempt", attempts,
			"max_attempts", c.maxRetries,
			"error_type", qerrors.Classify(err),
			"retry_in", wait,
			"error", err)
	}

	var timer backoff.Timer
	if c.newTimer != nil {
		timer = c.newTimer()
	}

	err := backoff.RetryNotifyWithTimer(operation, policy, notify, timer)
	if err == nil {
		return payload, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("price request interrupted after %d attempts: %w", attempts, ctxErr)
	}

	// the caller logs the final failure
	c.logger.Debug("price request retries exhausted",
		"url", requestURL,
		"attempts", attempts,
		"error_type", qerrors.Classify(err),
		"error", err)

	var shape *qerrors.ResponseShapeError
	if errors.As(err, &shape) {
		return nil, shape
	}

	return nil, &qerrors.UpstreamError{
		URL:        requestURL,
		StatusCode: statusCode,
		Attempts:   attempts,
		Err:        err,
	}
}

// extractQuotes normalizes the decoded payload. Assets that are absent, lack a
// price for the configured currency or carry a non-positive price are skipped.
func (c *CoinGeckoClient) extractQuotes(ids []string, payload map[string]priceEntry) (map[string]models.PriceQuote, error) {
	quotes := make(map[string]models.PriceQuote, len(ids))
	var missing []string

	changeKey := c.currency + "_24h_change"
	for _, id := range ids {
		entry, ok := payload[id]
		if !ok {
			c.logger.Warn("asset missing from upstream response, skipping", "asset", id)
			missing = append(missing, id)
			continue
		}

		price, err := decodePrice(entry[c.currency])
		if err != nil {
			c.logger.Warn("asset has no usable price, skipping", "asset", id, "currency", c.currency, "error", err)
			missing = append(missing, id)
			continue
		}

		quotes[id] = models.PriceQuote{
			Price:     price,
			ChangePct: decodeChange(entry[changeKey]),
		}
	}

	if len(quotes) == 0 {
		return nil, &qerrors.ResponseShapeError{Reason: "no requested asset present", Missing: missing}
	}
	return quotes, nil
}

func decodePrice(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero, fmt.Errorf("price field missing")
	}

	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return decimal.Zero, fmt.Errorf("price is not numeric: %w", err)
	}

	price, err := decimal.NewFromString(num.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q: %w", num, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("price must be greater than 0, got %s", price)
	}
	return price, nil
}

func decodeChange(raw json.RawMessage) null.Float {
	if len(raw) == 0 {
		return null.Float{}
	}
	var pct null.Float
	if err := json.Unmarshal(raw, &pct); err != nil {
		return null.Float{}
	}
	return pct
}

func truncate(body []byte, n int) string {
	if len(body) > n {
		return string(body[:n]) + "..."
	}
	return string(body)
}
