package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourusername/quant-grid/internal/market"
)

const (
	candleAPISourceName = "candle_api"
	defaultCandleLimit  = 1000
)

// CandleAPIClient implements Source for JSON candle HTTP APIs
type CandleAPIClient struct {
	httpClient *RateLimitedHTTPClient
	baseURL    string
	apiKey     string
	symbol     string
	interval   string
	limit      int
	logger     *log.Logger
}

// apiCandle represents a single candle as returned by the API. Price and
// volume fields arrive as decimal strings.
type apiCandle struct {
	Time   string `json:"time"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
}

// NewCandleAPIClient creates a new candle API client
func NewCandleAPIClient(httpClient *RateLimitedHTTPClient, baseURL, apiKey, symbol, interval string, limit int, logger *log.Logger) *CandleAPIClient {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if limit <= 0 {
		limit = defaultCandleLimit
	}
	return &CandleAPIClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		symbol:     symbol,
		interval:   interval,
		limit:      limit,
		logger:     logger,
	}
}

// LoadSeries retrieves candles for the configured symbol and interval
func (c *CandleAPIClient) LoadSeries(ctx context.Context) (*market.Series, error) {
	url := fmt.Sprintf("%s/candles?symbol=%s&interval=%s&limit=%d", c.baseURL, c.symbol, c.interval, c.limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, NewSourceError(candleAPISourceName, ErrCodeNetworkError, "failed to create request", err)
	}

	// Add authentication header
	if c.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, NewSourceError(candleAPISourceName, ErrCodeNetworkError, "failed to fetch candles", err)
	}
	defer resp.Body.Close()

	// Handle authentication errors
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, NewSourceError(candleAPISourceName, ErrCodeAuthenticationFailed, "invalid API key", nil)
	}

	// Handle rate limiting
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, NewSourceError(candleAPISourceName, ErrCodeRateLimitExceeded, "rate limit exceeded", nil)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, NewSourceError(candleAPISourceName, ErrCodeNotFound, fmt.Sprintf("no candles for symbol %s", c.symbol), nil)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, NewSourceError(candleAPISourceName, ErrCodeServerError, fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var candles []apiCandle
	if err := json.NewDecoder(resp.Body).Decode(&candles); err != nil {
		return nil, NewSourceError(candleAPISourceName, ErrCodeInvalidData, "failed to parse response", err)
	}

	// Convert to bars, skipping candles that fail to parse
	bars := make([]market.Bar, 0, len(candles))
	for _, candle := range candles {
		bar, err := c.convertCandle(candle)
		if err != nil {
			c.logger.Printf("Skipping candle at %s: %v", candle.Time, err)
			continue
		}
		bars = append(bars, bar)
	}

	series, err := market.NewSeries(bars)
	if err != nil {
		return nil, NewSourceError(candleAPISourceName, ErrCodeInvalidData, "response did not form a valid series", err)
	}

	c.logger.Printf("Loaded %d bars for %s from %s", series.Len(), c.symbol, c.baseURL)
	return series, nil
}

// Name returns the data source name
func (c *CandleAPIClient) Name() string {
	return candleAPISourceName
}

// convertCandle converts the API candle format to a market bar
func (c *CandleAPIClient) convertCandle(candle apiCandle) (market.Bar, error) {
	ts, err := time.Parse(time.RFC3339, candle.Time)
	if err != nil {
		return market.Bar{}, fmt.Errorf("invalid timestamp %q: %w", candle.Time, err)
	}

	open, err := parsePrice(candle.Open)
	if err != nil {
		return market.Bar{}, err
	}
	high, err := parsePrice(candle.High)
	if err != nil {
		return market.Bar{}, err
	}
	low, err := parsePrice(candle.Low)
	if err != nil {
		return market.Bar{}, err
	}
	closePx, err := parsePrice(candle.Close)
	if err != nil {
		return market.Bar{}, err
	}
	volume, err := parsePrice(candle.Volume)
	if err != nil {
		return market.Bar{}, err
	}

	return market.Bar{
		Timestamp: ts,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePx,
		Volume:    volume,
	}, nil
}

// parsePrice parses a decimal string to float64
func parsePrice(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return d.InexactFloat64(), nil
}
