// Package upstream is the rate-limited market-data API client used by the
// collector (C7), grounded on the teacher's internal/core/adapters/client/dhan
// Client (http.Client + do() envelope) adapted to a paginated candle feed
// and a golang.org/x/time/rate limiter instead of Dhan's unthrottled calls.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"tradeforge-core/pkg/log"
)

// Config configures one Client instance.
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	RequestsPerSec  float64
	Burst           int
}

func (c *Config) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RequestsPerSec <= 0 {
		c.RequestsPerSec = 5
	}
	if c.Burst <= 0 {
		c.Burst = int(c.RequestsPerSec)
		if c.Burst < 1 {
			c.Burst = 1
		}
	}
}

// Client is a token-bucket-throttled HTTP client for the upstream candle
// feed. One process should share a single Client so the limiter actually
// bounds total outbound request rate.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
}

func NewClient(cfg Config) *Client {
	cfg.setDefaults()
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst),
		baseURL:    cfg.BaseURL,
	}
}

// Candle is one OHLCV row as returned by the upstream feed.
type Candle struct {
	Begin  time.Time `json:"begin"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// CandlesResponse is the upstream page envelope: Candles holds the page's
// rows, and More reports whether a subsequent page (from the last row's
// Begin onward) is available.
type CandlesResponse struct {
	Candles []Candle `json:"candles"`
	More    bool     `json:"more"`
}

// FetchCandles requests one page of candles for ticker/timeframe starting
// at from (exclusive), blocking on the rate limiter before issuing the
// request.
func (c *Client) FetchCandles(ctx context.Context, ticker, timeframe string, from time.Time) (CandlesResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return CandlesResponse{}, err
	}

	u := fmt.Sprintf("%s/candles?ticker=%s&timeframe=%s&from=%s",
		c.baseURL, url.QueryEscape(ticker), url.QueryEscape(timeframe), from.Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return CandlesResponse{}, errors.Wrap(err, "failed to build upstream request")
	}
	req.Header.Set("Accept", "application/json")

	var out CandlesResponse
	if err := c.do(req, &out); err != nil {
		return CandlesResponse{}, err
	}
	return out, nil
}

func (c *Client) do(req *http.Request, v interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to execute upstream request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read upstream response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upstream error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	if v != nil {
		if err := json.Unmarshal(body, v); err != nil {
			log.Error("upstream: failed to unmarshal response: %v, body=%s", err, string(body))
			return errors.Wrap(err, "failed to unmarshal upstream response")
		}
	}
	return nil
}
