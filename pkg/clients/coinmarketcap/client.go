// Package coinmarketcap implements the historical price provider against a
// CoinMarketCap-style historical quotes API.
package coinmarketcap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultBaseUrl = "https://pro-api.coinmarketcap.com/v2"

type Client struct {
	httpClient *http.Client
	baseUrl    string
	apiKey     string
	logger     *zap.Logger
}

func NewClient(baseUrl string, apiKey string, l *zap.Logger) *Client {
	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseUrl: baseUrl,
		apiKey:  apiKey,
		logger:  l,
	}
}

type usdQuote struct {
	Price *float64 `json:"price"`
}

type quoteEntry struct {
	Quote map[string]usdQuote `json:"quote"`
}

type symbolQuotes struct {
	Quotes []quoteEntry `json:"quotes"`
}

type historicalQuotesResponse struct {
	Data map[string][]symbolQuotes `json:"data"`
}

// GetHistoricalQuote fetches the USD quote for symbol nearest to ts.
//
// An empty or malformed quote set is an expected outcome (delisted token,
// timestamp before listing) and is returned as found=false with no error;
// transport and HTTP failures are returned as errors so the caller can retry.
func (c *Client) GetHistoricalQuote(ctx context.Context, symbol string, ts time.Time) (decimal.Decimal, bool, error) {
	url := fmt.Sprintf("%s/cryptocurrency/quotes/historical", c.baseUrl)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to create request: %w", err)
	}

	q := req.URL.Query()
	q.Add("symbol", symbol)
	q.Add("time_start", ts.UTC().Format(time.RFC3339))
	q.Add("interval", "5m")
	q.Add("count", "1")
	q.Add("convert", "USD")
	req.URL.RawQuery = q.Encode()

	req.Header.Set("accept", "application/json")
	req.Header.Set("X-CMC_PRO_API_KEY", c.apiKey)

	c.logger.Sugar().Debugw("Fetching historical quote",
		zap.String("symbol", symbol),
		zap.Time("timestamp", ts),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, false, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var quotes historicalQuotesResponse
	if err := json.Unmarshal(body, &quotes); err != nil {
		c.logger.Sugar().Debugw("Malformed quote payload",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		return decimal.Zero, false, nil
	}

	entries, ok := quotes.Data[symbol]
	if !ok || len(entries) == 0 || len(entries[0].Quotes) == 0 {
		return decimal.Zero, false, nil
	}
	usd, ok := entries[0].Quotes[0].Quote["USD"]
	if !ok || usd.Price == nil || *usd.Price < 0 {
		return decimal.Zero, false, nil
	}

	return decimal.NewFromFloat(*usd.Price), true, nil
}
