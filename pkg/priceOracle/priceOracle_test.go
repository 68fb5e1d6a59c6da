package priceOracle

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/vampfi/bonus-engine/internal/logger"
	"github.com/vampfi/bonus-engine/internal/metrics/metricsTypes"
	"github.com/vampfi/bonus-engine/pkg/clients/coinmarketcap"
	"github.com/vampfi/bonus-engine/pkg/requestPool"
)

const testBaseUrl = "https://pro-api.example.test/v2"

var quotesUrl = fmt.Sprintf("%s/cryptocurrency/quotes/historical", testBaseUrl)

func quotePayload(symbol string, price float64) string {
	return fmt.Sprintf(
		`{"data":{"%s":[{"quotes":[{"quote":{"USD":{"price":%f}}}]}]}}`,
		symbol, price,
	)
}

func newTestOracle(t *testing.T, retryDelay time.Duration) *Oracle {
	return newTestOracleWithMetrics(t, retryDelay, nil)
}

func newTestOracleWithMetrics(t *testing.T, retryDelay time.Duration, metrics metricsTypes.IMetricsClient) *Oracle {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	assert.Nil(t, err)
	client := coinmarketcap.NewClient(testBaseUrl, "test-key", l)
	return NewOracle(client, requestPool.NewPool(2), 3, retryDelay, metrics, l)
}

// countingMetrics records Incr calls keyed by metric name.
type countingMetrics struct {
	mu    sync.Mutex
	incrs map[string]float64
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{incrs: make(map[string]float64)}
}

func (c *countingMetrics) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.incrs[name] += value
	return nil
}

func (c *countingMetrics) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	return nil
}

func (c *countingMetrics) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	return nil
}

func (c *countingMetrics) Flush() {}

func (c *countingMetrics) incrTotal(name string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.incrs[name]
}

func Test_GetHistoricalPrice(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Should resolve a price on the first attempt", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("GET", quotesUrl,
			httpmock.NewStringResponder(200, quotePayload("USDT", 1.0)))

		oracle := newTestOracle(t, time.Millisecond)
		price, found, err := oracle.GetHistoricalPrice(context.Background(), "USDT", ts)
		assert.Nil(t, err)
		assert.True(t, found)
		assert.Equal(t, "1", price.String())
		assert.Equal(t, 1, httpmock.GetTotalCallCount())
	})

	t.Run("Should retry HTTP failures and then succeed", func(t *testing.T) {
		httpmock.Reset()
		calls := 0
		httpmock.RegisterResponder("GET", quotesUrl, func(req *http.Request) (*http.Response, error) {
			calls++
			if calls < 3 {
				return httpmock.NewStringResponse(500, "boom"), nil
			}
			return httpmock.NewStringResponse(200, quotePayload("ETH", 3050.25)), nil
		})

		oracle := newTestOracle(t, time.Millisecond)
		price, found, err := oracle.GetHistoricalPrice(context.Background(), "ETH", ts)
		assert.Nil(t, err)
		assert.True(t, found)
		assert.Equal(t, "3050.25", price.String())
		assert.Equal(t, 3, calls)
	})

	t.Run("Should count each retried lookup", func(t *testing.T) {
		httpmock.Reset()
		calls := 0
		httpmock.RegisterResponder("GET", quotesUrl, func(req *http.Request) (*http.Response, error) {
			calls++
			if calls < 3 {
				return httpmock.NewStringResponse(500, "boom"), nil
			}
			return httpmock.NewStringResponse(200, quotePayload("ETH", 3050.25)), nil
		})

		recorded := newCountingMetrics()
		oracle := newTestOracleWithMetrics(t, time.Millisecond, recorded)
		_, found, err := oracle.GetHistoricalPrice(context.Background(), "ETH", ts)
		assert.Nil(t, err)
		assert.True(t, found)
		// two failed attempts before the third succeeds
		assert.Equal(t, float64(2), recorded.incrTotal(metricsTypes.Metric_Incr_PriceLookupRetried))
	})

	t.Run("Should not count a first-attempt success as a retry", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("GET", quotesUrl,
			httpmock.NewStringResponder(200, quotePayload("USDT", 1.0)))

		recorded := newCountingMetrics()
		oracle := newTestOracleWithMetrics(t, time.Millisecond, recorded)
		_, found, err := oracle.GetHistoricalPrice(context.Background(), "USDT", ts)
		assert.Nil(t, err)
		assert.True(t, found)
		assert.Equal(t, float64(0), recorded.incrTotal(metricsTypes.Metric_Incr_PriceLookupRetried))
	})

	t.Run("Should return not-found after exhausting retries", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("GET", quotesUrl, httpmock.NewStringResponder(500, "boom"))

		oracle := newTestOracle(t, time.Millisecond)
		_, found, err := oracle.GetHistoricalPrice(context.Background(), "ETH", ts)
		assert.Nil(t, err)
		assert.False(t, found)
		assert.Equal(t, 3, httpmock.GetTotalCallCount())
	})

	t.Run("Should treat an empty quote set as not-found, not an error", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("GET", quotesUrl,
			httpmock.NewStringResponder(200, `{"data":{}}`))

		oracle := newTestOracle(t, time.Millisecond)
		_, found, err := oracle.GetHistoricalPrice(context.Background(), "SHIB", ts)
		assert.Nil(t, err)
		assert.False(t, found)
	})

	t.Run("Should distinguish a real zero price from not-found", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("GET", quotesUrl,
			httpmock.NewStringResponder(200, quotePayload("RUG", 0)))

		oracle := newTestOracle(t, time.Millisecond)
		price, found, err := oracle.GetHistoricalPrice(context.Background(), "RUG", ts)
		assert.Nil(t, err)
		assert.True(t, found)
		assert.True(t, price.IsZero())
	})

	t.Run("Should stop on context cancellation", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("GET", quotesUrl, httpmock.NewStringResponder(500, "boom"))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		oracle := newTestOracle(t, time.Millisecond)
		_, found, err := oracle.GetHistoricalPrice(ctx, "ETH", ts)
		assert.NotNil(t, err)
		assert.False(t, found)
	})
}
