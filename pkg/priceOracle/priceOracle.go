// Package priceOracle resolves historical USD spot prices for asset symbols,
// retrying transient provider failures with a bounded budget.
package priceOracle

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	sinkMetrics "github.com/vampfi/bonus-engine/internal/metrics"
	"github.com/vampfi/bonus-engine/internal/metrics/metricsTypes"
	"github.com/vampfi/bonus-engine/pkg/clients/coinmarketcap"
	"github.com/vampfi/bonus-engine/pkg/requestPool"
	"go.uber.org/zap"
)

const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 1 * time.Second
)

// Oracle wraps the historical quote client with retry and admission control.
// Exhausting the retry budget yields not-found, never an error: a missing
// price excludes a single deposit from valuation and must not abort a trace.
type Oracle struct {
	client        *coinmarketcap.Client
	pool          *requestPool.Pool
	metrics       metricsTypes.IMetricsClient
	logger        *zap.Logger
	retryAttempts int
	retryDelay    time.Duration
}

func NewOracle(client *coinmarketcap.Client, pool *requestPool.Pool, retryAttempts int, retryDelay time.Duration, metrics metricsTypes.IMetricsClient, l *zap.Logger) *Oracle {
	if retryAttempts <= 0 {
		retryAttempts = DefaultRetryAttempts
	}
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	if metrics == nil {
		metrics = &sinkMetrics.MultiMetricsClient{}
	}
	return &Oracle{
		client:        client,
		pool:          pool,
		metrics:       metrics,
		logger:        l,
		retryAttempts: retryAttempts,
		retryDelay:    retryDelay,
	}
}

// GetHistoricalPrice resolves the USD price of symbol at ts. The second
// return value is false when no price could be resolved within the retry
// budget. A zero price with found=true is a valid provider answer, distinct
// from not-found. The only error returned is context cancellation.
func (o *Oracle) GetHistoricalPrice(ctx context.Context, symbol string, ts time.Time) (decimal.Decimal, bool, error) {
	var lastErr error

	for attempt := 1; attempt <= o.retryAttempts; attempt++ {
		var price decimal.Decimal
		var found bool
		err := o.pool.Do(ctx, func() error {
			var quoteErr error
			price, found, quoteErr = o.client.GetHistoricalQuote(ctx, symbol, ts)
			return quoteErr
		})
		if err == nil && found {
			return price, true, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return decimal.Zero, false, ctxErr
		}
		lastErr = err

		o.logger.Sugar().Debugw("price lookup attempt failed",
			zap.String("symbol", symbol),
			zap.Time("timestamp", ts),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < o.retryAttempts {
			_ = o.metrics.Incr(metricsTypes.Metric_Incr_PriceLookupRetried, []metricsTypes.MetricsLabel{
				{Name: "asset", Value: symbol},
			}, 1)
			select {
			case <-time.After(o.retryDelay):
			case <-ctx.Done():
				return decimal.Zero, false, ctx.Err()
			}
		}
	}

	o.logger.Sugar().Warnw("price not found after exhausting retries",
		zap.String("symbol", symbol),
		zap.Time("timestamp", ts),
		zap.Int("attempts", o.retryAttempts),
		zap.Error(lastErr),
	)
	return decimal.Zero, false, nil
}
