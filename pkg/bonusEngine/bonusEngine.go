// Package bonusEngine orchestrates a full bonus computation: trace deposits
// through intermediary wallets, price them at historical timestamps, and fold
// them into a score. The engine is chain-agnostic; chain specifics live behind
// the transferSource adapters.
package bonusEngine

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/vampfi/bonus-engine/internal/config"
	sinkMetrics "github.com/vampfi/bonus-engine/internal/metrics"
	"github.com/vampfi/bonus-engine/internal/metrics/metricsTypes"
	"github.com/vampfi/bonus-engine/pkg/bonusTypes"
	"github.com/vampfi/bonus-engine/pkg/depositTracer"
	"github.com/vampfi/bonus-engine/pkg/depositValuator"
	"github.com/vampfi/bonus-engine/pkg/progressBus/progressBusTypes"
	"github.com/vampfi/bonus-engine/pkg/scoreAggregator"
	"github.com/vampfi/bonus-engine/pkg/transferSource"
	"go.uber.org/zap"
)

// BonusEngine computes bonus scores for wallets. One engine serves all
// configured chains; each computation picks the adapter for its chain.
type BonusEngine struct {
	adapters     map[config.Chain]transferSource.ChainAdapter
	valuator     *depositValuator.DepositValuator
	tracerConfig *depositTracer.TracerConfig
	metrics      metricsTypes.IMetricsClient
	logger       *zap.Logger
}

func NewBonusEngine(
	adapters []transferSource.ChainAdapter,
	valuator *depositValuator.DepositValuator,
	tracerConfig *depositTracer.TracerConfig,
	metrics metricsTypes.IMetricsClient,
	l *zap.Logger,
) *BonusEngine {
	byChain := make(map[config.Chain]transferSource.ChainAdapter)
	for _, a := range adapters {
		byChain[a.Chain()] = a
	}
	if metrics == nil {
		metrics = &sinkMetrics.MultiMetricsClient{}
	}
	return &BonusEngine{
		adapters:     byChain,
		valuator:     valuator,
		tracerConfig: tracerConfig,
		metrics:      metrics,
		logger:       l,
	}
}

func (be *BonusEngine) adapterForChain(chain config.Chain) (transferSource.ChainAdapter, error) {
	adapter, ok := be.adapters[chain]
	if !ok {
		return nil, errors.Errorf("no adapter registered for chain '%s'", chain)
	}
	return adapter, nil
}

// ComputeBonus computes the bonus result for one wallet against one casino.
//
// An unknown casino/chain combination returns an InvalidConfigurationError;
// that is a setup bug, not a zero-score wallet. A failing chain source yields
// a result with Status Error so callers can tell "no deposits" apart from
// "could not look".
func (be *BonusEngine) ComputeBonus(ctx context.Context, wallet string, chain config.Chain, casinoId string, sink depositTracer.ProgressSink) (*bonusTypes.BonusResult, error) {
	adapter, err := be.adapterForChain(chain)
	if err != nil {
		return nil, err
	}
	treasury, ok := config.GetTreasuryForCasinoAndChain(casinoId, chain)
	if !ok {
		return nil, &bonusTypes.InvalidConfigurationError{CasinoId: casinoId, Chain: string(chain)}
	}

	deposits, err := be.traceCasino(ctx, adapter, wallet, casinoId, treasury, sink)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return bonusTypes.NewEmptyBonusResult(wallet, string(chain), bonusTypes.BonusStatus_Error), nil
	}

	return be.valuateAndAggregate(ctx, wallet, chain, deposits, sink)
}

// ComputeAllBonuses computes one combined result for a wallet across every
// casino configured on the chain. Any casino whose trace fails fails the whole
// computation to Status Error; a partial total would understate the score
// silently.
func (be *BonusEngine) ComputeAllBonuses(ctx context.Context, wallet string, chain config.Chain, sink depositTracer.ProgressSink) (*bonusTypes.BonusResult, error) {
	adapter, err := be.adapterForChain(chain)
	if err != nil {
		return nil, err
	}
	casinos := config.ListCasinosForChain(chain)
	if len(casinos) == 0 {
		return nil, &bonusTypes.InvalidConfigurationError{CasinoId: "*", Chain: string(chain)}
	}

	allDeposits := make([]*bonusTypes.QualifyingDeposit, 0)
	for _, casino := range casinos {
		treasury := casino.Treasuries[chain]
		deposits, err := be.traceCasino(ctx, adapter, wallet, casino.Id, treasury, sink)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return bonusTypes.NewEmptyBonusResult(wallet, string(chain), bonusTypes.BonusStatus_Error), nil
		}
		allDeposits = append(allDeposits, deposits...)
	}

	return be.valuateAndAggregate(ctx, wallet, chain, allDeposits, sink)
}

func (be *BonusEngine) traceCasino(ctx context.Context, adapter transferSource.ChainAdapter, wallet string, casinoId string, treasury string, sink depositTracer.ProgressSink) ([]*bonusTypes.QualifyingDeposit, error) {
	labels := []metricsTypes.MetricsLabel{
		{Name: "chain", Value: string(adapter.Chain())},
		{Name: "casino", Value: casinoId},
	}
	_ = be.metrics.Incr(metricsTypes.Metric_Incr_TraceStarted, labels, 1)
	start := time.Now()

	tracer := depositTracer.NewDepositTracer(adapter, be.tracerConfig, be.metrics, be.logger)
	deposits, err := tracer.TraceDeposits(ctx, wallet, casinoId, treasury, sink)

	_ = be.metrics.Timing(metricsTypes.Metric_Timing_TraceDuration, time.Since(start), append(labels,
		metricsTypes.MetricsLabel{Name: "hasError", Value: fmt.Sprintf("%t", err != nil)},
	))
	if err != nil {
		_ = be.metrics.Incr(metricsTypes.Metric_Incr_TraceFailed, labels, 1)
		be.logger.Sugar().Errorw("trace failed",
			zap.String("wallet", wallet),
			zap.String("casinoId", casinoId),
			zap.Error(err),
		)
		return nil, err
	}

	_ = be.metrics.Incr(metricsTypes.Metric_Incr_TraceCompleted, labels, 1)
	_ = be.metrics.Incr(metricsTypes.Metric_Incr_DepositQualified, labels, float64(len(deposits)))
	return deposits, nil
}

func (be *BonusEngine) valuateAndAggregate(ctx context.Context, wallet string, chain config.Chain, deposits []*bonusTypes.QualifyingDeposit, sink depositTracer.ProgressSink) (*bonusTypes.BonusResult, error) {
	if sink != nil && len(deposits) > 0 {
		sink(0, progressBusTypes.Status_FetchingAllDeposits)
	}

	start := time.Now()
	priced, unpriced, err := be.valuator.ValuateDeposits(ctx, deposits)
	if err != nil {
		return nil, err
	}
	_ = be.metrics.Timing(metricsTypes.Metric_Timing_ValuationDuration, time.Since(start), []metricsTypes.MetricsLabel{
		{Name: "chain", Value: string(chain)},
	})
	for _, d := range unpriced {
		_ = be.metrics.Incr(metricsTypes.Metric_Incr_DepositUnpriced, []metricsTypes.MetricsLabel{
			{Name: "asset", Value: d.Asset},
		}, 1)
	}

	result := scoreAggregator.Aggregate(wallet, string(chain), priced, unpriced)
	for pair := result.PerCasino.Oldest(); pair != nil; pair = pair.Next() {
		_ = be.metrics.Gauge(metricsTypes.Metric_Gauge_TotalScore, float64(pair.Value.Score), []metricsTypes.MetricsLabel{
			{Name: "chain", Value: string(chain)},
			{Name: "casino", Value: pair.Key},
		})
	}

	be.logger.Sugar().Infow("Bonus computation complete",
		zap.String("wallet", wallet),
		zap.String("chain", string(chain)),
		zap.String("totalDepositedUsd", result.TotalDepositedUsd.String()),
		zap.Int64("totalScore", result.TotalScore),
		zap.Int("unpricedDeposits", len(result.UnpricedDeposits)),
	)
	return result, nil
}
