// Package depositTracer implements the wallet graph trace: it walks a user's
// outbound transfers, identifies candidate intermediary wallets, and checks
// which of them forwarded funds to the casino treasury. The user→intermediary
// transfer, not the forwarding transfer, is what qualifies as a deposit.
package depositTracer

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	sinkMetrics "github.com/vampfi/bonus-engine/internal/metrics"
	"github.com/vampfi/bonus-engine/internal/metrics/metricsTypes"
	"github.com/vampfi/bonus-engine/pkg/bonusTypes"
	"github.com/vampfi/bonus-engine/pkg/progressBus/progressBusTypes"
	"github.com/vampfi/bonus-engine/pkg/transferSource"
	"github.com/vampfi/bonus-engine/pkg/utils"
	"go.uber.org/zap"
)

const (
	DefaultCandidateBatchSize = 80
	DefaultBatchDelay         = 1100 * time.Millisecond
)

// ProgressSink receives coarse-grained progress updates. It must be safe to
// call from concurrent batch tasks.
type ProgressSink func(percent float64, message string)

// TracerConfig contains the batching and pacing knobs for a trace.
type TracerConfig struct {
	// CandidateBatchSize is the number of candidate wallets checked per batch
	CandidateBatchSize int
	// BatchDelay is the pause between batches; skipped after the final batch
	BatchDelay time.Duration
	// MaxPages caps pagination per transfer fetch; 0 means unbounded
	MaxPages int
}

// DepositTracer finds qualifying deposits for one chain via its adapter.
type DepositTracer struct {
	adapter transferSource.ChainAdapter
	config  *TracerConfig
	metrics metricsTypes.IMetricsClient
	logger  *zap.Logger
}

func NewDepositTracer(adapter transferSource.ChainAdapter, cfg *TracerConfig, metrics metricsTypes.IMetricsClient, l *zap.Logger) *DepositTracer {
	if cfg == nil {
		cfg = &TracerConfig{}
	}
	if cfg.CandidateBatchSize <= 0 {
		cfg.CandidateBatchSize = DefaultCandidateBatchSize
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = DefaultBatchDelay
	}
	if metrics == nil {
		metrics = &sinkMetrics.MultiMetricsClient{}
	}
	return &DepositTracer{
		adapter: adapter,
		config:  cfg,
		metrics: metrics,
		logger:  l,
	}
}

// candidate groups every user→wallet transfer observed for one intermediary
// wallet hypothesis.
type candidate struct {
	address   string
	transfers []*bonusTypes.TransferRecord
}

// TraceDeposits returns every qualifying deposit from userWallet toward the
// casino's treasury, across all intermediaries. Candidates are checked in
// fixed-size batches with settle-all semantics: a failed candidate check is
// logged and skipped, never aborts the batch. A failed top-level fetch fails
// the whole trace with bonusTypes.ErrSourceUnavailable.
func (dt *DepositTracer) TraceDeposits(ctx context.Context, userWallet string, casinoId string, treasury string, sink ProgressSink) ([]*bonusTypes.QualifyingDeposit, error) {
	if sink == nil {
		sink = func(float64, string) {}
	}
	sink(0, progressBusTypes.Status_ScanningWallets)

	outbound, err := dt.adapter.FetchTransfers(ctx, userWallet, &transferSource.FetchOptions{
		MaxPages: dt.config.MaxPages,
	})
	if err != nil {
		dt.logger.Sugar().Errorw("failed to fetch outbound transfers for wallet",
			zap.String("wallet", userWallet),
			zap.String("casinoId", casinoId),
			zap.Error(err),
		)
		return nil, err
	}

	candidates := dt.collectCandidates(outbound)
	dt.logger.Sugar().Infow("Collected candidate wallets",
		zap.String("wallet", userWallet),
		zap.String("casinoId", casinoId),
		zap.Int("outboundTransfers", len(outbound)),
		zap.Int("candidates", len(candidates)),
	)
	if len(candidates) == 0 {
		sink(100, progressBusTypes.Status_Done)
		return []*bonusTypes.QualifyingDeposit{}, nil
	}

	total := len(candidates)
	var checked atomic.Int64

	deposits := make([]*bonusTypes.QualifyingDeposit, 0)
	depositsMu := sync.Mutex{}

	batches := utils.Chunk(candidates, dt.config.CandidateBatchSize)
	for batchIndex, batch := range batches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		wg := sync.WaitGroup{}
		for _, c := range batch {
			wg.Add(1)
			go func(c *candidate) {
				defer wg.Done()
				defer func() {
					done := checked.Add(1)
					percent := math.Round(float64(done)/float64(total)*10000) / 100
					sink(percent, progressBusTypes.Status_ScanningWallets)
				}()

				qualified, err := dt.checkCandidate(ctx, c, treasury)
				if err != nil {
					// settle-all semantics: one bad candidate never aborts the batch
					dt.logger.Sugar().Warnw("candidate check failed, skipping",
						zap.String("candidate", c.address),
						zap.Error(err),
					)
					return
				}
				if !qualified {
					return
				}

				for _, transfer := range c.transfers {
					deposit, ok := bonusTypes.NewQualifyingDeposit(casinoId, transfer)
					if !ok {
						dt.logger.Sugar().Debugw("discarding qualifying transfer with missing fields",
							zap.String("candidate", c.address),
							zap.String("txHash", transfer.TxHash),
						)
						continue
					}
					depositsMu.Lock()
					deposits = append(deposits, deposit)
					depositsMu.Unlock()
				}
			}(c)
		}
		wg.Wait()

		if batchIndex < len(batches)-1 {
			select {
			case <-time.After(dt.config.BatchDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	sink(100, progressBusTypes.Status_Done)
	_ = dt.metrics.Gauge(metricsTypes.Metric_Gauge_CandidatesChecked, float64(total), []metricsTypes.MetricsLabel{
		{Name: "chain", Value: string(dt.adapter.Chain())},
	})
	dt.logger.Sugar().Infow("Trace complete",
		zap.String("wallet", userWallet),
		zap.String("casinoId", casinoId),
		zap.Int("candidatesChecked", total),
		zap.Int("qualifyingDeposits", len(deposits)),
	)
	return deposits, nil
}

// collectCandidates deduplicates outbound transfer recipients into candidate
// intermediary wallets. Transfers with no recipient are skipped.
func (dt *DepositTracer) collectCandidates(outbound []*bonusTypes.TransferRecord) []*candidate {
	byAddress := make(map[string]*candidate)
	ordered := make([]*candidate, 0)

	for _, transfer := range outbound {
		if transfer.To == "" {
			continue
		}
		key := dt.adapter.NormalizeAddress(transfer.To)
		c, ok := byAddress[key]
		if !ok {
			c = &candidate{address: transfer.To}
			byAddress[key] = c
			ordered = append(ordered, c)
		}
		c.transfers = append(c.transfers, transfer)
	}
	return ordered
}

// checkCandidate reports whether the candidate wallet ever transferred to the
// treasury. A candidate with zero matching transfers is discarded silently.
func (dt *DepositTracer) checkCandidate(ctx context.Context, c *candidate, treasury string) (bool, error) {
	forwards, err := dt.adapter.FetchTransfers(ctx, c.address, &transferSource.FetchOptions{
		Counterparty: treasury,
		MaxPages:     dt.config.MaxPages,
	})
	if err != nil {
		return false, err
	}
	return len(forwards) > 0, nil
}
