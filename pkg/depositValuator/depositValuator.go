// Package depositValuator prices qualifying deposits in USD at their
// historical timestamps. Deposits whose price cannot be resolved are excluded
// from valuation and reported separately rather than valued at zero.
package depositValuator

import (
	"context"
	"sync"

	"github.com/vampfi/bonus-engine/pkg/bonusTypes"
	"github.com/vampfi/bonus-engine/pkg/priceOracle"
	"go.uber.org/zap"
)

// DepositValuator prices deposits through the oracle. Each deposit is priced
// at its own timestamp; identical (asset, timestamp) pairs are still priced
// independently so a trace never observes stale quotes.
type DepositValuator struct {
	oracle *priceOracle.Oracle
	logger *zap.Logger
}

func NewDepositValuator(oracle *priceOracle.Oracle, l *zap.Logger) *DepositValuator {
	return &DepositValuator{
		oracle: oracle,
		logger: l,
	}
}

// ValuateDeposits prices every deposit concurrently and returns the valuated
// set plus the deposits for which no price could be resolved. Order of the
// valuated set follows the input order. The only returned error is context
// cancellation.
func (dv *DepositValuator) ValuateDeposits(ctx context.Context, deposits []*bonusTypes.QualifyingDeposit) ([]*bonusTypes.ValuatedDeposit, []*bonusTypes.QualifyingDeposit, error) {
	valuated := make([]*bonusTypes.ValuatedDeposit, len(deposits))
	unpricedFlags := make([]bool, len(deposits))

	wg := sync.WaitGroup{}
	errsMu := sync.Mutex{}
	var firstErr error

	for i, deposit := range deposits {
		wg.Add(1)
		go func(i int, deposit *bonusTypes.QualifyingDeposit) {
			defer wg.Done()

			price, found, err := dv.oracle.GetHistoricalPrice(ctx, deposit.Asset, deposit.TimestampUtc)
			if err != nil {
				errsMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errsMu.Unlock()
				return
			}
			if !found {
				dv.logger.Sugar().Warnw("no historical price for deposit, excluding from valuation",
					zap.String("asset", deposit.Asset),
					zap.Time("timestamp", deposit.TimestampUtc),
					zap.String("txHash", deposit.TxHash),
				)
				unpricedFlags[i] = true
				return
			}

			valuated[i] = &bonusTypes.ValuatedDeposit{
				Deposit:         deposit,
				UsdPricePerUnit: price,
				UsdValue:        deposit.Amount.Mul(price),
			}
		}(i, deposit)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, nil, firstErr
	}

	priced := make([]*bonusTypes.ValuatedDeposit, 0, len(deposits))
	unpriced := make([]*bonusTypes.QualifyingDeposit, 0)
	for i := range deposits {
		if unpricedFlags[i] {
			unpriced = append(unpriced, deposits[i])
			continue
		}
		if valuated[i] != nil {
			priced = append(priced, valuated[i])
		}
	}

	dv.logger.Sugar().Debugw("Valuated deposits",
		zap.Int("priced", len(priced)),
		zap.Int("unpriced", len(unpriced)),
	)
	return priced, unpriced, nil
}
