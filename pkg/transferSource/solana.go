package transferSource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vampfi/bonus-engine/internal/config"
	"github.com/vampfi/bonus-engine/pkg/bonusTypes"
	"github.com/vampfi/bonus-engine/pkg/clients/helius"
	"github.com/vampfi/bonus-engine/pkg/requestPool"
	"github.com/vampfi/bonus-engine/pkg/utils"
	"go.uber.org/zap"
)

const solNativeAsset = "SOL"

var lamportsPerSol = decimal.NewFromInt(1_000_000_000)

// SolanaAdapter implements ChainAdapter for Solana on top of the helius
// client. Mint symbols are resolved through getAsset and memoized for the
// adapter's lifetime; mint metadata is immutable so this does not violate the
// no-caching rule for transfer fetches.
type SolanaAdapter struct {
	client *helius.Client
	pool   *requestPool.Pool
	logger *zap.Logger

	mu          sync.Mutex
	mintSymbols map[string]string
}

func NewSolanaAdapter(client *helius.Client, pool *requestPool.Pool, l *zap.Logger) *SolanaAdapter {
	return &SolanaAdapter{
		client:      client,
		pool:        pool,
		logger:      l,
		mintSymbols: make(map[string]string),
	}
}

func (a *SolanaAdapter) Chain() config.Chain {
	return config.Chain_Solana
}

func (a *SolanaAdapter) IsNativeTransfer(t *bonusTypes.TransferRecord) bool {
	return t.Asset == solNativeAsset
}

func (a *SolanaAdapter) IsFungibleTransfer(t *bonusTypes.TransferRecord) bool {
	return t.Asset != "" && t.Asset != solNativeAsset
}

// AddressesEqual compares Solana addresses exactly; base58 is case-sensitive.
func (a *SolanaAdapter) AddressesEqual(x string, y string) bool {
	return x == y
}

func (a *SolanaAdapter) NormalizeAddress(x string) string {
	return x
}

func (a *SolanaAdapter) FetchTransfers(ctx context.Context, address string, opts *FetchOptions) ([]*bonusTypes.TransferRecord, error) {
	if opts == nil {
		opts = &FetchOptions{}
	}

	records := make([]*bonusTypes.TransferRecord, 0)
	before := ""
	pages := 0

	for {
		var txs []*helius.EnhancedTransaction
		err := a.pool.Do(ctx, func() error {
			var fetchErr error
			txs, fetchErr = a.client.GetTransactionsForAddress(ctx, address, before)
			return fetchErr
		})
		if err != nil {
			a.logger.Sugar().Errorw("failed to fetch Solana transactions",
				zap.String("address", address),
				zap.Int("page", pages),
				zap.Error(err),
			)
			return nil, fmt.Errorf("%w: %s", bonusTypes.ErrSourceUnavailable, err)
		}
		if len(txs) == 0 {
			break
		}

		for _, tx := range txs {
			matched := utils.Filter(a.mapTransaction(ctx, address, tx), func(record *bonusTypes.TransferRecord) bool {
				if opts.Counterparty != "" && record.To != opts.Counterparty {
					return false
				}
				return opts.AssetFilter == "" || record.Asset == opts.AssetFilter
			})
			records = append(records, matched...)
		}

		pages++
		if opts.MaxPages > 0 && pages >= opts.MaxPages {
			break
		}
		before = txs[len(txs)-1].Signature
	}

	a.logger.Sugar().Debugw("Fetched Solana transfers",
		zap.String("address", address),
		zap.Int("count", len(records)),
		zap.Int("pages", pages),
	)
	return records, nil
}

// mapTransaction flattens a parsed transaction into outbound transfer records
// for the traced address.
func (a *SolanaAdapter) mapTransaction(ctx context.Context, address string, tx *helius.EnhancedTransaction) []*bonusTypes.TransferRecord {
	ts := time.Unix(tx.Timestamp, 0).UTC()
	records := make([]*bonusTypes.TransferRecord, 0)

	for _, t := range tx.TokenTransfers {
		if t.FromUserAccount != address {
			continue
		}
		amount := decimal.NewFromFloat(t.TokenAmount)
		records = append(records, &bonusTypes.TransferRecord{
			From:         t.FromUserAccount,
			To:           t.ToUserAccount,
			Asset:        a.resolveMintSymbol(ctx, t.Mint),
			Amount:       &amount,
			TimestampUtc: ts,
			TxHash:       tx.Signature,
		})
	}
	for _, t := range tx.NativeTransfers {
		if t.FromUserAccount != address {
			continue
		}
		amount := decimal.NewFromInt(t.Amount).Div(lamportsPerSol)
		records = append(records, &bonusTypes.TransferRecord{
			From:         t.FromUserAccount,
			To:           t.ToUserAccount,
			Asset:        solNativeAsset,
			Amount:       &amount,
			TimestampUtc: ts,
			TxHash:       tx.Signature,
		})
	}
	return records
}

// resolveMintSymbol maps a mint address to its token symbol. Unresolvable
// mints yield an empty symbol; those records are discarded before valuation.
func (a *SolanaAdapter) resolveMintSymbol(ctx context.Context, mint string) string {
	a.mu.Lock()
	if symbol, ok := a.mintSymbols[mint]; ok {
		a.mu.Unlock()
		return symbol
	}
	a.mu.Unlock()

	var asset *helius.Asset
	err := a.pool.Do(ctx, func() error {
		var fetchErr error
		asset, fetchErr = a.client.GetAsset(ctx, mint)
		return fetchErr
	})
	if err != nil {
		a.logger.Sugar().Warnw("failed to resolve mint symbol",
			zap.String("mint", mint),
			zap.Error(err),
		)
		return ""
	}

	a.mu.Lock()
	a.mintSymbols[mint] = asset.Symbol
	a.mu.Unlock()
	return asset.Symbol
}
