package transferSource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vampfi/bonus-engine/internal/config"
	"github.com/vampfi/bonus-engine/pkg/bonusTypes"
	"github.com/vampfi/bonus-engine/pkg/clients/alchemy"
	"github.com/vampfi/bonus-engine/pkg/requestPool"
	"github.com/vampfi/bonus-engine/pkg/utils"
	"go.uber.org/zap"
)

const evmNativeAsset = "ETH"

// transferCategories selects both native and ERC-20 movements from the provider.
var transferCategories = []string{"external", "erc20"}

// EvmAdapter implements ChainAdapter for EVM chains on top of the alchemy
// client. Every page request is admitted through the shared request pool.
type EvmAdapter struct {
	client *alchemy.Client
	pool   *requestPool.Pool
	logger *zap.Logger
}

func NewEvmAdapter(client *alchemy.Client, pool *requestPool.Pool, l *zap.Logger) *EvmAdapter {
	return &EvmAdapter{
		client: client,
		pool:   pool,
		logger: l,
	}
}

func (a *EvmAdapter) Chain() config.Chain {
	return config.Chain_Ethereum
}

func (a *EvmAdapter) FetchTransfers(ctx context.Context, address string, opts *FetchOptions) ([]*bonusTypes.TransferRecord, error) {
	if opts == nil {
		opts = &FetchOptions{}
	}

	records := make([]*bonusTypes.TransferRecord, 0)
	pageKey := ""
	pages := 0

	for {
		params := &alchemy.TransferParams{
			FromAddress:  address,
			ToAddress:    opts.Counterparty,
			Category:     transferCategories,
			PageKey:      pageKey,
			WithMetadata: true,
		}

		var page *alchemy.TransfersPage
		err := a.pool.Do(ctx, func() error {
			var fetchErr error
			page, fetchErr = a.client.GetAssetTransfers(ctx, params)
			return fetchErr
		})
		if err != nil {
			a.logger.Sugar().Errorw("failed to fetch asset transfers",
				zap.String("address", address),
				zap.Int("page", pages),
				zap.Error(err),
			)
			return nil, fmt.Errorf("%w: %s", bonusTypes.ErrSourceUnavailable, err)
		}

		for _, t := range page.Transfers {
			record := mapEvmTransfer(t)
			if opts.AssetFilter != "" && record.Asset != opts.AssetFilter {
				continue
			}
			records = append(records, record)
		}

		pages++
		if page.PageKey == "" || (opts.MaxPages > 0 && pages >= opts.MaxPages) {
			break
		}
		pageKey = page.PageKey
	}

	a.logger.Sugar().Debugw("Fetched EVM transfers",
		zap.String("address", address),
		zap.Int("count", len(records)),
		zap.Int("pages", pages),
	)
	return records, nil
}

func mapEvmTransfer(t *alchemy.AssetTransfer) *bonusTypes.TransferRecord {
	record := &bonusTypes.TransferRecord{
		From:   t.From,
		TxHash: t.Hash,
	}
	if t.To != nil {
		record.To = *t.To
	}
	if t.Asset != nil {
		record.Asset = *t.Asset
	}
	if t.Value != nil {
		if amount, err := decimal.NewFromString(t.Value.String()); err == nil {
			record.Amount = &amount
		}
	}
	if ts, err := time.Parse(time.RFC3339, t.Metadata.BlockTimestamp); err == nil {
		record.TimestampUtc = ts.UTC()
	}
	return record
}

func (a *EvmAdapter) IsNativeTransfer(t *bonusTypes.TransferRecord) bool {
	return t.Asset == evmNativeAsset
}

func (a *EvmAdapter) IsFungibleTransfer(t *bonusTypes.TransferRecord) bool {
	return t.Asset != "" && t.Asset != evmNativeAsset
}

// AddressesEqual compares EVM addresses case-insensitively; providers are
// inconsistent about checksum casing.
func (a *EvmAdapter) AddressesEqual(x string, y string) bool {
	return utils.AreAddressesEqual(x, y)
}

func (a *EvmAdapter) NormalizeAddress(x string) string {
	return strings.ToLower(x)
}
