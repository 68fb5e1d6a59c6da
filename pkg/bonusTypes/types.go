// Package bonusTypes contains the domain types shared across the tracing,
// valuation and aggregation stages, plus the error taxonomy for the engine.
package bonusTypes

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrSourceUnavailable indicates the chain transaction source failed (HTTP
// error, exhausted rate limit). It fails the whole trace; per-candidate
// failures are isolated and never wrapped in it.
var ErrSourceUnavailable = errors.New("chain transaction source unavailable")

// InvalidConfigurationError indicates an unknown chain/casino combination.
// This is a setup bug and is reported distinctly rather than producing a
// zero-score result.
type InvalidConfigurationError struct {
	CasinoId string
	Chain    string
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("no treasury configured for casino '%s' on chain '%s'", e.CasinoId, e.Chain)
}

// TransferRecord is a single on-chain value movement as returned by the chain
// transaction source. Records are immutable and live only for the duration of
// a trace invocation.
type TransferRecord struct {
	// From is the sending address
	From string
	// To is the receiving address; empty when the provider returned none
	To string
	// Asset is the token symbol; empty when the provider could not resolve it
	Asset string
	// Amount is the transferred quantity in whole token units; nil when unknown
	Amount *decimal.Decimal
	// TimestampUtc is the block time of the transfer
	TimestampUtc time.Time
	// TxHash is the transaction hash the transfer occurred in
	TxHash string
}

// QualifyingDeposit is a user→intermediary transfer for which the
// intermediary later transferred to the casino treasury. The deposit carries
// the original transfer's amount, asset and timestamp, not the forwarding
// transfer's.
type QualifyingDeposit struct {
	CasinoId     string
	Intermediary string
	From         string
	Asset        string
	Amount       decimal.Decimal
	TimestampUtc time.Time
	TxHash       string
}

// NewQualifyingDeposit builds a deposit from a transfer record. It returns
// false when the record is missing asset, amount or timestamp; such records
// are discarded before valuation.
func NewQualifyingDeposit(casinoId string, t *TransferRecord) (*QualifyingDeposit, bool) {
	if t.Asset == "" || t.Amount == nil || t.TimestampUtc.IsZero() {
		return nil, false
	}
	return &QualifyingDeposit{
		CasinoId:     casinoId,
		Intermediary: t.To,
		From:         t.From,
		Asset:        t.Asset,
		Amount:       *t.Amount,
		TimestampUtc: t.TimestampUtc,
		TxHash:       t.TxHash,
	}, true
}

// ValuatedDeposit is a qualifying deposit priced in USD at its historical
// timestamp.
type ValuatedDeposit struct {
	Deposit *QualifyingDeposit
	// UsdPricePerUnit is the historical spot price; always >= 0
	UsdPricePerUnit decimal.Decimal
	// UsdValue is Amount * UsdPricePerUnit
	UsdValue decimal.Decimal
}

// CasinoScoreEntry aggregates deposits for one casino. Score is always
// recomputed from TotalDepositedUsd, never accumulated incrementally, so
// re-aggregation cannot drift.
type CasinoScoreEntry struct {
	TotalDepositedUsd decimal.Decimal `json:"totalDepositedUsd"`
	Score             int64           `json:"score"`
}

// BonusStatus is the lifecycle status of a bonus computation.
type BonusStatus string

const (
	BonusStatus_NotStarted BonusStatus = "NotStarted"
	BonusStatus_Loading    BonusStatus = "Loading"
	BonusStatus_Success    BonusStatus = "Success"
	BonusStatus_Error      BonusStatus = "Error"
)

// BonusResult is the output of one full trace. Each scan is a complete
// recomputation over the wallet's history; results are replaced, never merged.
type BonusResult struct {
	Wallet            string                                                  `json:"wallet"`
	Chain             string                                                  `json:"chain"`
	TotalDepositedUsd decimal.Decimal                                         `json:"totalDepositedUsd"`
	TotalScore        int64                                                   `json:"totalScore"`
	PerCasino         *orderedmap.OrderedMap[string, *CasinoScoreEntry]       `json:"perCasino"`
	// UnpricedDeposits are qualifying deposits excluded from the totals
	// because no historical price could be resolved. Exposed so data-quality
	// gaps are visible instead of silently deflating scores.
	UnpricedDeposits []*QualifyingDeposit `json:"unpricedDeposits,omitempty"`
	Status           BonusStatus          `json:"status"`
}

// NewEmptyBonusResult returns a result with zeroed totals and the given status.
func NewEmptyBonusResult(wallet string, chain string, status BonusStatus) *BonusResult {
	return &BonusResult{
		Wallet:            wallet,
		Chain:             chain,
		TotalDepositedUsd: decimal.Zero,
		TotalScore:        0,
		PerCasino:         orderedmap.New[string, *CasinoScoreEntry](),
		Status:            status,
	}
}
