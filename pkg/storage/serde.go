package storage

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vampfi/bonus-engine/pkg/bonusTypes"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// MarshalResult flattens a bonus result into its persisted record form.
func MarshalResult(result *bonusTypes.BonusResult, scope string, scannedAt time.Time) (*BonusRecord, error) {
	perCasino, err := json.Marshal(result.PerCasino)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal per-casino scores")
	}
	unpriced, err := json.Marshal(result.UnpricedDeposits)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal unpriced deposits")
	}
	return &BonusRecord{
		Wallet:        result.Wallet,
		Chain:         result.Chain,
		Scope:         scope,
		Status:        string(result.Status),
		TotalUsd:      result.TotalDepositedUsd.String(),
		TotalScore:    result.TotalScore,
		PerCasino:     perCasino,
		Unpriced:      unpriced,
		LastScannedAt: scannedAt,
	}, nil
}

// UnmarshalResult rebuilds a bonus result from its persisted record form.
func UnmarshalResult(record *BonusRecord) (*bonusTypes.BonusResult, error) {
	totalUsd, err := decimal.NewFromString(record.TotalUsd)
	if err != nil {
		return nil, errors.Wrapf(err, "corrupt total for wallet '%s'", record.Wallet)
	}

	perCasino := orderedmap.New[string, *bonusTypes.CasinoScoreEntry]()
	if len(record.PerCasino) > 0 {
		if err := json.Unmarshal(record.PerCasino, perCasino); err != nil {
			return nil, errors.Wrapf(err, "corrupt per-casino scores for wallet '%s'", record.Wallet)
		}
	}

	var unpriced []*bonusTypes.QualifyingDeposit
	if len(record.Unpriced) > 0 {
		if err := json.Unmarshal(record.Unpriced, &unpriced); err != nil {
			return nil, errors.Wrapf(err, "corrupt unpriced deposits for wallet '%s'", record.Wallet)
		}
	}

	return &bonusTypes.BonusResult{
		Wallet:            record.Wallet,
		Chain:             record.Chain,
		TotalDepositedUsd: totalUsd,
		TotalScore:        record.TotalScore,
		PerCasino:         perCasino,
		UnpricedDeposits:  unpriced,
		Status:            bonusTypes.BonusStatus(record.Status),
	}, nil
}
