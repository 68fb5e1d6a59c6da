// Package scoreAggregator folds valuated deposits into per-casino and total
// scores. Aggregation is a pure function of its input: same deposits in, same
// result out, regardless of ordering or how many times it runs.
package scoreAggregator

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/vampfi/bonus-engine/pkg/bonusTypes"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// scoreStep is the USD bucket size a score is truncated to.
var scoreStep = decimal.NewFromInt(100)

// ScoreForUsd truncates a USD total to the score scale: floor(total/100)*100.
// Scores are always recomputed from the full total so partial sums can never
// accumulate rounding drift.
func ScoreForUsd(totalUsd decimal.Decimal) int64 {
	if totalUsd.IsNegative() {
		return 0
	}
	return totalUsd.Div(scoreStep).Floor().Mul(scoreStep).IntPart()
}

// Aggregate builds a BonusResult from valuated deposits. PerCasino entries are
// ordered by casino id so serialized results are stable across runs. The
// total score is the sum of the per-casino scores, not a rescore of the
// grand total: $99.99 at each of two casinos scores zero overall. The
// unpriced set is carried through untouched.
func Aggregate(wallet string, chain string, deposits []*bonusTypes.ValuatedDeposit, unpriced []*bonusTypes.QualifyingDeposit) *bonusTypes.BonusResult {
	totals := make(map[string]decimal.Decimal)
	for _, d := range deposits {
		totals[d.Deposit.CasinoId] = totals[d.Deposit.CasinoId].Add(d.UsdValue)
	}

	casinoIds := make([]string, 0, len(totals))
	for id := range totals {
		casinoIds = append(casinoIds, id)
	}
	sort.Strings(casinoIds)

	perCasino := orderedmap.New[string, *bonusTypes.CasinoScoreEntry]()
	grandTotal := decimal.Zero
	totalScore := int64(0)
	for _, id := range casinoIds {
		total := totals[id]
		score := ScoreForUsd(total)
		perCasino.Set(id, &bonusTypes.CasinoScoreEntry{
			TotalDepositedUsd: total,
			Score:             score,
		})
		grandTotal = grandTotal.Add(total)
		totalScore += score
	}

	return &bonusTypes.BonusResult{
		Wallet:            wallet,
		Chain:             chain,
		TotalDepositedUsd: grandTotal,
		TotalScore:        totalScore,
		PerCasino:         perCasino,
		UnpricedDeposits:  unpriced,
		Status:            bonusTypes.BonusStatus_Success,
	}
}
