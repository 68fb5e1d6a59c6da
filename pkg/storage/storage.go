// Package storage persists bonus computation results so repeated score
// lookups don't retrace a wallet's full history. A stored result is a
// snapshot: rescans replace it wholesale, never merge into it.
package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/vampfi/bonus-engine/pkg/bonusTypes"
)

var ErrResultNotFound = errors.New("no stored bonus result for wallet")

// ScopeAll is the scope of a result computed across every casino configured
// on the chain. Single-casino results use the casino id as their scope.
const ScopeAll = "all"

// BonusRecord is the persisted form of a bonus result. PerCasino and the
// unpriced set are stored as JSON; their shape is owned by bonusTypes and the
// store never inspects them.
type BonusRecord struct {
	Id            uint64 `gorm:"primaryKey;autoIncrement"`
	Wallet        string `gorm:"index:idx_wallet_chain_scope,unique"`
	Chain         string `gorm:"index:idx_wallet_chain_scope,unique"`
	Scope         string `gorm:"index:idx_wallet_chain_scope,unique"`
	Status        string
	TotalUsd      string
	TotalScore    int64
	PerCasino     []byte `gorm:"type:jsonb"`
	Unpriced      []byte `gorm:"type:jsonb"`
	LastScannedAt time.Time
}

// BonusResultStore persists one result per (wallet, chain, scope). A result
// stored under one scope never answers a lookup for another: a single-casino
// result must not stand in for an all-casino one or vice versa.
type BonusResultStore interface {
	// SaveResult stores a result, replacing any previous one for the
	// wallet/chain/scope.
	SaveResult(ctx context.Context, result *bonusTypes.BonusResult, scope string) error

	// GetResult returns the stored result, or ErrResultNotFound.
	GetResult(ctx context.Context, wallet string, chain string, scope string) (*bonusTypes.BonusResult, time.Time, error)

	// EligibleForRescan reports whether enough time has passed since the last
	// scan of this scope. A scope with no stored result is always eligible.
	EligibleForRescan(ctx context.Context, wallet string, chain string, scope string, cooldown time.Duration) (bool, error)
}
