// Package memory provides an in-process BonusResultStore used by the CLI and
// tests; deployments wanting durability use the postgres store instead.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vampfi/bonus-engine/pkg/bonusTypes"
	"github.com/vampfi/bonus-engine/pkg/storage"
)

type InMemoryBonusResultStore struct {
	mu      sync.RWMutex
	records map[string]*storage.BonusRecord
	now     func() time.Time
}

func NewInMemoryBonusResultStore() *InMemoryBonusResultStore {
	return &InMemoryBonusResultStore{
		records: make(map[string]*storage.BonusRecord),
		now:     time.Now,
	}
}

func key(wallet string, chain string, scope string) string {
	return fmt.Sprintf("%s|%s|%s", wallet, chain, scope)
}

func (s *InMemoryBonusResultStore) SaveResult(ctx context.Context, result *bonusTypes.BonusResult, scope string) error {
	record, err := storage.MarshalResult(result, scope, s.now().UTC())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key(result.Wallet, result.Chain, scope)] = record
	return nil
}

func (s *InMemoryBonusResultStore) GetResult(ctx context.Context, wallet string, chain string, scope string) (*bonusTypes.BonusResult, time.Time, error) {
	s.mu.RLock()
	record, ok := s.records[key(wallet, chain, scope)]
	s.mu.RUnlock()
	if !ok {
		return nil, time.Time{}, storage.ErrResultNotFound
	}

	result, err := storage.UnmarshalResult(record)
	if err != nil {
		return nil, time.Time{}, err
	}
	return result, record.LastScannedAt, nil
}

func (s *InMemoryBonusResultStore) EligibleForRescan(ctx context.Context, wallet string, chain string, scope string, cooldown time.Duration) (bool, error) {
	s.mu.RLock()
	record, ok := s.records[key(wallet, chain, scope)]
	s.mu.RUnlock()
	if !ok {
		return true, nil
	}
	return s.now().UTC().Sub(record.LastScannedAt) >= cooldown, nil
}
