package depositTracer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/vampfi/bonus-engine/internal/config"
	"github.com/vampfi/bonus-engine/internal/logger"
	"github.com/vampfi/bonus-engine/internal/metrics/metricsTypes"
	"github.com/vampfi/bonus-engine/pkg/bonusTypes"
	"github.com/vampfi/bonus-engine/pkg/transferSource"
)

const testTreasury = "0xTREASURY"

// stubAdapter serves canned transfer lists keyed by normalized address.
type stubAdapter struct {
	mu        sync.Mutex
	transfers map[string][]*bonusTypes.TransferRecord
	failFor   map[string]bool
	calls     []string
}

func newStubAdapter() *stubAdapter {
	return &stubAdapter{
		transfers: make(map[string][]*bonusTypes.TransferRecord),
		failFor:   make(map[string]bool),
	}
}

func (s *stubAdapter) Chain() config.Chain {
	return config.Chain_Ethereum
}

func (s *stubAdapter) FetchTransfers(ctx context.Context, address string, opts *transferSource.FetchOptions) ([]*bonusTypes.TransferRecord, error) {
	s.mu.Lock()
	s.calls = append(s.calls, s.NormalizeAddress(address))
	s.mu.Unlock()

	if s.failFor[s.NormalizeAddress(address)] {
		return nil, fmt.Errorf("%w: provider exploded", bonusTypes.ErrSourceUnavailable)
	}

	all := s.transfers[s.NormalizeAddress(address)]
	if opts == nil || opts.Counterparty == "" {
		return all, nil
	}
	matched := make([]*bonusTypes.TransferRecord, 0)
	for _, t := range all {
		if s.AddressesEqual(t.To, opts.Counterparty) {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

func (s *stubAdapter) IsNativeTransfer(t *bonusTypes.TransferRecord) bool {
	return t.Asset == "ETH"
}

func (s *stubAdapter) IsFungibleTransfer(t *bonusTypes.TransferRecord) bool {
	return t.Asset != "" && t.Asset != "ETH"
}

func (s *stubAdapter) AddressesEqual(a string, b string) bool {
	return strings.EqualFold(a, b)
}

func (s *stubAdapter) NormalizeAddress(a string) string {
	return strings.ToLower(a)
}

func (s *stubAdapter) callCount(address string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == s.NormalizeAddress(address) {
			n++
		}
	}
	return n
}

func transfer(from string, to string, asset string, amount int64, txHash string) *bonusTypes.TransferRecord {
	value := decimal.NewFromInt(amount)
	return &bonusTypes.TransferRecord{
		From:         from,
		To:           to,
		Asset:        asset,
		Amount:       &value,
		TimestampUtc: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		TxHash:       txHash,
	}
}

func newTestTracer(adapter transferSource.ChainAdapter, cfg *TracerConfig) *DepositTracer {
	return NewDepositTracer(adapter, cfg, nil, logger.NewNoopLogger())
}

// gaugeMetrics records the last value set per gauge name.
type gaugeMetrics struct {
	mu     sync.Mutex
	gauges map[string]float64
}

func newGaugeMetrics() *gaugeMetrics {
	return &gaugeMetrics{gauges: make(map[string]float64)}
}

func (g *gaugeMetrics) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	return nil
}

func (g *gaugeMetrics) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gauges[name] = value
	return nil
}

func (g *gaugeMetrics) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	return nil
}

func (g *gaugeMetrics) Flush() {}

func (g *gaugeMetrics) gauge(name string) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gauges[name]
}

func Test_DepositTracer(t *testing.T) {
	t.Run("Should qualify the user transfer when the intermediary forwarded to the treasury", func(t *testing.T) {
		adapter := newStubAdapter()
		adapter.transfers["0xuser"] = []*bonusTypes.TransferRecord{
			transfer("0xUSER", "0xAAA", "USDT", 250, "tx-user-a"),
			transfer("0xUSER", "0xBBB", "USDT", 999, "tx-user-b"),
		}
		adapter.transfers["0xaaa"] = []*bonusTypes.TransferRecord{
			transfer("0xAAA", testTreasury, "USDT", 250, "tx-a-treasury"),
		}
		adapter.transfers["0xbbb"] = []*bonusTypes.TransferRecord{
			transfer("0xBBB", "0xELSEWHERE", "USDT", 999, "tx-b-elsewhere"),
		}

		tracer := newTestTracer(adapter, &TracerConfig{BatchDelay: time.Millisecond})
		deposits, err := tracer.TraceDeposits(context.Background(), "0xUSER", "midnight", testTreasury, nil)

		assert.Nil(t, err)
		assert.Equal(t, 1, len(deposits))
		assert.Equal(t, "tx-user-a", deposits[0].TxHash)
		assert.Equal(t, "midnight", deposits[0].CasinoId)
		assert.Equal(t, "0xAAA", deposits[0].Intermediary)
		assert.True(t, deposits[0].Amount.Equal(decimal.NewFromInt(250)))
	})

	t.Run("Should qualify every user transfer to a forwarding intermediary", func(t *testing.T) {
		adapter := newStubAdapter()
		adapter.transfers["0xuser"] = []*bonusTypes.TransferRecord{
			transfer("0xUSER", "0xAAA", "USDT", 100, "tx-1"),
			transfer("0xUSER", "0xaaa", "ETH", 2, "tx-2"),
		}
		adapter.transfers["0xaaa"] = []*bonusTypes.TransferRecord{
			transfer("0xAAA", testTreasury, "USDT", 100, "tx-fwd"),
		}

		tracer := newTestTracer(adapter, &TracerConfig{BatchDelay: time.Millisecond})
		deposits, err := tracer.TraceDeposits(context.Background(), "0xUSER", "midnight", testTreasury, nil)

		assert.Nil(t, err)
		assert.Equal(t, 2, len(deposits))
		// case-variant recipients collapse into one candidate, checked once
		assert.Equal(t, 1, adapter.callCount("0xAAA"))
	})

	t.Run("Should skip transfers with no recipient", func(t *testing.T) {
		adapter := newStubAdapter()
		adapter.transfers["0xuser"] = []*bonusTypes.TransferRecord{
			transfer("0xUSER", "", "ETH", 1, "tx-contract-create"),
		}

		tracer := newTestTracer(adapter, &TracerConfig{BatchDelay: time.Millisecond})
		deposits, err := tracer.TraceDeposits(context.Background(), "0xUSER", "midnight", testTreasury, nil)

		assert.Nil(t, err)
		assert.Equal(t, 0, len(deposits))
		assert.Equal(t, 1, adapter.callCount("0xUSER"))
	})

	t.Run("Should continue the batch when one candidate check fails", func(t *testing.T) {
		adapter := newStubAdapter()
		adapter.transfers["0xuser"] = []*bonusTypes.TransferRecord{
			transfer("0xUSER", "0xAAA", "USDT", 50, "tx-a"),
			transfer("0xUSER", "0xBAD", "USDT", 60, "tx-bad"),
		}
		adapter.transfers["0xaaa"] = []*bonusTypes.TransferRecord{
			transfer("0xAAA", testTreasury, "USDT", 50, "tx-fwd"),
		}
		adapter.failFor["0xbad"] = true

		tracer := newTestTracer(adapter, &TracerConfig{BatchDelay: time.Millisecond})
		deposits, err := tracer.TraceDeposits(context.Background(), "0xUSER", "midnight", testTreasury, nil)

		assert.Nil(t, err)
		assert.Equal(t, 1, len(deposits))
		assert.Equal(t, "tx-a", deposits[0].TxHash)
	})

	t.Run("Should fail the trace when the top-level fetch fails", func(t *testing.T) {
		adapter := newStubAdapter()
		adapter.failFor["0xuser"] = true

		tracer := newTestTracer(adapter, &TracerConfig{BatchDelay: time.Millisecond})
		deposits, err := tracer.TraceDeposits(context.Background(), "0xUSER", "midnight", testTreasury, nil)

		assert.Nil(t, deposits)
		assert.ErrorIs(t, err, bonusTypes.ErrSourceUnavailable)
	})

	t.Run("Should report monotonic progress up to 100", func(t *testing.T) {
		adapter := newStubAdapter()
		adapter.transfers["0xuser"] = []*bonusTypes.TransferRecord{
			transfer("0xUSER", "0xA1", "USDT", 1, "t1"),
			transfer("0xUSER", "0xA2", "USDT", 1, "t2"),
			transfer("0xUSER", "0xA3", "USDT", 1, "t3"),
		}

		var mu sync.Mutex
		percents := make([]float64, 0)
		sink := func(percent float64, message string) {
			mu.Lock()
			percents = append(percents, percent)
			mu.Unlock()
		}

		tracer := newTestTracer(adapter, &TracerConfig{BatchDelay: time.Millisecond})
		_, err := tracer.TraceDeposits(context.Background(), "0xUSER", "midnight", testTreasury, sink)

		assert.Nil(t, err)
		assert.Equal(t, float64(0), percents[0])
		assert.Equal(t, float64(100), percents[len(percents)-1])
		assert.Contains(t, percents, 33.33)
		assert.Contains(t, percents, 66.67)
	})

	t.Run("Should gauge how many candidates a trace checked", func(t *testing.T) {
		adapter := newStubAdapter()
		adapter.transfers["0xuser"] = []*bonusTypes.TransferRecord{
			transfer("0xUSER", "0xA1", "USDT", 1, "t1"),
			transfer("0xUSER", "0xA2", "USDT", 1, "t2"),
			transfer("0xUSER", "0xA3", "USDT", 1, "t3"),
		}

		recorded := newGaugeMetrics()
		tracer := NewDepositTracer(adapter, &TracerConfig{BatchDelay: time.Millisecond}, recorded, logger.NewNoopLogger())
		_, err := tracer.TraceDeposits(context.Background(), "0xUSER", "midnight", testTreasury, nil)

		assert.Nil(t, err)
		assert.Equal(t, float64(3), recorded.gauge(metricsTypes.Metric_Gauge_CandidatesChecked))
	})

	t.Run("Should process candidates in batches and pause between them", func(t *testing.T) {
		adapter := newStubAdapter()
		userTransfers := make([]*bonusTypes.TransferRecord, 0)
		for i := 0; i < 5; i++ {
			userTransfers = append(userTransfers, transfer("0xUSER", fmt.Sprintf("0xC%d", i), "USDT", 1, fmt.Sprintf("t%d", i)))
		}
		adapter.transfers["0xuser"] = userTransfers

		delay := 40 * time.Millisecond
		tracer := newTestTracer(adapter, &TracerConfig{CandidateBatchSize: 2, BatchDelay: delay})

		start := time.Now()
		_, err := tracer.TraceDeposits(context.Background(), "0xUSER", "midnight", testTreasury, nil)
		elapsed := time.Since(start)

		assert.Nil(t, err)
		// 3 batches of [2,2,1], 2 inter-batch pauses, none after the last
		assert.GreaterOrEqual(t, elapsed, 2*delay)
		assert.Less(t, elapsed, 3*delay)
	})

	t.Run("Should stop between batches when the context is cancelled", func(t *testing.T) {
		adapter := newStubAdapter()
		userTransfers := make([]*bonusTypes.TransferRecord, 0)
		for i := 0; i < 4; i++ {
			userTransfers = append(userTransfers, transfer("0xUSER", fmt.Sprintf("0xC%d", i), "USDT", 1, fmt.Sprintf("t%d", i)))
		}
		adapter.transfers["0xuser"] = userTransfers

		ctx, cancel := context.WithCancel(context.Background())
		tracer := newTestTracer(adapter, &TracerConfig{CandidateBatchSize: 2, BatchDelay: time.Second})

		done := make(chan error, 1)
		go func() {
			_, err := tracer.TraceDeposits(ctx, "0xUSER", "midnight", testTreasury, nil)
			done <- err
		}()

		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(500 * time.Millisecond):
			t.Fatal("trace did not observe cancellation during the batch pause")
		}
	})

	t.Run("Should discard qualifying transfers with missing fields", func(t *testing.T) {
		adapter := newStubAdapter()
		broken := &bonusTypes.TransferRecord{
			From:   "0xUSER",
			To:     "0xAAA",
			TxHash: "tx-broken",
		}
		adapter.transfers["0xuser"] = []*bonusTypes.TransferRecord{
			broken,
			transfer("0xUSER", "0xAAA", "USDT", 10, "tx-ok"),
		}
		adapter.transfers["0xaaa"] = []*bonusTypes.TransferRecord{
			transfer("0xAAA", testTreasury, "USDT", 10, "tx-fwd"),
		}

		tracer := newTestTracer(adapter, &TracerConfig{BatchDelay: time.Millisecond})
		deposits, err := tracer.TraceDeposits(context.Background(), "0xUSER", "midnight", testTreasury, nil)

		assert.Nil(t, err)
		assert.Equal(t, 1, len(deposits))
		assert.Equal(t, "tx-ok", deposits[0].TxHash)
	})
}
