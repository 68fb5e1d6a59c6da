package traceQueue

import (
	"context"

	"github.com/google/uuid"
	"github.com/vampfi/bonus-engine/internal/config"
	"github.com/vampfi/bonus-engine/pkg/bonusTypes"
)

// TraceRequestData contains the parameters for one trace request.
type TraceRequestData struct {
	// Wallet is the user wallet to trace
	Wallet string

	// Chain selects the chain adapter to trace on
	Chain config.Chain

	// CasinoId restricts the trace to one casino; empty means all casinos on
	// the chain
	CasinoId string

	// Force skips the rescan cooldown check
	Force bool
}

// TraceResponse is the outcome of one queued trace.
type TraceResponse struct {
	// Result is the computed bonus result; nil when Error is set
	Result *bonusTypes.BonusResult

	// FromCache is true when the stored result was served without rescanning
	FromCache bool

	// Error contains any error that occurred during the trace
	Error error
}

// TraceMessage is a queued trace request. Each message carries a unique id so
// log lines from concurrent traces can be correlated.
type TraceMessage struct {
	Id      uuid.UUID
	Data    TraceRequestData
	Context context.Context

	// ResponseChan receives the trace outcome; nil for fire-and-forget requests
	ResponseChan chan *TraceResponse
}
