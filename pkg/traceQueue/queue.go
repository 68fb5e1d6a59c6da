// Package traceQueue serializes bonus computations. Traces are deliberately
// paced to stay inside provider rate limits, so running two wallets
// concurrently would starve both; the queue runs them one at a time and lets
// callers either wait or fire-and-forget.
package traceQueue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vampfi/bonus-engine/pkg/bonusEngine"
	"github.com/vampfi/bonus-engine/pkg/bonusTypes"
	"github.com/vampfi/bonus-engine/pkg/depositTracer"
	"github.com/vampfi/bonus-engine/pkg/storage"
	"go.uber.org/zap"
)

// queueDepth bounds how many trace requests may wait at once.
const queueDepth = 100

type TraceQueue struct {
	logger *zap.Logger
	engine *bonusEngine.BonusEngine
	store  storage.BonusResultStore

	// rescanCooldown gates how often a wallet may be fully retraced
	rescanCooldown time.Duration

	// sink receives progress updates from the active trace
	sink depositTracer.ProgressSink

	queue chan *TraceMessage
	done  chan struct{}
}

func NewTraceQueue(engine *bonusEngine.BonusEngine, store storage.BonusResultStore, rescanCooldown time.Duration, sink depositTracer.ProgressSink, l *zap.Logger) *TraceQueue {
	return &TraceQueue{
		logger:         l,
		engine:         engine,
		store:          store,
		rescanCooldown: rescanCooldown,
		sink:           sink,
		queue:          make(chan *TraceMessage, queueDepth),
		done:           make(chan struct{}),
	}
}

// Enqueue adds a trace request to the queue without waiting for the result.
// Returns an error if the queue is full.
func (tq *TraceQueue) Enqueue(message *TraceMessage) error {
	if message.Id == uuid.Nil {
		message.Id = uuid.New()
	}
	if message.Context == nil {
		message.Context = context.Background()
	}
	select {
	case tq.queue <- message:
		tq.logger.Sugar().Infow("Enqueueing trace message",
			zap.String("traceId", message.Id.String()),
			zap.String("wallet", message.Data.Wallet),
			zap.String("chain", string(message.Data.Chain)),
		)
		return nil
	default:
		return fmt.Errorf("trace queue is full, please wait and try again")
	}
}

// EnqueueAndWait adds a trace request to the queue and blocks until the trace
// completes or ctx is canceled.
func (tq *TraceQueue) EnqueueAndWait(ctx context.Context, data TraceRequestData) (*TraceResponse, error) {
	responseChan := make(chan *TraceResponse, 1)
	message := &TraceMessage{
		Id:           uuid.New(),
		Data:         data,
		Context:      ctx,
		ResponseChan: responseChan,
	}
	if err := tq.Enqueue(message); err != nil {
		return nil, err
	}

	select {
	case response := <-responseChan:
		return response, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close signals the processing loop to stop.
func (tq *TraceQueue) Close() {
	tq.logger.Sugar().Infow("Closing trace queue")
	close(tq.done)
}

// Process is the main processing loop. It pulls messages off the queue and
// runs them one at a time until Close is called.
func (tq *TraceQueue) Process() {
	for {
		select {
		case <-tq.done:
			return
		case msg := <-tq.queue:
			response := tq.processMessage(msg)

			if msg.ResponseChan != nil {
				select {
				case msg.ResponseChan <- response:
				default:
					tq.logger.Sugar().Infow("No receiver for trace response, dropping",
						zap.String("traceId", msg.Id.String()),
					)
				}
			}
		}
	}
}

func (tq *TraceQueue) processMessage(msg *TraceMessage) *TraceResponse {
	tq.logger.Sugar().Infow("Processing trace message",
		zap.String("traceId", msg.Id.String()),
		zap.String("wallet", msg.Data.Wallet),
		zap.String("chain", string(msg.Data.Chain)),
		zap.String("casinoId", msg.Data.CasinoId),
	)

	scope := scopeFor(msg.Data)
	if tq.store != nil && !msg.Data.Force {
		eligible, err := tq.store.EligibleForRescan(msg.Context, msg.Data.Wallet, string(msg.Data.Chain), scope, tq.rescanCooldown)
		if err != nil {
			tq.logger.Sugar().Warnw("failed to check rescan eligibility, tracing anyway",
				zap.String("traceId", msg.Id.String()),
				zap.Error(err),
			)
		} else if !eligible {
			cached, _, err := tq.store.GetResult(msg.Context, msg.Data.Wallet, string(msg.Data.Chain), scope)
			if err == nil {
				tq.logger.Sugar().Infow("Serving stored result within rescan cooldown",
					zap.String("traceId", msg.Id.String()),
					zap.String("wallet", msg.Data.Wallet),
					zap.String("scope", scope),
				)
				return &TraceResponse{Result: cached, FromCache: true}
			}
			tq.logger.Sugar().Warnw("stored result unreadable, retracing",
				zap.String("traceId", msg.Id.String()),
				zap.Error(err),
			)
		}
	}

	result, err := tq.computeResult(msg)
	if err != nil {
		return &TraceResponse{Error: err}
	}

	if tq.store != nil {
		if err := tq.store.SaveResult(msg.Context, result, scope); err != nil {
			tq.logger.Sugar().Errorw("failed to persist trace result",
				zap.String("traceId", msg.Id.String()),
				zap.Error(err),
			)
		}
	}
	return &TraceResponse{Result: result}
}

// scopeFor maps a request to its storage scope. A cached result only ever
// answers requests for the same scope; a single-casino result must not stand
// in for an all-casino one or for another casino's.
func scopeFor(data TraceRequestData) string {
	if data.CasinoId != "" {
		return data.CasinoId
	}
	return storage.ScopeAll
}

func (tq *TraceQueue) computeResult(msg *TraceMessage) (*bonusTypes.BonusResult, error) {
	if msg.Data.CasinoId != "" {
		return tq.engine.ComputeBonus(msg.Context, msg.Data.Wallet, msg.Data.Chain, msg.Data.CasinoId, tq.sink)
	}
	return tq.engine.ComputeAllBonuses(msg.Context, msg.Data.Wallet, msg.Data.Chain, tq.sink)
}
