// Package requestPool provides bounded-concurrency admission control for
// outbound provider requests. Every call to the chain transaction source and
// the price oracle goes through a shared pool so total in-flight request
// concurrency stays under the provider rate limits.
package requestPool

import (
	"context"
)

// DefaultPoolSize is the default number of concurrently in-flight requests.
const DefaultPoolSize = 10

// Pool is a counting-semaphore task scheduler. Tasks queue in FIFO order when
// the pool is saturated. It is an admission-control primitive, not a full
// scheduler: the only cancellation guarantee is that a queued task whose
// context is already done is not started.
type Pool struct {
	tokens chan struct{}
}

// NewPool creates a pool allowing at most size concurrently running tasks.
// A size of zero or less falls back to DefaultPoolSize.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &Pool{
		tokens: make(chan struct{}, size),
	}
}

// Size returns the maximum number of concurrently running tasks.
func (p *Pool) Size() int {
	return cap(p.tokens)
}

// Do runs task once a pool token is available, blocking the calling goroutine
// until then. If ctx is done before a token is acquired the task is not
// started and ctx.Err() is returned.
func (p *Pool) Do(ctx context.Context, task func() error) error {
	select {
	case p.tokens <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.tokens }()

	// Re-check after acquisition; the caller may have gone away while queued.
	if err := ctx.Err(); err != nil {
		return err
	}
	return task()
}
